// Command calbot is a natural-language calendar assistant. It serves a
// chat API over HTTP or runs an interactive terminal conversation,
// turning free-form requests into calendar bookings.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"calbot/internal/agent"
	"calbot/internal/calendar"
	"calbot/internal/config"
	apperrors "calbot/internal/errors"
	"calbot/internal/llm"
	"calbot/internal/logging"
	"calbot/internal/reminder"
	"calbot/internal/session"
	"calbot/internal/toolregistry"
)

var version = "0.1.0"

func main() {
	root := newRootCommand()
	if err := root.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	var debug bool

	root := &cobra.Command{
		Use:   "calbot",
		Short: "Natural-language calendar assistant",
		Long: `calbot turns plain requests like "book a meeting with Alice
tomorrow at 3pm for 30 minutes" into calendar operations.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if debug {
				logging.SetLevel(logging.DEBUG)
			}
		},
	}

	root.PersistentFlags().BoolVarP(&debug, "debug", "d", false, "Enable debug logging")

	root.AddCommand(newServeCommand())
	root.AddCommand(newChatCommand())
	root.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("calbot %s\n", version)
		},
	})
	return root
}

// runtime bundles the wired application components.
type runtime struct {
	agent     *agent.Agent
	sessions  *session.Manager
	registry  *toolregistry.Registry
	reminders *reminder.Scheduler
	config    *config.Config
}

// buildRuntime loads configuration and wires the model client, the
// calendar client, the toolset and session state together.
func buildRuntime() (*runtime, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	llmClient, err := llm.NewOpenAIClient(cfg.LLM.Model, llm.Config{
		APIKey:  cfg.LLM.APIKey,
		BaseURL: cfg.LLM.BaseURL,
	})
	if err != nil {
		return nil, fmt.Errorf("llm client: %w", err)
	}
	llmClient = llm.WrapWithRetry(llmClient, apperrors.DefaultRetryConfig())

	loc := cfg.Location()
	calClient := calendar.NewClient(cfg.Calendar.APIKey,
		calendar.WithBaseURL(cfg.Calendar.BaseURL),
		calendar.WithEventTypeID(cfg.Calendar.EventTypeID),
		calendar.WithLocation(loc),
		calendar.WithLanguage(cfg.Calendar.Language),
	)

	reminders := reminder.NewScheduler(logging.NewComponentLogger("reminder"))
	registry, err := toolregistry.NewCalendarRegistry(calClient, reminders, loc, toolregistry.DefaultCacheConfig())
	if err != nil {
		return nil, fmt.Errorf("tool registry: %w", err)
	}

	sessions := session.NewManager(session.ManagerConfig{
		MaxSessions: cfg.Session.MaxSessions,
		TTL:         cfg.Session.TTL,
		OnEvict:     reminders.Drop,
	})

	a := agent.New(llmClient, registry, sessions, reminders, agent.Config{
		MaxIterations:      cfg.Agent.MaxIterations,
		Temperature:        cfg.LLM.Temperature,
		MaxTokens:          cfg.LLM.MaxTokens,
		HistoryTokenBudget: cfg.Session.HistoryTokenBudget,
		OwnerName:          cfg.Calendar.OwnerName,
	})

	return &runtime{
		agent:     a,
		sessions:  sessions,
		registry:  registry,
		reminders: reminders,
		config:    cfg,
	}, nil
}
