package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/chzyer/readline"
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	apperrors "calbot/internal/errors"
	"calbot/internal/logging"
)

func newChatCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "chat",
		Short: "Chat with the assistant in the terminal",
		RunE: func(cmd *cobra.Command, args []string) error {
			// Keep component logs out of the conversation.
			logFile, err := os.OpenFile("calbot.log", os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
			if err == nil {
				logging.SetOutput(logFile)
				defer func() { _ = logFile.Close() }()
			} else {
				logging.SetOutput(io.Discard)
			}

			rt, err := buildRuntime()
			if err != nil {
				return err
			}
			return runChatLoop(cmd.Context(), rt)
		},
	}
}

func runChatLoop(ctx context.Context, rt *runtime) error {
	titleColor := color.New(color.FgCyan, color.Bold)
	promptColor := color.New(color.FgGreen)
	errorColor := color.New(color.FgRed)

	_, _ = titleColor.Println("calbot - calendar assistant")
	fmt.Println("Ask me to book, list, cancel or reschedule meetings.")
	fmt.Println("Type 'exit' or 'quit' to leave.")
	fmt.Println()

	renderer, err := newMarkdownRenderer()
	if err != nil {
		return fmt.Errorf("markdown renderer: %w", err)
	}

	homeDir, _ := os.UserHomeDir()
	rl, err := readline.NewEx(&readline.Config{
		Prompt:            promptColor.Sprint("> "),
		HistoryFile:       filepath.Join(homeDir, ".calbot-history"),
		InterruptPrompt:   "^C",
		EOFPrompt:         "exit",
		HistorySearchFold: true,
		Stdin:             readline.NewCancelableStdin(os.Stdin),
		Stdout:            os.Stdout,
		Stderr:            os.Stderr,
	})
	if err != nil {
		return fmt.Errorf("initialize readline: %w", err)
	}
	defer func() { _ = rl.Close() }()

	// One session per chat process.
	sessionID := ""

	for {
		input, err := rl.Readline()
		if err == readline.ErrInterrupt {
			if len(input) == 0 {
				fmt.Println("\nGoodbye!")
				return nil
			}
			continue
		} else if err == io.EOF {
			fmt.Println("\nGoodbye!")
			return nil
		}

		input = strings.TrimSpace(input)
		if input == "" {
			continue
		}
		if input == "exit" || input == "quit" || input == "q" {
			fmt.Println("Goodbye!")
			return nil
		}

		reply, err := rt.agent.HandleMessage(ctx, sessionID, input)
		if err != nil {
			_, _ = errorColor.Printf("\n%s\n\n", apperrors.FormatForUser(err))
			continue
		}
		sessionID = reply.SessionID

		rendered, err := renderer.Render(reply.Content)
		if err != nil {
			rendered = reply.Content
		}
		fmt.Printf("\n%s\n", strings.TrimRight(rendered, "\n"))
		if len(reply.ToolsUsed) > 0 {
			color.New(color.Faint).Printf("(used: %s)\n", strings.Join(reply.ToolsUsed, ", "))
		}
		fmt.Println()
	}
}
