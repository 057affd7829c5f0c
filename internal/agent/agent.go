// Package agent runs the conversation loop: user text goes to the
// model together with the calendar tool schemas, tool calls are
// executed against the calendar, and results are fed back until the
// model produces a plain answer.
package agent

import (
	"context"
	"fmt"
	"time"

	"calbot/internal/agent/ports"
	"calbot/internal/logging"
	"calbot/internal/reminder"
	"calbot/internal/session"
)

const (
	defaultMaxIterations = 6
	defaultTemperature   = 0.7
	defaultHistoryBudget = 6000
)

// Config tunes the conversation loop.
type Config struct {
	// MaxIterations bounds completion/tool rounds within one user turn.
	MaxIterations int
	// Temperature is passed through to the model.
	Temperature float64
	// MaxTokens caps each completion. Zero means provider default.
	MaxTokens int
	// HistoryTokenBudget bounds how much conversation history is sent.
	HistoryTokenBudget int
	// OwnerName is the calendar owner mentioned in the instructions.
	OwnerName string
}

func DefaultConfig() Config {
	return Config{
		MaxIterations:      defaultMaxIterations,
		Temperature:        defaultTemperature,
		HistoryTokenBudget: defaultHistoryBudget,
	}
}

// Reply is the outcome of one user turn.
type Reply struct {
	SessionID string           `json:"session_id"`
	Content   string           `json:"content"`
	ToolsUsed []string         `json:"tools_used,omitempty"`
	Usage     ports.TokenUsage `json:"usage"`
}

// Agent wires the model, the tool registry, session state and the
// reminder scheduler into a single conversation handler.
type Agent struct {
	llm       ports.LLMClient
	registry  ports.ToolRegistry
	sessions  *session.Manager
	reminders *reminder.Scheduler
	config    Config
	logger    logging.Logger
	now       func() time.Time
}

func New(llm ports.LLMClient, registry ports.ToolRegistry, sessions *session.Manager, reminders *reminder.Scheduler, config Config) *Agent {
	if config.MaxIterations <= 0 {
		config.MaxIterations = defaultMaxIterations
	}
	if config.Temperature <= 0 {
		config.Temperature = defaultTemperature
	}
	if config.HistoryTokenBudget <= 0 {
		config.HistoryTokenBudget = defaultHistoryBudget
	}
	return &Agent{
		llm:       llm,
		registry:  registry,
		sessions:  sessions,
		reminders: reminders,
		config:    config,
		logger:    logging.NewComponentLogger("agent"),
		now:       time.Now,
	}
}

// HandleMessage processes one user message within a session and
// returns the assistant's reply. Turns within a session are
// serialized; different sessions proceed concurrently.
func (a *Agent) HandleMessage(ctx context.Context, sessionID, userInput string) (*Reply, error) {
	if userInput == "" {
		return nil, fmt.Errorf("empty message")
	}

	sess, created := a.sessions.GetOrCreate(sessionID)
	if created {
		a.logger.Info("Session %s created", sess.ID)
	}
	done := sess.BeginTurn()
	defer done()

	sess.Append(session.Turn{Role: "user", Content: userInput, Timestamp: a.now()})

	messages := []ports.Message{
		{Role: "system", Content: SystemPrompt(a.now(), a.config.OwnerName)},
	}
	if a.reminders != nil {
		if note := ReminderNote(a.reminders.Due(sess.ID)); note != "" {
			messages = append(messages, ports.Message{Role: "system", Content: note})
		}
	}
	messages = append(messages, session.BuildHistory(sess.Turns(), a.config.HistoryTokenBudget)...)

	reply := &Reply{SessionID: sess.ID}
	tools := a.registry.List()

	for iteration := 0; iteration < a.config.MaxIterations; iteration++ {
		resp, err := a.llm.Complete(ctx, ports.CompletionRequest{
			Messages:    messages,
			Tools:       tools,
			Temperature: a.config.Temperature,
			MaxTokens:   a.config.MaxTokens,
		})
		if err != nil {
			return nil, err
		}
		reply.Usage.PromptTokens += resp.Usage.PromptTokens
		reply.Usage.CompletionTokens += resp.Usage.CompletionTokens
		reply.Usage.TotalTokens += resp.Usage.TotalTokens

		if len(resp.ToolCalls) == 0 {
			reply.Content = resp.Content
			sess.Append(session.Turn{Role: "assistant", Content: resp.Content, Timestamp: a.now()})
			return reply, nil
		}

		assistantMsg := ports.Message{Role: "assistant", Content: resp.Content, ToolCalls: resp.ToolCalls}
		messages = append(messages, assistantMsg)
		sess.Append(session.Turn{Role: "assistant", Content: resp.Content, ToolCalls: resp.ToolCalls, Timestamp: a.now()})

		for _, call := range resp.ToolCalls {
			call.SessionID = sess.ID
			result := a.executeTool(ctx, call)
			reply.ToolsUsed = append(reply.ToolsUsed, call.Name)

			toolMsg := ports.Message{Role: "tool", Content: result.Content, ToolCallID: call.ID}
			messages = append(messages, toolMsg)
			sess.Append(session.Turn{Role: "tool", Content: result.Content, ToolCallID: call.ID, Timestamp: a.now()})
		}
	}

	// The model kept calling tools without concluding. Return the last
	// tool output context as a failure rather than looping forever.
	a.logger.Warn("Session %s hit the iteration limit (%d)", sess.ID, a.config.MaxIterations)
	reply.Content = "I wasn't able to complete that request. Could you rephrase or simplify it?"
	sess.Append(session.Turn{Role: "assistant", Content: reply.Content, Timestamp: a.now()})
	return reply, nil
}

// executeTool runs a single tool call. Failures surface as tool result
// content so the model can explain them; only a missing result is
// synthesized here.
func (a *Agent) executeTool(ctx context.Context, call ports.ToolCall) *ports.ToolResult {
	tool, err := a.registry.Get(call.Name)
	if err != nil {
		a.logger.Warn("Model requested unknown tool %q", call.Name)
		return &ports.ToolResult{
			CallID:  call.ID,
			Content: fmt.Sprintf("Error: unknown tool %q", call.Name),
			Error:   err,
		}
	}

	started := a.now()
	result, err := tool.Execute(ctx, call)
	elapsed := time.Since(started)
	switch {
	case err != nil:
		a.logger.Error("Tool %s failed after %s: %v", call.Name, elapsed, err)
		return &ports.ToolResult{
			CallID:  call.ID,
			Content: fmt.Sprintf("Error: %v", err),
			Error:   err,
		}
	case result == nil:
		return &ports.ToolResult{CallID: call.ID, Content: "Error: tool returned no result"}
	default:
		if result.Error != nil {
			a.logger.Warn("Tool %s returned an error result: %v", call.Name, result.Error)
		} else {
			a.logger.Debug("Tool %s completed in %s", call.Name, elapsed)
		}
		return result
	}
}
