package session

import (
	"calbot/internal/agent/ports"
	"calbot/internal/token"
)

// BuildHistory converts conversation turns into LLM messages, trimming the
// oldest turns until the history fits within budget tokens. A trimmed history
// never starts with a dangling tool result.
func BuildHistory(turns []Turn, budget int) []ports.Message {
	messages := make([]ports.Message, 0, len(turns))
	for _, turn := range turns {
		messages = append(messages, ports.Message{
			Role:       turn.Role,
			Content:    turn.Content,
			ToolCalls:  turn.ToolCalls,
			ToolCallID: turn.ToolCallID,
		})
	}

	if budget <= 0 {
		return messages
	}

	total := 0
	costs := make([]int, len(messages))
	for i, msg := range messages {
		costs[i] = token.Count(msg.Content) + 4 // per-message overhead
		total += costs[i]
	}

	start := 0
	for start < len(messages)-1 && total > budget {
		total -= costs[start]
		start++
	}

	// Dropping an assistant turn that carried tool calls must also drop the
	// tool results that answered it.
	for start < len(messages)-1 && messages[start].Role == "tool" {
		total -= costs[start]
		start++
	}

	return messages[start:]
}
