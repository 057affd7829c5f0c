// Package booking exposes the calendar operations as tools the model
// can call: booking, listing, cancelling, rescheduling, availability
// checks and reminders.
package booking

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"calbot/internal/agent/ports"
	apperrors "calbot/internal/errors"
)

// BaseTool provides default Definition() and Metadata() implementations.
// Tool structs embed BaseTool to avoid repeating the two getters.
type BaseTool struct {
	def  ports.ToolDefinition
	meta ports.ToolMetadata
}

func NewBaseTool(def ports.ToolDefinition, meta ports.ToolMetadata) BaseTool {
	return BaseTool{def: def, meta: meta}
}

func (b *BaseTool) Definition() ports.ToolDefinition { return b.def }

func (b *BaseTool) Metadata() ports.ToolMetadata { return b.meta }

// stringArg returns the named argument as a trimmed string.
func stringArg(args map[string]any, name string) string {
	v, ok := args[name]
	if !ok {
		return ""
	}
	s, _ := v.(string)
	return strings.TrimSpace(s)
}

// intArg returns the named argument as an int. JSON numbers arrive as
// float64; some models send numbers as strings, accept those too.
func intArg(args map[string]any, name string) (int, bool) {
	switch v := args[name].(type) {
	case float64:
		return int(v), true
	case int:
		return v, true
	case string:
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return 0, false
		}
		return n, true
	default:
		return 0, false
	}
}

// parseDateTime combines a "YYYY-MM-DD" date and "HH:MM" clock time
// into a time.Time in the given location.
func parseDateTime(date, clock string, loc *time.Location) (time.Time, error) {
	t, err := time.ParseInLocation("2006-01-02 15:04", date+" "+clock, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date/time %q %q: expected YYYY-MM-DD and HH:MM", date, clock)
	}
	return t, nil
}

// parseDate parses a "YYYY-MM-DD" date at midnight in the given location.
func parseDate(date string, loc *time.Location) (time.Time, error) {
	t, err := time.ParseInLocation("2006-01-02", date, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q: expected YYYY-MM-DD", date)
	}
	return t, nil
}

// missingArgs returns an argument-validation result naming the missing
// parameters so the model can retry with a corrected call.
func missingArgs(call ports.ToolCall, names ...string) *ports.ToolResult {
	err := fmt.Errorf("missing required arguments: %s", strings.Join(names, ", "))
	return &ports.ToolResult{
		CallID:  call.ID,
		Content: "Error: " + err.Error(),
		Error:   err,
	}
}

// invalidArg returns an argument-validation result for a malformed value.
func invalidArg(call ports.ToolCall, err error) *ports.ToolResult {
	return &ports.ToolResult{
		CallID:  call.ID,
		Content: "Error: " + err.Error(),
		Error:   err,
	}
}

// upstreamFailure folds a calendar client error into a tool result the
// model can relay. The Error field keeps the original error so callers
// can still classify it.
func upstreamFailure(call ports.ToolCall, err error) *ports.ToolResult {
	return &ports.ToolResult{
		CallID:  call.ID,
		Content: apperrors.FormatForUser(err),
		Error:   err,
	}
}

// formatBookingTime renders a time for tool output, e.g.
// "Tue, 01 Sep 2026 at 15:00 (CEST)".
func formatBookingTime(t time.Time, loc *time.Location) string {
	return t.In(loc).Format("Mon, 02 Jan 2006 at 15:04 (MST)")
}
