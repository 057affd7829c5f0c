package booking

import (
	"context"
	"fmt"
	"time"

	"calbot/internal/agent/ports"
	"calbot/internal/reminder"
)

type setReminder struct {
	BaseTool
	scheduler *reminder.Scheduler
	loc       *time.Location
}

// NewSetReminder creates the tool that schedules a reminder within the
// current conversation. Reminder times are interpreted in loc.
func NewSetReminder(scheduler *reminder.Scheduler, loc *time.Location) ports.ToolExecutor {
	if loc == nil {
		loc = time.Local
	}
	return &setReminder{
		BaseTool: NewBaseTool(
			ports.ToolDefinition{
				Name: "set_reminder",
				Description: `Schedule a reminder message for a future time.

The reminder is delivered in this conversation the next time the user
sends a message after the reminder falls due.`,
				Parameters: ports.ParameterSchema{
					Type: "object",
					Properties: map[string]ports.Property{
						"message": {
							Type:        "string",
							Description: "What to remind the user about",
						},
						"date": {
							Type:        "string",
							Description: "Reminder date in YYYY-MM-DD format",
						},
						"time": {
							Type:        "string",
							Description: "Reminder time in 24-hour HH:MM format",
						},
					},
					Required: []string{"message", "date", "time"},
				},
			},
			ports.ToolMetadata{
				Name:     "set_reminder",
				Version:  "1.0.0",
				Category: "reminder",
				Tags:     []string{"reminder"},
				Mutating: true,
			},
		),
		scheduler: scheduler,
		loc:       loc,
	}
}

func (t *setReminder) Execute(ctx context.Context, call ports.ToolCall) (*ports.ToolResult, error) {
	message := stringArg(call.Arguments, "message")
	date := stringArg(call.Arguments, "date")
	clock := stringArg(call.Arguments, "time")

	var missing []string
	if message == "" {
		missing = append(missing, "message")
	}
	if date == "" {
		missing = append(missing, "date")
	}
	if clock == "" {
		missing = append(missing, "time")
	}
	if len(missing) > 0 {
		return missingArgs(call, missing...), nil
	}

	dueAt, err := parseDateTime(date, clock, t.loc)
	if err != nil {
		return invalidArg(call, err), nil
	}

	r, err := t.scheduler.Set(call.SessionID, message, dueAt)
	if err != nil {
		return invalidArg(call, err), nil
	}

	content := fmt.Sprintf("Reminder set for %s: %s",
		formatBookingTime(r.DueAt, t.loc), r.Message)
	return &ports.ToolResult{CallID: call.ID, Content: content}, nil
}
