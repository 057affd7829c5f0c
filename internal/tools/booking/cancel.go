package booking

import (
	"context"
	"fmt"

	"calbot/internal/agent/ports"
	"calbot/internal/calendar"
)

type cancelBooking struct {
	BaseTool
	client *calendar.Client
}

// NewCancelBooking creates the tool that cancels an existing booking.
func NewCancelBooking(client *calendar.Client) ports.ToolExecutor {
	return &cancelBooking{
		BaseTool: NewBaseTool(
			ports.ToolDefinition{
				Name: "cancel_booking",
				Description: `Cancel an existing booking identified by attendee email and start time.

The date and time must match the booking being cancelled.`,
				Parameters: ports.ParameterSchema{
					Type: "object",
					Properties: map[string]ports.Property{
						"email": {
							Type:        "string",
							Description: "Attendee email address on the booking",
						},
						"date": {
							Type:        "string",
							Description: "Booking date in YYYY-MM-DD format",
						},
						"time": {
							Type:        "string",
							Description: "Booking start time in 24-hour HH:MM format",
						},
						"reason": {
							Type:        "string",
							Description: "Optional cancellation reason",
						},
					},
					Required: []string{"email", "date", "time"},
				},
			},
			ports.ToolMetadata{
				Name:     "cancel_booking",
				Version:  "1.0.0",
				Category: "calendar",
				Tags:     []string{"calendar", "booking"},
				Mutating: true,
			},
		),
		client: client,
	}
}

func (t *cancelBooking) Execute(ctx context.Context, call ports.ToolCall) (*ports.ToolResult, error) {
	email := stringArg(call.Arguments, "email")
	date := stringArg(call.Arguments, "date")
	clock := stringArg(call.Arguments, "time")

	var missing []string
	if email == "" {
		missing = append(missing, "email")
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

	start, err := parseDateTime(date, clock, t.client.Location())
	if err != nil {
		return invalidArg(call, err), nil
	}

	booking, err := t.client.CancelBooking(ctx, email, start, stringArg(call.Arguments, "reason"))
	if err != nil {
		return upstreamFailure(call, err), nil
	}

	content := fmt.Sprintf("Cancelled the booking for %s on %s.",
		email, formatBookingTime(booking.StartTime, t.client.Location()))
	return &ports.ToolResult{CallID: call.ID, Content: content}, nil
}
