package booking

import (
	"context"
	"fmt"
	"strings"

	"calbot/internal/agent/ports"
	"calbot/internal/calendar"
)

type listBookings struct {
	BaseTool
	client *calendar.Client
}

// NewListBookings creates the tool that lists upcoming and past
// bookings for an attendee.
func NewListBookings(client *calendar.Client) ports.ToolExecutor {
	return &listBookings{
		BaseTool: NewBaseTool(
			ports.ToolDefinition{
				Name: "list_bookings",
				Description: `List all active bookings for an attendee, ordered by start time.

Cancelled bookings are excluded.`,
				Parameters: ports.ParameterSchema{
					Type: "object",
					Properties: map[string]ports.Property{
						"email": {
							Type:        "string",
							Description: "Attendee email address to look up bookings for",
						},
					},
					Required: []string{"email"},
				},
			},
			ports.ToolMetadata{
				Name:     "list_bookings",
				Version:  "1.0.0",
				Category: "calendar",
				Tags:     []string{"calendar", "booking", "read"},
			},
		),
		client: client,
	}
}

func (t *listBookings) Execute(ctx context.Context, call ports.ToolCall) (*ports.ToolResult, error) {
	email := stringArg(call.Arguments, "email")
	if email == "" {
		return missingArgs(call, "email"), nil
	}

	bookings, err := t.client.ListBookings(ctx, email)
	if err != nil {
		return upstreamFailure(call, err), nil
	}
	if len(bookings) == 0 {
		return &ports.ToolResult{
			CallID:  call.ID,
			Content: fmt.Sprintf("No bookings found for %s.", email),
		}, nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Found %d booking(s) for %s:\n", len(bookings), email)
	for i, booking := range bookings {
		fmt.Fprintf(&b, "%d. %s", i+1, formatBookingTime(booking.StartTime, t.client.Location()))
		if booking.Title != "" {
			fmt.Fprintf(&b, " - %s", booking.Title)
		}
		duration := booking.EndTime.Sub(booking.StartTime)
		if duration > 0 {
			fmt.Fprintf(&b, " (%d min)", int(duration.Minutes()))
		}
		b.WriteString("\n")
	}
	return &ports.ToolResult{CallID: call.ID, Content: b.String()}, nil
}
