package booking

import (
	"context"
	"fmt"
	"strings"

	"calbot/internal/agent/ports"
	"calbot/internal/calendar"
)

type bookMeeting struct {
	BaseTool
	client *calendar.Client
}

// NewBookMeeting creates the tool that books a new meeting.
func NewBookMeeting(client *calendar.Client) ports.ToolExecutor {
	return &bookMeeting{
		BaseTool: NewBaseTool(
			ports.ToolDefinition{
				Name: "book_meeting",
				Description: `Book a new meeting in the calendar.

Dates and times must already be resolved to concrete values: relative
expressions like "tomorrow" or "next Tuesday" are not understood here.
Durations are snapped to the nearest offered event length.`,
				Parameters: ports.ParameterSchema{
					Type: "object",
					Properties: map[string]ports.Property{
						"date": {
							Type:        "string",
							Description: "Meeting date in YYYY-MM-DD format",
						},
						"time": {
							Type:        "string",
							Description: "Meeting start time in 24-hour HH:MM format",
						},
						"duration_minutes": {
							Type:        "integer",
							Description: "Meeting length in minutes",
						},
						"name": {
							Type:        "string",
							Description: "Attendee full name",
						},
						"email": {
							Type:        "string",
							Description: "Attendee email address",
						},
						"reason": {
							Type:        "string",
							Description: "Optional meeting subject or reason",
						},
					},
					Required: []string{"date", "time", "duration_minutes", "name", "email"},
				},
			},
			ports.ToolMetadata{
				Name:     "book_meeting",
				Version:  "1.0.0",
				Category: "calendar",
				Tags:     []string{"calendar", "booking"},
				Mutating: true,
			},
		),
		client: client,
	}
}

func (t *bookMeeting) Execute(ctx context.Context, call ports.ToolCall) (*ports.ToolResult, error) {
	date := stringArg(call.Arguments, "date")
	clock := stringArg(call.Arguments, "time")
	name := stringArg(call.Arguments, "name")
	email := stringArg(call.Arguments, "email")
	duration, hasDuration := intArg(call.Arguments, "duration_minutes")

	var missing []string
	if date == "" {
		missing = append(missing, "date")
	}
	if clock == "" {
		missing = append(missing, "time")
	}
	if !hasDuration {
		missing = append(missing, "duration_minutes")
	}
	if name == "" {
		missing = append(missing, "name")
	}
	if email == "" {
		missing = append(missing, "email")
	}
	if len(missing) > 0 {
		return missingArgs(call, missing...), nil
	}

	start, err := parseDateTime(date, clock, t.client.Location())
	if err != nil {
		return invalidArg(call, err), nil
	}

	booking, err := t.client.CreateBooking(ctx, calendar.CreateBookingRequest{
		Start:           start,
		DurationMinutes: duration,
		Name:            name,
		Email:           email,
		Reason:          stringArg(call.Arguments, "reason"),
	})
	if err != nil {
		return upstreamFailure(call, err), nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Meeting booked for %s (%s). Booking ID: %d\n", name, email, booking.ID)
	fmt.Fprintf(&b, "Start: %s\n", formatBookingTime(booking.StartTime, t.client.Location()))
	fmt.Fprintf(&b, "End: %s\n", formatBookingTime(booking.EndTime, t.client.Location()))
	if booking.Title != "" {
		fmt.Fprintf(&b, "Title: %s\n", booking.Title)
	}
	if booking.VideoCallURL != "" {
		fmt.Fprintf(&b, "Video call: %s\n", booking.VideoCallURL)
	}
	return &ports.ToolResult{CallID: call.ID, Content: b.String()}, nil
}
