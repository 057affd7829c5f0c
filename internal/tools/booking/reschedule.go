package booking

import (
	"context"
	"fmt"
	"time"

	"calbot/internal/agent/ports"
	"calbot/internal/calendar"
)

type rescheduleBooking struct {
	BaseTool
	client *calendar.Client
}

// NewRescheduleBooking creates the tool that moves or resizes an
// existing booking.
func NewRescheduleBooking(client *calendar.Client) ports.ToolExecutor {
	return &rescheduleBooking{
		BaseTool: NewBaseTool(
			ports.ToolDefinition{
				Name: "reschedule_booking",
				Description: `Move an existing booking to a new time, a new duration, or both.

The booking is identified by attendee email plus its current date and
time. Provide new_date and new_time together to change the start;
provide new_duration_minutes to change the length. Unspecified values
keep the booking's current values.`,
				Parameters: ports.ParameterSchema{
					Type: "object",
					Properties: map[string]ports.Property{
						"email": {
							Type:        "string",
							Description: "Attendee email address on the booking",
						},
						"date": {
							Type:        "string",
							Description: "Current booking date in YYYY-MM-DD format",
						},
						"time": {
							Type:        "string",
							Description: "Current booking start time in 24-hour HH:MM format",
						},
						"new_date": {
							Type:        "string",
							Description: "New date in YYYY-MM-DD format (requires new_time)",
						},
						"new_time": {
							Type:        "string",
							Description: "New start time in 24-hour HH:MM format (requires new_date)",
						},
						"new_duration_minutes": {
							Type:        "integer",
							Description: "New meeting length in minutes",
						},
					},
					Required: []string{"email", "date", "time"},
				},
			},
			ports.ToolMetadata{
				Name:     "reschedule_booking",
				Version:  "1.0.0",
				Category: "calendar",
				Tags:     []string{"calendar", "booking"},
				Mutating: true,
			},
		),
		client: client,
	}
}

func (t *rescheduleBooking) Execute(ctx context.Context, call ports.ToolCall) (*ports.ToolResult, error) {
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

	currentStart, err := parseDateTime(date, clock, t.client.Location())
	if err != nil {
		return invalidArg(call, err), nil
	}

	req := calendar.RescheduleRequest{
		Email:        email,
		CurrentStart: currentStart,
	}

	newDate := stringArg(call.Arguments, "new_date")
	newTime := stringArg(call.Arguments, "new_time")
	if (newDate == "") != (newTime == "") {
		return invalidArg(call, fmt.Errorf("new_date and new_time must be provided together")), nil
	}
	if newDate != "" {
		req.NewStart, err = parseDateTime(newDate, newTime, t.client.Location())
		if err != nil {
			return invalidArg(call, err), nil
		}
	}
	if minutes, ok := intArg(call.Arguments, "new_duration_minutes"); ok {
		req.NewDuration = time.Duration(minutes) * time.Minute
	}

	booking, err := t.client.RescheduleBooking(ctx, req)
	if err != nil {
		return upstreamFailure(call, err), nil
	}

	content := fmt.Sprintf("Rescheduled the booking for %s.\nNew start: %s\nNew end: %s",
		email,
		formatBookingTime(booking.StartTime, t.client.Location()),
		formatBookingTime(booking.EndTime, t.client.Location()))
	return &ports.ToolResult{CallID: call.ID, Content: content}, nil
}
