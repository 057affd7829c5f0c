package booking

import (
	"context"
	"fmt"
	"strings"

	"calbot/internal/agent/ports"
	"calbot/internal/calendar"
)

type checkAvailability struct {
	BaseTool
	client *calendar.Client
}

// NewCheckAvailability creates the tool that lists open booking slots.
func NewCheckAvailability(client *calendar.Client) ports.ToolExecutor {
	return &checkAvailability{
		BaseTool: NewBaseTool(
			ports.ToolDefinition{
				Name: "check_availability",
				Description: `List open booking slots between two dates.

If end_date is omitted, only the given date is checked.`,
				Parameters: ports.ParameterSchema{
					Type: "object",
					Properties: map[string]ports.Property{
						"date": {
							Type:        "string",
							Description: "First date to check, in YYYY-MM-DD format",
						},
						"end_date": {
							Type:        "string",
							Description: "Optional last date to check, in YYYY-MM-DD format",
						},
					},
					Required: []string{"date"},
				},
			},
			ports.ToolMetadata{
				Name:     "check_availability",
				Version:  "1.0.0",
				Category: "calendar",
				Tags:     []string{"calendar", "availability", "read"},
			},
		),
		client: client,
	}
}

func (t *checkAvailability) Execute(ctx context.Context, call ports.ToolCall) (*ports.ToolResult, error) {
	date := stringArg(call.Arguments, "date")
	if date == "" {
		return missingArgs(call, "date"), nil
	}

	loc := t.client.Location()
	from, err := parseDate(date, loc)
	if err != nil {
		return invalidArg(call, err), nil
	}
	to := from.AddDate(0, 0, 1)
	if endDate := stringArg(call.Arguments, "end_date"); endDate != "" {
		end, err := parseDate(endDate, loc)
		if err != nil {
			return invalidArg(call, err), nil
		}
		if end.Before(from) {
			return invalidArg(call, fmt.Errorf("end_date %s is before date %s", endDate, date)), nil
		}
		to = end.AddDate(0, 0, 1)
	}

	slots, err := t.client.GetAvailability(ctx, from, to)
	if err != nil {
		return upstreamFailure(call, err), nil
	}
	if len(slots) == 0 {
		return &ports.ToolResult{
			CallID:  call.ID,
			Content: fmt.Sprintf("No open slots between %s and %s.", from.Format("2006-01-02"), to.AddDate(0, 0, -1).Format("2006-01-02")),
		}, nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Open slots (%d):\n", len(slots))
	currentDay := ""
	for _, slot := range slots {
		local := slot.Start.In(loc)
		day := local.Format("Mon, 02 Jan 2006")
		if day != currentDay {
			fmt.Fprintf(&b, "%s:\n", day)
			currentDay = day
		}
		fmt.Fprintf(&b, "  %s\n", local.Format("15:04"))
	}
	return &ports.ToolResult{CallID: call.ID, Content: b.String()}, nil
}
