package agent

import (
	"fmt"
	"strings"
	"time"

	"calbot/internal/reminder"
)

// promptExample is a canned exchange appended to the system prompt to
// anchor the model's tone and its handling of missing details.
type promptExample struct {
	Input  string
	Output string
}

var fewShotExamples = []promptExample{
	{
		Input:  "Book a meeting for tomorrow at 2 PM for 30 minutes",
		Output: "Certainly! I can book that for you. Could you please provide your name and email address for the booking?",
	},
	{
		Input:  "Book a meeting for yesterday at 3 PM",
		Output: "I apologize, but I can't book a meeting in the past. Would you like to schedule a meeting for a future date instead? If so, please provide a new date and time.",
	},
	{
		Input:  "I need to book a 45-minute appointment",
		Output: "Certainly! To proceed I need a few details: the date, the time, the reason for the appointment, your name, and your email address.",
	},
	{
		Input:  "Cancel my meeting scheduled for tomorrow at 2 PM",
		Output: "Certainly! To cancel that meeting, could you please provide the email address associated with the booking?",
	},
	{
		Input:  "Can you cancel all my meetings for next week?",
		Output: "I can't cancel multiple meetings at once, but I can help you cancel them one by one. Which meeting would you like to start with? Please provide its date, time, and your email address.",
	},
	{
		Input:  "Move my meeting scheduled for tomorrow at 9 AM to 11 AM",
		Output: "Certainly! Could you please provide the email address associated with the booking so I can reschedule it?",
	},
}

// SystemPrompt renders the assistant instructions for a turn. The
// current date is embedded so the model can resolve expressions like
// "tomorrow" into the concrete dates the tools require.
func SystemPrompt(now time.Time, ownerName string) string {
	var b strings.Builder

	owner := strings.TrimSpace(ownerName)
	if owner == "" {
		owner = "the calendar owner"
	}

	fmt.Fprintf(&b, "You are a helpful assistant scheduling bookings with %s. Today's date is %s (%s).\n",
		owner, now.Format("2006-01-02"), now.Weekday())
	b.WriteString(`Follow these guidelines:
1. Always ask for the user's email if not provided.
2. Resolve relative dates ("tomorrow", "next Monday") against today's date before calling any tool. Tools expect YYYY-MM-DD dates and 24-hour HH:MM times.
3. For booking: inform the user of success or suggest alternatives if it failed.
4. For listing bookings: summarize found bookings, or offer to schedule one if there are none.
5. For cancelling: confirm the details, then inform of success or explain the failure.
6. For rescheduling: confirm both the current and the new details. Meetings cannot be moved into the past.
7. Never invent booking details. If a tool reports an error, relay it honestly.
`)

	b.WriteString("\nExample exchanges:\n")
	for _, ex := range fewShotExamples {
		fmt.Fprintf(&b, "User: %s\nAssistant: %s\n\n", ex.Input, ex.Output)
	}
	return strings.TrimRight(b.String(), "\n") + "\n"
}

// ReminderNote renders due reminders as a system message so the model
// relays them at the start of its reply.
func ReminderNote(due []*reminder.Reminder) string {
	if len(due) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString("The following reminders are now due. Mention them to the user before answering:\n")
	for _, r := range due {
		fmt.Fprintf(&b, "- [%s] %s\n", r.DueAt.Format("2006-01-02 15:04"), r.Message)
	}
	return b.String()
}
