package toolregistry

import (
	"time"

	"calbot/internal/agent/ports"
	"calbot/internal/calendar"
	"calbot/internal/reminder"
	"calbot/internal/tools/booking"
)

// NewCalendarRegistry builds a registry holding the full calendar
// toolset. Read-only tools serve repeat calls from a shared result
// cache; mutating tools always hit the calendar API and purge their
// session's cached reads on success, so a list after a booking never
// shows the pre-booking state.
func NewCalendarRegistry(client *calendar.Client, scheduler *reminder.Scheduler, loc *time.Location, cache CacheConfig) (*Registry, error) {
	r := NewRegistry()
	results := NewResultCache(cache)

	executors := []ports.ToolExecutor{
		results.Wrap(booking.NewBookMeeting(client)),
		results.Wrap(booking.NewCancelBooking(client)),
		results.Wrap(booking.NewRescheduleBooking(client)),
		results.Wrap(booking.NewSetReminder(scheduler, loc)),
		results.Wrap(booking.NewListBookings(client)),
		results.Wrap(booking.NewCheckAvailability(client)),
	}
	for _, tool := range executors {
		if err := r.Register(tool); err != nil {
			return nil, err
		}
	}
	return r, nil
}
