package calendar

import (
	"fmt"
	"time"
)

// Booking is a simplified view of a Cal.com booking.
type Booking struct {
	ID           int        `json:"id"`
	UID          string     `json:"uid,omitempty"`
	Title        string     `json:"title,omitempty"`
	Description  string     `json:"description,omitempty"`
	Status       string     `json:"status"`
	StartTime    time.Time  `json:"start_time"`
	EndTime      time.Time  `json:"end_time"`
	Attendees    []Attendee `json:"attendees,omitempty"`
	VideoCallURL string     `json:"video_call_url,omitempty"`
}

// Attendee identifies a booking participant.
type Attendee struct {
	Name     string `json:"name,omitempty"`
	Email    string `json:"email"`
	TimeZone string `json:"time_zone,omitempty"`
	Locale   string `json:"locale,omitempty"`
}

// CreateBookingRequest defines parameters for creating a booking.
type CreateBookingRequest struct {
	Start           time.Time
	DurationMinutes int
	Name            string
	Email           string
	Reason          string
}

// RescheduleRequest defines parameters for moving an existing booking.
// Zero-valued fields keep the original booking's value.
type RescheduleRequest struct {
	Email        string
	CurrentStart time.Time
	NewStart     time.Time     // zero: keep original start
	NewDuration  time.Duration // zero: keep original duration
}

// Slot is a single open availability window start.
type Slot struct {
	Start time.Time `json:"start"`
}

// APIError is an error response from the calendar provider.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("calendar API error %d: %s", e.StatusCode, e.Message)
}

// attendeeTimeZone returns the first attendee time zone on a booking, falling
// back to fallback when none is set or loadable.
func attendeeTimeZone(b *Booking, fallback *time.Location) *time.Location {
	for _, attendee := range b.Attendees {
		if attendee.TimeZone == "" {
			continue
		}
		if loc, err := time.LoadLocation(attendee.TimeZone); err == nil {
			return loc
		}
	}
	return fallback
}
