package calendar

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	calboterrors "calbot/internal/errors"
)

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func fastRetry() calboterrors.RetryConfig {
	return calboterrors.RetryConfig{
		MaxAttempts:  2,
		BaseDelay:    time.Millisecond,
		MaxDelay:     5 * time.Millisecond,
		JitterFactor: 0,
	}
}

func newTestClient(t *testing.T, handler http.Handler, opts ...Option) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	base := []Option{
		WithBaseURL(server.URL),
		WithEventTypeID(1202446),
		WithLocation(time.UTC),
		WithRetryConfig(fastRetry()),
		withClock(fixedClock(time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC))),
	}
	return NewClient("test-key", append(base, opts...)...)
}

func TestCreateBookingSendsSnappedDuration(t *testing.T) {
	var captured map[string]any
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/bookings", r.URL.Path)
		require.Equal(t, "test-key", r.URL.Query().Get("apiKey"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&captured))

		_, _ = w.Write([]byte(`{
			"id": 42,
			"status": "ACCEPTED",
			"startTime": "2026-09-01T15:00:00Z",
			"endTime": "2026-09-01T15:30:00Z",
			"metadata": {"videoCallUrl": "https://meet.example/42"}
		}`))
	}))

	start := time.Date(2026, 9, 1, 15, 0, 0, 0, time.UTC)
	booking, err := client.CreateBooking(context.Background(), CreateBookingRequest{
		Start:           start,
		DurationMinutes: 32, // snaps to 30
		Name:            "Alice",
		Email:           "alice@example.com",
		Reason:          "Catch-up",
	})

	require.NoError(t, err)
	require.Equal(t, 42, booking.ID)
	require.Equal(t, start, booking.StartTime.UTC())
	require.Equal(t, start.Add(30*time.Minute), booking.EndTime.UTC())
	require.Equal(t, "https://meet.example/42", booking.VideoCallURL)

	require.Equal(t, "2026-09-01T15:00:00Z", captured["start"])
	require.Equal(t, "2026-09-01T15:30:00Z", captured["end"])
	require.Equal(t, float64(1202446), captured["eventTypeId"])
	responses := captured["responses"].(map[string]any)
	require.Equal(t, "alice@example.com", responses["email"])
}

func TestCreateBookingRejectsPastStart(t *testing.T) {
	called := false
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))

	_, err := client.CreateBooking(context.Background(), CreateBookingRequest{
		Start:           time.Date(2026, 8, 29, 10, 0, 0, 0, time.UTC),
		DurationMinutes: 30,
		Email:           "alice@example.com",
	})

	require.Error(t, err)
	require.True(t, calboterrors.IsPermanent(err))
	require.Contains(t, calboterrors.FormatForUser(err), "past")
	require.False(t, called, "no API call should be made for a past booking")
}

// referencesAndBookings serves the two-step listing flow: booking references
// first, then booking details by ID.
func referencesAndBookings(t *testing.T, refs string, bookings map[int]string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Path == "/booking-references":
			_, _ = w.Write([]byte(refs))
		case strings.HasPrefix(r.URL.Path, "/bookings/"):
			var id int
			_, err := fmt.Sscanf(r.URL.Path, "/bookings/%d", &id)
			require.NoError(t, err)
			body, ok := bookings[id]
			require.True(t, ok, "unexpected booking fetch for id %d", id)
			_, _ = w.Write([]byte(body))
		default:
			t.Fatalf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
	})
}

func bookingJSON(id int, status, email, start, end string) string {
	return fmt.Sprintf(`{"booking": {
		"id": %d,
		"status": %q,
		"startTime": %q,
		"endTime": %q,
		"attendees": [{"email": %q, "timeZone": "UTC"}]
	}}`, id, status, start, end, email)
}

func TestListBookingsFiltersAndSortsChronologically(t *testing.T) {
	refs := `{"booking_references": [
		{"id": 1, "bookingId": 11, "deleted": null},
		{"id": 2, "bookingId": 12, "deleted": null},
		{"id": 3, "bookingId": 13, "deleted": null},
		{"id": 4, "bookingId": 14, "deleted": "yes"},
		{"id": 5, "bookingId": 11, "deleted": null}
	]}`
	bookings := map[int]string{
		11: bookingJSON(11, "ACCEPTED", "alice@example.com", "2026-09-02T09:00:00Z", "2026-09-02T09:30:00Z"),
		12: bookingJSON(12, "ACCEPTED", "alice@example.com", "2026-09-01T15:00:00Z", "2026-09-01T15:30:00Z"),
		13: bookingJSON(13, "CANCELLED", "alice@example.com", "2026-09-03T10:00:00Z", "2026-09-03T10:30:00Z"),
	}
	client := newTestClient(t, referencesAndBookings(t, refs, bookings))

	result, err := client.ListBookings(context.Background(), "alice@example.com")
	require.NoError(t, err)
	require.Len(t, result, 2)
	require.Equal(t, 12, result[0].ID)
	require.Equal(t, 11, result[1].ID)
	require.True(t, result[0].StartTime.Before(result[1].StartTime))
}

func TestListBookingsExcludesOtherAttendees(t *testing.T) {
	refs := `{"booking_references": [{"id": 1, "bookingId": 11, "deleted": null}]}`
	bookings := map[int]string{
		11: bookingJSON(11, "ACCEPTED", "bob@example.com", "2026-09-02T09:00:00Z", "2026-09-02T09:30:00Z"),
	}
	client := newTestClient(t, referencesAndBookings(t, refs, bookings))

	result, err := client.ListBookings(context.Background(), "alice@example.com")
	require.NoError(t, err)
	require.Empty(t, result)
}

func TestCancelBookingCancelsAndDeletesReference(t *testing.T) {
	var cancelled, refDeleted atomic.Bool
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Path == "/booking-references" && r.Method == http.MethodGet:
			_, _ = w.Write([]byte(`{"booking_references": [{"id": 7, "bookingId": 11, "deleted": null}]}`))
		case r.URL.Path == "/bookings/11" && r.Method == http.MethodGet:
			_, _ = w.Write([]byte(bookingJSON(11, "ACCEPTED", "alice@example.com", "2026-09-01T15:00:00Z", "2026-09-01T15:30:00Z")))
		case r.URL.Path == "/bookings/11/cancel" && r.Method == http.MethodDelete:
			require.Equal(t, "schedule conflict", r.URL.Query().Get("cancellationReason"))
			cancelled.Store(true)
			_, _ = w.Write([]byte(`{}`))
		case r.URL.Path == "/booking-references/7" && r.Method == http.MethodDelete:
			refDeleted.Store(true)
			_, _ = w.Write([]byte(`{}`))
		default:
			t.Fatalf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
	})
	client := newTestClient(t, handler)

	booking, err := client.CancelBooking(context.Background(),
		"alice@example.com",
		time.Date(2026, 9, 1, 15, 0, 0, 0, time.UTC),
		"schedule conflict")

	require.NoError(t, err)
	require.Equal(t, 11, booking.ID)
	require.True(t, cancelled.Load())
	require.True(t, refDeleted.Load())
}

func TestCancelBookingNotFound(t *testing.T) {
	client := newTestClient(t, referencesAndBookings(t, `{"booking_references": []}`, nil))

	_, err := client.CancelBooking(context.Background(),
		"alice@example.com",
		time.Date(2026, 9, 1, 15, 0, 0, 0, time.UTC),
		"")

	require.Error(t, err)
	require.True(t, calboterrors.IsPermanent(err))
	require.Contains(t, calboterrors.FormatForUser(err), "No booking found")
}

func TestRescheduleBookingKeepsOriginalDuration(t *testing.T) {
	var patched map[string]any
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Path == "/booking-references" && r.Method == http.MethodGet:
			_, _ = w.Write([]byte(`{"booking_references": [{"id": 7, "bookingId": 11, "deleted": null}]}`))
		case r.URL.Path == "/bookings/11" && r.Method == http.MethodGet:
			_, _ = w.Write([]byte(bookingJSON(11, "ACCEPTED", "alice@example.com", "2026-09-01T15:00:00Z", "2026-09-01T15:45:00Z")))
		case r.URL.Path == "/bookings/11" && r.Method == http.MethodPatch:
			require.NoError(t, json.NewDecoder(r.Body).Decode(&patched))
			_, _ = w.Write([]byte(bookingJSON(11, "ACCEPTED", "alice@example.com", "2026-09-02T10:00:00Z", "2026-09-02T10:45:00Z")))
		default:
			t.Fatalf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
	})
	client := newTestClient(t, handler)

	newStart := time.Date(2026, 9, 2, 10, 0, 0, 0, time.UTC)
	booking, err := client.RescheduleBooking(context.Background(), RescheduleRequest{
		Email:        "alice@example.com",
		CurrentStart: time.Date(2026, 9, 1, 15, 0, 0, 0, time.UTC),
		NewStart:     newStart,
	})

	require.NoError(t, err)
	require.Equal(t, newStart, booking.StartTime.UTC())
	require.Equal(t, newStart.Add(45*time.Minute), booking.EndTime.UTC())
	require.Equal(t, "2026-09-02T10:00:00Z", patched["startTime"])
	require.Equal(t, "2026-09-02T10:45:00Z", patched["endTime"])
}

func TestRescheduleBookingRequiresChanges(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("no API call expected")
	}))

	_, err := client.RescheduleBooking(context.Background(), RescheduleRequest{
		Email:        "alice@example.com",
		CurrentStart: time.Date(2026, 9, 1, 15, 0, 0, 0, time.UTC),
	})

	require.Error(t, err)
	require.True(t, calboterrors.IsPermanent(err))
}

func TestRescheduleBookingRejectsPastTarget(t *testing.T) {
	handler := referencesAndBookings(t,
		`{"booking_references": [{"id": 7, "bookingId": 11, "deleted": null}]}`,
		map[int]string{
			11: bookingJSON(11, "ACCEPTED", "alice@example.com", "2026-09-01T15:00:00Z", "2026-09-01T15:30:00Z"),
		})
	client := newTestClient(t, handler)

	_, err := client.RescheduleBooking(context.Background(), RescheduleRequest{
		Email:        "alice@example.com",
		CurrentStart: time.Date(2026, 9, 1, 15, 0, 0, 0, time.UTC),
		NewStart:     time.Date(2026, 8, 1, 9, 0, 0, 0, time.UTC),
	})

	require.Error(t, err)
	require.Contains(t, calboterrors.FormatForUser(err), "past")
}

func TestGetAvailabilityFlattensAndSortsSlots(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/slots", r.URL.Path)
		require.Equal(t, "1202446", r.URL.Query().Get("eventTypeId"))
		_, _ = w.Write([]byte(`{"slots": {
			"2026-09-02": [{"time": "2026-09-02T09:00:00Z"}],
			"2026-09-01": [{"time": "2026-09-01T15:00:00Z"}, {"time": "2026-09-01T10:00:00Z"}]
		}}`))
	}))

	slots, err := client.GetAvailability(context.Background(),
		time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2026, 9, 3, 0, 0, 0, 0, time.UTC))

	require.NoError(t, err)
	require.Len(t, slots, 3)
	require.True(t, slots[0].Start.Before(slots[1].Start))
	require.True(t, slots[1].Start.Before(slots[2].Start))
}

func TestDoRequestRetriesRateLimit(t *testing.T) {
	var calls atomic.Int32
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			_, _ = w.Write([]byte(`{"message": "rate limited"}`))
			return
		}
		_, _ = w.Write([]byte(`{"booking_references": []}`))
	}))

	refs, err := client.bookingReferences(context.Background())
	require.NoError(t, err)
	require.Empty(t, refs)
	require.Equal(t, int32(2), calls.Load())
}

func TestDoRequestSurfacesAPIError(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"message": "Invalid event length"}`))
	}))

	_, err := client.bookingReferences(context.Background())
	require.Error(t, err)

	var apiErr *APIError
	require.True(t, calboterrors.As(err, &apiErr))
	require.Equal(t, http.StatusBadRequest, apiErr.StatusCode)
	require.Equal(t, "Invalid event length", apiErr.Message)
	require.True(t, calboterrors.IsPermanent(err))
}

func TestUnreachableProviderIsTransient(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	server.Close() // no listener anymore

	client := NewClient("test-key",
		WithBaseURL(server.URL),
		WithRetryConfig(fastRetry()),
	)

	_, err := client.bookingReferences(context.Background())
	require.Error(t, err)
	require.Contains(t, calboterrors.FormatForUser(err), "could not be reached")
}
