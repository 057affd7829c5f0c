package calendar

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	calboterrors "calbot/internal/errors"
	"calbot/internal/logging"
)

const defaultBaseURL = "https://api.cal.com/v1"

// bookingFetchConcurrency bounds the detail-fetch fan-out during listing.
const bookingFetchConcurrency = 4

// Client provides typed access to the Cal.com v1 booking APIs.
type Client struct {
	baseURL     string
	apiKey      string
	eventTypeID int
	language    string
	loc         *time.Location
	httpClient  *http.Client
	retryConfig calboterrors.RetryConfig
	logger      logging.Logger
	now         func() time.Time
}

// Option customizes a Client.
type Option func(*Client)

// WithBaseURL overrides the API base URL. Used by tests and self-hosted deployments.
func WithBaseURL(baseURL string) Option {
	return func(c *Client) { c.baseURL = baseURL }
}

// WithHTTPClient overrides the HTTP client.
func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) { c.httpClient = httpClient }
}

// WithEventTypeID sets the Cal.com event type bookings are created under.
func WithEventTypeID(id int) Option {
	return func(c *Client) { c.eventTypeID = id }
}

// WithLocation sets the time zone user-supplied wall-clock times are read in.
func WithLocation(loc *time.Location) Option {
	return func(c *Client) {
		if loc != nil {
			c.loc = loc
		}
	}
}

// WithLanguage sets the booking language code.
func WithLanguage(language string) Option {
	return func(c *Client) { c.language = language }
}

// WithRetryConfig overrides the transient-failure retry policy.
func WithRetryConfig(config calboterrors.RetryConfig) Option {
	return func(c *Client) { c.retryConfig = config }
}

// withClock fixes the current-time source. Test hook.
func withClock(now func() time.Time) Option {
	return func(c *Client) { c.now = now }
}

// NewClient constructs a Cal.com API client.
func NewClient(apiKey string, opts ...Option) *Client {
	c := &Client{
		baseURL:     defaultBaseURL,
		apiKey:      apiKey,
		language:    "en",
		loc:         time.Local,
		httpClient:  &http.Client{Timeout: 30 * time.Second},
		retryConfig: calboterrors.DefaultRetryConfig(),
		logger:      logging.NewComponentLogger("calendar"),
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Location returns the time zone the client interprets wall-clock input in.
func (c *Client) Location() *time.Location {
	return c.loc
}

// CreateBooking creates a booking. The requested duration is snapped to the
// closest valid event length, and past start times are rejected before any
// API call is made.
func (c *Client) CreateBooking(ctx context.Context, req CreateBookingRequest) (*Booking, error) {
	duration := ClosestDuration(req.DurationMinutes)
	start := req.Start.In(c.loc)
	end := start.Add(time.Duration(duration) * time.Minute)

	if start.Before(c.now()) {
		return nil, calboterrors.NewPermanentError(
			errors.New("start time in the past"),
			"Cannot book a meeting in the past. Please choose a future date and time.")
	}

	payload := map[string]any{
		"start":       start.Format(time.RFC3339),
		"end":         end.Format(time.RFC3339),
		"eventTypeId": c.eventTypeID,
		"responses": map[string]any{
			"name":  req.Name,
			"email": req.Email,
			"notes": req.Reason,
		},
		"timeZone": c.loc.String(),
		"language": c.language,
		"metadata": map[string]any{},
	}

	var raw json.RawMessage
	if err := c.doRequest(ctx, http.MethodPost, "/bookings", nil, payload, &raw); err != nil {
		return nil, err
	}

	booking, err := decodeBooking(raw)
	if err != nil {
		return nil, fmt.Errorf("decode booking response: %w", err)
	}
	if booking.StartTime.IsZero() {
		booking.StartTime = start
	}
	if booking.EndTime.IsZero() {
		booking.EndTime = end
	}
	if len(booking.Attendees) == 0 {
		booking.Attendees = []Attendee{{Name: req.Name, Email: req.Email, TimeZone: c.loc.String()}}
	}

	c.logger.Info("Created booking %d for %s at %s (%d min)", booking.ID, req.Email, start.Format(time.RFC3339), duration)
	return booking, nil
}

// ListBookings returns all active bookings that include email as an attendee,
// sorted chronologically by start time.
func (c *Client) ListBookings(ctx context.Context, email string) ([]Booking, error) {
	refs, err := c.bookingReferences(ctx)
	if err != nil {
		return nil, err
	}

	seen := make(map[int]bool)
	var ids []int
	for _, ref := range refs {
		if ref.Deleted != nil || seen[ref.BookingID] {
			continue
		}
		seen[ref.BookingID] = true
		ids = append(ids, ref.BookingID)
	}

	var mu sync.Mutex
	var bookings []Booking

	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(bookingFetchConcurrency)
	for _, id := range ids {
		group.Go(func() error {
			booking, err := c.GetBooking(groupCtx, id)
			if err != nil {
				return err
			}
			if booking.Status == "CANCELLED" || !hasAttendee(booking, email) {
				return nil
			}
			mu.Lock()
			bookings = append(bookings, *booking)
			mu.Unlock()
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return nil, err
	}

	sort.Slice(bookings, func(i, j int) bool {
		return bookings[i].StartTime.Before(bookings[j].StartTime)
	})
	return bookings, nil
}

// GetBooking fetches a single booking by ID.
func (c *Client) GetBooking(ctx context.Context, id int) (*Booking, error) {
	var envelope struct {
		Booking json.RawMessage `json:"booking"`
	}
	if err := c.doRequest(ctx, http.MethodGet, fmt.Sprintf("/bookings/%d", id), nil, nil, &envelope); err != nil {
		return nil, err
	}
	return decodeBooking(envelope.Booking)
}

// FindBooking locates the booking for email that starts at the given local
// wall-clock time, or returns nil when none matches.
func (c *Client) FindBooking(ctx context.Context, email string, start time.Time) (*Booking, error) {
	bookings, err := c.ListBookings(ctx, email)
	if err != nil {
		return nil, err
	}
	for i := range bookings {
		if c.sameStart(&bookings[i], start) {
			return &bookings[i], nil
		}
	}
	return nil, nil
}

// CancelBooking cancels the booking for email starting at the given local
// time and removes its booking reference.
func (c *Client) CancelBooking(ctx context.Context, email string, start time.Time, reason string) (*Booking, error) {
	booking, err := c.FindBooking(ctx, email, start)
	if err != nil {
		return nil, err
	}
	if booking == nil {
		return nil, calboterrors.NewPermanentError(
			errors.New("booking not found"),
			fmt.Sprintf("No booking found for %s starting at %s.", email, start.Format("2006-01-02 15:04")))
	}

	query := url.Values{}
	if reason != "" {
		query.Set("cancellationReason", reason)
	}
	if err := c.doRequest(ctx, http.MethodDelete, fmt.Sprintf("/bookings/%d/cancel", booking.ID), query, nil, nil); err != nil {
		return nil, err
	}

	if err := c.deleteBookingReferences(ctx, booking.ID); err != nil {
		// The booking is already cancelled; a stale reference is not fatal.
		c.logger.Warn("Booking %d cancelled but reference cleanup failed: %v", booking.ID, err)
	}

	c.logger.Info("Cancelled booking %d for %s", booking.ID, email)
	return booking, nil
}

// RescheduleBooking moves an existing booking to a new start and/or duration.
func (c *Client) RescheduleBooking(ctx context.Context, req RescheduleRequest) (*Booking, error) {
	if req.NewStart.IsZero() && req.NewDuration == 0 {
		return nil, calboterrors.NewPermanentError(
			errors.New("no new values provided"),
			"Nothing to change: provide a new date, time, or duration for the booking.")
	}

	booking, err := c.FindBooking(ctx, req.Email, req.CurrentStart)
	if err != nil {
		return nil, err
	}
	if booking == nil {
		return nil, calboterrors.NewPermanentError(
			errors.New("booking not found"),
			fmt.Sprintf("No booking found for %s starting at %s.", req.Email, req.CurrentStart.Format("2006-01-02 15:04")))
	}

	start := booking.StartTime
	if !req.NewStart.IsZero() {
		start = req.NewStart.In(c.loc)
	}

	duration := booking.EndTime.Sub(booking.StartTime)
	if req.NewDuration > 0 {
		duration = time.Duration(ClosestDuration(int(req.NewDuration/time.Minute))) * time.Minute
	}
	end := start.Add(duration)

	if start.Before(c.now()) {
		return nil, calboterrors.NewPermanentError(
			errors.New("new start time in the past"),
			"Cannot reschedule a meeting into the past. Please choose a future date and time.")
	}

	payload := map[string]any{
		"startTime": start.Format(time.RFC3339),
		"endTime":   end.Format(time.RFC3339),
	}

	var raw json.RawMessage
	if err := c.doRequest(ctx, http.MethodPatch, fmt.Sprintf("/bookings/%d", booking.ID), nil, payload, &raw); err != nil {
		return nil, err
	}

	updated, err := decodeBooking(raw)
	if err != nil || updated.ID == 0 {
		updated = booking
	}
	updated.StartTime = start
	updated.EndTime = end

	c.logger.Info("Rescheduled booking %d to %s (%v)", booking.ID, start.Format(time.RFC3339), duration)
	return updated, nil
}

// GetAvailability returns the open slots for the configured event type within
// the given range, in chronological order.
func (c *Client) GetAvailability(ctx context.Context, from, to time.Time) ([]Slot, error) {
	query := url.Values{}
	query.Set("eventTypeId", strconv.Itoa(c.eventTypeID))
	query.Set("startTime", from.In(c.loc).Format(time.RFC3339))
	query.Set("endTime", to.In(c.loc).Format(time.RFC3339))

	var resp struct {
		Slots map[string][]struct {
			Time string `json:"time"`
		} `json:"slots"`
	}
	if err := c.doRequest(ctx, http.MethodGet, "/slots", query, nil, &resp); err != nil {
		return nil, err
	}

	var slots []Slot
	for _, daySlots := range resp.Slots {
		for _, slot := range daySlots {
			t, err := time.Parse(time.RFC3339, slot.Time)
			if err != nil {
				c.logger.Warn("Skipping unparseable slot time %q: %v", slot.Time, err)
				continue
			}
			slots = append(slots, Slot{Start: t.In(c.loc)})
		}
	}
	sort.Slice(slots, func(i, j int) bool {
		return slots[i].Start.Before(slots[j].Start)
	})
	return slots, nil
}

type bookingReference struct {
	ID        int     `json:"id"`
	BookingID int     `json:"bookingId"`
	Deleted   *string `json:"deleted"`
}

func (c *Client) bookingReferences(ctx context.Context) ([]bookingReference, error) {
	var resp struct {
		BookingReferences []bookingReference `json:"booking_references"`
	}
	if err := c.doRequest(ctx, http.MethodGet, "/booking-references", nil, nil, &resp); err != nil {
		return nil, err
	}
	return resp.BookingReferences, nil
}

func (c *Client) deleteBookingReferences(ctx context.Context, bookingID int) error {
	refs, err := c.bookingReferences(ctx)
	if err != nil {
		return err
	}
	for _, ref := range refs {
		if ref.BookingID != bookingID {
			continue
		}
		if err := c.doRequest(ctx, http.MethodDelete, fmt.Sprintf("/booking-references/%d", ref.ID), nil, nil, nil); err != nil {
			return err
		}
	}
	return nil
}

// sameStart reports whether a booking starts at the requested local time. It
// first compares instants to the minute, then falls back to wall-clock
// comparison in the booking attendee's time zone.
func (c *Client) sameStart(b *Booking, start time.Time) bool {
	if b.StartTime.Truncate(time.Minute).Equal(start.Truncate(time.Minute)) {
		return true
	}
	tz := attendeeTimeZone(b, c.loc)
	const layout = "2006-01-02T15:04"
	return b.StartTime.In(tz).Format(layout) == start.Format(layout)
}

func hasAttendee(b *Booking, email string) bool {
	for _, attendee := range b.Attendees {
		if attendee.Email == email {
			return true
		}
	}
	return false
}

// doRequest performs a single API call with retry on transient failures.
// out may be nil when the response body is irrelevant.
func (c *Client) doRequest(ctx context.Context, method, path string, query url.Values, payload, out any) error {
	_, err := calboterrors.RetryWithResultAndLog(ctx, c.retryConfig, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, c.doRequestOnce(ctx, method, path, query, payload, out)
	}, c.logger)
	return err
}

func (c *Client) doRequestOnce(ctx context.Context, method, path string, query url.Values, payload, out any) error {
	if query == nil {
		query = url.Values{}
	}
	query.Set("apiKey", c.apiKey)

	endpoint := c.baseURL + path + "?" + query.Encode()

	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return err
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	c.logger.Debug("%s %s%s", method, c.baseURL, path)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return calboterrors.NewTransientError(err, "The calendar service could not be reached.")
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return c.mapAPIError(resp.StatusCode, respBody, resp.Header)
	}

	if out == nil || len(respBody) == 0 {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// mapAPIError converts a non-2xx provider response into a classified error
// that always wraps an APIError.
func (c *Client) mapAPIError(statusCode int, body []byte, header http.Header) error {
	message := providerMessage(body)
	apiErr := &APIError{StatusCode: statusCode, Message: message}

	switch {
	case statusCode == http.StatusTooManyRequests:
		retryAfter := 0
		if raw := header.Get("Retry-After"); raw != "" {
			if seconds, err := strconv.Atoi(raw); err == nil {
				retryAfter = seconds
			}
		}
		return &calboterrors.TransientError{
			Err:        apiErr,
			StatusCode: statusCode,
			RetryAfter: retryAfter,
			Message:    "The calendar service is rate limiting requests. Retrying with backoff.",
		}
	case statusCode >= 500:
		return &calboterrors.TransientError{
			Err:        apiErr,
			StatusCode: statusCode,
			Message:    "The calendar service is temporarily unavailable. Retrying.",
		}
	default:
		return &calboterrors.PermanentError{
			Err:        apiErr,
			StatusCode: statusCode,
			Message:    fmt.Sprintf("The calendar service rejected the request: %s", message),
		}
	}
}

// providerMessage extracts the provider's message field from an error body,
// falling back to the raw body.
func providerMessage(body []byte) string {
	var envelope struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if err := json.Unmarshal(body, &envelope); err == nil {
		if envelope.Message != "" {
			return envelope.Message
		}
		if envelope.Error != "" {
			return envelope.Error
		}
	}
	message := string(bytes.TrimSpace(body))
	if message == "" {
		message = "unknown error"
	}
	return message
}

// decodeBooking decodes a provider booking object, tolerating both enveloped
// and bare response shapes.
func decodeBooking(raw json.RawMessage) (*Booking, error) {
	if len(raw) == 0 {
		return &Booking{}, nil
	}

	var envelope struct {
		Booking json.RawMessage `json:"booking"`
	}
	if err := json.Unmarshal(raw, &envelope); err == nil && len(envelope.Booking) > 0 {
		raw = envelope.Booking
	}

	var wire struct {
		ID          int    `json:"id"`
		UID         string `json:"uid"`
		Title       string `json:"title"`
		Description string `json:"description"`
		Status      string `json:"status"`
		StartTime   string `json:"startTime"`
		EndTime     string `json:"endTime"`
		Attendees   []struct {
			Name     string `json:"name"`
			Email    string `json:"email"`
			TimeZone string `json:"timeZone"`
			Locale   string `json:"locale"`
		} `json:"attendees"`
		Metadata struct {
			VideoCallURL string `json:"videoCallUrl"`
		} `json:"metadata"`
	}
	if err := json.Unmarshal(raw, &wire); err != nil {
		return nil, err
	}

	booking := &Booking{
		ID:           wire.ID,
		UID:          wire.UID,
		Title:        wire.Title,
		Description:  wire.Description,
		Status:       wire.Status,
		VideoCallURL: wire.Metadata.VideoCallURL,
	}
	if wire.StartTime != "" {
		t, err := time.Parse(time.RFC3339, wire.StartTime)
		if err != nil {
			return nil, fmt.Errorf("parse startTime: %w", err)
		}
		booking.StartTime = t
	}
	if wire.EndTime != "" {
		t, err := time.Parse(time.RFC3339, wire.EndTime)
		if err != nil {
			return nil, fmt.Errorf("parse endTime: %w", err)
		}
		booking.EndTime = t
	}
	for _, attendee := range wire.Attendees {
		booking.Attendees = append(booking.Attendees, Attendee{
			Name:     attendee.Name,
			Email:    attendee.Email,
			TimeZone: attendee.TimeZone,
			Locale:   attendee.Locale,
		})
	}
	return booking, nil
}
