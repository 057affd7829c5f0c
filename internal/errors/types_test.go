package errors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestIsTransientClassification(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		transient bool
	}{
		{"explicit transient", NewTransientError(errors.New("boom"), "retrying"), true},
		{"explicit permanent", NewPermanentError(errors.New("boom"), "give up"), false},
		{"rate limited status", &TransientError{Err: errors.New("too many requests"), StatusCode: http.StatusTooManyRequests}, true},
		{"connection refused string", errors.New("dial tcp 127.0.0.1:443: connection refused"), true},
		{"plain error", errors.New("something odd"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.transient, IsTransient(tt.err))
		})
	}
}

func TestIsPermanentSeesWrappedErrors(t *testing.T) {
	inner := NewPermanentError(errors.New("bad request"), "invalid input")
	wrapped := fmt.Errorf("calling upstream: %w", inner)
	require.True(t, IsPermanent(wrapped))
	require.False(t, IsTransient(wrapped))
}

func TestStatusCodeExtraction(t *testing.T) {
	err := &TransientError{Err: errors.New("rate limited"), StatusCode: 429}
	require.Equal(t, 429, StatusCode(fmt.Errorf("wrap: %w", err)))
	require.Equal(t, 0, StatusCode(errors.New("no status")))
}

func TestFormatForUserPrefersAttachedMessage(t *testing.T) {
	err := NewTransientError(errors.New("http 503"), "The calendar service is briefly unavailable.")
	require.Equal(t, "The calendar service is briefly unavailable.", FormatForUser(err))
}

func TestFormatForUserMapsCommonFailures(t *testing.T) {
	require.Contains(t, FormatForUser(errors.New("401 unauthorized")), "API key")
	require.Contains(t, FormatForUser(errors.New("context deadline exceeded")), "timed out")
	require.Equal(t, "", FormatForUser(nil))
}
