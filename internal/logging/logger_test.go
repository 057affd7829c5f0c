package logging

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestComponentLoggerRespectsLevel(t *testing.T) {
	var buf bytes.Buffer
	SetOutput(&buf)
	SetLevel(WARN)
	t.Cleanup(func() {
		SetOutput(nopWriter{})
		SetLevel(INFO)
	})

	logger := NewComponentLogger("test")
	logger.Debug("dropped %d", 1)
	logger.Info("dropped too")
	logger.Warn("kept %s", "warn")
	logger.Error("kept error")

	out := buf.String()
	require.NotContains(t, out, "dropped")
	require.Contains(t, out, "kept warn")
	require.Contains(t, out, "kept error")
	require.Contains(t, out, "[test]")
}

func TestSanitizeLogLineHidesSecrets(t *testing.T) {
	line := "POST https://api.cal.com/v1/bookings?apiKey=cal_live_abc123 Authorization: Bearer sk-secret"
	sanitized := sanitizeLogLine(line)
	require.NotContains(t, sanitized, "cal_live_abc123")
	require.NotContains(t, sanitized, "sk-secret")
	require.Contains(t, sanitized, "apiKey=(hidden)")
	require.Contains(t, sanitized, "Bearer (hidden)")
}

func TestNopLoggerIsSilent(t *testing.T) {
	require.NotPanics(t, func() {
		Nop().Info("ignored %d", 42)
		OrNop(nil).Error("ignored")
	})
}

type nopWriter struct{}

func (nopWriter) Write(p []byte) (int, error) { return len(p), nil }
