package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func setRequiredEnv(t *testing.T) {
	t.Helper()
	t.Setenv("OPENAI_API_KEY", "sk-test")
	t.Setenv("CAL_API_KEY", "cal-test")
	t.Setenv("CAL_EVENT_TYPE_ID", "1202446")
}

func TestLoadAppliesDefaults(t *testing.T) {
	setRequiredEnv(t)
	t.Chdir(t.TempDir())

	cfg, err := Load()
	require.NoError(t, err)

	require.Equal(t, "sk-test", cfg.LLM.APIKey)
	require.Equal(t, "gpt-4o", cfg.LLM.Model)
	require.Equal(t, "https://api.openai.com/v1", cfg.LLM.BaseURL)
	require.Equal(t, "https://api.cal.com/v1", cfg.Calendar.BaseURL)
	require.Equal(t, 1202446, cfg.Calendar.EventTypeID)
	require.Equal(t, ":8080", cfg.Server.ListenAddr)
	require.Equal(t, 30*time.Minute, cfg.Session.TTL)
	require.Equal(t, 6, cfg.Agent.MaxIterations)
}

func TestLoadEnvironmentOverrides(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("CALBOT_MODEL", "gpt-4o-mini")
	t.Setenv("CAL_TIME_ZONE", "America/New_York")
	t.Setenv("CALBOT_LISTEN_ADDR", "127.0.0.1:9999")
	t.Chdir(t.TempDir())

	cfg, err := Load()
	require.NoError(t, err)

	require.Equal(t, "gpt-4o-mini", cfg.LLM.Model)
	require.Equal(t, "America/New_York", cfg.Calendar.TimeZone)
	require.Equal(t, "127.0.0.1:9999", cfg.Server.ListenAddr)
	require.Equal(t, "America/New_York", cfg.Location().String())
}

func TestLoadRequiresAPIKeys(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "")
	t.Setenv("CAL_API_KEY", "cal-test")
	t.Setenv("CAL_EVENT_TYPE_ID", "1202446")
	t.Chdir(t.TempDir())

	_, err := Load()
	require.Error(t, err)
	require.Contains(t, err.Error(), "OPENAI_API_KEY")

	t.Setenv("OPENAI_API_KEY", "sk-test")
	t.Setenv("CAL_API_KEY", "")
	_, err = Load()
	require.Error(t, err)
	require.Contains(t, err.Error(), "CAL_API_KEY")
}

func TestValidateRejectsBadTimeZone(t *testing.T) {
	cfg := &Config{
		LLM:      LLMConfig{APIKey: "sk"},
		Calendar: CalendarConfig{APIKey: "cal", EventTypeID: 1, TimeZone: "Mars/Olympus"},
	}
	require.Error(t, cfg.Validate())

	cfg.Calendar.TimeZone = "UTC"
	require.NoError(t, cfg.Validate())
}

func TestValidateRejectsMissingEventType(t *testing.T) {
	cfg := &Config{
		LLM:      LLMConfig{APIKey: "sk"},
		Calendar: CalendarConfig{APIKey: "cal", TimeZone: "UTC"},
	}
	require.Error(t, cfg.Validate())
}
