// Package config loads settings from an optional config file, a .env
// file and the process environment, in increasing precedence.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// LLMConfig configures the language model provider.
type LLMConfig struct {
	APIKey      string  `mapstructure:"api_key"`
	BaseURL     string  `mapstructure:"base_url"`
	Model       string  `mapstructure:"model"`
	Temperature float64 `mapstructure:"temperature"`
	MaxTokens   int     `mapstructure:"max_tokens"`
}

// CalendarConfig configures the calendar provider.
type CalendarConfig struct {
	APIKey      string `mapstructure:"api_key"`
	BaseURL     string `mapstructure:"base_url"`
	EventTypeID int    `mapstructure:"event_type_id"`
	TimeZone    string `mapstructure:"time_zone"`
	Language    string `mapstructure:"language"`
	OwnerName   string `mapstructure:"owner_name"`
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	ListenAddr      string        `mapstructure:"listen_addr"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// SessionConfig configures conversation state retention.
type SessionConfig struct {
	MaxSessions        int           `mapstructure:"max_sessions"`
	TTL                time.Duration `mapstructure:"ttl"`
	HistoryTokenBudget int           `mapstructure:"history_token_budget"`
}

// AgentConfig configures the conversation loop.
type AgentConfig struct {
	MaxIterations int `mapstructure:"max_iterations"`
}

// Config is the full application configuration.
type Config struct {
	LLM      LLMConfig      `mapstructure:"llm"`
	Calendar CalendarConfig `mapstructure:"calendar"`
	Server   ServerConfig   `mapstructure:"server"`
	Session  SessionConfig  `mapstructure:"session"`
	Agent    AgentConfig    `mapstructure:"agent"`
	LogLevel string         `mapstructure:"log_level"`
}

// Load reads configuration. Lookup order, later wins:
// calbot-config.{yaml,json} in $HOME or the working directory, then a
// local .env file, then real environment variables.
func Load() (*Config, error) {
	// Missing .env is fine; real env vars still apply.
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigName("calbot-config")
	v.AddConfigPath("$HOME")
	v.AddConfigPath(".")

	setDefaults(v)
	bindEnv(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("llm.base_url", "https://api.openai.com/v1")
	v.SetDefault("llm.model", "gpt-4o")
	v.SetDefault("llm.temperature", 0.7)
	v.SetDefault("llm.max_tokens", 1024)

	v.SetDefault("calendar.base_url", "https://api.cal.com/v1")
	v.SetDefault("calendar.time_zone", "Europe/Madrid")
	v.SetDefault("calendar.language", "en")

	v.SetDefault("server.listen_addr", ":8080")
	v.SetDefault("server.shutdown_timeout", 10*time.Second)

	v.SetDefault("session.max_sessions", 1024)
	v.SetDefault("session.ttl", 30*time.Minute)
	v.SetDefault("session.history_token_budget", 6000)

	v.SetDefault("agent.max_iterations", 6)
	v.SetDefault("log_level", "info")
}

// bindEnv maps well-known environment variables onto config keys.
// OPENAI_API_KEY and CAL_API_KEY keep their conventional names.
func bindEnv(v *viper.Viper) {
	_ = v.BindEnv("llm.api_key", "OPENAI_API_KEY")
	_ = v.BindEnv("llm.base_url", "OPENAI_BASE_URL")
	_ = v.BindEnv("llm.model", "CALBOT_MODEL")
	_ = v.BindEnv("calendar.api_key", "CAL_API_KEY")
	_ = v.BindEnv("calendar.base_url", "CAL_BASE_URL")
	_ = v.BindEnv("calendar.event_type_id", "CAL_EVENT_TYPE_ID")
	_ = v.BindEnv("calendar.time_zone", "CAL_TIME_ZONE")
	_ = v.BindEnv("calendar.owner_name", "CAL_OWNER_NAME")
	_ = v.BindEnv("server.listen_addr", "CALBOT_LISTEN_ADDR")
	_ = v.BindEnv("log_level", "CALBOT_LOG_LEVEL")
}

// Validate checks the settings that have no usable default.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.LLM.APIKey) == "" {
		return fmt.Errorf("OPENAI_API_KEY is not set")
	}
	if strings.TrimSpace(c.Calendar.APIKey) == "" {
		return fmt.Errorf("CAL_API_KEY is not set")
	}
	if c.Calendar.EventTypeID <= 0 {
		return fmt.Errorf("CAL_EVENT_TYPE_ID must be a positive event type id")
	}
	if _, err := time.LoadLocation(c.Calendar.TimeZone); err != nil {
		return fmt.Errorf("invalid calendar.time_zone %q: %w", c.Calendar.TimeZone, err)
	}
	return nil
}

// Location returns the configured calendar time zone.
// Validate guarantees it loads.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Calendar.TimeZone)
	if err != nil {
		return time.UTC
	}
	return loc
}
