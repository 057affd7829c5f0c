package session

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/golang-lru/v2/expirable"

	"calbot/internal/logging"
)

const (
	defaultMaxSessions = 1024
	defaultTTL         = 30 * time.Minute
)

// ManagerConfig configures session lifecycle.
type ManagerConfig struct {
	// MaxSessions bounds resident sessions; the least recently used session
	// is evicted when the bound is exceeded.
	MaxSessions int
	// TTL is the inactivity timeout after which a session is evicted.
	TTL time.Duration
	// OnEvict, when set, runs for every session removed by TTL expiry,
	// LRU pressure or Delete. Used to release per-session state held
	// elsewhere, like scheduled reminders.
	OnEvict func(id string)
}

// DefaultManagerConfig returns sensible defaults.
func DefaultManagerConfig() ManagerConfig {
	return ManagerConfig{
		MaxSessions: defaultMaxSessions,
		TTL:         defaultTTL,
	}
}

// Manager owns the session map: created on first message, evicted after the
// inactivity timeout or under memory pressure. State does not survive process
// restarts.
type Manager struct {
	sessions *expirable.LRU[string, *Session]
	logger   logging.Logger
}

// NewManager creates a session manager.
func NewManager(config ManagerConfig) *Manager {
	if config.MaxSessions <= 0 {
		config.MaxSessions = defaultMaxSessions
	}
	if config.TTL <= 0 {
		config.TTL = defaultTTL
	}

	logger := logging.NewComponentLogger("session")
	onEvict := func(id string, _ *Session) {
		logger.Debug("Evicted session %s", id)
		if config.OnEvict != nil {
			config.OnEvict(id)
		}
	}

	return &Manager{
		sessions: expirable.NewLRU[string, *Session](config.MaxSessions, onEvict, config.TTL),
		logger:   logger,
	}
}

// GetOrCreate returns the session with the given ID, creating it when the ID
// is empty or unknown. The returned bool reports whether a session was created.
func (m *Manager) GetOrCreate(id string) (*Session, bool) {
	if id != "" {
		if existing, ok := m.sessions.Get(id); ok {
			m.touch(id, existing)
			return existing, false
		}
	}
	if id == "" {
		id = uuid.NewString()
	}
	created := newSession(id)
	m.sessions.Add(id, created)
	m.logger.Debug("Created session %s", id)
	return created, true
}

// Get returns an existing session.
func (m *Manager) Get(id string) (*Session, error) {
	if existing, ok := m.sessions.Get(id); ok {
		m.touch(id, existing)
		return existing, nil
	}
	return nil, fmt.Errorf("session not found: %s", id)
}

// touch resets the inactivity deadline. The TTL counts from the last
// access, not from creation, so a session in active use is never
// expired mid-conversation. Re-adding an existing key updates the
// entry's expiry in place without firing the eviction callback.
func (m *Manager) touch(id string, s *Session) {
	m.sessions.Add(id, s)
}

// Delete removes a session.
func (m *Manager) Delete(id string) {
	m.sessions.Remove(id)
}

// Len returns the number of resident sessions.
func (m *Manager) Len() int {
	return m.sessions.Len()
}
