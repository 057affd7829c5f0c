package session

import (
	"sync"
	"time"

	"calbot/internal/agent/ports"
)

// Turn is a single conversation entry: a user message, an assistant reply
// (possibly carrying tool calls), or a tool result.
type Turn struct {
	Role       string           `json:"role"`
	Content    string           `json:"content"`
	ToolCalls  []ports.ToolCall `json:"tool_calls,omitempty"`
	ToolCallID string           `json:"tool_call_id,omitempty"`
	Timestamp  time.Time        `json:"timestamp"`
}

// Session holds the in-memory conversation state for one user session.
// It is safe for concurrent use; BeginTurn serializes full request turns.
type Session struct {
	ID        string
	CreatedAt time.Time

	mu        sync.Mutex
	turns     []Turn
	updatedAt time.Time

	// turnMu serializes whole user turns so a session processes one request
	// at a time while different sessions proceed concurrently.
	turnMu sync.Mutex
}

func newSession(id string) *Session {
	now := time.Now()
	return &Session{
		ID:        id,
		CreatedAt: now,
		updatedAt: now,
	}
}

// BeginTurn blocks until the session is free and returns the matching release
// function.
func (s *Session) BeginTurn() func() {
	s.turnMu.Lock()
	return s.turnMu.Unlock
}

// Append records a turn.
func (s *Session) Append(turn Turn) {
	if turn.Timestamp.IsZero() {
		turn.Timestamp = time.Now()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.turns = append(s.turns, turn)
	s.updatedAt = turn.Timestamp
}

// Turns returns a snapshot of the conversation.
func (s *Session) Turns() []Turn {
	s.mu.Lock()
	defer s.mu.Unlock()
	snapshot := make([]Turn, len(s.turns))
	copy(snapshot, s.turns)
	return snapshot
}

// UpdatedAt returns the time of the most recent activity.
func (s *Session) UpdatedAt() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.updatedAt
}
