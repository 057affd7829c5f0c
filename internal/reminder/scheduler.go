// Package reminder keeps per-session reminders in memory and surfaces
// them once they fall due. The upstream calendar API has no reminder
// endpoint, so reminders live and die with this process.
package reminder

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"calbot/internal/logging"
)

// Reminder is a single scheduled note tied to a conversation.
type Reminder struct {
	ID        string    `json:"id"`
	SessionID string    `json:"session_id"`
	Message   string    `json:"message"`
	DueAt     time.Time `json:"due_at"`
	CreatedAt time.Time `json:"created_at"`
}

// Scheduler stores reminders per session. Due reminders are collected
// by the caller at the start of a turn rather than pushed, so a
// conversation sees its reminders the next time the user speaks.
type Scheduler struct {
	mu        sync.Mutex
	bySession map[string][]*Reminder
	logger    logging.Logger
	now       func() time.Time
}

func NewScheduler(logger logging.Logger) *Scheduler {
	return &Scheduler{
		bySession: make(map[string][]*Reminder),
		logger:    logging.OrNop(logger),
		now:       time.Now,
	}
}

// Set schedules a reminder for the given session. The due time must be
// in the future.
func (s *Scheduler) Set(sessionID, message string, dueAt time.Time) (*Reminder, error) {
	message = strings.TrimSpace(message)
	if message == "" {
		return nil, fmt.Errorf("reminder message is empty")
	}
	if sessionID == "" {
		return nil, fmt.Errorf("reminder requires a session")
	}
	if !dueAt.After(s.now()) {
		return nil, fmt.Errorf("reminder time %s is in the past", dueAt.Format(time.RFC3339))
	}

	r := &Reminder{
		ID:        uuid.New().String(),
		SessionID: sessionID,
		Message:   message,
		DueAt:     dueAt,
		CreatedAt: s.now(),
	}

	s.mu.Lock()
	s.bySession[sessionID] = append(s.bySession[sessionID], r)
	s.mu.Unlock()

	s.logger.Info("Reminder %s set for session %s at %s", r.ID, sessionID, dueAt.Format(time.RFC3339))
	return r, nil
}

// Due removes and returns every reminder for the session whose due time
// has passed, oldest first.
func (s *Scheduler) Due(sessionID string) []*Reminder {
	s.mu.Lock()
	defer s.mu.Unlock()

	pending := s.bySession[sessionID]
	if len(pending) == 0 {
		return nil
	}

	now := s.now()
	var due, remaining []*Reminder
	for _, r := range pending {
		if !r.DueAt.After(now) {
			due = append(due, r)
		} else {
			remaining = append(remaining, r)
		}
	}
	if len(remaining) == 0 {
		delete(s.bySession, sessionID)
	} else {
		s.bySession[sessionID] = remaining
	}

	sort.Slice(due, func(i, j int) bool { return due[i].DueAt.Before(due[j].DueAt) })
	return due
}

// Pending returns a snapshot of the session's outstanding reminders
// sorted by due time.
func (s *Scheduler) Pending(sessionID string) []*Reminder {
	s.mu.Lock()
	defer s.mu.Unlock()

	pending := s.bySession[sessionID]
	out := make([]*Reminder, len(pending))
	copy(out, pending)
	sort.Slice(out, func(i, j int) bool { return out[i].DueAt.Before(out[j].DueAt) })
	return out
}

// Cancel removes a reminder by ID. It reports whether anything was removed.
func (s *Scheduler) Cancel(sessionID, reminderID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	pending := s.bySession[sessionID]
	for i, r := range pending {
		if r.ID == reminderID {
			s.bySession[sessionID] = append(pending[:i], pending[i+1:]...)
			if len(s.bySession[sessionID]) == 0 {
				delete(s.bySession, sessionID)
			}
			return true
		}
	}
	return false
}

// Drop discards every reminder for a session. Called when the session
// itself is deleted or evicted.
func (s *Scheduler) Drop(sessionID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.bySession, sessionID)
}
