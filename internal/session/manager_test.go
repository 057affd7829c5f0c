package session

import (
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestGetOrCreateGeneratesID(t *testing.T) {
	manager := NewManager(DefaultManagerConfig())

	created, isNew := manager.GetOrCreate("")
	require.True(t, isNew)
	require.NotEmpty(t, created.ID)

	fetched, isNew := manager.GetOrCreate(created.ID)
	require.False(t, isNew)
	require.Same(t, created, fetched)
}

func TestGetOrCreateRecreatesUnknownID(t *testing.T) {
	manager := NewManager(DefaultManagerConfig())

	s, isNew := manager.GetOrCreate("client-supplied-id")
	require.True(t, isNew)
	require.Equal(t, "client-supplied-id", s.ID)
}

func TestGetUnknownSessionFails(t *testing.T) {
	manager := NewManager(DefaultManagerConfig())
	_, err := manager.Get("nope")
	require.Error(t, err)
}

func TestDeleteRemovesSession(t *testing.T) {
	manager := NewManager(DefaultManagerConfig())
	s, _ := manager.GetOrCreate("")
	manager.Delete(s.ID)
	_, err := manager.Get(s.ID)
	require.Error(t, err)
}

func TestInactivityEviction(t *testing.T) {
	manager := NewManager(ManagerConfig{MaxSessions: 8, TTL: 20 * time.Millisecond})
	s, _ := manager.GetOrCreate("")

	require.Eventually(t, func() bool {
		_, err := manager.Get(s.ID)
		return err != nil
	}, time.Second, 10*time.Millisecond)
}

func TestActiveSessionOutlivesTTL(t *testing.T) {
	manager := NewManager(ManagerConfig{MaxSessions: 8, TTL: 150 * time.Millisecond})
	s, _ := manager.GetOrCreate("")

	// Touch the session on a cadence well inside the TTL for twice the
	// TTL's length. Every access resets the inactivity deadline, so the
	// session must survive the whole stretch.
	deadline := time.Now().Add(300 * time.Millisecond)
	for time.Now().Before(deadline) {
		_, err := manager.Get(s.ID)
		require.NoError(t, err)
		time.Sleep(30 * time.Millisecond)
	}

	fetched, isNew := manager.GetOrCreate(s.ID)
	require.False(t, isNew)
	require.Same(t, s, fetched)
}

func TestMaxSessionsEvictsLRU(t *testing.T) {
	manager := NewManager(ManagerConfig{MaxSessions: 2, TTL: time.Minute})
	first, _ := manager.GetOrCreate("")
	manager.GetOrCreate("")
	manager.GetOrCreate("")

	require.Equal(t, 2, manager.Len())
	_, err := manager.Get(first.ID)
	require.Error(t, err)
}

func TestSessionAppendAndSnapshot(t *testing.T) {
	s := newSession("s1")
	s.Append(Turn{Role: "user", Content: "hello"})
	s.Append(Turn{Role: "assistant", Content: "hi"})

	turns := s.Turns()
	require.Len(t, turns, 2)
	require.Equal(t, "user", turns[0].Role)
	require.False(t, turns[0].Timestamp.IsZero())

	// Mutating the snapshot must not affect the session.
	turns[0].Content = "changed"
	require.Equal(t, "hello", s.Turns()[0].Content)
}

func TestBeginTurnSerializesTurns(t *testing.T) {
	s := newSession("s1")

	var mu sync.Mutex
	var order []int

	release := s.BeginTurn()
	done := make(chan struct{})
	go func() {
		defer close(done)
		release := s.BeginTurn()
		defer release()
		mu.Lock()
		order = append(order, 2)
		mu.Unlock()
	}()

	mu.Lock()
	order = append(order, 1)
	mu.Unlock()
	release()
	<-done

	require.Equal(t, []int{1, 2}, order)
}

func TestBuildHistoryConvertsRoles(t *testing.T) {
	turns := []Turn{
		{Role: "user", Content: "book it"},
		{Role: "assistant", Content: "done", ToolCallID: ""},
	}
	messages := BuildHistory(turns, 0)
	require.Len(t, messages, 2)
	require.Equal(t, "user", messages[0].Role)
	require.Equal(t, "book it", messages[0].Content)
}

func TestBuildHistoryTrimsOldestFirst(t *testing.T) {
	long := strings.Repeat("meeting notes and agenda items ", 40)
	turns := []Turn{
		{Role: "user", Content: long},
		{Role: "assistant", Content: long},
		{Role: "user", Content: "latest question"},
	}

	messages := BuildHistory(turns, 60)
	require.NotEmpty(t, messages)
	require.Equal(t, "latest question", messages[len(messages)-1].Content)
	require.Less(t, len(messages), 3)
}

func TestBuildHistoryNeverStartsWithToolResult(t *testing.T) {
	long := strings.Repeat("word ", 200)
	turns := []Turn{
		{Role: "user", Content: long},
		{Role: "assistant", Content: "calling tool"},
		{Role: "tool", Content: long, ToolCallID: "call_1"},
		{Role: "assistant", Content: "result summary"},
		{Role: "user", Content: "thanks"},
	}

	messages := BuildHistory(turns, 80)
	require.NotEmpty(t, messages)
	require.NotEqual(t, "tool", messages[0].Role)
}

func TestManagerOnEvictHookRunsOnDelete(t *testing.T) {
	var evicted []string
	m := NewManager(ManagerConfig{
		MaxSessions: 4,
		TTL:         time.Minute,
		OnEvict:     func(id string) { evicted = append(evicted, id) },
	})

	sess, created := m.GetOrCreate("s1")
	require.True(t, created)
	m.Delete(sess.ID)

	require.Equal(t, []string{"s1"}, evicted)
}
