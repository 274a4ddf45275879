package services

import (
	"context"
	"log"
	"sync"
	"time"
)

// SessionManager hands out one ChatSession per browser session id and
// evicts sessions that sit idle. History lives in the slot store, so an
// evicted session only loses its transient display state.
type SessionManager struct {
	store      slotStore
	answers    answerer
	historyKey string
	idleTTL    time.Duration
	observe    StateObserver

	mu       sync.Mutex
	sessions map[string]*ChatSession

	stop     chan struct{}
	stopOnce sync.Once
}

func NewSessionManager(store slotStore, answers answerer, historyKey string, idleTTL time.Duration, observe StateObserver) *SessionManager {
	return &SessionManager{
		store:      store,
		answers:    answers,
		historyKey: historyKey,
		idleTTL:    idleTTL,
		observe:    observe,
		sessions:   make(map[string]*ChatSession),
		stop:       make(chan struct{}),
	}
}

// SlotKey is the storage key holding the history of session id.
func (m *SessionManager) SlotKey(id string) string {
	return m.historyKey + ":" + id
}

// Session returns the session for id, loading its history until a read succeeds.
func (m *SessionManager) Session(ctx context.Context, id string) *ChatSession {
	m.mu.Lock()
	s, ok := m.sessions[id]
	if !ok {
		s = NewChatSession(id, m.SlotKey(id), m.store, m.answers, m.observe)
		m.sessions[id] = s
	}
	m.mu.Unlock()

	// A failed read leaves the session unloaded; the next call retries it.
	s.ensureLoaded(ctx)
	return s
}

func (m *SessionManager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// Start runs the idle janitor until Stop is called.
func (m *SessionManager) Start() {
	if m.idleTTL <= 0 {
		return
	}
	go func() {
		ticker := time.NewTicker(m.idleTTL / 2)
		defer ticker.Stop()
		for {
			select {
			case <-m.stop:
				return
			case now := <-ticker.C:
				if n := m.evictIdle(now); n > 0 {
					log.Printf("Evicted %d idle chat sessions", n)
				}
			}
		}
	}()
}

func (m *SessionManager) Stop() {
	m.stopOnce.Do(func() { close(m.stop) })
}

func (m *SessionManager) evictIdle(now time.Time) int {
	cutoff := now.Add(-m.idleTTL)

	m.mu.Lock()
	defer m.mu.Unlock()

	evicted := 0
	for id, s := range m.sessions {
		if s.idleSince(cutoff) {
			delete(m.sessions, id)
			evicted++
		}
	}
	return evicted
}
