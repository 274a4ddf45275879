package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"pinky-backend/internal/models"
)

// ErrSubmitInFlight is returned when a session already has a question out.
// Overlapping submissions are rejected, never queued.
var ErrSubmitInFlight = errors.New("a question is already being answered")

type slotStore interface {
	Read(ctx context.Context, key string) (string, bool, error)
	Write(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
}

type answerer interface {
	Ask(ctx context.Context, question string) (models.Answer, error)
}

// StateObserver receives session snapshots. It is never called with the
// session lock held; each call carries the latest committed state.
type StateObserver func(sessionID string, state ChatState)

// ChatSession drives one browser session: it loads and persists the history
// slot and runs the idle → busy → idle cycle of each question.
type ChatSession struct {
	id      string
	key     string
	store   slotStore
	answers answerer
	observe StateObserver

	loadMu   sync.Mutex // serializes slot loads
	notifyMu sync.Mutex // serializes observer calls

	mu         sync.Mutex
	state      ChatState
	loaded     bool   // the slot has been read successfully (or deleted)
	generation uint64 // bumped by ClearHistory; stale answers are dropped
	lastSeen   time.Time
}

func NewChatSession(id, key string, store slotStore, answers answerer, observe StateObserver) *ChatSession {
	return &ChatSession{
		id:       id,
		key:      key,
		store:    store,
		answers:  answers,
		observe:  observe,
		lastSeen: time.Now(),
	}
}

func (s *ChatSession) ID() string { return s.id }

// State returns the current snapshot.
func (s *ChatSession) State() ChatState {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastSeen = time.Now()
	return s.state
}

// Loaded reports whether the stored history has been read into the session.
func (s *ChatSession) Loaded() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loaded
}

// LoadHistory replaces the in-memory history with the stored slot. A missing
// or malformed slot yields an empty history. A failing read leaves the
// session unloaded and returns the error, so nothing is saved over a slot
// that was never seen.
func (s *ChatSession) LoadHistory(ctx context.Context) error {
	raw, ok, err := s.store.Read(ctx, s.key)
	if err != nil {
		log.Printf("Session %s: history read failed: %v", s.id, err)
		return fmt.Errorf("failed to read history slot: %w", err)
	}

	var entries []models.HistoryEntry
	if ok {
		if err := json.Unmarshal([]byte(raw), &entries); err != nil {
			log.Printf("Session %s: stored history is malformed, starting empty: %v", s.id, err)
			entries = nil
		}
	}

	s.mu.Lock()
	s.loaded = true
	s.commit(reduce(s.state, historyLoaded{entries: entries}))
	s.mu.Unlock()

	s.notify()
	return nil
}

// ensureLoaded reads the slot unless a previous read already succeeded.
// The read is detached from ctx so a closed browser tab cannot abort it.
func (s *ChatSession) ensureLoaded(ctx context.Context) error {
	s.loadMu.Lock()
	defer s.loadMu.Unlock()

	if s.Loaded() {
		return nil
	}
	return s.LoadHistory(context.WithoutCancel(ctx))
}

// Submit sends question to the answer service. Blank input is ignored.
// Failures of the answer service are reported through the returned state,
// not as an error; the only error is ErrSubmitInFlight. While the stored
// history cannot be read, no question is sent and the failure is shown.
func (s *ChatSession) Submit(ctx context.Context, question string) (ChatState, error) {
	if strings.TrimSpace(question) == "" {
		return s.State(), nil
	}

	loadErr := s.ensureLoaded(ctx)

	s.mu.Lock()
	s.lastSeen = time.Now()
	if s.state.Display.Busy {
		st := s.state
		s.mu.Unlock()
		return st, ErrSubmitInFlight
	}
	if loadErr != nil {
		s.commit(reduce(reduce(s.state, submitStarted{question: question}), answerFailed{}))
		st := s.state
		s.mu.Unlock()
		s.notify()
		return st, nil
	}
	gen := s.generation
	s.commit(reduce(s.state, submitStarted{question: question}))
	s.mu.Unlock()
	s.notify()

	answer, err := s.answers.Ask(ctx, question)

	st := s.finish(ctx, gen, question, answer, err)
	s.notify()
	return st, nil
}

func (s *ChatSession) finish(ctx context.Context, gen uint64, question string, answer models.Answer, err error) ChatState {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastSeen = time.Now()

	if gen != s.generation {
		log.Printf("Session %s: discarding answer for a cleared conversation", s.id)
		return s.state
	}

	if err != nil {
		log.Printf("Session %s: answer request failed: %v", s.id, err)
		s.commit(reduce(s.state, answerFailed{}))
		return s.state
	}

	next := reduce(s.state, answerReceived{question: question, answer: answer})
	if err := s.persist(ctx, next.History); err != nil {
		log.Printf("Session %s: failed to persist history: %v", s.id, err)
	}
	s.commit(next)
	return s.state
}

// ClearHistory deletes the stored slot and resets the session. It always
// succeeds; an answer still in flight is dropped when it arrives.
func (s *ChatSession) ClearHistory(ctx context.Context) ChatState {
	s.mu.Lock()
	s.lastSeen = time.Now()

	if err := s.store.Delete(ctx, s.key); err != nil {
		log.Printf("Session %s: failed to delete history slot: %v", s.id, err)
	} else {
		s.loaded = true
	}
	s.generation++
	s.commit(reduce(s.state, cleared{}))
	st := s.state
	s.mu.Unlock()

	s.notify()
	return st
}

func (s *ChatSession) persist(ctx context.Context, history []models.HistoryEntry) error {
	data, err := json.Marshal(history)
	if err != nil {
		return err
	}
	return s.store.Write(ctx, s.key, string(data))
}

// idleSince reports whether the session is idle and untouched since cutoff.
func (s *ChatSession) idleSince(cutoff time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return !s.state.Display.Busy && s.lastSeen.Before(cutoff)
}

// commit must be called with s.mu held.
func (s *ChatSession) commit(next ChatState) {
	s.state = next
}

// notify hands the latest snapshot to the observer. Call it after s.mu is
// released; a slow observer then only delays later notifications.
func (s *ChatSession) notify() {
	if s.observe == nil {
		return
	}
	s.notifyMu.Lock()
	defer s.notifyMu.Unlock()

	s.mu.Lock()
	st := s.state
	s.mu.Unlock()

	s.observe(s.id, st)
}
