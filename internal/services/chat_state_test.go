package services

import (
	"testing"

	"pinky-backend/internal/models"
)

func TestReduce_SubmitLifecycle(t *testing.T) {
	s0 := ChatState{}

	s1 := reduce(s0, submitStarted{question: "2+2"})
	if !s1.Display.Busy || s1.Display.Input != "2+2" {
		t.Fatalf("expected busy state with input, got %+v", s1.Display)
	}

	s2 := reduce(s1, answerReceived{
		question: "2+2",
		answer:   models.Answer{Text: "4", Source: models.SourceWolfram},
	})
	if s2.Display.Busy {
		t.Fatal("expected idle after answer")
	}
	if s2.Display.Input != "" {
		t.Errorf("expected input cleared after success, got %q", s2.Display.Input)
	}
	if s2.Display.Answer != "4" || s2.Display.Source != models.SourceWolfram {
		t.Errorf("unexpected display %+v", s2.Display)
	}
	if len(s2.History) != 1 {
		t.Fatalf("expected 1 history entry, got %d", len(s2.History))
	}

	// Earlier snapshots are untouched.
	if s0.Display.Busy || len(s0.History) != 0 || len(s1.History) != 0 {
		t.Fatal("reduce must not mutate previous snapshots")
	}
}

func TestReduce_FailureKeepsHistoryAndInput(t *testing.T) {
	s := ChatState{History: []models.HistoryEntry{{Question: "a", Answer: "b", Source: models.SourceGemini}}}
	s = reduce(s, submitStarted{question: "∫x dx"})
	s = reduce(s, answerFailed{})

	if s.Display.Busy {
		t.Fatal("expected idle after failure")
	}
	if s.Display.Answer != models.FailureMessage || s.Display.Source != models.SourceError || s.Display.Image != "" {
		t.Errorf("unexpected failure display %+v", s.Display)
	}
	if s.Display.Input != "∫x dx" {
		t.Errorf("expected input kept for retry, got %q", s.Display.Input)
	}
	if len(s.History) != 1 {
		t.Errorf("failure must not touch history, got %d entries", len(s.History))
	}
}

func TestReduce_AppendDoesNotAliasSharedBacking(t *testing.T) {
	base := make([]models.HistoryEntry, 1, 8)
	base[0] = models.HistoryEntry{Question: "q0"}
	s := ChatState{History: base}

	a := reduce(s, answerReceived{question: "qa", answer: models.Answer{Text: "A"}})
	b := reduce(s, answerReceived{question: "qb", answer: models.Answer{Text: "B"}})

	if a.History[1].Question != "qa" || b.History[1].Question != "qb" {
		t.Fatalf("appends from the same snapshot leaked into each other: %v / %v", a.History, b.History)
	}
}

func TestReduce_ClearedResetsEverything(t *testing.T) {
	s := ChatState{
		Display: models.DisplayState{Input: "x", Answer: "y", Source: models.SourceGemini, Image: "i", Busy: true},
		History: []models.HistoryEntry{{Question: "q"}},
	}
	s = reduce(s, cleared{})
	if s.Display != (models.DisplayState{}) || len(s.History) != 0 {
		t.Fatalf("expected zero state, got %+v", s)
	}
}

func TestChatState_ResponseNeverNilHistory(t *testing.T) {
	resp := ChatState{}.Response()
	if resp.History == nil {
		t.Fatal("expected empty, non-nil history in response")
	}

	resp = ChatState{Display: models.DisplayState{Source: models.SourceGemini}}.Response()
	if resp.SourceLabel != "🤖 Gemini" {
		t.Errorf("unexpected label %q", resp.SourceLabel)
	}
}
