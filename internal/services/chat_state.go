package services

import "pinky-backend/internal/models"

// ChatState is one immutable snapshot of a chat session. Transitions never
// mutate a snapshot in place; reduce always returns a fresh value and copies
// History before appending.
type ChatState struct {
	Display models.DisplayState
	History []models.HistoryEntry
}

type chatEvent interface{ isChatEvent() }

type historyLoaded struct{ entries []models.HistoryEntry }

type submitStarted struct{ question string }

type answerReceived struct {
	question string
	answer   models.Answer
}

type answerFailed struct{}

type cleared struct{}

func (historyLoaded) isChatEvent()  {}
func (submitStarted) isChatEvent()  {}
func (answerReceived) isChatEvent() {}
func (answerFailed) isChatEvent()   {}
func (cleared) isChatEvent()        {}

func reduce(s ChatState, ev chatEvent) ChatState {
	switch e := ev.(type) {
	case historyLoaded:
		s.History = append([]models.HistoryEntry(nil), e.entries...)
	case submitStarted:
		s.Display.Input = e.question
		s.Display.Busy = true
	case answerReceived:
		entry := models.HistoryEntry{
			Question: e.question,
			Answer:   e.answer.Text,
			Source:   e.answer.Source,
			Image:    e.answer.Image,
		}
		history := make([]models.HistoryEntry, len(s.History), len(s.History)+1)
		copy(history, s.History)
		s.History = append(history, entry)
		s.Display = models.DisplayState{
			Answer: e.answer.Text,
			Source: e.answer.Source,
			Image:  e.answer.Image,
		}
	case answerFailed:
		s.Display.Answer = models.FailureMessage
		s.Display.Source = models.SourceError
		s.Display.Image = ""
		s.Display.Busy = false
	case cleared:
		s = ChatState{}
	}
	return s
}

// Response renders the snapshot in its API form.
func (s ChatState) Response() models.ChatStateResponse {
	history := s.History
	if history == nil {
		history = []models.HistoryEntry{}
	}
	return models.ChatStateResponse{
		Display:     s.Display,
		SourceLabel: s.Display.Source.Label(),
		History:     history,
	}
}
