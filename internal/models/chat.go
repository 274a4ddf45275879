package models

// Source identifies which backend subsystem produced an answer.
type Source string

const (
	SourceUnset   Source = ""
	SourceWolfram Source = "wolfram"
	SourceGemini  Source = "gemini"
	SourceError   Source = "error"
)

// FailureMessage is shown in place of an answer when the answer service
// cannot be reached or replies with something unreadable.
const FailureMessage = "No se pudo conectar con Pinky."

// ParseSource maps a raw tag from the answer service onto a known Source.
// Unknown tags are treated as unset.
func ParseSource(raw string) Source {
	switch s := Source(raw); s {
	case SourceWolfram, SourceGemini, SourceError:
		return s
	default:
		return SourceUnset
	}
}

// Label is the human readable source line rendered under an answer.
func (s Source) Label() string {
	switch s {
	case SourceWolfram:
		return "📘 WolframAlpha"
	case SourceGemini:
		return "🤖 Gemini"
	case SourceError:
		return "⚠️ Error"
	default:
		return ""
	}
}

// HistoryEntry is one question/answer exchange.
type HistoryEntry struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
	Source   Source `json:"source"`
	Image    string `json:"image,omitempty"`
}

// Answer is a decoded reply from the answer service.
type Answer struct {
	Text   string
	Source Source
	Image  string
}

// DisplayState is the transient part of a chat session. It is never persisted.
type DisplayState struct {
	Input  string `json:"input"`
	Answer string `json:"answer"`
	Source Source `json:"source"`
	Image  string `json:"image,omitempty"`
	Busy   bool   `json:"busy"`
}

// AskRequest is the payload accepted by the chat ask endpoint.
type AskRequest struct {
	Question string `json:"question"`
}

// ChatStateResponse is the snapshot returned by the chat API and pushed over WebSocket.
type ChatStateResponse struct {
	Display     DisplayState   `json:"display"`
	SourceLabel string         `json:"source_label"`
	History     []HistoryEntry `json:"history"`
}
