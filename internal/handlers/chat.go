package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"pinky-backend/internal/middleware"
	"pinky-backend/internal/models"
	"pinky-backend/internal/services"
	"pinky-backend/internal/web"
)

type sessionProvider interface {
	Session(ctx context.Context, id string) *services.ChatSession
}

type ChatHandler struct {
	sessions sessionProvider
}

func NewChatHandler(sessions sessionProvider) *ChatHandler {
	return &ChatHandler{sessions: sessions}
}

func (h *ChatHandler) session(r *http.Request) *services.ChatSession {
	return h.sessions.Session(r.Context(), middleware.GetSessionID(r.Context()).String())
}

// Page renders the chat widget for the caller's session.
func (h *ChatHandler) Page(w http.ResponseWriter, r *http.Request) {
	state := h.session(r).State()

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := web.RenderPage(w, state.Response()); err != nil {
		log.Printf("Page render failed: %v", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
	}
}

// SubmitForm handles the page's question form and redirects back to the page.
func (h *ChatHandler) SubmitForm(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "Bad Request", http.StatusBadRequest)
		return
	}

	// The exchange finishes and is persisted even if the browser goes away.
	ctx := context.WithoutCancel(r.Context())
	if _, err := h.session(r).Submit(ctx, r.PostFormValue("question")); err != nil && !errors.Is(err, services.ErrSubmitInFlight) {
		log.Printf("Submit failed: %v", err)
	}

	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// ClearForm handles the page's clear-history button.
func (h *ChatHandler) ClearForm(w http.ResponseWriter, r *http.Request) {
	h.session(r).ClearHistory(r.Context())
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (h *ChatHandler) GetState(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.session(r).State().Response())
}

func (h *ChatHandler) Ask(w http.ResponseWriter, r *http.Request) {
	var req models.AskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid request body", r))
		return
	}

	state, err := h.session(r).Submit(context.WithoutCancel(r.Context()), req.Question)
	if errors.Is(err, services.ErrSubmitInFlight) {
		writeJSON(w, http.StatusConflict, errorResp("SUBMIT_IN_FLIGHT", "A question is already being answered", r))
		return
	}
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "An unexpected error occurred", r))
		return
	}

	writeJSON(w, http.StatusOK, state.Response())
}

func (h *ChatHandler) ClearHistory(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.session(r).ClearHistory(r.Context()).Response())
}
