package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"pinky-backend/internal/middleware"
	"pinky-backend/internal/models"
	"pinky-backend/internal/repository"
	"pinky-backend/internal/services"
)

type stubAnswerer struct {
	mu      sync.Mutex
	calls   []string
	answer  models.Answer
	err     error
	started chan struct{}
	release chan struct{}
}

func (a *stubAnswerer) Ask(ctx context.Context, question string) (models.Answer, error) {
	a.mu.Lock()
	a.calls = append(a.calls, question)
	a.mu.Unlock()
	if a.started != nil {
		a.started <- struct{}{}
	}
	if a.release != nil {
		<-a.release
	}
	return a.answer, a.err
}

func newTestHandler(ans *stubAnswerer) (*ChatHandler, *repository.MemorySlotRepo) {
	store := repository.NewMemorySlotRepo()
	mgr := services.NewSessionManager(store, ans, "chat_historial", time.Hour, nil)
	return NewChatHandler(mgr), store
}

func withSession(req *http.Request, id uuid.UUID) *http.Request {
	return req.WithContext(context.WithValue(req.Context(), middleware.SessionIDKey, id))
}

func decodeState(t *testing.T, rr *httptest.ResponseRecorder) models.ChatStateResponse {
	t.Helper()
	var st models.ChatStateResponse
	if err := json.NewDecoder(rr.Body).Decode(&st); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	return st
}

func TestChatHandler_Ask_Success(t *testing.T) {
	ans := &stubAnswerer{answer: models.Answer{Text: "4", Source: models.SourceWolfram}}
	h, store := newTestHandler(ans)
	sid := uuid.New()

	body, _ := json.Marshal(models.AskRequest{Question: "2+2"})
	req := withSession(httptest.NewRequest(http.MethodPost, "/api/v1/chat/ask", bytes.NewReader(body)), sid)
	rr := httptest.NewRecorder()
	h.Ask(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, rr.Code)
	}
	st := decodeState(t, rr)
	if st.Display.Answer != "4" || st.SourceLabel != "📘 WolframAlpha" {
		t.Errorf("unexpected display %+v / %q", st.Display, st.SourceLabel)
	}
	if len(st.History) != 1 {
		t.Errorf("expected 1 history entry, got %d", len(st.History))
	}
	if _, ok, _ := store.Read(context.Background(), "chat_historial:"+sid.String()); !ok {
		t.Error("expected history persisted under the session slot")
	}
}

func TestChatHandler_Ask_BlankIsIgnored(t *testing.T) {
	ans := &stubAnswerer{}
	h, _ := newTestHandler(ans)

	req := withSession(httptest.NewRequest(http.MethodPost, "/api/v1/chat/ask", strings.NewReader(`{"question":"   "}`)), uuid.New())
	rr := httptest.NewRecorder()
	h.Ask(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, rr.Code)
	}
	if len(ans.calls) != 0 {
		t.Fatalf("expected no outbound request, got %v", ans.calls)
	}
	st := decodeState(t, rr)
	if st.Display != (models.DisplayState{}) || len(st.History) != 0 {
		t.Errorf("expected untouched state, got %+v", st)
	}
}

func TestChatHandler_Ask_InvalidBody(t *testing.T) {
	h, _ := newTestHandler(&stubAnswerer{})

	req := withSession(httptest.NewRequest(http.MethodPost, "/api/v1/chat/ask", strings.NewReader(`{oops`)), uuid.New())
	rr := httptest.NewRecorder()
	h.Ask(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected status %d, got %d", http.StatusBadRequest, rr.Code)
	}
}

func TestChatHandler_Ask_ServiceFailure(t *testing.T) {
	h, _ := newTestHandler(&stubAnswerer{err: errors.New("dial tcp: connection refused")})

	req := withSession(httptest.NewRequest(http.MethodPost, "/api/v1/chat/ask", strings.NewReader(`{"question":"2+2"}`)), uuid.New())
	rr := httptest.NewRecorder()
	h.Ask(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("service failures are shown in the widget, expected 200, got %d", rr.Code)
	}
	st := decodeState(t, rr)
	if st.Display.Answer != models.FailureMessage || st.Display.Source != models.SourceError {
		t.Errorf("unexpected display %+v", st.Display)
	}
	if len(st.History) != 0 {
		t.Errorf("expected no history entry, got %d", len(st.History))
	}
}

func TestChatHandler_Ask_ConflictWhileBusy(t *testing.T) {
	ans := &stubAnswerer{
		answer:  models.Answer{Text: "ok"},
		started: make(chan struct{}, 1),
		release: make(chan struct{}),
	}
	h, _ := newTestHandler(ans)
	sid := uuid.New()

	done := make(chan struct{})
	go func() {
		req := withSession(httptest.NewRequest(http.MethodPost, "/api/v1/chat/ask", strings.NewReader(`{"question":"first"}`)), sid)
		h.Ask(httptest.NewRecorder(), req)
		close(done)
	}()
	<-ans.started

	req := withSession(httptest.NewRequest(http.MethodPost, "/api/v1/chat/ask", strings.NewReader(`{"question":"second"}`)), sid)
	rr := httptest.NewRecorder()
	h.Ask(rr, req)

	close(ans.release)
	<-done

	if rr.Code != http.StatusConflict {
		t.Fatalf("expected status %d, got %d", http.StatusConflict, rr.Code)
	}
	var payload models.ErrorResponse
	json.NewDecoder(rr.Body).Decode(&payload)
	if payload.Error.Code != "SUBMIT_IN_FLIGHT" {
		t.Errorf("unexpected error code %q", payload.Error.Code)
	}
}

func TestChatHandler_ClearHistory(t *testing.T) {
	ans := &stubAnswerer{answer: models.Answer{Text: "ok", Source: models.SourceGemini}}
	h, store := newTestHandler(ans)
	sid := uuid.New()

	for _, q := range []string{"a", "b", "c"} {
		req := withSession(httptest.NewRequest(http.MethodPost, "/api/v1/chat/ask", strings.NewReader(`{"question":"`+q+`"}`)), sid)
		h.Ask(httptest.NewRecorder(), req)
	}

	req := withSession(httptest.NewRequest(http.MethodDelete, "/api/v1/chat/history", nil), sid)
	rr := httptest.NewRecorder()
	h.ClearHistory(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, rr.Code)
	}
	st := decodeState(t, rr)
	if len(st.History) != 0 || st.Display != (models.DisplayState{}) {
		t.Errorf("expected reset state, got %+v", st)
	}
	if _, ok, _ := store.Read(context.Background(), "chat_historial:"+sid.String()); ok {
		t.Error("expected session slot deleted")
	}
}

func TestChatHandler_SessionsAreIsolated(t *testing.T) {
	ans := &stubAnswerer{answer: models.Answer{Text: "ok"}}
	h, _ := newTestHandler(ans)

	req := withSession(httptest.NewRequest(http.MethodPost, "/api/v1/chat/ask", strings.NewReader(`{"question":"mine"}`)), uuid.New())
	h.Ask(httptest.NewRecorder(), req)

	req = withSession(httptest.NewRequest(http.MethodGet, "/api/v1/chat/state", nil), uuid.New())
	rr := httptest.NewRecorder()
	h.GetState(rr, req)

	if st := decodeState(t, rr); len(st.History) != 0 {
		t.Fatalf("expected another session to see no history, got %d", len(st.History))
	}
}

func TestChatHandler_Forms(t *testing.T) {
	ans := &stubAnswerer{answer: models.Answer{Text: "4", Source: models.SourceWolfram}}
	h, _ := newTestHandler(ans)
	sid := uuid.New()

	form := url.Values{"question": {"2+2"}}
	req := withSession(httptest.NewRequest(http.MethodPost, "/ask", strings.NewReader(form.Encode())), sid)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rr := httptest.NewRecorder()
	h.SubmitForm(rr, req)

	if rr.Code != http.StatusSeeOther || rr.Header().Get("Location") != "/" {
		t.Fatalf("expected redirect to /, got %d %q", rr.Code, rr.Header().Get("Location"))
	}

	req = withSession(httptest.NewRequest(http.MethodGet, "/", nil), sid)
	rr = httptest.NewRecorder()
	h.Page(rr, req)

	page := rr.Body.String()
	if !strings.Contains(page, "Fuente: 📘 WolframAlpha") || !strings.Contains(page, "❓ 2+2") {
		t.Fatalf("expected answer and history on page, got:\n%s", page)
	}

	req = withSession(httptest.NewRequest(http.MethodPost, "/clear", nil), sid)
	rr = httptest.NewRecorder()
	h.ClearForm(rr, req)
	if rr.Code != http.StatusSeeOther {
		t.Fatalf("expected redirect after clear, got %d", rr.Code)
	}

	req = withSession(httptest.NewRequest(http.MethodGet, "/", nil), sid)
	rr = httptest.NewRecorder()
	h.Page(rr, req)
	if strings.Contains(rr.Body.String(), "Historial de Preguntas") {
		t.Error("expected history section gone after clear")
	}
}
