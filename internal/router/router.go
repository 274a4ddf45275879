package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"pinky-backend/internal/handlers"
	"pinky-backend/internal/middleware"
	"pinky-backend/internal/websocket"
)

func New(
	sessionAuth *middleware.SessionAuth,
	askLimiter *middleware.RateLimiter,
	chatHandler *handlers.ChatHandler,
	wsHub *websocket.Hub,
	frontendURL string,
	trustProxy bool,
) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)
	// Forwarded client addresses are only trusted behind a known proxy;
	// otherwise any caller could pick its own rate-limit key.
	if trustProxy {
		r.Use(chimiddleware.RealIP)
	}
	r.Use(middleware.RequestID)
	r.Use(middleware.CORS(frontendURL))

	// Health check
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok"}`))
	})

	// ──── Page & form actions ────
	r.Group(func(r chi.Router) {
		r.Use(sessionAuth.Middleware)
		r.Get("/", chatHandler.Page)
		r.With(askLimiter.Middleware).Post("/ask", chatHandler.SubmitForm)
		r.Post("/clear", chatHandler.ClearForm)
	})

	r.Route("/api/v1", func(r chi.Router) {

		// ──── Chat Routes ────
		r.Route("/chat", func(r chi.Router) {
			r.Use(sessionAuth.Middleware)
			r.Get("/state", chatHandler.GetState)
			r.With(askLimiter.Middleware).Post("/ask", chatHandler.Ask)
			r.Delete("/history", chatHandler.ClearHistory)
		})

		// ──── WebSocket ────
		r.Get("/ws", wsHub.HandleWebSocket)
	})

	return r
}
