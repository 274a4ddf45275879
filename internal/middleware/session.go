package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

type contextKey string

const SessionIDKey contextKey = "session_id"

// SessionCookieName carries the signed browser session token.
const SessionCookieName = "pinky_session"

// sessionCookieMaxAge mirrors browser local storage: the history slot has
// no expiry, so the cookie pointing at it lives long.
const sessionCookieMaxAge = 365 * 24 * time.Hour

var errInvalidSession = errors.New("invalid session token")

// SessionAuth binds each browser to its own history slot through a signed
// cookie. It identifies a browser, not a user.
type SessionAuth struct {
	Secret []byte
	Secure bool
}

func NewSessionAuth(secret string, secure bool) *SessionAuth {
	return &SessionAuth{Secret: []byte(secret), Secure: secure}
}

// IssueToken signs a token for session id.
func (a *SessionAuth) IssueToken(sessionID uuid.UUID) (string, error) {
	claims := jwt.MapClaims{
		"sid": sessionID.String(),
		"iat": time.Now().Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(a.Secret)
}

// ParseToken verifies tokenStr and returns the session id it carries.
func (a *SessionAuth) ParseToken(tokenStr string) (uuid.UUID, error) {
	token, err := jwt.Parse(tokenStr, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return a.Secret, nil
	})
	if err != nil {
		return uuid.Nil, err
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return uuid.Nil, errInvalidSession
	}

	sid, ok := claims["sid"].(string)
	if !ok {
		return uuid.Nil, errInvalidSession
	}
	return uuid.Parse(sid)
}

// SessionFromRequest returns the session id carried by r's cookie, if any.
func (a *SessionAuth) SessionFromRequest(r *http.Request) (uuid.UUID, bool) {
	cookie, err := r.Cookie(SessionCookieName)
	if err != nil {
		return uuid.Nil, false
	}
	id, err := a.ParseToken(cookie.Value)
	if err != nil {
		return uuid.Nil, false
	}
	return id, true
}

// Middleware attaches the session id to the request context, minting a
// fresh session (and cookie) when the browser has none or a bad one.
func (a *SessionAuth) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sessionID, ok := a.SessionFromRequest(r)
		if !ok {
			sessionID = uuid.New()
			token, err := a.IssueToken(sessionID)
			if err != nil {
				writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Could not start session", r)
				return
			}
			http.SetCookie(w, &http.Cookie{
				Name:     SessionCookieName,
				Value:    token,
				Path:     "/",
				MaxAge:   int(sessionCookieMaxAge.Seconds()),
				HttpOnly: true,
				Secure:   a.Secure,
				SameSite: http.SameSiteLaxMode,
			})
		}

		ctx := context.WithValue(r.Context(), SessionIDKey, sessionID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// GetSessionID extracts the session id from request context
func GetSessionID(ctx context.Context) uuid.UUID {
	id, _ := ctx.Value(SessionIDKey).(uuid.UUID)
	return id
}

func writeError(w http.ResponseWriter, status int, code, message string, r *http.Request) {
	requestID := r.Header.Get("X-Request-ID")
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"error": map[string]interface{}{
			"code":       code,
			"message":    message,
			"request_id": requestID,
		},
	})
}
