package auth

import (
	"context"
	"fmt"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/sessions"
)

const (
	sessionName     = "producthub-session"
	sessionKeyID    = "sid"
	FlashMessage    = "message"
	FlashGate       = "gate"
	gateFlashOK     = "authenticated"
	gateFlashErrPfx = "error:"
)

type contextKey struct{}

// SessionManager handles the browser session cookie. The cookie carries only
// an opaque session id and one-shot flash values; the remote API keeps its
// own session in its own cookie.
type SessionManager struct {
	store *sessions.CookieStore
}

// InitSessions creates a new session manager with HTTP-only cookies
func InitSessions(secret string, maxAge int, secure bool, sameSite http.SameSite) *SessionManager {
	store := sessions.NewCookieStore([]byte(secret))

	store.Options = &sessions.Options{
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true, // Prevent JavaScript access
		Secure:   secure,
		SameSite: sameSite,
	}

	return &SessionManager{store: store}
}

func (sm *SessionManager) get(r *http.Request) *sessions.Session {
	// A cookie that fails to decode (rotated secret) yields a fresh session
	session, _ := sm.store.Get(r, sessionName)
	return session
}

// SessionID returns the browser session id, creating and saving one if needed
func (sm *SessionManager) SessionID(w http.ResponseWriter, r *http.Request) (string, error) {
	session := sm.get(r)

	if id, ok := session.Values[sessionKeyID].(string); ok && id != "" {
		return id, nil
	}

	id := uuid.New().String()
	session.Values[sessionKeyID] = id
	if err := session.Save(r, w); err != nil {
		return "", fmt.Errorf("failed to save cookie session: %w", err)
	}
	return id, nil
}

// AddFlash queues a one-shot value under key
func (sm *SessionManager) AddFlash(w http.ResponseWriter, r *http.Request, key, value string) error {
	session := sm.get(r)
	session.AddFlash(value, key)
	if err := session.Save(r, w); err != nil {
		return fmt.Errorf("failed to save flash: %w", err)
	}
	return nil
}

// PopFlash removes and returns the first value queued under key
func (sm *SessionManager) PopFlash(w http.ResponseWriter, r *http.Request, key string) (string, bool, error) {
	session := sm.get(r)
	flashes := session.Flashes(key)
	if len(flashes) == 0 {
		return "", false, nil
	}
	if err := session.Save(r, w); err != nil {
		return "", false, fmt.Errorf("failed to save cookie session: %w", err)
	}
	value, ok := flashes[0].(string)
	return value, ok, nil
}

// SaveGateDecision carries a gate result across the redirect that strips the signal
func (sm *SessionManager) SaveGateDecision(w http.ResponseWriter, r *http.Request, res GateResult) error {
	value := gateFlashOK
	if !res.Authenticated {
		value = gateFlashErrPfx + res.Error
	}
	return sm.AddFlash(w, r, FlashGate, value)
}

// PopGateDecision returns a gate result saved by SaveGateDecision, once
func (sm *SessionManager) PopGateDecision(w http.ResponseWriter, r *http.Request) (GateResult, bool, error) {
	value, ok, err := sm.PopFlash(w, r, FlashGate)
	if err != nil || !ok {
		return GateResult{}, false, err
	}
	if value == gateFlashOK {
		return GateResult{Authenticated: true, Source: SourceSignal}, true, nil
	}
	if len(value) >= len(gateFlashErrPfx) && value[:len(gateFlashErrPfx)] == gateFlashErrPfx {
		return GateResult{Error: value[len(gateFlashErrPfx):], Source: SourceSignal}, true, nil
	}
	return GateResult{}, false, nil
}

// GetSessionIDFromContext retrieves the session id from request context
func GetSessionIDFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(contextKey{}).(string)
	return id, ok
}

// SetSessionIDInContext stores the session id in request context
func SetSessionIDInContext(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, contextKey{}, id)
}
