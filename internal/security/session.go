// Package security implements session management, CSRF protection, password
// hashing and login rate limiting.
package security

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/sessions"
	"github.com/labstack/echo/v4"

	"github.com/fancyplanties/fancy-planties/internal/conf"
	"github.com/fancyplanties/fancy-planties/internal/errors"
	"github.com/fancyplanties/fancy-planties/internal/logging"
)

const (
	sessionName = "planties_session"

	keyUserID    = "user_id"
	keyUserRole  = "user_role"
	keyCSRFToken = "csrf_token"
)

// CSRFHeader is the request header carrying the CSRF token on mutating requests.
const CSRFHeader = "X-CSRF-Token"

// SessionManager issues, validates and invalidates cookie sessions.
type SessionManager struct {
	store    *sessions.CookieStore
	settings *conf.Settings
	logger   *slog.Logger
}

// NewSessionManager creates a session manager backed by a signed cookie store.
func NewSessionManager(settings *conf.Settings) (*SessionManager, error) {
	secret := settings.Security.SessionSecret
	if secret == "" {
		return nil, errors.Newf("security.sessionsecret must be configured").
			Category(errors.CategoryConfiguration).
			Component("security").
			Build()
	}

	store := sessions.NewCookieStore([]byte(secret))
	store.Options = &sessions.Options{
		Path:     "/",
		MaxAge:   settings.Security.SessionDuration * 3600,
		HttpOnly: true,
		Secure:   settings.Security.SecureCookies,
		SameSite: http.SameSiteLaxMode,
	}

	return &SessionManager{
		store:    store,
		settings: settings,
		logger:   logging.ForService("security"),
	}, nil
}

// Establish creates a fresh session for the given user. Any existing session
// values are discarded and the CSRF token rotates, so a login never reuses
// pre-auth state.
func (sm *SessionManager) Establish(c echo.Context, userID uint, role string) (string, error) {
	session, err := sm.store.New(c.Request(), sessionName)
	if err != nil {
		// New returns the fresh session even when decoding an old cookie failed
		if session == nil {
			return "", fmt.Errorf("creating session: %w", err)
		}
	}

	token, err := generateToken(32)
	if err != nil {
		return "", fmt.Errorf("generating CSRF token: %w", err)
	}

	session.Values = map[any]any{
		keyUserID:    userID,
		keyUserRole:  role,
		keyCSRFToken: token,
	}

	if err := session.Save(c.Request(), c.Response()); err != nil {
		return "", fmt.Errorf("saving session: %w", err)
	}

	if sm.logger != nil {
		sm.logger.Info("Session established", "user_id", userID, "role", role)
	}
	return token, nil
}

// Clear invalidates the current session cookie.
func (sm *SessionManager) Clear(c echo.Context) error {
	session, err := sm.store.Get(c.Request(), sessionName)
	if err != nil && session == nil {
		return fmt.Errorf("loading session: %w", err)
	}

	session.Options.MaxAge = -1
	session.Values = map[any]any{}
	if err := session.Save(c.Request(), c.Response()); err != nil {
		return fmt.Errorf("clearing session: %w", err)
	}
	return nil
}

// CurrentUser returns the authenticated user id and role from the session,
// or ok=false when the request carries no valid session.
func (sm *SessionManager) CurrentUser(c echo.Context) (userID uint, role string, ok bool) {
	session, err := sm.store.Get(c.Request(), sessionName)
	if err != nil || session.IsNew {
		return 0, "", false
	}

	id, idOK := session.Values[keyUserID].(uint)
	r, roleOK := session.Values[keyUserRole].(string)
	if !idOK || !roleOK || id == 0 {
		return 0, "", false
	}
	return id, r, true
}

// CSRFToken returns the session's CSRF token, or empty when unauthenticated.
func (sm *SessionManager) CSRFToken(c echo.Context) string {
	session, err := sm.store.Get(c.Request(), sessionName)
	if err != nil || session.IsNew {
		return ""
	}
	token, _ := session.Values[keyCSRFToken].(string)
	return token
}

// ValidateCSRF checks the CSRF header against the session token using a
// constant-time comparison.
func (sm *SessionManager) ValidateCSRF(c echo.Context) bool {
	expected := sm.CSRFToken(c)
	if expected == "" {
		return false
	}
	provided := c.Request().Header.Get(CSRFHeader)
	if provided == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(expected), []byte(provided)) == 1
}

// SessionTTL returns the configured session lifetime.
func (sm *SessionManager) SessionTTL() time.Duration {
	return time.Duration(sm.settings.Security.SessionDuration) * time.Hour
}

// generateToken returns n random bytes as URL-safe base64.
func generateToken(n int) (string, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
