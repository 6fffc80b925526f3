package security

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fancyplanties/fancy-planties/internal/conf"
	"github.com/fancyplanties/fancy-planties/internal/datastore"
)

func testSettings() *conf.Settings {
	s := &conf.Settings{}
	s.Security.SessionSecret = "test-secret-0123456789abcdef"
	s.Security.SessionDuration = 24
	s.Security.BcryptCost = 10
	return s
}

func newContext(e *echo.Echo, req *http.Request) (echo.Context, *httptest.ResponseRecorder) {
	rec := httptest.NewRecorder()
	return e.NewContext(req, rec), rec
}

func TestSessionRoundTrip(t *testing.T) {
	sm, err := NewSessionManager(testSettings())
	require.NoError(t, err)
	e := echo.New()

	// Login request establishes a session
	loginReq := httptest.NewRequest(http.MethodPost, "/api/auth/login", http.NoBody)
	ctx, rec := newContext(e, loginReq)

	token, err := sm.Establish(ctx, 7, datastore.RoleCurator)
	require.NoError(t, err)
	require.NotEmpty(t, token)

	cookies := rec.Result().Cookies()
	require.NotEmpty(t, cookies, "login must set a session cookie")

	// Subsequent request carries the cookie
	req := httptest.NewRequest(http.MethodGet, "/api/auth/status", http.NoBody)
	for _, c := range cookies {
		req.AddCookie(c)
	}
	ctx, _ = newContext(e, req)

	userID, role, ok := sm.CurrentUser(ctx)
	require.True(t, ok)
	assert.EqualValues(t, 7, userID)
	assert.Equal(t, datastore.RoleCurator, role)
	assert.Equal(t, token, sm.CSRFToken(ctx))
}

func TestCSRFValidation(t *testing.T) {
	sm, err := NewSessionManager(testSettings())
	require.NoError(t, err)
	e := echo.New()

	ctx, rec := newContext(e, httptest.NewRequest(http.MethodPost, "/login", http.NoBody))
	token, err := sm.Establish(ctx, 1, datastore.RoleUser)
	require.NoError(t, err)

	makeReq := func(headerToken string) echo.Context {
		req := httptest.NewRequest(http.MethodPost, "/api/plant-instances", http.NoBody)
		for _, c := range rec.Result().Cookies() {
			req.AddCookie(c)
		}
		if headerToken != "" {
			req.Header.Set(CSRFHeader, headerToken)
		}
		c, _ := newContext(e, req)
		return c
	}

	assert.True(t, sm.ValidateCSRF(makeReq(token)))
	assert.False(t, sm.ValidateCSRF(makeReq("wrong-token")))
	assert.False(t, sm.ValidateCSRF(makeReq("")))
}

func TestCSRFTokenRotatesOnLogin(t *testing.T) {
	sm, err := NewSessionManager(testSettings())
	require.NoError(t, err)
	e := echo.New()

	ctx, _ := newContext(e, httptest.NewRequest(http.MethodPost, "/login", http.NoBody))
	first, err := sm.Establish(ctx, 1, datastore.RoleUser)
	require.NoError(t, err)

	ctx, _ = newContext(e, httptest.NewRequest(http.MethodPost, "/login", http.NoBody))
	second, err := sm.Establish(ctx, 1, datastore.RoleUser)
	require.NoError(t, err)

	assert.NotEqual(t, first, second)
}

func TestCurrentUserWithoutSession(t *testing.T) {
	sm, err := NewSessionManager(testSettings())
	require.NoError(t, err)
	e := echo.New()

	ctx, _ := newContext(e, httptest.NewRequest(http.MethodGet, "/", http.NoBody))
	_, _, ok := sm.CurrentUser(ctx)
	assert.False(t, ok)
	assert.Empty(t, sm.CSRFToken(ctx))
}

func TestSessionManagerRequiresSecret(t *testing.T) {
	s := testSettings()
	s.Security.SessionSecret = ""
	_, err := NewSessionManager(s)
	require.Error(t, err)
}

func TestPasswordHashing(t *testing.T) {
	hash, err := HashPassword("correct horse battery", 10)
	require.NoError(t, err)
	assert.NotEqual(t, "correct horse battery", hash)

	assert.True(t, CheckPassword(hash, "correct horse battery"))
	assert.False(t, CheckPassword(hash, "incorrect horse"))
}

func TestPasswordLengthBounds(t *testing.T) {
	_, err := HashPassword("short", 10)
	assert.Error(t, err)

	long := make([]byte, MaxPasswordLength+1)
	for i := range long {
		long[i] = 'a'
	}
	_, err = HashPassword(string(long), 10)
	assert.Error(t, err)
}

func TestRateLimiterBurstThenDeny(t *testing.T) {
	rl := NewRateLimiter(1, 3)
	defer rl.Stop()

	for i := 0; i < 3; i++ {
		assert.True(t, rl.Allow("10.0.0.1"), "request %d within burst", i)
	}
	assert.False(t, rl.Allow("10.0.0.1"), "burst exhausted")

	// Other clients are unaffected
	assert.True(t, rl.Allow("10.0.0.2"))
	assert.Equal(t, 2, rl.size())
}
