package api

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/fancyplanties/fancy-planties/internal/datastore"
	"github.com/fancyplanties/fancy-planties/internal/errors"
	"github.com/fancyplanties/fancy-planties/internal/security"
)

// initAuthRoutes registers the authentication routes. Register and login are
// public but rate limited; logout and status require a session.
func (c *Controller) initAuthRoutes() {
	c.Group.POST("/auth/register", c.Register, c.RateLimitLogin)
	c.Group.POST("/auth/login", c.Login, c.RateLimitLogin)
	c.Group.POST("/auth/logout", c.Logout, c.RequireAuth)
	c.Group.GET("/auth/status", c.AuthStatus)
}

// RegisterRequest is the register endpoint payload.
type RegisterRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name"`
}

// LoginRequest is the login endpoint payload.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// AuthResponse describes the authenticated user and the CSRF token the
// client must echo on mutating requests.
type AuthResponse struct {
	UserID    uint   `json:"userId"`
	Email     string `json:"email"`
	Name      string `json:"name"`
	Role      string `json:"role"`
	CSRFToken string `json:"csrfToken"`
}

// Register creates a new account and establishes a session. The first
// account on a fresh database becomes a curator so taxonomy can be managed.
func (c *Controller) Register(ctx echo.Context) error {
	var req RegisterRequest
	if err := ctx.Bind(&req); err != nil {
		return c.HandleError(ctx, err, "Invalid request format", http.StatusBadRequest)
	}

	req.Email = strings.TrimSpace(strings.ToLower(req.Email))
	if req.Email == "" || !strings.Contains(req.Email, "@") {
		return c.HandleError(ctx, nil, "A valid email address is required", http.StatusBadRequest)
	}

	hash, err := security.HashPassword(req.Password, c.Settings.Security.BcryptCost)
	if err != nil {
		return c.HandleError(ctx, err, "Invalid password", http.StatusBadRequest)
	}

	if _, err := c.DS.GetUserByEmail(req.Email); err == nil {
		return c.HandleError(ctx, nil, "An account with this email already exists", http.StatusConflict)
	} else if !errors.IsNotFound(err) {
		return c.HandleError(ctx, err, "Failed to create account", http.StatusInternalServerError)
	}

	count, err := c.DS.CountUsers()
	if err != nil {
		return c.HandleError(ctx, err, "Failed to create account", http.StatusInternalServerError)
	}
	role := datastore.RoleUser
	if count == 0 {
		role = datastore.RoleCurator
	}

	user := datastore.User{
		Email:        req.Email,
		PasswordHash: hash,
		Name:         strings.TrimSpace(req.Name),
		Role:         role,
	}
	if err := c.DS.CreateUser(&user); err != nil {
		return c.HandleError(ctx, err, "Failed to create account", http.StatusInternalServerError)
	}

	token, err := c.Sessions.Establish(ctx, user.ID, user.Role)
	if err != nil {
		return c.HandleError(ctx, err, "Failed to establish session", http.StatusInternalServerError)
	}

	if c.metrics != nil && c.metrics.Auth != nil {
		c.metrics.Auth.RecordRegistration()
	}

	return ctx.JSON(http.StatusCreated, AuthResponse{
		UserID:    user.ID,
		Email:     user.Email,
		Name:      user.Name,
		Role:      user.Role,
		CSRFToken: token,
	})
}

// Login verifies credentials and establishes a session with a fresh CSRF
// token. Invalid email and invalid password return the same response.
func (c *Controller) Login(ctx echo.Context) error {
	var req LoginRequest
	if err := ctx.Bind(&req); err != nil {
		return c.HandleError(ctx, err, "Invalid request format", http.StatusBadRequest)
	}

	user, err := c.DS.GetUserByEmail(strings.TrimSpace(strings.ToLower(req.Email)))
	if err != nil || !security.CheckPassword(user.PasswordHash, req.Password) {
		if c.metrics != nil && c.metrics.Auth != nil {
			c.metrics.Auth.RecordLogin(false)
		}
		return c.HandleError(ctx, nil, "Invalid email or password", http.StatusUnauthorized)
	}

	token, err := c.Sessions.Establish(ctx, user.ID, user.Role)
	if err != nil {
		return c.HandleError(ctx, err, "Failed to establish session", http.StatusInternalServerError)
	}

	if c.metrics != nil && c.metrics.Auth != nil {
		c.metrics.Auth.RecordLogin(true)
	}

	return ctx.JSON(http.StatusOK, AuthResponse{
		UserID:    user.ID,
		Email:     user.Email,
		Name:      user.Name,
		Role:      user.Role,
		CSRFToken: token,
	})
}

// Logout clears the session cookie.
func (c *Controller) Logout(ctx echo.Context) error {
	if err := c.Sessions.Clear(ctx); err != nil {
		return c.HandleError(ctx, err, "Failed to clear session", http.StatusInternalServerError)
	}
	return ctx.JSON(http.StatusOK, map[string]bool{"loggedOut": true})
}

// AuthStatus reports whether the request carries a valid session.
func (c *Controller) AuthStatus(ctx echo.Context) error {
	userID, role, ok := c.Sessions.CurrentUser(ctx)
	if !ok {
		return ctx.JSON(http.StatusOK, map[string]any{"authenticated": false})
	}

	user, err := c.DS.GetUser(userID)
	if err != nil {
		return ctx.JSON(http.StatusOK, map[string]any{"authenticated": false})
	}

	return ctx.JSON(http.StatusOK, map[string]any{
		"authenticated": true,
		"userId":        user.ID,
		"email":         user.Email,
		"name":          user.Name,
		"role":          role,
		"csrfToken":     c.Sessions.CSRFToken(ctx),
	})
}
