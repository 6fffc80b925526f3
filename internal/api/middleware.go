package api

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/fancyplanties/fancy-planties/internal/datastore"
)

// Context keys set by the auth middleware.
const (
	ctxUserID   = "user_id"
	ctxUserRole = "user_role"
)

// safeMethods need no CSRF token since they cannot mutate state.
var safeMethods = map[string]bool{
	http.MethodGet:     true,
	http.MethodHead:    true,
	http.MethodOptions: true,
}

// RequireAuth rejects requests without a valid session. Mutating requests
// must additionally carry the session's CSRF token.
func (c *Controller) RequireAuth(next echo.HandlerFunc) echo.HandlerFunc {
	return func(ctx echo.Context) error {
		userID, role, ok := c.Sessions.CurrentUser(ctx)
		if !ok {
			return c.HandleError(ctx, nil, "Authentication required", http.StatusUnauthorized)
		}

		if !safeMethods[ctx.Request().Method] && !c.Sessions.ValidateCSRF(ctx) {
			if c.metrics != nil && c.metrics.Auth != nil {
				c.metrics.Auth.RecordCSRFRejected()
			}
			return c.HandleError(ctx, nil, "Invalid or missing CSRF token", http.StatusForbidden)
		}

		ctx.Set(ctxUserID, userID)
		ctx.Set(ctxUserRole, role)
		return next(ctx)
	}
}

// RequireCurator allows only curator accounts through. Must run after
// RequireAuth.
func (c *Controller) RequireCurator(next echo.HandlerFunc) echo.HandlerFunc {
	return func(ctx echo.Context) error {
		if role, _ := ctx.Get(ctxUserRole).(string); role != datastore.RoleCurator {
			return c.HandleError(ctx, nil, "Curator role required", http.StatusForbidden)
		}
		return next(ctx)
	}
}

// RateLimitLogin throttles unauthenticated auth endpoints per client IP.
func (c *Controller) RateLimitLogin(next echo.HandlerFunc) echo.HandlerFunc {
	return func(ctx echo.Context) error {
		if c.loginLimiter != nil && !c.loginLimiter.Allow(ctx.RealIP()) {
			if c.metrics != nil && c.metrics.Auth != nil {
				c.metrics.Auth.RecordRateLimited()
			}
			return c.HandleError(ctx, nil, "Too many requests", http.StatusTooManyRequests)
		}
		return next(ctx)
	}
}

// currentUserID returns the authenticated user id set by RequireAuth.
func currentUserID(ctx echo.Context) uint {
	id, _ := ctx.Get(ctxUserID).(uint)
	return id
}
