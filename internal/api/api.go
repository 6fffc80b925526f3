// internal/api/api.go
package api

import (
	"crypto/rand"
	"fmt"
	"io"
	"log"
	"log/slog"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/fancyplanties/fancy-planties/internal/conf"
	"github.com/fancyplanties/fancy-planties/internal/datastore"
	"github.com/fancyplanties/fancy-planties/internal/imagestore"
	"github.com/fancyplanties/fancy-planties/internal/importer"
	"github.com/fancyplanties/fancy-planties/internal/logging"
	"github.com/fancyplanties/fancy-planties/internal/notification"
	"github.com/fancyplanties/fancy-planties/internal/observability"
	"github.com/fancyplanties/fancy-planties/internal/search"
	"github.com/fancyplanties/fancy-planties/internal/security"
)

// Controller manages the API routes and handlers.
type Controller struct {
	Echo     *echo.Echo
	Group    *echo.Group
	DS       datastore.Interface
	Settings *conf.Settings

	Sessions *security.SessionManager
	Search   *search.Service
	Importer *importer.Importer
	Images   *imagestore.Service
	Notifier *notification.Service

	loginLimiter   *security.RateLimiter
	logger         *log.Logger
	apiLogger      *slog.Logger
	apiLoggerClose func() error
	metrics        *observability.Metrics
	startTime      time.Time
}

// Option is a functional option for configuring the Controller.
type Option func(*Controller)

// WithImageService sets the image store service.
func WithImageService(svc *imagestore.Service) Option {
	return func(c *Controller) {
		c.Images = svc
	}
}

// WithNotifier sets the notification service.
func WithNotifier(svc *notification.Service) Option {
	return func(c *Controller) {
		c.Notifier = svc
	}
}

// New creates a new API controller and registers all routes on the given
// Echo instance.
func New(e *echo.Echo, ds datastore.Interface, settings *conf.Settings,
	logger *log.Logger, metrics *observability.Metrics, opts ...Option) (*Controller, error) {

	if logger == nil {
		logger = log.Default()
	}

	sessions, err := security.NewSessionManager(settings)
	if err != nil {
		return nil, fmt.Errorf("initializing session manager: %w", err)
	}

	c := &Controller{
		Echo:      e,
		DS:        ds,
		Settings:  settings,
		Sessions:  sessions,
		metrics:   metrics,
		logger:    logger,
		startTime: time.Now(),
	}

	for _, opt := range opts {
		opt(c)
	}

	c.Search = search.New(ds, settings)

	// A nil *notification.Service must not become a non-nil Notifier interface
	var notifier importer.Notifier
	if c.Notifier != nil {
		notifier = c.Notifier
	}
	c.Importer = importer.New(ds, settings, notifier)

	if metrics != nil {
		c.Search.SetMetrics(metrics.Search)
		c.Importer.SetMetrics(metrics.Importer)
	}

	if settings.Security.RateLimit.Enabled {
		c.loginLimiter = security.NewRateLimiter(
			settings.Security.RateLimit.RPS,
			settings.Security.RateLimit.Burst,
		)
	}

	// Structured logger for API requests, falling back to a disabled logger
	// when the log file cannot be opened
	apiLogger, closeFunc, err := logging.NewFileLogger("logs/web.log", "api", slog.LevelInfo)
	if err != nil {
		logger.Printf("Warning: Failed to initialize API structured logger: %v", err)
		fbHandler := slog.NewJSONHandler(io.Discard, nil)
		c.apiLogger = slog.New(fbHandler).With("service", "api")
		c.apiLoggerClose = func() error { return nil }
	} else {
		c.apiLogger = apiLogger
		c.apiLoggerClose = closeFunc
	}

	c.Group = e.Group("/api")

	c.Group.Use(middleware.Recover())
	c.Group.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins:     allowedOrigins(settings),
		AllowCredentials: true,
		AllowHeaders: []string{
			echo.HeaderContentType,
			security.CSRFHeader,
		},
	}))
	c.Group.Use(middleware.BodyLimit("5M"))
	c.Group.Use(c.LoggingMiddleware())

	c.initRoutes()

	return c, nil
}

func allowedOrigins(settings *conf.Settings) []string {
	if len(settings.Security.AllowedOrigins) > 0 {
		return settings.Security.AllowedOrigins
	}
	return []string{"*"}
}

// initRoutes registers all API endpoints.
func (c *Controller) initRoutes() {
	c.Group.GET("/health", c.HealthCheck)

	routeInitializers := []struct {
		name string
		fn   func()
	}{
		{"auth routes", c.initAuthRoutes},
		{"plant routes", c.initPlantRoutes},
		{"plant instance routes", c.initInstanceRoutes},
		{"propagation routes", c.initPropagationRoutes},
		{"import/export routes", c.initImportRoutes},
		{"search routes", c.initSearchRoutes},
		{"image routes", c.initImageRoutes},
	}

	for _, initializer := range routeInitializers {
		c.Debug("Initializing %s...", initializer.name)
		initializer.fn()
	}
}

// HealthCheck handles the API health check endpoint.
func (c *Controller) HealthCheck(ctx echo.Context) error {
	response := map[string]any{
		"status":    "healthy",
		"version":   c.Settings.Version,
		"buildDate": c.Settings.BuildDate,
		"timestamp": time.Now().Format(time.RFC3339),
		"uptime":    time.Since(c.startTime).String(),
	}

	dbStatus := "connected"
	if _, err := c.DS.CountUsers(); err != nil {
		dbStatus = "disconnected"
		response["status"] = "degraded"
		response["databaseError"] = err.Error()
	}
	response["databaseStatus"] = dbStatus

	return ctx.JSON(http.StatusOK, response)
}

// Shutdown releases controller resources.
func (c *Controller) Shutdown() {
	if c.loginLimiter != nil {
		c.loginLimiter.Stop()
	}
	if c.apiLoggerClose != nil {
		if err := c.apiLoggerClose(); err != nil {
			c.logger.Printf("Failed to close API log file: %v", err)
		}
	}
}

// LoggingMiddleware creates a middleware function that logs API requests
// and records HTTP metrics.
func (c *Controller) LoggingMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			start := time.Now()

			err := next(ctx)

			req := ctx.Request()
			res := ctx.Response()
			latency := time.Since(start)

			if c.metrics != nil && c.metrics.HTTP != nil {
				c.metrics.HTTP.RecordRequest(req.Method, ctx.Path(), res.Status, latency)
			}

			if c.apiLogger != nil {
				attrs := []slog.Attr{
					slog.String("method", req.Method),
					slog.String("path", req.URL.Path),
					slog.String("query", req.URL.RawQuery),
					slog.Int("status", res.Status),
					slog.String("ip", ctx.RealIP()),
					slog.String("user_agent", req.UserAgent()),
					slog.Int64("latency_ms", latency.Milliseconds()),
				}
				if err != nil {
					attrs = append(attrs, slog.Any("error", err))
				}
				c.apiLogger.LogAttrs(req.Context(), slog.LevelInfo, "API Request", attrs...)
			}

			return err
		}
	}
}

// ErrorResponse represents a standardized error response.
type ErrorResponse struct {
	Error         string `json:"error"`
	Message       string `json:"message"`
	Code          int    `json:"code"`
	CorrelationID string `json:"correlation_id"`
}

// NewErrorResponse creates a new error response with a correlation ID.
func NewErrorResponse(err error, message string, code int) *ErrorResponse {
	errorStr := message
	if err != nil {
		errorStr = err.Error()
	}
	return &ErrorResponse{
		Error:         errorStr,
		Message:       message,
		Code:          code,
		CorrelationID: generateCorrelationID(),
	}
}

// generateCorrelationID creates a unique identifier for error tracking using
// cryptographic randomness.
func generateCorrelationID() string {
	const charset = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	const length = 8

	b := make([]byte, length)
	if _, err := rand.Read(b); err != nil {
		return fmt.Sprintf("%08x", time.Now().UnixNano()&0xffffffff)
	}
	for i := range b {
		b[i] = charset[int(b[i])%len(charset)]
	}
	return string(b)
}

// HandleError logs an error with a correlation ID and returns a JSON error
// response.
func (c *Controller) HandleError(ctx echo.Context, err error, message string, code int) error {
	errorResp := NewErrorResponse(err, message, code)

	c.logger.Printf("API Error [%s] from %s: %s: %v",
		errorResp.CorrelationID, ctx.RealIP(), message, err)

	if c.apiLogger != nil {
		errorStr := message
		if err != nil {
			errorStr = err.Error()
		}
		c.apiLogger.Error("API Error",
			"correlation_id", errorResp.CorrelationID,
			"message", message,
			"error", errorStr,
			"code", code,
			"path", ctx.Request().URL.Path,
			"method", ctx.Request().Method,
			"ip", ctx.RealIP(),
		)
	}

	return ctx.JSON(code, errorResp)
}

// Debug logs debug messages when debug mode is enabled.
func (c *Controller) Debug(format string, v ...any) {
	if c.Settings.WebServer.Debug {
		msg := fmt.Sprintf(format, v...)
		c.logger.Printf("[DEBUG] %s", msg)
		if c.apiLogger != nil {
			c.apiLogger.Debug(msg)
		}
	}
}
