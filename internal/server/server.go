package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/sessions"
	gorillaws "github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/schedpulse/schedpulse/internal/app"
	"github.com/schedpulse/schedpulse/internal/config"
	apperrors "github.com/schedpulse/schedpulse/internal/errors"
	"github.com/schedpulse/schedpulse/internal/logging"
	"github.com/schedpulse/schedpulse/internal/websocket"
)

type Server struct {
	echo         *echo.Echo
	config       *config.Config
	app          *app.Service
	hub          *websocket.Hub
	sessionStore *sessions.CookieStore
	limiter      *mutationLimiter
	upgrader     gorillaws.Upgrader
	startTime    time.Time
}

func NewServer(cfg *config.Config, service *app.Service, hub *websocket.Hub) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	e.Use(correlationMiddleware)

	sessionStore := sessions.NewCookieStore([]byte(cfg.SessionSecret))
	sessionStore.Options = &sessions.Options{
		Path:     "/",
		MaxAge:   int(cfg.SessionMaxAge.Seconds()),
		HttpOnly: true,
		Secure:   cfg.AppEnv == "production",
		SameSite: http.SameSiteLaxMode,
	}

	srv := &Server{
		echo:         e,
		config:       cfg,
		app:          service,
		hub:          hub,
		sessionStore: sessionStore,
		limiter:      newMutationLimiter(cfg.MutationRatePerMinute),
		upgrader: gorillaws.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     newCheckOrigin(cfg.AppEnv == "development"),
		},
		startTime: time.Now(),
	}

	e.HTTPErrorHandler = srv.handleError
	srv.registerRoutes()

	return srv
}

func (s *Server) Start() error {
	slog.Info("Starting server", "port", s.config.Port)
	return s.echo.Start(fmt.Sprintf(":%s", s.config.Port))
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}

// handleError maps structured errors onto HTTP status codes and a uniform
// JSON error body. Internal details never leak to the client.
func (s *Server) handleError(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	status := http.StatusInternalServerError
	message := "internal error"

	if appErr := apperrors.As(err); appErr != nil {
		status = appErr.HTTPStatus()
		message = appErr.Message
	} else if httpErr, ok := err.(*echo.HTTPError); ok {
		status = httpErr.Code
		if msg, ok := httpErr.Message.(string); ok {
			message = msg
		}
	}

	if status >= http.StatusInternalServerError {
		slog.ErrorContext(c.Request().Context(), "Request failed", "error", err, "path", c.Request().URL.Path)
	}

	if jsonErr := c.JSON(status, map[string]string{"error": message}); jsonErr != nil {
		slog.Error("Failed to send error response", "error", jsonErr)
	}
}

// correlationMiddleware tags each request context with a correlation ID so
// log lines of one request can be tied together.
func correlationMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx := logging.WithCorrelationID(c.Request().Context(), logging.NewCorrelationID())
		c.SetRequest(c.Request().WithContext(ctx))
		return next(c)
	}
}
