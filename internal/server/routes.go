package server

import (
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func (s *Server) registerRoutes() {
	// Observability endpoints (no auth required)
	s.echo.GET("/health/live", s.handleLiveness)
	s.echo.GET("/health/ready", s.handleReadiness)
	s.echo.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	// Auth
	s.echo.POST("/auth/login", s.handleLogin)
	s.echo.POST("/auth/logout", s.handleLogout, s.requireSession)

	// Schedule (public)
	s.echo.GET("/api/schedule", s.handleSchedule)
	s.echo.GET("/api/schedule/:sessionID", s.handleSession)

	// User data (authenticated; mutations are rate limited per attendee)
	s.echo.GET("/api/user/schedule", s.handleUserData, s.requireSession)
	s.echo.PUT("/api/user/schedule/:sessionID", s.handleBookmark, s.requireSession, s.rateLimit)
	s.echo.DELETE("/api/user/schedule/:sessionID", s.handleUnbookmark, s.requireSession, s.rateLimit)
	s.echo.PUT("/api/user/survey/:sessionID", s.handleSurvey, s.requireSession, s.rateLimit)

	// UI update feed (authenticated: it carries the attendee's user data)
	s.echo.GET("/ws/updates", s.handleUpdatesSocket, s.requireSession)
}
