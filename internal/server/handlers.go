package server

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	apperrors "github.com/schedpulse/schedpulse/internal/errors"
)

// Session keys
const (
	sessionName         = "schedpulse-session"
	sessionKeyAttendee  = "attendee_id"
	maxAttendeeTokenLen = 512
)

// --- Auth middleware ---

func (s *Server) requireSession(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		session, err := s.sessionStore.Get(c.Request(), sessionName)
		if err != nil {
			return apperrors.New(apperrors.TypeUnauthorized, "invalid session")
		}

		attendeeID, ok := session.Values[sessionKeyAttendee].(string)
		if !ok || attendeeID == "" {
			return apperrors.New(apperrors.TypeUnauthorized, "sign in required")
		}
		if !s.app.SignedIn() {
			return apperrors.New(apperrors.TypeUnauthorized, "sign in required")
		}

		c.Set("attendeeID", attendeeID)
		return next(c)
	}
}

// --- Auth handlers ---

type loginRequest struct {
	AttendeeToken string `json:"attendee_token"`
}

func (s *Server) handleLogin(c echo.Context) error {
	var req loginRequest
	if err := c.Bind(&req); err != nil {
		return apperrors.New(apperrors.TypeValidation, "invalid request body")
	}
	req.AttendeeToken = strings.TrimSpace(req.AttendeeToken)
	if req.AttendeeToken == "" {
		return apperrors.New(apperrors.TypeValidation, "attendee_token is required")
	}
	if len(req.AttendeeToken) > maxAttendeeTokenLen {
		return apperrors.New(apperrors.TypeValidation, "attendee_token too long")
	}

	attendeeID, err := s.app.SignIn(c.Request().Context(), req.AttendeeToken)
	if err != nil {
		return err
	}

	session, err := s.sessionStore.Get(c.Request(), sessionName)
	if err != nil {
		// Corrupt cookie: start over with a fresh session.
		session, _ = s.sessionStore.New(c.Request(), sessionName)
	}
	session.Values[sessionKeyAttendee] = attendeeID
	if err := session.Save(c.Request(), c.Response().Writer); err != nil {
		return apperrors.Wrap(apperrors.TypeInternal, "failed to save session", err)
	}

	return c.JSON(http.StatusOK, map[string]string{"attendee_id": attendeeID})
}

func (s *Server) handleLogout(c echo.Context) error {
	if err := s.app.SignOut(c.Request().Context()); err != nil {
		return err
	}

	session, err := s.sessionStore.Get(c.Request(), sessionName)
	if err != nil {
		session, err = s.sessionStore.New(c.Request(), sessionName)
		if err != nil {
			slog.Warn("Failed to create session during logout", "error", err)
		}
	}
	if session != nil {
		session.Options.MaxAge = -1
		if err := session.Save(c.Request(), c.Response().Writer); err != nil {
			return apperrors.Wrap(apperrors.TypeInternal, "failed to clear session", err)
		}
	}

	return c.JSON(http.StatusOK, map[string]string{"status": "signed_out"})
}

// --- Schedule handlers ---

func (s *Server) handleSchedule(c echo.Context) error {
	schedule, err := s.app.Schedule(c.Request().Context())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, schedule)
}

func (s *Server) handleSession(c echo.Context) error {
	session, err := s.app.Session(c.Request().Context(), c.Param("sessionID"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, session)
}

// --- User data handlers ---

func (s *Server) handleUserData(c echo.Context) error {
	data, err := s.app.UserData(c.Request().Context())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, data)
}

func (s *Server) handleBookmark(c echo.Context) error {
	return s.applyBookmark(c, true)
}

func (s *Server) handleUnbookmark(c echo.Context) error {
	return s.applyBookmark(c, false)
}

func (s *Server) applyBookmark(c echo.Context, bookmarked bool) error {
	sessionID := c.Param("sessionID")
	if sessionID == "" {
		return apperrors.New(apperrors.TypeValidation, "session ID is required")
	}
	if err := s.app.SetBookmarked(c.Request().Context(), sessionID, bookmarked); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]any{"session_id": sessionID, "bookmarked": bookmarked})
}

func (s *Server) handleSurvey(c echo.Context) error {
	sessionID := c.Param("sessionID")
	if sessionID == "" {
		return apperrors.New(apperrors.TypeValidation, "session ID is required")
	}
	if err := s.app.SubmitSurvey(c.Request().Context(), sessionID); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]string{"session_id": sessionID, "status": "submitted"})
}

// --- Health handlers ---

func (s *Server) handleLiveness(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]any{
		"status": "ok",
		"uptime": time.Since(s.startTime).Seconds(),
	})
}

func (s *Server) handleReadiness(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 2*time.Second)
	defer cancel()

	// Ready once the master schedule has been fetched; user data and the
	// offline queue degrade gracefully and do not gate readiness.
	if _, err := s.app.Schedule(ctx); err != nil {
		return c.JSON(http.StatusServiceUnavailable, map[string]any{
			"status":       "unhealthy",
			"failed_check": "schedule",
			"error":        err.Error(),
		})
	}
	return c.JSON(http.StatusOK, map[string]string{"status": "ready"})
}
