package server

import (
	"log/slog"

	"github.com/labstack/echo/v4"
)

// handleUpdatesSocket upgrades the connection and registers it with the hub.
// The hub pushes toasts and user-data frames; clients never send anything,
// so the read pump exists only to detect disconnects. Gated by requireSession:
// the hub carries the signed-in attendee's user data.
func (s *Server) handleUpdatesSocket(c echo.Context) error {
	conn, err := s.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		slog.Warn("Failed to upgrade updates socket", "error", err)
		return nil
	}

	if err := s.hub.Register(conn); err != nil {
		// Hub already closed the connection.
		return nil
	}

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}

	s.hub.Unregister(conn)
	return nil
}
