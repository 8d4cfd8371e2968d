package server

import (
	"log/slog"
	"net/http"
	"net/url"
	"strings"
)

// newCheckOrigin returns the CheckOrigin function for the updates socket.
// It allows empty origins (non-browser clients) and same-host origins; in
// development, localhost origins are additionally allowed.
func newCheckOrigin(isDevelopment bool) func(r *http.Request) bool {
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")

		if origin == "" {
			return true
		}

		u, err := url.Parse(origin)
		if err != nil {
			return false
		}
		if strings.EqualFold(u.Host, r.Host) {
			return true
		}

		if isDevelopment && isLocalhostOrigin(u) {
			return true
		}

		slog.Warn("WebSocket origin rejected", "origin", origin, "remote_addr", r.RemoteAddr)
		return false
	}
}

func isLocalhostOrigin(u *url.URL) bool {
	host := u.Hostname()
	return host == "localhost" || host == "127.0.0.1"
}
