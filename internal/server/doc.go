// Package server provides the HTTP surface: auth, schedule and user-data
// endpoints, the UI update websocket, and observability endpoints.
package server
