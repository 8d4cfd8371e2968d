// Package websocket implements the UI client fan-out hub using the actor pattern.
//
// A single goroutine owns all connection state and consumes a command channel
// (no mutexes). Per-connection write goroutines isolate slow clients: a client
// whose send buffer fills up is disconnected rather than stalling the rest.
package websocket

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/gorilla/websocket"

	"github.com/schedpulse/schedpulse/internal/domain"
)

// ErrStopped is returned by Register once the hub has been stopped.
var ErrStopped = errors.New("websocket: hub stopped")

const (
	maxClients   = 100
	writeTimeout = 5 * time.Second
)

// --- Command types ---

type hubCmd interface{ hubCmd() }

type cmdRegister struct {
	conn  *websocket.Conn
	errCh chan error
}

func (cmdRegister) hubCmd() {}

type cmdUnregister struct {
	conn *websocket.Conn
}

func (cmdUnregister) hubCmd() {}

type cmdBroadcast struct {
	data []byte
}

func (cmdBroadcast) hubCmd() {}

type cmdClientCount struct {
	replyCh chan int
}

func (cmdClientCount) hubCmd() {}

type cmdStop struct{}

func (cmdStop) hubCmd() {}

// --- Per-connection writer ---

type clientWriter struct {
	conn   *websocket.Conn
	sendCh chan []byte
	done   chan struct{}
}

func newClientWriter(conn *websocket.Conn) *clientWriter {
	cw := &clientWriter{
		conn:   conn,
		sendCh: make(chan []byte, 16),
		done:   make(chan struct{}),
	}
	go cw.run()
	return cw
}

func (cw *clientWriter) run() {
	for {
		select {
		case msg, ok := <-cw.sendCh:
			if !ok {
				return
			}
			cw.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := cw.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-cw.done:
			return
		}
	}
}

func (cw *clientWriter) stop() {
	close(cw.done)
	cw.conn.Close()
}

// --- Hub ---

// frame is the wire format pushed to UI clients.
type frame struct {
	Type     string           `json:"type"`
	Toast    *domain.Toast    `json:"toast,omitempty"`
	UserData *domain.UserData `json:"user_data,omitempty"`
}

// Hub fans toasts and user-data updates out to connected UI clients.
type Hub struct {
	cmdCh   chan hubCmd
	done    chan struct{}
	clients map[*websocket.Conn]*clientWriter
}

// NewHub creates and starts the hub.
func NewHub() *Hub {
	hub := &Hub{
		cmdCh:   make(chan hubCmd, 256),
		done:    make(chan struct{}),
		clients: make(map[*websocket.Conn]*clientWriter),
	}
	go hub.run()
	return hub
}

func (h *Hub) run() {
	defer close(h.done)
	for cmd := range h.cmdCh {
		switch c := cmd.(type) {
		case cmdRegister:
			h.handleRegister(c)
		case cmdUnregister:
			h.handleUnregister(c.conn)
		case cmdBroadcast:
			h.handleBroadcast(c.data)
		case cmdClientCount:
			c.replyCh <- len(h.clients)
		case cmdStop:
			h.handleStop()
			return
		}
	}
}

func (h *Hub) handleRegister(c cmdRegister) {
	if len(h.clients) >= maxClients {
		slog.Warn("Rejecting UI client: max clients reached", "max", maxClients)
		c.conn.Close()
		c.errCh <- fmt.Errorf("max clients (%d) reached", maxClients)
		return
	}
	h.clients[c.conn] = newClientWriter(c.conn)
	slog.Debug("UI client registered", "total", len(h.clients))
	c.errCh <- nil
}

func (h *Hub) handleUnregister(conn *websocket.Conn) {
	cw, exists := h.clients[conn]
	if !exists {
		return
	}
	cw.stop()
	delete(h.clients, conn)
	slog.Debug("UI client unregistered", "remaining", len(h.clients))
}

func (h *Hub) handleBroadcast(data []byte) {
	var slow []*websocket.Conn
	for conn, cw := range h.clients {
		select {
		case cw.sendCh <- data:
		default:
			slow = append(slow, conn)
		}
	}
	for _, conn := range slow {
		slog.Warn("Disconnecting slow UI client")
		h.handleUnregister(conn)
	}
}

func (h *Hub) handleStop() {
	for conn, cw := range h.clients {
		cw.stop()
		delete(h.clients, conn)
	}
}

// --- Public API ---

// Register adds a UI client connection. Returns ErrStopped (and closes the
// connection) once the hub is no longer running.
func (h *Hub) Register(conn *websocket.Conn) error {
	errCh := make(chan error, 1)
	select {
	case h.cmdCh <- cmdRegister{conn: conn, errCh: errCh}:
	case <-h.done:
		conn.Close()
		return ErrStopped
	}
	select {
	case err := <-errCh:
		return err
	case <-h.done:
		conn.Close()
		return ErrStopped
	}
}

// Unregister removes a UI client connection.
func (h *Hub) Unregister(conn *websocket.Conn) {
	select {
	case h.cmdCh <- cmdUnregister{conn: conn}:
	case <-h.done:
	}
}

// PublishToast pushes a toast frame to all connected clients.
func (h *Hub) PublishToast(toast domain.Toast) {
	h.broadcast(frame{Type: "toast", Toast: &toast})
}

// PublishUserData pushes a user-data frame to all connected clients.
func (h *Hub) PublishUserData(data domain.UserData) {
	h.broadcast(frame{Type: "user_data", UserData: &data})
}

func (h *Hub) broadcast(f frame) {
	data, err := json.Marshal(f)
	if err != nil {
		slog.Error("Failed to marshal broadcast frame", "error", err)
		return
	}
	select {
	case h.cmdCh <- cmdBroadcast{data: data}:
	case <-h.done:
	}
}

// ClientCount returns the number of connected UI clients, zero once stopped.
func (h *Hub) ClientCount() int {
	replyCh := make(chan int, 1)
	select {
	case h.cmdCh <- cmdClientCount{replyCh: replyCh}:
	case <-h.done:
		return 0
	}
	select {
	case n := <-replyCh:
		return n
	case <-h.done:
		return 0
	}
}

// Stop disconnects all clients and stops the hub. Idempotent.
func (h *Hub) Stop() {
	select {
	case h.cmdCh <- cmdStop{}:
	case <-h.done:
	}
}
