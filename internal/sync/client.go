// Package sync subscribes to the backend's realtime user-data feed.
package sync

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/gorilla/websocket"

	"github.com/schedpulse/schedpulse/internal/domain"
	"github.com/schedpulse/schedpulse/internal/metrics"
)

const (
	initialBackoff = time.Second
	maxBackoff     = time.Minute
	readTimeout    = 90 * time.Second
)

// Event is one message from the realtime feed.
type Event struct {
	Type     string           `json:"type"`
	UserData *domain.UserData `json:"user_data,omitempty"`
}

// Handlers receive decoded feed events. Either may be nil.
type Handlers struct {
	// OnUserData fires with the full remote user-data snapshot.
	OnUserData func(domain.UserData)
	// OnScheduleChanged fires when the master schedule version changed.
	OnScheduleChanged func()
}

// Client maintains a websocket subscription to the backend feed, reconnecting
// with capped exponential backoff until its context is cancelled.
type Client struct {
	url      string
	dialer   *websocket.Dialer
	handlers Handlers
}

// NewClient creates a feed client for the given ws:// or wss:// URL.
func NewClient(url string, handlers Handlers) *Client {
	return &Client{
		url:      url,
		dialer:   websocket.DefaultDialer,
		handlers: handlers,
	}
}

// Run blocks, maintaining the subscription until ctx is done.
func (c *Client) Run(ctx context.Context) {
	backoff := initialBackoff
	for {
		err := c.readLoop(ctx)
		metrics.SyncConnected.Set(0)
		if ctx.Err() != nil {
			return
		}

		slog.WarnContext(ctx, "Realtime feed disconnected, reconnecting", "backoff", backoff, "error", err)
		metrics.SyncReconnectsTotal.Inc()

		select {
		case <-time.After(backoff):
			backoff *= 2
			if backoff > maxBackoff {
				backoff = maxBackoff
			}
		case <-ctx.Done():
			return
		}
	}
}

func (c *Client) readLoop(ctx context.Context) error {
	conn, _, err := c.dialer.DialContext(ctx, c.url, nil)
	if err != nil {
		return err
	}
	defer conn.Close()

	// Drop the connection from outside when ctx is cancelled, unblocking ReadMessage.
	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	metrics.SyncConnected.Set(1)
	slog.InfoContext(ctx, "Realtime feed connected", "url", c.url)

	for {
		conn.SetReadDeadline(time.Now().Add(readTimeout))
		_, data, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		c.dispatch(ctx, data)
	}
}

func (c *Client) dispatch(ctx context.Context, data []byte) {
	var event Event
	if err := json.Unmarshal(data, &event); err != nil {
		slog.WarnContext(ctx, "Dropping malformed feed event", "error", err)
		metrics.SyncEventsTotal.WithLabelValues("malformed").Inc()
		return
	}

	metrics.SyncEventsTotal.WithLabelValues(event.Type).Inc()
	switch event.Type {
	case "user_data":
		if event.UserData != nil && c.handlers.OnUserData != nil {
			c.handlers.OnUserData(*event.UserData)
		}
	case "schedule_changed":
		if c.handlers.OnScheduleChanged != nil {
			c.handlers.OnScheduleChanged()
		}
	default:
		slog.DebugContext(ctx, "Ignoring unknown feed event", "type", event.Type)
	}
}
