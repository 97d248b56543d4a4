/*
Package chat contains the realtime core: connection lifecycle, presence tracking,
channel subscriptions, and event fan-out.

This file defines the Conn struct, representing one active WebSocket connection.
It manages the connection's message loops (ReadPump and WritePump), heartbeat
enforcement, and dispatch of inbound client operations to the Hub.
*/
package chat

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"propchat/internal/app/user"
	"propchat/internal/pkg/errs"
	"propchat/internal/pkg/logx"
)

const (
	// timeout duration for writing to the WebSocket connection.
	writeWait = 10 * time.Second

	// maximum allowed size (in bytes) of a frame sent by the client.
	maxMessageSize = 4096

	// capacity of the per-connection outbound queue.
	sendBufferSize = 256
)

// Conn represents an active WebSocket connection bound to a resolved user identity.
// The identity is set once at handshake time and is immutable for the connection's life.
type Conn struct {
	// id is the opaque connection identity, distinct from the user identity:
	// one user may hold several simultaneous connections.
	id string

	// u is the authenticated user behind this connection.
	u user.User

	hub  *Hub
	sock *websocket.Conn

	// send queues outbound frames for WritePump. Closed exactly once on teardown.
	send chan []byte

	closeOnce sync.Once

	// mu protects the subscribed channel set and the closed flag.
	mu       sync.Mutex
	channels map[string]struct{}

	// closed is set when the hub unregisters the connection. The read pump may
	// still dispatch frames it already received after that point; the flag lets
	// late joins refuse instead of resurrecting registry entries.
	closed bool

	logger zerolog.Logger
}

// NewConn constructs a Conn for the given socket and identity.
func NewConn(hub *Hub, sock *websocket.Conn, u user.User) *Conn {
	id := uuid.NewString()

	connLogger := logx.Logger().With().
		Str("conn_id", id).
		Str("user_id", u.ID).
		Logger()

	return &Conn{
		id:       id,
		u:        u,
		hub:      hub,
		sock:     sock,
		send:     make(chan []byte, sendBufferSize),
		channels: make(map[string]struct{}),
		logger:   connLogger,
	}
}

// ID returns the opaque connection identity.
func (c *Conn) ID() string { return c.id }

// User returns the identity bound to this connection.
func (c *Conn) User() user.User { return c.u }

// addChannel records a channel subscription owned by this connection. It
// refuses once the connection is closed, so a join racing teardown cannot
// leave a registry entry no later pass will reclaim.
func (c *Conn) addChannel(channelID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	c.channels[channelID] = struct{}{}
	return true
}

// markClosed flags the connection as torn down.
func (c *Conn) markClosed() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
}

// isClosed reports whether the hub has unregistered the connection.
func (c *Conn) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// removeChannel forgets a channel subscription. Reports whether it was present.
func (c *Conn) removeChannel(channelID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.channels[channelID]; !ok {
		return false
	}
	delete(c.channels, channelID)
	return true
}

// channelSnapshot returns the connection's current channel subscriptions.
func (c *Conn) channelSnapshot() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, 0, len(c.channels))
	for id := range c.channels {
		out = append(out, id)
	}
	return out
}

// inChannel reports whether the connection is subscribed to the channel.
func (c *Conn) inChannel(channelID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.channels[channelID]
	return ok
}

// shutdownQueue closes the send channel exactly once. WritePump drains and exits.
func (c *Conn) shutdownQueue() {
	c.closeOnce.Do(func() {
		close(c.send)
	})
}

// trySend queues raw bytes without blocking. A full or closed queue drops the
// frame and reports failure; the caller decides whether the connection is stale.
func (c *Conn) trySend(data []byte) bool {
	defer func() {
		// send may already be closed by a concurrent teardown.
		recover()
	}()

	select {
	case c.send <- data:
		return true
	default:
		return false
	}
}

// sendEvent marshals and queues an event for this connection only.
func (c *Conn) sendEvent(ev Event) error {
	data, err := json.Marshal(ev)
	if err != nil {
		c.logger.Error().Err(err).Msg("Error marshaling event for connection")
		return err
	}

	if !c.trySend(data) {
		c.logger.Warn().Int("queue_len", len(c.send)).Msg("Connection send queue full, dropping event")
		return fmt.Errorf("connection send queue full")
	}
	return nil
}

// SendError queues an error event addressed to this connection only.
func (c *Conn) SendError(customErr *errs.CustomError) {
	if customErr == nil {
		customErr = errs.NewError(errs.ErrUnknown)
	}

	ev := Event{
		Kind: EventError,
		Payload: ErrorPayload{
			Code:    customErr.Code,
			Message: customErr.Message,
		},
	}

	if err := c.sendEvent(ev); err != nil {
		c.logger.Warn().Err(err).Msg("Failed to queue error event")
	}
}

// ReadPump reads frames from the WebSocket connection until it dies. It enforces
// the heartbeat window via read deadlines, dispatches inbound operations, and
// performs cleanup on exit. Must run in its own goroutine, one per connection.
func (c *Conn) ReadPump() {
	defer func() {
		c.hub.Unregister(c, "read pump terminated")
		if err := c.sock.Close(); err != nil {
			c.logger.Debug().Err(err).Msg("Connection close error in ReadPump")
		}
	}()

	pongWait := c.hub.heartbeatWindow

	c.sock.SetReadLimit(maxMessageSize)

	if err := c.sock.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		c.logger.Error().Err(err).Msg("Failed to set read deadline")
		return
	}

	c.sock.SetPongHandler(func(string) error {
		return c.sock.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, frame, err := c.sock.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.logger.Info().Err(err).Msg("Error reading frame (client close/going away)")
			}
			break
		}

		c.dispatch(frame)
	}
}

// WritePump writes queued frames to the WebSocket connection and emits periodic
// protocol pings. Must run in its own goroutine, one per connection.
func (c *Conn) WritePump() {
	pingPeriod := c.hub.heartbeatWindow * 9 / 10

	ticker := time.NewTicker(pingPeriod)

	defer func() {
		ticker.Stop()
		if err := c.sock.Close(); err != nil {
			c.logger.Debug().Err(err).Msg("Connection close error in WritePump")
		}
	}()

	for {
		select {
		case frame, ok := <-c.send:
			if err := c.sock.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				c.logger.Error().Err(err).Msg("Failed to set write deadline")
				return
			}

			if !ok {
				if err := c.sock.WriteMessage(websocket.CloseMessage, []byte{}); err != nil {
					c.logger.Debug().Err(err).Msg("Error writing close frame")
				}
				return
			}

			if err := c.sock.WriteMessage(websocket.TextMessage, frame); err != nil {
				c.logger.Warn().Err(err).Msg("Error writing frame")
				return
			}

		case <-ticker.C:
			if err := c.sock.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				c.logger.Error().Err(err).Msg("Failed to set write deadline on ping")
				return
			}

			if err := c.sock.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.logger.Warn().Err(err).Msg("Error writing ping")
				return
			}
		}
	}
}
