/*
Package chat contains the realtime core: connection lifecycle, presence tracking,
channel subscriptions, and event fan-out.

This file defines the client-to-server operation envelope and the per-connection
dispatch of inbound frames. Durable writes (message create/edit/delete) are
deliberately absent: they travel over the REST surface so every announcement is
gated on a completed persistence round-trip.
*/
package chat

import (
	"context"
	"encoding/json"
	"time"
)

// OpKind identifies a client-to-server operation on the wire.
type OpKind string

const (
	OpChannelJoin    OpKind = "channel:join"
	OpChannelLeave   OpKind = "channel:leave"
	OpTypingStart    OpKind = "typing:start"
	OpTypingStop     OpKind = "typing:stop"
	OpPresenceUpdate OpKind = "presence:update"
	OpPing           OpKind = "ping"
)

// inboundOp is the envelope every client frame must carry.
type inboundOp struct {
	Op      OpKind          `json:"op"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// channelOpPayload is shared by join/leave/typing operations.
type channelOpPayload struct {
	ChannelID string `json:"channelId"`
}

// presenceOpPayload carries an explicit status override.
type presenceOpPayload struct {
	Status Status `json:"status"`
}

// opTimeout bounds the blocking work an inbound operation may perform
// (membership authorization and presence persistence hit the database).
const opTimeout = 5 * time.Second

// dispatch routes one raw inbound frame. Malformed frames are logged and
// dropped; operation failures are reported to this connection only.
func (c *Conn) dispatch(frame []byte) {
	var op inboundOp
	if err := json.Unmarshal(frame, &op); err != nil {
		c.logger.Warn().Err(err).Bytes("frame", frame).Msg("Client sent invalid JSON")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	switch op.Op {
	case OpChannelJoin:
		c.handleChannelJoin(ctx, op.Payload)

	case OpChannelLeave:
		c.handleChannelLeave(op.Payload)

	case OpTypingStart:
		c.handleTyping(op.Payload, true)

	case OpTypingStop:
		c.handleTyping(op.Payload, false)

	case OpPresenceUpdate:
		c.handlePresenceUpdate(op.Payload)

	case OpPing:
		c.handlePing()

	default:
		c.logger.Warn().Str("op", string(op.Op)).Msg("Client sent unsupported operation")
	}
}

func (c *Conn) decodeChannelOp(payload json.RawMessage) (string, bool) {
	var p channelOpPayload
	if err := json.Unmarshal(payload, &p); err != nil || p.ChannelID == "" {
		c.logger.Warn().Msg("Client sent channel operation without a valid channelId")
		return "", false
	}
	return p.ChannelID, true
}

func (c *Conn) handleChannelJoin(ctx context.Context, payload json.RawMessage) {
	channelID, ok := c.decodeChannelOp(payload)
	if !ok {
		return
	}

	if customErr := c.hub.Subscribe(ctx, c, channelID); customErr != nil {
		c.SendError(customErr)
	}
}

func (c *Conn) handleChannelLeave(payload json.RawMessage) {
	channelID, ok := c.decodeChannelOp(payload)
	if !ok {
		return
	}

	c.hub.Unsubscribe(c, channelID)
}

func (c *Conn) handleTyping(payload json.RawMessage, started bool) {
	channelID, ok := c.decodeChannelOp(payload)
	if !ok {
		return
	}

	if customErr := c.hub.Typing(c, channelID, started); customErr != nil {
		c.SendError(customErr)
	}
}

func (c *Conn) handlePresenceUpdate(payload json.RawMessage) {
	var p presenceOpPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		c.logger.Warn().Msg("Client sent invalid presence payload")
		return
	}

	if customErr := c.hub.UpdatePresence(c.u, p.Status); customErr != nil {
		c.SendError(customErr)
	}
}

// handlePing answers an app-level keepalive and extends the heartbeat window,
// so clients behind proxies that swallow protocol pongs stay alive too.
func (c *Conn) handlePing() {
	if err := c.sock.SetReadDeadline(time.Now().Add(c.hub.heartbeatWindow)); err != nil {
		c.logger.Warn().Err(err).Msg("Failed to extend read deadline on ping")
	}

	if err := c.sendEvent(Event{Kind: EventPong}); err != nil {
		c.logger.Warn().Err(err).Msg("Failed to queue pong")
	}
}
