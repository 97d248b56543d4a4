/*
Package chat contains the realtime core: connection lifecycle, presence tracking,
channel subscriptions, and event fan-out.

This file defines the Hub, the process-wide coordinator. It owns the connection
table, drives the presence tracker and subscription registry, and implements the
fan-out engine: one published event reaches every connection subscribed to its
scope exactly once, in per-scope FIFO order, with per-target failures isolated.
*/
package chat

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"propchat/internal/app/store"
	"propchat/internal/app/user"
	"propchat/internal/pkg/errs"
	"propchat/internal/pkg/logx"
	"propchat/internal/pkg/metrics"
)

// Hub coordinates every live connection of this process. Presence and
// subscription state is process-local; multi-instance fan-out would need an
// external bus and is out of scope.
type Hub struct {
	presence *PresenceTracker
	subs     *SubscriptionRegistry

	authorizer    Authorizer
	presenceStore PresenceStore
	rec           metrics.Recorder

	// heartbeatWindow is the duration after which a silent connection is dead
	// (twice the expected client ping interval).
	heartbeatWindow time.Duration

	// mu protects the connection table.
	mu    sync.Mutex
	conns map[string]*Conn

	logger zerolog.Logger
}

// NewHub constructs a Hub with the given collaborators.
func NewHub(authorizer Authorizer, presenceStore PresenceStore, rec metrics.Recorder, heartbeatWindow time.Duration) *Hub {
	hubLogger := logx.Logger().With().Str("component", "hub").Logger()

	return &Hub{
		presence:        NewPresenceTracker(),
		subs:            NewSubscriptionRegistry(),
		authorizer:      authorizer,
		presenceStore:   presenceStore,
		rec:             rec,
		heartbeatWindow: heartbeatWindow,
		conns:           make(map[string]*Conn),
		logger:          hubLogger,
	}
}

// Presence exposes the tracker for read paths (REST member listings, tests).
func (h *Hub) Presence() *PresenceTracker { return h.presence }

// ConnCount returns the number of live connections.
func (h *Hub) ConnCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.conns)
}

// Register adds an authenticated connection to the hub: it joins the company
// scope, bumps the user's presence reference count, and announces a presence
// change when the user transitions to online. The caller starts the pumps.
func (h *Hub) Register(c *Conn) {
	h.mu.Lock()
	h.conns[c.id] = c
	h.mu.Unlock()

	h.rec.ConnectionOpened()

	if c.u.CompanyID != "" {
		h.subs.Subscribe(CompanyScope(c.u.CompanyID), c)
	}

	before := h.presence.Status(c.u.ID)
	if before == StatusOffline {
		h.restoreOverride(c.u.ID)
	}

	status, _ := h.presence.RecordConnect(c.u.ID, c.id)
	if status != before {
		h.announcePresence(c.u, status)
	}

	// A teardown that ran between the table insert and the joins above has
	// already reconciled; undo what it could not see.
	if c.isClosed() {
		h.mu.Lock()
		delete(h.conns, c.id)
		h.mu.Unlock()

		if c.u.CompanyID != "" {
			h.subs.Unsubscribe(CompanyScope(c.u.CompanyID), c.id)
		}
		if status, changed := h.presence.RecordDisconnect(c.u.ID, c.id); changed {
			h.announcePresence(c.u, status)
		}
		c.shutdownQueue()

		h.logger.Info().
			Str("conn_id", c.id).
			Str("user_id", c.u.ID).
			Msg("Connection torn down during registration")
		return
	}

	h.logger.Info().
		Str("conn_id", c.id).
		Str("user_id", c.u.ID).
		Msg("Connection registered")
}

// Unregister removes a connection and reconciles every registry it touched:
// channel subscriptions (announcing channel:user_left for each), the company
// scope, and the presence reference count. Idempotent: a second call for the
// same connection is a no-op, so reference counts are never double-decremented.
func (h *Hub) Unregister(c *Conn, reason string) {
	h.mu.Lock()
	cur, ok := h.conns[c.id]
	if !ok || cur != c {
		h.mu.Unlock()
		return
	}
	delete(h.conns, c.id)
	h.mu.Unlock()

	// Closed before reconciliation: any join dispatched after this point sees
	// the flag and backs out its own registry entry.
	c.markClosed()

	h.rec.ConnectionClosed()

	for _, channelID := range c.channelSnapshot() {
		c.removeChannel(channelID)
		h.subs.Unsubscribe(ChannelScope(channelID), c.id)
		h.publish(ChannelScope(channelID), c.id, Event{
			Kind:      EventUserLeft,
			ChannelID: channelID,
			Payload:   MemberLeftPayload{ChannelID: channelID, UserID: c.u.ID},
		})
	}

	if c.u.CompanyID != "" {
		h.subs.Unsubscribe(CompanyScope(c.u.CompanyID), c.id)
	}

	status, changed := h.presence.RecordDisconnect(c.u.ID, c.id)
	if changed {
		h.announcePresence(c.u, status)
	}

	c.shutdownQueue()

	h.logger.Info().
		Str("conn_id", c.id).
		Str("user_id", c.u.ID).
		Str("reason", reason).
		Msg("Connection unregistered")
}

// Subscribe adds the connection to a channel's active set after authorization.
// A NotAuthorized refusal leaves the channel's set unchanged and the connection
// alive. Subscribing twice is a no-op.
func (h *Hub) Subscribe(ctx context.Context, c *Conn, channelID string) *errs.CustomError {
	if customErr := h.authorizer.CanSubscribe(ctx, channelID, c.u); customErr != nil {
		return customErr
	}

	if !h.subs.Subscribe(ChannelScope(channelID), c) {
		return nil
	}
	if !c.addChannel(channelID) {
		// Teardown won the race: Unregister's snapshot did not see this
		// channel, so the registry entry is reclaimed here.
		h.subs.Unsubscribe(ChannelScope(channelID), c.id)
		return nil
	}

	h.publish(ChannelScope(channelID), c.id, Event{
		Kind:      EventUserJoined,
		ChannelID: channelID,
		Payload:   MemberJoinedPayload{ChannelID: channelID, User: c.u.Public()},
	})

	return nil
}

// Unsubscribe removes the connection from a channel's active set. A no-op when
// the connection never subscribed.
func (h *Hub) Unsubscribe(c *Conn, channelID string) {
	if !c.removeChannel(channelID) {
		return
	}
	h.subs.Unsubscribe(ChannelScope(channelID), c.id)

	h.publish(ChannelScope(channelID), c.id, Event{
		Kind:      EventUserLeft,
		ChannelID: channelID,
		Payload:   MemberLeftPayload{ChannelID: channelID, UserID: c.u.ID},
	})
}

// Typing relays a typing indicator to the channel's other subscribers. The
// sender must itself be subscribed; indicators are transient and never persisted.
func (h *Hub) Typing(c *Conn, channelID string, started bool) *errs.CustomError {
	if !c.inChannel(channelID) {
		return errs.NewError(errs.ErrNotAuthorized)
	}

	ev := Event{ChannelID: channelID}
	if started {
		ev.Kind = EventUserTyping
		ev.Payload = TypingPayload{ChannelID: channelID, User: c.u.Public()}
	} else {
		ev.Kind = EventUserStoppedTyping
		ev.Payload = StoppedTypingPayload{ChannelID: channelID, UserID: c.u.ID}
	}

	h.publish(ChannelScope(channelID), c.id, ev)
	return nil
}

// UpdatePresence applies an explicit status override for the user, whether it
// arrives over the socket or REST PUT /presence. The tracker enforces that
// "online" cannot be claimed without a live connection.
func (h *Hub) UpdatePresence(u user.User, status Status) *errs.CustomError {
	if !ValidStatus(status) {
		return errs.NewError(errs.ErrPresenceStatusInvalid)
	}

	effective, changed := h.presence.SetStatus(u.ID, status)
	if changed {
		h.announcePresence(u, effective)
	}

	return nil
}

// Logout ends every chat session of the user: each of their live connections
// is unregistered and their presence record is forgotten, dropping any sticky
// status override a plain disconnect would have preserved. If the override was
// the only thing keeping the user visible, the offline transition is announced.
func (h *Hub) Logout(u user.User) {
	h.mu.Lock()
	var targets []*Conn
	for _, c := range h.conns {
		if c.u.ID == u.ID {
			targets = append(targets, c)
		}
	}
	h.mu.Unlock()

	for _, c := range targets {
		h.Unregister(c, "logout")
	}

	lingering := h.presence.Status(u.ID) != StatusOffline
	h.presence.Forget(u.ID)
	if lingering {
		h.announcePresence(u, StatusOffline)
	}

	h.logger.Info().
		Str("user_id", u.ID).
		Int("connections_closed", len(targets)).
		Msg("User logged out")
}

// AnnounceMessage publishes message:new for a durably stored message. Callers
// must only invoke this after the persistence write succeeded; a failed write
// must surface an error to the author and announce nothing.
func (h *Hub) AnnounceMessage(m store.Message) {
	h.publish(ChannelScope(m.ChannelID), "", Event{
		Kind:      EventMessageNew,
		ChannelID: m.ChannelID,
		Payload:   m,
	})
}

// AnnounceMessageUpdate publishes message:updated for a durably edited message.
func (h *Hub) AnnounceMessageUpdate(m store.Message) {
	h.publish(ChannelScope(m.ChannelID), "", Event{
		Kind:      EventMessageUpdated,
		ChannelID: m.ChannelID,
		Payload:   m,
	})
}

// AnnounceMessageDelete publishes message:deleted after a durable delete.
func (h *Hub) AnnounceMessageDelete(channelID, messageID string) {
	h.publish(ChannelScope(channelID), "", Event{
		Kind:      EventMessageDeleted,
		ChannelID: channelID,
		Payload:   MessageDeletedPayload{ID: messageID, ChannelID: channelID},
	})
}

// announcePresence persists the presence snapshot best-effort and publishes the
// change to the user's company scope. Presence events are not durability-gated;
// a failed upsert is logged and the announcement still goes out.
// restoreOverride re-applies a persisted away/busy override when the user's
// first connection arrives, so a manual status survives process restarts.
// "online" and "offline" snapshots restore nothing: the reference count alone
// decides those.
func (h *Hub) restoreOverride(userID string) {
	if h.presenceStore == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	persisted, err := h.presenceStore.GetPresenceStatus(ctx, userID)
	if err != nil {
		h.logger.Warn().Err(err).Str("user_id", userID).Msg("Failed to load persisted presence")
		h.rec.PersistenceFailure("presence_load")
		return
	}

	if s := Status(persisted); s == StatusAway || s == StatusBusy {
		h.presence.SetStatus(userID, s)
	}
}

func (h *Hub) announcePresence(u user.User, status Status) {
	lastActive := time.Now().UTC()

	if h.presenceStore != nil {
		ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
		defer cancel()

		persisted, err := h.presenceStore.UpsertPresence(ctx, u.ID, string(status))
		if err != nil {
			h.logger.Error().Err(err).Str("user_id", u.ID).Msg("Failed to persist presence snapshot")
			h.rec.PersistenceFailure("presence")
		} else {
			lastActive = persisted
		}
	}

	if u.CompanyID == "" {
		return
	}

	h.publish(CompanyScope(u.CompanyID), "", Event{
		Kind: EventUserPresence,
		Payload: PresencePayload{
			UserID:     u.ID,
			Status:     status,
			LastActive: lastActive,
		},
	})
}

// publish delivers one event to every connection subscribed to the scope,
// skipping excludeConnID (empty means deliver to all). The scope's stripe lock
// is held across the iteration, so publishes to the same scope are serialized
// and every subscriber observes them in the same order. Delivery to a target is
// non-blocking: a full or closed queue drops the event for that target only and
// schedules the connection for teardown. Returns the number of deliveries.
func (h *Hub) publish(scope, excludeConnID string, ev Event) int {
	frame, err := json.Marshal(ev)
	if err != nil {
		h.logger.Error().Err(err).Str("kind", string(ev.Kind)).Msg("Error marshaling event for fan-out")
		return 0
	}

	start := time.Now()
	delivered := 0
	var stale []*Conn

	h.subs.ForEach(scope, func(c *Conn) {
		if c.id == excludeConnID {
			return
		}

		if c.trySend(frame) {
			delivered++
			return
		}

		h.rec.DeliveryDropped()
		h.logger.Warn().
			Str("conn_id", c.id).
			Str("kind", string(ev.Kind)).
			Msg("Delivery dropped: send queue full or closed")
		stale = append(stale, c)
	})

	h.rec.EventPublished(string(ev.Kind))
	h.rec.FanoutDuration(time.Since(start))

	// A connection that cannot drain its queue is dead weight; tear it down
	// outside the stripe lock.
	for _, c := range stale {
		go h.Unregister(c, "send queue stalled")
	}

	return delivered
}

// Shutdown tears down every live connection. Used during graceful server stop.
func (h *Hub) Shutdown() {
	h.mu.Lock()
	conns := make([]*Conn, 0, len(h.conns))
	for _, c := range h.conns {
		conns = append(conns, c)
	}
	h.mu.Unlock()

	for _, c := range conns {
		h.Unregister(c, "server shutdown")
	}

	h.logger.Info().Int("connections", len(conns)).Msg("Hub shutdown complete")
}
