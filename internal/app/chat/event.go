/*
Package chat contains the realtime core: connection lifecycle, presence tracking,
channel subscriptions, and event fan-out.

This file defines the domain event envelope and its payload types. An event is
only ever constructed after its underlying state change has been durably
committed (message events) or locally applied (presence and typing events).
*/
package chat

import (
	"time"

	"propchat/internal/app/user"
)

// EventKind identifies a server-to-client event type on the wire.
type EventKind string

const (
	EventMessageNew        EventKind = "message:new"
	EventMessageUpdated    EventKind = "message:updated"
	EventMessageDeleted    EventKind = "message:deleted"
	EventUserPresence      EventKind = "user:presence"
	EventUserTyping        EventKind = "user:typing"
	EventUserStoppedTyping EventKind = "user:stopped-typing"
	EventUserJoined        EventKind = "channel:user_joined"
	EventUserLeft          EventKind = "channel:user_left"
	EventPong              EventKind = "pong"
	EventError             EventKind = "error"
)

// Event is the transient envelope delivered to subscribed connections.
type Event struct {
	Kind      EventKind `json:"event"`
	ChannelID string    `json:"channelId,omitempty"`
	Payload   any       `json:"payload,omitempty"`
}

// Status is a user's live connectivity status.
type Status string

const (
	StatusOnline  Status = "online"
	StatusAway    Status = "away"
	StatusBusy    Status = "busy"
	StatusOffline Status = "offline"
)

// ValidStatus reports whether s is one of the four presence states.
func ValidStatus(s Status) bool {
	switch s {
	case StatusOnline, StatusAway, StatusBusy, StatusOffline:
		return true
	}
	return false
}

// ChannelScope is the fan-out scope key for a channel's subscribers.
func ChannelScope(channelID string) string {
	return "channel:" + channelID
}

// CompanyScope is the fan-out scope key every connection of a company joins
// implicitly at connect time. Presence events are delivered here.
func CompanyScope(companyID string) string {
	return "company:" + companyID
}

// PresencePayload announces a user's presence change.
type PresencePayload struct {
	UserID     string    `json:"user_id"`
	Status     Status    `json:"status"`
	LastActive time.Time `json:"last_active"`
}

// TypingPayload announces that a user started typing in a channel.
type TypingPayload struct {
	ChannelID string    `json:"channelId"`
	User      user.User `json:"user"`
}

// StoppedTypingPayload announces that a user stopped typing in a channel.
type StoppedTypingPayload struct {
	ChannelID string `json:"channelId"`
	UserID    string `json:"userId"`
}

// MemberJoinedPayload announces a user subscribing to a channel.
type MemberJoinedPayload struct {
	ChannelID string    `json:"channelId"`
	User      user.User `json:"user"`
}

// MemberLeftPayload announces a user leaving a channel.
type MemberLeftPayload struct {
	ChannelID string `json:"channelId"`
	UserID    string `json:"userId"`
}

// MessageDeletedPayload announces a message removal.
type MessageDeletedPayload struct {
	ID        string `json:"id"`
	ChannelID string `json:"channelId"`
}

// ErrorPayload carries an operation error back to the offending connection only.
type ErrorPayload struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}
