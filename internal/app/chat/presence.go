/*
Package chat contains the realtime core: connection lifecycle, presence tracking,
channel subscriptions, and event fan-out.

This file defines the PresenceTracker, the in-process source of truth for user
connectivity. A user's status is derived from a reference-counted connection set:
"online" can only ever be observed while at least one live connection exists.
*/
package chat

import (
	"hash/fnv"
	"sync"
)

// presenceStripeCount sizes the lock striping. Mutations for a given user always
// land on the same stripe, which linearizes concurrent connect/disconnect for
// that user while letting unrelated users proceed in parallel.
const presenceStripeCount = 32

// PresenceTracker maps user identities to connection state.
type PresenceTracker struct {
	stripes [presenceStripeCount]presenceStripe
}

type presenceStripe struct {
	mu    sync.Mutex
	users map[string]*presenceEntry
}

type presenceEntry struct {
	// conns is the set of live connection ids for this user.
	conns map[string]struct{}

	// override is the last explicitly requested status, empty when the user
	// never overrode the derived status. "online" is never stored here; it is
	// always derived from connection-set non-emptiness.
	override Status
}

// NewPresenceTracker returns an empty tracker.
func NewPresenceTracker() *PresenceTracker {
	t := &PresenceTracker{}
	for i := range t.stripes {
		t.stripes[i].users = make(map[string]*presenceEntry)
	}
	return t
}

func (t *PresenceTracker) stripeFor(userID string) *presenceStripe {
	h := fnv.New32a()
	h.Write([]byte(userID))
	return &t.stripes[h.Sum32()%presenceStripeCount]
}

// effective derives the externally visible status from the entry state.
func (e *presenceEntry) effective() Status {
	if len(e.conns) > 0 {
		if e.override != "" {
			return e.override
		}
		return StatusOnline
	}

	if e.override == StatusAway || e.override == StatusBusy {
		return e.override
	}
	return StatusOffline
}

// RecordConnect adds connID to the user's connection set. It returns the user's
// effective status after the mutation and whether it changed.
func (t *PresenceTracker) RecordConnect(userID, connID string) (Status, bool) {
	s := t.stripeFor(userID)
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.users[userID]
	if !ok {
		entry = &presenceEntry{conns: make(map[string]struct{})}
		s.users[userID] = entry
	}

	before := entry.effective()
	entry.conns[connID] = struct{}{}
	after := entry.effective()

	return after, before != after
}

// RecordDisconnect removes connID from the user's connection set. Removing an
// unknown connection is a no-op, which makes disconnect idempotent: a second
// call can never double-decrement the reference count.
func (t *PresenceTracker) RecordDisconnect(userID, connID string) (Status, bool) {
	s := t.stripeFor(userID)
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.users[userID]
	if !ok {
		return StatusOffline, false
	}

	if _, live := entry.conns[connID]; !live {
		return entry.effective(), false
	}

	before := entry.effective()
	delete(entry.conns, connID)
	after := entry.effective()

	return after, before != after
}

// SetStatus applies an explicit status override. "online" is only accepted while
// at least one connection is live (it clears the override so the derived status
// applies); a user with zero connections cannot raise themselves to online.
func (t *PresenceTracker) SetStatus(userID string, status Status) (Status, bool) {
	s := t.stripeFor(userID)
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.users[userID]
	if !ok {
		entry = &presenceEntry{conns: make(map[string]struct{})}
		s.users[userID] = entry
	}

	before := entry.effective()

	if status == StatusOnline {
		if len(entry.conns) == 0 {
			return before, false
		}
		entry.override = ""
	} else {
		entry.override = status
	}

	after := entry.effective()
	return after, before != after
}

// Status returns the user's current effective status.
func (t *PresenceTracker) Status(userID string) Status {
	s := t.stripeFor(userID)
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.users[userID]
	if !ok {
		return StatusOffline
	}
	return entry.effective()
}

// Connections returns the number of live connections for the user.
func (t *PresenceTracker) Connections(userID string) int {
	s := t.stripeFor(userID)
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.users[userID]
	if !ok {
		return 0
	}
	return len(entry.conns)
}

// Forget removes the user's presence record entirely. Only called on explicit
// logout; a plain disconnect keeps the record so the override survives.
func (t *PresenceTracker) Forget(userID string) {
	s := t.stripeFor(userID)
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.users, userID)
}
