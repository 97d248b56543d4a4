/*
Package chat contains the realtime core: connection lifecycle, presence tracking,
channel subscriptions, and event fan-out.

This file defines the SubscriptionRegistry, the in-memory mapping of fan-out
scope to the set of currently subscribed connections. The registry is never
persisted; it is rebuilt at each connection's join cost.
*/
package chat

import (
	"hash/fnv"
	"sync"
)

const subscriptionStripeCount = 32

// SubscriptionRegistry maps scope keys (see ChannelScope, CompanyScope) to the
// set of subscribed connections. Mutations and iteration for a given scope are
// serialized on that scope's stripe, which is what yields per-channel FIFO
// delivery: two publishes to the same scope can never interleave their target
// iteration.
type SubscriptionRegistry struct {
	stripes [subscriptionStripeCount]subscriptionStripe
}

type subscriptionStripe struct {
	mu     sync.Mutex
	scopes map[string]map[string]*Conn
}

// NewSubscriptionRegistry returns an empty registry.
func NewSubscriptionRegistry() *SubscriptionRegistry {
	r := &SubscriptionRegistry{}
	for i := range r.stripes {
		r.stripes[i].scopes = make(map[string]map[string]*Conn)
	}
	return r
}

func (r *SubscriptionRegistry) stripeFor(scope string) *subscriptionStripe {
	h := fnv.New32a()
	h.Write([]byte(scope))
	return &r.stripes[h.Sum32()%subscriptionStripeCount]
}

// Subscribe adds the connection to the scope's set. It reports whether the
// connection was newly added; a connection is never registered twice, so every
// event reaches it at most once.
func (r *SubscriptionRegistry) Subscribe(scope string, c *Conn) bool {
	s := r.stripeFor(scope)
	s.mu.Lock()
	defer s.mu.Unlock()

	set, ok := s.scopes[scope]
	if !ok {
		set = make(map[string]*Conn)
		s.scopes[scope] = set
	}

	if _, exists := set[c.ID()]; exists {
		return false
	}

	set[c.ID()] = c
	return true
}

// Unsubscribe removes the connection from the scope's set. A no-op when absent.
// Empty sets are dropped so abandoned channels do not leak map entries.
func (r *SubscriptionRegistry) Unsubscribe(scope, connID string) bool {
	s := r.stripeFor(scope)
	s.mu.Lock()
	defer s.mu.Unlock()

	set, ok := s.scopes[scope]
	if !ok {
		return false
	}

	if _, exists := set[connID]; !exists {
		return false
	}

	delete(set, connID)
	if len(set) == 0 {
		delete(s.scopes, scope)
	}
	return true
}

// ForEach invokes fn for every connection subscribed to the scope while holding
// the scope's stripe lock. fn must not call back into the registry for the same
// scope and must never block.
func (r *SubscriptionRegistry) ForEach(scope string, fn func(c *Conn)) {
	s := r.stripeFor(scope)
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, c := range s.scopes[scope] {
		fn(c)
	}
}

// Count returns the number of connections subscribed to the scope.
func (r *SubscriptionRegistry) Count(scope string) int {
	s := r.stripeFor(scope)
	s.mu.Lock()
	defer s.mu.Unlock()

	return len(s.scopes[scope])
}
