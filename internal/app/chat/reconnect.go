/*
Package chat contains the realtime core: connection lifecycle, presence tracking,
channel subscriptions, and event fan-out.

This file defines the reconnection state machine used by Go clients of the
realtime endpoint. Reconnection is expressed as an explicit finite-state machine
with exponential backoff and a bounded attempt count, so cancellation and
max-attempts are structurally enforced rather than buried in retry loops.
*/
package chat

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ConnState is a client connection lifecycle state.
type ConnState int

const (
	StateDisconnected ConnState = iota
	StateConnecting
	StateConnected
)

// String implements fmt.Stringer.
func (s ConnState) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	}
	return "unknown"
}

// ErrMaxAttempts is returned when the bounded retry budget is exhausted. The
// caller must surface a hard failure to its user rather than retry silently.
var ErrMaxAttempts = errors.New("chat: reconnect attempts exhausted")

const (
	// DefaultReconnectBase is the first backoff delay.
	DefaultReconnectBase = 1 * time.Second

	// DefaultReconnectCap bounds a single backoff delay.
	DefaultReconnectCap = 30 * time.Second

	// DefaultReconnectAttempts bounds consecutive failed dials.
	DefaultReconnectAttempts = 5
)

// Reconnector drives the Disconnected -> Connecting -> Connected cycle with
// exponential backoff. Safe for use from one goroutine at a time; state reads
// from other goroutines are synchronized.
type Reconnector struct {
	base        time.Duration
	cap         time.Duration
	maxAttempts int

	mu      sync.Mutex
	state   ConnState
	attempt int
}

// NewReconnector constructs a Reconnector with the given backoff policy. Zero
// values select the package defaults.
func NewReconnector(base, capDelay time.Duration, maxAttempts int) *Reconnector {
	if base <= 0 {
		base = DefaultReconnectBase
	}
	if capDelay <= 0 {
		capDelay = DefaultReconnectCap
	}
	if maxAttempts <= 0 {
		maxAttempts = DefaultReconnectAttempts
	}

	return &Reconnector{
		base:        base,
		cap:         capDelay,
		maxAttempts: maxAttempts,
	}
}

// State returns the current lifecycle state.
func (r *Reconnector) State() ConnState {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// Begin transitions to Connecting and returns the delay to wait before dialing.
// The first attempt after a healthy connection dials immediately; each failed
// attempt doubles the delay up to the cap. ok is false once the attempt budget
// is exhausted, at which point the machine stays Disconnected.
func (r *Reconnector) Begin() (delay time.Duration, ok bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.attempt >= r.maxAttempts {
		r.state = StateDisconnected
		return 0, false
	}

	if r.attempt > 0 {
		delay = r.base << (r.attempt - 1)
		if delay > r.cap {
			delay = r.cap
		}
	}

	r.attempt++
	r.state = StateConnecting
	return delay, true
}

// Connected marks a successful dial: the machine enters Connected and the
// attempt budget resets.
func (r *Reconnector) Connected() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.state = StateConnected
	r.attempt = 0
}

// Disconnected marks the connection as lost. The attempt counter is preserved
// so consecutive failures keep growing the backoff.
func (r *Reconnector) Disconnected() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.state = StateDisconnected
}

// Run drives the machine against a dial function. dial establishes a connection
// and blocks until it ends, returning nil for a deliberate close (Run stops) or
// an error for an abnormal end (Run backs off and retries). Run returns
// ErrMaxAttempts when the budget is exhausted, or the context error on cancel.
func (r *Reconnector) Run(ctx context.Context, dial func(ctx context.Context) error) error {
	for {
		delay, ok := r.Begin()
		if !ok {
			return ErrMaxAttempts
		}

		if delay > 0 {
			timer := time.NewTimer(delay)
			select {
			case <-ctx.Done():
				timer.Stop()
				r.Disconnected()
				return ctx.Err()
			case <-timer.C:
			}
		}

		if err := ctx.Err(); err != nil {
			r.Disconnected()
			return err
		}

		err := dial(ctx)

		if err == nil {
			r.Disconnected()
			return nil
		}

		// The dial may have succeeded and run for a while before failing;
		// Connected() inside dial resets the budget in that case.
		r.Disconnected()
	}
}
