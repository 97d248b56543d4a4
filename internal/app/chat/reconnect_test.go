package chat

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestReconnector_BackoffGrowsAndCaps(t *testing.T) {
	req := require.New(t)
	r := NewReconnector(time.Second, 4*time.Second, 10)

	expected := []time.Duration{
		0,
		time.Second,
		2 * time.Second,
		4 * time.Second,
		4 * time.Second,
	}

	for i, want := range expected {
		delay, ok := r.Begin()
		req.True(ok, "attempt %d", i)
		req.Equal(want, delay, "attempt %d", i)
		req.Equal(StateConnecting, r.State())
		r.Disconnected()
	}
}

func TestReconnector_BudgetExhausts(t *testing.T) {
	req := require.New(t)
	r := NewReconnector(time.Millisecond, time.Second, 3)

	for i := 0; i < 3; i++ {
		_, ok := r.Begin()
		req.True(ok)
		r.Disconnected()
	}

	_, ok := r.Begin()
	req.False(ok)
	req.Equal(StateDisconnected, r.State())
}

func TestReconnector_ConnectedResetsBudget(t *testing.T) {
	req := require.New(t)
	r := NewReconnector(time.Second, 30*time.Second, 5)

	r.Begin()
	r.Disconnected()
	r.Begin()
	r.Disconnected()

	// When a dial finally succeeds
	r.Begin()
	r.Connected()
	req.Equal(StateConnected, r.State())
	r.Disconnected()

	// Then the next attempt dials immediately again
	delay, ok := r.Begin()
	req.True(ok)
	req.Equal(time.Duration(0), delay)
}

func TestReconnector_RunStopsOnDeliberateClose(t *testing.T) {
	req := require.New(t)
	r := NewReconnector(time.Millisecond, time.Millisecond, 5)

	dials := 0
	err := r.Run(context.Background(), func(ctx context.Context) error {
		dials++
		r.Connected()
		return nil
	})

	req.NoError(err)
	req.Equal(1, dials)
	req.Equal(StateDisconnected, r.State())
}

func TestReconnector_RunExhaustsBudgetOnRepeatedFailure(t *testing.T) {
	req := require.New(t)
	r := NewReconnector(time.Millisecond, 2*time.Millisecond, 3)

	dials := 0
	err := r.Run(context.Background(), func(ctx context.Context) error {
		dials++
		return errors.New("connection refused")
	})

	req.ErrorIs(err, ErrMaxAttempts)
	req.Equal(3, dials)
}

func TestReconnector_RunHonorsCancellation(t *testing.T) {
	req := require.New(t)
	r := NewReconnector(time.Hour, time.Hour, 5)

	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() {
		done <- r.Run(ctx, func(ctx context.Context) error {
			return errors.New("connection refused")
		})
	}()

	// The second attempt sits in its backoff wait; cancelling must unblock it
	time.Sleep(10 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		req.ErrorIs(err, context.Canceled)
	case <-time.After(time.Second):
		req.FailNow("Run did not return after cancellation")
	}

	req.Equal(StateDisconnected, r.State())
}
