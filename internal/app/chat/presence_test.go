package chat

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPresenceTracker_OnlineOnlyWhileConnected(t *testing.T) {
	req := require.New(t)
	tracker := NewPresenceTracker()

	// Given a user nobody has seen
	req.Equal(StatusOffline, tracker.Status("u1"))

	// When the first connection arrives
	status, changed := tracker.RecordConnect("u1", "c1")

	// Then the user transitions to online
	req.True(changed)
	req.Equal(StatusOnline, status)
	req.Equal(1, tracker.Connections("u1"))

	// When a second connection for the same user arrives
	status, changed = tracker.RecordConnect("u1", "c2")

	// Then nothing changes externally
	req.False(changed)
	req.Equal(StatusOnline, status)
	req.Equal(2, tracker.Connections("u1"))

	// When one connection drops
	status, changed = tracker.RecordDisconnect("u1", "c1")

	// Then the user stays online
	req.False(changed)
	req.Equal(StatusOnline, status)

	// When the last connection drops
	status, changed = tracker.RecordDisconnect("u1", "c2")

	// Then the user is offline
	req.True(changed)
	req.Equal(StatusOffline, status)
	req.Equal(0, tracker.Connections("u1"))
}

func TestPresenceTracker_DisconnectIsIdempotent(t *testing.T) {
	req := require.New(t)
	tracker := NewPresenceTracker()

	tracker.RecordConnect("u1", "c1")
	tracker.RecordConnect("u1", "c2")

	// When the same connection disconnects twice
	_, changed := tracker.RecordDisconnect("u1", "c1")
	req.False(changed)
	_, changed = tracker.RecordDisconnect("u1", "c1")

	// Then the second call never double-decrements
	req.False(changed)
	req.Equal(1, tracker.Connections("u1"))
	req.Equal(StatusOnline, tracker.Status("u1"))

	// And disconnecting a user the tracker never saw is a no-op
	status, changed := tracker.RecordDisconnect("ghost", "c9")
	req.False(changed)
	req.Equal(StatusOffline, status)
}

func TestPresenceTracker_OverrideWhileConnected(t *testing.T) {
	req := require.New(t)
	tracker := NewPresenceTracker()

	tracker.RecordConnect("u1", "c1")

	// When the user sets themselves busy
	status, changed := tracker.SetStatus("u1", StatusBusy)
	req.True(changed)
	req.Equal(StatusBusy, status)

	// Then a second connection does not reset the override
	_, changed = tracker.RecordConnect("u1", "c2")
	req.False(changed)
	req.Equal(StatusBusy, tracker.Status("u1"))

	// When the user goes back online
	status, changed = tracker.SetStatus("u1", StatusOnline)
	req.True(changed)
	req.Equal(StatusOnline, status)
}

func TestPresenceTracker_OnlineNotClaimableWithoutConnection(t *testing.T) {
	req := require.New(t)
	tracker := NewPresenceTracker()

	// When a disconnected user claims online
	status, changed := tracker.SetStatus("u1", StatusOnline)

	// Then the claim is refused
	req.False(changed)
	req.Equal(StatusOffline, status)
	req.Equal(StatusOffline, tracker.Status("u1"))
}

func TestPresenceTracker_AwayOverrideSurvivesDisconnect(t *testing.T) {
	req := require.New(t)
	tracker := NewPresenceTracker()

	tracker.RecordConnect("u1", "c1")
	tracker.SetStatus("u1", StatusAway)

	// When the last connection drops
	status, changed := tracker.RecordDisconnect("u1", "c1")

	// Then the away override is still visible
	req.False(changed)
	req.Equal(StatusAway, status)

	// And an explicit logout clears the record entirely
	tracker.Forget("u1")
	req.Equal(StatusOffline, tracker.Status("u1"))
}

func TestPresenceTracker_ConcurrentConnectDisconnect(t *testing.T) {
	req := require.New(t)
	tracker := NewPresenceTracker()

	const workers = 16

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			connID := fmt.Sprintf("c%d", n)
			tracker.RecordConnect("u1", connID)
			tracker.RecordDisconnect("u1", connID)
		}(i)
	}
	wg.Wait()

	// Then the reference count is balanced
	req.Equal(0, tracker.Connections("u1"))
	req.Equal(StatusOffline, tracker.Status("u1"))
}
