package chat

import (
	"testing"

	"github.com/stretchr/testify/require"

	"propchat/internal/app/user"
)

func newTestConn(userID string) *Conn {
	return NewConn(nil, nil, user.User{ID: userID, FirstName: "Test", CompanyID: "comp-1"})
}

func TestSubscriptionRegistry_SubscribeOnce(t *testing.T) {
	req := require.New(t)
	registry := NewSubscriptionRegistry()
	c := newTestConn("u1")
	scope := ChannelScope("general")

	// When the connection subscribes
	req.True(registry.Subscribe(scope, c))
	req.Equal(1, registry.Count(scope))

	// Then a repeated subscribe never adds a second entry
	req.False(registry.Subscribe(scope, c))
	req.Equal(1, registry.Count(scope))
}

func TestSubscriptionRegistry_UnsubscribeDropsEmptyScope(t *testing.T) {
	req := require.New(t)
	registry := NewSubscriptionRegistry()
	c1 := newTestConn("u1")
	c2 := newTestConn("u2")
	scope := ChannelScope("general")

	registry.Subscribe(scope, c1)
	registry.Subscribe(scope, c2)
	req.Equal(2, registry.Count(scope))

	req.True(registry.Unsubscribe(scope, c1.ID()))
	req.Equal(1, registry.Count(scope))

	// Unsubscribing a connection that already left is a no-op
	req.False(registry.Unsubscribe(scope, c1.ID()))

	req.True(registry.Unsubscribe(scope, c2.ID()))
	req.Equal(0, registry.Count(scope))
}

func TestSubscriptionRegistry_ForEachVisitsEverySubscriber(t *testing.T) {
	req := require.New(t)
	registry := NewSubscriptionRegistry()
	scope := ChannelScope("general")
	other := ChannelScope("random")

	c1 := newTestConn("u1")
	c2 := newTestConn("u2")
	c3 := newTestConn("u3")

	registry.Subscribe(scope, c1)
	registry.Subscribe(scope, c2)
	registry.Subscribe(other, c3)

	visited := make(map[string]bool)
	registry.ForEach(scope, func(c *Conn) {
		visited[c.ID()] = true
	})

	// Then only the scope's subscribers are visited, each exactly once
	req.Len(visited, 2)
	req.True(visited[c1.ID()])
	req.True(visited[c2.ID()])
	req.False(visited[c3.ID()])
}

func TestSubscriptionRegistry_ScopesAreIndependent(t *testing.T) {
	req := require.New(t)
	registry := NewSubscriptionRegistry()
	c := newTestConn("u1")

	registry.Subscribe(ChannelScope("general"), c)
	registry.Subscribe(CompanyScope("comp-1"), c)

	req.Equal(1, registry.Count(ChannelScope("general")))
	req.Equal(1, registry.Count(CompanyScope("comp-1")))

	registry.Unsubscribe(ChannelScope("general"), c.ID())
	req.Equal(0, registry.Count(ChannelScope("general")))
	req.Equal(1, registry.Count(CompanyScope("comp-1")))
}
