/*
Package chat contains the realtime core: connection lifecycle, presence tracking,
channel subscriptions, and event fan-out.

This file defines the contracts the hub holds against its external collaborators
(channel authorization and durable presence), plus the store-backed authorizer.
*/
package chat

import (
	"context"
	"errors"
	"time"

	"propchat/internal/app/store"
	"propchat/internal/app/user"
	"propchat/internal/pkg/errs"
)

// Authorizer decides whether a user may subscribe to a channel.
type Authorizer interface {
	CanSubscribe(ctx context.Context, channelID string, u user.User) *errs.CustomError
}

// PresenceStore persists presence snapshots so last-active reporting survives
// restarts. Satisfied by *store.Store.
type PresenceStore interface {
	UpsertPresence(ctx context.Context, userID, status string) (time.Time, error)
	GetPresenceStatus(ctx context.Context, userID string) (string, error)
}

// ChannelDirectory is the channel/membership lookup surface the authorizer
// needs. Satisfied by *store.Store.
type ChannelDirectory interface {
	GetChannel(ctx context.Context, channelID string) (store.Channel, error)
	IsChannelMember(ctx context.Context, channelID, userID string) (bool, error)
}

// StoreAuthorizer authorizes channel subscriptions against the persistence layer:
// the channel must belong to the user's company, and private channels require an
// explicit membership row.
type StoreAuthorizer struct {
	dir ChannelDirectory
}

// NewStoreAuthorizer constructs the authorizer over the given directory.
func NewStoreAuthorizer(dir ChannelDirectory) *StoreAuthorizer {
	return &StoreAuthorizer{dir: dir}
}

// CanSubscribe implements Authorizer.
func (a *StoreAuthorizer) CanSubscribe(ctx context.Context, channelID string, u user.User) *errs.CustomError {
	ch, err := a.dir.GetChannel(ctx, channelID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return errs.NewError(errs.ErrChannelNotFound)
		}
		return errs.NewError(errs.ErrUnknown, err)
	}

	if u.CompanyID == "" || ch.CompanyID != u.CompanyID {
		return errs.NewError(errs.ErrNotAuthorized)
	}

	if ch.IsPrivate {
		isMember, err := a.dir.IsChannelMember(ctx, channelID, u.ID)
		if err != nil {
			return errs.NewError(errs.ErrUnknown, err)
		}
		if !isMember {
			return errs.NewError(errs.ErrNotAuthorized)
		}
	}

	return nil
}
