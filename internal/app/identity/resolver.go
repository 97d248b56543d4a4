/*
Package identity maps inbound connection credentials to stable user identities.

A credential is validated exactly once, at connect time. Rejected credentials
surface an authentication error to the caller and never produce a connection.
*/
package identity

import (
	"context"
	"errors"

	"propchat/internal/app/store"
	"propchat/internal/app/user"
	"propchat/internal/pkg/auth/jwt"
	"propchat/internal/pkg/errs"
	"propchat/internal/pkg/logx"
)

// AccountSource is the persistence lookup the resolver needs. Satisfied by *store.Store.
type AccountSource interface {
	GetAccount(ctx context.Context, userID string) (store.Account, error)
}

// Resolver validates a bearer credential and returns the user identity behind it.
type Resolver interface {
	Resolve(ctx context.Context, token string) (user.User, *errs.CustomError)
}

// JWTResolver resolves HMAC-signed bearer tokens against the user table.
type JWTResolver struct {
	secret   string
	accounts AccountSource
}

// NewJWTResolver constructs a resolver for the given signing secret and account source.
func NewJWTResolver(secret string, accounts AccountSource) *JWTResolver {
	return &JWTResolver{
		secret:   secret,
		accounts: accounts,
	}
}

// Resolve validates the token signature and expiry, loads the subject's account,
// and checks that the account is active. Any failure is an authentication error.
func (r *JWTResolver) Resolve(ctx context.Context, token string) (user.User, *errs.CustomError) {
	if token == "" {
		return user.User{}, errs.NewError(errs.ErrAuthTokenMissing)
	}

	payload, err := jwt.ParseToken(token, r.secret)
	if err != nil {
		logx.Warn("Credential rejected: token validation failed", "error", err)
		return user.User{}, errs.NewError(errs.ErrAuthTokenInvalid)
	}

	account, err := r.accounts.GetAccount(ctx, payload.ID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return user.User{}, errs.NewError(errs.ErrAuthUserNotFound)
		}
		logx.Error(err, "Credential rejected: account lookup failed", "user_id", payload.ID)
		return user.User{}, errs.NewError(errs.ErrUnknown)
	}

	if account.Status != "active" {
		return user.User{}, errs.NewError(errs.ErrAuthAccountInactive)
	}

	return account.User, nil
}
