package identity

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"propchat/internal/app/store"
	"propchat/internal/app/user"
	"propchat/internal/pkg/auth/jwt"
	"propchat/internal/pkg/errs"
)

const testSecret = "test-secret"

type fakeAccounts struct {
	accounts map[string]store.Account
}

func (f *fakeAccounts) GetAccount(_ context.Context, userID string) (store.Account, error) {
	account, ok := f.accounts[userID]
	if !ok {
		return store.Account{}, store.ErrNotFound
	}
	return account, nil
}

func signedToken(t *testing.T, userID string, duration time.Duration) string {
	t.Helper()

	token, err := jwt.GenerateToken(&jwt.Payload{ID: userID}, testSecret, duration)
	require.NoError(t, err)
	return token
}

func TestJWTResolver_ResolveActiveAccount(t *testing.T) {
	req := require.New(t)

	accounts := &fakeAccounts{accounts: map[string]store.Account{
		"u1": {
			User:   user.User{ID: "u1", FirstName: "Alice", CompanyID: "comp-1"},
			Status: "active",
		},
	}}
	resolver := NewJWTResolver(testSecret, accounts)

	resolved, customErr := resolver.Resolve(context.Background(), signedToken(t, "u1", time.Hour))

	req.Nil(customErr)
	req.Equal("u1", resolved.ID)
	req.Equal("comp-1", resolved.CompanyID)
}

func TestJWTResolver_MissingToken(t *testing.T) {
	req := require.New(t)
	resolver := NewJWTResolver(testSecret, &fakeAccounts{})

	_, customErr := resolver.Resolve(context.Background(), "")

	req.NotNil(customErr)
	req.Equal(errs.ErrAuthTokenMissing, customErr.Code)
	req.True(errs.IsAuth(customErr))
}

func TestJWTResolver_ExpiredToken(t *testing.T) {
	req := require.New(t)
	resolver := NewJWTResolver(testSecret, &fakeAccounts{})

	_, customErr := resolver.Resolve(context.Background(), signedToken(t, "u1", -time.Minute))

	req.NotNil(customErr)
	req.Equal(errs.ErrAuthTokenInvalid, customErr.Code)
}

func TestJWTResolver_WrongSecret(t *testing.T) {
	req := require.New(t)

	token, err := jwt.GenerateToken(&jwt.Payload{ID: "u1"}, "other-secret", time.Hour)
	req.NoError(err)

	resolver := NewJWTResolver(testSecret, &fakeAccounts{})
	_, customErr := resolver.Resolve(context.Background(), token)

	req.NotNil(customErr)
	req.Equal(errs.ErrAuthTokenInvalid, customErr.Code)
}

func TestJWTResolver_UnknownUser(t *testing.T) {
	req := require.New(t)
	resolver := NewJWTResolver(testSecret, &fakeAccounts{})

	_, customErr := resolver.Resolve(context.Background(), signedToken(t, "ghost", time.Hour))

	req.NotNil(customErr)
	req.Equal(errs.ErrAuthUserNotFound, customErr.Code)
}

func TestJWTResolver_InactiveAccount(t *testing.T) {
	req := require.New(t)

	accounts := &fakeAccounts{accounts: map[string]store.Account{
		"u1": {User: user.User{ID: "u1"}, Status: "suspended"},
	}}
	resolver := NewJWTResolver(testSecret, accounts)

	_, customErr := resolver.Resolve(context.Background(), signedToken(t, "u1", time.Hour))

	req.NotNil(customErr)
	req.Equal(errs.ErrAuthAccountInactive, customErr.Code)
}
