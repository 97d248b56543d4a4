package store

import (
	"context"
	"fmt"
)

// GetAccount loads the full user row for the given id. Returns ErrNotFound when
// the id does not resolve to a user.
func (s *Store) GetAccount(ctx context.Context, userID string) (Account, error) {
	const q = `
		SELECT id, first_name, last_name, email, COALESCE(company_id::text, ''), role, status, created_at
		FROM users
		WHERE id = $1`

	var a Account
	err := s.pool.QueryRow(ctx, q, userID).Scan(
		&a.User.ID,
		&a.User.FirstName,
		&a.User.LastName,
		&a.User.Email,
		&a.User.CompanyID,
		&a.User.Role,
		&a.Status,
		&a.CreatedAt,
	)
	if err != nil {
		return Account{}, fmt.Errorf("get account %s: %w", userID, mapNoRows(err))
	}

	return a, nil
}
