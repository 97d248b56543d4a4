package store

import (
	"context"
	"fmt"
	"time"
)

// UpsertPresence persists a user's presence status and refreshes last_active.
// Presence rows are never deleted on disconnect; the persisted row is what makes
// last-active reporting survive process restarts.
func (s *Store) UpsertPresence(ctx context.Context, userID, status string) (time.Time, error) {
	const q = `
		INSERT INTO user_presence (user_id, status, last_active, updated_at)
		VALUES ($1, $2, NOW(), NOW())
		ON CONFLICT (user_id)
		DO UPDATE SET status = $2, last_active = NOW(), updated_at = NOW()
		RETURNING last_active`

	var lastActive time.Time
	if err := s.pool.QueryRow(ctx, q, userID, status).Scan(&lastActive); err != nil {
		return time.Time{}, fmt.Errorf("upsert presence for user %s: %w", userID, err)
	}

	return lastActive, nil
}

// GetPresenceStatus returns the persisted status for a user, defaulting to
// "offline" when no row exists.
func (s *Store) GetPresenceStatus(ctx context.Context, userID string) (string, error) {
	const q = `
		SELECT COALESCE(
			(SELECT status FROM user_presence WHERE user_id = $1),
			'offline'
		)`

	var status string
	if err := s.pool.QueryRow(ctx, q, userID).Scan(&status); err != nil {
		return "", fmt.Errorf("get presence for user %s: %w", userID, err)
	}

	return status, nil
}
