package store

import (
	"context"
	"fmt"
)

// GetServerByCompany loads the chat server for a company. Each company owns at
// most one server. Returns ErrNotFound when the company has no server.
func (s *Store) GetServerByCompany(ctx context.Context, companyID string) (Server, error) {
	const q = `
		SELECT cs.id, cs.company_id, cs.name, COALESCE(cs.description, ''), cs.created_at
		FROM chat_servers cs
		WHERE cs.company_id = $1`

	var srv Server
	err := s.pool.QueryRow(ctx, q, companyID).Scan(
		&srv.ID,
		&srv.CompanyID,
		&srv.Name,
		&srv.Description,
		&srv.CreatedAt,
	)
	if err != nil {
		return Server{}, fmt.Errorf("get server for company %s: %w", companyID, mapNoRows(err))
	}

	return srv, nil
}

// GetChannel loads a channel row joined with its owning server's company.
// Returns ErrNotFound when the channel does not exist.
func (s *Store) GetChannel(ctx context.Context, channelID string) (Channel, error) {
	const q = `
		SELECT cc.id, cc.server_id, cs.company_id, cc.name, COALESCE(cc.description, ''), cc.is_private, cc.created_at
		FROM chat_channels cc
		JOIN chat_servers cs ON cc.server_id = cs.id
		WHERE cc.id = $1`

	var ch Channel
	err := s.pool.QueryRow(ctx, q, channelID).Scan(
		&ch.ID,
		&ch.ServerID,
		&ch.CompanyID,
		&ch.Name,
		&ch.Description,
		&ch.IsPrivate,
		&ch.CreatedAt,
	)
	if err != nil {
		return Channel{}, fmt.Errorf("get channel %s: %w", channelID, mapNoRows(err))
	}

	return ch, nil
}

// ListChannels returns the channels of a server visible to the given user:
// all public channels plus private channels the user is a member of.
func (s *Store) ListChannels(ctx context.Context, serverID, userID string) ([]Channel, error) {
	const q = `
		SELECT cc.id, cc.server_id, cc.name, COALESCE(cc.description, ''), cc.is_private, cc.created_at,
			(SELECT COUNT(*) FROM messages m WHERE m.channel_id = cc.id) AS message_count
		FROM chat_channels cc
		WHERE cc.server_id = $1
		AND (cc.is_private = false OR EXISTS (
			SELECT 1 FROM channel_members cm WHERE cm.channel_id = cc.id AND cm.user_id = $2
		))
		ORDER BY cc.name`

	rows, err := s.pool.Query(ctx, q, serverID, userID)
	if err != nil {
		return nil, fmt.Errorf("list channels for server %s: %w", serverID, err)
	}
	defer rows.Close()

	var channels []Channel
	for rows.Next() {
		var ch Channel
		if err := rows.Scan(&ch.ID, &ch.ServerID, &ch.Name, &ch.Description, &ch.IsPrivate, &ch.CreatedAt, &ch.MessageCount); err != nil {
			return nil, fmt.Errorf("scan channel row: %w", err)
		}
		channels = append(channels, ch)
	}

	return channels, rows.Err()
}

// ListUserRoles returns the server roles assigned to the user on the given server.
func (s *Store) ListUserRoles(ctx context.Context, serverID, userID string) ([]Role, error) {
	const q = `
		SELECT sr.id, sr.name, sr.color, COALESCE(sr.permissions, 'null'::jsonb)
		FROM server_roles sr
		JOIN user_roles ur ON sr.id = ur.role_id
		WHERE ur.user_id = $1
		AND sr.server_id = $2`

	rows, err := s.pool.Query(ctx, q, userID, serverID)
	if err != nil {
		return nil, fmt.Errorf("list roles for user %s: %w", userID, err)
	}
	defer rows.Close()

	var roles []Role
	for rows.Next() {
		var role Role
		if err := rows.Scan(&role.ID, &role.Name, &role.Color, &role.Permissions); err != nil {
			return nil, fmt.Errorf("scan role row: %w", err)
		}
		roles = append(roles, role)
	}

	return roles, rows.Err()
}

// ListMembers returns every user of the company together with their persisted
// presence snapshot, ordered by name.
func (s *Store) ListMembers(ctx context.Context, companyID string) ([]Member, error) {
	const q = `
		SELECT u.id, u.first_name, u.last_name, u.email,
			COALESCE(up.status, 'offline'), up.last_active
		FROM users u
		LEFT JOIN user_presence up ON u.id = up.user_id
		WHERE u.company_id = $1
		ORDER BY u.first_name, u.last_name`

	rows, err := s.pool.Query(ctx, q, companyID)
	if err != nil {
		return nil, fmt.Errorf("list members for company %s: %w", companyID, err)
	}
	defer rows.Close()

	var members []Member
	for rows.Next() {
		var m Member
		if err := rows.Scan(&m.User.ID, &m.User.FirstName, &m.User.LastName, &m.User.Email, &m.Status, &m.LastActive); err != nil {
			return nil, fmt.Errorf("scan member row: %w", err)
		}
		members = append(members, m)
	}

	return members, rows.Err()
}

// IsChannelMember reports whether the user has an explicit membership row for
// the channel. Only consulted for private channels.
func (s *Store) IsChannelMember(ctx context.Context, channelID, userID string) (bool, error) {
	const q = `
		SELECT EXISTS (
			SELECT 1 FROM channel_members
			WHERE channel_id = $1 AND user_id = $2
		)`

	var isMember bool
	if err := s.pool.QueryRow(ctx, q, channelID, userID).Scan(&isMember); err != nil {
		return false, fmt.Errorf("check channel membership: %w", err)
	}

	return isMember, nil
}

// HasManageMessages reports whether any of the user's roles on the server grants
// the manage_messages permission (moderator edit/delete of others' messages).
func (s *Store) HasManageMessages(ctx context.Context, serverID, userID string) (bool, error) {
	const q = `
		SELECT EXISTS (
			SELECT 1
			FROM server_roles sr
			JOIN user_roles ur ON sr.id = ur.role_id
			WHERE ur.user_id = $1
			AND sr.server_id = $2
			AND (sr.permissions ->> 'manage_messages')::boolean IS TRUE
		)`

	var allowed bool
	if err := s.pool.QueryRow(ctx, q, userID, serverID).Scan(&allowed); err != nil {
		return false, fmt.Errorf("check manage_messages permission: %w", err)
	}

	return allowed, nil
}
