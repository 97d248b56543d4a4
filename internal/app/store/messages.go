package store

import (
	"context"
	"fmt"
)

const messageColumns = `
	m.id, m.channel_id, m.content, m.parent_id, m.is_edited, m.created_at, m.updated_at,
	u.id, u.first_name, u.last_name, u.email`

// scanMessage scans one joined messages/users row.
func scanMessage(row interface{ Scan(dest ...any) error }) (Message, error) {
	var m Message
	err := row.Scan(
		&m.ID,
		&m.ChannelID,
		&m.Content,
		&m.ParentID,
		&m.IsEdited,
		&m.CreatedAt,
		&m.UpdatedAt,
		&m.Author.ID,
		&m.Author.FirstName,
		&m.Author.LastName,
		&m.Author.Email,
	)
	return m, err
}

// InsertMessage durably stores a new message together with its attachment rows
// and returns it joined with the author's identity. This is the gating write of
// the send protocol: no realtime event may be announced unless this call
// succeeds, and a failed attachment insert rolls the message back with it.
func (s *Store) InsertMessage(ctx context.Context, channelID, userID, content string, parentID *string, attachments []NewAttachment) (Message, error) {
	const q = `
		WITH inserted AS (
			INSERT INTO messages (channel_id, user_id, content, parent_id)
			VALUES ($1, $2, $3, $4)
			RETURNING id, channel_id, user_id, content, parent_id, is_edited, created_at, updated_at
		)
		SELECT m.id, m.channel_id, m.content, m.parent_id, m.is_edited, m.created_at, m.updated_at,
			u.id, u.first_name, u.last_name, u.email
		FROM inserted m
		JOIN users u ON m.user_id = u.id`

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return Message{}, fmt.Errorf("insert message: begin: %w", err)
	}
	defer tx.Rollback(ctx)

	m, err := scanMessage(tx.QueryRow(ctx, q, channelID, userID, content, parentID))
	if err != nil {
		return Message{}, fmt.Errorf("insert message: %w", err)
	}

	const attachQ = `
		INSERT INTO message_attachments (message_id, file_name, file_type, file_size, file_key)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id`

	for _, a := range attachments {
		var id string
		if err := tx.QueryRow(ctx, attachQ, m.ID, a.FileName, a.FileType, a.FileSize, a.FileKey).Scan(&id); err != nil {
			return Message{}, fmt.Errorf("insert attachment for message %s: %w", m.ID, err)
		}
		m.Attachments = append(m.Attachments, Attachment{
			ID:       id,
			FileName: a.FileName,
			FileType: a.FileType,
			FileSize: a.FileSize,
			FileKey:  a.FileKey,
		})
	}

	if err := tx.Commit(ctx); err != nil {
		return Message{}, fmt.Errorf("insert message: commit: %w", err)
	}

	return m, nil
}

// attachmentsFor loads the attachments of the given messages, keyed by message id.
func (s *Store) attachmentsFor(ctx context.Context, messageIDs []string) (map[string][]Attachment, error) {
	if len(messageIDs) == 0 {
		return nil, nil
	}

	const q = `
		SELECT message_id, id, file_name, file_type, file_size, file_key
		FROM message_attachments
		WHERE message_id = ANY($1)
		ORDER BY created_at`

	rows, err := s.pool.Query(ctx, q, messageIDs)
	if err != nil {
		return nil, fmt.Errorf("load attachments: %w", err)
	}
	defer rows.Close()

	byMessage := make(map[string][]Attachment)
	for rows.Next() {
		var messageID string
		var a Attachment
		if err := rows.Scan(&messageID, &a.ID, &a.FileName, &a.FileType, &a.FileSize, &a.FileKey); err != nil {
			return nil, fmt.Errorf("scan attachment row: %w", err)
		}
		byMessage[messageID] = append(byMessage[messageID], a)
	}

	return byMessage, rows.Err()
}

// GetMessage loads a single message with its author. Returns ErrNotFound when absent.
func (s *Store) GetMessage(ctx context.Context, messageID string) (Message, error) {
	q := `
		SELECT ` + messageColumns + `
		FROM messages m
		JOIN users u ON m.user_id = u.id
		WHERE m.id = $1`

	m, err := scanMessage(s.pool.QueryRow(ctx, q, messageID))
	if err != nil {
		return Message{}, fmt.Errorf("get message %s: %w", messageID, mapNoRows(err))
	}

	attachments, err := s.attachmentsFor(ctx, []string{m.ID})
	if err != nil {
		return Message{}, err
	}
	m.Attachments = attachments[m.ID]

	return m, nil
}

// UpdateMessage replaces a message's content, marks it edited, and returns the
// updated row with its author. Returns ErrNotFound when the message is gone.
func (s *Store) UpdateMessage(ctx context.Context, messageID, content string) (Message, error) {
	const q = `
		WITH updated AS (
			UPDATE messages
			SET content = $1, is_edited = true, updated_at = NOW()
			WHERE id = $2
			RETURNING id, channel_id, user_id, content, parent_id, is_edited, created_at, updated_at
		)
		SELECT m.id, m.channel_id, m.content, m.parent_id, m.is_edited, m.created_at, m.updated_at,
			u.id, u.first_name, u.last_name, u.email
		FROM updated m
		JOIN users u ON m.user_id = u.id`

	m, err := scanMessage(s.pool.QueryRow(ctx, q, content, messageID))
	if err != nil {
		return Message{}, fmt.Errorf("update message %s: %w", messageID, mapNoRows(err))
	}

	attachments, err := s.attachmentsFor(ctx, []string{m.ID})
	if err != nil {
		return Message{}, err
	}
	m.Attachments = attachments[m.ID]

	return m, nil
}

// DeleteMessage removes the message row. Replies referencing it are detached first
// so the delete cannot fail on the self-referencing foreign key.
func (s *Store) DeleteMessage(ctx context.Context, messageID string) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("delete message %s: begin: %w", messageID, err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `UPDATE messages SET parent_id = NULL WHERE parent_id = $1`, messageID); err != nil {
		return fmt.Errorf("delete message %s: detach replies: %w", messageID, err)
	}

	if _, err := tx.Exec(ctx, `UPDATE read_receipts SET last_read_message_id = NULL WHERE last_read_message_id = $1`, messageID); err != nil {
		return fmt.Errorf("delete message %s: detach read receipts: %w", messageID, err)
	}

	tag, err := tx.Exec(ctx, `DELETE FROM messages WHERE id = $1`, messageID)
	if err != nil {
		return fmt.Errorf("delete message %s: %w", messageID, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("delete message %s: %w", messageID, ErrNotFound)
	}

	return tx.Commit(ctx)
}

// ParentInChannel reports whether the parent message exists in the given channel.
// Used to validate reply threading before accepting a message.
func (s *Store) ParentInChannel(ctx context.Context, parentID, channelID string) (bool, error) {
	const q = `
		SELECT EXISTS (
			SELECT 1 FROM messages
			WHERE id = $1 AND channel_id = $2
		)`

	var ok bool
	if err := s.pool.QueryRow(ctx, q, parentID, channelID).Scan(&ok); err != nil {
		return false, fmt.Errorf("check parent message: %w", err)
	}

	return ok, nil
}

// ListMessages returns up to limit messages of a channel in chronological order.
// When before is non-nil, only messages created before that message are returned
// (cursor pagination for history scrollback).
func (s *Store) ListMessages(ctx context.Context, channelID string, limit int, before *string) ([]Message, error) {
	q := `
		SELECT ` + messageColumns + `
		FROM messages m
		JOIN users u ON m.user_id = u.id
		WHERE m.channel_id = $1`

	args := []any{channelID}

	if before != nil {
		q += `
		AND m.created_at < (SELECT created_at FROM messages WHERE id = $2)`
		args = append(args, *before)
	}

	q += fmt.Sprintf(`
		ORDER BY m.created_at DESC
		LIMIT $%d`, len(args)+1)
	args = append(args, limit)

	rows, err := s.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("list messages for channel %s: %w", channelID, err)
	}
	defer rows.Close()

	var messages []Message
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return nil, fmt.Errorf("scan message row: %w", err)
		}
		messages = append(messages, m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// Rows come newest-first for the LIMIT; callers want chronological order.
	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}

	ids := make([]string, len(messages))
	for i, m := range messages {
		ids[i] = m.ID
	}
	attachments, err := s.attachmentsFor(ctx, ids)
	if err != nil {
		return nil, err
	}
	for i := range messages {
		messages[i].Attachments = attachments[messages[i].ID]
	}

	return messages, nil
}

// UpsertReadReceipt records the latest message a user has read in a channel.
func (s *Store) UpsertReadReceipt(ctx context.Context, channelID, userID, messageID string) error {
	const q = `
		INSERT INTO read_receipts (channel_id, user_id, last_read_message_id, last_read_at)
		VALUES ($1, $2, $3, NOW())
		ON CONFLICT (channel_id, user_id)
		DO UPDATE SET last_read_message_id = $3, last_read_at = NOW()`

	if _, err := s.pool.Exec(ctx, q, channelID, userID, messageID); err != nil {
		return fmt.Errorf("upsert read receipt: %w", err)
	}

	return nil
}
