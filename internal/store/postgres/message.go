package postgres

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/mudassir044/aupair-messaging/internal/store"
)

// InsertMessage persists a new message row.
func (db *DB) InsertMessage(ctx context.Context, m *store.Message) error {
	_, err := db.pool.Exec(ctx, `
		INSERT INTO messages (id, sender_id, receiver_id, content, is_read, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		m.ID, m.SenderID, m.ReceiverID, m.Content, m.Read, m.CreatedAt, m.UpdatedAt)
	return err
}

// MessagesBetween returns messages exchanged between two users, newest first.
func (db *DB) MessagesBetween(ctx context.Context, userID, otherID string, limit, offset int) ([]store.Message, error) {
	if limit <= 0 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	rows, err := db.pool.Query(ctx, `
		SELECT id, sender_id, receiver_id, content, is_read, created_at, updated_at
		FROM messages
		WHERE (sender_id = $1 AND receiver_id = $2) OR (sender_id = $2 AND receiver_id = $1)
		ORDER BY created_at DESC, id DESC
		LIMIT $3 OFFSET $4`,
		userID, otherID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanMessages(rows)
}

// MessagesInvolving returns every message the user sent or received, newest first.
func (db *DB) MessagesInvolving(ctx context.Context, userID string) ([]store.Message, error) {
	rows, err := db.pool.Query(ctx, `
		SELECT id, sender_id, receiver_id, content, is_read, created_at, updated_at
		FROM messages
		WHERE sender_id = $1 OR receiver_id = $1
		ORDER BY created_at DESC, id DESC`,
		userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanMessages(rows)
}

// MarkRead flips read on all unread messages from senderID to receiverID.
func (db *DB) MarkRead(ctx context.Context, senderID, receiverID string) (int64, error) {
	ct, err := db.pool.Exec(ctx, `
		UPDATE messages SET is_read = TRUE, updated_at = $1
		WHERE sender_id = $2 AND receiver_id = $3 AND is_read = FALSE`,
		time.Now().UTC(), senderID, receiverID)
	if err != nil {
		return 0, err
	}
	return ct.RowsAffected(), nil
}

// MarkReadByIDs flips read on the given message ids.
func (db *DB) MarkReadByIDs(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	_, err := db.pool.Exec(ctx, `
		UPDATE messages SET is_read = TRUE, updated_at = $1
		WHERE id = ANY($2)`,
		time.Now().UTC(), ids)
	return err
}

func scanMessages(rows pgx.Rows) ([]store.Message, error) {
	var msgs []store.Message
	for rows.Next() {
		var m store.Message
		if err := rows.Scan(&m.ID, &m.SenderID, &m.ReceiverID, &m.Content, &m.Read, &m.CreatedAt, &m.UpdatedAt); err != nil {
			return nil, err
		}
		m.CreatedAt = m.CreatedAt.UTC()
		m.UpdatedAt = m.UpdatedAt.UTC()
		msgs = append(msgs, m)
	}
	return msgs, rows.Err()
}
