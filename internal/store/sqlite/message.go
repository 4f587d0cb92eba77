package sqlite

import (
	"context"
	"strings"
	"time"

	"github.com/mudassir044/aupair-messaging/internal/store"
)

// InsertMessage persists a new message row.
func (db *DB) InsertMessage(ctx context.Context, m *store.Message) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO messages (id, sender_id, receiver_id, content, is_read, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		m.ID, m.SenderID, m.ReceiverID, m.Content, m.Read,
		m.CreatedAt.UnixMilli(), m.UpdatedAt.UnixMilli())
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
	rows, err := db.QueryContext(ctx, `
		SELECT id, sender_id, receiver_id, content, is_read, created_at, updated_at
		FROM messages
		WHERE (sender_id = ? AND receiver_id = ?) OR (sender_id = ? AND receiver_id = ?)
		ORDER BY created_at DESC, id DESC
		LIMIT ? OFFSET ?`,
		userID, otherID, otherID, userID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	return scanMessages(rows)
}

// MessagesInvolving returns every message the user sent or received, newest first.
func (db *DB) MessagesInvolving(ctx context.Context, userID string) ([]store.Message, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT id, sender_id, receiver_id, content, is_read, created_at, updated_at
		FROM messages
		WHERE sender_id = ? OR receiver_id = ?
		ORDER BY created_at DESC, id DESC`,
		userID, userID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	return scanMessages(rows)
}

// MarkRead flips read on all unread messages from senderID to receiverID.
func (db *DB) MarkRead(ctx context.Context, senderID, receiverID string) (int64, error) {
	res, err := db.ExecContext(ctx, `
		UPDATE messages SET is_read = 1, updated_at = ?
		WHERE sender_id = ? AND receiver_id = ? AND is_read = 0`,
		time.Now().UnixMilli(), senderID, receiverID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// MarkReadByIDs flips read on the given message ids.
func (db *DB) MarkReadByIDs(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	args := make([]any, 0, len(ids)+1)
	args = append(args, time.Now().UnixMilli())
	for _, id := range ids {
		args = append(args, id)
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")
	_, err := db.ExecContext(ctx,
		"UPDATE messages SET is_read = 1, updated_at = ? WHERE id IN ("+placeholders+")",
		args...)
	return err
}

type rowScanner interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
}

func scanMessages(rows rowScanner) ([]store.Message, error) {
	var msgs []store.Message
	for rows.Next() {
		var (
			m       store.Message
			created int64
			updated int64
		)
		if err := rows.Scan(&m.ID, &m.SenderID, &m.ReceiverID, &m.Content, &m.Read, &created, &updated); err != nil {
			return nil, err
		}
		m.CreatedAt = time.UnixMilli(created).UTC()
		m.UpdatedAt = time.UnixMilli(updated).UTC()
		msgs = append(msgs, m)
	}
	return msgs, rows.Err()
}
