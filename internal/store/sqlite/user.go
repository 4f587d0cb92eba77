package sqlite

import (
	"context"
	"database/sql"

	"github.com/mudassir044/aupair-messaging/internal/store"
)

// User returns a directory row or store.ErrNotFound.
func (db *DB) User(ctx context.Context, id string) (*store.User, error) {
	var u store.User
	err := db.QueryRowContext(ctx,
		"SELECT id, email, role, is_active FROM users WHERE id = ?", id).
		Scan(&u.ID, &u.Email, &u.Role, &u.Active)
	if err == sql.ErrNoRows {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// Profile returns display fields for a user or store.ErrNotFound.
func (db *DB) Profile(ctx context.Context, userID string) (*store.Profile, error) {
	var p store.Profile
	err := db.QueryRowContext(ctx,
		"SELECT user_id, display_name, photo_url FROM profiles WHERE user_id = ?", userID).
		Scan(&p.UserID, &p.DisplayName, &p.PhotoURL)
	if err == sql.ErrNoRows {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// UpsertUser inserts or updates a directory row.
func (db *DB) UpsertUser(ctx context.Context, u *store.User) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO users (id, email, role, is_active)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			email = excluded.email,
			role = excluded.role,
			is_active = excluded.is_active`,
		u.ID, u.Email, u.Role, u.Active)
	return err
}

// UpsertProfile inserts or updates a profile row.
func (db *DB) UpsertProfile(ctx context.Context, p *store.Profile) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO profiles (user_id, display_name, photo_url)
		VALUES (?, ?, ?)
		ON CONFLICT(user_id) DO UPDATE SET
			display_name = excluded.display_name,
			photo_url = excluded.photo_url`,
		p.UserID, p.DisplayName, p.PhotoURL)
	return err
}
