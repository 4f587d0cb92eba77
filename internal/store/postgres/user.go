package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/mudassir044/aupair-messaging/internal/store"
)

// User returns a directory row or store.ErrNotFound.
func (db *DB) User(ctx context.Context, id string) (*store.User, error) {
	var u store.User
	err := db.pool.QueryRow(ctx,
		"SELECT id, email, role, is_active FROM users WHERE id = $1", id).
		Scan(&u.ID, &u.Email, &u.Role, &u.Active)
	if errors.Is(err, pgx.ErrNoRows) {
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
	err := db.pool.QueryRow(ctx,
		"SELECT user_id, display_name, photo_url FROM profiles WHERE user_id = $1", userID).
		Scan(&p.UserID, &p.DisplayName, &p.PhotoURL)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// UpsertUser inserts or updates a directory row.
func (db *DB) UpsertUser(ctx context.Context, u *store.User) error {
	_, err := db.pool.Exec(ctx, `
		INSERT INTO users (id, email, role, is_active)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (id) DO UPDATE SET
			email = EXCLUDED.email,
			role = EXCLUDED.role,
			is_active = EXCLUDED.is_active`,
		u.ID, u.Email, u.Role, u.Active)
	return err
}

// UpsertProfile inserts or updates a profile row.
func (db *DB) UpsertProfile(ctx context.Context, p *store.Profile) error {
	_, err := db.pool.Exec(ctx, `
		INSERT INTO profiles (user_id, display_name, photo_url)
		VALUES ($1, $2, $3)
		ON CONFLICT (user_id) DO UPDATE SET
			display_name = EXCLUDED.display_name,
			photo_url = EXCLUDED.photo_url`,
		p.UserID, p.DisplayName, p.PhotoURL)
	return err
}

// The adapter must satisfy the port.
var _ store.Store = (*DB)(nil)
