// Package store defines the persistence port for the messaging subsystem.
// The business logic is written once against Store; sqlite and postgres
// adapters live in subpackages.
package store

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a requested row does not exist.
var ErrNotFound = errors.New("not found")

// Message is a durable direct message. Immutable except for the read flag.
type Message struct {
	ID         string
	SenderID   string
	ReceiverID string
	Content    string
	Read       bool
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// User is a directory row. The serving paths only ever read users; rows are
// written by the platform's auth service (UpsertUser exists for tooling).
type User struct {
	ID     string
	Email  string
	Role   string
	Active bool
}

// Profile holds the display fields shown next to a user's messages.
type Profile struct {
	UserID      string
	DisplayName string
	PhotoURL    string
}

// Store is the persistence port shared by the relay and the REST surface.
// All writes are single-row inserts or targeted updates; adapters rely on
// the database's per-row atomicity, never on cross-row transactions.
type Store interface {
	// InsertMessage persists a new message row.
	InsertMessage(ctx context.Context, m *Message) error

	// MessagesBetween returns messages exchanged between two users, newest
	// first, sliced by limit/offset.
	MessagesBetween(ctx context.Context, userID, otherID string, limit, offset int) ([]Message, error)

	// MessagesInvolving returns every message the user sent or received,
	// newest first. Unpaged: the conversation list recomputes from the full
	// set on each request.
	MessagesInvolving(ctx context.Context, userID string) ([]Message, error)

	// MarkRead flips read on all unread messages from senderID to
	// receiverID and returns the number of rows changed.
	MarkRead(ctx context.Context, senderID, receiverID string) (int64, error)

	// MarkReadByIDs flips read on the given message ids.
	MarkReadByIDs(ctx context.Context, ids []string) error

	// User returns a directory row or ErrNotFound.
	User(ctx context.Context, id string) (*User, error)

	// Profile returns display fields for a user or ErrNotFound.
	Profile(ctx context.Context, userID string) (*Profile, error)

	// UpsertUser and UpsertProfile provision directory rows. Used by msgctl
	// and tests only.
	UpsertUser(ctx context.Context, u *User) error
	UpsertProfile(ctx context.Context, p *Profile) error

	Close() error
}
