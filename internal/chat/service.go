// Package chat implements the messaging business logic once, against the
// abstract store. Both the REST surface and the websocket relay call into
// it, so the two entry points cannot drift apart.
package chat

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/mudassir044/aupair-messaging/internal/bus"
	"github.com/mudassir044/aupair-messaging/internal/store"
	"go.uber.org/zap"
)

var (
	// ErrMissingReceiver means the caller did not name a receiver.
	ErrMissingReceiver = errors.New("receiver id is required")
	// ErrEmptyContent means the content trimmed to the empty string.
	ErrEmptyContent = errors.New("content is required")
	// ErrReceiverNotFound means the receiver does not resolve to an active user.
	ErrReceiverNotFound = errors.New("receiver not found or inactive")
)

// Service coordinates message persistence and event publication.
type Service struct {
	store  store.Store
	bus    *bus.Bus
	logger *zap.Logger
}

// NewService creates a chat service backed by the store.
func NewService(st store.Store, b *bus.Bus, logger *zap.Logger) *Service {
	return &Service{store: st, bus: b, logger: logger}
}

// Send validates and persists a new message, then publishes a
// message.created event carrying the sender's display fields. Exactly one
// durable write; a persistence failure is returned once and never retried.
func (s *Service) Send(ctx context.Context, senderID, receiverID, content string) (*store.Message, error) {
	content = strings.TrimSpace(content)
	if receiverID == "" {
		return nil, ErrMissingReceiver
	}
	if content == "" {
		return nil, ErrEmptyContent
	}

	receiver, err := s.store.User(ctx, receiverID)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return nil, err
	}
	if receiver == nil || !receiver.Active {
		return nil, ErrReceiverNotFound
	}

	now := time.Now().UTC()
	msg := &store.Message{
		ID:         uuid.NewString(),
		SenderID:   senderID,
		ReceiverID: receiverID,
		Content:    content,
		Read:       false,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := s.store.InsertMessage(ctx, msg); err != nil {
		s.logger.Error("failed to save message",
			zap.String("sender", senderID), zap.String("receiver", receiverID), zap.Error(err))
		return nil, err
	}

	email, role, name := s.senderDisplay(ctx, senderID)
	s.bus.Publish(bus.Now(bus.KindMessageCreated, MessageEvent{
		Message:     *msg,
		SenderEmail: email,
		SenderRole:  role,
		SenderName:  name,
	}))
	s.logger.Info("message sent",
		zap.String("id", msg.ID), zap.String("sender", senderID), zap.String("receiver", receiverID))
	return msg, nil
}

// MarkRead flips every unread message from counterpartID to readerID and
// publishes a message.read event when any row changed. Idempotent.
func (s *Service) MarkRead(ctx context.Context, counterpartID, readerID string) (int64, error) {
	n, err := s.store.MarkRead(ctx, counterpartID, readerID)
	if err != nil {
		return 0, err
	}
	if n > 0 {
		s.bus.Publish(bus.Now(bus.KindMessageRead, ReadEvent{
			ReadBy:        readerID,
			CounterpartID: counterpartID,
		}))
	}
	return n, nil
}

func (s *Service) senderDisplay(ctx context.Context, senderID string) (email, role, name string) {
	if u, err := s.store.User(ctx, senderID); err == nil {
		email, role = u.Email, u.Role
		name = u.Email
	}
	if p, err := s.store.Profile(ctx, senderID); err == nil && p.DisplayName != "" {
		name = p.DisplayName
	}
	return email, role, name
}
