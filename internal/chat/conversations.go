package chat

import (
	"context"
	"errors"

	"github.com/mudassir044/aupair-messaging/internal/bus"
	"github.com/mudassir044/aupair-messaging/internal/store"
	"go.uber.org/zap"
)

// Conversation is a derived per-counterpart summary. Never stored;
// recomputed from the message table on each request.
type Conversation struct {
	PartnerID    string
	PartnerName  string
	PartnerEmail string
	PartnerPhoto string
	LastMessage  store.Message
	UnreadCount  int
}

// Conversations groups every message involving userID by counterpart and
// returns summaries ordered by most-recent-message time descending.
func (s *Service) Conversations(ctx context.Context, userID string) ([]Conversation, error) {
	msgs, err := s.store.MessagesInvolving(ctx, userID)
	if err != nil {
		return nil, err
	}

	// msgs is newest-first, so the first message seen per partner is the
	// last message of that conversation, and insertion order is already
	// the required sort order.
	index := make(map[string]int)
	var convs []Conversation
	for _, m := range msgs {
		partnerID := m.SenderID
		if partnerID == userID {
			partnerID = m.ReceiverID
		}
		i, ok := index[partnerID]
		if !ok {
			i = len(convs)
			index[partnerID] = i
			convs = append(convs, Conversation{PartnerID: partnerID, LastMessage: m})
		}
		if m.ReceiverID == userID && !m.Read {
			convs[i].UnreadCount++
		}
	}

	for i := range convs {
		s.resolvePartner(ctx, &convs[i])
	}
	return convs, nil
}

// History returns one page of the message thread between userID and
// otherID in ascending order for chronological display. Fetched messages
// addressed to the caller are flipped to read as a side effect, so a
// client opening a thread acknowledges it implicitly.
func (s *Service) History(ctx context.Context, userID, otherID string, page, limit int) ([]store.Message, error) {
	if page < 1 {
		page = 1
	}
	if limit <= 0 {
		limit = 50
	}
	offset := (page - 1) * limit

	msgs, err := s.store.MessagesBetween(ctx, userID, otherID, limit, offset)
	if err != nil {
		return nil, err
	}

	var unreadIDs []string
	for i := range msgs {
		if msgs[i].ReceiverID == userID && !msgs[i].Read {
			unreadIDs = append(unreadIDs, msgs[i].ID)
			msgs[i].Read = true
		}
	}
	if len(unreadIDs) > 0 {
		if err := s.store.MarkReadByIDs(ctx, unreadIDs); err != nil {
			return nil, err
		}
		s.bus.Publish(bus.Now(bus.KindMessageRead, ReadEvent{
			ReadBy:        userID,
			CounterpartID: otherID,
		}))
	}

	// Reverse to ascending.
	for i, j := 0, len(msgs)-1; i < j; i, j = i+1, j-1 {
		msgs[i], msgs[j] = msgs[j], msgs[i]
	}
	return msgs, nil
}

func (s *Service) resolvePartner(ctx context.Context, c *Conversation) {
	u, err := s.store.User(ctx, c.PartnerID)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			s.logger.Warn("partner lookup failed", zap.String("partner", c.PartnerID), zap.Error(err))
		}
		c.PartnerName = "Unknown User"
		c.PartnerEmail = "unknown@email.com"
		return
	}
	c.PartnerEmail = u.Email
	c.PartnerName = u.Email
	if p, err := s.store.Profile(ctx, c.PartnerID); err == nil {
		if p.DisplayName != "" {
			c.PartnerName = p.DisplayName
		}
		c.PartnerPhoto = p.PhotoURL
	}
}
