package relay

import (
	"encoding/json"
	"time"

	"github.com/mudassir044/aupair-messaging/internal/store"
)

// inboundFrame is the single flat shape clients send. Type selects the
// event; the remaining fields are read per type and ignored otherwise.
type inboundFrame struct {
	Type          string `json:"type"`
	Token         string `json:"token,omitempty"`
	ReceiverID    string `json:"receiverId,omitempty"`
	Content       string `json:"content,omitempty"`
	CounterpartID string `json:"counterpartId,omitempty"`
}

// messagePayload is the flattened message body shared by message_sent and
// new_message. Sender display fields are populated only where the receiving
// side needs them to render the conversation row.
type messagePayload struct {
	ID          string    `json:"id"`
	SenderID    string    `json:"senderId"`
	ReceiverID  string    `json:"receiverId"`
	Content     string    `json:"content"`
	IsRead      bool      `json:"isRead"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
	SenderEmail string    `json:"senderEmail,omitempty"`
	SenderRole  string    `json:"senderRole,omitempty"`
	SenderName  string    `json:"senderName,omitempty"`
}

type messageFrame struct {
	Type string `json:"type"`
	messagePayload
}

type authFrame struct {
	Type   string `json:"type"`
	UserID string `json:"userId"`
}

type errorFrame struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

type typingFrame struct {
	Type   string `json:"type"`
	UserID string `json:"userId"`
	Typing bool   `json:"typing"`
}

type readNoticeFrame struct {
	Type   string `json:"type"`
	ReadBy string `json:"readBy"`
}

type statusFrame struct {
	Type   string `json:"type"`
	UserID string `json:"userId"`
	Online bool   `json:"online"`
}

func newMessagePayload(m store.Message) messagePayload {
	return messagePayload{
		ID:         m.ID,
		SenderID:   m.SenderID,
		ReceiverID: m.ReceiverID,
		Content:    m.Content,
		IsRead:     m.Read,
		CreatedAt:  m.CreatedAt,
		UpdatedAt:  m.UpdatedAt,
	}
}

// encodeFrame marshals a known-good outbound frame. The frame structs above
// contain nothing that can fail to marshal.
func encodeFrame(v any) []byte {
	b, _ := json.Marshal(v)
	return b
}
