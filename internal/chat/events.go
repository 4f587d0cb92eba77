package chat

import "github.com/mudassir044/aupair-messaging/internal/store"

// MessageEvent is the message.created payload. It carries the sender's
// display fields so the hub can emit new_message without a store round-trip.
type MessageEvent struct {
	Message     store.Message
	SenderEmail string
	SenderRole  string
	SenderName  string
}

// ReadEvent is the message.read payload. CounterpartID is the original
// sender whose channel should be told its messages were read.
type ReadEvent struct {
	ReadBy        string
	CounterpartID string
}
