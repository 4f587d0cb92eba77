package bus

import "time"

// Event kinds published by the daemon. Subscribers filter by namespace
// prefix, e.g. "message." matches every message kind.
const (
	KindMessageCreated  = "message.created"
	KindMessageRead     = "message.read"
	KindPresenceOnline  = "presence.online"
	KindPresenceOffline = "presence.offline"
	KindServerStatus    = "server.status_changed"
)

// Event represents a domain event published on the bus.
type Event struct {
	Kind      string
	Timestamp time.Time
	Payload   any
}

// Now builds an event stamped with the current time.
func Now(kind string, payload any) Event {
	return Event{Kind: kind, Timestamp: time.Now(), Payload: payload}
}
