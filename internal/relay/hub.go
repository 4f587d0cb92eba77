package relay

import (
	"sync"

	"github.com/gorilla/websocket"
	"github.com/mudassir044/aupair-messaging/internal/bus"
	"github.com/mudassir044/aupair-messaging/internal/chat"
	"go.uber.org/zap"
)

// Hub tracks every live connection per user and delivers chat events to
// them. A user may hold several connections at once (phone plus browser);
// delivery to a user means delivery to every one of their connections.
type Hub struct {
	mu    sync.RWMutex
	conns map[string]map[string]*Conn // userID -> connID -> conn

	bus    *bus.Bus
	logger *zap.Logger

	unsub func()
	quit  chan struct{}
	done  chan struct{}
}

// NewHub creates a hub wired to the event bus.
func NewHub(b *bus.Bus, logger *zap.Logger) *Hub {
	return &Hub{
		conns:  make(map[string]map[string]*Conn),
		bus:    b,
		logger: logger,
		quit:   make(chan struct{}),
		done:   make(chan struct{}),
	}
}

// Start subscribes to message events and begins delivering them. Events
// published before Start are not replayed; durability lives in the store.
func (h *Hub) Start() {
	ch, unsub := h.bus.Subscribe("message.", 256)
	h.unsub = unsub
	go func() {
		defer close(h.done)
		for {
			select {
			case <-h.quit:
				return
			case evt := <-ch:
				h.deliver(evt)
			}
		}
	}()
}

// Stop ends event delivery and closes every remaining connection.
func (h *Hub) Stop() {
	close(h.quit)
	<-h.done
	if h.unsub != nil {
		h.unsub()
	}

	h.mu.Lock()
	var all []*Conn
	for _, byConn := range h.conns {
		for _, c := range byConn {
			all = append(all, c)
		}
	}
	h.conns = make(map[string]map[string]*Conn)
	h.mu.Unlock()

	for _, c := range all {
		c.Close(websocket.CloseGoingAway, "server shutting down")
	}
}

// Bind registers an authenticated connection under its user. The first
// connection for a user marks the user online: every other user is told, and
// a presence event goes on the bus.
func (h *Hub) Bind(c *Conn) {
	h.mu.Lock()
	byConn, ok := h.conns[c.UserID]
	if !ok {
		byConn = make(map[string]*Conn)
		h.conns[c.UserID] = byConn
	}
	first := len(byConn) == 0
	byConn[c.ID] = c
	h.mu.Unlock()

	if first {
		h.broadcast(encodeFrame(statusFrame{Type: "user_status", UserID: c.UserID, Online: true}), c.ID)
		h.bus.Publish(bus.Now(bus.KindPresenceOnline, c.UserID))
	}
	h.logger.Info("connection bound",
		zap.String("user", c.UserID), zap.String("conn", c.ID), zap.Bool("first", first))
}

// Unbind removes a connection. Dropping the user's last connection marks
// them offline with the same global broadcast used for coming online.
func (h *Hub) Unbind(c *Conn) {
	h.mu.Lock()
	byConn, ok := h.conns[c.UserID]
	if ok {
		delete(byConn, c.ID)
		if len(byConn) == 0 {
			delete(h.conns, c.UserID)
		}
	}
	last := ok && len(byConn) == 0
	h.mu.Unlock()
	if !ok {
		return
	}

	if last {
		h.broadcast(encodeFrame(statusFrame{Type: "user_status", UserID: c.UserID, Online: false}), c.ID)
		h.bus.Publish(bus.Now(bus.KindPresenceOffline, c.UserID))
	}
	h.logger.Info("connection unbound",
		zap.String("user", c.UserID), zap.String("conn", c.ID), zap.Bool("last", last))
}

// SendTo delivers payload to every live connection of userID and reports
// how many connections were reached. Zero is not an error; the message is
// already durable and waits in the store.
func (h *Hub) SendTo(userID string, payload []byte) int {
	h.mu.RLock()
	var targets []*Conn
	for _, c := range h.conns[userID] {
		targets = append(targets, c)
	}
	h.mu.RUnlock()

	n := 0
	for _, c := range targets {
		if err := c.Send(payload); err == nil {
			n++
		}
	}
	return n
}

// Online reports whether userID has at least one live connection.
func (h *Hub) Online(userID string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.conns[userID]) > 0
}

func (h *Hub) broadcast(payload []byte, excludeConnID string) {
	h.mu.RLock()
	var targets []*Conn
	for _, byConn := range h.conns {
		for _, c := range byConn {
			if c.ID == excludeConnID {
				continue
			}
			targets = append(targets, c)
		}
	}
	h.mu.RUnlock()

	for _, c := range targets {
		_ = c.Send(payload)
	}
}

func (h *Hub) deliver(evt bus.Event) {
	switch evt.Kind {
	case bus.KindMessageCreated:
		me, ok := evt.Payload.(chat.MessageEvent)
		if !ok {
			return
		}
		payload := newMessagePayload(me.Message)
		payload.SenderEmail = me.SenderEmail
		payload.SenderRole = me.SenderRole
		payload.SenderName = me.SenderName
		n := h.SendTo(me.Message.ReceiverID, encodeFrame(messageFrame{Type: "new_message", messagePayload: payload}))
		h.logger.Debug("new_message delivered",
			zap.String("receiver", me.Message.ReceiverID), zap.Int("connections", n))
	case bus.KindMessageRead:
		re, ok := evt.Payload.(chat.ReadEvent)
		if !ok {
			return
		}
		h.SendTo(re.CounterpartID, encodeFrame(readNoticeFrame{Type: "messages_read", ReadBy: re.ReadBy}))
	}
}
