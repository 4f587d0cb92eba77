package relay

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/mudassir044/aupair-messaging/internal/chat"
	"github.com/mudassir044/aupair-messaging/internal/store"
	"github.com/mudassir044/aupair-messaging/internal/token"
	"go.uber.org/zap"
)

const (
	pongWait       = 60 * time.Second
	maxFrameSize   = 64 << 10
	authFailedMsg  = "Authentication failed"
	notAuthedMsg   = "Not authenticated"
	badSendMsg     = "Receiver ID and content are required"
	badReceiverMsg = "Receiver not found or inactive"
	sendFailedMsg  = "Failed to send message"
)

// Handler upgrades websocket requests and runs the per-connection session
// loop. Every frame except authenticate is rejected until the client has
// presented a valid token.
type Handler struct {
	hub      *Hub
	svc      *chat.Service
	verifier *token.Verifier
	store    store.Store
	logger   *zap.Logger
	upgrader websocket.Upgrader
}

// NewHandler builds the websocket handler. checkOrigin decides which
// browser origins may connect; nil allows all.
func NewHandler(hub *Hub, svc *chat.Service, verifier *token.Verifier, st store.Store, logger *zap.Logger, checkOrigin func(r *http.Request) bool) *Handler {
	if checkOrigin == nil {
		checkOrigin = func(*http.Request) bool { return true }
	}
	return &Handler{
		hub:      hub,
		svc:      svc,
		verifier: verifier,
		store:    st,
		logger:   logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     checkOrigin,
		},
	}
}

// Handle returns the gin route handler for the websocket endpoint.
func (h *Handler) Handle() gin.HandlerFunc {
	return func(c *gin.Context) {
		ws, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			h.logger.Warn("websocket upgrade failed", zap.Error(err))
			return
		}
		h.serve(ws)
	}
}

// session holds the mutable per-connection state owned by the read loop.
type session struct {
	conn   *Conn
	userID string
	email  string
	role   string
}

func (h *Handler) serve(ws *websocket.Conn) {
	conn := NewConn(ws)
	conn.Start()

	ws.SetReadLimit(maxFrameSize)
	_ = ws.SetReadDeadline(time.Now().Add(pongWait))
	ws.SetPongHandler(func(string) error {
		return ws.SetReadDeadline(time.Now().Add(pongWait))
	})

	sess := &session{conn: conn}
	defer func() {
		if sess.userID != "" {
			h.hub.Unbind(conn)
		}
		conn.Close(websocket.CloseNormalClosure, "")
	}()

	for {
		_, raw, err := ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				h.logger.Debug("websocket read ended", zap.Error(err))
			}
			return
		}
		_ = ws.SetReadDeadline(time.Now().Add(pongWait))

		var frame inboundFrame
		if err := json.Unmarshal(raw, &frame); err != nil {
			_ = conn.Send(encodeFrame(errorFrame{Type: "error", Message: "malformed frame"}))
			continue
		}
		h.dispatch(sess, frame)
	}
}

// dispatch runs on the read loop, so frames from one connection are always
// handled in arrival order.
func (h *Handler) dispatch(sess *session, frame inboundFrame) {
	if frame.Type == "authenticate" {
		h.authenticate(sess, frame.Token)
		return
	}
	if sess.userID == "" {
		_ = sess.conn.Send(encodeFrame(errorFrame{Type: "error", Message: notAuthedMsg}))
		return
	}

	switch frame.Type {
	case "send_message":
		h.sendMessage(sess, frame)
	case "typing_start":
		h.typing(sess, frame.ReceiverID, true)
	case "typing_stop":
		h.typing(sess, frame.ReceiverID, false)
	case "mark_read":
		h.markRead(sess, frame.CounterpartID)
	default:
		_ = sess.conn.Send(encodeFrame(errorFrame{Type: "error", Message: "unknown event: " + frame.Type}))
	}
}

func (h *Handler) authenticate(sess *session, tok string) {
	uid, err := h.verifier.UserID(tok)
	if err != nil {
		_ = sess.conn.Send(encodeFrame(errorFrame{Type: "auth_error", Message: authFailedMsg}))
		return
	}
	u, err := h.store.User(context.Background(), uid)
	if err != nil || !u.Active {
		_ = sess.conn.Send(encodeFrame(errorFrame{Type: "auth_error", Message: authFailedMsg}))
		return
	}

	if sess.userID == "" {
		sess.userID = uid
		sess.email = u.Email
		sess.role = u.Role
		sess.conn.UserID = uid
		h.hub.Bind(sess.conn)
	}
	_ = sess.conn.Send(encodeFrame(authFrame{Type: "authenticated", UserID: sess.userID}))
}

func (h *Handler) sendMessage(sess *session, frame inboundFrame) {
	msg, err := h.svc.Send(context.Background(), sess.userID, frame.ReceiverID, frame.Content)
	if err != nil {
		_ = sess.conn.Send(encodeFrame(errorFrame{Type: "error", Message: sendErrorMessage(err)}))
		return
	}

	// The acknowledgement goes only to the sending connection; the hub
	// fans the bus event out to the receiver's connections.
	payload := newMessagePayload(*msg)
	payload.SenderEmail = sess.email
	payload.SenderRole = sess.role
	_ = sess.conn.Send(encodeFrame(messageFrame{Type: "message_sent", messagePayload: payload}))
}

func (h *Handler) typing(sess *session, receiverID string, typing bool) {
	if receiverID == "" {
		return
	}
	// Ephemeral: sent straight to whatever connections the counterpart has
	// right now, never stored.
	h.hub.SendTo(receiverID, encodeFrame(typingFrame{Type: "user_typing", UserID: sess.userID, Typing: typing}))
}

func (h *Handler) markRead(sess *session, counterpartID string) {
	if counterpartID == "" {
		return
	}
	if _, err := h.svc.MarkRead(context.Background(), counterpartID, sess.userID); err != nil {
		h.logger.Error("mark read failed",
			zap.String("reader", sess.userID), zap.String("counterpart", counterpartID), zap.Error(err))
	}
}

func sendErrorMessage(err error) string {
	switch {
	case errors.Is(err, chat.ErrMissingReceiver), errors.Is(err, chat.ErrEmptyContent):
		return badSendMsg
	case errors.Is(err, chat.ErrReceiverNotFound):
		return badReceiverMsg
	default:
		return sendFailedMsg
	}
}
