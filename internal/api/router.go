// Package api exposes the REST surface of the messaging daemon. Every
// route is a thin adapter over the chat service; no business logic lives
// here.
package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/mudassir044/aupair-messaging/internal/chat"
	"github.com/mudassir044/aupair-messaging/internal/status"
	"github.com/mudassir044/aupair-messaging/internal/store"
	"github.com/mudassir044/aupair-messaging/internal/token"
	"go.uber.org/zap"
)

type messageJSON struct {
	ID         string    `json:"id"`
	SenderID   string    `json:"senderId"`
	ReceiverID string    `json:"receiverId"`
	Content    string    `json:"content"`
	IsRead     bool      `json:"isRead"`
	CreatedAt  time.Time `json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

type conversationJSON struct {
	PartnerID    string      `json:"partnerId"`
	PartnerName  string      `json:"partnerName"`
	PartnerEmail string      `json:"partnerEmail"`
	PartnerPhoto string      `json:"partnerPhoto,omitempty"`
	LastMessage  messageJSON `json:"lastMessage"`
	UnreadCount  int         `json:"unreadCount"`
}

func toMessageJSON(m store.Message) messageJSON {
	return messageJSON{
		ID:         m.ID,
		SenderID:   m.SenderID,
		ReceiverID: m.ReceiverID,
		Content:    m.Content,
		IsRead:     m.Read,
		CreatedAt:  m.CreatedAt,
		UpdatedAt:  m.UpdatedAt,
	}
}

// Server bundles the route handlers and their dependencies.
type Server struct {
	svc     *chat.Service
	machine *status.Machine
	logger  *zap.Logger
}

// NewServer creates the REST handler set.
func NewServer(svc *chat.Service, machine *status.Machine, logger *zap.Logger) *Server {
	return &Server{svc: svc, machine: machine, logger: logger}
}

// Register mounts all routes on the engine. wsHandler, when non-nil, is
// mounted at /ws outside the bearer middleware since websocket clients
// authenticate in-band.
func (s *Server) Register(engine *gin.Engine, verifier *token.Verifier, st store.Store, wsHandler gin.HandlerFunc) {
	engine.GET("/health", s.health)
	if wsHandler != nil {
		engine.GET("/ws", wsHandler)
	}

	authed := engine.Group("/", requireAuth(verifier, st))
	authed.GET("/api/messages/conversations", s.conversations)
	authed.GET("/api/conversations", s.conversations)
	authed.GET("/api/messages/with/:userId", s.history)
	authed.POST("/api/messages", s.send)
	authed.PUT("/api/messages/read", s.markRead)
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": s.machine.Current(),
		"uptime": s.machine.Uptime().String(),
	})
}

func (s *Server) conversations(c *gin.Context) {
	user := currentUser(c)
	convs, err := s.svc.Conversations(c.Request.Context(), user.ID)
	if err != nil {
		s.logger.Error("listing conversations failed", zap.String("user", user.ID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"message": "Failed to fetch conversations"})
		return
	}

	out := make([]conversationJSON, 0, len(convs))
	for _, conv := range convs {
		out = append(out, conversationJSON{
			PartnerID:    conv.PartnerID,
			PartnerName:  conv.PartnerName,
			PartnerEmail: conv.PartnerEmail,
			PartnerPhoto: conv.PartnerPhoto,
			LastMessage:  toMessageJSON(conv.LastMessage),
			UnreadCount:  conv.UnreadCount,
		})
	}
	c.JSON(http.StatusOK, gin.H{"conversations": out})
}

func (s *Server) history(c *gin.Context) {
	user := currentUser(c)
	otherID := c.Param("userId")
	page := intQuery(c, "page", 1)
	limit := intQuery(c, "limit", 50)

	msgs, err := s.svc.History(c.Request.Context(), user.ID, otherID, page, limit)
	if err != nil {
		s.logger.Error("fetching history failed",
			zap.String("user", user.ID), zap.String("other", otherID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"message": "Failed to fetch messages"})
		return
	}

	out := make([]messageJSON, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, toMessageJSON(m))
	}
	c.JSON(http.StatusOK, gin.H{"messages": out, "page": page, "limit": limit})
}

func (s *Server) send(c *gin.Context) {
	user := currentUser(c)
	var body struct {
		ReceiverID string `json:"receiverId"`
		Content    string `json:"content"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "Receiver ID and content are required"})
		return
	}

	msg, err := s.svc.Send(c.Request.Context(), user.ID, body.ReceiverID, body.Content)
	if err != nil {
		st, msgText := sendErrorResponse(err)
		if st == http.StatusInternalServerError {
			s.logger.Error("sending message failed", zap.String("sender", user.ID), zap.Error(err))
		}
		c.JSON(st, gin.H{"message": msgText})
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"message": "Message sent successfully",
		"data":    toMessageJSON(*msg),
	})
}

func (s *Server) markRead(c *gin.Context) {
	user := currentUser(c)
	var body struct {
		SenderID string `json:"senderId"`
	}
	if err := c.ShouldBindJSON(&body); err != nil || body.SenderID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"message": "Sender ID is required"})
		return
	}

	n, err := s.svc.MarkRead(c.Request.Context(), body.SenderID, user.ID)
	if err != nil {
		s.logger.Error("marking messages read failed", zap.String("user", user.ID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"message": "Failed to mark messages as read"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Messages marked as read", "updated": n})
}

func sendErrorResponse(err error) (int, string) {
	switch err {
	case chat.ErrMissingReceiver, chat.ErrEmptyContent:
		return http.StatusBadRequest, "Receiver ID and content are required"
	case chat.ErrReceiverNotFound:
		return http.StatusNotFound, "Receiver not found or inactive"
	default:
		return http.StatusInternalServerError, "Failed to send message"
	}
}

func intQuery(c *gin.Context, name string, fallback int) int {
	v, err := strconv.Atoi(c.Query(name))
	if err != nil || v < 1 {
		return fallback
	}
	return v
}
