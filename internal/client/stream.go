package client

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/gorilla/websocket"
)

// Frame is one event received on the websocket stream. Only the fields
// relevant to the frame's Type are populated.
type Frame struct {
	Type        string    `json:"type"`
	Message     string    `json:"message,omitempty"`
	UserID      string    `json:"userId,omitempty"`
	Online      bool      `json:"online,omitempty"`
	Typing      bool      `json:"typing,omitempty"`
	ReadBy      string    `json:"readBy,omitempty"`
	ID          string    `json:"id,omitempty"`
	SenderID    string    `json:"senderId,omitempty"`
	ReceiverID  string    `json:"receiverId,omitempty"`
	Content     string    `json:"content,omitempty"`
	SenderName  string    `json:"senderName,omitempty"`
	SenderEmail string    `json:"senderEmail,omitempty"`
	CreatedAt   time.Time `json:"createdAt,omitempty"`
}

// Stream is an authenticated websocket connection to the daemon.
type Stream struct {
	ws     *websocket.Conn
	frames chan Frame
	errs   chan error
}

// Connect dials the daemon's websocket endpoint and authenticates in-band.
// It blocks until the daemon confirms or rejects the token.
func (c *Client) Connect(ctx context.Context) (*Stream, error) {
	wsURL := "ws" + strings.TrimPrefix(c.baseURL, "http") + "/ws"
	ws, _, err := websocket.DefaultDialer.DialContext(ctx, wsURL, nil)
	if err != nil {
		return nil, err
	}

	if err := ws.WriteJSON(map[string]string{"type": "authenticate", "token": c.token}); err != nil {
		_ = ws.Close()
		return nil, err
	}

	deadline := time.Now().Add(10 * time.Second)
	if d, ok := ctx.Deadline(); ok {
		deadline = d
	}
	_ = ws.SetReadDeadline(deadline)
	var frame Frame
	if err := ws.ReadJSON(&frame); err != nil {
		_ = ws.Close()
		return nil, err
	}
	if frame.Type != "authenticated" {
		_ = ws.Close()
		return nil, fmt.Errorf("authentication rejected: %s", frame.Message)
	}
	_ = ws.SetReadDeadline(time.Time{})

	s := &Stream{
		ws:     ws,
		frames: make(chan Frame, 64),
		errs:   make(chan error, 1),
	}
	go s.readLoop()
	return s, nil
}

// Frames returns the channel of incoming events. It is closed when the
// connection ends; Err reports why.
func (s *Stream) Frames() <-chan Frame {
	return s.frames
}

// Err returns a channel delivering the terminal read error, if any.
func (s *Stream) Err() <-chan error {
	return s.errs
}

// Send delivers a message over the stream. The acknowledgement arrives as a
// message_sent frame.
func (s *Stream) Send(receiverID, content string) error {
	return s.writeJSON(map[string]string{
		"type": "send_message", "receiverId": receiverID, "content": content,
	})
}

// Typing signals a typing indicator to receiverID.
func (s *Stream) Typing(receiverID string, typing bool) error {
	t := "typing_start"
	if !typing {
		t = "typing_stop"
	}
	return s.writeJSON(map[string]string{"type": t, "receiverId": receiverID})
}

// MarkRead marks the thread with counterpartID as read.
func (s *Stream) MarkRead(counterpartID string) error {
	return s.writeJSON(map[string]string{"type": "mark_read", "counterpartId": counterpartID})
}

// Close terminates the stream.
func (s *Stream) Close() error {
	_ = s.ws.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
	return s.ws.Close()
}

func (s *Stream) writeJSON(v any) error {
	_ = s.ws.SetWriteDeadline(time.Now().Add(10 * time.Second))
	return s.ws.WriteJSON(v)
}

func (s *Stream) readLoop() {
	defer close(s.frames)
	for {
		_, raw, err := s.ws.ReadMessage()
		if err != nil {
			s.errs <- err
			return
		}
		var frame Frame
		if err := json.Unmarshal(raw, &frame); err != nil {
			continue
		}
		s.frames <- frame
	}
}
