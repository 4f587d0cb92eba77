// Package client is the Go client for the messaging daemon, covering the
// REST surface and the websocket stream. msgctl and msgtui are built on it.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"
)

// Client talks to a running daemon over HTTP.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
}

// New creates a client for the daemon at baseURL (e.g. http://localhost:8080)
// authenticating with the given bearer token.
func New(baseURL, token string) *Client {
	return &Client{
		baseURL: baseURL,
		token:   token,
		http:    &http.Client{Timeout: 10 * time.Second},
	}
}

// Message mirrors the daemon's message JSON.
type Message struct {
	ID         string    `json:"id"`
	SenderID   string    `json:"senderId"`
	ReceiverID string    `json:"receiverId"`
	Content    string    `json:"content"`
	IsRead     bool      `json:"isRead"`
	CreatedAt  time.Time `json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

// Conversation mirrors the daemon's conversation JSON.
type Conversation struct {
	PartnerID    string  `json:"partnerId"`
	PartnerName  string  `json:"partnerName"`
	PartnerEmail string  `json:"partnerEmail"`
	PartnerPhoto string  `json:"partnerPhoto"`
	LastMessage  Message `json:"lastMessage"`
	UnreadCount  int     `json:"unreadCount"`
}

// Health is the daemon's health response.
type Health struct {
	Status string `json:"status"`
	Uptime string `json:"uptime"`
}

// APIError carries the HTTP status and the daemon's error message.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("daemon returned %d: %s", e.StatusCode, e.Message)
}

// Health checks daemon liveness. No token required.
func (c *Client) Health(ctx context.Context) (*Health, error) {
	var out Health
	if err := c.do(ctx, http.MethodGet, "/health", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Conversations lists the caller's conversation summaries.
func (c *Client) Conversations(ctx context.Context) ([]Conversation, error) {
	var out struct {
		Conversations []Conversation `json:"conversations"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/messages/conversations", nil, &out); err != nil {
		return nil, err
	}
	return out.Conversations, nil
}

// History fetches one page of the thread with otherID, oldest first.
// Fetching marks the page's messages to the caller as read.
func (c *Client) History(ctx context.Context, otherID string, page, limit int) ([]Message, error) {
	path := "/api/messages/with/" + otherID +
		"?page=" + strconv.Itoa(page) + "&limit=" + strconv.Itoa(limit)
	var out struct {
		Messages []Message `json:"messages"`
	}
	if err := c.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return out.Messages, nil
}

// Send delivers a message to receiverID.
func (c *Client) Send(ctx context.Context, receiverID, content string) (*Message, error) {
	body := map[string]string{"receiverId": receiverID, "content": content}
	var out struct {
		Data Message `json:"data"`
	}
	if err := c.do(ctx, http.MethodPost, "/api/messages", body, &out); err != nil {
		return nil, err
	}
	return &out.Data, nil
}

// MarkRead flips every unread message from senderID to the caller and
// returns how many changed.
func (c *Client) MarkRead(ctx context.Context, senderID string) (int64, error) {
	body := map[string]string{"senderId": senderID}
	var out struct {
		Updated int64 `json:"updated"`
	}
	if err := c.do(ctx, http.MethodPut, "/api/messages/read", body, &out); err != nil {
		return 0, err
	}
	return out.Updated, nil
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return err
		}
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, &buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= 400 {
		var e struct {
			Message string `json:"message"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&e)
		return &APIError{StatusCode: resp.StatusCode, Message: e.Message}
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
