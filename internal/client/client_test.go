package client

import (
	"context"
	"errors"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/mudassir044/aupair-messaging/internal/api"
	"github.com/mudassir044/aupair-messaging/internal/bus"
	"github.com/mudassir044/aupair-messaging/internal/chat"
	"github.com/mudassir044/aupair-messaging/internal/relay"
	"github.com/mudassir044/aupair-messaging/internal/status"
	"github.com/mudassir044/aupair-messaging/internal/store"
	"github.com/mudassir044/aupair-messaging/internal/store/sqlite"
	"github.com/mudassir044/aupair-messaging/internal/token"
	"go.uber.org/zap"
)

const testSecret = "client-test-secret"

// newTestDaemon assembles the daemon's HTTP surface against a throwaway
// sqlite store and returns its base URL.
func newTestDaemon(t *testing.T) string {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, err := sqlite.Open(filepath.Join(t.TempDir(), "client.db"))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := db.Migrate(); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = db.Close() })

	ctx := context.Background()
	for _, id := range []string{"alice", "bob"} {
		if err := db.UpsertUser(ctx, &store.User{ID: id, Email: id + "@example.com", Role: "AU_PAIR", Active: true}); err != nil {
			t.Fatal(err)
		}
	}

	b := bus.New()
	svc := chat.NewService(db, b, zap.NewNop())
	machine := status.NewMachine(b)
	if err := machine.Transition(status.Ready); err != nil {
		t.Fatal(err)
	}
	hub := relay.NewHub(b, zap.NewNop())
	hub.Start()
	t.Cleanup(hub.Stop)

	verifier := token.NewVerifier(testSecret)
	wsHandler := relay.NewHandler(hub, svc, verifier, db, zap.NewNop(), nil)

	engine := gin.New()
	api.NewServer(svc, machine, zap.NewNop()).Register(engine, verifier, db, wsHandler.Handle())

	srv := httptest.NewServer(engine)
	t.Cleanup(srv.Close)
	return srv.URL
}

func newClient(t *testing.T, baseURL, userID string) *Client {
	t.Helper()
	tok, err := token.Sign(testSecret, userID, time.Minute)
	if err != nil {
		t.Fatal(err)
	}
	return New(baseURL, tok)
}

func TestRestRoundTrip(t *testing.T) {
	base := newTestDaemon(t)
	alice := newClient(t, base, "alice")
	bob := newClient(t, base, "bob")
	ctx := context.Background()

	health, err := alice.Health(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if health.Status != "READY" {
		t.Errorf("health = %+v", health)
	}

	sent, err := alice.Send(ctx, "bob", "hello from the client")
	if err != nil {
		t.Fatal(err)
	}
	if sent.ID == "" || sent.SenderID != "alice" {
		t.Errorf("sent = %+v", sent)
	}

	convs, err := bob.Conversations(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(convs) != 1 || convs[0].PartnerID != "alice" || convs[0].UnreadCount != 1 {
		t.Fatalf("conversations = %+v", convs)
	}

	msgs, err := bob.History(ctx, "alice", 1, 50)
	if err != nil {
		t.Fatal(err)
	}
	if len(msgs) != 1 || msgs[0].Content != "hello from the client" {
		t.Fatalf("history = %+v", msgs)
	}
}

func TestRestErrorsSurfaceAsAPIError(t *testing.T) {
	base := newTestDaemon(t)
	alice := newClient(t, base, "alice")

	_, err := alice.Send(context.Background(), "ghost", "hi")
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("error = %v, want *APIError", err)
	}
	if apiErr.StatusCode != 404 {
		t.Errorf("status = %d", apiErr.StatusCode)
	}

	bad := New(base, "not-a-token")
	if _, err := bad.Conversations(context.Background()); !errors.As(err, &apiErr) || apiErr.StatusCode != 401 {
		t.Errorf("bad token error = %v", err)
	}
}

func TestStreamDeliversLiveMessages(t *testing.T) {
	base := newTestDaemon(t)
	alice := newClient(t, base, "alice")
	bob := newClient(t, base, "bob")
	ctx := context.Background()

	stream, err := bob.Connect(ctx)
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = stream.Close() }()

	if _, err := alice.Send(ctx, "bob", "live one"); err != nil {
		t.Fatal(err)
	}

	deadline := time.After(3 * time.Second)
	for {
		select {
		case frame := <-stream.Frames():
			if frame.Type != "new_message" {
				continue
			}
			if frame.Content != "live one" || frame.SenderID != "alice" {
				t.Fatalf("frame = %+v", frame)
			}
			return
		case <-deadline:
			t.Fatal("no new_message frame received")
		}
	}
}

func TestStreamRejectsBadToken(t *testing.T) {
	base := newTestDaemon(t)
	bad := New(base, "garbage")

	if _, err := bad.Connect(context.Background()); err == nil {
		t.Fatal("connect with a bad token must fail")
	}
}
