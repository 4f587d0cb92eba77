package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/mudassir044/aupair-messaging/internal/bus"
	"github.com/mudassir044/aupair-messaging/internal/chat"
	"github.com/mudassir044/aupair-messaging/internal/status"
	"github.com/mudassir044/aupair-messaging/internal/store"
	"github.com/mudassir044/aupair-messaging/internal/store/sqlite"
	"github.com/mudassir044/aupair-messaging/internal/token"
	"go.uber.org/zap"
)

const testSecret = "api-test-secret"

type testEnv struct {
	engine *gin.Engine
	svc    *chat.Service
	db     *sqlite.DB
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, err := sqlite.Open(filepath.Join(t.TempDir(), "api.db"))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := db.Migrate(); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = db.Close() })

	ctx := context.Background()
	for _, id := range []string{"alice", "bob"} {
		if err := db.UpsertUser(ctx, &store.User{ID: id, Email: id + "@example.com", Role: "HOST_FAMILY", Active: true}); err != nil {
			t.Fatal(err)
		}
	}
	if err := db.UpsertUser(ctx, &store.User{ID: "dave", Email: "dave@example.com", Role: "AU_PAIR", Active: false}); err != nil {
		t.Fatal(err)
	}

	b := bus.New()
	svc := chat.NewService(db, b, zap.NewNop())
	machine := status.NewMachine(b)
	if err := machine.Transition(status.Ready); err != nil {
		t.Fatal(err)
	}

	engine := gin.New()
	NewServer(svc, machine, zap.NewNop()).Register(engine, token.NewVerifier(testSecret), db, nil)
	return &testEnv{engine: engine, svc: svc, db: db}
}

func (e *testEnv) do(t *testing.T, method, path, asUser string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatal(err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if asUser != "" {
		tok, err := token.Sign(testSecret, asUser, time.Minute)
		if err != nil {
			t.Fatal(err)
		}
		req.Header.Set("Authorization", "Bearer "+tok)
	}
	w := httptest.NewRecorder()
	e.engine.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
		t.Fatalf("decoding %q: %v", w.Body.String(), err)
	}
	return out
}

func TestHealthIsPublic(t *testing.T) {
	env := newTestEnv(t)
	w := env.do(t, http.MethodGet, "/health", "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if got := decode(t, w)["status"]; got != "READY" {
		t.Errorf("status field = %v", got)
	}
}

func TestAuthRejections(t *testing.T) {
	env := newTestEnv(t)

	if w := env.do(t, http.MethodGet, "/api/conversations", "", nil); w.Code != http.StatusUnauthorized {
		t.Errorf("no token: status = %d", w.Code)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/conversations", nil)
	req.Header.Set("Authorization", "Bearer not-a-token")
	w := httptest.NewRecorder()
	env.engine.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("bad token: status = %d", w.Code)
	}

	// A valid token for a deactivated account is no better.
	if w := env.do(t, http.MethodGet, "/api/conversations", "dave", nil); w.Code != http.StatusUnauthorized {
		t.Errorf("inactive user: status = %d", w.Code)
	}
}

func TestSendMessage(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, http.MethodPost, "/api/messages", "alice", map[string]string{
		"receiverId": "bob", "content": "hello over REST",
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	out := decode(t, w)
	if out["message"] != "Message sent successfully" {
		t.Errorf("message = %v", out["message"])
	}
	data := out["data"].(map[string]any)
	if data["senderId"] != "alice" || data["content"] != "hello over REST" || data["isRead"] != false {
		t.Errorf("data = %v", data)
	}
}

func TestSendMessageErrors(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, http.MethodPost, "/api/messages", "alice", map[string]string{"receiverId": "bob", "content": " "})
	if w.Code != http.StatusBadRequest {
		t.Errorf("empty content: status = %d", w.Code)
	}
	w = env.do(t, http.MethodPost, "/api/messages", "alice", map[string]string{"receiverId": "ghost", "content": "hi"})
	if w.Code != http.StatusNotFound {
		t.Errorf("unknown receiver: status = %d", w.Code)
	}
	w = env.do(t, http.MethodPost, "/api/messages", "alice", map[string]string{"receiverId": "dave", "content": "hi"})
	if w.Code != http.StatusNotFound {
		t.Errorf("inactive receiver: status = %d", w.Code)
	}
}

func TestConversationsAndAlias(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	if _, err := env.svc.Send(ctx, "bob", "alice", "first"); err != nil {
		t.Fatal(err)
	}

	for _, path := range []string{"/api/messages/conversations", "/api/conversations"} {
		w := env.do(t, http.MethodGet, path, "alice", nil)
		if w.Code != http.StatusOK {
			t.Fatalf("%s: status = %d", path, w.Code)
		}
		convs := decode(t, w)["conversations"].([]any)
		if len(convs) != 1 {
			t.Fatalf("%s: %d conversations", path, len(convs))
		}
		conv := convs[0].(map[string]any)
		if conv["partnerId"] != "bob" || conv["unreadCount"] != float64(1) {
			t.Errorf("%s: conversation = %v", path, conv)
		}
	}
}

func TestHistoryFlipsReadAndPaginates(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	for _, text := range []string{"one", "two", "three"} {
		if _, err := env.svc.Send(ctx, "alice", "bob", text); err != nil {
			t.Fatal(err)
		}
		time.Sleep(2 * time.Millisecond)
	}

	w := env.do(t, http.MethodGet, "/api/messages/with/alice?page=1&limit=2", "bob", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	out := decode(t, w)
	msgs := out["messages"].([]any)
	if len(msgs) != 2 {
		t.Fatalf("page size = %d", len(msgs))
	}
	// Newest page, ascending within the page.
	first := msgs[0].(map[string]any)
	second := msgs[1].(map[string]any)
	if first["content"] != "two" || second["content"] != "three" {
		t.Errorf("page contents = %v, %v", first["content"], second["content"])
	}
	if out["page"] != float64(1) || out["limit"] != float64(2) {
		t.Errorf("page/limit echoed wrong: %v/%v", out["page"], out["limit"])
	}

	// The fetched page is now read; the older message is untouched.
	convs, err := env.svc.Conversations(context.Background(), "bob")
	if err != nil {
		t.Fatal(err)
	}
	if convs[0].UnreadCount != 1 {
		t.Errorf("unread after paged fetch = %d, want 1", convs[0].UnreadCount)
	}
}

func TestMarkRead(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	for i := 0; i < 2; i++ {
		if _, err := env.svc.Send(ctx, "alice", "bob", "msg"); err != nil {
			t.Fatal(err)
		}
	}

	w := env.do(t, http.MethodPut, "/api/messages/read", "bob", map[string]string{"senderId": "alice"})
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if got := decode(t, w)["updated"]; got != float64(2) {
		t.Errorf("updated = %v", got)
	}

	if w := env.do(t, http.MethodPut, "/api/messages/read", "bob", map[string]string{}); w.Code != http.StatusBadRequest {
		t.Errorf("missing senderId: status = %d", w.Code)
	}
}
