package chat

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/mudassir044/aupair-messaging/internal/bus"
	"github.com/mudassir044/aupair-messaging/internal/store"
	"github.com/mudassir044/aupair-messaging/internal/store/sqlite"
	"go.uber.org/zap"
)

func testService(t *testing.T) (*Service, *bus.Bus) {
	t.Helper()
	db, err := sqlite.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := db.Migrate(); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = db.Close() })

	b := bus.New()
	svc := NewService(db, b, zap.NewNop())

	ctx := context.Background()
	for _, id := range []string{"alice", "bob", "carol"} {
		if err := db.UpsertUser(ctx, &store.User{ID: id, Email: id + "@example.com", Role: "AU_PAIR", Active: true}); err != nil {
			t.Fatal(err)
		}
	}
	if err := db.UpsertUser(ctx, &store.User{ID: "dave", Email: "dave@example.com", Role: "HOST_FAMILY", Active: false}); err != nil {
		t.Fatal(err)
	}
	if err := db.UpsertProfile(ctx, &store.Profile{UserID: "bob", DisplayName: "Bob Miller", PhotoURL: "https://cdn/bob.jpg"}); err != nil {
		t.Fatal(err)
	}
	return svc, b
}

func recvEvent(t *testing.T, ch <-chan bus.Event) bus.Event {
	t.Helper()
	select {
	case evt := <-ch:
		return evt
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for bus event")
		return bus.Event{}
	}
}

func TestSendPersistsAndPublishes(t *testing.T) {
	svc, b := testService(t)
	ch, unsub := b.Subscribe("message.", 10)
	defer unsub()

	msg, err := svc.Send(context.Background(), "alice", "bob", "  hello  ")
	if err != nil {
		t.Fatal(err)
	}
	if msg.Content != "hello" {
		t.Errorf("content = %q, want trimmed %q", msg.Content, "hello")
	}
	if msg.Read {
		t.Error("new message must be unread")
	}
	if msg.ID == "" {
		t.Error("message has no id")
	}

	evt := recvEvent(t, ch)
	if evt.Kind != bus.KindMessageCreated {
		t.Fatalf("event kind = %q", evt.Kind)
	}
	me, ok := evt.Payload.(MessageEvent)
	if !ok {
		t.Fatalf("payload type = %T", evt.Payload)
	}
	if me.Message.ID != msg.ID {
		t.Errorf("event message id = %q, want %q", me.Message.ID, msg.ID)
	}
	if me.SenderEmail != "alice@example.com" {
		t.Errorf("sender email = %q", me.SenderEmail)
	}
}

func TestSendValidation(t *testing.T) {
	svc, _ := testService(t)
	ctx := context.Background()

	if _, err := svc.Send(ctx, "alice", "bob", "   "); !errors.Is(err, ErrEmptyContent) {
		t.Errorf("whitespace content: error = %v, want ErrEmptyContent", err)
	}
	if _, err := svc.Send(ctx, "alice", "", "hi"); !errors.Is(err, ErrMissingReceiver) {
		t.Errorf("missing receiver: error = %v, want ErrMissingReceiver", err)
	}
	if _, err := svc.Send(ctx, "alice", "nobody", "hi"); !errors.Is(err, ErrReceiverNotFound) {
		t.Errorf("unknown receiver: error = %v, want ErrReceiverNotFound", err)
	}
	if _, err := svc.Send(ctx, "alice", "dave", "hi"); !errors.Is(err, ErrReceiverNotFound) {
		t.Errorf("inactive receiver: error = %v, want ErrReceiverNotFound", err)
	}

	// None of the rejected sends may have persisted anything.
	msgs, err := svc.Conversations(ctx, "alice")
	if err != nil {
		t.Fatal(err)
	}
	if len(msgs) != 0 {
		t.Errorf("got %d conversations after rejected sends, want 0", len(msgs))
	}
}

func TestConversationsGrouping(t *testing.T) {
	svc, _ := testService(t)
	ctx := context.Background()

	mustSend := func(from, to, text string) {
		t.Helper()
		if _, err := svc.Send(ctx, from, to, text); err != nil {
			t.Fatal(err)
		}
		// Timestamps have millisecond resolution; keep the order unambiguous.
		time.Sleep(2 * time.Millisecond)
	}
	mustSend("bob", "alice", "hi alice")
	mustSend("bob", "alice", "you there?")
	mustSend("alice", "bob", "yes")
	mustSend("carol", "alice", "hello from carol")

	convs, err := svc.Conversations(ctx, "alice")
	if err != nil {
		t.Fatal(err)
	}
	if len(convs) != 2 {
		t.Fatalf("got %d conversations, want 2", len(convs))
	}

	// Most recent conversation first.
	if convs[0].PartnerID != "carol" || convs[1].PartnerID != "bob" {
		t.Errorf("order = %s, %s; want carol, bob", convs[0].PartnerID, convs[1].PartnerID)
	}
	if convs[0].UnreadCount != 1 {
		t.Errorf("carol unread = %d, want 1", convs[0].UnreadCount)
	}
	if convs[1].UnreadCount != 2 {
		t.Errorf("bob unread = %d, want 2 (alice's own sends don't count)", convs[1].UnreadCount)
	}
	if convs[1].PartnerName != "Bob Miller" {
		t.Errorf("partner name = %q, want profile display name", convs[1].PartnerName)
	}
	if convs[0].PartnerName != "carol@example.com" {
		t.Errorf("partner without profile: name = %q, want email fallback", convs[0].PartnerName)
	}
	if convs[1].LastMessage.Content != "yes" {
		t.Errorf("bob last message = %q, want %q", convs[1].LastMessage.Content, "yes")
	}
}

func TestHistoryFlipsReadAndReturnsAscending(t *testing.T) {
	svc, b := testService(t)
	ctx := context.Background()

	if _, err := svc.Send(ctx, "alice", "bob", "one"); err != nil {
		t.Fatal(err)
	}
	time.Sleep(2 * time.Millisecond)
	if _, err := svc.Send(ctx, "alice", "bob", "two"); err != nil {
		t.Fatal(err)
	}

	ch, unsub := b.Subscribe("message.read", 10)
	defer unsub()

	msgs, err := svc.History(ctx, "bob", "alice", 1, 50)
	if err != nil {
		t.Fatal(err)
	}
	if len(msgs) != 2 {
		t.Fatalf("got %d messages, want 2", len(msgs))
	}
	if msgs[0].Content != "one" || msgs[1].Content != "two" {
		t.Errorf("ascending order expected, got %q, %q", msgs[0].Content, msgs[1].Content)
	}
	for _, m := range msgs {
		if !m.Read {
			t.Errorf("message %q not flipped to read", m.Content)
		}
	}

	evt := recvEvent(t, ch)
	re, ok := evt.Payload.(ReadEvent)
	if !ok {
		t.Fatalf("payload type = %T", evt.Payload)
	}
	if re.ReadBy != "bob" || re.CounterpartID != "alice" {
		t.Errorf("read event = %+v", re)
	}

	// Unread count must now be zero.
	convs, err := svc.Conversations(ctx, "bob")
	if err != nil {
		t.Fatal(err)
	}
	if convs[0].UnreadCount != 0 {
		t.Errorf("unread after history fetch = %d, want 0", convs[0].UnreadCount)
	}

	// Second fetch publishes no further read event.
	if _, err := svc.History(ctx, "bob", "alice", 1, 50); err != nil {
		t.Fatal(err)
	}
	select {
	case evt := <-ch:
		t.Errorf("unexpected second read event: %v", evt)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestHistoryDoesNotFlipSendersOwnView(t *testing.T) {
	svc, _ := testService(t)
	ctx := context.Background()

	if _, err := svc.Send(ctx, "alice", "bob", "hi"); err != nil {
		t.Fatal(err)
	}

	// The sender viewing the thread must not mark the receiver's copy read.
	msgs, err := svc.History(ctx, "alice", "bob", 1, 50)
	if err != nil {
		t.Fatal(err)
	}
	if msgs[0].Read {
		t.Error("sender's history fetch flipped read flag")
	}

	convs, err := svc.Conversations(ctx, "bob")
	if err != nil {
		t.Fatal(err)
	}
	if convs[0].UnreadCount != 1 {
		t.Errorf("bob unread = %d, want 1", convs[0].UnreadCount)
	}
}

func TestMarkReadIdempotent(t *testing.T) {
	svc, b := testService(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if _, err := svc.Send(ctx, "alice", "bob", "msg"); err != nil {
			t.Fatal(err)
		}
	}

	ch, unsub := b.Subscribe("message.read", 10)
	defer unsub()

	n, err := svc.MarkRead(ctx, "alice", "bob")
	if err != nil {
		t.Fatal(err)
	}
	if n != 3 {
		t.Errorf("flipped %d, want 3", n)
	}
	recvEvent(t, ch)

	n, err = svc.MarkRead(ctx, "alice", "bob")
	if err != nil {
		t.Fatal(err)
	}
	if n != 0 {
		t.Errorf("second call flipped %d, want 0", n)
	}
	select {
	case evt := <-ch:
		t.Errorf("idempotent call published event: %v", evt)
	case <-time.After(50 * time.Millisecond):
	}
}

// Offline scenario from the product requirements: a message sent while the
// receiver is offline is durable and the first history fetch clears it.
func TestOfflineSendThenHistory(t *testing.T) {
	svc, _ := testService(t)
	ctx := context.Background()

	if _, err := svc.Send(ctx, "alice", "bob", "Hello"); err != nil {
		t.Fatal(err)
	}

	convs, err := svc.Conversations(ctx, "bob")
	if err != nil {
		t.Fatal(err)
	}
	if convs[0].UnreadCount != 1 {
		t.Fatalf("unread = %d, want 1", convs[0].UnreadCount)
	}

	msgs, err := svc.History(ctx, "bob", "alice", 1, 50)
	if err != nil {
		t.Fatal(err)
	}
	if len(msgs) != 1 || msgs[0].Content != "Hello" {
		t.Fatalf("history = %+v", msgs)
	}

	convs, err = svc.Conversations(ctx, "bob")
	if err != nil {
		t.Fatal(err)
	}
	if convs[0].UnreadCount != 0 {
		t.Errorf("unread after fetch = %d, want 0", convs[0].UnreadCount)
	}
}
