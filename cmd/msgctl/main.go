package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/mudassir044/aupair-messaging/internal/client"
	"github.com/mudassir044/aupair-messaging/internal/config"
	"github.com/mudassir044/aupair-messaging/internal/store"
	"github.com/mudassir044/aupair-messaging/internal/store/postgres"
	"github.com/mudassir044/aupair-messaging/internal/store/sqlite"
	"github.com/mudassir044/aupair-messaging/internal/token"
)

func main() {
	urlFlag := flag.String("url", envOr("MSGD_URL", "http://localhost:8080"), "daemon base URL")
	tokenFlag := flag.String("token", os.Getenv("MSGD_TOKEN"), "bearer token")
	configFlag := flag.String("config", config.DefaultPath(), "config file path (for token/seed-user)")
	jsonFlag := flag.Bool("json", false, "output in JSON format")
	pageFlag := flag.Int("page", 1, "history page")
	limitFlag := flag.Int("limit", 50, "history page size")
	flag.Parse()

	args := flag.Args()
	if len(args) == 0 {
		printUsage()
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	c := client.New(*urlFlag, *tokenFlag)

	switch args[0] {
	case "health":
		cmdHealth(ctx, c, *jsonFlag)
	case "token":
		if len(args) < 2 {
			fmt.Fprintln(os.Stderr, "usage: msgctl token <user-id>")
			os.Exit(1)
		}
		cmdToken(*configFlag, args[1])
	case "seed-user":
		if len(args) < 4 {
			fmt.Fprintln(os.Stderr, "usage: msgctl seed-user <user-id> <email> <role>")
			os.Exit(1)
		}
		cmdSeedUser(ctx, *configFlag, args[1], args[2], args[3])
	case "conversations":
		cmdConversations(ctx, c, *jsonFlag)
	case "history":
		if len(args) < 2 {
			fmt.Fprintln(os.Stderr, "usage: msgctl history <user-id>")
			os.Exit(1)
		}
		cmdHistory(ctx, c, args[1], *pageFlag, *limitFlag, *jsonFlag)
	case "send":
		if len(args) < 3 {
			fmt.Fprintln(os.Stderr, "usage: msgctl send <user-id> <content>")
			os.Exit(1)
		}
		cmdSend(ctx, c, args[1], strings.Join(args[2:], " "), *jsonFlag)
	case "watch":
		cmdWatch(c)
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n", args[0])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Fprintln(os.Stderr, "usage: msgctl [--url <base>] [--token <jwt>] [--json] <command>")
	fmt.Fprintln(os.Stderr, "")
	fmt.Fprintln(os.Stderr, "commands:")
	fmt.Fprintln(os.Stderr, "  health                          Show daemon status")
	fmt.Fprintln(os.Stderr, "  token <user-id>                 Mint a dev token for a user")
	fmt.Fprintln(os.Stderr, "  seed-user <id> <email> <role>   Insert a user directly into the store")
	fmt.Fprintln(os.Stderr, "  conversations                   List conversations")
	fmt.Fprintln(os.Stderr, "  history <user-id>               Show the thread with a user")
	fmt.Fprintln(os.Stderr, "  send <user-id> <content>        Send a message")
	fmt.Fprintln(os.Stderr, "  watch                           Stream live events to stdout")
}

func fatal(err error) {
	fmt.Fprintf(os.Stderr, "error: %v\n", err)
	os.Exit(1)
}

func cmdHealth(ctx context.Context, c *client.Client, jsonOut bool) {
	h, err := c.Health(ctx)
	if err != nil {
		fatal(err)
	}
	if jsonOut {
		outputJSON(h)
		return
	}
	fmt.Printf("Status: %s\n", h.Status)
	fmt.Printf("Uptime: %s\n", h.Uptime)
}

func cmdToken(configPath, userID string) {
	cfg, err := config.Load(configPath)
	if err != nil {
		fatal(err)
	}
	tok, err := token.Sign(cfg.JWTSecret, userID, 24*time.Hour)
	if err != nil {
		fatal(err)
	}
	fmt.Println(tok)
}

func cmdSeedUser(ctx context.Context, configPath, id, email, role string) {
	cfg, err := config.Load(configPath)
	if err != nil {
		fatal(err)
	}
	st, err := openStore(ctx, cfg)
	if err != nil {
		fatal(err)
	}
	defer func() { _ = st.Close() }()

	if err := st.UpsertUser(ctx, &store.User{ID: id, Email: email, Role: role, Active: true}); err != nil {
		fatal(err)
	}
	fmt.Printf("user %s (%s) seeded\n", id, email)
}

func openStore(ctx context.Context, cfg *config.Config) (store.Store, error) {
	if cfg.DBDriver == "postgres" {
		db, err := postgres.Open(ctx, cfg.DBURL)
		if err != nil {
			return nil, err
		}
		if _, err := db.Migrate(); err != nil {
			_ = db.Close()
			return nil, err
		}
		return db, nil
	}
	db, err := sqlite.Open(cfg.DBPath())
	if err != nil {
		return nil, err
	}
	if _, err := db.Migrate(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

func cmdConversations(ctx context.Context, c *client.Client, jsonOut bool) {
	convs, err := c.Conversations(ctx)
	if err != nil {
		fatal(err)
	}
	if jsonOut {
		outputJSON(convs)
		return
	}
	if len(convs) == 0 {
		fmt.Println("No conversations.")
		return
	}
	for _, conv := range convs {
		unread := ""
		if conv.UnreadCount > 0 {
			unread = fmt.Sprintf(" (%d unread)", conv.UnreadCount)
		}
		fmt.Printf("%-24s %s%s\n", conv.PartnerName, conv.LastMessage.Content, unread)
	}
}

func cmdHistory(ctx context.Context, c *client.Client, otherID string, page, limit int, jsonOut bool) {
	msgs, err := c.History(ctx, otherID, page, limit)
	if err != nil {
		fatal(err)
	}
	if jsonOut {
		outputJSON(msgs)
		return
	}
	for _, m := range msgs {
		fmt.Printf("[%s] %s: %s\n", m.CreatedAt.Local().Format("15:04"), m.SenderID, m.Content)
	}
}

func cmdSend(ctx context.Context, c *client.Client, receiverID, content string, jsonOut bool) {
	msg, err := c.Send(ctx, receiverID, content)
	if err != nil {
		fatal(err)
	}
	if jsonOut {
		outputJSON(msg)
		return
	}
	fmt.Printf("sent %s\n", msg.ID)
}

func cmdWatch(c *client.Client) {
	stream, err := c.Connect(context.Background())
	if err != nil {
		fatal(err)
	}
	defer func() { _ = stream.Close() }()

	fmt.Fprintln(os.Stderr, "watching (ctrl-c to stop)")
	for frame := range stream.Frames() {
		switch frame.Type {
		case "new_message":
			fmt.Printf("[message] %s: %s\n", frame.SenderID, frame.Content)
		case "user_typing":
			state := "stopped typing"
			if frame.Typing {
				state = "typing"
			}
			fmt.Printf("[typing] %s is %s\n", frame.UserID, state)
		case "messages_read":
			fmt.Printf("[read] %s read your messages\n", frame.ReadBy)
		case "user_status":
			state := "offline"
			if frame.Online {
				state = "online"
			}
			fmt.Printf("[presence] %s is %s\n", frame.UserID, state)
		default:
			outputJSON(frame)
		}
	}
	if err := <-stream.Err(); err != nil {
		fatal(err)
	}
}

func outputJSON(v any) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		fmt.Fprintf(os.Stderr, "json encode error: %v\n", err)
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
