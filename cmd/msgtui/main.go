package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"github.com/mudassir044/aupair-messaging/internal/client"
	"github.com/mudassir044/aupair-messaging/internal/tui"
)

func main() {
	urlFlag := flag.String("url", envOr("MSGD_URL", "http://localhost:8080"), "daemon base URL")
	tokenFlag := flag.String("token", os.Getenv("MSGD_TOKEN"), "bearer token")
	flag.Parse()

	if *tokenFlag == "" {
		fmt.Fprintln(os.Stderr, "error: no token (set MSGD_TOKEN or pass --token; mint one with msgctl token)")
		os.Exit(1)
	}

	c := client.New(*urlFlag, *tokenFlag)

	// Probe daemon health; auto-start if needed.
	if !probeDaemon(c) {
		fmt.Fprintln(os.Stderr, "daemon not running, starting...")
		if err := startDaemon(); err != nil {
			fmt.Fprintf(os.Stderr, "failed to start daemon: %v\n", err)
			os.Exit(1)
		}
		if !waitForDaemon(c, 10*time.Second) {
			fmt.Fprintln(os.Stderr, "daemon did not become ready")
			os.Exit(1)
		}
	}

	app := tui.NewApp(c)
	if err := app.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func probeDaemon(c *client.Client) bool {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_, err := c.Health(ctx)
	return err == nil
}

func startDaemon() error {
	executable, err := os.Executable()
	if err != nil {
		return err
	}
	msgd := filepath.Join(filepath.Dir(executable), "msgd")

	if _, err := os.Stat(msgd); err != nil {
		msgd = "msgd"
	}

	cmd := exec.Command(msgd)
	// Inherit stderr so daemon startup errors are visible.
	cmd.Stderr = os.Stderr
	return cmd.Start()
}

func waitForDaemon(c *client.Client, timeout time.Duration) bool {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if probeDaemon(c) {
			return true
		}
		time.Sleep(300 * time.Millisecond)
	}
	return false
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
