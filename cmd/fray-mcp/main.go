package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/frayhub/fray/internal/core"
	"github.com/frayhub/fray/internal/mcp"
	db "github.com/frayhub/fray/internal/store"
	"github.com/frayhub/fray/internal/wiring"
)

// Version is overwritten at build time using -ldflags.
var Version = "dev"

func main() {
	dbPath := os.Getenv("FRAY_DB_PATH")
	if dbPath == "" {
		var err error
		dbPath, err = core.DefaultDBPath()
		if err != nil {
			fmt.Fprintf(os.Stderr, "fray-mcp: %v\n", err)
			os.Exit(1)
		}
	}
	promptsDir := os.Getenv("FRAY_PROMPTS_DIR")
	if promptsDir == "" {
		var err error
		promptsDir, err = core.DefaultPromptsDir()
		if err != nil {
			fmt.Fprintf(os.Stderr, "fray-mcp: %v\n", err)
			os.Exit(1)
		}
	}

	if err := run(dbPath, promptsDir); err != nil {
		fmt.Fprintf(os.Stderr, "fray-mcp: %v\n", err)
		os.Exit(1)
	}
}

// run opens the same SQLite store fray-hubd uses (set FRAY_DB_PATH to
// match) and serves the MCP tool surface over stdio for a single editor
// connection. This process's own Hub only fans events out to this stdio
// pipe; it does not relay to a hub daemon's WebSocket clients running in
// another process (see DESIGN.md).
func run(dbPath, promptsDir string) error {
	store, err := db.Open(dbPath)
	if err != nil {
		return fmt.Errorf("open store at %s: %w", dbPath, err)
	}
	defer store.Close()

	workspaceGUID, err := wiring.EnsureDefaultWorkspace(store)
	if err != nil {
		return fmt.Errorf("ensure workspace: %w", err)
	}

	c, err := wiring.Build(store, promptsDir, workspaceGUID)
	if err != nil {
		return fmt.Errorf("wire components: %w", err)
	}

	server := mcp.NewServer(store, c.Hub, c.Registry, c.Channels, c.Router, c.Prompts, workspaceGUID, Version)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	signals := make(chan os.Signal, 2)
	signal.Notify(signals, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-signals
		cancel()
	}()

	go c.Registry.RunGhostRefresher(ctx)
	go func() { _ = c.Prompts.Watch(ctx) }()

	return server.ServeStdio(ctx)
}
