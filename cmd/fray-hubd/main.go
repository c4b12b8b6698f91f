package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/frayhub/fray/internal/applog"
	"github.com/frayhub/fray/internal/core"
	"github.com/frayhub/fray/internal/httpapi"
	"github.com/frayhub/fray/internal/mcp"
	db "github.com/frayhub/fray/internal/store"
	"github.com/frayhub/fray/internal/wiring"
)

// Version is overwritten at build time using -ldflags.
var Version = "dev"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "fray-hubd",
		Short:         "Run the fray hub: MCP + HTTP/WS surface over a shared SQLite store",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          runServe,
	}

	cmd.Version = Version
	cmd.SetVersionTemplate("fray-hubd version {{.Version}}\n")

	cmd.Flags().Int("port", 0, "HTTP/WS listen port (default 8787)")
	cmd.Flags().String("host", "", "bind address (default 127.0.0.1)")
	cmd.Flags().String("advertise-host", "", "host other machines should use to reach this hub (default: --host)")
	cmd.Flags().String("network-mode", "", "local (bind loopback only) or lan (bind all interfaces) (default local)")
	cmd.Flags().String("db-path", "", "path to the SQLite store (default ~/.local/share/fray/fray.db)")
	cmd.Flags().String("prompts-dir", "", "directory of onboarding prompt templates (default ~/.local/share/fray/prompts)")
	return cmd
}

// resolvedConfig is the flag/env/GlobalConfig/default-chain result.
type resolvedConfig struct {
	Host          string
	Port          int
	AdvertiseHost string
	NetworkMode   string
	DBPath        string
	PromptsDir    string
}

func resolveConfig(cmd *cobra.Command) (resolvedConfig, error) {
	global, err := core.LoadGlobalConfig()
	if err != nil {
		return resolvedConfig{}, fmt.Errorf("load config: %w", err)
	}

	cfg := resolvedConfig{
		Host:          firstNonEmpty(flagString(cmd, "host"), os.Getenv("FRAY_HOST"), global.Host, "127.0.0.1"),
		AdvertiseHost: firstNonEmpty(flagString(cmd, "advertise-host"), os.Getenv("FRAY_ADVERTISE_HOST"), global.AdvertiseHost),
		NetworkMode:   firstNonEmpty(flagString(cmd, "network-mode"), os.Getenv("FRAY_NETWORK_MODE"), global.NetworkMode, "local"),
		DBPath:        firstNonEmpty(flagString(cmd, "db-path"), os.Getenv("FRAY_DB_PATH"), global.DBPath),
		PromptsDir:    firstNonEmpty(flagString(cmd, "prompts-dir"), os.Getenv("FRAY_PROMPTS_DIR"), global.PromptsDir),
	}

	if port := flagInt(cmd, "port"); port != 0 {
		cfg.Port = port
	} else if envPort, err := strconv.Atoi(os.Getenv("FRAY_PORT")); err == nil && envPort != 0 {
		cfg.Port = envPort
	} else if global.Port != 0 {
		cfg.Port = global.Port
	} else {
		cfg.Port = 8787
	}
	if cfg.AdvertiseHost == "" {
		cfg.AdvertiseHost = cfg.Host
	}
	if cfg.NetworkMode == "lan" {
		cfg.Host = "0.0.0.0"
	}

	if cfg.DBPath == "" {
		path, err := core.DefaultDBPath()
		if err != nil {
			return resolvedConfig{}, err
		}
		cfg.DBPath = path
	}
	if cfg.PromptsDir == "" {
		dir, err := core.DefaultPromptsDir()
		if err != nil {
			return resolvedConfig{}, err
		}
		cfg.PromptsDir = dir
	}
	return cfg, nil
}

func flagString(cmd *cobra.Command, name string) string {
	v, _ := cmd.Flags().GetString(name)
	return v
}

func flagInt(cmd *cobra.Command, name string) int {
	v, _ := cmd.Flags().GetInt(name)
	return v
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func runServe(cmd *cobra.Command, args []string) error {
	log := applog.New("hubd")

	cfg, err := resolveConfig(cmd)
	if err != nil {
		return err
	}

	store, err := db.Open(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("open store at %s: %w", cfg.DBPath, err)
	}
	defer store.Close()

	workspaceGUID, err := wiring.EnsureDefaultWorkspace(store)
	if err != nil {
		return fmt.Errorf("ensure workspace: %w", err)
	}

	c, err := wiring.Build(store, cfg.PromptsDir, workspaceGUID)
	if err != nil {
		return fmt.Errorf("wire components: %w", err)
	}

	mcpServer := mcp.NewServer(store, c.Hub, c.Registry, c.Channels, c.Router, c.Prompts, workspaceGUID, Version)
	httpServer := httpapi.New(store, c.Hub, c.Registry, c.Channels, c.Router, workspaceGUID)

	mux := http.NewServeMux()
	mux.Handle("/mcp", mcpServer.HTTPHandler())
	mux.Handle("/", httpServer.Handler())

	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)
	srv := &http.Server{Addr: addr, Handler: mux}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go c.Registry.RunGhostRefresher(ctx)
	go func() {
		if err := c.Prompts.Watch(ctx); err != nil {
			log.Warn("prompt template watcher stopped: %v", err)
		}
	}()

	serveErr := make(chan error, 1)
	go func() {
		log.Info("listening on http://%s (advertised as %s)", addr, cfg.AdvertiseHost)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serveErr <- err
			return
		}
		serveErr <- nil
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serveErr:
		return err
	case <-sigCh:
		log.Info("shutting down...")
	}

	cancel()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Warn("http shutdown: %v", err)
	}
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Warn("httpapi shutdown: %v", err)
	}
	log.Info("%d invocation(s) abandoned in flight", c.Invoker.PendingTasks())
	return <-serveErr
}
