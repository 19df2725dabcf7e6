// Parietal assistant server — runs the turn engine behind an HTTP gateway,
// or as an interactive REPL on the terminal.
package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/parietal-ai/parietal/pkg/api"
	"github.com/parietal-ai/parietal/pkg/config"
	"github.com/parietal-ai/parietal/pkg/events"
	"github.com/parietal-ai/parietal/pkg/history"
	"github.com/parietal-ai/parietal/pkg/llm"
	"github.com/parietal-ai/parietal/pkg/mcp"
	"github.com/parietal-ai/parietal/pkg/prompt"
	"github.com/parietal-ai/parietal/pkg/tools"
	"github.com/parietal-ai/parietal/pkg/turn"
	"github.com/parietal-ai/parietal/pkg/turn/nodes"
	"github.com/parietal-ai/parietal/pkg/version"
)

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func main() {
	configDir := flag.String("config-dir",
		getEnv("CONFIG_DIR", "./config"),
		"Path to configuration directory")
	serve := flag.Bool("serve", false, "Run the HTTP gateway instead of the REPL")
	showVersion := flag.Bool("version", false, "Print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Println(version.Full())
		return
	}

	// Load .env from the config directory before anything reads the
	// environment.
	envPath := filepath.Join(*configDir, ".env")
	if err := godotenv.Load(envPath); err != nil {
		slog.Warn("Could not load .env file, continuing with existing environment",
			"path", envPath, "error", err)
	}

	slog.Info("Starting parietal",
		"version", version.Full(),
		"config_dir", *configDir)

	ctx := context.Background()

	cfg, err := config.Initialize(ctx, *configDir)
	if err != nil {
		slog.Error("Failed to initialize configuration", "error", err)
		os.Exit(1)
	}

	// LLM provider. Lazy: the actual connection happens on the first call.
	provider := llm.NewOllamaClient(cfg.Provider.BaseURL, &http.Client{
		Timeout: time.Duration(cfg.Provider.TimeoutSeconds) * time.Second,
	})
	if err := provider.Ping(ctx); err != nil {
		slog.Warn("Model backend unreachable at startup, continuing",
			"base_url", cfg.Provider.BaseURL, "error", err)
	}

	// MCP client over the configured streamable-HTTP servers. Eager
	// validation: a configured server that cannot initialize is a broken
	// deployment.
	mcpClient := mcp.NewClient(mcpServerConfigs(cfg))
	defer func() {
		if err := mcpClient.Close(); err != nil {
			slog.Error("Error closing MCP client", "error", err)
		}
	}()
	for _, serverID := range cfg.ServerIDs() {
		if err := mcpClient.EnsureServer(ctx, serverID); err != nil {
			slog.Error("MCP server failed startup validation",
				"server_id", serverID, "error", err)
			os.Exit(1)
		}
	}
	slog.Info("MCP servers validated", "count", len(cfg.ServerIDs()))

	hist := history.NewLog(cfg.Paths.HistoryPath(), cfg.History.MaxTurns)

	resources := &tools.Resources{
		History:        hist,
		HistoryHardMax: cfg.History.HardMax,
		WorldPath:      cfg.Paths.WorldPath(),
		Memory:         mcpClient,
		MemoryUserID:   cfg.Memory.UserID,
		Timezone:       getEnv("TZ", "UTC"),
	}
	toolkit := tools.NewToolkit(tools.NewBuiltinRegistry(resources), cfg.Tools.EnabledSkills, nil, nil)

	roles := make(map[string]turn.RoleConfig, len(cfg.Roles))
	for name, role := range cfg.Roles {
		roles[name] = turn.RoleConfig{
			Model:          role.Model,
			Params:         role.Params,
			ResponseFormat: role.ResponseFormat,
		}
	}
	deps := &turn.Deps{
		Provider:      provider,
		Prompts:       prompt.NewLoader(cfg.Paths.PromptsDir()),
		Roles:         roles,
		ToolStepLimit: cfg.Tools.StepLimit,
	}

	graph := nodes.Build(deps, &turn.Services{Toolkit: toolkit, Resources: resources})
	runner := turn.NewRunner(deps, cfg.Paths.WorldPath())
	engine := turn.NewEngine(runner, graph, hist, resources.Timezone)

	if *serve {
		runServer(ctx, cfg, engine, provider)
		return
	}
	runREPL(ctx, engine)
}

// mcpServerConfigs translates configuration entries into client configs,
// resolving API keys from the environment.
func mcpServerConfigs(cfg *config.Config) map[string]mcp.ServerConfig {
	servers := make(map[string]mcp.ServerConfig, len(cfg.Servers))
	for id, server := range cfg.Servers {
		apiKey := ""
		if server.APIKeyEnv != "" {
			apiKey = os.Getenv(server.APIKeyEnv)
		}
		servers[id] = mcp.ServerConfig{
			URL:             server.URL,
			APIKey:          apiKey,
			ProtocolVersion: server.ProtocolVersion,
			ClientName:      version.AppName,
			ClientVersion:   version.GitCommit,
			TimeoutSeconds:  server.TimeoutSeconds,
		}
	}
	return servers
}

// runServer starts the HTTP gateway and blocks until SIGINT/SIGTERM.
func runServer(ctx context.Context, cfg *config.Config, engine *turn.Engine, provider llm.Provider) {
	server := api.NewServer(engine, provider, cfg.Server.AllowedWSOrigins)
	httpServer := &http.Server{
		Addr:    cfg.Server.Addr(),
		Handler: server.Router(),
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("HTTP server listening", "addr", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)

	select {
	case sig := <-sigCh:
		slog.Info("Shutdown signal received", "signal", sig)
	case err := <-errCh:
		slog.Error("Server error triggered shutdown", "error", err)
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("HTTP server shutdown error", "error", err)
	}
	slog.Info("Shutdown complete")
}

// runREPL reads messages from stdin and renders turn events to stdout.
func runREPL(ctx context.Context, engine *turn.Engine) {
	fmt.Println("parietal " + version.GitCommit + " — type a message, Ctrl-D to exit")
	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			fmt.Println()
			return
		}
		message := strings.TrimSpace(scanner.Text())
		if message == "" {
			continue
		}

		stream, err := engine.RunTurn(ctx, message)
		if err != nil {
			fmt.Fprintln(os.Stderr, "error:", err)
			continue
		}
		renderTurn(stream)
	}
}

// renderTurn prints a turn's event stream for the terminal: assistant text
// verbatim, everything else as compact status lines.
func renderTurn(stream <-chan events.Event) {
	for ev := range stream {
		switch ev.Kind {
		case events.KindAssistantDelta:
			if p, ok := ev.Payload.(events.AssistantDeltaPayload); ok {
				fmt.Print(p.Text)
			}
		case events.KindAssistantEnd:
			fmt.Println()
		case events.KindNodeStart:
			if p, ok := ev.Payload.(events.NodeStartPayload); ok {
				fmt.Fprintf(os.Stderr, "[%s] %s\n", ev.NodeID, p.Label)
			}
		case events.KindNodeEndError:
			if p, ok := ev.Payload.(events.NodeEndErrorPayload); ok {
				fmt.Fprintf(os.Stderr, "[%s] failed: %s: %s\n", ev.NodeID, p.Code, p.Message)
			}
		case events.KindWorldCommit:
			if p, ok := ev.Payload.(events.WorldCommitPayload); ok && len(p.Delta) > 0 {
				fmt.Fprintf(os.Stderr, "[world] %d change(s) committed\n", len(p.Delta))
			}
		case events.KindTurnEndError:
			if p, ok := ev.Payload.(events.TurnEndErrorPayload); ok {
				fmt.Fprintf(os.Stderr, "turn failed: %s: %s\n", p.Code, p.Message)
			}
		}
	}
}
