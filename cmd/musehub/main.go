// Package main provides the entry point for the musehub gateway.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/musehub/musehub/internal/backend"
	"github.com/musehub/musehub/internal/config"
	httpsvr "github.com/musehub/musehub/internal/http"
	mcpsvr "github.com/musehub/musehub/internal/mcp"
	"github.com/musehub/musehub/internal/tools"
)

func main() {
	cmd := &cli.Command{
		Name:    "musehub",
		Usage:   "Typed tool gateway for the music backend",
		Version: "0.1.0",
		Commands: []*cli.Command{
			{
				Name:  "server",
				Usage: "Start the MCP and HTTP servers",
				Action: func(ctx context.Context, cmd *cli.Command) error {
					return runServer()
				},
			},
			{
				Name:  "tools",
				Usage: "Print the tool catalog as JSON and exit",
				Action: func(ctx context.Context, cmd *cli.Command) error {
					return printTools()
				},
			},
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func runServer() error {
	cfg := config.Load()
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.SlogLevel()}))

	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", "err", err)
		return err
	}

	client, err := backend.NewClient(backendConfig(cfg))
	if err != nil {
		logger.Error("backend client init failed", "err", err)
		return err
	}

	registry := tools.Build(tools.Deps{Client: client, Logger: logger}, cfg.Groups())

	logger.Info("effective config",
		"backend_url", cfg.BackendURL,
		"client_id", cfg.ClientID,
		"tool_groups", cfg.Groups(),
		"http_listen", cfg.HTTPListen,
		"mcp_listen", cfg.MCPListen,
		"request_timeout", cfg.RequestTimeout,
		"max_retries", cfg.MaxRetries,
	)

	httpServer := httpsvr.NewServer(cfg.HTTPListen, registry, logger)
	mcpServer := mcpsvr.NewServer(cfg.MCPListen, registry, logger)

	errCh := make(chan error, 2)
	go func() { errCh <- httpServer.ListenAndServe() }()
	go func() { errCh <- mcpServer.ListenAndServe() }()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		logger.Info("shutting down", "signal", sig.String())
	case err := <-errCh:
		logger.Error("server error", "err", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	httpServer.Shutdown(ctx)
	mcpServer.Shutdown(ctx)
	logger.Info("shutdown complete")
	return nil
}

func printTools() error {
	cfg := config.Load()
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))

	// Catalog printing needs no credentials; a placeholder backend is enough.
	client, err := backend.NewClient(backend.Config{
		BaseURL:    "http://localhost",
		PublicKey:  "unused",
		ServiceKey: "unused",
		ClientID:   cfg.ClientID,
	})
	if err != nil {
		return err
	}

	registry := tools.Build(tools.Deps{Client: client, Logger: logger}, cfg.Groups())

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(registry.Definitions())
}

func backendConfig(cfg *config.Config) backend.Config {
	return backend.Config{
		BaseURL:    cfg.BackendURL,
		PublicKey:  cfg.BackendPublicKey,
		ServiceKey: cfg.BackendServiceKey,
		ClientID:   cfg.ClientID,
		AgentID:    cfg.AgentID,
		Timeout:    cfg.RequestTimeout,
		MaxRetries: cfg.MaxRetries,
		IdentitySources: []backend.IdentitySource{
			backend.ContextSource(),
			backend.EnvSource("MUSEHUB_AGENT_ID"),
			backend.StaticSource(cfg.AgentID),
		},
	}
}
