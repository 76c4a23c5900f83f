package main

import (
	"context"
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/specd/internal/citations"
	"github.com/fyrsmithlabs/specd/internal/config"
	mcpserver "github.com/fyrsmithlabs/specd/internal/mcp"
	"github.com/fyrsmithlabs/specd/internal/steering"
)

// serveStdio runs the MCP server on stdin/stdout and blocks until the
// context is canceled or the transport closes. The store and watcher may
// be nil; the steering tools register only when a store is present.
func serveStdio(ctx context.Context, cfg *config.Config, runner steering.Runner, registry *citations.Registry, store *steering.Store, watcher *steering.Watcher, zlog *zap.Logger) error {
	srv, err := mcpserver.NewServer(&mcpserver.Config{
		Name:          "specd",
		Version:       version,
		Logger:        zlog,
		RatePerSecond: cfg.Server.MCPRatePerSecond,
		RateBurst:     cfg.Server.MCPRateBurst,
	}, runner, registry)
	if err != nil {
		return fmt.Errorf("failed to create MCP server: %w", err)
	}
	srv.SetSteering(store, watcher)

	// Startup message goes to stderr; stdout is the MCP protocol.
	fmt.Fprintf(os.Stderr, "specd MCP server listening on stdio\n")

	return srv.Run(ctx)
}
