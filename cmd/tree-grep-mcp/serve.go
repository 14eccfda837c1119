package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/Justar96/tree-grep-mcp-sub002/internal/debug"
	"github.com/Justar96/tree-grep-mcp-sub002/internal/mcp"
	"github.com/Justar96/tree-grep-mcp-sub002/internal/metrics"
)

func mcpCommand(c *cli.Context) error {
	// stdout carries the protocol; nothing else may write to it
	debug.SetMCPMode(true)
	defer startDebugLog()()

	cfg, err := loadConfig(c)
	if err != nil {
		return debug.Fatal("failed to load config: %v\n", err)
	}

	mcpServer, err := mcp.NewServer(cfg)
	if err != nil {
		return debug.Fatal("failed to create MCP server: %v\n", err)
	}
	defer func() {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		_ = mcpServer.Shutdown(shutdownCtx)
	}()

	stopMetrics := startMetricsServer(cfg.Server.MetricsAddr)
	defer stopMetrics()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	errChan := make(chan error, 1)
	go func() {
		debug.LogMCP("Starting MCP server with stdio transport...\n")
		errChan <- mcpServer.Start(ctx)
	}()

	select {
	case err := <-errChan:
		if err != nil && !errors.Is(err, context.Canceled) {
			return debug.Fatal("MCP server error: %v\n", err)
		}
		return nil
	case sig := <-sigChan:
		debug.LogMCP("Received signal %v, shutting down gracefully...\n", sig)
		cancel()

		shutdownTimer := time.NewTimer(2 * time.Second)
		defer shutdownTimer.Stop()
		select {
		case <-errChan:
			debug.LogMCP("Server shutdown completed\n")
			return nil
		case <-shutdownTimer.C:
			debug.LogMCP("Graceful shutdown timeout, closing stdin\n")
			// Unblocks the stdio transport read loop.
			_ = os.Stdin.Close()

			forceTimer := time.NewTimer(500 * time.Millisecond)
			defer forceTimer.Stop()
			select {
			case <-errChan:
				debug.LogMCP("Server shutdown completed after stdin close\n")
			case <-forceTimer.C:
				debug.LogMCP("Force shutdown timeout exceeded\n")
			}
			return nil
		}
	}
}

// startDebugLog sends debug output to a file under the temp dir when DEBUG=1,
// since stdio belongs to the protocol. The returned function closes it.
func startDebugLog() func() {
	if !debug.Requested() {
		return func() {}
	}
	logPath, err := debug.InitDebugLogFile()
	if err != nil {
		return func() {}
	}
	debug.LogMCP("Debug log: %s\n", logPath)
	return func() { _ = debug.CloseDebugLog() }
}

// startMetricsServer serves /metrics on addr in the background and returns a
// function that stops it. An empty addr disables the listener.
func startMetricsServer(addr string) func() {
	if addr == "" {
		return func() {}
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		debug.LogMCP("Serving metrics on http://%s/metrics\n", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			debug.LogMCP("Metrics server stopped: %v\n", err)
		}
	}()

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}
}
