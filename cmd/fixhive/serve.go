package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"

	"github.com/kalambet/fixhive/internal/api"
	"github.com/kalambet/fixhive/internal/config"
	"github.com/kalambet/fixhive/internal/syncer"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the MCP server on stdio",
	Long: `Run the FixHive MCP server on stdin/stdout.

While serving, queued uploads and votes are synced in the background when a
remote store is configured. With --http the local HTTP API is served on
127.0.0.1 as well.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		withHTTP, _ := cmd.Flags().GetBool("http")
		return runServe(withHTTP)
	},
}

func init() {
	serveCmd.Flags().Bool("http", false, "also serve the local HTTP API")
}

func runServe(withHTTP bool) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := openApp(ctx, openOptions{remote: true, generator: true})
	if err != nil {
		return err
	}
	defer a.Close()

	slog.Info("fixhive starting", "version", version, "cloud", a.svc.CloudEnabled(), "db", a.cfg.Storage.DBPath)

	if r := a.svc.Reconciler(); r != nil {
		worker := syncer.NewWorker(r, a.cfg.Sync.BatchSize, a.cfg.SyncInterval())
		go worker.Run(ctx)
	}

	errCh := make(chan error, 2)

	var srv *http.Server
	if withHTTP {
		token, err := config.GetAPIToken()
		if err != nil {
			return fmt.Errorf("getting API token: %w", err)
		}
		addr := fmt.Sprintf("127.0.0.1:%d", a.cfg.Server.Port)
		srv = &http.Server{
			Addr:    addr,
			Handler: api.NewHTTPHandler(a.svc, token),
			BaseContext: func(_ net.Listener) context.Context {
				return ctx
			},
		}
		go func() {
			slog.Info("HTTP API listening", "addr", addr)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- fmt.Errorf("http server: %w", err)
			}
		}()
	}

	stdio := server.NewStdioServer(api.NewMCPServer(a.svc, version))
	mcpDone := make(chan struct{})
	go func() {
		defer close(mcpDone)
		if err := stdio.Listen(ctx, os.Stdin, os.Stdout); err != nil && !errors.Is(err, context.Canceled) {
			errCh <- fmt.Errorf("mcp stdio server: %w", err)
		}
	}()
	slog.Info("MCP server started (stdio transport)")

	var runErr error
	select {
	case <-ctx.Done():
		slog.Info("shutting down")
	case <-mcpDone:
		slog.Info("stdin closed, shutting down")
	case runErr = <-errCh:
	}
	stop()

	if srv != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Warn("http shutdown", "error", err)
		}
	}
	return runErr
}
