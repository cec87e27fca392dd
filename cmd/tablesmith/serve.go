package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/guillermoBallester/tablesmith/internal/adapter/httpapi"
	toolserver "github.com/guillermoBallester/tablesmith/internal/adapter/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the MCP tools over stdio, or the MCP tools plus the REST API over HTTP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, func(ctx context.Context, a *app) error {
				s := toolserver.NewServer(version, toolserver.Services{
					Ingest:  a.ingest,
					Query:   a.query,
					Export:  a.export,
					Configs: a.configs,
				}, a.logger, a.tracer, a.inst)

				if a.cfg.Transport == "http" {
					return serveHTTP(ctx, a, s)
				}
				a.logger.Info("serving MCP over stdio")
				if err := mcpserver.NewStdioServer(s).Listen(ctx, os.Stdin, os.Stdout); err != nil {
					return fmt.Errorf("stdio server: %w", err)
				}
				a.logger.Info("shutdown complete")
				return nil
			})
		},
	}
}

// serveHTTP runs the REST API with the MCP streamable endpoint mounted at /mcp
// until ctx is cancelled.
func serveHTTP(ctx context.Context, a *app, s *mcpserver.MCPServer) error {
	router := httpapi.NewRouter(httpapi.Options{
		Query:       a.query,
		MCP:         mcpserver.NewStreamableHTTPServer(s),
		BearerToken: a.cfg.HTTPBearerToken,
		Logger:      a.logger,
	})
	srv := httpapi.NewHTTPServer(a.cfg.HTTPAddr, router)

	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("serving HTTP", slog.String("addr", a.cfg.HTTPAddr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http shutdown: %w", err)
	}
	a.logger.Info("shutdown complete")
	return nil
}
