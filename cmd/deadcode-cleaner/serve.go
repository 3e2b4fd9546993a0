package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/bryanwahyu/deadcode-cleaner/internal/config"
	"github.com/bryanwahyu/deadcode-cleaner/internal/infra/httpserver"
	"github.com/bryanwahyu/deadcode-cleaner/internal/infra/mcpserver"
	"github.com/bryanwahyu/deadcode-cleaner/internal/middleware"
)

func serveCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Serve the MCP tools over stdio or streamable HTTP",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "transport",
				Aliases: []string{"t"},
				Usage:   "Transport to serve: stdio or http",
			},
			&cli.StringFlag{
				Name:  "addr",
				Usage: "Listen address for the http transport",
			},
		},
		Action: runServe,
	}
}

func runServe(c *cli.Context) error {
	d, err := setup(c, func(cfg *config.Config) {
		if v := c.String("transport"); v != "" {
			cfg.Server.Transport = v
		}
		if v := c.String("addr"); v != "" {
			cfg.Server.Addr = v
		}
	})
	if err != nil {
		return err
	}

	srv := mcpserver.New(d.svc, mcpserver.Options{
		Name:    d.cfg.Server.Name,
		Version: version,
		Logger:  d.logger,
	})

	if d.cfg.Server.Transport == "http" {
		return serveHTTP(c.Context, d, srv)
	}

	d.logger.Info().Str("transport", "stdio").Msg("mcp server started")
	err = srv.ServeStdio(c.Context, c.App.Reader, c.App.Writer)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func serveHTTP(ctx context.Context, d *deps, srv *mcpserver.Server) error {
	checkers := map[string]middleware.HealthChecker{}
	if d.store != nil {
		checkers["object_store"] = middleware.TimeoutChecker{Checker: d.store, Timeout: 2 * time.Second}
	}

	limiter := newRateLimiter(d.cfg)
	if limiter != nil {
		defer limiter.Close()
	}

	httpSrv := &http.Server{
		Addr: d.cfg.Server.Addr,
		Handler: httpserver.NewRouter(httpserver.Deps{
			MCP:            srv.HTTPHandler(),
			Cleaner:        d.svc,
			Logger:         d.logger,
			AllowedOrigins: d.cfg.Server.AllowedOrigins,
			Limiter:        limiter,
			Checkers:       checkers,
		}),
		ReadHeaderTimeout: 15 * time.Second,
		// a clean call waits on five model round trips
		WriteTimeout: 5 * time.Minute,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		d.logger.Info().Str("transport", "http").Str("addr", httpSrv.Addr).Msg("mcp server listening")
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	d.logger.Info().Msg("shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		d.logger.Error().Err(err).Msg("shutdown error")
		return err
	}
	return <-errCh
}

// newRateLimiter returns nil unless a capacity is configured.
func newRateLimiter(cfg *config.Config) *middleware.RateLimiter {
	rl := cfg.Server.RateLimit
	if rl.Capacity <= 0 {
		return nil
	}
	return middleware.NewRateLimiter(rl.Capacity, rl.RefillPerSecond)
}
