package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/redsunjin/NestClaw/pkg/api"
	"github.com/redsunjin/NestClaw/pkg/auth"
	"github.com/redsunjin/NestClaw/pkg/config"
	"github.com/redsunjin/NestClaw/pkg/engine"
	"github.com/redsunjin/NestClaw/pkg/observability"
	"github.com/redsunjin/NestClaw/pkg/ratelimit"
	"github.com/redsunjin/NestClaw/pkg/store"
)

const shutdownGrace = 10 * time.Second

func runServer(stderr io.Writer) int {
	if err := serve(); err != nil {
		fmt.Fprintf(stderr, "nestclaw: %v\n", err)
		return 1
	}
	return 0
}

func serve() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel(cfg.LogLevel),
	}))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	st, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() { _ = st.Close() }()

	engOpts := []engine.Option{
		engine.WithLogger(logger.With("component", "engine")),
		engine.WithMaxRetry(cfg.MaxRetry),
		engine.WithReportsRoot(cfg.ReportsRoot),
		engine.WithApprovalTTL(cfg.ApprovalTTL),
	}

	var obs *observability.Provider
	if cfg.OTELEndpoint != "" {
		obs, err = observability.New(ctx, observability.Config{
			ServiceName: "nestclaw",
			Endpoint:    cfg.OTELEndpoint,
			Insecure:    true,
		})
		if err != nil {
			return fmt.Errorf("init observability: %w", err)
		}
		defer func() {
			flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := obs.Shutdown(flushCtx); err != nil {
				logger.Warn("observability shutdown", "error", err)
			}
		}()
		engOpts = append(engOpts, engine.WithMetrics(obs), engine.WithTracer(obs.Tracer()))
	}

	eng, err := engine.New(ctx, st, engOpts...)
	if err != nil {
		return err
	}
	eng.StartExpirySweeper(ctx)

	resolver, err := buildResolver(cfg)
	if err != nil {
		return err
	}

	var limiter ratelimit.Store
	if cfg.RedisAddr != "" {
		limiter = ratelimit.NewRedisStore(cfg.RedisAddr)
	} else {
		limiter = ratelimit.NewLocalStore()
	}

	srv, err := api.NewServer(eng, resolver,
		api.WithLogger(logger.With("component", "api")),
		api.WithRateLimit(limiter, ratelimit.Policy{RPS: cfg.RateRPS, Burst: cfg.RateBurst}),
		api.WithCORSOrigins(cfg.CORSOrigins),
	)
	if err != nil {
		return err
	}

	httpServer := &http.Server{
		Addr:              cfg.Addr,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server listening", "addr", cfg.Addr, "backend", cfg.DBBackend)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	// In-flight pipeline workers get the remainder of the grace window.
	if err := eng.Drain(shutdownCtx); err != nil {
		logger.Warn("pipeline drain cut short", "error", err)
	}
	return nil
}

func openStore(ctx context.Context, cfg *config.Config) (store.Store, error) {
	switch cfg.DBBackend {
	case config.BackendPostgres:
		return store.OpenPostgres(ctx, cfg.DatabaseURL)
	default:
		return store.OpenSQLite(cfg.DBPath)
	}
}

func buildResolver(cfg *config.Config) (*auth.Resolver, error) {
	mode, err := auth.ParseMode(cfg.AuthMode)
	if err != nil {
		return nil, err
	}
	authCfg := auth.Config{
		Mode:            mode,
		Secret:          cfg.JWTSecret,
		Issuer:          cfg.IDPIssuer,
		Audience:        cfg.IDPAudience,
		RoleClaim:       cfg.IDPRoleClaim,
		AllowSSOHeaders: cfg.AllowSSOHeaders,
		AllowHeaderAuth: cfg.AllowHeaderAuth,
	}
	if cfg.IDPJWKSPath != "" {
		ks, err := auth.LoadKeySet(cfg.IDPJWKSPath)
		if err != nil {
			return nil, err
		}
		authCfg.KeySet = ks
	}
	return auth.NewResolver(authCfg), nil
}

func logLevel(raw string) slog.Level {
	switch strings.ToLower(raw) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
