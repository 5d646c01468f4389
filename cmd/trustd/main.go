// Command trustd starts the vouch-graph trust and moderation service.
package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/vouchnet/trustd/internal/bancache"
	"github.com/vouchnet/trustd/internal/config"
	"github.com/vouchnet/trustd/internal/migrate"
	"github.com/vouchnet/trustd/internal/repository/postgres"
	"github.com/vouchnet/trustd/internal/server/httpapi"
	"github.com/vouchnet/trustd/internal/service"
)

var (
	version   = "dev"
	buildDate = "unknown"
)

// main parses configuration, runs migrations and starts the HTTP server.
func main() {
	logger, _ := zap.NewProduction()
	defer func() { _ = logger.Sync() }()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("load config", zap.Error(err))
	}

	// Flags override environment for local runs.
	addr := flag.String("addr", cfg.Addr, "listen address")
	dsn := flag.String("dsn", cfg.DSN, "PostgreSQL DSN")
	adminKey := flag.String("admin-key", cfg.AdminKey, "HS256 admin token key (required)")
	flag.Parse()

	logger.Info("starting",
		zap.String("version", version),
		zap.String("buildDate", buildDate),
		zap.String("addr", *addr),
	)

	if *adminKey == "" {
		logger.Fatal("missing admin token key (--admin-key or TRUSTD_ADMIN_KEY)")
	}

	// Context with OS signals
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := migrate.Up(ctx, *dsn); err != nil {
		logger.Fatal("migrate up", zap.Error(err))
	}

	db, err := postgres.New(ctx, *dsn)
	if err != nil {
		logger.Fatal("postgres.New", zap.Error(err))
	}
	defer db.Close()

	// Repositories
	accountRepo := postgres.NewAccountRepo(db)
	moderationRepo := postgres.NewModerationRepo(db)
	recoveryRepo := postgres.NewRecoveryRepo(db)
	eventRepo := postgres.NewEventRepo(db)
	inviteRepo := postgres.NewInviteRepo(db)
	graphRepo := postgres.NewGraphRepo(db)

	// Ban projection, rebuilt from the store on every start.
	bans := bancache.New()

	// Services
	moderationSvc := service.NewModerationService(moderationRepo, bans, logger)
	recoverySvc := service.NewRecoveryService(recoveryRepo, cfg.Gates(), logger)
	accountSvc := service.NewAccountService(accountRepo, inviteRepo, eventRepo, graphRepo, bans, cfg.InviteCodeMaxUses, logger)

	n, err := accountSvc.RebuildBanCache(ctx)
	if err != nil {
		logger.Fatal("rebuild ban cache", zap.Error(err))
	}
	logger.Info("ban cache ready", zap.Int("banned", n))

	api := httpapi.New(moderationSvc, recoverySvc, accountSvc, cfg.SweepThreshold, []byte(*adminKey), logger)
	srv := &http.Server{
		Addr:              *addr,
		Handler:           api.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", zap.String("addr", *addr))
		errCh <- srv.ListenAndServe()
	}()

	// Wait for stop
	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("shutdown", zap.Error(err))
		}
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", zap.Error(err))
			os.Exit(1)
		}
	}

	logger.Info("shutdown complete")
}
