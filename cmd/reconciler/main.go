package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"

	"github.com/vtuapp/vtu-backend/internal/config"
	"github.com/vtuapp/vtu-backend/internal/logging"
	"github.com/vtuapp/vtu-backend/internal/repository"
	"github.com/vtuapp/vtu-backend/internal/service"
)

// The reconciler is a standalone process that settles purchases left pending
// by a crash between gateway dispatch and settlement. It runs on a cron
// schedule and can coexist with other instances of itself.
func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logging.Init("vtu-reconciler", cfg.LogLevel, cfg.AppEnv)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := repository.NewPostgresDB(ctx, cfg.DatabaseURL, repository.PoolConfig{
		MaxOpenConns:     cfg.DBMaxOpenConns,
		MaxIdleConns:     cfg.DBMaxIdleConns,
		ConnMaxLifetimeS: cfg.DBConnMaxLifetimeS,
		ConnMaxIdleTimeS: cfg.DBConnMaxIdleTimeS,
	})
	if err != nil {
		slog.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	gateway := service.NewGatewayClient(
		cfg.GatewayBaseURL, cfg.GatewayAPIKey, cfg.GatewaySecret, cfg.GatewayVendorID,
		time.Duration(cfg.GatewayTimeoutS)*time.Second,
	)
	reconciler := service.NewReconciler(
		repository.NewTransactionRepository(db),
		repository.NewUserRepository(db),
		gateway,
		db,
		time.Duration(cfg.PendingMaxAgeMin)*time.Minute,
		cfg.ReconcileBatch,
	)

	cronLogger := cron.PrintfLogger(slog.NewLogLogger(slog.Default().Handler(), slog.LevelInfo))
	c := cron.New(cron.WithChain(cron.Recover(cronLogger)))

	if _, err := c.AddFunc(cfg.ReconcileSchedule, func() {
		if err := reconciler.Run(ctx); err != nil {
			slog.Error("reconcile run failed", "error", err)
		}
	}); err != nil {
		slog.Error("failed to schedule reconcile job", "error", err, "schedule", cfg.ReconcileSchedule)
		os.Exit(1)
	}

	c.Start()
	slog.Info("reconciler started", "schedule", cfg.ReconcileSchedule)

	<-ctx.Done()

	slog.Info("stopping reconciler")
	<-c.Stop().Done()
	slog.Info("reconciler stopped")
}
