package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/vtuapp/vtu-backend/internal/config"
	"github.com/vtuapp/vtu-backend/internal/handler"
	"github.com/vtuapp/vtu-backend/internal/logging"
	"github.com/vtuapp/vtu-backend/internal/middleware"
	"github.com/vtuapp/vtu-backend/internal/repository"
	"github.com/vtuapp/vtu-backend/internal/service"
	"github.com/vtuapp/vtu-backend/internal/service/purchase"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logging.Init("vtu-api", cfg.LogLevel, cfg.AppEnv)

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

	users := repository.NewUserRepository(db)
	txns := repository.NewTransactionRepository(db)
	plans := repository.NewPlanRepository(db)

	gateway := service.NewGatewayClient(
		cfg.GatewayBaseURL, cfg.GatewayAPIKey, cfg.GatewaySecret, cfg.GatewayVendorID,
		time.Duration(cfg.GatewayTimeoutS)*time.Second,
	)
	banking := service.NewPayvesselClient(
		cfg.PayvesselBaseURL, cfg.PayvesselAPIKey, cfg.PayvesselAPISecret, cfg.PayvesselBusinessID,
	)
	credits := service.NewCreditService(txns, users, db)
	purchases := purchase.NewService(txns, users, plans, gateway, db)

	jwtExpiry := time.Duration(cfg.JWTExpiryHours) * time.Hour
	authHandler := handler.NewAuthHandler(users, cfg.JWTSecret, jwtExpiry)
	webhookHandler := handler.NewWebhookHandler(credits, cfg.PayvesselAPISecret, cfg.TrustedIPs())
	purchaseHandler := handler.NewPurchaseHandler(purchases)
	accountHandler := handler.NewAccountHandler(users, txns, banking)
	planHandler := handler.NewPlanHandler(plans)
	healthHandler := handler.NewHealthHandler(db)

	authed := middleware.Auth(cfg.JWTSecret)
	admin := func(h http.Handler) http.Handler { return authed(middleware.AdminOnly(h)) }

	mux := http.NewServeMux()
	mux.HandleFunc("GET /health/live", healthHandler.Liveness)
	mux.HandleFunc("GET /health/ready", healthHandler.Readiness)

	mux.HandleFunc("POST /api/users/register", authHandler.Register)
	mux.HandleFunc("POST /api/users/login", authHandler.Login)

	mux.HandleFunc("POST /api/payvessel/webhook", webhookHandler.ReceivePaymentWebhook)

	mux.Handle("POST /api/data/purchase", authed(http.HandlerFunc(purchaseHandler.BuyData)))
	mux.Handle("POST /api/payvessel/virtual-account", authed(http.HandlerFunc(accountHandler.ProvisionVirtualAccount)))
	mux.Handle("GET /api/wallet", authed(http.HandlerFunc(accountHandler.GetWallet)))
	mux.Handle("GET /api/wallet/audit", authed(http.HandlerFunc(accountHandler.AuditWallet)))
	mux.Handle("GET /api/transactions", authed(http.HandlerFunc(accountHandler.ListTransactions)))

	mux.HandleFunc("GET /api/data/plans", planHandler.ListPlans)
	mux.Handle("POST /api/admin/data-plans", admin(http.HandlerFunc(planHandler.CreatePlan)))
	mux.Handle("PUT /api/admin/data-plans/{id}", admin(http.HandlerFunc(planHandler.UpdatePlan)))
	mux.Handle("DELETE /api/admin/data-plans/{id}", admin(http.HandlerFunc(planHandler.DeletePlan)))

	chain := middleware.Tracing(middleware.Logging(middleware.Recovery(mux)))

	addr := fmt.Sprintf(":%d", cfg.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           chain,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      45 * time.Second,
		IdleTimeout:       60 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		slog.Info("server started", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()

	slog.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}
	slog.Info("server stopped")
}
