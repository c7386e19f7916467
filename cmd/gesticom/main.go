package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"

	"github.com/gesticom/gesticom/internal/accounting"
	accountinghttp "github.com/gesticom/gesticom/internal/accounting/http"
	"github.com/gesticom/gesticom/internal/app"
	"github.com/gesticom/gesticom/internal/inventory"
	"github.com/gesticom/gesticom/internal/observability"
	"github.com/gesticom/gesticom/internal/platform/cache"
	"github.com/gesticom/gesticom/internal/platform/db"
	"github.com/gesticom/gesticom/internal/purchases"
	"github.com/gesticom/gesticom/internal/rbac"
	"github.com/gesticom/gesticom/internal/reversal"
	"github.com/gesticom/gesticom/internal/sales"
	"github.com/gesticom/gesticom/internal/shared"
	"github.com/gesticom/gesticom/internal/treasury"
	"github.com/gesticom/gesticom/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	dbpool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer dbpool.Close()

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Error("connect redis", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	sessionManager := shared.NewSessionManager(redisClient, cfg.SessionCookie, cfg.SessionTTL, cfg.IsProduction())
	auditLogger := shared.NewAuditLogger(dbpool)
	idempotencyStore := shared.NewIdempotencyStore(dbpool)
	metrics := observability.NewMetrics()

	policy := rbac.NewPolicy(rbac.DefaultGrants())
	rbacMiddleware := rbac.Middleware{Policy: policy, Logger: logger}
	defaults := cfg.Postings()

	accountingService := accounting.NewService(accounting.NewRepository(dbpool), auditLogger, logger)
	inventoryService := inventory.NewService(inventory.NewRepository(dbpool), auditLogger, logger)

	reversalService := reversal.NewService(reversal.NewRepository(dbpool), policy, logger,
		reversal.WithIdempotency(idempotencyStore),
		reversal.WithAudit(auditLogger),
		reversal.WithMetrics(metrics),
	)
	salesService := sales.NewService(sales.NewRepository(dbpool), reversalService, defaults, auditLogger, logger)
	purchasesService := purchases.NewService(purchases.NewRepository(dbpool), reversalService, defaults, auditLogger, logger)
	treasuryService := treasury.NewService(treasury.NewRepository(dbpool), reversalService, defaults, auditLogger, logger)

	inspector := asynq.NewInspector(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()

	router := app.NewRouter(app.RouterParams{
		Logger:         logger,
		Config:         cfg,
		SessionManager: sessionManager,
		Metrics:        metrics,
		Modules: []app.RouteMounter{
			accountinghttp.NewHandler(logger, accountingService, rbacMiddleware),
			inventory.NewHandler(logger, inventoryService, rbacMiddleware),
			sales.NewHandler(logger, salesService, rbacMiddleware),
			purchases.NewHandler(logger, purchasesService, rbacMiddleware),
			treasury.NewHandler(logger, treasuryService, rbacMiddleware),
		},
		JobHandler: jobs.NewHandler(inspector, logger),
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown", slog.Any("error", err))
	}
}
