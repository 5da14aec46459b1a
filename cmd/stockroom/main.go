package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"github.com/nats-io/nats.go"

	"github.com/odyssey-erp/stockroom/internal/app"
	"github.com/odyssey-erp/stockroom/internal/audit"
	audithttp "github.com/odyssey-erp/stockroom/internal/audit/http"
	"github.com/odyssey-erp/stockroom/internal/catalog"
	"github.com/odyssey-erp/stockroom/internal/expenses"
	"github.com/odyssey-erp/stockroom/internal/integration"
	"github.com/odyssey-erp/stockroom/internal/inventory"
	"github.com/odyssey-erp/stockroom/internal/observability"
	"github.com/odyssey-erp/stockroom/internal/partners"
	"github.com/odyssey-erp/stockroom/internal/platform/cache"
	"github.com/odyssey-erp/stockroom/internal/platform/db"
	"github.com/odyssey-erp/stockroom/internal/reports"
	"github.com/odyssey-erp/stockroom/internal/shared"
	"github.com/odyssey-erp/stockroom/jobs"
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

	dbpool, err := db.New(ctx, cfg.PGDSN, cfg.PGMaxConns)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer dbpool.Close()

	applied, err := db.Migrate(ctx, dbpool)
	if err != nil {
		logger.Error("migrate", slog.Any("error", err))
		os.Exit(1)
	}
	if len(applied) > 0 {
		logger.Info("migrations applied", slog.Any("files", applied))
	}

	redisClient, err := cache.Open(ctx, cache.Options{Addr: cfg.RedisAddr, PoolSize: cfg.RedisPoolSize})
	if err != nil {
		logger.Warn("redis unavailable, continuing without cache", slog.Any("error", err))
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	var publisher integration.MovementPublisher
	if cfg.NATSURL != "" {
		nc, err := nats.Connect(cfg.NATSURL, nats.Name("stockroom"), nats.MaxReconnects(-1))
		if err != nil {
			logger.Error("connect nats", slog.Any("error", err))
			os.Exit(1)
		}
		defer func() {
			if err := nc.Drain(); err != nil {
				logger.Warn("nats drain", slog.Any("error", err))
			}
		}()
		publisher = integration.NewPublisher(nc, cfg.NATSSubject, "stockroom")
	}

	metrics := observability.NewMetrics()
	ledgerMetrics := observability.NewLedgerMetrics(metrics.Registerer())

	auditLogger := shared.NewAuditLogger(dbpool)
	idempotencyStore := shared.NewIdempotencyStore(dbpool)

	var locker inventory.Locker = shared.NewKeyedMutex()
	if cfg.LedgerDistributedLock {
		locker = cache.NewLocker(redisClient, cfg.LedgerLockTTL)
	}

	reportsService := reports.NewService(reports.NewRepository(dbpool), reports.NewCache(redisClient, cfg.ReportCacheTTL), logger)
	hooks := integration.NewHooks(reportsService, publisher, logger)

	catalogService := catalog.NewService(catalog.NewRepository(dbpool), auditLogger, reportsService, logger)
	partnersService := partners.NewService(partners.NewRepository(dbpool), auditLogger, logger)
	expensesService := expenses.NewService(expenses.NewRepository(dbpool), auditLogger, reportsService, logger)
	inventoryService := inventory.NewService(inventory.NewRepository(dbpool, cfg.TxRetryAttempts), locker, inventory.ServiceDeps{
		Audit:       auditLogger,
		Idempotency: idempotencyStore,
		Partners:    partnersService,
		Integration: hooks,
		Metrics:     ledgerMetrics,
		Logger:      logger,
	})

	inspector := asynq.NewInspector(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()

	router := app.NewRouter(app.RouterParams{
		Logger:           logger,
		Config:           cfg,
		CatalogHandler:   catalog.NewHandler(logger, catalogService),
		InventoryHandler: inventory.NewHandler(logger, inventoryService),
		PartnersHandler:  partners.NewHandler(logger, partnersService),
		ExpensesHandler:  expenses.NewHandler(logger, expensesService),
		ReportsHandler:   reports.NewHandler(logger, reportsService),
		AuditHandler:     audithttp.NewHandler(logger, audit.NewService(audit.NewRepository(dbpool))),
		JobHandler:       jobs.NewHandler(inspector, logger),
		Metrics:          metrics,
		Health: map[string]app.HealthCheck{
			"postgres": func(r *http.Request) error { return dbpool.Ping(r.Context()) },
			"redis":    func(r *http.Request) error { return redisClient.Ping(r.Context()).Err() },
		},
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
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
