package main

import (
	"collection-ledger/internal/api"
	"collection-ledger/internal/batch"
	"collection-ledger/internal/config"
	"collection-ledger/internal/domain/ledger"
	"collection-ledger/internal/domain/loan"
	"collection-ledger/internal/domain/payment"
	"collection-ledger/internal/domain/penalty"
	"collection-ledger/internal/event"
	"collection-ledger/internal/infrastructure/database/postgres"
	"collection-ledger/internal/infrastructure/lock"
	"collection-ledger/internal/infrastructure/logging"
	"collection-ledger/internal/pkg/retry"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/redis/go-redis/v9"
	"github.com/robfig/cron/v3"
)

const (
	configPath            = "."
	defaultAccrualTimeout = 30 * time.Minute
	lockBackendRedis      = "redis"
)

func main() {
	cfg, logger := initializeApp()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	dbPool := initializeDatabase(ctx, cfg, logger)
	defer closeDatabase(dbPool, logger)

	rabbitMQConn, publisher := setupRabbitMQ(cfg, logger)
	locker, redisClient := initializeLocker(ctx, cfg, logger)

	services := initializeServices(dbPool, cfg, locker, publisher, logger)
	accrualJob := batch.NewAccrualJob(services.Penalties, logger)

	cronScheduler := startBatchJobs(cfg, logger, accrualJob)
	router := api.SetupRouter(ctx, services, cfg, logger)

	srv, serverErrors, shutdownChan := startServer(cfg, router, logger)
	handleShutdown(srv, cronScheduler, rabbitMQConn, redisClient, shutdownChan, serverErrors, logger)
}

func initializeApp() (*config.Config, *slog.Logger) {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	logger := logging.NewLogger(cfg.Logger)
	slog.SetDefault(logger)
	logger.Info("Application starting...", "config_path", configPath, "ledger_enabled", cfg.Ledger.Enabled, "lock_backend", cfg.Locking.Backend)

	return cfg, logger
}

func initializeDatabase(ctx context.Context, cfg *config.Config, logger *slog.Logger) *pgxpool.Pool {
	logger.Info("Initializing database connection pool...")
	dbPool, err := postgres.NewConnectionPool(ctx, cfg.Database, logger)
	if err != nil {
		logger.Error("Failed to initialize database connection pool", "error", err)
		os.Exit(1)
	}
	return dbPool
}

func closeDatabase(dbPool *pgxpool.Pool, logger *slog.Logger) {
	logger.Info("Closing database connection pool...")
	dbPool.Close()
}

// setupRabbitMQ falls back to a no-op publisher when the broker is disabled or
// unreachable. Events are best effort and never block a payment.
func setupRabbitMQ(cfg *config.Config, logger *slog.Logger) (*amqp.Connection, event.Publisher) {
	if !cfg.RabbitMQ.Enabled {
		logger.Info("RabbitMQ disabled, domain events will not be published.")
		return nil, event.NoopPublisher{}
	}

	conn, err := event.DialRabbitMQ(cfg.RabbitMQ)
	if err != nil {
		logger.Warn("RabbitMQ unavailable, domain events will not be published", "error", err)
		return nil, event.NoopPublisher{}
	}

	publisher, err := event.NewRabbitMQEventPublisher(conn, cfg.RabbitMQ.ExchangeName, logger)
	if err != nil {
		logger.Warn("Failed to set up RabbitMQ publisher", "error", err)
		_ = conn.Close()
		return nil, event.NoopPublisher{}
	}
	logger.Info("RabbitMQ publisher ready.", "exchange", cfg.RabbitMQ.ExchangeName)
	return conn, publisher
}

func initializeLocker(ctx context.Context, cfg *config.Config, logger *slog.Logger) (lock.Locker, *redis.Client) {
	if cfg.Locking.Backend != lockBackendRedis {
		logger.Info("Using in-process target locks.")
		return lock.NewLocalLocker(cfg.Locking.Wait), nil
	}

	logger.Info("Initializing Redis client for target locks...")
	if cfg.Redis.Addr == "" {
		logger.Error("Redis address (addr) is not configured.")
		os.Exit(1)
	}
	rdb, err := lock.NewRedisClient(ctx, cfg.Redis, logger)
	if err != nil {
		logger.Error("Failed to connect to Redis", "error", err, "addr", cfg.Redis.Addr)
		os.Exit(1)
	}
	return lock.NewRedisLocker(rdb, cfg.Locking, logger), rdb
}

func retryPolicy(cfg config.StoreConfig) retry.Policy {
	return retry.Policy{MaxAttempts: cfg.MaxRetries, Backoff: cfg.RetryBackoff}
}

func initializeServices(dbPool postgres.DBPool, cfg *config.Config, locker lock.Locker, publisher event.Publisher, logger *slog.Logger) api.Services {
	logger.Info("Initializing application components...")
	lockTimeout := cfg.Store.LockTimeout
	policy := retryPolicy(cfg.Store)

	paymentRepo := postgres.NewPaymentRepository(dbPool, lockTimeout, logger)
	penaltyRepo := postgres.NewPenaltyRepository(dbPool, lockTimeout, logger)
	loanRepo := postgres.NewLoanRepository(dbPool, lockTimeout, logger)

	var ledgerService ledger.LedgerService
	var crediter payment.LedgerCrediter
	var debiter loan.IssuanceDebiter
	if cfg.Ledger.Enabled {
		if err := validateLedgerConfig(cfg.Ledger); err != nil {
			logger.Error("Invalid ledger configuration", "error", err)
			os.Exit(1)
		}
		ledgerRepo := postgres.NewLedgerRepository(dbPool, lockTimeout, logger)
		ledgerService = ledger.NewLedgerService(ledgerRepo, publisher, cfg.Ledger.OrganizationActorID, policy, logger)
		crediter, debiter = ledgerService, ledgerService
	}

	return api.Services{
		Payments:  payment.NewPaymentService(paymentRepo, crediter, locker, publisher, policy, logger),
		Penalties: penalty.NewPenaltyService(penaltyRepo, publisher, cfg.Batch.AccrualWorkers, policy, logger),
		Loans:     loan.NewLoanService(loanRepo, debiter, logger),
		Ledger:    ledgerService,
	}
}

func validateLedgerConfig(cfg config.LedgerConfig) error {
	if cfg.OrganizationActorID <= 0 {
		return fmt.Errorf("ledger.organizationActorId must be a positive actor id, got %d", cfg.OrganizationActorID)
	}
	return nil
}

func startServer(cfg *config.Config, router http.Handler, logger *slog.Logger) (*http.Server, <-chan error, <-chan os.Signal) {
	logger.Info("Setting up HTTP server...", "port", cfg.Server.Port)
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
		ErrorLog:     slog.NewLogLogger(logger.Handler(), slog.LevelError),
	}

	shutdownChan := make(chan os.Signal, 1)
	signal.Notify(shutdownChan, syscall.SIGINT, syscall.SIGTERM)

	serverErrors := make(chan error, 1)
	go func() {
		logger.Info(fmt.Sprintf("Server listening on port %d", cfg.Server.Port))
		err := srv.ListenAndServe()
		if !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Server error", "error", err)
			serverErrors <- err
		} else {
			logger.Info("Server closed gracefully.")
			serverErrors <- nil
		}
	}()
	return srv, serverErrors, shutdownChan
}

func handleShutdown(srv *http.Server, cronScheduler *cron.Cron, rabbitConn *amqp.Connection, redisClient *redis.Client,
	shutdownChan <-chan os.Signal, serverErrors <-chan error, logger *slog.Logger) {
	logger.Info("Shutdown handler started. Waiting for signal or server error...")

	var triggerReason string
	select {
	case sig := <-shutdownChan:
		triggerReason = "signal: " + sig.String()
		logger.Info("Shutdown signal received.", "signal", sig.String())
	case err := <-serverErrors:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Server exited unexpectedly before signal", "error", err)
			os.Exit(1)
		}
		triggerReason = "server exited"
		logger.Info("Server goroutine finished before signal.", "error", err)
	}

	logger.Info("Starting graceful shutdown...", "trigger", triggerReason)
	stopCron(cronScheduler, logger)
	shutdownHTTPServer(srv, serverErrors, logger)
	closeRabbitMQConnection(rabbitConn, logger)
	closeRedisClient(redisClient, logger)
	logger.Info("Application shutdown process complete.")
}

// stopCron waits for a running accrual pass; its per-row transactions keep the
// store consistent if the wait times out.
func stopCron(cronScheduler *cron.Cron, logger *slog.Logger) {
	logger.Info("Stopping cron scheduler...")
	cronCtx := cronScheduler.Stop()
	select {
	case <-cronCtx.Done():
		logger.Info("Cron scheduler stopped gracefully.")
	case <-time.After(15 * time.Second):
		logger.Warn("Cron scheduler shutdown timed out.")
	}
}

func shutdownHTTPServer(srv *http.Server, serverErrors <-chan error, logger *slog.Logger) {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	logger.Info("Shutting down HTTP server...")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		if !errors.Is(err, http.ErrServerClosed) {
			logger.Error("HTTP server graceful shutdown failed", "error", err)
		}
		if err := srv.Close(); err != nil {
			logger.Error("HTTP server forced close failed", "error", err)
		}
	} else {
		logger.Info("HTTP server gracefully stopped.")
	}

	select {
	case err := <-serverErrors:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Warn("Server goroutine exited with unexpected error after shutdown", "error", err)
		} else {
			logger.Info("Server goroutine confirmed exit.")
		}
	case <-time.After(5 * time.Second):
		logger.Warn("Timed out waiting for server goroutine confirmation.")
	}
}

func closeRabbitMQConnection(rabbitConn *amqp.Connection, logger *slog.Logger) {
	if rabbitConn == nil {
		logger.Info("RabbitMQ connection was not established, skipping close.")
		return
	}
	if rabbitConn.IsClosed() {
		logger.Info("RabbitMQ connection already closed, skipping close.")
		return
	}
	logger.Info("Closing RabbitMQ connection...")
	if err := rabbitConn.Close(); err != nil {
		logger.Error("Failed to close RabbitMQ connection gracefully", slog.Any("error", err))
	}
}

func closeRedisClient(redisClient *redis.Client, logger *slog.Logger) {
	if redisClient == nil {
		return
	}
	logger.Info("Closing Redis client connection...")
	if err := redisClient.Close(); err != nil {
		logger.Error("Failed to close Redis client connection gracefully", "error", err)
	}
}

func accrualTimeout(cfg config.BatchConfig) time.Duration {
	if cfg.AccrualTimeout <= 0 {
		return defaultAccrualTimeout
	}
	return time.Duration(cfg.AccrualTimeout) * time.Second
}

func startBatchJobs(cfg *config.Config, logger *slog.Logger, accrualJob *batch.AccrualJob) *cron.Cron {
	logger.Info("Initializing batch job scheduler...")
	c := cron.New()

	scheduleSpec := cfg.Batch.AccrualSchedule
	if scheduleSpec == "" {
		scheduleSpec = "0 1 * * *"
		logger.Warn("Accrual schedule not configured, using default", "schedule", scheduleSpec)
	}
	jobTimeout := accrualTimeout(cfg.Batch)

	jobID, err := c.AddJob(scheduleSpec, cron.FuncJob(func() {
		jobLogger := logger.With("job_name", "PenaltyAccrual")
		jobLogger.Info("Cron triggered: Running penalty accrual job.")

		ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
		defer cancel()

		if runErr := accrualJob.Run(ctx); runErr != nil {
			jobLogger.Error("Penalty accrual job finished with error", slog.Any("error", runErr))
		} else {
			jobLogger.Info("Penalty accrual job finished successfully.")
		}
	}))
	if err != nil {
		logger.Error("Failed to schedule penalty accrual job", "schedule", scheduleSpec, slog.Any("error", err))
	} else {
		logger.Info("Scheduled penalty accrual job", "schedule", scheduleSpec, "job_id", jobID, "timeout", jobTimeout.String())
	}

	c.Start()
	logger.Info("Cron scheduler started.")
	return c
}
