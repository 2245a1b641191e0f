package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/campuslink/portal-sync/db"
	"github.com/campuslink/portal-sync/internal/cache"
	"github.com/campuslink/portal-sync/internal/config"
	"github.com/campuslink/portal-sync/internal/enqueue"
	"github.com/campuslink/portal-sync/internal/jobstore"
	"github.com/campuslink/portal-sync/internal/portal"
	"github.com/campuslink/portal-sync/internal/reconcile"
	"github.com/campuslink/portal-sync/internal/records"
	"github.com/campuslink/portal-sync/internal/worker"
	"github.com/campuslink/portal-sync/shared/logger"
	"github.com/campuslink/portal-sync/shared/postgresql"
	"github.com/campuslink/portal-sync/shared/rabbitmq"
	"github.com/campuslink/portal-sync/shared/redisclient"
)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	// Load .env file if it exists
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables or flags")
	}

	defaultConfigPath := os.Getenv("WORKER_SERVICE_CONFIG_PATH")
	if defaultConfigPath == "" {
		defaultConfigPath = "configs/worker-service/config.yaml"
	}
	configPath := flag.String("config", defaultConfigPath, "Path to configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if err := cfg.ValidateWorkerConfig(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	appLogger, err := initLogger(&cfg.Logging)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}

	appLogger.Info("Starting worker service",
		slog.String("app", cfg.App.Name),
		slog.String("version", cfg.App.Version),
		slog.String("environment", cfg.App.Environment),
	)

	dbConfig := pgConfig(&cfg.Database)
	if err := db.RunMigrations(dbConfig.DSN(), appLogger.Logger); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	dbClient, err := postgresql.NewClient(dbConfig, appLogger.Logger)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}

	appLogger.Info("Database connection established")

	rabbitClient, err := rabbitmq.NewClient(rabbitConfig(&cfg.RabbitMQ), appLogger.Logger)
	if err != nil {
		return fmt.Errorf("failed to initialize RabbitMQ: %w", err)
	}

	appLogger.Info("RabbitMQ connection established")

	redisClient, err := redisclient.NewClient(&redisclient.Config{
		Host:     cfg.Redis.Host,
		Port:     cfg.Redis.Port,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
		PoolSize: cfg.Redis.PoolSize,
	}, appLogger.Logger)
	if err != nil {
		return fmt.Errorf("failed to initialize Redis: %w", err)
	}

	jobs := jobstore.NewPostgresStore(dbClient.GetDB(), appLogger.Logger)
	recordStorage := records.NewStorage(dbClient.GetDB(), appLogger.Logger)
	engine := reconcile.NewEngine(appLogger.Logger)

	runner := worker.NewRunner(worker.RunnerConfig{
		Jobs:        jobs,
		Credentials: portal.NewRedisCredentialStore(redisClient, cfg.Redis.CredentialTTL),
		Fetcher:     portal.NewHTTPFetcher(cfg.Portal.BaseURL, cfg.Portal.FetchTimeout),
		Users:       recordStorage,
		Syncer:      worker.NewEngineSyncer(recordStorage, engine),
		Cache:       cache.NewRedisCache(redisClient),
		Logger:      appLogger.Logger,
	})

	pool := worker.NewPool(worker.PoolConfig{
		Logger:      appLogger.Logger,
		MinWorkers:  cfg.Worker.MinWorkers,
		MaxWorkers:  cfg.Worker.MaxWorkers,
		Backlog:     cfg.Worker.Backlog,
		IdleTimeout: cfg.Worker.IdleTimeout,
	})

	consumer := worker.NewConsumer(worker.ConsumerConfig{
		Client:   rabbitClient,
		Pool:     pool,
		Runner:   runner,
		Prefetch: cfg.Worker.PrefetchCount,
		Logger:   appLogger.Logger,
	})

	sweeper := worker.NewSweeper(worker.SweeperConfig{
		Jobs:       jobs,
		Dispatcher: enqueue.NewEnqueuer(jobs, rabbitClient, appLogger.Logger),
		Interval:   cfg.Sweeper.Interval,
		StaleAfter: cfg.Sweeper.StaleAfter,
		Logger:     appLogger.Logger,
	})

	workerInstance := worker.NewWorker(&worker.Config{
		Logger:   appLogger.Logger,
		Pool:     pool,
		Consumer: consumer,
		Sweeper:  sweeper,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	errChan := make(chan error, 1)
	go func() {
		if err := workerInstance.Start(ctx); err != nil {
			errChan <- err
		}
	}()

	appLogger.Info("Worker service started successfully")

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-quit:
		appLogger.Info("Received signal, shutting down gracefully",
			slog.String("signal", sig.String()),
		)
	case err := <-errChan:
		appLogger.Error("Worker error",
			slog.Any("error", err),
		)
		return err
	}

	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Worker.ShutdownTimeout)
	defer shutdownCancel()

	done := make(chan struct{})
	go func() {
		workerInstance.Stop()
		close(done)
	}()

	select {
	case <-done:
		appLogger.Info("Worker stopped gracefully")
	case <-shutdownCtx.Done():
		appLogger.Warn("Worker shutdown timeout exceeded, forcing exit")
	}

	if dbClient != nil {
		dbClient.Close()
	}
	if rabbitClient != nil {
		rabbitClient.Close()
	}
	if redisClient != nil {
		redisClient.Close()
	}

	appLogger.Info("Worker service shutdown complete")
	return nil
}

// initLogger initializes and configures the application logger
func initLogger(cfg *config.LoggingConfig) (*logger.Logger, error) {
	return logger.New(&logger.Config{
		Level:        cfg.Level,
		Format:       cfg.Format,
		Output:       cfg.Output,
		EnableSource: cfg.EnableCaller,
		TimeFormat:   time.RFC3339,
	})
}

// pgConfig maps the service configuration to the PostgreSQL client
func pgConfig(cfg *config.DatabaseConfig) *postgresql.Config {
	return &postgresql.Config{
		Host:            cfg.Host,
		Port:            cfg.Port,
		User:            cfg.User,
		Password:        cfg.Password,
		Database:        cfg.Database,
		SSLMode:         cfg.SSLMode,
		MaxOpenConns:    cfg.MaxOpenConns,
		MaxIdleConns:    cfg.MaxIdleConns,
		ConnMaxLifetime: cfg.ConnMaxLifetime,
		ConnMaxIdleTime: cfg.ConnMaxIdleTime,
	}
}

// rabbitConfig maps the service configuration to the RabbitMQ client
func rabbitConfig(cfg *config.RabbitMQConfig) *rabbitmq.Config {
	return &rabbitmq.Config{
		Host:              cfg.Host,
		Port:              cfg.Port,
		User:              cfg.User,
		Password:          cfg.Password,
		VHost:             cfg.VHost,
		ExchangeName:      cfg.Exchange,
		ExchangeType:      "direct",
		QueueName:         cfg.Queue,
		RoutingKey:        cfg.RoutingKey,
		RetryAttempts:     cfg.Connection.RetryAttempts,
		RetryInterval:     cfg.Connection.RetryInterval,
		Heartbeat:         cfg.Connection.Heartbeat,
		PublishRetries:    cfg.Publish.RetryAttempts,
		PublishRetryDelay: cfg.Publish.RetryInterval,
	}
}
