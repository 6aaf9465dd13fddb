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

	"github.com/asaadkhaja99/rabbit-hole/internal/config"
	"github.com/asaadkhaja99/rabbit-hole/internal/job"
	"github.com/asaadkhaja99/rabbit-hole/internal/learning"
	"github.com/asaadkhaja99/rabbit-hole/internal/prompt"
	"github.com/asaadkhaja99/rabbit-hole/internal/provider"
	"github.com/asaadkhaja99/rabbit-hole/internal/provider/gemini"
	"github.com/asaadkhaja99/rabbit-hole/internal/storage"
	"github.com/asaadkhaja99/rabbit-hole/internal/worker"
	"github.com/asaadkhaja99/rabbit-hole/shared/logger"
	"github.com/asaadkhaja99/rabbit-hole/shared/postgresql"
	"github.com/asaadkhaja99/rabbit-hole/shared/rabbitmq"
	"github.com/asaadkhaja99/rabbit-hole/shared/redis"
	"github.com/asaadkhaja99/rabbit-hole/shared/sqlite"
	"github.com/joho/godotenv"
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

	// Parse command-line flags
	defaultConfigPath := os.Getenv("WORKER_SERVICE_CONFIG_PATH")
	if defaultConfigPath == "" {
		defaultConfigPath = "configs/worker-service/config.yaml"
	}
	configPath := flag.String("config", defaultConfigPath, "Path to configuration file")
	flag.Parse()

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if err := cfg.ValidateWorkerConfig(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	// Initialize logger
	appLogger, err := initLogger(&cfg.Logging)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer appLogger.Close()

	appLogger.Info("Starting worker service",
		slog.String("app", cfg.App.Name),
		slog.String("version", cfg.App.Version),
		slog.String("environment", cfg.App.Environment),
		slog.Int("concurrency", cfg.Worker.Concurrency),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	backend, err := initStorage(ctx, cfg, appLogger.Component("storage"))
	if err != nil {
		return fmt.Errorf("failed to initialize storage: %w", err)
	}
	defer backend.Close()

	geminiClient, err := gemini.NewClient(ctx, gemini.Config{
		APIKey:        cfg.Gemini.APIKey,
		ChatModel:     cfg.Gemini.ChatModel,
		ImageModel:    cfg.Gemini.ImageModel,
		ResearchModel: cfg.Gemini.ResearchModel,
	}, appLogger.Component("gemini"))
	if err != nil {
		return fmt.Errorf("failed to initialize gemini client: %w", err)
	}
	generator := provider.NewLimited(geminiClient, cfg.Gemini.MaxConcurrent)

	prompts, err := prompt.Load(cfg.Prompts.Path)
	if err != nil {
		return fmt.Errorf("failed to load prompts: %w", err)
	}

	manager := job.NewManager(
		backend.Namespace(storage.NamespaceJobs),
		learning.NewPlanner(generator, prompts, appLogger.Component("learning")),
		appLogger.Component("jobs"),
	)

	// Initialize RabbitMQ client
	rabbitClient, err := initRabbitMQ(&cfg.RabbitMQ, appLogger.Component("rabbitmq"))
	if err != nil {
		return fmt.Errorf("failed to initialize RabbitMQ: %w", err)
	}
	defer rabbitClient.Close()

	deliveries, err := rabbitClient.Consume(cfg.RabbitMQ.Consumer.Tag)
	if err != nil {
		return fmt.Errorf("failed to start consuming: %w", err)
	}

	pool := worker.NewPool("learning-plan", cfg.Worker.Concurrency, 0, appLogger.Component("worker"))
	pool.Start()

	consumer := worker.NewConsumer(manager, pool, appLogger.Component("consumer"))
	consumerDone := make(chan struct{})
	go func() {
		defer close(consumerDone)
		consumer.Run(ctx, deliveries)
	}()

	appLogger.Info("Worker service is running")

	// Wait for interrupt signal or a closed delivery channel
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-quit:
		appLogger.Info("Shutting down worker service...", slog.String("signal", sig.String()))
	case <-consumerDone:
		appLogger.Warn("Consumer stopped, shutting down worker service")
	}

	cancel()
	<-consumerDone

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Worker.ShutdownTimeout)
	defer shutdownCancel()

	if err := pool.Stop(shutdownCtx); err != nil {
		appLogger.Error("Worker pool forced to stop",
			slog.Any("error", err),
		)
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
		NoColor:      cfg.NoColor,
	})
}

// initStorage opens the shared key-value store the API service writes jobs to
func initStorage(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*storage.Backend, error) {
	return storage.OpenBackend(ctx, storage.BackendConfig{
		Driver:    cfg.Storage.Driver,
		KeyPrefix: cfg.Storage.KeyPrefix,
		SQLite: &sqlite.Config{
			Path:        cfg.Storage.SQLite.Path,
			BusyTimeout: cfg.Storage.SQLite.BusyTimeout,
		},
		Postgres: &postgresql.Config{
			URL:             cfg.Database.URL,
			Host:            cfg.Database.Host,
			Port:            cfg.Database.Port,
			User:            cfg.Database.User,
			Password:        cfg.Database.Password,
			Database:        cfg.Database.Database,
			SSLMode:         cfg.Database.SSLMode,
			ConnectTimeout:  cfg.Database.ConnectTimeout,
			MaxOpenConns:    cfg.Database.MaxOpenConns,
			MaxIdleConns:    cfg.Database.MaxIdleConns,
			ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
			ConnMaxIdleTime: cfg.Database.ConnMaxIdleTime,
		},
		Redis: &redis.Config{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		},
	}, logger)
}

// initRabbitMQ initializes the RabbitMQ client
func initRabbitMQ(cfg *config.RabbitMQConfig, logger *slog.Logger) (*rabbitmq.Client, error) {
	return rabbitmq.NewClient(&rabbitmq.Config{
		Host:               cfg.Host,
		Port:               cfg.Port,
		User:               cfg.User,
		Password:           cfg.Password,
		VHost:              cfg.VHost,
		ExchangeName:       cfg.Exchange.Name,
		ExchangeType:       cfg.Exchange.Type,
		ExchangeDurable:    cfg.Exchange.Durable,
		ExchangeAutoDelete: cfg.Exchange.AutoDelete,
		QueueName:          cfg.Queue.Name,
		QueueDurable:       cfg.Queue.Durable,
		QueueAutoDelete:    cfg.Queue.AutoDelete,
		QueueExclusive:     cfg.Queue.Exclusive,
		RoutingKey:         cfg.RoutingKey,
		RetryAttempts:      cfg.Connection.RetryAttempts,
		RetryInterval:      cfg.Connection.RetryInterval,
		Heartbeat:          cfg.Connection.Heartbeat,
		PrefetchCount:      cfg.Consumer.PrefetchCount,
	}, logger)
}
