package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/asaadkhaja99/rabbit-hole/internal/annotate"
	"github.com/asaadkhaja99/rabbit-hole/internal/api/handler"
	"github.com/asaadkhaja99/rabbit-hole/internal/api/router"
	"github.com/asaadkhaja99/rabbit-hole/internal/config"
	"github.com/asaadkhaja99/rabbit-hole/internal/job"
	"github.com/asaadkhaja99/rabbit-hole/internal/learning"
	"github.com/asaadkhaja99/rabbit-hole/internal/metrics"
	"github.com/asaadkhaja99/rabbit-hole/internal/pdf"
	"github.com/asaadkhaja99/rabbit-hole/internal/prompt"
	"github.com/asaadkhaja99/rabbit-hole/internal/provider"
	"github.com/asaadkhaja99/rabbit-hole/internal/provider/gemini"
	"github.com/asaadkhaja99/rabbit-hole/internal/relay"
	"github.com/asaadkhaja99/rabbit-hole/internal/storage"
	"github.com/asaadkhaja99/rabbit-hole/internal/worker"
	"github.com/asaadkhaja99/rabbit-hole/shared/logger"
	"github.com/asaadkhaja99/rabbit-hole/shared/postgresql"
	"github.com/asaadkhaja99/rabbit-hole/shared/rabbitmq"
	"github.com/asaadkhaja99/rabbit-hole/shared/redis"
	"github.com/asaadkhaja99/rabbit-hole/shared/sqlite"
	"github.com/gin-gonic/gin"
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
	defaultConfigPath := os.Getenv("API_SERVICE_CONFIG_PATH")
	if defaultConfigPath == "" {
		defaultConfigPath = "configs/api-service/config.yaml"
	}
	configPath := flag.String("config", defaultConfigPath, "Path to configuration file")
	flag.Parse()

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if err := cfg.ValidateAPIConfig(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	// Initialize logger
	appLogger, err := initLogger(&cfg.Logging)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer appLogger.Close()

	appLogger.Info("Starting API service",
		slog.String("app", cfg.App.Name),
		slog.String("version", cfg.App.Version),
		slog.String("environment", cfg.App.Environment),
	)

	metrics.MustRegister()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize key-value store
	backend, err := initStorage(ctx, cfg, appLogger.Component("storage"))
	if err != nil {
		return fmt.Errorf("failed to initialize storage: %w", err)
	}
	defer backend.Close()

	appLogger.Info("Storage initialized", slog.String("driver", backend.Driver()))

	// Initialize generation provider
	geminiClient, err := gemini.NewClient(ctx, gemini.Config{
		APIKey:        cfg.Gemini.APIKey,
		ChatModel:     cfg.Gemini.ChatModel,
		ImageModel:    cfg.Gemini.ImageModel,
		ResearchModel: cfg.Gemini.ResearchModel,
	}, appLogger.Component("gemini"))
	if err != nil {
		return fmt.Errorf("failed to initialize gemini client: %w", err)
	}
	geminiClient.ValidateModels(ctx)
	generator := provider.NewLimited(geminiClient, cfg.Gemini.MaxConcurrent)

	prompts, err := prompt.Load(cfg.Prompts.Path)
	if err != nil {
		return fmt.Errorf("failed to load prompts: %w", err)
	}

	// Stream relay
	relayPool := worker.NewPool("relay", cfg.Relay.PoolSize, cfg.Relay.QueueSize, appLogger.Component("relay"))
	relayPool.Start()
	streamRelay := relay.New(generator, relayPool, cfg.Relay.ChunkBuffer, appLogger.Component("relay"))

	// Job manager
	manager := job.NewManager(
		backend.Namespace(storage.NamespaceJobs),
		learning.NewPlanner(generator, prompts, appLogger.Component("learning")),
		appLogger.Component("jobs"),
	)

	var jobPool *worker.Pool
	var rabbitClient *rabbitmq.Client
	switch cfg.Jobs.Dispatcher {
	case config.DispatcherRabbitMQ:
		rabbitClient, err = initRabbitMQ(&cfg.RabbitMQ, appLogger.Component("rabbitmq"))
		if err != nil {
			return fmt.Errorf("failed to initialize RabbitMQ: %w", err)
		}
		defer rabbitClient.Close()
		manager.SetDispatcher(job.NewRabbitDispatcher(rabbitClient, appLogger.Component("jobs")))
	default:
		jobPool = worker.NewPool("learning-plan", cfg.Jobs.Concurrency, cfg.Jobs.QueueSize, appLogger.Component("jobs"))
		jobPool.Start()
		manager.SetDispatcher(job.NewLocalDispatcher(jobPool, manager, appLogger.Component("jobs")).
			WithRetry(cfg.Jobs.RetryAttempts, cfg.Jobs.RetryInterval))
	}

	appLogger.Info("Job dispatcher configured", slog.String("dispatcher", cfg.Jobs.Dispatcher))

	pdfService := pdf.NewService(geminiClient, backend.Namespace(storage.NamespacePDFs), pdf.Config{
		UploadDir:    cfg.PDF.UploadDir,
		IndexWait:    cfg.PDF.IndexWait,
		PollInterval: cfg.PDF.PollInterval,
	}, appLogger.Component("pdf"))

	labels := cfg.Annotate.AspectRatios
	annotator := annotate.New(generator, prompts.EquationAnnotation, annotate.Labels{
		Widescreen: labels.Widescreen,
		Wide:       labels.Wide,
		Square:     labels.Square,
		Tall:       labels.Tall,
		Portrait:   labels.Portrait,
	}, appLogger.Component("annotate"))

	// Initialize router
	r := initRouter(cfg.App.Environment, &handler.Dependencies{
		Logger:        appLogger.Logger,
		Relay:         streamRelay,
		Prompts:       prompts,
		Annotator:     annotator,
		Jobs:          manager,
		PDFs:          pdfService,
		MaxUploadSize: cfg.Server.MaxUploadSize,
	})

	// Create HTTP server
	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
		BaseContext:  func(_ net.Listener) context.Context { return ctx },
	}

	appLogger.Info("Starting HTTP server",
		slog.String("address", addr),
		slog.Duration("read_timeout", cfg.Server.ReadTimeout),
		slog.Duration("write_timeout", cfg.Server.WriteTimeout),
	)

	serverErr := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	appLogger.Info("API service is running",
		slog.String("address", addr),
	)

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-quit:
		appLogger.Info("Shutting down server...", slog.String("signal", sig.String()))
	case err := <-serverErr:
		appLogger.Error("Server failed", slog.Any("error", err))
		return err
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	// Open streams end when their request context is cancelled
	cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		appLogger.Error("Server forced to shutdown",
			slog.Any("error", err),
		)
	}

	if err := relayPool.Stop(shutdownCtx); err != nil {
		appLogger.Warn("Relay pool did not drain", slog.Any("error", err))
	}
	if jobPool != nil {
		if err := jobPool.Stop(shutdownCtx); err != nil {
			appLogger.Warn("Job pool did not drain, running jobs stay processing", slog.Any("error", err))
		}
	}

	appLogger.Info("Server shutdown complete")
	return nil
}

// initLogger initializes and configures the application logger
func initLogger(cfg *config.LoggingConfig) (*logger.Logger, error) {
	loggerCfg := &logger.Config{
		Level:        cfg.Level,
		Format:       cfg.Format,
		Output:       cfg.Output,
		EnableSource: cfg.EnableCaller,
		TimeFormat:   time.RFC3339,
		NoColor:      cfg.NoColor,
	}

	return logger.New(loggerCfg)
}

// initStorage opens the configured key-value store backend
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
	rabbitConfig := &rabbitmq.Config{
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
		PublishRetries:     cfg.Publish.RetryAttempts,
		PublishRetryDelay:  cfg.Publish.RetryInterval,
		PublishBackoffMult: cfg.Publish.BackoffMultiplier,
		PrefetchCount:      cfg.Consumer.PrefetchCount,
	}

	return rabbitmq.NewClient(rabbitConfig, logger)
}

// initRouter initializes the Gin router with all routes and middleware
func initRouter(environment string, deps *handler.Dependencies) *gin.Engine {
	// Set Gin mode based on environment
	if environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	} else {
		gin.SetMode(gin.DebugMode)
	}

	return router.SetupRouter(deps)
}
