package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/cuongbtq/fetch-archiver/internal/api/handler"
	"github.com/cuongbtq/fetch-archiver/internal/api/router"
	"github.com/cuongbtq/fetch-archiver/internal/cleanup"
	"github.com/cuongbtq/fetch-archiver/internal/config"
	"github.com/cuongbtq/fetch-archiver/internal/fetcher"
	"github.com/cuongbtq/fetch-archiver/internal/packager"
	"github.com/cuongbtq/fetch-archiver/internal/registry"
	"github.com/cuongbtq/fetch-archiver/internal/service"
	"github.com/cuongbtq/fetch-archiver/internal/workdir"
	"github.com/cuongbtq/fetch-archiver/internal/worker"
	"github.com/cuongbtq/fetch-archiver/shared/logger"
	"github.com/cuongbtq/fetch-archiver/shared/rabbitmq"
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
	defaultConfigPath := os.Getenv("ARCHIVE_SERVICE_CONFIG_PATH")
	if defaultConfigPath == "" {
		defaultConfigPath = "configs/archive-service/config.yaml"
	}
	configPath := flag.String("config", defaultConfigPath, "Path to configuration file")
	flag.Parse()

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	// Initialize logger
	appLogger, err := initLogger(&cfg.Logging)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer appLogger.Close()

	appLogger.Info("Starting archive service",
		slog.String("app", cfg.App.Name),
		slog.String("version", cfg.App.Version),
		slog.String("environment", cfg.App.Environment),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Storage
	workspace, err := workdir.NewManager(cfg.Storage.WorkDir, appLogger.Component("workdir"))
	if err != nil {
		return fmt.Errorf("failed to initialize working directories: %w", err)
	}

	artifactDir, err := prepareArtifactDir(cfg.Storage.ArtifactDir)
	if err != nil {
		return err
	}

	// Optional event publisher
	var (
		publisher    worker.EventPublisher
		rabbitClient *rabbitmq.Client
	)
	if cfg.RabbitMQ.Enabled {
		rabbitClient, err = initRabbitMQ(ctx, &cfg.RabbitMQ, appLogger.Component("rabbitmq"))
		if err != nil {
			return fmt.Errorf("failed to initialize RabbitMQ: %w", err)
		}
		defer rabbitClient.Close()
		publisher = rabbitClient

		appLogger.Info("RabbitMQ connection established")
	}

	fetcherArgs, err := cfg.FetcherArgs()
	if err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	jobRegistry := registry.New(appLogger.Component("registry"))

	runner := worker.NewRunner(&worker.RunnerConfig{
		Logger:    appLogger.Component("runner"),
		Registry:  jobRegistry,
		Workspace: workspace,
		Fetchers: fetcher.NewCommandFactory(&fetcher.CommandConfig{
			Binary: cfg.Fetcher.Command,
			Args:   fetcherArgs,
			Logger: appLogger.Component("fetcher"),
		}),
		Packager:    packager.New(cfg.Packager.CompressionLevel, appLogger.Component("packager")),
		Publisher:   publisher,
		ArtifactDir: artifactDir,
		JobTimeout:  cfg.Worker.JobTimeout,
	})

	workerPool := worker.NewWorker(&worker.Config{
		Logger:      appLogger.Component("worker"),
		Runner:      runner,
		WorkerID:    cfg.App.Name,
		Concurrency: cfg.Worker.Concurrency,
		QueueSize:   cfg.Worker.QueueSize,
	})
	if err := workerPool.Start(ctx); err != nil {
		return fmt.Errorf("failed to start worker pool: %w", err)
	}

	scheduler := cleanup.NewScheduler(appLogger.Component("cleanup"))

	jobService := service.NewJobService(&service.Config{
		Logger:       appLogger.Component("service"),
		Registry:     jobRegistry,
		Queue:        workerPool,
		Cleanup:      scheduler,
		CleanupDelay: cfg.Cleanup.Delay,
		Retention:    cfg.Registry.Retention,
	})

	janitorDone := make(chan struct{})
	go func() {
		defer close(janitorDone)
		jobService.RunJanitor(ctx, cfg.Registry.SweepInterval)
	}()

	handlerDeps := &handler.Dependencies{
		Logger:      appLogger.Component("http"),
		Service:     jobService,
		Pool:        workerPool,
		ArtifactDir: artifactDir,
		ServiceName: cfg.App.Name,
		Version:     cfg.App.Version,
	}
	if rabbitClient != nil {
		handlerDeps.Broker = rabbitClient
	}

	// Initialize router
	r := initRouter(cfg, handlerDeps)

	// Create HTTP server
	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	appLogger.Info("Starting HTTP server",
		slog.String("address", addr),
		slog.Duration("read_timeout", cfg.Server.ReadTimeout),
		slog.Duration("write_timeout", cfg.Server.WriteTimeout),
	)

	errChan := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
	}()

	appLogger.Info("Archive service is running",
		slog.String("address", addr),
		slog.Int("concurrency", cfg.Worker.Concurrency),
		slog.Duration("cleanup_delay", cfg.Cleanup.Delay),
	)

	// Wait for interrupt signal or server failure
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	var runErr error
	select {
	case sig := <-quit:
		appLogger.Info("Received signal, shutting down gracefully",
			slog.String("signal", sig.String()),
		)
	case err := <-errChan:
		appLogger.Error("Server failed", slog.Any("error", err))
		runErr = fmt.Errorf("http server: %w", err)
	}

	// Step 1: stop accepting requests
	httpCtx, httpCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer httpCancel()
	if err := srv.Shutdown(httpCtx); err != nil {
		appLogger.Error("Server forced to shutdown", slog.Any("error", err))
	}

	// Step 2: let running jobs finish, fail the queued ones
	workerCtx, workerCancel := context.WithTimeout(context.Background(), cfg.Worker.ShutdownTimeout)
	defer workerCancel()
	if err := workerPool.Stop(workerCtx); err != nil {
		appLogger.Warn("Worker shutdown timeout exceeded, running jobs were canceled",
			slog.Any("error", err),
		)
	}

	// Step 3: stop background maintenance and flush pending deletions
	cancel()
	<-janitorDone
	scheduler.Shutdown()

	appLogger.Info("Archive service shutdown complete")
	return runErr
}

// initLogger initializes and configures the application logger
func initLogger(cfg *config.LoggingConfig) (*logger.Logger, error) {
	timeFormat := cfg.TimeFormat
	if timeFormat == "" {
		timeFormat = time.RFC3339
	}

	loggerCfg := &logger.Config{
		Level:        cfg.Level,
		Format:       cfg.Format,
		Output:       cfg.Output,
		EnableSource: cfg.EnableCaller,
		TimeFormat:   timeFormat,
		NoColor:      cfg.NoColor,
	}

	return logger.New(loggerCfg)
}

// prepareArtifactDir creates the archive directory and returns its absolute path
func prepareArtifactDir(dir string) (string, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return "", fmt.Errorf("failed to resolve artifact directory: %w", err)
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return "", fmt.Errorf("failed to create artifact directory: %w", err)
	}
	return abs, nil
}

// initRabbitMQ initializes the RabbitMQ event publisher
func initRabbitMQ(ctx context.Context, cfg *config.RabbitMQConfig, logger *slog.Logger) (*rabbitmq.Client, error) {
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
		ConnectionTimeout:  cfg.Connection.ConnectionTimeout,
		PublishRetries:     cfg.Publish.RetryAttempts,
		PublishRetryDelay:  cfg.Publish.RetryInterval,
		PublishBackoffMult: cfg.Publish.BackoffMultiplier,
	}

	return rabbitmq.NewClient(ctx, rabbitConfig, logger)
}

// initRouter initializes the Gin router with all routes and middleware
func initRouter(cfg *config.Config, deps *handler.Dependencies) *gin.Engine {
	// Set Gin mode based on environment
	if cfg.App.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	} else {
		gin.SetMode(gin.DebugMode)
	}

	return router.SetupRouter(deps)
}
