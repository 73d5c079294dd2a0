package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gamehub-engine/internal/ai"
	"github.com/gamehub-engine/internal/chain"
	"github.com/gamehub-engine/internal/config"
	"github.com/gamehub-engine/internal/engine"
	"github.com/gamehub-engine/internal/engine/rules"
	"github.com/gamehub-engine/internal/handler"
	"github.com/gamehub-engine/internal/kafka"
	"github.com/gamehub-engine/internal/postgres"
	"github.com/gamehub-engine/internal/redis"
	"github.com/gamehub-engine/internal/websocket"
	"github.com/gamehub-engine/internal/worker"
)

func main() {
	// Parse command line flags
	configPath := flag.String("config", "config.yaml", "Path to configuration file")
	flag.Parse()

	// Setup structured logging
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Warn("failed to load config file, using defaults", "error", err)
		cfg = config.DefaultConfig()
	}

	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize Redis
	logger.Info("connecting to Redis", "addr", cfg.Redis.Addr)
	store, err := redis.NewStore(&cfg.Redis, logger)
	if err != nil {
		logger.Error("failed to connect to Redis", "error", err)
		os.Exit(1)
	}
	defer store.Close()
	logger.Info("connected to Redis")

	// Initialize PostgreSQL
	logger.Info("connecting to PostgreSQL", "host", cfg.Postgres.Host, "database", cfg.Postgres.Database)
	postgresRepo, err := postgres.NewRepository(&cfg.Postgres, logger)
	if err != nil {
		logger.Error("failed to connect to PostgreSQL", "error", err)
		os.Exit(1)
	}
	defer postgresRepo.Close()
	logger.Info("connected to PostgreSQL")

	// Run database migrations
	if err := postgresRepo.RunMigrations(ctx); err != nil {
		logger.Error("failed to run migrations", "error", err)
		os.Exit(1)
	}

	// Initialize WebSocket hub
	wsHub := websocket.NewHub(logger)
	go wsHub.Run()
	logger.Info("WebSocket hub initialized")

	// Initialize game rules
	registry := rules.NewRegistry()

	// Initialize AI advisor
	var advisor engine.Advisor
	if cfg.AI.Enabled {
		aiManager := ai.NewManager(cfg.AI, store, logger)
		advisor = ai.NewHelper(aiManager, registry, logger)
		logger.Info("AI advisor initialized", "providers", len(cfg.AI.Providers))
	}

	// Initialize blockchain client
	var chainService engine.ChainService
	if cfg.Chain.Enabled {
		chainService = chain.NewClient(cfg.Chain, logger)
		logger.Info("chain client initialized", "gateway", cfg.Chain.GatewayURL)
	}

	// Initialize Kafka event producer
	var producer *kafka.Producer
	if cfg.Kafka.Enabled {
		producer, err = kafka.NewProducer(&cfg.Kafka, logger)
		if err != nil {
			logger.Warn("failed to create Kafka producer, continuing without Kafka events", "error", err)
			producer = nil
		}
	}

	// Recorder maintains the all-time leaderboards and the event audit log
	recorder := worker.NewRecorder(store, postgresRepo, logger)

	sinks := []engine.EventSink{wsHub, recorder}
	if producer != nil {
		sinks = append(sinks, producer)
	}

	// Initialize game engine
	eng := engine.New(&cfg.Engine, registry, engine.Dependencies{
		Chain:    chainService,
		Advisor:  advisor,
		Archiver: postgresRepo,
		Sink:     engine.Fanout(sinks...),
	}, logger)

	// Start the scheduler
	go eng.Run(ctx)

	// Initialize sync worker
	syncWorker := worker.NewSyncWorker(store, postgresRepo, &cfg.Worker, logger)

	// Rebuild Redis leaderboards from the durable totals on startup
	logger.Info("syncing leaderboards from database to Redis")
	if err := syncWorker.SyncAllFromDatabase(ctx); err != nil {
		logger.Warn("failed to sync from database on startup", "error", err)
	}

	// Start sync worker
	if cfg.Worker.Enabled {
		if err := syncWorker.Start(ctx); err != nil {
			logger.Error("failed to start sync worker", "error", err)
			os.Exit(1)
		}
	}

	// Initialize Kafka consumer for high-load action ingestion
	var kafkaConsumer *kafka.Consumer
	if cfg.Kafka.Enabled {
		logger.Info("initializing Kafka consumer",
			"brokers", cfg.Kafka.Brokers,
			"topic", cfg.Kafka.ActionsTopic,
		)
		kafkaConsumer, err = kafka.NewConsumer(&cfg.Kafka, eng, logger)
		if err != nil {
			logger.Warn("failed to create Kafka consumer, continuing without Kafka", "error", err)
		} else {
			if err := kafkaConsumer.Start(); err != nil {
				logger.Warn("failed to start Kafka consumer, continuing without Kafka", "error", err)
				kafkaConsumer = nil
			} else {
				logger.Info("Kafka consumer started successfully")
			}
		}
	}

	// Initialize HTTP handler
	httpHandler := handler.NewHandler(eng, store, postgresRepo, wsHub, logger)

	// Create HTTP server
	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      httpHandler.Router(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// Start server in goroutine
	go func() {
		logger.Info("starting HTTP server", "port", cfg.Server.Port)
		logger.Info("WebSocket endpoint available at /ws")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("HTTP server error", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")

	// Create shutdown context with timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	// Stop the scheduler and wait for in-flight settlement
	cancel()
	eng.Stop()

	// Stop WebSocket hub
	wsHub.Stop()

	// Stop Kafka consumer
	if kafkaConsumer != nil {
		if err := kafkaConsumer.Stop(); err != nil {
			logger.Error("failed to stop Kafka consumer", "error", err)
		}
	}

	// Flush pending events and audit writes
	recorder.Close()
	if producer != nil {
		if err := producer.Close(); err != nil {
			logger.Error("failed to close Kafka producer", "error", err)
		}
	}

	// Stop sync worker
	if err := syncWorker.Stop(); err != nil {
		logger.Error("failed to stop sync worker", "error", err)
	}

	// Shutdown HTTP server
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("failed to shutdown server", "error", err)
	}

	logger.Info("server stopped")
}
