// Package main provides the mqpub server executable with HTTP API and background drain worker.
package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/coregx/mqpub"
	"github.com/coregx/mqpub/adapters/mqtt"
	"github.com/coregx/mqpub/adapters/relica"
	"github.com/coregx/mqpub/cmd/mqpub-server/internal/api"
	"github.com/coregx/mqpub/cmd/mqpub-server/internal/config"
	_ "github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
)

// SimpleLogger implements mqpub.Logger for standard logging.
type SimpleLogger struct{}

func (l *SimpleLogger) Debugf(format string, args ...interface{}) {
	log.Printf("[DEBUG] "+format, args...)
}
func (l *SimpleLogger) Infof(format string, args ...interface{}) {
	log.Printf("[INFO] "+format, args...)
}
func (l *SimpleLogger) Warnf(format string, args ...interface{}) {
	log.Printf("[WARN] "+format, args...)
}
func (l *SimpleLogger) Errorf(format string, args ...interface{}) {
	log.Printf("[ERROR] "+format, args...)
}
func (l *SimpleLogger) Info(message string) {
	log.Printf("[INFO] %s", message)
}

func main() {
	log.Println("🚀 Starting mqpub Server v0.1.0...")

	// Load configuration from environment
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	log.Printf("📝 Configuration loaded:")
	log.Printf("   Server: %s:%d", cfg.Server.Host, cfg.Server.Port)
	log.Printf("   Database: %s (%s:%d)", cfg.Database.Driver, cfg.Database.Host, cfg.Database.Port)
	log.Printf("   Brokers: %d configured", len(cfg.Brokers))
	log.Printf("   Ring capacity: %d", cfg.Engine.RingCapacity)
	log.Printf("   Worker batch size: %d", cfg.Engine.BatchSize)
	log.Printf("   Worker interval: %dms", cfg.Engine.WorkerIntervalMs)

	// Connect to database
	db, err := sql.Open(cfg.Database.Driver, cfg.Database.GetDSN())
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer func() {
		if closeErr := db.Close(); closeErr != nil {
			log.Printf("Failed to close database: %v", closeErr)
		}
	}()

	// Test connection
	if err := db.Ping(); err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	log.Println("✅ Database connection established")

	// Create logger
	logger := &SimpleLogger{}

	// Create repositories using Relica adapters
	var repos *relica.Repositories
	if cfg.Database.Prefix != "" {
		repos = relica.NewRepositoriesWithPrefix(db, cfg.Database.Driver, cfg.Database.Prefix)
	} else {
		repos = relica.NewRepositories(db, cfg.Database.Driver)
	}
	log.Println("✅ Repositories initialized (Relica adapters)")

	// Create broker gateway
	gateway, err := mqtt.NewGateway(cfg.Brokers, logger)
	if err != nil {
		log.Fatalf("Failed to create broker gateway: %v", err)
	}
	defer gateway.Close()
	log.Println("✅ Broker gateway created")

	// Create shared engine state. The engine starts cold and switches to
	// the hot path once the worker confirms connectivity and an empty outbox.
	modeState := mqpub.NewModeState(mqpub.ModeCold)
	ring, err := mqpub.NewRingQueue(cfg.Engine.RingCapacity)
	if err != nil {
		log.Fatalf("Failed to create ring queue: %v", err)
	}

	// Create notification service
	var notificationService mqpub.NotificationService
	if cfg.Engine.EnableNotifications {
		notificationService = mqpub.NewLoggingNotificationService(logger)
	} else {
		notificationService = &mqpub.NoOpNotificationService{}
	}

	// Create Router service
	router, err := mqpub.NewRouter(
		mqpub.WithRouterQueues(modeState, ring, repos.Outbox),
		mqpub.WithRouterGateway(gateway),
		mqpub.WithRouterLogger(logger),
	)
	if err != nil {
		log.Fatalf("Failed to create router: %v", err)
	}
	log.Println("✅ Router service created")

	// Create DrainWorker
	retention := time.Duration(cfg.Engine.RetentionDays) * 24 * time.Hour
	worker, err := mqpub.NewDrainWorker(
		mqpub.WithRepositories(repos.Outbox, repos.DeadLetter),
		mqpub.WithQueues(modeState, ring),
		mqpub.WithGateway(gateway),
		mqpub.WithLogger(logger),
		mqpub.WithBatchSize(cfg.Engine.BatchSize),
		mqpub.WithNotifications(notificationService),
		mqpub.WithPruning(time.Hour, retention),
	)
	if err != nil {
		log.Fatalf("Failed to create worker: %v", err)
	}
	log.Println("✅ DrainWorker created")

	// Create DeadLetterManager
	deadLetters, err := mqpub.NewDeadLetterManager(
		mqpub.WithDeadLetterManagerRepositories(repos.Outbox, repos.DeadLetter),
		mqpub.WithDeadLetterManagerState(modeState),
		mqpub.WithDeadLetterManagerLogger(logger),
	)
	if err != nil {
		log.Fatalf("Failed to create dead letter manager: %v", err)
	}
	log.Println("✅ DeadLetterManager created")

	// Start worker in background
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		log.Printf("🔄 Starting drain worker (interval: %dms)...", cfg.Engine.WorkerIntervalMs)
		worker.Run(ctx, time.Duration(cfg.Engine.WorkerIntervalMs)*time.Millisecond)
	}()

	// Create API handler
	handler := api.NewHandler(router, worker, deadLetters, logger)

	// Setup HTTP routes
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/publish", handler.HandlePublish)
	mux.HandleFunc("/api/v1/status", handler.HandleStatus)
	mux.HandleFunc("/api/v1/deadletters", handler.HandleListDeadLetters)
	mux.HandleFunc("/api/v1/deadletters/stats", handler.HandleDeadLetterStats)
	mux.HandleFunc("/api/v1/deadletters/replay", handler.HandleReplay)
	mux.HandleFunc("/api/v1/health", handler.HandleHealth)

	// Create HTTP server
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	server := &http.Server{
		Addr:         addr,
		Handler:      loggingMiddleware(mux, logger),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in background
	go func() {
		log.Printf("🌐 HTTP server listening on %s", addr)
		log.Println("📡 API Endpoints:")
		log.Println("   POST   /api/v1/publish")
		log.Println("   GET    /api/v1/status")
		log.Println("   GET    /api/v1/deadletters")
		log.Println("   GET    /api/v1/deadletters/stats")
		log.Println("   POST   /api/v1/deadletters/replay")
		log.Println("   GET    /api/v1/health")
		log.Println()
		log.Println("✅ mqpub Server is ready!")

		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	// Wait for interrupt signal for graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("🛑 Shutting down server...")

	// Graceful shutdown with timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server forced to shutdown: %v", err)
	}

	cancel() // Stop worker
	log.Println("✅ Server stopped gracefully")
}

// loggingMiddleware logs HTTP requests.
func loggingMiddleware(next http.Handler, logger mqpub.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		logger.Infof("%s %s", r.Method, r.URL.Path)
		next.ServeHTTP(w, r)
		logger.Debugf("%s %s - %v", r.Method, r.URL.Path, time.Since(start))
	})
}
