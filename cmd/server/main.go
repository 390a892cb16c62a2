package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/Fullship/attendance-dashboard-sub008/internal/client"
	"github.com/Fullship/attendance-dashboard-sub008/internal/config"
	"github.com/Fullship/attendance-dashboard-sub008/internal/database"
	"github.com/Fullship/attendance-dashboard-sub008/internal/handler"
	"github.com/Fullship/attendance-dashboard-sub008/internal/importer"
	"github.com/Fullship/attendance-dashboard-sub008/internal/logger"
	"github.com/Fullship/attendance-dashboard-sub008/internal/repository"
	"github.com/Fullship/attendance-dashboard-sub008/internal/service"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	log := logger.New(logger.Config{
		Level:       os.Getenv("LOG_LEVEL"),
		Environment: cfg.Service.Environment,
		ServiceName: cfg.Service.Name,
		Version:     cfg.Service.Version,
	})

	log.Info().
		Str("service", cfg.Service.Name).
		Str("version", cfg.Service.Version).
		Str("environment", cfg.Service.Environment).
		Msg("Starting attendance import service")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize database
	db, err := database.New(ctx, database.Config{
		DSN:      cfg.Database.DSN(),
		MaxConns: cfg.Database.MaxConns,
		MinConns: cfg.Database.MinConns,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to database")
	}
	defer db.Close()
	log.Info().Msg("Database connection established")

	// Initialize repositories
	employeeRepo := repository.NewEmployeeRepository(db)
	attendanceRepo := repository.NewAttendanceRepository(db)

	// Initialize event publisher (no-op when NATS is not configured)
	events, err := client.NewEventPublisher(cfg.NATS.URL, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to NATS")
	}
	defer events.Close()
	if cfg.NATS.URL != "" {
		log.Info().Str("nats_url", cfg.NATS.URL).Msg("Event publisher initialized")
	}

	// Initialize the device feed client when configured
	var device service.DeviceFeed
	if cfg.Device.BaseURL != "" {
		device = client.NewDeviceClient(
			cfg.Device.BaseURL,
			cfg.Device.APIKey,
			cfg.Device.PageSize,
			cfg.Device.Timeout,
			log,
		)
		log.Info().Str("device_url", cfg.Device.BaseURL).Msg("Device client initialized")
	}

	// Initialize the ingestion pipeline
	executor := importer.NewExecutor(importer.Options{
		SimilarityThreshold: cfg.Importer.SimilarityThreshold,
		MaxSuggestions:      cfg.Importer.MaxSuggestions,
		BatchSize:           cfg.Importer.BatchSize,
		PoolSize:            cfg.Importer.PoolSize,
		WorkerTimeout:       cfg.Importer.WorkerTimeout,
	}, log)

	importService := service.NewImportService(employeeRepo, attendanceRepo, executor, device, events, log)

	// Setup HTTP routes
	httpHandler := handler.NewHTTPHandler(importService, attendanceRepo, log)
	mux := http.NewServeMux()

	// Health check
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"healthy"}`))
	})

	// Attendance import routes
	mux.HandleFunc("/api/v1/attendance/upload", httpHandler.UploadAttendance)
	mux.HandleFunc("/api/v1/attendance/sync-device", httpHandler.SyncDevice)
	mux.HandleFunc("/api/v1/attendance/imports", httpHandler.ListImports)
	mux.HandleFunc("/api/v1/attendance/imports/get", httpHandler.GetImport)

	// Apply middleware
	var h http.Handler = mux
	h = handler.RequestID(h)
	h = handler.Logger(log)(h)
	h = handler.Recovery(log)(h)

	httpServer := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      h,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		log.Info().Int("port", cfg.Server.Port).Msg("Starting HTTP server")
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("HTTP server failed")
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP server shutdown failed")
	}

	log.Info().Msg("Server stopped")
}
