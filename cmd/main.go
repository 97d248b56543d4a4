/*
Package main is the entry point for the PropChat server.

It is responsible for loading configuration, initializing the global logging system,
connecting to PostgreSQL and attachment storage, starting the WebSocket hub,
and gracefully handling operating system interrupt signals (SIGINT, SIGTERM)
to ensure a smooth server shutdown.
*/
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"propchat/internal/app/chat"
	"propchat/internal/app/identity"
	"propchat/internal/app/storage"
	"propchat/internal/app/store"
	"propchat/internal/configs"
	"propchat/internal/handler"
	"propchat/internal/pkg/logx"
	"propchat/internal/pkg/metrics"
)

func main() {
	// Load configuration from environment variables
	cfg, err := configs.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize global logger
	logx.InitGlobalLogger(cfg.Environment == "development")
	logx.Logger().Info().
		Str("environment", cfg.Environment).
		Int("port", cfg.Port).
		Strs("allowed_origins", cfg.AllowedOrigins).
		Dur("heartbeat_interval", cfg.HeartbeatInterval).
		Msg("Configuration loaded successfully")

	// Create a context that listens for the interrupt signal from the OS.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Connect to PostgreSQL and run pending migrations
	st, err := store.New(cfg.DatabaseDSN)
	if err != nil {
		logx.Fatal(err, "Failed to initialize persistence")
	}
	defer st.Close()

	// Initialize attachment storage
	storageService, err := storage.NewStorageService(storage.ServiceConfig{
		S3BucketName:      cfg.S3BucketName,
		S3Endpoint:        cfg.S3Endpoint,
		S3AccessKeyID:     cfg.S3AccessKeyID,
		S3SecretAccessKey: cfg.S3SecretAccessKey,
	})
	if err != nil {
		logx.Fatal(err, "Failed to initialize attachment storage")
	}

	// Metrics registry and recorder
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())
	registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	recorder := metrics.NewCollector(registry)

	// Initialize the WebSocket hub
	authorizer := chat.NewStoreAuthorizer(st)
	hub := chat.NewHub(authorizer, st, recorder, cfg.HeartbeatWindow())

	// Setup HTTP server and routes
	deps := &handler.AppDeps{
		Hub:            hub,
		Config:         cfg,
		Store:          st,
		StorageService: storageService,
		Resolver:       identity.NewJWTResolver(cfg.JWTSecret, st),
		Authorizer:     authorizer,
		Metrics:        recorder,
		Registry:       registry,
	}
	router := handler.Router(deps)

	serverAddr := fmt.Sprintf(":%d", cfg.Port)
	server := &http.Server{
		Addr:         serverAddr,
		Handler:      router,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		logx.Info(fmt.Sprintf("PropChat Server starting on http://localhost%s", serverAddr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logx.Fatal(err, "Server failed to start")
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server with a timeout of 5 seconds.
	<-ctx.Done()
	logx.Info("Received shutdown signal. Starting graceful shutdown...")

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelShutdown()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logx.Fatal(err, "Server forced to shutdown")
	}

	hub.Shutdown()

	logx.Info("Server gracefully stopped.")
}
