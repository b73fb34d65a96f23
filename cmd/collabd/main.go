// collabd is the collaboration relay daemon: it hosts the WebSocket rooms
// diagram sessions join, plus health and metrics endpoints.
package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"archsync-backend/domain/services"
	"archsync-backend/infrastructure/config"
	"archsync-backend/infrastructure/di"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := cfg.ApplyFile(path); err != nil {
			log.Fatalf("Failed to apply config file: %v", err)
		}
	}

	container, err := di.InitializeContainer(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to initialize container: %v", err)
	}
	logger := container.Logger

	go container.Hub.Run()

	// Optional hot reload of the engine tuning values.
	if path := os.Getenv("TUNING_FILE"); path != "" {
		watcher, err := config.NewWatcher(path, logger)
		if err != nil {
			logger.Fatal("failed to start tuning watcher", zap.Error(err))
		}
		defer watcher.Stop()
		watcher.OnChange(func(t *config.Tuning) {
			container.BindingResolver.UpdateConfig(services.BindingConfig{
				DirectRadius:     t.Binding.DirectRadius,
				CorrectiveRadius: t.Binding.CorrectiveRadius,
			})
		})
	}

	srv := &http.Server{
		Addr:         cfg.ServerAddress,
		Handler:      setupRouter(container),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("Starting relay server",
			zap.String("address", cfg.ServerAddress),
			zap.String("environment", cfg.Environment),
		)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Server failed to start", zap.Error(err))
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Info("Shutting down relay server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(ctx, 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server shutdown error", zap.Error(err))
	}
	container.Hub.Stop()

	if err := logger.Sync(); err != nil {
		log.Printf("Failed to sync logger: %v", err)
	}
	log.Println("Relay stopped")
}

func setupRouter(container *di.Container) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok"}`))
	})

	if container.Config.EnableMetrics {
		r.Handle("/metrics", promhttp.HandlerFor(container.Registry, promhttp.HandlerOpts{}))
	}

	r.Get("/ws", container.WebSocketServer.HandleWebSocket)

	return r
}
