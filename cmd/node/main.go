package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/medbridge/exchange/internal/gender"
	"github.com/medbridge/exchange/internal/node"
	"github.com/medbridge/exchange/internal/notify"
	"github.com/medbridge/exchange/internal/shared/auth"
	"github.com/medbridge/exchange/internal/shared/config"
	"github.com/medbridge/exchange/internal/shared/logging"
	"github.com/medbridge/exchange/internal/shared/metrics"
	secmiddleware "github.com/medbridge/exchange/internal/shared/middleware"
	"github.com/medbridge/exchange/internal/shared/store"
)

func main() {
	cfg, err := config.LoadNode()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	log := logging.New("node-"+cfg.NodeCode, cfg.Server.Env)

	patientStore := store.Open(cfg.StorePath)
	repo := node.NewRepository(patientStore)
	table := gender.TableFor(cfg.NodeCode)
	notifier := notify.NewNotifier(cfg.NodeCode, log)
	handler := node.NewHandler(repo, table, notifier, cfg.BrokerURL, cfg.NodeCode, log)

	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(secmiddleware.SecurityHeaders)
	r.Use(secmiddleware.NewIPRateLimiter(cfg.RatePerSecond, cfg.RateBurst).Middleware)
	r.Use(metrics.Middleware("node-" + cfg.NodeCode))

	// Health checks (unauthenticated)
	r.Get("/health", healthHandler)
	r.Handle("/metrics", metrics.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		if cfg.Server.Env == "production" {
			r.Use(auth.Middleware(cfg.Auth))
		}
		r.Mount("/", handler.Routes())
	})

	srv := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown
	done := make(chan bool)
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-quit
		log.Info().Msg("shutting down server")

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			log.Error().Err(err).Msg("server shutdown error")
		}
		close(done)
	}()

	fmt.Println("============================================")
	fmt.Println("MedBridge Hospital Node")
	fmt.Println("============================================")
	fmt.Printf("Environment:    %s\n", cfg.Server.Env)
	fmt.Printf("Node Code:      %s\n", cfg.NodeCode)
	fmt.Printf("Node Name:      %s\n", cfg.NodeName)
	fmt.Printf("Server:         http://localhost:%d\n", cfg.Server.Port)
	fmt.Printf("API:            http://localhost:%d/api/v1\n", cfg.Server.Port)
	fmt.Printf("Broker:         %s\n", cfg.BrokerURL)
	fmt.Printf("Store:          %s\n", cfg.StorePath)
	fmt.Println("============================================")

	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatal().Err(err).Msg("server error")
	}

	<-done
	log.Info().Msg("server stopped")
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]string{
		"status": "healthy",
	})
}
