// cmd/main.go is the application entry point.
// It wires together all layers and starts the HTTP server.
package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Shivanand-hulikatti/train-reservation/internal/config"
	"github.com/Shivanand-hulikatti/train-reservation/internal/database"
	"github.com/Shivanand-hulikatti/train-reservation/internal/handler"
	"github.com/Shivanand-hulikatti/train-reservation/internal/repository"
	"github.com/Shivanand-hulikatti/train-reservation/internal/service"
)

func main() {
	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	// ── 1. Pick storage ───────────────────────────────────────────────────
	var (
		trains  service.TrainCatalog
		tickets service.TicketStore
	)
	switch cfg.Storage {
	case config.StorageMemory:
		ticketRepo := repository.NewMemoryTicketRepository()
		trains = repository.NewMemoryTrainRepository(ticketRepo)
		tickets = ticketRepo
		log.Println("✓ Using in-memory storage (single instance only)")
	default:
		pool, err := database.NewPool(ctx, cfg.Database)
		if err != nil {
			log.Fatalf("database: %v", err)
		}
		defer pool.Close()
		if err := database.Migrate(ctx, pool); err != nil {
			log.Fatalf("database: %v", err)
		}
		trains = repository.NewTrainRepository(pool)
		tickets = repository.NewTicketRepository(pool)
		log.Println("✓ Connected to PostgreSQL")
	}

	// ── 2. Wire up layers ────────────────────────────────────────────────
	opts := service.Options{
		Timeout:       cfg.Booking.StoreTimeout,
		RetryAttempts: cfg.Booking.RetryAttempts,
		RetryBackoff:  cfg.Booking.RetryBackoff,
	}
	guard := service.NewInventoryGuard(trains, opts)
	trainSvc := service.NewTrainService(trains, tickets, opts)
	reserve := service.NewReservationEngine(trains, tickets, guard, opts)
	cancel := service.NewCancellationEngine(trains, tickets, guard, opts)

	router := handler.NewRouter(
		handler.NewTrainHandler(trainSvc),
		handler.NewTicketHandler(trainSvc, reserve, cancel),
		[]byte(cfg.Auth.JWTSecret),
	)

	// ── 3. Start server with graceful shutdown ────────────────────────────
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("✓ Server listening on http://localhost:%s", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	// Block until SIGINT or SIGTERM.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("shutting down server…")
	shutdownCtx, stop := context.WithTimeout(context.Background(), 10*time.Second)
	defer stop()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatalf("graceful shutdown failed: %v", err)
	}
	log.Println("server stopped")
}
