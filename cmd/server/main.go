package main

import (
	"context"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	appauth "github.com/spotshare/spotshare/internal/auth"
	"github.com/spotshare/spotshare/internal/civil"
	"github.com/spotshare/spotshare/internal/config"
	httpserver "github.com/spotshare/spotshare/internal/http"
	"github.com/spotshare/spotshare/internal/sched"
	"github.com/spotshare/spotshare/internal/store"
	"github.com/spotshare/spotshare/internal/worker"
)

func main() {
	log.Println("Starting SpotShare server...")
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := pgxpool.New(ctx, cfg.DB.DSN)
	if err != nil {
		log.Fatalf("failed to create db pool: %v", err)
	}

	if err := store.ApplyMigrations(ctx, pool); err != nil {
		log.Fatalf("failed to apply migrations: %v", err)
	}

	stor := store.NewPostgres(pool)
	defer stor.Close()

	svc := sched.New(stor, civil.RealClock{})

	sessionManager := appauth.NewSessionManager(cfg)
	authService, err := appauth.NewService(ctx, cfg, stor, sessionManager)
	if err != nil {
		log.Fatalf("failed to initialize auth service: %v", err)
	}

	sweeper, err := worker.NewSweeper(svc, cfg.SweepSchedule)
	if err != nil {
		log.Fatalf("failed to schedule sweeper: %v", err)
	}
	sweeper.Start()
	defer sweeper.Stop()

	r := httpserver.NewRouter(cfg, stor, svc, authService)

	// WriteTimeout stays unset: /api/events holds its response open.
	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           r,
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Printf("server listening on %s", cfg.ListenAddr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	<-ctx.Done()
	log.Printf("shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("graceful shutdown failed: %v", err)
	}
}
