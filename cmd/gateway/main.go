package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/joho/godotenv"

	"github.com/aks-ide/gateway/internal/config"
	"github.com/aks-ide/gateway/internal/database"
	"github.com/aks-ide/gateway/internal/gateway"
	"github.com/aks-ide/gateway/internal/logger"
	"github.com/aks-ide/gateway/internal/pty"
	"github.com/aks-ide/gateway/internal/runtime/docker"
	"github.com/aks-ide/gateway/internal/session"
	"github.com/aks-ide/gateway/internal/store"
	"github.com/aks-ide/gateway/internal/ws"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		os.Exit(1)
	}

	log := logger.New(cfg.LogLevel, cfg.LogFormat)
	defer func() { _ = log.Sync() }()

	db, err := database.New(cfg)
	if err != nil {
		log.Fatalw("failed to connect to database", "error", err)
	}
	defer func() { _ = db.Close() }()

	if err := db.Migrate(); err != nil {
		log.Fatalw("failed to run migrations", "error", err)
	}
	log.Infow("database ready", "driver", db.Driver)

	rt, err := docker.NewProvider(cfg, log)
	if err != nil {
		log.Fatalw("failed to create docker client", "error", err)
	}
	defer func() { _ = rt.Close() }()

	st := store.New(db.DB)
	registry := session.NewRegistry()
	backend := pty.NewPosixBackend("/bin/bash", log)
	gw := gateway.New(registry, st, rt, backend, log)
	wsServer := ws.NewServer(gw, cfg.AllowedOrigin, log)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{cfg.AllowedOrigin},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE"},
		AllowedHeaders:   []string{"Authorization", "Content-Type"},
		AllowCredentials: true,
	}))

	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("Hello, World!"))
	})
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Get("/ws", wsServer.ServeHTTP)

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Port),
		Handler: r,
	}

	go func() {
		log.Infow("gateway listening", "port", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalw("server failed", "error", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit
	log.Infow("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Warnw("shutdown incomplete", "error", err)
	}
}
