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

	"docsync/internal/api"
	"docsync/internal/config"
	"docsync/internal/db"
	"docsync/internal/directory"
	"docsync/internal/security"
	"docsync/internal/session"
	"docsync/internal/store"
	"docsync/internal/telemetry"
)

func main() {
	log.Println("starting docsync server...")

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	jaegerShutdown, err := telemetry.InitJaeger("docsync", cfg.JaegerEndpoint, cfg.TraceSampleRatio)
	if err != nil {
		log.Printf("failed to initialize Jaeger: %v (continuing without tracing)", err)
		jaegerShutdown = func(ctx context.Context) error { return nil }
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := jaegerShutdown(ctx); err != nil {
			log.Printf("failed to shut down Jaeger: %v", err)
		}
	}()

	database, err := db.NewGorm(cfg)
	if err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}
	defer database.Close()

	credentials := security.NewCredentialStore(database.DB)
	verifier := security.NewVerifier(credentials)
	signer := security.NewSessionSigner(cfg.SessionSigningSecret)
	users := directory.New(database.DB, cfg.AppNamespace())
	documents := store.NewDocumentStore(database.DB)
	changes := store.NewChangeLog(database.DB)

	registry := session.NewRegistry()
	registry.Start()

	sessions := session.NewHandler(registry, verifier, signer, users, documents, changes)
	router := api.SetupRoutes(sessions)

	addr := fmt.Sprintf("%s:%s", cfg.ServerHost, cfg.ServerPort)
	server := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("listening on http://%s", addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		log.Printf("server forced to shut down: %v", err)
	}

	registry.Shutdown()

	log.Println("server shutdown complete")
}
