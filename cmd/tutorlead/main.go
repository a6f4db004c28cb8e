package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/nikmehra/tutorlead/internal/chat"
	"github.com/nikmehra/tutorlead/internal/config"
	"github.com/nikmehra/tutorlead/internal/httpapi"
	"github.com/nikmehra/tutorlead/internal/leadstore"
	"github.com/nikmehra/tutorlead/internal/observability"
	"github.com/nikmehra/tutorlead/internal/planner"
	"github.com/nikmehra/tutorlead/internal/schema"
	"github.com/nikmehra/tutorlead/internal/session"
)

func main() {
	// .env is optional; real deployments set environment variables directly.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}

	metrics := observability.NewMetrics(cfg.MetricsNamespace)

	fields := schema.Default()
	if cfg.LeadSchemaPath != "" {
		fields, err = schema.Load(cfg.LeadSchemaPath)
		if err != nil {
			log.Fatalf("lead schema load failed: %v", err)
		}
		log.Printf("lead schema: %d fields from %s", len(fields), cfg.LeadSchemaPath)
	}

	ctx := context.Background()
	sink, err := leadstore.NewSink(ctx, cfg.SheetWebhookURL, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("lead store init failed: %v", err)
	}
	defer sink.Close()

	pl, err := planner.New(planner.Config{
		Mode:    cfg.PlannerMode,
		HTTPURL: cfg.PlannerHTTPURL,
		APIKey:  cfg.PlannerAPIKey,
		Model:   cfg.PlannerModel,
	})
	if err != nil {
		log.Fatalf("planner init failed: %v", err)
	}

	sessions := session.NewStore()
	orchestrator := chat.NewOrchestrator(
		sessions,
		pl,
		sink,
		metrics,
		fields,
		cfg.PlannerTimeout,
		cfg.PersistTimeout,
	)

	api := httpapi.New(cfg, orchestrator, metrics)
	httpServer := &http.Server{
		Addr:    cfg.BindAddr,
		Handler: api.Router(),
	}

	go func() {
		log.Printf("server listening on %s", cfg.BindAddr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("listen error: %v", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	log.Printf("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Printf("graceful shutdown failed: %v", err)
		_ = httpServer.Close()
	}

	log.Printf("shutdown complete")
}
