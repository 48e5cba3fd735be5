// SentinelForge backend: an autonomous security response pipeline for
// Kubernetes. Detector events arrive on a webhook, are normalized into
// threat records, anomaly-scored, mapped to remediation actions, executed
// against the cluster, and streamed to dashboards over WebSocket.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"
	"golang.org/x/time/rate"

	"github.com/sentinelforge/sentinelforge-backend/internal/api/rest"
	wshub "github.com/sentinelforge/sentinelforge-backend/internal/api/websocket"
	"github.com/sentinelforge/sentinelforge-backend/internal/config"
	"github.com/sentinelforge/sentinelforge-backend/internal/k8s"
	"github.com/sentinelforge/sentinelforge-backend/internal/pkg/logger"
	"github.com/sentinelforge/sentinelforge-backend/internal/repository"
	"github.com/sentinelforge/sentinelforge-backend/internal/service"
	"github.com/sentinelforge/sentinelforge-backend/migrations"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	log := logger.New(cfg.LogLevel, cfg.JSONLogs)
	log.Info("starting sentinelforge backend", "port", cfg.Port)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Persistence: durable Postgres with in-memory fallback, or memory only.
	store := buildStore(cfg, log)
	defer store.Close()

	// Broadcast hub.
	hub := wshub.NewHub(ctx)
	go hub.Run()

	// Orchestrator client. A missing kubeconfig is not fatal: remediation
	// runs in simulated mode.
	var orchestrator service.Orchestrator
	k8sClient, err := k8s.NewClient(cfg.KubeconfigPath, time.Duration(cfg.OrchestratorTimeout)*time.Second)
	if err != nil {
		log.Warn("kubernetes client unavailable", "error", err)
	} else {
		if cfg.K8sRateLimitPerSec > 0 {
			k8sClient.SetLimiter(rate.NewLimiter(rate.Limit(cfg.K8sRateLimitPerSec), cfg.K8sRateLimitBurst))
		}
		orchestrator = k8sClient
	}

	// Pipeline services.
	processor := service.NewFalcoProcessor(store, hub, log)
	detector := service.NewAnomalyDetector(log)
	policy := buildPolicy(cfg, log)
	remediation := service.NewRemediationService(ctx, orchestrator, store, log)
	explain := service.NewExplainService(ctx, service.ExplainConfig{
		Provider:        cfg.LLMProvider,
		OpenAIAPIKey:    cfg.OpenAIAPIKey,
		AnthropicAPIKey: cfg.AnthropicAPIKey,
		OllamaURL:       cfg.OllamaURL,
	}, log)

	wsHandler := wshub.NewHandler(ctx, hub, log)
	handler := rest.NewHandler(store, processor, detector, policy, remediation, explain, wsHandler, log)

	router := mux.NewRouter()
	handler.SetupRoutes(router)
	router.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)

	corsHandler := cors.New(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
		AllowCredentials: false,
	}).Handler(router)

	// No global read/write timeouts: /api/v1/stream holds connections open
	// indefinitely. The header timeout still bounds slow-loris clients.
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           corsHandler,
		ReadHeaderTimeout: time.Duration(cfg.RequestTimeoutSec) * time.Second,
	}

	go func() {
		log.Info("http server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("http server failed", "error", err)
			cancel()
		}
	}()

	// Graceful shutdown on SIGINT/SIGTERM.
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	select {
	case s := <-sig:
		log.Info("shutdown signal received", "signal", s.String())
	case <-ctx.Done():
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), time.Duration(cfg.ShutdownTimeoutSec)*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("http shutdown failed", "error", err)
	}
	hub.Stop()
	cancel()
	log.Info("shutdown complete")
}

// buildStore selects the persistence backing. With DATABASE_URL set the
// durable store is wrapped in the in-memory fallback so a dead database
// degrades rather than fails; without it, memory only.
func buildStore(cfg *config.Config, log *slog.Logger) repository.Store {
	if cfg.DatabaseURL == "" {
		log.Info("no DATABASE_URL configured, using in-memory store")
		return repository.NewMemoryStore()
	}

	pg, err := repository.NewPostgresStore(cfg.DatabaseURL)
	if err != nil {
		log.Warn("database unreachable, using in-memory store", "error", err)
		return repository.NewMemoryStore()
	}

	schema, err := migrations.FS.ReadFile("001_initial_schema.sql")
	if err != nil {
		log.Error("failed to read embedded migration", "error", err)
	} else if err := pg.RunMigrations(string(schema)); err != nil {
		log.Warn("migration failed", "error", err)
	}

	log.Info("connected to database")
	return repository.NewFallbackStore(pg, log)
}

// buildPolicy loads the learned policy when enabled, falling back to the
// rule table on any load failure.
func buildPolicy(cfg *config.Config, log *slog.Logger) service.Policy {
	if cfg.UseRLAgent && cfg.RLModelPath != "" {
		learned, err := service.NewLearnedPolicy(cfg.RLModelPath, log)
		if err != nil {
			log.Warn("failed to load RL policy, using rule policy", "error", err)
		} else {
			log.Info("loaded RL decision policy", "path", cfg.RLModelPath)
			return learned
		}
	}
	return service.NewRulePolicy()
}
