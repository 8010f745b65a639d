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

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	iropshttp "github.com/skywise-ai/irops/internal/adapter/http"
	"github.com/skywise-ai/irops/internal/adapter/litellm"
	"github.com/skywise-ai/irops/internal/adapter/llmagent"
	iropsnats "github.com/skywise-ai/irops/internal/adapter/nats"
	"github.com/skywise-ai/irops/internal/adapter/natskv"
	"github.com/skywise-ai/irops/internal/adapter/opsclient"
	iropsotel "github.com/skywise-ai/irops/internal/adapter/otel"
	"github.com/skywise-ai/irops/internal/adapter/postgres"
	"github.com/skywise-ai/irops/internal/adapter/ristretto"
	"github.com/skywise-ai/irops/internal/adapter/tiered"
	"github.com/skywise-ai/irops/internal/adapter/ws"
	"github.com/skywise-ai/irops/internal/config"
	"github.com/skywise-ai/irops/internal/domain/assessment"
	"github.com/skywise-ai/irops/internal/logger"
	"github.com/skywise-ai/irops/internal/port/agentbackend"
	"github.com/skywise-ai/irops/internal/resilience"
	"github.com/skywise-ai/irops/internal/secrets"
	"github.com/skywise-ai/irops/internal/service"
)

func main() {
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo})))

	if err := run(); err != nil {
		slog.Error("fatal", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}

	log, logCloser := logger.New(cfg.Logging)
	slog.SetDefault(log)
	defer logCloser.Close()

	slog.Info("config loaded",
		"port", cfg.Server.Port,
		"log_level", cfg.Logging.Level,
		"pg_max_conns", cfg.Postgres.MaxConns,
	)

	ctx := context.Background()

	// --- Telemetry ---
	otelShutdown, err := iropsotel.Init(ctx, cfg.Logging.Service)
	if err != nil {
		return fmt.Errorf("otel: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = otelShutdown(shutdownCtx)
	}()

	metrics, err := iropsotel.NewMetrics()
	if err != nil {
		return fmt.Errorf("metrics: %w", err)
	}

	// --- Secrets ---
	vault, err := secrets.NewVault(secrets.EnvLoader(
		"LITELLM_MASTER_KEY",
		"IROPS_OPSDATA_API_KEY",
	))
	if err != nil {
		return fmt.Errorf("secrets: %w", err)
	}
	if k := vault.Get("LITELLM_MASTER_KEY"); k != "" {
		cfg.LiteLLM.MasterKey = k
	}
	if k := vault.Get("IROPS_OPSDATA_API_KEY"); k != "" {
		cfg.OpsData.APIKey = k
	}

	// --- Infrastructure ---

	// PostgreSQL
	pool, err := postgres.NewPool(ctx, cfg.Postgres)
	if err != nil {
		return fmt.Errorf("postgres: %w", err)
	}
	defer pool.Close()
	slog.Info("postgres connected")

	if err := postgres.RunMigrations(ctx, cfg.Postgres.DSN); err != nil {
		return fmt.Errorf("migrations: %w", err)
	}
	slog.Info("migrations applied")

	// NATS JetStream
	queue, err := iropsnats.Connect(ctx, cfg.NATS.URL)
	if err != nil {
		return fmt.Errorf("nats: %w", err)
	}
	defer func() { _ = queue.Close() }()

	// Tiered ops-data cache: in-process ristretto in front of a NATS KV bucket.
	l1, err := ristretto.New(cfg.Cache.L1MaxSizeMB << 20)
	if err != nil {
		return fmt.Errorf("ristretto: %w", err)
	}
	defer l1.Close()

	kv, err := queue.KeyValue(ctx, cfg.Cache.L2Bucket)
	if err != nil {
		return fmt.Errorf("nats kv: %w", err)
	}
	opsCache := tiered.New(l1, natskv.New(kv), time.Minute)

	// --- Outbound clients ---
	llmClient := litellm.NewClient(cfg.LiteLLM.URL, cfg.LiteLLM.MasterKey)
	llmClient.SetBreaker(resilience.NewBreaker(cfg.Breaker.MaxFailures, cfg.Breaker.Timeout))

	opsSource := opsclient.New(cfg.OpsData.URL, cfg.OpsData.APIKey, cfg.OpsData.Timeout, opsCache, cfg.Cache.L2TTL)
	opsSource.SetBreaker(resilience.NewBreaker(cfg.Breaker.MaxFailures, cfg.Breaker.Timeout))

	// --- Agent backends ---
	llmagent.RegisterProvider(llmClient, opsSource)

	chains := make(map[assessment.AgentName][]agentbackend.Backend, len(assessment.AllAgents()))
	for _, agent := range assessment.AllAgents() {
		for _, model := range cfg.Orchestrator.ChainFor(string(agent)) {
			backend, err := agentbackend.New("litellm", map[string]string{"model": model})
			if err != nil {
				return fmt.Errorf("backend %s for %s: %w", model, agent, err)
			}
			chains[agent] = append(chains[agent], backend)
		}
	}

	// --- Services ---
	hub := ws.NewHub()
	store := postgres.NewStore(pool)
	events := postgres.NewEventStore(pool)

	invoker := service.NewInvoker(
		chains,
		cfg.Orchestrator.AgentTimeout,
		cfg.Orchestrator.MaxAttemptsPerHop,
		cfg.Orchestrator.MaxConcurrent,
		metrics,
		events,
	)
	orchestrator := service.NewOrchestrator(
		store,
		events,
		queue,
		hub,
		service.NewPhaseRunner(invoker, metrics),
		service.NewConflictDetector(metrics),
		service.NewRevisionCoordinator(),
		service.NewEvolutionTracker(cfg.Scoring.UnchangedTolerance),
		service.NewArbitrator(cfg.Scoring, metrics),
		cfg.Orchestrator,
	)

	// --- HTTP ---
	handlers := &iropshttp.Handlers{
		Assessments: orchestrator,
		LiteLLM:     llmClient,
		Hub:         hub,
		DB:          pool,
	}

	r := chi.NewRouter()
	r.Use(iropshttp.CORS(cfg.Server.CORSOrigin))
	r.Use(iropshttp.Logger)
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)
	iropshttp.MountRoutes(r, handlers)

	addr := ":" + cfg.Server.Port
	srv := &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      10 * time.Minute, // long-poll waits block until the run finishes
		IdleTimeout:       120 * time.Second,
	}

	// Graceful shutdown
	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGTERM)

	go func() {
		slog.Info("starting server", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server failed", "error", err)
		}
	}()

	<-done
	slog.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	return srv.Shutdown(shutdownCtx)
}
