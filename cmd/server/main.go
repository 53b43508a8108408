package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/phuetz/MySoulmate-sub000/internal/assets"
	"github.com/phuetz/MySoulmate-sub000/internal/config"
	"github.com/phuetz/MySoulmate-sub000/internal/health"
	"github.com/phuetz/MySoulmate-sub000/internal/ledger"
	"github.com/phuetz/MySoulmate-sub000/internal/logger"
	"github.com/phuetz/MySoulmate-sub000/internal/monitoring"
	"github.com/phuetz/MySoulmate-sub000/internal/orchestrator"
	"github.com/phuetz/MySoulmate-sub000/internal/pricing"
	"github.com/phuetz/MySoulmate-sub000/internal/prompt"
	"github.com/phuetz/MySoulmate-sub000/internal/provider"
	anthropicprovider "github.com/phuetz/MySoulmate-sub000/internal/provider/anthropic"
	geminiprovider "github.com/phuetz/MySoulmate-sub000/internal/provider/gemini"
	openaiprovider "github.com/phuetz/MySoulmate-sub000/internal/provider/openai"
	"github.com/phuetz/MySoulmate-sub000/internal/provider/pixelforge"
	"github.com/phuetz/MySoulmate-sub000/internal/security"
	"github.com/phuetz/MySoulmate-sub000/internal/server"
	"github.com/phuetz/MySoulmate-sub000/internal/store"
	"github.com/phuetz/MySoulmate-sub000/internal/stream"
	"github.com/phuetz/MySoulmate-sub000/internal/usage"
)

func main() {
	configPath := flag.String("config", "config.yaml", "Path to configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("Failed to load config", "error", err)
		os.Exit(1)
	}

	log := logger.New(cfg.Server.LoggingLevel)

	log.Info("Starting soulmate-gen",
		"logging_level", cfg.Server.LoggingLevel,
		"port", cfg.Server.Port,
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pool, err := newPool(ctx, cfg.Database)
	if err != nil {
		log.Error("Failed to connect to database",
			"url", security.MaskDatabaseURL(cfg.Database.URL), "error", err)
		os.Exit(1)
	}
	defer pool.Close()
	log.Info("Database connected", "url", security.MaskDatabaseURL(cfg.Database.URL))

	dbMonitor := health.NewMonitor(pool, 30*time.Second, 3, log)
	go dbMonitor.Run(ctx)

	gate, err := ledger.New(pool, log)
	if err != nil {
		log.Error("Failed to initialize ledger gate", "error", err)
		os.Exit(1)
	}
	recordStore := store.New(pool, log)
	journal := usage.NewJournal(pool, log)
	defer journal.Close()

	fileStore, err := assets.NewFileStore(cfg.Assets.SavePath, cfg.Assets.PublicBaseURL, log)
	if err != nil {
		log.Error("Failed to initialize asset store", "error", err)
		os.Exit(1)
	}

	registry := buildRegistry(cfg, fileStore, log)
	for cap, ids := range registry.Providers() {
		log.Info("Provider chain configured", "capability", cap, "providers", ids)
	}

	metrics := monitoring.New(cfg.Monitoring.PrometheusEnabled)
	calc := pricing.New(cfg.Pricing.BaseUnits, cfg.Pricing.ProviderMultipliers)

	orch := orchestrator.New(
		registry,
		calc,
		prompt.New(),
		gate,
		recordStore,
		journal,
		metrics,
		log,
	)

	streamManager := stream.NewManager(
		registry,
		cfg.Streaming.DefaultReply,
		cfg.Streaming.TokenDelay,
		metrics,
		log,
	)

	srv := server.New(
		orch,
		streamManager,
		gate,
		recordStore,
		recordStore,
		journal,
		calc,
		registry,
		dbMonitor,
		metrics,
		log,
	)

	mux := http.NewServeMux()
	srv.Routes(mux)
	mux.Handle("GET /assets/", http.StripPrefix("/assets/",
		http.FileServer(http.Dir(cfg.Assets.SavePath))))

	if cfg.Monitoring.PrometheusEnabled {
		mux.Handle("/metrics", promhttp.Handler())
		log.Info("Prometheus metrics enabled", "path", "/metrics")
	}

	httpServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info("Server starting", "port", cfg.Server.Port)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("Server failed", "error", err)
			os.Exit(1)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	log.Info("Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error("Shutdown error", "error", err)
	}
	log.Info("Server stopped")
}

func newPool(ctx context.Context, cfg config.DatabaseConfig) (*pgxpool.Pool, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		poolCfg.MinConns = cfg.MinConns
	}

	connectCtx, cancel := context.WithTimeout(ctx, cfg.ConnectTimeout)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(connectCtx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("create connection pool: %w", err)
	}
	if err := pool.Ping(connectCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return pool, nil
}

// buildRegistry instantiates every adapter once and wires the fallback
// chains from configuration. Unknown provider names were already rejected
// by config validation.
func buildRegistry(cfg *config.Config, sink geminiprovider.AssetSink, log *slog.Logger) *provider.Registry {
	pf := pixelforge.New(cfg.Providers.PixelForge, log)
	gm := geminiprovider.New(cfg.Providers.Gemini, sink, log)
	oa := openaiprovider.New(cfg.Providers.OpenAI, log)
	an := anthropicprovider.New(cfg.Providers.Anthropic, log)

	adapters := map[string]provider.Adapter{
		pixelforge.ProviderID:     pf,
		geminiprovider.ProviderID: gm,
		openaiprovider.ProviderID: oa,
	}
	streamers := map[string]provider.ChatStreamer{
		anthropicprovider.ProviderID: an,
		openaiprovider.ProviderID:    oa,
	}

	registry := provider.NewRegistry()
	for _, id := range cfg.Chains.Image {
		if a, ok := adapters[id]; ok {
			registry.Register(provider.CapabilityImage, a)
		}
	}
	for _, id := range cfg.Chains.Vision {
		if a, ok := adapters[id]; ok {
			registry.Register(provider.CapabilityVision, a)
		}
	}
	for _, id := range cfg.Chains.Text {
		if s, ok := streamers[id]; ok {
			registry.RegisterStreamer(s)
		}
	}
	return registry
}
