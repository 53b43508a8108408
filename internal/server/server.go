// Package server exposes the generation and streaming API over HTTP.
package server

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/phuetz/MySoulmate-sub000/internal/monitoring"
	"github.com/phuetz/MySoulmate-sub000/internal/orchestrator"
	"github.com/phuetz/MySoulmate-sub000/internal/pricing"
	"github.com/phuetz/MySoulmate-sub000/internal/provider"
	"github.com/phuetz/MySoulmate-sub000/internal/store"
	"github.com/phuetz/MySoulmate-sub000/internal/stream"
	"github.com/phuetz/MySoulmate-sub000/internal/usage"
)

// Generator runs the generation fallback flow.
type Generator interface {
	Generate(ctx context.Context, req orchestrator.Request) (*orchestrator.Response, error)
}

// Streamer runs one streaming chat session on a client connection.
type Streamer interface {
	Stream(ctx context.Context, prompt, preferred string, conn stream.Conn) (*stream.Result, error)
}

// Ledger is the account-facing slice of the cost gate.
type Ledger interface {
	Balance(ctx context.Context, accountID string) (int64, error)
	Reserve(ctx context.Context, accountID string, units int64) error
	Settle(ctx context.Context, accountID, requestID string, units int64) error
}

// Gallery lists persisted generation records.
type Gallery interface {
	ListGallery(ctx context.Context, requesterID string, f store.GalleryFilter) ([]store.Record, error)
}

// Recorder persists completed chat streams.
type Recorder interface {
	Save(ctx context.Context, r *store.Record) error
}

// UsageJournal receives fire-and-forget usage entries.
type UsageJournal interface {
	Record(e usage.Entry)
}

// HealthChecker reports cached database health. *health.Monitor satisfies
// it; nil means no database monitoring.
type HealthChecker interface {
	IsHealthy() bool
}

type Server struct {
	generator Generator
	streamer  Streamer
	ledger    Ledger
	gallery   Gallery
	recorder  Recorder
	journal   UsageJournal
	pricing   *pricing.Calculator
	registry  *provider.Registry
	dbHealth  HealthChecker
	metrics   *monitoring.Metrics
	logger    *slog.Logger
}

func New(
	generator Generator,
	streamer Streamer,
	ledger Ledger,
	gallery Gallery,
	recorder Recorder,
	journal UsageJournal,
	calc *pricing.Calculator,
	registry *provider.Registry,
	dbHealth HealthChecker,
	metrics *monitoring.Metrics,
	log *slog.Logger,
) *Server {
	return &Server{
		generator: generator,
		streamer:  streamer,
		ledger:    ledger,
		gallery:   gallery,
		recorder:  recorder,
		journal:   journal,
		pricing:   calc,
		registry:  registry,
		dbHealth:  dbHealth,
		metrics:   metrics,
		logger:    log,
	}
}

// Routes registers all handlers on mux.
func (s *Server) Routes(mux *http.ServeMux) {
	mux.HandleFunc("POST /v1/generations", s.handleGenerate)
	mux.HandleFunc("POST /v1/chat/stream", s.handleChatStream)
	mux.HandleFunc("GET /v1/gallery", s.handleGallery)
	mux.HandleFunc("GET /v1/balance", s.handleBalance)
	mux.HandleFunc("GET /health", s.handleHealth)
}
