// Package orchestrator runs generation requests through the provider fallback
// chain with cost accounting around every attempt. Nothing is charged unless
// a provider succeeds, and no provider is called unless the requester can
// afford the quoted cost.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/phuetz/MySoulmate-sub000/internal/logger"
	"github.com/phuetz/MySoulmate-sub000/internal/monitoring"
	"github.com/phuetz/MySoulmate-sub000/internal/poller"
	"github.com/phuetz/MySoulmate-sub000/internal/pricing"
	"github.com/phuetz/MySoulmate-sub000/internal/prompt"
	"github.com/phuetz/MySoulmate-sub000/internal/provider"
	"github.com/phuetz/MySoulmate-sub000/internal/store"
	"github.com/phuetz/MySoulmate-sub000/internal/usage"
	"github.com/phuetz/MySoulmate-sub000/internal/utils"
)

var (
	// ErrAllProvidersFailed is returned when every adapter in the chain
	// failed or was unconfigured. The requester is not charged.
	ErrAllProvidersFailed = errors.New("all providers failed")

	// ErrUnknownCapability is returned for capabilities outside the
	// supported set.
	ErrUnknownCapability = errors.New("unknown capability")

	// ErrMissingImage is returned for vision requests without a source
	// image URL.
	ErrMissingImage = errors.New("vision request requires an image url")
)

// Ledger is the cost accounting gate. Reserve verifies affordability before
// any provider is called; Settle charges exactly once after success.
type Ledger interface {
	Reserve(ctx context.Context, accountID string, units int64) error
	Settle(ctx context.Context, accountID, requestID string, units int64) error
}

// Recorder persists completed generations.
type Recorder interface {
	Save(ctx context.Context, r *store.Record) error
}

// UsageJournal receives fire-and-forget usage entries.
type UsageJournal interface {
	Record(e usage.Entry)
}

// Request is one generation request as the orchestrator sees it.
type Request struct {
	RequesterID string
	Capability  provider.Capability
	Prompt      string
	Options     provider.Options
}

// Response carries the winning provider's output plus the cost breakdown.
type Response struct {
	Record *store.Record `json:"record"`
	Quote  pricing.Quote `json:"quote"`
}

type Orchestrator struct {
	registry *provider.Registry
	pricing  *pricing.Calculator
	enhancer *prompt.Enhancer
	ledger   Ledger
	recorder Recorder
	journal  UsageJournal
	metrics  *monitoring.Metrics
	logger   *slog.Logger
}

func New(
	registry *provider.Registry,
	calc *pricing.Calculator,
	enhancer *prompt.Enhancer,
	ledger Ledger,
	recorder Recorder,
	journal UsageJournal,
	metrics *monitoring.Metrics,
	log *slog.Logger,
) *Orchestrator {
	return &Orchestrator{
		registry: registry,
		pricing:  calc,
		enhancer: enhancer,
		ledger:   ledger,
		recorder: recorder,
		journal:  journal,
		metrics:  metrics,
		logger:   log,
	}
}

// Generate walks the capability's fallback chain until a provider succeeds.
// The flow is quote, reserve, attempt chain in order, settle, persist. A
// reserve failure stops the request before any provider is contacted.
func (o *Orchestrator) Generate(ctx context.Context, req Request) (*Response, error) {
	if !provider.ValidCapability(string(req.Capability)) {
		return nil, fmt.Errorf("%w: %q", ErrUnknownCapability, req.Capability)
	}
	if req.Capability == provider.CapabilityVision && req.Options.ImageURL == "" {
		return nil, ErrMissingImage
	}

	requestID := uuid.NewString()
	log := o.logger.With(
		"request_id", requestID,
		"requester_id", req.RequesterID,
		"capability", req.Capability,
	)

	quote := o.pricing.QuoteFor(req.Options)
	if err := o.ledger.Reserve(ctx, req.RequesterID, quote.TotalUnits); err != nil {
		log.Warn("Reservation refused", "units", quote.TotalUnits, "error", err)
		o.metrics.RecordInsufficientFunds()
		return nil, err
	}

	enhanced := req.Prompt
	if req.Capability == provider.CapabilityImage {
		enhanced = o.enhancer.Enhance(req.Prompt, req.Options)
	}

	chain := o.registry.Chain(req.Capability, req.Options.Preferred)
	if len(chain) == 0 {
		return nil, ErrAllProvidersFailed
	}

	log.Info("Dispatching generation",
		"units", quote.TotalUnits,
		"chain_length", len(chain),
		"prompt", logger.TruncatePrompt(enhanced, 200),
	)

	started := time.Now()
	attempts := 0
	var lastFailure *provider.Error
	for _, adapter := range chain {
		if !adapter.Configured() {
			log.Debug("Skipping unconfigured provider", "provider", adapter.ID())
			continue
		}
		if attempts > 0 {
			o.metrics.RecordFallback(string(req.Capability))
		}
		attempts++
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		attemptStart := time.Now()
		result, perr := adapter.Generate(ctx, enhanced, req.Options)
		if perr != nil {
			lastFailure = perr
			o.noteFailure(log, req.Capability, perr)
			continue
		}

		return o.settle(ctx, log, req, requestID, quote, enhanced, result,
			started, time.Since(attemptStart))
	}

	o.metrics.RecordGeneration(string(req.Capability), "none", "failure", time.Since(started))
	o.journal.Record(usage.Entry{
		RequestID:   requestID,
		RequesterID: req.RequesterID,
		Capability:  string(req.Capability),
		Units:       0,
		LatencyMs:   time.Since(started).Milliseconds(),
		Status:      "failure",
		CreatedAt:   utils.NowUTC(),
	})

	if lastFailure != nil {
		log.Error("Generation exhausted provider chain", "last_error", lastFailure)
		return nil, fmt.Errorf("%w: %v", ErrAllProvidersFailed, lastFailure)
	}
	return nil, ErrAllProvidersFailed
}

func (o *Orchestrator) noteFailure(log *slog.Logger, cap provider.Capability, perr *provider.Error) {
	log.Warn("Provider attempt failed",
		"provider", perr.ProviderID,
		"reason", perr.Reason,
		"error", perr.Err,
	)
	o.metrics.RecordProviderFailure(perr.ProviderID, string(perr.Reason))
	if errors.Is(perr, poller.ErrExhausted) {
		o.metrics.RecordPollerExhausted(perr.ProviderID)
	}
}

func (o *Orchestrator) settle(
	ctx context.Context,
	log *slog.Logger,
	req Request,
	requestID string,
	quote pricing.Quote,
	enhanced string,
	result *provider.Result,
	started time.Time,
	attemptLatency time.Duration,
) (*Response, error) {
	if err := o.ledger.Settle(ctx, req.RequesterID, requestID, quote.TotalUnits); err != nil {
		log.Error("Settlement failed after successful generation",
			"provider", result.ProviderID,
			"units", quote.TotalUnits,
			"error", err,
		)
		return nil, fmt.Errorf("settle generation cost: %w", err)
	}

	record := &store.Record{
		ID:             uuid.MustParse(requestID),
		RequesterID:    req.RequesterID,
		Capability:     string(req.Capability),
		Prompt:         req.Prompt,
		EnhancedPrompt: enhanced,
		ProviderID:     result.ProviderID,
		ResourceURL:    result.ResourceURL,
		ResultText:     result.Text,
		CostUnits:      quote.TotalUnits,
		LatencyMs:      attemptLatency.Milliseconds(),
		CreatedAt:      utils.NowUTC(),
	}
	if err := o.recorder.Save(ctx, record); err != nil {
		// The asset exists and the cost is settled, so the response still
		// goes out. The record loss is logged for reconciliation.
		log.Error("Failed to persist generation record", "error", err)
	}

	o.metrics.RecordGeneration(string(req.Capability), result.ProviderID, "success", time.Since(started))
	o.journal.Record(usage.Entry{
		RequestID:   requestID,
		RequesterID: req.RequesterID,
		Capability:  string(req.Capability),
		ProviderID:  result.ProviderID,
		Units:       quote.TotalUnits,
		LatencyMs:   attemptLatency.Milliseconds(),
		Status:      "success",
		CreatedAt:   utils.NowUTC(),
	})

	log.Info("Generation complete",
		"provider", result.ProviderID,
		"units", quote.TotalUnits,
		"latency_ms", attemptLatency.Milliseconds(),
	)

	return &Response{Record: record, Quote: quote}, nil
}
