package stream

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/phuetz/MySoulmate-sub000/internal/monitoring"
	"github.com/phuetz/MySoulmate-sub000/internal/provider"
)

// Source labels where a stream's tokens came from.
const (
	SourceLive      = "live"
	SourceSimulated = "simulated"
)

// Result summarizes a finished stream for cost settlement and persistence.
type Result struct {
	SessionID  string
	ProviderID string
	Source     string
	FullText   string
	TokenCount int
}

// Manager drives one streaming chat request end to end: live provider
// streaming when available, simulated word-by-word delivery otherwise, and
// a mid-stream switch from live to simulated when an upstream fails after
// tokens have already been sent.
type Manager struct {
	registry     *provider.Registry
	defaultReply string
	tokenDelay   time.Duration
	metrics      *monitoring.Metrics
	logger       *slog.Logger
}

func NewManager(registry *provider.Registry, defaultReply string, tokenDelay time.Duration, metrics *monitoring.Metrics, log *slog.Logger) *Manager {
	return &Manager{
		registry:     registry,
		defaultReply: defaultReply,
		tokenDelay:   tokenDelay,
		metrics:      metrics,
		logger:       log,
	}
}

// Stream runs a full session on conn. Exactly one terminal event reaches
// the client: complete on success (live or simulated), error only when the
// client connection itself is broken or the context is cancelled.
func (m *Manager) Stream(ctx context.Context, prompt, preferred string, conn Conn) (*Result, error) {
	session := NewSession(conn, m.logger)
	if err := session.Start(); err != nil {
		return nil, err
	}

	for _, streamer := range m.registry.Streamers(preferred) {
		if !streamer.Configured() {
			continue
		}

		emitted := session.TokenCount()
		full, err := streamer.StreamChat(ctx, prompt, session.EmitToken)
		if err == nil {
			if cerr := session.Complete("stop"); cerr != nil {
				return nil, cerr
			}
			m.metrics.RecordStreamSession(SourceLive, "complete")
			m.metrics.RecordStreamTokens(session.TokenCount())
			return &Result{
				SessionID:  session.ID(),
				ProviderID: streamer.ID(),
				Source:     SourceLive,
				FullText:   full,
				TokenCount: session.TokenCount(),
			}, nil
		}

		if errors.Is(err, ErrSessionClosed) || ctx.Err() != nil {
			// The client is gone or the request was cancelled. No terminal
			// event can or should be delivered.
			m.metrics.RecordStreamSession(SourceLive, "cancelled")
			return nil, err
		}

		m.logger.Warn("Live stream failed",
			"session_id", session.ID(),
			"provider", streamer.ID(),
			"tokens_sent", session.TokenCount()-emitted,
			"error", err,
		)

		if session.TokenCount() > emitted {
			// Tokens already reached the client; announce the switch and
			// restart delivery from the simulated source.
			if nerr := session.FallbackNotice("upstream interrupted, switching source"); nerr != nil {
				return nil, nerr
			}
			return m.simulate(ctx, session)
		}
		// Nothing was delivered from this provider yet, try the next one
		// silently.
	}

	return m.simulate(ctx, session)
}

func (m *Manager) simulate(ctx context.Context, session *Session) (*Result, error) {
	if err := Simulate(ctx, session, m.defaultReply, m.tokenDelay); err != nil {
		if ctx.Err() == nil && !errors.Is(err, ErrSessionClosed) {
			_ = session.Fail("stream interrupted")
		}
		m.metrics.RecordStreamSession(SourceSimulated, "error")
		return nil, err
	}
	if err := session.Complete("stop"); err != nil {
		return nil, err
	}
	m.metrics.RecordStreamSession(SourceSimulated, "complete")
	m.metrics.RecordStreamTokens(session.TokenCount())
	return &Result{
		SessionID:  session.ID(),
		Source:     SourceSimulated,
		FullText:   session.FullResponse(),
		TokenCount: session.TokenCount(),
	}, nil
}
