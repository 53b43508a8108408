package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/phuetz/MySoulmate-sub000/internal/ledger"
	"github.com/phuetz/MySoulmate-sub000/internal/provider"
	"github.com/phuetz/MySoulmate-sub000/internal/store"
	"github.com/phuetz/MySoulmate-sub000/internal/usage"
	"github.com/phuetz/MySoulmate-sub000/internal/utils"
)

type chatStreamRequest struct {
	RequesterID string `json:"requesterId"`
	Message     string `json:"message"`
	Provider    string `json:"provider"`
}

// handleChatStream runs one streaming chat session. The cost is reserved
// before the stream opens; once the session completes, the same amount is
// settled and the exchange is persisted. A failed reservation is reported
// as a plain JSON error since no event stream has started yet.
func (s *Server) handleChatStream(w http.ResponseWriter, r *http.Request) {
	var req chatStreamRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, maxRequestBody)).Decode(&req); err != nil {
		WriteErrorBadRequest(w, "invalid JSON body")
		return
	}
	if req.RequesterID == "" {
		WriteErrorBadRequest(w, "requesterId is required")
		return
	}
	if req.Message == "" {
		WriteErrorBadRequest(w, "message is required")
		return
	}

	quote := s.pricing.QuoteFor(provider.Options{Preferred: req.Provider})
	if err := s.ledger.Reserve(r.Context(), req.RequesterID, quote.TotalUnits); err != nil {
		switch {
		case errors.Is(err, ledger.ErrInsufficientFunds):
			s.metrics.RecordInsufficientFunds()
			WriteErrorPaymentRequired(w, "insufficient funds for this conversation")
		case errors.Is(err, ledger.ErrAccountNotFound):
			WriteErrorNotFound(w, "account not found")
		default:
			s.logger.Error("Stream reservation failed", "error", err)
			WriteErrorInternal(w, "internal error")
		}
		return
	}

	conn, err := newSSEConn(w)
	if err != nil {
		WriteErrorInternal(w, "streaming not supported")
		return
	}

	started := time.Now()
	result, err := s.streamer.Stream(r.Context(), req.Message, req.Provider, conn)
	if err != nil {
		// The session already delivered its terminal event (or the client
		// is gone). Nothing is charged for an unfinished stream.
		s.logger.Warn("Chat stream ended without completion",
			"requester_id", req.RequesterID,
			"error", err,
		)
		return
	}

	// Settlement and persistence survive a client that disconnects right
	// after the terminal event.
	ctx := context.WithoutCancel(r.Context())

	if err := s.ledger.Settle(ctx, req.RequesterID, result.SessionID, quote.TotalUnits); err != nil {
		s.logger.Error("Stream settlement failed",
			"requester_id", req.RequesterID,
			"session_id", result.SessionID,
			"units", quote.TotalUnits,
			"error", err,
		)
	}

	record := &store.Record{
		ID:          uuid.MustParse(result.SessionID),
		RequesterID: req.RequesterID,
		Capability:  string(provider.CapabilityText),
		Prompt:      req.Message,
		ProviderID:  result.ProviderID,
		ResultText:  result.FullText,
		CostUnits:   quote.TotalUnits,
		LatencyMs:   time.Since(started).Milliseconds(),
		CreatedAt:   utils.NowUTC(),
	}
	if record.ProviderID == "" {
		record.ProviderID = result.Source
	}
	if err := s.recorder.Save(ctx, record); err != nil {
		s.logger.Error("Failed to persist chat record", "error", err)
	}

	s.journal.Record(usage.Entry{
		RequestID:   result.SessionID,
		RequesterID: req.RequesterID,
		Capability:  string(provider.CapabilityText),
		ProviderID:  record.ProviderID,
		Units:       quote.TotalUnits,
		LatencyMs:   record.LatencyMs,
		Status:      "success",
		CreatedAt:   utils.NowUTC(),
	})
}
