package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/phuetz/MySoulmate-sub000/internal/ledger"
	"github.com/phuetz/MySoulmate-sub000/internal/orchestrator"
	"github.com/phuetz/MySoulmate-sub000/internal/provider"
	"github.com/phuetz/MySoulmate-sub000/internal/store"
)

const maxRequestBody = 1 << 20

// generateRequest is the wire shape of POST /v1/generations.
type generateRequest struct {
	RequesterID string          `json:"requesterId"`
	Capability  string          `json:"capability"`
	Prompt      string          `json:"prompt"`
	Options     generateOptions `json:"options"`
}

type generateOptions struct {
	Style     string              `json:"style"`
	Quality   string              `json:"quality"`
	Width     int                 `json:"width"`
	Height    int                 `json:"height"`
	Provider  string              `json:"provider"`
	ImageURL  string              `json:"imageUrl"`
	Companion *provider.Companion `json:"companion"`
}

func (s *Server) handleGenerate(w http.ResponseWriter, r *http.Request) {
	var req generateRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, maxRequestBody)).Decode(&req); err != nil {
		WriteErrorBadRequest(w, "invalid JSON body")
		return
	}
	if req.RequesterID == "" {
		WriteErrorBadRequest(w, "requesterId is required")
		return
	}
	if req.Prompt == "" {
		WriteErrorBadRequest(w, "prompt is required")
		return
	}

	opts := provider.Options{
		Style:     req.Options.Style,
		Quality:   req.Options.Quality,
		Width:     req.Options.Width,
		Height:    req.Options.Height,
		Preferred: req.Options.Provider,
		ImageURL:  req.Options.ImageURL,
	}
	if req.Options.Companion != nil {
		opts.Companion = *req.Options.Companion
	}

	resp, err := s.generator.Generate(r.Context(), orchestrator.Request{
		RequesterID: req.RequesterID,
		Capability:  provider.Capability(req.Capability),
		Prompt:      req.Prompt,
		Options:     opts,
	})
	if err != nil {
		s.writeGenerateError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	_ = json.NewEncoder(w).Encode(resp)
}

// writeGenerateError maps orchestration errors onto the API surface. A
// denied reservation gets a specific message; an exhausted provider chain
// gets a generic one without upstream diagnostics.
func (s *Server) writeGenerateError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ledger.ErrInsufficientFunds):
		WriteErrorPaymentRequired(w, "insufficient funds for this generation")
	case errors.Is(err, ledger.ErrAccountNotFound):
		WriteErrorNotFound(w, "account not found")
	case errors.Is(err, orchestrator.ErrUnknownCapability),
		errors.Is(err, orchestrator.ErrMissingImage):
		WriteErrorBadRequest(w, err.Error())
	case errors.Is(err, orchestrator.ErrAllProvidersFailed):
		WriteErrorUnavailable(w, "generation is temporarily unavailable, please try again")
	default:
		s.logger.Error("Generation request failed", "error", err)
		WriteErrorInternal(w, "internal error")
	}
}

func (s *Server) handleGallery(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	requesterID := q.Get("requesterId")
	if requesterID == "" {
		WriteErrorBadRequest(w, "requesterId is required")
		return
	}

	filter := store.GalleryFilter{
		Capability: q.Get("capability"),
		Provider:   q.Get("provider"),
	}
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			WriteErrorBadRequest(w, "limit must be a non-negative integer")
			return
		}
		filter.Limit = n
	}
	if v := q.Get("offset"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			WriteErrorBadRequest(w, "offset must be a non-negative integer")
			return
		}
		filter.Offset = n
	}

	records, err := s.gallery.ListGallery(r.Context(), requesterID, filter)
	if err != nil {
		s.logger.Error("Gallery listing failed", "error", err)
		WriteErrorInternal(w, "internal error")
		return
	}
	if records == nil {
		records = []store.Record{}
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{"records": records})
}

func (s *Server) handleBalance(w http.ResponseWriter, r *http.Request) {
	requesterID := r.URL.Query().Get("requesterId")
	if requesterID == "" {
		WriteErrorBadRequest(w, "requesterId is required")
		return
	}

	balance, err := s.ledger.Balance(r.Context(), requesterID)
	if err != nil {
		if errors.Is(err, ledger.ErrAccountNotFound) {
			WriteErrorNotFound(w, "account not found")
			return
		}
		s.logger.Error("Balance lookup failed", "error", err)
		WriteErrorInternal(w, "internal error")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"requesterId": requesterID,
		"balance":     balance,
	})
}
