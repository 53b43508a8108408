// Package store persists successful generations and serves the gallery.
// Records are append-only: created once after settlement, never mutated.
package store

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Record is a persisted successful generation.
type Record struct {
	ID             uuid.UUID `json:"id"`
	RequesterID    string    `json:"requesterId"`
	Capability     string    `json:"capability"`
	Prompt         string    `json:"prompt"`
	EnhancedPrompt string    `json:"enhancedPrompt"`
	ProviderID     string    `json:"providerId"`
	ResourceURL    string    `json:"resourceUrl,omitempty"`
	ResultText     string    `json:"resultText,omitempty"`
	CostUnits      int64     `json:"costUnits"`
	LatencyMs      int64     `json:"generationLatencyMs"`
	CreatedAt      time.Time `json:"createdAt"`
}

// GalleryFilter narrows gallery listings. Zero values mean "no filter";
// Limit defaults to 50 and is capped at 200.
type GalleryFilter struct {
	Capability string
	Provider   string
	Limit      int
	Offset     int
}

// Store is the pgx-backed record store.
type Store struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// New creates a Store on top of an existing connection pool.
func New(pool *pgxpool.Pool, logger *slog.Logger) *Store {
	return &Store{pool: pool, logger: logger}
}

// Save inserts a generation record.
func (s *Store) Save(ctx context.Context, r *Record) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO generation_records
		   (id, requester_id, capability, prompt, enhanced_prompt, provider_id,
		    resource_url, result_text, cost_units, latency_ms, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		r.ID, r.RequesterID, r.Capability, r.Prompt, r.EnhancedPrompt,
		r.ProviderID, r.ResourceURL, r.ResultText, r.CostUnits, r.LatencyMs,
		r.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("store: insert generation record: %w", err)
	}

	s.logger.Debug("Generation record saved",
		"record_id", r.ID,
		"requester_id", r.RequesterID,
		"provider", r.ProviderID,
	)
	return nil
}

// ListGallery returns the requester's records, newest first.
func (s *Store) ListGallery(ctx context.Context, requesterID string, f GalleryFilter) ([]Record, error) {
	limit := f.Limit
	if limit <= 0 {
		limit = 50
	}
	if limit > 200 {
		limit = 200
	}
	offset := f.Offset
	if offset < 0 {
		offset = 0
	}

	query := `SELECT id, requester_id, capability, prompt, enhanced_prompt,
	                 provider_id, resource_url, result_text, cost_units,
	                 latency_ms, created_at
	          FROM generation_records
	          WHERE requester_id = $1`
	args := []any{requesterID}

	if f.Capability != "" {
		args = append(args, f.Capability)
		query += fmt.Sprintf(" AND capability = $%d", len(args))
	}
	if f.Provider != "" {
		args = append(args, f.Provider)
		query += fmt.Sprintf(" AND provider_id = $%d", len(args))
	}

	args = append(args, limit)
	query += fmt.Sprintf(" ORDER BY created_at DESC LIMIT $%d", len(args))
	args = append(args, offset)
	query += fmt.Sprintf(" OFFSET $%d", len(args))

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("store: gallery query: %w", err)
	}
	defer rows.Close()

	records, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (Record, error) {
		var r Record
		err := row.Scan(&r.ID, &r.RequesterID, &r.Capability, &r.Prompt,
			&r.EnhancedPrompt, &r.ProviderID, &r.ResourceURL, &r.ResultText,
			&r.CostUnits, &r.LatencyMs, &r.CreatedAt)
		return r, err
	})
	if err != nil {
		return nil, fmt.Errorf("store: scan gallery rows: %w", err)
	}
	return records, nil
}
