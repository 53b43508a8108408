package server

import (
	"encoding/json"
	"net/http"
)

type providerStatus struct {
	ID         string `json:"id"`
	Configured bool   `json:"configured"`
}

type healthResponse struct {
	Status    string                      `json:"status"`
	Database  bool                        `json:"database"`
	Providers map[string][]providerStatus `json:"providers"`
}

// handleHealth reports liveness, cached database health, and a
// per-capability snapshot of which providers are configured.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	dbHealthy := s.dbHealth == nil || s.dbHealth.IsHealthy()

	resp := healthResponse{
		Status:    "ok",
		Database:  dbHealthy,
		Providers: make(map[string][]providerStatus),
	}
	if !dbHealthy {
		resp.Status = "degraded"
	}

	for cap, ids := range s.registry.Providers() {
		statuses := make([]providerStatus, 0, len(ids))
		for _, id := range ids {
			configured := false
			if a := s.registry.Lookup(id); a != nil {
				configured = a.Configured()
			}
			statuses = append(statuses, providerStatus{ID: id, Configured: configured})
		}
		resp.Providers[string(cap)] = statuses
	}

	w.Header().Set("Content-Type", "application/json")
	if !dbHealthy {
		w.WriteHeader(http.StatusServiceUnavailable)
	}
	_ = json.NewEncoder(w).Encode(resp)
}
