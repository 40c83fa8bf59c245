package web

import (
	"context"
	"net/http"
	"time"

	"github.com/JonMunkholm/fleetimport/internal/core"
	"github.com/go-chi/chi/v5"
)

// healthTimeout bounds the fleet service probe in /health.
const healthTimeout = 3 * time.Second

type healthResponse struct {
	Status  string             `json:"status"`
	Fleet   string             `json:"fleet"`
	Imports core.LimiterStatus `json:"imports"`
}

// handleHealth reports service health. It answers 503 when the fleet
// service cannot be reached, since no import could succeed.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := healthResponse{
		Status:  "ok",
		Fleet:   "unchecked",
		Imports: s.service.LimiterStatus(),
	}
	status := http.StatusOK

	if s.fleet != nil {
		ctx, cancel := context.WithTimeout(r.Context(), healthTimeout)
		defer cancel()
		if err := s.fleet.Health(ctx); err != nil {
			resp.Status = "degraded"
			resp.Fleet = "unreachable: " + err.Error()
			status = http.StatusServiceUnavailable
		} else {
			resp.Fleet = "ok"
		}
	}

	writeJSON(w, r, status, resp)
}

// handleHistory lists recent imports, newest first.
// Query: kind (optional), limit (default 20).
func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	kind := r.URL.Query().Get("kind")
	if kind != "" {
		if _, ok := core.Get(kind); !ok {
			respondError(w, r, core.ErrUnknownKind)
			return
		}
	}

	runs, err := s.service.History(r.Context(), kind, parseIntParam(r, "limit", 20))
	if err != nil {
		respondError(w, r, err)
		return
	}
	if runs == nil {
		runs = []core.ImportSummary{}
	}
	writeJSON(w, r, http.StatusOK, runs)
}

// handleHistoryFailures returns the stored row failures of a past import.
func (s *Server) handleHistoryFailures(w http.ResponseWriter, r *http.Request) {
	failures, err := s.service.HistoryFailures(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, r, err)
		return
	}
	if failures == nil {
		failures = []core.ImportOutcome{}
	}
	writeJSON(w, r, http.StatusOK, failures)
}
