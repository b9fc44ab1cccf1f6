package server

import (
	"encoding/json"
	"net/http"

	"lobby-scout/internal/api"
	"lobby-scout/internal/reconcile"

	"github.com/rs/zerolog"
)

// OverlayServer exposes the rendered roster state over local HTTP for an
// overlay UI to poll.
type OverlayServer struct {
	rec    *reconcile.Reconciler
	stats  *api.StatsClient
	logger zerolog.Logger
}

func NewOverlayServer(rec *reconcile.Reconciler, stats *api.StatsClient, logger zerolog.Logger) *OverlayServer {
	return &OverlayServer{rec: rec, stats: stats, logger: logger}
}

func (s *OverlayServer) Routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /overlay/state", s.handleState)
	mux.HandleFunc("GET /overlay/ratelimit", s.handleRateLimit)
	return mux
}

type stateResponse struct {
	Seats []reconcile.SeatView `json:"seats"`
}

func (s *OverlayServer) handleState(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, stateResponse{Seats: s.rec.Seats()})
}

func (s *OverlayServer) handleRateLimit(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, s.stats.GetRateLimitInfo())
}

func (s *OverlayServer) writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error().Err(err).Msg("failed to encode response")
	}
}
