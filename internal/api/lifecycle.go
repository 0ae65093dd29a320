package api

import (
	"encoding/json"
	"net/http"

	"rwa-portfolio/internal/lifecycle"
)

// InvestRequest is the body of POST /api/invest. Amount is in currency units.
// Range checks on amounts are left to the lifecycle, which reports them as a
// Failed transition in the stream.
type InvestRequest struct {
	AssetID string   `json:"assetId" validate:"required,max=64"`
	Amount  *float64 `json:"amount" validate:"required"`
}

// RedeemRequest is the body of POST /api/redeem.
type RedeemRequest struct {
	AssetID string   `json:"assetId" validate:"required,max=64"`
	Shares  *float64 `json:"shares" validate:"required"`
}

func (s *Server) handleInvest(w http.ResponseWriter, r *http.Request) {
	var req InvestRequest
	if !s.decode(w, r, &req) {
		return
	}
	s.stream(w, r, s.deps.Lifecycle.StartInvest(r.Context(), req.AssetID, *req.Amount))
}

func (s *Server) handleRedeem(w http.ResponseWriter, r *http.Request) {
	var req RedeemRequest
	if !s.decode(w, r, &req) {
		return
	}
	s.stream(w, r, s.deps.Lifecycle.StartRedeem(r.Context(), req.AssetID, *req.Shares))
}

// stream writes each transition of run as one NDJSON line until the
// terminal one. The run is bound to the request context, so a client that
// disconnects cancels it.
func (s *Server) stream(w http.ResponseWriter, r *http.Request, run *lifecycle.Run) {
	w.Header().Set("Content-Type", "application/x-ndjson")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("X-Intent-Id", run.ID())
	w.WriteHeader(http.StatusOK)

	rc := http.NewResponseController(w)
	enc := json.NewEncoder(w)
	for t := range run.Transitions() {
		if err := enc.Encode(t); err != nil {
			s.log.Debug().
				Err(err).
				Str("intent_id", run.ID()).
				Str("request_id", requestID(r)).
				Msg("client went away, cancelling run")
			run.Cancel()
			return
		}
		_ = rc.Flush()
	}
}
