package api

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"rwa-portfolio/internal/domain"
	"rwa-portfolio/internal/portfolio"
)

// defaultHistoryWindow is used when a history request has no from.
const defaultHistoryWindow = 30 * 24 * time.Hour

// PortfolioResponse is the portfolio view returned to clients.
type PortfolioResponse struct {
	Owner          string                   `json:"owner"`
	CashUSD        float64                  `json:"cashUSD"`
	TotalAUM       float64                  `json:"totalAUM"`
	WeightedAPY    float64                  `json:"weightedAPY"`
	RiskScore      int                      `json:"riskScore"`
	RiskLevel      string                   `json:"riskLevel"`
	Allocation     []domain.AllocationSlice `json:"allocation"`
	Positions      []portfolio.PositionView `json:"positions"`
	MissingAssets  []string                 `json:"missingAssets,omitempty"`
	NextPayoutDate string                   `json:"nextPayoutDate,omitempty"`
	LastUpdated    *time.Time               `json:"lastUpdated,omitempty"`
}

func newPortfolioResponse(sum *portfolio.Summary) PortfolioResponse {
	m := sum.Metrics
	resp := PortfolioResponse{
		Owner:         sum.Portfolio.Owner,
		CashUSD:       sum.Portfolio.CashUSD,
		TotalAUM:      m.TotalAUM,
		WeightedAPY:   decimal.NewFromFloat(m.WeightedAPY).Round(2).InexactFloat64(),
		RiskScore:     m.RiskScore,
		RiskLevel:     m.RiskLevel,
		Allocation:    m.Allocation,
		Positions:     sum.Valuation.Positions(),
		MissingAssets: sum.Valuation.Missing,
	}
	if resp.Allocation == nil {
		resp.Allocation = []domain.AllocationSlice{}
	}
	if !sum.NextPayout.IsZero() {
		resp.NextPayoutDate = sum.NextPayout.Format(time.DateOnly)
	}
	if !sum.Portfolio.LastUpdated.IsZero() {
		t := sum.Portfolio.LastUpdated.UTC()
		resp.LastUpdated = &t
	}
	return resp
}

// owner reads and normalizes the {owner} path parameter. On failure the 400
// response has been written.
func (s *Server) owner(w http.ResponseWriter, r *http.Request) (string, bool) {
	owner := chi.URLParam(r, "owner")
	if !s.validAddress(owner) {
		s.respondError(w, http.StatusBadRequest, "invalid owner address", owner)
		return "", false
	}
	return strings.ToLower(owner), true
}

func (s *Server) handlePortfolio(w http.ResponseWriter, r *http.Request) {
	owner, ok := s.owner(w, r)
	if !ok {
		return
	}
	sum, err := s.deps.Portfolio.Summary(r.Context(), owner)
	if err != nil {
		s.respondStoreError(w, r, err, "portfolio")
		return
	}
	s.respondJSON(w, http.StatusOK, newPortfolioResponse(sum))
}

func (s *Server) handleReconcile(w http.ResponseWriter, r *http.Request) {
	owner, ok := s.owner(w, r)
	if !ok {
		return
	}
	report, err := s.deps.Refresher.Refresh(r.Context(), owner)
	if err != nil {
		s.respondStoreError(w, r, err, "portfolio")
		return
	}
	s.respondJSON(w, http.StatusOK, report)
}

// handlePortfolioHistory lists metrics snapshots in [from, to]. Both bounds
// are RFC 3339; to defaults to now and from to 30 days before to.
func (s *Server) handlePortfolioHistory(w http.ResponseWriter, r *http.Request) {
	owner, ok := s.owner(w, r)
	if !ok {
		return
	}

	q := r.URL.Query()
	to := s.now()
	if v := q.Get("to"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			s.respondError(w, http.StatusBadRequest, "invalid to", err.Error())
			return
		}
		to = t
	}
	from := to.Add(-defaultHistoryWindow)
	if v := q.Get("from"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			s.respondError(w, http.StatusBadRequest, "invalid from", err.Error())
			return
		}
		from = t
	}
	if from.After(to) {
		s.respondError(w, http.StatusBadRequest, "from is after to", nil)
		return
	}

	snaps, err := s.deps.Snapshots.GetByOwnerTimeRange(r.Context(), owner, from.UnixMilli(), to.UnixMilli())
	if err != nil {
		s.respondStoreError(w, r, err, "history")
		return
	}
	if snaps == nil {
		snaps = []*domain.MetricsSnapshot{}
	}
	s.respondJSON(w, http.StatusOK, snaps)
}
