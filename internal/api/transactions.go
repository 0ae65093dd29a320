package api

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"rwa-portfolio/internal/domain"
	"rwa-portfolio/internal/storage"
)

// Listing limits.
const (
	defaultListLimit = 100
	maxListLimit     = 1000
)

// RecordTransactionRequest is the body of POST /api/transactions.
type RecordTransactionRequest struct {
	TxHash      string     `json:"txHash" validate:"required,max=128"`
	AssetID     string     `json:"assetId" validate:"required,max=64"`
	Type        string     `json:"type" validate:"required,ledger_type"`
	Amount      *float64   `json:"amount" validate:"required,gte=0"`
	UserAddress string     `json:"userAddress" validate:"omitempty,eth_addr"`
	Status      string     `json:"status" validate:"omitempty,ledger_status"`
	Timestamp   *time.Time `json:"timestamp"`
}

func (req RecordTransactionRequest) record() domain.TransactionRecord {
	rec := domain.TransactionRecord{
		TxHash:      req.TxHash,
		AssetID:     req.AssetID,
		Type:        domain.TransactionType(req.Type),
		Amount:      *req.Amount,
		UserAddress: strings.ToLower(req.UserAddress),
		Status:      domain.TransactionStatus(req.Status),
	}
	if req.Timestamp != nil {
		rec.Timestamp = req.Timestamp.UTC()
	}
	return rec
}

// handleListTransactions lists ledger records newest first, optionally
// filtered by ?user= and ?asset=.
func (s *Server) handleListTransactions(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := storage.LedgerFilter{
		UserAddress: q.Get("user"),
		AssetID:     q.Get("asset"),
		Limit:       defaultListLimit,
	}
	if filter.UserAddress != "" && !s.validAddress(filter.UserAddress) {
		s.respondError(w, http.StatusBadRequest, "invalid user address", filter.UserAddress)
		return
	}
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 || n > maxListLimit {
			s.respondError(w, http.StatusBadRequest, "invalid limit", "must be 1.."+strconv.Itoa(maxListLimit))
			return
		}
		filter.Limit = n
	}

	recs, err := s.deps.Ledger.List(r.Context(), filter)
	if err != nil {
		s.respondStoreError(w, r, err, "transactions")
		return
	}
	if recs == nil {
		recs = []*domain.TransactionRecord{}
	}
	s.respondJSON(w, http.StatusOK, recs)
}

// handleRecordTransaction records a transaction observed elsewhere, such as
// a payout. Posting a known tx hash returns the stored record with 200.
func (s *Server) handleRecordTransaction(w http.ResponseWriter, r *http.Request) {
	var req RecordTransactionRequest
	if !s.decode(w, r, &req) {
		return
	}

	rec, created, err := s.deps.Recorder.Record(r.Context(), req.record())
	if err != nil {
		s.respondStoreError(w, r, err, "transaction")
		return
	}
	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	s.respondJSON(w, status, rec)
}
