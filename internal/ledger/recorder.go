// Package ledger writes transaction records idempotently on tx hash.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"rwa-portfolio/internal/domain"
	"rwa-portfolio/internal/idhash"
	"rwa-portfolio/internal/observability"
	"rwa-portfolio/internal/storage"
)

// Default retry configuration.
const (
	DefaultMaxRetries = 3
	DefaultRetryDelay = 200 * time.Millisecond
	DefaultMaxDelay   = 5 * time.Second
)

// Config configures store retries.
type Config struct {
	MaxRetries int
	RetryDelay time.Duration
	MaxDelay   time.Duration
}

// DefaultConfig returns the default retry configuration.
func DefaultConfig() Config {
	return Config{
		MaxRetries: DefaultMaxRetries,
		RetryDelay: DefaultRetryDelay,
		MaxDelay:   DefaultMaxDelay,
	}
}

// Recorder persists TransactionRecords. Writing the same tx hash twice
// returns the stored record instead of creating another.
type Recorder struct {
	store storage.LedgerStore
	cfg   Config
	log   zerolog.Logger
	now   func() time.Time
}

// New creates a Recorder.
func New(store storage.LedgerStore, cfg Config, log zerolog.Logger) *Recorder {
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = DefaultRetryDelay
	}
	if cfg.MaxDelay <= 0 {
		cfg.MaxDelay = DefaultMaxDelay
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	return &Recorder{
		store: store,
		cfg:   cfg,
		log:   log.With().Str("component", "ledger").Logger(),
		now:   time.Now,
	}
}

// Validate checks a record and fills defaults: ID, Completed status and
// the current time.
func (r *Recorder) Validate(rec *domain.TransactionRecord) error {
	rec.TxHash = strings.ToLower(strings.TrimSpace(rec.TxHash))
	if rec.TxHash == "" {
		return fmt.Errorf("%w: txHash is required", storage.ErrInvalidInput)
	}
	if rec.AssetID == "" {
		return fmt.Errorf("%w: assetId is required", storage.ErrInvalidInput)
	}
	if !domain.ValidTransactionType(rec.Type) {
		return fmt.Errorf("%w: unknown type %q", storage.ErrInvalidInput, rec.Type)
	}
	if rec.Status == "" {
		rec.Status = domain.TransactionStatusCompleted
	}
	if !domain.ValidTransactionStatus(rec.Status) {
		return fmt.Errorf("%w: unknown status %q", storage.ErrInvalidInput, rec.Status)
	}
	if math.IsNaN(rec.Amount) || math.IsInf(rec.Amount, 0) || rec.Amount < 0 {
		return fmt.Errorf("%w: amount must be a non-negative number", storage.ErrInvalidInput)
	}
	if rec.Timestamp.IsZero() {
		rec.Timestamp = r.now().UTC()
	}
	rec.ID = idhash.ComputeRecordID(rec.TxHash, rec.AssetID, string(rec.Type))
	return nil
}

// Record validates and inserts rec. created is false when a record with the
// same tx hash already existed; the stored record is returned either way.
// Transient store errors are retried with exponential backoff.
func (r *Recorder) Record(ctx context.Context, rec domain.TransactionRecord) (*domain.TransactionRecord, bool, error) {
	if err := r.Validate(&rec); err != nil {
		return nil, false, err
	}

	delay := r.cfg.RetryDelay
	var lastErr error

	for attempt := 0; attempt <= r.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, false, ctx.Err()
			case <-time.After(delay):
			}
			delay *= 2
			if delay > r.cfg.MaxDelay {
				delay = r.cfg.MaxDelay
			}
		}

		stored, created, err := r.insertOnce(ctx, &rec)
		if err == nil {
			if created {
				observability.RecordLedgerWrite("created")
			} else {
				observability.RecordLedgerWrite("duplicate")
				r.log.Debug().Str("tx", rec.TxHash).Msg("record already exists")
			}
			return stored, created, nil
		}
		if !retryable(ctx, err) {
			observability.RecordLedgerWrite("failed")
			return nil, false, err
		}

		lastErr = err
		r.log.Warn().Err(err).Str("tx", rec.TxHash).Int("attempt", attempt+1).Msg("ledger write failed")
	}

	observability.RecordLedgerWrite("failed")
	return nil, false, fmt.Errorf("max retries exceeded: %w", lastErr)
}

func (r *Recorder) insertOnce(ctx context.Context, rec *domain.TransactionRecord) (*domain.TransactionRecord, bool, error) {
	err := r.store.Insert(ctx, rec)
	if err == nil {
		out := *rec
		return &out, true, nil
	}
	if !errors.Is(err, storage.ErrDuplicateKey) {
		return nil, false, err
	}

	existing, err := r.store.GetByTxHash(ctx, rec.TxHash)
	if err != nil {
		return nil, false, fmt.Errorf("load existing record: %w", err)
	}
	return existing, false, nil
}

func retryable(ctx context.Context, err error) bool {
	if ctx.Err() != nil {
		return false
	}
	return !errors.Is(err, storage.ErrInvalidInput) &&
		!errors.Is(err, context.Canceled) &&
		!errors.Is(err, context.DeadlineExceeded)
}
