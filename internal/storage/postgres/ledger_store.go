package postgres

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"rwa-portfolio/internal/domain"
	"rwa-portfolio/internal/storage"
)

// LedgerStore implements storage.LedgerStore using PostgreSQL.
type LedgerStore struct {
	pool *Pool
}

// NewLedgerStore creates a new LedgerStore.
func NewLedgerStore(pool *Pool) *LedgerStore {
	return &LedgerStore{pool: pool}
}

// Compile-time interface check.
var _ storage.LedgerStore = (*LedgerStore)(nil)

const ledgerColumns = `id, tx_hash, asset_id, tx_type, amount, user_address, status, created_at`

// Insert adds a new record. Hashes are stored lowercase. Returns
// ErrDuplicateKey if tx_hash exists.
func (s *LedgerStore) Insert(ctx context.Context, r *domain.TransactionRecord) (err error) {
	if r == nil || r.TxHash == "" || r.ID == "" {
		return storage.ErrInvalidInput
	}
	defer func(start time.Time) { observe("ledger_insert", start, err) }(time.Now())

	query := `
		INSERT INTO transaction_records (` + ledgerColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	_, err = s.pool.Exec(ctx, query,
		r.ID, strings.ToLower(r.TxHash), r.AssetID, string(r.Type), r.Amount, r.UserAddress, string(r.Status), r.Timestamp,
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		if isCheckViolation(err) {
			return fmt.Errorf("%w: %v", storage.ErrInvalidInput, err)
		}
		return fmt.Errorf("insert transaction record: %w", err)
	}
	return nil
}

// GetByTxHash retrieves a record by transaction hash. Returns ErrNotFound if not exists.
func (s *LedgerStore) GetByTxHash(ctx context.Context, txHash string) (*domain.TransactionRecord, error) {
	query := `SELECT ` + ledgerColumns + ` FROM transaction_records WHERE tx_hash = $1`

	row := s.pool.QueryRow(ctx, query, strings.ToLower(txHash))
	r, err := scanTransactionRecord(row)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get transaction record by tx hash: %w", err)
	}
	return r, nil
}

// List returns matching records, newest first.
func (s *LedgerStore) List(ctx context.Context, filter storage.LedgerFilter) (_ []*domain.TransactionRecord, err error) {
	defer func(start time.Time) { observe("ledger_list", start, err) }(time.Now())

	var (
		where []string
		args  []any
	)
	if filter.UserAddress != "" {
		args = append(args, filter.UserAddress)
		where = append(where, fmt.Sprintf("lower(user_address) = lower($%d)", len(args)))
	}
	if filter.AssetID != "" {
		args = append(args, filter.AssetID)
		where = append(where, fmt.Sprintf("asset_id = $%d", len(args)))
	}

	query := `SELECT ` + ledgerColumns + ` FROM transaction_records`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	query += ` ORDER BY created_at DESC, tx_hash ASC`
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += fmt.Sprintf(` LIMIT $%d`, len(args))
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list transaction records: %w", err)
	}
	defer rows.Close()

	return scanTransactionRecords(rows)
}

// scanTransactionRecord scans a single row into a TransactionRecord.
func scanTransactionRecord(row pgx.Row) (*domain.TransactionRecord, error) {
	var (
		r              domain.TransactionRecord
		txType, status string
	)
	err := row.Scan(&r.ID, &r.TxHash, &r.AssetID, &txType, &r.Amount, &r.UserAddress, &status, &r.Timestamp)
	if err != nil {
		return nil, err
	}
	r.Type = domain.TransactionType(txType)
	r.Status = domain.TransactionStatus(status)
	r.Timestamp = r.Timestamp.UTC()
	return &r, nil
}

// scanTransactionRecords scans multiple rows into a slice of TransactionRecord.
func scanTransactionRecords(rows pgx.Rows) ([]*domain.TransactionRecord, error) {
	var records []*domain.TransactionRecord

	for rows.Next() {
		r, err := scanTransactionRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan transaction record row: %w", err)
		}
		records = append(records, r)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate transaction record rows: %w", err)
	}

	return records, nil
}
