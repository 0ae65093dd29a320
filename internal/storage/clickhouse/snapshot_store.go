package clickhouse

import (
	"context"
	"fmt"
	"time"

	"rwa-portfolio/internal/domain"
	"rwa-portfolio/internal/observability"
	"rwa-portfolio/internal/storage"
)

// SnapshotStore implements storage.SnapshotStore using ClickHouse.
// Snapshots are append-only time series; no uniqueness is enforced.
type SnapshotStore struct {
	conn *Conn
}

// NewSnapshotStore creates a new SnapshotStore.
func NewSnapshotStore(conn *Conn) *SnapshotStore {
	return &SnapshotStore{conn: conn}
}

// Compile-time interface check.
var _ storage.SnapshotStore = (*SnapshotStore)(nil)

// InsertBulk adds multiple snapshots in one batch.
func (s *SnapshotStore) InsertBulk(ctx context.Context, snapshots []*domain.MetricsSnapshot) (err error) {
	if len(snapshots) == 0 {
		return nil
	}
	for _, snap := range snapshots {
		if snap == nil || snap.Owner == "" || snap.TimestampMs < 0 {
			return storage.ErrInvalidInput
		}
	}
	defer func(start time.Time) {
		observability.RecordDBQuery("clickhouse", "snapshot_insert", time.Since(start), err)
	}(time.Now())

	batch, err := s.conn.PrepareBatch(ctx, `
		INSERT INTO portfolio_metrics_snapshots (
			owner, timestamp_ms, total_aum, cash_usd, weighted_apy, risk_score, positions
		)
	`)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}

	for _, snap := range snapshots {
		err = batch.Append(
			snap.Owner,
			uint64(snap.TimestampMs),
			snap.TotalAUM,
			snap.CashUSD,
			snap.WeightedAPY,
			int32(snap.RiskScore),
			uint32(snap.Positions),
		)
		if err != nil {
			return fmt.Errorf("append to batch: %w", err)
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("send batch: %w", err)
	}
	return nil
}

// GetByOwnerTimeRange retrieves snapshots within [start, end] (inclusive, ms), ordered by time ASC.
func (s *SnapshotStore) GetByOwnerTimeRange(ctx context.Context, owner string, start, end int64) ([]*domain.MetricsSnapshot, error) {
	if start < 0 {
		start = 0
	}
	if end < start {
		return nil, nil
	}

	query := `
		SELECT owner, timestamp_ms, total_aum, cash_usd, weighted_apy, risk_score, positions
		FROM portfolio_metrics_snapshots
		WHERE owner = ? AND timestamp_ms >= ? AND timestamp_ms <= ?
		ORDER BY timestamp_ms ASC
	`

	rows, err := s.conn.Query(ctx, query, owner, uint64(start), uint64(end))
	if err != nil {
		return nil, fmt.Errorf("query snapshots: %w", err)
	}
	defer rows.Close()

	var result []*domain.MetricsSnapshot
	for rows.Next() {
		var (
			snap      domain.MetricsSnapshot
			ts        uint64
			riskScore int32
			positions uint32
		)
		if err := rows.Scan(&snap.Owner, &ts, &snap.TotalAUM, &snap.CashUSD, &snap.WeightedAPY, &riskScore, &positions); err != nil {
			return nil, fmt.Errorf("scan snapshot row: %w", err)
		}
		snap.TimestampMs = int64(ts)
		snap.RiskScore = int(riskScore)
		snap.Positions = int(positions)
		result = append(result, &snap)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate snapshot rows: %w", err)
	}
	return result, nil
}
