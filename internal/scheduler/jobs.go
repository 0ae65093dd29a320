package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"rwa-portfolio/internal/domain"
	"rwa-portfolio/internal/observability"
	"rwa-portfolio/internal/reconcile"
	"rwa-portfolio/internal/storage"
)

// Job names.
const (
	JobReconcile = "reconcile"
	JobSnapshot  = "snapshot"
)

// OwnerLister lists owners with a stored portfolio.
type OwnerLister interface {
	ListOwners(ctx context.Context) ([]string, error)
}

// owners returns the stored owners plus the extra ones, lowercased,
// deduplicated and sorted.
func owners(ctx context.Context, lister OwnerLister, extra []string) ([]string, error) {
	stored, err := lister.ListOwners(ctx)
	if err != nil {
		return nil, fmt.Errorf("list owners: %w", err)
	}
	seen := make(map[string]struct{}, len(stored)+len(extra))
	out := make([]string, 0, len(stored)+len(extra))
	for _, o := range append(stored, extra...) {
		o = strings.ToLower(strings.TrimSpace(o))
		if o == "" {
			continue
		}
		if _, ok := seen[o]; ok {
			continue
		}
		seen[o] = struct{}{}
		out = append(out, o)
	}
	sort.Strings(out)
	return out, nil
}

// Refresher reconciles one owner's holdings.
type Refresher interface {
	Refresh(ctx context.Context, owner string) (*reconcile.Report, error)
}

// ReconcileJob refreshes the holdings of every known owner.
type ReconcileJob struct {
	owners      OwnerLister
	refresher   Refresher
	extra       []string
	concurrency int
	log         zerolog.Logger
}

// NewReconcileJob creates a ReconcileJob. Extra owners, such as the service
// wallet, are reconciled even before they have a stored portfolio.
func NewReconcileJob(lister OwnerLister, refresher Refresher, extra []string, concurrency int, log zerolog.Logger) *ReconcileJob {
	if concurrency <= 0 {
		concurrency = 1
	}
	return &ReconcileJob{
		owners:      lister,
		refresher:   refresher,
		extra:       extra,
		concurrency: concurrency,
		log:         log.With().Str("job", JobReconcile).Logger(),
	}
}

// Name implements Job.
func (j *ReconcileJob) Name() string { return JobReconcile }

// Run refreshes every owner. One owner failing does not stop the others;
// all failures are returned joined.
func (j *ReconcileJob) Run(ctx context.Context) error {
	list, err := owners(ctx, j.owners, j.extra)
	if err != nil {
		return err
	}

	errs := make([]error, len(list))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(j.concurrency)
	for i, owner := range list {
		i, owner := i, owner
		g.Go(func() error {
			report, err := j.refresher.Refresh(gctx, owner)
			if err != nil {
				errs[i] = fmt.Errorf("refresh %s: %w", owner, err)
				return nil
			}
			j.log.Debug().
				Str("owner", owner).
				Int("assets", len(report.Assets)).
				Msg("owner reconciled")
			return nil
		})
	}
	_ = g.Wait()

	if err := errors.Join(errs...); err != nil {
		return err
	}
	j.log.Info().Int("owners", len(list)).Msg("reconciliation complete")
	return nil
}

// Snapshotter computes a metrics snapshot of one owner.
type Snapshotter interface {
	Snapshot(ctx context.Context, owner string, at time.Time) (*domain.MetricsSnapshot, error)
}

// SnapshotJob writes one metrics snapshot per known owner.
type SnapshotJob struct {
	owners      OwnerLister
	snapshotter Snapshotter
	store       storage.SnapshotStore
	extra       []string
	log         zerolog.Logger
	now         func() time.Time
}

// NewSnapshotJob creates a SnapshotJob.
func NewSnapshotJob(lister OwnerLister, snapshotter Snapshotter, store storage.SnapshotStore, extra []string, log zerolog.Logger) *SnapshotJob {
	return &SnapshotJob{
		owners:      lister,
		snapshotter: snapshotter,
		store:       store,
		extra:       extra,
		log:         log.With().Str("job", JobSnapshot).Logger(),
		now:         time.Now,
	}
}

// Name implements Job.
func (j *SnapshotJob) Name() string { return JobSnapshot }

// Run snapshots every owner at the same instant and writes them in one
// batch. Owners that fail are skipped and reported.
func (j *SnapshotJob) Run(ctx context.Context) error {
	list, err := owners(ctx, j.owners, j.extra)
	if err != nil {
		return err
	}

	at := j.now().UTC()
	var (
		snaps []*domain.MetricsSnapshot
		errs  []error
	)
	for _, owner := range list {
		snap, err := j.snapshotter.Snapshot(ctx, owner, at)
		if err != nil {
			errs = append(errs, fmt.Errorf("snapshot %s: %w", owner, err))
			continue
		}
		snaps = append(snaps, snap)
	}

	if len(snaps) > 0 {
		if err := j.store.InsertBulk(ctx, snaps); err != nil {
			return fmt.Errorf("insert snapshots: %w", err)
		}
		observability.RecordSnapshots(len(snaps))
	}
	j.log.Info().
		Int("owners", len(list)).
		Int("written", len(snaps)).
		Msg("snapshots written")
	return errors.Join(errs...)
}
