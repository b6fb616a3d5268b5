// Package syncer keeps the local ledger replica consistent with the remote
// indexer through paginated, incremental reconciliation.
package syncer

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/Klingon-tech/tbcwallet/internal/errs"
	"github.com/Klingon-tech/tbcwallet/internal/ledger"
	"github.com/Klingon-tech/tbcwallet/internal/log"
	"github.com/Klingon-tech/tbcwallet/internal/metrics"
)

const (
	// DefaultPageSize is the number of records requested per page.
	DefaultPageSize = 10

	// DefaultMaxPages bounds a single run. Reaching it means the local and
	// remote views never converged.
	DefaultMaxPages = 1000
)

// FetchPage returns one page of remote records, newest first, plus the
// remote total.
type FetchPage[T any] func(ctx context.Context, owner string, page, size int) ([]T, int, error)

// CountProbe returns the remote record total without fetching records.
type CountProbe func(ctx context.Context, owner string) (int, error)

// Reconciler syncs one entity kind between the remote indexer and a
// ledger store.
type Reconciler[T ledger.Entity[T]] struct {
	Name  string
	Store *ledger.Store[T]
	Fetch FetchPage[T]
	// Count is optional. When set and the remote total equals the local
	// active count, Sync returns without fetching.
	Count CountProbe
	// Fresh reports whether remote carries no change relative to local.
	Fresh func(local, remote T) bool

	PageSize int
	MaxPages int
	Metrics  *metrics.Metrics
}

// Result summarizes one run.
type Result struct {
	Pages     int
	Written   int
	Deleted   int
	Skipped   int
	Converged bool
	Unchanged bool
}

func (r *Reconciler[T]) pageSize() int {
	if r.PageSize > 0 {
		return r.PageSize
	}
	return DefaultPageSize
}

func (r *Reconciler[T]) maxPages() int {
	if r.MaxPages > 0 {
		return r.MaxPages
	}
	return DefaultMaxPages
}

// Sync performs an incremental run: pages are walked newest first until a
// stored record is found unchanged, or the remote listing is exhausted.
// The remote must list newest first and never reorder; when it cannot be
// trusted to, run InitAll or Reconcile instead.
func (r *Reconciler[T]) Sync(ctx context.Context, owner string) (res Result, err error) {
	start := time.Now()
	defer func() { r.finish(owner, "sync", res, err, start) }()

	if r.Count != nil {
		remote, err := r.Count(ctx, owner)
		if err != nil {
			return res, fmt.Errorf("%s count: %w", r.Name, err)
		}
		local, err := r.Store.Count(owner)
		if err != nil {
			return res, fmt.Errorf("%s local count: %w", r.Name, err)
		}
		if remote == local {
			res.Unchanged = true
			return res, nil
		}
	}

	err = r.walk(ctx, owner, &res, nil, true)
	return res, err
}

// InitAll walks every remote page, writing records whose stored form
// would change. Used on first activation of an account.
func (r *Reconciler[T]) InitAll(ctx context.Context, owner string) (res Result, err error) {
	start := time.Now()
	defer func() { r.finish(owner, "init", res, err, start) }()

	err = r.walk(ctx, owner, &res, nil, false)
	return res, err
}

// Reconcile runs InitAll and then soft-deletes every active local record
// the remote no longer lists.
func (r *Reconciler[T]) Reconcile(ctx context.Context, owner string) (res Result, err error) {
	start := time.Now()
	defer func() { r.finish(owner, "reconcile", res, err, start) }()

	seen := make(map[string]struct{})
	if err = r.walk(ctx, owner, &res, seen, false); err != nil {
		return res, err
	}

	local, err := r.Store.IDs(owner)
	if err != nil {
		return res, fmt.Errorf("%s list local: %w", r.Name, err)
	}
	for id, state := range local {
		if state != ledger.Active {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		if _, err := r.Store.SoftDelete(owner, id); err != nil {
			r.logger(owner).Warn().Err(err).Str("id", id).Msg("Soft delete failed")
			res.Skipped++
			r.Metrics.RecordSkipped(r.Name)
			continue
		}
		res.Deleted++
		r.Metrics.RecordDeleted(r.Name)
	}
	return res, nil
}

// walk fetches pages from 0. With converge set it stops at the first stored
// record that is active and fresh. seen, when non-nil, collects every
// remote id.
func (r *Reconciler[T]) walk(ctx context.Context, owner string, res *Result, seen map[string]struct{}, converge bool) error {
	size := r.pageSize()
	for page := 0; ; page++ {
		if page >= r.maxPages() {
			return errs.New(errs.SyncDivergence, "%s: no convergence after %d pages", r.Name, page)
		}
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("%s sync page %d: %w", r.Name, page, err)
		}

		recs, _, err := r.Fetch(ctx, owner, page, size)
		if err != nil {
			return fmt.Errorf("%s fetch page %d: %w", r.Name, page, err)
		}
		res.Pages++
		r.Metrics.PageFetched(r.Name)

		for _, rec := range recs {
			if seen != nil {
				seen[rec.EntityID()] = struct{}{}
			}
			if r.apply(owner, rec, res, converge) {
				res.Converged = true
				return nil
			}
		}

		if len(recs) < size {
			return nil
		}
	}
}

// apply stores one remote record and reports whether it marks the
// convergence point.
func (r *Reconciler[T]) apply(owner string, rec T, res *Result, converge bool) bool {
	id := rec.EntityID()
	local, found, err := r.Store.Get(owner, id)
	if err != nil {
		r.logger(owner).Warn().Err(err).Str("id", id).Msg("Skipping unreadable record")
		res.Skipped++
		r.Metrics.RecordSkipped(r.Name)
		return false
	}
	if converge && found && local.EntityState() == ledger.Active && r.Fresh(local, rec) {
		return true
	}

	changed, err := r.Store.Put(owner, rec.WithState(ledger.Active))
	if err != nil {
		r.logger(owner).Warn().Err(err).Str("id", id).Msg("Skipping record")
		res.Skipped++
		r.Metrics.RecordSkipped(r.Name)
		return false
	}
	if changed {
		res.Written++
		r.Metrics.RecordWritten(r.Name)
	}
	return false
}

func (r *Reconciler[T]) finish(owner, mode string, res Result, err error, start time.Time) {
	result := metrics.ResultExhausted
	switch {
	case errs.KindOf(err) == errs.SyncDivergence:
		result = metrics.ResultDivergence
	case err != nil:
		result = metrics.ResultError
	case res.Unchanged:
		result = metrics.ResultUnchanged
	case res.Converged:
		result = metrics.ResultConverged
	}
	r.Metrics.SyncRun(r.Name, result, time.Since(start))

	ev := r.logger(owner).Debug()
	if err != nil {
		ev = r.logger(owner).Warn().Err(err)
	}
	ev.Str("mode", mode).
		Str("result", result).
		Int("pages", res.Pages).
		Int("written", res.Written).
		Int("deleted", res.Deleted).
		Int("skipped", res.Skipped).
		Dur("took", time.Since(start)).
		Msg("Sync finished")
}

func (r *Reconciler[T]) logger(owner string) *zerolog.Logger {
	l := log.WithAddress(log.Sync, owner).With().Str("entity", r.Name).Logger()
	return &l
}
