package library

import (
	"time"

	"go.uber.org/zap"

	"tinyopds/internal/store"
)

// Counts returns the cached Stats snapshot, following the non-blocking
// access protocol of spec.md §4.5/§5: a fresh cache returns immediately; a
// cache already being warmed returns the current (possibly stale) values
// without blocking; otherwise Counts tries to take the refresh lock for up
// to refreshLockTimeout, refreshing synchronously on success, or schedules
// an async refresh and returns the stale snapshot on timeout. Counts never
// returns a zero Stats once the cache has been initialized once, even while
// stale (spec.md §4.5 "never return zero on stale").
func (f *Facade) Counts() store.Stats {
	f.touch()

	f.countsMu.Lock()
	snapshot := f.counts
	fresh := time.Since(f.countsUpdatedAt) < countsTTL && time.Since(f.newBooksUpdatedAt) < newBooksTTL
	f.countsMu.Unlock()

	if fresh || f.isCacheWarming.Load() || !f.isCacheInitialized.Load() {
		return snapshot
	}

	if f.tryRefreshCounts() {
		f.countsMu.Lock()
		snapshot = f.counts
		f.countsMu.Unlock()
		return snapshot
	}

	f.scheduleAsyncRefresh()
	return snapshot
}

// tryRefreshCounts attempts to take refreshMu within refreshLockTimeout,
// polling with TryLock as spec.md §5 describes ("try lock with a short
// timeout"); Go's sync.Mutex has no native timed lock. On success it
// refreshes synchronously and reports true; on timeout it reports false
// without blocking the caller further.
func (f *Facade) tryRefreshCounts() bool {
	deadline := time.Now().Add(refreshLockTimeout)
	for {
		if f.refreshMu.TryLock() {
			defer f.refreshMu.Unlock()
			f.refreshCountsLocked()
			return true
		}
		if time.Now().After(deadline) {
			return false
		}
		time.Sleep(5 * time.Millisecond)
	}
}

// refreshCountsLocked recomputes and persists Stats. Caller must hold
// refreshMu.
func (f *Facade) refreshCountsLocked() {
	f.isCacheWarming.Store(true)
	defer f.isCacheWarming.Store(false)

	periodDays := f.cfg.NewBooksPeriodDays()
	fresh, err := f.st.RecomputeStats(periodDays)
	if err != nil {
		f.logger.Warn("library: recompute stats failed, keeping stale counts", zap.Error(err))
		return
	}

	f.countsMu.Lock()
	f.counts = fresh
	now := time.Now()
	f.countsUpdatedAt = now
	f.newBooksUpdatedAt = now
	f.countsMu.Unlock()

	if err := f.st.WriteStats(fresh); err != nil {
		f.logger.Warn("library: persist stats failed", zap.Error(err))
	}
}

// scheduleAsyncRefresh launches a background stats refresh, collapsing
// concurrent triggers into one in-flight recompute via singleflight, per
// spec.md §4.5's "collapse concurrent async refresh triggers".
func (f *Facade) scheduleAsyncRefresh() {
	go func() {
		_, _, _ = f.refreshGroup.Do("counts", func() (any, error) {
			f.refreshMu.Lock()
			defer f.refreshMu.Unlock()
			f.refreshCountsLocked()
			return nil, nil
		})
	}()
}

// invalidateCounts marks the count cache stale without discarding the
// current values, so the next access still has something to return while
// a refresh is scheduled.
func (f *Facade) invalidateCounts() {
	f.countsMu.Lock()
	f.countsUpdatedAt = time.Time{}
	f.newBooksUpdatedAt = time.Time{}
	f.countsMu.Unlock()
}
