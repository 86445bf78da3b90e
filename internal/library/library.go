// Package library implements the Library Facade of spec.md §4.5: the
// process-wide singleton that owns the Repository (internal/store) and
// every cache built on top of it, mediates alias application and genre
// normalization on insert, and is the only thing the OPDS/HTML layer and
// the scanner ever talk to.
package library

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"tinyopds/internal/alias"
	"tinyopds/internal/config"
	"tinyopds/internal/genre"
	"tinyopds/internal/store"
)

const (
	// countsTTL is the one-hour TTL spec.md §4.5 gives the five stable
	// counters (total/FB2/EPUB/authors/sequences).
	countsTTL = time.Hour
	// newBooksTTL is the shorter, five-minute TTL for the "new books"
	// counter, which changes far more often during active scanning.
	newBooksTTL = 5 * time.Minute
	// listsTTL is the ten-minute TTL for the sorted author/sequence lists.
	listsTTL = 10 * time.Minute
	// alphaTTL is the two-hour TTL for the per-initial alphabetical author
	// buckets.
	alphaTTL = 2 * time.Hour
	// genreTreeTTL is the five-minute TTL for the cached genre tree (the
	// taxonomy structure only; it holds no per-genre book counts).
	genreTreeTTL = 5 * time.Minute

	// refreshLockTimeout bounds how long Counts() waits to take the
	// refresh lock synchronously before falling back to an async refresh
	// and stale values, per spec.md §5's "try the lock with a short
	// timeout (≈100ms)" idiom.
	refreshLockTimeout = 100 * time.Millisecond

	// pingInterval is the keep-alive probe cadence of spec.md §5.
	pingInterval = 30 * time.Second
	// idleThreshold: after this much inactivity, the next access warms
	// caches and recomputes statistics (spec.md §5 "suspension points").
	idleThreshold = 5 * time.Minute

	cacheKey = "singleton" // every cache here really guards one TTL'd value
)

// listsSnapshot is the cached payload for the "Lists cache" of spec.md
// §4.5: the sorted author and sequence name lists.
type listsSnapshot struct {
	Authors   []string
	Sequences []string
}

// alphaSnapshot is the cached payload for the "Alphabetical author cache":
// a mapping from uppercase first letter to that letter's sorted author
// list, plus the sorted set of letters that actually have authors.
type alphaSnapshot struct {
	ByInitial map[string][]string
	Letters   []string
}

// Facade is the process-wide Library singleton of spec.md §4.5. The zero
// value is not usable; construct one with Open.
type Facade struct {
	st     *store.Store
	dbPath string
	cfg    config.Config
	logger *zap.Logger

	taxonomy *genre.Taxonomy
	aliases  *alias.Table

	// countsMu guards counts/countsUpdatedAt/newBooksUpdatedAt. It is never
	// held across a store call (spec.md §5): callers copy the snapshot out
	// and release the lock before doing any I/O.
	countsMu          sync.Mutex
	counts            store.Stats
	countsUpdatedAt   time.Time
	newBooksUpdatedAt time.Time

	// refreshMu is try-locked (never blockingly locked) by Counts() to
	// decide whether to refresh synchronously or hand off to
	// refreshGroup/scheduleAsyncRefresh.
	refreshMu sync.Mutex

	isCacheInitialized   atomic.Bool
	isCacheWarming       atomic.Bool
	isAuthorsCacheLoading atomic.Bool

	listsCache *expirable.LRU[string, listsSnapshot]
	alphaCache *expirable.LRU[string, alphaSnapshot]
	genreCache *expirable.LRU[string, []genre.Parent]

	refreshGroup singleflight.Group

	lastAccess atomic.Int64 // unix nanos, for the idle-threshold warm-up

	closeOnce sync.Once
	stopKeepAlive chan struct{}
}

// Open implements spec.md §4.5's startup sequence: open the store, load the
// genre taxonomy and alias tables, seed the count cache from persisted
// statistics (so counts display instantly), and launch the two background
// warm-up tasks (full recompute, alphabetical author cache build).
func Open(cfg config.Config, logger *zap.Logger) (*Facade, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	st, err := store.Open(cfg.DatabasePath, cfg.LibraryPath)
	if err != nil {
		return nil, err
	}

	taxonomy, err := genre.Load()
	if err != nil {
		st.Close() //nolint:errcheck
		return nil, err
	}
	if err := st.SeedGenreTaxonomy(taxonomy); err != nil {
		logger.Warn("library: seed genre taxonomy failed, continuing with whatever the store already has", zap.Error(err))
	}

	aliases := loadAliases(cfg, logger)

	f := &Facade{
		st:            st,
		dbPath:        cfg.DatabasePath,
		cfg:           cfg,
		logger:        logger,
		taxonomy:      taxonomy,
		aliases:       aliases,
		listsCache:    expirable.NewLRU[string, listsSnapshot](1, nil, listsTTL),
		alphaCache:    expirable.NewLRU[string, alphaSnapshot](1, nil, alphaTTL),
		genreCache:    expirable.NewLRU[string, []genre.Parent](1, nil, genreTreeTTL),
		stopKeepAlive: make(chan struct{}),
	}
	f.touch()

	persisted, err := st.ReadStats()
	if err != nil {
		logger.Warn("library: read persisted stats failed, starting from zero", zap.Error(err))
		persisted = store.Stats{}
	}
	f.countsMu.Lock()
	f.counts = persisted
	f.countsUpdatedAt = time.Now()
	f.newBooksUpdatedAt = time.Now()
	f.countsMu.Unlock()
	f.isCacheInitialized.Store(true)

	// Two fire-and-forget background tasks (spec.md §4.5 step 5): neither
	// is awaited by any caller, matching the "coroutines/async" design note
	// in spec.md §9.
	f.scheduleAsyncRefresh()
	go f.warmAuthorsCache()

	go f.keepAlive()

	return f, nil
}

func loadAliases(cfg config.Config, logger *zap.Logger) *alias.Table {
	if cfg.AliasFilePath != "" {
		t, err := alias.Load(cfg.AliasFilePath)
		if err == nil {
			return t
		}
		logger.Warn("library: external alias file failed to load, falling back to embedded table",
			zap.String("path", cfg.AliasFilePath), zap.Error(err))
	}
	t, err := alias.LoadDefault()
	if err != nil {
		logger.Warn("library: embedded alias table failed to load", zap.Error(err))
		return nil
	}
	return t
}

// Close shuts the facade down: stops the keep-alive task and closes the
// store. Idempotent.
func (f *Facade) Close() error {
	f.closeOnce.Do(func() { close(f.stopKeepAlive) })
	return f.st.Close()
}

// touch records an access for the idle-threshold warm-up check.
func (f *Facade) touch() {
	f.lastAccess.Store(time.Now().UnixNano())
}

// wasIdle reports whether the facade has seen no access for at least
// idleThreshold, per spec.md §5's "after an idle threshold (~5 min) the
// first access warms caches and runs a statistics update."
func (f *Facade) wasIdle() bool {
	last := f.lastAccess.Load()
	return last != 0 && time.Since(time.Unix(0, last)) >= idleThreshold
}

// keepAlive runs the store ping on a 30s timer (spec.md §5) and, on
// failure, reopens the connection and reapplies pragmas.
func (f *Facade) keepAlive() {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-f.stopKeepAlive:
			return
		case <-ticker.C:
			if err := f.st.Ping(); err != nil {
				f.logger.Warn("library: store keep-alive ping failed, reopening", zap.Error(err))
				f.reopenStore()
			}
			if f.wasIdle() {
				f.scheduleAsyncRefresh()
			}
		}
	}
}

func (f *Facade) reopenStore() {
	fresh, err := store.Open(f.dbPath, f.cfg.LibraryPath)
	if err != nil {
		f.logger.Warn("library: reopen store failed, keeping existing (possibly dead) connection", zap.Error(err))
		return
	}
	old := f.st
	f.st = fresh
	_ = old.Close()
}
