package registry

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/viewingchart/market-gateway/internal/metrics"
	"github.com/viewingchart/market-gateway/internal/model"
)

// Config holds Symbol Registry configuration.
type Config struct {
	// TTL is the validity window of a snapshot. A read past the TTL
	// triggers a refresh before answering.
	TTL time.Duration

	// PopularSize is the number of volume-ranked entries in the popular
	// list, before the fixed derivative pairs are appended.
	PopularSize int

	// RefreshTimeout bounds a single refresh, including the blocking one
	// at startup.
	RefreshTimeout time.Duration
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		TTL:            time.Hour,
		PopularSize:    25,
		RefreshTimeout: 2 * time.Minute,
	}
}

// UniverseSource provides the upstream REST data a refresh needs.
type UniverseSource interface {
	SpotUniverse(ctx context.Context) ([]model.Symbol, error)
	FuturesUniverse(ctx context.Context) ([]model.Symbol, error)
	SpotVolumes(ctx context.Context) ([]model.SymbolVolume, error)
}

// SnapshotStore persists snapshots across instances. Any Get error is
// treated as a cache miss; persistence is best effort.
type SnapshotStore interface {
	Get(key string) ([]byte, error)
	Put(key string, value []byte) error
}

// Registry exposes the current tradable symbol universe.
type Registry interface {
	// Start loads an initial snapshot (from the store when possible) and
	// begins the background refresh loop.
	Start(ctx context.Context) error

	// Stop gracefully shuts down.
	Stop(ctx context.Context) error

	// Refresh fetches both universes and replaces the snapshot atomically.
	// On failure the previous snapshot stays in place.
	Refresh(ctx context.Context) error

	// Classify reports which venue carries the symbol. A missing or
	// expired snapshot triggers a refresh first.
	Classify(ctx context.Context, symbol string) model.Venue

	// Search matches case-insensitively on the symbol substring or the
	// exact base asset, in snapshot insertion order (spot first). An
	// empty query returns the first limit symbols.
	Search(ctx context.Context, query string, limit int) []model.Symbol

	// Popular returns the volume-ranked popular list with the fixed
	// derivative pairs appended.
	Popular(ctx context.Context) []model.Symbol

	// Ready reports whether a snapshot has been loaded.
	Ready() bool
}

// registryImpl implements the Registry interface.
type registryImpl struct {
	cfg    Config
	source UniverseSource
	store  SnapshotStore
	logger *slog.Logger

	mu   sync.RWMutex
	snap *snapshot

	sf singleflight.Group

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a Symbol Registry. store may be nil to run without the
// shared cache.
func New(cfg Config, source UniverseSource, store SnapshotStore, logger *slog.Logger) Registry {
	if logger == nil {
		logger = slog.Default()
	}
	def := DefaultConfig()
	if cfg.TTL <= 0 {
		cfg.TTL = def.TTL
	}
	if cfg.PopularSize <= 0 {
		cfg.PopularSize = def.PopularSize
	}
	if cfg.RefreshTimeout <= 0 {
		cfg.RefreshTimeout = def.RefreshTimeout
	}

	return &registryImpl{
		cfg:    cfg,
		source: source,
		store:  store,
		logger: logger,
	}
}

// Start loads the initial snapshot and begins the refresh loop. Startup
// fails only when both the store and the exchange are unavailable.
func (r *registryImpl) Start(ctx context.Context) error {
	r.ctx, r.cancel = context.WithCancel(ctx)

	if snap, ok := r.loadStored(); ok {
		r.mu.Lock()
		r.snap = snap
		r.mu.Unlock()
		r.logger.Info("symbol universe warm start",
			"symbols", len(snap.symbols),
			"popular", len(snap.popular),
		)
	}

	if r.snapshot() == nil {
		initCtx, cancel := context.WithTimeout(r.ctx, r.cfg.RefreshTimeout)
		defer cancel()

		if err := r.refresh(initCtx); err != nil {
			r.cancel()
			return fmt.Errorf("initial symbol load: %w", err)
		}
	}

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		r.refreshLoop(r.ctx)
	}()

	snap := r.snapshot()
	r.logger.Info("symbol registry started",
		"spot", len(snap.spotSet),
		"deriv", len(snap.derivSet),
		"ttl", r.cfg.TTL,
	)

	return nil
}

// Stop gracefully shuts down.
func (r *registryImpl) Stop(ctx context.Context) error {
	if r.cancel != nil {
		r.cancel()
	}

	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		r.logger.Info("symbol registry stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Refresh fetches both universes and swaps the snapshot. Concurrent callers
// share one in-flight fetch.
func (r *registryImpl) Refresh(ctx context.Context) error {
	ch := r.sf.DoChan("refresh", func() (interface{}, error) {
		refreshCtx, cancel := r.refreshContext()
		defer cancel()
		return nil, r.refresh(refreshCtx)
	})

	select {
	case <-ctx.Done():
		return ctx.Err()
	case res := <-ch:
		return res.Err
	}
}

// Classify reports which venue carries the symbol.
func (r *registryImpl) Classify(ctx context.Context, symbol string) model.Venue {
	snap := r.current(ctx)
	if snap == nil {
		return model.VenueUnknown
	}
	return snap.classify(strings.ToUpper(symbol))
}

// Search matches the query against the current snapshot.
func (r *registryImpl) Search(ctx context.Context, query string, limit int) []model.Symbol {
	snap := r.current(ctx)
	if snap == nil {
		return nil
	}
	return snap.search(query, limit)
}

// Popular returns the precomputed popular list.
func (r *registryImpl) Popular(ctx context.Context) []model.Symbol {
	snap := r.current(ctx)
	if snap == nil {
		return nil
	}
	return append([]model.Symbol(nil), snap.popular...)
}

// Ready reports whether a snapshot has been loaded.
func (r *registryImpl) Ready() bool {
	return r.snapshot() != nil
}

// snapshot returns the live snapshot pointer (read-locked).
func (r *registryImpl) snapshot() *snapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.snap
}

// current returns a snapshot for reads, refreshing first when it is missing
// or past its TTL. A failed refresh falls back to the stale snapshot.
func (r *registryImpl) current(ctx context.Context) *snapshot {
	snap := r.snapshot()
	if snap != nil && !snap.expired(time.Now()) {
		return snap
	}

	if err := r.Refresh(ctx); err != nil {
		r.logger.Warn("refresh failed, serving stale snapshot", "err", err)
	}

	return r.snapshot()
}

// refreshContext detaches the shared fetch from any single caller's
// cancellation.
func (r *registryImpl) refreshContext() (context.Context, context.CancelFunc) {
	base := r.ctx
	if base == nil {
		base = context.Background()
	}
	return context.WithTimeout(base, r.cfg.RefreshTimeout)
}

// refresh fetches both universes plus volumes, builds the snapshot, and
// swaps it in. The lock is held only for the pointer swap.
func (r *registryImpl) refresh(ctx context.Context) error {
	start := time.Now()

	var (
		spot    []model.Symbol
		futures []model.Symbol
		volumes []model.SymbolVolume
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		spot, err = r.source.SpotUniverse(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		futures, err = r.source.FuturesUniverse(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		volumes, err = r.source.SpotVolumes(gctx)
		return err
	})

	if err := g.Wait(); err != nil {
		metrics.RegistryRefreshes.WithLabelValues("error").Inc()
		return fmt.Errorf("refresh symbol universe: %w", err)
	}

	snap := buildSnapshot(spot, futures, volumes, time.Now(), r.cfg.TTL, r.cfg.PopularSize)

	r.mu.Lock()
	r.snap = snap
	r.mu.Unlock()

	metrics.RegistryRefreshes.WithLabelValues("ok").Inc()
	r.logger.Info("symbol universe refreshed",
		"spot", len(snap.spotSet),
		"deriv", len(snap.derivSet),
		"popular", len(snap.popular),
		"duration", time.Since(start),
	)

	r.persist(snap)
	return nil
}

// refreshLoop re-fetches the universe once per TTL. Failed attempts keep
// the stale snapshot; reads trigger their own retries in between.
func (r *registryImpl) refreshLoop(ctx context.Context) {
	ticker := time.NewTicker(r.cfg.TTL)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := r.Refresh(ctx); err != nil {
				r.logger.Error("scheduled refresh failed", "err", err)
			}
		}
	}
}
