package hub

import (
	"sort"
	"strings"
	"sync"
)

// Watchlist is the set of symbols the upstream ticker firehose is filtered
// by. It carries its own lock because the upstream read loop consults it on
// every ticker frame, independently of the hub indices.
type Watchlist struct {
	mu       sync.RWMutex
	defaults []string
	symbols  map[string]struct{}
}

// NewWatchlist creates a watchlist seeded with the default anchors. The
// defaults survive every rebuild.
func NewWatchlist(defaults []string) *Watchlist {
	w := &Watchlist{defaults: make([]string, 0, len(defaults))}
	for _, s := range defaults {
		w.defaults = append(w.defaults, strings.ToUpper(s))
	}
	w.replace(nil)
	return w
}

// Contains reports whether the symbol is currently watched.
func (w *Watchlist) Contains(symbol string) bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	_, ok := w.symbols[symbol]
	return ok
}

// Snapshot returns the watched symbols in sorted order.
func (w *Watchlist) Snapshot() []string {
	w.mu.RLock()
	defer w.mu.RUnlock()

	out := make([]string, 0, len(w.symbols))
	for s := range w.symbols {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}

// Len returns the watched symbol count.
func (w *Watchlist) Len() int {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return len(w.symbols)
}

// replace rebuilds the set as defaults plus extra. Symbols in extra must
// already be uppercase.
func (w *Watchlist) replace(extra map[string]struct{}) {
	next := make(map[string]struct{}, len(w.defaults)+len(extra))
	for _, s := range w.defaults {
		next[s] = struct{}{}
	}
	for s := range extra {
		next[s] = struct{}{}
	}

	w.mu.Lock()
	w.symbols = next
	w.mu.Unlock()
}
