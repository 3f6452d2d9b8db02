package registry

import (
	"sort"
	"strings"
	"time"

	"github.com/viewingchart/market-gateway/internal/model"
)

// popularQuote restricts the popular ranking to one quote currency.
const popularQuote = "USDT"

// popularExclusions filters leveraged-token pairs out of the ranking.
var popularExclusions = []string{"UPUSDT", "DOWNUSDT"}

// popularExtras are fixed derivative pairs appended after the ranked list.
var popularExtras = []model.Symbol{
	{Symbol: "XAUUSDT", BaseAsset: "XAU", QuoteAsset: "USDT", Source: model.SourceDeriv},
	{Symbol: "XAGUSDT", BaseAsset: "XAG", QuoteAsset: "USDT", Source: model.SourceDeriv},
}

// snapshot is an immutable point-in-time view of the symbol universe.
// All fields are written once by buildSnapshot and only read afterwards.
type snapshot struct {
	// symbols holds the full universe in insertion order: every spot
	// symbol first, then the derivatives-only tail.
	symbols []model.Symbol

	// spotSet and derivSet are disjoint membership sets; derivSet holds
	// only symbols absent from spot.
	spotSet  map[string]struct{}
	derivSet map[string]struct{}

	popular []model.Symbol

	fetchedAt time.Time
	expiresAt time.Time
}

// buildSnapshot partitions the two universes and precomputes the popular
// list. Spot wins ties: a symbol listed on both venues classifies as SPOT.
func buildSnapshot(spot, futures []model.Symbol, volumes []model.SymbolVolume, now time.Time, ttl time.Duration, popularSize int) *snapshot {
	snap := &snapshot{
		symbols:   make([]model.Symbol, 0, len(spot)+len(futures)),
		spotSet:   make(map[string]struct{}, len(spot)),
		derivSet:  make(map[string]struct{}),
		fetchedAt: now,
		expiresAt: now.Add(ttl),
	}

	for _, s := range spot {
		if _, ok := snap.spotSet[s.Symbol]; ok {
			continue
		}
		snap.spotSet[s.Symbol] = struct{}{}
		snap.symbols = append(snap.symbols, s)
	}

	for _, s := range futures {
		if _, ok := snap.spotSet[s.Symbol]; ok {
			continue
		}
		if _, ok := snap.derivSet[s.Symbol]; ok {
			continue
		}
		snap.derivSet[s.Symbol] = struct{}{}
		snap.symbols = append(snap.symbols, s)
	}

	snap.popular = buildPopular(spot, volumes, popularSize)
	return snap
}

// buildPopular ranks the quote-currency spot pairs by 24h quote volume and
// appends the fixed derivative pairs.
func buildPopular(spot []model.Symbol, volumes []model.SymbolVolume, size int) []model.Symbol {
	volume := make(map[string]float64, len(volumes))
	for _, v := range volumes {
		volume[v.Symbol] = v.QuoteVolume
	}

	ranked := make([]string, 0, size)
	for _, s := range spot {
		if s.QuoteAsset != popularQuote {
			continue
		}
		if excludedFromPopular(s.Symbol) {
			continue
		}
		ranked = append(ranked, s.Symbol)
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		return volume[ranked[i]] > volume[ranked[j]]
	})
	if len(ranked) > size {
		ranked = ranked[:size]
	}

	out := make([]model.Symbol, 0, len(ranked)+len(popularExtras))
	for _, sym := range ranked {
		out = append(out, model.Symbol{
			Symbol:     sym,
			BaseAsset:  strings.TrimSuffix(sym, popularQuote),
			QuoteAsset: popularQuote,
			Source:     model.SourceSpot,
		})
	}
	return append(out, popularExtras...)
}

func excludedFromPopular(symbol string) bool {
	for _, pattern := range popularExclusions {
		if strings.Contains(symbol, pattern) {
			return true
		}
	}
	return false
}

// expired reports whether the snapshot is past its TTL.
func (s *snapshot) expired(now time.Time) bool {
	return now.After(s.expiresAt)
}

// classify reports the venue membership of an uppercase symbol.
func (s *snapshot) classify(symbol string) model.Venue {
	if _, ok := s.spotSet[symbol]; ok {
		return model.VenueSpot
	}
	if _, ok := s.derivSet[symbol]; ok {
		return model.VenueDeriv
	}
	return model.VenueUnknown
}

// search matches case-insensitively on the symbol substring or the exact
// base asset, in insertion order. An empty query returns the first limit
// symbols.
func (s *snapshot) search(query string, limit int) []model.Symbol {
	if limit <= 0 || limit > len(s.symbols) {
		limit = len(s.symbols)
	}

	q := strings.ToUpper(strings.TrimSpace(query))
	out := make([]model.Symbol, 0, limit)
	for _, sym := range s.symbols {
		if q != "" && !strings.Contains(sym.Symbol, q) && sym.BaseAsset != q {
			continue
		}
		out = append(out, sym)
		if len(out) == limit {
			break
		}
	}
	return out
}
