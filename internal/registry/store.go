package registry

import (
	"encoding/json"
	"sort"
	"time"

	"github.com/viewingchart/market-gateway/internal/model"
)

// Store keys within the snapshot bucket. The four keys are written together
// and share the bucket TTL.
const (
	keySymbols     = "symbols"
	keySpotList    = "spot_list"
	keyFuturesList = "futures_list"
	keyPopular     = "popular"
)

// loadStored rebuilds a snapshot from the shared store. A miss on any key
// means no warm start. The bucket TTL bounds the entry age, so a loaded
// snapshot is treated as fresh for one local TTL.
func (r *registryImpl) loadStored() (*snapshot, bool) {
	if r.store == nil {
		return nil, false
	}

	var (
		symbols   []model.Symbol
		spotList  []string
		derivList []string
		popular   []model.Symbol
	)

	keys := []struct {
		key string
		dst interface{}
	}{
		{keySymbols, &symbols},
		{keySpotList, &spotList},
		{keyFuturesList, &derivList},
		{keyPopular, &popular},
	}

	for _, k := range keys {
		data, err := r.store.Get(k.key)
		if err != nil {
			return nil, false
		}
		if err := json.Unmarshal(data, k.dst); err != nil {
			r.logger.Warn("stored snapshot unreadable", "key", k.key, "err", err)
			return nil, false
		}
	}

	now := time.Now()
	snap := &snapshot{
		symbols:   symbols,
		spotSet:   make(map[string]struct{}, len(spotList)),
		derivSet:  make(map[string]struct{}, len(derivList)),
		popular:   popular,
		fetchedAt: now,
		expiresAt: now.Add(r.cfg.TTL),
	}
	for _, s := range spotList {
		snap.spotSet[s] = struct{}{}
	}
	for _, s := range derivList {
		snap.derivSet[s] = struct{}{}
	}

	return snap, true
}

// persist writes the snapshot to the shared store, best effort.
func (r *registryImpl) persist(snap *snapshot) {
	if r.store == nil {
		return
	}

	entries := []struct {
		key   string
		value interface{}
	}{
		{keySymbols, snap.symbols},
		{keySpotList, setToList(snap.spotSet)},
		{keyFuturesList, setToList(snap.derivSet)},
		{keyPopular, snap.popular},
	}

	for _, e := range entries {
		data, err := json.Marshal(e.value)
		if err != nil {
			r.logger.Warn("snapshot persist failed", "key", e.key, "err", err)
			return
		}
		if err := r.store.Put(e.key, data); err != nil {
			r.logger.Warn("snapshot persist failed", "key", e.key, "err", err)
			return
		}
	}
}

func setToList(set map[string]struct{}) []string {
	list := make([]string, 0, len(set))
	for s := range set {
		list = append(list, s)
	}
	sort.Strings(list)
	return list
}
