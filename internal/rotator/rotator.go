// Package rotator implements the process-wide Global Key Rotator: target
// rotation across an alias's backend list, and key rotation across every
// (provider, key) tuple currently registered for a composite key.
package rotator

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
)

// GlobalApiKey is one (provider, key) tuple in a composite key's pool.
type GlobalApiKey struct {
	Key        string
	ProviderID int64
	BaseURL    string
	ModelName  string
}

type providerEntry struct {
	keys      []string
	baseURL   string
	modelName string
}

// Rotator is safe for concurrent use. Counters are lock-free atomics; the
// key pools and the provider-keys mapping are each guarded by their own
// RWMutex, matching the two-separate-locks discipline so that a pool
// rebuild never blocks an unrelated composite key's pick.
type Rotator struct {
	targetCounters sync.Map // composite key -> *atomic.Uint64

	poolsMu sync.RWMutex
	pools   map[string][]GlobalApiKey // composite key -> sorted pool

	keyCounters sync.Map // composite key -> *atomic.Uint64

	mappingMu sync.RWMutex
	mapping   map[string]providerEntry // "<composite>:<providerID>" -> entry
}

func New() *Rotator {
	return &Rotator{
		pools:   make(map[string][]GlobalApiKey),
		mapping: make(map[string]providerEntry),
	}
}

// NextTargetIndex returns counter.fetch_add(1) mod numTargets for the given
// composite key, lazily initializing the counter to 0. Returns 0 if
// numTargets is 0.
func (r *Rotator) NextTargetIndex(compositeKey string, numTargets int) int {
	if numTargets == 0 {
		return 0
	}
	counterAny, _ := r.targetCounters.LoadOrStore(compositeKey, new(atomic.Uint64))
	counter := counterAny.(*atomic.Uint64)
	current := counter.Add(1) - 1
	return int(current % uint64(numTargets))
}

func mappingKey(compositeKey string, providerID int64) string {
	return fmt.Sprintf("%s:%d", compositeKey, providerID)
}

// UpdateProviderKeysEfficient implements the six-step contract: a provider's
// keys are written into the mapping only if they actually changed, and the
// composite key's global pool is rebuilt from the full mapping only when a
// write happened.
func (r *Rotator) UpdateProviderKeysEfficient(compositeKey string, providerID int64, baseURL, modelName string, newKeys []string) {
	// 1. provider_id == 0 is treated as absent; writing it is a no-op.
	if providerID == 0 {
		return
	}

	key := mappingKey(compositeKey, providerID)

	// 2-3. Decide needs-update under a read lock, released before comparison.
	r.mappingMu.RLock()
	existing, ok := r.mapping[key]
	r.mappingMu.RUnlock()

	needsUpdate := false
	switch {
	case !ok:
		needsUpdate = len(newKeys) > 0
	case len(newKeys) == 0:
		needsUpdate = true
	default:
		existingSorted := append([]string(nil), existing.keys...)
		sort.Strings(existingSorted)
		newSorted := append([]string(nil), newKeys...)
		sort.Strings(newSorted)
		needsUpdate = !equalStrings(existingSorted, newSorted) ||
			existing.baseURL != baseURL ||
			existing.modelName != modelName
	}

	// 4. No update needed: return without touching the write lock.
	if !needsUpdate {
		return
	}

	// 5. Acquire the write lock and either remove or insert.
	r.mappingMu.Lock()
	if len(newKeys) == 0 {
		delete(r.mapping, key)
	} else {
		sortedKeys := append([]string(nil), newKeys...)
		sort.Strings(sortedKeys)
		r.mapping[key] = providerEntry{keys: sortedKeys, baseURL: baseURL, modelName: modelName}
	}
	r.mappingMu.Unlock()

	// 6. Rebuild the global pool for this composite key from the mapping.
	r.rebuildGlobalPool(compositeKey)
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func (r *Rotator) rebuildGlobalPool(compositeKey string) {
	prefix := compositeKey + ":"

	r.mappingMu.RLock()
	var flat []GlobalApiKey
	for k, entry := range r.mapping {
		if !strings.HasPrefix(k, prefix) {
			continue
		}
		idStr := strings.TrimPrefix(k, prefix)
		providerID, err := strconv.ParseInt(idStr, 10, 64)
		if err != nil {
			continue
		}
		for _, keyStr := range entry.keys {
			flat = append(flat, GlobalApiKey{
				Key:        keyStr,
				ProviderID: providerID,
				BaseURL:    entry.baseURL,
				ModelName:  entry.modelName,
			})
		}
	}
	r.mappingMu.RUnlock()

	sort.Slice(flat, func(i, j int) bool { return flat[i].Key < flat[j].Key })

	r.poolsMu.Lock()
	r.pools[compositeKey] = flat
	r.poolsMu.Unlock()
}

// NextGlobalKey returns the next key in round-robin order from the
// composite key's pool, or false if the pool is empty or unknown.
func (r *Rotator) NextGlobalKey(compositeKey string) (GlobalApiKey, bool) {
	r.poolsMu.RLock()
	pool := r.pools[compositeKey]
	r.poolsMu.RUnlock()

	if len(pool) == 0 {
		return GlobalApiKey{}, false
	}

	counterAny, _ := r.keyCounters.LoadOrStore(compositeKey, new(atomic.Uint64))
	counter := counterAny.(*atomic.Uint64)
	current := counter.Add(1) - 1
	return pool[current%uint64(len(pool))], true
}

// PoolSize reports the current pool length for a composite key, mainly for
// diagnostics and tests.
func (r *Rotator) PoolSize(compositeKey string) int {
	r.poolsMu.RLock()
	defer r.poolsMu.RUnlock()
	return len(r.pools[compositeKey])
}

// CompositeKey builds the "<group>/<alias>" scope string used throughout
// the rotator's API.
func CompositeKey(group, alias string) string {
	if group == "" {
		group = "default"
	}
	return group + "/" + alias
}
