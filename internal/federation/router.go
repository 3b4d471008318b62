package federation

import (
	"context"
	"fmt"
	"sync"

	"github.com/bombeindex/bombe/internal/store"
)

// DefaultPoolCap bounds how many shard store handles ShardRouter keeps
// open concurrently.
const DefaultPoolCap = 16

// ShardRouter opens shard database handles lazily and evicts the
// least-recently-used handle once the pool cap is reached, the same
// bounded-handle-cache shape the query planner's LRU uses for cached
// results, applied here to live *store.Store connections instead.
type ShardRouter struct {
	Catalog *Catalog
	PoolCap int

	mu      sync.Mutex
	handles map[string]*store.Store
	order   []string // most-recently-used at the end
	health  map[string]string
}

// NewShardRouter builds a router bound to catalog with the default pool
// cap.
func NewShardRouter(catalog *Catalog) *ShardRouter {
	return &ShardRouter{
		Catalog: catalog, PoolCap: DefaultPoolCap,
		handles: map[string]*store.Store{}, health: map[string]string{},
	}
}

// Open returns an open *store.Store for repoID, opening and caching it
// on first use. Health is recorded as "ok" on success, "unreachable" on
// failure.
func (r *ShardRouter) Open(ctx context.Context, repoID string) (*store.Store, error) {
	r.mu.Lock()
	if s, ok := r.handles[repoID]; ok {
		r.touch(repoID)
		r.mu.Unlock()
		return s, nil
	}
	r.mu.Unlock()

	shards := r.Catalog.Shards()
	var dbPath string
	found := false
	for _, s := range shards {
		if s.RepoID == repoID {
			dbPath, found = s.DBPath, true
			break
		}
	}
	if !found {
		return nil, fmt.Errorf("federation: unknown shard %s", repoID)
	}

	s, err := store.Open(ctx, dbPath)
	if err != nil {
		r.mu.Lock()
		r.health[repoID] = "unreachable"
		r.mu.Unlock()
		return nil, fmt.Errorf("federation: open shard %s: %w", repoID, err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.evictIfFull()
	r.handles[repoID] = s
	r.order = append(r.order, repoID)
	r.health[repoID] = "ok"
	return s, nil
}

// touch moves repoID to the most-recently-used end. Caller holds mu.
func (r *ShardRouter) touch(repoID string) {
	for i, id := range r.order {
		if id == repoID {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	r.order = append(r.order, repoID)
}

// evictIfFull closes and drops the least-recently-used handle when the
// pool is at capacity. Caller holds mu.
func (r *ShardRouter) evictIfFull() {
	poolCap := r.PoolCap
	if poolCap <= 0 {
		poolCap = DefaultPoolCap
	}
	if len(r.handles) < poolCap {
		return
	}
	victim := r.order[0]
	r.order = r.order[1:]
	if s, ok := r.handles[victim]; ok {
		s.Close()
		delete(r.handles, victim)
	}
}

// AllShardIDs returns every registered shard's repo_id, enabled or not.
func (r *ShardRouter) AllShardIDs() []string {
	var ids []string
	for _, s := range r.Catalog.Shards() {
		ids = append(ids, s.RepoID)
	}
	return ids
}

// ShardHealth reports the last-observed open status per shard this
// router has touched.
func (r *ShardRouter) ShardHealth() map[string]string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[string]string, len(r.health))
	for k, v := range r.health {
		out[k] = v
	}
	return out
}

// Close closes every cached shard handle.
func (r *ShardRouter) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range r.handles {
		s.Close()
	}
	r.handles = map[string]*store.Store{}
	r.order = nil
}
