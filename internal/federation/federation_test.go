package federation

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/bombeindex/bombe/internal/store"
)

func TestRepoIDIsStableAndSixteenHex(t *testing.T) {
	a := RepoID("/repos/svc-a")
	b := RepoID("/repos/svc-a")
	c := RepoID("/repos/svc-b")
	if a != b {
		t.Errorf("expected deterministic repo id, got %s vs %s", a, b)
	}
	if a == c {
		t.Errorf("expected distinct repos to get distinct ids")
	}
	if len(a) != 16 {
		t.Errorf("expected 16 hex chars, got %d (%s)", len(a), a)
	}
}

func TestGlobalSymbolURIFormat(t *testing.T) {
	u := GlobalSymbolURI{RepoID: "abc123", QualifiedName: "svc.Handler", FilePath: "svc/handler.go"}
	want := "bombe://abc123/svc.Handler#svc/handler.go"
	if got := u.String(); got != want {
		t.Errorf("expected %q, got %q", want, got)
	}
}

func TestRouteSymbolQueryFallsBackToAllEnabledShards(t *testing.T) {
	c := NewCatalog()
	c.RegisterShard(Shard{RepoID: "r1", Enabled: true})
	c.RegisterShard(Shard{RepoID: "r2", Enabled: true})
	c.RegisterShard(Shard{RepoID: "r3", Enabled: false})

	ids := c.RouteSymbolQuery("nonexistent.Symbol")
	if len(ids) != 2 {
		t.Fatalf("expected fallback to 2 enabled shards, got %v", ids)
	}

	c.RefreshExportedSymbols("r1", []ExportedSymbol{{Name: "Handler", RepoID: "r1"}})
	routed := c.RouteSymbolQuery("Handler")
	if len(routed) != 1 || routed[0] != "r1" {
		t.Fatalf("expected routed to r1 only, got %v", routed)
	}
}

func TestCrossRepoEdgeSkipsSelfRepo(t *testing.T) {
	c := NewCatalog()
	same := GlobalSymbolURI{RepoID: "r1"}
	c.AddCrossRepoEdge(CrossRepoEdge{Source: same, Target: same, Relationship: "IMPORTS"})
	if len(c.CrossRepoEdges()) != 0 {
		t.Errorf("expected self-repo edge to be skipped")
	}

	c.AddCrossRepoEdge(CrossRepoEdge{Source: GlobalSymbolURI{RepoID: "r1"}, Target: GlobalSymbolURI{RepoID: "r2"}, Relationship: "IMPORTS"})
	c.AddCrossRepoEdge(CrossRepoEdge{Source: GlobalSymbolURI{RepoID: "r1"}, Target: GlobalSymbolURI{RepoID: "r2"}, Relationship: "IMPORTS"})
	if len(c.CrossRepoEdges()) != 1 {
		t.Errorf("expected duplicate edge to be deduplicated, got %d", len(c.CrossRepoEdges()))
	}
}

func TestFederatedQueryPlannerStrategies(t *testing.T) {
	c := NewCatalog()
	c.RegisterShard(Shard{RepoID: "r1", Enabled: true})
	c.RegisterShard(Shard{RepoID: "r2", Enabled: true})
	p := NewFederatedQueryPlanner(c)

	search := p.Plan(KindSearch, "")
	if search.Strategy != FanOutAll || len(search.ShardIDs) != 2 {
		t.Errorf("expected search to fan out to all shards, got %+v", search)
	}

	c.RefreshExportedSymbols("r2", []ExportedSymbol{{Name: "Widget", RepoID: "r2"}})
	refs := p.Plan(KindReferences, "Widget")
	if refs.Strategy != FanOutRouted || len(refs.ShardIDs) != 1 || refs.ShardIDs[0] != "r2" {
		t.Errorf("expected references to route to r2 only, got %+v", refs)
	}
}

type fakeHit struct {
	score         float64
	qualifiedName string
	filePath      string
}

func (f fakeHit) RankScore() float64        { return f.score }
func (f fakeHit) SortKey() (string, string) { return f.qualifiedName, f.filePath }

func TestFederatedQueryExecutorMergesRanksAndCaps(t *testing.T) {
	ctx := context.Background()
	catalog := NewCatalog()
	for _, repoID := range []string{"r1", "r2"} {
		dbPath := filepath.Join(t.TempDir(), "bombe.db")
		s, err := store.Open(ctx, dbPath)
		if err != nil {
			t.Fatalf("open shard store: %v", err)
		}
		s.Close()
		catalog.RegisterShard(Shard{RepoID: repoID, DBPath: dbPath, Enabled: true})
	}

	router := NewShardRouter(catalog)
	t.Cleanup(router.Close)
	executor := NewFederatedQueryExecutor[fakeHit](router)

	plan := ShardQueryPlan{ShardIDs: []string{"r1", "r2"}, Strategy: FanOutAll}
	result := executor.Run(ctx, plan, func(ctx context.Context, shardID string, st *store.Store) ([]fakeHit, error) {
		if shardID == "r1" {
			return []fakeHit{{score: 0.9, qualifiedName: "a"}, {score: 0.2, qualifiedName: "b"}}, nil
		}
		return []fakeHit{{score: 0.95, qualifiedName: "c"}}, nil
	})

	if len(result.Reports) != 2 {
		t.Fatalf("expected 2 shard reports, got %d", len(result.Reports))
	}
	if result.ShardsQueried != 2 || result.ShardsFailed != 0 {
		t.Errorf("expected 2 queried/0 failed, got queried=%d failed=%d", result.ShardsQueried, result.ShardsFailed)
	}
	if len(result.Items) != 3 {
		t.Fatalf("expected 3 merged items, got %d", len(result.Items))
	}
	if result.Items[0].qualifiedName != "c" {
		t.Errorf("expected highest-score item c first, got %s", result.Items[0].qualifiedName)
	}

	executor.MergeCap = 2
	result2 := executor.Run(ctx, plan, func(ctx context.Context, shardID string, st *store.Store) ([]fakeHit, error) {
		return []fakeHit{{score: 0.5, qualifiedName: shardID}}, nil
	})
	if len(result2.Items) > 2 {
		t.Errorf("expected merge cap to bound result count to 2, got %d", len(result2.Items))
	}
}

func TestShardRouterEvictsLeastRecentlyUsed(t *testing.T) {
	ctx := context.Background()
	catalog := NewCatalog()
	for _, repoID := range []string{"r1", "r2", "r3"} {
		dbPath := filepath.Join(t.TempDir(), "bombe.db")
		s, err := store.Open(ctx, dbPath)
		if err != nil {
			t.Fatalf("open shard store: %v", err)
		}
		s.Close()
		catalog.RegisterShard(Shard{RepoID: repoID, DBPath: dbPath, Enabled: true})
	}

	router := NewShardRouter(catalog)
	router.PoolCap = 2
	t.Cleanup(router.Close)

	if _, err := router.Open(ctx, "r1"); err != nil {
		t.Fatalf("open r1: %v", err)
	}
	if _, err := router.Open(ctx, "r2"); err != nil {
		t.Fatalf("open r2: %v", err)
	}
	if _, err := router.Open(ctx, "r3"); err != nil {
		t.Fatalf("open r3: %v", err)
	}

	router.mu.Lock()
	defer router.mu.Unlock()
	if len(router.handles) != 2 {
		t.Errorf("expected pool capped at 2 handles, got %d", len(router.handles))
	}
	if _, ok := router.handles["r1"]; ok {
		t.Errorf("expected r1 (least recently used) to be evicted")
	}
}
