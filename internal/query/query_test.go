package query

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/bombeindex/bombe/internal/store"
	"github.com/bombeindex/bombe/internal/types"
)

func openTestStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.Open(context.Background(), filepath.Join(t.TempDir(), "bombe.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// seedChain builds alpha -> beta -> gamma, all in graph.py, with gamma
// given the highest PageRank score (as if many other callers pointed at
// it), mirroring the call chain used to exercise get_context.
func seedChain(t *testing.T, s *store.Store) (alpha, beta, gamma types.SymbolID) {
	t.Helper()
	ctx := context.Background()
	if err := s.UpsertFile(ctx, types.File{Path: "svc/graph.py", Language: types.LanguagePython, ContentHash: "h", LastIndexedAt: 1}); err != nil {
		t.Fatalf("upsert file: %v", err)
	}
	ids, err := s.ReplaceFileSymbols(ctx, "svc/graph.py", []types.Symbol{
		{Name: "alpha", QualifiedName: "svc.alpha", Kind: types.KindFunction, FilePath: "svc/graph.py", StartLine: 1, EndLine: 3, Signature: "alpha()", PagerankScore: 0.1},
		{Name: "beta", QualifiedName: "svc.beta", Kind: types.KindFunction, FilePath: "svc/graph.py", StartLine: 5, EndLine: 7, Signature: "beta()", PagerankScore: 0.3},
		{Name: "gamma", QualifiedName: "svc.gamma", Kind: types.KindFunction, FilePath: "svc/graph.py", StartLine: 9, EndLine: 11, Signature: "gamma()", PagerankScore: 0.6},
	})
	if err != nil {
		t.Fatalf("replace symbols: %v", err)
	}
	alpha, beta, gamma = ids[0], ids[1], ids[2]

	edges := []types.Edge{
		{SourceID: int64(alpha), TargetID: int64(beta), SourceType: types.EndpointSymbol, TargetType: types.EndpointSymbol,
			Relationship: types.RelCalls, FilePath: "svc/graph.py", LineNumber: 2, Confidence: 1.0},
		{SourceID: int64(beta), TargetID: int64(gamma), SourceType: types.EndpointSymbol, TargetType: types.EndpointSymbol,
			Relationship: types.RelCalls, FilePath: "svc/graph.py", LineNumber: 6, Confidence: 1.0},
	}
	if err := s.ReplaceFileEdges(ctx, "svc/graph.py", edges); err != nil {
		t.Fatalf("replace edges: %v", err)
	}
	return alpha, beta, gamma
}

func TestSearchSymbolsRanksExactNameMatchFirst(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)
	seedChain(t, s)

	e := &Engine{Store: s, Runtime: types.DefaultRuntimeConfig()}
	results, err := e.SearchSymbols(ctx, "gamma", "", "", 10)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(results) == 0 {
		t.Fatalf("expected at least one result")
	}
	if results[0].Symbol.Name != "gamma" {
		t.Fatalf("expected gamma ranked first, got %s", results[0].Symbol.Name)
	}
}

func TestGetReferencesCallersAndCallees(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)
	seedChain(t, s)
	e := &Engine{Store: s, Runtime: types.DefaultRuntimeConfig()}

	callees, err := e.GetReferences(ctx, "svc.alpha", DirCallees, 2, false)
	if err != nil {
		t.Fatalf("get_references callees: %v", err)
	}
	if len(callees) != 2 {
		t.Fatalf("expected beta and gamma reachable within depth 2, got %+v", callees)
	}

	callers, err := e.GetReferences(ctx, "svc.gamma", DirCallers, 2, false)
	if err != nil {
		t.Fatalf("get_references callers: %v", err)
	}
	if len(callers) != 2 {
		t.Fatalf("expected alpha and beta reachable as callers within depth 2, got %+v", callers)
	}
}

func TestGetBlastRadiusClassifiesDirectAndTransitive(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)
	seedChain(t, s)
	e := &Engine{Store: s, Runtime: types.DefaultRuntimeConfig()}

	radius, err := e.GetBlastRadius(ctx, "svc.gamma", 6)
	if err != nil {
		t.Fatalf("get_blast_radius: %v", err)
	}
	if len(radius.Direct) != 1 || radius.Direct[0].Name != "beta" {
		t.Fatalf("expected beta as the sole direct caller of gamma, got %+v", radius.Direct)
	}
	if len(radius.Transitive) != 1 || radius.Transitive[0].Name != "alpha" {
		t.Fatalf("expected alpha as a transitive caller of gamma, got %+v", radius.Transitive)
	}
	if radius.Risk != RiskLow {
		t.Fatalf("expected low risk with only two affected callers, got %s", radius.Risk)
	}
}

func TestTraceDataFlowCoversBothDirections(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)
	seedChain(t, s)
	e := &Engine{Store: s, Runtime: types.DefaultRuntimeConfig()}

	symbols, paths, err := e.TraceDataFlow(ctx, "svc.beta", 6)
	if err != nil {
		t.Fatalf("trace_data_flow: %v", err)
	}
	if len(symbols) != 3 {
		t.Fatalf("expected alpha, beta, gamma all reached from beta, got %+v", symbols)
	}
	if len(paths) != 2 {
		t.Fatalf("expected exactly two hops (alpha->beta, beta->gamma), got %+v", paths)
	}
}

func TestChangeImpactIncludesTypeDependents(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)
	_, _, gamma := seedChain(t, s)

	if err := s.UpsertFile(ctx, types.File{Path: "svc/impl.py", Language: types.LanguagePython, ContentHash: "h2", LastIndexedAt: 1}); err != nil {
		t.Fatalf("upsert file: %v", err)
	}
	ids, err := s.ReplaceFileSymbols(ctx, "svc/impl.py", []types.Symbol{
		{Name: "GammaImpl", QualifiedName: "svc.GammaImpl", Kind: types.KindClass, FilePath: "svc/impl.py", StartLine: 1, EndLine: 5},
	})
	if err != nil {
		t.Fatalf("replace symbols: %v", err)
	}
	if err := s.ReplaceFileEdges(ctx, "svc/impl.py", []types.Edge{
		{SourceID: int64(ids[0]), TargetID: int64(gamma), SourceType: types.EndpointSymbol, TargetType: types.EndpointSymbol,
			Relationship: types.RelImplements, FilePath: "svc/impl.py", LineNumber: 1, Confidence: 1.0},
	}); err != nil {
		t.Fatalf("replace edges: %v", err)
	}

	e := &Engine{Store: s, Runtime: types.DefaultRuntimeConfig()}
	impact, err := e.ChangeImpactOf(ctx, "svc.gamma", 6)
	if err != nil {
		t.Fatalf("change_impact: %v", err)
	}
	if len(impact.TypeDependents) != 1 || impact.TypeDependents[0].Name != "GammaImpl" {
		t.Fatalf("expected GammaImpl as a type dependent of gamma, got %+v", impact.TypeDependents)
	}
	if impact.Risk == "" {
		t.Fatalf("expected a risk classification")
	}
}

func TestGetStructureRendersTopAnnotationAndRanks(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)
	seedChain(t, s)
	e := &Engine{Store: s, Runtime: types.DefaultRuntimeConfig()}

	result, err := e.GetStructure(ctx, "svc/", 32000)
	if err != nil {
		t.Fatalf("get_structure: %v", err)
	}
	if result.TotalSymbols != 3 {
		t.Fatalf("expected three symbols under svc/, got %d", result.TotalSymbols)
	}
	if len(result.Files) != 1 || result.Files[0].FilePath != "svc/graph.py" {
		t.Fatalf("expected symbols grouped under svc/graph.py, got %+v", result.Files)
	}
	// Highest PageRank (gamma) must be ranked first and marked [TOP].
	first := result.Files[0].Symbols[0]
	if first.Symbol.Name != "gamma" || !first.Top {
		t.Fatalf("expected gamma ranked first and marked top, got %+v", first)
	}
}

func TestGetContextIncludesNearSeedsAndReportsConnectedness(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)
	seedChain(t, s)
	e := &Engine{Store: s, Runtime: types.DefaultRuntimeConfig()}

	result, err := e.GetContext(ctx, "graph flow", []string{"svc.alpha"}, 2000, 2, false)
	if err != nil {
		t.Fatalf("get_context: %v", err)
	}
	if len(result.Items) == 0 {
		t.Fatalf("expected at least one packed item")
	}

	var sawAlpha, sawBeta bool
	for _, item := range result.Items {
		switch item.Symbol.Name {
		case "alpha":
			sawAlpha = true
		case "beta":
			sawBeta = true
		}
	}
	if !sawAlpha {
		t.Fatalf("expected seed alpha present in packed context, got %+v", result.Items)
	}
	if !sawBeta {
		t.Fatalf("expected one-hop neighbour beta present in packed context, got %+v", result.Items)
	}
	if result.Metrics.SeedHitRate != 1.0 {
		t.Fatalf("expected full seed hit rate, got %f", result.Metrics.SeedHitRate)
	}
	if result.Metrics.Connectedness <= 0 {
		t.Fatalf("expected positive connectedness for a connected chain, got %f", result.Metrics.Connectedness)
	}
}

func TestGetContextPacksFullSourceBodyUnderRepoRoot(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)
	seedChain(t, s)

	root := t.TempDir()
	// Lines 1-3 match alpha's StartLine/EndLine from seedChain.
	source := "def alpha():\n    return 1\n# end alpha\n\ndef beta():\n    return alpha() + 1\n"
	if err := os.MkdirAll(filepath.Join(root, "svc"), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(filepath.Join(root, "svc", "graph.py"), []byte(source), 0o644); err != nil {
		t.Fatalf("write source: %v", err)
	}

	e := &Engine{Store: s, Runtime: types.DefaultRuntimeConfig(), RepoRoot: root}
	result, err := e.GetContext(ctx, "graph flow", []string{"svc.alpha"}, 2000, 2, false)
	if err != nil {
		t.Fatalf("get_context: %v", err)
	}

	var alphaItem *ContextItem
	for i := range result.Items {
		if result.Items[i].Symbol.Name == "alpha" {
			alphaItem = &result.Items[i]
		}
	}
	if alphaItem == nil {
		t.Fatalf("expected alpha in packed context, got %+v", result.Items)
	}
	if !alphaItem.FullBody {
		t.Fatalf("expected alpha packed with its full source body, got %+v", alphaItem)
	}
	if alphaItem.Body != "def alpha():\n    return 1\n# end alpha" {
		t.Fatalf("expected alpha's body sliced to [1,3], got %q", alphaItem.Body)
	}
}

func TestGetContextSignaturesOnlySkipsSourceRead(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)
	seedChain(t, s)

	root := t.TempDir()
	if err := os.MkdirAll(filepath.Join(root, "svc"), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(filepath.Join(root, "svc", "graph.py"), []byte("def alpha():\n    return 1\n"), 0o644); err != nil {
		t.Fatalf("write source: %v", err)
	}

	e := &Engine{Store: s, Runtime: types.DefaultRuntimeConfig(), RepoRoot: root}
	result, err := e.GetContext(ctx, "graph flow", []string{"svc.alpha"}, 2000, 2, true)
	if err != nil {
		t.Fatalf("get_context: %v", err)
	}
	for _, item := range result.Items {
		if item.FullBody {
			t.Fatalf("expected every item packed signature-only, got %+v", item)
		}
	}
}

func TestQueryPlannerCachesByKey(t *testing.T) {
	calls := 0
	p := NewQueryPlanner(time.Minute, 16)
	compute := func() (any, error) {
		calls++
		return calls, nil
	}

	_, outcome1, _, err := p.Run("search:foo", compute)
	if err != nil {
		t.Fatalf("run 1: %v", err)
	}
	if outcome1 != CacheMiss {
		t.Fatalf("expected first run to miss, got %v", outcome1)
	}

	_, outcome2, _, err := p.Run("search:foo", compute)
	if err != nil {
		t.Fatalf("run 2: %v", err)
	}
	if outcome2 != CacheHit {
		t.Fatalf("expected second run to hit cache, got %v", outcome2)
	}
	if calls != 1 {
		t.Fatalf("expected compute to run exactly once, got %d", calls)
	}
}

func TestGuardrailsClampDepthAndBudget(t *testing.T) {
	if got := ClampDepth(0, MaxReferenceDepth); got != 1 {
		t.Fatalf("expected depth floor of 1, got %d", got)
	}
	if got := ClampDepth(99, MaxReferenceDepth); got != MaxReferenceDepth {
		t.Fatalf("expected depth capped at %d, got %d", MaxReferenceDepth, got)
	}
	if got := ClampTokenBudget(-5); got != MinContextBudget {
		t.Fatalf("expected budget floor, got %d", got)
	}
	if got := ClampTokenBudget(1_000_000); got != MaxContextBudget {
		t.Fatalf("expected budget cap, got %d", got)
	}
}
