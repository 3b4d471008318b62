package query

import (
	"context"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bombeindex/bombe/internal/pagerank"
	"github.com/bombeindex/bombe/internal/types"
)

// ContextReason explains why get_context included a given symbol.
type ContextReason string

const (
	ReasonSeed          ContextReason = "seed"
	ReasonGraphNeighbor ContextReason = "graph_neighbor"
	ReasonRankFallback  ContextReason = "rank_fallback"
)

// ContextItem is one packed get_context entry.
type ContextItem struct {
	Symbol   types.Symbol
	Depth    int
	Score    float64
	Reason   ContextReason
	Body     string
	FullBody bool // false when packed as signature-only to fit the budget
}

// ContextMetrics are the quality signals get_context reports alongside its
// packed items.
type ContextMetrics struct {
	SeedHitRate     float64
	Connectedness   float64
	TokenEfficiency float64
	AvgDepth        float64
	DedupeRatio     float64
}

// ContextResult is the full get_context payload.
type ContextResult struct {
	Items   []ContextItem
	Metrics ContextMetrics
}

var contextRelationships = []types.Relationship{
	types.RelCalls, types.RelImportsSymbol, types.RelExtends, types.RelImplements, types.RelHasMethod,
}

// proximityFor is the get_context depth-decay table.
func proximityFor(depth int) float64 {
	switch depth {
	case 0:
		return 1.0
	case 1:
		return 0.7
	case 2:
		return 0.4
	default:
		return 0.25
	}
}

// GetContext is the seven-step context-assembly algorithm: seed selection,
// undirected subgraph expansion, personalised PageRank, proximity- and
// lexically-boosted scoring, topology-first ordering, budget-aware
// packing, and quality-metric reporting. signaturesOnly skips the
// full-source read entirely, packing every item as a signature.
func (e *Engine) GetContext(ctx context.Context, query string, entryPoints []string, tokenBudget, expansionDepth int, signaturesOnly bool) (ContextResult, error) {
	query = ClampQuery(query)
	tokenBudget = ClampTokenBudget(tokenBudget)
	expansionDepth = ClampDepth(expansionDepth, MaxContextExpansion)

	seeds, err := e.selectContextSeeds(ctx, query, entryPoints)
	if err != nil {
		return ContextResult{}, err
	}
	if len(seeds) == 0 {
		return ContextResult{}, nil
	}

	depthOf, adjacency, err := e.expandContextSubgraph(ctx, seeds, expansionDepth)
	if err != nil {
		return ContextResult{}, err
	}

	graph := pagerank.Graph{Out: adjacency}
	for id := range adjacency {
		graph.Nodes = append(graph.Nodes, id)
	}
	seedIDs := make([]int64, 0, len(seeds))
	for _, s := range seeds {
		seedIDs = append(seedIDs, int64(s.ID))
	}
	ppr := pagerank.ComputePersonalised(graph, seedIDs)

	queryTokens := tokenize(query)
	seedSet := map[int64]bool{}
	for _, id := range seedIDs {
		seedSet[id] = true
	}

	type scored struct {
		sym    types.Symbol
		depth  int
		score  float64
		reason ContextReason
	}
	var candidates []scored
	for id := range depthOf {
		sym, ok, err := e.Store.GetSymbolByID(ctx, types.SymbolID(id))
		if err != nil {
			return ContextResult{}, err
		}
		if !ok {
			continue
		}
		depth := depthOf[id]
		prOut := math.Max(sym.PagerankScore, 1e-9)
		score := ppr[id] * prOut * proximityFor(depth)
		matches := termMatchCount(queryTokens, sym)
		score *= 1 + math.Min(0.25, 0.08*float64(matches))

		reason := ReasonGraphNeighbor
		if seedSet[id] {
			reason = ReasonSeed
		}
		candidates = append(candidates, scored{sym: sym, depth: depth, score: score, reason: reason})
	}

	// Pad thin context with top-PageRank symbols reachable by neither
	// seed nor subgraph expansion, so a sparse neighbourhood still fills
	// the budget.
	if len(candidates) < MaxContextSeeds {
		extras, err := e.Store.SymbolsUnderPrefix(ctx, "")
		if err != nil {
			return ContextResult{}, err
		}
		for _, sym := range extras {
			if _, ok := depthOf[int64(sym.ID)]; ok {
				continue
			}
			candidates = append(candidates, scored{sym: sym, depth: -1, score: sym.PagerankScore, reason: ReasonRankFallback})
			if len(candidates) >= MaxContextSeeds*2 {
				break
			}
		}
	}

	// Topology-first ordering: BFS depth ascending (seeds first, rank
	// fallback padding last), tie-broken by score descending.
	sort.SliceStable(candidates, func(i, j int) bool {
		di, dj := candidates[i].depth, candidates[j].depth
		if di < 0 {
			di = expansionDepth + 1
		}
		if dj < 0 {
			dj = expansionDepth + 1
		}
		if di != dj {
			return di < dj
		}
		return candidates[i].score > candidates[j].score
	})

	seen := map[string]bool{}
	var items []ContextItem
	used := 0
	dupSkipped := 0
	for _, c := range candidates {
		sigBody := renderSignatureBody(c.sym)
		key := fmt.Sprintf("%s|%s", c.sym.QualifiedName, c.sym.FilePath)
		if seen[key] {
			dupSkipped++
			continue
		}
		seen[key] = true

		if !signaturesOnly {
			if fullBody, ok := e.readFullBody(c.sym); ok {
				if t := estimateTokens(fullBody); used+t <= tokenBudget {
					items = append(items, ContextItem{Symbol: c.sym, Depth: c.depth, Score: c.score, Reason: c.reason, Body: fullBody, FullBody: true})
					used += t
					continue
				}
			}
		}
		if t := estimateTokens(sigBody); used+t <= tokenBudget {
			items = append(items, ContextItem{Symbol: c.sym, Depth: c.depth, Score: c.score, Reason: c.reason, Body: sigBody, FullBody: false})
			used += t
		}
	}

	metrics := computeContextMetrics(items, seedIDs, adjacency, used, tokenBudget, len(candidates), dupSkipped)
	return ContextResult{Items: items, Metrics: metrics}, nil
}

func (e *Engine) selectContextSeeds(ctx context.Context, query string, entryPoints []string) ([]types.Symbol, error) {
	var seeds []types.Symbol
	if len(entryPoints) > 0 {
		for _, ep := range entryPoints {
			sym, ok, err := e.Store.ResolveByNameOrQualified(ctx, ClampQuery(ep))
			if err != nil {
				return nil, err
			}
			if ok {
				seeds = append(seeds, sym)
			}
		}
	} else {
		hits, err := e.SearchSymbols(ctx, query, "", "", 8)
		if err != nil {
			return nil, err
		}
		for _, h := range hits {
			seeds = append(seeds, h.Symbol)
		}
	}
	if len(seeds) > MaxContextSeeds {
		seeds = seeds[:MaxContextSeeds]
	}
	return seeds, nil
}

// expandContextSubgraph runs an undirected BFS from every seed up to
// expansionDepth, returning each reached node's minimum depth and a
// symmetric adjacency map suitable for personalised PageRank.
func (e *Engine) expandContextSubgraph(ctx context.Context, seeds []types.Symbol, expansionDepth int) (map[int64]int, map[int64][]int64, error) {
	depthOf := map[int64]int{}
	adjacency := map[int64][]int64{}
	type frontierNode struct {
		id    int64
		depth int
	}
	var queue []frontierNode
	for _, s := range seeds {
		id := int64(s.ID)
		if _, seen := depthOf[id]; !seen {
			depthOf[id] = 0
			queue = append(queue, frontierNode{id: id, depth: 0})
		}
	}

	edgesCollected := 0
	addEdge := func(a, b int64) {
		adjacency[a] = append(adjacency[a], b)
		adjacency[b] = append(adjacency[b], a)
	}

	for len(queue) > 0 && len(depthOf) < MaxVisitedNodes {
		cur := queue[0]
		queue = queue[1:]
		if cur.depth >= expansionDepth {
			continue
		}
		out, err := e.Store.OutboundEdges(ctx, cur.id, contextRelationships)
		if err != nil {
			return nil, nil, err
		}
		in, err := e.Store.InboundEdges(ctx, cur.id, contextRelationships)
		if err != nil {
			return nil, nil, err
		}
		for _, n := range append(out, in...) {
			if edgesCollected >= MaxCollectedEdges {
				break
			}
			edgesCollected++
			addEdge(cur.id, n.NeighborID)
			if _, seen := depthOf[n.NeighborID]; !seen {
				depthOf[n.NeighborID] = cur.depth + 1
				queue = append(queue, frontierNode{id: n.NeighborID, depth: cur.depth + 1})
				if len(depthOf) >= MaxVisitedNodes {
					break
				}
			}
		}
	}

	// Ensure every reached node (even one with no outbound adjacency)
	// appears as a PageRank graph node.
	for id := range depthOf {
		if _, ok := adjacency[id]; !ok {
			adjacency[id] = nil
		}
	}
	return depthOf, adjacency, nil
}

func termMatchCount(queryTokens []string, sym types.Symbol) int {
	corpus := map[string]bool{}
	for _, t := range tokenize(sym.Name + " " + sym.QualifiedName + " " + sym.Signature + " " + sym.Docstring) {
		corpus[t] = true
	}
	count := 0
	for _, t := range queryTokens {
		if corpus[t] {
			count++
		}
	}
	return count
}

// readFullBody reads sym's source file under RepoRoot and slices
// [StartLine, EndLine] (1-indexed, inclusive), per get_context's
// full-body packing step. ok is false when RepoRoot is unset, the file
// can't be read, or the symbol's line range is out of bounds — the
// caller falls back to a signature-only body in that case.
func (e *Engine) readFullBody(sym types.Symbol) (string, bool) {
	if e.RepoRoot == "" || sym.StartLine <= 0 || sym.EndLine < sym.StartLine {
		return "", false
	}
	content, err := os.ReadFile(filepath.Join(e.RepoRoot, filepath.FromSlash(sym.FilePath)))
	if err != nil {
		return "", false
	}
	lines := strings.Split(string(content), "\n")
	if sym.StartLine > len(lines) {
		return "", false
	}
	end := sym.EndLine
	if end > len(lines) {
		end = len(lines)
	}
	return strings.Join(lines[sym.StartLine-1:end], "\n"), true
}

func renderSignatureBody(sym types.Symbol) string {
	if sym.Signature != "" {
		return fmt.Sprintf("%s %s", sym.Kind, sym.Signature)
	}
	return fmt.Sprintf("%s %s", sym.Kind, sym.QualifiedName)
}

func computeContextMetrics(items []ContextItem, seedIDs []int64, adjacency map[int64][]int64, used, tokenBudget, totalCandidates, dupSkipped int) ContextMetrics {
	emitted := map[int64]bool{}
	for _, it := range items {
		emitted[int64(it.Symbol.ID)] = true
	}

	seedHits := 0
	for _, id := range seedIDs {
		if emitted[id] {
			seedHits++
		}
	}
	seedHitRate := 0.0
	if len(seedIDs) > 0 {
		seedHitRate = float64(seedHits) / float64(len(seedIDs))
	}

	internalEdges := 0
	for id := range emitted {
		for _, n := range adjacency[id] {
			if emitted[n] {
				internalEdges++
			}
		}
	}
	connectedness := 0.0
	if len(emitted) > 0 {
		connectedness = float64(internalEdges) / float64(2*len(emitted))
	}

	tokenEfficiency := 0.0
	if tokenBudget > 0 {
		tokenEfficiency = float64(used) / float64(tokenBudget)
	}

	depthSum, depthCount := 0, 0
	for _, it := range items {
		if it.Reason != ReasonSeed && it.Depth >= 0 {
			depthSum += it.Depth
			depthCount++
		}
	}
	avgDepth := 0.0
	if depthCount > 0 {
		avgDepth = float64(depthSum) / float64(depthCount)
	}

	dedupeRatio := 0.0
	if totalCandidates > 0 {
		dedupeRatio = float64(dupSkipped) / float64(totalCandidates)
	}

	return ContextMetrics{
		SeedHitRate:     seedHitRate,
		Connectedness:   connectedness,
		TokenEfficiency: tokenEfficiency,
		AvgDepth:        avgDepth,
		DedupeRatio:     dedupeRatio,
	}
}
