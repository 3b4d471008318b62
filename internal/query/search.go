package query

import (
	"context"
	"math"
	"sort"
	"strings"

	"github.com/bombeindex/bombe/internal/store"
	"github.com/bombeindex/bombe/internal/types"
)

// Engine bundles the store handle and runtime switches every query
// operation needs.
type Engine struct {
	Store   *store.Store
	Runtime types.RuntimeConfig

	// RepoRoot is the indexed repository's root on disk, joined with a
	// Symbol's (repo-relative) FilePath to read its full source body for
	// get_context. Empty disables full-body packing, falling back to
	// signature-only.
	RepoRoot string
}

// ScoredSymbol is one search_symbols result with its hybrid rank
// components broken out for debuggability.
type ScoredSymbol struct {
	Symbol     types.Symbol
	Score      float64
	Lexical    float64
	Structural float64
	Semantic   float64
}

// SearchSymbols merges FTS and LIKE candidates by symbol ID, scores each
// with the hybrid rank, and returns the top limit.
func (e *Engine) SearchSymbols(ctx context.Context, query, kind, filePattern string, limit int) ([]ScoredSymbol, error) {
	query = ClampQuery(query)
	limit = ClampLimit(limit)

	byID := map[int64]types.Symbol{}

	fts, err := e.Store.SearchFTS(ctx, query, kind, filePattern, limit*4)
	if err != nil {
		return nil, err
	}
	for _, s := range fts {
		byID[int64(s.ID)] = s
	}

	like, err := e.Store.SearchLike(ctx, query, kind, filePattern, limit*4)
	if err != nil {
		return nil, err
	}
	for _, s := range like {
		byID[int64(s.ID)] = s
	}

	queryTokens := tokenize(query)
	results := make([]ScoredSymbol, 0, len(byID))
	for _, sym := range byID {
		lexical := lexicalScore(query, queryTokens, sym)
		structural, err := e.structuralScore(ctx, sym)
		if err != nil {
			return nil, err
		}
		semantic := 0.0
		if e.Runtime.SemanticVectorsEnabled {
			semantic = semanticScore(queryTokens, sym)
		}

		var score float64
		if e.Runtime.HybridSearchEnabled {
			score = 0.55*lexical + 0.35*structural + 0.10*semantic
		} else {
			score = structural
		}
		results = append(results, ScoredSymbol{Symbol: sym, Score: score, Lexical: lexical, Structural: structural, Semantic: semantic})
	}

	sort.Slice(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		if results[i].Symbol.QualifiedName != results[j].Symbol.QualifiedName {
			return results[i].Symbol.QualifiedName < results[j].Symbol.QualifiedName
		}
		return results[i].Symbol.FilePath < results[j].Symbol.FilePath
	})
	if len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}

func (e *Engine) structuralScore(ctx context.Context, sym types.Symbol) (float64, error) {
	count, err := e.Store.CallerCalleeCount(ctx, int64(sym.ID))
	if err != nil {
		return 0, err
	}
	return sym.PagerankScore + 0.1*math.Log1p(float64(count)), nil
}

func lexicalScore(query string, queryTokens []string, sym types.Symbol) float64 {
	lowerQuery := strings.ToLower(query)
	name := strings.ToLower(sym.Name)
	qualified := strings.ToLower(sym.QualifiedName)

	switch {
	case name == lowerQuery:
		return 1.0
	case strings.Contains(name, lowerQuery):
		return 0.9
	case strings.Contains(qualified, lowerQuery):
		return 0.8
	default:
		return jaccard(queryTokens, tokenize(sym.QualifiedName))
	}
}

func semanticScore(queryTokens []string, sym types.Symbol) float64 {
	corpus := tokenize(sym.Signature + " " + sym.Docstring)
	return jaccard(queryTokens, corpus)
}

func tokenize(s string) []string {
	fields := strings.FieldsFunc(s, func(r rune) bool {
		return !(r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9')
	})
	for i, f := range fields {
		fields[i] = strings.ToLower(f)
	}
	return fields
}

func jaccard(a, b []string) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	setA := map[string]bool{}
	for _, t := range a {
		setA[t] = true
	}
	setB := map[string]bool{}
	for _, t := range b {
		setB[t] = true
	}
	intersection := 0
	for t := range setA {
		if setB[t] {
			intersection++
		}
	}
	union := len(setA) + len(setB) - intersection
	if union == 0 {
		return 0
	}
	return float64(intersection) / float64(union)
}
