package query

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/bombeindex/bombe/internal/types"
)

// StructureFile groups a path prefix's ranked symbols by file for
// get_structure's tree rendering.
type StructureFile struct {
	FilePath string
	Symbols  []RankedSymbol
}

// RankedSymbol is one get_structure entry: a symbol plus its rank among
// all symbols under the requested prefix.
type RankedSymbol struct {
	Symbol types.Symbol
	Rank   int // 1-based, ordered by pagerank_score descending
	Top    bool
}

// StructureResult is the get_structure payload: the grouped tree plus the
// rendered text and whether packing stopped early on the token budget.
type StructureResult struct {
	Files        []StructureFile
	Rendered     string
	Truncated    bool
	TotalSymbols int
}

const topAnnotationCount = 10

// estimateTokens approximates token count the way the reference
// implementation does: ceil(len(text) / 3.5).
func estimateTokens(s string) int {
	return int(math.Ceil(float64(len(s)) / 3.5))
}

// GetStructure ranks every symbol under pathPrefix by PageRank score,
// groups them by file, and renders an indented tree annotating the top 10
// symbols with "[TOP]" and every symbol with a running "[rank:N]" marker.
// Rendering stops once tokenBudget would be exceeded.
func (e *Engine) GetStructure(ctx context.Context, pathPrefix string, tokenBudget int) (StructureResult, error) {
	tokenBudget = ClampTokenBudget(tokenBudget)

	symbols, err := e.Store.SymbolsUnderPrefix(ctx, pathPrefix)
	if err != nil {
		return StructureResult{}, err
	}

	byFile := map[string][]RankedSymbol{}
	var order []string
	for i, sym := range symbols {
		rank := i + 1
		if _, ok := byFile[sym.FilePath]; !ok {
			order = append(order, sym.FilePath)
		}
		byFile[sym.FilePath] = append(byFile[sym.FilePath], RankedSymbol{Symbol: sym, Rank: rank, Top: rank <= topAnnotationCount})
	}
	sort.Strings(order)

	result := StructureResult{TotalSymbols: len(symbols)}
	var b strings.Builder
	used := 0
	for _, filePath := range order {
		header := fmt.Sprintf("%s\n", filePath)
		headerTokens := estimateTokens(header)
		if used+headerTokens > tokenBudget {
			result.Truncated = true
			break
		}
		b.WriteString(header)
		used += headerTokens

		var kept []RankedSymbol
		for _, rs := range byFile[filePath] {
			line := renderSymbolLine(rs)
			lineTokens := estimateTokens(line)
			if used+lineTokens > tokenBudget {
				result.Truncated = true
				break
			}
			b.WriteString(line)
			used += lineTokens
			kept = append(kept, rs)
		}
		result.Files = append(result.Files, StructureFile{FilePath: filePath, Symbols: kept})
		if result.Truncated {
			break
		}
	}

	result.Rendered = b.String()
	return result, nil
}

func renderSymbolLine(rs RankedSymbol) string {
	marker := fmt.Sprintf("[rank:%d]", rs.Rank)
	if rs.Top {
		marker = "[TOP] " + marker
	}
	return fmt.Sprintf("  %s %s %s\n", rs.Symbol.Kind, rs.Symbol.Name, marker)
}
