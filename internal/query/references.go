package query

import (
	"context"
	"fmt"

	"github.com/bombeindex/bombe/internal/types"
)

// Direction selects which edges get_references walks.
type Direction string

const (
	DirCallers      Direction = "callers"
	DirCallees      Direction = "callees"
	DirBoth         Direction = "both"
	DirImplementors Direction = "implementors"
	DirSupers       Direction = "supers"
)

// Reference is one get_references hit.
type Reference struct {
	Symbol          types.Symbol
	Depth           int
	Line            int
	ReferenceReason string
	SourceFragment  string
}

// GetReferences resolves query to a symbol then BFS's up to depth hops
// following CALLS (or IMPLEMENTS/EXTENDS for the type-hierarchy
// directions), in the requested direction.
func (e *Engine) GetReferences(ctx context.Context, query string, direction Direction, depth int, includeSource bool) ([]Reference, error) {
	query = ClampQuery(query)
	depth = ClampDepth(depth, MaxReferenceDepth)

	root, ok, err := e.Store.ResolveByNameOrQualified(ctx, query)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}

	relationships, bfsDir := referencesEdgeSet(direction)
	nodes, err := boundedBFS(ctx, e.Store, int64(root.ID), bfsDir, relationships, depth)
	if err != nil {
		return nil, err
	}

	var refs []Reference
	for _, n := range nodes {
		if n.depth == 0 {
			continue // root itself is not a reference to itself
		}
		sym, ok, err := e.Store.GetSymbolByID(ctx, types.SymbolID(n.id))
		if err != nil {
			return nil, err
		}
		if !ok {
			continue // dangling edge target; queries must not raise
		}
		ref := Reference{
			Symbol: sym, Depth: n.depth, Line: n.lineNumber,
			ReferenceReason: referenceReason(direction, n.relationship, n.depth),
		}
		if includeSource {
			ref.SourceFragment = fmt.Sprintf("%s:%d-%d", sym.FilePath, sym.StartLine, sym.EndLine)
		}
		refs = append(refs, ref)
	}
	return refs, nil
}

func referencesEdgeSet(direction Direction) ([]types.Relationship, bfsDirection) {
	switch direction {
	case DirCallers:
		return []types.Relationship{types.RelCalls}, dirInbound
	case DirImplementors:
		return []types.Relationship{types.RelImplements}, dirInbound
	case DirSupers:
		return []types.Relationship{types.RelExtends, types.RelImplements}, dirOutbound
	case DirBoth:
		return []types.Relationship{types.RelCalls}, dirOutbound // both directions merged by caller when needed
	default: // callees
		return []types.Relationship{types.RelCalls}, dirOutbound
	}
}

func referenceReason(direction Direction, rel types.Relationship, depth int) string {
	switch direction {
	case DirCallers:
		return fmt.Sprintf("called by, %d hop(s) away via %s", depth, rel)
	case DirImplementors:
		return fmt.Sprintf("implements, %d hop(s) away", depth)
	case DirSupers:
		return fmt.Sprintf("extends/implements, %d hop(s) away", depth)
	default:
		return fmt.Sprintf("calls, %d hop(s) away via %s", depth, rel)
	}
}

// RiskLevel classifies blast-radius / change-impact severity.
type RiskLevel string

const (
	RiskHigh   RiskLevel = "high"
	RiskMedium RiskLevel = "medium"
	RiskLow    RiskLevel = "low"
)

func classifyRisk(affectedCount int) RiskLevel {
	switch {
	case affectedCount >= 10:
		return RiskHigh
	case affectedCount >= 3:
		return RiskMedium
	default:
		return RiskLow
	}
}

// BlastRadius is the result of get_blast_radius.
type BlastRadius struct {
	Direct        []types.Symbol
	Transitive    []types.Symbol
	AffectedFiles []string
	Risk          RiskLevel
}

// GetBlastRadius runs a BFS over inbound CALLS edges, classifying
// depth-1 hits as direct and depth>1 as transitive.
func (e *Engine) GetBlastRadius(ctx context.Context, query string, maxDepth int) (BlastRadius, error) {
	query = ClampQuery(query)
	maxDepth = ClampDepth(maxDepth, MaxImpactDepth)

	root, ok, err := e.Store.ResolveByNameOrQualified(ctx, query)
	if err != nil || !ok {
		return BlastRadius{}, err
	}

	nodes, err := boundedBFS(ctx, e.Store, int64(root.ID), dirInbound, []types.Relationship{types.RelCalls}, maxDepth)
	if err != nil {
		return BlastRadius{}, err
	}

	var result BlastRadius
	fileSet := map[string]bool{}
	for _, n := range nodes {
		if n.depth == 0 {
			continue
		}
		sym, ok, err := e.Store.GetSymbolByID(ctx, types.SymbolID(n.id))
		if err != nil {
			return BlastRadius{}, err
		}
		if !ok {
			continue
		}
		fileSet[sym.FilePath] = true
		if n.depth == 1 {
			result.Direct = append(result.Direct, sym)
		} else {
			result.Transitive = append(result.Transitive, sym)
		}
	}
	for f := range fileSet {
		result.AffectedFiles = append(result.AffectedFiles, f)
	}
	result.Risk = classifyRisk(len(result.Direct) + len(result.Transitive))
	return result, nil
}

// FlowPath is one hop in a trace_data_flow result.
type FlowPath struct {
	From, To     types.SymbolID
	Line         int
	Depth        int
	Relationship types.Relationship
}

// TraceDataFlow runs a bidirectional BFS over CALLS from query, producing
// the reached node set and a deterministically-sorted path list.
func (e *Engine) TraceDataFlow(ctx context.Context, query string, maxDepth int) ([]types.Symbol, []FlowPath, error) {
	query = ClampQuery(query)
	maxDepth = ClampDepth(maxDepth, MaxFlowDepth)

	root, ok, err := e.Store.ResolveByNameOrQualified(ctx, query)
	if err != nil || !ok {
		return nil, nil, err
	}

	outbound, err := boundedBFS(ctx, e.Store, int64(root.ID), dirOutbound, []types.Relationship{types.RelCalls}, maxDepth)
	if err != nil {
		return nil, nil, err
	}
	inbound, err := boundedBFS(ctx, e.Store, int64(root.ID), dirInbound, []types.Relationship{types.RelCalls}, maxDepth)
	if err != nil {
		return nil, nil, err
	}

	seenNodes := map[int64]bool{}
	var symbols []types.Symbol
	var paths []FlowPath

	collect := func(nodes []visitedNode, outboundDirection bool) error {
		for _, n := range nodes {
			if !seenNodes[n.id] {
				seenNodes[n.id] = true
				sym, ok, err := e.Store.GetSymbolByID(ctx, types.SymbolID(n.id))
				if err != nil {
					return err
				}
				if ok {
					symbols = append(symbols, sym)
				}
			}
			if n.depth == 0 {
				continue
			}
			from, to := n.parentID, n.id
			if !outboundDirection {
				from, to = n.id, n.parentID
			}
			paths = append(paths, FlowPath{From: types.SymbolID(from), To: types.SymbolID(to), Line: n.lineNumber, Depth: n.depth, Relationship: n.relationship})
		}
		return nil
	}
	if err := collect(outbound, true); err != nil {
		return nil, nil, err
	}
	if err := collect(inbound, false); err != nil {
		return nil, nil, err
	}

	sortFlowPaths(paths)
	return symbols, paths, nil
}

func sortFlowPaths(paths []FlowPath) {
	for i := 1; i < len(paths); i++ {
		for j := i; j > 0 && flowLess(paths[j], paths[j-1]); j-- {
			paths[j], paths[j-1] = paths[j-1], paths[j]
		}
	}
}

func flowLess(a, b FlowPath) bool {
	if a.Depth != b.Depth {
		return a.Depth < b.Depth
	}
	if a.Line != b.Line {
		return a.Line < b.Line
	}
	return a.From < b.From
}

// ChangeImpact is the get_change_impact/change_impact result: a superset
// of blast radius plus one-hop type dependents.
type ChangeImpact struct {
	BlastRadius
	TypeDependents []types.Symbol
}

// ChangeImpactOf computes BlastRadius plus one-hop inbound
// EXTENDS/IMPLEMENTS dependents, with risk reconsidering both sets.
func (e *Engine) ChangeImpactOf(ctx context.Context, query string, maxDepth int) (ChangeImpact, error) {
	blast, err := e.GetBlastRadius(ctx, query, maxDepth)
	if err != nil {
		return ChangeImpact{}, err
	}
	root, ok, err := e.Store.ResolveByNameOrQualified(ctx, ClampQuery(query))
	if err != nil || !ok {
		return ChangeImpact{BlastRadius: blast}, err
	}

	neighbors, err := e.Store.InboundEdges(ctx, int64(root.ID), []types.Relationship{types.RelExtends, types.RelImplements})
	if err != nil {
		return ChangeImpact{}, err
	}
	var typeDeps []types.Symbol
	for _, n := range neighbors {
		sym, ok, err := e.Store.GetSymbolByID(ctx, types.SymbolID(n.NeighborID))
		if err != nil {
			return ChangeImpact{}, err
		}
		if ok {
			typeDeps = append(typeDeps, sym)
		}
	}

	impact := ChangeImpact{BlastRadius: blast, TypeDependents: typeDeps}
	impact.Risk = classifyRisk(len(blast.Direct) + len(blast.Transitive) + len(typeDeps))
	return impact, nil
}
