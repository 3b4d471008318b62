package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/bombeindex/bombe/internal/query"
	"github.com/bombeindex/bombe/internal/types"
)

// symbolView is the wire shape every handler renders a types.Symbol as:
// the fields a caller needs to act on a hit, not the full row.
type symbolView struct {
	Name          string `json:"name"`
	QualifiedName string `json:"qualified_name"`
	Kind          string `json:"kind"`
	FilePath      string `json:"file_path"`
	StartLine     int    `json:"start_line"`
	EndLine       int    `json:"end_line"`
	Signature     string `json:"signature,omitempty"`
}

func viewOf(sym types.Symbol) symbolView {
	return symbolView{
		Name: sym.Name, QualifiedName: sym.QualifiedName, Kind: string(sym.Kind),
		FilePath: sym.FilePath, StartLine: sym.StartLine, EndLine: sym.EndLine, Signature: sym.Signature,
	}
}

func viewsOf(syms []types.Symbol) []symbolView {
	views := make([]symbolView, len(syms))
	for i, s := range syms {
		views[i] = viewOf(s)
	}
	return views
}

type searchSymbolsResponse struct {
	Results  []searchHit    `json:"results"`
	Count    int            `json:"count"`
	Warnings []UnknownField `json:"warnings,omitempty"`
}

type searchHit struct {
	Symbol     symbolView `json:"symbol"`
	Score      float64    `json:"score"`
	Lexical    float64    `json:"lexical"`
	Structural float64    `json:"structural"`
	Semantic   float64    `json:"semantic"`
}

func (r searchSymbolsResponse) ResultCount() (int, bool) { return r.Count, false }

func (s *Server) handleSearchSymbols(ctx context.Context, args json.RawMessage) (interface{}, error) {
	var p SearchParams
	if err := decodeParams(args, &p); err != nil {
		return nil, err
	}
	if p.Query == "" {
		return nil, fmt.Errorf("query is required")
	}
	scored, err := s.Engine.SearchSymbols(ctx, p.Query, p.Kind, p.FilePattern, p.Max)
	if err != nil {
		return nil, fmt.Errorf("search_symbols: %w", err)
	}
	hits := make([]searchHit, len(scored))
	for i, sc := range scored {
		hits[i] = searchHit{Symbol: viewOf(sc.Symbol), Score: sc.Score, Lexical: sc.Lexical, Structural: sc.Structural, Semantic: sc.Semantic}
	}
	return searchSymbolsResponse{Results: hits, Count: len(hits), Warnings: p.Warnings}, nil
}

type referenceView struct {
	Symbol         symbolView `json:"symbol"`
	Depth          int        `json:"depth"`
	Line           int        `json:"line"`
	Reason         string     `json:"reason"`
	SourceFragment string     `json:"source_fragment,omitempty"`
}

type referencesResponse struct {
	References []referenceView `json:"references"`
	Count      int             `json:"count"`
}

func (r referencesResponse) ResultCount() (int, bool) { return r.Count, false }

func (s *Server) handleGetReferences(ctx context.Context, args json.RawMessage) (interface{}, error) {
	var p ReferencesParams
	if err := decodeParams(args, &p); err != nil {
		return nil, err
	}
	if p.Symbol == "" {
		return nil, fmt.Errorf("symbol is required")
	}
	direction := query.Direction(p.Direction)
	if direction == "" {
		direction = query.DirCallers
	}
	refs, err := s.Engine.GetReferences(ctx, p.Symbol, direction, p.Depth, p.IncludeSource)
	if err != nil {
		return nil, fmt.Errorf("get_references: %w", err)
	}
	views := make([]referenceView, len(refs))
	for i, r := range refs {
		views[i] = referenceView{Symbol: viewOf(r.Symbol), Depth: r.Depth, Line: r.Line, Reason: r.ReferenceReason, SourceFragment: r.SourceFragment}
	}
	return referencesResponse{References: views, Count: len(views)}, nil
}

type structureResponse struct {
	Rendered     string `json:"rendered"`
	TotalSymbols int    `json:"total_symbols"`
	Truncated    bool   `json:"truncated"`
}

func (r structureResponse) ResultCount() (int, bool) { return r.TotalSymbols, r.Truncated }

func (s *Server) handleGetStructure(ctx context.Context, args json.RawMessage) (interface{}, error) {
	var p StructureParams
	if err := decodeParams(args, &p); err != nil {
		return nil, err
	}
	result, err := s.Engine.GetStructure(ctx, p.PathPrefix, p.TokenBudget)
	if err != nil {
		return nil, fmt.Errorf("get_structure: %w", err)
	}
	return structureResponse{Rendered: result.Rendered, TotalSymbols: result.TotalSymbols, Truncated: result.Truncated}, nil
}

type blastRadiusResponse struct {
	Direct        []symbolView `json:"direct"`
	Transitive    []symbolView `json:"transitive"`
	AffectedFiles []string     `json:"affected_files"`
	Risk          string       `json:"risk"`
}

func (r blastRadiusResponse) ResultCount() (int, bool) {
	return len(r.Direct) + len(r.Transitive), false
}

func (s *Server) handleGetBlastRadius(ctx context.Context, args json.RawMessage) (interface{}, error) {
	var p BlastRadiusParams
	if err := decodeParams(args, &p); err != nil {
		return nil, err
	}
	if p.Symbol == "" {
		return nil, fmt.Errorf("symbol is required")
	}
	blast, err := s.Engine.GetBlastRadius(ctx, p.Symbol, p.MaxDepth)
	if err != nil {
		return nil, fmt.Errorf("get_blast_radius: %w", err)
	}
	return blastRadiusResponse{
		Direct: viewsOf(blast.Direct), Transitive: viewsOf(blast.Transitive),
		AffectedFiles: blast.AffectedFiles, Risk: string(blast.Risk),
	}, nil
}

type flowPathView struct {
	From         string `json:"from"`
	To           string `json:"to"`
	Line         int    `json:"line"`
	Depth        int    `json:"depth"`
	Relationship string `json:"relationship"`
}

type dataFlowResponse struct {
	Symbols []symbolView   `json:"symbols"`
	Paths   []flowPathView `json:"paths"`
}

func (r dataFlowResponse) ResultCount() (int, bool) { return len(r.Symbols), false }

func (s *Server) handleTraceDataFlow(ctx context.Context, args json.RawMessage) (interface{}, error) {
	var p DataFlowParams
	if err := decodeParams(args, &p); err != nil {
		return nil, err
	}
	if p.Symbol == "" {
		return nil, fmt.Errorf("symbol is required")
	}
	symbols, paths, err := s.Engine.TraceDataFlow(ctx, p.Symbol, p.MaxDepth)
	if err != nil {
		return nil, fmt.Errorf("trace_data_flow: %w", err)
	}
	pathViews := make([]flowPathView, len(paths))
	for i, fp := range paths {
		pathViews[i] = flowPathView{
			From: fmt.Sprintf("%d", fp.From), To: fmt.Sprintf("%d", fp.To),
			Line: fp.Line, Depth: fp.Depth, Relationship: string(fp.Relationship),
		}
	}
	return dataFlowResponse{Symbols: viewsOf(symbols), Paths: pathViews}, nil
}

type changeImpactResponse struct {
	blastRadiusResponse
	TypeDependents []symbolView `json:"type_dependents"`
}

func (r changeImpactResponse) ResultCount() (int, bool) {
	count, _ := r.blastRadiusResponse.ResultCount()
	return count + len(r.TypeDependents), false
}

func (s *Server) handleChangeImpact(ctx context.Context, args json.RawMessage) (interface{}, error) {
	var p ImpactParams
	if err := decodeParams(args, &p); err != nil {
		return nil, err
	}
	if p.Symbol == "" {
		return nil, fmt.Errorf("symbol is required")
	}
	impact, err := s.Engine.ChangeImpactOf(ctx, p.Symbol, p.MaxDepth)
	if err != nil {
		return nil, fmt.Errorf("change_impact: %w", err)
	}
	return changeImpactResponse{
		blastRadiusResponse: blastRadiusResponse{
			Direct: viewsOf(impact.Direct), Transitive: viewsOf(impact.Transitive),
			AffectedFiles: impact.AffectedFiles, Risk: string(impact.Risk),
		},
		TypeDependents: viewsOf(impact.TypeDependents),
	}, nil
}

type contextItemView struct {
	Symbol   symbolView `json:"symbol"`
	Depth    int        `json:"depth"`
	Score    float64    `json:"score"`
	Reason   string     `json:"reason"`
	Body     string     `json:"body"`
	FullBody bool       `json:"full_body"`
}

type contextResponseView struct {
	Items   []contextItemView    `json:"items"`
	Metrics query.ContextMetrics `json:"metrics"`
}

func (r contextResponseView) ResultCount() (int, bool) { return len(r.Items), false }

func (s *Server) handleGetContext(ctx context.Context, args json.RawMessage) (interface{}, error) {
	var p ContextParams
	if err := decodeParams(args, &p); err != nil {
		return nil, err
	}
	result, err := s.Engine.GetContext(ctx, p.Query, p.EntryPoints, p.TokenBudget, p.ExpansionDepth, p.SignaturesOnly)
	if err != nil {
		return nil, fmt.Errorf("get_context: %w", err)
	}
	items := make([]contextItemView, len(result.Items))
	for i, it := range result.Items {
		items[i] = contextItemView{Symbol: viewOf(it.Symbol), Depth: it.Depth, Score: it.Score, Reason: string(it.Reason), Body: it.Body, FullBody: it.FullBody}
	}
	return contextResponseView{Items: items, Metrics: result.Metrics}, nil
}
