package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/bombeindex/bombe/internal/query"
	"github.com/bombeindex/bombe/internal/store"
	"github.com/bombeindex/bombe/internal/types"

	"github.com/cespare/xxhash/v2"
	"github.com/google/jsonschema-go/jsonschema"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// DefaultPlannerTTL and DefaultPlannerCapacity size the query cache shared
// by every read-only tool.
const (
	DefaultPlannerTTL      = 30 * time.Second
	DefaultPlannerCapacity = 256
)

// Server exposes the seven read-only query tools over MCP, backed by a
// single query.Engine and a shared QueryPlanner cache.
type Server struct {
	Engine  *query.Engine
	Planner *query.QueryPlanner
	mcp     *mcp.Server
	now     func() time.Time
}

// NewServer builds a Server over st and registers its tools. repoRoot is
// the indexed repository's root on disk, used by get_context to read
// full symbol source bodies; an empty repoRoot limits get_context to
// signature-only packing.
func NewServer(st *store.Store, runtime types.RuntimeConfig, repoRoot string) *Server {
	s := &Server{
		Engine:  &query.Engine{Store: st, Runtime: runtime, RepoRoot: repoRoot},
		Planner: query.NewQueryPlanner(DefaultPlannerTTL, DefaultPlannerCapacity),
		now:     time.Now,
	}
	s.mcp = mcp.NewServer(&mcp.Implementation{Name: "bombe-mcp-server", Version: "0.1.0"}, nil)
	s.registerTools()
	return s
}

// MCPServer returns the underlying *mcp.Server for transport binding (stdio,
// HTTP, ...) by the caller.
func (s *Server) MCPServer() *mcp.Server {
	return s.mcp
}

// toolFunc is the shape every tool handler implements before being wrapped
// with caching and metrics.
type toolFunc func(ctx context.Context, args json.RawMessage) (interface{}, error)

// wrap turns fn into an MCP tool handler: it runs fn through the shared
// QueryPlanner cache keyed on (name, a hash of the raw arguments), records
// a tool_metrics row regardless of outcome, and renders the result (or an
// in-band error) as the tool's JSON response. Arguments are hashed rather
// than kept verbatim as the map key so a large search_symbols payload
// doesn't pin its own JSON text in the cache for the life of the entry.
func (s *Server) wrap(name string, fn toolFunc) func(context.Context, *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return func(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		start := s.now()
		cacheKey := name + ":" + strconv.FormatUint(xxhash.Sum64(req.Params.Arguments), 36)

		result, outcome, _, err := s.Planner.Run(cacheKey, func() (any, error) {
			return fn(ctx, req.Params.Arguments)
		})

		durationMs := s.now().Sub(start).Milliseconds()
		resultCount, truncated := summarize(result)
		_ = s.Engine.Store.RecordToolMetric(ctx, name, start.UnixMilli(), durationMs, resultCount, truncated)
		_ = outcome // cache hit/miss is not recorded; tool_metrics records wall time either way

		if err != nil {
			return errorResult(name, err)
		}
		return jsonResult(result)
	}
}

// summarize extracts a best-effort result count and truncation flag for
// tool_metrics bookkeeping; most tool payloads embed one or both.
func summarize(v interface{}) (count int, truncated bool) {
	switch r := v.(type) {
	case nil:
		return 0, false
	case interface{ ResultCount() (int, bool) }:
		return r.ResultCount()
	default:
		return 0, false
	}
}

func (s *Server) registerTools() {
	s.mcp.AddTool(&mcp.Tool{
		Name:        "search_symbols",
		Description: "Hybrid lexical/structural/semantic symbol search, ranked by a blended score.",
		InputSchema: &jsonschema.Schema{
			Type: "object",
			Properties: map[string]*jsonschema.Schema{
				"query":        {Type: "string", Description: "Search text"},
				"kind":         {Type: "string", Description: "Restrict to one symbol kind (function, class, ...)"},
				"file_pattern": {Type: "string", Description: "Glob restricting matched files"},
				"max":          {Type: "integer", Description: "Maximum results (clamped server-side)"},
			},
			Required: []string{"query"},
		},
	}, s.wrap("search_symbols", s.handleSearchSymbols))

	s.mcp.AddTool(&mcp.Tool{
		Name:        "get_references",
		Description: "Bounded-depth BFS over call/type edges: callers, callees, implementors, or supertypes of a symbol.",
		InputSchema: &jsonschema.Schema{
			Type: "object",
			Properties: map[string]*jsonschema.Schema{
				"symbol":         {Type: "string", Description: "Symbol name or qualified name"},
				"direction":      {Type: "string", Description: "callers|callees|both|implementors|supers"},
				"depth":          {Type: "integer", Description: "Max BFS hops"},
				"include_source": {Type: "boolean", Description: "Include each hit's source-span fragment"},
			},
			Required: []string{"symbol"},
		},
	}, s.wrap("get_references", s.handleGetReferences))

	s.mcp.AddTool(&mcp.Tool{
		Name:        "get_structure",
		Description: "PageRank-ranked symbol tree under a path prefix, packed to a token budget.",
		InputSchema: &jsonschema.Schema{
			Type: "object",
			Properties: map[string]*jsonschema.Schema{
				"path_prefix":  {Type: "string", Description: "Directory or file prefix to scope the tree to"},
				"token_budget": {Type: "integer", Description: "Approximate output token budget"},
			},
		},
	}, s.wrap("get_structure", s.handleGetStructure))

	s.mcp.AddTool(&mcp.Tool{
		Name:        "get_blast_radius",
		Description: "Inbound call-graph BFS from a symbol, split into direct vs. transitive callers with a risk classification.",
		InputSchema: &jsonschema.Schema{
			Type: "object",
			Properties: map[string]*jsonschema.Schema{
				"symbol":    {Type: "string", Description: "Symbol name or qualified name"},
				"max_depth": {Type: "integer", Description: "Max BFS hops"},
			},
			Required: []string{"symbol"},
		},
	}, s.wrap("get_blast_radius", s.handleGetBlastRadius))

	s.mcp.AddTool(&mcp.Tool{
		Name:        "trace_data_flow",
		Description: "Bidirectional call-graph BFS from a symbol, reporting reached symbols and the ordered hop path.",
		InputSchema: &jsonschema.Schema{
			Type: "object",
			Properties: map[string]*jsonschema.Schema{
				"symbol":    {Type: "string", Description: "Symbol name or qualified name"},
				"max_depth": {Type: "integer", Description: "Max BFS hops"},
			},
			Required: []string{"symbol"},
		},
	}, s.wrap("trace_data_flow", s.handleTraceDataFlow))

	s.mcp.AddTool(&mcp.Tool{
		Name:        "change_impact",
		Description: "Blast radius plus one-hop type dependents (EXTENDS/IMPLEMENTS), for assessing a symbol change's reach.",
		InputSchema: &jsonschema.Schema{
			Type: "object",
			Properties: map[string]*jsonschema.Schema{
				"symbol":    {Type: "string", Description: "Symbol name or qualified name"},
				"max_depth": {Type: "integer", Description: "Max BFS hops"},
			},
			Required: []string{"symbol"},
		},
	}, s.wrap("change_impact", s.handleChangeImpact))

	s.mcp.AddTool(&mcp.Tool{
		Name:        "get_context",
		Description: "Seed-and-expand context assembly: personalised-PageRank-ranked, budget-packed symbol bodies around a query or entry points.",
		InputSchema: &jsonschema.Schema{
			Type: "object",
			Properties: map[string]*jsonschema.Schema{
				"query":           {Type: "string", Description: "Lexical seed query"},
				"entry_points":    {Type: "array", Items: &jsonschema.Schema{Type: "string"}, Description: "Explicit seed symbol names"},
				"token_budget":    {Type: "integer", Description: "Approximate output token budget"},
				"expansion_depth": {Type: "integer", Description: "Subgraph expansion depth from seeds"},
				"signatures_only": {Type: "boolean", Description: "Pack signature-only bodies, skipping the full-source read entirely"},
			},
		},
	}, s.wrap("get_context", s.handleGetContext))
}

func decodeParams(args json.RawMessage, dst interface{}) error {
	if len(args) == 0 {
		return nil
	}
	if err := json.Unmarshal(args, dst); err != nil {
		return fmt.Errorf("invalid parameters: %w", err)
	}
	return nil
}
