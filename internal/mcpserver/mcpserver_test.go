package mcpserver

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/bombeindex/bombe/internal/store"
	"github.com/bombeindex/bombe/internal/types"

	"github.com/modelcontextprotocol/go-sdk/mcp"
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

func seedChain(t *testing.T, s *store.Store) {
	t.Helper()
	ctx := context.Background()
	if err := s.UpsertFile(ctx, types.File{Path: "svc/graph.py", Language: types.LanguagePython, ContentHash: "h", LastIndexedAt: 1}); err != nil {
		t.Fatalf("upsert file: %v", err)
	}
	ids, err := s.ReplaceFileSymbols(ctx, "svc/graph.py", []types.Symbol{
		{Name: "alpha", QualifiedName: "svc.alpha", Kind: types.KindFunction, FilePath: "svc/graph.py", StartLine: 1, EndLine: 3, Signature: "alpha()", PagerankScore: 0.1},
		{Name: "beta", QualifiedName: "svc.beta", Kind: types.KindFunction, FilePath: "svc/graph.py", StartLine: 5, EndLine: 7, Signature: "beta()", PagerankScore: 0.3},
	})
	if err != nil {
		t.Fatalf("replace symbols: %v", err)
	}
	edges := []types.Edge{
		{SourceID: int64(ids[0]), TargetID: int64(ids[1]), SourceType: types.EndpointSymbol, TargetType: types.EndpointSymbol,
			Relationship: types.RelCalls, FilePath: "svc/graph.py", LineNumber: 2, Confidence: 1.0},
	}
	if err := s.ReplaceFileEdges(ctx, "svc/graph.py", edges); err != nil {
		t.Fatalf("replace edges: %v", err)
	}
}

func callTool(t *testing.T, s *Server, name string, args interface{}) searchSymbolsResponse {
	t.Helper()
	raw, err := json.Marshal(args)
	if err != nil {
		t.Fatalf("marshal args: %v", err)
	}
	handler := s.wrap(name, s.handleSearchSymbols)
	result, err := handler(context.Background(), &mcp.CallToolRequest{Params: &mcp.CallToolParamsRaw{Arguments: raw}})
	if err != nil {
		t.Fatalf("%s: %v", name, err)
	}
	if result.IsError {
		t.Fatalf("%s returned an error result", name)
	}
	text := result.Content[0].(*mcp.TextContent).Text
	var resp searchSymbolsResponse
	if err := json.Unmarshal([]byte(text), &resp); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}
	return resp
}

func TestSearchSymbolsToolReturnsRankedHits(t *testing.T) {
	s := openTestStore(t)
	seedChain(t, s)
	srv := NewServer(s, types.DefaultRuntimeConfig(), "")

	resp := callTool(t, srv, "search_symbols", SearchParams{Query: "beta"})
	if resp.Count == 0 {
		t.Fatalf("expected at least one hit, got 0")
	}
	if resp.Results[0].Symbol.Name != "beta" {
		t.Errorf("expected beta to rank first, got %s", resp.Results[0].Symbol.Name)
	}
}

func TestSearchSymbolsToolSurfacesUnknownFields(t *testing.T) {
	s := openTestStore(t)
	seedChain(t, s)
	srv := NewServer(s, types.DefaultRuntimeConfig(), "")

	raw := []byte(`{"query":"beta","bogus_field":true}`)
	handler := srv.wrap("search_symbols", srv.handleSearchSymbols)
	result, err := handler(context.Background(), &mcp.CallToolRequest{Params: &mcp.CallToolParamsRaw{Arguments: raw}})
	if err != nil {
		t.Fatalf("search_symbols: %v", err)
	}
	var resp searchSymbolsResponse
	if err := json.Unmarshal([]byte(result.Content[0].(*mcp.TextContent).Text), &resp); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}
	if len(resp.Warnings) != 1 || resp.Warnings[0].Name != "bogus_field" {
		t.Errorf("expected one warning for bogus_field, got %+v", resp.Warnings)
	}
}

func TestSearchSymbolsToolRejectsEmptyQuery(t *testing.T) {
	s := openTestStore(t)
	srv := NewServer(s, types.DefaultRuntimeConfig(), "")

	raw := []byte(`{}`)
	handler := srv.wrap("search_symbols", srv.handleSearchSymbols)
	result, err := handler(context.Background(), &mcp.CallToolRequest{Params: &mcp.CallToolParamsRaw{Arguments: raw}})
	if err != nil {
		t.Fatalf("search_symbols: %v", err)
	}
	if !result.IsError {
		t.Errorf("expected an in-band error result for a missing query")
	}
}

func TestGetReferencesToolFindsCaller(t *testing.T) {
	s := openTestStore(t)
	seedChain(t, s)
	srv := NewServer(s, types.DefaultRuntimeConfig(), "")

	raw, _ := json.Marshal(ReferencesParams{Symbol: "beta", Direction: "callers"})
	handler := srv.wrap("get_references", srv.handleGetReferences)
	result, err := handler(context.Background(), &mcp.CallToolRequest{Params: &mcp.CallToolParamsRaw{Arguments: raw}})
	if err != nil {
		t.Fatalf("get_references: %v", err)
	}
	var resp referencesResponse
	if err := json.Unmarshal([]byte(result.Content[0].(*mcp.TextContent).Text), &resp); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}
	if resp.Count != 1 || resp.References[0].Symbol.Name != "alpha" {
		t.Errorf("expected alpha as beta's sole caller, got %+v", resp.References)
	}
}

func TestGetStructureToolRendersTree(t *testing.T) {
	s := openTestStore(t)
	seedChain(t, s)
	srv := NewServer(s, types.DefaultRuntimeConfig(), "")

	raw, _ := json.Marshal(StructureParams{PathPrefix: "svc"})
	handler := srv.wrap("get_structure", srv.handleGetStructure)
	result, err := handler(context.Background(), &mcp.CallToolRequest{Params: &mcp.CallToolParamsRaw{Arguments: raw}})
	if err != nil {
		t.Fatalf("get_structure: %v", err)
	}
	var resp structureResponse
	if err := json.Unmarshal([]byte(result.Content[0].(*mcp.TextContent).Text), &resp); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}
	if resp.TotalSymbols != 2 {
		t.Errorf("expected 2 total symbols, got %d", resp.TotalSymbols)
	}
}

func TestSearchSymbolsToolRepeatCallMatchesAndRecordsNoSyncEvents(t *testing.T) {
	s := openTestStore(t)
	seedChain(t, s)
	srv := NewServer(s, types.DefaultRuntimeConfig(), "")

	first := callTool(t, srv, "search_symbols", SearchParams{Query: "beta"})
	second := callTool(t, srv, "search_symbols", SearchParams{Query: "beta"})
	if first.Count != second.Count {
		t.Errorf("expected cached response to match first call, got %d vs %d", first.Count, second.Count)
	}

	count, err := s.CountSyncEvents(context.Background())
	if err != nil {
		t.Fatalf("count sync events: %v", err)
	}
	if count != 0 {
		t.Errorf("expected no sync events from a pure query path, got %d", count)
	}
}
