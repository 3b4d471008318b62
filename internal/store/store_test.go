package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/bombeindex/bombe/internal/types"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	dir := t.TempDir()
	s, err := Open(context.Background(), filepath.Join(dir, "bombe.db"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestUpsertFileAndReplaceSymbols(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	if err := s.UpsertFile(ctx, types.File{Path: "app/service.py", Language: types.LanguagePython, ContentHash: "abc", LastIndexedAt: 1}); err != nil {
		t.Fatalf("upsert file: %v", err)
	}

	ids, err := s.ReplaceFileSymbols(ctx, "app/service.py", []types.Symbol{
		{Name: "caller", QualifiedName: "caller", Kind: types.KindFunction, FilePath: "app/service.py", StartLine: 1, EndLine: 2},
		{Name: "bar", QualifiedName: "bar", Kind: types.KindFunction, FilePath: "app/service.py", StartLine: 4, EndLine: 5,
			Parameters: []types.Parameter{{Position: 0, Name: "x", Type: "int"}}},
	})
	if err != nil {
		t.Fatalf("replace symbols: %v", err)
	}
	if len(ids) != 2 {
		t.Fatalf("expected two symbol IDs, got %+v", ids)
	}

	id, ok, err := s.ResolveSymbolID(ctx, "bar", "app/service.py")
	if err != nil || !ok || id != ids[1] {
		t.Fatalf("expected resolved ID %v, got %v ok=%v err=%v", ids[1], id, ok, err)
	}

	// Re-replacing must clear the previous symbol set (and its params).
	ids2, err := s.ReplaceFileSymbols(ctx, "app/service.py", []types.Symbol{
		{Name: "only", QualifiedName: "only", Kind: types.KindFunction, FilePath: "app/service.py", StartLine: 1, EndLine: 1},
	})
	if err != nil {
		t.Fatalf("re-replace symbols: %v", err)
	}
	if len(ids2) != 1 {
		t.Fatalf("expected one symbol ID after replace, got %+v", ids2)
	}
	if _, ok, _ := s.ResolveSymbolID(ctx, "bar", "app/service.py"); ok {
		t.Fatalf("expected bar to be gone after replace")
	}
}

func TestReplaceFileEdgesAndDeleteFileGraph(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	s.UpsertFile(ctx, types.File{Path: "a.py", Language: types.LanguagePython, ContentHash: "h1", LastIndexedAt: 1})
	ids, _ := s.ReplaceFileSymbols(ctx, "a.py", []types.Symbol{
		{Name: "caller", QualifiedName: "caller", Kind: types.KindFunction, FilePath: "a.py", StartLine: 1, EndLine: 2},
		{Name: "bar", QualifiedName: "bar", Kind: types.KindFunction, FilePath: "a.py", StartLine: 4, EndLine: 5},
	})

	edges := []types.Edge{{
		SourceID: int64(ids[0]), TargetID: int64(ids[1]),
		SourceType: types.EndpointSymbol, TargetType: types.EndpointSymbol,
		Relationship: types.RelCalls, FilePath: "a.py", LineNumber: 2, Confidence: 1.0,
	}}
	if err := s.ReplaceFileEdges(ctx, "a.py", edges); err != nil {
		t.Fatalf("replace edges: %v", err)
	}

	if err := s.DeleteFileGraph(ctx, "a.py"); err != nil {
		t.Fatalf("delete file graph: %v", err)
	}
	if _, ok, _ := s.ResolveSymbolID(ctx, "bar", "a.py"); ok {
		t.Fatalf("expected symbols gone after DeleteFileGraph")
	}
	known, err := s.KnownFilePaths(ctx)
	if err != nil {
		t.Fatalf("known file paths: %v", err)
	}
	if known["a.py"] {
		t.Fatalf("expected a.py removed from files table")
	}
}

func TestRenameFile(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	s.UpsertFile(ctx, types.File{Path: "old.py", Language: types.LanguagePython, ContentHash: "h", LastIndexedAt: 1})
	s.ReplaceFileSymbols(ctx, "old.py", []types.Symbol{
		{Name: "f", QualifiedName: "f", Kind: types.KindFunction, FilePath: "old.py", StartLine: 1, EndLine: 1},
	})

	if err := s.RenameFile(ctx, "old.py", "new.py"); err != nil {
		t.Fatalf("rename: %v", err)
	}
	if _, ok, _ := s.ResolveSymbolID(ctx, "f", "new.py"); !ok {
		t.Fatalf("expected symbol to follow rename to new.py")
	}
	known, _ := s.KnownFilePaths(ctx)
	if known["old.py"] || !known["new.py"] {
		t.Fatalf("expected files table renamed, got %+v", known)
	}
}
