package indexing

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/bombeindex/bombe/internal/store"
	"github.com/bombeindex/bombe/internal/types"
)

func newTestPipeline(t *testing.T, root string) (*Pipeline, *store.Store) {
	t.Helper()
	ctx := context.Background()
	st, err := store.Open(ctx, filepath.Join(t.TempDir(), "bombe.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	p, err := New(root, st, types.DefaultRuntimeConfig(), nil)
	if err != nil {
		t.Fatalf("new pipeline: %v", err)
	}
	return p, st
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestFullIndexPersistsSymbolsAndCallEdge(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "app", "service.py"),
		"def caller():\n    bar()\n\ndef bar():\n    return 1\n")

	p, st := newTestPipeline(t, root)
	stats, err := p.FullIndex(context.Background())
	if err != nil {
		t.Fatalf("full index: %v", err)
	}
	if stats.FilesIndexed != 1 {
		t.Fatalf("expected one file indexed, got %+v", stats)
	}
	if stats.SymbolsIndexed < 2 {
		t.Fatalf("expected at least two symbols indexed, got %+v", stats)
	}

	var edgeCount int
	if err := st.DB().QueryRow(`SELECT COUNT(*) FROM edges WHERE relationship = 'CALLS'`).Scan(&edgeCount); err != nil {
		t.Fatalf("count edges: %v", err)
	}
	if edgeCount == 0 {
		t.Fatalf("expected at least one CALLS edge to be persisted")
	}
}

func TestIncrementalIndexDeletesGraphOnRemoval(t *testing.T) {
	root := t.TempDir()
	target := filepath.Join(root, "app", "service.py")
	writeFile(t, target, "def bar():\n    return 1\n")

	p, st := newTestPipeline(t, root)
	if _, err := p.FullIndex(context.Background()); err != nil {
		t.Fatalf("full index: %v", err)
	}

	os.Remove(target)
	_, err := p.IncrementalIndex(context.Background(), []types.FileChange{
		{Status: types.ChangeDeleted, Path: "app/service.py"},
	})
	if err != nil {
		t.Fatalf("incremental index: %v", err)
	}

	known, err := st.KnownFilePaths(context.Background())
	if err != nil {
		t.Fatalf("known file paths: %v", err)
	}
	if known["app/service.py"] {
		t.Fatalf("expected app/service.py removed from store after deletion")
	}
}
