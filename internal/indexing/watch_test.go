package indexing

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/bombeindex/bombe/internal/types"
)

func TestWatcherDebouncesAndReindexesOnWrite(t *testing.T) {
	root := t.TempDir()
	target := filepath.Join(root, "app", "service.py")
	writeFile(t, target, "def bar():\n    return 1\n")

	p, _ := newTestPipeline(t, root)
	if _, err := p.FullIndex(context.Background()); err != nil {
		t.Fatalf("full index: %v", err)
	}

	w := NewWatcher(p, 20*time.Millisecond)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan struct{}, 1)
	go func() {
		w.Run(ctx, func(stats types.IndexStats, err error) {
			if err == nil {
				done <- struct{}{}
			}
		})
	}()

	time.Sleep(50 * time.Millisecond) // let the watcher register directories
	if err := os.WriteFile(target, []byte("def bar():\n    return 2\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	select {
	case <-done:
	case <-time.After(3 * time.Second):
		t.Fatal("timed out waiting for debounced re-index")
	}
}
