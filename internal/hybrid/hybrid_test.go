package hybrid

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/bombeindex/bombe/internal/store"
	"github.com/bombeindex/bombe/internal/types"
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

// TestSyncCycleOneFileRepo runs a one-file repo through an incremental
// index and one sync cycle against a file-backed transport, expecting a
// pushed queue row, a pinned artifact, a closed breaker, and at least
// two recorded sync events.
func TestSyncCycleOneFileRepo(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	if err := s.UpsertFile(ctx, types.File{Path: "app/main.py", Language: types.LanguagePython, ContentHash: "h1", LastIndexedAt: 1}); err != nil {
		t.Fatalf("upsert file: %v", err)
	}
	if _, err := s.ReplaceFileSymbols(ctx, "app/main.py", []types.Symbol{
		{Name: "main", QualifiedName: "app.main", Kind: types.KindFunction, FilePath: "app/main.py", StartLine: 1, EndLine: 4, Signature: "main()", PagerankScore: 0.5},
	}); err != nil {
		t.Fatalf("replace symbols: %v", err)
	}

	changes := []types.FileChange{{Status: types.ChangeAdded, Path: "app/main.py"}}
	delta, err := BuildDelta(ctx, s, "repo-1", "", "snap-1", "bombe/1.0.0", 1, 1000, changes, types.QualityStats{})
	if err != nil {
		t.Fatalf("build delta: %v", err)
	}
	if len(delta.SymbolUpserts) != 1 {
		t.Fatalf("expected 1 symbol upsert, got %d", len(delta.SymbolUpserts))
	}

	transport, err := NewFileTransport(t.TempDir(), func(d types.IndexDelta) (types.ArtifactBundle, bool) {
		return Promote(d, DefaultPromotionThresholds(), "artifact-1", 1001)
	})
	if err != nil {
		t.Fatalf("new file transport: %v", err)
	}

	engine := NewEngine(s, transport, "repo-1", "bombe/1.0.0", 1)
	engine.Now = func() time.Time { return time.Unix(2000, 0) }

	report, err := engine.RunSyncCycle(ctx, &delta)
	if err != nil {
		t.Fatalf("run sync cycle: %v", err)
	}
	if report.PushOutcome != types.PushOK {
		t.Errorf("expected push outcome ok, got %s", report.PushOutcome)
	}
	if !report.Reconciled {
		t.Errorf("expected reconciled=true, reject reason %q", report.RejectReason)
	}
	if report.BreakerState != types.BreakerClosed {
		t.Errorf("expected breaker closed, got %s", report.BreakerState)
	}

	pushed, err := s.ListSyncQueueByState(ctx, "pushed")
	if err != nil {
		t.Fatalf("list sync queue: %v", err)
	}
	if len(pushed) != 1 {
		t.Fatalf("expected 1 pushed sync_queue row, got %d", len(pushed))
	}

	pin, ok, err := s.LatestArtifactPin(ctx, "repo-1")
	if err != nil {
		t.Fatalf("latest artifact pin: %v", err)
	}
	if !ok {
		t.Fatalf("expected an artifact_pin row")
	}
	if pin.ArtifactID != "artifact-1" {
		t.Errorf("expected pinned artifact artifact-1, got %s", pin.ArtifactID)
	}

	breakerState, err := s.GetCircuitBreakerState(ctx, "control-plane")
	if err != nil {
		t.Fatalf("get breaker state: %v", err)
	}
	if breakerState.State != types.BreakerClosed {
		t.Errorf("expected persisted breaker state closed, got %s", breakerState.State)
	}

	n, err := s.CountSyncEvents(ctx)
	if err != nil {
		t.Fatalf("count sync events: %v", err)
	}
	if n < 2 {
		t.Errorf("expected at least 2 sync_events rows, got %d", n)
	}
}

func TestBreakerOpensAfterThreshold(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)
	b := NewBreaker(s, "ep")
	b.FailureThreshold = 2

	for i := 0; i < 2; i++ {
		if err := b.RecordFailure(ctx); err != nil {
			t.Fatalf("record failure: %v", err)
		}
	}
	st, err := b.State(ctx)
	if err != nil {
		t.Fatalf("state: %v", err)
	}
	if st.State != types.BreakerOpen {
		t.Fatalf("expected open after threshold failures, got %s", st.State)
	}

	allowed, err := b.Allow(ctx)
	if err != nil {
		t.Fatalf("allow: %v", err)
	}
	if allowed {
		t.Errorf("expected breaker to block calls while open and before reset_timeout")
	}
}

func TestBreakerHalfOpenFailureReopensImmediately(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)
	b := NewBreaker(s, "ep")
	b.FailureThreshold = 1
	b.ResetTimeout = 0
	now := time.Unix(1000, 0)
	b.Now = func() time.Time { return now }

	if err := b.RecordFailure(ctx); err != nil {
		t.Fatalf("record failure: %v", err)
	}
	allowed, err := b.Allow(ctx)
	if err != nil || !allowed {
		t.Fatalf("expected half_open probe allowed, err=%v allowed=%v", err, allowed)
	}
	if err := b.RecordFailure(ctx); err != nil {
		t.Fatalf("record failure: %v", err)
	}
	st, err := b.State(ctx)
	if err != nil {
		t.Fatalf("state: %v", err)
	}
	if st.State != types.BreakerOpen {
		t.Errorf("expected immediate reopen on half_open failure, got %s", st.State)
	}
}

func TestArtifactChecksumRoundTripsAndDetectsTamper(t *testing.T) {
	symbols := []types.SymbolKey{{QualifiedName: "app.main", FilePath: "app/main.py"}}
	sum1, err := ArtifactChecksum(symbolKeyInterfaces(symbols), nil, nil, nil, "a1", "r1", "s1", "", "bombe/1.0.0", 1, 1000)
	if err != nil {
		t.Fatalf("checksum: %v", err)
	}
	sum2, err := ArtifactChecksum(symbolKeyInterfaces(symbols), nil, nil, nil, "a1", "r1", "s1", "", "bombe/1.0.0", 1, 1000)
	if err != nil {
		t.Fatalf("checksum: %v", err)
	}
	if sum1 != sum2 {
		t.Errorf("expected deterministic checksum, got %s vs %s", sum1, sum2)
	}

	tampered := []types.SymbolKey{{QualifiedName: "app.other", FilePath: "app/main.py"}}
	sum3, err := ArtifactChecksum(symbolKeyInterfaces(tampered), nil, nil, nil, "a1", "r1", "s1", "", "bombe/1.0.0", 1, 1000)
	if err != nil {
		t.Fatalf("checksum: %v", err)
	}
	if sum1 == sum3 {
		t.Errorf("expected checksum to change when payload changes")
	}
}

func TestVerifyHMACRejectsWrongKey(t *testing.T) {
	sig := SignHMAC([]byte("secret"), "deadbeef")
	if !VerifyHMAC([]byte("secret"), "deadbeef", sig) {
		t.Errorf("expected valid signature to verify")
	}
	if VerifyHMAC([]byte("wrong"), "deadbeef", sig) {
		t.Errorf("expected signature verification to fail under wrong key")
	}
}

func TestReconcileLocalWinsInTouchedScope(t *testing.T) {
	artifact := types.ArtifactBundle{
		PromotedSymbols: []types.SymbolKey{
			{QualifiedName: "app.old", FilePath: "app/main.py"},
			{QualifiedName: "app.stable", FilePath: "app/util.py"},
		},
	}
	delta := &types.IndexDelta{
		SymbolUpserts: []types.Symbol{{QualifiedName: "app.new", FilePath: "app/main.py"}},
	}
	touched := map[string]bool{"app/main.py": true}

	merged := Reconcile(artifact, delta, touched)

	var names []string
	for _, sk := range merged.PromotedSymbols {
		names = append(names, sk.QualifiedName)
	}
	foundNew, foundOld, foundStable := false, false, false
	for _, n := range names {
		switch n {
		case "app.new":
			foundNew = true
		case "app.old":
			foundOld = true
		case "app.stable":
			foundStable = true
		}
	}
	if !foundNew || foundOld {
		t.Errorf("expected local app.new to replace artifact app.old in touched scope, got %v", names)
	}
	if !foundStable {
		t.Errorf("expected untouched app.stable to survive reconciliation, got %v", names)
	}
}
