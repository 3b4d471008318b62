package hybrid

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/bombeindex/bombe/internal/store"
	"github.com/bombeindex/bombe/internal/types"
)

// DefaultPushTimeout bounds a single push attempt's wall-clock time.
const DefaultPushTimeout = 500 * time.Millisecond

// DefaultPullTimeout bounds a single pull attempt's wall-clock time.
const DefaultPullTimeout = 2 * time.Second

// DefaultPromotionConfidence is the minimum edge confidence the control
// plane retains when promoting a delta to an artifact.
const DefaultPromotionConfidence = 0.75

// ToolVersionMajor is compared between peers for delta/artifact
// compatibility; only the major component needs to match.
func ToolVersionMajor(version string) string {
	v := strings.TrimPrefix(version, "v")
	if i := strings.Index(v, "."); i >= 0 {
		return v[:i]
	}
	return v
}

// Engine drives one repo's hybrid sync cycle: push the latest delta,
// pull and verify the latest compatible artifact, reconcile it against
// local edits, and keep the circuit breaker's state current.
type Engine struct {
	Store         *store.Store
	Transport     Transport
	Breaker       *Breaker
	RepoID        string
	ToolVersion   string
	SchemaVersion int
	PushTimeout   time.Duration
	PullTimeout   time.Duration

	// TrustedKeys maps signing_key_id to an HMAC-SHA-256 secret. Nil or
	// empty means artifacts are accepted unsigned (local/dev mode).
	TrustedKeys map[string][]byte

	Now func() time.Time
	Log *zap.Logger
}

// NewEngine builds an Engine with default timeouts and a breaker keyed
// on "control-plane".
func NewEngine(st *store.Store, transport Transport, repoID, toolVersion string, schemaVersion int) *Engine {
	return &Engine{
		Store: st, Transport: transport, Breaker: NewBreaker(st, "control-plane"),
		RepoID: repoID, ToolVersion: toolVersion, SchemaVersion: schemaVersion,
		PushTimeout: DefaultPushTimeout, PullTimeout: DefaultPullTimeout,
		Now: time.Now,
		Log: zap.NewNop(),
	}
}

func (e *Engine) log() *zap.Logger {
	if e.Log != nil {
		return e.Log
	}
	return zap.NewNop()
}

// RunSyncCycle pushes delta (if non-nil), then attempts to pull and
// reconcile the latest compatible artifact for the repo.
func (e *Engine) RunSyncCycle(ctx context.Context, delta *types.IndexDelta) (types.SyncReport, error) {
	report := types.SyncReport{}

	if delta != nil {
		outcome, err := e.push(ctx, *delta)
		if err != nil {
			return report, err
		}
		report.PushOutcome = outcome
	}

	artifact, reason, err := e.pullAndVerify(ctx, delta)
	if err != nil {
		return report, err
	}
	report.RejectReason = reason
	if reason != "" {
		st, _ := e.Breaker.State(ctx)
		report.BreakerState = st.State
		e.log().Info("pull rejected",
			zap.String("repo_id", e.RepoID),
			zap.String("reject_reason", string(reason)),
			zap.String("breaker_state", string(st.State)),
		)
		return report, nil
	}

	var touchedPaths map[string]bool
	if delta != nil {
		touchedPaths = touchedPathsOf(*delta)
	}
	merged := Reconcile(artifact, delta, touchedPaths)

	pin := types.ArtifactPin{
		ArtifactID: merged.ArtifactID, RepoID: merged.RepoID, SnapshotID: merged.SnapshotID,
		Checksum: merged.Checksum, Signature: merged.Signature, PinnedAt: e.now().Unix(),
	}
	if err := e.Store.SaveArtifactPin(ctx, pin); err != nil {
		return report, fmt.Errorf("hybrid: save artifact pin: %w", err)
	}
	if err := e.Store.RecordSyncEvent(ctx, "reconciled", merged.SnapshotID, merged.ArtifactID, e.now().Unix()); err != nil {
		return report, fmt.Errorf("hybrid: record reconcile event: %w", err)
	}

	report.PulledArtifactID = merged.ArtifactID
	report.Reconciled = true
	st, _ := e.Breaker.State(ctx)
	report.BreakerState = st.State
	e.log().Info("sync reconciled",
		zap.String("repo_id", e.RepoID),
		zap.String("snapshot", merged.SnapshotID),
		zap.String("artifact_id", merged.ArtifactID),
		zap.String("breaker_state", string(st.State)),
	)
	return report, nil
}

func (e *Engine) now() time.Time {
	if e.Now != nil {
		return e.Now()
	}
	return time.Now()
}

// push persists delta to sync_queue, submits it within PushTimeout, and
// updates the breaker and queue row according to the outcome.
func (e *Engine) push(ctx context.Context, delta types.IndexDelta) (types.PushOutcome, error) {
	queueID, err := e.Store.EnqueueSyncItem(ctx, delta.Header.LocalSnapshot, "push", e.now().Unix())
	if err != nil {
		return types.PushError, fmt.Errorf("hybrid: enqueue push: %w", err)
	}

	allowed, err := e.Breaker.Allow(ctx)
	if err != nil {
		return types.PushError, err
	}
	if !allowed {
		_ = e.Store.UpdateSyncQueueState(ctx, queueID, "retry", "circuit_open")
		_ = e.Store.RecordSyncEvent(ctx, "push_skipped", delta.Header.LocalSnapshot, "circuit_open", e.now().Unix())
		return types.PushRejected, nil
	}

	timeout := e.PushTimeout
	if timeout <= 0 {
		timeout = DefaultPushTimeout
	}
	pctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	errCh := make(chan error, 1)
	go func() { errCh <- e.Transport.PushDelta(pctx, delta) }()

	var outcome types.PushOutcome
	var state, lastErr string
	select {
	case <-pctx.Done():
		outcome, state, lastErr = types.PushTimeout, "retry", "push_timeout"
	case err := <-errCh:
		switch {
		case err == nil:
			outcome, state, lastErr = types.PushOK, "pushed", ""
		case pctx.Err() != nil:
			outcome, state, lastErr = types.PushTimeout, "retry", "push_timeout"
		default:
			outcome, state, lastErr = types.PushError, "retry", err.Error()
		}
	}

	if err := e.Store.UpdateSyncQueueState(ctx, queueID, state, lastErr); err != nil {
		return outcome, fmt.Errorf("hybrid: update sync queue: %w", err)
	}
	if outcome == types.PushOK {
		if err := e.Breaker.RecordSuccess(ctx); err != nil {
			return outcome, err
		}
	} else if err := e.Breaker.RecordFailure(ctx); err != nil {
		return outcome, err
	}
	if err := e.Store.RecordSyncEvent(ctx, "push_"+string(outcome), delta.Header.LocalSnapshot, lastErr, e.now().Unix()); err != nil {
		return outcome, fmt.Errorf("hybrid: record push event: %w", err)
	}
	return outcome, nil
}

// pullAndVerify fetches, compatibility-checks, and cryptographically
// verifies the latest artifact for the repo. A non-empty reject reason
// means no trusted artifact is available this cycle.
func (e *Engine) pullAndVerify(ctx context.Context, delta *types.IndexDelta) (types.ArtifactBundle, types.PullRejectReason, error) {
	allowed, err := e.Breaker.Allow(ctx)
	if err != nil {
		return types.ArtifactBundle{}, "", err
	}
	if !allowed {
		return types.ArtifactBundle{}, types.RejectCircuitOpen, nil
	}

	var snapshotID, parentSnapshot string
	if delta != nil {
		snapshotID, parentSnapshot = delta.Header.LocalSnapshot, delta.Header.ParentSnapshot
	}

	timeout := e.PullTimeout
	if timeout <= 0 {
		timeout = DefaultPullTimeout
	}
	pctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	type result struct {
		bundle types.ArtifactBundle
		ok     bool
		err    error
	}
	resCh := make(chan result, 1)
	go func() {
		b, ok, err := e.Transport.LatestArtifact(pctx, e.RepoID, snapshotID, parentSnapshot)
		resCh <- result{b, ok, err}
	}()

	var res result
	select {
	case <-pctx.Done():
		_ = e.Breaker.RecordFailure(ctx)
		return types.ArtifactBundle{}, types.RejectPullTimeout, nil
	case res = <-resCh:
	}
	if res.err != nil {
		_ = e.Breaker.RecordFailure(ctx)
		return types.ArtifactBundle{}, types.RejectPullError, nil
	}
	if !res.ok {
		return types.ArtifactBundle{}, types.RejectNoArtifact, nil
	}
	_ = e.Breaker.RecordSuccess(ctx)

	bundle := res.bundle
	if reason := e.checkCompatibility(bundle, snapshotID, parentSnapshot); reason != "" {
		return types.ArtifactBundle{}, reason, nil
	}

	quarantined, err := e.Store.IsQuarantined(ctx, bundle.ArtifactID)
	if err != nil {
		return types.ArtifactBundle{}, "", err
	}
	if quarantined {
		return types.ArtifactBundle{}, types.RejectQuarantined, nil
	}

	if reason := e.verifyIntegrity(ctx, bundle); reason != "" {
		_ = e.Store.QuarantineArtifact(ctx, bundle.ArtifactID, string(reason), e.now().Unix())
		_ = e.Store.RecordSyncEvent(ctx, "quarantined", bundle.SnapshotID, string(reason), e.now().Unix())
		return types.ArtifactBundle{}, reason, nil
	}

	return bundle, "", nil
}

func (e *Engine) checkCompatibility(bundle types.ArtifactBundle, snapshotID, parentSnapshot string) types.PullRejectReason {
	if bundle.SchemaVersion != e.SchemaVersion {
		return types.RejectSchemaMismatch
	}
	if ToolVersionMajor(bundle.ToolVersion) != ToolVersionMajor(e.ToolVersion) {
		return types.RejectToolMismatch
	}
	if bundle.RepoID != e.RepoID {
		return types.RejectRepoMismatch
	}
	if snapshotID != "" && bundle.SnapshotID != snapshotID && bundle.SnapshotID != parentSnapshot {
		return types.RejectLineageMismatch
	}
	return ""
}

func (e *Engine) verifyIntegrity(ctx context.Context, bundle types.ArtifactBundle) types.PullRejectReason {
	checksum, err := ArtifactChecksum(symbolKeyInterfaces(bundle.PromotedSymbols), edgeContractInterfaces(bundle.PromotedEdges),
		stringInterfaces(bundle.ImpactPriors), stringInterfaces(bundle.FlowHints),
		bundle.ArtifactID, bundle.RepoID, bundle.SnapshotID, bundle.ParentSnapshot, bundle.ToolVersion, bundle.SchemaVersion, bundle.CreatedAtUTC)
	if err != nil || checksum != bundle.Checksum {
		return types.RejectChecksumMismatch
	}
	if bundle.Signature == "" {
		return ""
	}
	key, ok := e.TrustedKeys[bundle.SigningKeyID]
	if !ok {
		return types.RejectSignatureUntrustedKey
	}
	if !VerifyHMAC(key, bundle.Checksum, bundle.Signature) {
		return types.RejectSignatureMismatch
	}
	return ""
}

func touchedPathsOf(delta types.IndexDelta) map[string]bool {
	touched := map[string]bool{}
	for _, fc := range delta.FileChanges {
		touched[fc.Path] = true
		if fc.OldPath != "" {
			touched[fc.OldPath] = true
		}
	}
	for _, sym := range delta.SymbolUpserts {
		touched[sym.FilePath] = true
	}
	return touched
}

// NewArtifactID generates a fresh artifact identifier for a control-plane
// promotion (used by the reference FileTransport/controlplane promoter).
func NewArtifactID() string { return uuid.NewString() }
