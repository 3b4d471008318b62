package hybrid

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/bombeindex/bombe/internal/types"
)

// Transport is the control-plane client surface the sync engine pushes
// deltas to and pulls artifacts from. The production implementation
// speaks HTTP (internal/controlplane's wire format); FileTransport below
// is a same-process stand-in used by tests and the single-machine CLI
// workflow.
type Transport interface {
	PushDelta(ctx context.Context, delta types.IndexDelta) error
	LatestArtifact(ctx context.Context, repoID, snapshotID, parentSnapshot string) (types.ArtifactBundle, bool, error)
}

// FileTransport persists pushed deltas and promoted artifacts as JSON
// files under a directory, modelling the control plane without a
// network hop. PromoteFunc decides whether a pushed delta is worth
// publishing as a new artifact (the production control plane runs the
// same promotion policy server-side).
type FileTransport struct {
	Dir         string
	PromoteFunc func(types.IndexDelta) (types.ArtifactBundle, bool)
}

// NewFileTransport builds a FileTransport rooted at dir, creating it if
// necessary.
func NewFileTransport(dir string, promote func(types.IndexDelta) (types.ArtifactBundle, bool)) (*FileTransport, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("hybrid: create transport dir: %w", err)
	}
	return &FileTransport{Dir: dir, PromoteFunc: promote}, nil
}

func (t *FileTransport) deltaPath(repoID, snapshotID string) string {
	return filepath.Join(t.Dir, fmt.Sprintf("delta-%s-%s.json", repoID, snapshotID))
}

func (t *FileTransport) artifactPath(repoID, artifactID string) string {
	return filepath.Join(t.Dir, fmt.Sprintf("artifact-%s-%s.json", repoID, artifactID))
}

// PushDelta writes delta to disk and, if PromoteFunc accepts it,
// publishes a matching artifact immediately (synchronous promotion,
// since FileTransport has no background worker of its own).
func (t *FileTransport) PushDelta(ctx context.Context, delta types.IndexDelta) error {
	raw, err := json.Marshal(delta)
	if err != nil {
		return err
	}
	if err := os.WriteFile(t.deltaPath(delta.Header.RepoID, delta.Header.LocalSnapshot), raw, 0o644); err != nil {
		return err
	}
	if t.PromoteFunc == nil {
		return nil
	}
	bundle, ok := t.PromoteFunc(delta)
	if !ok {
		return nil
	}
	araw, err := json.Marshal(bundle)
	if err != nil {
		return err
	}
	return os.WriteFile(t.artifactPath(bundle.RepoID, bundle.ArtifactID), araw, 0o644)
}

// LatestArtifact scans Dir for the artifact with the highest
// CreatedAtUTC matching repoID, ignoring snapshotID/parentSnapshot
// (FileTransport always serves its single latest publication; the
// caller's compatibility check rejects it if lineage doesn't match).
func (t *FileTransport) LatestArtifact(ctx context.Context, repoID, snapshotID, parentSnapshot string) (types.ArtifactBundle, bool, error) {
	entries, err := os.ReadDir(t.Dir)
	if err != nil {
		return types.ArtifactBundle{}, false, err
	}
	var candidates []types.ArtifactBundle
	prefix := fmt.Sprintf("artifact-%s-", repoID)
	for _, e := range entries {
		if e.IsDir() || !hasPrefix(e.Name(), prefix) {
			continue
		}
		raw, err := os.ReadFile(filepath.Join(t.Dir, e.Name()))
		if err != nil {
			return types.ArtifactBundle{}, false, err
		}
		var bundle types.ArtifactBundle
		if err := json.Unmarshal(raw, &bundle); err != nil {
			return types.ArtifactBundle{}, false, err
		}
		candidates = append(candidates, bundle)
	}
	if len(candidates) == 0 {
		return types.ArtifactBundle{}, false, nil
	}
	sort.Slice(candidates, func(i, j int) bool { return candidates[i].CreatedAtUTC > candidates[j].CreatedAtUTC })
	return candidates[0], true, nil
}

func hasPrefix(s, prefix string) bool {
	return len(s) >= len(prefix) && s[:len(prefix)] == prefix
}
