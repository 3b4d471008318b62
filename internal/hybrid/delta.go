package hybrid

import (
	"context"
	"fmt"

	"github.com/bombeindex/bombe/internal/store"
	"github.com/bombeindex/bombe/internal/types"
)

// BuildDelta assembles an IndexDelta from the store's current state for
// the given changed paths, following an IncrementalIndex pass. Deleted
// paths contribute only a file_changes entry (their symbols/edges were
// already removed from the store by DeleteFileGraph); added/modified
// paths contribute their current symbol and edge rows.
func BuildDelta(ctx context.Context, st *store.Store, repoID, parentSnapshot, localSnapshot, toolVersion string, schemaVersion int, createdAtUTC int64, changes []types.FileChange, stats types.QualityStats) (types.IndexDelta, error) {
	delta := types.IndexDelta{
		Header: types.DeltaHeader{
			RepoID: repoID, ParentSnapshot: parentSnapshot, LocalSnapshot: localSnapshot,
			ToolVersion: toolVersion, SchemaVersion: schemaVersion, CreatedAtUTC: createdAtUTC,
		},
		QualityStats: stats,
	}

	for _, c := range changes {
		fc := types.FileChangeRecord{Status: c.Status, Path: c.Path, OldPath: c.OldPath}
		if c.Status != types.ChangeDeleted {
			if f, ok, err := st.GetFile(ctx, c.Path); err != nil {
				return types.IndexDelta{}, fmt.Errorf("hybrid: lookup file %s: %w", c.Path, err)
			} else if ok {
				fc.ContentHash, fc.SizeBytes = f.ContentHash, f.SizeBytes
			}
		}
		delta.FileChanges = append(delta.FileChanges, fc)

		if c.Status == types.ChangeDeleted {
			continue
		}
		symbols, err := st.SymbolsUnderPrefix(ctx, c.Path)
		if err != nil {
			return types.IndexDelta{}, fmt.Errorf("hybrid: build delta for %s: %w", c.Path, err)
		}
		for _, sym := range symbols {
			if sym.FilePath != c.Path {
				continue
			}
			delta.SymbolUpserts = append(delta.SymbolUpserts, sym)

			out, err := st.OutboundEdges(ctx, int64(sym.ID), nil)
			if err != nil {
				return types.IndexDelta{}, fmt.Errorf("hybrid: build delta edges for %s: %w", sym.QualifiedName, err)
			}
			for _, n := range out {
				target, ok, err := st.GetSymbolByID(ctx, types.SymbolID(n.NeighborID))
				if err != nil {
					return types.IndexDelta{}, fmt.Errorf("hybrid: resolve edge target: %w", err)
				}
				if !ok {
					continue
				}
				delta.EdgeUpserts = append(delta.EdgeUpserts, types.EdgeContract{
					Source:       types.NewSymbolKey(sym),
					Target:       types.NewSymbolKey(target),
					Relationship: n.Relationship,
					LineNumber:   n.LineNumber,
					Confidence:   n.Confidence,
					Provenance:   n.FilePath,
				})
			}
		}
	}
	return delta, nil
}
