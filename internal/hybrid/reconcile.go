package hybrid

import "github.com/bombeindex/bombe/internal/types"

// Reconcile overlays artifact against the local delta: artifact entries
// whose file lie in touchedPaths are dropped in favour of the local
// delta's own version of that file, since the sync round-trip might have
// raced a local edit. The merged checksum is recomputed so the pinned
// artifact reflects what was actually kept.
func Reconcile(artifact types.ArtifactBundle, delta *types.IndexDelta, touchedPaths map[string]bool) types.ArtifactBundle {
	merged := artifact

	var keptSymbols []types.SymbolKey
	for _, sk := range artifact.PromotedSymbols {
		if touchedPaths[sk.FilePath] {
			continue
		}
		keptSymbols = append(keptSymbols, sk)
	}
	var keptEdges []types.EdgeContract
	for _, ec := range artifact.PromotedEdges {
		if touchedPaths[ec.Source.FilePath] || touchedPaths[ec.Target.FilePath] {
			continue
		}
		keptEdges = append(keptEdges, ec)
	}

	if delta != nil {
		for _, sym := range delta.SymbolUpserts {
			keptSymbols = append(keptSymbols, types.NewSymbolKey(sym))
		}
		keptEdges = append(keptEdges, delta.EdgeUpserts...)
	}

	merged.PromotedSymbols = keptSymbols
	merged.PromotedEdges = keptEdges

	checksum, err := ArtifactChecksum(symbolKeyInterfaces(keptSymbols), edgeContractInterfaces(keptEdges),
		stringInterfaces(merged.ImpactPriors), stringInterfaces(merged.FlowHints),
		merged.ArtifactID, merged.RepoID, merged.SnapshotID, merged.ParentSnapshot, merged.ToolVersion, merged.SchemaVersion, merged.CreatedAtUTC)
	if err == nil {
		merged.Checksum = checksum
	}
	return merged
}

func symbolKeyInterfaces(keys []types.SymbolKey) []interface{} {
	out := make([]interface{}, len(keys))
	for i, k := range keys {
		out[i] = k
	}
	return out
}

func edgeContractInterfaces(edges []types.EdgeContract) []interface{} {
	out := make([]interface{}, len(edges))
	for i, e := range edges {
		out[i] = e
	}
	return out
}

func stringInterfaces(strs []string) []interface{} {
	out := make([]interface{}, len(strs))
	for i, s := range strs {
		out[i] = s
	}
	return out
}
