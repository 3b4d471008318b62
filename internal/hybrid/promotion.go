package hybrid

import "github.com/bombeindex/bombe/internal/types"

// PromotionThresholds bounds a delta's acceptable soft-failure rates
// before the control plane will promote it to an artifact.
type PromotionThresholds struct {
	MaxAmbiguityRate  float64
	MaxParseFailures  int
	MinEdgeConfidence float64
}

// DefaultPromotionThresholds matches the reference control plane's
// defaults: no more than 10% ambiguous resolutions, no parse failures,
// and only edges at or above DefaultPromotionConfidence are promoted.
func DefaultPromotionThresholds() PromotionThresholds {
	return PromotionThresholds{MaxAmbiguityRate: 0.10, MaxParseFailures: 0, MinEdgeConfidence: DefaultPromotionConfidence}
}

// Promote applies the promotion policy to delta, returning the artifact
// bundle it should become and whether the delta was accepted at all.
// artifactID/createdAtUTC are supplied by the caller (id generation and
// wall-clock time are not this package's concern).
func Promote(delta types.IndexDelta, thresholds PromotionThresholds, artifactID string, createdAtUTC int64) (types.ArtifactBundle, bool) {
	if delta.QualityStats.AmbiguityRate > thresholds.MaxAmbiguityRate {
		return types.ArtifactBundle{}, false
	}
	if delta.QualityStats.ParseFailures > thresholds.MaxParseFailures {
		return types.ArtifactBundle{}, false
	}

	var symbols []types.SymbolKey
	for _, sym := range delta.SymbolUpserts {
		symbols = append(symbols, types.NewSymbolKey(sym))
	}
	var edges []types.EdgeContract
	for _, ec := range delta.EdgeUpserts {
		if ec.Confidence < thresholds.MinEdgeConfidence {
			continue
		}
		edges = append(edges, ec)
	}

	bundle := types.ArtifactBundle{
		ArtifactID:      artifactID,
		RepoID:          delta.Header.RepoID,
		SnapshotID:      delta.Header.LocalSnapshot,
		ParentSnapshot:  delta.Header.ParentSnapshot,
		ToolVersion:     delta.Header.ToolVersion,
		SchemaVersion:   delta.Header.SchemaVersion,
		CreatedAtUTC:    createdAtUTC,
		PromotedSymbols: symbols,
		PromotedEdges:   edges,
	}
	checksum, err := ArtifactChecksum(symbolKeyInterfaces(symbols), edgeContractInterfaces(edges),
		stringInterfaces(bundle.ImpactPriors), stringInterfaces(bundle.FlowHints),
		bundle.ArtifactID, bundle.RepoID, bundle.SnapshotID, bundle.ParentSnapshot, bundle.ToolVersion, bundle.SchemaVersion, bundle.CreatedAtUTC)
	if err == nil {
		bundle.Checksum = checksum
	}
	return bundle, true
}

// Sign attaches an HMAC-SHA-256 signature to bundle under keyID/key,
// mutating and returning it for convenience.
func Sign(bundle types.ArtifactBundle, keyID string, key []byte) types.ArtifactBundle {
	bundle.SignatureAlgo = "hmac-sha256"
	bundle.SigningKeyID = keyID
	bundle.Signature = SignHMAC(key, bundle.Checksum)
	return bundle
}
