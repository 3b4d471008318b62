// Package hybrid implements the hybrid sync engine: building deltas from
// incremental index runs, pushing them to a control plane, pulling and
// verifying promoted artifacts, reconciling local edits against a pulled
// artifact, and the circuit breaker that governs when to stop trying.
package hybrid

import (
	"crypto/ed25519"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"
)

// canonicalJSON re-marshals v with object keys sorted at every nesting
// level, so the same logical payload always hashes to the same bytes
// regardless of struct field order or map iteration order.
func canonicalJSON(v interface{}) ([]byte, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var generic interface{}
	if err := json.Unmarshal(raw, &generic); err != nil {
		return nil, err
	}
	var buf []byte
	buf, err = appendCanonical(buf, generic)
	return buf, err
}

func appendCanonical(buf []byte, v interface{}) ([]byte, error) {
	switch t := v.(type) {
	case map[string]interface{}:
		keys := make([]string, 0, len(t))
		for k := range t {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		buf = append(buf, '{')
		for i, k := range keys {
			if i > 0 {
				buf = append(buf, ',')
			}
			kb, _ := json.Marshal(k)
			buf = append(buf, kb...)
			buf = append(buf, ':')
			var err error
			buf, err = appendCanonical(buf, t[k])
			if err != nil {
				return nil, err
			}
		}
		buf = append(buf, '}')
		return buf, nil
	case []interface{}:
		buf = append(buf, '[')
		for i, e := range t {
			if i > 0 {
				buf = append(buf, ',')
			}
			var err error
			buf, err = appendCanonical(buf, e)
			if err != nil {
				return nil, err
			}
		}
		buf = append(buf, ']')
		return buf, nil
	default:
		b, err := json.Marshal(t)
		if err != nil {
			return nil, err
		}
		return append(buf, b...), nil
	}
}

// ArtifactChecksum computes the SHA-256 checksum over the artifact's
// canonical payload with checksum and signature fields excluded.
func ArtifactChecksum(promotedSymbols, promotedEdges, impactPriors, flowHints interface{}, artifactID, repoID, snapshotID, parentSnapshot, toolVersion string, schemaVersion int, createdAtUTC int64) (string, error) {
	subject := map[string]interface{}{
		"artifact_id":      artifactID,
		"repo_id":          repoID,
		"snapshot_id":      snapshotID,
		"parent_snapshot":  parentSnapshot,
		"tool_version":     toolVersion,
		"schema_version":   schemaVersion,
		"created_at_utc":   createdAtUTC,
		"promoted_symbols": promotedSymbols,
		"promoted_edges":   promotedEdges,
		"impact_priors":    impactPriors,
		"flow_hints":       flowHints,
	}
	canon, err := canonicalJSON(subject)
	if err != nil {
		return "", fmt.Errorf("hybrid: canonicalize checksum subject: %w", err)
	}
	sum := sha256.Sum256(canon)
	return hex.EncodeToString(sum[:]), nil
}

// SignHMAC signs checksum (hex-encoded) with an HMAC-SHA-256 key,
// returning a hex-encoded MAC.
func SignHMAC(key []byte, checksumHex string) string {
	mac := hmac.New(sha256.New, key)
	mac.Write([]byte(checksumHex))
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifyHMAC reports whether signatureHex is a valid HMAC-SHA-256 of
// checksumHex under key, using constant-time comparison.
func VerifyHMAC(key []byte, checksumHex, signatureHex string) bool {
	want, err := hex.DecodeString(signatureHex)
	if err != nil {
		return false
	}
	mac := hmac.New(sha256.New, key)
	mac.Write([]byte(checksumHex))
	expected := mac.Sum(nil)
	return hmac.Equal(want, expected)
}

// VerifyEd25519 reports whether signatureHex is a valid Ed25519
// signature of checksumHex under the given public key.
func VerifyEd25519(pub ed25519.PublicKey, checksumHex, signatureHex string) bool {
	sig, err := hex.DecodeString(signatureHex)
	if err != nil {
		return false
	}
	return ed25519.Verify(pub, []byte(checksumHex), sig)
}
