package controlplane

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/bombeindex/bombe/internal/hybrid"
	"github.com/bombeindex/bombe/internal/types"
)

func openTestServer(t *testing.T) (*Server, *Store) {
	t.Helper()
	st, err := OpenStore(context.Background(), filepath.Join(t.TempDir(), "controlplane.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { st.Close() })
	srv := NewServer(st, hybrid.DefaultPromotionThresholds(), "test-key", []byte("secret"), "")
	return srv, st
}

func cleanDelta(repoID, snapshot string) types.IndexDelta {
	return types.IndexDelta{
		Header: types.DeltaHeader{RepoID: repoID, LocalSnapshot: snapshot, ToolVersion: "test", SchemaVersion: 1},
		SymbolUpserts: []types.Symbol{
			{Name: "alpha", QualifiedName: "svc.alpha", Kind: types.KindFunction, FilePath: "svc/a.py"},
		},
		EdgeUpserts: []types.EdgeContract{
			{Source: types.SymbolKey{QualifiedName: "svc.alpha"}, Target: types.SymbolKey{QualifiedName: "svc.beta"}, Relationship: types.RelCalls, Confidence: 0.9},
		},
		QualityStats: types.QualityStats{AmbiguityRate: 0.01},
	}
}

func TestPushDeltaPromotesCleanDelta(t *testing.T) {
	srv, _ := openTestServer(t)
	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	body, _ := json.Marshal(map[string]interface{}{"delta": cleanDelta("repo1", "snap1")})
	resp, err := http.Post(ts.URL+"/v1/deltas", "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("post delta: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected 201, got %d", resp.StatusCode)
	}
	var payload struct {
		Accepted bool                 `json:"accepted"`
		Artifact types.ArtifactBundle `json:"artifact"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if !payload.Accepted {
		t.Fatalf("expected delta to be accepted")
	}
	if payload.Artifact.Signature == "" {
		t.Errorf("expected a signed artifact")
	}
}

func TestPushDeltaRejectsHighAmbiguity(t *testing.T) {
	srv, _ := openTestServer(t)
	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	delta := cleanDelta("repo1", "snap1")
	delta.QualityStats.AmbiguityRate = 0.9
	body, _ := json.Marshal(map[string]interface{}{"delta": delta})
	resp, err := http.Post(ts.URL+"/v1/deltas", "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("post delta: %v", err)
	}
	defer resp.Body.Close()
	var payload struct {
		Accepted bool `json:"accepted"`
	}
	json.NewDecoder(resp.Body).Decode(&payload)
	if payload.Accepted {
		t.Errorf("expected a high-ambiguity delta to be rejected")
	}
}

func TestLatestArtifactRoundTrip(t *testing.T) {
	srv, _ := openTestServer(t)
	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	body, _ := json.Marshal(map[string]interface{}{"delta": cleanDelta("repo1", "snap1")})
	if _, err := http.Post(ts.URL+"/v1/deltas", "application/json", bytes.NewReader(body)); err != nil {
		t.Fatalf("post delta: %v", err)
	}

	client := NewHTTPTransport(ts.URL, "")
	bundle, found, err := client.LatestArtifact(context.Background(), "repo1", "", "")
	if err != nil {
		t.Fatalf("latest artifact: %v", err)
	}
	if !found {
		t.Fatalf("expected to find a promoted artifact")
	}
	if bundle.RepoID != "repo1" || bundle.SnapshotID != "snap1" {
		t.Errorf("unexpected bundle %+v", bundle)
	}
}

func TestLatestArtifactMissingRepoID(t *testing.T) {
	srv, _ := openTestServer(t)
	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/v1/artifacts/latest")
	if err != nil {
		t.Fatalf("get latest: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("expected 400 for missing repo_id, got %d", resp.StatusCode)
	}
}

func TestBearerTokenRequired(t *testing.T) {
	st, err := OpenStore(context.Background(), filepath.Join(t.TempDir(), "controlplane.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	defer st.Close()
	srv := NewServer(st, hybrid.DefaultPromotionThresholds(), "test-key", []byte("secret"), "topsecret")
	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/v1/artifacts/latest?repo_id=repo1")
	if err != nil {
		t.Fatalf("get latest: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("expected 401 without a bearer token, got %d", resp.StatusCode)
	}

	client := NewHTTPTransport(ts.URL, "topsecret")
	if _, _, err := client.LatestArtifact(context.Background(), "repo1", "", ""); err != nil {
		t.Errorf("expected authenticated client to succeed, got %v", err)
	}
}
