package controlplane

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/bombeindex/bombe/internal/types"
)

// HTTPTransport implements hybrid.Transport against a running Server
// over the network, the production counterpart to hybrid.FileTransport.
type HTTPTransport struct {
	BaseURL     string
	BearerToken string
	HTTPClient  *http.Client
}

// NewHTTPTransport builds an HTTPTransport rooted at baseURL (e.g.
// "https://bombe-controlplane.internal"). An empty bearerToken sends no
// Authorization header.
func NewHTTPTransport(baseURL, bearerToken string) *HTTPTransport {
	return &HTTPTransport{
		BaseURL:     baseURL,
		BearerToken: bearerToken,
		HTTPClient:  &http.Client{Timeout: 30 * time.Second},
	}
}

func (t *HTTPTransport) newRequest(ctx context.Context, method, path string, body []byte) (*http.Request, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, t.BaseURL+path, reader)
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if t.BearerToken != "" {
		req.Header.Set("Authorization", "Bearer "+t.BearerToken)
	}
	return req, nil
}

// PushDelta posts delta to POST /v1/deltas. A non-2xx response is
// reported as an error; whether the delta was actually promoted is
// logged server-side and is not this method's concern (the sync engine
// only needs to know the push reached the control plane intact).
func (t *HTTPTransport) PushDelta(ctx context.Context, delta types.IndexDelta) error {
	body, err := json.Marshal(struct {
		Delta types.IndexDelta `json:"delta"`
	}{Delta: delta})
	if err != nil {
		return fmt.Errorf("controlplane client: marshal delta: %w", err)
	}
	req, err := t.newRequest(ctx, http.MethodPost, "/v1/deltas", body)
	if err != nil {
		return fmt.Errorf("controlplane client: build request: %w", err)
	}
	resp, err := t.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("controlplane client: push delta: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("controlplane client: push delta: unexpected status %d", resp.StatusCode)
	}
	return nil
}

// LatestArtifact calls GET /v1/artifacts/latest.
func (t *HTTPTransport) LatestArtifact(ctx context.Context, repoID, snapshotID, parentSnapshot string) (types.ArtifactBundle, bool, error) {
	q := url.Values{"repo_id": {repoID}}
	if snapshotID != "" {
		q.Set("snapshot_id", snapshotID)
	}
	if parentSnapshot != "" {
		q.Set("parent_snapshot", parentSnapshot)
	}
	req, err := t.newRequest(ctx, http.MethodGet, "/v1/artifacts/latest?"+q.Encode(), nil)
	if err != nil {
		return types.ArtifactBundle{}, false, fmt.Errorf("controlplane client: build request: %w", err)
	}
	resp, err := t.HTTPClient.Do(req)
	if err != nil {
		return types.ArtifactBundle{}, false, fmt.Errorf("controlplane client: latest artifact: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusNotFound {
		return types.ArtifactBundle{}, false, nil
	}
	if resp.StatusCode >= 300 {
		return types.ArtifactBundle{}, false, fmt.Errorf("controlplane client: latest artifact: unexpected status %d", resp.StatusCode)
	}

	var payload struct {
		Artifact types.ArtifactBundle `json:"artifact"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return types.ArtifactBundle{}, false, fmt.Errorf("controlplane client: decode response: %w", err)
	}
	return payload.Artifact, true, nil
}
