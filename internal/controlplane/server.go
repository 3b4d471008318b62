// Package controlplane is the reference HTTP implementation of the
// control plane internal/hybrid's sync engine talks to: a push endpoint
// that accepts an IndexDelta and runs it through the promotion policy,
// and a pull endpoint that serves the latest matching ArtifactBundle.
// internal/hybrid.Transport is the client-side interface this server
// satisfies; HTTPTransport in client.go is its counterpart.
package controlplane

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	berrors "github.com/bombeindex/bombe/internal/errors"
	"github.com/bombeindex/bombe/internal/hybrid"
	"github.com/bombeindex/bombe/internal/types"

	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

// ArtifactStore is the persistence surface the control plane needs:
// recording a newly promoted artifact and finding the latest one for a
// repo/lineage. Store (store.go) is the reference sqlite-backed
// implementation; tests may substitute an in-memory one.
type ArtifactStore interface {
	SaveArtifact(ctx context.Context, bundle types.ArtifactBundle) error
	LatestArtifact(ctx context.Context, repoID, snapshotID, parentSnapshot string) (types.ArtifactBundle, bool, error)
}

// Server is the reference control plane: it validates pushed deltas,
// runs the promotion policy, optionally signs the result, and serves
// pulls from the same store.
type Server struct {
	Store        ArtifactStore
	Thresholds   hybrid.PromotionThresholds
	SigningKey   []byte
	SigningKeyID string
	BearerToken  string // empty disables auth
	Log          *zap.Logger

	router *mux.Router
	now    func() time.Time

	mu      sync.Mutex
	nextSeq int64
}

// NewServer builds a Server backed by store and registers its routes.
// An empty bearerToken disables auth, matching a single-machine or
// trusted-network deployment. Log starts as zap's no-op logger; callers
// that want sync telemetry replace Server.Log after construction.
func NewServer(store ArtifactStore, thresholds hybrid.PromotionThresholds, signingKeyID string, signingKey []byte, bearerToken string) *Server {
	s := &Server{
		Store:        store,
		Thresholds:   thresholds,
		SigningKey:   signingKey,
		SigningKeyID: signingKeyID,
		BearerToken:  bearerToken,
		Log:          zap.NewNop(),
		now:          time.Now,
	}
	s.router = mux.NewRouter()
	s.setupRoutes()
	return s
}

// Router returns the underlying router so callers can wrap it with
// additional middleware or mount it under a prefix.
func (s *Server) Router() *mux.Router {
	return s.router
}

func (s *Server) setupRoutes() {
	s.router.HandleFunc("/v1/deltas", s.authenticated(s.handlePushDelta)).Methods("POST")
	s.router.HandleFunc("/v1/artifacts/latest", s.authenticated(s.handleLatestArtifact)).Methods("GET")
	s.router.HandleFunc("/healthz", s.handleHealth).Methods("GET")
}

func (s *Server) authenticated(next http.HandlerFunc) http.HandlerFunc {
	if s.BearerToken == "" {
		return next
	}
	return func(w http.ResponseWriter, r *http.Request) {
		want := "Bearer " + s.BearerToken
		if got := r.Header.Get("Authorization"); got != want {
			writeError(w, http.StatusUnauthorized, "missing or invalid bearer token")
			return
		}
		next(w, r)
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handlePushDelta decodes an IndexDelta, runs the promotion policy, and
// (if accepted) signs and persists the resulting artifact. The response
// always reports whether promotion happened, even when it didn't.
func (s *Server) handlePushDelta(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Delta types.IndexDelta `json:"delta"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, berrors.NewValidationError("delta", "", err).Error())
		return
	}
	delta := body.Delta
	if delta.Header.RepoID == "" {
		writeError(w, http.StatusBadRequest, berrors.NewValidationError("delta.header.repo_id", delta.Header.RepoID, nil).Error())
		return
	}
	if delta.Header.LocalSnapshot == "" {
		writeError(w, http.StatusBadRequest, berrors.NewValidationError("delta.header.local_snapshot", delta.Header.LocalSnapshot, nil).Error())
		return
	}

	bundle, accepted := hybrid.Promote(delta, s.Thresholds, s.nextArtifactID(delta.Header.RepoID), s.now().UnixMilli())
	if !accepted {
		s.Log.Info("delta rejected",
			zap.String("repo_id", delta.Header.RepoID),
			zap.String("snapshot", delta.Header.LocalSnapshot),
			zap.Float64("ambiguity_rate", delta.QualityStats.AmbiguityRate),
			zap.Int("parse_failures", delta.QualityStats.ParseFailures),
		)
		writeJSON(w, http.StatusOK, map[string]interface{}{"accepted": false})
		return
	}

	if len(s.SigningKey) > 0 {
		bundle = hybrid.Sign(bundle, s.SigningKeyID, s.SigningKey)
	}
	if err := s.Store.SaveArtifact(r.Context(), bundle); err != nil {
		writeError(w, http.StatusInternalServerError, berrors.NewStoreError("save_artifact", err).Error())
		return
	}
	s.Log.Info("delta promoted",
		zap.String("repo_id", delta.Header.RepoID),
		zap.String("snapshot", delta.Header.LocalSnapshot),
		zap.String("artifact_id", bundle.ArtifactID),
	)
	writeJSON(w, http.StatusCreated, map[string]interface{}{"accepted": true, "artifact": bundle})
}

// handleLatestArtifact serves the most recent artifact matching
// repo_id, optionally constrained by snapshot_id/parent_snapshot. A
// missing repo_id is a validation error; no matching artifact is a
// typed not-found, reported as 404 rather than as a store failure (500),
// since "nothing published yet" is a routine outcome for a fresh repo.
func (s *Server) handleLatestArtifact(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	repoID := q.Get("repo_id")
	if repoID == "" {
		writeError(w, http.StatusBadRequest, berrors.NewValidationError("repo_id", "", nil).Error())
		return
	}
	bundle, found, err := s.Store.LatestArtifact(r.Context(), repoID, q.Get("snapshot_id"), q.Get("parent_snapshot"))
	if err != nil {
		writeError(w, http.StatusInternalServerError, berrors.NewStoreError("latest_artifact", err).Error())
		return
	}
	if !found {
		writeError(w, http.StatusNotFound, berrors.NewNotFoundError("artifact", repoID).Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"artifact": bundle})
}

// nextArtifactID mints a monotonic, process-local artifact id; the
// store's primary key is (repo_id, artifact_id) so collisions across
// repos are harmless and collisions within a repo only matter if two
// pushes race, which the mutex below prevents.
func (s *Server) nextArtifactID(repoID string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextSeq++
	return strings.ToLower(repoID) + "-artifact-" + strconv.FormatInt(s.nextSeq, 10)
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data) // a broken client connection here has nowhere useful to report to
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
