package controlplane

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	_ "modernc.org/sqlite"

	"github.com/bombeindex/bombe/internal/types"
)

// Store is the control plane's own sqlite database: one row per
// promoted artifact, keyed by (repo_id, artifact_id). It is deliberately
// separate from internal/store.Store, which is per-repo and lives next
// to the index it describes; the control plane is a shared service
// fronting many repos at once.
type Store struct {
	db *sql.DB
}

const schema = `
CREATE TABLE IF NOT EXISTS artifacts (
	artifact_id      TEXT NOT NULL,
	repo_id          TEXT NOT NULL,
	snapshot_id      TEXT NOT NULL,
	parent_snapshot  TEXT NOT NULL,
	created_at_utc   INTEGER NOT NULL,
	payload          TEXT NOT NULL,
	PRIMARY KEY (repo_id, artifact_id)
);
CREATE INDEX IF NOT EXISTS idx_artifacts_repo_created ON artifacts (repo_id, created_at_utc DESC);
`

// OpenStore opens (creating if necessary) the control plane's sqlite
// database at path and applies its schema.
func OpenStore(ctx context.Context, path string) (*Store, error) {
	db, err := sql.Open("sqlite", path+"?_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("controlplane: open %s: %w", path, err)
	}
	db.SetMaxOpenConns(1)
	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("controlplane: enable WAL: %w", err)
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("controlplane: apply schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// SaveArtifact upserts bundle, replacing any prior row for the same
// (repo_id, artifact_id).
func (s *Store) SaveArtifact(ctx context.Context, bundle types.ArtifactBundle) error {
	payload, err := json.Marshal(bundle)
	if err != nil {
		return fmt.Errorf("controlplane: marshal artifact: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO artifacts (artifact_id, repo_id, snapshot_id, parent_snapshot, created_at_utc, payload)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (repo_id, artifact_id) DO UPDATE SET
			snapshot_id = excluded.snapshot_id,
			parent_snapshot = excluded.parent_snapshot,
			created_at_utc = excluded.created_at_utc,
			payload = excluded.payload`,
		bundle.ArtifactID, bundle.RepoID, bundle.SnapshotID, bundle.ParentSnapshot, bundle.CreatedAtUTC, string(payload))
	if err != nil {
		return fmt.Errorf("controlplane: save artifact: %w", err)
	}
	return nil
}

// LatestArtifact returns the most recently created artifact for repoID.
// snapshotID/parentSnapshot, when non-empty, additionally constrain the
// match to that exact lineage, letting a puller ask "is there something
// newer than the snapshot I'm already on" without scanning every
// artifact the repo has ever published.
func (s *Store) LatestArtifact(ctx context.Context, repoID, snapshotID, parentSnapshot string) (types.ArtifactBundle, bool, error) {
	query := `SELECT payload FROM artifacts WHERE repo_id = ?`
	args := []interface{}{repoID}
	if snapshotID != "" {
		query += ` AND snapshot_id = ?`
		args = append(args, snapshotID)
	}
	if parentSnapshot != "" {
		query += ` AND parent_snapshot = ?`
		args = append(args, parentSnapshot)
	}
	query += ` ORDER BY created_at_utc DESC LIMIT 1`

	var payload string
	err := s.db.QueryRowContext(ctx, query, args...).Scan(&payload)
	if err == sql.ErrNoRows {
		return types.ArtifactBundle{}, false, nil
	}
	if err != nil {
		return types.ArtifactBundle{}, false, fmt.Errorf("controlplane: latest artifact: %w", err)
	}
	var bundle types.ArtifactBundle
	if err := json.Unmarshal([]byte(payload), &bundle); err != nil {
		return types.ArtifactBundle{}, false, fmt.Errorf("controlplane: decode artifact: %w", err)
	}
	return bundle, true, nil
}
