package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/bombeindex/bombe/internal/types"
)

// GetFile fetches one files row by path, used by the hybrid delta
// builder to attach content_hash/size_bytes to a file_changes entry.
func (s *Store) GetFile(ctx context.Context, path string) (types.File, bool, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT path, language, content_hash, size_bytes, last_indexed_at FROM files WHERE path = ?`, path)
	var f types.File
	var lang string
	if err := row.Scan(&f.Path, &lang, &f.ContentHash, &f.SizeBytes, &f.LastIndexedAt); err != nil {
		if err == sql.ErrNoRows {
			return types.File{}, false, nil
		}
		return types.File{}, false, err
	}
	f.Language = types.Language(lang)
	return f, true, nil
}

// EnqueueSyncItem inserts a new sync_queue row in state "pending" and
// returns its assigned id.
func (s *Store) EnqueueSyncItem(ctx context.Context, snapshotID, direction string, createdAt int64) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO sync_queue (snapshot_id, direction, state, attempts, created_at) VALUES (?, ?, 'pending', 0, ?)`,
		snapshotID, direction, createdAt)
	if err != nil {
		return 0, fmt.Errorf("store: enqueue sync item: %w", err)
	}
	return res.LastInsertId()
}

// UpdateSyncQueueState transitions a sync_queue row to state, recording
// lastErr (may be empty) and bumping its attempt counter.
func (s *Store) UpdateSyncQueueState(ctx context.Context, id int64, state, lastErr string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE sync_queue SET state = ?, last_error = ?, attempts = attempts + 1 WHERE id = ?`,
		state, lastErr, id)
	return err
}

// GetSyncQueueEntry fetches one sync_queue row by id.
func (s *Store) GetSyncQueueEntry(ctx context.Context, id int64) (types.SyncQueueEntry, bool, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, snapshot_id, direction, state, attempts, last_error, created_at FROM sync_queue WHERE id = ?`, id)
	var e types.SyncQueueEntry
	var lastErr sql.NullString
	if err := row.Scan(&e.ID, &e.SnapshotID, &e.Direction, &e.State, &e.Attempts, &lastErr, &e.CreatedAt); err != nil {
		if err == sql.ErrNoRows {
			return types.SyncQueueEntry{}, false, nil
		}
		return types.SyncQueueEntry{}, false, err
	}
	e.LastError = lastErr.String
	return e, true, nil
}

// ListSyncQueueByState returns every sync_queue row currently in state.
func (s *Store) ListSyncQueueByState(ctx context.Context, state string) ([]types.SyncQueueEntry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, snapshot_id, direction, state, attempts, last_error, created_at FROM sync_queue WHERE state = ? ORDER BY id`, state)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []types.SyncQueueEntry
	for rows.Next() {
		var e types.SyncQueueEntry
		var lastErr sql.NullString
		if err := rows.Scan(&e.ID, &e.SnapshotID, &e.Direction, &e.State, &e.Attempts, &lastErr, &e.CreatedAt); err != nil {
			return nil, err
		}
		e.LastError = lastErr.String
		out = append(out, e)
	}
	return out, rows.Err()
}

// SaveArtifactPin upserts the artifact_pins row recording a promoted
// artifact's checksum/signature as trusted local state.
func (s *Store) SaveArtifactPin(ctx context.Context, p types.ArtifactPin) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO artifact_pins (artifact_id, repo_id, snapshot_id, checksum, signature, pinned_at)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT(artifact_id) DO UPDATE SET
		   repo_id = excluded.repo_id, snapshot_id = excluded.snapshot_id,
		   checksum = excluded.checksum, signature = excluded.signature, pinned_at = excluded.pinned_at`,
		p.ArtifactID, p.RepoID, p.SnapshotID, p.Checksum, p.Signature, p.PinnedAt)
	return err
}

// GetArtifactPin fetches the artifact_pins row for artifactID, if any.
func (s *Store) GetArtifactPin(ctx context.Context, artifactID string) (types.ArtifactPin, bool, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT artifact_id, repo_id, snapshot_id, checksum, signature, pinned_at FROM artifact_pins WHERE artifact_id = ?`, artifactID)
	var p types.ArtifactPin
	var sig sql.NullString
	if err := row.Scan(&p.ArtifactID, &p.RepoID, &p.SnapshotID, &p.Checksum, &sig, &p.PinnedAt); err != nil {
		if err == sql.ErrNoRows {
			return types.ArtifactPin{}, false, nil
		}
		return types.ArtifactPin{}, false, err
	}
	p.Signature = sig.String
	return p, true, nil
}

// LatestArtifactPin returns the most recently pinned artifact for repoID.
func (s *Store) LatestArtifactPin(ctx context.Context, repoID string) (types.ArtifactPin, bool, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT artifact_id, repo_id, snapshot_id, checksum, signature, pinned_at FROM artifact_pins
		 WHERE repo_id = ? ORDER BY pinned_at DESC LIMIT 1`, repoID)
	var p types.ArtifactPin
	var sig sql.NullString
	if err := row.Scan(&p.ArtifactID, &p.RepoID, &p.SnapshotID, &p.Checksum, &sig, &p.PinnedAt); err != nil {
		if err == sql.ErrNoRows {
			return types.ArtifactPin{}, false, nil
		}
		return types.ArtifactPin{}, false, err
	}
	p.Signature = sig.String
	return p, true, nil
}

// GetCircuitBreakerState fetches the breaker row for endpoint, defaulting
// to closed/zero if no row exists yet.
func (s *Store) GetCircuitBreakerState(ctx context.Context, endpoint string) (types.CircuitBreakerState, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT endpoint, state, failure_count, opened_at, half_open_at FROM circuit_breaker_state WHERE endpoint = ?`, endpoint)
	var st types.CircuitBreakerState
	var openedAt, halfOpenAt sql.NullInt64
	if err := row.Scan(&st.Endpoint, &st.State, &st.FailureCount, &openedAt, &halfOpenAt); err != nil {
		if err == sql.ErrNoRows {
			return types.CircuitBreakerState{Endpoint: endpoint, State: types.BreakerClosed}, nil
		}
		return types.CircuitBreakerState{}, err
	}
	st.OpenedAt = openedAt.Int64
	st.HalfOpenAt = halfOpenAt.Int64
	return st, nil
}

// SaveCircuitBreakerState upserts the breaker row for endpoint.
func (s *Store) SaveCircuitBreakerState(ctx context.Context, st types.CircuitBreakerState) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO circuit_breaker_state (endpoint, state, failure_count, opened_at, half_open_at)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(endpoint) DO UPDATE SET
		   state = excluded.state, failure_count = excluded.failure_count,
		   opened_at = excluded.opened_at, half_open_at = excluded.half_open_at`,
		st.Endpoint, string(st.State), st.FailureCount, st.OpenedAt, st.HalfOpenAt)
	return err
}

// IsQuarantined reports whether artifactID is blocked from future pulls.
func (s *Store) IsQuarantined(ctx context.Context, artifactID string) (bool, error) {
	row := s.db.QueryRowContext(ctx, `SELECT 1 FROM quarantined_artifacts WHERE artifact_id = ?`, artifactID)
	var one int
	if err := row.Scan(&one); err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// QuarantineArtifact persists artifactID as permanently rejected.
func (s *Store) QuarantineArtifact(ctx context.Context, artifactID, reason string, occurredAt int64) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO quarantined_artifacts (artifact_id, reason, quarantined_at) VALUES (?, ?, ?)`,
		artifactID, reason, occurredAt)
	return err
}

// RecordSyncEvent appends an audit-trail row to sync_events.
func (s *Store) RecordSyncEvent(ctx context.Context, eventType, snapshotID, detail string, occurredAt int64) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO sync_events (event_type, snapshot_id, detail, occurred_at) VALUES (?, ?, ?, ?)`,
		eventType, snapshotID, detail, occurredAt)
	return err
}

// CountSyncEvents returns how many sync_events rows exist, for test/status
// assertions.
func (s *Store) CountSyncEvents(ctx context.Context) (int, error) {
	row := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM sync_events`)
	var n int
	err := row.Scan(&n)
	return n, err
}

// RecordToolMetric appends one MCP tool invocation's timing/result stats.
func (s *Store) RecordToolMetric(ctx context.Context, toolName string, invokedAt, durationMs int64, resultCount int, truncated bool) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO tool_metrics (tool_name, invoked_at, duration_ms, result_count, truncated) VALUES (?, ?, ?, ?, ?)`,
		toolName, invokedAt, durationMs, resultCount, boolToInt(truncated))
	return err
}

// SetRepoMeta upserts a single repo_meta key/value pair (e.g. repo_id,
// canonical_path, tool_version).
func (s *Store) SetRepoMeta(ctx context.Context, key, value string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO repo_meta (key, value) VALUES (?, ?) ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
		key, value)
	return err
}

// GetRepoMeta fetches one repo_meta value.
func (s *Store) GetRepoMeta(ctx context.Context, key string) (string, bool, error) {
	row := s.db.QueryRowContext(ctx, `SELECT value FROM repo_meta WHERE key = ?`, key)
	var v string
	if err := row.Scan(&v); err != nil {
		if err == sql.ErrNoRows {
			return "", false, nil
		}
		return "", false, err
	}
	return v, true, nil
}

// RecordDiagnostic appends one indexing_diagnostics row (soft parse
// failure, unresolved import, etc.); neither status nor doctor reads
// these rows.
func (s *Store) RecordDiagnostic(ctx context.Context, filePath, stage, message string, occurredAt int64) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO indexing_diagnostics (file_path, stage, message, occurred_at) VALUES (?, ?, ?, ?)`,
		filePath, stage, message, occurredAt)
	return err
}
