// Package store is Bombe's relational graph store: a single-writer
// sqlite database (files, symbols, parameters, edges, external_deps,
// plus an FTS5 full-text index) behind a narrow, file-scoped mutation
// API so the indexing pipeline never has to hand-format SQL.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/doug-martin/goqu/v8"
	_ "github.com/doug-martin/goqu/v8/dialect/sqlite3"
	_ "modernc.org/sqlite"

	"github.com/bombeindex/bombe/internal/types"
)

// Store wraps the sqlite connection pool and query builder.
type Store struct {
	db      *sql.DB
	dialect goqu.DialectWrapper
	ftsOK   bool
}

// Open opens (creating if necessary) the sqlite database at path, applies
// the schema, enables WAL mode, and probes for FTS5 support.
func Open(ctx context.Context, path string) (*Store, error) {
	db, err := sql.Open("sqlite", path+"?_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("store: open %s: %w", path, err)
	}
	// Single-writer funnel: sqlite serialises writers regardless, but
	// capping at one avoids SQLITE_BUSY retries under WAL.
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: enable WAL: %w", err)
	}
	if _, err := db.ExecContext(ctx, "PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: enable foreign keys: %w", err)
	}

	s := &Store{db: db, dialect: goqu.Dialect("sqlite3")}
	if err := s.applySchema(ctx); err != nil {
		db.Close()
		return nil, err
	}
	s.ftsOK = s.probeFTS5(ctx)
	return s, nil
}

// Close closes the underlying connection pool.
func (s *Store) Close() error { return s.db.Close() }

// DB exposes the underlying *sql.DB for callers (diagnostics, migrations)
// that need it directly.
func (s *Store) DB() *sql.DB { return s.db }

// FTSAvailable reports whether the sqlite build backing this Store
// supports FTS5; when false, full-text search falls back to LIKE scans.
func (s *Store) FTSAvailable() bool { return s.ftsOK }

func (s *Store) probeFTS5(ctx context.Context) bool {
	_, err := s.db.ExecContext(ctx, "CREATE VIRTUAL TABLE IF NOT EXISTS fts5_probe USING fts5(x)")
	if err != nil {
		return false
	}
	s.db.ExecContext(ctx, "DROP TABLE fts5_probe")
	return true
}

const schema = `
CREATE TABLE IF NOT EXISTS files (
  path TEXT PRIMARY KEY, language TEXT NOT NULL, content_hash TEXT NOT NULL,
  size_bytes INTEGER, last_indexed_at INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS symbols (
  id INTEGER PRIMARY KEY AUTOINCREMENT, name TEXT NOT NULL,
  qualified_name TEXT NOT NULL, kind TEXT NOT NULL,
  file_path TEXT NOT NULL REFERENCES files(path),
  start_line INTEGER NOT NULL, end_line INTEGER NOT NULL,
  signature TEXT, return_type TEXT, visibility TEXT,
  is_async INTEGER NOT NULL DEFAULT 0, is_static INTEGER NOT NULL DEFAULT 0,
  parent_symbol_id INTEGER, docstring TEXT,
  pagerank_score REAL NOT NULL DEFAULT 0,
  UNIQUE(qualified_name, file_path)
);
CREATE TABLE IF NOT EXISTS parameters (
  symbol_id INTEGER NOT NULL REFERENCES symbols(id), position INTEGER NOT NULL,
  name TEXT NOT NULL, type TEXT, default_value TEXT,
  PRIMARY KEY(symbol_id, position)
);
CREATE TABLE IF NOT EXISTS edges (
  source_id INTEGER NOT NULL, target_id INTEGER NOT NULL,
  source_type TEXT NOT NULL, target_type TEXT NOT NULL, relationship TEXT NOT NULL,
  file_path TEXT, line_number INTEGER, confidence REAL NOT NULL DEFAULT 1.0,
  UNIQUE(source_id, target_id, source_type, target_type, relationship)
);
CREATE TABLE IF NOT EXISTS external_deps (
  file_path TEXT NOT NULL, import_statement TEXT NOT NULL,
  module_name TEXT NOT NULL, line_number INTEGER
);
CREATE INDEX IF NOT EXISTS idx_symbols_file ON symbols(file_path);
CREATE INDEX IF NOT EXISTS idx_symbols_name ON symbols(name);
CREATE INDEX IF NOT EXISTS idx_edges_source ON edges(source_id, source_type);
CREATE INDEX IF NOT EXISTS idx_edges_target ON edges(target_id, target_type);
CREATE INDEX IF NOT EXISTS idx_external_deps_file ON external_deps(file_path);

CREATE TABLE IF NOT EXISTS sync_queue (
  id INTEGER PRIMARY KEY AUTOINCREMENT, snapshot_id TEXT NOT NULL,
  direction TEXT NOT NULL, state TEXT NOT NULL, attempts INTEGER NOT NULL DEFAULT 0,
  last_error TEXT, created_at INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS artifact_pins (
  artifact_id TEXT PRIMARY KEY, repo_id TEXT NOT NULL, snapshot_id TEXT NOT NULL,
  checksum TEXT NOT NULL, signature TEXT, pinned_at INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS circuit_breaker_state (
  endpoint TEXT PRIMARY KEY, state TEXT NOT NULL, failure_count INTEGER NOT NULL DEFAULT 0,
  opened_at INTEGER, half_open_at INTEGER
);
CREATE TABLE IF NOT EXISTS quarantined_artifacts (
  artifact_id TEXT PRIMARY KEY, reason TEXT NOT NULL, quarantined_at INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS sync_events (
  id INTEGER PRIMARY KEY AUTOINCREMENT, event_type TEXT NOT NULL,
  snapshot_id TEXT, detail TEXT, occurred_at INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS tool_metrics (
  tool_name TEXT NOT NULL, invoked_at INTEGER NOT NULL, duration_ms INTEGER NOT NULL,
  result_count INTEGER, truncated INTEGER NOT NULL DEFAULT 0
);
CREATE TABLE IF NOT EXISTS repo_meta (
  key TEXT PRIMARY KEY, value TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS indexing_diagnostics (
  id INTEGER PRIMARY KEY AUTOINCREMENT, file_path TEXT NOT NULL, stage TEXT NOT NULL,
  message TEXT NOT NULL, occurred_at INTEGER NOT NULL
);
`

func (s *Store) applySchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("store: apply schema: %w", err)
	}
	// FTS5 is attempted separately: an engine build without it must not
	// fail the rest of schema setup (LIKE-fallback path, see FTSAvailable).
	s.db.ExecContext(ctx, `CREATE VIRTUAL TABLE IF NOT EXISTS symbols_fts USING fts5(
		name, qualified_name, docstring, signature, content='', tokenize='porter')`)
	return nil
}

// UpsertFile inserts or replaces one file's row.
func (s *Store) UpsertFile(ctx context.Context, f types.File) error {
	insert := s.dialect.Insert("files").
		Rows(goqu.Record{
			"path": f.Path, "language": string(f.Language), "content_hash": f.ContentHash,
			"size_bytes": f.SizeBytes, "last_indexed_at": f.LastIndexedAt,
		}).
		OnConflict(goqu.DoUpdate("path", goqu.Record{
			"language": string(f.Language), "content_hash": f.ContentHash,
			"size_bytes": f.SizeBytes, "last_indexed_at": f.LastIndexedAt,
		}))
	query, args, err := insert.ToSQL()
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, query, args...)
	return err
}

// ReplaceFileSymbols deletes every symbol (and its parameters) currently
// attributed to path and inserts the given set, returning the new
// store-assigned SymbolIDs in the same order as symbols.
func (s *Store) ReplaceFileSymbols(ctx context.Context, path string, symbols []types.Symbol) ([]types.SymbolID, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	if s.ftsOK {
		if _, err := tx.ExecContext(ctx,
			`DELETE FROM symbols_fts WHERE rowid IN (SELECT id FROM symbols WHERE file_path = ?)`, path); err != nil {
			return nil, err
		}
	}
	if _, err := tx.ExecContext(ctx,
		`DELETE FROM parameters WHERE symbol_id IN (SELECT id FROM symbols WHERE file_path = ?)`, path); err != nil {
		return nil, err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM symbols WHERE file_path = ?`, path); err != nil {
		return nil, err
	}

	ids := make([]types.SymbolID, len(symbols))
	for i, sym := range symbols {
		res, err := tx.ExecContext(ctx,
			`INSERT INTO symbols (name, qualified_name, kind, file_path, start_line, end_line,
			 signature, return_type, visibility, is_async, is_static, docstring, pagerank_score)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			sym.Name, sym.QualifiedName, string(sym.Kind), sym.FilePath, sym.StartLine, sym.EndLine,
			sym.Signature, sym.ReturnType, string(sym.Visibility), boolToInt(sym.IsAsync), boolToInt(sym.IsStatic),
			sym.Docstring, sym.PagerankScore)
		if err != nil {
			return nil, fmt.Errorf("store: insert symbol %s: %w", sym.QualifiedName, err)
		}
		id, err := res.LastInsertId()
		if err != nil {
			return nil, err
		}
		ids[i] = types.SymbolID(id)

		for _, p := range sym.Parameters {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO parameters (symbol_id, position, name, type, default_value) VALUES (?, ?, ?, ?, ?)`,
				id, p.Position, p.Name, p.Type, p.DefaultValue); err != nil {
				return nil, err
			}
		}

		if s.ftsOK {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO symbols_fts (rowid, name, qualified_name, docstring, signature) VALUES (?, ?, ?, ?, ?)`,
				id, sym.Name, sym.QualifiedName, sym.Docstring, sym.Signature); err != nil {
				return nil, err
			}
		}
	}

	// Second pass: link each symbol to its enclosing one (a method's
	// class, a nested function's outer function) by qualified-name
	// prefix, now that every symbol in the batch has a store ID.
	byQualifiedName := make(map[string]types.SymbolID, len(symbols))
	for i, sym := range symbols {
		byQualifiedName[sym.QualifiedName] = ids[i]
	}
	for i, sym := range symbols {
		parentQN := enclosingQualifiedName(sym.QualifiedName)
		if parentQN == "" {
			continue
		}
		parentID, ok := byQualifiedName[parentQN]
		if !ok {
			continue
		}
		if _, err := tx.ExecContext(ctx,
			`UPDATE symbols SET parent_symbol_id = ? WHERE id = ?`, parentID, ids[i]); err != nil {
			return nil, fmt.Errorf("store: link parent symbol for %s: %w", sym.QualifiedName, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return ids, nil
}

// enclosingQualifiedName strips the last dotted segment off a qualified
// name, returning the qualified name of the symbol (if any) it is
// nested under.
func enclosingQualifiedName(qualifiedName string) string {
	if idx := strings.LastIndex(qualifiedName, "."); idx >= 0 {
		return qualifiedName[:idx]
	}
	return ""
}

// ReplaceFileEdges deletes every edge whose file_path matches path and
// inserts the given set. Edges are keyed by resolved SourceID/TargetID;
// callers resolve logical (qualified_name, file_path) pairs to store IDs
// via ResolveSymbolID before calling this.
func (s *Store) ReplaceFileEdges(ctx context.Context, path string, edges []types.Edge) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM edges WHERE file_path = ?`, path); err != nil {
		return err
	}
	for _, e := range edges {
		if _, err := tx.ExecContext(ctx,
			`INSERT OR IGNORE INTO edges (source_id, target_id, source_type, target_type, relationship, file_path, line_number, confidence)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			e.SourceID, e.TargetID, string(e.SourceType), string(e.TargetType), string(e.Relationship),
			e.FilePath, e.LineNumber, e.Confidence); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// ReplaceExternalDeps deletes and reinserts every external_deps row for path.
func (s *Store) ReplaceExternalDeps(ctx context.Context, path string, deps []types.ExternalDep) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM external_deps WHERE file_path = ?`, path); err != nil {
		return err
	}
	for _, d := range deps {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO external_deps (file_path, import_statement, module_name, line_number) VALUES (?, ?, ?, ?)`,
			d.FilePath, d.ImportStatement, d.ModuleName, d.LineNumber); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// DeleteFileGraph removes every row (symbols, parameters, edges,
// external_deps, file) attributed to path, used for deleted-file changes
// in incremental indexing.
func (s *Store) DeleteFileGraph(ctx context.Context, path string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if s.ftsOK {
		if _, err := tx.ExecContext(ctx,
			`DELETE FROM symbols_fts WHERE rowid IN (SELECT id FROM symbols WHERE file_path = ?)`, path); err != nil {
			return err
		}
	}
	stmts := []string{
		`DELETE FROM parameters WHERE symbol_id IN (SELECT id FROM symbols WHERE file_path = ?)`,
		`DELETE FROM edges WHERE source_id IN (SELECT id FROM symbols WHERE file_path = ?) OR target_id IN (SELECT id FROM symbols WHERE file_path = ?)`,
		`DELETE FROM symbols WHERE file_path = ?`,
		`DELETE FROM external_deps WHERE file_path = ?`,
		`DELETE FROM files WHERE path = ?`,
	}
	for _, stmt := range stmts {
		args := make([]any, strings.Count(stmt, "?"))
		for i := range args {
			args[i] = path
		}
		if _, err := tx.ExecContext(ctx, stmt, args...); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// RenameFile updates a file's path and every symbol/edge/external_deps row
// referencing it, used for FileChange{Status: ChangeRenamed}.
func (s *Store) RenameFile(ctx context.Context, oldPath, newPath string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	stmts := []string{
		`UPDATE files SET path = ? WHERE path = ?`,
		`UPDATE symbols SET file_path = ? WHERE file_path = ?`,
		`UPDATE edges SET file_path = ? WHERE file_path = ?`,
		`UPDATE external_deps SET file_path = ? WHERE file_path = ?`,
	}
	for _, stmt := range stmts {
		if _, err := tx.ExecContext(ctx, stmt, newPath, oldPath); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// ResolveSymbolID looks up the store-assigned ID for a logical
// (qualified_name, file_path) symbol key.
func (s *Store) ResolveSymbolID(ctx context.Context, qualifiedName, filePath string) (types.SymbolID, bool, error) {
	var id int64
	err := s.db.QueryRowContext(ctx,
		`SELECT id FROM symbols WHERE qualified_name = ? AND file_path = ?`, qualifiedName, filePath).Scan(&id)
	if err == sql.ErrNoRows {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	return types.SymbolID(id), true, nil
}

// KnownFilePaths returns every path currently in the files table, for
// resolver RepoFiles sets and incremental-index diffing.
func (s *Store) KnownFilePaths(ctx context.Context) (map[string]bool, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT path FROM files`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := map[string]bool{}
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return nil, err
		}
		out[p] = true
	}
	return out, rows.Err()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
