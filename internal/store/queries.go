package store

import (
	"context"
	"database/sql"
	"strings"

	"github.com/bombeindex/bombe/internal/types"
)

func scanSymbol(row interface {
	Scan(dest ...any) error
}) (types.Symbol, error) {
	var sym types.Symbol
	var returnType, visibility, docstring, signature sql.NullString
	if err := row.Scan(&sym.ID, &sym.Name, &sym.QualifiedName, &sym.Kind, &sym.FilePath,
		&sym.StartLine, &sym.EndLine, &signature, &returnType, &visibility,
		&sym.IsAsync, &sym.IsStatic, &docstring, &sym.PagerankScore); err != nil {
		return sym, err
	}
	sym.Signature = signature.String
	sym.ReturnType = returnType.String
	sym.Visibility = types.Visibility(visibility.String)
	sym.Docstring = docstring.String
	return sym, nil
}

const symbolColumns = `id, name, qualified_name, kind, file_path, start_line, end_line, signature, return_type, visibility, is_async, is_static, docstring, pagerank_score`

// GetSymbolByID fetches one symbol by store ID.
func (s *Store) GetSymbolByID(ctx context.Context, id types.SymbolID) (types.Symbol, bool, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+symbolColumns+` FROM symbols WHERE id = ?`, int64(id))
	sym, err := scanSymbol(row)
	if err == sql.ErrNoRows {
		return types.Symbol{}, false, nil
	}
	if err != nil {
		return types.Symbol{}, false, err
	}
	return sym, true, nil
}

// GetSymbolByQualifiedName resolves a symbol by exact qualified name; when
// more than one file defines the same qualified name, the caller should
// prefer ResolveByNameOrQualified instead.
func (s *Store) GetSymbolByQualifiedName(ctx context.Context, qualifiedName string) (types.Symbol, bool, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+symbolColumns+` FROM symbols WHERE qualified_name = ? ORDER BY pagerank_score DESC LIMIT 1`, qualifiedName)
	sym, err := scanSymbol(row)
	if err == sql.ErrNoRows {
		return types.Symbol{}, false, nil
	}
	if err != nil {
		return types.Symbol{}, false, err
	}
	return sym, true, nil
}

// ResolveByNameOrQualified resolves a symbol by exact qualified name
// first, else by bare name, preferring the highest PageRank score when
// multiple candidates share a name.
func (s *Store) ResolveByNameOrQualified(ctx context.Context, query string) (types.Symbol, bool, error) {
	if sym, ok, err := s.GetSymbolByQualifiedName(ctx, query); err != nil || ok {
		return sym, ok, err
	}
	row := s.db.QueryRowContext(ctx, `SELECT `+symbolColumns+` FROM symbols WHERE name = ? ORDER BY pagerank_score DESC LIMIT 1`, query)
	sym, err := scanSymbol(row)
	if err == sql.ErrNoRows {
		return types.Symbol{}, false, nil
	}
	if err != nil {
		return types.Symbol{}, false, err
	}
	return sym, true, nil
}

// SearchFTS runs a BM25-ranked MATCH query against symbols_fts, optionally
// filtered by kind and a glob file_pattern (translated to SQL LIKE).
func (s *Store) SearchFTS(ctx context.Context, query, kind, filePattern string, limit int) ([]types.Symbol, error) {
	if !s.ftsOK {
		return nil, nil
	}
	sqlQuery := `SELECT ` + prefixColumns("sy") + ` FROM symbols_fts f
		JOIN symbols sy ON sy.id = f.rowid
		WHERE symbols_fts MATCH ?`
	args := []any{query}
	if kind != "" {
		sqlQuery += ` AND sy.kind = ?`
		args = append(args, kind)
	}
	if filePattern != "" {
		sqlQuery += ` AND sy.file_path LIKE ?`
		args = append(args, globToLike(filePattern))
	}
	sqlQuery += ` ORDER BY bm25(symbols_fts) LIMIT ?`
	args = append(args, limit)

	return queryAllSymbols(ctx, s.db, sqlQuery, args...)
}

// SearchLike runs a case-insensitive substring search over name and
// qualified_name, the fallback/complement to SearchFTS.
func (s *Store) SearchLike(ctx context.Context, query, kind, filePattern string, limit int) ([]types.Symbol, error) {
	like := "%" + strings.ToLower(query) + "%"
	sqlQuery := `SELECT ` + symbolColumns + ` FROM symbols
		WHERE (LOWER(name) LIKE ? OR LOWER(qualified_name) LIKE ?)`
	args := []any{like, like}
	if kind != "" {
		sqlQuery += ` AND kind = ?`
		args = append(args, kind)
	}
	if filePattern != "" {
		sqlQuery += ` AND file_path LIKE ?`
		args = append(args, globToLike(filePattern))
	}
	sqlQuery += ` LIMIT ?`
	args = append(args, limit)

	return queryAllSymbols(ctx, s.db, sqlQuery, args...)
}

func prefixColumns(alias string) string {
	cols := strings.Split(symbolColumns, ", ")
	for i, c := range cols {
		cols[i] = alias + "." + c
	}
	return strings.Join(cols, ", ")
}

func globToLike(pattern string) string {
	pattern = strings.ReplaceAll(pattern, "*", "%")
	pattern = strings.ReplaceAll(pattern, "?", "_")
	return pattern
}

func queryAllSymbols(ctx context.Context, db *sql.DB, query string, args ...any) ([]types.Symbol, error) {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []types.Symbol
	for rows.Next() {
		sym, err := scanSymbol(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, sym)
	}
	return out, rows.Err()
}

// EdgeNeighbor is one adjacency-walk hop: the edge plus the neighbour's ID.
type EdgeNeighbor struct {
	NeighborID   int64
	Relationship types.Relationship
	FilePath     string
	LineNumber   int
	Confidence   float64
}

// OutboundEdges returns every symbol-to-symbol edge leaving sourceID,
// optionally filtered to relationships (all relationships when empty).
func (s *Store) OutboundEdges(ctx context.Context, sourceID int64, relationships []types.Relationship) ([]EdgeNeighbor, error) {
	return s.edgesDirectional(ctx, "source_id", "target_id", sourceID, relationships)
}

// InboundEdges returns every symbol-to-symbol edge arriving at targetID.
func (s *Store) InboundEdges(ctx context.Context, targetID int64, relationships []types.Relationship) ([]EdgeNeighbor, error) {
	return s.edgesDirectional(ctx, "target_id", "source_id", targetID, relationships)
}

func (s *Store) edgesDirectional(ctx context.Context, anchorCol, neighborCol string, id int64, relationships []types.Relationship) ([]EdgeNeighbor, error) {
	query := `SELECT ` + neighborCol + `, relationship, file_path, line_number, confidence FROM edges
		WHERE ` + anchorCol + ` = ? AND source_type = 'symbol' AND target_type = 'symbol'`
	args := []any{id}
	if len(relationships) > 0 {
		placeholders := make([]string, len(relationships))
		for i, r := range relationships {
			placeholders[i] = "?"
			args = append(args, string(r))
		}
		query += ` AND relationship IN (` + strings.Join(placeholders, ",") + `)`
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []EdgeNeighbor
	for rows.Next() {
		var n EdgeNeighbor
		var rel string
		var filePath sql.NullString
		if err := rows.Scan(&n.NeighborID, &rel, &filePath, &n.LineNumber, &n.Confidence); err != nil {
			return nil, err
		}
		n.Relationship = types.Relationship(rel)
		n.FilePath = filePath.String
		out = append(out, n)
	}
	return out, rows.Err()
}

// SymbolsUnderPrefix returns every symbol whose file_path starts with
// prefix, ordered by pagerank_score descending.
func (s *Store) SymbolsUnderPrefix(ctx context.Context, prefix string) ([]types.Symbol, error) {
	return queryAllSymbols(ctx, s.db,
		`SELECT `+symbolColumns+` FROM symbols WHERE file_path LIKE ? ORDER BY pagerank_score DESC`, prefix+"%")
}

// CallerCalleeCount returns the number of distinct symbol-to-symbol
// CALLS edges touching id in either direction, used by the structural
// search-ranking term.
func (s *Store) CallerCalleeCount(ctx context.Context, id int64) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM edges
		WHERE (source_id = ? OR target_id = ?) AND relationship = 'CALLS' AND source_type = 'symbol' AND target_type = 'symbol'`,
		id, id).Scan(&count)
	return count, err
}
