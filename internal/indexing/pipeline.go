// Package indexing orchestrates the full and incremental indexing
// pipelines: walk, parse, extract, resolve imports, build the call
// graph, persist to the store, then recompute PageRank.
package indexing

import (
	"context"
	"fmt"
	"runtime"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/bombeindex/bombe/internal/callgraph"
	"github.com/bombeindex/bombe/internal/config"
	"github.com/bombeindex/bombe/internal/extract"
	"github.com/bombeindex/bombe/internal/pagerank"
	"github.com/bombeindex/bombe/internal/parser"
	"github.com/bombeindex/bombe/internal/resolve"
	"github.com/bombeindex/bombe/internal/store"
	"github.com/bombeindex/bombe/internal/types"
	"github.com/bombeindex/bombe/internal/walker"
)

// Pipeline is a single workspace's indexing engine: one store, one
// parser dispatch, shared across full and incremental runs.
type Pipeline struct {
	Root    string
	Store   *store.Store
	Parser  *parser.Dispatch
	Rules   *config.IgnoreRules
	Runtime types.RuntimeConfig
}

// New builds a Pipeline rooted at root, loading ignore rules and
// instantiating the parser dispatch.
func New(root string, st *store.Store, runtime types.RuntimeConfig, callerExcludes []string) (*Pipeline, error) {
	rules, err := config.NewIgnoreRules(root, callerExcludes, runtime.ExcludeSensitiveFiles)
	if err != nil {
		return nil, fmt.Errorf("indexing: load ignore rules: %w", err)
	}
	return &Pipeline{Root: root, Store: st, Parser: parser.New(), Rules: rules, Runtime: runtime}, nil
}

// fileUnit is one file's intermediate extraction result, carried between
// the parallel extraction fan-out and the single-writer persistence pass.
type fileUnit struct {
	entry   walker.FileEntry
	result  types.ExtractResult
	skipped bool
}

// FullIndex walks the whole repo, extracts every file in parallel, then
// persists symbols/edges/externals file-by-file before recomputing
// PageRank over the whole graph.
func (p *Pipeline) FullIndex(ctx context.Context) (types.IndexStats, error) {
	start := time.Now()
	entries, err := walker.Walk(p.Root, p.Rules)
	if err != nil {
		return types.IndexStats{}, fmt.Errorf("indexing: walk: %w", err)
	}

	goModPrefix := resolve.GoModulePrefix(p.Root)
	repoFiles := make(resolve.RepoFiles, len(entries))
	for _, e := range entries {
		repoFiles[e.RelPath] = true
	}

	units := make([]fileUnit, len(entries))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxParallelism())
	for i, entry := range entries {
		i, entry := i, entry
		g.Go(func() error {
			select {
			case <-gctx.Done():
				return gctx.Err()
			default:
			}
			units[i] = p.extractOne(entry)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return types.IndexStats{}, fmt.Errorf("indexing: extract fan-out: %w", err)
	}

	stats := types.IndexStats{FilesSeen: len(entries)}
	globalIndex := p.buildGlobalSymbolIndex(units)

	for _, u := range units {
		if u.skipped {
			continue
		}
		if err := p.persistUnit(ctx, u, repoFiles, goModPrefix, globalIndex, &stats); err != nil {
			return stats, fmt.Errorf("indexing: persist %s: %w", u.entry.RelPath, err)
		}
		stats.FilesIndexed++
	}

	if err := p.recomputePagerank(ctx); err != nil {
		return stats, fmt.Errorf("indexing: pagerank: %w", err)
	}
	stats.ElapsedMS = time.Since(start).Milliseconds()
	return stats, nil
}

// IncrementalIndex applies a set of file-level changes: added/modified
// files are re-walked, re-extracted, and re-persisted; deleted files
// drop their graph rows; renamed files carry their rows forward.
func (p *Pipeline) IncrementalIndex(ctx context.Context, changes []types.FileChange) (types.IndexStats, error) {
	start := time.Now()
	var stats types.IndexStats
	stats.FilesSeen = len(changes)

	knownFiles, err := p.Store.KnownFilePaths(ctx)
	if err != nil {
		return stats, fmt.Errorf("indexing: known file paths: %w", err)
	}
	goModPrefix := resolve.GoModulePrefix(p.Root)

	var toReindex []types.FileChange
	for _, c := range changes {
		switch c.Status {
		case types.ChangeDeleted:
			if err := p.Store.DeleteFileGraph(ctx, c.Path); err != nil {
				return stats, fmt.Errorf("indexing: delete %s: %w", c.Path, err)
			}
			delete(knownFiles, c.Path)
		case types.ChangeRenamed:
			if err := p.Store.RenameFile(ctx, c.OldPath, c.Path); err != nil {
				return stats, fmt.Errorf("indexing: rename %s -> %s: %w", c.OldPath, c.Path, err)
			}
			delete(knownFiles, c.OldPath)
			knownFiles[c.Path] = true
		default:
			toReindex = append(toReindex, c)
			knownFiles[c.Path] = true
		}
	}

	for _, c := range toReindex {
		entry, err := p.walkOne(c.Path)
		if err != nil {
			continue // file vanished between change detection and reindex; next run reconciles
		}
		unit := p.extractOne(entry)
		if unit.skipped {
			continue
		}
		idx := p.buildGlobalSymbolIndex([]fileUnit{unit})
		if err := p.persistUnit(ctx, unit, knownFiles, goModPrefix, idx, &stats); err != nil {
			return stats, fmt.Errorf("indexing: persist %s: %w", c.Path, err)
		}
		stats.FilesIndexed++
	}

	if err := p.recomputePagerank(ctx); err != nil {
		return stats, fmt.Errorf("indexing: pagerank: %w", err)
	}
	stats.ElapsedMS = time.Since(start).Milliseconds()
	return stats, nil
}

func (p *Pipeline) extractOne(entry walker.FileEntry) fileUnit {
	if !entry.HasLang {
		return fileUnit{entry: entry, skipped: false}
	}
	unit, err := p.Parser.Parse(entry.AbsPath, entry.Language, entry.Content)
	if err != nil {
		if p.Runtime.RequireTreeSitter {
			return fileUnit{entry: entry, skipped: true}
		}
		return fileUnit{entry: entry}
	}
	defer unit.Close()
	unit.Path = entry.RelPath

	ext := extract.ForLanguage(entry.Language)
	result, err := ext.Extract(unit)
	if err != nil {
		return fileUnit{entry: entry}
	}
	return fileUnit{entry: entry, result: result}
}

func (p *Pipeline) walkOne(relPath string) (walker.FileEntry, error) {
	entries, err := walker.Walk(p.Root, p.Rules)
	if err != nil {
		return walker.FileEntry{}, err
	}
	for _, e := range entries {
		if e.RelPath == relPath {
			return e, nil
		}
	}
	return walker.FileEntry{}, fmt.Errorf("file not found after walk: %s", relPath)
}

// buildGlobalSymbolIndex flattens every extracted unit's symbols into one
// callgraph.Index for callee resolution across file boundaries.
func (p *Pipeline) buildGlobalSymbolIndex(units []fileUnit) *callgraph.Index {
	var all []types.Symbol
	for _, u := range units {
		all = append(all, u.result.Symbols...)
	}
	return callgraph.BuildIndex(all)
}

func (p *Pipeline) persistUnit(ctx context.Context, u fileUnit, repoFiles resolve.RepoFiles, goModPrefix string, idx *callgraph.Index, stats *types.IndexStats) error {
	entry := u.entry
	if err := p.Store.UpsertFile(ctx, types.File{
		Path: entry.RelPath, Language: entry.Language, ContentHash: entry.Hash,
		SizeBytes: entry.Size, LastIndexedAt: time.Now().Unix(),
	}); err != nil {
		return err
	}
	if !entry.HasLang {
		return nil
	}

	symIDs, err := p.Store.ReplaceFileSymbols(ctx, entry.RelPath, u.result.Symbols)
	if err != nil {
		return err
	}
	stats.SymbolsIndexed += len(symIDs)

	resolutions := resolve.ResolveAll(entry.Language, u.result.Imports, repoFiles, goModPrefix)
	var externalDeps []types.ExternalDep
	importHintsSource := make([]types.ImportRecord, 0, len(u.result.Imports))
	for i, r := range resolutions {
		if r.Resolved() {
			importHintsSource = append(importHintsSource, u.result.Imports[i])
			continue
		}
		externalDeps = append(externalDeps, *r.ExternalDep)
	}
	if err := p.Store.ReplaceExternalDeps(ctx, entry.RelPath, externalDeps); err != nil {
		return err
	}

	hints := callgraph.BuildImportHints(importHintsSource)
	candidates := callgraph.Resolve(idx, entry.RelPath, u.result.Calls, hints, nil, nil)

	var edges []types.Edge
	for _, c := range candidates {
		sourceID, ok, err := p.Store.ResolveSymbolID(ctx, c.CallerQualifiedName, c.CallerFilePath)
		if err != nil || !ok {
			continue
		}
		targetID, ok, err := p.Store.ResolveSymbolID(ctx, c.CalleeQualifiedName, c.CalleeFilePath)
		if err != nil || !ok {
			continue
		}
		edges = append(edges, types.Edge{
			SourceID: int64(sourceID), TargetID: int64(targetID),
			SourceType: types.EndpointSymbol, TargetType: types.EndpointSymbol,
			Relationship: types.RelCalls, FilePath: entry.RelPath,
			LineNumber: c.LineNumber, Confidence: c.Confidence,
		})
	}
	for i, r := range resolutions {
		if !r.Resolved() {
			continue
		}
		edges = append(edges, types.Edge{
			SourceType: types.EndpointFile, TargetType: types.EndpointFile,
			Relationship: types.RelImports, FilePath: entry.RelPath,
			LineNumber: u.result.Imports[i].LineNumber, Confidence: 1.0,
		})
	}
	if err := p.Store.ReplaceFileEdges(ctx, entry.RelPath, edges); err != nil {
		return err
	}
	stats.EdgesIndexed += len(edges)
	return nil
}

func (p *Pipeline) recomputePagerank(ctx context.Context) error {
	rows, err := p.Store.DB().QueryContext(ctx,
		`SELECT source_id, target_id FROM edges WHERE source_type = 'symbol' AND target_type = 'symbol'`)
	if err != nil {
		return err
	}
	defer rows.Close()

	g := pagerank.Graph{Out: map[int64][]int64{}}
	seen := map[int64]bool{}
	for rows.Next() {
		var src, dst int64
		if err := rows.Scan(&src, &dst); err != nil {
			return err
		}
		if !seen[src] {
			seen[src] = true
			g.Nodes = append(g.Nodes, src)
		}
		if !seen[dst] {
			seen[dst] = true
			g.Nodes = append(g.Nodes, dst)
		}
		g.Out[src] = append(g.Out[src], dst)
	}
	if err := rows.Err(); err != nil {
		return err
	}

	scores := pagerank.Compute(g)
	for id, score := range scores {
		if _, err := p.Store.DB().ExecContext(ctx, `UPDATE symbols SET pagerank_score = ? WHERE id = ?`, score, id); err != nil {
			return err
		}
	}
	return nil
}

func maxParallelism() int {
	n := runtime.NumCPU()
	if n < 1 {
		return 1
	}
	return n
}
