// Package federation lets a single Bombe process answer queries that
// span multiple independently-indexed repos: a shard catalog tracking
// which repo owns which symbols, a router that opens per-repo store
// handles on demand, and a federated query planner/executor that fans a
// query out to the relevant shards and merges the results.
package federation

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sync"
)

// RepoID derives the stable shard identifier for a repo from its
// canonical filesystem path.
func RepoID(canonicalRepoPath string) string {
	sum := sha256.Sum256([]byte(canonicalRepoPath))
	return hex.EncodeToString(sum[:])[:16]
}

// GlobalSymbolURI addresses a symbol across repo boundaries.
type GlobalSymbolURI struct {
	RepoID        string
	QualifiedName string
	FilePath      string
}

// String serialises the URI as bombe://{repo_id}/{qualified_name}#{file_path}.
func (u GlobalSymbolURI) String() string {
	return fmt.Sprintf("bombe://%s/%s#%s", u.RepoID, u.QualifiedName, u.FilePath)
}

// Shard is one registered repo in the catalog.
type Shard struct {
	RepoID        string
	RepoPath      string
	DBPath        string
	Enabled       bool
	LastIndexedAt int64
	SymbolCount   int
	EdgeCount     int
}

// ExportedSymbol is one entry of the catalog's cross-repo symbol index:
// enough to resolve an external import to the repo that defines it
// without opening every shard's database.
type ExportedSymbol struct {
	Name          string
	Kind          string
	QualifiedName string
	FilePath      string
	Language      string
	RepoID        string
}

// CrossRepoEdge is an IMPORTS relationship whose target lives in a
// different shard than its source.
type CrossRepoEdge struct {
	Source       GlobalSymbolURI
	Target       GlobalSymbolURI
	Relationship string
}

// Catalog is the in-memory registry of shards and their exported
// symbols. All mutation happens under mu; ShardRouter and the federated
// planner/executor read through the same instance.
type Catalog struct {
	mu              sync.Mutex
	shards          map[string]*Shard
	exportedSymbols map[string][]ExportedSymbol // keyed by exported symbol name
	crossRepoEdges  []CrossRepoEdge
}

// NewCatalog builds an empty Catalog.
func NewCatalog() *Catalog {
	return &Catalog{
		shards:          map[string]*Shard{},
		exportedSymbols: map[string][]ExportedSymbol{},
	}
}

// RegisterShard adds or updates a shard's registration.
func (c *Catalog) RegisterShard(s Shard) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.shards[s.RepoID] = &s
}

// Shards returns every registered shard, enabled or not.
func (c *Catalog) Shards() []Shard {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Shard, 0, len(c.shards))
	for _, s := range c.shards {
		out = append(out, *s)
	}
	return out
}

// EnabledShardIDs returns the repo_ids of every enabled shard.
func (c *Catalog) EnabledShardIDs() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	var ids []string
	for id, s := range c.shards {
		if s.Enabled {
			ids = append(ids, id)
		}
	}
	return ids
}

// RefreshExportedSymbols replaces repoID's contribution to the exported
// symbol index with symbols.
func (c *Catalog) RefreshExportedSymbols(repoID string, symbols []ExportedSymbol) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for key, entries := range c.exportedSymbols {
		filtered := entries[:0]
		for _, e := range entries {
			if e.RepoID != repoID {
				filtered = append(filtered, e)
			}
		}
		c.exportedSymbols[key] = filtered
	}
	for _, sym := range symbols {
		key := sym.Name
		c.exportedSymbols[key] = append(c.exportedSymbols[key], sym)
	}
}

// ResolveExternalImport finds which shard(s) export a symbol whose name
// hints at moduleName (the caller narrows further by language/kind).
func (c *Catalog) ResolveExternalImport(moduleName, language string) []ExportedSymbol {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []ExportedSymbol
	for _, e := range c.exportedSymbols[moduleName] {
		if language == "" || e.Language == language {
			out = append(out, e)
		}
	}
	return out
}

// AddCrossRepoEdge records one resolved cross-repo import, skipping
// duplicates and self-repo matches.
func (c *Catalog) AddCrossRepoEdge(edge CrossRepoEdge) {
	if edge.Source.RepoID == edge.Target.RepoID {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, e := range c.crossRepoEdges {
		if e == edge {
			return
		}
	}
	c.crossRepoEdges = append(c.crossRepoEdges, edge)
}

// CrossRepoEdges returns every recorded cross-repo edge.
func (c *Catalog) CrossRepoEdges() []CrossRepoEdge {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]CrossRepoEdge, len(c.crossRepoEdges))
	copy(out, c.crossRepoEdges)
	return out
}

// RouteSymbolQuery returns the repo_ids whose exported_symbols mentions
// name, falling back to every enabled shard when nothing matches (a
// local symbol may not be exported, but could still live there).
func (c *Catalog) RouteSymbolQuery(name string) []string {
	c.mu.Lock()
	entries := c.exportedSymbols[name]
	c.mu.Unlock()
	if len(entries) == 0 {
		return c.EnabledShardIDs()
	}
	seen := map[string]bool{}
	var ids []string
	for _, e := range entries {
		if !seen[e.RepoID] {
			seen[e.RepoID] = true
			ids = append(ids, e.RepoID)
		}
	}
	return ids
}
