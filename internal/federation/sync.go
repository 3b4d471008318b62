package federation

import (
	"context"
	"fmt"

	"github.com/bombeindex/bombe/internal/store"
	"github.com/bombeindex/bombe/internal/types"
)

// PostIndexCrossRepoSync refreshes catalog's exported_symbols for repoID
// from st's current symbol table, then tries to resolve every
// unresolved external import against the catalog, upserting one
// CrossRepoEdge per hit.
func PostIndexCrossRepoSync(ctx context.Context, st *store.Store, catalog *Catalog, repoID string, language string, externalDeps []types.ExternalDep) error {
	symbols, err := st.SymbolsUnderPrefix(ctx, "")
	if err != nil {
		return fmt.Errorf("federation: list symbols for cross-repo sync: %w", err)
	}
	exported := make([]ExportedSymbol, 0, len(symbols))
	for _, sym := range symbols {
		exported = append(exported, ExportedSymbol{
			Name: sym.Name, Kind: string(sym.Kind), QualifiedName: sym.QualifiedName,
			FilePath: sym.FilePath, Language: language, RepoID: repoID,
		})
	}
	catalog.RefreshExportedSymbols(repoID, exported)

	for _, dep := range externalDeps {
		hits := catalog.ResolveExternalImport(dep.ModuleName, language)
		if len(hits) == 0 {
			continue
		}
		sourceURI := GlobalSymbolURI{RepoID: repoID, QualifiedName: dep.ModuleName, FilePath: dep.FilePath}
		for _, hit := range hits {
			if hit.RepoID == repoID {
				continue
			}
			targetURI := GlobalSymbolURI{RepoID: hit.RepoID, QualifiedName: hit.QualifiedName, FilePath: hit.FilePath}
			catalog.AddCrossRepoEdge(CrossRepoEdge{Source: sourceURI, Target: targetURI, Relationship: "IMPORTS"})
		}
	}
	return nil
}
