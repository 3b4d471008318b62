// Package resolve maps a language-specific ImportRecord to a
// repo-internal file path, or classifies it as external.
package resolve

import (
	"os"
	"path"
	"path/filepath"
	"strings"

	"golang.org/x/mod/modfile"

	"github.com/bombeindex/bombe/internal/types"
)

// RepoFiles is the set of repo-relative paths known to the walker/store,
// used as the resolution target set.
type RepoFiles map[string]bool

// Resolver resolves ImportRecords for one language.
type Resolver interface {
	Resolve(imp types.ImportRecord, files RepoFiles) (resolvedPath string, ok bool)
}

// Resolution is the outcome of resolving one ImportRecord: either a
// resolved file-to-file IMPORTS edge (SourcePath/TargetPath, to be mapped
// to store IDs by the caller) or an ExternalDep (unresolved).
type Resolution struct {
	SourcePath string
	TargetPath string
	LineNumber int

	ExternalDep *types.ExternalDep
}

// Resolved reports whether this Resolution carries a resolved edge.
func (r Resolution) Resolved() bool { return r.ExternalDep == nil }

// ResolveAll resolves every import in imports against files, producing one
// Resolution per import.
func ResolveAll(lang types.Language, imports []types.ImportRecord, files RepoFiles, goModulePrefix string) []Resolution {
	r := forLanguage(lang, goModulePrefix)
	out := make([]Resolution, 0, len(imports))
	for _, imp := range imports {
		resolved, ok := r.Resolve(imp, files)
		if ok {
			out = append(out, Resolution{
				SourcePath: imp.FilePath, TargetPath: resolved, LineNumber: imp.LineNumber,
			})
		} else {
			out = append(out, Resolution{ExternalDep: &types.ExternalDep{
				FilePath: imp.FilePath, ImportStatement: imp.Statement,
				ModuleName: imp.ModuleName, LineNumber: imp.LineNumber,
			}})
		}
	}
	return out
}

func forLanguage(lang types.Language, goModulePrefix string) Resolver {
	switch lang {
	case types.LanguagePython:
		return pythonResolver{}
	case types.LanguageJava:
		return javaResolver{}
	case types.LanguageTypeScript:
		return typeScriptResolver{}
	case types.LanguageGo:
		return goResolver{modulePrefix: goModulePrefix}
	default:
		return noopResolver{}
	}
}

type noopResolver struct{}

func (noopResolver) Resolve(types.ImportRecord, RepoFiles) (string, bool) { return "", false }

type pythonResolver struct{}

func (pythonResolver) Resolve(imp types.ImportRecord, files RepoFiles) (string, bool) {
	module := strings.TrimLeft(imp.ModuleName, ".")
	base := strings.ReplaceAll(module, ".", "/")
	if candidate := base + ".py"; files[candidate] {
		return candidate, true
	}
	if candidate := path.Join(base, "__init__.py"); files[candidate] {
		return candidate, true
	}
	return "", false
}

type javaResolver struct{}

func (javaResolver) Resolve(imp types.ImportRecord, files RepoFiles) (string, bool) {
	module := strings.TrimSuffix(imp.ModuleName, ".*")
	candidate := strings.ReplaceAll(module, ".", "/") + ".java"
	return candidate, files[candidate]
}

type typeScriptResolver struct{}

func (typeScriptResolver) Resolve(imp types.ImportRecord, files RepoFiles) (string, bool) {
	module := imp.ModuleName
	if !strings.HasPrefix(module, "./") && !strings.HasPrefix(module, "../") {
		return "", false // only relative modules are repo-internal
	}
	dir := path.Dir(imp.FilePath)
	base := path.Clean(path.Join(dir, module))

	candidates := []string{base, base + ".ts", base + ".tsx", base + "/index.ts", base + "/index.tsx"}
	for _, c := range candidates {
		if files[c] {
			return c, true
		}
	}
	return "", false
}

type goResolver struct{ modulePrefix string }

func (g goResolver) Resolve(imp types.ImportRecord, files RepoFiles) (string, bool) {
	prefix := g.modulePrefix
	if prefix == "" || !strings.HasPrefix(imp.ModuleName, prefix) {
		return "", false
	}
	sub := strings.TrimPrefix(imp.ModuleName, prefix)
	sub = strings.TrimPrefix(sub, "/")
	for rel := range files {
		if !strings.HasSuffix(rel, ".go") {
			continue
		}
		if path.Dir(rel) == sub {
			return rel, true // first .go file under that subtree wins
		}
	}
	return "", false
}

// GoModulePrefix parses root/go.mod (if present) to recover the module
// path prefix used to resolve Go imports against repo-internal files.
func GoModulePrefix(root string) string {
	data, err := os.ReadFile(filepath.Join(root, "go.mod"))
	if err != nil {
		return ""
	}
	mf, err := modfile.ParseLax("go.mod", data, nil)
	if err != nil || mf.Module == nil {
		return ""
	}
	return mf.Module.Mod.Path
}
