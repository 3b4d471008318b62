// Package callgraph detects call sites and resolves each callee to
// ranked candidate symbols with a heuristic confidence score. Resolved candidates are emitted as logical (qualified_name,
// file_path) pairs — preferred over the reference implementation's
// crc32(qualified_name) placeholder IDs — so the graph
// store can map them to its own SymbolIDs at insertion time.
package callgraph

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/bombeindex/bombe/internal/types"
)

// Index is the global symbol set the builder resolves calls against.
type Index struct {
	byName map[string][]types.Symbol
	byFile map[string][]types.Symbol
}

// BuildIndex indexes every known symbol by name and by file, for caller
// attribution and callee resolution.
func BuildIndex(symbols []types.Symbol) *Index {
	idx := &Index{byName: map[string][]types.Symbol{}, byFile: map[string][]types.Symbol{}}
	for _, s := range symbols {
		idx.byName[s.Name] = append(idx.byName[s.Name], s)
		idx.byFile[s.FilePath] = append(idx.byFile[s.FilePath], s)
	}
	return idx
}

// ReceiverHint is a sidecar hint mapping a receiver expression in a file
// to an inferred owner type.
type ReceiverHint struct {
	Receiver  string
	OwnerType string
	Line      int
}

// CallEdgeCandidate is one resolved (or emitted-ambiguous) call edge,
// named by logical symbol keys rather than store IDs.
type CallEdgeCandidate struct {
	CallerQualifiedName string
	CallerFilePath      string
	CalleeQualifiedName string
	CalleeFilePath      string
	LineNumber          int
	Confidence          float64
}

// ImportHint is what a local name resolves to: the qualifier (module/
// package prefix) its target symbol's QualifiedName is expected to
// carry, and the name the symbol was actually defined under — these
// differ only when the local name is an `as` alias.
type ImportHint struct {
	Qualifier string
	RealName  string
}

// ImportHints maps, per file, a local name (an imported module/package
// qualifier or an `as` alias) to the ImportHint needed to resolve it —
// built from that file's ImportRecords.
type ImportHints map[string]ImportHint

// BuildImportHints derives ImportHints for one file from its imports.
func BuildImportHints(imports []types.ImportRecord) ImportHints {
	hints := ImportHints{}
	for _, imp := range imports {
		module := strings.TrimLeft(imp.ModuleName, ".")
		local := lastSegment(module)
		parent := parentModule(module)
		if imp.Alias != "" {
			// `from X import Y as Z`: Z is the call-site name but the
			// target symbol is still named Y — keep Y as RealName so
			// resolution swaps the alias back before lookup.
			hints[imp.Alias] = ImportHint{Qualifier: parent, RealName: local}
		} else {
			hints[local] = ImportHint{Qualifier: parent, RealName: local}
			hints[module] = ImportHint{Qualifier: parent, RealName: local}
		}
	}
	return hints
}

func lastSegment(module string) string {
	if idx := strings.LastIndex(module, "."); idx >= 0 {
		return module[idx+1:]
	}
	return module
}

func parentModule(module string) string {
	if idx := strings.LastIndex(module, "."); idx >= 0 {
		return module[:idx]
	}
	return ""
}

// Resolve attributes each call site to its smallest enclosing symbol and
// resolves the callee through the confidence ladder: same-file,
// import-scoped, receiver-type hint, global.
func Resolve(idx *Index, filePath string, calls []types.CallSiteWithCaller, hints ImportHints, receiverHints []ReceiverHint, sameScopeAssigns map[string]string) []CallEdgeCandidate {
	var out []CallEdgeCandidate
	fileSymbols := idx.byFile[filePath]

	for _, call := range calls {
		caller := attributeCaller(fileSymbols, call.LineNumber)
		callerQN := caller.QualifiedName
		if callerQN == "" {
			callerQN = call.CallerQualifiedName
		}

		candidates, confidenceUnique, confidenceAmbiguous := resolveCallee(idx, filePath, call, hints, receiverHints, sameScopeAssigns)
		if len(candidates) == 0 {
			continue
		}
		confidence := confidenceAmbiguous
		if len(candidates) == 1 {
			confidence = confidenceUnique
		}
		for _, c := range candidates {
			out = append(out, CallEdgeCandidate{
				CallerQualifiedName: callerQN,
				CallerFilePath:      filePath,
				CalleeQualifiedName: c.QualifiedName,
				CalleeFilePath:      c.FilePath,
				LineNumber:          call.LineNumber,
				Confidence:          confidence,
			})
		}
	}
	return dedupe(out)
}

// attributeCaller returns the smallest-spanning symbol in fileSymbols
// whose [StartLine, EndLine] contains line.
func attributeCaller(fileSymbols []types.Symbol, line int) types.Symbol {
	var best types.Symbol
	bestSpan := -1
	for _, s := range fileSymbols {
		if s.StartLine <= line && line <= s.EndLine {
			span := s.EndLine - s.StartLine
			if bestSpan == -1 || span < bestSpan {
				best = s
				bestSpan = span
			}
		}
	}
	return best
}

func resolveCallee(idx *Index, filePath string, call types.CallSiteWithCaller, hints ImportHints, receiverHints []ReceiverHint, sameScopeAssigns map[string]string) ([]types.Symbol, float64, float64) {
	name := call.CalleeName
	var importHint ImportHint
	hasImportHint := false
	if call.Receiver == "" {
		if h, ok := hints[name]; ok {
			importHint, hasImportHint = h, true
			name = h.RealName // swap an `as` alias back to the name the target was defined under
		}
	}

	all := idx.byName[name]
	if len(all) == 0 {
		return nil, 1.0, 0.5
	}

	// Tier 1: same-file.
	var sameFile []types.Symbol
	for _, s := range all {
		if s.FilePath == filePath {
			sameFile = append(sameFile, s)
		}
	}
	if len(sameFile) > 0 {
		return sameFile, 1.0, 0.8
	}

	// Tier 2: import-scoped.
	if hasImportHint {
		var scoped []types.Symbol
		for _, s := range all {
			if qualifierOf(s.QualifiedName) == importHint.Qualifier {
				scoped = append(scoped, s)
			}
		}
		if len(scoped) > 0 {
			return scoped, 1.0, 0.7
		}
	}

	// Tier 3: receiver-type hint.
	if call.Receiver != "" {
		ownerType := inferReceiverType(call.Receiver, receiverHints, sameScopeAssigns)
		if ownerType != "" {
			var typed []types.Symbol
			for _, s := range all {
				if strings.HasSuffix(qualifierOf(s.QualifiedName), "."+ownerType) || qualifierOf(s.QualifiedName) == ownerType {
					typed = append(typed, s)
				}
			}
			if len(typed) > 0 {
				return typed, 1.0, 0.7
			}
		}
	}

	// Tier 4: global fallback.
	return all, 1.0, 0.5
}

func qualifierOf(qualifiedName string) string {
	if idx := strings.LastIndex(qualifiedName, "."); idx >= 0 {
		return qualifiedName[:idx]
	}
	return ""
}

var (
	assignNewRE  = regexp.MustCompile(`^\s*([A-Za-z_]\w*)\s*(?::?=)\s*(?:new\s+)?([A-Z]\w*)\s*\(`)
	selfMemberRE = regexp.MustCompile(`^\s*self\.(\w+)\s*=\s*([A-Z]\w*)\s*\(`)
)

// InferSameScopeAssignments scans a symbol body's source lines for
// `receiver = Type(...)` / `new Type()` and `self.member = Type(...)`
// assignments, returning a receiver-name -> inferred-type map.
func InferSameScopeAssignments(lines []string) map[string]string {
	out := map[string]string{}
	for _, line := range lines {
		if m := assignNewRE.FindStringSubmatch(line); m != nil {
			out[m[1]] = m[2]
		}
		if m := selfMemberRE.FindStringSubmatch(line); m != nil {
			out["self."+m[1]] = m[2]
		}
	}
	return out
}

func inferReceiverType(receiver string, hints []ReceiverHint, sameScopeAssigns map[string]string) string {
	for _, h := range hints {
		if h.Receiver == receiver {
			return h.OwnerType
		}
	}
	if t, ok := sameScopeAssigns[receiver]; ok {
		return t
	}
	return ""
}

func dedupe(edges []CallEdgeCandidate) []CallEdgeCandidate {
	seen := map[[3]string]bool{}
	out := edges[:0]
	for _, e := range edges {
		key := [3]string{e.CallerQualifiedName, e.CalleeQualifiedName, strconv.Itoa(e.LineNumber)}
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, e)
	}
	return out
}

