package extract

import (
	"regexp"
	"strings"
	"unicode"

	"github.com/bombeindex/bombe/internal/parser"
	"github.com/bombeindex/bombe/internal/types"
)

// GoExtractor recognises the `package` line, single-line and
// parenthesised import blocks, `type Name struct|interface`, top-level
// `func Name(params) ret`, methods with a receiver (qualified name
// `pkg.RecvType.Name`), and `const Name`. Visibility is
// public iff the name starts with an uppercase letter.
type GoExtractor struct{}

var (
	goPackageRE     = regexp.MustCompile(`^\s*package\s+(\w+)`)
	goImportLineRE  = regexp.MustCompile(`^\s*import\s+(?:(\w+)\s+)?"([^"]+)"`)
	goImportItemRE  = regexp.MustCompile(`^\s*(?:(\w+)\s+)?"([^"]+)"`)
	goTypeRE        = regexp.MustCompile(`^\s*type\s+(\w+)\s+(struct|interface)\b`)
	goFuncRE        = regexp.MustCompile(`^\s*func\s+(\w+)\s*\(([^)]*)\)\s*(.*?)\s*\{?\s*$`)
	goMethodRE      = regexp.MustCompile(`^\s*func\s*\(\s*(\w+)\s+\*?(\w+)\s*\)\s*(\w+)\s*\(([^)]*)\)\s*(.*?)\s*\{?\s*$`)
	goConstRE       = regexp.MustCompile(`^\s*const\s+(\w+)\b`)
	goImportBlockOp = regexp.MustCompile(`^\s*import\s*\(\s*$`)
)

func (GoExtractor) Extract(unit parser.ParsedUnit) (types.ExtractResult, error) {
	var result types.ExtractResult
	lines := strings.Split(string(unit.Source), "\n")

	var pkg string
	inImportBlock := false

	for i, line := range lines {
		lineNo := i + 1

		if m := goPackageRE.FindStringSubmatch(line); m != nil {
			pkg = m[1]
		}

		if inImportBlock {
			trimmed := strings.TrimSpace(line)
			if trimmed == ")" {
				inImportBlock = false
				continue
			}
			if m := goImportItemRE.FindStringSubmatch(line); m != nil {
				result.Imports = append(result.Imports, types.ImportRecord{
					FilePath: unit.Path, Statement: trimmed, Alias: m[1],
					ModuleName: m[2], LineNumber: lineNo,
				})
			}
			continue
		}
		if goImportBlockOp.MatchString(line) {
			inImportBlock = true
			continue
		}
		if m := goImportLineRE.FindStringSubmatch(line); m != nil {
			result.Imports = append(result.Imports, types.ImportRecord{
				FilePath: unit.Path, Statement: strings.TrimSpace(line), Alias: m[1],
				ModuleName: m[2], LineNumber: lineNo,
			})
			continue
		}

		if m := goTypeRE.FindStringSubmatch(line); m != nil {
			name := m[1]
			kind := types.KindClass
			if m[2] == "interface" {
				kind = types.KindInterface
			}
			result.Symbols = append(result.Symbols, types.Symbol{
				Name: name, QualifiedName: qualifyGo(pkg, name), Kind: kind,
				FilePath: unit.Path, StartLine: lineNo, EndLine: lineNo,
				Visibility: goVisibility(name),
			})
			continue
		}

		if m := goMethodRE.FindStringSubmatch(line); m != nil {
			recv, name, params, ret := m[2], m[3], m[4], m[5]
			qualified := pkg + "." + recv + "." + name
			result.Symbols = append(result.Symbols, types.Symbol{
				Name: name, QualifiedName: qualified, Kind: types.KindMethod,
				FilePath: unit.Path, StartLine: lineNo, EndLine: lineNo,
				Signature: name + "(" + params + ")", ReturnType: strings.TrimSpace(ret),
				Visibility: goVisibility(name), Parameters: parseGoParams(params),
			})
			continue
		}

		if m := goFuncRE.FindStringSubmatch(line); m != nil {
			name, params, ret := m[1], m[2], m[3]
			result.Symbols = append(result.Symbols, types.Symbol{
				Name: name, QualifiedName: qualifyGo(pkg, name), Kind: types.KindFunction,
				FilePath: unit.Path, StartLine: lineNo, EndLine: lineNo,
				Signature: name + "(" + params + ")", ReturnType: strings.TrimSpace(ret),
				Visibility: goVisibility(name), Parameters: parseGoParams(params),
			})
			continue
		}

		if m := goConstRE.FindStringSubmatch(line); m != nil {
			name := m[1]
			result.Symbols = append(result.Symbols, types.Symbol{
				Name: name, QualifiedName: qualifyGo(pkg, name), Kind: types.KindConstant,
				FilePath: unit.Path, StartLine: lineNo, EndLine: lineNo,
				Visibility: goVisibility(name),
			})
		}

		result.Calls = append(result.Calls, findGenericCalls(line, lineNo, "")...)
	}
	return result, nil
}

func qualifyGo(pkg, name string) string {
	if pkg == "" {
		return name
	}
	return pkg + "." + name
}

func goVisibility(name string) types.Visibility {
	if name == "" {
		return types.VisibilityPackage
	}
	r := []rune(name)[0]
	if unicode.IsUpper(r) {
		return types.VisibilityPublic
	}
	return types.VisibilityPackage
}

func parseGoParams(raw string) []types.Parameter {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	parts := splitTopLevelCommas(raw)
	params := make([]types.Parameter, 0, len(parts))
	// Go allows grouped names sharing a trailing type: "a, b int". Track a
	// pending-name buffer until a type is seen.
	var pendingNames []string
	for i, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		fields := strings.Fields(p)
		if len(fields) == 1 {
			// Either a bare type (unnamed param) or a name awaiting a type
			// from a later group; Go syntax resolves this left-to-right, so
			// treat it as a pending name.
			pendingNames = append(pendingNames, fields[0])
			continue
		}
		name := fields[0]
		typ := strings.TrimPrefix(strings.Join(fields[1:], " "), "...")
		for _, pn := range pendingNames {
			params = append(params, types.Parameter{Position: len(params), Name: pn, Type: typ})
		}
		pendingNames = nil
		params = append(params, types.Parameter{Position: len(params), Name: name, Type: typ})
		_ = i
	}
	for _, pn := range pendingNames {
		params = append(params, types.Parameter{Position: len(params), Type: pn})
	}
	return params
}
