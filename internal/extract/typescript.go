package extract

import (
	"regexp"
	"strings"

	"github.com/bombeindex/bombe/internal/parser"
	"github.com/bombeindex/bombe/internal/types"
)

// TypeScriptExtractor recognises `import ... from '...'`, `class|interface|
// type Name`, top-level `function`, exported arrow-function consts, and
// class method signatures; `constructor` is excluded; `async` on the same
// line sets IsAsync.
type TypeScriptExtractor struct{}

var (
	tsImportRE    = regexp.MustCompile(`^\s*import\s+.*\bfrom\s+['"]([^'"]+)['"]`)
	tsTypeRE      = regexp.MustCompile(`^\s*(?:export\s+)?(?:default\s+)?(class|interface|type)\s+(\w+)`)
	tsFunctionRE  = regexp.MustCompile(`^\s*(?:export\s+)?(?:default\s+)?(async\s+)?function\s*\*?\s+(\w+)\s*\(([^)]*)\)`)
	tsArrowConstRE = regexp.MustCompile(`^\s*export\s+(?:default\s+)?const\s+(\w+)\s*(?::\s*[\w<>\[\], |]+)?\s*=\s*(async\s+)?\(([^)]*)\)\s*(?::\s*[\w<>\[\], |]+)?\s*=>`)
	tsMethodRE    = regexp.MustCompile(`^\s*(?:(public|private|protected)\s+)?(?:static\s+)?(async\s+)?(\w+)\s*\(([^)]*)\)\s*(?::\s*[\w<>\[\], |]+)?\s*\{`)
)

func (TypeScriptExtractor) Extract(unit parser.ParsedUnit) (types.ExtractResult, error) {
	var result types.ExtractResult
	lines := strings.Split(string(unit.Source), "\n")

	depth := 0
	var classStack []string
	currentClass := func() string {
		if len(classStack) == 0 {
			return ""
		}
		return classStack[len(classStack)-1]
	}

	for i, line := range lines {
		lineNo := i + 1

		if m := tsImportRE.FindStringSubmatch(line); m != nil {
			result.Imports = append(result.Imports, types.ImportRecord{
				FilePath: unit.Path, Statement: strings.TrimSpace(line),
				ModuleName: m[1], LineNumber: lineNo,
			})
		}

		if m := tsTypeRE.FindStringSubmatch(line); m != nil {
			name := m[2]
			kind := types.KindClass
			if m[1] == "interface" {
				kind = types.KindInterface
			}
			result.Symbols = append(result.Symbols, types.Symbol{
				Name: name, QualifiedName: name, Kind: kind,
				FilePath: unit.Path, StartLine: lineNo, EndLine: lineNo,
				Visibility: types.VisibilityPublic,
			})
			if m[1] == "class" {
				classStack = append(classStack, name)
				depth = 0 // reset depth tracking relative to class entry
			}
		} else if m := tsFunctionRE.FindStringSubmatch(line); m != nil {
			name := m[2]
			result.Symbols = append(result.Symbols, types.Symbol{
				Name: name, QualifiedName: name, Kind: types.KindFunction,
				FilePath: unit.Path, StartLine: lineNo, EndLine: lineNo,
				Signature:  name + "(" + m[3] + ")",
				Visibility: types.VisibilityPublic,
				IsAsync:    strings.TrimSpace(m[1]) == "async",
				Parameters: parseTSParams(m[3]),
			})
		} else if m := tsArrowConstRE.FindStringSubmatch(line); m != nil {
			name := m[1]
			result.Symbols = append(result.Symbols, types.Symbol{
				Name: name, QualifiedName: name, Kind: types.KindFunction,
				FilePath: unit.Path, StartLine: lineNo, EndLine: lineNo,
				Signature:  name + "(" + m[3] + ")",
				Visibility: types.VisibilityPublic,
				IsAsync:    strings.TrimSpace(m[2]) == "async",
				Parameters: parseTSParams(m[3]),
			})
		} else if currentClass() != "" {
			if m := tsMethodRE.FindStringSubmatch(line); m != nil && m[3] != "constructor" {
				name := m[3]
				result.Symbols = append(result.Symbols, types.Symbol{
					Name: name, QualifiedName: currentClass() + "." + name, Kind: types.KindMethod,
					FilePath: unit.Path, StartLine: lineNo, EndLine: lineNo,
					Signature:  name + "(" + m[4] + ")",
					Visibility: tsVisibility(m[1]),
					IsAsync:    strings.TrimSpace(m[2]) == "async",
					Parameters: parseTSParams(m[4]),
				})
			}
		}

		for _, c := range line {
			if c == '{' {
				depth++
			} else if c == '}' {
				depth--
				if depth <= 0 && len(classStack) > 0 {
					classStack = classStack[:len(classStack)-1]
					depth = 0
				}
			}
		}

		result.Calls = append(result.Calls, findGenericCalls(line, lineNo, currentClass())...)
	}
	return result, nil
}

func tsVisibility(mod string) types.Visibility {
	switch mod {
	case "private":
		return types.VisibilityPrivate
	case "protected":
		return types.VisibilityProtected
	default:
		return types.VisibilityPublic
	}
}

func parseTSParams(raw string) []types.Parameter {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	parts := splitTopLevelCommas(raw)
	params := make([]types.Parameter, 0, len(parts))
	for i, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		name, typ, def := p, "", ""
		if idx := strings.Index(name, "="); idx >= 0 {
			def = strings.TrimSpace(name[idx+1:])
			name = strings.TrimSpace(name[:idx])
		}
		if idx := strings.Index(name, ":"); idx >= 0 {
			typ = strings.TrimSpace(name[idx+1:])
			name = strings.TrimSpace(name[:idx])
		}
		name = strings.TrimPrefix(name, "...")
		params = append(params, types.Parameter{Position: i, Name: name, Type: typ, DefaultValue: def})
	}
	return params
}

// splitTopLevelCommas splits on commas not nested inside <>, [], (), or {}.
func splitTopLevelCommas(s string) []string {
	var parts []string
	depth := 0
	last := 0
	for i, r := range s {
		switch r {
		case '<', '[', '(', '{':
			depth++
		case '>', ']', ')', '}':
			depth--
		case ',':
			if depth == 0 {
				parts = append(parts, s[last:i])
				last = i + 1
			}
		}
	}
	parts = append(parts, s[last:])
	return parts
}

var genericCallRE = regexp.MustCompile(`\b([A-Za-z_$][\w.$]*)\s*\(`)

func findGenericCalls(line string, lineNo int, caller string) []types.CallSiteWithCaller {
	var calls []types.CallSiteWithCaller
	for _, m := range genericCallRE.FindAllStringSubmatchIndex(line, -1) {
		name := line[m[2]:m[3]]
		if controlKeywords[name] {
			continue
		}
		if precededByDeclKeyword(line, m[2]) {
			continue
		}
		receiver, callee := "", name
		if idx := strings.LastIndex(name, "."); idx >= 0 {
			receiver = name[:idx]
			callee = name[idx+1:]
		}
		calls = append(calls, types.CallSiteWithCaller{
			CallSite:            types.CallSite{CalleeName: callee, Receiver: receiver, LineNumber: lineNo},
			CallerQualifiedName: caller,
		})
	}
	return calls
}
