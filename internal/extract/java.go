package extract

import (
	"regexp"
	"strings"

	"github.com/bombeindex/bombe/internal/parser"
	"github.com/bombeindex/bombe/internal/types"
)

// JavaExtractor is regex-driven with brace-depth tracking:
// `package` sets the qualifier prefix; `import X;` (star imports allowed);
// class/interface/enum declarations; method lines matching
// `returnType name(params) {`. Class scope is tracked by brace depth so
// the next symbol's kind is `method` iff inside a class.
type JavaExtractor struct{}

var (
	javaPackageRE = regexp.MustCompile(`^\s*package\s+([\w.]+)\s*;`)
	javaImportRE  = regexp.MustCompile(`^\s*import\s+(static\s+)?([\w.]+(?:\.\*)?)\s*;`)
	javaTypeRE    = regexp.MustCompile(`^\s*(?:(public|private|protected)\s+)?(?:(static|final|abstract)\s+)*(class|interface|enum)\s+(\w+)`)
	javaMethodRE  = regexp.MustCompile(`^\s*(?:(public|private|protected)\s+)?(?:(static|final|abstract|synchronized)\s+)*([\w<>\[\],.\s]+?)\s+(\w+)\s*\(([^)]*)\)\s*(?:throws\s+[\w.,\s]+)?\s*\{`)
	javaConstRE   = regexp.MustCompile(`^\s*(?:(public|private|protected)\s+)?(?:static\s+)?(?:final\s+)?[\w<>\[\]]+\s+([A-Z][A-Z0-9_]*)\s*=`)
)

type braceScope struct {
	depth     int
	className string
}

func (JavaExtractor) Extract(unit parser.ParsedUnit) (types.ExtractResult, error) {
	var result types.ExtractResult
	lines := strings.Split(string(unit.Source), "\n")

	var pkg string
	var stack []braceScope // scopes opened by class/interface/enum

	for i, raw := range lines {
		lineNo := i + 1
		line := raw

		if m := javaPackageRE.FindStringSubmatch(line); m != nil {
			pkg = m[1]
		}
		if m := javaImportRE.FindStringSubmatch(line); m != nil {
			result.Imports = append(result.Imports, types.ImportRecord{
				FilePath: unit.Path, Statement: strings.TrimSpace(line),
				ModuleName: m[2], LineNumber: lineNo,
			})
		}

		currentClass := ""
		if len(stack) > 0 {
			currentClass = stack[len(stack)-1].className
		}

		if m := javaTypeRE.FindStringSubmatch(line); m != nil {
			name := m[4]
			qualified := qualifyJava(pkg, currentClass, name)
			kind := types.KindClass
			if m[3] == "interface" {
				kind = types.KindInterface
			}
			result.Symbols = append(result.Symbols, types.Symbol{
				Name: name, QualifiedName: qualified, Kind: kind,
				FilePath: unit.Path, StartLine: lineNo, EndLine: lineNo,
				Visibility: javaVisibility(m[1]),
			})
			stack = append(stack, braceScope{className: qualified})
		} else if m := javaMethodRE.FindStringSubmatch(line); m != nil && currentClass != "" {
			name := m[4]
			result.Symbols = append(result.Symbols, types.Symbol{
				Name: name, QualifiedName: currentClass + "." + name, Kind: types.KindMethod,
				FilePath: unit.Path, StartLine: lineNo, EndLine: lineNo,
				Signature: name + "(" + m[5] + ")", ReturnType: strings.TrimSpace(m[3]),
				Visibility: javaVisibility(m[1]),
				IsStatic:   strings.Contains(line, "static"),
				Parameters: parseJavaParams(m[5]),
			})
			stack = append(stack, braceScope{className: currentClass}) // method body opens a brace too, tracked but not a class scope
		} else if m := javaConstRE.FindStringSubmatch(line); m != nil {
			name := m[2]
			qualified := qualifyJava(pkg, currentClass, name)
			result.Symbols = append(result.Symbols, types.Symbol{
				Name: name, QualifiedName: qualified, Kind: types.KindConstant,
				FilePath: unit.Path, StartLine: lineNo, EndLine: lineNo,
				Visibility: javaVisibility(m[1]),
			})
		}

		for _, c := range line {
			switch c {
			case '{':
				if len(stack) == 0 || stack[len(stack)-1].depth != 0 {
					stack = append(stack, braceScope{className: currentClass})
				}
				stack[len(stack)-1].depth++
			case '}':
				if len(stack) > 0 {
					stack[len(stack)-1].depth--
					if stack[len(stack)-1].depth <= 0 {
						stack = stack[:len(stack)-1]
					}
				}
			}
		}

		result.Calls = append(result.Calls, findJavaCalls(line, lineNo, currentClass)...)
	}
	return result, nil
}

func qualifyJava(pkg, enclosing, name string) string {
	if enclosing != "" {
		return enclosing + "." + name
	}
	if pkg != "" {
		return pkg + "." + name
	}
	return name
}

func javaVisibility(mod string) types.Visibility {
	switch mod {
	case "public":
		return types.VisibilityPublic
	case "private":
		return types.VisibilityPrivate
	case "protected":
		return types.VisibilityProtected
	default:
		return types.VisibilityPackage
	}
}

func parseJavaParams(raw string) []types.Parameter {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	params := make([]types.Parameter, 0, len(parts))
	for i, p := range parts {
		p = strings.TrimSpace(strings.TrimSuffix(p, "..."))
		fields := strings.Fields(p)
		if len(fields) == 0 {
			continue
		}
		name := fields[len(fields)-1]
		typ := strings.Join(fields[:len(fields)-1], " ")
		params = append(params, types.Parameter{Position: i, Name: name, Type: typ})
	}
	return params
}

var controlKeywords = map[string]bool{
	"if": true, "for": true, "while": true, "switch": true, "catch": true,
	"return": true, "new": true, "else": true, "do": true, "synchronized": true,
}

var javaCallRE = regexp.MustCompile(`\b([A-Za-z_][\w.]*)\s*\(`)

func findJavaCalls(line string, lineNo int, caller string) []types.CallSiteWithCaller {
	var calls []types.CallSiteWithCaller
	for _, m := range javaCallRE.FindAllStringSubmatchIndex(line, -1) {
		name := line[m[2]:m[3]]
		if controlKeywords[name] {
			continue
		}
		if precededByDeclKeyword(line, m[2]) {
			continue
		}
		receiver := ""
		callee := name
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

func precededByDeclKeyword(line string, idx int) bool {
	prefix := strings.TrimRight(line[:idx], " ")
	for _, kw := range []string{"def", "function", "func", "class", "new"} {
		if strings.HasSuffix(prefix, kw) {
			return true
		}
	}
	return false
}
