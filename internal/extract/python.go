package extract

import (
	"strings"

	sitter "github.com/tree-sitter/go-tree-sitter"

	"github.com/bombeindex/bombe/internal/parser"
	"github.com/bombeindex/bombe/internal/types"
)

// PythonExtractor walks the tree-sitter Python AST: top-level
// functions/async functions/classes, nested methods, ALL_CAPS constant
// assignments, docstrings, and both import forms.
type PythonExtractor struct{}

func (PythonExtractor) Extract(unit parser.ParsedUnit) (types.ExtractResult, error) {
	var result types.ExtractResult
	if unit.Tree == nil {
		return result, nil
	}
	root := unit.Tree.RootNode()
	if root == nil {
		return result, nil
	}
	content := unit.Source
	w := &pyWalker{path: unit.Path, content: content}
	w.walkBody(root, "", nil)
	result.Symbols = w.symbols
	result.Imports = w.imports
	result.Calls = w.calls
	return result, nil
}

type pyWalker struct {
	path    string
	content []byte
	symbols []types.Symbol
	imports []types.ImportRecord
	calls   []types.CallSiteWithCaller
}

// walkBody walks the direct statement children of a module/class/function
// body, attributing nested functions as methods when classQualifier != "".
func (w *pyWalker) walkBody(node *sitter.Node, classQualifier string, parent *types.Symbol) {
	for i := uint(0); i < node.ChildCount(); i++ {
		child := node.Child(i)
		if child == nil {
			continue
		}
		switch child.Kind() {
		case "function_definition", "async_function_definition", "decorated_definition":
			w.handleFunction(child, classQualifier, parent)
		case "class_definition":
			w.handleClass(child)
		case "assignment":
			w.handleAssignment(child, classQualifier)
		case "expression_statement":
			for j := uint(0); j < child.ChildCount(); j++ {
				gc := child.Child(j)
				if gc != nil && gc.Kind() == "assignment" {
					w.handleAssignment(gc, classQualifier)
				}
				if gc != nil && gc.Kind() == "call" {
					w.recordCallsIn(gc, qualifiedCaller(classQualifier, parent))
				}
			}
		case "import_statement":
			w.handleImport(child)
		case "import_from_statement":
			w.handleImportFrom(child)
		default:
			w.recordCallsIn(child, qualifiedCaller(classQualifier, parent))
		}
	}
}

func qualifiedCaller(classQualifier string, parent *types.Symbol) string {
	if parent != nil {
		return parent.QualifiedName
	}
	return ""
}

func (w *pyWalker) handleFunction(node *sitter.Node, classQualifier string, _ *types.Symbol) {
	fn := node
	isAsync := false
	if fn.Kind() == "decorated_definition" {
		inner := childByType(fn, "function_definition")
		if inner == nil {
			inner = childByType(fn, "async_function_definition")
		}
		if inner == nil {
			return
		}
		fn = inner
	}
	if fn.Kind() == "async_function_definition" || childByType(fn, "async") != nil {
		isAsync = true
	}

	nameNode := childByType(fn, "identifier")
	name := nodeText(nameNode, w.content)
	if name == "" {
		return
	}

	kind := types.KindFunction
	qualifiedName := name
	if classQualifier != "" {
		kind = types.KindMethod
		qualifiedName = classQualifier + "." + name
	}

	params := extractPythonParams(childByType(fn, "parameters"), w.content)
	signature := name + "(" + joinParamSignatures(params) + ")"

	sym := types.Symbol{
		Name:          name,
		QualifiedName: qualifiedName,
		Kind:          kind,
		FilePath:      w.path,
		StartLine:     startLine(node),
		EndLine:       endLine(node),
		Signature:     signature,
		Visibility:    visibilityFromName(name),
		IsAsync:       isAsync,
		Docstring:     pythonDocstring(childByType(fn, "block"), w.content),
		Parameters:    params,
	}
	w.symbols = append(w.symbols, sym)

	if body := childByType(fn, "block"); body != nil {
		w.walkBody(body, "", &sym)
	}
}

func (w *pyWalker) handleClass(node *sitter.Node) {
	nameNode := childByType(node, "identifier")
	name := nodeText(nameNode, w.content)
	if name == "" {
		return
	}
	sym := types.Symbol{
		Name:          name,
		QualifiedName: name,
		Kind:          types.KindClass,
		FilePath:      w.path,
		StartLine:     startLine(node),
		EndLine:       endLine(node),
		Visibility:    visibilityFromName(name),
		Docstring:     pythonDocstring(childByType(node, "block"), w.content),
	}
	w.symbols = append(w.symbols, sym)
	if body := childByType(node, "block"); body != nil {
		w.walkBody(body, name, &sym)
	}
}

func (w *pyWalker) handleAssignment(node *sitter.Node, classQualifier string) {
	left := node.Child(0)
	if left == nil || left.Kind() != "identifier" {
		return
	}
	name := nodeText(left, w.content)
	if !isAllCaps(name) {
		return
	}
	qualifiedName := name
	if classQualifier != "" {
		qualifiedName = classQualifier + "." + name
	}
	w.symbols = append(w.symbols, types.Symbol{
		Name:          name,
		QualifiedName: qualifiedName,
		Kind:          types.KindConstant,
		FilePath:      w.path,
		StartLine:     startLine(node),
		EndLine:       endLine(node),
		Visibility:    types.VisibilityPublic,
	})
}

func (w *pyWalker) handleImport(node *sitter.Node) {
	// import X[, Y as Z, ...]
	for i := uint(0); i < node.ChildCount(); i++ {
		child := node.Child(i)
		if child == nil {
			continue
		}
		switch child.Kind() {
		case "dotted_name":
			w.imports = append(w.imports, types.ImportRecord{
				FilePath: w.path, Statement: nodeText(node, w.content),
				ModuleName: nodeText(child, w.content), LineNumber: startLine(node),
			})
		case "aliased_import":
			dotted := childByType(child, "dotted_name")
			alias := childByType(child, "identifier")
			w.imports = append(w.imports, types.ImportRecord{
				FilePath: w.path, Statement: nodeText(node, w.content),
				ModuleName: nodeText(dotted, w.content), Alias: nodeText(alias, w.content),
				LineNumber: startLine(node),
			})
		}
	}
}

func (w *pyWalker) handleImportFrom(node *sitter.Node) {
	// from [.]*module import a, b as c
	level := 0
	var moduleName string
	for i := uint(0); i < node.ChildCount(); i++ {
		child := node.Child(i)
		if child == nil {
			continue
		}
		switch child.Kind() {
		case "import":
			// marks the boundary between module and import list; nothing to do
		case "dotted_name":
			if moduleName == "" {
				moduleName = nodeText(child, w.content)
			}
		case ".":
			level++
		case "relative_import":
			txt := nodeText(child, w.content)
			level += strings.Count(txt, ".")
			if dn := childByType(child, "dotted_name"); dn != nil {
				moduleName = nodeText(dn, w.content)
			}
		}
	}
	encodedModule := strings.Repeat(".", level) + moduleName

	names := childrenByType(node, "dotted_name")
	aliases := childrenByType(node, "aliased_import")
	if len(names) == 0 && len(aliases) == 0 {
		w.imports = append(w.imports, types.ImportRecord{
			FilePath: w.path, Statement: nodeText(node, w.content),
			ModuleName: encodedModule, LineNumber: startLine(node),
		})
		return
	}
	for idx, n := range names {
		if idx == 0 && nodeText(n, w.content) == moduleName {
			continue // the "from X" clause itself, already captured
		}
		w.imports = append(w.imports, types.ImportRecord{
			FilePath: w.path, Statement: nodeText(node, w.content),
			ModuleName: encodedModule + "." + nodeText(n, w.content), LineNumber: startLine(node),
		})
	}
	for _, a := range aliases {
		dotted := childByType(a, "dotted_name")
		ident := childByType(a, "identifier")
		w.imports = append(w.imports, types.ImportRecord{
			FilePath: w.path, Statement: nodeText(node, w.content),
			ModuleName: encodedModule + "." + nodeText(dotted, w.content),
			Alias:      nodeText(ident, w.content), LineNumber: startLine(node),
		})
	}
}

func (w *pyWalker) recordCallsIn(node *sitter.Node, caller string) {
	if node == nil {
		return
	}
	if node.Kind() == "call" {
		fn := node.Child(0)
		if fn != nil {
			switch fn.Kind() {
			case "identifier":
				w.calls = append(w.calls, types.CallSiteWithCaller{
					CallSite:            types.CallSite{CalleeName: nodeText(fn, w.content), LineNumber: startLine(node)},
					CallerQualifiedName: caller,
				})
			case "attribute":
				obj := fn.Child(0)
				attr := childByType(fn, "identifier")
				w.calls = append(w.calls, types.CallSiteWithCaller{
					CallSite: types.CallSite{
						CalleeName: nodeText(attr, w.content),
						Receiver:   nodeText(obj, w.content),
						LineNumber: startLine(node),
					},
					CallerQualifiedName: caller,
				})
			}
		}
	}
	for i := uint(0); i < node.ChildCount(); i++ {
		w.recordCallsIn(node.Child(i), caller)
	}
}

func extractPythonParams(node *sitter.Node, content []byte) []types.Parameter {
	if node == nil {
		return nil
	}
	var params []types.Parameter
	pos := 0
	for i := uint(0); i < node.ChildCount(); i++ {
		child := node.Child(i)
		if child == nil {
			continue
		}
		switch child.Kind() {
		case "identifier":
			params = append(params, types.Parameter{Position: pos, Name: nodeText(child, content)})
			pos++
		case "typed_parameter":
			name := childByType(child, "identifier")
			typeNode := childByType(child, "type")
			params = append(params, types.Parameter{Position: pos, Name: nodeText(name, content), Type: nodeText(typeNode, content)})
			pos++
		case "default_parameter", "typed_default_parameter":
			name := childByType(child, "identifier")
			var typeStr string
			if t := childByType(child, "type"); t != nil {
				typeStr = nodeText(t, content)
			}
			def := ""
			if child.ChildCount() > 0 {
				def = nodeText(child.Child(child.ChildCount()-1), content)
			}
			params = append(params, types.Parameter{Position: pos, Name: nodeText(name, content), Type: typeStr, DefaultValue: def})
			pos++
		case "list_splat_pattern", "dictionary_splat_pattern":
			inner := childByType(child, "identifier")
			params = append(params, types.Parameter{Position: pos, Name: nodeText(inner, content)})
			pos++
		}
	}
	return params
}

func joinParamSignatures(params []types.Parameter) string {
	parts := make([]string, 0, len(params))
	for _, p := range params {
		if p.Type != "" {
			parts = append(parts, p.Name+": "+p.Type)
		} else {
			parts = append(parts, p.Name)
		}
	}
	return strings.Join(parts, ", ")
}

func pythonDocstring(block *sitter.Node, content []byte) string {
	if block == nil {
		return ""
	}
	first := block.Child(0)
	if first == nil || first.Kind() != "expression_statement" {
		return ""
	}
	str := first.Child(0)
	if str == nil || str.Kind() != "string" {
		return ""
	}
	return strings.Trim(nodeText(str, content), "\"' \t\r\n")
}

func visibilityFromName(name string) types.Visibility {
	if strings.HasPrefix(name, "__") && !strings.HasSuffix(name, "__") {
		return types.VisibilityPrivate
	}
	if strings.HasPrefix(name, "_") {
		return types.VisibilityProtected
	}
	return types.VisibilityPublic
}
