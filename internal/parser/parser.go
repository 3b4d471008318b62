// Package parser dispatches a source file to a language-native parser,
// producing a ParsedUnit. The Python extractor walks the tree and yields
// nothing when no tree is reachable; the Java, TypeScript and Go
// extractors use line/regex-based recognition whether or not a tree was
// produced (see internal/extract).
package parser

import (
	"fmt"
	"sync"

	tree_sitter "github.com/tree-sitter/go-tree-sitter"

	"github.com/bombeindex/bombe/internal/types"
)

// UnitKind tags which variant of ParsedUnit is populated, replacing the
// reference implementation's dynamic dispatch on a language string.
type UnitKind int

const (
	UnitNoTree UnitKind = iota
	UnitPythonTree
	UnitSyntaxTree
)

// ParsedUnit is the tagged variant the extractors and call-graph builder
// match on instead of branching on a language string.
type ParsedUnit struct {
	Path     string
	Language types.Language
	Source   []byte
	Kind     UnitKind
	Tree     *tree_sitter.Tree // non-nil iff Kind != UnitNoTree
}

// Close releases the tree-sitter tree, if any.
func (p *ParsedUnit) Close() {
	if p.Tree != nil {
		p.Tree.Close()
		p.Tree = nil
	}
}

// CapabilityReport enumerates, per required language, whether a
// tree-sitter grammar is reachable in this build.
type CapabilityReport map[types.Language]bool

// Dispatch wraps per-language tree-sitter parsers behind one entry point.
type Dispatch struct {
	mu      sync.Mutex
	parsers map[types.Language]*tree_sitter.Parser

	// RequireTreeSitter aborts Parse with an error instead of degrading to
	// UnitNoTree when a grammar for the file's language is unavailable.
	RequireTreeSitter bool
}

// New builds a Dispatch with every reachable grammar registered.
func New() *Dispatch {
	d := &Dispatch{parsers: make(map[types.Language]*tree_sitter.Parser)}
	d.setupGo()
	d.setupPython()
	d.setupJava()
	d.setupTypeScript()
	return d
}

func (d *Dispatch) register(lang types.Language, language *tree_sitter.Language) {
	p := tree_sitter.NewParser()
	if err := p.SetLanguage(language); err != nil {
		return
	}
	d.parsers[lang] = p
}

// Capabilities reports which of the four required languages have a
// reachable tree-sitter grammar in this build.
func (d *Dispatch) Capabilities() CapabilityReport {
	d.mu.Lock()
	defer d.mu.Unlock()
	report := make(CapabilityReport, 4)
	for _, lang := range []types.Language{types.LanguagePython, types.LanguageJava, types.LanguageTypeScript, types.LanguageGo} {
		_, ok := d.parsers[lang]
		report[lang] = ok
	}
	return report
}

// Parse produces a ParsedUnit for path/language/source. Syntax errors
// never abort the pipeline: tree-sitter still returns a tree, with error
// nodes where the source is malformed. If no tree is produced at all for
// Python, ParsedUnit.Tree is nil and Kind is UnitNoTree. A missing
// grammar, or no tree for Java/TypeScript/Go, is a soft failure unless
// RequireTreeSitter is set.
func (d *Dispatch) Parse(path string, language types.Language, source []byte) (ParsedUnit, error) {
	unit := ParsedUnit{Path: path, Language: language, Source: source, Kind: UnitNoTree}

	d.mu.Lock()
	p, ok := d.parsers[language]
	d.mu.Unlock()
	if !ok {
		if d.RequireTreeSitter {
			return unit, fmt.Errorf("parser: no tree-sitter grammar registered for %s", language)
		}
		return unit, nil
	}

	tree := p.Parse(source, nil)
	if tree == nil || tree.RootNode() == nil {
		if language == types.LanguagePython {
			// Python always attempts a native parse; a syntax failure still
			// yields a well-formed ParsedUnit with Kind == UnitNoTree.
			return unit, nil
		}
		if d.RequireTreeSitter {
			return unit, fmt.Errorf("parser: tree-sitter failed to produce a tree for %s", path)
		}
		return unit, nil
	}

	unit.Tree = tree
	if language == types.LanguagePython {
		unit.Kind = UnitPythonTree
	} else {
		unit.Kind = UnitSyntaxTree
	}
	return unit, nil
}
