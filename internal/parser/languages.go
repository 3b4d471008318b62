package parser

import (
	tree_sitter "github.com/tree-sitter/go-tree-sitter"
	tree_sitter_go "github.com/tree-sitter/tree-sitter-go/bindings/go"
	tree_sitter_java "github.com/tree-sitter/tree-sitter-java/bindings/go"
	tree_sitter_python "github.com/tree-sitter/tree-sitter-python/bindings/go"
	tree_sitter_typescript "github.com/tree-sitter/tree-sitter-typescript/bindings/go"

	"github.com/bombeindex/bombe/internal/types"
)

func (d *Dispatch) setupGo() {
	d.register(types.LanguageGo, tree_sitter.NewLanguage(tree_sitter_go.Language()))
}

func (d *Dispatch) setupPython() {
	d.register(types.LanguagePython, tree_sitter.NewLanguage(tree_sitter_python.Language()))
}

func (d *Dispatch) setupJava() {
	d.register(types.LanguageJava, tree_sitter.NewLanguage(tree_sitter_java.Language()))
}

func (d *Dispatch) setupTypeScript() {
	d.register(types.LanguageTypeScript, tree_sitter.NewLanguage(tree_sitter_typescript.LanguageTypescript()))
}
