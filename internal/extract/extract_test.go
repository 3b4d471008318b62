package extract

import (
	"testing"

	tsparser "github.com/bombeindex/bombe/internal/parser"
	"github.com/bombeindex/bombe/internal/types"
)

func mustParse(t *testing.T, d *tsparser.Dispatch, path string, lang types.Language, src string) tsparser.ParsedUnit {
	t.Helper()
	unit, err := d.Parse(path, lang, []byte(src))
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	return unit
}

func TestPythonExtractorSameFileFunctions(t *testing.T) {
	d := tsparser.New()
	src := "def caller():\n    bar()\n\ndef bar():\n    return 1\n"
	unit := mustParse(t, d, "app/service.py", types.LanguagePython, src)
	defer unit.Close()

	result, err := PythonExtractor{}.Extract(unit)
	if err != nil {
		t.Fatal(err)
	}
	names := map[string]bool{}
	for _, s := range result.Symbols {
		names[s.QualifiedName] = true
	}
	if !names["caller"] || !names["bar"] {
		t.Fatalf("expected caller and bar symbols, got %+v", result.Symbols)
	}
	foundCall := false
	for _, c := range result.Calls {
		if c.CalleeName == "bar" && c.CallerQualifiedName == "caller" {
			foundCall = true
		}
	}
	if !foundCall {
		t.Fatalf("expected a call site bar() attributed to caller, got %+v", result.Calls)
	}
}

func TestPythonExtractorImportAlias(t *testing.T) {
	d := tsparser.New()
	src := "from app.auth import util as helper\n\ndef caller():\n    helper()\n"
	unit := mustParse(t, d, "app/service.py", types.LanguagePython, src)
	defer unit.Close()

	result, err := PythonExtractor{}.Extract(unit)
	if err != nil {
		t.Fatal(err)
	}
	if len(result.Imports) != 1 {
		t.Fatalf("expected one import record, got %+v", result.Imports)
	}
	imp := result.Imports[0]
	if imp.ModuleName != "app.auth.util" || imp.Alias != "helper" {
		t.Fatalf("unexpected import record: %+v", imp)
	}
}

func TestGoExtractorMethodAndConst(t *testing.T) {
	src := `package widget

import "fmt"

const MaxSize = 10

type Widget struct{}

func (w *Widget) Render() string {
	return fmt.Sprintf("widget")
}

func New() *Widget {
	return &Widget{}
}
`
	unit := tsparser.ParsedUnit{Path: "widget.go", Language: types.LanguageGo, Source: []byte(src)}
	result, err := GoExtractor{}.Extract(unit)
	if err != nil {
		t.Fatal(err)
	}
	qn := map[string]types.SymbolKind{}
	for _, s := range result.Symbols {
		qn[s.QualifiedName] = s.Kind
	}
	if qn["widget.Widget.Render"] != types.KindMethod {
		t.Fatalf("expected widget.Widget.Render method, got %+v", result.Symbols)
	}
	if qn["widget.MaxSize"] != types.KindConstant {
		t.Fatalf("expected widget.MaxSize constant, got %+v", result.Symbols)
	}
	if qn["widget.New"] != types.KindFunction {
		t.Fatalf("expected widget.New function, got %+v", result.Symbols)
	}
}

func TestJavaExtractorMethodInsideClass(t *testing.T) {
	src := `package com.example;

import com.example.util.Helper;

public class Service {
    public int compute(int x) {
        return Helper.twice(x);
    }
}
`
	unit := tsparser.ParsedUnit{Path: "Service.java", Language: types.LanguageJava, Source: []byte(src)}
	result, err := JavaExtractor{}.Extract(unit)
	if err != nil {
		t.Fatal(err)
	}
	qn := map[string]types.SymbolKind{}
	for _, s := range result.Symbols {
		qn[s.QualifiedName] = s.Kind
	}
	if qn["com.example.Service"] != types.KindClass {
		t.Fatalf("expected com.example.Service class, got %+v", result.Symbols)
	}
	if qn["com.example.Service.compute"] != types.KindMethod {
		t.Fatalf("expected com.example.Service.compute method, got %+v", result.Symbols)
	}
}

func TestTypeScriptExtractorExportedArrowFunction(t *testing.T) {
	src := "export const add = (a: number, b: number): number => {\n  return a + b;\n}\n"
	unit := tsparser.ParsedUnit{Path: "math.ts", Language: types.LanguageTypeScript, Source: []byte(src)}
	result, err := TypeScriptExtractor{}.Extract(unit)
	if err != nil {
		t.Fatal(err)
	}
	if len(result.Symbols) != 1 || result.Symbols[0].Name != "add" {
		t.Fatalf("expected one symbol named add, got %+v", result.Symbols)
	}
}
