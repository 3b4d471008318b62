package resolve

import (
	"testing"

	"github.com/bombeindex/bombe/internal/types"
)

func TestPythonResolvesModuleFile(t *testing.T) {
	files := RepoFiles{"app/service.py": true, "app/__init__.py": true}
	res := ResolveAll(types.LanguagePython, []types.ImportRecord{
		{FilePath: "main.py", ModuleName: "app.service", LineNumber: 1},
	}, files, "")
	if len(res) != 1 || !res[0].Resolved() || res[0].TargetPath != "app/service.py" {
		t.Fatalf("unexpected resolution: %+v", res)
	}
}

func TestPythonUnresolvedBecomesExternalDep(t *testing.T) {
	files := RepoFiles{}
	res := ResolveAll(types.LanguagePython, []types.ImportRecord{
		{FilePath: "main.py", ModuleName: "requests", LineNumber: 1, Statement: "import requests"},
	}, files, "")
	if len(res) != 1 || res[0].Resolved() {
		t.Fatalf("expected an external dep, got %+v", res)
	}
	if res[0].ExternalDep.ModuleName != "requests" {
		t.Fatalf("unexpected external dep: %+v", res[0].ExternalDep)
	}
}

func TestTypeScriptOnlyResolvesRelativeImports(t *testing.T) {
	files := RepoFiles{"src/util.ts": true}
	res := ResolveAll(types.LanguageTypeScript, []types.ImportRecord{
		{FilePath: "src/main.ts", ModuleName: "./util", LineNumber: 1},
		{FilePath: "src/main.ts", ModuleName: "lodash", LineNumber: 2},
	}, files, "")
	if !res[0].Resolved() || res[0].TargetPath != "src/util.ts" {
		t.Fatalf("expected relative import to resolve, got %+v", res[0])
	}
	if res[1].Resolved() {
		t.Fatalf("expected bare module specifier to stay external, got %+v", res[1])
	}
}

func TestGoResolvesAgainstModulePrefix(t *testing.T) {
	files := RepoFiles{"internal/widget/widget.go": true}
	res := ResolveAll(types.LanguageGo, []types.ImportRecord{
		{FilePath: "main.go", ModuleName: "example.com/app/internal/widget", LineNumber: 1},
	}, files, "example.com/app")
	if !res[0].Resolved() || res[0].TargetPath != "internal/widget/widget.go" {
		t.Fatalf("unexpected resolution: %+v", res[0])
	}
}
