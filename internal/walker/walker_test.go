package walker

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/bombeindex/bombe/internal/config"
	"github.com/bombeindex/bombe/internal/types"
)

func writeFile(t *testing.T, root, rel, content string) {
	t.Helper()
	path := filepath.Join(root, rel)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestWalkClassifiesLanguageAndRespectsIgnore(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "app/service.py", "def f(): pass\n")
	writeFile(t, root, "README.md", "hello\n")
	writeFile(t, root, "node_modules/pkg/index.js", "module.exports = {}\n")
	writeFile(t, root, ".env", "SECRET=1\n")
	writeFile(t, root, ".gitignore", "README.md\n")

	rules, err := config.NewIgnoreRules(root, nil, true)
	if err != nil {
		t.Fatal(err)
	}

	entries, err := Walk(root, rules)
	if err != nil {
		t.Fatal(err)
	}

	byPath := map[string]FileEntry{}
	for _, e := range entries {
		byPath[e.RelPath] = e
	}

	if _, ok := byPath["README.md"]; ok {
		t.Error("README.md should be excluded by .gitignore")
	}
	if _, ok := byPath["node_modules/pkg/index.js"]; ok {
		t.Error("node_modules should be pruned by the build-artifact tier")
	}
	if _, ok := byPath[".env"]; ok {
		t.Error(".env should be excluded by the sensitive-pattern tier")
	}
	entry, ok := byPath["app/service.py"]
	if !ok {
		t.Fatal("expected app/service.py to be walked")
	}
	if !entry.HasLang || entry.Language != types.LanguagePython {
		t.Errorf("expected python language, got %+v", entry)
	}
}
