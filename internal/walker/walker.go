// Package walker enumerates candidate source files under a repo root,
// honouring the merged ignore rules from internal/config and classifying
// each surviving file's language.
package walker

import (
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/bombeindex/bombe/internal/config"
	"github.com/bombeindex/bombe/internal/types"
)

// FileEntry is one walked file ready for the parser.
type FileEntry struct {
	AbsPath  string
	RelPath  string // repo-relative, forward-slash
	Language types.Language
	HasLang  bool
	Content  []byte
	Hash     string
	Size     int64
}

// Walk enumerates source files under root, applying rules. Files whose
// extension maps to no Language are still returned (HasLang=false) so
// callers can still record a File row without Symbol records.
func Walk(root string, rules *config.IgnoreRules) ([]FileEntry, error) {
	var entries []FileEntry

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if path == root {
			return nil
		}
		rel, relErr := filepath.Rel(root, path)
		if relErr != nil {
			return relErr
		}
		rel = filepath.ToSlash(rel)

		if d.IsDir() {
			if rules.ShouldIgnore(rel, true) {
				return filepath.SkipDir
			}
			return nil
		}
		if rules.ShouldIgnore(rel, false) {
			return nil
		}

		content, readErr := os.ReadFile(path)
		if readErr != nil {
			return nil // unreadable file: soft-skip, matches parser soft-failure policy
		}

		lang, ok := types.LanguageFromExt(strings.ToLower(filepath.Ext(path)))
		info, statErr := d.Info()
		var size int64
		if statErr == nil {
			size = info.Size()
		}

		entries = append(entries, FileEntry{
			AbsPath:  path,
			RelPath:  rel,
			Language: lang,
			HasLang:  ok,
			Content:  content,
			Hash:     types.ContentHash(content),
			Size:     size,
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return entries, nil
}
