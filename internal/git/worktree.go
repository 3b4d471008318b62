// Package git turns a repository's working-tree state into the
// FileChange list indexing.Pipeline.IncrementalIndex expects, so a
// caller can run `index-incremental --from-git` instead of hand-listing
// PATH:STATUS arguments.
package git

import (
	"fmt"

	gogit "github.com/go-git/go-git/v5"

	"github.com/bombeindex/bombe/internal/types"
)

// WorktreeChanges opens the git repository containing root (searching
// parent directories for .git, the same way the git CLI does) and
// reports every path with a pending change against HEAD: staged or
// unstaged modifications, additions, deletions, and renames.
func WorktreeChanges(root string) ([]types.FileChange, error) {
	repo, err := gogit.PlainOpenWithOptions(root, &gogit.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		return nil, fmt.Errorf("open git repository at %s: %w", root, err)
	}
	wt, err := repo.Worktree()
	if err != nil {
		return nil, fmt.Errorf("open worktree: %w", err)
	}
	status, err := wt.Status()
	if err != nil {
		return nil, fmt.Errorf("git status: %w", err)
	}

	changes := make([]types.FileChange, 0, len(status))
	for path, fs := range status {
		code := fs.Worktree
		if code == gogit.Unmodified {
			code = fs.Staging
		}
		switch code {
		case gogit.Added, gogit.Untracked:
			changes = append(changes, types.FileChange{Status: types.ChangeAdded, Path: path})
		case gogit.Modified, gogit.UpdatedButUnmerged:
			changes = append(changes, types.FileChange{Status: types.ChangeModified, Path: path})
		case gogit.Deleted:
			changes = append(changes, types.FileChange{Status: types.ChangeDeleted, Path: path})
		case gogit.Renamed, gogit.Copied:
			changes = append(changes, types.FileChange{Status: types.ChangeRenamed, Path: path, OldPath: fs.Extra})
		}
	}
	return changes, nil
}
