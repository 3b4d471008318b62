package config

import (
	"os"
	"path/filepath"
	"strings"
)

// sensitivePatterns is the built-in sensitive-file ignore tier: env files, PEM/key material, names containing "secret" or
// "credential", and standard SSH keys. Enabled unless RuntimeConfig
// disables it.
var sensitivePatterns = []string{
	".env", ".env.*", "*.pem", "*.key", "*.p12", "*.pfx",
	"*secret*", "*credential*",
	"id_rsa", "id_rsa.pub", "id_dsa", "id_ecdsa", "id_ed25519", "id_ed25519.pub",
	"known_hosts", ".ssh/*",
}

// buildArtifactPatterns is an extra built-in ignore tier below the
// sensitive-pattern tier, covering the vendor/build output directories the
// teacher's internal/config/build_artifact_detector.go recognises.
var buildArtifactPatterns = []string{
	"node_modules/", "vendor/", "dist/", "build/", "__pycache__/", ".venv/",
	"target/", ".tox/", "bin/", "obj/",
}

// IgnoreRules merges .gitignore, .bombeignore, the built-in build-artifact
// and sensitive tiers, and caller-supplied excludes, in that precedence
// order (later tiers can re-include via a leading "!" the same way
// .gitignore does).
type IgnoreRules struct {
	parser *GitignoreParser

	// Include, when non-empty, means only matching paths are walked.
	Include []string
}

// NewIgnoreRules merges ignore sources for root in precedence order:
// .gitignore, .bombeignore, built-in build-artifact patterns plus the
// output directories the build-artifact detector finds, built-in
// sensitive patterns (unless disabled), caller-supplied excludes, and
// finally .git/ and .bombe/.
func NewIgnoreRules(root string, callerExcludes []string, excludeSensitive bool) (*IgnoreRules, error) {
	gp := NewGitignoreParser()

	if err := gp.LoadGitignore(root); err != nil {
		return nil, err
	}
	if err := loadIgnoreFile(gp, filepath.Join(root, ".bombeignore")); err != nil {
		return nil, err
	}
	for _, p := range buildArtifactPatterns {
		gp.AddPattern(p)
	}
	detector := NewBuildArtifactDetector(root)
	for _, p := range detector.DetectOutputDirectories() {
		gp.AddPattern(strings.TrimSuffix(strings.TrimPrefix(p, "**/"), "/**") + "/")
	}
	if excludeSensitive {
		for _, p := range sensitivePatterns {
			gp.AddPattern(p)
		}
	}
	for _, p := range callerExcludes {
		gp.AddPattern(normalizePattern(p))
	}
	// .git and the tool's own .bombe directory are always implicitly ignored.
	gp.AddPattern(".git/")
	gp.AddPattern(".bombe/")

	return &IgnoreRules{parser: gp}, nil
}

// WithInclude sets an explicit include filter; an empty slice means "all".
func (r *IgnoreRules) WithInclude(patterns []string) *IgnoreRules {
	r.Include = patterns
	return r
}

// ShouldIgnore reports whether path (relative to the walk root, forward
// slashes) should be skipped.
func (r *IgnoreRules) ShouldIgnore(path string, isDir bool) bool {
	if r.parser.ShouldIgnore(path, isDir) {
		return true
	}
	if len(r.Include) == 0 || isDir {
		return false
	}
	for _, inc := range r.Include {
		if matched, _ := filepath.Match(inc, path); matched {
			return false
		}
		if strings.Contains(path, inc) {
			return false
		}
	}
	return true
}

func loadIgnoreFile(gp *GitignoreParser, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		gp.AddPattern(line)
	}
	return nil
}

func normalizePattern(p string) string {
	return strings.TrimPrefix(p, "./")
}
