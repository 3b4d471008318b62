package config

import "github.com/bombeindex/bombe/internal/types"

// Workspace mirrors <repo>/.bombe/workspace.json.
type Workspace struct {
	Name    string       `json:"name"`
	Version int          `json:"version"`
	Roots   []WorkspaceRoot `json:"roots"`
}

// WorkspaceRoot is one indexed root within a workspace.
type WorkspaceRoot struct {
	ID      string `json:"id"`
	Path    string `json:"path"`
	DBPath  string `json:"db_path"`
	Enabled bool   `json:"enabled"`
}

// PluginConfig mirrors <repo>/.bombe/plugins.json. Plugin loading itself is
// out of scope for the core; this struct exists so the
// plugins file shape round-trips.
type PluginConfig struct {
	Plugins []PluginEntry `json:"plugins"`
}

// PluginEntry describes one plugin registration.
type PluginEntry struct {
	Module    string `json:"module,omitempty"`
	Path      string `json:"path,omitempty"`
	Enabled   bool   `json:"enabled"`
	TimeoutMS int    `json:"timeout_ms"`
}

// RuntimeConfig re-exports types.RuntimeConfig so callers only need to
// import internal/config.
type RuntimeConfig = types.RuntimeConfig

// DefaultRuntimeConfig re-exports types.DefaultRuntimeConfig.
func DefaultRuntimeConfig() RuntimeConfig { return types.DefaultRuntimeConfig() }
