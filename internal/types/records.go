package types

// ImportRecord is the language-neutral shape emitted by the extractors for
// every import statement encountered, before the import resolver decides
// whether it is repo-internal or external.
type ImportRecord struct {
	FilePath   string
	Statement  string // the raw import text, for ExternalDep.ImportStatement
	ModuleName string // e.g. "app.auth.util", "./util", "github.com/x/y"
	Alias      string // "as" alias (Python) or named import alias
	Level      int    // Python relative-import dot count; 0 otherwise
	LineNumber int
}

// CallSite is a detected call expression inside some enclosing symbol.
type CallSite struct {
	CalleeName string
	Receiver   string // non-empty for `receiver.method(...)` calls
	LineNumber int
}

// ExtractResult is what a per-language extractor returns for one file.
type ExtractResult struct {
	Symbols []Symbol
	Imports []ImportRecord
	Calls   []CallSiteWithCaller
}

// CallSiteWithCaller attributes a CallSite to its smallest enclosing symbol.
type CallSiteWithCaller struct {
	CallSite
	CallerQualifiedName string
}

// RuntimeConfig gathers the global tunables the reference implementation
// read from environment variables at call sites.
type RuntimeConfig struct {
	HybridSearchEnabled      bool
	SemanticVectorsEnabled   bool
	LSPHintsEnabled          bool
	ExcludeSensitiveFiles    bool
	RequireTreeSitter        bool
	TokenizerModel           string
	SyncSigningKey           string
	SyncSigningAlgo          string
	SyncSigningKeyID         string
	TrustedVerificationKeys  map[string][]byte
	SemanticHintsGlobalFile  string
	ControlPlaneToken        string
	RealRepoPaths            []string
	PerfHistoryPath          string
}

// DefaultRuntimeConfig returns the conservative defaults used when no
// workspace config overrides them.
func DefaultRuntimeConfig() RuntimeConfig {
	return RuntimeConfig{
		HybridSearchEnabled:    true,
		SemanticVectorsEnabled: false,
		LSPHintsEnabled:        false,
		ExcludeSensitiveFiles:  true,
		RequireTreeSitter:      false,
		TokenizerModel:         "approx-char-3.5",
		SyncSigningAlgo:        "hmac-sha256",
	}
}
