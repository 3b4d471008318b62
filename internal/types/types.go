// Package types holds the domain value objects shared across Bombe's
// indexing pipeline, graph store, query engines, and hybrid sync client.
package types

import (
	"crypto/sha256"
	"encoding/hex"
)

// Language is one of the four source languages Bombe understands.
type Language string

const (
	LanguagePython     Language = "python"
	LanguageJava       Language = "java"
	LanguageTypeScript Language = "typescript"
	LanguageGo         Language = "go"
)

// LanguageFromExt maps a file extension (including the leading dot) to a
// Language. The zero value and ok=false mean the extension carries no
// symbols but the file may still be walked.
func LanguageFromExt(ext string) (Language, bool) {
	switch ext {
	case ".py":
		return LanguagePython, true
	case ".java":
		return LanguageJava, true
	case ".ts", ".tsx":
		return LanguageTypeScript, true
	case ".go":
		return LanguageGo, true
	default:
		return "", false
	}
}

// SymbolKind enumerates the symbol kinds the extractors emit.
type SymbolKind string

const (
	KindFunction SymbolKind = "function"
	KindMethod   SymbolKind = "method"
	KindClass    SymbolKind = "class"
	KindInterface SymbolKind = "interface"
	KindConstant SymbolKind = "constant"
)

// Visibility mirrors the access modifiers the extractors can recover.
type Visibility string

const (
	VisibilityPublic    Visibility = "public"
	VisibilityPrivate   Visibility = "private"
	VisibilityProtected Visibility = "protected"
	VisibilityPackage   Visibility = "package"
)

// Relationship enumerates the edge kinds in the symbol-and-file graph.
type Relationship string

const (
	RelCalls         Relationship = "CALLS"
	RelImports       Relationship = "IMPORTS"
	RelImportsSymbol Relationship = "IMPORTS_SYMBOL"
	RelExtends       Relationship = "EXTENDS"
	RelImplements    Relationship = "IMPLEMENTS"
	RelHasMethod     Relationship = "HAS_METHOD"
)

// EndpointType distinguishes symbol-typed from file-typed edge endpoints.
type EndpointType string

const (
	EndpointSymbol EndpointType = "symbol"
	EndpointFile   EndpointType = "file"
)

// SymbolID is a store-assigned opaque identifier.
type SymbolID int64

// File is the persisted record for one repo-relative source file.
type File struct {
	Path          string
	Language      Language
	ContentHash   string
	SizeBytes     int64
	LastIndexedAt int64 // unix seconds
}

// Parameter is a single positional/named parameter of a Symbol.
type Parameter struct {
	SymbolID     SymbolID
	Position     int
	Name         string
	Type         string
	DefaultValue string
}

// Symbol is a function/method/class/interface/constant record.
type Symbol struct {
	ID              SymbolID
	Name            string
	QualifiedName   string
	Kind            SymbolKind
	FilePath        string
	StartLine       int
	EndLine         int
	Signature       string
	ReturnType      string
	Visibility      Visibility
	IsAsync         bool
	IsStatic        bool
	ParentSymbolID  *SymbolID
	Docstring       string
	PagerankScore   float64
	Parameters      []Parameter
}

// Edge is a directed relationship between two graph entities.
type Edge struct {
	SourceID     int64
	TargetID     int64
	SourceType   EndpointType
	TargetType   EndpointType
	Relationship Relationship
	FilePath     string
	LineNumber   int
	Confidence   float64
}

// ExternalDep records an import that did not resolve to a repo-internal file.
type ExternalDep struct {
	FilePath        string
	ImportStatement string
	ModuleName      string
	LineNumber      int
}

// SymbolKey is a portable symbol identity that survives across snapshots,
// independent of any store-assigned SymbolID.
type SymbolKey struct {
	QualifiedName  string
	FilePath       string
	StartLine      int
	EndLine        int
	SignatureHash  string
}

// NewSymbolKey builds a SymbolKey from a Symbol, computing SignatureHash
// as SHA-256(signature || "").
func NewSymbolKey(s Symbol) SymbolKey {
	return SymbolKey{
		QualifiedName: s.QualifiedName,
		FilePath:      s.FilePath,
		StartLine:     s.StartLine,
		EndLine:       s.EndLine,
		SignatureHash: HashSignature(s.Signature),
	}
}

// HashSignature computes the SymbolKey signature hash.
func HashSignature(signature string) string {
	sum := sha256.Sum256([]byte(signature + ""))
	return hex.EncodeToString(sum[:])
}

// EdgeContract is a logical edge keyed by portable SymbolKeys, used for
// delta exchange with the control plane.
type EdgeContract struct {
	Source       SymbolKey
	Target       SymbolKey
	Relationship Relationship
	LineNumber   int
	Confidence   float64
	Provenance   string
}

// FileChangeStatus enumerates the incremental-index change kinds.
type FileChangeStatus string

const (
	ChangeAdded    FileChangeStatus = "A"
	ChangeModified FileChangeStatus = "M"
	ChangeDeleted  FileChangeStatus = "D"
	ChangeRenamed  FileChangeStatus = "R"
)

// FileChange describes one file-level mutation fed to IncrementalIndex.
type FileChange struct {
	Status  FileChangeStatus
	Path    string
	OldPath string
}

// IndexStats summarises one full or incremental indexing run.
type IndexStats struct {
	FilesSeen     int
	FilesIndexed  int
	SymbolsIndexed int
	EdgesIndexed  int
	ElapsedMS     int64
}

// ContentHash computes the stable externally-visible hash for file content.
func ContentHash(content []byte) string {
	sum := sha256.Sum256(content)
	return hex.EncodeToString(sum[:])
}
