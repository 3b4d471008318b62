package types

// DeltaHeader carries the provenance fields every IndexDelta ships with.
type DeltaHeader struct {
	RepoID         string
	ParentSnapshot string
	LocalSnapshot  string
	ToolVersion    string
	SchemaVersion  int
	CreatedAtUTC   int64
}

// FileChangeRecord is one wire-format entry of IndexDelta.file_changes.
type FileChangeRecord struct {
	Status      FileChangeStatus
	Path        string
	OldPath     string
	ContentHash string
	SizeBytes   int64
}

// QualityStats summarises an indexing pass's soft-failure rates, used by
// both the delta payload and the control plane's promotion policy.
type QualityStats struct {
	AmbiguityRate    float64
	UnresolvedImports int
	ParseFailures    int
}

// IndexDelta is the unit the hybrid sync client pushes to the control
// plane after an incremental index.
type IndexDelta struct {
	Header        DeltaHeader
	FileChanges   []FileChangeRecord
	SymbolUpserts []Symbol
	SymbolDeletes []SymbolKey
	EdgeUpserts   []EdgeContract
	EdgeDeletes   []EdgeContract
	QualityStats  QualityStats
}

// ArtifactBundle is what the control plane returns from a pull: the
// promoted subset of a delta, optionally signed.
type ArtifactBundle struct {
	ArtifactID      string
	RepoID          string
	SnapshotID      string
	ParentSnapshot  string
	ToolVersion     string
	SchemaVersion   int
	CreatedAtUTC    int64
	PromotedSymbols []SymbolKey
	PromotedEdges   []EdgeContract
	ImpactPriors    []string
	FlowHints       []string
	SignatureAlgo   string
	SigningKeyID    string
	Checksum        string
	Signature       string
}

// SyncQueueEntry mirrors one row of the sync_queue table.
type SyncQueueEntry struct {
	ID         int64
	SnapshotID string
	Direction  string // "push" or "pull"
	State      string // "pending", "pushed", "retry"
	Attempts   int
	LastError  string
	CreatedAt  int64
}

// ArtifactPin mirrors one row of the artifact_pins table.
type ArtifactPin struct {
	ArtifactID string
	RepoID     string
	SnapshotID string
	Checksum   string
	Signature  string
	PinnedAt   int64
}

// BreakerState is a circuit breaker's three possible states.
type BreakerState string

const (
	BreakerClosed   BreakerState = "closed"
	BreakerOpen     BreakerState = "open"
	BreakerHalfOpen BreakerState = "half_open"
)

// CircuitBreakerState mirrors one row of the circuit_breaker_state table.
type CircuitBreakerState struct {
	Endpoint     string
	State        BreakerState
	FailureCount int
	OpenedAt     int64
	HalfOpenAt   int64
}

// QuarantineRecord mirrors one row of the quarantined_artifacts table.
type QuarantineRecord struct {
	ArtifactID    string
	Reason        string
	QuarantinedAt int64
}

// SyncEvent mirrors one row of the sync_events table — an append-only
// audit trail of push/pull/breaker/quarantine occurrences.
type SyncEvent struct {
	ID         int64
	EventType  string
	SnapshotID string
	Detail     string
	OccurredAt int64
}

// PushOutcome is the result category of one push attempt.
type PushOutcome string

const (
	PushOK               PushOutcome = "ok"
	PushTimeout          PushOutcome = "timeout"
	PushError            PushOutcome = "error"
	PushRejected         PushOutcome = "rejected"
)

// PullRejectReason enumerates why a pull did not yield a trusted artifact.
type PullRejectReason string

const (
	RejectNoArtifact              PullRejectReason = "no_artifact"
	RejectCircuitOpen             PullRejectReason = "circuit_open"
	RejectPullTimeout             PullRejectReason = "pull_timeout"
	RejectPullError               PullRejectReason = "pull_error"
	RejectSchemaMismatch          PullRejectReason = "artifact_schema_mismatch"
	RejectRepoMismatch            PullRejectReason = "repo_mismatch"
	RejectToolMismatch            PullRejectReason = "artifact_tool_mismatch"
	RejectLineageMismatch         PullRejectReason = "lineage_mismatch"
	RejectQuarantined             PullRejectReason = "artifact_quarantined"
	RejectChecksumMismatch        PullRejectReason = "checksum_mismatch"
	RejectSignatureMismatch       PullRejectReason = "signature_mismatch"
	RejectSignatureUntrustedKey   PullRejectReason = "signature_untrusted_key"
)

// SyncReport is the return value of one full sync cycle (push + pull +
// reconcile), used by CLI/status output and the test harness.
type SyncReport struct {
	PushOutcome  PushOutcome
	PulledArtifactID string
	RejectReason PullRejectReason
	Reconciled   bool
	BreakerState BreakerState
}
