// Package errors defines Bombe's typed-error-with-category hierarchy.
// Every type except NotFoundError wraps an underlying cause and
// implements Unwrap so callers can compose with errors.Is/errors.As;
// NotFoundError carries no cause.
package errors

import (
	"fmt"
	"time"
)

// Category classifies an error by which layer raised it.
type Category string

const (
	CategoryValidation    Category = "validation"
	CategoryNotFound      Category = "not_found"
	CategoryParse         Category = "parse"
	CategoryStore         Category = "store"
	CategorySync          Category = "sync"
	CategoryQuarantine    Category = "quarantine"
	CategoryObservability Category = "observability"
)

// ValidationError reports a rejected or clamped input (missing field, bad
// query/depth/budget). Surfaced as a user-visible error response.
type ValidationError struct {
	Field      string
	Value      string
	Underlying error
}

func NewValidationError(field, value string, err error) *ValidationError {
	return &ValidationError{Field: field, Value: value, Underlying: err}
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation: field %q value %q: %v", e.Field, e.Value, e.Underlying)
}

func (e *ValidationError) Unwrap() error { return e.Underlying }

// NotFoundError marks a query that resolved nothing. Query backends never
// return this as a hard failure — it exists so wrappers that do want to
// distinguish "empty" from "broken" have a typed signal available.
type NotFoundError struct {
	Kind  string // "symbol", "shard", "artifact", ...
	Query string
}

func NewNotFoundError(kind, query string) *NotFoundError {
	return &NotFoundError{Kind: kind, Query: query}
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %q", e.Kind, e.Query)
}

// ParseError represents a per-file extractor soft failure. The indexing
// pipeline does not construct it and does not count parse failures into
// quality_stats.parse_failures; a file that fails to parse or extract
// never aborts an indexing run.
type ParseError struct {
	FilePath   string
	Line       int
	Underlying error
	Timestamp  time.Time
}

func NewParseError(filePath string, line int, err error) *ParseError {
	return &ParseError{FilePath: filePath, Line: line, Underlying: err, Timestamp: time.Now()}
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse error at %s:%d: %v", e.FilePath, e.Line, e.Underlying)
}

func (e *ParseError) Unwrap() error { return e.Underlying }

// StoreError wraps a graph-store failure (schema drift, I/O). Unlike
// ParseError, these propagate — the caller should surface them as fatal.
type StoreError struct {
	Operation  string
	Underlying error
	Timestamp  time.Time
}

func NewStoreError(op string, err error) *StoreError {
	return &StoreError{Operation: op, Underlying: err, Timestamp: time.Now()}
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("store: %s failed: %v", e.Operation, e.Underlying)
}

func (e *StoreError) Unwrap() error { return e.Underlying }

// SyncError represents a hybrid-sync protocol failure (push timeout,
// pull rejection, compatibility mismatch). Never fatal: the caller
// continues in local_fallback mode and the circuit breaker records state.
type SyncError struct {
	Stage      string // "push" or "pull"
	Reason     string // e.g. "push_timeout", "checksum_mismatch"
	Underlying error
}

func NewSyncError(stage, reason string, err error) *SyncError {
	return &SyncError{Stage: stage, Reason: reason, Underlying: err}
}

func (e *SyncError) Error() string {
	if e.Underlying != nil {
		return fmt.Sprintf("sync %s: %s: %v", e.Stage, e.Reason, e.Underlying)
	}
	return fmt.Sprintf("sync %s: %s", e.Stage, e.Reason)
}

func (e *SyncError) Unwrap() error { return e.Underlying }

// QuarantineError records an artifact integrity failure (checksum or
// signature mismatch). Persisted so the same artifact_id is blocked on
// future pulls.
type QuarantineError struct {
	ArtifactID string
	Reason     string
	Underlying error
}

func NewQuarantineError(artifactID, reason string, err error) *QuarantineError {
	return &QuarantineError{ArtifactID: artifactID, Reason: reason, Underlying: err}
}

func (e *QuarantineError) Error() string {
	return fmt.Sprintf("quarantined artifact %s: %s: %v", e.ArtifactID, e.Reason, e.Underlying)
}

func (e *QuarantineError) Unwrap() error { return e.Underlying }

// ObservabilityError represents a metrics/logging failure. Always
// swallowed by the caller with a warning log; the host operation's
// response must not be perturbed.
type ObservabilityError struct {
	Operation  string
	Underlying error
}

func NewObservabilityError(op string, err error) *ObservabilityError {
	return &ObservabilityError{Operation: op, Underlying: err}
}

func (e *ObservabilityError) Error() string {
	return fmt.Sprintf("observability: %s: %v", e.Operation, e.Underlying)
}

func (e *ObservabilityError) Unwrap() error { return e.Underlying }

// MultiError aggregates independent failures (e.g. per-shard federation
// errors) into a single error value.
type MultiError struct {
	Errors []error
}

func NewMultiError(errs []error) *MultiError {
	filtered := make([]error, 0, len(errs))
	for _, err := range errs {
		if err != nil {
			filtered = append(filtered, err)
		}
	}
	return &MultiError{Errors: filtered}
}

func (e *MultiError) Error() string {
	switch len(e.Errors) {
	case 0:
		return "no errors"
	case 1:
		return e.Errors[0].Error()
	default:
		return fmt.Sprintf("%d errors: %v", len(e.Errors), e.Errors)
	}
}

func (e *MultiError) Unwrap() []error { return e.Errors }
