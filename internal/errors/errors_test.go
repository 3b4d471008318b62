package errors

import (
	"errors"
	"testing"
)

func TestValidationError(t *testing.T) {
	underlying := errors.New("must be >= 1")
	err := NewValidationError("depth", "-3", underlying)

	if !errors.Is(err, underlying) {
		t.Errorf("expected error to unwrap to underlying error")
	}
	expected := `validation: field "depth" value "-3": must be >= 1`
	if err.Error() != expected {
		t.Errorf("expected message %q, got %q", expected, err.Error())
	}
}

func TestNotFoundError(t *testing.T) {
	err := NewNotFoundError("symbol", "svc.missing")
	expected := `symbol not found: "svc.missing"`
	if err.Error() != expected {
		t.Errorf("expected message %q, got %q", expected, err.Error())
	}
}

func TestParseError(t *testing.T) {
	underlying := errors.New("unexpected token")
	err := NewParseError("app/service.py", 42, underlying)

	if err.FilePath != "app/service.py" || err.Line != 42 {
		t.Errorf("expected FilePath/Line app/service.py:42, got %s:%d", err.FilePath, err.Line)
	}
	if !errors.Is(err, underlying) {
		t.Errorf("expected error to unwrap to underlying error")
	}
	if err.Timestamp.IsZero() {
		t.Errorf("expected non-zero timestamp")
	}
}

func TestStoreError(t *testing.T) {
	underlying := errors.New("disk full")
	err := NewStoreError("replace_file_symbols", underlying)

	if !errors.Is(err, underlying) {
		t.Errorf("expected error to unwrap to underlying error")
	}
	expected := "store: replace_file_symbols failed: disk full"
	if err.Error() != expected {
		t.Errorf("expected message %q, got %q", expected, err.Error())
	}
}

func TestSyncError(t *testing.T) {
	err := NewSyncError("push", "push_timeout", nil)
	expected := "sync push: push_timeout"
	if err.Error() != expected {
		t.Errorf("expected message %q, got %q", expected, err.Error())
	}

	underlying := errors.New("connection reset")
	wrapped := NewSyncError("pull", "pull_error", underlying)
	if !errors.Is(wrapped, underlying) {
		t.Errorf("expected wrapped sync error to unwrap")
	}
}

func TestQuarantineError(t *testing.T) {
	underlying := errors.New("sha256 mismatch")
	err := NewQuarantineError("artifact-123", "checksum_mismatch", underlying)

	if err.ArtifactID != "artifact-123" {
		t.Errorf("expected ArtifactID artifact-123, got %s", err.ArtifactID)
	}
	if !errors.Is(err, underlying) {
		t.Errorf("expected error to unwrap to underlying error")
	}
}

func TestObservabilityError(t *testing.T) {
	underlying := errors.New("metric sink unreachable")
	err := NewObservabilityError("record_tool_metric", underlying)
	if !errors.Is(err, underlying) {
		t.Errorf("expected error to unwrap to underlying error")
	}
}

func TestMultiError(t *testing.T) {
	err1 := errors.New("error 1")
	err2 := errors.New("error 2")
	err3 := errors.New("error 3")

	multiErr := NewMultiError([]error{err1, err2, err3})
	if len(multiErr.Errors) != 3 {
		t.Errorf("expected 3 errors, got %d", len(multiErr.Errors))
	}
	expected := "3 errors: [error 1 error 2 error 3]"
	if multiErr.Error() != expected {
		t.Errorf("expected message %q, got %q", expected, multiErr.Error())
	}

	singleErr := NewMultiError([]error{err1})
	if singleErr.Error() != "error 1" {
		t.Errorf("expected 'error 1', got %q", singleErr.Error())
	}

	emptyErr := NewMultiError(nil)
	if emptyErr.Error() != "no errors" {
		t.Errorf("expected 'no errors', got %q", emptyErr.Error())
	}

	nilFiltered := NewMultiError([]error{err1, nil, err2, nil})
	if len(nilFiltered.Errors) != 2 {
		t.Errorf("expected 2 errors after filtering nil, got %d", len(nilFiltered.Errors))
	}

	unwrapped := multiErr.Unwrap()
	if len(unwrapped) != 3 {
		t.Errorf("expected 3 unwrapped errors, got %d", len(unwrapped))
	}
}
