package domain

import (
	"context"
	"errors"
	"time"
)

// Status is the outcome reported by every invocation.
type Status string

const (
	StatusOK       Status = "ok"
	StatusEmpty    Status = "empty"
	StatusRejected Status = "rejected"
	StatusFailed   Status = "failed"
)

// ErrorKind classifies failures for the invocation's caller.
type ErrorKind string

const (
	ErrorKindNone                   ErrorKind = ""
	ErrorKindMalformedInput         ErrorKind = "malformed_input"
	ErrorKindStoreUnavailable       ErrorKind = "store_unavailable"
	ErrorKindObjectStoreUnavailable ErrorKind = "object_store_unavailable"
	ErrorKindTimeout                ErrorKind = "timeout"
)

// KindOf maps an I/O error to its kind, promoting deadline errors to timeout.
func KindOf(err error, fallback ErrorKind) ErrorKind {
	if errors.Is(err, context.DeadlineExceeded) {
		return ErrorKindTimeout
	}
	return fallback
}

// IngestResult acknowledges one ingestion invocation.
type IngestResult struct {
	Status         Status    `json:"status"`
	Kind           string    `json:"event_kind,omitempty"`
	RecordsWritten int       `json:"records_written"`
	ErrorKind      ErrorKind `json:"error_kind,omitempty"`
	Error          string    `json:"error,omitempty"`
}

// ExtractResult reports one extraction run.
type ExtractResult struct {
	Status      Status    `json:"status"`
	WindowStart time.Time `json:"window_start"`
	WindowEnd   time.Time `json:"window_end"`
	Key         string    `json:"key,omitempty"`
	RowsWritten int       `json:"rows_written"`
	RowsSkipped int       `json:"rows_skipped"`
	ErrorKind   ErrorKind `json:"error_kind,omitempty"`
	Error       string    `json:"error,omitempty"`
}
