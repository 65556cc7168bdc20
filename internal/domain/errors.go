package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrMalformedRecord is returned when a record is missing required fields or has ill-formed handles
	ErrMalformedRecord = errors.New("malformed record")

	// ErrSignatureInvalid is returned when a record id or signature does not verify
	ErrSignatureInvalid = errors.New("signature invalid")

	// ErrTimestampOutOfRange is returned when a record timestamp is outside the accepted window
	ErrTimestampOutOfRange = errors.New("timestamp out of range")

	// ErrUnknownKind is returned when a record kind has no registered schema
	ErrUnknownKind = errors.New("unknown kind")

	// ErrSchemaViolation is returned when a required field is missing or mistyped
	ErrSchemaViolation = errors.New("schema violation")

	// ErrStore is returned when the store is unreachable or rejects a write
	ErrStore = errors.New("store error")

	// ErrSourceUnreachable is returned when a source fails or times out
	ErrSourceUnreachable = errors.New("source unreachable")

	// ErrUnknownClass is returned for an entity class name outside the fixed set
	ErrUnknownClass = errors.New("unknown entity class")

	// ErrUnsupportedFilter is returned when a filter does not apply to an entity class
	ErrUnsupportedFilter = errors.New("unsupported filter")
)

// RejectReason names why the validator dropped a record
type RejectReason string

const (
	RejectMalformed     RejectReason = "malformed_record"
	RejectSignature     RejectReason = "signature_invalid"
	RejectTimestamp     RejectReason = "timestamp_out_of_range"
	RejectBlockedAuthor RejectReason = "blocked_author"
)

// RejectError is the tagged result of a failed validation
type RejectError struct {
	Reason RejectReason
	Detail string
}

func (e *RejectError) Error() string {
	return fmt.Sprintf("%s: %s", e.Reason, e.Detail)
}

// Unwrap maps the reason onto its sentinel so callers can use errors.Is
func (e *RejectError) Unwrap() error {
	switch e.Reason {
	case RejectSignature:
		return ErrSignatureInvalid
	case RejectTimestamp:
		return ErrTimestampOutOfRange
	default:
		return ErrMalformedRecord
	}
}

// NewRejectError creates a RejectError with a formatted detail
func NewRejectError(reason RejectReason, format string, args ...interface{}) *RejectError {
	return &RejectError{Reason: reason, Detail: fmt.Sprintf(format, args...)}
}

// SchemaViolationError names the field that failed extraction
type SchemaViolationError struct {
	Kind   Kind
	Field  string
	Detail string
}

func (e *SchemaViolationError) Error() string {
	return fmt.Sprintf("schema violation: kind %d field %q: %s", e.Kind, e.Field, e.Detail)
}

func (e *SchemaViolationError) Unwrap() error {
	return ErrSchemaViolation
}

// StoreError wraps an infrastructure failure of the store
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("store %s: %v", e.Op, e.Err)
}

// Is lets errors.Is(err, ErrStore) match any StoreError
func (e *StoreError) Is(target error) bool {
	return target == ErrStore
}

func (e *StoreError) Unwrap() error {
	return e.Err
}

// NewStoreError wraps err as a StoreError unless it already is one
func NewStoreError(op string, err error) error {
	if err == nil {
		return nil
	}
	var se *StoreError
	if errors.As(err, &se) {
		return err
	}
	return &StoreError{Op: op, Err: err}
}
