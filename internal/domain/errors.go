package domain

import (
	"errors"
	"fmt"
)

// FailureKind classifies a per-variant resolution or annotation failure.
type FailureKind string

const (
	// Rejected before any network call.
	FailureMissingSeparator       FailureKind = "MISSING_SEPARATOR"
	FailureIrregularNomenclature  FailureKind = "IRREGULAR_NOMENCLATURE"
	FailureClassificationRejected FailureKind = "CLASSIFICATION_REJECTED"

	// Terminal resolver outcomes.
	FailureNotRecognized           FailureKind = "NOT_RECOGNIZED"
	FailureIrregularResponse       FailureKind = "IRREGULAR_RESPONSE"
	FailureValidationWarning       FailureKind = "VALIDATION_WARNING"
	FailureRequestRejected         FailureKind = "REQUEST_REJECTED"
	FailureServiceUnavailable      FailureKind = "SERVICE_UNAVAILABLE"
	FailureServiceError            FailureKind = "SERVICE_ERROR"
	FailureConnectionProblem       FailureKind = "CONNECTION_PROBLEM"
	FailureMalformedResponse       FailureKind = "MALFORMED_RESPONSE"
	FailureInternalValidationError FailureKind = "INTERNAL_VALIDATION_ERROR"

	// Annotation / persistence.
	FailureStoreError FailureKind = "STORE_ERROR"
)

// ResolverError is the tagged failure half of a resolution attempt. It
// replaces the source system's stringly-typed returns: callers branch on
// Kind instead of sniffing the value shape.
type ResolverError struct {
	Kind    FailureKind
	Variant string
	Message string
	Err     error
}

func (e *ResolverError) Error() string {
	if e.Variant != "" {
		return fmt.Sprintf("%s: %s: %s", e.Variant, e.Kind, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *ResolverError) Unwrap() error { return e.Err }

// Is makes errors.Is(err, &ResolverError{Kind: k}) match on kind alone.
func (e *ResolverError) Is(target error) bool {
	var re *ResolverError
	if errors.As(target, &re) {
		return re.Kind == e.Kind
	}
	return false
}

// NewResolverError builds a kind-tagged failure for one variant.
func NewResolverError(kind FailureKind, variant, message string) *ResolverError {
	return &ResolverError{Kind: kind, Variant: variant, Message: message}
}

// WrapResolverError is NewResolverError with an underlying cause attached.
func WrapResolverError(kind FailureKind, variant, message string, err error) *ResolverError {
	return &ResolverError{Kind: kind, Variant: variant, Message: message, Err: err}
}

// FailureKindOf extracts the kind from err, or "" when err is not a
// ResolverError.
func FailureKindOf(err error) FailureKind {
	var re *ResolverError
	if errors.As(err, &re) {
		return re.Kind
	}
	return ""
}

// StoreError wraps a storage failure. Its message is deliberately generic so
// storage internals never leak into user-visible diagnostics; the cause is
// preserved for logs.
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("store error during %s", e.Op)
}

func (e *StoreError) Unwrap() error { return e.Err }

// NewStoreError wraps a storage failure under the named operation.
func NewStoreError(op string, err error) *StoreError {
	return &StoreError{Op: op, Err: err}
}

// Sentinels for the batch-level, non-exceptional outcomes.
var (
	// ErrNoVariants signals that a parsed file produced zero usable tokens,
	// as opposed to a file that was never parsed.
	ErrNoVariants = errors.New("no usable variants in file")

	// ErrNoFiles signals that a batch directory held no variant files.
	ErrNoFiles = errors.New("no variant files found")

	// ErrNotFound signals an annotation cache miss. It is an expected
	// outcome, never an exception.
	ErrNotFound = errors.New("annotation not found")
)
