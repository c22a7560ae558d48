package core

import (
	"errors"
	"fmt"
)

// Sentinel errors for common failure scenarios.
var (
	// ErrNotFound indicates a requested record does not exist.
	ErrNotFound = errors.New("record not found")

	// ErrEmptyResponse indicates a provider returned no text.
	ErrEmptyResponse = errors.New("provider returned empty response")

	// ErrNotInitialized indicates a runtime method was called before Initialize.
	ErrNotInitialized = errors.New("runtime not initialized")
)

// InvalidArgumentError reports bad caller input. Fail fast, no retry.
type InvalidArgumentError struct {
	Field  string
	Reason string
}

func (e *InvalidArgumentError) Error() string {
	return fmt.Sprintf("invalid argument %q: %s", e.Field, e.Reason)
}

// UnsupportedProviderError is raised at resolution time for unknown model
// providers. Fatal: continuing with the wrong model could leak behavior into
// an unintended tier.
type UnsupportedProviderError struct {
	Provider string
}

func (e *UnsupportedProviderError) Error() string {
	return fmt.Sprintf("unsupported model provider %q", e.Provider)
}

// ProviderError wraps a network/auth/rate-limit failure from an LLM vendor.
// Retryable by the orchestrator up to a small fixed count, then surfaced as a
// degraded response.
type ProviderError struct {
	Provider string
	Model    string
	Err      error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("provider %s (model %s): %v", e.Provider, e.Model, e.Err)
}

func (e *ProviderError) Unwrap() error { return e.Err }

// EmptyResponseError reports a generation that completed without producing
// text. Unlike ProviderError it is not retryable: the provider answered,
// there is just nothing in the answer.
type EmptyResponseError struct {
	Provider string
	Model    string
}

func (e *EmptyResponseError) Error() string {
	return fmt.Sprintf("provider %s (model %s): %v", e.Provider, e.Model, ErrEmptyResponse)
}

// Is matches ErrEmptyResponse so existing errors.Is checks keep working.
func (e *EmptyResponseError) Is(target error) bool { return target == ErrEmptyResponse }

// EmbeddingError reports an embedding service failure. Always recovered
// locally with a zero-vector fallback, never propagated past the memory
// manager.
type EmbeddingError struct {
	Err error
}

func (e *EmbeddingError) Error() string { return fmt.Sprintf("embedding failed: %v", e.Err) }

func (e *EmbeddingError) Unwrap() error { return e.Err }

// DatastoreError wraps a failed datastore operation with the operation name.
type DatastoreError struct {
	Op  string
	Err error
}

func (e *DatastoreError) Error() string { return fmt.Sprintf("datastore %s: %v", e.Op, e.Err) }

func (e *DatastoreError) Unwrap() error { return e.Err }

// NewDatastoreError wraps err with operation context, or returns nil when err
// is nil so call sites can wrap unconditionally.
func NewDatastoreError(op string, err error) error {
	if err == nil {
		return nil
	}
	return &DatastoreError{Op: op, Err: err}
}

// IngestionError records a single knowledge source failure. Collected per
// item; never aborts batch or directory ingestion.
type IngestionError struct {
	Source string
	Err    error
}

func (e *IngestionError) Error() string {
	return fmt.Sprintf("knowledge ingestion of %q: %v", e.Source, e.Err)
}

func (e *IngestionError) Unwrap() error { return e.Err }
