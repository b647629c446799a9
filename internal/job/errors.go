package job

import (
	"errors"
	"fmt"

	"github.com/rotisserie/eris"
)

// ErrorKind classifies an enrichment failure for the retry loop. Validation
// failures consume no retries; network and database failures are retried
// with backoff; unknown failures are surfaced and retried conservatively.
type ErrorKind string

const (
	KindValidation ErrorKind = "validation"
	KindNetwork    ErrorKind = "network"
	KindDatabase   ErrorKind = "database"
	KindUnknown    ErrorKind = "unknown"
)

// EnrichmentError is the explicit failure value returned by pipeline stages.
type EnrichmentError struct {
	Kind ErrorKind
	Err  error
}

func (e *EnrichmentError) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Err.Error())
}

func (e *EnrichmentError) Unwrap() error { return e.Err }

// Retryable reports whether the item-level retry loop should attempt again.
func (e *EnrichmentError) Retryable() bool {
	return e.Kind == KindNetwork || e.Kind == KindDatabase
}

// ValidationError marks a record as structurally unusable. It fails the item
// immediately without consuming a retry.
func ValidationError(msg string) *EnrichmentError {
	return &EnrichmentError{Kind: KindValidation, Err: eris.New(msg)}
}

// NetworkError wraps a recoverable transport failure.
func NetworkError(err error, msg string) *EnrichmentError {
	return &EnrichmentError{Kind: KindNetwork, Err: eris.Wrap(err, msg)}
}

// DatabaseError wraps a recoverable storage failure.
func DatabaseError(err error, msg string) *EnrichmentError {
	return &EnrichmentError{Kind: KindDatabase, Err: eris.Wrap(err, msg)}
}

// KindOf extracts the kind from any error, defaulting to unknown.
func KindOf(err error) ErrorKind {
	var ee *EnrichmentError
	if errors.As(err, &ee) {
		return ee.Kind
	}
	return KindUnknown
}

// isRetryable reports whether the item loop may attempt again. Classified
// failures follow their kind; unclassified errors are retried.
func isRetryable(err error) bool {
	var ee *EnrichmentError
	if errors.As(err, &ee) {
		return ee.Retryable()
	}
	return true
}
