package domain

import (
	"errors"
	"fmt"
)

// PredictionErrorKind identifies the failure mode of a remote prediction call.
type PredictionErrorKind string

const (
	// ErrKindUnreachable covers connection and transport failures, including
	// a circuit breaker short-circuiting the call.
	ErrKindUnreachable PredictionErrorKind = "UNREACHABLE"
	// ErrKindTimeout covers calls that exceeded their bounded deadline.
	ErrKindTimeout PredictionErrorKind = "TIMEOUT"
	// ErrKindServerRejected covers non-2xx responses with a structured error body.
	ErrKindServerRejected PredictionErrorKind = "SERVER_REJECTED"
	// ErrKindMalformedResponse covers 2xx payloads that fail schema validation.
	ErrKindMalformedResponse PredictionErrorKind = "MALFORMED_RESPONSE"
	// ErrKindApplicationError covers payloads that explicitly report status != success.
	ErrKindApplicationError PredictionErrorKind = "APPLICATION_ERROR"
)

// ErrorTaxonomy groups prediction error kinds for logging and audit.
type ErrorTaxonomy string

const (
	TaxonomyTransport ErrorTaxonomy = "TransportError"
	TaxonomyBackend   ErrorTaxonomy = "BackendError"
	TaxonomySchema    ErrorTaxonomy = "SchemaError"
)

// PredictionError is the tagged-variant error surfaced by the prediction
// client and propagated unchanged through the extraction pipeline. Only the
// orchestration layer may absorb it into a degraded result.
type PredictionError struct {
	Kind       PredictionErrorKind `json:"kind"`
	Endpoint   string              `json:"endpoint"`
	StatusCode int                 `json:"status_code,omitempty"`
	Message    string              `json:"message"`
	Err        error               `json:"-"`
}

// Error implements the error interface.
func (e *PredictionError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s: %s (%s, status %d)", e.Kind, e.Message, e.Endpoint, e.StatusCode)
	}
	return fmt.Sprintf("%s: %s (%s)", e.Kind, e.Message, e.Endpoint)
}

// Unwrap returns the underlying cause, if any.
func (e *PredictionError) Unwrap() error {
	return e.Err
}

// Taxonomy maps the error kind into the coarse audit taxonomy.
func (e *PredictionError) Taxonomy() ErrorTaxonomy {
	switch e.Kind {
	case ErrKindUnreachable, ErrKindTimeout:
		return TaxonomyTransport
	case ErrKindServerRejected, ErrKindApplicationError:
		return TaxonomyBackend
	default:
		return TaxonomySchema
	}
}

// NewPredictionError creates a new PredictionError wrapping an underlying cause.
func NewPredictionError(kind PredictionErrorKind, endpoint, message string, err error) *PredictionError {
	return &PredictionError{
		Kind:     kind,
		Endpoint: endpoint,
		Message:  message,
		Err:      err,
	}
}

// AsPredictionError extracts a PredictionError from an error chain.
func AsPredictionError(err error) (*PredictionError, bool) {
	var pe *PredictionError
	if errors.As(err, &pe) {
		return pe, true
	}
	return nil, false
}

// IsPredictionErrorKind reports whether err is a PredictionError of the given kind.
func IsPredictionErrorKind(err error, kind PredictionErrorKind) bool {
	pe, ok := AsPredictionError(err)
	return ok && pe.Kind == kind
}
