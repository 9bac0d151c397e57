package apperrors

import "errors"

var (
	ErrNotFound = errors.New("not found")
	ErrConflict = errors.New("conflict")

	// ErrMissingNaturalKey means a row lacks the identifying field required
	// for its target table (e.g. an employee row without a badge number).
	ErrMissingNaturalKey = errors.New("missing natural key")

	// ErrLowConfidenceMapping means no classification strategy produced a
	// column mapping above its acceptance threshold.
	ErrLowConfidenceMapping = errors.New("low confidence mapping")

	// ErrConcurrentCreateConflict means an optimistic insert hit a unique
	// constraint and the single follow-up lookup still found nothing.
	ErrConcurrentCreateConflict = errors.New("concurrent create conflict")

	ErrOracleUnavailable       = errors.New("classification oracle unavailable")
	ErrOracleMalformedResponse = errors.New("classification oracle returned malformed response")
)
