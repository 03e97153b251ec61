package matching

import "errors"

var (
	// ErrInvalidInput marks requests that violate the request invariants.
	// Degenerate texts are not reported through it; they produce a zero-score Result.
	ErrInvalidInput = errors.New("invalid match request")

	// ErrMatchingUnavailable is returned when embeddings cannot be obtained.
	// Retrying is up to the caller.
	ErrMatchingUnavailable = errors.New("matching unavailable")
)
