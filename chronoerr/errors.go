// Package chronoerr defines the typed error kinds surfaced across the
// retrieval-and-synthesis pipeline. Each sentinel maps deterministically to
// an HTTP status code at the server boundary (see server/http).
package chronoerr

import "errors"

var (
	// ErrInvalidRequest means the inbound request failed validation.
	ErrInvalidRequest = errors.New("invalid request")

	// ErrPayloadTooLarge means an uploaded image exceeded the configured limit.
	ErrPayloadTooLarge = errors.New("payload too large")

	// ErrEmbeddingUnavailable means a text or multimodal embedder could not be reached.
	ErrEmbeddingUnavailable = errors.New("embedding unavailable")

	// ErrRetrievalUnavailable means every retrieval sub-query failed.
	ErrRetrievalUnavailable = errors.New("retrieval unavailable")

	// ErrBackendBusy means the vector store connection pool is saturated.
	ErrBackendBusy = errors.New("backend busy")

	// ErrSchemaViolation means the generator could not produce a schema-valid value after retries.
	ErrSchemaViolation = errors.New("schema violation")

	// ErrRateLimited means the LLM token-bucket limiter was exhausted past the deadline.
	ErrRateLimited = errors.New("rate limited")

	// ErrDeadlineExceeded means the per-request deadline expired before the pipeline finished.
	ErrDeadlineExceeded = errors.New("deadline exceeded")

	// ErrInternal is the catch-all for bugs that do not map to a more specific kind.
	ErrInternal = errors.New("internal error")

	// ErrNotFound means a lookup (collection, point, session) found nothing.
	ErrNotFound = errors.New("not found")

	// ErrSchemaMismatch means a vector store collection exists with incompatible vector dimensions.
	ErrSchemaMismatch = errors.New("schema mismatch")
)

// StatusCode is the HTTP status code a given chronoerr sentinel maps to. The
// server package owns the actual mapping (it is a thin collaborator, not part
// of the core), but the table lives here so core and server never disagree.
func StatusCode(err error) int {
	switch {
	case errors.Is(err, ErrInvalidRequest):
		return 400
	case errors.Is(err, ErrPayloadTooLarge):
		return 413
	case errors.Is(err, ErrRateLimited):
		return 429
	case errors.Is(err, ErrBackendBusy):
		return 503
	case errors.Is(err, ErrDeadlineExceeded):
		return 504
	case errors.Is(err, ErrEmbeddingUnavailable),
		errors.Is(err, ErrRetrievalUnavailable),
		errors.Is(err, ErrSchemaViolation):
		return 502
	case errors.Is(err, ErrNotFound):
		return 404
	default:
		return 500
	}
}
