package models

import "errors"

// Sentinel errors for the retrieval pipeline. Callers classify failures with
// errors.Is; wrap these with fmt.Errorf("...: %w", ...) to add context.
var (
	// ErrInvalidInput marks bad caller-supplied arguments (empty query text,
	// non-positive k). Surfaced to the immediate caller, never retried.
	ErrInvalidInput = errors.New("invalid input")

	// ErrDocumentSkipped marks one unusable document during a build. Recovered
	// locally by the builder and counted in the build summary, never fatal.
	ErrDocumentSkipped = errors.New("document skipped")

	// ErrConfigMismatch marks a divergence between the index manifest and the
	// running embedder configuration. Fatal at load time: serving
	// wrong-dimension comparisons would silently degrade results.
	ErrConfigMismatch = errors.New("index config mismatch")

	// ErrIndexCorrupt marks a structural invariant violation in persisted
	// index state, e.g. table length != vector count. Fatal at load time.
	ErrIndexCorrupt = errors.New("index corrupt")

	// ErrEmbeddingService marks a transient failure calling the embedding
	// model. Retried with backoff at the call site; after exhaustion it
	// becomes ErrDocumentSkipped during a build or a failed query at
	// retrieval time.
	ErrEmbeddingService = errors.New("embedding service error")
)
