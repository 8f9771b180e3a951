package domain

import "errors"

// Sentinel errors shared across the ingestion and reading pipeline. Callers
// match them with errors.Is; wrapping sites add context with %w.
var (
	// ErrUnsupportedFormat rejects a file the classifier cannot place in the
	// closed format set. Raised before any bytes are read; non-retryable.
	ErrUnsupportedFormat = errors.New("reader: unsupported file format")

	// ErrReadFailure indicates the upload's bytes could not be read. Transient;
	// the user retries by re-selecting the file.
	ErrReadFailure = errors.New("reader: failed to read file")

	// ErrDecodeFailure indicates a payload string that is not valid codec
	// output. Treated as data corruption and surfaced, never retried.
	ErrDecodeFailure = errors.New("reader: corrupted payload encoding")

	// ErrInvalidContainer indicates a structured document whose package
	// manifest cannot be located. Terminal for that book; the library entry
	// stays intact.
	ErrInvalidContainer = errors.New("reader: invalid document container")

	// ErrBookDataNotFound indicates both persistence tiers miss the payload.
	// Terminal for the session; the only recovery is returning to the library.
	ErrBookDataNotFound = errors.New("reader: book data not found")

	// ErrStoreUnavailable indicates the blob store could not be opened or a
	// transaction failed. Callers degrade to a metadata-only view where one
	// remains usable.
	ErrStoreUnavailable = errors.New("reader: blob store unavailable")

	// ErrBookNotFound indicates the id is absent from the library collection.
	ErrBookNotFound = errors.New("reader: book not found")

	// ErrNoSession indicates a reader operation with no open session.
	ErrNoSession = errors.New("reader: no open session")
)
