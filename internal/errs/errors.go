// Package errs holds the error taxonomy shared across the service. Callers
// classify failures with errors.Is against these sentinels; the API layer
// maps them to response codes.
package errs

import "errors"

var (
	// ErrNotFound marks a missing file, document or section. Fatal, never retried.
	ErrNotFound = errors.New("not found")
	// ErrUnsupportedFormat marks an upload whose bytes match no supported format.
	ErrUnsupportedFormat = errors.New("unsupported format")
	// ErrEmptyContent marks extraction or parsing that produced no usable text.
	ErrEmptyContent = errors.New("empty content")
	// ErrProvider marks an external provider failure that survived retries.
	ErrProvider = errors.New("provider failure")
)
