package source

import "errors"

var (
	// ErrUnsupportedLocation is returned for empty locations and unknown schemes.
	ErrUnsupportedLocation = errors.New("source: unsupported location")

	// ErrHTTPStatus is returned when a server answers outside 2xx.
	ErrHTTPStatus = errors.New("source: unexpected HTTP status")

	// ErrTooLarge is returned when a document exceeds the configured size cap.
	ErrTooLarge = errors.New("source: document too large")
)
