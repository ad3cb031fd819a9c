package catalogdb

import "errors"

var (
	// ErrEmptyCatalog is returned by ReadPayload when no catalogue has been imported.
	ErrEmptyCatalog = errors.New("catalogdb: no catalogue imported")

	// ErrCorruptRecord is returned when a stored device cannot be decoded.
	ErrCorruptRecord = errors.New("catalogdb: corrupt device record")
)
