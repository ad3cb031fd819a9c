package catalog

import "errors"

// Domain errors for the catalog package.
//
// These errors can be checked using errors.Is():
//
//	if errors.Is(err, catalog.ErrInvalidPayload) {
//	    // the catalogue document could not be used
//	}
var (
	// ErrInvalidPayload is returned when a catalogue document cannot be parsed
	// or does not have one of the accepted top-level shapes.
	ErrInvalidPayload = errors.New("catalog: invalid payload")

	// ErrMissingModel is returned when a device record has no deviceInfo.model.
	ErrMissingModel = errors.New("catalog: device model is required")

	// ErrUnknownColumn is returned when a column identifier is not in the registry.
	ErrUnknownColumn = errors.New("catalog: unknown column")
)
