package engine

import "errors"

// Domain errors for the engine package.
//
// These errors can be checked using errors.Is():
//
//	if errors.Is(err, engine.ErrNotLoaded) {
//	    // no catalogue has been loaded yet
//	}
var (
	// ErrNotLoaded is returned when a query, facet or export request arrives
	// before any catalogue was loaded successfully.
	ErrNotLoaded = errors.New("engine: no catalogue loaded")

	// ErrLoadFailed is returned when fetching, parsing or validating a
	// catalogue fails. The previous snapshot stays in place.
	ErrLoadFailed = errors.New("engine: load failed")

	// ErrUnknownColumn is returned when a filter, sort, search or merge key
	// names a column that does not exist or does not support the operation.
	ErrUnknownColumn = errors.New("engine: unknown column")

	// ErrInvalidInput is returned when a filter value has the wrong type for
	// its column.
	ErrInvalidInput = errors.New("engine: invalid input")
)
