package export

import "errors"

// ErrInvalidSpec is returned when an export header tree is malformed.
var ErrInvalidSpec = errors.New("export: invalid spec")
