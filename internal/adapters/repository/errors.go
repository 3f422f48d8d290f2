package repository

import "errors"

// Sentinel kinds for store errors.
var (
	ErrNotFound          = errors.New("game not found")
	ErrConstraint        = errors.New("row constraint violated")
	ErrInvalidFilter     = errors.New("invalid view filter")
	ErrUnsupportedDriver = errors.New("unsupported database driver")
	ErrInvalidStatus     = errors.New("invalid game status")
)
