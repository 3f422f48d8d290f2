package source

import "errors"

// Sentinel kinds for source errors.
var (
	ErrEmptyPayload  = errors.New("empty payload")
	ErrUnknownLayout = errors.New("unrecognized game payload")
)
