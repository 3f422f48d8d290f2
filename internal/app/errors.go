package service

import "errors"

// Sentinel errors returned by the service.
var (
	ErrNotStarted     = errors.New("service not started")
	ErrBackpressure   = errors.New("game queue is full")
	ErrMissingGameID  = errors.New("game has no identity")
	ErrBatchCancelled = errors.New("batch cancelled before all games finished")
)
