package service

import "errors"

// Sentinel kinds.
var (
	ErrNotStarted = errors.New("service not started")
	ErrBadRequest = errors.New("bad request")
)
