package repository

import "errors"

// Sentinel kinds for store errors.
var (
	ErrNotFound       = errors.New("not found")
	ErrMatchExists    = errors.New("match already exists")
	ErrSeqConflict    = errors.New("ledger sequence conflict")
	ErrDuplicateEvent = errors.New("client event id already recorded")
)
