package cli

import "errors"

// Error constants.
var (
	ErrUsage       = errors.New("usage")
	ErrUnknownCmd  = errors.New("unknown command")
	ErrMissingFlag = errors.New("missing required flag")
)
