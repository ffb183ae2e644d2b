package simulate

import "errors"

// Error constants.
var (
	ErrReplay = errors.New("replay rejected")
)
