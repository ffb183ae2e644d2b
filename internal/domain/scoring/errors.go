package scoring

import "errors"

// Sentinel kinds.
var (
	ErrAppend      = errors.New("ledger append failed")
	ErrNothingUndo = errors.New("no delivery to undo in the current innings")
	ErrCorrupt     = errors.New("ledger does not replay")
)
