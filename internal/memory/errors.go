package memory

import "errors"

var (
	// ErrCapacityExceeded is returned by Observe when a new symbol would
	// push the symbol table past its configured MaxSymbols bound. The
	// failed call leaves the ledger and the table untouched.
	ErrCapacityExceeded = errors.New("symbol capacity exceeded")

	// ErrNumericInstability is returned when a cache update would produce
	// a non-finite value. The update is rejected rather than applied.
	ErrNumericInstability = errors.New("numeric instability in cache update")

	// ErrCorruptedCheckpoint is returned by Restore when a persisted
	// snapshot is internally inconsistent. It is fatal at startup.
	ErrCorruptedCheckpoint = errors.New("corrupted checkpoint")

	// ErrRemapViolation indicates a remap produced or encountered a
	// non-bijective slot permutation. Unreachable unless the scheduler
	// itself is broken; callers should treat it as a defect, not retry.
	ErrRemapViolation = errors.New("remap permutation violation")
)
