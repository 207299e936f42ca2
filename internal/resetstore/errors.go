package resetstore

import (
	"errors"
	"fmt"
)

var (
	// ErrResetAlreadyTracked is returned by TrackReset when a pending reset already exists.
	// Callers must clear the existing marker first.
	ErrResetAlreadyTracked = errors.New("resetstore: pending reset already tracked")
	// ErrInvalidReset indicates that the caller asked to track a reset that cannot be encoded.
	ErrInvalidReset = errors.New("resetstore: invalid pending reset")
	// ErrInvalidResyncMode and ErrInvalidResetAction reject in-memory values outside the enum.
	ErrInvalidResyncMode  = fmt.Errorf("%w: resync mode has no stored encoding", ErrInvalidReset)
	ErrInvalidResetAction = fmt.Errorf("%w: reset action has no stored encoding", ErrInvalidReset)
	// ErrReadOnlyView is returned when a write operation receives a view that cannot write.
	ErrReadOnlyView = errors.New("resetstore: writable view required")

	// ErrStructural is the parent of every error caused by on-disk data this build cannot interpret.
	ErrStructural = errors.New("resetstore: structural error")

	ErrSchemaMismatch           = fmt.Errorf("%w: schema mismatch", ErrStructural)
	ErrUnsupportedSchemaVersion = fmt.Errorf("%w: unsupported schema version", ErrStructural)
	ErrUnknownResyncMode        = fmt.Errorf("%w: unknown resync mode", ErrStructural)
	ErrUnknownResetAction       = fmt.Errorf("%w: unknown reset action", ErrStructural)
	ErrMultipleRows             = fmt.Errorf("%w: more than one pending reset row", ErrStructural)
	ErrInconsistentError        = fmt.Errorf("%w: error code and message must be stored together", ErrStructural)
)

// IsStructural reports whether err was caused by unreadable or incompatible stored data.
func IsStructural(err error) bool {
	return errors.Is(err, ErrStructural)
}
