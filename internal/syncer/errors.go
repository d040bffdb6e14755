package syncer

import (
	"errors"
	"fmt"
)

var (
	// ErrNotLoaded is returned by operations that need the remote document
	// before it has been fetched.
	ErrNotLoaded = errors.New("syncer: analysis not loaded")

	// ErrConditionIndex is returned when removing a condition that does not
	// exist.
	ErrConditionIndex = errors.New("syncer: condition index out of range")
)

// SyncError is a failed write. Local state is kept; the next edit or an
// explicit Flush tries again.
type SyncError struct {
	Op  string // "sync" or "conditions"
	Err error
}

func (e *SyncError) Error() string {
	return fmt.Sprintf("syncer: %s failed: %v", e.Op, e.Err)
}

func (e *SyncError) Unwrap() error { return e.Err }

// ImportError is a failed model import. Message is shown to the user as
// is; for server rejections it is the server's own text.
type ImportError struct {
	Message string
	Err     error
}

func (e *ImportError) Error() string {
	return "import: " + e.Message
}

func (e *ImportError) Unwrap() error { return e.Err }
