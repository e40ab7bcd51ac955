package sdio

import (
	"errors"
	"fmt"
)

// Transport errors
var (
	// ErrShortTransfer indicates fewer bytes moved than requested
	ErrShortTransfer = errors.New("short transfer")
)

// OpError records a failed transfer and the operation that failed, so
// callers can report exactly which step (open, seek, read, write, close)
// went wrong against the device.
type OpError struct {
	Op     string
	Path   string
	Offset int64
	Err    error
}

func (e *OpError) Error() string {
	return fmt.Sprintf("%s %s at offset 0x%X: %v", e.Op, e.Path, e.Offset, e.Err)
}

func (e *OpError) Unwrap() error {
	return e.Err
}
