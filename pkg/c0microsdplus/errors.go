package c0microsdplus

import (
	"errors"
	"fmt"
)

// Device errors
var (
	// ErrInvalidLayout indicates a memory map whose registers are not
	// contiguous or whose MMIO buffer overlaps them
	ErrInvalidLayout = errors.New("invalid memory layout")

	// ErrBufferSize indicates an MMIO payload that is not exactly one
	// whole buffer
	ErrBufferSize = errors.New("MMIO transfers are whole-buffer only")

	// ErrPrefixNotFound indicates a bitstream slot with no prefix
	// section delimiters
	ErrPrefixNotFound = errors.New("could not find bitstream prefix section")
)

// RegisterError wraps a failed register transfer. A partially-applied
// register write leaves the SoC control state undefined, so callers must
// not continue using the device after seeing one.
type RegisterError struct {
	Register string
	Err      error
}

func (e *RegisterError) Error() string {
	return fmt.Sprintf("%s register: %v", e.Register, e.Err)
}

func (e *RegisterError) Unwrap() error {
	return e.Err
}
