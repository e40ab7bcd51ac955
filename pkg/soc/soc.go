// Package soc defines the host/SoC handshake values shared by every
// Signaloid compute module variant: the status register states reported by
// the embedded SoC and the idle command used to acknowledge a completed
// calculation.
package soc

import (
	"errors"
	"fmt"
)

// Status is the value of the SoC status register. The SoC side is the only
// writer; the host only ever reads it.
type Status uint32

const (
	StatusWaitingForCommand Status = 0 // waiting for command from host
	StatusCalculating       Status = 1 // executing command
	StatusDone              Status = 2 // execution complete
	StatusInvalidCommand    Status = 3 // command not recognized by the SoC
)

// Valid reports whether s is one of the defined status values. Anything
// else is a protocol violation, not a new state.
func (s Status) Valid() bool {
	return s <= StatusInvalidCommand
}

// String returns a human-readable name for the status
func (s Status) String() string {
	switch s {
	case StatusWaitingForCommand:
		return "WAITING_FOR_COMMAND"
	case StatusCalculating:
		return "CALCULATING"
	case StatusDone:
		return "DONE"
	case StatusInvalidCommand:
		return "INVALID_COMMAND"
	}
	return fmt.Sprintf("UNKNOWN(%d)", uint32(s))
}

// CommandNone is the idle command written after a calculation completes to
// return the SoC to the waiting state.
const CommandNone uint32 = 0

// ErrInvalidCommand indicates the SoC rejected the issued command
var ErrInvalidCommand = errors.New("device rejected command")

// InvalidStatusError indicates the status register held a value outside the
// defined set. The register contents cannot be trusted after this.
type InvalidStatusError struct {
	Value uint32
}

func (e *InvalidStatusError) Error() string {
	return fmt.Sprintf("invalid SoC status value %d", e.Value)
}
