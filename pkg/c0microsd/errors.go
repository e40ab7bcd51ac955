package c0microsd

import "errors"

// Device errors
var (
	// ErrNotC0microSD indicates the configuration-status block holds
	// neither check word; the target is probably not a C0-microSD
	ErrNotC0microSD = errors.New("device is not a C0-microSD")

	// ErrConfigurationSwitching indicates the device is mid boot-config
	// switch and needs a power cycle before it accepts transactions
	ErrConfigurationSwitching = errors.New("device is in configuration switching mode, power-cycle and try again")

	// ErrInvalidLayout indicates a memory map whose regions overlap or
	// are out of order
	ErrInvalidLayout = errors.New("invalid memory layout")

	// ErrBufferTooLarge indicates a payload exceeding a fixed buffer size
	ErrBufferTooLarge = errors.New("buffer exceeds maximum size")
)
