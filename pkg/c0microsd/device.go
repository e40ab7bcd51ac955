// Package c0microsd implements the host-side control protocol for the
// Signaloid C0-microSD compute module: boot-configuration detection and
// switching, the unlock gate bracketing destructive flash writes, and the
// data-exchange interface to the Signaloid SoC bitstream.
package c0microsd

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/go-logr/logr"
	"github.com/signaloid/c0-microsd-toolkit/pkg/sdio"
)

// Device is a C0-microSD reachable over a block transport. Operations are
// stateless with respect to the transport: every call is its own
// open/seek/transfer/close transaction.
type Device struct {
	t      sdio.ReadWriterAt
	layout Layout
	force  bool
	log    logr.Logger
}

// Option configures a Device.
type Option func(*Device)

// WithLayout overrides the default memory map.
func WithLayout(l Layout) Option {
	return func(d *Device) {
		d.layout = l
	}
}

// WithForce disables the check-word and switching-state guards, letting
// transactions proceed against a device that does not identify itself as a
// C0-microSD. Used to recover devices with corrupted status blocks.
func WithForce(force bool) Option {
	return func(d *Device) {
		d.force = force
	}
}

// WithLogger sets the device logger.
func WithLogger(log logr.Logger) Option {
	return func(d *Device) {
		d.log = log
	}
}

// New returns a Device over the given transport. The memory layout is
// validated here so a malformed map can never reach the device.
func New(t sdio.ReadWriterAt, opts ...Option) (*Device, error) {
	d := &Device{
		t:      t,
		layout: DefaultLayout,
		log:    logr.Discard(),
	}
	for _, opt := range opts {
		opt(d)
	}
	if err := d.layout.Validate(); err != nil {
		return nil, err
	}
	return d, nil
}

// Layout returns the memory map the device was constructed with.
func (d *Device) Layout() Layout {
	return d.layout
}

// ConfigurationStatus is the decoded 12-byte status block: which bitstream
// is loaded, its version, and whether the device is mid configuration
// switch.
type ConfigurationStatus struct {
	Configuration Configuration
	VersionMajor  uint16
	VersionMinor  uint16
	State         uint32
	Switching     bool
}

// String returns a one-line device summary
func (s ConfigurationStatus) String() string {
	value := "Signaloid C0-microSD | Loaded configuration: " + s.Configuration.String()
	if s.Configuration != ConfigurationUnknown {
		value += fmt.Sprintf(" | Version: %d.%d", s.VersionMajor, s.VersionMinor)
	} else {
		value += " | Version: N/A"
	}
	if s.Switching {
		value += " | State SWITCHING"
	} else {
		value += " | State IDLE"
	}
	return value
}

// Status reads and decodes the configuration-status block. Unless the
// device was opened with WithForce, an unrecognized ID word fails with
// ErrNotC0microSD and a device mid-switch fails with
// ErrConfigurationSwitching.
func (d *Device) Status() (ConfigurationStatus, error) {
	var status ConfigurationStatus

	data, err := d.t.ReadAt(d.layout.ConfigurationStatusOffset, ConfigurationStatusSize)
	if err != nil {
		return status, err
	}

	switch {
	case bytes.Equal(data[0:4], []byte(BootloaderCheckWord)):
		status.Configuration = ConfigurationBootloader
	case bytes.Equal(data[0:4], []byte(SOCCheckWord)):
		status.Configuration = ConfigurationSignaloidSoC
	default:
		if !d.force {
			return status, ErrNotC0microSD
		}
	}

	status.VersionMajor = binary.BigEndian.Uint16(data[4:6])
	status.VersionMinor = binary.BigEndian.Uint16(data[6:8])
	status.State = binary.BigEndian.Uint32(data[8:12])
	status.Switching = status.State&1 != 0

	if status.Switching && !d.force {
		return status, ErrConfigurationSwitching
	}
	return status, nil
}

// BootloaderActive reports whether the bootloader configuration is loaded,
// by comparing the 4-byte check word only.
func (d *Device) BootloaderActive() (bool, error) {
	data, err := d.t.ReadAt(d.layout.ConfigurationStatusOffset, WordSize)
	if err != nil {
		return false, err
	}
	return bytes.Equal(data, []byte(BootloaderCheckWord)), nil
}

// SwitchBootConfig flips the active boot configuration by writing one
// all-zero 512-byte block at the switch-config offset. The payload content
// is irrelevant beyond being fully zero: the write itself is the trigger.
// This is a toggle, not a set; issuing it twice flips twice, and the new
// configuration only loads after a power cycle.
func (d *Device) SwitchBootConfig() error {
	d.log.Info("switching boot configuration", "offset", d.layout.SwitchConfigOffset)
	_, err := d.t.WriteAt(d.layout.SwitchConfigOffset, make([]byte, SwitchBlockSize))
	return err
}

// UnlockBootloader writes the unlock word, enabling writes to the
// bootloader and SoC bitstream sections. The write is unconditional (no
// read-before-write), so it is idempotent.
func (d *Device) UnlockBootloader() error {
	d.log.Info("unlocking bootloader")
	_, err := d.t.WriteAt(d.layout.UnlockOffset, []byte(UnlockWord))
	return err
}

// LockBootloader zeroes the unlock word, re-protecting the bootloader and
// SoC bitstream sections. Unconditional and idempotent, like
// UnlockBootloader.
func (d *Device) LockBootloader() error {
	d.log.Info("locking bootloader")
	_, err := d.t.WriteAt(d.layout.UnlockOffset, make([]byte, WordSize))
	return err
}

// SerialNumber reads the factory-programmed serial number string.
func (d *Device) SerialNumber() (string, error) {
	data, err := d.t.ReadAt(d.layout.SerialNumberOffset, d.layout.SerialNumberSize)
	if err != nil {
		return "", err
	}
	return trimPadding(data), nil
}

// UUID reads the factory-programmed device UUID string.
func (d *Device) UUID() (string, error) {
	data, err := d.t.ReadAt(d.layout.UUIDOffset, d.layout.UUIDSize)
	if err != nil {
		return "", err
	}
	return trimPadding(data), nil
}

// trimPadding strips the trailing erase/zero fill from a fixed-size
// identity field.
func trimPadding(data []byte) string {
	end := len(data)
	for end > 0 && (data[end-1] == 0x00 || data[end-1] == 0xFF) {
		end--
	}
	return string(data[:end])
}
