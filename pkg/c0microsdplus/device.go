// Package c0microsdplus implements the host-side control protocol for the
// Signaloid C0-microSD+ compute module. Unlike the original C0-microSD,
// the plus variant exposes the embedded SoC through four memory-mapped
// 32-bit registers (command, config, boot address, status) and a shared
// 8 KiB MMIO buffer, all reached through raw block I/O at fixed offsets.
package c0microsdplus

import (
	"context"
	"encoding/binary"
	"os"
	"time"

	"github.com/go-logr/logr"
	"github.com/signaloid/c0-microsd-toolkit/pkg/sdio"
	"github.com/signaloid/c0-microsd-toolkit/pkg/soc"
)

// DefaultPollInterval is the delay between status polls while the SoC is
// calculating.
const DefaultPollInterval = 500 * time.Millisecond

// Device is a C0-microSD+ reachable over a block transport.
//
// Register accessors perform exactly one transfer of the exact register or
// buffer width. A short transfer leaves the SoC control state undefined:
// by default the accessor returns a *RegisterError and the device must not
// be used further; with WithStrictRegisterFaults the process terminates
// instead, matching the reference behavior.
type Device struct {
	t            sdio.ReadWriterAt
	layout       Layout
	log          logr.Logger
	pollInterval time.Duration
	idleCommand  uint32
	strict       bool
	exit         func(int)
}

// Option configures a Device.
type Option func(*Device)

// WithLayout overrides the default memory map.
func WithLayout(l Layout) Option {
	return func(d *Device) {
		d.layout = l
	}
}

// WithLogger sets the device logger.
func WithLogger(log logr.Logger) Option {
	return func(d *Device) {
		d.log = log
	}
}

// WithPollInterval overrides the delay between status polls.
func WithPollInterval(interval time.Duration) Option {
	return func(d *Device) {
		d.pollInterval = interval
	}
}

// WithStrictRegisterFaults makes any short register transfer terminate the
// process instead of returning an error, mirroring the reference host
// utilities. Use when continuing with unknown register state is worse than
// dying.
func WithStrictRegisterFaults() Option {
	return func(d *Device) {
		d.strict = true
	}
}

// withExit overrides the process-termination hook. Tests only.
func withExit(exit func(int)) Option {
	return func(d *Device) {
		d.exit = exit
	}
}

// New returns a Device over the given transport, validating the memory
// layout first.
func New(t sdio.ReadWriterAt, opts ...Option) (*Device, error) {
	d := &Device{
		t:            t,
		layout:       DefaultLayout,
		log:          logr.Discard(),
		pollInterval: DefaultPollInterval,
		idleCommand:  soc.CommandNone,
		exit:         os.Exit,
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

// fault wraps a register transfer failure. In strict mode it terminates
// the process.
func (d *Device) fault(register string, err error) error {
	if err == nil {
		return nil
	}
	regErr := &RegisterError{Register: register, Err: err}
	if d.strict {
		d.log.Error(regErr, "fatal register transfer failure")
		d.exit(1)
	}
	return regErr
}

func (d *Device) readRegister(name string, offset int64) (uint32, error) {
	data, err := d.t.ReadAt(offset, RegisterSize)
	if err != nil {
		return 0, d.fault(name, err)
	}
	return binary.LittleEndian.Uint32(data), nil
}

func (d *Device) writeRegister(name string, offset int64, value uint32) error {
	var buf [RegisterSize]byte
	binary.LittleEndian.PutUint32(buf[:], value)
	_, err := d.t.WriteAt(offset, buf[:])
	return d.fault(name, err)
}

// ConfigRegister reads the raw 32-bit config register.
func (d *Device) ConfigRegister() (uint32, error) {
	return d.readRegister("config", d.layout.ConfigRegisterOffset)
}

// SetConfigRegister writes the raw 32-bit config register. The value
// replaces the register wholesale; there is no merge with the current
// contents.
func (d *Device) SetConfigRegister(value uint32) error {
	return d.writeRegister("config", d.layout.ConfigRegisterOffset, value)
}

// ConfigBits reads the config register and unpacks its flags.
func (d *Device) ConfigBits() (ConfigBits, error) {
	v, err := d.ConfigRegister()
	if err != nil {
		return ConfigBits{}, err
	}
	return UnpackConfig(v), nil
}

// SetConfigBits packs the flags into a fresh register value and writes it.
func (d *Device) SetConfigBits(bits ConfigBits) error {
	return d.SetConfigRegister(bits.Pack())
}

// SendCommand writes a one-shot command word. The host never reads the
// command register back.
func (d *Device) SendCommand(command uint32) error {
	return d.writeRegister("command", d.layout.CommandRegisterOffset, command)
}

// Status reads the SoC status register. A value outside the defined status
// set returns *soc.InvalidStatusError.
func (d *Device) Status() (soc.Status, error) {
	v, err := d.readRegister("status", d.layout.StatusRegisterOffset)
	if err != nil {
		return 0, err
	}
	status := soc.Status(v)
	if !status.Valid() {
		return status, &soc.InvalidStatusError{Value: v}
	}
	return status, nil
}

// BootAddress reads the SoC boot-address register.
func (d *Device) BootAddress() (uint32, error) {
	return d.readRegister("boot-address", d.layout.BootAddressRegisterOffset)
}

// SetBootAddress writes the SoC boot-address register.
func (d *Device) SetBootAddress(address uint32) error {
	return d.writeRegister("boot-address", d.layout.BootAddressRegisterOffset, address)
}

// WriteMMIOBuffer writes the shared buffer in one whole-buffer transfer.
// Partial-buffer addressing is not part of the protocol, so data must be
// exactly MMIOBufferSizeBytes long.
func (d *Device) WriteMMIOBuffer(data []byte) error {
	if len(data) != MMIOBufferSizeBytes {
		return ErrBufferSize
	}
	_, err := d.t.WriteAt(d.layout.MMIOBufferOffset, data)
	return d.fault("MMIO buffer", err)
}

// ReadMMIOBuffer reads the whole shared buffer.
func (d *Device) ReadMMIOBuffer() ([]byte, error) {
	data, err := d.t.ReadAt(d.layout.MMIOBufferOffset, MMIOBufferSizeBytes)
	if err != nil {
		return nil, d.fault("MMIO buffer", err)
	}
	return data, nil
}

// UnlockBitstream sets the bitstream-section-unlock flag, preserving the
// other config bits, enabling writes to the bitstream slot.
func (d *Device) UnlockBitstream() error {
	v, err := d.ConfigRegister()
	if err != nil {
		return err
	}
	return d.SetConfigRegister(v | 1<<1)
}

// LockBitstream clears the bitstream-section-unlock flag.
func (d *Device) LockBitstream() error {
	v, err := d.ConfigRegister()
	if err != nil {
		return err
	}
	return d.SetConfigRegister(v &^ (1 << 1))
}

// StartCore clears any pending command and releases the SoC core reset.
func (d *Device) StartCore() error {
	if err := d.SendCommand(soc.CommandNone); err != nil {
		return err
	}
	return d.SetConfigBits(ConfigBits{ResetN: true})
}

// StopCore asserts the SoC core reset and clears any pending command.
func (d *Device) StopCore() error {
	if err := d.SetConfigBits(ConfigBits{}); err != nil {
		return err
	}
	return d.SendCommand(soc.CommandNone)
}

// Calculate issues a command and blocks until the SoC reports the
// calculation done, then returns the MMIO buffer contents. Before
// returning it writes the idle command until the SoC is back in the
// waiting state.
func (d *Device) Calculate(ctx context.Context, command uint32) ([]byte, error) {
	if err := d.SendCommand(command); err != nil {
		return nil, err
	}
	d.log.Info("command sent, waiting for calculation", "command", command)

	var result []byte
poll:
	for {
		status, err := d.Status()
		if err != nil {
			return nil, err
		}
		switch status {
		case soc.StatusDone:
			result, err = d.ReadMMIOBuffer()
			if err != nil {
				return nil, err
			}
			break poll
		case soc.StatusInvalidCommand:
			return nil, soc.ErrInvalidCommand
		default:
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(d.pollInterval):
			}
		}
	}

	for {
		status, err := d.Status()
		if err != nil {
			return nil, err
		}
		if status == soc.StatusWaitingForCommand {
			return result, nil
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if err := d.SendCommand(d.idleCommand); err != nil {
			return nil, err
		}
	}
}
