package c0microsd

import (
	"context"
	"encoding/binary"
	"fmt"
	"time"

	"github.com/go-logr/logr"
	"github.com/signaloid/c0-microsd-toolkit/pkg/sdio"
	"github.com/signaloid/c0-microsd-toolkit/pkg/soc"
)

// SoC memory map, valid while the Signaloid SoC bitstream is loaded. The
// host exchanges bulk data with the SoC through a pair of fixed-size
// buffers: MOSI (host writes) and MISO (host reads).
const (
	SoCStatusRegisterOffset  int64 = 0x00000
	SoCControlRegisterOffset int64 = 0x00004
	SoCCommandRegisterOffset int64 = 0x10000
	MOSIBufferOffset         int64 = 0x50000
	MISOBufferOffset         int64 = 0x60000

	MOSIBufferSizeBytes = 4096
	MISOBufferSizeBytes = 4096
)

// DefaultPollInterval is the delay between status polls while the SoC is
// calculating.
const DefaultPollInterval = 500 * time.Millisecond

// SoC is the data-exchange interface to the Signaloid SoC bitstream. It is
// only meaningful while the device reports the SoC configuration as
// active.
type SoC struct {
	t            sdio.ReadWriterAt
	log          logr.Logger
	pollInterval time.Duration
	idleCommand  uint32
}

// SoCOption configures a SoC interface.
type SoCOption func(*SoC)

// WithPollInterval overrides the delay between status polls.
func WithPollInterval(interval time.Duration) SoCOption {
	return func(s *SoC) {
		s.pollInterval = interval
	}
}

// WithIdleCommand overrides the command written to acknowledge a completed
// calculation.
func WithIdleCommand(command uint32) SoCOption {
	return func(s *SoC) {
		s.idleCommand = command
	}
}

// WithSoCLogger sets the SoC interface logger.
func WithSoCLogger(log logr.Logger) SoCOption {
	return func(s *SoC) {
		s.log = log
	}
}

// NewSoC returns a SoC interface over the given transport.
func NewSoC(t sdio.ReadWriterAt, opts ...SoCOption) *SoC {
	s := &SoC{
		t:            t,
		log:          logr.Discard(),
		pollInterval: DefaultPollInterval,
		idleCommand:  soc.CommandNone,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Status reads the SoC status register. A value outside the defined status
// set is a protocol violation and returns *soc.InvalidStatusError.
func (s *SoC) Status() (soc.Status, error) {
	data, err := s.t.ReadAt(SoCStatusRegisterOffset, 4)
	if err != nil {
		return 0, err
	}
	status := soc.Status(binary.LittleEndian.Uint32(data))
	if !status.Valid() {
		return status, &soc.InvalidStatusError{Value: uint32(status)}
	}
	return status, nil
}

// SendCommand writes a one-shot command word. The host never reads the
// command register back.
func (s *SoC) SendCommand(command uint32) error {
	var buf [4]byte
	binary.LittleEndian.PutUint32(buf[:], command)
	_, err := s.t.WriteAt(SoCCommandRegisterOffset, buf[:])
	return err
}

// WriteMOSIBuffer writes data into the host-to-SoC buffer.
func (s *SoC) WriteMOSIBuffer(data []byte) error {
	if len(data) > MOSIBufferSizeBytes {
		return fmt.Errorf("%w: %d > %d bytes", ErrBufferTooLarge, len(data), MOSIBufferSizeBytes)
	}
	_, err := s.t.WriteAt(MOSIBufferOffset, data)
	return err
}

// ReadMISOBuffer reads the full SoC-to-host buffer.
func (s *SoC) ReadMISOBuffer() ([]byte, error) {
	return s.t.ReadAt(MISOBufferOffset, MISOBufferSizeBytes)
}

// Calculate issues a command and blocks until the SoC reports the
// calculation done, then returns the MISO buffer contents. Before
// returning it writes the idle command until the SoC is back in the
// waiting state, so the next Calculate starts from a clean handshake.
func (s *SoC) Calculate(ctx context.Context, command uint32) ([]byte, error) {
	if err := s.SendCommand(command); err != nil {
		return nil, err
	}
	s.log.Info("command sent, waiting for calculation", "command", command)

	var result []byte
poll:
	for {
		status, err := s.Status()
		if err != nil {
			return nil, err
		}
		switch status {
		case soc.StatusDone:
			result, err = s.ReadMISOBuffer()
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
			case <-time.After(s.pollInterval):
			}
		}
	}

	// Acknowledge until the SoC drops back to the waiting state.
	for {
		status, err := s.Status()
		if err != nil {
			return nil, err
		}
		if status == soc.StatusWaitingForCommand {
			return result, nil
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if err := s.SendCommand(s.idleCommand); err != nil {
			return nil, err
		}
	}
}
