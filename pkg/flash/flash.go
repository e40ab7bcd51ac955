// Package flash implements the write-then-verify flashing engine shared by
// the C0-microSD toolkits. An image is copied to a fixed device offset in
// block-sized transfers, read back, and compared byte-for-byte; the whole
// write+verify cycle retries up to a bounded attempt count. Destructive
// targets are bracketed by an unlock gate and a confirmation prompt.
package flash

import (
	"bytes"
	"context"

	"github.com/signaloid/c0-microsd-toolkit/pkg/sdio"
)

// Outcome is the terminal result of one flash operation.
type Outcome int

const (
	// OutcomeSuccess: the read-back image matched the input.
	OutcomeSuccess Outcome = iota

	// OutcomeFailed: every attempt failed verification, or the operation
	// aborted on a transport error.
	OutcomeFailed

	// OutcomeModeSwitchRequired: the device was not in bootloader mode.
	// The mode switch has been triggered; the operator must power cycle
	// and retry. Nothing was written.
	OutcomeModeSwitchRequired

	// OutcomeDeclined: the operator rejected the confirmation prompt.
	// Nothing was written.
	OutcomeDeclined
)

// String returns a human-readable name for the outcome.
func (o Outcome) String() string {
	switch o {
	case OutcomeSuccess:
		return "success"
	case OutcomeFailed:
		return "failed"
	case OutcomeModeSwitchRequired:
		return "mode switch required"
	case OutcomeDeclined:
		return "declined"
	}
	return "unknown"
}

// Phase identifies the step a Progress report refers to.
type Phase string

const (
	PhaseWriting   Phase = "writing"
	PhaseVerifying Phase = "verifying"
)

// Progress is a snapshot of one flash attempt, passed to the progress
// callback. It is transient: nothing about an attempt is persisted.
type Progress struct {
	Attempt      int
	MaxAttempts  int
	Phase        Phase
	BytesWritten int
	TotalBytes   int
}

// Flasher runs flash operations against one device transport. Configure it
// with options; the zero-option Flasher writes and verifies with no
// precheck, no confirmation, and no unlock gate (the non-destructive
// path).
type Flasher struct {
	dev sdio.ReadWriterAt
	cfg config
}

// New returns a Flasher over the given transport.
func New(dev sdio.ReadWriterAt, opts ...Option) *Flasher {
	f := &Flasher{
		dev: dev,
		cfg: defaultConfig(),
	}
	for _, opt := range opts {
		opt(&f.cfg)
	}
	return f
}

// Flash copies image to the device region starting at offset and verifies
// the write, retrying up to the configured attempt count.
//
// Sequence: precheck (bootloader mode) -> confirmation -> unlock -> write
// -> verify -> retry/success/fail. The unlock gate is re-locked before
// returning on both success and failure, so the device is never left
// unlocked; the only exception is the precheck abort, which happens before
// the gate is touched.
func (f *Flasher) Flash(ctx context.Context, image []byte, offset int64) (Outcome, error) {
	if f.cfg.precheck != nil {
		ready, err := f.cfg.precheck()
		if err != nil {
			return OutcomeFailed, err
		}
		if !ready {
			f.cfg.log.Info("device not in bootloader mode, triggering boot config switch")
			if f.cfg.modeSwitch != nil {
				if err := f.cfg.modeSwitch(); err != nil {
					return OutcomeFailed, err
				}
			}
			return OutcomeModeSwitchRequired, nil
		}
	}

	if f.cfg.confirm != nil && !f.cfg.confirm() {
		return OutcomeDeclined, nil
	}

	if f.cfg.unlock != nil {
		if err := f.cfg.unlock(); err != nil {
			return OutcomeFailed, err
		}
	}

	outcome, err := f.writeVerifyLoop(ctx, image, offset)

	if f.cfg.lock != nil {
		if lockErr := f.cfg.lock(); lockErr != nil && err == nil {
			err = lockErr
		}
	}
	return outcome, err
}

func (f *Flasher) writeVerifyLoop(ctx context.Context, image []byte, offset int64) (Outcome, error) {
	for attempt := 1; attempt <= f.cfg.maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return OutcomeFailed, err
		}

		f.cfg.log.Info("flashing", "attempt", attempt, "maxAttempts", f.cfg.maxAttempts, "bytes", len(image))
		if err := f.write(ctx, image, offset, attempt); err != nil {
			return OutcomeFailed, err
		}

		f.report(Progress{
			Attempt:      attempt,
			MaxAttempts:  f.cfg.maxAttempts,
			Phase:        PhaseVerifying,
			BytesWritten: len(image),
			TotalBytes:   len(image),
		})
		ok, err := f.verify(image, offset)
		if err != nil {
			return OutcomeFailed, err
		}
		if ok {
			f.cfg.log.Info("verify passed", "attempt", attempt)
			return OutcomeSuccess, nil
		}
		f.cfg.log.Info("verify failed, data mismatch", "attempt", attempt)
	}
	return OutcomeFailed, &VerifyError{Offset: offset, Attempts: f.cfg.maxAttempts}
}

// write copies the image in block-sized transfers.
func (f *Flasher) write(ctx context.Context, image []byte, offset int64, attempt int) error {
	for written := 0; written < len(image); {
		if err := ctx.Err(); err != nil {
			return err
		}
		end := written + f.cfg.blockSize
		if end > len(image) {
			end = len(image)
		}
		n, err := f.dev.WriteAt(offset+int64(written), image[written:end])
		if err != nil {
			return err
		}
		written += n

		f.report(Progress{
			Attempt:      attempt,
			MaxAttempts:  f.cfg.maxAttempts,
			Phase:        PhaseWriting,
			BytesWritten: written,
			TotalBytes:   len(image),
		})
	}
	return nil
}

// verify reads back exactly len(image) bytes from offset and compares.
func (f *Flasher) verify(image []byte, offset int64) (bool, error) {
	for checked := 0; checked < len(image); {
		end := checked + f.cfg.blockSize
		if end > len(image) {
			end = len(image)
		}
		data, err := f.dev.ReadAt(offset+int64(checked), end-checked)
		if err != nil {
			return false, err
		}
		if !bytes.Equal(data, image[checked:end]) {
			return false, nil
		}
		checked = end
	}
	return true, nil
}

func (f *Flasher) report(p Progress) {
	if f.cfg.progress != nil {
		f.cfg.progress(p)
	}
}
