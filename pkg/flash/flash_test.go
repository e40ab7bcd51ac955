package flash

import (
	"context"
	"errors"
	"testing"
)

// fakeDevice is an in-memory block device. failWrites makes the first N
// write attempts store corrupted data so verification fails.
type fakeDevice struct {
	data       []byte
	writes     int
	reads      int
	failWrites int
}

func newFakeDevice(size int) *fakeDevice {
	return &fakeDevice{data: make([]byte, size)}
}

func (d *fakeDevice) ReadAt(offset int64, length int) ([]byte, error) {
	d.reads++
	out := make([]byte, length)
	copy(out, d.data[offset:int(offset)+length])
	return out, nil
}

func (d *fakeDevice) WriteAt(offset int64, data []byte) (int, error) {
	d.writes++
	copy(d.data[offset:], data)
	if d.failWrites > 0 {
		d.failWrites--
		// Flip one bit so the read-back comparison fails.
		d.data[offset] ^= 0x01
	}
	return len(data), nil
}

func testImage(size int) []byte {
	img := make([]byte, size)
	for i := range img {
		img[i] = byte(i % 251)
	}
	return img
}

func TestFlashSuccess(t *testing.T) {
	dev := newFakeDevice(4096)
	image := testImage(1500)

	var unlocked, locked bool
	f := New(dev,
		WithUnlockGate(
			func() error { unlocked = true; return nil },
			func() error { locked = true; return nil },
		),
	)

	outcome, err := f.Flash(context.Background(), image, 512)
	if err != nil {
		t.Fatalf("Flash: %v", err)
	}
	if outcome != OutcomeSuccess {
		t.Fatalf("outcome = %v, want success", outcome)
	}
	if !unlocked || !locked {
		t.Errorf("gate: unlocked=%v locked=%v, want both", unlocked, locked)
	}
	for i, b := range image {
		if dev.data[512+i] != b {
			t.Fatalf("device byte %d = 0x%02X, want 0x%02X", i, dev.data[512+i], b)
		}
	}
}

func TestFlashRetriesThenSucceeds(t *testing.T) {
	dev := newFakeDevice(2048)
	dev.failWrites = 2
	image := testImage(512)

	f := New(dev)
	fOutcome, err := f.Flash(context.Background(), image, 0)
	if err != nil {
		t.Fatalf("Flash: %v", err)
	}
	if fOutcome != OutcomeSuccess {
		t.Fatalf("outcome = %v, want success", fOutcome)
	}
	if dev.writes != 3 {
		t.Errorf("writes = %d, want 3 (two corrupted, one clean)", dev.writes)
	}
}

func TestFlashExhaustsAttempts(t *testing.T) {
	dev := newFakeDevice(2048)
	dev.failWrites = 100 // never recovers
	image := testImage(512)

	var locked bool
	f := New(dev, WithUnlockGate(
		func() error { return nil },
		func() error { locked = true; return nil },
	))

	outcome, err := f.Flash(context.Background(), image, 0)
	if outcome != OutcomeFailed {
		t.Fatalf("outcome = %v, want failed", outcome)
	}
	var verr *VerifyError
	if !errors.As(err, &verr) {
		t.Fatalf("error = %v, want *VerifyError", err)
	}
	if verr.Attempts != 5 {
		t.Errorf("Attempts = %d, want 5", verr.Attempts)
	}
	if dev.writes != 5 {
		t.Errorf("writes = %d, want 5", dev.writes)
	}
	if !locked {
		t.Error("gate not re-locked after exhausted attempts")
	}
}

func TestFlashNonDestructiveSkipsGate(t *testing.T) {
	dev := newFakeDevice(1024)
	f := New(dev)

	outcome, err := f.Flash(context.Background(), testImage(300), 0)
	if err != nil || outcome != OutcomeSuccess {
		t.Fatalf("Flash = %v, %v", outcome, err)
	}
}

func TestFlashModeSwitchRequired(t *testing.T) {
	dev := newFakeDevice(1024)
	var switched bool
	f := New(dev,
		WithPrecheck(func() (bool, error) { return false, nil }),
		WithModeSwitch(func() error { switched = true; return nil }),
	)

	outcome, err := f.Flash(context.Background(), testImage(128), 0)
	if err != nil {
		t.Fatalf("Flash: %v", err)
	}
	if outcome != OutcomeModeSwitchRequired {
		t.Fatalf("outcome = %v, want mode switch required", outcome)
	}
	if !switched {
		t.Error("mode switch hook not invoked")
	}
	if dev.writes != 0 {
		t.Errorf("writes = %d, want 0 before mode switch", dev.writes)
	}
}

func TestFlashDeclined(t *testing.T) {
	dev := newFakeDevice(1024)
	var unlocked bool
	f := New(dev,
		WithConfirm(func() bool { return false }),
		WithUnlockGate(
			func() error { unlocked = true; return nil },
			func() error { return nil },
		),
	)

	outcome, err := f.Flash(context.Background(), testImage(128), 0)
	if err != nil {
		t.Fatalf("Flash: %v", err)
	}
	if outcome != OutcomeDeclined {
		t.Fatalf("outcome = %v, want declined", outcome)
	}
	if unlocked || dev.writes != 0 {
		t.Errorf("declined run touched device: unlocked=%v writes=%d", unlocked, dev.writes)
	}
}

func TestFlashProgressReports(t *testing.T) {
	dev := newFakeDevice(4096)
	image := testImage(1024) // two 512-byte blocks

	var writing, verifying int
	f := New(dev, WithProgress(func(p Progress) {
		switch p.Phase {
		case PhaseWriting:
			writing++
			if p.TotalBytes != len(image) {
				t.Errorf("TotalBytes = %d, want %d", p.TotalBytes, len(image))
			}
		case PhaseVerifying:
			verifying++
		}
	}))

	if _, err := f.Flash(context.Background(), image, 0); err != nil {
		t.Fatalf("Flash: %v", err)
	}
	if writing != 2 {
		t.Errorf("writing reports = %d, want 2", writing)
	}
	if verifying != 1 {
		t.Errorf("verifying reports = %d, want 1", verifying)
	}
}

func TestFlashContextCancelled(t *testing.T) {
	dev := newFakeDevice(1024)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	f := New(dev)
	outcome, err := f.Flash(ctx, testImage(128), 0)
	if outcome != OutcomeFailed {
		t.Fatalf("outcome = %v, want failed", outcome)
	}
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("error = %v, want context.Canceled", err)
	}
}
