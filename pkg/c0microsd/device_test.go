package c0microsd

import (
	"bytes"
	"errors"
	"testing"

	"github.com/signaloid/c0-microsd-toolkit/pkg/sdio"
	"github.com/spf13/afero"
)

const testDevice = "/dev/c0test"

// newTestDevice creates a Device over an in-memory block device whose
// configuration-status block reports the given check word and state.
func newTestDevice(t *testing.T, checkWord string, state uint32, opts ...Option) (*Device, *sdio.Transport) {
	t.Helper()

	image := make([]byte, DefaultLayout.UserDataOffset+0x10000)
	copy(image[DefaultLayout.ConfigurationStatusOffset:], checkWord)
	// Version 1.2
	image[DefaultLayout.ConfigurationStatusOffset+5] = 1
	image[DefaultLayout.ConfigurationStatusOffset+7] = 2
	// State word, big-endian
	image[DefaultLayout.ConfigurationStatusOffset+11] = byte(state)

	fs := afero.NewMemMapFs()
	if err := afero.WriteFile(fs, testDevice, image, 0644); err != nil {
		t.Fatalf("creating test device: %v", err)
	}

	tr := sdio.New(testDevice, sdio.WithFs(fs))
	dev, err := New(tr, opts...)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return dev, tr
}

func TestStatusBootloader(t *testing.T) {
	dev, _ := newTestDevice(t, BootloaderCheckWord, 0)

	status, err := dev.Status()
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if status.Configuration != ConfigurationBootloader {
		t.Errorf("Configuration = %v, want Bootloader", status.Configuration)
	}
	if status.VersionMajor != 1 || status.VersionMinor != 2 {
		t.Errorf("Version = %d.%d, want 1.2", status.VersionMajor, status.VersionMinor)
	}
	if status.Switching {
		t.Error("Switching = true, want false")
	}
}

func TestStatusSignaloidSoC(t *testing.T) {
	dev, _ := newTestDevice(t, SOCCheckWord, 0)

	status, err := dev.Status()
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if status.Configuration != ConfigurationSignaloidSoC {
		t.Errorf("Configuration = %v, want SignaloidSoC", status.Configuration)
	}
}

func TestStatusUnknownDevice(t *testing.T) {
	dev, _ := newTestDevice(t, "XXXX", 0)

	if _, err := dev.Status(); !errors.Is(err, ErrNotC0microSD) {
		t.Errorf("Status error = %v, want ErrNotC0microSD", err)
	}
}

func TestStatusUnknownDeviceForced(t *testing.T) {
	dev, _ := newTestDevice(t, "XXXX", 0, WithForce(true))

	status, err := dev.Status()
	if err != nil {
		t.Fatalf("Status with force: %v", err)
	}
	if status.Configuration != ConfigurationUnknown {
		t.Errorf("Configuration = %v, want Unknown", status.Configuration)
	}
}

func TestStatusSwitching(t *testing.T) {
	dev, _ := newTestDevice(t, BootloaderCheckWord, 1)

	if _, err := dev.Status(); !errors.Is(err, ErrConfigurationSwitching) {
		t.Errorf("Status error = %v, want ErrConfigurationSwitching", err)
	}
}

func TestBootloaderActive(t *testing.T) {
	tests := []struct {
		name      string
		checkWord string
		want      bool
	}{
		{"bootloader word", BootloaderCheckWord, true},
		{"soc word", SOCCheckWord, false},
		{"garbage", "ABCD", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dev, _ := newTestDevice(t, tt.checkWord, 0)
			got, err := dev.BootloaderActive()
			if err != nil {
				t.Fatalf("BootloaderActive: %v", err)
			}
			if got != tt.want {
				t.Errorf("BootloaderActive = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestSwitchBootConfigWritesZeroBlock(t *testing.T) {
	dev, tr := newTestDevice(t, BootloaderCheckWord, 0)

	// Dirty the trigger region first so the zero write is observable.
	if _, err := tr.WriteAt(DefaultLayout.SwitchConfigOffset, bytes.Repeat([]byte{0xAA}, SwitchBlockSize)); err != nil {
		t.Fatalf("seeding trigger region: %v", err)
	}

	if err := dev.SwitchBootConfig(); err != nil {
		t.Fatalf("SwitchBootConfig: %v", err)
	}

	data, err := tr.ReadAt(DefaultLayout.SwitchConfigOffset, SwitchBlockSize)
	if err != nil {
		t.Fatalf("reading trigger region: %v", err)
	}
	if !bytes.Equal(data, make([]byte, SwitchBlockSize)) {
		t.Error("trigger region is not all-zero after SwitchBootConfig")
	}
}

func TestUnlockLockLastWriteWins(t *testing.T) {
	dev, tr := newTestDevice(t, BootloaderCheckWord, 0)

	if err := dev.UnlockBootloader(); err != nil {
		t.Fatalf("UnlockBootloader: %v", err)
	}
	if err := dev.LockBootloader(); err != nil {
		t.Fatalf("LockBootloader: %v", err)
	}
	if err := dev.UnlockBootloader(); err != nil {
		t.Fatalf("UnlockBootloader: %v", err)
	}

	data, err := tr.ReadAt(DefaultLayout.UnlockOffset, WordSize)
	if err != nil {
		t.Fatalf("reading unlock word: %v", err)
	}
	if !bytes.Equal(data, []byte(UnlockWord)) {
		t.Errorf("unlock word = %q, want %q", data, UnlockWord)
	}
}

func TestLockZeroesWord(t *testing.T) {
	dev, tr := newTestDevice(t, BootloaderCheckWord, 0)

	if err := dev.UnlockBootloader(); err != nil {
		t.Fatalf("UnlockBootloader: %v", err)
	}
	if err := dev.LockBootloader(); err != nil {
		t.Fatalf("LockBootloader: %v", err)
	}

	data, err := tr.ReadAt(DefaultLayout.UnlockOffset, WordSize)
	if err != nil {
		t.Fatalf("reading unlock word: %v", err)
	}
	if !bytes.Equal(data, make([]byte, WordSize)) {
		t.Errorf("unlock word = % X, want all-zero", data)
	}
}

func TestSerialNumberTrimsPadding(t *testing.T) {
	dev, tr := newTestDevice(t, BootloaderCheckWord, 0)

	serial := append([]byte("C0-2024-0042"), bytes.Repeat([]byte{0xFF}, 10)...)
	if _, err := tr.WriteAt(DefaultLayout.SerialNumberOffset, serial); err != nil {
		t.Fatalf("seeding serial: %v", err)
	}

	got, err := dev.SerialNumber()
	if err != nil {
		t.Fatalf("SerialNumber: %v", err)
	}
	if got != "C0-2024-0042" {
		t.Errorf("SerialNumber = %q, want %q", got, "C0-2024-0042")
	}
}

func TestUUIDTrimsPadding(t *testing.T) {
	dev, tr := newTestDevice(t, BootloaderCheckWord, 0)

	uuid := append([]byte("0d9af683-a392-4e1a-b1c9-8e7f262d9b5c"), bytes.Repeat([]byte{0x00}, 10)...)
	if _, err := tr.WriteAt(DefaultLayout.UUIDOffset, uuid); err != nil {
		t.Fatalf("seeding UUID: %v", err)
	}

	got, err := dev.UUID()
	if err != nil {
		t.Fatalf("UUID: %v", err)
	}
	if got != "0d9af683-a392-4e1a-b1c9-8e7f262d9b5c" {
		t.Errorf("UUID = %q, want %q", got, "0d9af683-a392-4e1a-b1c9-8e7f262d9b5c")
	}
}

func TestLayoutValidation(t *testing.T) {
	bad := DefaultLayout
	bad.SOCBitstreamOffset = bad.BootloaderBitstreamOffset

	tr := sdio.New(testDevice, sdio.WithFs(afero.NewMemMapFs()))
	if _, err := New(tr, WithLayout(bad)); !errors.Is(err, ErrInvalidLayout) {
		t.Errorf("New error = %v, want ErrInvalidLayout", err)
	}
}
