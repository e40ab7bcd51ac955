package c0microsd

import "fmt"

// Sentinel words. These are markers, not numbers: the device firmware
// compares raw bytes at the corresponding offsets.
const (
	// BootloaderCheckWord is present at the configuration-status offset
	// when the bootloader configuration is active (hex 53424c44).
	BootloaderCheckWord = "SBLD"

	// SOCCheckWord is present when the Signaloid SoC configuration is
	// active (hex 53534f43).
	SOCCheckWord = "SSOC"

	// UnlockWord enables writes to the bootloader and SoC bitstream
	// sections (hex 55424c44). All-zero means locked.
	UnlockWord = "UBLD"
)

const (
	// ConfigurationStatusSize is the size of the status block at the
	// configuration-status offset: ID word, version word, state word.
	ConfigurationStatusSize = 12

	// WordSize is the width of the sentinel and lock words.
	WordSize = 4

	// SwitchBlockSize is the size of the all-zero trigger block written
	// to flip the active configuration.
	SwitchBlockSize = 512
)

// Layout fixes the byte offsets of the C0-microSD block address space.
// It is immutable once a Device is constructed; Validate rejects layouts
// whose regions overlap or are out of order.
type Layout struct {
	// ConfigurationStatusOffset locates the 12-byte status block.
	ConfigurationStatusOffset int64

	// SwitchConfigOffset is the boot-config trigger word.
	SwitchConfigOffset int64

	// UnlockOffset holds the bootloader-unlock word.
	UnlockOffset int64

	// Bitstream slots.
	BootloaderBitstreamOffset int64
	SOCBitstreamOffset        int64
	UserBitstreamOffset       int64

	// UserDataOffset..UserDataEnd is the general read/write region.
	UserDataOffset int64
	UserDataEnd    int64

	// Device identity, stored inside the bootloader region.
	SerialNumberOffset int64
	SerialNumberSize   int
	UUIDOffset         int64
	UUIDSize           int
}

// DefaultLayout is the production C0-microSD memory map.
var DefaultLayout = Layout{
	ConfigurationStatusOffset: 0x020000,
	SwitchConfigOffset:        0x040000,
	UnlockOffset:              0x060000,
	BootloaderBitstreamOffset: 0x080000,
	SOCBitstreamOffset:        0x100000,
	UserBitstreamOffset:       0x180000,
	UserDataOffset:            0x200000,
	UserDataEnd:               0x8000000,
	SerialNumberOffset:        0x022040,
	SerialNumberSize:          0x40,
	UUIDOffset:                0x022080,
	UUIDSize:                  0x40,
}

// Validate checks the region ordering invariant: status word before
// switch-config word before unlock word before the bitstream slots before
// userspace, with no overlaps.
func (l Layout) Validate() error {
	ordered := []struct {
		name   string
		offset int64
	}{
		{"configuration-status", l.ConfigurationStatusOffset},
		{"switch-config", l.SwitchConfigOffset},
		{"bootloader-unlock", l.UnlockOffset},
		{"bootloader-bitstream", l.BootloaderBitstreamOffset},
		{"soc-bitstream", l.SOCBitstreamOffset},
		{"user-bitstream", l.UserBitstreamOffset},
		{"user-data", l.UserDataOffset},
	}
	for i := 1; i < len(ordered); i++ {
		if ordered[i-1].offset >= ordered[i].offset {
			return fmt.Errorf("%w: %s (0x%X) must precede %s (0x%X)",
				ErrInvalidLayout,
				ordered[i-1].name, ordered[i-1].offset,
				ordered[i].name, ordered[i].offset)
		}
	}
	if l.UserDataEnd <= l.UserDataOffset {
		return fmt.Errorf("%w: user-data region is empty", ErrInvalidLayout)
	}
	return nil
}

// Configuration identifies which bitstream the device booted.
type Configuration int

const (
	ConfigurationUnknown Configuration = iota
	ConfigurationBootloader
	ConfigurationSignaloidSoC
)

// String returns a human-readable name for the configuration
func (c Configuration) String() string {
	switch c {
	case ConfigurationBootloader:
		return "Bootloader"
	case ConfigurationSignaloidSoC:
		return "Signaloid SoC"
	}
	return "UNKNOWN"
}
