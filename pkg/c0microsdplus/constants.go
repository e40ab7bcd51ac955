package c0microsdplus

import "fmt"

const (
	// RegisterSize is the width of every control register.
	RegisterSize = 4

	// MMIOBufferSizeWords is the size of the shared host/SoC buffer in
	// 32-bit words; transfers are always whole-buffer.
	MMIOBufferSizeWords = 2048
	MMIOBufferSizeBytes = MMIOBufferSizeWords * RegisterSize
)

// Layout fixes the byte offsets of the C0-microSD+ block address space:
// the four contiguous 32-bit control registers, the MMIO shared buffer,
// and the non-volatile image slots.
type Layout struct {
	CommandRegisterOffset     int64
	ConfigRegisterOffset      int64
	BootAddressRegisterOffset int64
	StatusRegisterOffset      int64

	MMIOBufferOffset int64

	// Image slots in SPI flash, plus the SoC main memory window.
	BitstreamOffset   int64
	BootloaderOffset  int64
	ApplicationOffset int64
	MainMemoryOffset  int64
}

// DefaultLayout is the production C0-microSD+ memory map.
var DefaultLayout = Layout{
	CommandRegisterOffset:     0x01000000,
	ConfigRegisterOffset:      0x01000004,
	BootAddressRegisterOffset: 0x01000008,
	StatusRegisterOffset:      0x0100000C,
	MMIOBufferOffset:          0x01004000,
	BitstreamOffset:           0x00000000,
	BootloaderOffset:          0x00100000,
	ApplicationOffset:         0x00180000,
	MainMemoryOffset:          0x01080000,
}

// Validate checks that the control registers are 4 bytes each and
// contiguous in the command/config/boot-address/status order, and that the
// MMIO buffer does not intersect them.
func (l Layout) Validate() error {
	regs := []struct {
		name   string
		offset int64
	}{
		{"command", l.CommandRegisterOffset},
		{"config", l.ConfigRegisterOffset},
		{"boot-address", l.BootAddressRegisterOffset},
		{"status", l.StatusRegisterOffset},
	}
	for i := 1; i < len(regs); i++ {
		if regs[i].offset != regs[i-1].offset+RegisterSize {
			return fmt.Errorf("%w: %s register at 0x%X is not contiguous with %s at 0x%X",
				ErrInvalidLayout, regs[i].name, regs[i].offset, regs[i-1].name, regs[i-1].offset)
		}
	}
	regEnd := l.StatusRegisterOffset + RegisterSize
	bufEnd := l.MMIOBufferOffset + MMIOBufferSizeBytes
	if l.MMIOBufferOffset < regEnd && bufEnd > l.CommandRegisterOffset {
		return fmt.Errorf("%w: MMIO buffer at 0x%X overlaps the control registers",
			ErrInvalidLayout, l.MMIOBufferOffset)
	}
	return nil
}

// ConfigBits is the unpacked view of the 32-bit config register. Packing
// always produces a fresh value: writing the register is whole-value, not
// read-modify-write, and the undefined bits stay zero.
type ConfigBits struct {
	// ResetN drives the SoC core reset line. True releases the core.
	ResetN bool `json:"rstn"`

	// UnlockBitstreamSection enables writes to the bitstream section of
	// the non-volatile memory.
	UnlockBitstreamSection bool `json:"unlock_bitstream_section"`

	// SWLEDEnable hands LED control to software; SWLED is the driven
	// value when enabled.
	SWLEDEnable bool `json:"sw_led_enable"`
	SWLED       bool `json:"sw_led"`
}

// Pack returns the register value encoding the four flags.
func (c ConfigBits) Pack() uint32 {
	var v uint32
	if c.ResetN {
		v |= 1 << 0
	}
	if c.UnlockBitstreamSection {
		v |= 1 << 1
	}
	if c.SWLEDEnable {
		v |= 1 << 2
	}
	if c.SWLED {
		v |= 1 << 3
	}
	return v
}

// UnpackConfig decodes a raw config register value.
func UnpackConfig(v uint32) ConfigBits {
	return ConfigBits{
		ResetN:                 v&(1<<0) != 0,
		UnlockBitstreamSection: v&(1<<1) != 0,
		SWLEDEnable:            v&(1<<2) != 0,
		SWLED:                  v&(1<<3) != 0,
	}
}
