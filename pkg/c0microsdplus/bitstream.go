package c0microsdplus

import (
	"bytes"
	"encoding/json"
	"fmt"
	"hash/crc32"
)

// Bitstream prefix delimiters. Build tooling embeds a metadata blob near
// the start of each bitstream, bracketed by these byte pairs.
var (
	prefixStart = []byte{0xFF, 0x00}
	prefixEnd   = []byte{0x00, 0xFF}
)

// prefixScanSize bounds the prefix search; the prefix always sits inside
// the first 4 KiB of a slot.
const prefixScanSize = 4096

// BitstreamPrefix reads the metadata blob embedded at the start of the
// bitstream slot at offset, without the delimiters.
func (d *Device) BitstreamPrefix(offset int64) ([]byte, error) {
	chunk, err := d.t.ReadAt(offset, prefixScanSize)
	if err != nil {
		return nil, err
	}

	start := bytes.Index(chunk, prefixStart)
	if start < 0 {
		return nil, ErrPrefixNotFound
	}
	body := start + len(prefixStart)
	// The delimiters share a byte, so the end search must begin after the
	// start pair or an FF 00 FF run would match itself.
	end := bytes.Index(chunk[body:], prefixEnd)
	if end < 0 {
		return nil, ErrPrefixNotFound
	}
	end += body

	return chunk[body:end], nil
}

// BitstreamMetadata is the JSON payload of a bitstream prefix.
type BitstreamMetadata struct {
	CRC  uint32 `json:"bitstream_crc"`
	Size int    `json:"bitstream_size"`
}

// ParseBitstreamMetadata decodes a prefix blob produced by the bitstream
// build tooling.
func ParseBitstreamMetadata(prefix []byte) (BitstreamMetadata, error) {
	var meta BitstreamMetadata
	if err := json.Unmarshal(prefix, &meta); err != nil {
		return meta, fmt.Errorf("parsing bitstream prefix: %w", err)
	}
	return meta, nil
}

// VerifyBitstreamCRC reads prefixSize+size bytes from the slot at offset
// and checks the IEEE crc32 of the bitstream body (everything after the
// prefix) against want.
func (d *Device) VerifyBitstreamCRC(offset int64, prefixSize, size int, want uint32) (bool, error) {
	data, err := d.t.ReadAt(offset, prefixSize+size)
	if err != nil {
		return false, err
	}
	return crc32.ChecksumIEEE(data[prefixSize:]) == want, nil
}
