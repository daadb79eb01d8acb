// Package checksum computes the integrity codes the drawing format
// stores next to its payloads: a seedable CRC-32 (IEEE polynomial) over
// page payloads and map streams, and a CRC-64 (ECMA polynomial) over
// the interleaved family's header block. Seeding chains naturally:
// CRC32(CRC32(seed, a), b) == CRC32(seed, a‖b).
package checksum

import (
	"errors"
	"fmt"
	"hash/crc32"
	"hash/crc64"
)

// ErrMismatch reports a stored checksum that does not match the bytes
// it covers. Callers decide whether it is fatal; in lenient mode the
// mismatch is reported and decoding continues on the unverified bytes.
var ErrMismatch = errors.New("checksum mismatch")

var crc64Table = crc64.MakeTable(crc64.ECMA)

// CRC32 extends seed over data.
func CRC32(seed uint32, data []byte) uint32 {
	return crc32.Update(seed, crc32.IEEETable, data)
}

// CRC64 extends seed over data.
func CRC64(seed uint64, data []byte) uint64 {
	return crc64.Update(seed, crc64Table, data)
}

// Verify32 checks data against its stored CRC-32.
func Verify32(seed uint32, data []byte, stored uint32) error {
	if got := CRC32(seed, data); got != stored {
		return fmt.Errorf("%w: crc32 %08X, stored %08X", ErrMismatch, got, stored)
	}
	return nil
}

// Verify64 checks data against its stored CRC-64.
func Verify64(seed uint64, data []byte, stored uint64) error {
	if got := CRC64(seed, data); got != stored {
		return fmt.Errorf("%w: crc64 %016X, stored %016X", ErrMismatch, got, stored)
	}
	return nil
}
