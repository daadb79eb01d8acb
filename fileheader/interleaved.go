package fileheader

import (
	"fmt"

	"github.com/draftware/dwgkit/bitcode"
	"github.com/draftware/dwgkit/checksum"
	"github.com/draftware/dwgkit/interleave"
	"github.com/draftware/dwgkit/notify"
	"github.com/draftware/dwgkit/version"
)

const (
	interleavedBlockOffset = 0x20

	// interleavedPayloadSize is the meaningful portion of the header
	// block payload. The block's remaining capacity is zero padding.
	interleavedPayloadSize = 160

	interleavedStreamVersion = 0x60100
)

// Interleaved is the decoded file header of the AC1021 family.
type Interleaved struct {
	Preamble
	FileSize           uint64
	PageMapOffset      uint64
	PageMapCompSize    uint32
	PageMapDecompSize  uint32
	PageMapCompCRC     uint64
	PageMapDecompCRC   uint64
	PageChecksumSeed   uint64
	HeaderChecksumSeed uint64
	PageCount          uint32
	SectionCount       uint32
	PageMapID          uint64
	SectionMapID       uint64
}

// HeaderBlockSize reports the byte length of the interleaved header
// block as stored in the file.
func HeaderBlockSize() int { return interleave.Header.Size() }

// DecodeInterleaved parses an AC1021 header from the front of data.
// A header block cut short by truncation is deinterleaved with zero
// fill; whether that breaks the header checksum depends on how much of
// the block survived. When strict is false a failing checksum is
// reported on log and decoding continues.
func DecodeInterleaved(data []byte, strict bool, log *notify.Log) (*Interleaved, error) {
	if len(data) < interleavedBlockOffset {
		return nil, fmt.Errorf("interleaved header: %w", bitcode.ErrTruncated)
	}
	tag, err := version.Sniff(data)
	if err != nil {
		return nil, err
	}
	if tag.Family() != version.FamilyInterleaved {
		return nil, fmt.Errorf("%w: %s is not an interleaved revision", ErrMalformed, tag)
	}
	h := &Interleaved{Preamble: Preamble{
		Version:           tag,
		Maintenance:       data[13],
		PreviewOffset:     u32(data[14:]),
		WriterVersion:     data[18],
		WriterMaintenance: data[19],
		Codepage:          u16(data[20:]),
	}}

	end := interleavedBlockOffset + interleave.Header.Size()
	if end > len(data) {
		end = len(data)
	}
	payload := interleave.Header.Deinterleave(data[interleavedBlockOffset:end])

	if size := u64(payload); size != interleavedPayloadSize {
		return nil, fmt.Errorf("%w: header payload size %d", ErrMalformed, size)
	}
	if factor := u32(payload[48:]); factor != uint32(interleave.Header.Factor) {
		return nil, fmt.Errorf("%w: correction factor %d", ErrMalformed, factor)
	}
	if sv := u32(payload[52:]); sv != interleavedStreamVersion {
		return nil, fmt.Errorf("%w: stream version %#x", ErrMalformed, sv)
	}
	h.FileSize = u64(payload[8:])
	h.PageMapOffset = u64(payload[16:])
	h.PageMapCompSize = u32(payload[24:])
	h.PageMapDecompSize = u32(payload[28:])
	h.PageMapCompCRC = u64(payload[32:])
	h.PageMapDecompCRC = u64(payload[40:])
	h.PageChecksumSeed = u64(payload[56:])
	h.HeaderChecksumSeed = u64(payload[64:])
	h.PageCount = u32(payload[72:])
	h.SectionCount = u32(payload[76:])
	h.PageMapID = u64(payload[80:])
	h.SectionMapID = u64(payload[88:])

	if err := checksum.Verify64(h.HeaderChecksumSeed, payload[:96], u64(payload[96:])); err != nil {
		if strict {
			return nil, fmt.Errorf("file header: %w", err)
		}
		warn(log, notify.Event{
			Code:    notify.CodeChecksumMismatch,
			Message: err.Error(),
			Section: "FileHeader",
		})
	}
	return h, nil
}

// HeaderSize reports the byte length of the preamble plus the
// interleaved header block.
func (h *Interleaved) HeaderSize() int {
	return interleavedBlockOffset + interleave.Header.Size()
}

// Encode appends the preamble and the interleaved header block to dst.
func (h *Interleaved) Encode(dst []byte) ([]byte, error) {
	if h.Version.Family() != version.FamilyInterleaved {
		return nil, fmt.Errorf("%w: %s is not an interleaved revision", ErrMalformed, h.Version)
	}
	pre := make([]byte, interleavedBlockOffset)
	copy(pre, h.Version)
	pre[13] = h.Maintenance
	put32(pre[14:], h.PreviewOffset)
	pre[18] = h.WriterVersion
	pre[19] = h.WriterMaintenance
	put16(pre[20:], h.Codepage)

	payload := make([]byte, interleavedPayloadSize)
	put64(payload, interleavedPayloadSize)
	put64(payload[8:], h.FileSize)
	put64(payload[16:], h.PageMapOffset)
	put32(payload[24:], h.PageMapCompSize)
	put32(payload[28:], h.PageMapDecompSize)
	put64(payload[32:], h.PageMapCompCRC)
	put64(payload[40:], h.PageMapDecompCRC)
	put32(payload[48:], uint32(interleave.Header.Factor))
	put32(payload[52:], interleavedStreamVersion)
	put64(payload[56:], h.PageChecksumSeed)
	put64(payload[64:], h.HeaderChecksumSeed)
	put32(payload[72:], h.PageCount)
	put32(payload[76:], h.SectionCount)
	put64(payload[80:], h.PageMapID)
	put64(payload[88:], h.SectionMapID)
	put64(payload[96:], checksum.CRC64(h.HeaderChecksumSeed, payload[:96]))

	block, err := interleave.Header.Interleave(payload)
	if err != nil {
		return nil, err
	}
	return append(append(dst, pre...), block...), nil
}
