package fileheader

import (
	"fmt"

	"github.com/draftware/dwgkit/bitcode"
	"github.com/draftware/dwgkit/checksum"
	"github.com/draftware/dwgkit/notify"
	"github.com/draftware/dwgkit/version"
)

const (
	pagedBlockOffset = 0x70
	pagedBlockSize   = 108
	pagedHeaderSize  = pagedBlockOffset + pagedBlockSize

	// pagedTerminator is the fixed value closing the plain preamble.
	pagedTerminator = 0x00000080
)

// pagedMask is XORed over the metadata block, repeating every four
// bytes.
var pagedMask = [4]byte{0x6B, 0x53, 0x64, 0x41}

// pagedFileID opens the unmasked metadata block.
const pagedFileID = "DraftSection"

// Paged is the decoded file header of the AC1018/AC1024/AC1027/AC1032
// family. Section payloads are located through the page map stream the
// header points at, not through the header itself.
type Paged struct {
	Preamble
	SummaryInfoOffset uint32
	PageMapOffset     uint64
	PageMapCompSize   uint32
	PageMapDecompSize uint32
	PageMapCRC        uint32
	DataOffset        uint64
	DataSize          uint64
	FileSize          uint64
	PageCount         uint32
	SectionCount      uint32
	PageChecksumSeed  uint32
}

func warn(log *notify.Log, e notify.Event) {
	if log != nil {
		e.Severity = notify.SeverityWarning
		log.Add(e)
	}
}

// DecodePaged parses a paged family header from the front of data.
// When strict is false a failing header checksum is reported on log
// and decoding continues with the stored field values.
func DecodePaged(data []byte, strict bool, log *notify.Log) (*Paged, error) {
	if len(data) < pagedHeaderSize {
		return nil, fmt.Errorf("paged header: %w", bitcode.ErrTruncated)
	}
	tag, err := version.Sniff(data)
	if err != nil {
		return nil, err
	}
	if tag.Family() != version.FamilyPaged {
		return nil, fmt.Errorf("%w: %s is not a paged revision", ErrMalformed, tag)
	}
	h := &Paged{Preamble: Preamble{
		Version:           tag,
		Maintenance:       data[13],
		PreviewOffset:     u32(data[14:]),
		WriterVersion:     data[18],
		WriterMaintenance: data[19],
		Codepage:          u16(data[20:]),
	}}
	if u32(data[36:]) != pagedTerminator {
		return nil, fmt.Errorf("%w: preamble terminator %08X", ErrMalformed, u32(data[36:]))
	}
	h.SummaryInfoOffset = u32(data[28:])

	block := make([]byte, pagedBlockSize)
	copy(block, data[pagedBlockOffset:pagedBlockOffset+pagedBlockSize])
	applyPagedMask(block)
	if string(block[:len(pagedFileID)]) != pagedFileID {
		return nil, fmt.Errorf("%w: file id %q", ErrMalformed, block[:len(pagedFileID)])
	}
	if err := checksum.Verify32(0, block[:68], u32(block[68:])); err != nil {
		if strict {
			return nil, fmt.Errorf("file header: %w", err)
		}
		warn(log, notify.Event{
			Code:    notify.CodeChecksumMismatch,
			Message: err.Error(),
			Section: "FileHeader",
		})
	}
	h.PageMapOffset = u64(block[12:])
	h.PageMapCompSize = u32(block[20:])
	h.PageMapDecompSize = u32(block[24:])
	h.PageMapCRC = u32(block[28:])
	h.DataOffset = u64(block[32:])
	h.DataSize = u64(block[40:])
	h.FileSize = u64(block[48:])
	h.PageCount = u32(block[56:])
	h.SectionCount = u32(block[60:])
	h.PageChecksumSeed = u32(block[64:])
	return h, nil
}

// HeaderSize reports the byte length of the encoded header. The data
// region ordinarily starts directly after it.
func (h *Paged) HeaderSize() int { return pagedHeaderSize }

// Encode appends the 220 header bytes to dst. The checksum over the
// metadata block is computed here, so callers fill every offset and
// size field first.
func (h *Paged) Encode(dst []byte) ([]byte, error) {
	if h.Version.Family() != version.FamilyPaged {
		return nil, fmt.Errorf("%w: %s is not a paged revision", ErrMalformed, h.Version)
	}
	buf := make([]byte, pagedHeaderSize)
	copy(buf, h.Version)
	buf[13] = h.Maintenance
	put32(buf[14:], h.PreviewOffset)
	buf[18] = h.WriterVersion
	buf[19] = h.WriterMaintenance
	put16(buf[20:], h.Codepage)
	put32(buf[28:], h.SummaryInfoOffset)
	put32(buf[36:], pagedTerminator)

	block := buf[pagedBlockOffset:]
	copy(block, pagedFileID)
	put64(block[12:], h.PageMapOffset)
	put32(block[20:], h.PageMapCompSize)
	put32(block[24:], h.PageMapDecompSize)
	put32(block[28:], h.PageMapCRC)
	put64(block[32:], h.DataOffset)
	put64(block[40:], h.DataSize)
	put64(block[48:], h.FileSize)
	put32(block[56:], h.PageCount)
	put32(block[60:], h.SectionCount)
	put32(block[64:], h.PageChecksumSeed)
	put32(block[68:], checksum.CRC32(0, block[:68]))
	applyPagedMask(block)
	return append(dst, buf...), nil
}

func applyPagedMask(block []byte) {
	for i := range block {
		block[i] ^= pagedMask[i&3]
	}
}
