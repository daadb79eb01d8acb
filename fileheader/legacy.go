package fileheader

import (
	"bytes"
	"fmt"

	"github.com/draftware/dwgkit/bitcode"
	"github.com/draftware/dwgkit/version"
)

// legacySentinel terminates the locator table.
var legacySentinel = []byte{
	0x95, 0xA0, 0x4E, 0x28, 0x99, 0x82, 0x1A, 0xE5,
	0x5E, 0x41, 0xE0, 0x5F, 0x9D, 0x3A, 0x4D, 0x00,
}

const legacyLocatorBase = 26

// Locator is one record of the legacy section locator table. Offset
// and Size bound a contiguous, uncompressed section of the file.
type Locator struct {
	Kind   SectionKind
	Offset uint32
	Size   uint32
}

// Legacy is the decoded file header of the AC1012/AC1014/AC1015
// family.
type Legacy struct {
	Preamble
	Locators []Locator
}

// Locator returns the record for kind, or false when the table has no
// entry for it.
func (h *Legacy) Locator(kind SectionKind) (Locator, bool) {
	for _, loc := range h.Locators {
		if loc.Kind == kind {
			return loc, true
		}
	}
	return Locator{}, false
}

// Section slices the bytes a locator points at out of the whole file
// image.
func (h *Legacy) Section(data []byte, kind SectionKind) ([]byte, error) {
	loc, ok := h.Locator(kind)
	if !ok {
		return nil, fmt.Errorf("%w: no %s locator", ErrMalformed, kind.Name())
	}
	end := uint64(loc.Offset) + uint64(loc.Size)
	if end > uint64(len(data)) {
		return nil, fmt.Errorf("%s locator [%d,%d): %w", kind.Name(), loc.Offset, end, bitcode.ErrTruncated)
	}
	return data[loc.Offset:end], nil
}

// DecodeLegacy parses a legacy family header from the front of data.
func DecodeLegacy(data []byte) (*Legacy, error) {
	if len(data) < legacyLocatorBase {
		return nil, fmt.Errorf("legacy header: %w", bitcode.ErrTruncated)
	}
	tag, err := version.Sniff(data)
	if err != nil {
		return nil, err
	}
	if tag.Family() != version.FamilyLegacy {
		return nil, fmt.Errorf("%w: %s is not a legacy revision", ErrMalformed, tag)
	}
	h := &Legacy{Preamble: Preamble{
		Version:           tag,
		Maintenance:       data[13],
		PreviewOffset:     u32(data[14:]),
		WriterVersion:     data[18],
		WriterMaintenance: data[19],
		Codepage:          u16(data[20:]),
	}}
	count := u32(data[22:])
	if count > 16 {
		return nil, fmt.Errorf("%w: %d locator records", ErrMalformed, count)
	}
	end := legacyLocatorBase + int(count)*9
	if end+len(legacySentinel) > len(data) {
		return nil, fmt.Errorf("locator table: %w", bitcode.ErrTruncated)
	}
	for i := 0; i < int(count); i++ {
		rec := data[legacyLocatorBase+i*9:]
		kind, ok := legacyKindForID(rec[0])
		if !ok {
			return nil, fmt.Errorf("%w: locator id %d", ErrMalformed, rec[0])
		}
		h.Locators = append(h.Locators, Locator{
			Kind:   kind,
			Offset: u32(rec[1:]),
			Size:   u32(rec[5:]),
		})
	}
	if !bytes.Equal(data[end:end+len(legacySentinel)], legacySentinel) {
		return nil, fmt.Errorf("%w: bad locator sentinel", ErrMalformed)
	}
	return h, nil
}

// HeaderSize reports the byte length of the encoded header, locator
// table and sentinel included.
func (h *Legacy) HeaderSize() int {
	return legacyLocatorBase + len(h.Locators)*9 + len(legacySentinel)
}

// Encode appends the header bytes to dst.
func (h *Legacy) Encode(dst []byte) ([]byte, error) {
	if h.Version.Family() != version.FamilyLegacy {
		return nil, fmt.Errorf("%w: %s is not a legacy revision", ErrMalformed, h.Version)
	}
	buf := make([]byte, legacyLocatorBase)
	copy(buf, h.Version)
	buf[13] = h.Maintenance
	put32(buf[14:], h.PreviewOffset)
	buf[18] = h.WriterVersion
	buf[19] = h.WriterMaintenance
	put16(buf[20:], h.Codepage)
	put32(buf[22:], uint32(len(h.Locators)))
	dst = append(dst, buf...)
	for _, loc := range h.Locators {
		id, ok := legacyLocatorIDs[loc.Kind]
		if !ok {
			return nil, fmt.Errorf("%w: section %s has no locator id", ErrMalformed, loc.Kind.Name())
		}
		var rec [9]byte
		rec[0] = id
		put32(rec[1:], loc.Offset)
		put32(rec[5:], loc.Size)
		dst = append(dst, rec[:]...)
	}
	return append(dst, legacySentinel...), nil
}
