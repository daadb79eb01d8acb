// Package fileheader decodes and encodes the fixed structures at the
// front of a drawing file: the per-family file header and the section
// locating data (a locator table for the legacy family, a page map
// stream for the paged and interleaved families).
package fileheader

import (
	"errors"
	"fmt"

	"github.com/draftware/dwgkit/version"
)

// ErrMalformed reports header bytes that do not follow the family's
// layout (bad file id, impossible counts, broken locator chains).
var ErrMalformed = errors.New("malformed file header")

// SectionKind identifies one of the drawing's data sections. The
// values double as the section ids the paged families store in their
// page maps.
type SectionKind uint32

const (
	SectionHeaderVars SectionKind = iota + 1
	SectionClasses
	SectionHandles
	SectionObjects
	SectionSummaryInfo
	SectionPreview
)

func (k SectionKind) Valid() bool {
	return k >= SectionHeaderVars && k <= SectionPreview
}

func (k SectionKind) Name() string {
	switch k {
	case SectionHeaderVars:
		return "Header"
	case SectionClasses:
		return "Classes"
	case SectionHandles:
		return "Handles"
	case SectionObjects:
		return "Objects"
	case SectionSummaryInfo:
		return "SummaryInfo"
	case SectionPreview:
		return "Preview"
	default:
		return fmt.Sprintf("Section%d", uint32(k))
	}
}

// Legacy locator record ids, in their historical order. Preview
// precedes summary info here, unlike the paged section numbering.
var legacyLocatorIDs = map[SectionKind]uint8{
	SectionHeaderVars:  0,
	SectionClasses:     1,
	SectionHandles:     2,
	SectionObjects:     3,
	SectionPreview:     4,
	SectionSummaryInfo: 5,
}

func legacyKindForID(id uint8) (SectionKind, bool) {
	for k, v := range legacyLocatorIDs {
		if v == id {
			return k, true
		}
	}
	return 0, false
}

// Preamble carries the plain-byte fields every family stores before
// its locating structures.
type Preamble struct {
	Version           version.Tag
	Maintenance       uint8
	PreviewOffset     uint32
	WriterVersion     uint8
	WriterMaintenance uint8
	Codepage          uint16
}

func u16(b []byte) uint16 { return uint16(b[0]) | uint16(b[1])<<8 }
func u32(b []byte) uint32 {
	return uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16 | uint32(b[3])<<24
}
func u64(b []byte) uint64 {
	return uint64(u32(b)) | uint64(u32(b[4:]))<<32
}

func put16(b []byte, v uint16) { b[0], b[1] = byte(v), byte(v>>8) }
func put32(b []byte, v uint32) {
	b[0], b[1], b[2], b[3] = byte(v), byte(v>>8), byte(v>>16), byte(v>>24)
}
func put64(b []byte, v uint64) {
	put32(b, uint32(v))
	put32(b[4:], uint32(v>>32))
}
