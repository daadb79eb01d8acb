package fileheader

import (
	"fmt"
	"sort"

	"github.com/draftware/dwgkit/bitcode"
)

// SectionDesc describes one section as recorded in the page map
// stream. DecompSize is the total decompressed byte length across the
// section's pages.
type SectionDesc struct {
	ID         SectionKind
	Name       string
	DecompSize uint64
	PageCount  uint32
}

// PageEntry locates one stored page. FileOffset is absolute;
// CompSize counts the stored bytes, DecompSize the payload after
// decompression. Checksum is CRC-32 over the stored bytes, seeded
// with the header's page checksum seed.
type PageEntry struct {
	Section          SectionKind
	PageNo           uint32
	FileOffset       uint64
	CompSize         uint32
	DecompSize       uint32
	Checksum         uint32
	InterleaveFactor uint8
}

const pageEntrySize = 32

// PageMap is the decoded page map stream of the paged and interleaved
// families.
type PageMap struct {
	Sections []SectionDesc
	Pages    []PageEntry
}

// DecodePageMap parses an already-decompressed page map stream.
func DecodePageMap(stream []byte) (*PageMap, error) {
	pos := 0
	next := func(n int) ([]byte, error) {
		if pos+n > len(stream) {
			return nil, fmt.Errorf("page map at %d: %w", pos, bitcode.ErrTruncated)
		}
		b := stream[pos : pos+n]
		pos += n
		return b, nil
	}

	m := &PageMap{}
	b, err := next(4)
	if err != nil {
		return nil, err
	}
	sectionCount := u32(b)
	for i := uint32(0); i < sectionCount; i++ {
		if b, err = next(6); err != nil {
			return nil, err
		}
		desc := SectionDesc{ID: SectionKind(u32(b))}
		nameLen := int(u16(b[4:]))
		if b, err = next(nameLen); err != nil {
			return nil, err
		}
		desc.Name = string(b)
		if b, err = next(12); err != nil {
			return nil, err
		}
		desc.DecompSize = u64(b)
		desc.PageCount = u32(b[8:])
		if !desc.ID.Valid() {
			return nil, fmt.Errorf("%w: section id %d", ErrMalformed, desc.ID)
		}
		if desc.Name != desc.ID.Name() {
			return nil, fmt.Errorf("%w: section %d named %q", ErrMalformed, desc.ID, desc.Name)
		}
		m.Sections = append(m.Sections, desc)
	}

	if b, err = next(4); err != nil {
		return nil, err
	}
	pageCount := u32(b)
	for i := uint32(0); i < pageCount; i++ {
		if b, err = next(pageEntrySize); err != nil {
			return nil, err
		}
		p := PageEntry{
			Section:          SectionKind(u32(b)),
			PageNo:           u32(b[4:]),
			FileOffset:       u64(b[8:]),
			CompSize:         u32(b[16:]),
			DecompSize:       u32(b[20:]),
			Checksum:         u32(b[24:]),
			InterleaveFactor: 1,
		}
		// Older writers leave the factor byte zero; treat it as 1.
		if f := b[28]; f > 1 {
			p.InterleaveFactor = f
		}
		if !p.Section.Valid() {
			return nil, fmt.Errorf("%w: page %d references section id %d", ErrMalformed, i, p.Section)
		}
		m.Pages = append(m.Pages, p)
	}
	if pos != len(stream) {
		return nil, fmt.Errorf("%w: %d trailing page map bytes", ErrMalformed, len(stream)-pos)
	}
	return m, nil
}

// Encode serializes the map back into the stream form DecodePageMap
// reads. The result is the stream before compression.
func (m *PageMap) Encode() []byte {
	out := make([]byte, 0, 8+len(m.Sections)*32+len(m.Pages)*pageEntrySize)
	var scratch [8]byte

	put32(scratch[:], uint32(len(m.Sections)))
	out = append(out, scratch[:4]...)
	for _, desc := range m.Sections {
		put32(scratch[:], uint32(desc.ID))
		out = append(out, scratch[:4]...)
		put16(scratch[:], uint16(len(desc.Name)))
		out = append(out, scratch[:2]...)
		out = append(out, desc.Name...)
		put64(scratch[:], desc.DecompSize)
		out = append(out, scratch[:8]...)
		put32(scratch[:], desc.PageCount)
		out = append(out, scratch[:4]...)
	}

	put32(scratch[:], uint32(len(m.Pages)))
	out = append(out, scratch[:4]...)
	for _, p := range m.Pages {
		var rec [pageEntrySize]byte
		put32(rec[:], uint32(p.Section))
		put32(rec[4:], p.PageNo)
		put64(rec[8:], p.FileOffset)
		put32(rec[16:], p.CompSize)
		put32(rec[20:], p.DecompSize)
		put32(rec[24:], p.Checksum)
		factor := p.InterleaveFactor
		if factor == 0 {
			factor = 1
		}
		rec[28] = factor
		out = append(out, rec[:]...)
	}
	return out
}

// Section returns the descriptor for kind, or false when the map does
// not list it.
func (m *PageMap) Section(kind SectionKind) (SectionDesc, bool) {
	for _, desc := range m.Sections {
		if desc.ID == kind {
			return desc, true
		}
	}
	return SectionDesc{}, false
}

// SectionPages returns kind's pages ordered by page number, the order
// their decompressed payloads concatenate in.
func (m *PageMap) SectionPages(kind SectionKind) []PageEntry {
	var out []PageEntry
	for _, p := range m.Pages {
		if p.Section == kind {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].PageNo < out[j].PageNo })
	return out
}

// CheckTiling verifies that the pages, ordered by file offset, cover
// [dataOffset, dataOffset+dataSize) exactly once with no gap and no
// overlap.
func (m *PageMap) CheckTiling(dataOffset, dataSize uint64) error {
	pages := make([]PageEntry, len(m.Pages))
	copy(pages, m.Pages)
	sort.Slice(pages, func(i, j int) bool { return pages[i].FileOffset < pages[j].FileOffset })
	want := dataOffset
	for _, p := range pages {
		if p.FileOffset != want {
			return fmt.Errorf("%w: page %d/%d at %#x, want %#x", ErrMalformed, p.Section, p.PageNo, p.FileOffset, want)
		}
		want += uint64(p.CompSize)
	}
	if want != dataOffset+dataSize {
		return fmt.Errorf("%w: pages end at %#x, data region ends at %#x", ErrMalformed, want, dataOffset+dataSize)
	}
	return nil
}
