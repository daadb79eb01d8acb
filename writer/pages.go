package writer

import (
	"context"
	"fmt"
	"math"

	"golang.org/x/sync/errgroup"

	"github.com/draftware/dwgkit/checksum"
	"github.com/draftware/dwgkit/fileheader"
	"github.com/draftware/dwgkit/interleave"
	"github.com/draftware/dwgkit/lz77"
	"github.com/draftware/dwgkit/version"
)

// pageSize bounds the decompressed payload of one stored page.
const pageSize = 0x7400

// pageChecksumSeed seeds every page checksum this writer emits. The
// value is arbitrary but fixed, keeping output reproducible.
const pageChecksumSeed = 0x7A9F3D42

// sectionOrder fixes the data region layout for the paged and
// interleaved families, following the section numbering. The legacy
// family uses the historical locator order instead.
var sectionOrder = [...]fileheader.SectionKind{
	fileheader.SectionHeaderVars,
	fileheader.SectionClasses,
	fileheader.SectionHandles,
	fileheader.SectionObjects,
	fileheader.SectionSummaryInfo,
	fileheader.SectionPreview,
}

// assembleLegacy lays the sections out contiguously after the locator
// table.
func assembleLegacy(target version.Tag, sections map[fileheader.SectionKind][]byte) ([]byte, error) {
	order := []fileheader.SectionKind{
		fileheader.SectionHeaderVars, fileheader.SectionClasses,
		fileheader.SectionHandles, fileheader.SectionObjects,
		fileheader.SectionPreview, fileheader.SectionSummaryInfo,
	}
	hdr := &fileheader.Legacy{Preamble: fileheader.Preamble{Version: target, Codepage: defaultCodepage}}
	var present []fileheader.SectionKind
	for _, kind := range order {
		if data, ok := sections[kind]; ok {
			present = append(present, kind)
			hdr.Locators = append(hdr.Locators, fileheader.Locator{Kind: kind, Size: uint32(len(data))})
		}
	}
	off := uint64(hdr.HeaderSize())
	for i, kind := range present {
		if off > math.MaxUint32 {
			return nil, fmt.Errorf("%s section at %#x: legacy offsets are 32-bit", kind.Name(), off)
		}
		hdr.Locators[i].Offset = uint32(off)
		if kind == fileheader.SectionPreview {
			hdr.PreviewOffset = uint32(off)
		}
		off += uint64(hdr.Locators[i].Size)
	}
	out, err := hdr.Encode(nil)
	if err != nil {
		return nil, err
	}
	for _, kind := range present {
		out = append(out, sections[kind]...)
	}
	return out, nil
}

func assemblePaged(ctx context.Context, target version.Tag, sections map[fileheader.SectionKind][]byte, opts Options) ([]byte, error) {
	pages, err := compressJobs(ctx, splitJobs(sections), lz77.A, 1, opts.Workers)
	if err != nil {
		return nil, err
	}
	hdr := &fileheader.Paged{Preamble: fileheader.Preamble{Version: target, Codepage: defaultCodepage}}
	dataOffset := uint64(hdr.HeaderSize())
	pm, dataSize := layoutPages(pages, sections, dataOffset)

	stream := pm.Encode()
	comp := lz77.A.Compress(stream)

	hdr.PageMapOffset = dataOffset + dataSize
	hdr.PageMapCompSize = uint32(len(comp))
	hdr.PageMapDecompSize = uint32(len(stream))
	hdr.PageMapCRC = checksum.CRC32(0, stream)
	hdr.DataOffset = dataOffset
	hdr.DataSize = dataSize
	hdr.FileSize = hdr.PageMapOffset + uint64(len(comp))
	hdr.PageCount = uint32(len(pm.Pages))
	hdr.SectionCount = uint32(len(pm.Sections))
	hdr.PageChecksumSeed = pageChecksumSeed
	hdr.PreviewOffset = uint32(firstPageOffset(pm, fileheader.SectionPreview))
	hdr.SummaryInfoOffset = uint32(firstPageOffset(pm, fileheader.SectionSummaryInfo))

	out, err := hdr.Encode(nil)
	if err != nil {
		return nil, err
	}
	out = appendPages(out, pages)
	return append(out, comp...), nil
}

func assembleInterleaved(ctx context.Context, target version.Tag, sections map[fileheader.SectionKind][]byte, opts Options) ([]byte, error) {
	pages, err := compressJobs(ctx, splitJobs(sections), lz77.B, interleave.Header.Factor, opts.Workers)
	if err != nil {
		return nil, err
	}
	hdr := &fileheader.Interleaved{Preamble: fileheader.Preamble{Version: target, Codepage: defaultCodepage}}
	dataOffset := uint64(hdr.HeaderSize())
	pm, dataSize := layoutPages(pages, sections, dataOffset)

	stream := pm.Encode()
	comp := lz77.B.Compress(stream)

	hdr.PageMapOffset = dataOffset + dataSize
	hdr.PageMapCompSize = uint32(len(comp))
	hdr.PageMapDecompSize = uint32(len(stream))
	hdr.PageMapCompCRC = checksum.CRC64(0, comp)
	hdr.PageMapDecompCRC = checksum.CRC64(0, stream)
	hdr.PageChecksumSeed = pageChecksumSeed
	hdr.PageCount = uint32(len(pm.Pages))
	hdr.SectionCount = uint32(len(pm.Sections))
	hdr.FileSize = hdr.PageMapOffset + uint64(len(comp))
	hdr.PageMapID = uint64(len(pm.Pages)) + 1
	hdr.SectionMapID = uint64(len(pm.Pages)) + 2
	hdr.PreviewOffset = uint32(firstPageOffset(pm, fileheader.SectionPreview))

	out, err := hdr.Encode(nil)
	if err != nil {
		return nil, err
	}
	out = appendPages(out, pages)
	return append(out, comp...), nil
}

// pageJob is one page to compress: a payload chunk of a section.
type pageJob struct {
	kind    fileheader.SectionKind
	pageNo  uint32
	payload []byte
}

// storedPage is one compressed page ready for layout.
type storedPage struct {
	job      pageJob
	stored   []byte
	checksum uint32
	factor   uint8
}

// splitJobs chunks every present section, in on-disk order, into page
// payloads of at most pageSize bytes. An empty section yields no jobs
// but still gets a descriptor from layoutPages.
func splitJobs(sections map[fileheader.SectionKind][]byte) []pageJob {
	var jobs []pageJob
	for _, kind := range sectionOrder {
		data := sections[kind]
		for no := uint32(0); len(data) > 0; no++ {
			n := len(data)
			if n > pageSize {
				n = pageSize
			}
			jobs = append(jobs, pageJob{kind: kind, pageNo: no, payload: data[:n]})
			data = data[n:]
		}
	}
	return jobs
}

// compressJobs turns page payloads into stored page images. A factor
// above one additionally interleaves each compressed stream, the form
// the interleaved family keeps its pages in.
func compressJobs(ctx context.Context, jobs []pageJob, codec lz77.Codec, factor, workers int) ([]storedPage, error) {
	out := make([]storedPage, len(jobs))
	one := func(i int) error {
		stored := codec.Compress(jobs[i].payload)
		f := uint8(1)
		if factor > 1 {
			var err error
			stored, err = interleave.ForPayload(factor, len(stored)).Interleave(stored)
			if err != nil {
				return fmt.Errorf("%s page %d: %w", jobs[i].kind.Name(), jobs[i].pageNo, err)
			}
			f = uint8(factor)
		}
		out[i] = storedPage{
			job:      jobs[i],
			stored:   stored,
			checksum: checksum.CRC32(pageChecksumSeed, stored),
			factor:   f,
		}
		return nil
	}

	if workers > 1 {
		g, ctx := errgroup.WithContext(ctx)
		g.SetLimit(workers)
		for i := range jobs {
			i := i
			g.Go(func() error {
				if err := ctx.Err(); err != nil {
					return err
				}
				return one(i)
			})
		}
		if err := g.Wait(); err != nil {
			return nil, err
		}
		return out, nil
	}
	for i := range jobs {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if err := one(i); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// layoutPages assigns file offsets from dataOffset onward, each page
// directly after the previous one, and builds the page map. The
// second result is the data region size.
func layoutPages(pages []storedPage, sections map[fileheader.SectionKind][]byte, dataOffset uint64) (*fileheader.PageMap, uint64) {
	pm := &fileheader.PageMap{}
	for _, kind := range sectionOrder {
		data, ok := sections[kind]
		if !ok {
			continue
		}
		desc := fileheader.SectionDesc{ID: kind, Name: kind.Name(), DecompSize: uint64(len(data))}
		for _, p := range pages {
			if p.job.kind == kind {
				desc.PageCount++
			}
		}
		pm.Sections = append(pm.Sections, desc)
	}
	off := dataOffset
	for _, p := range pages {
		pm.Pages = append(pm.Pages, fileheader.PageEntry{
			Section:          p.job.kind,
			PageNo:           p.job.pageNo,
			FileOffset:       off,
			CompSize:         uint32(len(p.stored)),
			DecompSize:       uint32(len(p.job.payload)),
			Checksum:         p.checksum,
			InterleaveFactor: p.factor,
		})
		off += uint64(len(p.stored))
	}
	return pm, off - dataOffset
}

// firstPageOffset reports where a section's stored bytes begin, for
// the advisory preamble offset fields. Zero when the section is
// absent.
func firstPageOffset(pm *fileheader.PageMap, kind fileheader.SectionKind) uint64 {
	for _, p := range pm.Pages {
		if p.Section == kind && p.PageNo == 0 {
			return p.FileOffset
		}
	}
	return 0
}

func appendPages(dst []byte, pages []storedPage) []byte {
	for _, p := range pages {
		dst = append(dst, p.stored...)
	}
	return dst
}
