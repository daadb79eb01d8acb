package reader

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/draftware/dwgkit/bitcode"
	"github.com/draftware/dwgkit/checksum"
	"github.com/draftware/dwgkit/fileheader"
	"github.com/draftware/dwgkit/interleave"
	"github.com/draftware/dwgkit/lz77"
	"github.com/draftware/dwgkit/notify"
	"github.com/draftware/dwgkit/version"
)

// container hides the family differences behind one section-loading
// surface: legacy files slice sections straight out of the image,
// paged and interleaved files reassemble them from verified pages.
type container struct {
	data    []byte
	strict  bool
	log     *notify.Log
	limit   int64
	workers int

	legacy *fileheader.Legacy

	pages *fileheader.PageMap
	codec lz77.Codec
	seed  uint32
}

func openContainer(data []byte, tag version.Tag, opts Options, log *notify.Log) (*container, error) {
	c := &container{
		data:    data,
		strict:  !opts.LenientChecksums,
		log:     log,
		limit:   opts.maxSectionSize(),
		workers: opts.Workers,
	}
	switch tag.Family() {
	case version.FamilyLegacy:
		hdr, err := fileheader.DecodeLegacy(data)
		if err != nil {
			return nil, err
		}
		c.legacy = hdr
	case version.FamilyPaged:
		hdr, err := fileheader.DecodePaged(data, c.strict, log)
		if err != nil {
			return nil, err
		}
		stream, err := c.pageMapStream(hdr.PageMapOffset, hdr.PageMapCompSize, hdr.PageMapDecompSize, lz77.A)
		if err != nil {
			return nil, err
		}
		if err := checksum.Verify32(0, stream, hdr.PageMapCRC); err != nil {
			if c.strict {
				return nil, fmt.Errorf("page map: %w", err)
			}
			c.warn(notify.Event{
				Code:    notify.CodeChecksumMismatch,
				Message: "page map stream checksum mismatch",
				Section: "PageMap",
			})
		}
		pm, err := fileheader.DecodePageMap(stream)
		if err != nil {
			return nil, err
		}
		if err := pm.CheckTiling(hdr.DataOffset, hdr.DataSize); err != nil {
			return nil, err
		}
		c.checkCounts(hdr.SectionCount, hdr.PageCount, pm)
		c.pages, c.codec, c.seed = pm, lz77.A, hdr.PageChecksumSeed
	case version.FamilyInterleaved:
		hdr, err := fileheader.DecodeInterleaved(data, c.strict, log)
		if err != nil {
			return nil, err
		}
		comp, err := c.region(hdr.PageMapOffset, uint64(hdr.PageMapCompSize))
		if err != nil {
			return nil, fmt.Errorf("page map: %w", err)
		}
		if err := checksum.Verify64(0, comp, hdr.PageMapCompCRC); err != nil {
			if c.strict {
				return nil, fmt.Errorf("page map: %w", err)
			}
			c.warn(notify.Event{
				Code:    notify.CodeChecksumMismatch,
				Message: "page map stored-bytes checksum mismatch",
				Section: "PageMap",
			})
		}
		if int64(hdr.PageMapDecompSize) > c.limit {
			return nil, fmt.Errorf("page map of %d bytes: %w", hdr.PageMapDecompSize, ErrLimitExceeded)
		}
		stream, err := lz77.B.Decompress(comp, int(hdr.PageMapDecompSize))
		if err != nil {
			return nil, fmt.Errorf("page map: %w", err)
		}
		if err := checksum.Verify64(0, stream, hdr.PageMapDecompCRC); err != nil {
			if c.strict {
				return nil, fmt.Errorf("page map: %w", err)
			}
			c.warn(notify.Event{
				Code:    notify.CodeChecksumMismatch,
				Message: "page map stream checksum mismatch",
				Section: "PageMap",
			})
		}
		pm, err := fileheader.DecodePageMap(stream)
		if err != nil {
			return nil, err
		}
		// The interleaved header records no data region bounds, so the
		// tiling check runs against the span the pages themselves claim.
		if len(pm.Pages) > 0 {
			lo := pm.Pages[0].FileOffset
			var total uint64
			for _, p := range pm.Pages {
				if p.FileOffset < lo {
					lo = p.FileOffset
				}
				total += uint64(p.CompSize)
			}
			if err := pm.CheckTiling(lo, total); err != nil {
				return nil, err
			}
		}
		c.checkCounts(hdr.SectionCount, hdr.PageCount, pm)
		c.pages, c.codec, c.seed = pm, lz77.B, uint32(hdr.PageChecksumSeed)
	default:
		return nil, fmt.Errorf("%w: %s", version.ErrUnsupported, tag)
	}
	return c, nil
}

func (c *container) warn(e notify.Event) {
	if c.log != nil {
		e.Severity = notify.SeverityWarning
		c.log.Add(e)
	}
}

// region bounds-checks a [off, off+size) slice of the file image.
func (c *container) region(off, size uint64) ([]byte, error) {
	end := off + size
	if end < off || end > uint64(len(c.data)) {
		return nil, fmt.Errorf("region [%#x, %#x) outside the %d byte file: %w", off, end, len(c.data), bitcode.ErrTruncated)
	}
	return c.data[off:end], nil
}

func (c *container) pageMapStream(off uint64, compSize, decompSize uint32, codec lz77.Codec) ([]byte, error) {
	comp, err := c.region(off, uint64(compSize))
	if err != nil {
		return nil, fmt.Errorf("page map: %w", err)
	}
	if int64(decompSize) > c.limit {
		return nil, fmt.Errorf("page map of %d bytes: %w", decompSize, ErrLimitExceeded)
	}
	stream, err := codec.Decompress(comp, int(decompSize))
	if err != nil {
		return nil, fmt.Errorf("page map: %w", err)
	}
	return stream, nil
}

func (c *container) checkCounts(sections, pages uint32, pm *fileheader.PageMap) {
	if int(sections) != len(pm.Sections) || int(pages) != len(pm.Pages) {
		c.warn(notify.Event{
			Code: notify.CodeMalformedSection,
			Message: fmt.Sprintf("file header counts %d sections and %d pages, page map holds %d and %d",
				sections, pages, len(pm.Sections), len(pm.Pages)),
			Section: "PageMap",
		})
	}
}

// section returns the decompressed stream of kind, or nil when the
// file simply does not store that section.
func (c *container) section(ctx context.Context, kind fileheader.SectionKind) ([]byte, error) {
	if c.legacy != nil {
		loc, ok := c.legacy.Locator(kind)
		if !ok {
			return nil, nil
		}
		if int64(loc.Size) > c.limit {
			return nil, fmt.Errorf("%s section of %d bytes: %w", kind.Name(), loc.Size, ErrLimitExceeded)
		}
		return c.legacy.Section(c.data, kind)
	}

	desc, ok := c.pages.Section(kind)
	if !ok {
		return nil, nil
	}
	if desc.DecompSize > uint64(c.limit) {
		return nil, fmt.Errorf("%s section of %d bytes: %w", kind.Name(), desc.DecompSize, ErrLimitExceeded)
	}
	entries := c.pages.SectionPages(kind)
	parts := make([][]byte, len(entries))

	if c.workers > 1 {
		g, ctx := errgroup.WithContext(ctx)
		g.SetLimit(c.workers)
		for i, p := range entries {
			i, p := i, p
			g.Go(func() error {
				if err := ctx.Err(); err != nil {
					return err
				}
				part, err := c.page(kind, p)
				if err != nil {
					return err
				}
				parts[i] = part
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return nil, err
		}
	} else {
		for i, p := range entries {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			part, err := c.page(kind, p)
			if err != nil {
				return nil, err
			}
			parts[i] = part
		}
	}

	out := make([]byte, 0, desc.DecompSize)
	for _, part := range parts {
		out = append(out, part...)
	}
	if uint64(len(out)) != desc.DecompSize {
		return nil, fmt.Errorf("%w: %s pages decompress to %d bytes, section records %d",
			fileheader.ErrMalformed, kind.Name(), len(out), desc.DecompSize)
	}
	return out, nil
}

// page verifies and decompresses one stored page. In lenient mode a
// page that fails its checksum or does not decompress degrades to
// zeros of the recorded size, keeping section offsets stable.
func (c *container) page(kind fileheader.SectionKind, p fileheader.PageEntry) ([]byte, error) {
	if int64(p.DecompSize) > c.limit {
		return nil, fmt.Errorf("%s page %d of %d bytes: %w", kind.Name(), p.PageNo, p.DecompSize, ErrLimitExceeded)
	}
	stored, err := c.region(p.FileOffset, uint64(p.CompSize))
	if err != nil {
		return nil, fmt.Errorf("%s page %d: %w", kind.Name(), p.PageNo, err)
	}
	if err := checksum.Verify32(c.seed, stored, p.Checksum); err != nil {
		if c.strict {
			return nil, fmt.Errorf("%s page %d: %w", kind.Name(), p.PageNo, err)
		}
		c.warn(notify.Event{
			Code:    notify.CodeChecksumMismatch,
			Message: fmt.Sprintf("page %d checksum mismatch", p.PageNo),
			Section: kind.Name(),
		})
	}

	comp := stored
	if p.InterleaveFactor > 1 {
		f := int(p.InterleaveFactor)
		if int(p.CompSize)%f != 0 {
			return nil, fmt.Errorf("%w: %s page %d: %d stored bytes not divisible by factor %d",
				fileheader.ErrMalformed, kind.Name(), p.PageNo, p.CompSize, f)
		}
		comp = interleave.Layout{Factor: f, BlockSize: int(p.CompSize) / f}.Deinterleave(stored)
	}

	out, err := c.codec.Decompress(comp, int(p.DecompSize))
	if err != nil {
		if c.strict {
			return nil, fmt.Errorf("%s page %d: %w", kind.Name(), p.PageNo, err)
		}
		c.warn(notify.Event{
			Code:    notify.CodeMalformedSection,
			Message: fmt.Sprintf("page %d does not decompress (%v), zero-filled", p.PageNo, err),
			Section: kind.Name(),
		})
		return make([]byte, p.DecompSize), nil
	}
	return out, nil
}
