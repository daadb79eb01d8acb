// Package interleave implements the redundancy interleaver the
// interleaved family applies to its file header block. A payload is
// split into factor sub-streams of blockSize bytes each and emitted
// round-robin, one byte from each sub-stream in turn, so localized
// media damage spreads across the sub-streams instead of wiping out a
// contiguous run.
//
// Deinterleaving is defined on truncated blocks: bytes beyond the end
// of the encoded block read as zero. That keeps short reads decodable;
// whether the zeros are believable is for the caller's checksum to say.
package interleave

import "fmt"

// Layout fixes the interleaving parameters. The file header block of
// the interleaved family uses Header; page payloads that declare an
// interleave factor in the page map derive their own layout.
type Layout struct {
	Factor    int
	BlockSize int
}

// Header is the layout of the interleaved family's file header block.
var Header = Layout{Factor: 3, BlockSize: 239}

// Size returns the encoded block size in bytes.
func (l Layout) Size() int { return l.Factor * l.BlockSize }

// ForPayload derives a layout for a payload of n bytes interleaved with
// the given factor, as page entries declare it.
func ForPayload(factor, n int) Layout {
	return Layout{Factor: factor, BlockSize: (n + factor - 1) / factor}
}

// Interleave encodes payload into a block of Size() bytes. Payloads
// shorter than the capacity are zero-padded first; longer payloads do
// not fit and are an error.
func (l Layout) Interleave(payload []byte) ([]byte, error) {
	if l.Factor < 1 || l.BlockSize < 1 {
		return nil, fmt.Errorf("interleave: invalid layout %dx%d", l.Factor, l.BlockSize)
	}
	if len(payload) > l.Size() {
		return nil, fmt.Errorf("interleave: payload of %d bytes exceeds %dx%d block", len(payload), l.Factor, l.BlockSize)
	}
	out := make([]byte, l.Size())
	for i, b := range payload {
		sub, off := i/l.BlockSize, i%l.BlockSize
		out[off*l.Factor+sub] = b
	}
	return out, nil
}

// Deinterleave decodes a block back into the Size()-byte payload
// (including any padding the encoder added). Missing trailing bytes of
// a truncated block are treated as zero.
func (l Layout) Deinterleave(block []byte) []byte {
	if l.Factor < 1 || l.BlockSize < 1 {
		return nil
	}
	out := make([]byte, l.Size())
	for i := range out {
		sub, off := i/l.BlockSize, i%l.BlockSize
		src := off*l.Factor + sub
		if src < len(block) {
			out[i] = block[src]
		}
	}
	return out
}
