// Package lz77 implements the drawing format's private LZ77 variant in
// its two mutually incompatible dialects: A, used by the paged family
// for section pages and map streams, and B, used by the interleaved
// family. Both decode an opcode stream of literal runs and
// back-references into an output buffer whose size is known in advance
// from the page map; producing more or fewer bytes than that hint is an
// error.
//
// The encoders emit a conservative subset of each grammar (near
// back-references only); the decoders accept the full grammar, so
// streams written by other producers still load.
package lz77

import (
	"errors"
	"fmt"
)

// ErrCorrupt reports an opcode stream the dialect grammar does not
// allow, including streams that end mid-item.
var ErrCorrupt = errors.New("corrupt compressed stream")

// ErrSizeMismatch reports a stream that decoded cleanly but produced a
// different number of bytes than the recorded decompressed size.
var ErrSizeMismatch = errors.New("decompressed size mismatch")

// Codec is one dialect of the compressor/decompressor pair.
type Codec interface {
	Name() string
	Compress(src []byte) []byte
	Decompress(src []byte, decompressedSize int) ([]byte, error)
}

// A is the paged-family dialect.
var A Codec = dialectA{}

// B is the interleaved-family dialect.
var B Codec = dialectB{}

const (
	minMatch  = 3
	hashBits  = 14
	hashShift = 32 - hashBits
)

// finder is a single-candidate greedy matcher over 3-byte prefixes.
// Both encoders share it; only the opcode packing differs per dialect.
type finder struct {
	table [1 << hashBits]int32 // position+1 of the last occurrence
}

func hash3(src []byte, i int) uint32 {
	u := uint32(src[i]) | uint32(src[i+1])<<8 | uint32(src[i+2])<<16
	return (u * 506832829) >> hashShift
}

// match returns the best candidate back-reference starting at i, or a
// zero length when none qualifies within maxDist.
func (f *finder) match(src []byte, i, maxDist int) (dist, length int) {
	if i+minMatch > len(src) {
		return 0, 0
	}
	h := hash3(src, i)
	cand := int(f.table[h]) - 1
	f.table[h] = int32(i + 1)
	if cand < 0 || i-cand > maxDist {
		return 0, 0
	}
	for length < len(src)-i && src[cand+length] == src[i+length] {
		length++
	}
	if length < minMatch {
		return 0, 0
	}
	return i - cand, length
}

type byteCursor struct {
	src []byte
	pos int
}

func (c *byteCursor) next() (byte, error) {
	if c.pos >= len(c.src) {
		return 0, fmt.Errorf("%w: unexpected end of stream at byte %d", ErrCorrupt, c.pos)
	}
	b := c.src[c.pos]
	c.pos++
	return b, nil
}

// appendBackCopy appends length bytes found dist bytes back in dst.
// Overlapping copies replicate byte-by-byte, so dist 1 repeats the last
// byte.
func appendBackCopy(dst []byte, dist, length, sizeHint int) ([]byte, error) {
	if dist <= 0 || dist > len(dst) {
		return nil, fmt.Errorf("%w: back-reference distance %d exceeds %d written bytes", ErrCorrupt, dist, len(dst))
	}
	if len(dst)+length > sizeHint {
		return nil, fmt.Errorf("%w: output exceeds the recorded size %d", ErrSizeMismatch, sizeHint)
	}
	from := len(dst) - dist
	for i := 0; i < length; i++ {
		dst = append(dst, dst[from+i])
	}
	return dst, nil
}

func appendLiterals(dst []byte, c *byteCursor, n, sizeHint int) ([]byte, error) {
	if len(dst)+n > sizeHint {
		return nil, fmt.Errorf("%w: output exceeds the recorded size %d", ErrSizeMismatch, sizeHint)
	}
	if c.pos+n > len(c.src) {
		return nil, fmt.Errorf("%w: literal run of %d bytes ends past the stream", ErrCorrupt, n)
	}
	dst = append(dst, c.src[c.pos:c.pos+n]...)
	c.pos += n
	return dst, nil
}
