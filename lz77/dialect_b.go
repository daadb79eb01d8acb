package lz77

import "fmt"

// Dialect B grammar. A flat sequence of control items:
//
//	0x00        end of stream
//	0x01..0x7F  literal run of that many bytes (longer runs chain items)
//	0x80..0xFF  match: lenCode = c&0x7F (0 is corrupt);
//	            length = lenCode+2 for lenCode <= 0x7E;
//	            lenCode 0x7F escapes to length 129 + extension, where
//	            each 0xFF extension byte adds 255 and continues and the
//	            first other byte adds its value and stops.
//
// A match's offset follows its length: 2 bytes little-endian; the value
// 0xFFFF escapes to a 3-byte little-endian offset. Distance = offset+1.
type dialectB struct{}

func (dialectB) Name() string { return "lz77b" }

// bLenMax is the largest directly coded match length; bDistMax bounds
// the distances the encoder searches.
const (
	bEOS     = 0x00
	bLitMax  = 0x7F
	bLenMax  = 128
	bDistMax = 1 << 16
	bOffEsc  = 0xFFFF
	bLenEsc  = 0x7F
	bEscBase = 129
)

func (dialectB) Decompress(src []byte, decompressedSize int) ([]byte, error) {
	if decompressedSize < 0 {
		return nil, fmt.Errorf("%w: negative size hint", ErrSizeMismatch)
	}
	dst := make([]byte, 0, decompressedSize)
	c := &byteCursor{src: src}
	for {
		ctl, err := c.next()
		if err != nil {
			return nil, err
		}
		if ctl == bEOS {
			if len(dst) != decompressedSize {
				return nil, fmt.Errorf("%w: stream ended at %d of %d bytes", ErrSizeMismatch, len(dst), decompressedSize)
			}
			return dst, nil
		}
		if ctl <= bLitMax {
			if dst, err = appendLiterals(dst, c, int(ctl), decompressedSize); err != nil {
				return nil, err
			}
			continue
		}

		lenCode := ctl & 0x7F
		if lenCode == 0 {
			return nil, fmt.Errorf("%w: match control 0x80", ErrCorrupt)
		}
		length := int(lenCode) + 2
		if lenCode == bLenEsc {
			length = bEscBase
			for {
				b, err := c.next()
				if err != nil {
					return nil, err
				}
				length += int(b)
				if b != 0xFF {
					break
				}
			}
		}

		lo, err := c.next()
		if err != nil {
			return nil, err
		}
		hi, err := c.next()
		if err != nil {
			return nil, err
		}
		stored := int(lo) | int(hi)<<8
		if stored == bOffEsc {
			var wide int
			for i := 0; i < 3; i++ {
				b, err := c.next()
				if err != nil {
					return nil, err
				}
				wide |= int(b) << (8 * i)
			}
			stored = wide
		}

		if dst, err = appendBackCopy(dst, stored+1, length, decompressedSize); err != nil {
			return nil, err
		}
	}
}

func (dialectB) Compress(src []byte) []byte {
	out := make([]byte, 0, len(src)/2+16)
	f := &finder{}
	litStart := 0

	flushLiterals := func(upTo int) {
		for litStart < upTo {
			n := upTo - litStart
			if n > bLitMax {
				n = bLitMax
			}
			out = append(out, byte(n))
			out = append(out, src[litStart:litStart+n]...)
			litStart += n
		}
	}

	i := 0
	for i < len(src) {
		dist, length := f.match(src, i, bDistMax-1)
		if length == 0 {
			i++
			continue
		}
		flushLiterals(i)
		if length <= bLenMax {
			out = append(out, 0x80|byte(length-2))
		} else {
			out = append(out, 0x80|bLenEsc)
			rem := length - bEscBase
			for rem >= 0xFF {
				out = append(out, 0xFF)
				rem -= 0xFF
			}
			out = append(out, byte(rem))
		}
		stored := dist - 1
		if stored < bOffEsc {
			out = append(out, byte(stored), byte(stored>>8))
		} else {
			out = append(out, 0xFF, 0xFF, byte(stored), byte(stored>>8), byte(stored>>16))
		}
		i += length
		litStart = i
	}
	flushLiterals(len(src))
	return append(out, bEOS)
}
