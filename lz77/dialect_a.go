package lz77

import "fmt"

// Dialect A grammar. The stream is a literal item (only when the first
// byte's high nibble is 0), then match opcodes until the 0x11
// terminator. Every match carries a 2-bit trailing literal count; after
// those literals the next byte is the next match opcode, the
// terminator, or an extended literal item (high nibble 0).
//
//	0x11        end of stream
//	0x10        length 9+longLen, far two-byte offset
//	0x12..0x1F  length (op&0x0F)+2, far two-byte offset
//	0x20        length 0x21+longLen, near two-byte offset
//	0x21..0x3F  length op-0x1E, near two-byte offset
//	0x40..0xFF  length (op>>4)-1, distance-1 = b2<<2 | (op&0x0C)>>2,
//	            trailing count = op&0x03
//
// Literal item: byte 0x01..0x0F is the run length; 0x00 escapes to
// 15 + 255 per additional zero byte + final byte. longLen: a non-zero
// byte is the value; 0x00 escapes to 255 per additional zero byte +
// final byte. Two-byte offset b1,b2: stored = b1>>2 | b2<<6, trailing
// count = b1&0x03; near distance = stored+1, far distance =
// stored+0x4000.
type dialectA struct{}

func (dialectA) Name() string { return "lz77a" }

const (
	aEOS       = 0x11
	aNearLimit = 0x4000 // largest distance the near forms reach
	aTinyDist  = 1 << 10
	aTinyLen   = 14
	aShortLen  = 33 // largest length of the 0x21..0x3F form
)

func readLitLengthA(c *byteCursor, first byte) (int, error) {
	if first != 0 {
		return int(first), nil
	}
	n := 15
	for {
		b, err := c.next()
		if err != nil {
			return 0, err
		}
		if b == 0 {
			n += 255
			continue
		}
		return n + int(b), nil
	}
}

func readLongLengthA(c *byteCursor) (int, error) {
	b, err := c.next()
	if err != nil {
		return 0, err
	}
	if b != 0 {
		return int(b), nil
	}
	n := 255
	for {
		b, err := c.next()
		if err != nil {
			return 0, err
		}
		if b == 0 {
			n += 255
			continue
		}
		return n + int(b), nil
	}
}

func readTwoByteOffsetA(c *byteCursor) (stored, trail int, err error) {
	b1, err := c.next()
	if err != nil {
		return 0, 0, err
	}
	b2, err := c.next()
	if err != nil {
		return 0, 0, err
	}
	return int(b1)>>2 | int(b2)<<6, int(b1 & 0x03), nil
}

func (dialectA) Decompress(src []byte, decompressedSize int) ([]byte, error) {
	if decompressedSize < 0 {
		return nil, fmt.Errorf("%w: negative size hint", ErrSizeMismatch)
	}
	dst := make([]byte, 0, decompressedSize)
	c := &byteCursor{src: src}

	op, err := c.next()
	if err != nil {
		return nil, err
	}
	if op&0xF0 == 0 {
		n, err := readLitLengthA(c, op)
		if err != nil {
			return nil, err
		}
		if dst, err = appendLiterals(dst, c, n, decompressedSize); err != nil {
			return nil, err
		}
		if op, err = c.next(); err != nil {
			return nil, err
		}
	}

	for {
		var length, dist, trail int
		switch {
		case op == aEOS:
			if len(dst) != decompressedSize {
				return nil, fmt.Errorf("%w: stream ended at %d of %d bytes", ErrSizeMismatch, len(dst), decompressedSize)
			}
			return dst, nil
		case op == 0x10:
			n, err := readLongLengthA(c)
			if err != nil {
				return nil, err
			}
			length = 9 + n
			stored, tr, err := readTwoByteOffsetA(c)
			if err != nil {
				return nil, err
			}
			dist, trail = stored+aNearLimit, tr
		case op >= 0x12 && op <= 0x1F:
			length = int(op&0x0F) + 2
			stored, tr, err := readTwoByteOffsetA(c)
			if err != nil {
				return nil, err
			}
			dist, trail = stored+aNearLimit, tr
		case op == 0x20:
			n, err := readLongLengthA(c)
			if err != nil {
				return nil, err
			}
			length = aShortLen + n
			stored, tr, err := readTwoByteOffsetA(c)
			if err != nil {
				return nil, err
			}
			dist, trail = stored+1, tr
		case op >= 0x21 && op <= 0x3F:
			length = int(op) - 0x1E
			stored, tr, err := readTwoByteOffsetA(c)
			if err != nil {
				return nil, err
			}
			dist, trail = stored+1, tr
		case op >= 0x40:
			length = int(op>>4) - 1
			b2, err := c.next()
			if err != nil {
				return nil, err
			}
			dist = (int(b2)<<2 | int(op&0x0C)>>2) + 1
			trail = int(op & 0x03)
		default:
			return nil, fmt.Errorf("%w: opcode %#02x in match position", ErrCorrupt, op)
		}

		if dst, err = appendBackCopy(dst, dist, length, decompressedSize); err != nil {
			return nil, err
		}
		if trail > 0 {
			if dst, err = appendLiterals(dst, c, trail, decompressedSize); err != nil {
				return nil, err
			}
		}
		if op, err = c.next(); err != nil {
			return nil, err
		}
		if op&0xF0 == 0 {
			n, err := readLitLengthA(c, op)
			if err != nil {
				return nil, err
			}
			if dst, err = appendLiterals(dst, c, n, decompressedSize); err != nil {
				return nil, err
			}
			if op, err = c.next(); err != nil {
				return nil, err
			}
		}
	}
}

// appendLitLengthA writes the literal-item length encoding for n >= 1.
func appendLitLengthA(out []byte, n int) []byte {
	if n <= 15 {
		return append(out, byte(n))
	}
	out = append(out, 0x00)
	n -= 15
	for n > 255 {
		out = append(out, 0x00)
		n -= 255
	}
	return append(out, byte(n))
}

// appendLongLengthA writes the longLen encoding for n >= 1.
func appendLongLengthA(out []byte, n int) []byte {
	if n <= 255 {
		return append(out, byte(n))
	}
	out = append(out, 0x00)
	n -= 255
	for n > 255 {
		out = append(out, 0x00)
		n -= 255
	}
	return append(out, byte(n))
}

func (dialectA) Compress(src []byte) []byte {
	out := make([]byte, 0, len(src)/2+16)
	f := &finder{}
	litStart := 0
	trailSlot := -1 // index in out holding the pending 2-bit trail count

	flushLiterals := func(upTo int) {
		n := upTo - litStart
		if n == 0 {
			trailSlot = -1
			return
		}
		if trailSlot >= 0 && n <= 3 {
			out[trailSlot] |= byte(n)
		} else {
			out = appendLitLengthA(out, n)
		}
		out = append(out, src[litStart:upTo]...)
		litStart = upTo
		trailSlot = -1
	}

	i := 0
	for i < len(src) {
		dist, length := f.match(src, i, aNearLimit)
		if length == 0 {
			i++
			continue
		}
		flushLiterals(i)
		stored := dist - 1
		switch {
		case dist <= aTinyDist && length <= aTinyLen:
			trailSlot = len(out)
			out = append(out, byte(length+1)<<4|byte(stored&0x03)<<2, byte(stored>>2))
		case length <= aShortLen:
			out = append(out, byte(length+0x1E))
			trailSlot = len(out)
			out = append(out, byte(stored&0x3F)<<2, byte(stored>>6))
		default:
			out = append(out, 0x20)
			out = appendLongLengthA(out, length-aShortLen)
			trailSlot = len(out)
			out = append(out, byte(stored&0x3F)<<2, byte(stored>>6))
		}
		i += length
		litStart = i
	}
	flushLiterals(len(src))
	return append(out, aEOS)
}
