// Package bitcode reads and writes the bit-packed field encodings the
// drawing format uses inside object records and header sections. Values
// are not byte aligned: a field may start mid-byte and cross byte
// boundaries, so the cursor tracks a bit position (MSB first within a
// byte).
//
// Field kinds follow the format's single-letter vocabulary:
//
//	B    one bit
//	BB   two bits
//	BS   bit-short: 2-bit prefix, then 00=16-bit LE, 01=8-bit, 10=0, 11=256
//	BL   bit-long:  2-bit prefix, then 00=32-bit LE, 01=8-bit, 10=0
//	BD   bit-double: 2-bit prefix, then 00=IEEE 754 LE, 01=1.0, 10=0.0
//	RC/RS/RL/RLL/RD  raw 8/16/32/64-bit LE integers and raw double
//	TV   text: BS byte length, then raw bytes
//	MC   modular char: 7-bit groups, high bit continues, LSB group first
//	MS   modular short: 15-bit groups in 16-bit LE words, high bit continues
//	H    handle reference: code/counter byte, then counter bytes big-endian
package bitcode

import (
	"errors"
	"fmt"
	"math"
)

// ErrTruncated reports a read past the end of the stream. Higher
// layers wrap it for any input that ends inside a structure, so
// errors.Is(err, ErrTruncated) identifies truncation wherever it is
// detected.
var ErrTruncated = errors.New("truncated stream")

// ErrInvalid reports a bit pattern the format does not define.
var ErrInvalid = errors.New("invalid bit code")

// Reader decodes bit-packed fields from an in-memory buffer.
type Reader struct {
	data []byte
	pos  int // absolute bit position
}

func NewReader(data []byte) *Reader {
	return &Reader{data: data}
}

// BitPos returns the cursor as an absolute bit offset from the start.
func (r *Reader) BitPos() int { return r.pos }

// Remaining returns the number of unread bits.
func (r *Reader) Remaining() int { return len(r.data)*8 - r.pos }

// Align advances the cursor to the next byte boundary.
func (r *Reader) Align() {
	if r.pos%8 != 0 {
		r.pos += 8 - r.pos%8
	}
}

func (r *Reader) need(bits int) error {
	if r.Remaining() < bits {
		return fmt.Errorf("%w: need %d bits at bit %d", ErrTruncated, bits, r.pos)
	}
	return nil
}

// Bit reads a single bit.
func (r *Reader) Bit() (uint8, error) {
	if err := r.need(1); err != nil {
		return 0, err
	}
	b := r.data[r.pos/8] >> (7 - r.pos%8) & 1
	r.pos++
	return b, nil
}

// Bool reads a single bit as a flag.
func (r *Reader) Bool() (bool, error) {
	b, err := r.Bit()
	return b == 1, err
}

// Bits2 reads a two-bit prefix.
func (r *Reader) Bits2() (uint8, error) {
	if err := r.need(2); err != nil {
		return 0, err
	}
	hi, _ := r.Bit()
	lo, _ := r.Bit()
	return hi<<1 | lo, nil
}

// byte reads 8 bits regardless of alignment.
func (r *Reader) byte() (byte, error) {
	if err := r.need(8); err != nil {
		return 0, err
	}
	i, off := r.pos/8, r.pos%8
	b := r.data[i] << off
	if off != 0 {
		b |= r.data[i+1] >> (8 - off)
	}
	r.pos += 8
	return b, nil
}

// Bytes reads n raw bytes, shifting when the cursor is mid-byte.
func (r *Reader) Bytes(n int) ([]byte, error) {
	if n < 0 {
		return nil, fmt.Errorf("%w: negative byte count %d", ErrInvalid, n)
	}
	if err := r.need(n * 8); err != nil {
		return nil, err
	}
	out := make([]byte, n)
	for i := range out {
		out[i], _ = r.byte()
	}
	return out, nil
}

// RawChar reads an 8-bit value.
func (r *Reader) RawChar() (byte, error) { return r.byte() }

// RawShort reads a 16-bit little-endian value.
func (r *Reader) RawShort() (uint16, error) {
	if err := r.need(16); err != nil {
		return 0, err
	}
	lo, _ := r.byte()
	hi, _ := r.byte()
	return uint16(lo) | uint16(hi)<<8, nil
}

// RawLong reads a 32-bit little-endian value.
func (r *Reader) RawLong() (uint32, error) {
	if err := r.need(32); err != nil {
		return 0, err
	}
	var v uint32
	for i := 0; i < 4; i++ {
		b, _ := r.byte()
		v |= uint32(b) << (8 * i)
	}
	return v, nil
}

// RawLongLong reads a 64-bit little-endian value.
func (r *Reader) RawLongLong() (uint64, error) {
	if err := r.need(64); err != nil {
		return 0, err
	}
	var v uint64
	for i := 0; i < 8; i++ {
		b, _ := r.byte()
		v |= uint64(b) << (8 * i)
	}
	return v, nil
}

// RawDouble reads an 8-byte IEEE 754 little-endian value.
func (r *Reader) RawDouble() (float64, error) {
	v, err := r.RawLongLong()
	if err != nil {
		return 0, err
	}
	return math.Float64frombits(v), nil
}

// BitShort reads a BS field.
func (r *Reader) BitShort() (int, error) {
	prefix, err := r.Bits2()
	if err != nil {
		return 0, err
	}
	switch prefix {
	case 0:
		v, err := r.RawShort()
		if err != nil {
			return 0, err
		}
		return int(int16(v)), nil
	case 1:
		b, err := r.byte()
		if err != nil {
			return 0, err
		}
		return int(b), nil
	case 2:
		return 0, nil
	default:
		return 256, nil
	}
}

// BitLong reads a BL field.
func (r *Reader) BitLong() (int, error) {
	prefix, err := r.Bits2()
	if err != nil {
		return 0, err
	}
	switch prefix {
	case 0:
		v, err := r.RawLong()
		if err != nil {
			return 0, err
		}
		return int(int32(v)), nil
	case 1:
		b, err := r.byte()
		if err != nil {
			return 0, err
		}
		return int(b), nil
	case 2:
		return 0, nil
	default:
		return 0, fmt.Errorf("%w: bit-long prefix 11 at bit %d", ErrInvalid, r.pos-2)
	}
}

// BitDouble reads a BD field.
func (r *Reader) BitDouble() (float64, error) {
	prefix, err := r.Bits2()
	if err != nil {
		return 0, err
	}
	switch prefix {
	case 0:
		return r.RawDouble()
	case 1:
		return 1.0, nil
	case 2:
		return 0.0, nil
	default:
		return 0, fmt.Errorf("%w: bit-double prefix 11 at bit %d", ErrInvalid, r.pos-2)
	}
}

// Text reads a TV field. The stored length counts bytes, not runes.
func (r *Reader) Text() (string, error) {
	n, err := r.BitShort()
	if err != nil {
		return "", err
	}
	if n < 0 {
		return "", fmt.Errorf("%w: negative text length %d", ErrInvalid, n)
	}
	b, err := r.Bytes(n)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// ModularChar reads an unsigned MC value.
func (r *Reader) ModularChar() (uint64, error) {
	var v uint64
	for shift := 0; ; shift += 7 {
		if shift > 63 {
			return 0, fmt.Errorf("%w: modular char longer than 64 bits", ErrInvalid)
		}
		b, err := r.byte()
		if err != nil {
			return 0, err
		}
		v |= uint64(b&0x7F) << shift
		if b&0x80 == 0 {
			return v, nil
		}
	}
}

// SignedModularChar reads a signed MC value. The 0x40 bit of the final
// group carries the sign.
func (r *Reader) SignedModularChar() (int64, error) {
	var v uint64
	for shift := 0; ; shift += 7 {
		if shift > 63 {
			return 0, fmt.Errorf("%w: modular char longer than 64 bits", ErrInvalid)
		}
		b, err := r.byte()
		if err != nil {
			return 0, err
		}
		if b&0x80 != 0 {
			v |= uint64(b&0x7F) << shift
			continue
		}
		v |= uint64(b&0x3F) << shift
		if b&0x40 != 0 {
			return -int64(v), nil
		}
		return int64(v), nil
	}
}

// ModularShort reads an MS value.
func (r *Reader) ModularShort() (uint64, error) {
	var v uint64
	for shift := 0; ; shift += 15 {
		if shift > 60 {
			return 0, fmt.Errorf("%w: modular short longer than 64 bits", ErrInvalid)
		}
		w, err := r.RawShort()
		if err != nil {
			return 0, err
		}
		v |= uint64(w&0x7FFF) << shift
		if w&0x8000 == 0 {
			return v, nil
		}
	}
}
