package bitcode

import (
	"fmt"
	"math"
)

// Writer builds a bit-packed buffer. Errors stick: the first invalid
// value poisons the writer and Bytes reports it.
type Writer struct {
	buf  []byte
	free int // unused low bits in the last byte, 0..7
	err  error
}

func NewWriter() *Writer {
	return &Writer{}
}

// BitLen returns the number of bits written so far.
func (w *Writer) BitLen() int { return len(w.buf)*8 - w.free }

// Err returns the first invalid value the writer was handed, if any.
func (w *Writer) Err() error { return w.err }

// Bytes returns the buffer with the final partial byte zero-padded.
func (w *Writer) Bytes() ([]byte, error) {
	if w.err != nil {
		return nil, w.err
	}
	return w.buf, nil
}

func (w *Writer) fail(format string, args ...any) {
	if w.err == nil {
		w.err = fmt.Errorf("%w: "+format, append([]any{ErrInvalid}, args...)...)
	}
}

func (w *Writer) WriteBit(b uint8) {
	if w.free == 0 {
		w.buf = append(w.buf, 0)
		w.free = 8
	}
	if b&1 == 1 {
		w.buf[len(w.buf)-1] |= 1 << (w.free - 1)
	}
	w.free--
}

func (w *Writer) WriteBool(b bool) {
	if b {
		w.WriteBit(1)
	} else {
		w.WriteBit(0)
	}
}

func (w *Writer) WriteBits2(v uint8) {
	w.WriteBit(v >> 1)
	w.WriteBit(v)
}

func (w *Writer) writeByte(b byte) {
	if w.free == 0 {
		w.buf = append(w.buf, b)
		return
	}
	w.buf[len(w.buf)-1] |= b >> (8 - w.free)
	w.buf = append(w.buf, b<<w.free)
}

// Align pads with zero bits to the next byte boundary.
func (w *Writer) Align() { w.free = 0 }

func (w *Writer) WriteBytes(p []byte) {
	for _, b := range p {
		w.writeByte(b)
	}
}

func (w *Writer) WriteRawChar(b byte) { w.writeByte(b) }

func (w *Writer) WriteRawShort(v uint16) {
	w.writeByte(byte(v))
	w.writeByte(byte(v >> 8))
}

func (w *Writer) WriteRawLong(v uint32) {
	for i := 0; i < 4; i++ {
		w.writeByte(byte(v >> (8 * i)))
	}
}

func (w *Writer) WriteRawLongLong(v uint64) {
	for i := 0; i < 8; i++ {
		w.writeByte(byte(v >> (8 * i)))
	}
}

func (w *Writer) WriteRawDouble(v float64) {
	w.WriteRawLongLong(math.Float64bits(v))
}

// WriteBitShort writes v in the most compact BS form.
func (w *Writer) WriteBitShort(v int) {
	switch {
	case v == 0:
		w.WriteBits2(2)
	case v == 256:
		w.WriteBits2(3)
	case v > 0 && v <= 255:
		w.WriteBits2(1)
		w.writeByte(byte(v))
	case v >= math.MinInt16 && v <= math.MaxInt16:
		w.WriteBits2(0)
		w.WriteRawShort(uint16(int16(v)))
	default:
		w.fail("bit-short value %d out of range", v)
	}
}

// WriteBitLong writes v in the most compact BL form.
func (w *Writer) WriteBitLong(v int) {
	switch {
	case v == 0:
		w.WriteBits2(2)
	case v > 0 && v <= 255:
		w.WriteBits2(1)
		w.writeByte(byte(v))
	case v >= math.MinInt32 && v <= math.MaxInt32:
		w.WriteBits2(0)
		w.WriteRawLong(uint32(int32(v)))
	default:
		w.fail("bit-long value %d out of range", v)
	}
}

// WriteBitDouble writes v in the most compact BD form. Negative zero
// keeps its sign by taking the full-width form.
func (w *Writer) WriteBitDouble(v float64) {
	switch {
	case math.Float64bits(v) == 0:
		w.WriteBits2(2)
	case v == 1.0:
		w.WriteBits2(1)
	default:
		w.WriteBits2(0)
		w.WriteRawDouble(v)
	}
}

func (w *Writer) WriteText(s string) {
	if len(s) > math.MaxInt16 {
		w.fail("text of %d bytes exceeds the length field", len(s))
		return
	}
	w.WriteBitShort(len(s))
	w.WriteBytes([]byte(s))
}

func (w *Writer) WriteModularChar(v uint64) {
	for {
		b := byte(v & 0x7F)
		v >>= 7
		if v != 0 {
			w.writeByte(b | 0x80)
			continue
		}
		w.writeByte(b)
		return
	}
}

func (w *Writer) WriteSignedModularChar(v int64) {
	neg := v < 0
	u := uint64(v)
	if neg {
		u = uint64(-v)
	}
	for {
		b := byte(u & 0x7F)
		u >>= 7
		if u != 0 {
			w.writeByte(b | 0x80)
			continue
		}
		// Final group holds only 6 value bits plus the sign bit.
		if b&0x40 != 0 {
			w.writeByte(b | 0x80)
			b = 0
		}
		if neg {
			b |= 0x40
		}
		w.writeByte(b)
		return
	}
}

func (w *Writer) WriteModularShort(v uint64) {
	for {
		g := uint16(v & 0x7FFF)
		v >>= 15
		if v != 0 {
			w.WriteRawShort(g | 0x8000)
			continue
		}
		w.WriteRawShort(g)
		return
	}
}
