package bitcode

import (
	"bytes"
	"errors"
	"math"
	"testing"
)

// padBits shifts every round-trip below to a different bit phase so
// byte-crossing paths are covered at all eight alignments.
func roundTripAtPhase(t *testing.T, phase int, write func(*Writer), read func(*Reader) error) {
	t.Helper()
	w := NewWriter()
	for i := 0; i < phase; i++ {
		w.WriteBit(1)
	}
	write(w)
	data, err := w.Bytes()
	if err != nil {
		t.Fatalf("phase %d: writer error: %v", phase, err)
	}
	r := NewReader(data)
	for i := 0; i < phase; i++ {
		if _, err := r.Bit(); err != nil {
			t.Fatalf("phase %d: pad bit: %v", phase, err)
		}
	}
	if err := read(r); err != nil {
		t.Fatalf("phase %d: %v", phase, err)
	}
}

func TestBitShortRoundTrip(t *testing.T) {
	values := []int{0, 1, 255, 256, 257, 4096, 32767, -1, -32768}
	for phase := 0; phase < 8; phase++ {
		for _, v := range values {
			roundTripAtPhase(t, phase,
				func(w *Writer) { w.WriteBitShort(v) },
				func(r *Reader) error {
					got, err := r.BitShort()
					if err != nil {
						return err
					}
					if got != v {
						t.Fatalf("BitShort(%d) read back %d", v, got)
					}
					return nil
				})
		}
	}
}

func TestBitLongRoundTrip(t *testing.T) {
	values := []int{0, 1, 255, 256, 1 << 20, math.MaxInt32, -1, math.MinInt32}
	for phase := 0; phase < 8; phase++ {
		for _, v := range values {
			roundTripAtPhase(t, phase,
				func(w *Writer) { w.WriteBitLong(v) },
				func(r *Reader) error {
					got, err := r.BitLong()
					if err != nil {
						return err
					}
					if got != v {
						t.Fatalf("BitLong(%d) read back %d", v, got)
					}
					return nil
				})
		}
	}
}

func TestBitDoubleRoundTrip(t *testing.T) {
	values := []float64{0, 1, -1, 0.5, math.Pi, 1e300, math.SmallestNonzeroFloat64, math.Copysign(0, -1)}
	for phase := 0; phase < 8; phase++ {
		for _, v := range values {
			roundTripAtPhase(t, phase,
				func(w *Writer) { w.WriteBitDouble(v) },
				func(r *Reader) error {
					got, err := r.BitDouble()
					if err != nil {
						return err
					}
					if math.Float64bits(got) != math.Float64bits(v) {
						t.Fatalf("BitDouble(%g) read back %g", v, got)
					}
					return nil
				})
		}
	}
}

func TestNegativeZeroKeepsSign(t *testing.T) {
	w := NewWriter()
	w.WriteBitDouble(math.Copysign(0, -1))
	data, err := w.Bytes()
	if err != nil {
		t.Fatal(err)
	}
	// Must not take the compact 0.0 form.
	if len(data) < 8 {
		t.Fatalf("negative zero encoded in %d bytes", len(data))
	}
}

func TestRawRoundTrip(t *testing.T) {
	for phase := 0; phase < 8; phase++ {
		roundTripAtPhase(t, phase,
			func(w *Writer) {
				w.WriteRawChar(0xA5)
				w.WriteRawShort(0xBEEF)
				w.WriteRawLong(0xDEADBEEF)
				w.WriteRawLongLong(0x0123456789ABCDEF)
				w.WriteRawDouble(-2.75)
			},
			func(r *Reader) error {
				c, err := r.RawChar()
				if err != nil || c != 0xA5 {
					t.Fatalf("RawChar = %x, %v", c, err)
				}
				s, err := r.RawShort()
				if err != nil || s != 0xBEEF {
					t.Fatalf("RawShort = %x, %v", s, err)
				}
				l, err := r.RawLong()
				if err != nil || l != 0xDEADBEEF {
					t.Fatalf("RawLong = %x, %v", l, err)
				}
				ll, err := r.RawLongLong()
				if err != nil || ll != 0x0123456789ABCDEF {
					t.Fatalf("RawLongLong = %x, %v", ll, err)
				}
				d, err := r.RawDouble()
				if err != nil || d != -2.75 {
					t.Fatalf("RawDouble = %g, %v", d, err)
				}
				return nil
			})
	}
}

func TestTextRoundTrip(t *testing.T) {
	values := []string{"", "a", "Layer 0", "straße ångström", string(bytes.Repeat([]byte("x"), 300))}
	for phase := 0; phase < 8; phase++ {
		for _, v := range values {
			roundTripAtPhase(t, phase,
				func(w *Writer) { w.WriteText(v) },
				func(r *Reader) error {
					got, err := r.Text()
					if err != nil {
						return err
					}
					if got != v {
						t.Fatalf("Text(%q) read back %q", v, got)
					}
					return nil
				})
		}
	}
}

func TestModularEncodings(t *testing.T) {
	// Fixed byte images keep the wire format honest, not just self-consistent.
	w := NewWriter()
	w.WriteModularChar(0)
	w.WriteModularChar(127)
	w.WriteModularChar(128)
	w.WriteSignedModularChar(-64)
	w.WriteModularShort(0x8000)
	data, err := w.Bytes()
	if err != nil {
		t.Fatal(err)
	}
	// MC 0, MC 127, MC 128, then -64 (the sign bit forces a second
	// group), then MS 0x8000.
	want := []byte{0x00, 0x7F, 0x80, 0x01, 0xC0, 0x40, 0x00, 0x80, 0x01, 0x00}
	if !bytes.Equal(data, want) {
		t.Fatalf("modular encodings = % X, want % X", data, want)
	}
}

func TestModularRoundTrip(t *testing.T) {
	unsigned := []uint64{0, 1, 127, 128, 300, 1 << 14, 1 << 21, 1 << 40, math.MaxUint32}
	signed := []int64{0, 1, -1, 63, -63, 64, -64, 8191, -8192, 1 << 30, -(1 << 30)}
	for phase := 0; phase < 8; phase++ {
		roundTripAtPhase(t, phase,
			func(w *Writer) {
				for _, v := range unsigned {
					w.WriteModularChar(v)
					w.WriteModularShort(v)
				}
				for _, v := range signed {
					w.WriteSignedModularChar(v)
				}
			},
			func(r *Reader) error {
				for _, v := range unsigned {
					mc, err := r.ModularChar()
					if err != nil {
						return err
					}
					if mc != v {
						t.Fatalf("ModularChar(%d) read back %d", v, mc)
					}
					ms, err := r.ModularShort()
					if err != nil {
						return err
					}
					if ms != v {
						t.Fatalf("ModularShort(%d) read back %d", v, ms)
					}
				}
				for _, v := range signed {
					sc, err := r.SignedModularChar()
					if err != nil {
						return err
					}
					if sc != v {
						t.Fatalf("SignedModularChar(%d) read back %d", v, sc)
					}
				}
				return nil
			})
	}
}

func TestTruncated(t *testing.T) {
	reads := []func(*Reader) error{
		func(r *Reader) error { _, err := r.Bit(); return err },
		func(r *Reader) error { _, err := r.BitShort(); return err },
		func(r *Reader) error { _, err := r.BitLong(); return err },
		func(r *Reader) error { _, err := r.BitDouble(); return err },
		func(r *Reader) error { _, err := r.RawLongLong(); return err },
		func(r *Reader) error { _, err := r.Text(); return err },
		func(r *Reader) error { _, err := r.ModularChar(); return err },
		func(r *Reader) error { _, err := r.ModularShort(); return err },
		func(r *Reader) error { _, err := r.HandleRef(); return err },
		func(r *Reader) error { _, err := r.Bytes(4); return err },
	}
	for i, read := range reads {
		if err := read(NewReader(nil)); !errors.Is(err, ErrTruncated) {
			t.Errorf("read %d on empty stream: err = %v, want ErrTruncated", i, err)
		}
	}
	// A BS promising a 16-bit payload that is not there.
	w := NewWriter()
	w.WriteBits2(0)
	w.WriteRawChar(0x12)
	data, _ := w.Bytes()
	if _, err := NewReader(data).BitShort(); !errors.Is(err, ErrTruncated) {
		t.Errorf("short BS payload: err = %v, want ErrTruncated", err)
	}
}

func TestInvalidPrefixes(t *testing.T) {
	w := NewWriter()
	w.WriteBits2(3) // BL and BD reserve the 11 prefix
	data, _ := w.Bytes()
	if _, err := NewReader(data).BitLong(); !errors.Is(err, ErrInvalid) {
		t.Errorf("BL prefix 11: err = %v, want ErrInvalid", err)
	}
	if _, err := NewReader(data).BitDouble(); !errors.Is(err, ErrInvalid) {
		t.Errorf("BD prefix 11: err = %v, want ErrInvalid", err)
	}
}

func TestWriterStickyError(t *testing.T) {
	w := NewWriter()
	w.WriteBitShort(1 << 20)
	w.WriteBitShort(5)
	if _, err := w.Bytes(); !errors.Is(err, ErrInvalid) {
		t.Fatalf("Bytes after out-of-range value: err = %v, want ErrInvalid", err)
	}
	if w.Err() == nil {
		t.Fatal("Err must report the sticky failure")
	}
}

func TestAlign(t *testing.T) {
	w := NewWriter()
	w.WriteBit(1)
	w.Align()
	w.WriteRawChar(0xFF)
	data, err := w.Bytes()
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(data, []byte{0x80, 0xFF}) {
		t.Fatalf("aligned buffer = % X", data)
	}
	r := NewReader(data)
	if _, err := r.Bit(); err != nil {
		t.Fatal(err)
	}
	r.Align()
	b, err := r.RawChar()
	if err != nil || b != 0xFF {
		t.Fatalf("after Align: %x, %v", b, err)
	}
}
