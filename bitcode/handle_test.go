package bitcode

import (
	"bytes"
	"errors"
	"testing"
)

func TestHandleWireForms(t *testing.T) {
	w := NewWriter()
	w.WriteHandle(0, 0x50)    // null
	w.WriteHandle(0x51, 0x50) // base+1
	w.WriteHandle(0x4F, 0x50) // base-1
	w.WriteHandle(0x2A, 0x50) // absolute, one byte
	w.WriteHandle(0x1234, 0)  // absolute, two bytes
	data, err := w.Bytes()
	if err != nil {
		t.Fatal(err)
	}
	want := []byte{0x00, 0x60, 0x80, 0x41, 0x2A, 0x42, 0x12, 0x34}
	if !bytes.Equal(data, want) {
		t.Fatalf("handle encodings = % X, want % X", data, want)
	}

	r := NewReader(data)
	for _, wantV := range []uint64{0, 0x51, 0x4F, 0x2A, 0x1234} {
		base := uint64(0x50)
		if wantV == 0x1234 {
			base = 0
		}
		got, err := r.Handle(base)
		if err != nil {
			t.Fatal(err)
		}
		if got != wantV {
			t.Fatalf("Handle read back %X, want %X", got, wantV)
		}
	}
}

func TestHandleResolveOffsets(t *testing.T) {
	cases := []struct {
		ref  HandleRef
		base uint64
		want uint64
	}{
		{HandleRef{Code: HandleCodeSoftOwner, Value: 0x99}, 0, 0x99},
		{HandleRef{Code: HandleCodeHardOwner, Value: 0x99}, 5, 0x99},
		{HandleRef{Code: HandleCodeHardPointer, Value: 1}, 5, 1},
		{HandleRef{Code: HandleCodePlusOffset, Value: 0x10}, 0x40, 0x50},
		{HandleRef{Code: HandleCodeMinusOffset, Value: 0x10}, 0x40, 0x30},
	}
	for _, c := range cases {
		got, err := c.ref.Resolve(c.base)
		if err != nil {
			t.Fatalf("Resolve(%+v): %v", c.ref, err)
		}
		if got != c.want {
			t.Fatalf("Resolve(%+v) = %X, want %X", c.ref, got, c.want)
		}
	}
}

func TestHandleResolveInvalid(t *testing.T) {
	cases := []struct {
		ref  HandleRef
		base uint64
	}{
		{HandleRef{Code: 0, Value: 1}, 0},
		{HandleRef{Code: 0x7, Value: 1}, 0},
		{HandleRef{Code: HandleCodeMinusOne}, 0},
		{HandleRef{Code: HandleCodeMinusOffset, Value: 0x41}, 0x40},
		{HandleRef{Code: HandleCodePlusOne, Value: 2}, 0x40},
	}
	for _, c := range cases {
		if _, err := c.ref.Resolve(c.base); !errors.Is(err, ErrInvalid) {
			t.Errorf("Resolve(%+v) err = %v, want ErrInvalid", c.ref, err)
		}
	}
}

func TestHandleCounterTooWide(t *testing.T) {
	// Code 4 with counter 9 promises more value bytes than a handle holds.
	if _, err := NewReader([]byte{0x49, 1, 2, 3, 4, 5, 6, 7, 8, 9}).HandleRef(); !errors.Is(err, ErrInvalid) {
		t.Fatalf("err = %v, want ErrInvalid", err)
	}
}

func TestHandleRoundTripAtPhases(t *testing.T) {
	values := []uint64{0, 1, 0x2A, 0x100, 0xFFFF, 1 << 24, 1<<40 + 3, 1<<56 + 9}
	for phase := 0; phase < 8; phase++ {
		roundTripAtPhase(t, phase,
			func(w *Writer) {
				for _, v := range values {
					w.WriteHandle(v, 0x2A)
				}
			},
			func(r *Reader) error {
				for _, v := range values {
					got, err := r.Handle(0x2A)
					if err != nil {
						return err
					}
					if got != v {
						t.Fatalf("handle %X read back %X", v, got)
					}
				}
				return nil
			})
	}
}
