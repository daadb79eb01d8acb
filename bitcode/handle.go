package bitcode

import "fmt"

// Handle reference codes. Absolute codes carry the full handle value;
// relative codes are resolved against the handle of the object whose
// record declares the reference.
const (
	HandleCodeSoftOwner   = 0x2
	HandleCodeHardOwner   = 0x3
	HandleCodeSoftPointer = 0x4
	HandleCodeHardPointer = 0x5
	HandleCodePlusOne     = 0x6
	HandleCodeMinusOne    = 0x8
	HandleCodePlusOffset  = 0xA
	HandleCodeMinusOffset = 0xC
)

// HandleRef is a decoded H field before relative codes are applied.
// A zero code with a zero value is the null reference.
type HandleRef struct {
	Code  uint8
	Value uint64
}

// HandleRef reads an H field: one code/counter byte, then counter bytes
// of value, big-endian.
func (r *Reader) HandleRef() (HandleRef, error) {
	b, err := r.byte()
	if err != nil {
		return HandleRef{}, err
	}
	code, count := b>>4, int(b&0x0F)
	if count > 8 {
		return HandleRef{}, fmt.Errorf("%w: handle counter %d", ErrInvalid, count)
	}
	var v uint64
	for i := 0; i < count; i++ {
		b, err := r.byte()
		if err != nil {
			return HandleRef{}, err
		}
		v = v<<8 | uint64(b)
	}
	return HandleRef{Code: code, Value: v}, nil
}

// Resolve turns the reference into an absolute handle. base is the
// handle of the declaring object; it only matters for relative codes.
func (h HandleRef) Resolve(base uint64) (uint64, error) {
	switch h.Code {
	case 0:
		if h.Value != 0 {
			return 0, fmt.Errorf("%w: handle code 0 with value %X", ErrInvalid, h.Value)
		}
		return 0, nil
	case HandleCodeSoftOwner, HandleCodeHardOwner, HandleCodeSoftPointer, HandleCodeHardPointer:
		return h.Value, nil
	case HandleCodePlusOne:
		if h.Value != 0 {
			return 0, fmt.Errorf("%w: handle code 6 with counter", ErrInvalid)
		}
		return base + 1, nil
	case HandleCodeMinusOne:
		if h.Value != 0 {
			return 0, fmt.Errorf("%w: handle code 8 with counter", ErrInvalid)
		}
		if base == 0 {
			return 0, fmt.Errorf("%w: handle code 8 underflows base 0", ErrInvalid)
		}
		return base - 1, nil
	case HandleCodePlusOffset:
		return base + h.Value, nil
	case HandleCodeMinusOffset:
		if h.Value > base {
			return 0, fmt.Errorf("%w: handle code C underflows base %X by %X", ErrInvalid, base, h.Value)
		}
		return base - h.Value, nil
	default:
		return 0, fmt.Errorf("%w: handle code %X", ErrInvalid, h.Code)
	}
}

// Handle reads an H field and resolves it against base in one step.
func (r *Reader) Handle(base uint64) (uint64, error) {
	ref, err := r.HandleRef()
	if err != nil {
		return 0, err
	}
	return ref.Resolve(base)
}

// WriteHandleRef writes an H field exactly as given.
func (w *Writer) WriteHandleRef(h HandleRef) {
	count := handleByteLen(h.Value)
	if h.Code == 0 && h.Value == 0 {
		count = 0
	}
	if h.Code == HandleCodePlusOne || h.Code == HandleCodeMinusOne {
		count = 0
	}
	w.writeByte(h.Code<<4 | uint8(count))
	for i := count - 1; i >= 0; i-- {
		w.writeByte(byte(h.Value >> (8 * i)))
	}
}

// WriteHandle writes the absolute handle value, using the compact
// relative forms when the value neighbors the declaring handle.
func (w *Writer) WriteHandle(value, base uint64) {
	switch {
	case value == 0:
		w.writeByte(0x00)
	case value == base+1:
		w.WriteHandleRef(HandleRef{Code: HandleCodePlusOne})
	case base > 0 && value == base-1:
		w.WriteHandleRef(HandleRef{Code: HandleCodeMinusOne})
	default:
		w.WriteHandleRef(HandleRef{Code: HandleCodeSoftPointer, Value: value})
	}
}

func handleByteLen(v uint64) int {
	n := 1
	for v > 0xFF {
		v >>= 8
		n++
	}
	return n
}
