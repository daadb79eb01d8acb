// Package headervars codes the header variables section: the handle
// seed, the named root handles every drawing hangs off, and a few
// drawing-wide scalars.
package headervars

import (
	"errors"
	"fmt"

	"github.com/draftware/dwgkit/bitcode"
	"github.com/draftware/dwgkit/geom"
	"github.com/draftware/dwgkit/object"
)

var ErrMalformed = errors.New("malformed header variables")

// sentinel opens the section stream.
const sentinel = 0x16E64A22

// Measurement values.
const (
	Imperial int16 = 0
	Metric   int16 = 1
)

// Vars holds the decoded header variables. HandleSeed is the next
// handle a writer may allocate; it must exceed every handle in use.
type Vars struct {
	HandleSeed   object.Handle
	ModelSpace   object.Handle
	PaperSpace   object.Handle
	BlockControl object.Handle
	LayerControl object.Handle
	StyleControl object.Handle
	LtypeControl object.Handle
	CurrentLayer object.Handle
	Measurement  int16
	ExtMin       geom.Point3
	ExtMax       geom.Point3
}

// Root is one named root handle.
type Root struct {
	Name   string
	Handle object.Handle
}

// Roots lists the named root handles in a fixed order. Resolution
// walks this to validate each root against the object pool.
func (v *Vars) Roots() []Root {
	return []Root{
		{"model-space", v.ModelSpace},
		{"paper-space", v.PaperSpace},
		{"block-control", v.BlockControl},
		{"layer-control", v.LayerControl},
		{"style-control", v.StyleControl},
		{"ltype-control", v.LtypeControl},
		{"current-layer", v.CurrentLayer},
	}
}

func readHandle(r *bitcode.Reader, dst *object.Handle) error {
	v, err := r.Handle(0)
	if err != nil {
		return err
	}
	*dst = object.Handle(v)
	return nil
}

func readPoint(r *bitcode.Reader, dst *geom.Point3) error {
	for _, f := range []*float64{&dst.X, &dst.Y, &dst.Z} {
		v, err := r.BitDouble()
		if err != nil {
			return err
		}
		*f = v
	}
	return nil
}

// Decode parses a header variables section stream.
func Decode(data []byte) (*Vars, error) {
	r := bitcode.NewReader(data)
	sent, err := r.RawLong()
	if err != nil {
		return nil, fmt.Errorf("header variables: %w", err)
	}
	if sent != sentinel {
		return nil, fmt.Errorf("%w: sentinel %08X", ErrMalformed, sent)
	}
	v := &Vars{}
	for _, h := range []*object.Handle{
		&v.HandleSeed, &v.ModelSpace, &v.PaperSpace, &v.BlockControl,
		&v.LayerControl, &v.StyleControl, &v.LtypeControl, &v.CurrentLayer,
	} {
		if err := readHandle(r, h); err != nil {
			return nil, fmt.Errorf("header variables: %w", err)
		}
	}
	m, err := r.BitShort()
	if err != nil {
		return nil, fmt.Errorf("header variables: %w", err)
	}
	v.Measurement = int16(m)
	if err := readPoint(r, &v.ExtMin); err != nil {
		return nil, fmt.Errorf("header variables: %w", err)
	}
	if err := readPoint(r, &v.ExtMax); err != nil {
		return nil, fmt.Errorf("header variables: %w", err)
	}
	if r.Remaining() >= 8 {
		return nil, fmt.Errorf("%w: %d trailing bits", ErrMalformed, r.Remaining())
	}
	return v, nil
}

// Encode serializes the variables into a section stream.
func (v *Vars) Encode() ([]byte, error) {
	w := bitcode.NewWriter()
	w.WriteRawLong(sentinel)
	for _, h := range []object.Handle{
		v.HandleSeed, v.ModelSpace, v.PaperSpace, v.BlockControl,
		v.LayerControl, v.StyleControl, v.LtypeControl, v.CurrentLayer,
	} {
		w.WriteHandle(uint64(h), 0)
	}
	w.WriteBitShort(int(v.Measurement))
	for _, p := range []geom.Point3{v.ExtMin, v.ExtMax} {
		w.WriteBitDouble(p.X)
		w.WriteBitDouble(p.Y)
		w.WriteBitDouble(p.Z)
	}
	return w.Bytes()
}
