// Package classes codes the classes section: the registry of
// application-defined classes behind type codes of 500 and above.
// Decoders consult it when skipping an unknown object so the warning
// can name the class instead of a bare number.
package classes

import (
	"errors"
	"fmt"

	"github.com/draftware/dwgkit/bitcode"
	"github.com/draftware/dwgkit/object"
)

var ErrMalformed = errors.New("malformed classes section")

// Class describes one registered application class.
type Class struct {
	Num         object.TypeCode
	ProxyFlags  int16
	AppName     string
	CppName     string
	DXFName     string
	WasProxy    bool
	ItemClassID int16
}

// Table is the decoded classes section in stored order.
type Table []Class

// Decode parses a classes section stream.
func Decode(data []byte) (Table, error) {
	r := bitcode.NewReader(data)
	count, err := r.BitLong()
	if err != nil {
		return nil, fmt.Errorf("classes count: %w", err)
	}
	if count < 0 {
		return nil, fmt.Errorf("%w: count %d", ErrMalformed, count)
	}
	var t Table
	for i := 0; i < count; i++ {
		var c Class
		num, err := r.BitShort()
		if err != nil {
			return nil, fmt.Errorf("class %d: %w", i, err)
		}
		if num < int(object.ProxyBase) {
			return nil, fmt.Errorf("%w: class number %d below %d", ErrMalformed, num, object.ProxyBase)
		}
		c.Num = object.TypeCode(num)
		flags, err := r.BitShort()
		if err != nil {
			return nil, fmt.Errorf("class %d: %w", i, err)
		}
		c.ProxyFlags = int16(flags)
		if c.AppName, err = r.Text(); err != nil {
			return nil, fmt.Errorf("class %d: %w", i, err)
		}
		if c.CppName, err = r.Text(); err != nil {
			return nil, fmt.Errorf("class %d: %w", i, err)
		}
		if c.DXFName, err = r.Text(); err != nil {
			return nil, fmt.Errorf("class %d: %w", i, err)
		}
		if c.WasProxy, err = r.Bool(); err != nil {
			return nil, fmt.Errorf("class %d: %w", i, err)
		}
		item, err := r.BitShort()
		if err != nil {
			return nil, fmt.Errorf("class %d: %w", i, err)
		}
		c.ItemClassID = int16(item)
		t = append(t, c)
	}
	if r.Remaining() >= 8 {
		return nil, fmt.Errorf("%w: %d trailing bits", ErrMalformed, r.Remaining())
	}
	return t, nil
}

// Encode serializes the table into a section stream.
func (t Table) Encode() ([]byte, error) {
	w := bitcode.NewWriter()
	w.WriteBitLong(len(t))
	for _, c := range t {
		w.WriteBitShort(int(c.Num))
		w.WriteBitShort(int(c.ProxyFlags))
		w.WriteText(c.AppName)
		w.WriteText(c.CppName)
		w.WriteText(c.DXFName)
		w.WriteBool(c.WasProxy)
		w.WriteBitShort(int(c.ItemClassID))
	}
	return w.Bytes()
}

// Find returns the class registered under num.
func (t Table) Find(num object.TypeCode) (Class, bool) {
	for _, c := range t {
		if c.Num == num {
			return c, true
		}
	}
	return Class{}, false
}

// Name describes num for diagnostics: the registered DXF name when the
// table has one, the bare code otherwise.
func (t Table) Name(num object.TypeCode) string {
	if c, ok := t.Find(num); ok && c.DXFName != "" {
		return c.DXFName
	}
	return num.String()
}
