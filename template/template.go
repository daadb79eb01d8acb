// Package template codes individual object records: the bridge between
// the raw objects section and the typed data model. Extraction is
// phase 1 of a decode: each record is parsed independently, reference
// slots resolved to absolute handles but not yet to objects.
package template

import (
	"errors"
	"fmt"

	"github.com/draftware/dwgkit/bitcode"
	"github.com/draftware/dwgkit/notify"
	"github.com/draftware/dwgkit/object"
	"github.com/draftware/dwgkit/version"
)

var (
	ErrMalformed = errors.New("malformed object record")

	// ErrUnknownType marks a record whose type code has no decoder.
	// Decodes skip such records with a warning instead of failing.
	ErrUnknownType = errors.New("unknown object type")
)

// UnknownTypeError carries the offending code so the caller can
// consult the classes table when wording its warning.
type UnknownTypeError struct {
	Code object.TypeCode
}

func (e *UnknownTypeError) Error() string { return fmt.Sprintf("%s %d", ErrUnknownType, e.Code) }
func (e *UnknownTypeError) Unwrap() error { return ErrUnknownType }

// Object pairs a record with the handle that identifies it. The handle
// is authoritative for every relative reference inside the record.
type Object struct {
	Handle object.Handle
	Record object.Record
}

// ExtractAt decodes the record starting at offset in the decompressed
// objects stream: a modular short byte length, then the record body.
func ExtractAt(stream []byte, offset int64, fam version.Family) (*Object, error) {
	if offset < 0 || offset >= int64(len(stream)) {
		return nil, fmt.Errorf("record offset %d of %d: %w", offset, len(stream), bitcode.ErrTruncated)
	}
	r := bitcode.NewReader(stream[offset:])
	n, err := r.ModularShort()
	if err != nil {
		return nil, fmt.Errorf("record length at %d: %w", offset, err)
	}
	start := offset + int64(r.BitPos()/8)
	if start+int64(n) > int64(len(stream)) {
		return nil, fmt.Errorf("record body at %d+%d: %w", start, n, bitcode.ErrTruncated)
	}
	return Extract(stream[start:start+int64(n)], fam)
}

// Extract decodes one record body.
func Extract(body []byte, fam version.Family) (*Object, error) {
	r := bitcode.NewReader(body)
	tc, err := r.BitShort()
	if err != nil {
		return nil, fmt.Errorf("type code: %w", err)
	}
	code := object.TypeCode(uint16(tc))
	self, err := r.Handle(0)
	if err != nil {
		return nil, fmt.Errorf("self handle: %w", err)
	}
	if self == 0 {
		return nil, fmt.Errorf("%w: null self handle", ErrMalformed)
	}
	dec := decoders[code]
	if dec == nil {
		return nil, &UnknownTypeError{Code: code}
	}
	rec, err := dec(r, object.Handle(self), fam)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", code, object.Handle(self), err)
	}
	if r.Remaining() >= 8 {
		return nil, fmt.Errorf("%w: %d trailing bits in %s %s", ErrMalformed, r.Remaining(), code, object.Handle(self))
	}
	return &Object{Handle: object.Handle(self), Record: rec}, nil
}

// Emit encodes the record body: type code, self handle, typed fields.
// Links the target family cannot store are dropped with a warning on
// log.
func Emit(obj *Object, fam version.Family, log *notify.Log) ([]byte, error) {
	if obj.Handle.IsNull() {
		return nil, fmt.Errorf("%w: null self handle", ErrMalformed)
	}
	code := obj.Record.Type()
	if encoders[code] == nil {
		return nil, &UnknownTypeError{Code: code}
	}
	w := bitcode.NewWriter()
	w.WriteBitShort(int(code))
	w.WriteHandleRef(bitcode.HandleRef{Code: bitcode.HandleCodeSoftPointer, Value: uint64(obj.Handle)})
	encoders[code](w, obj, fam, log)
	return w.Bytes()
}

// AppendRecord serializes the record with its length prefix onto dst,
// the form records take inside the objects section.
func AppendRecord(dst []byte, obj *Object, fam version.Family, log *notify.Log) ([]byte, error) {
	body, err := Emit(obj, fam, log)
	if err != nil {
		return nil, err
	}
	w := bitcode.NewWriter()
	w.WriteModularShort(uint64(len(body)))
	prefix, err := w.Bytes()
	if err != nil {
		return nil, err
	}
	return append(append(dst, prefix...), body...), nil
}

type decodeFunc func(r *bitcode.Reader, self object.Handle, fam version.Family) (object.Record, error)

type encodeFunc func(w *bitcode.Writer, obj *Object, fam version.Family, log *notify.Log)

var decoders = map[object.TypeCode]decodeFunc{
	object.TypeText:         decodeText,
	object.TypeBlock:        decodeBlock,
	object.TypeEndBlk:       decodeEndBlk,
	object.TypeSeqEnd:       decodeSeqEnd,
	object.TypeInsert:       decodeInsert,
	object.TypeArc:          decodeArc,
	object.TypeCircle:       decodeCircle,
	object.TypeLine:         decodeLine,
	object.TypePoint:        decodePoint,
	object.TypeDictionary:   decodeDictionary,
	object.TypeMText:        decodeMText,
	object.TypeBlockControl: decodeBlockControl,
	object.TypeBlockRecord:  decodeBlockRecord,
	object.TypeLayerControl: decodeLayerControl,
	object.TypeLayer:        decodeLayer,
	object.TypeStyleControl: decodeStyleControl,
	object.TypeStyle:        decodeStyle,
	object.TypeLtypeControl: decodeLtypeControl,
	object.TypeLtype:        decodeLtype,
	object.TypeLWPolyline:   decodeLWPolyline,
}

var encoders = map[object.TypeCode]encodeFunc{
	object.TypeText:         encodeText,
	object.TypeBlock:        encodeBlock,
	object.TypeEndBlk:       encodeEndBlk,
	object.TypeSeqEnd:       encodeSeqEnd,
	object.TypeInsert:       encodeInsert,
	object.TypeArc:          encodeArc,
	object.TypeCircle:       encodeCircle,
	object.TypeLine:         encodeLine,
	object.TypePoint:        encodePoint,
	object.TypeDictionary:   encodeDictionary,
	object.TypeMText:        encodeMText,
	object.TypeBlockControl: encodeBlockControl,
	object.TypeBlockRecord:  encodeBlockRecord,
	object.TypeLayerControl: encodeLayerControl,
	object.TypeLayer:        encodeLayer,
	object.TypeStyleControl: encodeStyleControl,
	object.TypeStyle:        encodeStyle,
	object.TypeLtypeControl: encodeLtypeControl,
	object.TypeLtype:        encodeLtype,
	object.TypeLWPolyline:   encodeLWPolyline,
}

func readHandle(r *bitcode.Reader, self object.Handle) (object.Handle, error) {
	v, err := r.Handle(uint64(self))
	if err != nil {
		return 0, err
	}
	return object.Handle(v), nil
}
