// Package object is the drawing data model: handles, type codes and
// the typed records the object section stores. Records reference each
// other by handle only; resolution against a document pool happens a
// layer up, so cyclic structures cost nothing here.
//
// Records do not carry their own handle. The pairing of a handle with
// its record belongs to the extraction template and the document pool.
package object

import (
	"fmt"
	"strconv"
)

// Handle identifies an object within one drawing. Zero is the null
// handle and never identifies an object.
type Handle uint64

const Null Handle = 0

func (h Handle) IsNull() bool { return h == Null }

func (h Handle) String() string {
	if h == Null {
		return "null"
	}
	return fmt.Sprintf("%X", uint64(h))
}

// MarshalJSON renders the handle as a quoted hex string, the form
// handles take everywhere else in diagnostics.
func (h Handle) MarshalJSON() ([]byte, error) {
	return strconv.AppendQuote(nil, fmt.Sprintf("%X", uint64(h))), nil
}

// TypeCode is the wire discriminant of a record body.
type TypeCode uint16

const (
	TypeText         TypeCode = 1
	TypeBlock        TypeCode = 4
	TypeEndBlk       TypeCode = 5
	TypeSeqEnd       TypeCode = 6
	TypeInsert       TypeCode = 7
	TypeArc          TypeCode = 17
	TypeCircle       TypeCode = 18
	TypeLine         TypeCode = 19
	TypePoint        TypeCode = 27
	TypeDictionary   TypeCode = 42
	TypeMText        TypeCode = 44
	TypeBlockControl TypeCode = 48
	TypeBlockRecord  TypeCode = 49
	TypeLayerControl TypeCode = 50
	TypeLayer        TypeCode = 51
	TypeStyleControl TypeCode = 52
	TypeStyle        TypeCode = 53
	TypeLtypeControl TypeCode = 56
	TypeLtype        TypeCode = 57
	TypeLWPolyline   TypeCode = 77
)

// ProxyBase is the first type code the classes section assigns to
// application-defined classes.
const ProxyBase TypeCode = 500

var typeNames = map[TypeCode]string{
	TypeText:         "TEXT",
	TypeBlock:        "BLOCK",
	TypeEndBlk:       "ENDBLK",
	TypeSeqEnd:       "SEQEND",
	TypeInsert:       "INSERT",
	TypeArc:          "ARC",
	TypeCircle:       "CIRCLE",
	TypeLine:         "LINE",
	TypePoint:        "POINT",
	TypeDictionary:   "DICTIONARY",
	TypeMText:        "MTEXT",
	TypeBlockControl: "BLOCK_CONTROL",
	TypeBlockRecord:  "BLOCK_RECORD",
	TypeLayerControl: "LAYER_CONTROL",
	TypeLayer:        "LAYER",
	TypeStyleControl: "STYLE_CONTROL",
	TypeStyle:        "STYLE",
	TypeLtypeControl: "LTYPE_CONTROL",
	TypeLtype:        "LTYPE",
	TypeLWPolyline:   "LWPOLYLINE",
}

func (c TypeCode) Known() bool { return typeNames[c] != "" }

// IsEntity reports whether records of this type begin with the common
// entity block (color, visibility, owner, layer).
func (c TypeCode) IsEntity() bool {
	switch c {
	case TypeText, TypeBlock, TypeEndBlk, TypeSeqEnd, TypeInsert, TypeArc,
		TypeCircle, TypeLine, TypePoint, TypeMText, TypeLWPolyline:
		return true
	default:
		return false
	}
}

func (c TypeCode) String() string {
	if s := typeNames[c]; s != "" {
		return s
	}
	return fmt.Sprintf("TYPE(%d)", uint16(c))
}

// New returns a zero record of the given type, or nil when the code
// does not name a built-in record type.
func New(c TypeCode) Record {
	switch c {
	case TypeText:
		return &Text{}
	case TypeBlock:
		return &Block{}
	case TypeEndBlk:
		return &EndBlk{}
	case TypeSeqEnd:
		return &SeqEnd{}
	case TypeInsert:
		return &Insert{}
	case TypeArc:
		return &Arc{}
	case TypeCircle:
		return &Circle{}
	case TypeLine:
		return &Line{}
	case TypePoint:
		return &Point{}
	case TypeDictionary:
		return &Dictionary{}
	case TypeMText:
		return &MText{}
	case TypeBlockControl:
		return &BlockControl{}
	case TypeBlockRecord:
		return &BlockRecord{}
	case TypeLayerControl:
		return &LayerControl{}
	case TypeLayer:
		return &Layer{}
	case TypeStyleControl:
		return &StyleControl{}
	case TypeStyle:
		return &Style{}
	case TypeLtypeControl:
		return &LtypeControl{}
	case TypeLtype:
		return &Ltype{}
	case TypeLWPolyline:
		return &LWPolyline{}
	}
	return nil
}

// Role names the relationship a reference slot expresses. Dangling
// reference warnings carry it so a reader can tell which link was cut.
type Role string

const (
	RoleOwner      Role = "owner"
	RoleLayer      Role = "layer"
	RolePrev       Role = "prev-entity"
	RoleNext       Role = "next-entity"
	RoleStyle      Role = "style"
	RoleBlockDef   Role = "block-def"
	RoleDictEntry  Role = "dict-entry"
	RoleTableEntry Role = "table-entry"
	RoleLayout     Role = "layout"
	RoleFirst      Role = "first-entity"
	RoleLast       Role = "last-entity"
	RoleChild      Role = "child-entity"
	RoleLineType   Role = "line-type"
)

// Record is one typed object body. WalkRefs visits every reference
// slot the record owns, null slots included; callbacks may rewrite the
// handle through the pointer, which is how dangling links are cleared.
type Record interface {
	Type() TypeCode
	WalkRefs(fn func(role Role, h *Handle))
}
