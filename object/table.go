package object

// Dictionary maps names to object handles. Names and Entries run in
// parallel, preserving the stored order.
type Dictionary struct {
	Names   []string
	Entries []Handle
}

func (*Dictionary) Type() TypeCode { return TypeDictionary }

func (r *Dictionary) WalkRefs(fn func(Role, *Handle)) {
	for i := range r.Entries {
		fn(RoleDictEntry, &r.Entries[i])
	}
}

// Lookup returns the handle stored under name.
func (r *Dictionary) Lookup(name string) (Handle, bool) {
	for i, n := range r.Names {
		if n == name {
			return r.Entries[i], true
		}
	}
	return Null, false
}

// controlList is the shared body of the four table control records:
// an ordered list of table entry handles.
type controlList struct {
	Entries []Handle
}

func (c *controlList) WalkRefs(fn func(Role, *Handle)) {
	for i := range c.Entries {
		fn(RoleTableEntry, &c.Entries[i])
	}
}

type BlockControl struct{ controlList }

func (*BlockControl) Type() TypeCode { return TypeBlockControl }

type LayerControl struct{ controlList }

func (*LayerControl) Type() TypeCode { return TypeLayerControl }

type StyleControl struct{ controlList }

func (*StyleControl) Type() TypeCode { return TypeStyleControl }

type LtypeControl struct{ controlList }

func (*LtypeControl) Type() TypeCode { return TypeLtypeControl }

// BlockRecord defines one block. Entity membership is stored two ways
// depending on family: First/Last anchor the legacy prev/next chain,
// Entities is the explicit list of the other families. A decoded
// record populates one of the two.
type BlockRecord struct {
	Name     string
	IsSpace  bool
	Layout   Handle
	First    Handle
	Last     Handle
	Entities []Handle
}

func (*BlockRecord) Type() TypeCode { return TypeBlockRecord }

func (r *BlockRecord) WalkRefs(fn func(Role, *Handle)) {
	fn(RoleLayout, &r.Layout)
	fn(RoleFirst, &r.First)
	fn(RoleLast, &r.Last)
	for i := range r.Entities {
		fn(RoleChild, &r.Entities[i])
	}
}

type Layer struct {
	Name       string
	ColorIndex int16
	Frozen     bool
	Locked     bool
	LineType   Handle
}

func (*Layer) Type() TypeCode { return TypeLayer }

func (r *Layer) WalkRefs(fn func(Role, *Handle)) {
	fn(RoleLineType, &r.LineType)
}

type Style struct {
	Name        string
	FontFile    string
	FixedHeight float64
}

func (*Style) Type() TypeCode               { return TypeStyle }
func (*Style) WalkRefs(func(Role, *Handle)) {}

type Ltype struct {
	Name          string
	Description   string
	PatternLength float64
	DashCount     int16
}

func (*Ltype) Type() TypeCode               { return TypeLtype }
func (*Ltype) WalkRefs(func(Role, *Handle)) {}
