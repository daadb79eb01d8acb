package object

import "github.com/draftware/dwgkit/geom"

// Entity is the common block shared by drawable records: display
// attributes plus the owner and layer links. Prev and Next chain
// entities within their owning block on the legacy families; the other
// families carry the membership as a list on the block record instead,
// so there the two slots stay null.
type Entity struct {
	ColorIndex int16
	Invisible  bool
	Owner      Handle
	Layer      Handle
	Prev       Handle
	Next       Handle
}

func (e *Entity) walkCommon(fn func(Role, *Handle)) {
	fn(RoleOwner, &e.Owner)
	fn(RoleLayer, &e.Layer)
	fn(RolePrev, &e.Prev)
	fn(RoleNext, &e.Next)
}

type Line struct {
	Entity
	Start geom.Point3
	End   geom.Point3
}

func (*Line) Type() TypeCode                    { return TypeLine }
func (r *Line) WalkRefs(fn func(Role, *Handle)) { r.walkCommon(fn) }

type Point struct {
	Entity
	Location geom.Point3
}

func (*Point) Type() TypeCode                    { return TypePoint }
func (r *Point) WalkRefs(fn func(Role, *Handle)) { r.walkCommon(fn) }

type Circle struct {
	Entity
	Center geom.Point3
	Radius float64
}

func (*Circle) Type() TypeCode                    { return TypeCircle }
func (r *Circle) WalkRefs(fn func(Role, *Handle)) { r.walkCommon(fn) }

type Arc struct {
	Entity
	Center     geom.Point3
	Radius     float64
	StartAngle float64
	EndAngle   float64
}

func (*Arc) Type() TypeCode                    { return TypeArc }
func (r *Arc) WalkRefs(fn func(Role, *Handle)) { r.walkCommon(fn) }

type Text struct {
	Entity
	Insertion geom.Point3
	Height    float64
	Rotation  float64
	Value     string
	Style     Handle
}

func (*Text) Type() TypeCode { return TypeText }

func (r *Text) WalkRefs(fn func(Role, *Handle)) {
	r.walkCommon(fn)
	fn(RoleStyle, &r.Style)
}

type MText struct {
	Entity
	Insertion geom.Point3
	RectWidth float64
	Height    float64
	Contents  string
	Style     Handle
}

func (*MText) Type() TypeCode { return TypeMText }

func (r *MText) WalkRefs(fn func(Role, *Handle)) {
	r.walkCommon(fn)
	fn(RoleStyle, &r.Style)
}

// LWPolyline is a light-weight polyline: a flat run of 2D vertices.
type LWPolyline struct {
	Entity
	Flags    int32
	Vertices []geom.Point2
}

func (*LWPolyline) Type() TypeCode                    { return TypeLWPolyline }
func (r *LWPolyline) WalkRefs(fn func(Role, *Handle)) { r.walkCommon(fn) }

type Insert struct {
	Entity
	Insertion geom.Point3
	Scale     geom.Point3
	Rotation  float64
	Block     Handle
}

func (*Insert) Type() TypeCode { return TypeInsert }

func (r *Insert) WalkRefs(fn func(Role, *Handle)) {
	r.walkCommon(fn)
	fn(RoleBlockDef, &r.Block)
}

// Block opens an entity sequence belonging to a block definition;
// EndBlk closes it. SeqEnd closes attribute and vertex sequences.
type Block struct {
	Entity
	Name string
}

func (*Block) Type() TypeCode                    { return TypeBlock }
func (r *Block) WalkRefs(fn func(Role, *Handle)) { r.walkCommon(fn) }

type EndBlk struct {
	Entity
}

func (*EndBlk) Type() TypeCode                    { return TypeEndBlk }
func (r *EndBlk) WalkRefs(fn func(Role, *Handle)) { r.walkCommon(fn) }

type SeqEnd struct {
	Entity
}

func (*SeqEnd) Type() TypeCode                    { return TypeSeqEnd }
func (r *SeqEnd) WalkRefs(fn func(Role, *Handle)) { r.walkCommon(fn) }
