package template

import (
	"fmt"

	"github.com/draftware/dwgkit/bitcode"
	"github.com/draftware/dwgkit/geom"
	"github.com/draftware/dwgkit/notify"
	"github.com/draftware/dwgkit/object"
	"github.com/draftware/dwgkit/version"
)

func readPoint3(r *bitcode.Reader) (geom.Point3, error) {
	var p geom.Point3
	var err error
	if p.X, err = r.BitDouble(); err != nil {
		return p, err
	}
	if p.Y, err = r.BitDouble(); err != nil {
		return p, err
	}
	p.Z, err = r.BitDouble()
	return p, err
}

func writePoint3(w *bitcode.Writer, p geom.Point3) {
	w.WriteBitDouble(p.X)
	w.WriteBitDouble(p.Y)
	w.WriteBitDouble(p.Z)
}

func readPoint2(r *bitcode.Reader) (geom.Point2, error) {
	var p geom.Point2
	var err error
	if p.X, err = r.BitDouble(); err != nil {
		return p, err
	}
	p.Y, err = r.BitDouble()
	return p, err
}

func writePoint2(w *bitcode.Writer, p geom.Point2) {
	w.WriteBitDouble(p.X)
	w.WriteBitDouble(p.Y)
}

// decodeEntity reads the common entity block. The prev/next chain
// links exist on the wire only in the legacy family.
func decodeEntity(r *bitcode.Reader, self object.Handle, fam version.Family, e *object.Entity) error {
	color, err := r.BitShort()
	if err != nil {
		return err
	}
	e.ColorIndex = int16(color)
	if e.Invisible, err = r.Bool(); err != nil {
		return err
	}
	if e.Owner, err = readHandle(r, self); err != nil {
		return err
	}
	if e.Layer, err = readHandle(r, self); err != nil {
		return err
	}
	if fam == version.FamilyLegacy {
		if e.Prev, err = readHandle(r, self); err != nil {
			return err
		}
		if e.Next, err = readHandle(r, self); err != nil {
			return err
		}
	}
	return nil
}

func encodeEntity(w *bitcode.Writer, obj *Object, fam version.Family, log *notify.Log, e *object.Entity) {
	w.WriteBitShort(int(e.ColorIndex))
	w.WriteBool(e.Invisible)
	w.WriteHandle(uint64(e.Owner), uint64(obj.Handle))
	w.WriteHandle(uint64(e.Layer), uint64(obj.Handle))
	if fam == version.FamilyLegacy {
		w.WriteHandle(uint64(e.Prev), uint64(obj.Handle))
		w.WriteHandle(uint64(e.Next), uint64(obj.Handle))
		return
	}
	if (e.Prev != 0 || e.Next != 0) && log != nil {
		log.Add(notify.Event{
			Severity: notify.SeverityWarning,
			Code:     notify.CodeFieldDropped,
			Message:  fmt.Sprintf("entity chain links not representable in the %s family, dropped", fam),
			Handle:   uint64(obj.Handle),
		})
	}
}

func decodeLine(r *bitcode.Reader, self object.Handle, fam version.Family) (object.Record, error) {
	rec := &object.Line{}
	if err := decodeEntity(r, self, fam, &rec.Entity); err != nil {
		return nil, err
	}
	var err error
	if rec.Start, err = readPoint3(r); err != nil {
		return nil, err
	}
	if rec.End, err = readPoint3(r); err != nil {
		return nil, err
	}
	return rec, nil
}

func encodeLine(w *bitcode.Writer, obj *Object, fam version.Family, log *notify.Log) {
	rec := obj.Record.(*object.Line)
	encodeEntity(w, obj, fam, log, &rec.Entity)
	writePoint3(w, rec.Start)
	writePoint3(w, rec.End)
}

func decodePoint(r *bitcode.Reader, self object.Handle, fam version.Family) (object.Record, error) {
	rec := &object.Point{}
	if err := decodeEntity(r, self, fam, &rec.Entity); err != nil {
		return nil, err
	}
	var err error
	if rec.Location, err = readPoint3(r); err != nil {
		return nil, err
	}
	return rec, nil
}

func encodePoint(w *bitcode.Writer, obj *Object, fam version.Family, log *notify.Log) {
	rec := obj.Record.(*object.Point)
	encodeEntity(w, obj, fam, log, &rec.Entity)
	writePoint3(w, rec.Location)
}

func decodeCircle(r *bitcode.Reader, self object.Handle, fam version.Family) (object.Record, error) {
	rec := &object.Circle{}
	if err := decodeEntity(r, self, fam, &rec.Entity); err != nil {
		return nil, err
	}
	var err error
	if rec.Center, err = readPoint3(r); err != nil {
		return nil, err
	}
	if rec.Radius, err = r.BitDouble(); err != nil {
		return nil, err
	}
	return rec, nil
}

func encodeCircle(w *bitcode.Writer, obj *Object, fam version.Family, log *notify.Log) {
	rec := obj.Record.(*object.Circle)
	encodeEntity(w, obj, fam, log, &rec.Entity)
	writePoint3(w, rec.Center)
	w.WriteBitDouble(rec.Radius)
}

func decodeArc(r *bitcode.Reader, self object.Handle, fam version.Family) (object.Record, error) {
	rec := &object.Arc{}
	if err := decodeEntity(r, self, fam, &rec.Entity); err != nil {
		return nil, err
	}
	var err error
	if rec.Center, err = readPoint3(r); err != nil {
		return nil, err
	}
	if rec.Radius, err = r.BitDouble(); err != nil {
		return nil, err
	}
	if rec.StartAngle, err = r.BitDouble(); err != nil {
		return nil, err
	}
	if rec.EndAngle, err = r.BitDouble(); err != nil {
		return nil, err
	}
	return rec, nil
}

func encodeArc(w *bitcode.Writer, obj *Object, fam version.Family, log *notify.Log) {
	rec := obj.Record.(*object.Arc)
	encodeEntity(w, obj, fam, log, &rec.Entity)
	writePoint3(w, rec.Center)
	w.WriteBitDouble(rec.Radius)
	w.WriteBitDouble(rec.StartAngle)
	w.WriteBitDouble(rec.EndAngle)
}

func decodeText(r *bitcode.Reader, self object.Handle, fam version.Family) (object.Record, error) {
	rec := &object.Text{}
	if err := decodeEntity(r, self, fam, &rec.Entity); err != nil {
		return nil, err
	}
	var err error
	if rec.Insertion, err = readPoint3(r); err != nil {
		return nil, err
	}
	if rec.Height, err = r.BitDouble(); err != nil {
		return nil, err
	}
	if rec.Rotation, err = r.BitDouble(); err != nil {
		return nil, err
	}
	if rec.Value, err = r.Text(); err != nil {
		return nil, err
	}
	if rec.Style, err = readHandle(r, self); err != nil {
		return nil, err
	}
	return rec, nil
}

func encodeText(w *bitcode.Writer, obj *Object, fam version.Family, log *notify.Log) {
	rec := obj.Record.(*object.Text)
	encodeEntity(w, obj, fam, log, &rec.Entity)
	writePoint3(w, rec.Insertion)
	w.WriteBitDouble(rec.Height)
	w.WriteBitDouble(rec.Rotation)
	w.WriteText(rec.Value)
	w.WriteHandle(uint64(rec.Style), uint64(obj.Handle))
}

func decodeMText(r *bitcode.Reader, self object.Handle, fam version.Family) (object.Record, error) {
	rec := &object.MText{}
	if err := decodeEntity(r, self, fam, &rec.Entity); err != nil {
		return nil, err
	}
	var err error
	if rec.Insertion, err = readPoint3(r); err != nil {
		return nil, err
	}
	if rec.RectWidth, err = r.BitDouble(); err != nil {
		return nil, err
	}
	if rec.Height, err = r.BitDouble(); err != nil {
		return nil, err
	}
	if rec.Contents, err = r.Text(); err != nil {
		return nil, err
	}
	if rec.Style, err = readHandle(r, self); err != nil {
		return nil, err
	}
	return rec, nil
}

func encodeMText(w *bitcode.Writer, obj *Object, fam version.Family, log *notify.Log) {
	rec := obj.Record.(*object.MText)
	encodeEntity(w, obj, fam, log, &rec.Entity)
	writePoint3(w, rec.Insertion)
	w.WriteBitDouble(rec.RectWidth)
	w.WriteBitDouble(rec.Height)
	w.WriteText(rec.Contents)
	w.WriteHandle(uint64(rec.Style), uint64(obj.Handle))
}

func decodeLWPolyline(r *bitcode.Reader, self object.Handle, fam version.Family) (object.Record, error) {
	rec := &object.LWPolyline{}
	if err := decodeEntity(r, self, fam, &rec.Entity); err != nil {
		return nil, err
	}
	flags, err := r.BitLong()
	if err != nil {
		return nil, err
	}
	rec.Flags = int32(flags)
	count, err := r.BitLong()
	if err != nil {
		return nil, err
	}
	if count < 0 {
		return nil, fmt.Errorf("%w: vertex count %d", ErrMalformed, count)
	}
	for i := 0; i < count; i++ {
		p, err := readPoint2(r)
		if err != nil {
			return nil, err
		}
		rec.Vertices = append(rec.Vertices, p)
	}
	return rec, nil
}

func encodeLWPolyline(w *bitcode.Writer, obj *Object, fam version.Family, log *notify.Log) {
	rec := obj.Record.(*object.LWPolyline)
	encodeEntity(w, obj, fam, log, &rec.Entity)
	w.WriteBitLong(int(rec.Flags))
	w.WriteBitLong(len(rec.Vertices))
	for _, p := range rec.Vertices {
		writePoint2(w, p)
	}
}

func decodeInsert(r *bitcode.Reader, self object.Handle, fam version.Family) (object.Record, error) {
	rec := &object.Insert{}
	if err := decodeEntity(r, self, fam, &rec.Entity); err != nil {
		return nil, err
	}
	var err error
	if rec.Insertion, err = readPoint3(r); err != nil {
		return nil, err
	}
	if rec.Scale, err = readPoint3(r); err != nil {
		return nil, err
	}
	if rec.Rotation, err = r.BitDouble(); err != nil {
		return nil, err
	}
	if rec.Block, err = readHandle(r, self); err != nil {
		return nil, err
	}
	return rec, nil
}

func encodeInsert(w *bitcode.Writer, obj *Object, fam version.Family, log *notify.Log) {
	rec := obj.Record.(*object.Insert)
	encodeEntity(w, obj, fam, log, &rec.Entity)
	writePoint3(w, rec.Insertion)
	writePoint3(w, rec.Scale)
	w.WriteBitDouble(rec.Rotation)
	w.WriteHandle(uint64(rec.Block), uint64(obj.Handle))
}

func decodeBlock(r *bitcode.Reader, self object.Handle, fam version.Family) (object.Record, error) {
	rec := &object.Block{}
	if err := decodeEntity(r, self, fam, &rec.Entity); err != nil {
		return nil, err
	}
	var err error
	if rec.Name, err = r.Text(); err != nil {
		return nil, err
	}
	return rec, nil
}

func encodeBlock(w *bitcode.Writer, obj *Object, fam version.Family, log *notify.Log) {
	rec := obj.Record.(*object.Block)
	encodeEntity(w, obj, fam, log, &rec.Entity)
	w.WriteText(rec.Name)
}

func decodeEndBlk(r *bitcode.Reader, self object.Handle, fam version.Family) (object.Record, error) {
	rec := &object.EndBlk{}
	if err := decodeEntity(r, self, fam, &rec.Entity); err != nil {
		return nil, err
	}
	return rec, nil
}

func encodeEndBlk(w *bitcode.Writer, obj *Object, fam version.Family, log *notify.Log) {
	rec := obj.Record.(*object.EndBlk)
	encodeEntity(w, obj, fam, log, &rec.Entity)
}

func decodeSeqEnd(r *bitcode.Reader, self object.Handle, fam version.Family) (object.Record, error) {
	rec := &object.SeqEnd{}
	if err := decodeEntity(r, self, fam, &rec.Entity); err != nil {
		return nil, err
	}
	return rec, nil
}

func encodeSeqEnd(w *bitcode.Writer, obj *Object, fam version.Family, log *notify.Log) {
	rec := obj.Record.(*object.SeqEnd)
	encodeEntity(w, obj, fam, log, &rec.Entity)
}
