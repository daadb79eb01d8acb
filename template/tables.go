package template

import (
	"fmt"

	"github.com/draftware/dwgkit/bitcode"
	"github.com/draftware/dwgkit/notify"
	"github.com/draftware/dwgkit/object"
	"github.com/draftware/dwgkit/version"
)

func decodeDictionary(r *bitcode.Reader, self object.Handle, fam version.Family) (object.Record, error) {
	rec := &object.Dictionary{}
	count, err := r.BitLong()
	if err != nil {
		return nil, err
	}
	if count < 0 {
		return nil, fmt.Errorf("%w: entry count %d", ErrMalformed, count)
	}
	for i := 0; i < count; i++ {
		key, err := r.Text()
		if err != nil {
			return nil, err
		}
		h, err := readHandle(r, self)
		if err != nil {
			return nil, err
		}
		rec.Names = append(rec.Names, key)
		rec.Entries = append(rec.Entries, h)
	}
	return rec, nil
}

func encodeDictionary(w *bitcode.Writer, obj *Object, fam version.Family, log *notify.Log) {
	rec := obj.Record.(*object.Dictionary)
	w.WriteBitLong(len(rec.Entries))
	for i, h := range rec.Entries {
		w.WriteText(rec.Names[i])
		w.WriteHandle(uint64(h), uint64(obj.Handle))
	}
}

func decodeControlEntries(r *bitcode.Reader, self object.Handle) ([]object.Handle, error) {
	count, err := r.BitLong()
	if err != nil {
		return nil, err
	}
	if count < 0 {
		return nil, fmt.Errorf("%w: entry count %d", ErrMalformed, count)
	}
	var entries []object.Handle
	for i := 0; i < count; i++ {
		h, err := readHandle(r, self)
		if err != nil {
			return nil, err
		}
		entries = append(entries, h)
	}
	return entries, nil
}

func encodeControlEntries(w *bitcode.Writer, self object.Handle, entries []object.Handle) {
	w.WriteBitLong(len(entries))
	for _, h := range entries {
		w.WriteHandle(uint64(h), uint64(self))
	}
}

func decodeBlockControl(r *bitcode.Reader, self object.Handle, fam version.Family) (object.Record, error) {
	rec := &object.BlockControl{}
	var err error
	rec.Entries, err = decodeControlEntries(r, self)
	return rec, err
}

func encodeBlockControl(w *bitcode.Writer, obj *Object, fam version.Family, log *notify.Log) {
	encodeControlEntries(w, obj.Handle, obj.Record.(*object.BlockControl).Entries)
}

func decodeLayerControl(r *bitcode.Reader, self object.Handle, fam version.Family) (object.Record, error) {
	rec := &object.LayerControl{}
	var err error
	rec.Entries, err = decodeControlEntries(r, self)
	return rec, err
}

func encodeLayerControl(w *bitcode.Writer, obj *Object, fam version.Family, log *notify.Log) {
	encodeControlEntries(w, obj.Handle, obj.Record.(*object.LayerControl).Entries)
}

func decodeStyleControl(r *bitcode.Reader, self object.Handle, fam version.Family) (object.Record, error) {
	rec := &object.StyleControl{}
	var err error
	rec.Entries, err = decodeControlEntries(r, self)
	return rec, err
}

func encodeStyleControl(w *bitcode.Writer, obj *Object, fam version.Family, log *notify.Log) {
	encodeControlEntries(w, obj.Handle, obj.Record.(*object.StyleControl).Entries)
}

func decodeLtypeControl(r *bitcode.Reader, self object.Handle, fam version.Family) (object.Record, error) {
	rec := &object.LtypeControl{}
	var err error
	rec.Entries, err = decodeControlEntries(r, self)
	return rec, err
}

func encodeLtypeControl(w *bitcode.Writer, obj *Object, fam version.Family, log *notify.Log) {
	encodeControlEntries(w, obj.Handle, obj.Record.(*object.LtypeControl).Entries)
}

// decodeBlockRecord reads the family-specific entity membership: the
// legacy chain anchors, or the explicit handle list everywhere else.
func decodeBlockRecord(r *bitcode.Reader, self object.Handle, fam version.Family) (object.Record, error) {
	rec := &object.BlockRecord{}
	var err error
	if rec.Name, err = r.Text(); err != nil {
		return nil, err
	}
	if rec.IsSpace, err = r.Bool(); err != nil {
		return nil, err
	}
	if rec.Layout, err = readHandle(r, self); err != nil {
		return nil, err
	}
	if fam == version.FamilyLegacy {
		if rec.First, err = readHandle(r, self); err != nil {
			return nil, err
		}
		if rec.Last, err = readHandle(r, self); err != nil {
			return nil, err
		}
		return rec, nil
	}
	count, err := r.BitLong()
	if err != nil {
		return nil, err
	}
	if count < 0 {
		return nil, fmt.Errorf("%w: entity count %d", ErrMalformed, count)
	}
	for i := 0; i < count; i++ {
		h, err := readHandle(r, self)
		if err != nil {
			return nil, err
		}
		rec.Entities = append(rec.Entities, h)
	}
	return rec, nil
}

func encodeBlockRecord(w *bitcode.Writer, obj *Object, fam version.Family, log *notify.Log) {
	rec := obj.Record.(*object.BlockRecord)
	w.WriteText(rec.Name)
	w.WriteBool(rec.IsSpace)
	w.WriteHandle(uint64(rec.Layout), uint64(obj.Handle))
	if fam == version.FamilyLegacy {
		w.WriteHandle(uint64(rec.First), uint64(obj.Handle))
		w.WriteHandle(uint64(rec.Last), uint64(obj.Handle))
		if len(rec.Entities) > 0 && log != nil {
			log.Add(notify.Event{
				Severity: notify.SeverityWarning,
				Code:     notify.CodeFieldDropped,
				Message:  "block entity list not representable in the legacy family, dropped",
				Handle:   uint64(obj.Handle),
			})
		}
		return
	}
	w.WriteBitLong(len(rec.Entities))
	for _, h := range rec.Entities {
		w.WriteHandle(uint64(h), uint64(obj.Handle))
	}
	if (rec.First != 0 || rec.Last != 0) && log != nil {
		log.Add(notify.Event{
			Severity: notify.SeverityWarning,
			Code:     notify.CodeFieldDropped,
			Message:  fmt.Sprintf("block chain anchors not representable in the %s family, dropped", fam),
			Handle:   uint64(obj.Handle),
		})
	}
}

func decodeLayer(r *bitcode.Reader, self object.Handle, fam version.Family) (object.Record, error) {
	rec := &object.Layer{}
	var err error
	if rec.Name, err = r.Text(); err != nil {
		return nil, err
	}
	color, err := r.BitShort()
	if err != nil {
		return nil, err
	}
	rec.ColorIndex = int16(color)
	if rec.Frozen, err = r.Bool(); err != nil {
		return nil, err
	}
	if rec.Locked, err = r.Bool(); err != nil {
		return nil, err
	}
	if rec.LineType, err = readHandle(r, self); err != nil {
		return nil, err
	}
	return rec, nil
}

func encodeLayer(w *bitcode.Writer, obj *Object, fam version.Family, log *notify.Log) {
	rec := obj.Record.(*object.Layer)
	w.WriteText(rec.Name)
	w.WriteBitShort(int(rec.ColorIndex))
	w.WriteBool(rec.Frozen)
	w.WriteBool(rec.Locked)
	w.WriteHandle(uint64(rec.LineType), uint64(obj.Handle))
}

func decodeStyle(r *bitcode.Reader, self object.Handle, fam version.Family) (object.Record, error) {
	rec := &object.Style{}
	var err error
	if rec.Name, err = r.Text(); err != nil {
		return nil, err
	}
	if rec.FontFile, err = r.Text(); err != nil {
		return nil, err
	}
	if rec.FixedHeight, err = r.BitDouble(); err != nil {
		return nil, err
	}
	return rec, nil
}

func encodeStyle(w *bitcode.Writer, obj *Object, fam version.Family, log *notify.Log) {
	rec := obj.Record.(*object.Style)
	w.WriteText(rec.Name)
	w.WriteText(rec.FontFile)
	w.WriteBitDouble(rec.FixedHeight)
}

func decodeLtype(r *bitcode.Reader, self object.Handle, fam version.Family) (object.Record, error) {
	rec := &object.Ltype{}
	var err error
	if rec.Name, err = r.Text(); err != nil {
		return nil, err
	}
	if rec.Description, err = r.Text(); err != nil {
		return nil, err
	}
	if rec.PatternLength, err = r.BitDouble(); err != nil {
		return nil, err
	}
	dashes, err := r.BitShort()
	if err != nil {
		return nil, err
	}
	rec.DashCount = int16(dashes)
	return rec, nil
}

func encodeLtype(w *bitcode.Writer, obj *Object, fam version.Family, log *notify.Log) {
	rec := obj.Record.(*object.Ltype)
	w.WriteText(rec.Name)
	w.WriteText(rec.Description)
	w.WriteBitDouble(rec.PatternLength)
	w.WriteBitShort(int(rec.DashCount))
}
