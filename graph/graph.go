// Package graph assembles extracted objects into a resolved document:
// a handle-indexed pool plus the header variables that name its roots.
// Links stay handles, so cyclic ownership costs nothing; resolution
// only validates targets and clears the links that point nowhere.
package graph

import (
	"fmt"
	"sort"

	"github.com/draftware/dwgkit/classes"
	"github.com/draftware/dwgkit/headervars"
	"github.com/draftware/dwgkit/notify"
	"github.com/draftware/dwgkit/object"
	"github.com/draftware/dwgkit/preview"
	"github.com/draftware/dwgkit/summaryinfo"
	"github.com/draftware/dwgkit/version"
)

// Document is a fully resolved drawing. Classes, Summary and Preview
// mirror the optional file sections; they are zero/nil when the file
// has none.
type Document struct {
	Version version.Tag
	Header  headervars.Vars
	Classes classes.Table
	Summary *summaryinfo.Info
	Preview *preview.Section

	objects map[object.Handle]object.Record
}

func NewDocument() *Document {
	return &Document{objects: make(map[object.Handle]object.Record)}
}

func (d *Document) Len() int { return len(d.objects) }

// Object returns the record stored under h.
func (d *Document) Object(h object.Handle) (object.Record, bool) {
	rec, ok := d.objects[h]
	return rec, ok
}

// Put stores rec under h, replacing any previous record. The null
// handle is not storable and is ignored.
func (d *Document) Put(h object.Handle, rec object.Record) {
	if h.IsNull() || rec == nil {
		return
	}
	d.objects[h] = rec
}

// Handles returns every stored handle in ascending order.
func (d *Document) Handles() []object.Handle {
	out := make([]object.Handle, 0, len(d.objects))
	for h := range d.objects {
		out = append(out, h)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// MaxHandle returns the highest handle in use, or the null handle for
// an empty document.
func (d *Document) MaxHandle() object.Handle {
	var top object.Handle
	for h := range d.objects {
		if h > top {
			top = h
		}
	}
	return top
}

// Builder accumulates extracted objects and resolves them into a
// Document. Resolution is the second decode phase: every reference
// slot and named root is checked against the pool, and the ones whose
// target does not exist are cleared with a warning. A missing target
// is never fatal.
type Builder struct {
	doc *Document
	log *notify.Log
}

// NewBuilder returns a builder reporting on log. A nil log discards
// the diagnostics.
func NewBuilder(log *notify.Log) *Builder {
	return &Builder{doc: NewDocument(), log: log}
}

func (b *Builder) SetVersion(tag version.Tag) { b.doc.Version = tag }

func (b *Builder) SetHeader(vars headervars.Vars) { b.doc.Header = vars }

func (b *Builder) SetClasses(t classes.Table) { b.doc.Classes = t }

func (b *Builder) SetSummary(info *summaryinfo.Info) { b.doc.Summary = info }

func (b *Builder) SetPreview(sec *preview.Section) { b.doc.Preview = sec }

func (b *Builder) warn(e notify.Event) {
	if b.log != nil {
		e.Severity = notify.SeverityWarning
		b.log.Add(e)
	}
}

// Add stores a record under its handle. A handle seen twice keeps the
// later record and is reported as a duplicate.
func (b *Builder) Add(h object.Handle, rec object.Record) {
	if h.IsNull() || rec == nil {
		return
	}
	if _, dup := b.doc.objects[h]; dup {
		b.warn(notify.Event{
			Code:    notify.CodeDuplicateHandle,
			Message: fmt.Sprintf("object pool already holds %s, keeping the later record", h),
			Handle:  uint64(h),
		})
	}
	b.doc.objects[h] = rec
}

// Build resolves every reference and returns the document. The builder
// must not be used afterwards.
func (b *Builder) Build() *Document {
	doc := b.doc
	for _, h := range doc.Handles() {
		rec := doc.objects[h]
		holder := h
		rec.WalkRefs(func(role object.Role, target *object.Handle) {
			if target.IsNull() {
				return
			}
			if _, ok := doc.objects[*target]; !ok {
				b.warn(notify.Event{
					Code:    notify.CodeDanglingReference,
					Message: fmt.Sprintf("%s %s: %s reference to missing %s cleared", rec.Type(), holder, role, *target),
					Handle:  uint64(holder),
				})
				*target = object.Null
			}
		})
	}
	b.resolveRoots()
	if seed, top := doc.Header.HandleSeed, doc.MaxHandle(); seed <= top && top > 0 {
		b.warn(notify.Event{
			Code:    notify.CodeMalformedSection,
			Message: fmt.Sprintf("handle seed %s does not clear the highest handle %s", seed, top),
			Section: "Header",
		})
	}
	return doc
}

func (b *Builder) resolveRoots() {
	doc := b.doc
	roots := []struct {
		name string
		h    *object.Handle
	}{
		{"model-space", &doc.Header.ModelSpace},
		{"paper-space", &doc.Header.PaperSpace},
		{"block-control", &doc.Header.BlockControl},
		{"layer-control", &doc.Header.LayerControl},
		{"style-control", &doc.Header.StyleControl},
		{"ltype-control", &doc.Header.LtypeControl},
		{"current-layer", &doc.Header.CurrentLayer},
	}
	for _, root := range roots {
		if root.h.IsNull() {
			continue
		}
		if _, ok := doc.objects[*root.h]; !ok {
			b.warn(notify.Event{
				Code:    notify.CodeDanglingReference,
				Message: fmt.Sprintf("%s root names missing %s, cleared", root.name, *root.h),
				Section: "Header",
			})
			*root.h = object.Null
		}
	}
}
