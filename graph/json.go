package graph

import (
	"io"

	json "github.com/goccy/go-json"

	"github.com/draftware/dwgkit/classes"
	"github.com/draftware/dwgkit/headervars"
	"github.com/draftware/dwgkit/object"
	"github.com/draftware/dwgkit/summaryinfo"
)

type jsonObject struct {
	Handle object.Handle `json:"handle"`
	Type   string        `json:"type"`
	Record object.Record `json:"record"`
}

type jsonDocument struct {
	Version string            `json:"version"`
	Header  headervars.Vars   `json:"header"`
	Classes classes.Table     `json:"classes,omitempty"`
	Summary *summaryinfo.Info `json:"summary,omitempty"`
	Objects []jsonObject      `json:"objects"`
}

// WriteJSON dumps the document as indented JSON, objects in ascending
// handle order. Preview payloads are binary and stay out of the dump.
// The dump is for inspection and diffing, not a load format.
func (d *Document) WriteJSON(w io.Writer) error {
	out := jsonDocument{
		Version: string(d.Version),
		Header:  d.Header,
		Classes: d.Classes,
		Summary: d.Summary,
		Objects: make([]jsonObject, 0, d.Len()),
	}
	for _, h := range d.Handles() {
		rec := d.objects[h]
		out.Objects = append(out.Objects, jsonObject{
			Handle: h,
			Type:   rec.Type().String(),
			Record: rec,
		})
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}
