// Package writer serializes a document into the on-disk form of a
// target revision. It is the inverse of package reader: section
// streams are encoded first, then laid out the way the target family
// stores them, legacy files as contiguous located sections, paged and
// interleaved files as compressed, checksummed pages behind a page
// map.
//
// The document is never modified. Fields the target family cannot
// store are dropped from the output with warnings on the returned
// log.
package writer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/draftware/dwgkit/fileheader"
	"github.com/draftware/dwgkit/graph"
	"github.com/draftware/dwgkit/handlemap"
	"github.com/draftware/dwgkit/notify"
	"github.com/draftware/dwgkit/template"
	"github.com/draftware/dwgkit/version"
)

// ErrUnsupportedTarget reports an encode against a revision this
// module only reads.
var ErrUnsupportedTarget = errors.New("revision is not a supported encode target")

// defaultCodepage is the codepage identifier stamped into every
// preamble this writer emits.
const defaultCodepage = 30

// Options tunes an Encode call. The zero value encodes sequentially
// without tracing.
type Options struct {
	// Workers caps concurrent page compression for the paged and
	// interleaved families. Values below two compress sequentially.
	Workers int

	// Logger receives debug traces of the encode pipeline. Nil
	// disables tracing.
	Logger *slog.Logger
}

func (o Options) trace(msg string, args ...any) {
	if o.Logger != nil {
		o.Logger.Debug(msg, args...)
	}
}

// Encode serializes doc into the on-disk form of the target revision.
// The returned log carries a warning for every field the target
// family cannot represent and for every optional section that failed
// to encode; the error is reserved for conditions that void the whole
// file.
func Encode(ctx context.Context, doc *graph.Document, target version.Tag, opts Options) ([]byte, *notify.Log, error) {
	log := &notify.Log{}
	if !target.Encodable() {
		return nil, log, fmt.Errorf("%s: %w", target, ErrUnsupportedTarget)
	}
	opts.trace("encoding drawing", "target", string(target), "objects", doc.Len())

	sections, err := sectionPayloads(ctx, doc, target.Family(), log)
	if err != nil {
		return nil, log, err
	}

	var out []byte
	switch target.Family() {
	case version.FamilyLegacy:
		out, err = assembleLegacy(target, sections)
	case version.FamilyPaged:
		out, err = assemblePaged(ctx, target, sections, opts)
	case version.FamilyInterleaved:
		out, err = assembleInterleaved(ctx, target, sections, opts)
	}
	if err != nil {
		return nil, log, err
	}
	opts.trace("encoded drawing", "bytes", len(out))
	return out, log, nil
}

// sectionPayloads encodes every section stream the file will store.
// HeaderVars, Handles and Objects are always present; the optional
// sections only when the document carries them.
func sectionPayloads(ctx context.Context, doc *graph.Document, fam version.Family, log *notify.Log) (map[fileheader.SectionKind][]byte, error) {
	stream, table, err := encodeObjects(ctx, doc, fam, log)
	if err != nil {
		return nil, err
	}

	// The stored seed must clear every handle in the pool. A seed the
	// document already holds above that is preserved.
	vars := doc.Header
	if top := doc.MaxHandle(); vars.HandleSeed <= top {
		vars.HandleSeed = top + 1
	}
	varsData, err := vars.Encode()
	if err != nil {
		return nil, fmt.Errorf("header variables: %w", err)
	}

	sections := map[fileheader.SectionKind][]byte{
		fileheader.SectionHeaderVars: varsData,
		fileheader.SectionHandles:    table,
		fileheader.SectionObjects:    stream,
	}
	if len(doc.Classes) > 0 {
		optionalPayload(sections, fileheader.SectionClasses, log, doc.Classes.Encode)
	}
	if doc.Summary != nil {
		optionalPayload(sections, fileheader.SectionSummaryInfo, log, doc.Summary.Encode)
	}
	if doc.Preview != nil {
		optionalPayload(sections, fileheader.SectionPreview, log, doc.Preview.Encode)
	}
	return sections, nil
}

// optionalPayload encodes one optional section. A section that does
// not encode is left out of the file with a warning instead of
// failing the document.
func optionalPayload(sections map[fileheader.SectionKind][]byte, kind fileheader.SectionKind, log *notify.Log, encode func() ([]byte, error)) {
	data, err := encode()
	if err != nil {
		log.Add(notify.Event{
			Severity: notify.SeverityWarning,
			Code:     notify.CodeEncodeFailed,
			Message:  fmt.Sprintf("%s section not encodable, omitted: %v", kind.Name(), err),
			Section:  kind.Name(),
		})
		return
	}
	sections[kind] = data
}

// encodeObjects emits every record in ascending handle order plus the
// handle table locating each one in the stream.
func encodeObjects(ctx context.Context, doc *graph.Document, fam version.Family, log *notify.Log) (stream, table []byte, err error) {
	tab := &handlemap.Table{}
	for i, h := range doc.Handles() {
		if i%256 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, nil, err
			}
		}
		rec, _ := doc.Object(h)
		off := int64(len(stream))
		stream, err = template.AppendRecord(stream, &template.Object{Handle: h, Record: rec}, fam, log)
		if err != nil {
			return nil, nil, fmt.Errorf("object %s: %w", h, err)
		}
		tab.Set(uint64(h), off)
	}
	table, err = tab.Encode()
	if err != nil {
		return nil, nil, fmt.Errorf("handle table: %w", err)
	}
	return stream, table, nil
}
