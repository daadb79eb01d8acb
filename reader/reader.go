// Package reader decodes a drawing file image into a resolved
// document graph. Decoding never mutates the input; everything the
// caller gets back is freshly built.
//
// The pipeline is fixed: sniff the version, decode the family file
// header, reassemble sections, decode the handle table, extract one
// template per table entry (phase 1), then resolve references into a
// graph (phase 2). Damage that can be contained is reported on the
// notification log; damage that cannot is an error.
package reader

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/draftware/dwgkit/bitcode"
	"github.com/draftware/dwgkit/classes"
	"github.com/draftware/dwgkit/fileheader"
	"github.com/draftware/dwgkit/graph"
	"github.com/draftware/dwgkit/handlemap"
	"github.com/draftware/dwgkit/headervars"
	"github.com/draftware/dwgkit/notify"
	"github.com/draftware/dwgkit/preview"
	"github.com/draftware/dwgkit/summaryinfo"
	"github.com/draftware/dwgkit/template"
	"github.com/draftware/dwgkit/version"
)

// ErrLimitExceeded reports a section or page whose decompressed size
// exceeds Options.MaxSectionSize.
var ErrLimitExceeded = errors.New("section size limit exceeded")

const defaultMaxSectionSize = 1 << 30

// Options configures Decode. The zero value is a strict, sequential,
// silent decode.
type Options struct {
	// LenientChecksums degrades checksum mismatches and undecodable
	// pages from errors to warnings.
	LenientChecksums bool
	// Workers bounds the fan-out for page decompression and phase-1
	// extraction. 0 or 1 decodes sequentially.
	Workers int
	// SkipPreview leaves the preview section unread.
	SkipPreview bool
	// Logger receives debug traces. Diagnostics about the file itself
	// go to the returned notify.Log, not here. Nil is silent.
	Logger *slog.Logger
	// MaxSectionSize caps any single decompressed section or page.
	// 0 means 1 GiB.
	MaxSectionSize int64
}

func (o Options) maxSectionSize() int64 {
	if o.MaxSectionSize > 0 {
		return o.MaxSectionSize
	}
	return defaultMaxSectionSize
}

func (o Options) trace(msg string, args ...any) {
	if o.Logger != nil {
		o.Logger.Debug(msg, args...)
	}
}

// Decode parses a complete drawing file image. The returned log is
// non-nil even on error and holds whatever was diagnosed before the
// failure.
func Decode(ctx context.Context, data []byte, opts Options) (*graph.Document, *notify.Log, error) {
	log := &notify.Log{}

	tag, err := version.Sniff(data)
	if err != nil {
		return nil, log, err
	}
	opts.trace("decoding drawing", "version", string(tag), "family", tag.Family().String(), "bytes", len(data))

	cont, err := openContainer(data, tag, opts, log)
	if err != nil {
		return nil, log, fmt.Errorf("file header: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, log, err
	}

	varsData, err := requiredSection(ctx, cont, fileheader.SectionHeaderVars)
	if err != nil {
		return nil, log, err
	}
	vars, err := headervars.Decode(varsData)
	if err != nil {
		return nil, log, fmt.Errorf("header variables: %w", err)
	}

	classTable, err := optionalSection(ctx, cont, fileheader.SectionClasses, log, classes.Decode)
	if err != nil {
		return nil, log, err
	}

	tableData, err := requiredSection(ctx, cont, fileheader.SectionHandles)
	if err != nil {
		return nil, log, err
	}
	table, err := handlemap.Decode(tableData, log)
	if err != nil {
		return nil, log, fmt.Errorf("handle table: %w", err)
	}

	objectData, err := requiredSection(ctx, cont, fileheader.SectionObjects)
	if err != nil {
		return nil, log, err
	}
	if err := ctx.Err(); err != nil {
		return nil, log, err
	}

	entries := table.Entries()
	opts.trace("extracting objects", "count", len(entries), "stream", len(objectData))
	objs, err := extractAll(ctx, objectData, entries, tag.Family(), classTable, opts, log)
	if err != nil {
		return nil, log, err
	}

	b := graph.NewBuilder(log)
	b.SetVersion(tag)
	b.SetHeader(*vars)
	b.SetClasses(classTable)
	for _, obj := range objs {
		if obj != nil {
			b.Add(obj.Handle, obj.Record)
		}
	}

	summary, err := optionalSection(ctx, cont, fileheader.SectionSummaryInfo, log, summaryinfo.Decode)
	if err != nil {
		return nil, log, err
	}
	b.SetSummary(summary)

	if !opts.SkipPreview {
		thumb, err := optionalSection(ctx, cont, fileheader.SectionPreview, log, preview.Decode)
		if err != nil {
			return nil, log, err
		}
		b.SetPreview(thumb)
	}

	doc := b.Build()
	opts.trace("decoded drawing", "objects", doc.Len(), "warnings", len(log.Warnings()))
	return doc, log, nil
}

func requiredSection(ctx context.Context, c *container, kind fileheader.SectionKind) ([]byte, error) {
	data, err := c.section(ctx, kind)
	if err != nil {
		return nil, err
	}
	if data == nil {
		return nil, fmt.Errorf("%w: %s section missing", fileheader.ErrMalformed, kind.Name())
	}
	return data, nil
}

// optionalSection loads and decodes a section that files may omit.
// Absence returns the zero T; a section that is present but does not
// decode degrades to the zero T with a warning, so metadata damage
// never blocks the object graph.
func optionalSection[T any](ctx context.Context, c *container, kind fileheader.SectionKind, log *notify.Log, decode func([]byte) (T, error)) (T, error) {
	var zero T
	data, err := c.section(ctx, kind)
	if err != nil || data == nil {
		return zero, err
	}
	v, err := decode(data)
	if err != nil {
		log.Add(notify.Event{
			Severity: notify.SeverityWarning,
			Code:     notify.CodeDecodeFailed,
			Message:  fmt.Sprintf("%s section unreadable: %v", kind.Name(), err),
			Section:  kind.Name(),
		})
		return zero, nil
	}
	return v, nil
}

// extractAll runs phase 1: one template per handle table entry. The
// returned slice parallels entries; skipped objects leave nil holes.
func extractAll(ctx context.Context, stream []byte, entries []handlemap.Entry, fam version.Family, names classes.Table, opts Options, log *notify.Log) ([]*template.Object, error) {
	out := make([]*template.Object, len(entries))

	if opts.Workers > 1 {
		g, ctx := errgroup.WithContext(ctx)
		g.SetLimit(opts.Workers)
		for i, e := range entries {
			i, e := i, e
			g.Go(func() error {
				if err := ctx.Err(); err != nil {
					return err
				}
				obj, err := extractOne(stream, e, fam, names, log)
				if err != nil {
					return err
				}
				out[i] = obj
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return nil, err
		}
		return out, nil
	}

	for i, e := range entries {
		if i%256 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		obj, err := extractOne(stream, e, fam, names, log)
		if err != nil {
			return nil, err
		}
		out[i] = obj
	}
	return out, nil
}

// extractOne decodes the record a table entry points at. Unknown types
// and locally malformed bodies are skipped with a warning; a record
// that runs off the object stream is fatal.
func extractOne(stream []byte, e handlemap.Entry, fam version.Family, names classes.Table, log *notify.Log) (*template.Object, error) {
	obj, err := template.ExtractAt(stream, e.Offset, fam)
	var unknown *template.UnknownTypeError
	switch {
	case err == nil:
	case errors.As(err, &unknown):
		log.Add(notify.Event{
			Severity: notify.SeverityWarning,
			Code:     notify.CodeUnknownObjectType,
			Message:  fmt.Sprintf("object %X: type %s not supported, skipped", e.Handle, names.Name(unknown.Code)),
			Handle:   e.Handle,
			Section:  "Objects",
		})
		return nil, nil
	case errors.Is(err, bitcode.ErrTruncated):
		return nil, fmt.Errorf("object %X: %w", e.Handle, err)
	default:
		log.Add(notify.Event{
			Severity: notify.SeverityWarning,
			Code:     notify.CodeDecodeFailed,
			Message:  fmt.Sprintf("object %X unreadable, skipped: %v", e.Handle, err),
			Handle:   e.Handle,
			Section:  "Objects",
		})
		return nil, nil
	}
	if uint64(obj.Handle) != e.Handle {
		log.Add(notify.Event{
			Severity: notify.SeverityWarning,
			Code:     notify.CodeMalformedSection,
			Message:  fmt.Sprintf("handle table names %X, record body says %s; keeping the body handle", e.Handle, obj.Handle),
			Handle:   e.Handle,
			Section:  "Objects",
		})
	}
	return obj, nil
}
