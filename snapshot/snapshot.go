// Package snapshot persists a resolved document as a compact binary
// cache, so repeated opens of the same drawing skip the full decode
// pipeline. The frame is a fixed magic, an XXH3 digest and a
// zstd-compressed CBOR payload. The CBOR encoding is deterministic
// (RFC 8949 Core Deterministic Encoding), so the same document always
// snapshots to identical bytes.
//
// A snapshot is a cache format, not an interchange format: it is
// versioned by its magic and rejected wholesale on any mismatch.
package snapshot

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/fxamacker/cbor/v2"
	"github.com/klauspost/compress/zstd"
	"github.com/zeebo/xxh3"

	"github.com/draftware/dwgkit/checksum"
	"github.com/draftware/dwgkit/classes"
	"github.com/draftware/dwgkit/graph"
	"github.com/draftware/dwgkit/headervars"
	"github.com/draftware/dwgkit/object"
	"github.com/draftware/dwgkit/preview"
	"github.com/draftware/dwgkit/summaryinfo"
	"github.com/draftware/dwgkit/version"
)

// ErrMalformed reports bytes that are not a snapshot frame, or a frame
// whose contents cannot be restored into a document.
var ErrMalformed = errors.New("malformed snapshot")

const magic = "DWGSNAP1"

// frame: the magic, an 8-byte LE XXH3 of the compressed payload, then
// the payload itself.
const frameHeaderSize = len(magic) + 8

var (
	encMode cbor.EncMode
	decMode cbor.DecMode
)

func init() {
	var err error
	encMode, err = cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic("snapshot: CBOR encoder initialization failed: " + err.Error())
	}
	decMode, err = cbor.DecOptions{}.DecMode()
	if err != nil {
		panic("snapshot: CBOR decoder initialization failed: " + err.Error())
	}
}

// Shared zstd encoder/decoder, both safe for concurrent use.
// Construction builds internal state tables, so one of each is
// allocated up front instead of per call.
var (
	zstdEncoder, _ = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedFastest))
	zstdDecoder, _ = zstd.NewReader(nil)
)

// storedObject carries one record with its pool key. The record body
// stays raw until the type code has named the concrete Go type to
// decode it into.
type storedObject struct {
	Handle object.Handle
	Type   object.TypeCode
	Record cbor.RawMessage
}

type payload struct {
	Version version.Tag
	Header  headervars.Vars
	Classes classes.Table
	Summary *summaryinfo.Info
	Preview *preview.Section
	Objects []storedObject
}

// Save serializes doc into a snapshot frame. Objects are stored in
// ascending handle order.
func Save(doc *graph.Document) ([]byte, error) {
	p := payload{
		Version: doc.Version,
		Header:  doc.Header,
		Classes: doc.Classes,
		Summary: doc.Summary,
		Preview: doc.Preview,
		Objects: make([]storedObject, 0, doc.Len()),
	}
	for _, h := range doc.Handles() {
		rec, _ := doc.Object(h)
		raw, err := encMode.Marshal(rec)
		if err != nil {
			return nil, fmt.Errorf("snapshot %s %s: %w", rec.Type(), h, err)
		}
		p.Objects = append(p.Objects, storedObject{Handle: h, Type: rec.Type(), Record: raw})
	}
	body, err := encMode.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("snapshot payload: %w", err)
	}
	return frame(zstdEncoder.EncodeAll(body, nil)), nil
}

func frame(comp []byte) []byte {
	out := make([]byte, frameHeaderSize, frameHeaderSize+len(comp))
	copy(out, magic)
	binary.LittleEndian.PutUint64(out[len(magic):], xxh3.Hash(comp))
	return append(out, comp...)
}

// Is reports whether data starts with the snapshot magic. Callers that
// accept both drawings and snapshots dispatch on this.
func Is(data []byte) bool {
	return len(data) >= len(magic) && string(data[:len(magic)]) == magic
}

// Load restores the document a frame holds. The digest guards the
// whole payload, so any flipped byte surfaces as a checksum mismatch
// rather than a misdecoded graph.
func Load(data []byte) (*graph.Document, error) {
	if len(data) < frameHeaderSize || string(data[:len(magic)]) != magic {
		return nil, fmt.Errorf("%w: bad frame header", ErrMalformed)
	}
	comp := data[frameHeaderSize:]
	if got, stored := xxh3.Hash(comp), binary.LittleEndian.Uint64(data[len(magic):]); got != stored {
		return nil, fmt.Errorf("snapshot frame: xxh3 %016X, stored %016X: %w", got, stored, checksum.ErrMismatch)
	}
	body, err := zstdDecoder.DecodeAll(comp, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: zstd: %w", ErrMalformed, err)
	}
	var p payload
	if err := decMode.Unmarshal(body, &p); err != nil {
		return nil, fmt.Errorf("%w: payload: %w", ErrMalformed, err)
	}

	doc := graph.NewDocument()
	doc.Version = p.Version
	doc.Header = p.Header
	doc.Classes = p.Classes
	doc.Summary = p.Summary
	doc.Preview = p.Preview
	for _, so := range p.Objects {
		rec := object.New(so.Type)
		if rec == nil {
			return nil, fmt.Errorf("%w: no record type %d", ErrMalformed, so.Type)
		}
		if err := decMode.Unmarshal(so.Record, rec); err != nil {
			return nil, fmt.Errorf("%w: %s %s: %w", ErrMalformed, so.Type, so.Handle, err)
		}
		doc.Put(so.Handle, rec)
	}
	return doc, nil
}
