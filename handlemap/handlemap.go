// Package handlemap codes the handle table section: the ordered map
// from object handle to the byte offset of the object's record in the
// objects section.
//
// The wire form is a sequence of chunks, each a big-endian uint16 byte
// length followed by that many bytes of entry pairs. An entry is an
// unsigned modular char (handle delta) followed by a signed modular
// char (offset delta); the running pair starts at (0, 0) and carries
// across chunk boundaries. A zero-length chunk terminates the table.
package handlemap

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/draftware/dwgkit/bitcode"
	"github.com/draftware/dwgkit/notify"
)

// ErrMalformed reports handle table bytes that cannot be a valid
// table regardless of leniency.
var ErrMalformed = errors.New("malformed handle table")

// maxChunkPayload bounds the entry bytes per chunk. Stays under the
// uint16 length prefix with room to spare, matching common writer
// practice for this section.
const maxChunkPayload = 2032

// Entry pairs a handle with the offset of its object record, relative
// to the start of the decompressed objects stream.
type Entry struct {
	Handle uint64
	Offset int64
}

// Table maps object handles to record offsets. The zero value is an
// empty table ready to use.
type Table struct {
	offsets map[uint64]int64
}

func (t *Table) init() {
	if t.offsets == nil {
		t.offsets = make(map[uint64]int64)
	}
}

// Set records the offset for handle, replacing any previous entry.
func (t *Table) Set(handle uint64, offset int64) {
	t.init()
	t.offsets[handle] = offset
}

// Offset returns the record offset for handle.
func (t *Table) Offset(handle uint64) (int64, bool) {
	off, ok := t.offsets[handle]
	return off, ok
}

func (t *Table) Len() int { return len(t.offsets) }

// Handles returns every handle in ascending order.
func (t *Table) Handles() []uint64 {
	out := make([]uint64, 0, len(t.offsets))
	for h := range t.offsets {
		out = append(out, h)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Entries returns the table in ascending handle order, the order
// object extraction walks it in.
func (t *Table) Entries() []Entry {
	handles := t.Handles()
	out := make([]Entry, len(handles))
	for i, h := range handles {
		out[i] = Entry{Handle: h, Offset: t.offsets[h]}
	}
	return out
}

// Decode parses a handle table section. A duplicate handle keeps the
// later entry and is reported on log as a warning; an entry with a
// null handle is skipped with a warning.
func Decode(data []byte, log *notify.Log) (*Table, error) {
	t := &Table{}
	t.init()
	var handle uint64
	var offset int64
	pos := 0
	for {
		if pos+2 > len(data) {
			return nil, fmt.Errorf("handle table at %d: %w", pos, bitcode.ErrTruncated)
		}
		chunkLen := int(data[pos])<<8 | int(data[pos+1])
		pos += 2
		if chunkLen == 0 {
			break
		}
		if pos+chunkLen > len(data) {
			return nil, fmt.Errorf("handle table chunk at %d: %w", pos, bitcode.ErrTruncated)
		}
		r := bitcode.NewReader(data[pos : pos+chunkLen])
		pos += chunkLen
		for r.Remaining() > 0 {
			hd, err := r.ModularChar()
			if err != nil {
				return nil, fmt.Errorf("handle table: %w", err)
			}
			od, err := r.SignedModularChar()
			if err != nil {
				return nil, fmt.Errorf("handle table: %w", err)
			}
			if hd > math.MaxUint64-handle {
				return nil, fmt.Errorf("%w: handle overflow", ErrMalformed)
			}
			handle += hd
			offset += od
			if offset < 0 {
				return nil, fmt.Errorf("%w: negative offset for handle %X", ErrMalformed, handle)
			}
			if handle == 0 {
				if log != nil {
					log.Add(notify.Event{
						Severity: notify.SeverityWarning,
						Code:     notify.CodeMalformedSection,
						Message:  "handle table entry with null handle skipped",
						Section:  "Handles",
					})
				}
				continue
			}
			if _, dup := t.offsets[handle]; dup && log != nil {
				log.Add(notify.Event{
					Severity: notify.SeverityWarning,
					Code:     notify.CodeDuplicateHandle,
					Message:  "duplicate handle, keeping the later entry",
					Handle:   handle,
					Section:  "Handles",
				})
			}
			t.offsets[handle] = offset
		}
	}
	if pos != len(data) {
		return nil, fmt.Errorf("%w: %d bytes after terminator", ErrMalformed, len(data)-pos)
	}
	return t, nil
}

// Encode serializes the table in ascending handle order, chunked and
// terminated. The result round-trips through Decode.
func (t *Table) Encode() ([]byte, error) {
	var out []byte
	var chunk []byte
	flush := func() {
		out = append(out, byte(len(chunk)>>8), byte(len(chunk)))
		out = append(out, chunk...)
		chunk = chunk[:0]
	}
	var prevHandle uint64
	var prevOffset int64
	for _, e := range t.Entries() {
		w := bitcode.NewWriter()
		w.WriteModularChar(e.Handle - prevHandle)
		w.WriteSignedModularChar(e.Offset - prevOffset)
		enc, err := w.Bytes()
		if err != nil {
			return nil, fmt.Errorf("handle table: %w", err)
		}
		if len(chunk)+len(enc) > maxChunkPayload {
			flush()
		}
		chunk = append(chunk, enc...)
		prevHandle, prevOffset = e.Handle, e.Offset
	}
	if len(chunk) > 0 {
		flush()
	}
	return append(out, 0, 0), nil
}
