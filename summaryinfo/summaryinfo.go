// Package summaryinfo codecs the summary information section: document
// metadata (title, author, timestamps) plus free-form custom
// properties. The section is optional; drawings written by tools often
// omit it entirely.
package summaryinfo

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/draftware/dwgkit/bitcode"
)

// ErrMalformed reports a summary section that does not parse cleanly.
var ErrMalformed = errors.New("malformed summary info section")

// unixEpochJulianDay is the Julian day number of 1970-01-01.
const unixEpochJulianDay = 2440588

// Timestamp is a drawing timestamp: a Julian day number plus
// milliseconds past midnight. The zero value means "not recorded".
type Timestamp struct {
	JulianDay uint32
	Millis    uint32
}

// Time converts to UTC. The zero Timestamp converts to the zero Time.
func (ts Timestamp) Time() time.Time {
	if ts == (Timestamp{}) {
		return time.Time{}
	}
	days := int64(ts.JulianDay) - unixEpochJulianDay
	return time.Unix(days*86400, int64(ts.Millis)*int64(time.Millisecond)).UTC()
}

// At converts a Time to a Timestamp, truncating below milliseconds.
// Times before the Julian epoch are not representable and map to the
// zero Timestamp.
func At(t time.Time) Timestamp {
	if t.IsZero() {
		return Timestamp{}
	}
	unix := t.Unix()
	days := unix / 86400
	if unix < 0 && unix%86400 != 0 {
		days--
	}
	jd := days + unixEpochJulianDay
	if jd < 0 || jd > math.MaxUint32 {
		return Timestamp{}
	}
	rem := t.Sub(time.Unix(days*86400, 0))
	return Timestamp{JulianDay: uint32(jd), Millis: uint32(rem / time.Millisecond)}
}

// Property is one custom key/value pair. Order is preserved.
type Property struct {
	Key   string
	Value string
}

// Info is the decoded summary information.
type Info struct {
	Title       string
	Subject     string
	Author      string
	Keywords    string
	Comments    string
	LastSavedBy string
	Created     Timestamp
	Updated     Timestamp
	Properties  []Property
}

// Decode parses a summary info section.
func Decode(data []byte) (*Info, error) {
	r := bitcode.NewReader(data)
	var info Info
	for _, dst := range []*string{
		&info.Title, &info.Subject, &info.Author,
		&info.Keywords, &info.Comments, &info.LastSavedBy,
	} {
		s, err := r.Text()
		if err != nil {
			return nil, err
		}
		*dst = s
	}
	for _, dst := range []*uint32{
		&info.Created.JulianDay, &info.Created.Millis,
		&info.Updated.JulianDay, &info.Updated.Millis,
	} {
		v, err := r.RawLong()
		if err != nil {
			return nil, err
		}
		*dst = v
	}
	count, err := r.BitShort()
	if err != nil {
		return nil, err
	}
	if count < 0 {
		return nil, fmt.Errorf("%w: negative property count %d", ErrMalformed, count)
	}
	for i := 0; i < count; i++ {
		key, err := r.Text()
		if err != nil {
			return nil, err
		}
		val, err := r.Text()
		if err != nil {
			return nil, err
		}
		info.Properties = append(info.Properties, Property{Key: key, Value: val})
	}
	if r.Remaining() >= 8 {
		return nil, fmt.Errorf("%w: %d trailing bits", ErrMalformed, r.Remaining())
	}
	return &info, nil
}

// Encode serializes the summary info section.
func (info *Info) Encode() ([]byte, error) {
	if len(info.Properties) > math.MaxInt16 {
		return nil, fmt.Errorf("%w: %d properties exceed the count field", ErrMalformed, len(info.Properties))
	}
	w := bitcode.NewWriter()
	for _, s := range []string{
		info.Title, info.Subject, info.Author,
		info.Keywords, info.Comments, info.LastSavedBy,
	} {
		w.WriteText(s)
	}
	for _, v := range []uint32{
		info.Created.JulianDay, info.Created.Millis,
		info.Updated.JulianDay, info.Updated.Millis,
	} {
		w.WriteRawLong(v)
	}
	w.WriteBitShort(len(info.Properties))
	for _, p := range info.Properties {
		w.WriteText(p.Key)
		w.WriteText(p.Value)
	}
	return w.Bytes()
}
