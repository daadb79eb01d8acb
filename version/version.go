// Package version identifies drawing file revisions by the 6-byte ASCII
// magic at offset 0 and groups them into container families.
package version

import (
	"errors"
	"fmt"
)

// Tag is the 6-byte release magic, e.g. "AC1015".
type Tag string

const (
	R13   Tag = "AC1012"
	R14   Tag = "AC1014"
	R2000 Tag = "AC1015"
	R2004 Tag = "AC1018"
	R2007 Tag = "AC1021"
	R2010 Tag = "AC1024"
	R2013 Tag = "AC1027"
	R2018 Tag = "AC1032"
)

// MagicLen is the length of the release magic in bytes.
const MagicLen = 6

// Family selects the container layout shared by a group of revisions.
type Family int

const (
	FamilyUnknown Family = iota
	// FamilyLegacy files store uncompressed sections located by a fixed
	// locator table directly after the preamble.
	FamilyLegacy
	// FamilyPaged files store sections as independently compressed and
	// checksummed pages located by a page map.
	FamilyPaged
	// FamilyInterleaved files are paged, but the file header block is
	// spread across redundant interleaved sub-streams.
	FamilyInterleaved
)

func (f Family) String() string {
	switch f {
	case FamilyLegacy:
		return "legacy"
	case FamilyPaged:
		return "paged"
	case FamilyInterleaved:
		return "interleaved"
	default:
		return "unknown"
	}
}

// ErrUnsupported reports a magic outside the eight supported revisions.
var ErrUnsupported = errors.New("unsupported drawing version")

// Sniff reads the release magic from the start of a file image.
func Sniff(data []byte) (Tag, error) {
	if len(data) < MagicLen {
		return "", fmt.Errorf("%w: file shorter than magic", ErrUnsupported)
	}
	t := Tag(data[:MagicLen])
	if !t.Known() {
		return "", fmt.Errorf("%w: magic %q", ErrUnsupported, string(t))
	}
	return t, nil
}

// All lists the supported revisions from oldest to newest.
func All() []Tag {
	return []Tag{R13, R14, R2000, R2004, R2007, R2010, R2013, R2018}
}

func (t Tag) Known() bool {
	return t.Family() != FamilyUnknown
}

func (t Tag) Family() Family {
	switch t {
	case R13, R14, R2000:
		return FamilyLegacy
	case R2004, R2010, R2013, R2018:
		return FamilyPaged
	case R2007:
		return FamilyInterleaved
	default:
		return FamilyUnknown
	}
}

// Encodable reports whether the revision is a supported write target.
// The two earliest members are read-only: their on-disk quirks predate
// the layouts this module writes.
func (t Tag) Encodable() bool {
	switch t {
	case R13, R14:
		return false
	default:
		return t.Known()
	}
}

func (t Tag) String() string {
	switch t {
	case R13:
		return "R13 (AC1012)"
	case R14:
		return "R14 (AC1014)"
	case R2000:
		return "R2000 (AC1015)"
	case R2004:
		return "R2004 (AC1018)"
	case R2007:
		return "R2007 (AC1021)"
	case R2010:
		return "R2010 (AC1024)"
	case R2013:
		return "R2013 (AC1027)"
	case R2018:
		return "R2018 (AC1032)"
	default:
		return fmt.Sprintf("unknown (%s)", string(t))
	}
}
