package fileheader

import (
	"bytes"
	"errors"
	"reflect"
	"testing"

	"github.com/draftware/dwgkit/bitcode"
	"github.com/draftware/dwgkit/checksum"
	"github.com/draftware/dwgkit/notify"
	"github.com/draftware/dwgkit/version"
)

func sampleLegacy() *Legacy {
	return &Legacy{
		Preamble: Preamble{
			Version:     version.R2000,
			Maintenance: 6,
			Codepage:    30,
		},
		Locators: []Locator{
			{Kind: SectionHeaderVars, Offset: 97, Size: 120},
			{Kind: SectionClasses, Offset: 217, Size: 44},
			{Kind: SectionHandles, Offset: 261, Size: 18},
			{Kind: SectionObjects, Offset: 279, Size: 512},
		},
	}
}

func TestLegacyRoundTrip(t *testing.T) {
	want := sampleLegacy()
	enc, err := want.Encode(nil)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if len(enc) != want.HeaderSize() {
		t.Fatalf("encoded %d bytes, HeaderSize says %d", len(enc), want.HeaderSize())
	}
	got, err := DecodeLegacy(enc)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("round trip mismatch\n got %+v\nwant %+v", got, want)
	}
}

func TestLegacySection(t *testing.T) {
	h := sampleLegacy()
	enc, err := h.Encode(nil)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	file := make([]byte, 279+512)
	copy(file, enc)
	for i := 0; i < 120; i++ {
		file[97+i] = byte(i)
	}
	sec, err := h.Section(file, SectionHeaderVars)
	if err != nil {
		t.Fatalf("section: %v", err)
	}
	if len(sec) != 120 || sec[0] != 0 || sec[119] != 119 {
		t.Fatalf("wrong section slice: len %d", len(sec))
	}
	if _, err := h.Section(file, SectionPreview); !errors.Is(err, ErrMalformed) {
		t.Fatalf("missing locator: got %v", err)
	}
	if _, err := h.Section(file[:200], SectionObjects); !errors.Is(err, bitcode.ErrTruncated) {
		t.Fatalf("out of range locator: got %v", err)
	}
}

func TestDecodeLegacyMalformed(t *testing.T) {
	good, err := sampleLegacy().Encode(nil)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	cases := []struct {
		name string
		data []byte
		want error
	}{
		{"short", good[:20], bitcode.ErrTruncated},
		{"truncated locators", good[:40], bitcode.ErrTruncated},
		{"wrong family", append([]byte(version.R2004), good[6:]...), ErrMalformed},
		{"unknown magic", append([]byte("AC9999"), good[6:]...), version.ErrUnsupported},
	}
	badID := bytes.Clone(good)
	badID[legacyLocatorBase] = 9
	cases = append(cases, struct {
		name string
		data []byte
		want error
	}{"bad locator id", badID, ErrMalformed})

	badSentinel := bytes.Clone(good)
	badSentinel[len(badSentinel)-2] ^= 0xFF
	cases = append(cases, struct {
		name string
		data []byte
		want error
	}{"bad sentinel", badSentinel, ErrMalformed})

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := DecodeLegacy(tc.data); !errors.Is(err, tc.want) {
				t.Fatalf("got %v, want %v", err, tc.want)
			}
		})
	}
}

func samplePaged() *Paged {
	return &Paged{
		Preamble: Preamble{
			Version:     version.R2004,
			Maintenance: 105,
			Codepage:    30,
		},
		SummaryInfoOffset: 0x480,
		PageMapOffset:     0x2000,
		PageMapCompSize:   211,
		PageMapDecompSize: 388,
		PageMapCRC:        0xDEADBEEF,
		DataOffset:        0x100,
		DataSize:          0x1F00,
		FileSize:          0x2100,
		PageCount:         3,
		SectionCount:      6,
		PageChecksumSeed:  0x4C498F31,
	}
}

func TestPagedRoundTrip(t *testing.T) {
	want := samplePaged()
	enc, err := want.Encode(nil)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if len(enc) != pagedHeaderSize {
		t.Fatalf("encoded %d bytes, want %d", len(enc), pagedHeaderSize)
	}
	got, err := DecodePaged(enc, true, nil)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("round trip mismatch\n got %+v\nwant %+v", got, want)
	}
}

func TestPagedHiddenPlaintext(t *testing.T) {
	enc, err := samplePaged().Encode(nil)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if bytes.Contains(enc, []byte(pagedFileID)) {
		t.Fatal("file id appears unmasked in the encoded header")
	}
}

func TestPagedChecksum(t *testing.T) {
	enc, err := samplePaged().Encode(nil)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	// Page count field inside the masked block.
	enc[pagedBlockOffset+56] ^= 0x01

	if _, err := DecodePaged(enc, true, nil); !errors.Is(err, checksum.ErrMismatch) {
		t.Fatalf("strict: got %v, want checksum mismatch", err)
	}

	log := &notify.Log{}
	got, err := DecodePaged(enc, false, log)
	if err != nil {
		t.Fatalf("lenient: %v", err)
	}
	if got.PageCount == samplePaged().PageCount {
		t.Fatal("lenient decode did not surface the stored field value")
	}
	events := log.Filter(notify.CodeChecksumMismatch)
	if len(events) != 1 || events[0].Severity != notify.SeverityWarning {
		t.Fatalf("want one checksum warning, got %v", log.Events())
	}
	if events[0].Section != "FileHeader" {
		t.Fatalf("warning section = %q", events[0].Section)
	}
}

func TestDecodePagedMalformed(t *testing.T) {
	good, err := samplePaged().Encode(nil)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}

	badID := bytes.Clone(good)
	badID[pagedBlockOffset] ^= 0xFF
	badTerm := bytes.Clone(good)
	badTerm[36] ^= 0x01

	cases := []struct {
		name string
		data []byte
		want error
	}{
		{"short", good[:100], bitcode.ErrTruncated},
		{"wrong family", append([]byte(version.R2000), good[6:]...), ErrMalformed},
		{"bad file id", badID, ErrMalformed},
		{"bad terminator", badTerm, ErrMalformed},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := DecodePaged(tc.data, false, nil); !errors.Is(err, tc.want) {
				t.Fatalf("got %v, want %v", err, tc.want)
			}
		})
	}
}

func sampleInterleaved() *Interleaved {
	return &Interleaved{
		Preamble: Preamble{
			Version:     version.R2007,
			Maintenance: 50,
			Codepage:    30,
		},
		FileSize:           0x3000,
		PageMapOffset:      0x2800,
		PageMapCompSize:    190,
		PageMapDecompSize:  360,
		PageMapCompCRC:     0x1122334455667788,
		PageMapDecompCRC:   0x8877665544332211,
		PageChecksumSeed:   0x6C4205EA,
		HeaderChecksumSeed: 0x34AEF219B2C06901,
		PageCount:          4,
		SectionCount:       6,
		PageMapID:          7,
		SectionMapID:       8,
	}
}

func TestInterleavedRoundTrip(t *testing.T) {
	want := sampleInterleaved()
	enc, err := want.Encode(nil)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if len(enc) != interleavedBlockOffset+HeaderBlockSize() {
		t.Fatalf("encoded %d bytes, want %d", len(enc), interleavedBlockOffset+HeaderBlockSize())
	}
	got, err := DecodeInterleaved(enc, true, nil)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("round trip mismatch\n got %+v\nwant %+v", got, want)
	}
}

// Every meaningful payload byte lands at a block position that is a
// multiple of three, so the last one sits at offset 477 of the block.
// Losing the 239 bytes after it must not change the decode at all.
func TestInterleavedTruncatedPadding(t *testing.T) {
	want := sampleInterleaved()
	enc, err := want.Encode(nil)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	cut := enc[:interleavedBlockOffset+478]
	got, err := DecodeInterleaved(cut, true, nil)
	if err != nil {
		t.Fatalf("decode after padding cut: %v", err)
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("padding cut changed fields\n got %+v\nwant %+v", got, want)
	}
}

func TestInterleavedTruncatedFields(t *testing.T) {
	enc, err := sampleInterleaved().Encode(nil)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	// A cut this deep zero-fills the correction factor field.
	cut := enc[:interleavedBlockOffset+100]
	if _, err := DecodeInterleaved(cut, false, nil); !errors.Is(err, ErrMalformed) {
		t.Fatalf("got %v, want malformed", err)
	}
}

func TestInterleavedChecksum(t *testing.T) {
	want := sampleInterleaved()
	enc, err := want.Encode(nil)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	// Block position 24 carries payload byte 8, the file size's low
	// byte: covered by the checksum, not validated as a field.
	enc[interleavedBlockOffset+24] ^= 0x01

	if _, err := DecodeInterleaved(enc, true, nil); !errors.Is(err, checksum.ErrMismatch) {
		t.Fatalf("strict: got %v, want checksum mismatch", err)
	}

	log := &notify.Log{}
	got, err := DecodeInterleaved(enc, false, log)
	if err != nil {
		t.Fatalf("lenient: %v", err)
	}
	if got.FileSize == want.FileSize {
		t.Fatal("lenient decode did not surface the stored field value")
	}
	if len(log.Filter(notify.CodeChecksumMismatch)) != 1 {
		t.Fatalf("want one checksum warning, got %v", log.Events())
	}
}

func TestSectionKindNames(t *testing.T) {
	for k := SectionHeaderVars; k <= SectionPreview; k++ {
		if !k.Valid() {
			t.Fatalf("%d should be valid", k)
		}
		if k.Name() == "" {
			t.Fatalf("%d has no name", k)
		}
	}
	if SectionKind(0).Valid() || SectionKind(7).Valid() {
		t.Fatal("out of range kinds reported valid")
	}
	if got := SectionKind(9).Name(); got != "Section9" {
		t.Fatalf("fallback name = %q", got)
	}
}
