package fileheader

import (
	"errors"
	"reflect"
	"testing"

	"github.com/draftware/dwgkit/bitcode"
)

func samplePageMap() *PageMap {
	return &PageMap{
		Sections: []SectionDesc{
			{ID: SectionHeaderVars, Name: "Header", DecompSize: 200, PageCount: 1},
			{ID: SectionObjects, Name: "Objects", DecompSize: 0x9000, PageCount: 2},
		},
		Pages: []PageEntry{
			{Section: SectionObjects, PageNo: 1, FileOffset: 0x100, CompSize: 0x80, DecompSize: 0x4000, Checksum: 3, InterleaveFactor: 1},
			{Section: SectionHeaderVars, PageNo: 0, FileOffset: 0x180, CompSize: 0x40, DecompSize: 200, Checksum: 1, InterleaveFactor: 1},
			{Section: SectionObjects, PageNo: 0, FileOffset: 0x1C0, CompSize: 0x90, DecompSize: 0x5000, Checksum: 2, InterleaveFactor: 3},
		},
	}
}

func TestPageMapRoundTrip(t *testing.T) {
	want := samplePageMap()
	got, err := DecodePageMap(want.Encode())
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("round trip mismatch\n got %+v\nwant %+v", got, want)
	}
}

func TestPageMapSectionPages(t *testing.T) {
	m := samplePageMap()
	pages := m.SectionPages(SectionObjects)
	if len(pages) != 2 {
		t.Fatalf("got %d object pages", len(pages))
	}
	if pages[0].PageNo != 0 || pages[1].PageNo != 1 {
		t.Fatalf("pages not in number order: %v", pages)
	}
	if got := m.SectionPages(SectionClasses); got != nil {
		t.Fatalf("unexpected pages for absent section: %v", got)
	}
	if _, ok := m.Section(SectionObjects); !ok {
		t.Fatal("objects descriptor missing")
	}
	if _, ok := m.Section(SectionPreview); ok {
		t.Fatal("phantom preview descriptor")
	}
}

func TestPageMapTiling(t *testing.T) {
	m := samplePageMap()
	if err := m.CheckTiling(0x100, 0x150); err != nil {
		t.Fatalf("exact tiling rejected: %v", err)
	}
	if err := m.CheckTiling(0x100, 0x200); !errors.Is(err, ErrMalformed) {
		t.Fatalf("short coverage accepted: %v", err)
	}
	if err := m.CheckTiling(0x80, 0x1D0); !errors.Is(err, ErrMalformed) {
		t.Fatalf("leading gap accepted: %v", err)
	}

	overlap := samplePageMap()
	overlap.Pages[1].FileOffset = 0x170
	if err := overlap.CheckTiling(0x100, 0x150); !errors.Is(err, ErrMalformed) {
		t.Fatalf("overlap accepted: %v", err)
	}
}

func TestDecodePageMapMalformed(t *testing.T) {
	good := samplePageMap().Encode()

	badID := samplePageMap()
	badID.Sections[0].ID = SectionKind(40)
	badID.Sections[0].Name = "Section40"

	badName := samplePageMap()
	badName.Sections[0].Name = "Headers"

	badPageSection := samplePageMap()
	badPageSection.Pages[0].Section = SectionKind(0)

	cases := []struct {
		name string
		data []byte
		want error
	}{
		{"empty", nil, bitcode.ErrTruncated},
		{"cut mid page", good[:len(good)-5], bitcode.ErrTruncated},
		{"trailing bytes", append(good, 0), ErrMalformed},
		{"bad section id", badID.Encode(), ErrMalformed},
		{"name mismatch", badName.Encode(), ErrMalformed},
		{"bad page section", badPageSection.Encode(), ErrMalformed},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := DecodePageMap(tc.data); !errors.Is(err, tc.want) {
				t.Fatalf("got %v, want %v", err, tc.want)
			}
		})
	}
}
