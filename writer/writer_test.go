package writer

import (
	"bytes"
	"context"
	"errors"
	"testing"

	fuzz "github.com/google/gofuzz"

	"github.com/draftware/dwgkit/classes"
	"github.com/draftware/dwgkit/fileheader"
	"github.com/draftware/dwgkit/geom"
	"github.com/draftware/dwgkit/graph"
	"github.com/draftware/dwgkit/headervars"
	"github.com/draftware/dwgkit/notify"
	"github.com/draftware/dwgkit/object"
	"github.com/draftware/dwgkit/preview"
	"github.com/draftware/dwgkit/reader"
	"github.com/draftware/dwgkit/summaryinfo"
	"github.com/draftware/dwgkit/version"
)

// flatDocument builds a drawing without family-specific links, so its
// reference topology survives every encodable target unchanged.
func flatDocument() *graph.Document {
	b := graph.NewBuilder(nil)
	b.SetVersion(version.R2000)
	b.SetHeader(headervars.Vars{
		HandleSeed:   0x200,
		ModelSpace:   0x30,
		LayerControl: 0x20,
		CurrentLayer: 0x10,
		Measurement:  headervars.Metric,
		ExtMin:       geom.Point3{X: -5, Y: -5},
		ExtMax:       geom.Point3{X: 205, Y: 105},
	})
	ctl := &object.LayerControl{}
	ctl.Entries = []object.Handle{0x10}
	b.Add(0x10, &object.Layer{Name: "0", ColorIndex: 7})
	b.Add(0x11, &object.Style{Name: "Standard", FontFile: "txt.shx"})
	b.Add(0x20, ctl)
	b.Add(0x30, &object.BlockRecord{Name: "*Model_Space", IsSpace: true})
	b.Add(0x40, &object.Line{
		Entity: object.Entity{Owner: 0x30, Layer: 0x10},
		Start:  geom.Point3{X: 0, Y: 0},
		End:    geom.Point3{X: 200, Y: 100},
	})
	b.Add(0x41, &object.Circle{
		Entity: object.Entity{Owner: 0x30, Layer: 0x10},
		Center: geom.Point3{X: 100, Y: 50},
		Radius: 25,
	})
	b.Add(0x42, &object.MText{
		Entity:    object.Entity{Owner: 0x30, Layer: 0x10},
		Insertion: geom.Point3{X: 10, Y: 90},
		RectWidth: 80,
		Height:    2.5,
		Contents:  "site plan",
		Style:     0x11,
	})
	b.Add(0x43, &object.LWPolyline{
		Entity:   object.Entity{Owner: 0x30, Layer: 0x10},
		Flags:    1,
		Vertices: []geom.Point2{{X: 0, Y: 0}, {X: 40, Y: 0}, {X: 40, Y: 30}},
	})
	b.Add(0x50, &object.Dictionary{Names: []string{"layouts"}, Entries: []object.Handle{0x51}})
	b.Add(0x51, &object.Dictionary{})
	doc := b.Build()
	doc.Classes = classes.Table{{
		Num: 500, AppName: "ObjectDBX Classes", CppName: "AcDbPlaceholder", DXFName: "ACDBPLACEHOLDER",
	}}
	doc.Summary = &summaryinfo.Info{
		Title:   "round trip fixture",
		Author:  "tests",
		Created: summaryinfo.Timestamp{JulianDay: 2451545, Millis: 43_200_000},
	}
	doc.Preview = &preview.Section{Images: []preview.Thumbnail{
		{Kind: preview.KindBMP, Data: []byte{40, 0, 0, 0, 2, 0}},
	}}
	return doc
}

func encodableTargets() []version.Tag {
	var out []version.Tag
	for _, tag := range version.All() {
		if tag.Encodable() {
			out = append(out, tag)
		}
	}
	return out
}

func TestRoundTripAllTargets(t *testing.T) {
	doc := flatDocument()
	want, err := doc.Fingerprint(graph.AlgXXHash3)
	if err != nil {
		t.Fatal(err)
	}
	for _, target := range encodableTargets() {
		t.Run(string(target), func(t *testing.T) {
			out, log, err := Encode(context.Background(), doc, target, Options{})
			if err != nil {
				t.Fatal(err)
			}
			if log.Len() != 0 {
				t.Fatalf("encode produced events: %+v", log.Events())
			}
			got, rlog, err := reader.Decode(context.Background(), out, reader.Options{})
			if err != nil {
				t.Fatal(err)
			}
			if rlog.Len() != 0 {
				t.Fatalf("decode produced events: %+v", rlog.Events())
			}
			if got.Version != target {
				t.Fatalf("version = %s, want %s", got.Version, target)
			}
			fp, err := got.Fingerprint(graph.AlgXXHash3)
			if err != nil {
				t.Fatal(err)
			}
			if fp != want {
				t.Fatalf("fingerprint changed: %s -> %s", want, fp)
			}
			if got.Header.Measurement != headervars.Metric || got.Header.ExtMax != doc.Header.ExtMax {
				t.Fatalf("header scalars wrong: %+v", got.Header)
			}
			if got.Header.HandleSeed != doc.Header.HandleSeed {
				t.Fatalf("handle seed = %s, want %s", got.Header.HandleSeed, doc.Header.HandleSeed)
			}
			if got.Summary == nil || got.Summary.Title != doc.Summary.Title || got.Summary.Created != doc.Summary.Created {
				t.Fatalf("summary wrong: %+v", got.Summary)
			}
			if got.Preview == nil || len(got.Preview.Images) != 1 ||
				!bytes.Equal(got.Preview.Images[0].Data, doc.Preview.Images[0].Data) {
				t.Fatalf("preview wrong: %+v", got.Preview)
			}
			if len(got.Classes) != 1 || got.Classes[0].DXFName != "ACDBPLACEHOLDER" {
				t.Fatalf("classes wrong: %+v", got.Classes)
			}
			rec, ok := got.Object(0x42)
			if !ok {
				t.Fatal("mtext missing")
			}
			if mt := rec.(*object.MText); mt.Contents != "site plan" || mt.Style != 0x11 {
				t.Fatalf("mtext fields wrong: %+v", mt)
			}
		})
	}
}

func TestEncodeRejectsReadOnlyTargets(t *testing.T) {
	doc := flatDocument()
	for _, target := range []version.Tag{version.R13, version.R14, version.Tag("AC9999")} {
		if _, _, err := Encode(context.Background(), doc, target, Options{}); !errors.Is(err, ErrUnsupportedTarget) {
			t.Fatalf("%s: got %v, want ErrUnsupportedTarget", target, err)
		}
	}
}

// chainedDocument links entities the way only the legacy family can
// store them.
func chainedDocument() *graph.Document {
	b := graph.NewBuilder(nil)
	b.SetVersion(version.R2000)
	b.SetHeader(headervars.Vars{
		HandleSeed: 0x100, ModelSpace: 0x30, LayerControl: 0x20, CurrentLayer: 0x10,
	})
	ctl := &object.LayerControl{}
	ctl.Entries = []object.Handle{0x10}
	b.Add(0x10, &object.Layer{Name: "0", ColorIndex: 7})
	b.Add(0x20, ctl)
	b.Add(0x30, &object.BlockRecord{Name: "*Model_Space", IsSpace: true, First: 0x40, Last: 0x41})
	b.Add(0x40, &object.Line{
		Entity: object.Entity{Owner: 0x30, Layer: 0x10, Next: 0x41},
		End:    geom.Point3{X: 1},
	})
	b.Add(0x41, &object.Circle{
		Entity: object.Entity{Owner: 0x30, Layer: 0x10, Prev: 0x40},
		Radius: 2,
	})
	return b.Build()
}

func TestEncodeDropsChainLinksOutsideLegacy(t *testing.T) {
	doc := chainedDocument()
	out, log, err := Encode(context.Background(), doc, version.R2018, Options{})
	if err != nil {
		t.Fatal(err)
	}
	drops := log.Filter(notify.CodeFieldDropped)
	if len(drops) != 3 {
		t.Fatalf("want drop events for line, circle and block record, got %+v", log.Events())
	}

	got, _, err := reader.Decode(context.Background(), out, reader.Options{})
	if err != nil {
		t.Fatal(err)
	}
	rec, ok := got.Object(0x40)
	if !ok {
		t.Fatal("line missing")
	}
	if line := rec.(*object.Line); line.Next != object.Null || line.Owner != 0x30 {
		t.Fatalf("line links after cross-family trip: %+v", line.Entity)
	}
	rec, _ = got.Object(0x30)
	if blk := rec.(*object.BlockRecord); blk.First != object.Null || blk.Last != object.Null {
		t.Fatalf("block anchors survived: %+v", blk)
	}
}

func TestEncodeDropsEntityListInLegacy(t *testing.T) {
	b := graph.NewBuilder(nil)
	b.SetVersion(version.R2018)
	b.SetHeader(headervars.Vars{HandleSeed: 0x100, ModelSpace: 0x30})
	b.Add(0x30, &object.BlockRecord{Name: "*Model_Space", IsSpace: true, Entities: []object.Handle{0x40}})
	b.Add(0x40, &object.Point{Entity: object.Entity{Owner: 0x30}, Location: geom.Point3{Z: 1}})
	doc := b.Build()

	_, log, err := Encode(context.Background(), doc, version.R2000, Options{})
	if err != nil {
		t.Fatal(err)
	}
	drops := log.Filter(notify.CodeFieldDropped)
	if len(drops) != 1 || drops[0].Handle != 0x30 {
		t.Fatalf("want 1 drop event for the block record, got %+v", log.Events())
	}
}

func TestEncodeRecomputesHandleSeed(t *testing.T) {
	b := graph.NewBuilder(nil)
	b.SetVersion(version.R2000)
	b.SetHeader(headervars.Vars{HandleSeed: 0x10, ModelSpace: 0x30})
	b.Add(0x30, &object.BlockRecord{Name: "*Model_Space", IsSpace: true})
	doc := b.Build()

	out, _, err := Encode(context.Background(), doc, version.R2000, Options{})
	if err != nil {
		t.Fatal(err)
	}
	got, rlog, err := reader.Decode(context.Background(), out, reader.Options{})
	if err != nil {
		t.Fatal(err)
	}
	if rlog.Len() != 0 {
		t.Fatalf("stale seed survived the encode: %+v", rlog.Events())
	}
	if got.Header.HandleSeed != 0x31 {
		t.Fatalf("handle seed = %s, want 31", got.Header.HandleSeed)
	}
	if doc.Header.HandleSeed != 0x10 {
		t.Fatalf("encode modified the document: seed %s", doc.Header.HandleSeed)
	}
}

// bulkDocument pads the flat fixture with enough geometry and preview
// payload to spread the big sections across several pages.
func bulkDocument() *graph.Document {
	doc := flatDocument()
	for i := 0; i < 1200; i++ {
		doc.Put(object.Handle(0x1000+i), &object.Circle{
			Entity: object.Entity{Owner: 0x30, Layer: 0x10},
			Center: geom.Point3{X: float64(i % 40), Y: float64(i / 40)},
			Radius: float64(i%9) + 0.5,
		})
	}
	fz := fuzz.NewWithSeed(7).NilChance(0)
	var blob []byte
	fz.NumElements(90_000, 90_000).Fuzz(&blob)
	doc.Preview = &preview.Section{Images: []preview.Thumbnail{{Kind: preview.KindPNG, Data: blob}}}
	return doc
}

func TestRoundTripMultiPageSections(t *testing.T) {
	doc := bulkDocument()
	want, err := doc.Fingerprint(graph.AlgBlake2b)
	if err != nil {
		t.Fatal(err)
	}
	for _, target := range []version.Tag{version.R2004, version.R2007} {
		t.Run(string(target), func(t *testing.T) {
			out, log, err := Encode(context.Background(), doc, target, Options{Workers: 4})
			if err != nil {
				t.Fatal(err)
			}
			if log.Len() != 0 {
				t.Fatalf("encode produced events: %+v", log.Events())
			}
			got, rlog, err := reader.Decode(context.Background(), out, reader.Options{Workers: 4})
			if err != nil {
				t.Fatal(err)
			}
			if rlog.Len() != 0 {
				t.Fatalf("decode produced events: %+v", rlog.Events())
			}
			if got.Len() != doc.Len() {
				t.Fatalf("object count = %d, want %d", got.Len(), doc.Len())
			}
			fp, err := got.Fingerprint(graph.AlgBlake2b)
			if err != nil {
				t.Fatal(err)
			}
			if fp != want {
				t.Fatalf("fingerprint changed: %s -> %s", want, fp)
			}
			if !bytes.Equal(got.Preview.Images[0].Data, doc.Preview.Images[0].Data) {
				t.Fatal("preview payload diverged")
			}
		})
	}
}

func TestEncodeWorkersMatchSequential(t *testing.T) {
	doc := bulkDocument()
	for _, target := range []version.Tag{version.R2004, version.R2007} {
		t.Run(string(target), func(t *testing.T) {
			seq, _, err := Encode(context.Background(), doc, target, Options{})
			if err != nil {
				t.Fatal(err)
			}
			par, _, err := Encode(context.Background(), doc, target, Options{Workers: 4})
			if err != nil {
				t.Fatal(err)
			}
			if !bytes.Equal(seq, par) {
				t.Fatal("parallel encode changed the output bytes")
			}
		})
	}
}

func TestEncodeEmptyDocument(t *testing.T) {
	for _, target := range encodableTargets() {
		t.Run(string(target), func(t *testing.T) {
			out, log, err := Encode(context.Background(), graph.NewDocument(), target, Options{})
			if err != nil {
				t.Fatal(err)
			}
			if log.Len() != 0 {
				t.Fatalf("encode produced events: %+v", log.Events())
			}
			got, rlog, err := reader.Decode(context.Background(), out, reader.Options{})
			if err != nil {
				t.Fatal(err)
			}
			if rlog.Len() != 0 {
				t.Fatalf("decode produced events: %+v", rlog.Events())
			}
			if got.Len() != 0 {
				t.Fatalf("empty drawing decoded to %d objects", got.Len())
			}
			if got.Header.HandleSeed != 1 {
				t.Fatalf("handle seed = %s, want 1", got.Header.HandleSeed)
			}
		})
	}
}

func TestEncodeLegacyAdvisoryOffsets(t *testing.T) {
	out, _, err := Encode(context.Background(), flatDocument(), version.R2000, Options{})
	if err != nil {
		t.Fatal(err)
	}
	hdr, err := fileheader.DecodeLegacy(out)
	if err != nil {
		t.Fatal(err)
	}
	loc, ok := hdr.Locator(fileheader.SectionPreview)
	if !ok {
		t.Fatal("preview locator missing")
	}
	if hdr.PreviewOffset != loc.Offset {
		t.Fatalf("preamble preview offset %d, locator says %d", hdr.PreviewOffset, loc.Offset)
	}
}

func TestEncodeContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, _, err := Encode(ctx, flatDocument(), version.R2018, Options{})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("got %v, want context.Canceled", err)
	}
}
