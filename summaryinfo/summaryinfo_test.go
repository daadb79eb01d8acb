package summaryinfo

import (
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/draftware/dwgkit/bitcode"
)

func sampleInfo() *Info {
	return &Info{
		Title:       "Site plan",
		Subject:     "Phase 2",
		Author:      "survey",
		Keywords:    "site;plan;phase2",
		Comments:    "imported from field sketch",
		LastSavedBy: "survey",
		Created:     Timestamp{JulianDay: 2451545, Millis: 43_200_000},
		Updated:     Timestamp{JulianDay: 2460918, Millis: 1},
		Properties: []Property{
			{Key: "PROJECT", Value: "A-113"},
			{Key: "CHECKED", Value: ""},
		},
	}
}

func TestRoundTrip(t *testing.T) {
	info := sampleInfo()
	enc, err := info.Encode()
	if err != nil {
		t.Fatal(err)
	}
	dec, err := Decode(enc)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(dec, info) {
		t.Fatalf("round trip mismatch:\n got %+v\nwant %+v", dec, info)
	}
}

func TestRoundTripEmpty(t *testing.T) {
	enc, err := (&Info{}).Encode()
	if err != nil {
		t.Fatal(err)
	}
	dec, err := Decode(enc)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(dec, &Info{}) {
		t.Fatalf("empty info round trip: %+v", dec)
	}
}

func TestTimestampTime(t *testing.T) {
	cases := []struct {
		ts   Timestamp
		want time.Time
	}{
		{Timestamp{}, time.Time{}},
		{Timestamp{JulianDay: 2440588}, time.Date(1970, 1, 1, 0, 0, 0, 0, time.UTC)},
		{Timestamp{JulianDay: 2451545, Millis: 43_200_000}, time.Date(2000, 1, 1, 12, 0, 0, 0, time.UTC)},
		{Timestamp{JulianDay: 2440589, Millis: 1500}, time.Date(1970, 1, 2, 0, 0, 1, 500_000_000, time.UTC)},
	}
	for _, tc := range cases {
		if got := tc.ts.Time(); !got.Equal(tc.want) {
			t.Fatalf("Time(%+v) = %v, want %v", tc.ts, got, tc.want)
		}
		if back := At(tc.want); back != tc.ts {
			t.Fatalf("At(%v) = %+v, want %+v", tc.want, back, tc.ts)
		}
	}
}

func TestTimestampTruncatesBelowMillis(t *testing.T) {
	fine := time.Date(2000, 1, 1, 12, 0, 0, 1_999_999, time.UTC)
	want := Timestamp{JulianDay: 2451545, Millis: 43_200_001}
	if got := At(fine); got != want {
		t.Fatalf("At() = %+v, want %+v", got, want)
	}
}

func TestDecodeMalformed(t *testing.T) {
	good, err := sampleInfo().Encode()
	if err != nil {
		t.Fatal(err)
	}

	w := bitcode.NewWriter()
	for i := 0; i < 6; i++ {
		w.WriteText("")
	}
	for i := 0; i < 4; i++ {
		w.WriteRawLong(0)
	}
	w.WriteBitShort(-1)
	negCount, err := w.Bytes()
	if err != nil {
		t.Fatal(err)
	}

	cases := []struct {
		name string
		data []byte
		want error
	}{
		{"empty", nil, bitcode.ErrTruncated},
		{"cut mid field", good[:len(good)-6], bitcode.ErrTruncated},
		{"trailing bytes", append(append([]byte(nil), good...), 0xAA, 0xBB), ErrMalformed},
		{"negative property count", negCount, ErrMalformed},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := Decode(tc.data); !errors.Is(err, tc.want) {
				t.Fatalf("got %v, want %v", err, tc.want)
			}
		})
	}
}
