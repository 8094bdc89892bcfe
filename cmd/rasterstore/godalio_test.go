package main

import (
	"testing"

	"github.com/airbusgeo/godal"

	"github.com/edmstore/rasterstore/internal/geo"
)

func TestGodalToGeoTypeWidensUnsigned(t *testing.T) {
	cases := []struct {
		in   godal.DataType
		want geo.DataType
	}{
		{godal.Byte, geo.Uint8},
		{godal.Int16, geo.Int16},
		{godal.UInt16, geo.Int32},
		{godal.Int32, geo.Int32},
		{godal.UInt32, geo.Float64},
		{godal.Float32, geo.Float32},
		{godal.Float64, geo.Float64},
	}
	for _, c := range cases {
		if got := godalToGeoType(c.in); got != c.want {
			t.Errorf("godalToGeoType(%v) = %v, want %v", c.in, got, c.want)
		}
	}
}

func TestToFloat64Widening(t *testing.T) {
	if got := toFloat64([]uint32{4294967295}); got[0] != 4294967295 {
		t.Errorf("uint32 max widened to %v, want 4294967295", got[0])
	}
	if got := toFloat64([]int16{-32768}); got[0] != -32768 {
		t.Errorf("int16 min widened to %v, want -32768", got[0])
	}
	if got := toFloat64([]byte{255}); got[0] != 255 {
		t.Errorf("byte max widened to %v, want 255", got[0])
	}
}

func TestEncodeGeoSamplesRoundTrip(t *testing.T) {
	values := []float64{-5, 0, 12345}
	out := encodeGeoSamples(values, geo.Int32)
	if len(out) != len(values)*geo.Int32.ByteSize() {
		t.Fatalf("encoded length = %d, want %d", len(out), len(values)*geo.Int32.ByteSize())
	}

	got := int32(byteOrder.Uint32(out[4:8]))
	if got != 0 {
		t.Errorf("second sample = %d, want 0", got)
	}
	gotFirst := int32(byteOrder.Uint32(out[0:4]))
	if gotFirst != -5 {
		t.Errorf("first sample = %d, want -5", gotFirst)
	}
}

func TestEpsgFromIdent(t *testing.T) {
	cases := []struct {
		in   string
		want int
	}{
		{"EPSG:4326", 4326},
		{"EPSG:3857", 3857},
		{"", 0},
		{"a WKT string, not EPSG:4326 prefixed", 0},
	}
	for _, c := range cases {
		if got := epsgFromIdent(c.in); got != c.want {
			t.Errorf("epsgFromIdent(%q) = %d, want %d", c.in, got, c.want)
		}
	}
}

func TestStoragePathForStripsBandSuffix(t *testing.T) {
	got := storagePathFor("/imagery/elevation/tile.BAND")
	want := "/imagery/elevation/tile"
	if got != want {
		t.Errorf("storagePathFor = %q, want %q", got, want)
	}
}
