package codec

import (
	"bytes"
	"testing"

	"github.com/edmstore/rasterstore/internal/geo"
)

func testTile(w, h int) Tile {
	data := make([]byte, w*h)
	for i := range data {
		data[i] = byte(i % 251)
	}
	nodata := 0.0
	return Tile{
		Width:  w,
		Height: h,
		DType:  geo.Uint8,
		NoData: &nodata,
		Geo: GeoInfo{
			EPSG:      3857,
			Transform: geo.Transform{OriginX: 12_834_619, ScaleX: 30, OriginY: 5_011_732, ScaleY: -30},
		},
		Data: data,
	}
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	tile := testTile(16, 16)
	c := NewCodec()
	blob, err := c.Encode(tile)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}

	got, err := Decode(blob)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if got.Width != tile.Width || got.Height != tile.Height {
		t.Fatalf("got size %dx%d, want %dx%d", got.Width, got.Height, tile.Width, tile.Height)
	}
	if !bytes.Equal(got.Data, tile.Data) {
		t.Fatalf("round-tripped data does not match input")
	}
	if got.NoData == nil || *got.NoData != 0 {
		t.Fatalf("nodata did not round-trip: %v", got.NoData)
	}
	if got.Geo.EPSG != 3857 {
		t.Fatalf("EPSG did not round-trip: %d", got.Geo.EPSG)
	}
	if got.Geo.Transform != tile.Geo.Transform {
		t.Fatalf("transform did not round-trip: got %+v want %+v", got.Geo.Transform, tile.Geo.Transform)
	}
}

func TestEncodeWithOverviewsLevelSelection(t *testing.T) {
	tile := testTile(16, 16)
	c := NewCodec()
	blob, err := c.EncodeWithOverviews(tile, []int{1, 2, 4})
	if err != nil {
		t.Fatalf("EncodeWithOverviews: %v", err)
	}

	base, err := DecodeLevel(blob, 0)
	if err != nil {
		t.Fatalf("DecodeLevel(0): %v", err)
	}
	if base.Width != 16 || base.Height != 16 {
		t.Fatalf("base level size = %dx%d, want 16x16", base.Width, base.Height)
	}
	if !bytes.Equal(base.Data, tile.Data) {
		t.Fatalf("base level data does not match input")
	}

	lvl1, err := DecodeLevel(blob, 1)
	if err != nil {
		t.Fatalf("DecodeLevel(1): %v", err)
	}
	if lvl1.Width != 8 || lvl1.Height != 8 {
		t.Fatalf("level 1 size = %dx%d, want 8x8", lvl1.Width, lvl1.Height)
	}

	lvl2, err := DecodeLevel(blob, 2)
	if err != nil {
		t.Fatalf("DecodeLevel(2): %v", err)
	}
	if lvl2.Width != 4 || lvl2.Height != 4 {
		t.Fatalf("level 2 size = %dx%d, want 4x4", lvl2.Width, lvl2.Height)
	}

	if _, err := DecodeLevel(blob, 3); err == nil {
		t.Fatalf("expected an error selecting a pyramid level the tile does not have")
	}
}

func TestDownsampleNearestOddDimensions(t *testing.T) {
	data := []byte{1, 2, 3, 4, 5, 6, 7, 8, 9} // 3x3
	out, w, h := downsampleNearest(data, 3, 3, geo.Uint8, 2)
	if w != 2 || h != 2 {
		t.Fatalf("downsampled size = %dx%d, want 2x2", w, h)
	}
	if len(out) != 4 {
		t.Fatalf("downsampled data length = %d, want 4", len(out))
	}
}
