package band

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/edmstore/rasterstore/internal/backend"
	"github.com/edmstore/rasterstore/internal/cache"
	"github.com/edmstore/rasterstore/internal/codec"
	"github.com/edmstore/rasterstore/internal/geo"
	"github.com/edmstore/rasterstore/internal/lattice"
	"github.com/edmstore/rasterstore/internal/meta"
	"github.com/edmstore/rasterstore/internal/rasterr"
	"github.com/edmstore/rasterstore/internal/resample"
	"github.com/edmstore/rasterstore/internal/workpool"
)

func testDeps(t *testing.T) Deps {
	t.Helper()
	driver := geo.NewDriver()
	return Deps{
		Gateway:   backend.NewFilesystem(t.TempDir()),
		Cache:     cache.New(0, time.Minute),
		Codec:     codec.NewCodec(),
		Resampler: resample.New(driver),
		Driver:    driver,
		Pool:      workpool.New(2),
	}
}

func testBandMetadata(t *testing.T, path string) meta.BandMetadata {
	t.Helper()
	tr, err := geo.NewTransform(0, 30, 0, -30)
	if err != nil {
		t.Fatalf("NewTransform: %v", err)
	}
	nodata := -9999.0
	return meta.BandMetadata{
		BandPath:       path,
		StoragePath:    path,
		StorageBackend: "fs",
		CRS:            "EPSG:3857",
		Transform:      tr,
		Shape:          [2]int{512, 512},
		TileSize:       256,
		Cropped:        true,
		NoData:         []float64{nodata},
		DTypes:         []geo.DataType{geo.Int16},
		RasterCount:    1,
	}
}

func fillPattern(w, h int) []byte {
	buf := make([]byte, w*h*2)
	for i := 0; i < w*h; i++ {
		byteOrder.PutUint16(buf[i*2:], uint16(i%1000))
	}
	return buf
}

func TestSlicedBandWriteReadTileRoundTrip(t *testing.T) {
	md := testBandMetadata(t, "/edm/test/round.BAND")
	b, err := NewSliced(md, testDeps(t))
	if err != nil {
		t.Fatalf("NewSliced: %v", err)
	}
	if !b.Writeable() {
		t.Fatalf("native-tile-size band should be Writeable")
	}

	info := b.GetTileInfo(0, 0)
	want := fillPattern(info.Width, info.Height)

	ctx := context.Background()
	if err := b.WriteTile(ctx, 0, 0, want); err != nil {
		t.Fatalf("WriteTile: %v", err)
	}

	got, err := b.ReadTile(ctx, 0, 0)
	if err != nil {
		t.Fatalf("ReadTile: %v", err)
	}
	if !bytes.Equal(got, want) {
		t.Fatalf("round-tripped tile data does not match input")
	}
}

func TestSlicedBandReadTileMissingFillsNodata(t *testing.T) {
	md := testBandMetadata(t, "/edm/test/missing.BAND")
	b, err := NewSliced(md, testDeps(t))
	if err != nil {
		t.Fatalf("NewSliced: %v", err)
	}

	got, err := b.ReadTile(context.Background(), 1, 1)
	if err != nil {
		t.Fatalf("ReadTile: %v", err)
	}
	nodata, _ := b.NoDataValue()
	want := encodeSample(nodata, b.Datatype())
	for off := 0; off+len(want) <= len(got); off += len(want) {
		if !bytes.Equal(got[off:off+len(want)], want) {
			t.Fatalf("unwritten tile not filled with nodata at offset %d", off)
		}
	}
}

func TestSlicedBandReadOnlyRejectsWrite(t *testing.T) {
	md := testBandMetadata(t, "/edm/test/ro.BAND")
	md.ReadOnly = true
	b, err := NewSliced(md, testDeps(t))
	if err != nil {
		t.Fatalf("NewSliced: %v", err)
	}
	if b.Writeable() {
		t.Fatalf("ReadOnly band reported Writeable")
	}

	info := b.GetTileInfo(0, 0)
	err = b.WriteTile(context.Background(), 0, 0, make([]byte, info.Width*info.Height*2))
	if err == nil {
		t.Fatalf("WriteTile on a read-only band should fail")
	}
	if !errors.Is(err, rasterr.Validation) {
		t.Fatalf("WriteTile error = %v, want a ValidationError", err)
	}
}

func TestSlicedBandReadRegionNativeGrid(t *testing.T) {
	md := testBandMetadata(t, "/edm/test/region.BAND")
	b, err := NewSliced(md, testDeps(t))
	if err != nil {
		t.Fatalf("NewSliced: %v", err)
	}

	ctx := context.Background()
	for _, tx := range []int{0, 1} {
		for _, ty := range []int{0, 1} {
			info := b.GetTileInfo(tx, ty)
			if err := b.WriteTile(ctx, tx, ty, fillPattern(info.Width, info.Height)); err != nil {
				t.Fatalf("WriteTile(%d,%d): %v", tx, ty, err)
			}
		}
	}

	region, err := b.ReadRegion(ctx, RegionRequest{Transform: md.Transform, XSize: 512, YSize: 512})
	if err != nil {
		t.Fatalf("ReadRegion: %v", err)
	}
	if len(region) != 512*512*2 {
		t.Fatalf("ReadRegion returned %d bytes, want %d", len(region), 512*512*2)
	}
}

func TestUnSlicedBandIsReadOnlyAndRejectsWrites(t *testing.T) {
	md := testBandMetadata(t, "/edm/test/whole.BAND")
	md.Cropped = false
	deps := testDeps(t)
	b, err := NewUnSliced(md, deps)
	if err != nil {
		t.Fatalf("NewUnSliced: %v", err)
	}
	if b.Writeable() {
		t.Fatalf("UnSlicedBand must never report Writeable")
	}

	if err := b.WriteTile(context.Background(), 0, 0, nil); err == nil {
		t.Fatalf("UnSlicedBand.WriteTile should always fail")
	} else if !errors.Is(err, rasterr.Validation) {
		t.Fatalf("WriteTile error = %v, want a ValidationError", err)
	}

	if err := b.WriteRegion(context.Background(), WriteRequest{}); err == nil {
		t.Fatalf("UnSlicedBand.WriteRegion should always fail")
	} else if !errors.Is(err, rasterr.Validation) {
		t.Fatalf("WriteRegion error = %v, want a ValidationError", err)
	}
}

func TestUnSlicedBandReadTileMissingFillsNodata(t *testing.T) {
	md := testBandMetadata(t, "/edm/test/whole2.BAND")
	md.Cropped = false
	b, err := NewUnSliced(md, testDeps(t))
	if err != nil {
		t.Fatalf("NewUnSliced: %v", err)
	}

	got, err := b.ReadTile(context.Background(), 0, 0)
	if err != nil {
		t.Fatalf("ReadTile: %v", err)
	}
	nodata, _ := b.NoDataValue()
	want := encodeSample(nodata, b.Datatype())
	if !bytes.Equal(got[:len(want)], want) {
		t.Fatalf("never-written whole-file band did not read back as nodata")
	}
}

func TestClampRegionSize(t *testing.T) {
	if _, _, err := clampRegionSize(0, 10); err == nil {
		t.Fatalf("clampRegionSize(0, 10) should fail")
	}
	x, y, err := clampRegionSize(maxRegionPixels+100, maxRegionPixels+100)
	if err != nil {
		t.Fatalf("clampRegionSize: %v", err)
	}
	if x != maxRegionPixels || y != maxRegionPixels {
		t.Fatalf("clampRegionSize did not clamp: got %dx%d", x, y)
	}
}

func TestScaleDownRect(t *testing.T) {
	r := lattice.Rect{X: 128, Y: 64, Width: 256, Height: 128}
	got := scaleDownRect(r, 2)
	want := lattice.Rect{X: 64, Y: 32, Width: 128, Height: 64}
	if got != want {
		t.Fatalf("scaleDownRect = %+v, want %+v", got, want)
	}
	if got := scaleDownRect(r, 1); got != r {
		t.Fatalf("scaleDownRect with factor 1 should be a no-op, got %+v", got)
	}
}
