package codec

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/edmstore/rasterstore/internal/geo"
	"github.com/edmstore/rasterstore/internal/rasterr"
)

// EncodeWithOverviews serializes t as a pyramid TIFF: IFD0 holds t's own
// full-resolution data, and one chained IFD follows per entry in factors[1:]
// (factors[0] is always 1, the base level), each built by nearest-resampling
// t's data down by that factor, per spec.md §4.4 ("build overviews using the
// lattice's factor list with nearest resampling") and §4.6 ("level z ->
// overview_level = z-1; level 0 -> base").
func (c *Codec) EncodeWithOverviews(t Tile, factors []int) ([]byte, error) {
	if len(factors) == 0 || factors[0] != 1 {
		return nil, rasterr.NewConfigError("pyramid factor table must start with 1, got %v", factors)
	}
	if t.Width <= 0 || t.Height <= 0 {
		return nil, rasterr.NewShapeError("tile has non-positive dimensions %dx%d", t.Width, t.Height)
	}
	sampleSize := t.DType.ByteSize()
	if len(t.Data) != t.Width*t.Height*sampleSize {
		return nil, rasterr.NewShapeError("tile data is %d bytes, expected %d", len(t.Data), t.Width*t.Height*sampleSize)
	}

	levels := make([]tiffLevel, len(factors))
	for i, f := range factors {
		lvlTile := t
		if f > 1 {
			data, w, h := downsampleNearest(t.Data, t.Width, t.Height, t.DType, f)
			lvlTile.Data = data
			lvlTile.Width = w
			lvlTile.Height = h
			lvlTile.Geo.Transform = geo.Transform{
				OriginX: t.Geo.Transform.OriginX,
				ScaleX:  t.Geo.Transform.ScaleX * float64(f),
				OriginY: t.Geo.Transform.OriginY,
				ScaleY:  t.Geo.Transform.ScaleY * float64(f),
			}
		}

		payload, err := c.compress(lvlTile.Data)
		if err != nil {
			return nil, fmt.Errorf("codec: compressing pyramid level %d: %w", i, err)
		}
		levels[i] = tiffLevel{entries: tileEntries(lvlTile, c.Compression, payload), payload: payload}
	}

	return assembleMultiIFD(levels)
}

func (c *Codec) compress(data []byte) ([]byte, error) {
	switch c.Compression {
	case compNone:
		return data, nil
	case compLZW:
		return compressTIFFLZW(data)
	case compDeflate, compDeflateAdobe:
		return deflateBytes(data)
	default:
		return nil, rasterr.NewConfigError("unsupported codec compression %d", c.Compression)
	}
}

// downsampleNearest reduces a width x height buffer of dtype samples by
// factor using nearest-neighbor point sampling, matching the "nearest
// resampling" spec.md §4.4 requires for embedded tile overviews (as
// distinct from internal/resample's full resampling-method set used for
// warping windows between datasets).
func downsampleNearest(data []byte, width, height int, dtype geo.DataType, factor int) ([]byte, int, int) {
	sampleSize := dtype.ByteSize()
	newW := ceilDivInt(width, factor)
	newH := ceilDivInt(height, factor)
	out := make([]byte, newW*newH*sampleSize)
	for oy := 0; oy < newH; oy++ {
		sy := oy * factor
		if sy >= height {
			sy = height - 1
		}
		for ox := 0; ox < newW; ox++ {
			sx := ox * factor
			if sx >= width {
				sx = width - 1
			}
			srcOff := (sy*width + sx) * sampleSize
			dstOff := (oy*newW + ox) * sampleSize
			copy(out[dstOff:dstOff+sampleSize], data[srcOff:srcOff+sampleSize])
		}
	}
	return out, newW, newH
}

func ceilDivInt(a, b int) int {
	if a <= 0 {
		return 0
	}
	return (a + b - 1) / b
}

// DecodeLevel parses a tile blob and returns the pyramid level at the
// requested zoom level (0 = base/IFD0, level z = IFD index z, i.e. GDAL
// overview_level z-1). Callers must not silently fall back to the base
// level when the requested one is absent, per spec.md §4.4 ("readers must
// not silently downgrade to base level") -- an out-of-range level is an
// error.
func DecodeLevel(blob []byte, level int) (Tile, error) {
	r := bytes.NewReader(blob)
	ifds, bo, err := parseTIFF(r)
	if err != nil {
		return Tile{}, fmt.Errorf("codec: parsing tile: %w", err)
	}
	if level < 0 || level >= len(ifds) {
		return Tile{}, rasterr.NewNotFoundError("pyramid level %d not present in tile (tile has %d levels)", level, len(ifds))
	}
	return decodeIFD(r, bo, &ifds[level])
}

func decodeIFD(r io.ReaderAt, bo binary.ByteOrder, ifd *IFD) (Tile, error) {
	dtype, err := dataTypeFromIFD(ifd)
	if err != nil {
		return Tile{}, err
	}

	raw, err := readRawSamples(r, bo, ifd)
	if err != nil {
		return Tile{}, fmt.Errorf("codec: decoding tile samples: %w", err)
	}

	geoInfo, err := parseGeoInfo(ifd)
	if err != nil {
		return Tile{}, err
	}

	var nodata *float64
	if v, ok := nodataFromTag(ifd); ok {
		nodata = &v
	}

	return Tile{
		Width:  int(ifd.Width),
		Height: int(ifd.Height),
		DType:  dtype,
		NoData: nodata,
		Geo:    geoInfo,
		Data:   raw,
	}, nil
}
