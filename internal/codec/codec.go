// Package codec implements TileCodec: serializing and deserializing a single
// stored tile as a single-band GeoTIFF blob. It is adapted from
// pspoerri/geotiff2pmtiles's internal/cog/reader.go, generalized from a
// forced-RGBA visual-tile decode to an arbitrary-dtype single-band raster
// decode, and extended with a write path (the teacher only ever read
// GeoTIFFs; the store needs to produce the tiles it serves).
package codec

import (
	"bytes"
	"compress/flate"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/edmstore/rasterstore/internal/geo"
	"github.com/edmstore/rasterstore/internal/rasterr"
)

// compression codes this codec understands, a deliberate subset of the
// teacher's whitelist ([]int{1, 5, 7, 8, 32946} in internal/cog/reader.go).
// JPEG (7) is dropped: stored tiles hold single-band scientific/elevation
// data, never photographic imagery, so there is no caller for a lossy
// DCT codec and pulling one in would add a dependency with no use.
const (
	compNone         = 1
	compLZW          = 5
	compDeflate      = 8
	compDeflateAdobe = 32946
)

const predictorHorizontal = 2

// Tile is one stored tile: a tile_size x tile_size single-band raster plus
// its embedded georeferencing and an optional nodata sentinel.
type Tile struct {
	Width, Height int
	DType         geo.DataType
	NoData        *float64
	Geo           GeoInfo
	// Data holds Width*Height samples of DType, row-major, native byte order.
	Data []byte
}

// Codec is the TileCodec: it serializes/deserializes tiles and carries the
// compression choice new tiles are written with.
type Codec struct {
	Compression int // one of compNone, compLZW, compDeflate
}

// NewCodec returns a Codec writing LZW-compressed tiles, the teacher's
// default expectation for GeoTIFF data (internal/cog/reader.go documents
// LZW as the common case for COG sources).
func NewCodec() *Codec {
	return &Codec{Compression: compLZW}
}

// Decode parses a tile blob previously produced by Encode (or any
// single-band, single-strip-or-tile GeoTIFF with a compatible layout).
func Decode(blob []byte) (Tile, error) {
	return DecodeLevel(blob, 0)
}

func dataTypeFromIFD(ifd *IFD) (geo.DataType, error) {
	bits := 8
	if len(ifd.BitsPerSample) > 0 {
		bits = int(ifd.BitsPerSample[0])
	}
	isFloat := ifd.SampleFormat == sampleFormatFloat
	switch {
	case isFloat && bits == 64:
		return geo.Float64, nil
	case isFloat && bits == 32:
		return geo.Float32, nil
	case !isFloat && bits == 32:
		return geo.Int32, nil
	case !isFloat && bits == 16:
		return geo.Int16, nil
	case !isFloat && bits == 8:
		return geo.Uint8, nil
	default:
		return 0, rasterr.NewShapeError("unsupported sample layout: %d bits, float=%v", bits, isFloat)
	}
}

// readRawSamples decompresses and un-predicts the single image strip/tile,
// following internal/cog/reader.go's readTileRaw/undoHorizontalDifferencing.
func readRawSamples(r io.ReaderAt, bo binary.ByteOrder, ifd *IFD) ([]byte, error) {
	if len(ifd.TileOffsets) == 0 {
		return nil, rasterr.NewShapeError("tile blob has no tile/strip offsets")
	}

	sampleSize := int(ifd.BitsPerSample[0]) / 8
	if sampleSize == 0 {
		sampleSize = 1
	}
	want := int(ifd.Width) * int(ifd.Height) * sampleSize

	var full []byte
	for i := range ifd.TileOffsets {
		buf := make([]byte, ifd.TileByteCounts[i])
		if _, err := r.ReadAt(buf, int64(ifd.TileOffsets[i])); err != nil {
			return nil, fmt.Errorf("reading sample block %d: %w", i, err)
		}

		var dec []byte
		var err error
		switch ifd.Compression {
		case compNone:
			dec = buf
		case compLZW:
			dec, err = decompressTIFFLZW(buf)
		case compDeflate, compDeflateAdobe:
			dec, err = inflateBytes(buf)
		default:
			return nil, rasterr.NewShapeError("unsupported compression code %d", ifd.Compression)
		}
		if err != nil {
			return nil, fmt.Errorf("decompressing sample block %d: %w", i, err)
		}
		full = append(full, dec...)
	}

	if ifd.Predictor == predictorHorizontal {
		undoHorizontalDifferencing(full, int(ifd.Width), int(ifd.Height), sampleSize, bo)
	}

	if len(full) != want {
		return nil, rasterr.NewShapeError("decoded %d bytes, expected %d", len(full), want)
	}
	return full, nil
}

func inflateBytes(b []byte) ([]byte, error) {
	fr := flate.NewReader(bytes.NewReader(b))
	defer fr.Close()
	return io.ReadAll(fr)
}

// undoHorizontalDifferencing reverses TIFF predictor 2, per-sample, matching
// internal/cog/reader.go's implementation.
func undoHorizontalDifferencing(data []byte, width, height, sampleSize int, bo binary.ByteOrder) {
	rowBytes := width * sampleSize
	for row := 0; row < height; row++ {
		base := row * rowBytes
		if base+rowBytes > len(data) {
			return
		}
		for col := 1; col < width; col++ {
			off := base + col*sampleSize
			prevOff := off - sampleSize
			addSample(data[off:off+sampleSize], data[prevOff:prevOff+sampleSize], sampleSize, bo)
		}
	}
}

func addSample(dst, prev []byte, size int, bo binary.ByteOrder) {
	switch size {
	case 1:
		dst[0] += prev[0]
	case 2:
		v := bo.Uint16(dst) + bo.Uint16(prev)
		bo.PutUint16(dst, v)
	case 4:
		v := bo.Uint32(dst) + bo.Uint32(prev)
		bo.PutUint32(dst, v)
	case 8:
		v := bo.Uint64(dst) + bo.Uint64(prev)
		bo.PutUint64(dst, v)
	}
}

func nodataFromTag(ifd *IFD) (float64, bool) {
	if ifd.NoDataASCII == "" {
		return 0, false
	}
	var v float64
	if _, err := fmt.Sscanf(ifd.NoDataASCII, "%g", &v); err != nil {
		return 0, false
	}
	return v, true
}

// Encode serializes a tile as a single-strip, single-band GeoTIFF carrying
// its transform, EPSG code, and nodata sentinel.
func (c *Codec) Encode(t Tile) ([]byte, error) {
	if t.Width <= 0 || t.Height <= 0 {
		return nil, rasterr.NewShapeError("tile has non-positive dimensions %dx%d", t.Width, t.Height)
	}
	sampleSize := t.DType.ByteSize()
	if len(t.Data) != t.Width*t.Height*sampleSize {
		return nil, rasterr.NewShapeError("tile data is %d bytes, expected %d", len(t.Data), t.Width*t.Height*sampleSize)
	}

	payload := t.Data
	var err error
	switch c.Compression {
	case compNone:
	case compLZW:
		payload, err = compressTIFFLZW(t.Data)
	case compDeflate, compDeflateAdobe:
		payload, err = deflateBytes(t.Data)
	default:
		return nil, rasterr.NewConfigError("unsupported codec compression %d", c.Compression)
	}
	if err != nil {
		return nil, fmt.Errorf("codec: compressing tile: %w", err)
	}

	return writeSingleStripGeoTIFF(t, c.Compression, payload)
}

func deflateBytes(b []byte) ([]byte, error) {
	var buf bytes.Buffer
	fw, err := flate.NewWriter(&buf, flate.DefaultCompression)
	if err != nil {
		return nil, err
	}
	if _, err := fw.Write(b); err != nil {
		return nil, err
	}
	if err := fw.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func isFloatType(d geo.DataType) bool {
	return d == geo.Float32 || d == geo.Float64
}
