package codec

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"math"
	"sort"

	"github.com/edmstore/rasterstore/internal/geo"
)

// writer-side TIFF data types (mirrors the constants in ifd.go).
const (
	wtShort  = dtShort
	wtLong   = dtLong
	wtDouble = dtDouble
	wtASCII  = dtASCII
)

type writeEntry struct {
	tag      uint16
	dataType uint16
	count    uint32
	inline   [4]byte // used when the value fits inline
	external []byte  // used when it doesn't
}

// writeSingleStripGeoTIFF builds a minimal classic (32-bit offset) TIFF
// holding exactly one sample block (tagged as a single tile covering the
// whole image, tags 322-325) plus the georeferencing and nodata tags Decode
// understands. This mirrors the tag set internal/cog/reader.go parses, just
// written instead of read.
func writeSingleStripGeoTIFF(t Tile, compression int, payload []byte) ([]byte, error) {
	entries := tileEntries(t, compression, payload)
	return assembleTIFF(entries, payload)
}

// tileEntries builds the IFD entry set for one pyramid level of a tile:
// the sample layout, georeferencing, and nodata tags. Shared between the
// single-level writer and EncodeWithOverviews' per-level loop, since
// every level of a tile's internal pyramid carries the same tag set and
// differs only in dimensions, pixel scale, and payload.
func tileEntries(t Tile, compression int, payload []byte) []writeEntry {
	bo := binary.LittleEndian
	bits := uint16(t.DType.ByteSize() * 8)
	sampleFormat := uint16(sampleFormatUint)
	if isFloatType(t.DType) {
		sampleFormat = sampleFormatFloat
	} else if t.DType == geo.Int16 || t.DType == geo.Int32 {
		sampleFormat = sampleFormatInt
	}

	var entries []writeEntry
	putShort := func(tag uint16, v uint16) {
		var b [4]byte
		bo.PutUint16(b[:2], v)
		entries = append(entries, writeEntry{tag: tag, dataType: wtShort, count: 1, inline: b})
	}
	putLong := func(tag uint16, v uint32) {
		var b [4]byte
		bo.PutUint32(b[:], v)
		entries = append(entries, writeEntry{tag: tag, dataType: wtLong, count: 1, inline: b})
	}
	putDoubles := func(tag uint16, vs []float64) {
		buf := make([]byte, 8*len(vs))
		for i, v := range vs {
			bo.PutUint64(buf[i*8:i*8+8], math.Float64bits(v))
		}
		entries = append(entries, writeEntry{tag: tag, dataType: wtDouble, count: uint32(len(vs)), external: buf})
	}
	putShorts := func(tag uint16, vs []uint16) {
		buf := make([]byte, 2*len(vs))
		for i, v := range vs {
			bo.PutUint16(buf[i*2:i*2+2], v)
		}
		entries = append(entries, writeEntry{tag: tag, dataType: wtShort, count: uint32(len(vs)), external: buf})
	}
	putASCII := func(tag uint16, s string) {
		b := append([]byte(s), 0)
		entries = append(entries, writeEntry{tag: tag, dataType: wtASCII, count: uint32(len(b)), external: b})
	}

	putLong(tagImageWidth, uint32(t.Width))
	putLong(tagImageLength, uint32(t.Height))
	putShort(tagBitsPerSample, bits)
	putShort(tagCompression, uint16(compression))
	putShort(tagPhotometric, 1) // BlackIsZero
	putShort(tagSamplesPerPixel, 1)
	putShort(tagPlanarConfig, 1)
	putLong(tagTileWidth, uint32(t.Width))
	putLong(tagTileLength, uint32(t.Height))
	// TileOffsets is patched in once the payload's final file offset is known.
	entries = append(entries, writeEntry{tag: tagTileOffsets, dataType: wtLong, count: 1})
	putLong(tagTileByteCounts, uint32(len(payload)))
	putShort(tagSampleFormat, sampleFormat)

	sx := t.Geo.Transform.ScaleX
	sy := -t.Geo.Transform.ScaleY
	putDoubles(tagModelPixelScaleTag, []float64{sx, sy, 0})
	putDoubles(tagModelTiepointTag, []float64{0, 0, 0, t.Geo.Transform.OriginX, t.Geo.Transform.OriginY, 0})

	if t.Geo.EPSG != 0 {
		putShorts(tagGeoKeyDirectoryTag, geoKeyDirectoryForEPSG(t.Geo.EPSG))
	}
	if t.NoData != nil {
		putASCII(tagGDALNoData, fmt.Sprintf("%g", *t.NoData))
	}

	sort.Slice(entries, func(i, j int) bool { return entries[i].tag < entries[j].tag })

	return entries
}

// geoKeyDirectoryForEPSG builds a minimal GeoKey directory asserting the
// raster is projected (or geographic) in the given EPSG code. GDAL and any
// reader using internal/geo.Driver only need the EPSG value itself; the
// ModelType distinction is inferred by the CRS driver, not re-derived here.
func geoKeyDirectoryForEPSG(epsg int) []uint16 {
	return []uint16{
		1, 1, 0, 1, // header: version 1, revision 1.0, 1 key
		3072, 0, 1, uint16(epsg), // ProjectedCSTypeGeoKey = epsg
	}
}

// assembleTIFF lays out: [8-byte header][IFD][inline-overflow data][payload].
func assembleTIFF(entries []writeEntry, payload []byte) ([]byte, error) {
	bo := binary.LittleEndian
	numEntries := len(entries)
	ifdSize := 2 + numEntries*12 + 4
	headerSize := 8
	ifdOffset := headerSize

	// A value fits inline only if its encoded byte length is <= 4; TIFF
	// readers (including resolveEntry in ifd.go) treat the 4-byte value
	// field as literal data in that case and as an offset otherwise, so
	// the threshold must be respected exactly or short array tags
	// (e.g. a one-byte nodata string) would be misparsed as offsets.
	needsExternal := make([]bool, numEntries)
	externalOffset := ifdOffset + ifdSize
	offsets := make([]uint32, numEntries)
	cursor := externalOffset
	for i, e := range entries {
		if e.external != nil && len(e.external) > 4 {
			needsExternal[i] = true
			offsets[i] = uint32(cursor)
			cursor += len(e.external)
			if cursor%2 == 1 {
				cursor++ // word-align, matches common TIFF writers
			}
		}
	}
	payloadOffset := uint32(cursor)

	var buf bytes.Buffer
	buf.Write([]byte("II"))
	binary.Write(&buf, bo, uint16(42))
	binary.Write(&buf, bo, uint32(ifdOffset))

	binary.Write(&buf, bo, uint16(numEntries))
	for i, e := range entries {
		binary.Write(&buf, bo, e.tag)
		binary.Write(&buf, bo, e.dataType)
		binary.Write(&buf, bo, e.count)
		switch {
		case e.tag == tagTileOffsets:
			var b [4]byte
			bo.PutUint32(b[:], payloadOffset)
			buf.Write(b[:])
		case needsExternal[i]:
			var b [4]byte
			bo.PutUint32(b[:], offsets[i])
			buf.Write(b[:])
		case e.external != nil:
			var b [4]byte
			copy(b[:], e.external)
			buf.Write(b[:])
		default:
			buf.Write(e.inline[:])
		}
	}
	binary.Write(&buf, bo, uint32(0)) // no next IFD

	for i, e := range entries {
		if !needsExternal[i] {
			continue
		}
		buf.Write(e.external)
		if len(e.external)%2 == 1 {
			buf.WriteByte(0)
		}
	}

	if buf.Len() != int(payloadOffset) {
		return nil, fmt.Errorf("codec: internal TIFF layout mismatch: wrote %d bytes, expected payload at %d", buf.Len(), payloadOffset)
	}
	buf.Write(payload)

	return buf.Bytes(), nil
}

// tiffLevel is one chained IFD of a multi-level (pyramid) TIFF: the tag set
// for that level plus its own sample payload.
type tiffLevel struct {
	entries []writeEntry
	payload []byte
}

// assembleMultiIFD lays out a classic TIFF with one chained IFD per pyramid
// level, in order (levels[0] is the base/IFD0, per spec.md §4.4: "level z
// -> overview_level = z-1; level 0 -> base"). Each IFD's "next IFD" trailer
// field points at the following level's IFD, or 0 for the last one, so any
// conforming TIFF reader (and internal/codec's own parseTIFF) walks the
// whole pyramid as a simple linked list.
func assembleMultiIFD(levels []tiffLevel) ([]byte, error) {
	bo := binary.LittleEndian
	headerSize := 8

	type layout struct {
		ifdOffset      uint32
		payloadOffset  uint32
		needsExternal  []bool
		entryOffsets   []uint32
	}
	layouts := make([]layout, len(levels))

	cursor := headerSize
	for li, lvl := range levels {
		numEntries := len(lvl.entries)
		ifdSize := 2 + numEntries*12 + 4
		layouts[li].ifdOffset = uint32(cursor)
		cursor += ifdSize

		needsExternal := make([]bool, numEntries)
		entryOffsets := make([]uint32, numEntries)
		for i, e := range lvl.entries {
			if e.external != nil && len(e.external) > 4 {
				needsExternal[i] = true
				entryOffsets[i] = uint32(cursor)
				cursor += len(e.external)
				if cursor%2 == 1 {
					cursor++
				}
			}
		}
		layouts[li].needsExternal = needsExternal
		layouts[li].entryOffsets = entryOffsets
		layouts[li].payloadOffset = uint32(cursor)
		cursor += len(lvl.payload)
		if cursor%2 == 1 {
			cursor++
		}
	}

	var buf bytes.Buffer
	buf.Write([]byte("II"))
	binary.Write(&buf, bo, uint16(42))
	binary.Write(&buf, bo, layouts[0].ifdOffset)

	for li, lvl := range levels {
		lo := layouts[li]
		binary.Write(&buf, bo, uint16(len(lvl.entries)))
		for i, e := range lvl.entries {
			binary.Write(&buf, bo, e.tag)
			binary.Write(&buf, bo, e.dataType)
			binary.Write(&buf, bo, e.count)
			switch {
			case e.tag == tagTileOffsets:
				var b [4]byte
				bo.PutUint32(b[:], lo.payloadOffset)
				buf.Write(b[:])
			case lo.needsExternal[i]:
				var b [4]byte
				bo.PutUint32(b[:], lo.entryOffsets[i])
				buf.Write(b[:])
			case e.external != nil:
				var b [4]byte
				copy(b[:], e.external)
				buf.Write(b[:])
			default:
				buf.Write(e.inline[:])
			}
		}
		var nextIFD uint32
		if li+1 < len(levels) {
			nextIFD = layouts[li+1].ifdOffset
		}
		binary.Write(&buf, bo, nextIFD)

		for i, e := range lvl.entries {
			if !lo.needsExternal[i] {
				continue
			}
			buf.Write(e.external)
			if len(e.external)%2 == 1 {
				buf.WriteByte(0)
			}
		}

		if buf.Len() != int(lo.payloadOffset) {
			return nil, fmt.Errorf("codec: internal pyramid TIFF layout mismatch at level %d: wrote %d bytes, expected payload at %d", li, buf.Len(), lo.payloadOffset)
		}
		buf.Write(lvl.payload)
		if len(lvl.payload)%2 == 1 {
			buf.WriteByte(0)
		}
	}

	return buf.Bytes(), nil
}
