package main

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/airbusgeo/godal"

	"github.com/edmstore/rasterstore/internal/geo"
)

// byteOrder matches internal/band's convention for in-memory tile sample
// buffers (little-endian), so data ingest produces here feeds WriteTile
// without a further conversion step.
var byteOrder = binary.LittleEndian

// godalToGeoType maps a godal.DataType (as reported by Dataset.Structure
// or Band.Structure) to this store's own geo.DataType. godal's unsigned
// 16/32-bit types have no exact counterpart in geo.DataType's signed set,
// so they widen to the next type with enough range (UInt16 -> Int32,
// UInt32 -> Float64, the only geo.DataType guaranteed to represent every
// uint32 value exactly) rather than silently truncating or reinterpreting
// the sign bit.
func godalToGeoType(dt godal.DataType) geo.DataType {
	switch dt {
	case godal.Byte:
		return geo.Uint8
	case godal.Int16:
		return geo.Int16
	case godal.UInt16:
		return geo.Int32
	case godal.Int32:
		return geo.Int32
	case godal.UInt32:
		return geo.Float64
	case godal.Float32:
		return geo.Float32
	case godal.Float64:
		return geo.Float64
	default:
		return geo.Float64
	}
}

// nativeBuffer allocates a buffer of n samples in dtype's native Go type,
// the shape godal.Dataset/Band.Read expect via reflection on the buffer.
func nativeBuffer(dtype godal.DataType, n int) interface{} {
	switch dtype {
	case godal.Byte:
		return make([]byte, n)
	case godal.Int16:
		return make([]int16, n)
	case godal.UInt16:
		return make([]uint16, n)
	case godal.Int32:
		return make([]int32, n)
	case godal.UInt32:
		return make([]uint32, n)
	case godal.Float32:
		return make([]float32, n)
	case godal.Float64:
		return make([]float64, n)
	default:
		return make([]float64, n)
	}
}

// toFloat64 widens any native godal sample buffer to float64, exactly:
// every value a nativeBuffer type can hold (including the full uint32
// range) is representable without loss in a float64.
func toFloat64(buf interface{}) []float64 {
	switch v := buf.(type) {
	case []byte:
		out := make([]float64, len(v))
		for i, s := range v {
			out[i] = float64(s)
		}
		return out
	case []int16:
		out := make([]float64, len(v))
		for i, s := range v {
			out[i] = float64(s)
		}
		return out
	case []uint16:
		out := make([]float64, len(v))
		for i, s := range v {
			out[i] = float64(s)
		}
		return out
	case []int32:
		out := make([]float64, len(v))
		for i, s := range v {
			out[i] = float64(s)
		}
		return out
	case []uint32:
		out := make([]float64, len(v))
		for i, s := range v {
			out[i] = float64(s)
		}
		return out
	case []float32:
		out := make([]float64, len(v))
		for i, s := range v {
			out[i] = float64(s)
		}
		return out
	case []float64:
		return v
	default:
		panic(fmt.Sprintf("rasterstore: unexpected native buffer %T", buf))
	}
}

// encodeGeoSamples renders a slice of sample values (already widened to
// float64) as a tightly packed byte buffer of dtype, in byteOrder --
// internal/band.encodeSample's single-value shape, applied across a whole
// window's worth of samples at once.
func encodeGeoSamples(values []float64, dtype geo.DataType) []byte {
	out := make([]byte, len(values)*dtype.ByteSize())
	n := dtype.ByteSize()
	for i, v := range values {
		off := i * n
		switch dtype {
		case geo.Int16:
			byteOrder.PutUint16(out[off:], uint16(int16(v)))
		case geo.Int32:
			byteOrder.PutUint32(out[off:], uint32(int32(v)))
		case geo.Float32:
			byteOrder.PutUint32(out[off:], math.Float32bits(float32(v)))
		case geo.Float64:
			byteOrder.PutUint64(out[off:], math.Float64bits(v))
		default:
			out[off] = byte(int8(v))
		}
	}
	return out
}

// readWindowAsGeoType reads the w x h window at (px, py) from band, which
// is natively nativeType, and returns it encoded as target.
func readWindowAsGeoType(band godal.Band, nativeType godal.DataType, px, py, w, h int, target geo.DataType) ([]byte, error) {
	buf := nativeBuffer(nativeType, w*h)
	if err := band.Read(px, py, buf, w, h); err != nil {
		return nil, err
	}
	return encodeGeoSamples(toFloat64(buf), target), nil
}
