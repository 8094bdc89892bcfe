// Package resample implements the Resampler/Reprojector component: warping
// a source raster window into a destination grid, possibly in a different
// CRS, using a chosen resampling kernel.
//
// Grounded on github.com/airbusgeo/godal (see other_examples' dataset.go,
// doc_test.go, and utilities_test.go for the Warp/WarpInto/CreationOption
// shapes this wraps, and Klaus-Tockloth-dtm-elevation-service's gdal.go for
// the NewSpatialRefFromEPSG/NewTransform coordinate-transform idiom), the
// same library pspoerri/geotiff2pmtiles's domain neighbor repos in the
// example pack reach for when they need real reprojection instead of
// hand-rolled pixel math.
package resample

import (
	"context"
	"encoding/binary"
	"fmt"
	"math"

	"github.com/airbusgeo/godal"

	"github.com/edmstore/rasterstore/internal/geo"
	"github.com/edmstore/rasterstore/internal/rasterr"
)

// Request describes one resampling/reprojection operation: read Samples
// (one band's worth of raw pixel data at SrcWidth x SrcHeight, SrcTransform,
// SrcCRS) and produce a DstWidth x DstHeight buffer at DstTransform in
// DstCRS.
type Request struct {
	Samples      []byte
	DType        geo.DataType
	SrcWidth     int
	SrcHeight    int
	SrcTransform geo.Transform
	SrcCRS       geo.CRS
	DstWidth     int
	DstHeight    int
	DstTransform geo.Transform
	DstCRS       geo.CRS
	NoData       *float64
	Method       geo.ResampleMethod
}

// Resampler reprojects and resamples raster windows via godal's warp API.
type Resampler struct {
	driver *geo.Driver
}

// New returns a Resampler using driver for CRS resolution.
func New(driver *geo.Driver) *Resampler {
	return &Resampler{driver: driver}
}

// Run executes req, returning the destination pixel buffer (DstWidth *
// DstHeight samples of req.DType, row-major, native byte order matching the
// rest of the store's in-memory buffers).
func (r *Resampler) Run(ctx context.Context, req Request) ([]byte, error) {
	if req.SrcWidth <= 0 || req.SrcHeight <= 0 || req.DstWidth <= 0 || req.DstHeight <= 0 {
		return nil, rasterr.NewShapeError("resample: non-positive dimensions (src %dx%d, dst %dx%d)",
			req.SrcWidth, req.SrcHeight, req.DstWidth, req.DstHeight)
	}
	sameCRS, err := r.sameCRS(req)
	if err != nil {
		return nil, err
	}
	if sameCRS && req.SrcTransform == req.DstTransform && req.SrcWidth == req.DstWidth && req.SrcHeight == req.DstHeight {
		// Passthrough: no resampling or reprojection needed at all.
		out := make([]byte, len(req.Samples))
		copy(out, req.Samples)
		return out, nil
	}

	srcSR, err := r.driver.SpatialRef(req.SrcCRS)
	if err != nil {
		return nil, fmt.Errorf("resample: resolving source CRS: %w", err)
	}
	dstSR, err := r.driver.SpatialRef(req.DstCRS)
	if err != nil {
		return nil, fmt.Errorf("resample: resolving destination CRS: %w", err)
	}

	srcDS, err := r.memDataset(req.SrcWidth, req.SrcHeight, req.DType, req.SrcTransform, srcSR, req.Samples, req.NoData)
	if err != nil {
		return nil, fmt.Errorf("resample: building source dataset: %w", err)
	}
	defer srcDS.Close()

	dstDS, err := r.emptyMemDataset(req.DstWidth, req.DstHeight, req.DType, req.DstTransform, dstSR, req.NoData)
	if err != nil {
		return nil, fmt.Errorf("resample: building destination dataset: %w", err)
	}
	defer dstDS.Close()

	// spec.md §4.3: per-axis nodata honoured on both ends, unified
	// src-nodata, 21 sample steps, sample-grid enabled, 1-pixel source
	// extra, multi-threaded worker hint. The OGR_CT_FORCE_TRADITIONAL_GIS_ORDER
	// config option pins traditional (lon/lat) GIS axis order per spec.md §4.1 so an authority-order geographic CRS
	// (PROJ 6+ defaults to lat/lon for EPSG:4326) never silently swaps axes.
	switches := []string{
		"-r", req.Method.GDALName(),
		"-wo", "SAMPLE_STEPS=21",
		"-wo", "SAMPLE_GRID=YES",
		"-wo", "SOURCE_EXTRA=1",
		"-wo", "UNIFIED_SRC_NODATA=YES",
		"-wo", "NUM_THREADS=ALL_CPUS",
	}
	if req.NoData != nil {
		nodataStr := fmt.Sprintf("%v", *req.NoData)
		switches = append(switches, "-srcnodata", nodataStr, "-dstnodata", nodataStr)
	}
	axisOrder := godal.ConfigOption("OGR_CT_FORCE_TRADITIONAL_GIS_ORDER=YES")
	if err := dstDS.WarpInto([]*godal.Dataset{srcDS}, switches, axisOrder); err != nil {
		return nil, fmt.Errorf("resample: warp: %w", err)
	}

	typedOut := newTypedBuffer(req.DType, req.DstWidth*req.DstHeight)
	if err := dstDS.Read(0, 0, typedOut, req.DstWidth, req.DstHeight); err != nil {
		return nil, fmt.Errorf("resample: reading warped destination: %w", err)
	}
	return encodeTypedBuffer(typedOut, req.DType), nil
}

func (r *Resampler) sameCRS(req Request) (bool, error) {
	return r.driver.IsSame(req.SrcCRS, req.DstCRS)
}

func (r *Resampler) memDataset(w, h int, dtype geo.DataType, t geo.Transform, sr *godal.SpatialRef, data []byte, nodata *float64) (*godal.Dataset, error) {
	ds, err := godal.Create(godal.Memory, "", 1, gdalDType(dtype), w, h)
	if err != nil {
		return nil, err
	}
	if err := ds.SetGeoTransform([6]float64{t.OriginX, t.ScaleX, 0, t.OriginY, 0, t.ScaleY}); err != nil {
		ds.Close()
		return nil, err
	}
	if err := ds.SetSpatialRef(sr); err != nil {
		ds.Close()
		return nil, err
	}
	if nodata != nil {
		if err := ds.SetNoData(*nodata); err != nil {
			ds.Close()
			return nil, err
		}
	}
	if err := ds.Write(0, 0, decodeTypedBuffer(data, dtype), w, h); err != nil {
		ds.Close()
		return nil, err
	}
	return ds, nil
}

func (r *Resampler) emptyMemDataset(w, h int, dtype geo.DataType, t geo.Transform, sr *godal.SpatialRef, nodata *float64) (*godal.Dataset, error) {
	ds, err := godal.Create(godal.Memory, "", 1, gdalDType(dtype), w, h)
	if err != nil {
		return nil, err
	}
	if err := ds.SetGeoTransform([6]float64{t.OriginX, t.ScaleX, 0, t.OriginY, 0, t.ScaleY}); err != nil {
		ds.Close()
		return nil, err
	}
	if err := ds.SetSpatialRef(sr); err != nil {
		ds.Close()
		return nil, err
	}
	if nodata != nil {
		if err := ds.SetNoData(*nodata); err != nil {
			ds.Close()
			return nil, err
		}
	}
	return ds, nil
}

func gdalDType(d geo.DataType) godal.DataType {
	switch d {
	case geo.Int16:
		return godal.Int16
	case geo.Int32:
		return godal.Int32
	case geo.Float32:
		return godal.Float32
	case geo.Float64:
		return godal.Float64
	default:
		return godal.Byte
	}
}

// byteOrder is the native byte order the rest of the store's pixel buffers
// use (internal/band.byteOrder); Dataset.Read/Write take a typed Go slice
// reflected to its GDAL equivalent, so this package converts at the boundary
// instead of assuming the raw byte layout.
var byteOrder = binary.LittleEndian

// newTypedBuffer allocates a buffer of n samples of dtype's native Go type,
// the shape godal.Dataset.Read/Write expect via reflection on buffer.
func newTypedBuffer(dtype geo.DataType, n int) interface{} {
	switch dtype {
	case geo.Int16:
		return make([]int16, n)
	case geo.Int32:
		return make([]int32, n)
	case geo.Float32:
		return make([]float32, n)
	case geo.Float64:
		return make([]float64, n)
	default:
		return make([]uint8, n)
	}
}

// decodeTypedBuffer converts a raw byte buffer (native byte order) into the
// typed slice godal's dataset IO expects.
func decodeTypedBuffer(data []byte, dtype geo.DataType) interface{} {
	n := len(data) / dtype.ByteSize()
	switch dtype {
	case geo.Int16:
		out := make([]int16, n)
		for i := range out {
			out[i] = int16(byteOrder.Uint16(data[i*2:]))
		}
		return out
	case geo.Int32:
		out := make([]int32, n)
		for i := range out {
			out[i] = int32(byteOrder.Uint32(data[i*4:]))
		}
		return out
	case geo.Float32:
		out := make([]float32, n)
		for i := range out {
			out[i] = math.Float32frombits(byteOrder.Uint32(data[i*4:]))
		}
		return out
	case geo.Float64:
		out := make([]float64, n)
		for i := range out {
			out[i] = math.Float64frombits(byteOrder.Uint64(data[i*8:]))
		}
		return out
	default:
		out := make([]uint8, n)
		copy(out, data)
		return out
	}
}

// encodeTypedBuffer is decodeTypedBuffer's inverse: it renders a typed slice
// back into the store's raw native-byte-order buffer layout.
func encodeTypedBuffer(buf interface{}, dtype geo.DataType) []byte {
	switch v := buf.(type) {
	case []int16:
		out := make([]byte, len(v)*2)
		for i, s := range v {
			byteOrder.PutUint16(out[i*2:], uint16(s))
		}
		return out
	case []int32:
		out := make([]byte, len(v)*4)
		for i, s := range v {
			byteOrder.PutUint32(out[i*4:], uint32(s))
		}
		return out
	case []float32:
		out := make([]byte, len(v)*4)
		for i, s := range v {
			byteOrder.PutUint32(out[i*4:], math.Float32bits(s))
		}
		return out
	case []float64:
		out := make([]byte, len(v)*8)
		for i, s := range v {
			byteOrder.PutUint64(out[i*8:], math.Float64bits(s))
		}
		return out
	case []uint8:
		out := make([]byte, len(v))
		copy(out, v)
		return out
	default:
		panic(fmt.Sprintf("resample: unexpected typed buffer %T", buf))
	}
}
