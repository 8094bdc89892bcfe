// Package band implements the SlicedBand/UnSlicedBand adapters: the public
// surface a caller actually reads and writes raster windows through. Both
// variants share a base that wires together GlobalTileLattice, TileCodec,
// BackendGateway, TileCache, Resampler/Reprojector, and WorkPool, per
// spec.md §4.6.
//
// Grounded on pspoerri/geotiff2pmtiles's internal/tile/generator.go, which
// plays the same composing role for the teacher's z/x/y slippy pyramid: one
// type owning a coord system, a codec, and a disk store, producing tiles on
// demand.
package band

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"os"
	"strconv"
	"strings"

	"github.com/edmstore/rasterstore/internal/backend"
	"github.com/edmstore/rasterstore/internal/cache"
	"github.com/edmstore/rasterstore/internal/codec"
	"github.com/edmstore/rasterstore/internal/geo"
	"github.com/edmstore/rasterstore/internal/lattice"
	"github.com/edmstore/rasterstore/internal/meta"
	"github.com/edmstore/rasterstore/internal/rasterr"
	"github.com/edmstore/rasterstore/internal/resample"
	"github.com/edmstore/rasterstore/internal/rlog"
	"github.com/edmstore/rasterstore/internal/workpool"
)

// maxRegionPixels is the inclusive bound spec.md §4.6/SPEC_FULL.md Open
// Question #2 unify xSize/ySize to for both band kinds: (0, 4096].
const maxRegionPixels = 4096

// byteOrder is the in-memory byte order band buffers and codec.Tile.Data
// share; writer.go always emits little-endian TIFFs, so this matches
// without a conversion step at the codec boundary.
var byteOrder = binary.LittleEndian

// Deps bundles the collaborators a Band needs, shared process-wide across
// every open band.
type Deps struct {
	Gateway   backend.Gateway
	Cache     *cache.Cache
	Codec     *codec.Codec
	Resampler *resample.Resampler
	Driver    *geo.Driver
	Pool      *workpool.Pool
}

// Band is the public surface shared by SlicedBand and UnSlicedBand, per
// spec.md §4.6's "two variants sharing the public surface".
type Band interface {
	ReadTile(ctx context.Context, x, y int) ([]byte, error)
	ReadRegion(ctx context.Context, req RegionRequest) ([]byte, error)
	WriteTile(ctx context.Context, x, y int, data []byte) error
	WriteRegion(ctx context.Context, req WriteRequest) error
	GetTileInfo(x, y int) lattice.TileInfo
	GetAllTileInfos() []lattice.TileInfo
	Datatype() geo.DataType
	NoDataValue() (float64, bool)
	RasterCount() int
	Writeable() bool
}

// RegionRequest describes a windowed read, per spec.md §4.6's
// read_region(transform, xSize, ySize, project?, resample?).
type RegionRequest struct {
	Transform geo.Transform
	XSize     int
	YSize     int
	// CRS is the caller's requested CRS. nil means "the band's own CRS",
	// i.e. no reprojection (spec.md's "project?").
	CRS *geo.CRS
	// Method is the resampling kernel to use when reprojection or a
	// resolution change is required. The zero value is ResampleNearest.
	Method geo.ResampleMethod
}

// WriteRequest describes a windowed write, per spec.md §4.6's
// write_region(transform, data).
type WriteRequest struct {
	Transform geo.Transform
	XSize     int
	YSize     int
	CRS       *geo.CRS
	Data      []byte
}

// base holds the fields and helper methods common to SlicedBand and
// UnSlicedBand.
type base struct {
	md      meta.BandMetadata
	lat     *lattice.Lattice
	crs     geo.CRS
	dtype   geo.DataType
	nodata  *float64
	deps    Deps
	readOnly bool
}

func newBase(md meta.BandMetadata, deps Deps) (*base, error) {
	if len(md.DTypes) == 0 {
		return nil, rasterr.NewValidationError("band %q has no declared sample types", md.BandPath)
	}
	driver := deps.Driver
	crs, err := driver.FromUserInput(md.CRS)
	if err != nil {
		return nil, fmt.Errorf("band: resolving CRS for %q: %w", md.BandPath, err)
	}
	lat, err := lattice.New(md.Transform, md.Shape[1], md.Shape[0], md.TileSize)
	if err != nil {
		return nil, fmt.Errorf("band: building lattice for %q: %w", md.BandPath, err)
	}
	var nodata *float64
	if len(md.NoData) > 0 {
		v := md.NoData[0]
		nodata = &v
	}
	return &base{
		md:       md,
		lat:      lat,
		crs:      crs,
		dtype:    md.DTypes[0],
		nodata:   nodata,
		deps:     deps,
		readOnly: md.ReadOnly,
	}, nil
}

func (b *base) Datatype() geo.DataType { return b.dtype }

func (b *base) NoDataValue() (float64, bool) {
	if b.nodata == nil {
		return 0, false
	}
	return *b.nodata, true
}

func (b *base) RasterCount() int { return b.md.RasterCount }

func (b *base) GetTileInfo(x, y int) lattice.TileInfo {
	return b.lat.GetTileInfo(x, y)
}

func (b *base) GetAllTileInfos() []lattice.TileInfo {
	return b.lat.GetAllTileInfos()
}

// sampleSize is the byte width of one pixel sample.
func (b *base) sampleSize() int { return b.dtype.ByteSize() }

// storagePath is the backend path of the native storage tile (tx, ty).
func (b *base) storagePath(tx, ty int) string {
	return strings.TrimSuffix(b.md.StoragePath, "/") + fmt.Sprintf("/%d_%d.tif", tx, ty)
}

// cacheKey identifies the raw-blob cache slot for native tile (tx, ty).
// Pyramid levels all live in the same stored blob (one file per tile holds
// every overview IFD), so the cache is keyed on the raw blob, not per level.
func (b *base) cacheKey(tx, ty int) cache.Key {
	return cache.Key{ImageID: b.md.BandPath, Band: 0, Level: 0, TileX: tx, TileY: ty}
}

// fetchTileBlob returns the raw stored bytes for native tile (tx, ty),
// consulting TileCache first and falling back to BackendGateway.AccessPath,
// per spec.md §4.5 ("the cache is consulted on every read through
// access_path"). ok is false (with a nil error) when the tile simply has
// never been written.
func (b *base) fetchTileBlob(ctx context.Context, tx, ty int) (blob []byte, ok bool, err error) {
	key := b.cacheKey(tx, ty)
	if cached, hit := b.deps.Cache.Get(key); hit {
		return cached, true, nil
	}

	path := b.storagePath(tx, ty)
	access, err := b.deps.Gateway.AccessPath(ctx, path)
	if err != nil {
		if isNotFound(err) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("band: resolving access path for tile (%d,%d): %w", tx, ty, err)
	}

	blob, err = readAccessPath(ctx, access)
	if err != nil {
		return nil, false, fmt.Errorf("band: fetching tile (%d,%d): %w", tx, ty, err)
	}
	b.deps.Cache.Put(key, blob)
	return blob, true, nil
}

// isNotFound reports whether err indicates a missing tile/blob, as opposed
// to a real backend failure.
func isNotFound(err error) bool {
	return errors.Is(err, rasterr.NotFound)
}

// readAccessPath fetches the bytes behind a BackendGateway.AccessPath
// result: an HTTP GET for a presigned URL, a direct read for a local path,
// per spec.md §4.7's cache_tile task ("fetch bytes via HTTP GET or local
// read").
func readAccessPath(ctx context.Context, access string) ([]byte, error) {
	if strings.HasPrefix(access, "http://") || strings.HasPrefix(access, "https://") {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, access, nil)
		if err != nil {
			return nil, err
		}
		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			return nil, rasterr.NewBackendError(true, "GET %s: %v", access, err)
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			return nil, rasterr.NewBackendError(resp.StatusCode >= 500, "GET %s: status %d", access, resp.StatusCode)
		}
		return io.ReadAll(resp.Body)
	}
	return readLocalFile(access)
}

// readLocalFile reads a local tile/blob file via mmap, following
// pspoerri/geotiff2pmtiles's internal/cog/reader.go (which mmaps the whole
// source COG once per open rather than paying a read syscall per access).
// Here the mapping is transient: one map-copy-unmap per fetch, since bands
// don't keep a persistent handle on backend files the way the teacher's COG
// reader does.
func readLocalFile(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, err
	}
	size := int(info.Size())
	if size == 0 {
		return nil, nil
	}

	mapped, err := mmapFile(f.Fd(), size)
	if err != nil {
		// Non-Unix platforms (mmap_other.go's !unix build) fall back to a
		// plain read rather than failing outright.
		return os.ReadFile(path)
	}
	defer munmapFile(mapped)

	out := make([]byte, size)
	copy(out, mapped)
	return out, nil
}

// decodeTileLevel fetches and decodes native tile (tx, ty) at pyramid level
// z. ok is false when the tile has never been written.
func (b *base) decodeTileLevel(ctx context.Context, tx, ty, z int) (t codec.Tile, ok bool, err error) {
	blob, ok, err := b.fetchTileBlob(ctx, tx, ty)
	if err != nil || !ok {
		return codec.Tile{}, ok, err
	}
	t, err = codec.DecodeLevel(blob, z)
	if err != nil {
		return codec.Tile{}, false, fmt.Errorf("band: decoding tile (%d,%d) level %d: %w", tx, ty, z, err)
	}
	return t, true, nil
}

// fillNodata fills buf (laid out as count samples of the band's dtype) with
// the nodata sentinel, or zero if the band declares none.
func (b *base) fillNodata(buf []byte) {
	if b.nodata == nil {
		return // the zero value already zero-fills Go-allocated slices
	}
	sample := encodeSample(*b.nodata, b.dtype)
	n := b.sampleSize()
	for off := 0; off+n <= len(buf); off += n {
		copy(buf[off:off+n], sample)
	}
}

// encodeSample renders v as n bytes of dtype in byteOrder.
func encodeSample(v float64, dtype geo.DataType) []byte {
	buf := make([]byte, dtype.ByteSize())
	switch dtype {
	case geo.Int16:
		byteOrder.PutUint16(buf, uint16(int16(v)))
	case geo.Int32:
		byteOrder.PutUint32(buf, uint32(int32(v)))
	case geo.Float32:
		byteOrder.PutUint32(buf, math.Float32bits(float32(v)))
	case geo.Float64:
		byteOrder.PutUint64(buf, math.Float64bits(v))
	default:
		buf[0] = byte(int8(v))
	}
	return buf
}

// cropRect extracts the sub-rectangle r (in pixel coordinates local to a
// srcW x srcH buffer) as a tightly packed buffer, sampleSize bytes/sample.
func cropRect(src []byte, srcW, srcH int, r lattice.Rect, sampleSize int) []byte {
	out := make([]byte, r.Width*r.Height*sampleSize)
	rowBytes := r.Width * sampleSize
	for row := 0; row < r.Height; row++ {
		sy := r.Y + row
		if sy < 0 || sy >= srcH {
			continue
		}
		srcOff := (sy*srcW + r.X) * sampleSize
		dstOff := row * rowBytes
		if r.X < 0 || r.X+r.Width > srcW || srcOff+rowBytes > len(src) {
			// Partial row at a ragged edge tile: copy what's in bounds.
			for col := 0; col < r.Width; col++ {
				sx := r.X + col
				if sx < 0 || sx >= srcW {
					continue
				}
				so := (sy*srcW + sx) * sampleSize
				do := dstOff + col*sampleSize
				if so+sampleSize <= len(src) {
					copy(out[do:do+sampleSize], src[so:so+sampleSize])
				}
			}
			continue
		}
		copy(out[dstOff:dstOff+rowBytes], src[srcOff:srcOff+rowBytes])
	}
	return out
}

// blitRect writes a tightly-packed srcW_r x srcH_r buffer (r.Width x
// r.Height samples) into dst (a dstW x dstH buffer) at top-left r.X, r.Y.
func blitRect(dst []byte, dstW, dstH int, r lattice.Rect, data []byte, sampleSize int) {
	rowBytes := r.Width * sampleSize
	for row := 0; row < r.Height; row++ {
		dy := r.Y + row
		if dy < 0 || dy >= dstH {
			continue
		}
		srcOff := row * rowBytes
		if srcOff+rowBytes > len(data) {
			break
		}
		if r.X < 0 || r.X+r.Width > dstW {
			for col := 0; col < r.Width; col++ {
				dx := r.X + col
				if dx < 0 || dx >= dstW {
					continue
				}
				so := srcOff + col*sampleSize
				do := (dy*dstW + dx) * sampleSize
				copy(dst[do:do+sampleSize], data[so:so+sampleSize])
			}
			continue
		}
		dstOff := (dy*dstW + r.X) * sampleSize
		copy(dst[dstOff:dstOff+rowBytes], data[srcOff:srcOff+rowBytes])
	}
}

// clampRegionSize enforces spec.md §4.6 step 1: clamp xSize, ySize to
// (0, 4096], warning when the caller's request exceeded the bound.
func clampRegionSize(xSize, ySize int) (int, int, error) {
	if xSize <= 0 || ySize <= 0 {
		return 0, 0, rasterr.NewShapeError("read_region size must be positive, got %dx%d", xSize, ySize)
	}
	if xSize > maxRegionPixels {
		rlog.Warnf("read_region: xSize %d exceeds %d, clamping", xSize, maxRegionPixels)
		xSize = maxRegionPixels
	}
	if ySize > maxRegionPixels {
		rlog.Warnf("read_region: ySize %d exceeds %d, clamping", ySize, maxRegionPixels)
		ySize = maxRegionPixels
	}
	return xSize, ySize, nil
}

// envelopeOf maps a transform/shape pixel window into CRS coordinate space.
func envelopeOf(t geo.Transform, w, h int) geo.BBox {
	x0, y0 := t.ToCoord(0, 0)
	x1, y1 := t.ToCoord(float64(w), float64(h))
	bb := geo.BBox{MinX: x0, MaxX: x0, MinY: y0, MaxY: y0}
	if x1 < bb.MinX {
		bb.MinX = x1
	}
	if x1 > bb.MaxX {
		bb.MaxX = x1
	}
	if y1 < bb.MinY {
		bb.MinY = y1
	}
	if y1 > bb.MaxY {
		bb.MaxY = y1
	}
	return bb
}

// epsFraction bounds the relative tolerance used to decide whether a
// requested transform already matches the native grid closely enough that
// no reprojection/resampling is needed.
const epsFraction = 1e-9

func scalesMatch(a, b float64) bool {
	if b == 0 {
		return a == 0
	}
	return math.Abs(a-b) <= math.Abs(b)*epsFraction
}

// rebuildPlan is the outcome of rebuild_transform_to_target_crs
// (spec.md §4.2): the intermediate grid a sliced read is planned against,
// in the band's own CRS, plus whether a warp is still needed afterward.
type rebuildPlan struct {
	Transform     geo.Transform
	Width, Height int
	Level         int
	NeedReproject bool
}

// rebuildToBandCRS implements spec.md §4.2's rebuild_transform_to_target_crs:
// reproject the requested window into the band's CRS, pick the coarsest
// pyramid level that is not coarser than the requested resolution, and snap
// the reprojected envelope to that level's pixel grid, clipped to the data
// envelope.
func (b *base) rebuildToBandCRS(req geo.Transform, xSize, ySize int, reqCRS *geo.CRS) (rebuildPlan, error) {
	native := b.lat.Transform
	sameCRS := reqCRS == nil
	if !sameCRS {
		same, err := b.deps.Driver.IsSame(*reqCRS, b.crs)
		if err != nil {
			return rebuildPlan{}, fmt.Errorf("band: comparing CRS: %w", err)
		}
		sameCRS = same
	}
	sameScale := scalesMatch(req.ScaleX, native.ScaleX) && scalesMatch(req.ScaleY, native.ScaleY)

	if sameCRS && sameScale {
		return rebuildPlan{Transform: req, Width: xSize, Height: ySize, Level: 0, NeedReproject: false}, nil
	}

	targetBBox := envelopeOf(req, xSize, ySize)
	srcCRS := b.crs
	if reqCRS != nil {
		srcCRS = *reqCRS
	}
	reprojected, err := b.deps.Driver.ReprojectBBox(targetBBox, srcCRS, b.crs)
	if err != nil {
		return rebuildPlan{}, fmt.Errorf("band: reprojecting read envelope: %w", err)
	}

	effectiveScaleX := (reprojected.MaxX - reprojected.MinX) / float64(xSize)
	z := b.lat.LevelForScale(effectiveScaleX)
	_, scaleX, scaleY := b.lat.Factors()
	levelScaleX, levelScaleY := math.Abs(scaleX[z]), math.Abs(scaleY[z])

	snapX, snapY := native.SnapX(), native.SnapY()
	minX := snapOutward(reprojected.MinX, snapX, levelScaleX, false)
	maxX := snapOutward(reprojected.MaxX, snapX, levelScaleX, true)
	maxY := snapOutward(reprojected.MaxY, snapY, levelScaleY, true)
	minY := snapOutward(reprojected.MinY, snapY, levelScaleY, false)

	snapped := geo.BBox{MinX: minX, MaxX: maxX, MinY: minY, MaxY: maxY}
	dataBBox := envelopeOf(native, b.lat.WidthPx, b.lat.HeightPx)
	clipped, ok := snapped.Intersect(dataBBox)
	if !ok {
		return rebuildPlan{Transform: req, Width: 0, Height: 0, Level: z, NeedReproject: true}, nil
	}

	w := int(math.Round((clipped.MaxX - clipped.MinX) / levelScaleX))
	h := int(math.Round((clipped.MaxY - clipped.MinY) / levelScaleY))
	if w <= 0 || h <= 0 {
		return rebuildPlan{Transform: req, Width: 0, Height: 0, Level: z, NeedReproject: true}, nil
	}

	snappedTransform := geo.Transform{
		OriginX: clipped.MinX,
		ScaleX:  levelScaleX,
		OriginY: clipped.MaxY,
		ScaleY:  -levelScaleY,
	}
	return rebuildPlan{Transform: snappedTransform, Width: w, Height: h, Level: z, NeedReproject: true}, nil
}

// snapOutward rounds v to the nearest grid line at snap + k*scale (k
// integer) that lies outside v relative to the box being enlarged:
// roundUp chooses the ceiling grid line (growing the box on the max side),
// otherwise the floor grid line (growing it on the min side). Always
// enlarging rather than shrinking matches the "enlarge whichever is
// smaller" size-normalization invariant spec.md §4.2 states for
// ReadRect/FillRect, applied here to the envelope snap itself.
func snapOutward(v, snap, scale float64, roundUp bool) float64 {
	n := (v - snap) / scale
	if roundUp {
		n = math.Ceil(n)
	} else {
		n = math.Floor(n)
	}
	return snap + n*scale
}

// scaleDownRect divides a Rect's coordinates by factor with integer
// division (truncating; width and height are kept at least 1), to map a
// native-resolution (level 0) pixel rectangle
// into the corresponding pyramid-level-z rectangle within a downsampled
// tile.
func scaleDownRect(r lattice.Rect, factor int) lattice.Rect {
	if factor <= 1 {
		return r
	}
	return lattice.Rect{
		X:      r.X / factor,
		Y:      r.Y / factor,
		Width:  maxInt(1, r.Width/factor),
		Height: maxInt(1, r.Height/factor),
	}
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

// parseEPSGFromCRS extracts a numeric EPSG code from a "EPSG:n"-shaped
// identifier for embedding in a written tile's GeoTIFF GeoKeys; any other
// identifier form is embedded without a GeoKey (the transform alone still
// round-trips through this package's own codec).
func parseEPSGFromCRS(ident string) int {
	const prefix = "EPSG:"
	if !strings.HasPrefix(strings.ToUpper(ident), prefix) {
		return 0
	}
	n, err := strconv.Atoi(ident[len(prefix):])
	if err != nil {
		return 0
	}
	return n
}
