// Package lattice implements GlobalTileLattice: the fixed-size tile grid a
// raster is sliced into, plus the pyramid-level bookkeeping and read-window
// planning that let SlicedBand/UnSlicedBand serve arbitrary windowed reads.
//
// Grounded on _examples/original_source/tests/raster/test_global_tile.py,
// which pins down the exact resize/divisibility/offset semantics the prose
// specification leaves implicit, and adapted in idiom from
// pspoerri/geotiff2pmtiles's internal/coord package (plain exported
// functions over small value types, no hidden global state).
package lattice

import (
	"math"

	"github.com/edmstore/rasterstore/internal/geo"
	"github.com/edmstore/rasterstore/internal/rasterr"
)

// minPyramidDim is the pixel extent (of the longest raster side, divided by
// the level's factor) below which the factor-doubling synthesis stops.
const minPyramidDim = 256

// maxPyramidLevels bounds the factor table against degenerate (zero-size)
// inputs that would otherwise loop until overflow.
const maxPyramidLevels = 32

// Lattice is the global tile lattice for one band at its native resolution:
// a pixel grid of WidthPx x HeightPx sliced into TileSize x TileSize cells,
// anchored not to Transform's own origin but to the origin-snapped global
// grid (spec.md §3's TileLattice / §4.2's "origin snapping"), so two bands
// whose transforms differ only by a sub-tile shift still share the same
// tile boundaries.
type Lattice struct {
	Transform geo.Transform
	WidthPx   int
	HeightPx  int

	nativeTileSize int
	tileSize       int // current addressing tile size; see Resize

	// originPxX/originPxY are the pixel offsets, in the dataset's own pixel
	// space, from pixel (0,0) to the corner of lattice tile (0,0). They are
	// always in (-nativeTileSize, 0]: tile (0,0) is, by construction, the
	// origin-snapped tile that contains the dataset's own top-left pixel.
	originPxX int
	originPxY int
}

// New builds a Lattice at its native tile size. tileSize must be positive;
// no other constraint on it is checked.
func New(t geo.Transform, widthPx, heightPx, tileSize int) (*Lattice, error) {
	if widthPx <= 0 || heightPx <= 0 {
		return nil, rasterr.NewGeometryError("raster has non-positive size %dx%d", widthPx, heightPx)
	}
	if tileSize <= 0 {
		return nil, rasterr.NewConfigError("tile size must be positive, got %d", tileSize)
	}
	return &Lattice{
		Transform:      t,
		WidthPx:        widthPx,
		HeightPx:       heightPx,
		nativeTileSize: tileSize,
		tileSize:       tileSize,
		originPxX:      axisOriginOffset(t.OriginX, t.SnapX(), tileSize, t.ScaleX),
		originPxY:      axisOriginOffset(t.OriginY, t.SnapY(), tileSize, t.ScaleY),
	}, nil
}

// axisOriginOffset implements spec.md §4.2's tile_start_index(pt, origin,
// T, s) for one axis, specialized to pt = the dataset's own transform
// origin: it finds the origin-snapped grid line at snap + k*T*s (k
// integer) that sits at or before pt in the direction the grid advances
// from snap — a sign-aware floor, since math.Floor of a real quotient
// already rounds toward negative infinity regardless of the sign of the
// divisor T*s — and returns that line's position as a pixel count relative
// to pt. The result is always in (-T, 0]: the tile starting there is, by
// construction, the one containing pt.
func axisOriginOffset(pt, snap float64, tileSize int, scale float64) int {
	step := float64(tileSize) * scale
	k := math.Floor((pt - snap) / step)
	corner := snap + k*step
	return int(math.Round((corner - pt) / scale))
}

// TileSize returns the lattice's current addressing tile size (native
// unless Resize has been called).
func (l *Lattice) TileSize() int { return l.tileSize }

// NativeTileSize returns the tile size tiles are actually stored at.
func (l *Lattice) NativeTileSize() int { return l.nativeTileSize }

// Writeable reports whether this lattice's current addressing matches its
// native storage tile size 1:1. A resized lattice addresses virtual tiles
// that must be resolved back to native storage tiles before they can be
// written (ResolveStorageTile), so writes are rejected at any other size.
func (l *Lattice) Writeable() bool {
	return l.tileSize == l.nativeTileSize
}

// RangeX returns the number of tiles spanning the image horizontally at the
// current tile size, counting from the origin-snapped tile (0,0) corner
// rather than from the dataset's own pixel (0,0).
func (l *Lattice) RangeX() int {
	return ceilDiv(l.WidthPx-l.originPxX, l.tileSize)
}

// RangeY is RangeX's vertical analogue.
func (l *Lattice) RangeY() int {
	return ceilDiv(l.HeightPx-l.originPxY, l.tileSize)
}

// SnapX is the lattice's horizontal origin-snap offset: OriginX mod |ScaleX|.
// Two lattices with the same SnapX/SnapY and tile size share the same global
// tile boundaries even if their own pixel origins differ, which is what lets
// windowed reads spanning multiple source images line up on tile edges.
func (l *Lattice) SnapX() float64 { return l.Transform.SnapX() }

// SnapY is the vertical analogue of SnapX.
func (l *Lattice) SnapY() float64 { return l.Transform.SnapY() }

// Resize changes the lattice's addressing tile size. newSize must evenly
// divide the native tile size, or be an even multiple of it; anything else
// is rejected, matching test_global_tile.py's "does not evenly divide"
// ValidationError. Halving the tile size doubles the addressable tile
// range in each direction (more, smaller virtual tiles over the same
// pixels); doubling it halves the range. The origin-snap anchor
// (originPxX/originPxY) is fixed at construction time from the native tile
// size and does not move on resize: resizing subdivides the existing
// native grid rather than re-snapping a new one.
func (l *Lattice) Resize(newSize int) error {
	if newSize <= 0 {
		return rasterr.NewValidationError("tile size must be positive, got %d", newSize)
	}
	if newSize == l.nativeTileSize {
		l.tileSize = newSize
		return nil
	}
	if newSize < l.nativeTileSize {
		if l.nativeTileSize%newSize != 0 {
			return rasterr.NewValidationError("tile size %d does not evenly divide native tile size %d", newSize, l.nativeTileSize)
		}
	} else {
		if newSize%l.nativeTileSize != 0 {
			return rasterr.NewValidationError("tile size %d is not an even multiple of native tile size %d", newSize, l.nativeTileSize)
		}
	}
	l.tileSize = newSize
	return nil
}

// Factors synthesizes the pyramid factor table: [1, f1, f2, ...] built by
// repeatedly doubling the previous factor until max(WidthPx, HeightPx) /
// factor drops below minPyramidDim. factors[z] is the downsampling factor
// of pyramid level z; scaleX[z]/scaleY[z] are the per-level pixel scale
// (Transform.ScaleX/ScaleY * factors[z]).
func (l *Lattice) Factors() (factors []int, scaleX, scaleY []float64) {
	factors = []int{1}
	longest := l.WidthPx
	if l.HeightPx > longest {
		longest = l.HeightPx
	}
	for longest/factors[len(factors)-1] >= minPyramidDim && len(factors) < maxPyramidLevels {
		factors = append(factors, factors[len(factors)-1]*2)
	}
	scaleX = make([]float64, len(factors))
	scaleY = make([]float64, len(factors))
	for i, f := range factors {
		scaleX[i] = l.Transform.ScaleX * float64(f)
		scaleY[i] = l.Transform.ScaleY * float64(f)
	}
	return factors, scaleX, scaleY
}

// LevelForScale picks the largest pyramid level z whose horizontal scale is
// <= the requested scale, i.e. the coarsest level that is still at least as
// fine as a read at that scale needs. Level 0 (native
// resolution) is returned if no level satisfies the bound or the factor
// table has only the native level.
func (l *Lattice) LevelForScale(requestedScaleX float64) int {
	factors, scaleX, _ := l.Factors()
	best := 0
	for z := range factors {
		if math.Abs(scaleX[z]) <= math.Abs(requestedScaleX) {
			best = z
		}
	}
	return best
}

// TileInfo identifies one tile of the global lattice and its pixel
// footprint, expressed in the dataset's own pixel space (PixelX/PixelY may
// be negative or exceed WidthPx/HeightPx at the lattice's outer edges,
// since the origin-snapped grid need not start or end exactly at the
// dataset's own bounds).
type TileInfo struct {
	TileX, TileY   int
	PixelX, PixelY int // top-left pixel offset of this tile, relative to the dataset's own pixel (0,0)
	Width, Height  int // actual pixel size (edge tiles may be smaller than TileSize)
}

// GetTileInfo returns the footprint of the tile at lattice tile index
// (tx, ty), at the current addressing tile size, per spec.md §4.2's
// get_tile_info(x, y). Tile (0,0) is the origin-snapped tile containing
// the dataset's own pixel (0,0); PixelX/PixelY are computed from the
// lattice's snap anchor, not by dividing a raw dataset-local pixel
// coordinate.
func (l *Lattice) GetTileInfo(tx, ty int) TileInfo {
	x0 := l.originPxX + tx*l.tileSize
	y0 := l.originPxY + ty*l.tileSize
	w := l.tileSize
	if x0+w > l.WidthPx {
		w = l.WidthPx - x0
	}
	h := l.tileSize
	if y0+h > l.HeightPx {
		h = l.HeightPx - y0
	}
	return TileInfo{TileX: tx, TileY: ty, PixelX: x0, PixelY: y0, Width: w, Height: h}
}

// GetAllTileInfos enumerates every tile in the lattice at the current
// addressing tile size, row-major.
func (l *Lattice) GetAllTileInfos() []TileInfo {
	rx, ry := l.RangeX(), l.RangeY()
	out := make([]TileInfo, 0, rx*ry)
	for ty := 0; ty < ry; ty++ {
		for tx := 0; tx < rx; tx++ {
			out = append(out, l.GetTileInfo(tx, ty))
		}
	}
	return out
}

// StorageTileRef resolves a (possibly virtual, resized) tile down to the
// native storage tile that holds it, plus the pixel-offset window within
// that native tile the virtual tile corresponds to.
type StorageTileRef struct {
	NativeTileX, NativeTileY int
	OffsetX, OffsetY         int // pixel offset within the native tile
	Width, Height            int // pixel size of the referenced window
}

// ResolveStorageTile maps a tile addressed at the current (post-Resize)
// tile size back to its backing native storage tile. When the lattice has
// not been resized this is the identity tile with a zero offset. Native
// tile indices are derived from the same origin-snap anchor as GetTileInfo,
// so they line up with the storage tiles that anchor actually produced.
func (l *Lattice) ResolveStorageTile(tx, ty int) StorageTileRef {
	info := l.GetTileInfo(tx, ty)
	if l.tileSize == l.nativeTileSize {
		return StorageTileRef{NativeTileX: tx, NativeTileY: ty, Width: info.Width, Height: info.Height}
	}

	relX := info.PixelX - l.originPxX
	relY := info.PixelY - l.originPxY
	nativeTX := floorDivInt(relX, l.nativeTileSize)
	nativeTY := floorDivInt(relY, l.nativeTileSize)
	offX := relX - nativeTX*l.nativeTileSize
	offY := relY - nativeTY*l.nativeTileSize
	return StorageTileRef{
		NativeTileX: nativeTX, NativeTileY: nativeTY,
		OffsetX: offX, OffsetY: offY,
		Width: info.Width, Height: info.Height,
	}
}

// ceilDiv divides two non-negative ints, rounding up.
func ceilDiv(a, b int) int {
	if a <= 0 {
		return 0
	}
	return (a + b - 1) / b
}

// floorDivInt is integer division rounded toward negative infinity (Go's
// native / truncates toward zero, which is wrong for a negative numerator).
func floorDivInt(a, b int) int {
	q := a / b
	if a%b != 0 && (a < 0) != (b < 0) {
		q--
	}
	return q
}

// ceilDivInt is floorDivInt's rounded-toward-positive-infinity counterpart.
func ceilDivInt(a, b int) int {
	return -floorDivInt(-a, b)
}
