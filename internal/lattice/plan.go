package lattice

import (
	"github.com/edmstore/rasterstore/internal/geo"
)

// Rect is an integer pixel rectangle, top-left origin.
type Rect struct {
	X, Y, Width, Height int
}

// Empty reports whether the rect covers no pixels.
func (r Rect) Empty() bool { return r.Width <= 0 || r.Height <= 0 }

// TileReadPlan describes the portion of one native storage tile that feeds
// one portion of a destination read buffer: ReadRect is the pixel window
// within the tile's own data, FillRect is where that window lands in the
// destination buffer. Per spec.md's concurrency model, the FillRects
// produced by a single Plan call are pairwise disjoint, so callers may
// write them into a shared destination buffer from parallel workers without
// synchronizing with each other.
type TileReadPlan struct {
	TileX, TileY int
	ReadRect     Rect
	FillRect     Rect
}

// boundsToCoordBBox maps a pixel-space rectangle [0,xSize)x[0,ySize) through
// t into CRS coordinate space, accounting for either scale sign.
func boundsToCoordBBox(t geo.Transform, xSize, ySize int) geo.BBox {
	x0, y0 := t.ToCoord(0, 0)
	x1, y1 := t.ToCoord(float64(xSize), float64(ySize))
	return geo.BBox{
		MinX: minf(x0, x1), MaxX: maxf(x0, x1),
		MinY: minf(y0, y1), MaxY: maxf(y0, y1),
	}
}

func minf(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}
func maxf(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}

// coordBBoxToPixelRect maps a CRS bbox back to a pixel rect through t,
// rounding with the lattice's tie-bumping convention (geo.RoundPixels) so adjacent
// tiles' rects abut exactly instead of leaving or overlapping a
// sub-pixel sliver at shared boundaries (the size-symmetry property).
func coordBBoxToPixelRect(t geo.Transform, bbox geo.BBox) Rect {
	px0, py0 := t.ToPixel(bbox.MinX, bbox.MinY)
	px1, py1 := t.ToPixel(bbox.MaxX, bbox.MaxY)
	xa, xb := px0, px1
	if xa > xb {
		xa, xb = xb, xa
	}
	ya, yb := py0, py1
	if ya > yb {
		ya, yb = yb, ya
	}
	x := geo.RoundPixels(xa)
	y := geo.RoundPixels(ya)
	w := geo.RoundPixels(xb) - x
	h := geo.RoundPixels(yb) - y
	return Rect{X: int(x), Y: int(y), Width: int(w), Height: int(h)}
}

// normalizeRectPair enforces spec.md §4.2's size-symmetry invariant: a and b
// are rounded independently from the same CRS-space overlap through two
// transforms that can differ in origin (even at equal scale), so that
// rounding can land their widths/heights a pixel apart at the boundary. This
// grows the smaller side of each dimension to match the larger rather than
// ever shrinking, so a blit never writes past the bounds the caller already
// sized its buffer to.
func normalizeRectPair(a, b Rect) (Rect, Rect) {
	a.Width, b.Width = max(a.Width, b.Width), max(a.Width, b.Width)
	a.Height, b.Height = max(a.Height, b.Height), max(a.Height, b.Height)
	return a, b
}

// PlanSlicedRead computes, for a destination window described by
// readTransform/xSize/ySize (in the lattice's own CRS), the set of native
// storage tiles that intersect it and the read/fill rectangle pair for
// each. Tiles with no intersection are omitted. An empty result means the
// requested window does not overlap the lattice at all.
func (l *Lattice) PlanSlicedRead(readTransform geo.Transform, xSize, ySize int) ([]TileReadPlan, error) {
	if xSize <= 0 || ySize <= 0 {
		return nil, nil
	}
	destBBox := boundsToCoordBBox(readTransform, xSize, ySize)
	latticeBBox := boundsToCoordBBox(l.Transform, l.WidthPx, l.HeightPx)

	overlap, ok := destBBox.Intersect(latticeBBox)
	if !ok {
		return nil, nil
	}

	// Find the native tile index range touched by the overlap. Tile indices
	// are relative to the lattice's origin-snap anchor (originPxX/Y), not
	// the dataset's own raw pixel (0,0), and a floor/ceil that round toward
	// -/+infinity are required rather than plain truncating division since
	// the relative coordinate can be negative at the lattice's outer edge.
	startPxRect := coordBBoxToPixelRect(l.Transform, overlap)
	relX0 := startPxRect.X - l.originPxX
	relY0 := startPxRect.Y - l.originPxY
	tx0 := floorDivInt(relX0, l.nativeTileSize)
	ty0 := floorDivInt(relY0, l.nativeTileSize)
	tx1 := ceilDivInt(relX0+startPxRect.Width, l.nativeTileSize)
	ty1 := ceilDivInt(relY0+startPxRect.Height, l.nativeTileSize)

	var plans []TileReadPlan
	for ty := ty0; ty < ty1; ty++ {
		for tx := tx0; tx < tx1; tx++ {
			info := l.GetTileInfo(tx, ty)
			tileBBox := boundsToCoordBBox(
				l.Transform.Translated(float64(info.PixelX), float64(info.PixelY)),
				info.Width, info.Height,
			)
			tileOverlap, ok := tileBBox.Intersect(destBBox)
			if !ok {
				continue
			}

			readRect := coordBBoxToPixelRect(l.Transform.Translated(float64(info.PixelX), float64(info.PixelY)), tileOverlap)
			fillRect := coordBBoxToPixelRect(readTransform, tileOverlap)
			if readRect.Empty() || fillRect.Empty() {
				continue
			}
			readRect, fillRect = normalizeRectPair(readRect, fillRect)
			plans = append(plans, TileReadPlan{
				TileX: tx, TileY: ty,
				ReadRect: readRect,
				FillRect: fillRect,
			})
		}
	}
	return plans, nil
}

// UnslicedReadPlan is the read/fill rectangle pair for a whole-file
// (non-tiled) band read.
type UnslicedReadPlan struct {
	ReadRect Rect
	FillRect Rect
}

// PlanUnslicedRead is PlanSlicedRead's analogue for UnSlicedBand: the whole
// source raster is the only "tile", so there is exactly one read/fill
// rectangle pair (or none, if the window doesn't overlap at all).
func (l *Lattice) PlanUnslicedRead(readTransform geo.Transform, xSize, ySize int) (UnslicedReadPlan, bool) {
	if xSize <= 0 || ySize <= 0 {
		return UnslicedReadPlan{}, false
	}
	destBBox := boundsToCoordBBox(readTransform, xSize, ySize)
	latticeBBox := boundsToCoordBBox(l.Transform, l.WidthPx, l.HeightPx)
	overlap, ok := destBBox.Intersect(latticeBBox)
	if !ok {
		return UnslicedReadPlan{}, false
	}
	readRect := coordBBoxToPixelRect(l.Transform, overlap)
	fillRect := coordBBoxToPixelRect(readTransform, overlap)
	if readRect.Empty() || fillRect.Empty() {
		return UnslicedReadPlan{}, false
	}
	readRect, fillRect = normalizeRectPair(readRect, fillRect)
	return UnslicedReadPlan{ReadRect: readRect, FillRect: fillRect}, true
}
