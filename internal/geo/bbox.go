package geo

// BBox is an axis-aligned bounding box in a CRS's own coordinate units.
// The spec's GeoPrimitives intentionally stop at bounding boxes: no general
// vector/feature geometry is modeled.
type BBox struct {
	MinX, MinY, MaxX, MaxY float64
}

// Empty reports whether the box contains no area.
func (b BBox) Empty() bool {
	return b.MinX >= b.MaxX || b.MinY >= b.MaxY
}

// Intersect returns the overlap of b and other, and whether they overlap at
// all (an empty-but-touching result is reported as no intersection).
func (b BBox) Intersect(other BBox) (BBox, bool) {
	r := BBox{
		MinX: max(b.MinX, other.MinX),
		MinY: max(b.MinY, other.MinY),
		MaxX: min(b.MaxX, other.MaxX),
		MaxY: min(b.MaxY, other.MaxY),
	}
	if r.Empty() {
		return BBox{}, false
	}
	return r, true
}

// Union returns the smallest box containing both b and other.
func (b BBox) Union(other BBox) BBox {
	return BBox{
		MinX: min(b.MinX, other.MinX),
		MinY: min(b.MinY, other.MinY),
		MaxX: max(b.MaxX, other.MaxX),
		MaxY: max(b.MaxY, other.MaxY),
	}
}

func max(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}

func min(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}
