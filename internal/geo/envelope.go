package geo

import (
	"fmt"

	"github.com/airbusgeo/godal"
)

// densifySteps is the number of sample points generated along each edge of
// an envelope before reprojection, so curved reprojection paths (e.g. a
// polar or oblique CRS) are bounded conservatively instead of only
// transforming the four corners, per spec.md §4.1.
const densifySteps = 9

// ReprojectBBox reprojects bbox from src to dst by densifying its boundary
// (corners plus densifySteps samples per edge) and transforming every
// sample point via godal's coordinate transform, grounded on
// other_examples' dtm-elevation-service gdal.go (godal.NewTransform +
// TransformEx). Returns bbox unchanged, without invoking GDAL, when src and
// dst are the same CRS.
func (d *Driver) ReprojectBBox(bbox BBox, src, dst CRS) (BBox, error) {
	same, err := d.IsSame(src, dst)
	if err != nil {
		return BBox{}, fmt.Errorf("geo: comparing CRS for reprojection: %w", err)
	}
	if same {
		return bbox, nil
	}

	srcSR, err := d.spatialRef(src.wkt)
	if err != nil {
		return BBox{}, fmt.Errorf("geo: resolving source CRS: %w", err)
	}
	dstSR, err := d.spatialRef(dst.wkt)
	if err != nil {
		return BBox{}, fmt.Errorf("geo: resolving destination CRS: %w", err)
	}

	transform, err := godal.NewTransform(srcSR, dstSR)
	if err != nil {
		return BBox{}, fmt.Errorf("geo: building coordinate transform: %w", err)
	}
	defer transform.Close()

	xs, ys := densifyBoundary(bbox)
	ok := make([]bool, len(xs))
	if err := transform.TransformEx(xs, ys, nil, ok); err != nil {
		return BBox{}, fmt.Errorf("geo: reprojecting envelope: %w", err)
	}

	out := BBox{}
	found := false
	for i := range xs {
		if !ok[i] {
			continue
		}
		if !found {
			out = BBox{MinX: xs[i], MaxX: xs[i], MinY: ys[i], MaxY: ys[i]}
			found = true
			continue
		}
		out.MinX = min(out.MinX, xs[i])
		out.MaxX = max(out.MaxX, xs[i])
		out.MinY = min(out.MinY, ys[i])
		out.MaxY = max(out.MaxY, ys[i])
	}
	if !found {
		return BBox{}, fmt.Errorf("%w: no boundary sample point reprojected successfully", ErrGeometry)
	}
	return out, nil
}

// densifyBoundary samples bbox's four edges at densifySteps intervals plus
// its four corners, returning parallel x/y slices.
func densifyBoundary(bbox BBox) (xs, ys []float64) {
	corners := [][2]float64{
		{bbox.MinX, bbox.MinY}, {bbox.MaxX, bbox.MinY},
		{bbox.MaxX, bbox.MaxY}, {bbox.MinX, bbox.MaxY},
	}
	for i := 0; i < 4; i++ {
		a := corners[i]
		b := corners[(i+1)%4]
		for s := 0; s < densifySteps; s++ {
			frac := float64(s) / float64(densifySteps)
			xs = append(xs, a[0]+(b[0]-a[0])*frac)
			ys = append(ys, a[1]+(b[1]-a[1])*frac)
		}
	}
	return xs, ys
}
