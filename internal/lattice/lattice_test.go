package lattice

import (
	"testing"

	"github.com/edmstore/rasterstore/internal/geo"
)

func mustTransform(t *testing.T, ox, sx, oy, sy float64) geo.Transform {
	t.Helper()
	tr, err := geo.NewTransform(ox, sx, oy, sy)
	if err != nil {
		t.Fatalf("NewTransform: %v", err)
	}
	return tr
}

func TestRangeAndTileInfo(t *testing.T) {
	tr := mustTransform(t, 0, 1, 0, -1)
	l, err := New(tr, 1000, 513, 256)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if got := l.RangeX(); got != 4 {
		t.Errorf("RangeX = %d, want 4", got)
	}
	if got := l.RangeY(); got != 3 {
		t.Errorf("RangeY = %d, want 3", got)
	}

	// Last column/row tiles are clipped to the image bounds.
	last := l.GetTileInfo(3, 2)
	if last.TileX != 3 || last.TileY != 2 {
		t.Fatalf("last tile index = (%d,%d), want (3,2)", last.TileX, last.TileY)
	}
	if last.Width != 1000-3*256 || last.Height != 513-2*256 {
		t.Errorf("last tile size = %dx%d, want %dx%d", last.Width, last.Height, 1000-3*256, 513-2*256)
	}
}

// TestOriginSnapIsShiftInvariant mirrors
// original_source/tests/raster/test_global_tile.py::test_tile_info: two
// datasets whose transforms differ only by a sub-tile pixel shift must
// still report the same tile (0,0) corner, since the lattice is anchored
// to the origin-snapped global grid, not to each dataset's own pixel
// (0,0).
func TestOriginSnapIsShiftInvariant(t *testing.T) {
	base := mustTransform(t, 12834619, 30, 5011732, -30)
	l1, err := New(base, 2000, 2000, 2048)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	info1 := l1.GetTileInfo(0, 0)
	corner1 := l1.Transform.Translated(float64(info1.PixelX), float64(info1.PixelY))

	shifted := mustTransform(t, base.OriginX+base.ScaleX*20, base.ScaleX, base.OriginY+base.ScaleY*20, base.ScaleY)
	l2, err := New(shifted, 2000, 2000, 2048)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	info2 := l2.GetTileInfo(0, 0)
	corner2 := l2.Transform.Translated(float64(info2.PixelX), float64(info2.PixelY))

	if corner1 != corner2 {
		t.Errorf("tile (0,0) corner differs after a 20px origin shift: %v vs %v", corner1, corner2)
	}

	// Shifting the origin the other way by one tile width should land the
	// shifted dataset's pixel (0,0) in what it now calls tile (1,0), whose
	// corner must still match the unshifted dataset's tile (0,0) corner.
	leftShifted := mustTransform(t, base.OriginX-base.ScaleX*2048, base.ScaleX, base.OriginY, base.ScaleY)
	l3, err := New(leftShifted, 2000, 2000, 2048)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	info3 := l3.GetTileInfo(1, 0)
	corner3 := l3.Transform.Translated(float64(info3.PixelX), float64(info3.PixelY))
	x1, _ := corner1.ToCoord(0, 0)
	x3, _ := corner3.ToCoord(0, 0)
	if x1 != x3 {
		t.Errorf("tile (0,0)/(1,0) corner x mismatch across a whole-tile shift: %v vs %v", x1, x3)
	}
}

func TestResizeDivisibility(t *testing.T) {
	tr := mustTransform(t, 0, 1, 0, -1)
	l, err := New(tr, 1024, 1024, 256)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	if err := l.Resize(128); err != nil {
		t.Fatalf("Resize(128): %v", err)
	}
	if l.Writeable() {
		t.Errorf("lattice resized to non-native size 128 (native 256) reported Writeable")
	}
	if got, want := l.RangeX(), 8; got != want {
		t.Errorf("RangeX after halving tile size = %d, want %d", got, want)
	}

	if err := l.Resize(256); err != nil {
		t.Fatalf("Resize(256): %v", err)
	}
	if !l.Writeable() {
		t.Errorf("lattice resized back to native size reported not Writeable")
	}

	if err := l.Resize(300); err == nil {
		t.Errorf("Resize(300) on native tile size 256 should fail (does not evenly divide)")
	}
}

func TestResolveStorageTile(t *testing.T) {
	tr := mustTransform(t, 0, 1, 0, -1)
	l, err := New(tr, 1024, 1024, 256)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := l.Resize(128); err != nil {
		t.Fatalf("Resize: %v", err)
	}

	ref := l.ResolveStorageTile(3, 1) // virtual tile at px (384, 128)
	if ref.NativeTileX != 1 || ref.NativeTileY != 0 {
		t.Fatalf("native tile = (%d,%d), want (1,0)", ref.NativeTileX, ref.NativeTileY)
	}
	if ref.OffsetX != 128 || ref.OffsetY != 128 {
		t.Fatalf("offset = (%d,%d), want (128,128)", ref.OffsetX, ref.OffsetY)
	}
}

func TestFactorsShrinkBelowThreshold(t *testing.T) {
	tr := mustTransform(t, 0, 1, 0, -1)
	l, err := New(tr, 2048, 2048, 256)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	factors, scaleX, _ := l.Factors()
	if factors[0] != 1 {
		t.Fatalf("factors[0] = %d, want 1", factors[0])
	}
	longest := l.WidthPx
	if factors[len(factors)-1]*minPyramidDim > longest*2 {
		t.Errorf("factor table grew past the point the longest dimension fell below %d", minPyramidDim)
	}
	for i := 1; i < len(scaleX); i++ {
		if scaleX[i] <= scaleX[i-1] {
			t.Errorf("scaleX not strictly increasing across levels: %v", scaleX)
		}
	}
}

func TestPlanSlicedReadDisjointFillRects(t *testing.T) {
	tr := mustTransform(t, 0, 1, 0, -1)
	l, err := New(tr, 1024, 1024, 256)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	readT := mustTransform(t, 100, 1, -100, -1)
	plans, err := l.PlanSlicedRead(readT, 500, 500)
	if err != nil {
		t.Fatalf("PlanSlicedRead: %v", err)
	}
	if len(plans) == 0 {
		t.Fatalf("expected at least one tile plan")
	}

	seen := map[[4]int]bool{}
	var totalArea int
	for _, p := range plans {
		key := [4]int{p.FillRect.X, p.FillRect.Y, p.FillRect.Width, p.FillRect.Height}
		if seen[key] {
			t.Errorf("duplicate fill rect %v", key)
		}
		seen[key] = true
		totalArea += p.FillRect.Width * p.FillRect.Height

		if p.ReadRect.Width != p.FillRect.Width || p.ReadRect.Height != p.FillRect.Height {
			t.Errorf("read/fill rect size mismatch for tile (%d,%d): read=%v fill=%v", p.TileX, p.TileY, p.ReadRect, p.FillRect)
		}
	}

	for i := range plans {
		for j := i + 1; j < len(plans); j++ {
			a, b := plans[i].FillRect, plans[j].FillRect
			if a.X < b.X+b.Width && b.X < a.X+a.Width && a.Y < b.Y+b.Height && b.Y < a.Y+a.Height {
				t.Errorf("fill rects of tiles (%d,%d) and (%d,%d) overlap: %v vs %v", plans[i].TileX, plans[i].TileY, plans[j].TileX, plans[j].TileY, a, b)
			}
		}
	}
}

func TestPlanSlicedReadNoOverlap(t *testing.T) {
	tr := mustTransform(t, 0, 1, 0, -1)
	l, err := New(tr, 256, 256, 256)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	readT := mustTransform(t, 10000, 1, -10000, -1)
	plans, err := l.PlanSlicedRead(readT, 100, 100)
	if err != nil {
		t.Fatalf("PlanSlicedRead: %v", err)
	}
	if len(plans) != 0 {
		t.Errorf("expected no tile plans for a window entirely outside the lattice, got %d", len(plans))
	}
}
