package band

import (
	"context"
	"fmt"

	"github.com/edmstore/rasterstore/internal/codec"
	"github.com/edmstore/rasterstore/internal/meta"
	"github.com/edmstore/rasterstore/internal/rasterr"
	"github.com/edmstore/rasterstore/internal/resample"
	"github.com/edmstore/rasterstore/internal/rlog"
)

// UnSlicedBand is the whole-file, read-only band variant: the entire
// dataset is treated as a single virtual tile stored at backend.path
// itself (not a "{tx}_{ty}.tif" directory of tiles), per spec.md §4.6.
type UnSlicedBand struct {
	*base
}

// NewUnSliced opens an UnSlicedBand over md.
func NewUnSliced(md meta.BandMetadata, deps Deps) (*UnSlicedBand, error) {
	b, err := newBase(md, deps)
	if err != nil {
		return nil, err
	}
	return &UnSlicedBand{base: b}, nil
}

// Writeable is always false: UnSlicedBand is read-only by construction.
func (u *UnSlicedBand) Writeable() bool { return false }

// singleTileBlob fetches the band's single stored blob (its StoragePath
// itself, rather than a {tx}_{ty}.tif tile directory).
func (u *UnSlicedBand) singleTileBlob(ctx context.Context) ([]byte, bool, error) {
	key := u.cacheKey(0, 0)
	if cached, hit := u.deps.Cache.Get(key); hit {
		return cached, true, nil
	}
	access, err := u.deps.Gateway.AccessPath(ctx, u.md.StoragePath)
	if err != nil {
		if isNotFound(err) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("band: resolving access path for %q: %w", u.md.StoragePath, err)
	}
	blob, err := readAccessPath(ctx, access)
	if err != nil {
		return nil, false, fmt.Errorf("band: fetching %q: %w", u.md.StoragePath, err)
	}
	u.deps.Cache.Put(key, blob)
	return blob, true, nil
}

// ReadTile delegates to ReadRegion with the lattice tile's own transform
// and shape, per spec.md §4.6.
func (u *UnSlicedBand) ReadTile(ctx context.Context, x, y int) ([]byte, error) {
	info := u.GetTileInfo(x, y)
	tileTransform := u.lat.Transform.Translated(float64(info.PixelX), float64(info.PixelY))
	return u.ReadRegion(ctx, RegionRequest{Transform: tileTransform, XSize: info.Width, YSize: info.Height})
}

// ReadRegion uses the single-rect unsliced planner, returning an
// all-nodata buffer when the requested window doesn't intersect the data
// at all.
func (u *UnSlicedBand) ReadRegion(ctx context.Context, req RegionRequest) ([]byte, error) {
	xSize, ySize, err := clampRegionSize(req.XSize, req.YSize)
	if err != nil {
		return nil, err
	}
	sampleSize := u.sampleSize()
	out := make([]byte, xSize*ySize*sampleSize)
	u.fillNodata(out)

	plan, err := u.rebuildToBandCRS(req.Transform, xSize, ySize, req.CRS)
	if err != nil {
		return nil, err
	}
	if plan.Width <= 0 || plan.Height <= 0 {
		return out, nil
	}

	readPlan, ok := u.lat.PlanUnslicedRead(plan.Transform, plan.Width, plan.Height)
	if !ok {
		return out, nil
	}

	tile, ok, err := u.decodeTileLevel0(ctx)
	if err != nil {
		return nil, err
	}
	if !ok {
		return out, nil
	}

	factors, _, _ := u.lat.Factors()
	factor := 1
	if plan.Level >= 0 && plan.Level < len(factors) {
		factor = factors[plan.Level]
	}
	readRect := scaleDownRect(readPlan.ReadRect, factor)

	intermediate := make([]byte, plan.Width*plan.Height*sampleSize)
	u.fillNodata(intermediate)
	cropped := cropRect(tile.Data, tile.Width, tile.Height, readRect, sampleSize)
	blitRect(intermediate, plan.Width, plan.Height, readPlan.FillRect, cropped, sampleSize)

	if !plan.NeedReproject && plan.Width == xSize && plan.Height == ySize {
		return intermediate, nil
	}

	dstCRS := u.crs
	if req.CRS != nil {
		dstCRS = *req.CRS
	}
	return u.deps.Resampler.Run(ctx, resample.Request{
		Samples:      intermediate,
		DType:        u.dtype,
		SrcWidth:     plan.Width,
		SrcHeight:    plan.Height,
		SrcTransform: plan.Transform,
		SrcCRS:       u.crs,
		DstWidth:     xSize,
		DstHeight:    ySize,
		DstTransform: req.Transform,
		DstCRS:       dstCRS,
		NoData:       u.nodata,
		Method:       req.Method,
	})
}

// decodeTileLevel0 fetches and decodes the band's single stored blob at
// pyramid level 0. UnSlicedBand never addresses tiles by (tx, ty); it has
// its own fetch path (singleTileBlob) since the band's StoragePath is the
// blob itself, not a {tx}_{ty}.tif tile directory.
func (u *UnSlicedBand) decodeTileLevel0(ctx context.Context) (codec.Tile, bool, error) {
	blob, ok, err := u.singleTileBlob(ctx)
	if err != nil || !ok {
		return codec.Tile{}, ok, err
	}
	t, err := codec.DecodeLevel(blob, 0)
	if err != nil {
		return codec.Tile{}, false, fmt.Errorf("band: decoding %q: %w", u.md.StoragePath, err)
	}
	return t, true, nil
}

// write_* always fails with a warning, per spec.md §4.6.

func (u *UnSlicedBand) WriteTile(ctx context.Context, x, y int, data []byte) error {
	return u.writeRefused()
}

func (u *UnSlicedBand) WriteRegion(ctx context.Context, req WriteRequest) error {
	return u.writeRefused()
}

func (u *UnSlicedBand) writeRefused() error {
	rlog.Warnf("write rejected: band %q is unsliced (whole-file) and read-only", u.md.BandPath)
	return rasterr.NewValidationError("band %q is unsliced (whole-file) and read-only", u.md.BandPath)
}

var _ Band = (*UnSlicedBand)(nil)
