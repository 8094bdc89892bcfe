package band

import (
	"context"
	"fmt"

	"github.com/edmstore/rasterstore/internal/codec"
	"github.com/edmstore/rasterstore/internal/geo"
	"github.com/edmstore/rasterstore/internal/lattice"
	"github.com/edmstore/rasterstore/internal/meta"
	"github.com/edmstore/rasterstore/internal/rasterr"
	"github.com/edmstore/rasterstore/internal/resample"
	"github.com/edmstore/rasterstore/internal/rlog"
	"github.com/edmstore/rasterstore/internal/workpool"
)

// SlicedBand is the tiled-store band variant: readable and, when writeable,
// writable one native storage tile at a time, per spec.md §4.6.
type SlicedBand struct {
	*base
}

// NewSliced opens a SlicedBand over md.
func NewSliced(md meta.BandMetadata, deps Deps) (*SlicedBand, error) {
	b, err := newBase(md, deps)
	if err != nil {
		return nil, err
	}
	return &SlicedBand{base: b}, nil
}

// Writeable reports the invariant spec.md §5 states: !readonly &&
// lattice.tile_size == lattice.resize_tile_size.
func (s *SlicedBand) Writeable() bool {
	return !s.readOnly && s.lat.Writeable()
}

// ReadTile returns the T x T array for the lattice tile at (x, y), filled
// with nodata where the backing tile blob is absent.
func (s *SlicedBand) ReadTile(ctx context.Context, x, y int) ([]byte, error) {
	ref := s.lat.ResolveStorageTile(x, y)
	info := s.GetTileInfo(x, y)
	sampleSize := s.sampleSize()
	out := make([]byte, info.Width*info.Height*sampleSize)
	s.fillNodata(out)

	tile, ok, err := s.decodeTileLevel(ctx, ref.NativeTileX, ref.NativeTileY, 0)
	if err != nil {
		return nil, err
	}
	if !ok {
		return out, nil
	}

	window := lattice.Rect{X: ref.OffsetX, Y: ref.OffsetY, Width: ref.Width, Height: ref.Height}
	if window.X == 0 && window.Y == 0 && window.Width == tile.Width && window.Height == tile.Height {
		copy(out, tile.Data)
		return out, nil
	}
	return cropRect(tile.Data, tile.Width, tile.Height, window, sampleSize), nil
}

// ReadRegion implements spec.md §4.6's 6-step read_region for a tiled band.
func (s *SlicedBand) ReadRegion(ctx context.Context, req RegionRequest) ([]byte, error) {
	xSize, ySize, err := clampRegionSize(req.XSize, req.YSize)
	if err != nil {
		return nil, err
	}

	plan, err := s.rebuildToBandCRS(req.Transform, xSize, ySize, req.CRS)
	if err != nil {
		return nil, err
	}
	sampleSize := s.sampleSize()
	if plan.Width <= 0 || plan.Height <= 0 {
		out := make([]byte, xSize*ySize*sampleSize)
		s.fillNodata(out)
		return out, nil
	}

	tilePlans, err := s.lat.PlanSlicedRead(plan.Transform, plan.Width, plan.Height)
	if err != nil {
		return nil, fmt.Errorf("band: planning sliced read: %w", err)
	}

	intermediate := make([]byte, plan.Width*plan.Height*sampleSize)
	s.fillNodata(intermediate)

	factors, _, _ := s.lat.Factors()
	factor := 1
	if plan.Level >= 0 && plan.Level < len(factors) {
		factor = factors[plan.Level]
	}

	order := make([]workpool.TileCoord, len(tilePlans))
	for i, p := range tilePlans {
		order[i] = workpool.TileCoord{Level: plan.Level, TileX: p.TileX, TileY: p.TileY}
	}
	workpool.SortByHilbert(order)
	orderIndex := make(map[workpool.TileCoord]int, len(order))
	for i, c := range order {
		orderIndex[c] = i
	}
	ordered := make([]lattice.TileReadPlan, len(tilePlans))
	for _, p := range tilePlans {
		ordered[orderIndex[workpool.TileCoord{Level: plan.Level, TileX: p.TileX, TileY: p.TileY}]] = p
	}

	fetchErr := workpool.Fetch(ctx, s.deps.Pool, ordered, func(ctx context.Context, p lattice.TileReadPlan) error {
		tile, ok, err := s.decodeTileLevel(ctx, p.TileX, p.TileY, plan.Level)
		if err != nil {
			return err
		}
		if !ok {
			return nil // missing tile is a no-op; intermediate stays nodata
		}
		readRect := scaleDownRect(p.ReadRect, factor)
		cropped := cropRect(tile.Data, tile.Width, tile.Height, readRect, sampleSize)
		blitRect(intermediate, plan.Width, plan.Height, p.FillRect, cropped, sampleSize)
		return nil
	})
	if fetchErr != nil {
		rlog.Warnf("read_region: tile fetch failed, affected tiles left as nodata: %v", fetchErr)
	}

	if !plan.NeedReproject && plan.Width == xSize && plan.Height == ySize {
		return intermediate, nil
	}

	dstCRS := s.crs
	if req.CRS != nil {
		dstCRS = *req.CRS
	}
	return s.deps.Resampler.Run(ctx, resample.Request{
		Samples:      intermediate,
		DType:        s.dtype,
		SrcWidth:     plan.Width,
		SrcHeight:    plan.Height,
		SrcTransform: plan.Transform,
		SrcCRS:       s.crs,
		DstWidth:     xSize,
		DstHeight:    ySize,
		DstTransform: req.Transform,
		DstCRS:       dstCRS,
		NoData:       s.nodata,
		Method:       req.Method,
	})
}

// WriteTile composes and uploads the tile GeoTIFF for native storage tile
// (x, y), refusing when the band is not writeable.
func (s *SlicedBand) WriteTile(ctx context.Context, x, y int, data []byte) error {
	if !s.Writeable() {
		return rasterr.NewValidationError("band %q is not writeable (readonly or resized)", s.md.BandPath)
	}
	info := s.GetTileInfo(x, y)
	sampleSize := s.sampleSize()
	if len(data) != info.Width*info.Height*sampleSize {
		return rasterr.NewShapeError("write_tile data is %d bytes, expected %d (%dx%d)", len(data), info.Width*info.Height*sampleSize, info.Width, info.Height)
	}

	blob, err := s.encodeTile(info, data)
	if err != nil {
		return err
	}

	path := s.storagePath(x, y)
	if _, err := s.deps.Gateway.UploadBytes(ctx, path, blob); err != nil {
		return fmt.Errorf("band: uploading tile (%d,%d): %w", x, y, err)
	}
	s.deps.Cache.Remove(s.cacheKey(x, y))
	return nil
}

// WriteTileAsync is WriteTile's fire-and-forget counterpart, per spec.md
// §4.6's "optionally fire-and-forget to the WorkPool" and §4.7's
// upload_tile task.
func (s *SlicedBand) WriteTileAsync(x, y int, data []byte) error {
	if !s.Writeable() {
		return rasterr.NewValidationError("band %q is not writeable (readonly or resized)", s.md.BandPath)
	}
	info := s.GetTileInfo(x, y)
	sampleSize := s.sampleSize()
	if len(data) != info.Width*info.Height*sampleSize {
		return rasterr.NewShapeError("write_tile data is %d bytes, expected %d (%dx%d)", len(data), info.Width*info.Height*sampleSize, info.Width, info.Height)
	}
	blob, err := s.encodeTile(info, data)
	if err != nil {
		return err
	}
	path := s.storagePath(x, y)
	key := s.cacheKey(x, y)
	s.deps.Pool.UploadTile(func() error {
		_, err := s.deps.Gateway.UploadBytes(context.Background(), path, blob)
		if err == nil {
			s.deps.Cache.Remove(key)
		}
		return err
	})
	return nil
}

func (s *SlicedBand) encodeTile(info lattice.TileInfo, data []byte) ([]byte, error) {
	t := codec.Tile{
		Width:  info.Width,
		Height: info.Height,
		DType:  s.dtype,
		NoData: s.nodata,
		Geo: codec.GeoInfo{
			EPSG:      parseEPSGFromCRS(s.crs.String()),
			Transform: s.lat.Transform.Translated(float64(info.PixelX), float64(info.PixelY)),
		},
		Data: data,
	}
	factors, _, _ := s.lat.Factors()
	blob, err := s.deps.Codec.EncodeWithOverviews(t, factors)
	if err != nil {
		return nil, fmt.Errorf("band: encoding tile (%d,%d): %w", info.TileX, info.TileY, err)
	}
	return blob, nil
}

// WriteRegion reads each touched tile (to preserve out-of-window pixels),
// blits the input into it, and writes it back, per spec.md §4.6.
func (s *SlicedBand) WriteRegion(ctx context.Context, req WriteRequest) error {
	if !s.Writeable() {
		return rasterr.NewValidationError("band %q is not writeable (readonly or resized)", s.md.BandPath)
	}
	xSize, ySize, err := clampRegionSize(req.XSize, req.YSize)
	if err != nil {
		return err
	}
	if len(req.Data) != xSize*ySize*s.sampleSize() {
		return rasterr.NewShapeError("write_region data is %d bytes, expected %d (%dx%d)", len(req.Data), xSize*ySize*s.sampleSize(), xSize, ySize)
	}

	input := req.Data
	inTransform := req.Transform
	sameCRS := true
	if req.CRS != nil {
		same, err := s.deps.Driver.IsSame(*req.CRS, s.crs)
		if err != nil {
			return fmt.Errorf("band: comparing CRS for write_region: %w", err)
		}
		sameCRS = same
	}
	sameScale := scalesMatch(req.Transform.ScaleX, s.lat.Transform.ScaleX) && scalesMatch(req.Transform.ScaleY, s.lat.Transform.ScaleY)
	needWarp := !(sameCRS && sameScale)
	if needWarp {
		srcCRS := s.crs
		if req.CRS != nil {
			srcCRS = *req.CRS
		}
		warped, err := s.deps.Resampler.Run(ctx, resample.Request{
			Samples:      req.Data,
			DType:        s.dtype,
			SrcWidth:     xSize,
			SrcHeight:    ySize,
			SrcTransform: req.Transform,
			SrcCRS:       srcCRS,
			DstWidth:     xSize,
			DstHeight:    ySize,
			DstTransform: req.Transform,
			DstCRS:       s.crs,
			NoData:       s.nodata,
			Method:       geo.ResampleNearest,
		})
		if err != nil {
			return fmt.Errorf("band: warping write_region input: %w", err)
		}
		input = warped
		inTransform = req.Transform
	}

	plans, err := s.lat.PlanSlicedRead(inTransform, xSize, ySize)
	if err != nil {
		return fmt.Errorf("band: planning write_region: %w", err)
	}

	sampleSize := s.sampleSize()
	return workpool.Fetch(ctx, s.deps.Pool, plans, func(ctx context.Context, p lattice.TileReadPlan) error {
		info := s.lat.GetTileInfo(p.TileX, p.TileY)
		tileBuf := make([]byte, info.Width*info.Height*sampleSize)
		s.fillNodata(tileBuf)
		existing, ok, err := s.decodeTileLevel(ctx, p.TileX, p.TileY, 0)
		if err != nil {
			return err
		}
		if ok {
			copy(tileBuf, existing.Data)
		}

		patch := cropRect(input, xSize, ySize, p.FillRect, sampleSize)
		blitRect(tileBuf, info.Width, info.Height, p.ReadRect, patch, sampleSize)

		blob, err := s.encodeTile(info, tileBuf)
		if err != nil {
			return err
		}
		path := s.storagePath(p.TileX, p.TileY)
		if _, err := s.deps.Gateway.UploadBytes(ctx, path, blob); err != nil {
			return fmt.Errorf("band: uploading tile (%d,%d): %w", p.TileX, p.TileY, err)
		}
		s.deps.Cache.Remove(s.cacheKey(p.TileX, p.TileY))
		return nil
	})
}

var _ Band = (*SlicedBand)(nil)
