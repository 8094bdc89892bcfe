package main

import (
	"context"
	"fmt"
	"os"

	"github.com/edmstore/rasterstore/internal/band"
	"github.com/edmstore/rasterstore/internal/codec"
	"github.com/edmstore/rasterstore/internal/geo"
)

// runRead implements the "read back a window" leg of cmd/rasterstore:
// loads a previously-ingested band's metadata, reads a caller-specified
// window through SlicedBand.ReadRegion, and writes the result back out as
// a standalone single-level GeoTIFF via internal/codec so the window is
// directly inspectable with any GeoTIFF-aware tool.
func runRead(ctx context.Context, args []string) error {
	fs := newFlagSet("read")
	configPath := fs.String("config", "", "path to config file")
	backendName := fs.String("backend", "", "storage client name (default: configured default_storage)")
	path := fs.String("path", "", "logical band path to read from")
	out := fs.String("out", "", "output GeoTIFF file path")
	originX := fs.Float64("originx", 0, "window origin X, in the requested CRS")
	originY := fs.Float64("originy", 0, "window origin Y, in the requested CRS")
	scaleX := fs.Float64("scalex", 0, "window pixel size on X (required)")
	scaleY := fs.Float64("scaley", 0, "window pixel size on Y; defaults to -scalex")
	xSize := fs.Int("xsize", 512, "window width in pixels")
	ySize := fs.Int("ysize", 512, "window height in pixels")
	crsIdent := fs.String("crs", "", "read in this CRS instead of the band's own (any godal-accepted identifier)")
	resampleName := fs.String("resample", "nearest", "resampling kernel when reprojection or rescaling is needed")
	verbose := fs.Bool("v", false, "verbose logging")
	fs.Parse(args)

	if *path == "" || *out == "" || *scaleX == 0 {
		return fmt.Errorf("-path, -out, and -scalex are required")
	}
	if *scaleY == 0 {
		*scaleY = -*scaleX
	}
	method, err := geo.ParseResampleMethod(*resampleName)
	if err != nil {
		return err
	}

	a, err := bootstrap(*configPath, *backendName, *verbose)
	if err != nil {
		return err
	}
	defer a.stop()

	md, err := loadMetadata(ctx, a.gateway, *path)
	if err != nil {
		return err
	}
	b, err := band.NewSliced(md, a.deps)
	if err != nil {
		return fmt.Errorf("opening band: %w", err)
	}

	transform, err := geo.NewTransform(*originX, *scaleX, *originY, *scaleY)
	if err != nil {
		return err
	}
	req := band.RegionRequest{Transform: transform, XSize: *xSize, YSize: *ySize, Method: method}
	if *crsIdent != "" {
		crs, err := a.driver.FromUserInput(*crsIdent)
		if err != nil {
			return fmt.Errorf("resolving -crs: %w", err)
		}
		req.CRS = &crs
	}

	data, err := b.ReadRegion(ctx, req)
	if err != nil {
		return fmt.Errorf("reading region: %w", err)
	}

	var nd *float64
	if v, ok := b.NoDataValue(); ok {
		nd = &v
	}

	tile := codec.Tile{
		Width:  *xSize,
		Height: *ySize,
		DType:  b.Datatype(),
		NoData: nd,
		Geo: codec.GeoInfo{
			EPSG:      epsgFromIdent(*crsIdent),
			Transform: transform,
		},
		Data: data,
	}
	blob, err := a.deps.Codec.Encode(tile)
	if err != nil {
		return fmt.Errorf("encoding output GeoTIFF: %w", err)
	}
	if err := os.WriteFile(*out, blob, 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", *out, err)
	}
	return nil
}

// epsgFromIdent extracts a numeric EPSG code from an "EPSG:n" identifier,
// for embedding in the output GeoTIFF's GeoKeys; any other identifier form
// (WKT, PROJ string) is embedded without a GeoKey, same as
// internal/band.parseEPSGFromCRS.
func epsgFromIdent(ident string) int {
	const prefix = "EPSG:"
	if len(ident) <= len(prefix) || ident[:len(prefix)] != prefix {
		return 0
	}
	var n int
	if _, err := fmt.Sscanf(ident[len(prefix):], "%d", &n); err != nil {
		return 0
	}
	return n
}
