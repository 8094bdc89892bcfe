package main

import (
	"context"
	"fmt"

	"github.com/edmstore/rasterstore/internal/band"
)

// runInfo implements the "inspect a stored image" leg of cmd/rasterstore,
// grounded on the teacher's cmd/coginfo: open the thing, print its
// structural facts, no further processing.
func runInfo(ctx context.Context, args []string) error {
	fs := newFlagSet("info")
	configPath := fs.String("config", "", "path to config file")
	backendName := fs.String("backend", "", "storage client name (default: configured default_storage)")
	path := fs.String("path", "", "logical band path to inspect")
	verbose := fs.Bool("v", false, "verbose logging")
	fs.Parse(args)

	if *path == "" {
		return fmt.Errorf("-path is required")
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

	fmt.Printf("path:           %s\n", md.BandPath)
	fmt.Printf("storage path:   %s (backend %q)\n", md.StoragePath, md.StorageBackend)
	fmt.Printf("crs:            %s\n", md.CRS)
	fmt.Printf("shape:          %d x %d (rows x cols)\n", md.Shape[0], md.Shape[1])
	fmt.Printf("transform:      origin (%v, %v), pixel size (%v, %v)\n",
		md.Transform.OriginX, md.Transform.OriginY, md.Transform.ScaleX, md.Transform.ScaleY)
	fmt.Printf("tile size:      %d\n", md.TileSize)
	fmt.Printf("dtype:          %s\n", b.Datatype())
	if v, ok := b.NoDataValue(); ok {
		fmt.Printf("nodata:         %v\n", v)
	} else {
		fmt.Printf("nodata:         (none)\n")
	}
	fmt.Printf("raster count:   %d\n", md.RasterCount)
	fmt.Printf("pyramid levels: %d (factors %v)\n", len(md.Factors), md.Factors)
	fmt.Printf("writeable:      %v\n", b.Writeable())
	fmt.Printf("tiles:          %d\n", len(b.GetAllTileInfos()))
	return nil
}
