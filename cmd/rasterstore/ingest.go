package main

import (
	"context"
	"fmt"

	"github.com/airbusgeo/godal"

	"github.com/edmstore/rasterstore/internal/band"
	"github.com/edmstore/rasterstore/internal/geo"
	"github.com/edmstore/rasterstore/internal/lattice"
	"github.com/edmstore/rasterstore/internal/meta"
	"github.com/edmstore/rasterstore/internal/rlog"
)

// runIngest implements the "ingest a raster" leg of cmd/rasterstore:
// opens an arbitrary source raster via godal, slices its first band into
// native lattice tiles, writes each through a writeable SlicedBand, and
// persists the resulting BandMetadata so later `read`/`info` invocations
// can find it.
func runIngest(ctx context.Context, args []string) error {
	fs := newFlagSet("ingest")
	configPath := fs.String("config", "", "path to config file (default: search /etc, ~/.config, .)")
	backendName := fs.String("backend", "", "storage client name (default: configured default_storage)")
	source := fs.String("source", "", "path to the source raster (any GDAL-readable format)")
	dest := fs.String("dest", "", "destination logical band path, e.g. /root/ds/name.BAND")
	tileSize := fs.Int("tile-size", 0, "native tile size (256/512/1024/2048; default: configured default_tile_size)")
	crsOverride := fs.String("crs", "", "override the source CRS (any godal-accepted identifier)")
	verbose := fs.Bool("v", false, "verbose logging")
	fs.Parse(args)

	if *source == "" || *dest == "" {
		return fmt.Errorf("-source and -dest are required")
	}

	a, err := bootstrap(*configPath, *backendName, *verbose)
	if err != nil {
		return err
	}
	defer a.stop()

	if *tileSize == 0 {
		*tileSize = a.cfg.DefaultTileSize
	}

	bandPath, err := meta.BandPath(*dest)
	if err != nil {
		return fmt.Errorf("-dest: %w", err)
	}

	ds, err := godal.Open(*source)
	if err != nil {
		return fmt.Errorf("opening %s: %w", *source, err)
	}
	defer ds.Close()

	md, srcBand, nativeDType, err := describeSource(a, ds, bandPath, *crsOverride, *tileSize)
	if err != nil {
		return err
	}
	md.StorageBackend = *backendName
	if md.StorageBackend == "" {
		md.StorageBackend = a.cfg.DefaultStorage
	}

	lat, err := lattice.New(md.Transform, md.Shape[1], md.Shape[0], md.TileSize)
	if err != nil {
		return fmt.Errorf("building lattice: %w", err)
	}
	factors, scaleX, scaleY := lat.Factors()
	md.Factors, md.ScaleX, md.ScaleY = factors, scaleX, scaleY

	sb, err := band.NewSliced(md, a.deps)
	if err != nil {
		return fmt.Errorf("opening destination band: %w", err)
	}
	if !sb.Writeable() {
		return fmt.Errorf("band %q is not writeable", bandPath)
	}

	tiles := lat.GetAllTileInfos()
	rlog.Infof("ingest: %s -> %s, %d tiles at %dx%d", *source, bandPath, len(tiles), *tileSize, *tileSize)
	for _, info := range tiles {
		data, err := readWindowAsGeoType(srcBand, nativeDType, info.PixelX, info.PixelY, info.Width, info.Height, md.DTypes[0])
		if err != nil {
			return fmt.Errorf("reading source window for tile (%d,%d): %w", info.TileX, info.TileY, err)
		}
		if err := sb.WriteTile(ctx, info.TileX, info.TileY, data); err != nil {
			return fmt.Errorf("writing tile (%d,%d): %w", info.TileX, info.TileY, err)
		}
	}

	if err := storeMetadata(ctx, a.gateway, md); err != nil {
		return err
	}
	rlog.Infof("ingest: done, band %q ready", bandPath)
	return nil
}

// describeSource reads geometry, CRS, data type, and nodata off an opened
// godal.Dataset and assembles the BandMetadata ingest will write tiles
// against. Only the dataset's first raster band is ingested: this store's
// BandMetadata models one logical band per entity (RasterCount is carried
// through for informational purposes, but SlicedBand/UnSlicedBand only
// ever address a single sample per pixel).
func describeSource(a *app, ds *godal.Dataset, bandPath, crsOverride string, tileSize int) (meta.BandMetadata, godal.Band, godal.DataType, error) {
	structure := ds.Structure()
	if structure.NBands == 0 {
		return meta.BandMetadata{}, godal.Band{}, 0, fmt.Errorf("source has no raster bands")
	}

	gt, err := ds.GeoTransform()
	if err != nil {
		return meta.BandMetadata{}, godal.Band{}, 0, fmt.Errorf("reading geotransform: %w", err)
	}
	if gt[2] != 0 || gt[4] != 0 {
		return meta.BandMetadata{}, godal.Band{}, 0, fmt.Errorf("source is rotated/skewed (gt[2]=%v gt[4]=%v), not supported", gt[2], gt[4])
	}
	transform, err := geo.NewTransform(gt[0], gt[1], gt[3], gt[5])
	if err != nil {
		return meta.BandMetadata{}, godal.Band{}, 0, err
	}

	crsIdent := crsOverride
	if crsIdent == "" {
		wkt, err := ds.SpatialRef().WKT()
		if err != nil || wkt == "" {
			return meta.BandMetadata{}, godal.Band{}, 0, fmt.Errorf("source has no usable spatial reference; pass -crs explicitly")
		}
		crsIdent = wkt
	}
	if _, err := a.driver.FromUserInput(crsIdent); err != nil {
		return meta.BandMetadata{}, godal.Band{}, 0, fmt.Errorf("resolving source CRS: %w", err)
	}

	srcBand := ds.Bands()[0]
	bandStructure := srcBand.Structure()
	dtype := godalToGeoType(bandStructure.DataType)

	var nodata []float64
	if v, ok := srcBand.NoData(); ok {
		nodata = []float64{v}
	}

	md := meta.BandMetadata{
		BandPath:       bandPath,
		StoragePath:    storagePathFor(bandPath),
		StorageBackend: "",
		CRS:            crsIdent,
		Transform:      transform,
		Shape:          [2]int{structure.SizeY, structure.SizeX},
		TileSize:       tileSize,
		Cropped:        true, // ingest always builds a tiled SlicedBand
		ReadOnly:       false,
		NoData:         nodata,
		DTypes:         []geo.DataType{dtype},
		RasterCount:    structure.NBands,
	}
	return md, srcBand, bandStructure.DataType, nil
}

// storagePathFor derives the backend directory tiles for bandPath are
// written under: the same /{root}/{datasource}/{subpath} triple the
// logical path carries, minus its .BAND suffix, since storagePath(tx,ty)
// appends "/{tx}_{ty}.tif" to it.
func storagePathFor(bandPath string) string {
	p, err := meta.ParsePath(bandPath)
	if err != nil {
		return bandPath
	}
	return "/" + p.Root + "/" + p.DatasourceName + "/" + p.Subpath
}
