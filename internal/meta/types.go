package meta

import (
	"time"

	"github.com/edmstore/rasterstore/internal/geo"
)

// BandMetadata is the persisted record described in spec.md §3: the band's
// logical identity, physical storage location, geometry, and pyramid
// factor table. The core reads this to open a Band; the (out-of-scope)
// ingest path writes it.
type BandMetadata struct {
	BandPath       string         // logical identifier, e.g. "/edm/test/foo.BAND"
	StoragePath    string         // physical directory or file under the backend
	StorageBackend string         // name of the configured backend (config.StorageClientConfig key)
	CRS            string         // opaque identifier; resolved via geo.Driver, never compared by string
	Transform      geo.Transform
	Shape          [2]int         // (height, width)
	TileSize       int            // one of 256, 512, 1024, 2048
	Cropped        bool           // true -> tiled store (SlicedBand), false -> whole-file (UnSlicedBand)
	ReadOnly       bool
	NoData         []float64      // one per raster band
	DTypes         []geo.DataType // one per raster band
	RasterCount    int
	Factors        []int       // [1, f1, f2, ...]; factors[0] == 1
	ScaleX         []float64   // per-level horizontal pixel scale
	ScaleY         []float64   // per-level vertical pixel scale
	ParentPath     string      // optional parent image's logical path
}

// ImageMetadata is the persisted record grouping co-registered bands, per
// spec.md §3. The core only reads this to enumerate bands on bulk delete.
type ImageMetadata struct {
	ImagePath      string
	Boundary       geo.BBox // WGS84 axis-aligned boundary (spec.md stops at bounding polygons)
	AcquiredAt     time.Time
	Provider       string
	Bands          map[string]string // band name -> band logical path
}
