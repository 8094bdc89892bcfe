package geo

import (
	"fmt"
	"sync"

	"github.com/airbusgeo/godal"
)

// CRS is an opaque coordinate reference system identifier. It may be
// constructed from an EPSG code, a PROJ string, or WKT; per spec.md §4.1,
// callers never compare CRS values by string equality — only the CRS
// driver (Driver.IsSame) may decide equivalence.
type CRS struct {
	wkt string
	src string // original identifier, for error messages/logging only
}

// Driver resolves and compares CRS identifiers via GDAL's spatial reference
// machinery (github.com/airbusgeo/godal), per SPEC_FULL.md Open Question #5:
// no CRS equivalence or reprojection math is reimplemented in this package.
type Driver struct {
	mu    sync.Mutex
	cache map[string]*godal.SpatialRef
}

// NewDriver returns a Driver with its own SpatialRef cache.
func NewDriver() *Driver {
	return &Driver{cache: make(map[string]*godal.SpatialRef)}
}

// FromEPSG builds a CRS from an EPSG code.
func (d *Driver) FromEPSG(code int) (CRS, error) {
	sr, err := d.spatialRef(fmt.Sprintf("EPSG:%d", code))
	if err != nil {
		return CRS{}, fmt.Errorf("geo: resolving EPSG:%d: %w", code, err)
	}
	wkt, err := sr.WKT()
	if err != nil {
		return CRS{}, fmt.Errorf("geo: exporting WKT for EPSG:%d: %w", code, err)
	}
	return CRS{wkt: wkt, src: fmt.Sprintf("EPSG:%d", code)}, nil
}

// FromUserInput builds a CRS from any identifier godal.NewSpatialRefFromUserInput
// accepts: a PROJ string, a WKT string, an "EPSG:n" string, etc. This is the
// "opaque identifier" entry point spec.md §4.1 calls for.
func (d *Driver) FromUserInput(ident string) (CRS, error) {
	sr, err := d.spatialRef(ident)
	if err != nil {
		return CRS{}, fmt.Errorf("geo: resolving CRS %q: %w", ident, err)
	}
	wkt, err := sr.WKT()
	if err != nil {
		return CRS{}, fmt.Errorf("geo: exporting WKT for %q: %w", ident, err)
	}
	return CRS{wkt: wkt, src: ident}, nil
}

func (d *Driver) spatialRef(ident string) (*godal.SpatialRef, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if sr, ok := d.cache[ident]; ok {
		return sr, nil
	}
	sr, err := godal.NewSpatialRefFromUserInput(ident)
	if err != nil {
		return nil, err
	}
	d.cache[ident] = sr
	return sr, nil
}

// IsSame reports whether a and b denote the same CRS, delegating to GDAL's
// own spatial-reference equivalence check rather than comparing the opaque
// identifiers or even the exported WKT strings (two WKT strings can differ
// textually yet describe the same CRS).
func (d *Driver) IsSame(a, b CRS) (bool, error) {
	srA, err := d.spatialRef(a.wkt)
	if err != nil {
		return false, err
	}
	srB, err := d.spatialRef(b.wkt)
	if err != nil {
		return false, err
	}
	return srA.IsSame(srB), nil
}

// WKT returns the CRS's exported WKT representation, for passing into
// godal dataset/warp calls.
func (c CRS) WKT() string { return c.wkt }

// SpatialRef resolves c to the godal.SpatialRef godal's dataset/warp API
// expects (Dataset.SetSpatialRef takes a *SpatialRef, not a WKT string).
func (d *Driver) SpatialRef(c CRS) (*godal.SpatialRef, error) {
	return d.spatialRef(c.wkt)
}

// String implements fmt.Stringer, returning the identifier CRS was built from.
func (c CRS) String() string { return c.src }
