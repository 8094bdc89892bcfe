package geo

import (
	"github.com/edmstore/rasterstore/internal/rasterr"
)

// ErrGeometry is the sentinel wrapped by geometry errors raised in this
// package; see rasterr.Geometry.
var ErrGeometry = rasterr.Geometry

func newValidationError(format string, args ...any) error {
	return rasterr.NewValidationError(format, args...)
}
