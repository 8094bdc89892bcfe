package geo

import "strings"

// ResampleMethod selects the resampling kernel used by the Resampler /
// Reprojector component, grounded on the original's ResampleMapper
// (see SPEC_FULL.md, "tests/utils/test_tools.py").
type ResampleMethod int

// The iota order below is the spec's positional wire contract (CLI flags
// and config files address a method by this index, not just by name), so
// it must match {nearest, bilinear, cubic, cubic_spline, lanczos, average,
// mode, gauss, max, min, med, q1, q3, sum, rms} exactly.
const (
	ResampleNearest ResampleMethod = iota
	ResampleBilinear
	ResampleCubic
	ResampleCubicSpline
	ResampleLanczos
	ResampleAverage
	ResampleMode
	ResampleGauss
	ResampleMax
	ResampleMin
	ResampleMed
	ResampleQ1
	ResampleQ3
	ResampleSum
	ResampleRMS
)

var resampleNames = map[string]ResampleMethod{
	"nearest":      ResampleNearest,
	"bilinear":     ResampleBilinear,
	"cubic":        ResampleCubic,
	"cubic_spline": ResampleCubicSpline,
	"lanczos":      ResampleLanczos,
	"average":      ResampleAverage,
	"mode":         ResampleMode,
	"gauss":        ResampleGauss,
	"max":          ResampleMax,
	"min":          ResampleMin,
	"med":          ResampleMed,
	"q1":           ResampleQ1,
	"q3":           ResampleQ3,
	"sum":          ResampleSum,
	"rms":          ResampleRMS,
}

// ParseResampleMethod parses a resampling method name. It returns an error
// for anything not in the supported set rather than silently defaulting,
// since silently picking the wrong kernel would corrupt resampled pixel
// values.
func ParseResampleMethod(name string) (ResampleMethod, error) {
	m, ok := resampleNames[strings.ToLower(name)]
	if !ok {
		return 0, newValidationError("unsupported resample method %q", name)
	}
	return m, nil
}

// GDALName returns the name godal/GDAL's warp options expect for this method.
func (m ResampleMethod) GDALName() string {
	for name, v := range resampleNames {
		if v == m {
			return name
		}
	}
	return "nearest"
}
