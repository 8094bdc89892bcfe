package geo

// DataType is a raster pixel data type, grounded on the original system's
// global_data_type mapping table (see SPEC_FULL.md, "tests/utils/test_pixel_type.py").
type DataType int

const (
	// Uint8 is the default/fallback type for an unknown or empty type name.
	Uint8 DataType = iota
	Int16
	Int32
	Float32
	Float64
)

// ParseDataType maps a loosely-cased type name to a DataType, matching the
// original's get(name) lookup: unknown or empty names fall back to Uint8.
func ParseDataType(name string) DataType {
	switch name {
	case "int", "int32":
		return Int32
	case "int16":
		return Int16
	case "float", "float64":
		return Float64
	case "float32":
		return Float32
	default:
		return Uint8
	}
}

// GDALType returns the GDAL GDT_* type name this DataType corresponds to,
// for components that drive godal (the Resampler/Reprojector, TileCodec
// write path).
func (d DataType) GDALType() string {
	switch d {
	case Int16:
		return "Int16"
	case Int32:
		return "Int32"
	case Float32:
		return "Float32"
	case Float64:
		return "Float64"
	default:
		return "Byte"
	}
}

// ByteSize returns the in-memory size of one sample of this type.
func (d DataType) ByteSize() int {
	switch d {
	case Int16:
		return 2
	case Int32, Float32:
		return 4
	case Float64:
		return 8
	default:
		return 1
	}
}

// String implements fmt.Stringer.
func (d DataType) String() string {
	switch d {
	case Int16:
		return "int16"
	case Int32:
		return "int32"
	case Float32:
		return "float32"
	case Float64:
		return "float64"
	default:
		return "uint8"
	}
}
