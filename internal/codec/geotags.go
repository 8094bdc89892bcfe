package codec

import "github.com/edmstore/rasterstore/internal/geo"

// GeoTIFF GeoKey IDs.
const (
	gkModelTypeGeoKey       = 1024
	gkRasterTypeGeoKey      = 1025
	gkGeographicTypeGeoKey  = 2048
	gkProjectedCSTypeGeoKey = 3072
)

// GeoInfo holds the georeferencing embedded in a tile's GeoTIFF tags: the
// affine transform plus an opaque EPSG identifier for the CRS driver
// (internal/geo.Driver) to resolve.
type GeoInfo struct {
	EPSG      int
	Transform geo.Transform
}

// parseGeoInfo extracts georeferencing from an IFD.
func parseGeoInfo(ifd *IFD) (GeoInfo, error) {
	var pixelSizeX, pixelSizeY float64
	if len(ifd.ModelPixelScale) >= 2 {
		pixelSizeX = ifd.ModelPixelScale[0]
		pixelSizeY = ifd.ModelPixelScale[1]
	}

	var originX, originY float64
	if len(ifd.ModelTiepoint) >= 6 {
		// Tiepoint maps pixel (I,J) to world coordinate (X,Y); origin is
		// defined at pixel (0,0).
		originX = ifd.ModelTiepoint[3] - ifd.ModelTiepoint[0]*pixelSizeX
		originY = ifd.ModelTiepoint[4] + ifd.ModelTiepoint[1]*pixelSizeY
	}

	t, err := geo.NewTransform(originX, pixelSizeX, originY, -pixelSizeY)
	if err != nil {
		return GeoInfo{}, err
	}

	return GeoInfo{
		EPSG:      parseEPSG(ifd.GeoKeys),
		Transform: t,
	}, nil
}

// parseEPSG extracts the EPSG code from GeoKey directory entries.
func parseEPSG(geoKeys []uint16) int {
	if len(geoKeys) < 4 {
		return 0
	}

	// GeoKey directory header: [KeyDirectoryVersion, KeyRevision, MinorRevision, NumberOfKeys]
	numKeys := int(geoKeys[3])

	for i := 0; i < numKeys; i++ {
		base := 4 + i*4
		if base+3 >= len(geoKeys) {
			break
		}
		keyID := geoKeys[base]
		valueOffset := geoKeys[base+3]

		switch keyID {
		case gkProjectedCSTypeGeoKey, gkGeographicTypeGeoKey:
			if valueOffset > 0 {
				return int(valueOffset)
			}
		}
	}

	return 0
}
