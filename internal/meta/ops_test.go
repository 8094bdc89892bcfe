package meta

import (
	"context"
	"errors"
	"testing"

	"github.com/edmstore/rasterstore/internal/geo"
	"github.com/edmstore/rasterstore/internal/rasterr"
)

func testBand(path string) BandMetadata {
	return BandMetadata{
		BandPath:    path,
		StoragePath: "test/data",
		CRS:         "EPSG:3857",
		Transform:   geo.Transform{OriginX: 12834619, ScaleX: 30, OriginY: 5011732, ScaleY: -30},
		Shape:       [2]int{2000, 2000},
		TileSize:    2048,
		DTypes:      []geo.DataType{geo.Uint8},
		NoData:      []float64{0},
		RasterCount: 1,
		Factors:     []int{1},
	}
}

func TestBandCreateGetDeleteRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := NewInMemory()
	path := "/edm/test/api_test.BAND"

	if err := store.CreateBand(ctx, testBand(path)); err != nil {
		t.Fatalf("CreateBand: %v", err)
	}

	for _, alias := range []string{"/edm/test/api_test.BAND", "/edm/test/api_test.tif", "/edm/test/api_test.tiff"} {
		ok, err := store.Exists(ctx, alias)
		if err != nil || !ok {
			t.Errorf("Exists(%q) = %v, %v; want true, nil", alias, ok, err)
		}
	}

	if _, err := store.GetBand(ctx, "/edm/test/nonexistent.BAND"); !errors.Is(err, rasterr.NotFound) {
		t.Errorf("GetBand for missing band: got %v, want a NotFoundError", err)
	}

	if err := store.DeleteBands(ctx, []string{path}); err != nil {
		t.Fatalf("DeleteBands: %v", err)
	}
	if ok, _ := store.Exists(ctx, path); ok {
		t.Errorf("band still exists after DeleteBands")
	}
	// Idempotent.
	if err := store.DeleteBands(ctx, []string{path}); err != nil {
		t.Errorf("second DeleteBands should be a no-op, got %v", err)
	}
}

func TestCreateImageRequiresBandsAndCascadesDelete(t *testing.T) {
	ctx := context.Background()
	store := NewInMemory()

	if err := store.CreateImage(ctx, ImageMetadata{ImagePath: "/edm/test/scene.IMAGE", Bands: map[string]string{}}); err == nil {
		t.Fatalf("expected CreateImage to reject an image with no bands")
	}

	bandPath := "/edm/test/b1.BAND"
	if err := store.CreateBand(ctx, testBand(bandPath)); err != nil {
		t.Fatalf("CreateBand: %v", err)
	}

	imagePath := "/edm/test/scene.IMAGE"
	err := store.CreateImage(ctx, ImageMetadata{ImagePath: imagePath, Bands: map[string]string{"B1": bandPath}})
	if err != nil {
		t.Fatalf("CreateImage: %v", err)
	}
	if ok, _ := store.Exists(ctx, imagePath); !ok {
		t.Fatalf("image does not exist after CreateImage")
	}

	if err := store.DeleteImages(ctx, []string{imagePath}); err != nil {
		t.Fatalf("DeleteImages: %v", err)
	}
	if ok, _ := store.Exists(ctx, imagePath); ok {
		t.Errorf("image still exists after DeleteImages")
	}
	if ok, _ := store.Exists(ctx, bandPath); ok {
		t.Errorf("band was not cascade-deleted with its owning image")
	}
}

func TestParsePathRejectsDisallowedCharacters(t *testing.T) {
	cases := []string{
		"/edm/test/bad.name.BAND",
		"/edm/test/bad?name.BAND",
		"/edm/test/bad=name.BAND",
		"/edm/test/bad name.BAND",
		"/edm/test/noext",
	}
	for _, p := range cases {
		if _, err := ParsePath(p); err == nil {
			t.Errorf("ParsePath(%q): expected an error", p)
		}
	}
}
