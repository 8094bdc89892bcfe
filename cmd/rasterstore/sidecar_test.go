package main

import (
	"context"
	"testing"

	"github.com/edmstore/rasterstore/internal/backend"
	"github.com/edmstore/rasterstore/internal/geo"
	"github.com/edmstore/rasterstore/internal/meta"
)

func TestMetadataSidecarRoundTrip(t *testing.T) {
	gw := backend.NewFilesystem(t.TempDir())
	ctx := context.Background()

	want := meta.BandMetadata{
		BandPath:    "/imagery/elevation/tile.BAND",
		StoragePath: "/imagery/elevation/tile",
		CRS:         "EPSG:4326",
		Transform:   mustTransform(t),
		Shape:       [2]int{1024, 2048},
		TileSize:    512,
		Cropped:     true,
		DTypes:      []geo.DataType{geo.Float32},
		Factors:     []int{1, 2, 4},
	}

	if err := storeMetadata(ctx, gw, want); err != nil {
		t.Fatalf("storeMetadata: %v", err)
	}

	got, err := loadMetadata(ctx, gw, want.BandPath)
	if err != nil {
		t.Fatalf("loadMetadata: %v", err)
	}
	if got.CRS != want.CRS || got.TileSize != want.TileSize || got.Shape != want.Shape {
		t.Errorf("loadMetadata round-trip = %+v, want %+v", got, want)
	}
	if len(got.Factors) != len(want.Factors) {
		t.Errorf("Factors = %v, want %v", got.Factors, want.Factors)
	}
}

func TestLoadMetadataMissingBand(t *testing.T) {
	gw := backend.NewFilesystem(t.TempDir())
	if _, err := loadMetadata(context.Background(), gw, "/imagery/elevation/missing.BAND"); err == nil {
		t.Fatal("expected an error loading metadata for a band that was never ingested")
	}
}

func mustTransform(t *testing.T) geo.Transform {
	t.Helper()
	tr, err := geo.NewTransform(0, 1, 0, -1)
	if err != nil {
		t.Fatalf("NewTransform: %v", err)
	}
	return tr
}
