package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"

	"github.com/edmstore/rasterstore/internal/backend"
	"github.com/edmstore/rasterstore/internal/meta"
)

// Metadata persistence is explicitly out of scope for this repo (spec.md
// §1 assumes an external document database); meta.InMemory stands in for
// it within a single process. A CLI invocation is its own process, though,
// so ingest/read/info need band metadata to survive between them. Rather
// than inventing a second storage abstraction, this stores one JSON
// sidecar object per band through the same BackendGateway the tiles
// themselves go through -- fs and S3 both already support arbitrary
// UploadBytes/AccessPath, so the sidecar costs nothing new.

// metadataPath returns the sidecar object path for the band at logical
// path bandPath, kept out of the tile namespace under a reserved prefix.
func metadataPath(bandPath string) string {
	return "/_meta" + bandPath + ".json"
}

// storeMetadata persists md as ingest's final step.
func storeMetadata(ctx context.Context, gw backend.Gateway, md meta.BandMetadata) error {
	data, err := json.MarshalIndent(md, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding band metadata: %w", err)
	}
	if _, err := gw.UploadBytes(ctx, metadataPath(md.BandPath), data); err != nil {
		return fmt.Errorf("uploading band metadata: %w", err)
	}
	return nil
}

// loadMetadata retrieves the sidecar md storeMetadata wrote for bandPath.
func loadMetadata(ctx context.Context, gw backend.Gateway, bandPath string) (meta.BandMetadata, error) {
	normalized, err := meta.BandPath(bandPath)
	if err != nil {
		return meta.BandMetadata{}, err
	}
	access, err := gw.AccessPath(ctx, metadataPath(normalized))
	if err != nil {
		return meta.BandMetadata{}, fmt.Errorf("band %q has no metadata (run ingest first): %w", normalized, err)
	}
	data, err := fetchBytes(ctx, access)
	if err != nil {
		return meta.BandMetadata{}, fmt.Errorf("fetching band metadata: %w", err)
	}
	var md meta.BandMetadata
	if err := json.Unmarshal(data, &md); err != nil {
		return meta.BandMetadata{}, fmt.Errorf("decoding band metadata: %w", err)
	}
	return md, nil
}

// fetchBytes reads the bytes behind a BackendGateway.AccessPath result.
// This mirrors internal/band's readAccessPath; the CLI keeps its own copy
// rather than exporting that helper since it fetches a small JSON sidecar
// once per invocation, not tile blobs on every cache miss, so band's mmap
// optimization would be wasted effort here.
func fetchBytes(ctx context.Context, access string) ([]byte, error) {
	if strings.HasPrefix(access, "http://") || strings.HasPrefix(access, "https://") {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, access, nil)
		if err != nil {
			return nil, err
		}
		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			return nil, fmt.Errorf("GET %s: status %d", access, resp.StatusCode)
		}
		return io.ReadAll(resp.Body)
	}
	return os.ReadFile(access)
}
