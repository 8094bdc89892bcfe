package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadFromExplicitFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "rasterstore.yaml")
	contents := `
default_tile_size: 1024
cache_max_bytes: 2048
workpool_size: 4
default_storage: fs
storage_client_config:
  fs:
    type: fs
    configure_params:
      root: /tmp/tiles
`
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("writing test config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.DefaultTileSize != 1024 {
		t.Errorf("DefaultTileSize = %d, want 1024", cfg.DefaultTileSize)
	}
	if cfg.WorkPoolSize != 4 {
		t.Errorf("WorkPoolSize = %d, want 4", cfg.WorkPoolSize)
	}

	sc, err := cfg.Backend("")
	if err != nil {
		t.Fatalf("Backend(\"\"): %v", err)
	}
	if sc.Type != "fs" || sc.ConfigureParams["root"] != "/tmp/tiles" {
		t.Errorf("Backend default = %+v, want fs at /tmp/tiles", sc)
	}
}

func TestLoadRejectsBadTileSize(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "rasterstore.yaml")
	if err := os.WriteFile(path, []byte("default_tile_size: 100\n"), 0o644); err != nil {
		t.Fatalf("writing test config: %v", err)
	}
	if _, err := Load(path); err == nil {
		t.Fatalf("expected an error for a tile size that is not one of 256/512/1024/2048")
	}
}

func TestBackendUnrecognizedName(t *testing.T) {
	cfg := &Config{StorageClients: map[string]StorageClientConfig{"fs": {Type: "fs"}}, DefaultStorage: "fs"}
	if _, err := cfg.Backend("does-not-exist"); err == nil {
		t.Fatalf("expected an error for an unrecognized storage client name")
	}
}

func TestCacheTTLDefaultParsesAsDuration(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "rasterstore.yaml")
	if err := os.WriteFile(path, []byte("default_tile_size: 2048\n"), 0o644); err != nil {
		t.Fatalf("writing test config: %v", err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.CacheTTL != time.Hour {
		t.Errorf("CacheTTL = %v, want 1h default", cfg.CacheTTL)
	}
}
