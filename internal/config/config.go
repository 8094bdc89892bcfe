// Package config loads the settings that wire together the backend
// gateway, tile cache, and work pool, grounded on
// arihant-dev-forest-bd-viewer/backend/internal/config/config.go's
// viper.SetDefault/mapstructure idiom. Unlike that teacher, Load returns
// an error instead of calling log.Fatalf: this is a library-first repo, so
// only cmd/rasterstore is allowed to exit the process.
package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"

	"github.com/edmstore/rasterstore/internal/rasterr"
)

// DatasourceConfig describes one entry in metadata_config.datasource_config
// (spec.md §6): an alias plus the operations this datasource key is
// authorized for.
type DatasourceConfig struct {
	Alias          string `mapstructure:"alias"`
	AllowCreate    bool   `mapstructure:"allow_create"`
	AllowDelete    bool   `mapstructure:"allow_delete"`
}

// StorageClientConfig describes one entry in storage_client_config
// (spec.md §6): the backend kind plus its construction parameters.
type StorageClientConfig struct {
	Type             string            `mapstructure:"type"` // "fs", "s3", "ceph_rgw", "obs"
	ConfigureParams  map[string]string `mapstructure:"configure_params"`
}

// Config is the fully-loaded application configuration.
type Config struct {
	StorageClients    map[string]StorageClientConfig `mapstructure:"storage_client_config"`
	DefaultStorage    string                         `mapstructure:"default_storage"`
	Datasources       map[string]DatasourceConfig    `mapstructure:"datasource_config"`

	CacheMaxBytes int64         `mapstructure:"cache_max_bytes"`
	CacheTTL      time.Duration `mapstructure:"cache_ttl"`

	WorkPoolSize int `mapstructure:"workpool_size"`

	DefaultTileSize int `mapstructure:"default_tile_size"`

	Verbose bool `mapstructure:"verbose"`
}

// Backend returns the named storage client config or, when name is empty,
// the one named by DefaultStorage (the default_storage setting, "fs" unless
// configured). The order in which storage clients are configured is not
// consulted.
func (c *Config) Backend(name string) (StorageClientConfig, error) {
	if name == "" {
		name = c.DefaultStorage
	}
	sc, ok := c.StorageClients[name]
	if !ok {
		return StorageClientConfig{}, rasterr.NewConfigError("unrecognized storage client %q", name)
	}
	return sc, nil
}

// Datasource returns the named datasource's config.
func (c *Config) Datasource(name string) (DatasourceConfig, error) {
	ds, ok := c.Datasources[name]
	if !ok {
		return DatasourceConfig{}, rasterr.NewConfigError("unrecognized datasource %q", name)
	}
	return ds, nil
}

// Load reads configuration from an optional file plus RASTERSTORE_-
// prefixed environment variables, per spec.md §6 ("Environment variable
// EDM_STORE_CONFIG_PATH locates the config file; falls back to /etc/,
// ~/.config, or CWD with .json or .yaml"), adapted to this repo's own
// RASTERSTORE_CONFIG_PATH variable and prefix.
func Load(explicitPath string) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("RASTERSTORE")
	v.AutomaticEnv()

	v.SetDefault("default_tile_size", 2048)
	v.SetDefault("cache_max_bytes", int64(1)<<30)
	v.SetDefault("cache_ttl", time.Hour)
	v.SetDefault("workpool_size", 8)
	v.SetDefault("default_storage", "fs")
	v.SetDefault("verbose", false)

	path := explicitPath
	if path == "" {
		path = v.GetString("config_path")
	}
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("rasterstore")
		v.AddConfigPath("/etc/")
		v.AddConfigPath("$HOME/.config")
		v.AddConfigPath(".")
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, rasterr.NewConfigError("reading config: %v", err)
		}
		// No config file is not fatal: defaults plus environment variables
		// are a valid configuration (e.g. the filesystem backend with no
		// overrides).
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, rasterr.NewConfigError("parsing config: %v", err)
	}

	if len(cfg.StorageClients) == 0 {
		cfg.StorageClients = map[string]StorageClientConfig{
			"fs": {Type: "fs", ConfigureParams: map[string]string{"root": "."}},
		}
		cfg.DefaultStorage = "fs"
	}
	if cfg.DefaultStorage == "" {
		for name := range cfg.StorageClients {
			cfg.DefaultStorage = name
			break
		}
	}

	switch cfg.DefaultTileSize {
	case 256, 512, 1024, 2048:
	default:
		return nil, rasterr.NewConfigError("default_tile_size must be one of 256/512/1024/2048, got %d", cfg.DefaultTileSize)
	}

	return cfg, nil
}

// String implements fmt.Stringer for debug logging.
func (c *Config) String() string {
	return fmt.Sprintf("Config{storage=%v, default=%q, tileSize=%d, cacheMaxBytes=%d, workpool=%d}",
		namesOf(c.StorageClients), c.DefaultStorage, c.DefaultTileSize, c.CacheMaxBytes, c.WorkPoolSize)
}

func namesOf(m map[string]StorageClientConfig) []string {
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	return names
}
