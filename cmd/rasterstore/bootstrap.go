package main

import (
	"fmt"

	"github.com/edmstore/rasterstore/internal/backend"
	"github.com/edmstore/rasterstore/internal/cache"
	"github.com/edmstore/rasterstore/internal/codec"
	"github.com/edmstore/rasterstore/internal/config"
	"github.com/edmstore/rasterstore/internal/geo"
	"github.com/edmstore/rasterstore/internal/resample"
	"github.com/edmstore/rasterstore/internal/rlog"
	"github.com/edmstore/rasterstore/internal/workpool"

	"github.com/edmstore/rasterstore/internal/band"
)

// app bundles the collaborators every subcommand wires a Band through. It
// is the CLI's equivalent of the Deps struct a long-running server would
// build once at startup.
type app struct {
	cfg     *config.Config
	gateway backend.Gateway
	driver  *geo.Driver
	deps    band.Deps
}

// bootstrap loads configuration and constructs the shared collaborators.
// backendName selects which configured storage client to use; empty means
// the configured default.
func bootstrap(configPath, backendName string, verbose bool) (*app, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	rlog.SetVerbose(verbose || cfg.Verbose)

	sc, err := cfg.Backend(backendName)
	if err != nil {
		return nil, err
	}
	gw, err := buildGateway(sc)
	if err != nil {
		return nil, fmt.Errorf("building %s gateway: %w", sc.Type, err)
	}

	driver := geo.NewDriver()
	deps := band.Deps{
		Gateway:   gw,
		Cache:     cache.New(cfg.CacheMaxBytes, cfg.CacheTTL),
		Codec:     codec.NewCodec(),
		Resampler: resample.New(driver),
		Driver:    driver,
		Pool:      workpool.New(cfg.WorkPoolSize),
	}
	return &app{cfg: cfg, gateway: gw, driver: driver, deps: deps}, nil
}

// buildGateway constructs the Gateway variant sc.Type names, per spec.md
// §6's storage_client_config: "fs" for local disk, "s3"/"ceph_rgw"/"obs"
// for any S3-compatible object store (all speak the same protocol
// minio-go targets).
func buildGateway(sc config.StorageClientConfig) (backend.Gateway, error) {
	switch sc.Type {
	case "fs", "":
		root := sc.ConfigureParams["root"]
		if root == "" {
			root = "."
		}
		return backend.NewFilesystem(root), nil
	case "s3", "ceph_rgw", "obs":
		p := sc.ConfigureParams
		return backend.NewS3(backend.S3Config{
			Endpoint:  p["endpoint"],
			AccessKey: p["access_key"],
			SecretKey: p["secret_key"],
			Bucket:    p["bucket"],
			Prefix:    p["prefix"],
			UseSSL:    p["use_ssl"] == "true",
		})
	default:
		return nil, fmt.Errorf("unrecognized storage client type %q", sc.Type)
	}
}

func (a *app) stop() {
	a.deps.Pool.Stop()
	a.deps.Cache.Clear()
}
