// Command rasterstore is the thin ambient outer surface over the raster
// store engine: a flag-based CLI with no subcommand framework, in the
// style of pspoerri/geotiff2pmtiles's cmd/geotiff2pmtiles, cmd/coginfo, and
// cmd/debug binaries (positional dispatch, flag.FlagSet per mode,
// log.Fatalf on error). It does not replace MetadataOps -- it is one more
// caller of it -- but since the concrete MetadataOps this repo ships
// (meta.InMemory) is process-local, a CLI that spans separate invocations
// for ingest/read/info needs metadata to outlive the process; see
// sidecar.go for how that gap is closed.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/airbusgeo/godal"
)

func main() {
	log.SetFlags(0)
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	godal.RegisterAll()

	ctx := context.Background()
	var err error
	switch os.Args[1] {
	case "ingest":
		err = runIngest(ctx, os.Args[2:])
	case "read":
		err = runRead(ctx, os.Args[2:])
	case "info":
		err = runInfo(ctx, os.Args[2:])
	case "-h", "-help", "--help", "help":
		usage()
		return
	default:
		fmt.Fprintf(os.Stderr, "rasterstore: unknown subcommand %q\n\n", os.Args[1])
		usage()
		os.Exit(2)
	}
	if err != nil {
		log.Fatalf("rasterstore %s: %v", os.Args[1], err)
	}
}

func usage() {
	fmt.Fprintf(os.Stderr, `rasterstore: ingest, read, and inspect raster tiles

Usage:
  rasterstore ingest -source <file> -dest <logical-path> [flags]
  rasterstore read   -path <logical-path> -out <file> [flags]
  rasterstore info   -path <logical-path>

Run 'rasterstore <subcommand> -h' for flag details of each subcommand.
`)
}

// newFlagSet builds a FlagSet in the teacher's style: the name is the
// subcommand, errors exit the process via flag.ExitOnError.
func newFlagSet(name string) *flag.FlagSet {
	return flag.NewFlagSet("rasterstore "+name, flag.ExitOnError)
}
