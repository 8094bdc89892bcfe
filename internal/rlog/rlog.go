// Package rlog is a thin shim over the standard library's log package,
// grounded on pspoerri/geotiff2pmtiles's own logging style
// (cmd/geotiff2pmtiles/main.go and internal/tile/generator.go both call
// log.Printf directly, the latter gated by a Verbose flag). Call sites
// depend on this package instead of "log" directly so the gating flag
// lives in one place.
package rlog

import "log"

// verbose gates Debugf output, mirroring internal/tile/generator.go's
// Verbose-gated log.Printf calls.
var verbose = false

// SetVerbose toggles whether Debugf actually logs. Set once at startup from
// config.Config.Verbose.
func SetVerbose(v bool) { verbose = v }

// Debugf logs only when verbose logging is enabled.
func Debugf(format string, args ...any) {
	if verbose {
		log.Printf("debug: "+format, args...)
	}
}

// Infof always logs.
func Infof(format string, args ...any) {
	log.Printf("info: "+format, args...)
}

// Warnf always logs.
func Warnf(format string, args ...any) {
	log.Printf("warn: "+format, args...)
}
