// Package meta implements MetadataOps: the key-value document-store
// interface spec.md §6 assumes as an external collaborator, plus a
// concrete in-memory implementation so this repo has a real metadata
// store to test the core engine against (the production document database
// itself is explicitly out of scope, per spec.md §1).
package meta

import (
	"strings"

	"github.com/edmstore/rasterstore/internal/rasterr"
)

// Ext is a logical-path extension, normalized per spec.md §6.
type Ext string

const (
	ExtBand  Ext = "BAND"
	ExtImage Ext = "IMAGE"
)

// LogicalPath is a parsed `/{root}/{datasource_alias}/{subpath}.{ext}` path.
type LogicalPath struct {
	Root           string
	DatasourceName string
	Subpath        string
	Ext            Ext
	Raw            string
}

// ParsePath validates and parses a logical path per spec.md §6:
// "/{root}/{datasource_alias}/{subpath}.{ext}" where ext is one of
// BAND/IMAGE/TIF/TIFF; tif/tiff normalize to BAND for band operations,
// IMAGE stays as-is. Paths with '.', '?', '=', or a space in the
// pre-extension part are rejected.
func ParsePath(path string) (LogicalPath, error) {
	trimmed := strings.Trim(path, "/")
	if trimmed == "" {
		return LogicalPath{}, rasterr.NewPathError("empty logical path")
	}
	parts := strings.SplitN(trimmed, "/", 3)
	if len(parts) < 3 {
		return LogicalPath{}, rasterr.NewPathError("logical path %q must have the form /root/datasource/subpath.ext", path)
	}
	root, alias, rest := parts[0], parts[1], parts[2]

	dot := strings.LastIndexByte(rest, '.')
	if dot < 0 || dot == len(rest)-1 {
		return LogicalPath{}, rasterr.NewPathError("logical path %q is missing a .ext suffix", path)
	}
	subpath, extRaw := rest[:dot], rest[dot+1:]

	if strings.ContainsAny(subpath, ".?= ") {
		return LogicalPath{}, rasterr.NewPathError("logical path %q has a disallowed character before its extension", path)
	}

	var ext Ext
	switch strings.ToUpper(extRaw) {
	case "BAND", "TIF", "TIFF":
		ext = ExtBand
	case "IMAGE":
		ext = ExtImage
	default:
		return LogicalPath{}, rasterr.NewPathError("logical path %q has unrecognized extension %q", path, extRaw)
	}

	return LogicalPath{Root: root, DatasourceName: alias, Subpath: subpath, Ext: ext, Raw: path}, nil
}

// BandPath normalizes path to its canonical BAND form, matching band_path
// values stored by CreateBand regardless of which of .BAND/.tif/.tiff the
// caller used to refer to the same band.
func BandPath(path string) (string, error) {
	p, err := ParsePath(path)
	if err != nil {
		return "", err
	}
	if p.Ext != ExtBand {
		return "", rasterr.NewPathError("%q does not identify a band", path)
	}
	return "/" + p.Root + "/" + p.DatasourceName + "/" + p.Subpath + ".BAND", nil
}

// ImagePath normalizes path to its canonical IMAGE form.
func ImagePath(path string) (string, error) {
	p, err := ParsePath(path)
	if err != nil {
		return "", err
	}
	if p.Ext != ExtImage {
		return "", rasterr.NewPathError("%q does not identify an image", path)
	}
	return "/" + p.Root + "/" + p.DatasourceName + "/" + p.Subpath + ".IMAGE", nil
}
