package backend

import (
	"context"
	"io"
	"os"
	"path/filepath"

	"github.com/edmstore/rasterstore/internal/rasterr"
)

// Filesystem is the local-disk Gateway variant: paths are relative to Root.
type Filesystem struct {
	Root string
}

// NewFilesystem returns a Filesystem gateway rooted at root.
func NewFilesystem(root string) *Filesystem {
	return &Filesystem{Root: root}
}

func (f *Filesystem) abs(path string) (string, error) {
	clean := filepath.Clean("/" + path) // reject ".." escape attempts
	return filepath.Join(f.Root, clean), nil
}

func (f *Filesystem) Mkdirs(ctx context.Context, path string) error {
	abs, err := f.abs(path)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return rasterr.NewBackendError(false, "mkdirs %s: %v", path, err)
	}
	return nil
}

func (f *Filesystem) UploadBytes(ctx context.Context, path string, data []byte) (string, error) {
	abs, err := f.abs(path)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(abs), 0o755); err != nil {
		return "", rasterr.NewBackendError(false, "creating parent dirs for %s: %v", path, err)
	}
	if err := os.WriteFile(abs, data, 0o644); err != nil {
		return "", rasterr.NewBackendError(true, "writing %s: %v", path, err)
	}
	return path, nil
}

func (f *Filesystem) UploadFile(ctx context.Context, path string, r io.Reader, size int64) (string, error) {
	abs, err := f.abs(path)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(abs), 0o755); err != nil {
		return "", rasterr.NewBackendError(false, "creating parent dirs for %s: %v", path, err)
	}
	out, err := os.Create(abs)
	if err != nil {
		return "", rasterr.NewBackendError(true, "creating %s: %v", path, err)
	}
	defer out.Close()
	if _, err := io.Copy(out, r); err != nil {
		return "", rasterr.NewBackendError(true, "writing %s: %v", path, err)
	}
	return path, nil
}

func (f *Filesystem) Exists(ctx context.Context, path string) (bool, error) {
	abs, err := f.abs(path)
	if err != nil {
		return false, err
	}
	_, err = os.Stat(abs)
	if os.IsNotExist(err) {
		return false, nil
	}
	if err != nil {
		return false, rasterr.NewBackendError(true, "stat %s: %v", path, err)
	}
	return true, nil
}

func (f *Filesystem) IsAccessible(ctx context.Context, path string) (bool, error) {
	abs, err := f.abs(path)
	if err != nil {
		return false, err
	}
	file, err := os.Open(abs)
	if err != nil {
		if os.IsNotExist(err) || os.IsPermission(err) {
			return false, nil
		}
		return false, rasterr.NewBackendError(true, "opening %s: %v", path, err)
	}
	file.Close()
	return true, nil
}

func (f *Filesystem) Delete(ctx context.Context, path string) error {
	abs, err := f.abs(path)
	if err != nil {
		return err
	}
	if err := os.Remove(abs); err != nil && !os.IsNotExist(err) {
		return rasterr.NewBackendError(true, "deleting %s: %v", path, err)
	}
	return nil
}

func (f *Filesystem) AccessPath(ctx context.Context, path string) (string, error) {
	abs, err := f.abs(path)
	if err != nil {
		return "", err
	}
	if _, err := os.Stat(abs); err != nil {
		return "", rasterr.NewNotFoundError("%s", path)
	}
	return abs, nil
}

func (f *Filesystem) SizeOf(ctx context.Context, path string) (int64, error) {
	abs, err := f.abs(path)
	if err != nil {
		return 0, err
	}
	info, err := os.Stat(abs)
	if os.IsNotExist(err) {
		return 0, rasterr.NewNotFoundError("%s", path)
	}
	if err != nil {
		return 0, rasterr.NewBackendError(true, "stat %s: %v", path, err)
	}
	return info.Size(), nil
}

var _ Gateway = (*Filesystem)(nil)
