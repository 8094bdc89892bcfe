package backend

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/url"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/edmstore/rasterstore/internal/rasterr"
)

// s3Client is the subset of minio.Client used by S3, following
// brawer-wikidata-qrank's cmd/qrank-builder/s3.go convention of defining a
// narrow interface over the client instead of depending on the concrete
// type everywhere, so a fake can stand in for tests.
type s3Client interface {
	PutObject(ctx context.Context, bucket, object string, reader io.Reader, size int64, opts minio.PutObjectOptions) (minio.UploadInfo, error)
	StatObject(ctx context.Context, bucket, object string, opts minio.StatObjectOptions) (minio.ObjectInfo, error)
	RemoveObject(ctx context.Context, bucket, object string, opts minio.RemoveObjectOptions) error
	PresignedGetObject(ctx context.Context, bucket, object string, expiry time.Duration, reqParams url.Values) (*url.URL, error)
}

// S3 is the Gateway variant backed by any S3-compatible object store: AWS
// S3 itself, Ceph RGW, or Huawei OBS, all speaking the same S3 API that
// github.com/minio/minio-go/v7 targets.
type S3 struct {
	client s3Client
	Bucket string
	Prefix string // optional key prefix under which all paths live
}

// S3Config configures NewS3.
type S3Config struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	Prefix    string
	UseSSL    bool
}

// NewS3 builds an S3 gateway from cfg.
func NewS3(cfg S3Config) (*S3, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, rasterr.NewConfigError("building S3 client for %s: %v", cfg.Endpoint, err)
	}
	return &S3{client: client, Bucket: cfg.Bucket, Prefix: cfg.Prefix}, nil
}

func (s *S3) key(path string) string {
	if s.Prefix == "" {
		return path
	}
	return strings.TrimSuffix(s.Prefix, "/") + "/" + strings.TrimPrefix(path, "/")
}

// Mkdirs is a no-op: flat object storage has no directory concept. The
// prefix implied by path is created implicitly by the first object
// written under it.
func (s *S3) Mkdirs(ctx context.Context, path string) error {
	return nil
}

func (s *S3) UploadBytes(ctx context.Context, path string, data []byte) (string, error) {
	key := s.key(path)
	_, err := s.client.PutObject(ctx, s.Bucket, key, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{})
	if err != nil {
		return "", rasterr.NewBackendError(true, "uploading %s: %v", path, err)
	}
	return path, nil
}

// UploadFile uploads from r. Per spec.md §4.4, objects at or above
// MultipartThreshold must use multipart upload; minio-go's PutObject
// switches to multipart internally once size exceeds its own part size
// once PartSize is set, so this just requests that explicitly for large
// objects instead of relying on the library default.
func (s *S3) UploadFile(ctx context.Context, path string, r io.Reader, size int64) (string, error) {
	key := s.key(path)
	opts := minio.PutObjectOptions{}
	if size >= MultipartThreshold {
		opts.PartSize = MultipartThreshold
	}
	_, err := s.client.PutObject(ctx, s.Bucket, key, r, size, opts)
	if err != nil {
		return "", rasterr.NewBackendError(true, "uploading %s: %v", path, err)
	}
	return path, nil
}

func (s *S3) Exists(ctx context.Context, path string) (bool, error) {
	_, err := s.client.StatObject(ctx, s.Bucket, s.key(path), minio.StatObjectOptions{})
	if err == nil {
		return true, nil
	}
	if isNotFound(err) {
		return false, nil
	}
	return false, rasterr.NewBackendError(true, "stat %s: %v", path, err)
}

func (s *S3) IsAccessible(ctx context.Context, path string) (bool, error) {
	_, err := s.client.StatObject(ctx, s.Bucket, s.key(path), minio.StatObjectOptions{})
	if err == nil {
		return true, nil
	}
	if isNotFound(err) || isAccessDenied(err) {
		return false, nil
	}
	return false, rasterr.NewBackendError(true, "checking accessibility of %s: %v", path, err)
}

// Delete is idempotent: removing an object that is already absent is not an
// error, matching spec.md §4.4 ("delete(path) -> bool -- idempotent;
// absent object is success").
func (s *S3) Delete(ctx context.Context, path string) error {
	err := s.client.RemoveObject(ctx, s.Bucket, s.key(path), minio.RemoveObjectOptions{})
	if err != nil && !isNotFound(err) {
		return rasterr.NewBackendError(true, "deleting %s: %v", path, err)
	}
	return nil
}

// AccessPath returns a presigned GET URL valid for at least MinPresignTTL.
// minio-go's PresignedGetObject signs a URL without checking the object's
// existence, so this stats first: callers (band.fetchTileBlob) depend on a
// NotFoundError here to distinguish "tile never written" from a real
// backend failure, the same distinction Filesystem.AccessPath makes via
// os.Stat.
func (s *S3) AccessPath(ctx context.Context, path string) (string, error) {
	if _, err := s.client.StatObject(ctx, s.Bucket, s.key(path), minio.StatObjectOptions{}); err != nil {
		if isNotFound(err) {
			return "", rasterr.NewNotFoundError("%s", path)
		}
		return "", rasterr.NewBackendError(true, "stat %s: %v", path, err)
	}
	u, err := s.client.PresignedGetObject(ctx, s.Bucket, s.key(path), MinPresignTTL, nil)
	if err != nil {
		return "", rasterr.NewBackendError(true, "presigning %s: %v", path, err)
	}
	return u.String(), nil
}

func (s *S3) SizeOf(ctx context.Context, path string) (int64, error) {
	info, err := s.client.StatObject(ctx, s.Bucket, s.key(path), minio.StatObjectOptions{})
	if err != nil {
		if isNotFound(err) {
			return 0, rasterr.NewNotFoundError("%s", path)
		}
		return 0, rasterr.NewBackendError(true, "stat %s: %v", path, err)
	}
	return info.Size, nil
}

func isNotFound(err error) bool {
	var resp minio.ErrorResponse
	if errors.As(err, &resp) {
		return resp.Code == "NoSuchKey" || resp.Code == "NotFound"
	}
	return minio.ToErrorResponse(err).Code == "NoSuchKey"
}

func isAccessDenied(err error) bool {
	var resp minio.ErrorResponse
	if errors.As(err, &resp) {
		return resp.Code == "AccessDenied"
	}
	return minio.ToErrorResponse(err).Code == "AccessDenied"
}

var _ Gateway = (*S3)(nil)
