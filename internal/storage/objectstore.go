package storage

import (
	"context"
	"fmt"
	"mime"
	"path/filepath"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"spool/internal/config"
	"spool/internal/fileutil"
	"spool/internal/services"
)

// ObjectStoreOptions configures the S3-compatible backend.
type ObjectStoreOptions struct {
	Endpoint      string
	AccessKey     string
	SecretKey     string
	Bucket        string
	Secure        bool
	PublicBaseURL string
	// DeleteLocal removes the local file after a successful upload.
	DeleteLocal bool
}

// objectAPI is the subset of *minio.Client the publisher uses.
type objectAPI interface {
	BucketExists(ctx context.Context, bucketName string) (bool, error)
	MakeBucket(ctx context.Context, bucketName string, opts minio.MakeBucketOptions) error
	FPutObject(ctx context.Context, bucketName, objectName, filePath string, opts minio.PutObjectOptions) (minio.UploadInfo, error)
}

// ObjectStore publishes to a single bucket.
type ObjectStore struct {
	api  objectAPI
	opts ObjectStoreOptions
}

// NewObjectStore connects to the endpoint and ensures the bucket exists.
func NewObjectStore(ctx context.Context, opts ObjectStoreOptions) (*ObjectStore, error) {
	client, err := minio.New(opts.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(opts.AccessKey, opts.SecretKey, ""),
		Secure: opts.Secure,
	})
	if err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "storage", "connect", opts.Endpoint, err)
	}
	return newObjectStore(ctx, client, opts)
}

func newObjectStore(ctx context.Context, api objectAPI, opts ObjectStoreOptions) (*ObjectStore, error) {
	if strings.TrimSpace(opts.Bucket) == "" {
		return nil, services.Wrap(services.ErrConfiguration, "storage", "", "bucket required", nil)
	}
	s := &ObjectStore{api: api, opts: opts}
	if err := s.ensureBucket(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *ObjectStore) ensureBucket(ctx context.Context) error {
	exists, err := s.api.BucketExists(ctx, s.opts.Bucket)
	if err != nil {
		return services.Wrap(services.ErrTransient, "storage", "bucket exists", s.opts.Bucket, err)
	}
	if exists {
		return nil
	}
	if err := s.api.MakeBucket(ctx, s.opts.Bucket, minio.MakeBucketOptions{}); err != nil {
		return services.Wrap(services.ErrTransient, "storage", "make bucket", s.opts.Bucket, err)
	}
	return nil
}

// Backend implements Publisher.
func (s *ObjectStore) Backend() string { return config.StorageBackendObjectStore }

// Check reports whether the bucket is reachable.
func (s *ObjectStore) Check(ctx context.Context) error {
	if _, err := s.api.BucketExists(ctx, s.opts.Bucket); err != nil {
		return services.Wrap(services.ErrTransient, "storage", "bucket exists", s.opts.Bucket, err)
	}
	return nil
}

// Publish uploads path under its base name, overwriting any previous object.
func (s *ObjectStore) Publish(ctx context.Context, path string) (Artifact, error) {
	object := ObjectName(path)
	_, err := s.api.FPutObject(ctx, s.opts.Bucket, object, path, minio.PutObjectOptions{
		ContentType: contentType(path),
	})
	if err != nil {
		return Artifact{}, services.Wrap(services.ErrTransient, "storage", "upload", object, err)
	}
	if s.opts.DeleteLocal {
		if err := fileutil.RemoveIfExists(path); err != nil {
			return Artifact{}, services.Wrap(services.ErrTransient, "storage", "delete local", object, err)
		}
	}
	return Artifact{LocalPath: path, Object: object, URL: s.url(object)}, nil
}

func (s *ObjectStore) url(object string) string {
	if s.opts.PublicBaseURL != "" {
		return PublicURL(s.opts.PublicBaseURL, object)
	}
	scheme := "http"
	if s.opts.Secure {
		scheme = "https"
	}
	return PublicURL(fmt.Sprintf("%s://%s/%s", scheme, s.opts.Endpoint, s.opts.Bucket), object)
}

func contentType(path string) string {
	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".srt":
		return "application/x-subrip"
	case ".vtt":
		return "text/vtt"
	case ".m4a":
		return "audio/mp4"
	}
	if ct := mime.TypeByExtension(ext); ct != "" {
		return ct
	}
	return "application/octet-stream"
}
