// Package storage publishes finished artifacts and computes their public
// references.
//
// Two backends exist: an S3-compatible object store reached through
// minio-go, and a local directory for single-host deployments. Object names
// are the artifact base names, so re-publishing an attempt's output
// overwrites the previous object instead of adding one.
package storage

import (
	"context"
	"fmt"
	"net/url"
	"path/filepath"
	"strings"

	"golang.org/x/sync/errgroup"

	"spool/internal/config"
	"spool/internal/services"
)

// Artifact is one published file.
type Artifact struct {
	LocalPath string
	Object    string
	URL       string
}

// Publisher uploads artifacts to a backend.
type Publisher interface {
	// Backend names the storage kind recorded on the job ("object-store" or "local").
	Backend() string
	Publish(ctx context.Context, path string) (Artifact, error)
	Check(ctx context.Context) error
}

// New builds the publisher selected by cfg.Storage.Backend.
func New(ctx context.Context, cfg *config.Config) (Publisher, error) {
	switch cfg.Storage.Backend {
	case config.StorageBackendObjectStore:
		return NewObjectStore(ctx, ObjectStoreOptions{
			Endpoint:      cfg.Storage.Endpoint,
			AccessKey:     cfg.Storage.AccessKey,
			SecretKey:     cfg.Storage.SecretKey,
			Bucket:        cfg.Storage.Bucket,
			Secure:        cfg.Storage.Secure,
			PublicBaseURL: cfg.Storage.PublicBaseURL,
			DeleteLocal:   cfg.Storage.AutoDeleteLocal,
		})
	case config.StorageBackendLocal:
		return NewLocal(cfg.Storage.LocalDir, cfg.Storage.PublicBaseURL), nil
	default:
		return nil, services.Wrap(services.ErrConfiguration, "storage", "", fmt.Sprintf("unsupported backend %q", cfg.Storage.Backend), nil)
	}
}

// PublishAll publishes paths with at most limit uploads in flight. Results
// keep the order of paths. The first failure cancels outstanding uploads.
func PublishAll(ctx context.Context, pub Publisher, paths []string, limit int) ([]Artifact, error) {
	out := make([]Artifact, len(paths))
	g, gctx := errgroup.WithContext(ctx)
	if limit > 0 {
		g.SetLimit(limit)
	}
	for i, path := range paths {
		g.Go(func() error {
			artifact, err := pub.Publish(gctx, path)
			if err != nil {
				return err
			}
			out[i] = artifact
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// ObjectName derives the stored name for a local artifact.
func ObjectName(path string) string {
	return filepath.Base(path)
}

// PublicURL joins base and object with a single slash. Path segments of
// object are escaped.
func PublicURL(base, object string) string {
	escaped := url.PathEscape(object)
	base = strings.TrimRight(strings.TrimSpace(base), "/")
	if base == "" {
		return escaped
	}
	return base + "/" + escaped
}
