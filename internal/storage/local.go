package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"spool/internal/config"
	"spool/internal/fileutil"
	"spool/internal/services"
)

// Local publishes into a directory on this host. When the directory differs
// from where the artifact was produced the file is moved there; otherwise it
// is left in place.
type Local struct {
	dir     string
	baseURL string
}

// NewLocal constructs a local publisher.
func NewLocal(dir, baseURL string) *Local {
	return &Local{dir: dir, baseURL: baseURL}
}

// Backend implements Publisher.
func (l *Local) Backend() string { return config.StorageBackendLocal }

// Check verifies the publish directory is writable.
func (l *Local) Check(context.Context) error {
	if err := os.MkdirAll(l.dir, 0o755); err != nil {
		return services.Wrap(services.ErrConfiguration, "storage", "local dir", l.dir, err)
	}
	probe, err := os.CreateTemp(l.dir, ".spool-probe-*")
	if err != nil {
		return services.Wrap(services.ErrConfiguration, "storage", "local dir", fmt.Sprintf("%s not writable", l.dir), err)
	}
	name := probe.Name()
	_ = probe.Close()
	return os.Remove(name)
}

// Publish moves path into the publish directory and returns its reference.
// Without a public base URL the reference is the absolute file path.
func (l *Local) Publish(ctx context.Context, path string) (Artifact, error) {
	if err := ctx.Err(); err != nil {
		return Artifact{}, err
	}
	object := ObjectName(path)
	dest := path
	if l.dir != "" {
		dest = filepath.Join(l.dir, object)
	}
	if err := fileutil.MoveFile(path, dest); err != nil {
		return Artifact{}, services.Wrap(services.ErrTransient, "storage", "move", object, err)
	}
	ref := dest
	if l.baseURL != "" {
		ref = PublicURL(l.baseURL, object)
	}
	return Artifact{LocalPath: dest, Object: object, URL: ref}, nil
}
