package preflight

import (
	"context"

	"spool/internal/config"
	"spool/internal/queue"
	"spool/internal/storage"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name     string
	Passed   bool
	Optional bool
	Detail   string
}

// RunAll executes every preflight check for cfg. dial may be nil, in which
// case the store check reports a configuration failure.
func RunAll(ctx context.Context, cfg *config.Config, dial queue.Dialer) []Result {
	if cfg == nil {
		return nil
	}

	results := []Result{
		CheckDirectoryAccess("Download directory", cfg.Paths.DownloadDir),
		CheckDirectoryAccess("Data directory", cfg.Paths.DataDir),
		CheckDirectoryAccess("Log directory", cfg.Paths.LogDir),
	}
	if cfg.Storage.Backend == config.StorageBackendLocal && cfg.Storage.LocalDir != cfg.Paths.DownloadDir {
		results = append(results, CheckDirectoryAccess("Local storage directory", cfg.Storage.LocalDir))
	}

	results = append(results, CheckStore(ctx, dial))

	pub, err := storage.New(ctx, cfg)
	if err != nil {
		results = append(results, Result{Name: "Artifact storage", Detail: err.Error()})
	} else {
		results = append(results, CheckStorage(ctx, pub))
	}

	for _, dep := range CheckSystemDeps(cfg) {
		r := Result{Name: dep.Name, Passed: dep.Available, Optional: dep.Optional, Detail: dep.Command}
		if !dep.Available {
			r.Detail = dep.Detail
		}
		results = append(results, r)
	}
	return results
}

// Failed returns the non-optional checks that did not pass.
func Failed(results []Result) []Result {
	var out []Result
	for _, r := range results {
		if !r.Passed && !r.Optional {
			out = append(out, r)
		}
	}
	return out
}
