// Package stage describes collaborator readiness for status output.
package stage

import (
	"context"
	"time"
)

// probeTimeout bounds a single readiness probe.
const probeTimeout = 5 * time.Second

// Health summarizes the readiness of a collaborator the pipeline depends on.
type Health struct {
	Name   string
	Ready  bool
	Detail string
}

// Healthy constructs a ready Health record.
func Healthy(name string) Health {
	return Health{Name: name, Ready: true}
}

// Unhealthy constructs an unhealthy Health record with context detail.
func Unhealthy(name, detail string) Health {
	return Health{Name: name, Ready: false, Detail: detail}
}

// Probe runs check with a short timeout and reports the outcome.
func Probe(ctx context.Context, name string, check func(context.Context) error) Health {
	if check == nil {
		return Unhealthy(name, "not configured")
	}
	probeCtx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()
	if err := check(probeCtx); err != nil {
		return Unhealthy(name, err.Error())
	}
	return Healthy(name)
}
