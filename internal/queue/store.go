package queue

import (
	"context"
	"time"
)

// Store is the key-value/list/set contract a job store backend provides.
// Each operation is individually atomic; nothing spans keys.
type Store interface {
	// Push appends value to the tail of the named list.
	Push(ctx context.Context, list, value string) error
	// BlockingPop removes and returns the head of the named list, waiting up to
	// timeout. It returns "" with a nil error when the wait elapses.
	BlockingPop(ctx context.Context, list string, timeout time.Duration) (string, error)
	// Len reports the number of pending entries in the named list.
	Len(ctx context.Context, list string) (int64, error)

	// SetFields merges fields into the hash at key without touching others.
	SetFields(ctx context.Context, key string, fields map[string]string) error
	// GetAllFields returns every field of the hash at key; an absent key
	// yields an empty map.
	GetAllFields(ctx context.Context, key string) (map[string]string, error)

	// SetAdd adds member and reports whether it was newly added.
	SetAdd(ctx context.Context, key, member string) (bool, error)
	SetContains(ctx context.Context, key, member string) (bool, error)
	SetMembers(ctx context.Context, key string) ([]string, error)

	Ping(ctx context.Context) error
	Close() error
}

// Dialer opens a fresh store connection. Worker loops dial their own.
type Dialer func(ctx context.Context) (Store, error)
