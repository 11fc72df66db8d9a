package sqlitestore

import (
	"context"

	"spool/internal/queue"
)

// Dialer returns a queue.Dialer that opens an independent handle on path.
func Dialer(path string) queue.Dialer {
	return func(context.Context) (queue.Store, error) {
		return Open(path)
	}
}
