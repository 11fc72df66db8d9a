package queue

import (
	"crypto/sha1"
	"encoding/hex"
	"strings"
)

const (
	// DefaultQueueName is the dispatch list consumed by worker loops.
	DefaultQueueName = "yt_queue"
	// IndexKey is the set of every job identifier ever enqueued.
	IndexKey = "jobs:index"

	jobKeyPrefix  = "job:"
	seenKeyPrefix = "seen:channel:"
)

// JobKey returns the record key for a job identifier.
func JobKey(id string) string {
	return jobKeyPrefix + id
}

// SeenKey derives the seen-set key for a content source. The same listing URL
// always maps to the same key.
func SeenKey(sourceURL string) string {
	sum := sha1.Sum([]byte(strings.TrimSpace(sourceURL)))
	return seenKeyPrefix + hex.EncodeToString(sum[:])
}
