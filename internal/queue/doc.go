// Package queue models job records and the dispatch queue shared by producers
// (the submission API, the channel watcher) and worker loops.
//
// A job is a flat text map addressed by an opaque identifier. The Job type
// gives that map a fixed shape while ToFields/FromFields keep the stored form
// text-only with absent values omitted. Client wraps a Store backend and
// owns the write-before-enqueue ordering, the reconnect-once policy for status
// writes, and the key naming for job records and seen-sets.
//
// Backends live in the redisstore and sqlitestore subpackages.
package queue
