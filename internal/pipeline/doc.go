// Package pipeline sequences the media stages of one job attempt: fetch,
// audio derivation, subtitle collection, transcription, metadata probing and
// artifact publication.
//
// Every stage failure ends the attempt immediately. All outputs are named
// from the job's filename, so re-running an attempt overwrites the previous
// attempt's files rather than accumulating new ones. Retry, timeout and
// terminal-state handling live in the workflow package; the pipeline only
// reports stage changes through a Reporter.
package pipeline
