// Package textutil provides small text helpers for filenames and stored
// error messages.
//
// Filenames supplied by callers become the base name for every artifact a job
// produces, so they are reduced to a single safe path segment. Error text
// written to job records is bounded so a verbose tool failure does not bloat
// the record.
package textutil
