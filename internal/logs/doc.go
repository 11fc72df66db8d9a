// Package logs reads spool process log files for the CLI.
//
// Tail returns the last lines of a file and the offset to resume from;
// Follow streams lines appended after an offset until the context ends.
// Both accept an optional job filter that matches console and JSON log
// records carrying the job_id attribute.
package logs
