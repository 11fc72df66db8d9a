// Package transcribe drives a whisper-compatible speech recognition CLI and
// turns its segment output into an SRT caption track.
//
// Segments are normalized so start and end timestamps never move backwards,
// which keeps players from dropping cues when the recognizer emits overlapping
// windows. The requested language is canonicalized with golang.org/x/text;
// when the recognizer reports none, the transcript text is classified with
// whatlanggo.
package transcribe
