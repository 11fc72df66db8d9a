// Package media wraps ffmpeg and ffprobe for the audio transcode, the
// transcription intermediate, and local metadata fallback.
package media
