package transcribe

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// minCue is the shortest cue written when a segment has no positive length.
const minCue = 0.5

// Normalize drops empty segments and enforces non-decreasing timestamps:
// each start is at least the previous start, and each end is after its start
// and at least the previous end.
func Normalize(segments []Segment) []Segment {
	out := make([]Segment, 0, len(segments))
	var prevStart, prevEnd float64
	for _, seg := range segments {
		text := strings.TrimSpace(seg.Text)
		if text == "" {
			continue
		}
		start := seg.Start
		if start < 0 {
			start = 0
		}
		if start < prevStart {
			start = prevStart
		}
		end := seg.End
		if end <= start {
			end = start + minCue
		}
		if end < prevEnd {
			end = prevEnd
		}
		out = append(out, Segment{Start: start, End: end, Text: text})
		prevStart, prevEnd = start, end
	}
	return out
}

// WriteSRT renders segments as SubRip, replacing any existing file.
func WriteSRT(path string, segments []Segment) error {
	var b strings.Builder
	for i, seg := range segments {
		fmt.Fprintf(&b, "%d\n%s --> %s\n%s\n\n", i+1, srtTimestamp(seg.Start), srtTimestamp(seg.End), seg.Text)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, []byte(b.String()), 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

func srtTimestamp(seconds float64) string {
	if seconds < 0 {
		seconds = 0
	}
	totalMillis := int64(seconds*1000 + 0.5)
	h := totalMillis / 3_600_000
	m := (totalMillis % 3_600_000) / 60_000
	s := (totalMillis % 60_000) / 1000
	ms := totalMillis % 1000
	return fmt.Sprintf("%02d:%02d:%02d,%03d", h, m, s, ms)
}
