package testsupport

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
)

// WriteFile writes size bytes of filler to path, creating parent
// directories. A size <= 0 writes a single byte.
func WriteFile(t testing.TB, path string, size int64) {
	t.Helper()
	if size <= 0 {
		size = 1
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir for %s: %v", path, err)
	}
	if err := os.WriteFile(path, bytes.Repeat([]byte{0x42}, int(size)), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

// WriteDownload lays out what a finished fetch leaves in dir: the media file
// named <base>.<ext> plus one <base>.<lang>.srt per subtitle language. It
// returns the media path.
func WriteDownload(t testing.TB, dir, base, ext string, subLangs ...string) string {
	t.Helper()
	media := filepath.Join(dir, base+"."+ext)
	WriteFile(t, media, 16)
	for _, lang := range subLangs {
		path := filepath.Join(dir, base+"."+lang+".srt")
		if err := os.WriteFile(path, []byte("1\n00:00:00,000 --> 00:00:01,000\nhello\n"), 0o644); err != nil {
			t.Fatalf("write subtitle %s: %v", path, err)
		}
	}
	return media
}
