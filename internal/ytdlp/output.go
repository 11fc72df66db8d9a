package ytdlp

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"spool/internal/services"
)

var sidecarSuffixes = []string{".part", ".ytdl", ".json", ".tmp", ".temp"}

var subtitleExts = map[string]struct{}{
	".srt": {}, ".vtt": {}, ".ass": {}, ".ssa": {}, ".ttml": {}, ".srv3": {}, ".lrc": {},
}

// Artifacts lists finished files in dir whose names start with "<filename>.".
func Artifacts(dir, filename string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("list output dir: %w", err)
	}
	prefix := filename + "."
	var out []string
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasPrefix(name, prefix) || isSidecar(name) {
			continue
		}
		out = append(out, filepath.Join(dir, name))
	}
	sort.Strings(out)
	return out, nil
}

// FindMedia locates the primary media file for filename, preferring the
// first matching extension in prefer. Subtitles and sidecars are ignored.
func FindMedia(dir, filename string, prefer ...string) (string, error) {
	files, err := Artifacts(dir, filename)
	if err != nil {
		return "", err
	}
	var candidates []string
	for _, f := range files {
		if IsSubtitle(f) {
			continue
		}
		candidates = append(candidates, f)
	}
	for _, ext := range prefer {
		ext = "." + strings.TrimPrefix(strings.ToLower(ext), ".")
		for _, f := range candidates {
			if strings.EqualFold(filepath.Ext(f), ext) && strings.EqualFold(filepath.Base(f), filename+ext) {
				return f, nil
			}
		}
	}
	if len(candidates) > 0 {
		return candidates[0], nil
	}
	return "", services.Wrap(services.ErrExternalTool, "fetch", "locate output",
		fmt.Sprintf("no file matching %s.* in %s", filename, dir), nil)
}

// Subtitles returns the language-tagged subtitle files the fetch wrote for
// filename ("<filename>.<lang>.srt"). An untagged "<filename>.srt" is the
// transcript and is not included.
func Subtitles(dir, filename string) ([]string, error) {
	files, err := Artifacts(dir, filename)
	if err != nil {
		return nil, err
	}
	var out []string
	for _, f := range files {
		rest := strings.TrimPrefix(filepath.Base(f), filename+".")
		if IsSubtitle(f) && strings.Contains(rest, ".") {
			out = append(out, f)
		}
	}
	return out, nil
}

// IsSubtitle reports whether path has a caption-track extension.
func IsSubtitle(path string) bool {
	_, ok := subtitleExts[strings.ToLower(filepath.Ext(path))]
	return ok
}

// Ext returns the extension of path without the dot.
func Ext(path string) string {
	return strings.TrimPrefix(filepath.Ext(path), ".")
}

func isSidecar(name string) bool {
	lower := strings.ToLower(name)
	for _, suffix := range sidecarSuffixes {
		if strings.HasSuffix(lower, suffix) {
			return true
		}
	}
	return strings.Contains(lower, ".part-frag")
}
