package logs

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"
)

const followPoll = 250 * time.Millisecond

// TailOptions controls Tail and Follow.
type TailOptions struct {
	// Limit caps Tail's output to the last Limit matching lines.
	Limit int
	// JobID keeps only records logged for this job.
	JobID string
	// Poll is how often Follow checks for growth.
	Poll time.Duration
}

// TailResult carries the matched lines and the offset after the last read.
type TailResult struct {
	Lines  []string
	Offset int64
}

// Tail returns the last opts.Limit matching lines of path. A missing file is
// an empty result.
func Tail(path string, opts TailOptions) (TailResult, error) {
	file, err := openLog(path)
	if err != nil || file == nil {
		return TailResult{}, err
	}
	defer file.Close()

	match := matcher(opts.JobID)
	limit := opts.Limit
	var ring []string
	if limit > 0 {
		ring = make([]string, 0, limit)
	}

	offset, err := scanLines(file, func(line string) {
		if limit <= 0 || !match(line) {
			return
		}
		if len(ring) == limit {
			ring = append(ring[:0], ring[1:]...)
		}
		ring = append(ring, line)
	})
	if err != nil {
		return TailResult{}, err
	}
	return TailResult{Lines: ring, Offset: offset}, nil
}

// Follow calls fn for every matching line appended to path after offset
// until ctx ends. A truncated file is read again from the start.
func Follow(ctx context.Context, path string, offset int64, opts TailOptions, fn func(string)) error {
	poll := opts.Poll
	if poll <= 0 {
		poll = followPoll
	}
	match := matcher(opts.JobID)
	ticker := time.NewTicker(poll)
	defer ticker.Stop()

	for {
		next, err := readFrom(path, offset, func(line string) {
			if match(line) {
				fn(line)
			}
		})
		if err != nil {
			return err
		}
		offset = next

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func readFrom(path string, offset int64, fn func(string)) (int64, error) {
	file, err := openLog(path)
	if err != nil || file == nil {
		return 0, err
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return offset, fmt.Errorf("stat log file: %w", err)
	}
	if offset > info.Size() {
		offset = 0
	}
	if _, err := file.Seek(offset, io.SeekStart); err != nil {
		return offset, fmt.Errorf("seek log file: %w", err)
	}
	read, err := scanLines(file, fn)
	if err != nil {
		return offset, err
	}
	return offset + read, nil
}

// scanLines feeds every complete line to fn and returns the bytes consumed.
// A trailing partial line is left for the next read.
func scanLines(r io.Reader, fn func(string)) (int64, error) {
	reader := bufio.NewReaderSize(r, 64*1024)
	var consumed int64
	for {
		line, err := reader.ReadString('\n')
		if err != nil {
			if errors.Is(err, io.EOF) {
				return consumed, nil
			}
			return consumed, fmt.Errorf("read log file: %w", err)
		}
		consumed += int64(len(line))
		fn(strings.TrimRight(line, "\r\n"))
	}
}

func openLog(path string) (*os.File, error) {
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("stat log file: %w", err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("log path %q is a directory", path)
	}
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open log file: %w", err)
	}
	return file, nil
}

func matcher(jobID string) func(string) bool {
	jobID = strings.TrimSpace(jobID)
	if jobID == "" {
		return func(string) bool { return true }
	}
	console := "job_id=" + jobID
	jsonField := `"job_id":"` + jobID + `"`
	return func(line string) bool {
		return strings.Contains(line, jsonField) || hasToken(line, console)
	}
}

// hasToken reports whether token appears in line followed by a space or the
// end of the line.
func hasToken(line, token string) bool {
	for {
		idx := strings.Index(line, token)
		if idx < 0 {
			return false
		}
		end := idx + len(token)
		if end == len(line) || line[end] == ' ' {
			return true
		}
		line = line[end:]
	}
}
