// Package toolexec runs external command-line tools with line-level output
// streaming, bounded output capture, and context-driven termination.
package toolexec

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strings"
	"sync"
	"time"
)

// Stream identifies which pipe a line came from.
type Stream string

const (
	StreamStdout Stream = "stdout"
	StreamStderr Stream = "stderr"
)

// maxKeep bounds the stderr (and, unless captured, stdout) text retained for
// error reporting. The newest lines are kept since tools report the fatal
// error last.
const maxKeep = 8192

// waitDelay bounds how long Wait lingers on open pipes after the process is killed.
const waitDelay = 2 * time.Second

// LineFunc receives each output line as it is produced.
type LineFunc func(stream Stream, line string)

// Command describes one tool invocation.
type Command struct {
	Name string
	Args []string
	Dir  string
	// OnLine is invoked for every stdout/stderr line. Carriage returns split
	// lines so in-place progress bars are observed.
	OnLine LineFunc
	// CaptureStdout keeps the full stdout instead of a bounded tail.
	CaptureStdout bool
}

// Output is what a finished invocation produced.
type Output struct {
	Stdout string
	Stderr string
}

// Runner executes commands. Tests substitute fakes.
type Runner interface {
	Run(ctx context.Context, cmd Command) (Output, error)
}

// RunnerFunc adapts a function to Runner.
type RunnerFunc func(ctx context.Context, cmd Command) (Output, error)

func (f RunnerFunc) Run(ctx context.Context, cmd Command) (Output, error) { return f(ctx, cmd) }

// ExecRunner runs commands with os/exec.
type ExecRunner struct{}

// Run starts the command, streams both pipes, and waits for exit. When ctx
// ends first the process is killed and the context error is returned.
func (ExecRunner) Run(ctx context.Context, c Command) (Output, error) {
	cmd := exec.CommandContext(ctx, c.Name, c.Args...) //nolint:gosec
	cmd.Dir = c.Dir
	cmd.WaitDelay = waitDelay

	stdoutPipe, err := cmd.StdoutPipe()
	if err != nil {
		return Output{}, fmt.Errorf("setup stdout pipe: %w", err)
	}
	stderrPipe, err := cmd.StderrPipe()
	if err != nil {
		return Output{}, fmt.Errorf("setup stderr pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return Output{}, fmt.Errorf("start %s: %w", c.Name, err)
	}

	var (
		outBuf  strings.Builder
		outTail tailBuffer
		errTail tailBuffer
		mu      sync.Mutex
		wg      sync.WaitGroup
	)

	read := func(stream Stream, r io.Reader) {
		defer wg.Done()
		scanner := bufio.NewScanner(r)
		buf := make([]byte, 0, 64*1024)
		scanner.Buffer(buf, 1024*1024)
		if stream == StreamStdout && c.CaptureStdout {
			scanner.Split(bufio.ScanLines)
		} else {
			scanner.Split(splitByNewlineOrCR)
		}
		for scanner.Scan() {
			line := scanner.Text()
			mu.Lock()
			if stream == StreamStdout && c.CaptureStdout {
				outBuf.WriteString(line)
				outBuf.WriteByte('\n')
			} else {
				target := &outTail
				if stream == StreamStderr {
					target = &errTail
				}
				target.add(line)
			}
			mu.Unlock()
			if c.OnLine != nil {
				c.OnLine(stream, line)
			}
		}
	}

	wg.Add(2)
	go read(StreamStdout, stdoutPipe)
	go read(StreamStderr, stderrPipe)
	wg.Wait()

	waitErr := cmd.Wait()
	out := Output{Stdout: outTail.String(), Stderr: errTail.String()}
	if c.CaptureStdout {
		out.Stdout = outBuf.String()
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return out, fmt.Errorf("%s terminated: %w", c.Name, ctxErr)
	}
	if waitErr != nil {
		detail := strings.TrimSpace(out.Stderr)
		if detail == "" {
			detail = strings.TrimSpace(lastLines(out.Stdout, 5))
		}
		return out, &ExitError{Name: c.Name, Err: waitErr, Detail: detail}
	}
	return out, nil
}

// ExitError reports a non-zero exit together with the tool's error output.
type ExitError struct {
	Name   string
	Err    error
	Detail string
}

func (e *ExitError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("%s failed: %v", e.Name, e.Err)
	}
	return fmt.Sprintf("%s failed: %v\n%s", e.Name, e.Err, e.Detail)
}

func (e *ExitError) Unwrap() error { return e.Err }

// ExitCode returns the process exit code when err wraps an ExitError from a
// process that exited normally, or -1.
func ExitCode(err error) int {
	var exitErr *ExitError
	if !errors.As(err, &exitErr) {
		return -1
	}
	var procErr *exec.ExitError
	if errors.As(exitErr.Err, &procErr) {
		return procErr.ExitCode()
	}
	return -1
}

func splitByNewlineOrCR(data []byte, atEOF bool) (advance int, token []byte, err error) {
	for i := 0; i < len(data); i++ {
		if data[i] == '\n' || data[i] == '\r' {
			if i == 0 {
				return 1, nil, nil
			}
			return i + 1, data[:i], nil
		}
	}
	if atEOF && len(data) > 0 {
		return len(data), data, nil
	}
	return 0, nil, nil
}

// tailBuffer retains the newest lines whose combined size fits maxKeep.
type tailBuffer struct {
	lines []string
	size  int
}

func (t *tailBuffer) add(line string) {
	if len(line) >= maxKeep {
		line = line[len(line)-(maxKeep-1):]
	}
	t.lines = append(t.lines, line)
	t.size += len(line) + 1
	drop := 0
	for t.size > maxKeep {
		t.size -= len(t.lines[drop]) + 1
		drop++
	}
	if drop > 0 {
		t.lines = append(t.lines[:0], t.lines[drop:]...)
	}
}

func (t *tailBuffer) String() string {
	if len(t.lines) == 0 {
		return ""
	}
	return strings.Join(t.lines, "\n") + "\n"
}

func lastLines(text string, n int) string {
	lines := strings.Split(strings.TrimRight(text, "\n"), "\n")
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	return strings.Join(lines, "\n")
}
