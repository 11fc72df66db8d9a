package testsupport

import (
	"context"
	"strings"
	"sync"

	"spool/internal/toolexec"
)

// FakeRunner records tool invocations and answers them with Handle.
type FakeRunner struct {
	mu     sync.Mutex
	calls  []toolexec.Command
	Handle func(ctx context.Context, cmd toolexec.Command) (toolexec.Output, error)
}

// Run implements toolexec.Runner.
func (f *FakeRunner) Run(ctx context.Context, cmd toolexec.Command) (toolexec.Output, error) {
	f.mu.Lock()
	f.calls = append(f.calls, cmd)
	handle := f.Handle
	f.mu.Unlock()
	if handle == nil {
		return toolexec.Output{}, nil
	}
	return handle(ctx, cmd)
}

// Calls returns a copy of every recorded invocation.
func (f *FakeRunner) Calls() []toolexec.Command {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]toolexec.Command(nil), f.calls...)
}

// CallsTo returns the invocations of the named binary.
func (f *FakeRunner) CallsTo(name string) []toolexec.Command {
	var out []toolexec.Command
	for _, c := range f.Calls() {
		if c.Name == name {
			out = append(out, c)
		}
	}
	return out
}

// ArgValue returns the argument following flag, or "".
func ArgValue(args []string, flag string) string {
	for i := 0; i < len(args)-1; i++ {
		if args[i] == flag {
			return args[i+1]
		}
	}
	return ""
}

// HasArg reports whether args contains flag.
func HasArg(args []string, flag string) bool {
	for _, a := range args {
		if a == flag {
			return true
		}
	}
	return false
}

// OutputTemplate returns the -o argument, which names the destination for a fetch.
func OutputTemplate(args []string) string {
	return ArgValue(args, "-o")
}

// TemplatePath resolves a "<dir>/<name>.%(ext)s" template to a concrete path.
func TemplatePath(template, ext string) string {
	return strings.Replace(template, "%(ext)s", ext, 1)
}
