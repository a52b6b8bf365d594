// Package sftest provides a recording sf.Runner for tests.
package sftest

import (
	"context"
	"os"
	"strings"
	"sync"

	"github.com/open-cli-collective/sfretrieve/api/sf"
)

// Call is one recorded invocation.
type Call struct {
	Name string
	Args []string
}

// Subcommand returns the leading non-flag arguments joined by spaces,
// e.g. "org list metadata-types".
func (c Call) Subcommand() string {
	var parts []string
	for _, a := range c.Args {
		if strings.HasPrefix(a, "-") {
			break
		}
		parts = append(parts, a)
	}
	return strings.Join(parts, " ")
}

// Flag returns the value following the first occurrence of name, or "".
func (c Call) Flag(name string) string {
	for i, a := range c.Args {
		if a == name && i+1 < len(c.Args) {
			return c.Args[i+1]
		}
	}
	return ""
}

// HandlerFunc answers a call.
type HandlerFunc func(ctx context.Context, call Call) (*sf.Result, error)

// Runner records every call and answers it with Handler.
// A nil Handler succeeds with empty output.
type Runner struct {
	Handler HandlerFunc

	mu    sync.Mutex
	calls []Call
}

// NewRunner returns a Runner answering with h.
func NewRunner(h HandlerFunc) *Runner {
	return &Runner{Handler: h}
}

// Run implements sf.Runner.
func (r *Runner) Run(ctx context.Context, name string, args ...string) (*sf.Result, error) {
	call := Call{Name: name, Args: append([]string(nil), args...)}

	r.mu.Lock()
	r.calls = append(r.calls, call)
	r.mu.Unlock()

	if r.Handler == nil {
		return &sf.Result{}, nil
	}
	return r.Handler(ctx, call)
}

// Calls returns a copy of the recorded calls in order of arrival.
func (r *Runner) Calls() []Call {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Call(nil), r.calls...)
}

// CallsTo returns the recorded calls whose Subcommand equals sub.
func (r *Runner) CallsTo(sub string) []Call {
	var out []Call
	for _, c := range r.Calls() {
		if c.Subcommand() == sub {
			out = append(out, c)
		}
	}
	return out
}

// Router dispatches calls by Subcommand. Unrouted calls succeed with empty output.
type Router map[string]HandlerFunc

// Handle implements HandlerFunc.
func (rt Router) Handle(ctx context.Context, call Call) (*sf.Result, error) {
	if h, ok := rt[call.Subcommand()]; ok {
		return h(ctx, call)
	}
	return &sf.Result{}, nil
}

// Subcommands used by sfretrieve.
const (
	ListMetadataTypes = "org list metadata-types"
	RetrieveStart     = "project retrieve start"
)

// WriteListing answers a listing call by writing content to its --output-file.
func WriteListing(content string) HandlerFunc {
	return func(_ context.Context, call Call) (*sf.Result, error) {
		path := call.Flag("--output-file")
		if err := os.WriteFile(path, []byte(content), 0644); err != nil {
			return &sf.Result{ExitCode: 1, Stderr: err.Error()}, err
		}
		return &sf.Result{Stdout: "Wrote result file to " + path + ".\n"}, nil
	}
}

// Succeed answers with stdout and a zero exit code.
func Succeed(stdout string) HandlerFunc {
	return func(context.Context, Call) (*sf.Result, error) {
		return &sf.Result{Stdout: stdout}, nil
	}
}

// Stderr answers with a zero exit code but writes msg to stderr.
func Stderr(msg string) HandlerFunc {
	return func(context.Context, Call) (*sf.Result, error) {
		return &sf.Result{Stderr: msg}, nil
	}
}

// Fail answers with exit code 1, msg on stderr and err.
func Fail(msg string, err error) HandlerFunc {
	return func(context.Context, Call) (*sf.Result, error) {
		return &sf.Result{Stderr: msg, ExitCode: 1}, err
	}
}
