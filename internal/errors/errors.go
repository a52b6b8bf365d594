// Package errors provides error types for sf CLI invocations and listing files.
package errors

import (
	"errors"
	"fmt"
	"strings"
)

// UsageLine is the synopsis printed when the required flags are missing.
const UsageLine = "sfretrieve --target-org <orgAlias> --output-file <metadataJsonFile>"

// Sentinel errors.
var (
	ErrUsage             = errors.New("usage: " + UsageLine)
	ErrCommandFailed     = errors.New("command failed")
	ErrStderrOutput      = errors.New("command wrote to stderr")
	ErrListingUnreadable = errors.New("listing file unreadable")
	ErrListingMalformed  = errors.New("listing file is not valid JSON")
	ErrNoMetadataObjects = errors.New("no metadataObjects found in the file")
	ErrPartialRetrieve   = errors.New("one or more metadata retrievals failed")
)

// CommandError describes a failed invocation of an external command.
//
// A non-nil Err means the process could not be run or exited non-zero.
// A nil Err with non-empty Stderr means the process exited cleanly but
// wrote to its error stream, which sf only does when something went wrong.
type CommandError struct {
	Name     string
	Args     []string
	ExitCode int
	Stdout   string
	Stderr   string
	Err      error
}

// CommandLine returns the command and its arguments joined by spaces.
func (e *CommandError) CommandLine() string {
	return strings.TrimSpace(e.Name + " " + strings.Join(e.Args, " "))
}

// Error returns a human-readable error message.
func (e *CommandError) Error() string {
	stderr := strings.TrimSpace(e.Stderr)
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.CommandLine(), stderr)
	}
	if stderr == "" {
		return fmt.Sprintf("command failed: %s: %v", e.CommandLine(), e.Err)
	}
	return fmt.Sprintf("command failed: %s: %v: %s", e.CommandLine(), e.Err, stderr)
}

// Unwrap exposes the matching sentinel alongside the underlying cause.
func (e *CommandError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrStderrOutput}
	}
	return []error{ErrCommandFailed, e.Err}
}

// ListingError describes a listing file that could not be read or parsed.
type ListingError struct {
	Path      string
	Malformed bool
	Err       error
}

// Error returns a human-readable error message.
func (e *ListingError) Error() string {
	if e.Malformed {
		return fmt.Sprintf("parsing JSON file %s: %v", e.Path, e.Err)
	}
	return fmt.Sprintf("reading file %s: %v", e.Path, e.Err)
}

// Unwrap exposes the matching sentinel alongside the underlying cause.
func (e *ListingError) Unwrap() []error {
	if e.Malformed {
		return []error{ErrListingMalformed, e.Err}
	}
	return []error{ErrListingUnreadable, e.Err}
}

// ReportedError marks an error that has already been shown to the user.
type ReportedError struct {
	Err error
}

func (e *ReportedError) Error() string { return e.Err.Error() }

func (e *ReportedError) Unwrap() error { return e.Err }

// Reported wraps err so the entry point does not print it a second time.
// A nil err stays nil.
func Reported(err error) error {
	if err == nil {
		return nil
	}
	return &ReportedError{Err: err}
}

// IsReported returns true if err has already been shown to the user.
func IsReported(err error) bool {
	var r *ReportedError
	return errors.As(err, &r)
}

// IsStderrOutput returns true if the error is or wraps ErrStderrOutput.
func IsStderrOutput(err error) bool {
	return errors.Is(err, ErrStderrOutput)
}

// IsUsage returns true if the error is or wraps ErrUsage.
func IsUsage(err error) bool {
	return errors.Is(err, ErrUsage)
}

// IsPartialRetrieve returns true if the error is or wraps ErrPartialRetrieve.
func IsPartialRetrieve(err error) bool {
	return errors.Is(err, ErrPartialRetrieve)
}

// StderrOf returns the captured error stream of a CommandError in err's chain.
func StderrOf(err error) string {
	var cmdErr *CommandError
	if errors.As(err, &cmdErr) {
		return strings.TrimSpace(cmdErr.Stderr)
	}
	return ""
}

// ExitCodeOf returns the exit code of a CommandError in err's chain,
// or -1 if there is none.
func ExitCodeOf(err error) int {
	var cmdErr *CommandError
	if errors.As(err, &cmdErr) {
		return cmdErr.ExitCode
	}
	return -1
}
