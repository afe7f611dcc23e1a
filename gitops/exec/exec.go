// Package exec runs external commands for the git
// backends.
package exec

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"strings"
	"time"
)

// Error reports a command that could not start or
// exited unsuccessfully.
type Error struct {
	Name   string
	Args   []string
	Stderr string
	Err    error
}

func (e *Error) Error() string {
	msg := fmt.Sprintf(
		"%s %s: %v", e.Name, strings.Join(e.Args, " "), e.Err,
	)
	if e.Stderr == "" {
		return msg
	}

	return msg + ": " + e.Stderr
}

func (e *Error) Unwrap() error {
	return e.Err
}

// ExitCode returns the exit status of the command, or -1
// when it did not run to completion.
func (e *Error) ExitCode() int {
	var exitErr *exec.ExitError
	if errors.As(e.Err, &exitErr) {
		return exitErr.ExitCode()
	}

	return -1
}

// Runner starts commands in a fixed directory with extra
// environment variables. The zero value runs in the
// current directory with the process environment.
type Runner struct {
	// Dir is the working directory of every command.
	Dir string
	// Env entries are appended to os.Environ().
	Env []string
	// Logger defaults to slog.Default().
	Logger *slog.Logger
}

// Output runs name with args and returns its standard
// output. Standard error is kept for the returned *Error.
// The command is killed when ctx is done.
func (r Runner) Output(
	ctx context.Context,
	name string,
	args ...string,
) (string, error) {
	log := r.Logger
	if log == nil {
		log = slog.Default()
	}

	var stdout, stderr bytes.Buffer

	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = r.Dir
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if len(r.Env) > 0 {
		cmd.Env = append(os.Environ(), r.Env...)
	}

	start := time.Now()
	err := cmd.Run()

	log.Debug(
		"command finished",
		"cmd", name,
		"args", args,
		"dir", r.Dir,
		"elapsed", time.Since(start),
		"error", err,
	)

	if err != nil {
		return stdout.String(), &Error{
			Name:   name,
			Args:   args,
			Stderr: strings.TrimSpace(stderr.String()),
			Err:    err,
		}
	}

	return stdout.String(), nil
}
