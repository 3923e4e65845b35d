package command

import (
	"bytes"
	"context"
	"os/exec"
	"strings"

	"github.com/apex/log"
	"github.com/cockroachdb/errors"
)

// Runner defines the interface for running external commands
// This allows mocking exec.Command in tests
type Runner interface {
	Run(ctx context.Context, name string, args ...string) error
	Output(ctx context.Context, name string, args ...string) ([]byte, error)
}

// stderrTailLines is how much of a failing command's stderr ends up in the error
const stderrTailLines = 8

// ExecRunner is the production implementation using os/exec
type ExecRunner struct{}

// Run executes a command. On failure the tail of its stderr is attached to the error.
func (r *ExecRunner) Run(ctx context.Context, name string, args ...string) error {
	log.WithFields(log.Fields{"command": name, "args": strings.Join(args, " ")}).Debug("running command")

	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return commandError(err, name, stderr.String())
	}
	return nil
}

// Output executes a command and returns its stdout
func (r *ExecRunner) Output(ctx context.Context, name string, args ...string) ([]byte, error) {
	log.WithFields(log.Fields{"command": name, "args": strings.Join(args, " ")}).Debug("running command")

	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stderr = &stderr
	out, err := cmd.Output()
	if err != nil {
		return out, commandError(err, name, stderr.String())
	}
	log.WithField("command", name).Debug(strings.TrimSpace(string(out)))
	return out, nil
}

func commandError(err error, name, stderr string) error {
	tail := Tail(stderr, stderrTailLines)
	if tail == "" {
		return errors.Wrapf(err, "%s failed", name)
	}
	return errors.Wrapf(err, "%s failed: %s", name, tail)
}

// Tail returns the last n non-empty lines of s joined by " | "
func Tail(s string, n int) string {
	var lines []string
	for _, line := range strings.Split(s, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			lines = append(lines, line)
		}
	}
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	return strings.Join(lines, " | ")
}
