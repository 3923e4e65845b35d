package command

import (
	"context"
	"io"
	"os/exec"
	"strings"
	"sync"

	"github.com/apex/log"
	"github.com/cockroachdb/errors"
)

// Process is a started long-lived child process driven over its standard streams
type Process interface {
	Stdin() io.WriteCloser
	Stdout() io.Reader
	Stderr() io.Reader
	Wait() error
}

// Starter starts child processes
type Starter interface {
	Start(ctx context.Context, name string, args ...string) (Process, error)
}

// ExecStarter is the production implementation using os/exec
type ExecStarter struct{}

type execProcess struct {
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	stdout io.Reader
	stderr io.Reader
}

// Start launches name with args. The process is killed when ctx is done.
func (ExecStarter) Start(ctx context.Context, name string, args ...string) (Process, error) {
	log.WithFields(log.Fields{"command": name, "args": len(args)}).Debug("starting process")

	cmd := exec.CommandContext(ctx, name, args...)
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, errors.Wrap(err, "unable to open stdin")
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, errors.Wrap(err, "unable to open stdout")
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, errors.Wrap(err, "unable to open stderr")
	}
	if err := cmd.Start(); err != nil {
		return nil, errors.Wrapf(err, "unable to start %s", name)
	}

	return &execProcess{cmd: cmd, stdin: stdin, stdout: stdout, stderr: stderr}, nil
}

func (p *execProcess) Stdin() io.WriteCloser { return p.stdin }
func (p *execProcess) Stdout() io.Reader     { return p.stdout }
func (p *execProcess) Stderr() io.Reader     { return p.stderr }
func (p *execProcess) Wait() error           { return p.cmd.Wait() }

// TailBuffer keeps the last lines written to it. It is safe for concurrent use.
type TailBuffer struct {
	mu    sync.Mutex
	limit int
	lines []string
}

// NewTailBuffer creates a buffer holding at most limit lines
func NewTailBuffer(limit int) *TailBuffer {
	return &TailBuffer{limit: limit}
}

// Add records a line, dropping the oldest once full
func (b *TailBuffer) Add(line string) {
	line = strings.TrimSpace(line)
	if line == "" {
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	b.lines = append(b.lines, line)
	if len(b.lines) > b.limit {
		b.lines = b.lines[len(b.lines)-b.limit:]
	}
}

// String joins the buffered lines with " | "
func (b *TailBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return strings.Join(b.lines, " | ")
}
