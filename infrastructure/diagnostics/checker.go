package diagnostics

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"video-music-remover/infrastructure/command"
	"video-music-remover/infrastructure/demucs"

	"github.com/apex/log"
)

// Status indicates whether a single check passed
type Status string

const (
	StatusPass Status = "pass"
	StatusFail Status = "fail"
)

// Item is one check result with an optional hint
type Item struct {
	ID      string
	Name    string
	Status  Status
	Message string
	Hint    string
}

// Report aggregates the checks of one health-check run
type Report struct {
	GeneratedAt time.Time
	HasFailures bool
	Items       []Item
}

// Settings are the tool locations to check. ffprobe is always looked up on
// PATH, the way ffmpeg-go runs it.
type Settings struct {
	FFmpegPath    string
	PythonPath    string
	DemucsPath    string
	Engine        demucs.Engine
	TempDirectory string
}

// probeTimeout bounds each `-version` style probe
const probeTimeout = 5 * time.Second

// Checker validates the external tools the pipeline depends on
type Checker struct {
	runner     command.Runner
	mkdirAll   func(string, os.FileMode) error
	createTemp func(string, string) (*os.File, error)
	remove     func(string) error
}

// NewChecker builds a checker running tools through runner
func NewChecker(runner command.Runner) *Checker {
	return &Checker{
		runner:     runner,
		mkdirAll:   os.MkdirAll,
		createTemp: os.CreateTemp,
		remove:     os.Remove,
	}
}

// Run executes every check and returns a combined report
func (c *Checker) Run(ctx context.Context, settings Settings) Report {
	items := []Item{
		c.checkTool(ctx, "ffmpeg", settings.FFmpegPath, "-version"),
		c.checkTool(ctx, "ffprobe", "", "-version"),
	}

	if settings.Engine == demucs.EngineCLI {
		items = append(items, c.checkTool(ctx, "demucs", settings.DemucsPath, "--help"))
	} else {
		items = append(items, c.checkDemucsPackage(ctx, settings.PythonPath))
	}

	if settings.TempDirectory != "" {
		items = append(items, c.checkTempDir(settings.TempDirectory))
	}

	hasFailures := false
	for _, item := range items {
		if item.Status == StatusFail {
			hasFailures = true
			break
		}
	}

	return Report{
		GeneratedAt: time.Now().UTC(),
		HasFailures: hasFailures,
		Items:       items,
	}
}

func (c *Checker) checkTool(ctx context.Context, name, path string, args ...string) Item {
	if path == "" {
		path = name
	}
	item := Item{ID: "tool_" + name, Name: name}

	ctx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	out, err := c.runner.Output(ctx, path, args...)
	if err != nil {
		log.WithError(err).WithField("tool", path).Debug("tool check failed")
		item.Status = StatusFail
		item.Message = fmt.Sprintf("%s is not installed or not executable", name)
		item.Hint = fmt.Sprintf("Install %s and make sure %q is on PATH or configured with `config set tools.%s`.", name, path, name)
		return item
	}

	log.WithField("tool", path).Debug(firstLine(string(out)))
	item.Status = StatusPass
	item.Message = fmt.Sprintf("%s installed", name)
	return item
}

func (c *Checker) checkDemucsPackage(ctx context.Context, python string) Item {
	if python == "" {
		python = "python3"
	}
	item := Item{ID: "python_demucs", Name: "demucs"}

	ctx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	out, err := c.runner.Output(ctx, python, "-c", "import demucs; print(demucs.__version__)")
	if err != nil {
		log.WithError(err).WithField("python", python).Debug("demucs import failed")
		item.Status = StatusFail
		item.Message = fmt.Sprintf("the demucs package cannot be imported by %s", python)
		item.Hint = "Run `pip install demucs` in that interpreter or set tools.python to one that has it."
		return item
	}

	item.Status = StatusPass
	item.Message = fmt.Sprintf("demucs %s installed", strings.TrimSpace(string(out)))
	return item
}

func (c *Checker) checkTempDir(dir string) Item {
	item := Item{ID: "temp_directory", Name: "Temp directory"}

	if err := c.mkdirAll(dir, 0o755); err != nil {
		item.Status = StatusFail
		item.Message = fmt.Sprintf("Cannot create temp directory: %s", dir)
		item.Hint = "Choose a writable location for paths.temp_directory."
		return item
	}

	tmpFile, err := c.createTemp(dir, ".write-check-*")
	if err != nil {
		item.Status = StatusFail
		item.Message = fmt.Sprintf("Temp directory is not writable: %s", dir)
		item.Hint = "Choose a writable location for paths.temp_directory."
		return item
	}

	tmpPath := tmpFile.Name()
	_ = tmpFile.Close()
	_ = c.remove(tmpPath)

	item.Status = StatusPass
	item.Message = fmt.Sprintf("Writable temp directory: %s", dir)
	return item
}

func firstLine(s string) string {
	line, _, _ := strings.Cut(strings.TrimSpace(s), "\n")
	return line
}
