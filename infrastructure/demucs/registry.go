package demucs

import (
	"context"

	"video-music-remover/domain/separation"
	"video-music-remover/infrastructure/command"

	"github.com/cockroachdb/errors"
)

// Engine selects how the model is run
type Engine string

const (
	// EngineWorker keeps one python process with the model loaded for the whole batch
	EngineWorker Engine = "worker"
	// EngineCLI runs the demucs executable per track
	EngineCLI Engine = "cli"
)

// DefaultEngine is used when none is configured
const DefaultEngine = EngineWorker

// ParseEngine validates an engine name, empty means the default
func ParseEngine(s string) (Engine, error) {
	switch Engine(s) {
	case "":
		return DefaultEngine, nil
	case EngineWorker, EngineCLI:
		return Engine(s), nil
	default:
		return "", errors.Newf("unknown separation engine %q: expected worker or cli", s)
	}
}

// Options configures the separators built by NewRegistry
type Options struct {
	Engine     Engine
	PythonPath string
	DemucsPath string
	Device     string
	Format     separation.OutputFormat
	Runner     command.Runner
	Starter    command.Starter
}

func (o Options) withDefaults() Options {
	if o.Engine == "" {
		o.Engine = DefaultEngine
	}
	if o.PythonPath == "" {
		o.PythonPath = "python3"
	}
	if o.DemucsPath == "" {
		o.DemucsPath = "demucs"
	}
	if o.Format == "" {
		o.Format = separation.DefaultOutputFormat
	}
	if o.Runner == nil {
		o.Runner = &command.ExecRunner{}
	}
	if o.Starter == nil {
		o.Starter = command.ExecStarter{}
	}
	return o
}

// NewRegistry maps every supported model to a loader for the configured engine
func NewRegistry(opts Options) separation.Registry {
	opts = opts.withDefaults()

	var loader separation.Loader
	switch opts.Engine {
	case EngineCLI:
		loader = func(ctx context.Context, model separation.Model) (separation.Separator, error) {
			return NewCLISeparator(opts.Runner, opts.DemucsPath, model, opts.Format, opts.Device), nil
		}
	default:
		loader = func(ctx context.Context, model separation.Model) (separation.Separator, error) {
			w, err := StartWorker(ctx, opts.Starter, opts.PythonPath, model, opts.Format, opts.Device)
			if err != nil {
				return nil, err
			}
			return w, nil
		}
	}

	registry := make(separation.Registry, len(separation.Models()))
	for _, model := range separation.Models() {
		registry[model] = loader
	}
	return registry
}
