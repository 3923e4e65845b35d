package separation

import (
	"context"
	"fmt"
	"strings"

	"github.com/cockroachdb/errors"
)

// StemVocals is the stem kept by the tool; the complementary music stem is discarded
const StemVocals = "vocals"

// OutputFormat is the audio format the vocals stem is written in
type OutputFormat string

const (
	FormatMP3  OutputFormat = "mp3"
	FormatWAV  OutputFormat = "wav"
	FormatFLAC OutputFormat = "flac"
)

// DefaultOutputFormat matches what the demucs CLI writes with --mp3
const DefaultOutputFormat = FormatMP3

// ParseOutputFormat validates an output format name
func ParseOutputFormat(s string) (OutputFormat, error) {
	switch OutputFormat(strings.ToLower(strings.TrimSpace(s))) {
	case "":
		return DefaultOutputFormat, nil
	case FormatMP3:
		return FormatMP3, nil
	case FormatWAV:
		return FormatWAV, nil
	case FormatFLAC:
		return FormatFLAC, nil
	default:
		return "", fmt.Errorf("unknown output format %q: expected mp3, wav or flac", s)
	}
}

// Extension returns the file extension including the dot
func (f OutputFormat) Extension() string {
	return "." + string(f)
}

// Separator is a loaded model. It is shared read-only by every job of a
// batch run and must be closed when the run ends.
type Separator interface {
	// Separate splits inputPath and returns the path of the vocals stem,
	// written inside outputDir
	Separate(ctx context.Context, inputPath, outputDir string) (string, error)
	Close() error
}

// ErrExited marks failures caused by a separator whose backing process is
// gone. Every later call on that separator fails the same way.
var ErrExited = errors.New("separator exited")

// Exiter is implemented by separators that can die between calls. An exited
// separator is replaced on the next Session.Separator call.
type Exiter interface {
	Exited() bool
}

// Loader loads one model
type Loader func(ctx context.Context, model Model) (Separator, error)

// Registry maps each supported model to the function that loads it
type Registry map[Model]Loader

// Load loads the given model through its registered loader
func (r Registry) Load(ctx context.Context, model Model) (Separator, error) {
	if !model.IsValid() {
		return nil, fmt.Errorf("unsupported model %q", model)
	}
	loader, ok := r[model]
	if !ok || loader == nil {
		return nil, fmt.Errorf("no loader registered for model %q", model)
	}
	return loader(ctx, model)
}

// Session holds the model for one batch run. The model is loaded on first
// use and reused for every track and file afterwards. A separator that
// exited is closed and loaded again.
type Session struct {
	registry  Registry
	model     Model
	separator Separator
	loads     int
}

// NewSession creates a session that will load model from registry
func NewSession(registry Registry, model Model) *Session {
	return &Session{registry: registry, model: model}
}

// Model returns the model the session was created for
func (s *Session) Model() Model {
	return s.model
}

// Loaded returns true once the model has been loaded
func (s *Session) Loaded() bool {
	return s.separator != nil
}

// Loads returns how many times the model has been loaded
func (s *Session) Loads() int {
	return s.loads
}

// Separator returns the loaded model, loading it on the first call and
// again after the previous one exited
func (s *Session) Separator(ctx context.Context) (Separator, error) {
	if s.separator != nil {
		e, ok := s.separator.(Exiter)
		if !ok || !e.Exited() {
			return s.separator, nil
		}
		// the process is already gone, its exit status adds nothing
		_ = s.separator.Close()
		s.separator = nil
	}

	sep, err := s.registry.Load(ctx, s.model)
	if err != nil {
		return nil, err
	}
	s.separator = sep
	s.loads++
	return sep, nil
}

// Close releases the model if it was loaded
func (s *Session) Close() error {
	if s.separator == nil {
		return nil
	}
	err := s.separator.Close()
	s.separator = nil
	return err
}
