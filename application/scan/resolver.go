package scan

import (
	"iter"
	"path/filepath"
	"strings"

	"video-music-remover/domain/job"
	"video-music-remover/domain/media"
	"video-music-remover/domain/separation"

	"github.com/cockroachdb/errors"
)

// ErrInvalidPath marks input/output combinations that cannot be processed
var ErrInvalidPath = errors.New("invalid path")

// Request is the raw input of a remove-music run
type Request struct {
	InputPath  string
	OutputPath string
	Model      separation.Model
}

// Resolver turns an input path and an output directory into jobs
type Resolver struct {
	fs       media.FileSystem
	reporter job.Reporter
}

// NewResolver creates a resolver. Skipped files are reported to reporter.
func NewResolver(fs media.FileSystem, reporter job.Reporter) *Resolver {
	if reporter == nil {
		reporter = job.Discard
	}
	return &Resolver{fs: fs, reporter: reporter}
}

// Plan is a validated request
type Plan struct {
	InputPath  string
	OutputPath string
	SingleFile bool
	Model      separation.Model

	fs       media.FileSystem
	reporter job.Reporter
}

func invalid(hint, format string, args ...interface{}) error {
	err := errors.Mark(errors.Newf(format, args...), ErrInvalidPath)
	if hint != "" {
		err = errors.WithHint(err, hint)
	}
	return err
}

// Resolve validates req. Any error here is unrecoverable for the run.
func (r *Resolver) Resolve(req Request) (*Plan, error) {
	input, err := filepath.Abs(req.InputPath)
	if err != nil {
		return nil, errors.Wrapf(err, "resolving %s", req.InputPath)
	}
	output, err := filepath.Abs(req.OutputPath)
	if err != nil {
		return nil, errors.Wrapf(err, "resolving %s", req.OutputPath)
	}

	if !r.fs.Exists(input) {
		return nil, invalid("", "input path %s does not exist", input)
	}
	inputIsDir, err := r.fs.IsDir(input)
	if err != nil {
		return nil, errors.Wrapf(err, "reading %s", input)
	}
	if !inputIsDir && !media.IsSupported(input) {
		return nil, invalid("supported extensions: "+supportedList(), "%s is not a supported file type", filepath.Base(input))
	}

	outputIsDir, err := r.fs.IsDir(output)
	if err != nil || !outputIsDir {
		return nil, invalid("create it first, e.g. mkdir -p "+output, "output path %s must be an existing directory", output)
	}

	if conflicting(input, output) {
		return nil, invalid(
			"choose an output directory outside "+input,
			"output path %s can't be a parent or a child or the same directory as the input path",
			output,
		)
	}

	model := req.Model
	if model == "" {
		model = separation.DefaultModel
	}
	if !model.IsValid() {
		return nil, errors.Newf("unsupported model %q", model)
	}

	return &Plan{
		InputPath:  input,
		OutputPath: output,
		SingleFile: !inputIsDir,
		Model:      model,
		fs:         r.fs,
		reporter:   r.reporter,
	}, nil
}

// Jobs returns the jobs of the plan. The sequence is lazy: the directory
// is read when iteration starts and each destination is checked only when
// its entry is reached. Every iteration reads the directory again.
//
// A single file input always yields its job, overwriting an existing output.
func (p *Plan) Jobs() iter.Seq2[job.ProcessingJob, error] {
	return func(yield func(job.ProcessingJob, error) bool) {
		if p.SingleFile {
			j, err := job.NewProcessingJob(p.InputPath, p.OutputPath, p.Model)
			yield(j, err)
			return
		}

		names, err := p.fs.ListFiles(p.InputPath)
		if err != nil {
			yield(job.ProcessingJob{}, errors.Wrapf(err, "scanning %s", p.InputPath))
			return
		}

		for _, name := range names {
			if !media.IsSupported(name) {
				continue
			}

			source := filepath.Join(p.InputPath, name)
			destination := job.DestinationFor(source, p.OutputPath)
			if p.fs.Exists(destination) {
				p.reporter.Report(job.Event{
					Kind:        job.EventFileSkipped,
					Source:      source,
					Destination: destination,
				})
				continue
			}

			j, err := job.NewProcessingJob(source, p.OutputPath, p.Model)
			if !yield(j, err) {
				return
			}
		}
	}
}

// conflicting reports whether one path is the same as or nested in the other
func conflicting(a, b string) bool {
	return within(a, b) || within(b, a)
}

func within(path, dir string) bool {
	rel, err := filepath.Rel(dir, path)
	if err != nil {
		return false
	}
	return rel == "." || (rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)))
}

func supportedList() string {
	names := make([]string, 0, len(media.SupportedContainers))
	for _, c := range media.SupportedContainers {
		names = append(names, string(c))
	}
	return strings.Join(names, ", ")
}
