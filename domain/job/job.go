package job

import (
	"fmt"
	"path/filepath"

	"video-music-remover/domain/media"
	"video-music-remover/domain/separation"

	"github.com/google/uuid"
)

// ProcessingJob pairs one source video with the path its music-free copy
// is written to
type ProcessingJob struct {
	ID              string
	SourcePath      string
	DestinationPath string
	Container       media.Container
	Model           separation.Model
}

// NewProcessingJob creates a job writing source into outputDir under the same file name
func NewProcessingJob(sourcePath, outputDir string, model separation.Model) (ProcessingJob, error) {
	if sourcePath == "" {
		return ProcessingJob{}, fmt.Errorf("source path is required")
	}
	if outputDir == "" {
		return ProcessingJob{}, fmt.Errorf("output directory is required")
	}

	container, ok := media.ContainerFromPath(sourcePath)
	if !ok {
		return ProcessingJob{}, fmt.Errorf("%s is not a supported file type", filepath.Base(sourcePath))
	}

	if !model.IsValid() {
		return ProcessingJob{}, fmt.Errorf("unsupported model %q", model)
	}

	return ProcessingJob{
		ID:              uuid.NewString(),
		SourcePath:      sourcePath,
		DestinationPath: DestinationFor(sourcePath, outputDir),
		Container:       container,
		Model:           model,
	}, nil
}

// DestinationFor returns the output path of a source video
func DestinationFor(sourcePath, outputDir string) string {
	return filepath.Join(outputDir, filepath.Base(sourcePath))
}

// Name returns the source file name, used in progress messages
func (j ProcessingJob) Name() string {
	return filepath.Base(j.SourcePath)
}
