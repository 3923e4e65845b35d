package media

import "context"

// Prober reads the stream layout of a container
type Prober interface {
	Probe(ctx context.Context, path string) (*ProbeResult, error)
}

// TrackExtractor writes every audio stream of a source to its own file in
// workDir, preserving stream order
type TrackExtractor interface {
	ExtractTracks(ctx context.Context, probe *ProbeResult, workDir string) ([]AudioTrack, error)
}

// Remuxer assembles the output container
type Remuxer interface {
	Remux(ctx context.Context, req *RemuxRequest) error
}

// FileSystem is the subset of file operations the application layer needs
type FileSystem interface {
	// Exists returns true if the path exists
	Exists(path string) bool
	IsDir(path string) (bool, error)
	// ListFiles returns the regular files directly inside dir, sorted by name
	ListFiles(dir string) ([]string, error)
	MkdirAll(path string) error
	MkdirTemp(dir, pattern string) (string, error)
	Rename(from, to string) error
	Remove(path string) error
	RemoveAll(path string) error
}
