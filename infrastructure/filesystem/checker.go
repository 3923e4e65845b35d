package filesystem

import (
	"os"
	"sort"

	"video-music-remover/domain/media"

	"github.com/cockroachdb/errors"
)

// Checker implements media.FileSystem using the os package
type Checker struct{}

// NewChecker creates a new filesystem checker
func NewChecker() *Checker {
	return &Checker{}
}

// Exists returns true if the file exists
func (c *Checker) Exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// IsDir returns true if path is a directory
func (c *Checker) IsDir(path string) (bool, error) {
	info, err := os.Stat(path)
	if err != nil {
		return false, err
	}
	return info.IsDir(), nil
}

// ListFiles returns the regular files directly inside dir, sorted by name
func (c *Checker) ListFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, errors.Wrapf(err, "reading directory %s", dir)
	}

	var names []string
	for _, entry := range entries {
		if entry.Type().IsRegular() {
			names = append(names, entry.Name())
		}
	}
	sort.Strings(names)
	return names, nil
}

// MkdirAll creates path and any missing parents
func (c *Checker) MkdirAll(path string) error {
	return os.MkdirAll(path, 0755)
}

// MkdirTemp creates a new temporary directory in dir. An empty dir means
// the system temp directory.
func (c *Checker) MkdirTemp(dir, pattern string) (string, error) {
	return os.MkdirTemp(dir, pattern)
}

func (c *Checker) Rename(from, to string) error {
	return os.Rename(from, to)
}

func (c *Checker) Remove(path string) error {
	return os.Remove(path)
}

func (c *Checker) RemoveAll(path string) error {
	return os.RemoveAll(path)
}

// Ensure Checker implements media.FileSystem
var _ media.FileSystem = (*Checker)(nil)
