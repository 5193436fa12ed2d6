package sink

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// Dir writes files directly under a local directory.
type Dir struct {
	path string
}

// NewDir returns a sink for an existing directory.
func NewDir(path string) (*Dir, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrTargetUnavailable, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%w: %s is not a directory", ErrTargetUnavailable, path)
	}

	return &Dir{path: path}, nil
}

// Create opens a new file; it fails if the name already exists.
func (d *Dir) Create(_ context.Context, name string) (io.WriteCloser, error) {
	return os.OpenFile(filepath.Join(d.path, name), os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
}

// Remove deletes a file created by Create.
func (d *Dir) Remove(_ context.Context, name string) error {
	return os.Remove(filepath.Join(d.path, name))
}

func (d *Dir) String() string {
	return d.path
}
