// Package sink creates the output objects generated files are written into.
package sink

import (
	"context"
	"io"
	"strings"

	"github.com/google/uuid"
)

// Sink creates uniquely named output objects under one target.
// Implementations must be safe for concurrent use.
type Sink interface {
	// Create opens a new object called name for writing. Closing the
	// returned writer commits the object.
	Create(ctx context.Context, name string) (io.WriteCloser, error)

	// Remove deletes an object created by Create.
	Remove(ctx context.Context, name string) error

	// String describes the target for logs and reports.
	String() string
}

// NewName returns a high-entropy object name with the given suffix.
func NewName(extension string) string {
	return uuid.New().String() + extension
}

// Open returns the sink for target. Targets of the form gs://bucket/prefix
// write to Cloud Storage; anything else is a local directory.
func Open(ctx context.Context, target string) (Sink, error) {
	if strings.HasPrefix(target, gcsScheme) {
		return OpenGCS(ctx, target)
	}

	return NewDir(target)
}
