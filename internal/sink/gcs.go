package sink

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"path"
	"strings"

	"cloud.google.com/go/storage"
)

const gcsScheme = "gs://"

// GCS writes objects into a Cloud Storage bucket under a prefix.
type GCS struct {
	bucket *storage.BucketHandle
	name   string
	prefix string
}

// OpenGCS creates a client with default credentials and returns a sink for
// a gs://bucket/prefix target.
func OpenGCS(ctx context.Context, target string) (*GCS, error) {
	bucket, prefix, err := ParseGCSTarget(target)
	if err != nil {
		return nil, err
	}

	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: storage client: %w", ErrTargetUnavailable, err)
	}

	return NewGCS(client, bucket, prefix), nil
}

// NewGCS returns a sink using an existing client.
func NewGCS(client *storage.Client, bucket, prefix string) *GCS {
	return &GCS{
		bucket: client.Bucket(bucket),
		name:   bucket,
		prefix: strings.Trim(prefix, "/"),
	}
}

// ParseGCSTarget splits gs://bucket/some/prefix into bucket and prefix.
func ParseGCSTarget(target string) (bucket, prefix string, err error) {
	rest, ok := strings.CutPrefix(target, gcsScheme)
	if !ok {
		return "", "", fmt.Errorf("%w: %q is not a gs:// URL", ErrInvalidTarget, target)
	}

	bucket, prefix, _ = strings.Cut(rest, "/")
	if bucket == "" {
		return "", "", fmt.Errorf("%w: %q has no bucket", ErrInvalidTarget, target)
	}

	return bucket, strings.Trim(prefix, "/"), nil
}

// Create starts an upload; the object becomes visible when the writer is closed.
func (g *GCS) Create(ctx context.Context, name string) (io.WriteCloser, error) {
	w := g.bucket.Object(g.objectName(name)).NewWriter(ctx)
	w.ContentType = "application/octet-stream"
	return w, nil
}

// Remove deletes an uploaded object. A missing object, such as an aborted
// upload, is reported as fs.ErrNotExist.
func (g *GCS) Remove(ctx context.Context, name string) error {
	err := g.bucket.Object(g.objectName(name)).Delete(ctx)
	if errors.Is(err, storage.ErrObjectNotExist) {
		return fmt.Errorf("%s: %w", name, fs.ErrNotExist)
	}
	return err
}

func (g *GCS) String() string {
	if g.prefix == "" {
		return gcsScheme + g.name
	}
	return gcsScheme + g.name + "/" + g.prefix
}

func (g *GCS) objectName(name string) string {
	if g.prefix == "" {
		return name
	}
	return path.Join(g.prefix, name)
}
