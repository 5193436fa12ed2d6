// Package writer produces single output files of generated records.
package writer

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"strings"
	"time"

	"pkg.jsn.cam/testdatagen/internal/compress"
	"pkg.jsn.cam/testdatagen/internal/logger"
	"pkg.jsn.cam/testdatagen/internal/record"
	"pkg.jsn.cam/testdatagen/internal/sink"
)

// Mode selects the output format.
type Mode int

const (
	ModeArchive Mode = iota
	ModeBlob
)

func (m Mode) String() string {
	if m == ModeBlob {
		return "blob"
	}
	return "archive"
}

// ParseMode accepts "blob" or "archive" (the empty string is archive).
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "archive":
		return ModeArchive, nil
	case "blob":
		return ModeBlob, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnknownMode, s)
	}
}

// Options controls the shape of every file a Writer produces.
type Options struct {
	Mode  Mode
	Codec compress.Codec
	Level compress.Level

	// Extension is appended to generated object names.
	Extension string

	// RemovePartial deletes an object whose write failed.
	RemovePartial bool
}

// Result describes one finished output file.
type Result struct {
	Name     string
	Records  int
	Bytes    int64
	Duration time.Duration
}

// Writer writes files of generated records into a sink.
// A Writer owns its generator and must not be shared between goroutines.
type Writer struct {
	sink sink.Sink
	gen  *record.Generator
	opts Options
}

// New returns a writer producing files in s.
func New(s sink.Sink, gen *record.Generator, opts Options) *Writer {
	return &Writer{sink: s, gen: gen, opts: opts}
}

// WriteFile writes one file of count records in the configured mode.
func (w *Writer) WriteFile(ctx context.Context, count int) (Result, error) {
	if w.opts.Mode == ModeBlob {
		return w.WriteBlob(ctx, count)
	}
	return w.WriteArchive(ctx, count)
}

// create opens a new object and wraps it for buffered, counted writes.
func (w *Writer) create(ctx context.Context) (*output, error) {
	name := sink.NewName(w.opts.Extension)

	objCtx, cancel := context.WithCancel(ctx)
	obj, err := w.sink.Create(objCtx, name)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("%w %s in %s: %w", ErrCreate, name, w.sink, err)
	}

	counted := &countingWriter{w: obj}

	return &output{
		name:    name,
		obj:     obj,
		cancel:  cancel,
		counted: counted,
		buf:     bufio.NewWriterSize(counted, 64*1024),
		started: time.Now(),
	}, nil
}

// fail closes a broken output and applies the partial-file policy.
// With RemovePartial the object's context is cancelled before Close, so
// streaming sinks abort the upload instead of committing it.
func (w *Writer) fail(ctx context.Context, out *output, err error) error {
	defer out.cancel()

	if !w.opts.RemovePartial {
		_ = out.obj.Close()
		return err
	}

	out.cancel()
	_ = out.obj.Close()

	if rmErr := w.sink.Remove(ctx, out.name); rmErr != nil && !errors.Is(rmErr, fs.ErrNotExist) {
		logger.Warnf("remove partial %s in %s: %v", out.name, w.sink, rmErr)
	}

	return err
}

type output struct {
	name    string
	obj     io.WriteCloser
	cancel  context.CancelFunc
	counted *countingWriter
	buf     *bufio.Writer
	started time.Time
}

// finish flushes buffered bytes and commits the object.
func (o *output) finish(records int) (Result, error) {
	defer o.cancel()

	if err := o.buf.Flush(); err != nil {
		return Result{}, fmt.Errorf("%w: flush %s: %w", ErrWrite, o.name, err)
	}
	if err := o.obj.Close(); err != nil {
		return Result{}, fmt.Errorf("%w: close %s: %w", ErrWrite, o.name, err)
	}

	return Result{
		Name:     o.name,
		Records:  records,
		Bytes:    o.counted.n,
		Duration: time.Since(o.started),
	}, nil
}

type countingWriter struct {
	w io.Writer
	n int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += int64(n)
	return n, err
}
