package writer

import (
	"archive/tar"
	"context"
	"errors"
	"io"
	"math/rand/v2"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"pkg.jsn.cam/testdatagen/internal/compress"
	"pkg.jsn.cam/testdatagen/internal/inspect"
	"pkg.jsn.cam/testdatagen/internal/record"
	"pkg.jsn.cam/testdatagen/internal/sink"
)

func newTestWriter(t *testing.T, opts Options) (*Writer, string) {
	t.Helper()

	dir := t.TempDir()
	s, err := sink.NewDir(dir)
	if err != nil {
		t.Fatalf("NewDir failed: %v", err)
	}

	return New(s, record.NewGenerator(rand.New(rand.NewPCG(1, 1))), opts), dir
}

func listFiles(t *testing.T, dir string) []string {
	t.Helper()

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("ReadDir failed: %v", err)
	}

	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names
}

func TestWriteBlob(t *testing.T) {
	t.Parallel()

	w, dir := newTestWriter(t, Options{Mode: ModeBlob, Extension: ".jsonl"})

	res, err := w.WriteFile(context.Background(), 5)
	if err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	if res.Records != 5 {
		t.Errorf("Records = %d, want 5", res.Records)
	}
	if !strings.HasSuffix(res.Name, ".jsonl") {
		t.Errorf("Name = %q, want .jsonl suffix", res.Name)
	}

	path := filepath.Join(dir, res.Name)
	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("Stat failed: %v", err)
	}
	if info.Size() != res.Bytes {
		t.Errorf("Bytes = %d, file size = %d", res.Bytes, info.Size())
	}

	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile failed: %v", err)
	}
	if !strings.HasSuffix(string(content), "\n") {
		t.Error("blob should end with a newline")
	}

	lines := strings.Split(strings.TrimSuffix(string(content), "\n"), "\n")
	if len(lines) != 5 {
		t.Fatalf("got %d lines, want 5", len(lines))
	}
	for i, line := range lines {
		rec, err := record.Decode([]byte(line))
		if err != nil {
			t.Fatalf("line %d: %v", i, err)
		}
		if err := rec.Validate(); err != nil {
			t.Errorf("line %d: %v", i, err)
		}
	}
}

func TestWriteBlobZeroRecords(t *testing.T) {
	t.Parallel()

	w, dir := newTestWriter(t, Options{Mode: ModeBlob})

	res, err := w.WriteBlob(context.Background(), 0)
	if err != nil {
		t.Fatalf("WriteBlob failed: %v", err)
	}

	info, err := os.Stat(filepath.Join(dir, res.Name))
	if err != nil {
		t.Fatalf("Stat failed: %v", err)
	}
	if info.Size() != 0 {
		t.Errorf("empty blob has %d bytes", info.Size())
	}
}

func TestWriteArchiveIntegrity(t *testing.T) {
	t.Parallel()

	codecs := []compress.Codec{compress.CodecGzip, compress.CodecLZ4, compress.CodecNone}
	levels := []compress.Level{compress.LevelNone, compress.LevelFast, compress.LevelBest}

	for _, codec := range codecs {
		for _, level := range levels {
			t.Run(string(codec)+"/"+level.String(), func(t *testing.T) {
				t.Parallel()

				w, dir := newTestWriter(t, Options{Mode: ModeArchive, Codec: codec, Level: level})

				res, err := w.WriteFile(context.Background(), 25)
				if err != nil {
					t.Fatalf("WriteFile failed: %v", err)
				}

				summary, err := inspect.File(filepath.Join(dir, res.Name))
				if err != nil {
					t.Fatalf("inspect failed: %v", err)
				}

				if summary.Records != 25 {
					t.Errorf("Records = %d, want 25", summary.Records)
				}
				if !summary.Valid() {
					t.Errorf("archive has problems: %v", summary.Problems)
				}
				for _, e := range summary.Entries {
					if e.Declared != e.Actual {
						t.Errorf("entry %s: declared %d, actual %d", e.Name, e.Declared, e.Actual)
					}
				}
			})
		}
	}
}

func TestWriteArchiveHeaders(t *testing.T) {
	t.Parallel()

	w, dir := newTestWriter(t, Options{Mode: ModeArchive, Codec: compress.CodecNone})

	res, err := w.WriteArchive(context.Background(), 3)
	if err != nil {
		t.Fatalf("WriteArchive failed: %v", err)
	}

	f, err := os.Open(filepath.Join(dir, res.Name))
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer f.Close()

	tr := tar.NewReader(f)
	count := 0
	for {
		hdr, err := tr.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			t.Fatalf("Next failed: %v", err)
		}
		count++

		if hdr.Typeflag != tar.TypeReg {
			t.Errorf("entry %s: typeflag %v, want regular", hdr.Name, hdr.Typeflag)
		}
		if hdr.Format != tar.FormatUSTAR {
			t.Errorf("entry %s: format %v, want USTAR", hdr.Name, hdr.Format)
		}
		if hdr.Mode != 0644 {
			t.Errorf("entry %s: mode %o", hdr.Name, hdr.Mode)
		}
	}

	if count != 3 {
		t.Errorf("got %d entries, want 3", count)
	}
}

func TestAppendEntryNameTooLong(t *testing.T) {
	t.Parallel()

	tw := tar.NewWriter(io.Discard)
	err := appendEntry(tw, strings.Repeat("a", maxEntryName+1), []byte("{}"))
	if !errors.Is(err, ErrEntryNameTooLong) {
		t.Errorf("appendEntry error = %v, want ErrEntryNameTooLong", err)
	}
}

func TestParseMode(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in      string
		want    Mode
		wantErr bool
	}{
		{in: "", want: ModeArchive},
		{in: "archive", want: ModeArchive},
		{in: "BLOB", want: ModeBlob},
		{in: "csv", wantErr: true},
	}

	for _, tt := range tests {
		got, err := ParseMode(tt.in)
		if tt.wantErr {
			if !errors.Is(err, ErrUnknownMode) {
				t.Errorf("ParseMode(%q) error = %v, want ErrUnknownMode", tt.in, err)
			}
			continue
		}
		if err != nil || got != tt.want {
			t.Errorf("ParseMode(%q) = %v, %v; want %v", tt.in, got, err, tt.want)
		}
	}
}

// failingSink hands out writers that fail after a byte budget.
type failingSink struct {
	createErr error
	budget    int

	mu              sync.Mutex
	created         []string
	removed         []string
	closedCancelled []bool
}

func (s *failingSink) Create(ctx context.Context, name string) (io.WriteCloser, error) {
	if s.createErr != nil {
		return nil, s.createErr
	}
	s.mu.Lock()
	s.created = append(s.created, name)
	s.mu.Unlock()
	return &budgetWriter{left: s.budget, ctx: ctx, sink: s}, nil
}

func (s *failingSink) Remove(_ context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.removed = append(s.removed, name)
	return nil
}

func (s *failingSink) String() string { return "failing" }

var errDiskFull = errors.New("disk full")

type budgetWriter struct {
	left int
	ctx  context.Context
	sink *failingSink
}

func (w *budgetWriter) Write(p []byte) (int, error) {
	if len(p) > w.left {
		n := w.left
		w.left = 0
		return n, errDiskFull
	}
	w.left -= len(p)
	return len(p), nil
}

// Close records whether the object's context was already cancelled.
func (w *budgetWriter) Close() error {
	w.sink.mu.Lock()
	defer w.sink.mu.Unlock()
	w.sink.closedCancelled = append(w.sink.closedCancelled, w.ctx.Err() != nil)
	return nil
}

func TestWriteCreateError(t *testing.T) {
	t.Parallel()

	s := &failingSink{createErr: os.ErrPermission}
	w := New(s, record.NewRandomGenerator(), Options{Mode: ModeBlob})

	_, err := w.WriteFile(context.Background(), 1)
	if !errors.Is(err, ErrCreate) {
		t.Errorf("error = %v, want ErrCreate", err)
	}
	if !errors.Is(err, os.ErrPermission) {
		t.Errorf("error = %v, want wrapped ErrPermission", err)
	}
}

func TestWriteFailureKeepsPartialByDefault(t *testing.T) {
	t.Parallel()

	for _, mode := range []Mode{ModeBlob, ModeArchive} {
		t.Run(mode.String(), func(t *testing.T) {
			t.Parallel()

			s := &failingSink{budget: 10}
			w := New(s, record.NewRandomGenerator(), Options{Mode: mode, Codec: compress.CodecNone})

			// Enough records to overflow the 64KiB buffer into the sink.
			_, err := w.WriteFile(context.Background(), 5000)
			if !errors.Is(err, ErrWrite) {
				t.Fatalf("error = %v, want ErrWrite", err)
			}
			if !errors.Is(err, errDiskFull) {
				t.Errorf("error = %v, want wrapped errDiskFull", err)
			}
			if len(s.removed) != 0 {
				t.Errorf("removed %v, want nothing", s.removed)
			}
		})
	}
}

func TestWriteFailureRemovesPartial(t *testing.T) {
	t.Parallel()

	s := &failingSink{budget: 10}
	w := New(s, record.NewRandomGenerator(), Options{Mode: ModeBlob, RemovePartial: true})

	if _, err := w.WriteFile(context.Background(), 5000); err == nil {
		t.Fatal("expected write error")
	}

	if len(s.created) != 1 || len(s.removed) != 1 || s.created[0] != s.removed[0] {
		t.Errorf("created %v, removed %v; want the same single name", s.created, s.removed)
	}
	t.Logf("✓ partial output %s removed", s.removed[0])
}

func TestSuccessiveFilesHaveDistinctNames(t *testing.T) {
	t.Parallel()

	w, dir := newTestWriter(t, Options{Mode: ModeArchive, Codec: compress.CodecGzip, Level: compress.LevelFast})

	for i := 0; i < 4; i++ {
		if _, err := w.WriteFile(context.Background(), 2); err != nil {
			t.Fatalf("WriteFile %d failed: %v", i, err)
		}
	}

	if files := listFiles(t, dir); len(files) != 4 {
		t.Errorf("got %d files, want 4: %v", len(files), files)
	}
}

func TestWriteArchiveZeroRecords(t *testing.T) {
	t.Parallel()

	w, dir := newTestWriter(t, Options{Mode: ModeArchive, Codec: compress.CodecNone})

	res, err := w.WriteFile(context.Background(), 0)
	if err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	summary, err := inspect.File(filepath.Join(dir, res.Name))
	if err != nil {
		t.Fatalf("inspect failed: %v", err)
	}
	if summary.Format != inspect.FormatTar || summary.Records != 0 || !summary.Valid() {
		t.Errorf("got format=%s records=%d problems=%v, want an empty valid tar",
			summary.Format, summary.Records, summary.Problems)
	}
}

func TestWriteFailureAbortsObjectBeforeClose(t *testing.T) {
	t.Parallel()

	tests := []struct {
		removePartial bool
		wantCancelled bool
	}{
		{removePartial: false, wantCancelled: false},
		{removePartial: true, wantCancelled: true},
	}

	for _, tt := range tests {
		s := &failingSink{budget: 10}
		w := New(s, record.NewRandomGenerator(), Options{Mode: ModeBlob, RemovePartial: tt.removePartial})

		if _, err := w.WriteFile(context.Background(), 5000); err == nil {
			t.Fatal("expected write error")
		}

		if len(s.closedCancelled) == 0 {
			t.Fatalf("RemovePartial=%v: object was never closed", tt.removePartial)
		}
		if got := s.closedCancelled[0]; got != tt.wantCancelled {
			t.Errorf("RemovePartial=%v: context cancelled at close = %v, want %v", tt.removePartial, got, tt.wantCancelled)
		}
	}
}

func TestSuccessfulFileClosesWithLiveContext(t *testing.T) {
	t.Parallel()

	s := &failingSink{budget: 1 << 20}
	w := New(s, record.NewRandomGenerator(), Options{Mode: ModeBlob, RemovePartial: true})

	if _, err := w.WriteFile(context.Background(), 3); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}
	if len(s.closedCancelled) != 1 || s.closedCancelled[0] {
		t.Errorf("closes = %v, want one close with a live context", s.closedCancelled)
	}
}
