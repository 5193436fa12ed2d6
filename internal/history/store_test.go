package history

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"pkg.jsn.cam/testdatagen/internal/compress"
	"pkg.jsn.cam/testdatagen/internal/dispatch"
	"pkg.jsn.cam/testdatagen/internal/writer"
)

func TestIsCompatibleSchema(t *testing.T) {
	t.Parallel()

	tests := []struct {
		stored  string
		want    bool
		wantErr bool
	}{
		{stored: "v1.0.0", want: true},
		{stored: "v1.4.2", want: true},
		{stored: "v2.0.0", want: false},
		{stored: "v0.9.0", want: false},
		{stored: "1.0.0", wantErr: true},
		{stored: "garbage", wantErr: true},
	}

	for _, tt := range tests {
		got, err := IsCompatibleSchema(tt.stored, SchemaVersion)
		if tt.wantErr {
			if err == nil {
				t.Errorf("IsCompatibleSchema(%q) should fail", tt.stored)
			}
			continue
		}
		if err != nil {
			t.Errorf("IsCompatibleSchema(%q) error: %v", tt.stored, err)
		}
		if got != tt.want {
			t.Errorf("IsCompatibleSchema(%q) = %v, want %v", tt.stored, got, tt.want)
		}
	}
}

func TestNewStoreStampsSchema(t *testing.T) {
	t.Parallel()

	backend := NewMemoryBackend()
	if _, err := NewStore(backend); err != nil {
		t.Fatalf("NewStore failed: %v", err)
	}

	got, err := backend.Get(metaBucket, schemaKey)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if string(got) != SchemaVersion {
		t.Errorf("schema = %s, want %s", got, SchemaVersion)
	}

	// Reopening a stamped backend works.
	if _, err := NewStore(backend); err != nil {
		t.Errorf("reopen failed: %v", err)
	}
}

func TestNewStoreRejectsIncompatibleSchema(t *testing.T) {
	t.Parallel()

	backend := NewMemoryBackend()
	backend.CreateBucket(metaBucket)
	backend.Put(metaBucket, schemaKey, []byte("v2.0.0"))

	_, err := NewStore(backend)
	if !errors.Is(err, ErrIncompatibleSchema) {
		t.Errorf("NewStore error = %v, want ErrIncompatibleSchema", err)
	}
}

func TestStorePutGetList(t *testing.T) {
	t.Parallel()

	store, err := NewStore(NewMemoryBackend())
	if err != nil {
		t.Fatalf("NewStore failed: %v", err)
	}

	ids := []string{"0001", "0002", "0003"}
	for i, id := range ids {
		run := Run{ID: id, Mode: "blob", FilesWritten: i + 1}
		if err := store.Put(run); err != nil {
			t.Fatalf("Put failed: %v", err)
		}
	}

	got, err := store.Get("0002")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.FilesWritten != 2 {
		t.Errorf("FilesWritten = %d, want 2", got.FilesWritten)
	}

	runs, err := store.List(0)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(runs) != 3 || runs[0].ID != "0003" || runs[2].ID != "0001" {
		t.Errorf("List order = %+v, want newest first", runs)
	}

	runs, err = store.List(2)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(runs) != 2 {
		t.Errorf("List(2) returned %d runs", len(runs))
	}

	if err := store.Delete("0003"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if _, err := store.Get("0003"); !errors.Is(err, ErrRunNotFound) {
		t.Errorf("Get after delete = %v, want ErrRunNotFound", err)
	}

	if err := store.Put(Run{}); !errors.Is(err, ErrMissingID) {
		t.Errorf("Put without id = %v, want ErrMissingID", err)
	}
}

func TestRecordRealRunInBbolt(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	plan := dispatch.Plan{
		Targets:          []string{dir},
		ThreadsPerTarget: 2,
		FilesPerThread:   2,
		RecordsPerFile:   3,
		Writer:           writer.Options{Mode: writer.ModeArchive, Codec: compress.CodecGzip, Level: compress.LevelFast},
	}

	report, err := dispatch.New().Run(context.Background(), plan)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	run, err := FromReport(report)
	if err != nil {
		t.Fatalf("FromReport failed: %v", err)
	}

	dbPath := filepath.Join(t.TempDir(), "history.db")
	store, err := Open(dbPath)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	if err := store.Put(run); err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	// Data survives reopening.
	store, err = Open(dbPath)
	if err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	defer store.Close()

	got, err := store.Get(run.ID)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}

	if got.FilesWritten != 4 || got.RecordsWritten != 12 {
		t.Errorf("got %d files / %d records, want 4 / 12", got.FilesWritten, got.RecordsWritten)
	}
	if got.Codec != "gzip" || got.Level != "fast" || got.Mode != "archive" {
		t.Errorf("got codec=%s level=%s mode=%s", got.Codec, got.Level, got.Mode)
	}
	if !got.Succeeded() {
		t.Errorf("run should have succeeded: %v", got.Failures)
	}
	if !got.Finished.After(got.Started) && !got.Finished.Equal(got.Started) {
		t.Errorf("finished %v before started %v", got.Finished, got.Started)
	}
	if time.Since(got.Started) > time.Minute {
		t.Errorf("started timestamp %v looks wrong", got.Started)
	}

	t.Logf("✓ run %s recorded and reloaded", got.ID)
}
