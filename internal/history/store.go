// Package history keeps a ledger of generation runs outside the targets.
package history

import (
	"encoding/json"
	"fmt"
	"slices"
	"time"

	"github.com/google/uuid"
	"pkg.jsn.cam/testdatagen/internal/dispatch"
	"pkg.jsn.cam/testdatagen/internal/writer"
)

var (
	runsBucket = []byte("runs")
	metaBucket = []byte("meta")
	schemaKey  = []byte("schema")
)

// Run is the stored summary of one generation run.
type Run struct {
	ID             string    `json:"id"`
	Started        time.Time `json:"started"`
	Finished       time.Time `json:"finished"`
	Targets        []string  `json:"targets"`
	Mode           string    `json:"mode"`
	Codec          string    `json:"codec,omitempty"`
	Level          string    `json:"level,omitempty"`
	Threads        int       `json:"threads_per_target"`
	FilesPerThread int       `json:"files_per_thread"`
	RecordsPerFile int       `json:"records_per_file"`
	FilesWritten   int       `json:"files_written"`
	RecordsWritten int64     `json:"records_written"`
	BytesWritten   int64     `json:"bytes_written"`
	Failures       []string  `json:"failures,omitempty"`
}

// Succeeded reports whether every worker of the run finished cleanly.
func (r Run) Succeeded() bool {
	return len(r.Failures) == 0
}

// FromReport summarizes a dispatcher report. The ID is a UUIDv7, so runs
// sort by start time.
func FromReport(report *dispatch.Report) (Run, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return Run{}, fmt.Errorf("generate run id: %w", err)
	}

	plan := report.Plan
	run := Run{
		ID:             id.String(),
		Started:        report.Started,
		Finished:       report.Finished,
		Targets:        slices.Clone(plan.Targets),
		Mode:           plan.Writer.Mode.String(),
		Threads:        plan.ThreadsPerTarget,
		FilesPerThread: plan.FilesPerThread,
		RecordsPerFile: plan.RecordsPerFile,
		FilesWritten:   report.FilesWritten(),
		RecordsWritten: report.RecordsWritten(),
		BytesWritten:   report.BytesWritten(),
	}

	if plan.Writer.Mode == writer.ModeArchive {
		run.Codec = string(plan.Writer.Codec)
		run.Level = plan.Writer.Level.String()
	}

	for _, f := range report.Failures() {
		run.Failures = append(run.Failures, f.Error())
	}

	return run, nil
}

// Store reads and writes runs through a Backend.
type Store struct {
	backend Backend
}

// Open opens the bbolt ledger at path.
func Open(path string) (*Store, error) {
	backend, err := NewBboltBackend(path)
	if err != nil {
		return nil, err
	}

	store, err := NewStore(backend)
	if err != nil {
		backend.Close()
		return nil, err
	}

	return store, nil
}

// NewStore prepares the buckets and checks the schema version. A fresh
// backend is stamped with SchemaVersion.
func NewStore(backend Backend) (*Store, error) {
	for _, name := range [][]byte{runsBucket, metaBucket} {
		if err := backend.CreateBucket(name); err != nil {
			return nil, fmt.Errorf("create bucket %s: %w", name, err)
		}
	}

	stored, err := backend.Get(metaBucket, schemaKey)
	if err != nil {
		return nil, fmt.Errorf("read schema version: %w", err)
	}

	if stored == nil {
		if err := backend.Put(metaBucket, schemaKey, []byte(SchemaVersion)); err != nil {
			return nil, fmt.Errorf("write schema version: %w", err)
		}
		return &Store{backend: backend}, nil
	}

	ok, err := IsCompatibleSchema(string(stored), SchemaVersion)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: ledger %s, build %s", ErrIncompatibleSchema, stored, SchemaVersion)
	}

	return &Store{backend: backend}, nil
}

// Put stores a run under its ID.
func (s *Store) Put(run Run) error {
	if run.ID == "" {
		return ErrMissingID
	}

	data, err := json.Marshal(run)
	if err != nil {
		return fmt.Errorf("encode run: %w", err)
	}

	return s.backend.Put(runsBucket, []byte(run.ID), data)
}

// Get returns the run with the given ID.
func (s *Store) Get(id string) (Run, error) {
	data, err := s.backend.Get(runsBucket, []byte(id))
	if err != nil {
		return Run{}, err
	}
	if data == nil {
		return Run{}, fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}

	var run Run
	if err := json.Unmarshal(data, &run); err != nil {
		return Run{}, fmt.Errorf("decode run %s: %w", id, err)
	}
	return run, nil
}

// List returns up to limit runs, newest first. A limit of zero or less
// returns every run.
func (s *Store) List(limit int) ([]Run, error) {
	var runs []Run

	err := s.backend.ForEach(runsBucket, func(k, v []byte) error {
		var run Run
		if err := json.Unmarshal(v, &run); err != nil {
			return fmt.Errorf("decode run %s: %w", k, err)
		}
		runs = append(runs, run)
		return nil
	})
	if err != nil {
		return nil, err
	}

	slices.Reverse(runs)
	if limit > 0 && len(runs) > limit {
		runs = runs[:limit]
	}

	return runs, nil
}

// Delete removes a run.
func (s *Store) Delete(id string) error {
	return s.backend.Delete(runsBucket, []byte(id))
}

func (s *Store) Close() error {
	return s.backend.Close()
}
