package dispatch

import (
	"errors"
	"fmt"
	"time"
)

// WorkerResult is what one worker produced. Each worker writes only its own
// result, so no locking is needed.
type WorkerResult struct {
	Target  string
	Slot    int
	Files   int
	Records int64
	Bytes   int64
	Err     error
}

// WorkerError describes why a worker stopped.
type WorkerError struct {
	Target       string
	Slot         int
	FilesWritten int
	Err          error
}

func (e *WorkerError) Error() string {
	return fmt.Sprintf("worker %s#%d (after %d files): %v", e.Target, e.Slot, e.FilesWritten, e.Err)
}

func (e *WorkerError) Unwrap() error {
	return e.Err
}

// Report aggregates the results of a run.
type Report struct {
	Plan     Plan
	Started  time.Time
	Finished time.Time
	Workers  []WorkerResult
}

func newReport(plan Plan) *Report {
	r := &Report{
		Plan:    plan,
		Started: time.Now(),
		Workers: make([]WorkerResult, plan.Workers()),
	}

	for ti, target := range plan.Targets {
		for slot := 0; slot < plan.ThreadsPerTarget; slot++ {
			w := r.slot(ti, slot)
			w.Target = target
			w.Slot = slot
		}
	}

	return r
}

func (r *Report) slot(target, slot int) *WorkerResult {
	return &r.Workers[target*r.Plan.ThreadsPerTarget+slot]
}

// Duration is the wall time of the run.
func (r *Report) Duration() time.Duration {
	return r.Finished.Sub(r.Started)
}

// FilesWritten counts completed files across all workers.
func (r *Report) FilesWritten() int {
	n := 0
	for _, w := range r.Workers {
		n += w.Files
	}
	return n
}

// RecordsWritten counts records in completed files.
func (r *Report) RecordsWritten() int64 {
	var n int64
	for _, w := range r.Workers {
		n += w.Records
	}
	return n
}

// BytesWritten counts bytes in completed files.
func (r *Report) BytesWritten() int64 {
	var n int64
	for _, w := range r.Workers {
		n += w.Bytes
	}
	return n
}

// Failures lists the workers that stopped on an error.
func (r *Report) Failures() []*WorkerError {
	var out []*WorkerError
	for _, w := range r.Workers {
		var we *WorkerError
		if errors.As(w.Err, &we) {
			out = append(out, we)
		}
	}
	return out
}

// Err joins all worker failures, or returns nil.
func (r *Report) Err() error {
	var errs []error
	for _, f := range r.Failures() {
		errs = append(errs, f)
	}
	return errors.Join(errs...)
}

// FilesByTarget sums completed files per target.
func (r *Report) FilesByTarget() map[string]int {
	out := make(map[string]int, len(r.Plan.Targets))
	for _, w := range r.Workers {
		out[w.Target] += w.Files
	}
	return out
}
