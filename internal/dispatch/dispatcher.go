// Package dispatch fans generation work out to concurrent workers per target.
package dispatch

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"
	"pkg.jsn.cam/testdatagen/internal/logger"
	"pkg.jsn.cam/testdatagen/internal/metrics"
	"pkg.jsn.cam/testdatagen/internal/record"
	"pkg.jsn.cam/testdatagen/internal/sink"
	"pkg.jsn.cam/testdatagen/internal/writer"
)

// Plan is the fixed amount of work for one run.
type Plan struct {
	Targets          []string
	ThreadsPerTarget int
	FilesPerThread   int
	RecordsPerFile   int
	Writer           writer.Options
}

// Workers returns the total number of workers the plan launches.
func (p Plan) Workers() int {
	return len(p.Targets) * p.ThreadsPerTarget
}

// Files returns the number of files a fully successful run produces.
func (p Plan) Files() int {
	return p.Workers() * p.FilesPerThread
}

// Validate rejects plans that cannot run.
func (p Plan) Validate() error {
	switch {
	case len(p.Targets) == 0:
		return fmt.Errorf("%w: no targets", ErrInvalidPlan)
	case p.ThreadsPerTarget < 1:
		return fmt.Errorf("%w: threads per target must be positive, got %d", ErrInvalidPlan, p.ThreadsPerTarget)
	case p.FilesPerThread < 0:
		return fmt.Errorf("%w: files per thread must not be negative, got %d", ErrInvalidPlan, p.FilesPerThread)
	case p.RecordsPerFile < 0:
		return fmt.Errorf("%w: records per file must not be negative, got %d", ErrInvalidPlan, p.RecordsPerFile)
	}
	return nil
}

// FileHook is called after every completed file. It runs on the worker's
// goroutine and must be safe for concurrent use.
type FileHook func(target string, res writer.Result)

// SinkOpener resolves a target to a sink.
type SinkOpener func(ctx context.Context, target string) (sink.Sink, error)

// Dispatcher runs plans.
type Dispatcher struct {
	open    SinkOpener
	metrics *metrics.Metrics
	onFile  FileHook
	active  atomic.Int64
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithMetrics records file and failure counts into m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(d *Dispatcher) { d.metrics = m }
}

// WithFileHook registers a callback for completed files.
func WithFileHook(fn FileHook) Option {
	return func(d *Dispatcher) { d.onFile = fn }
}

// WithSinkOpener replaces sink.Open.
func WithSinkOpener(fn SinkOpener) Option {
	return func(d *Dispatcher) { d.open = fn }
}

// New creates a dispatcher.
func New(opts ...Option) *Dispatcher {
	d := &Dispatcher{open: sink.Open}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Active returns the number of workers currently running.
func (d *Dispatcher) Active() int64 {
	return d.active.Load()
}

// Run launches ThreadsPerTarget workers for every target and blocks until
// all of them have finished. A failing worker stops on its first error
// without affecting the others. The returned error joins every worker
// failure; the report is returned either way.
func (d *Dispatcher) Run(ctx context.Context, plan Plan) (*Report, error) {
	if err := plan.Validate(); err != nil {
		return nil, err
	}

	report := newReport(plan)
	var g errgroup.Group

	logger.Infof("Starting run: %d targets x %d workers x %d files x %d records (%s)",
		len(plan.Targets), plan.ThreadsPerTarget, plan.FilesPerThread, plan.RecordsPerFile, plan.Writer.Mode)

	for ti, target := range plan.Targets {
		s, err := d.open(ctx, target)
		if err != nil {
			logger.Errorf("Cannot open target %s: %v", target, err)
			for slot := 0; slot < plan.ThreadsPerTarget; slot++ {
				res := report.slot(ti, slot)
				res.Err = &WorkerError{Target: target, Slot: slot, Err: err}
				if d.metrics != nil {
					d.metrics.ObserveFailure(target)
				}
			}
			continue
		}

		for slot := 0; slot < plan.ThreadsPerTarget; slot++ {
			res := report.slot(ti, slot)
			d.active.Add(1)
			if d.metrics != nil {
				d.metrics.WorkerStarted()
			}

			g.Go(func() error {
				defer func() {
					d.active.Add(-1)
					if d.metrics != nil {
						d.metrics.WorkerFinished()
					}
				}()
				return d.work(ctx, plan, s, res)
			})
		}
	}

	if err := g.Wait(); err != nil {
		logger.Debugf("Run finished with failures, first: %v", err)
	}
	report.Finished = time.Now()

	logger.Infof("Run finished: %d/%d files, %d records in %v",
		report.FilesWritten(), plan.Files(), report.RecordsWritten(), report.Duration().Round(time.Millisecond))

	return report, report.Err()
}

// work produces FilesPerThread files sequentially into s.
func (d *Dispatcher) work(ctx context.Context, plan Plan, s sink.Sink, res *WorkerResult) error {
	id := fmt.Sprintf("%s#%d", res.Target, res.Slot)
	w := writer.New(s, record.NewRandomGenerator(), plan.Writer)
	mode := plan.Writer.Mode.String()

	logger.Debugf("[WORKER:%s] Starting (%d files)", id, plan.FilesPerThread)

	for i := 0; i < plan.FilesPerThread; i++ {
		out, err := w.WriteFile(ctx, plan.RecordsPerFile)
		if err != nil {
			res.Err = &WorkerError{Target: res.Target, Slot: res.Slot, FilesWritten: res.Files, Err: err}
			logger.Errorf("[WORKER:%s] Stopped after %d files: %v", id, res.Files, err)
			if d.metrics != nil {
				d.metrics.ObserveFailure(res.Target)
			}
			return res.Err
		}

		res.Files++
		res.Records += int64(out.Records)
		res.Bytes += out.Bytes

		if d.metrics != nil {
			d.metrics.ObserveFile(res.Target, mode, out.Records, out.Bytes, out.Duration)
		}
		if d.onFile != nil {
			d.onFile(res.Target, out)
		}
		logger.Tracef("[WORKER:%s] Wrote %s (%d records, %d bytes)", id, out.Name, out.Records, out.Bytes)
	}

	logger.Debugf("[WORKER:%s] Completed", id)

	return nil
}
