package cli

import (
	"fmt"
	"io"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
	"pkg.jsn.cam/testdatagen/internal/config"
	"pkg.jsn.cam/testdatagen/internal/dispatch"
	"pkg.jsn.cam/testdatagen/internal/history"
	"pkg.jsn.cam/testdatagen/internal/logger"
	"pkg.jsn.cam/testdatagen/internal/metrics"
	"pkg.jsn.cam/testdatagen/internal/writer"
)

func (a *app) runGenerate(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(a.v, args)
	if err != nil {
		return err
	}

	plan := cfg.Plan()
	m := metrics.New()
	opts := []dispatch.Option{dispatch.WithMetrics(m)}

	var bar *progressbar.ProgressBar
	if cfg.Progress {
		bar = newProgressBar(cmd.ErrOrStderr(), plan.Files())
		opts = append(opts, dispatch.WithFileHook(func(string, writer.Result) {
			_ = bar.Add(1)
		}))
	}

	report, runErr := dispatch.New(opts...).Run(cmd.Context(), plan)
	if bar != nil {
		_ = bar.Finish()
		fmt.Fprintln(cmd.ErrOrStderr())
	}
	if report == nil {
		return runErr
	}

	printSummary(cmd.OutOrStdout(), report)

	if cfg.MetricsFile != "" {
		if err := m.WriteTextfile(cfg.MetricsFile); err != nil {
			logger.Errorf("Cannot write metrics to %s: %v", cfg.MetricsFile, err)
		}
	}

	if cfg.HistoryDB != "" {
		if err := recordRun(cfg.HistoryDB, report); err != nil {
			logger.Errorf("Cannot record run in %s: %v", cfg.HistoryDB, err)
		}
	}

	if runErr != nil {
		printFailures(cmd.ErrOrStderr(), report)
		return errFailed
	}

	return nil
}

func newProgressBar(w io.Writer, total int) *progressbar.ProgressBar {
	return progressbar.NewOptions(total,
		progressbar.OptionSetWriter(w),
		progressbar.OptionSetDescription("generating"),
		progressbar.OptionShowCount(),
		progressbar.OptionSetItsString("files"),
		progressbar.OptionShowIts(),
		progressbar.OptionThrottle(100*time.Millisecond),
	)
}

func printSummary(w io.Writer, report *dispatch.Report) {
	plan := report.Plan

	fmt.Fprintf(w, "Wrote %d/%d files (%s records, %s) in %v\n",
		report.FilesWritten(),
		plan.Files(),
		humanize.Comma(report.RecordsWritten()),
		humanize.Bytes(uint64(report.BytesWritten())),
		report.Duration().Round(time.Millisecond))

	// FilesByTarget merges repeated targets, so print each once.
	byTarget := report.FilesByTarget()
	seen := make(map[string]bool, len(byTarget))
	for _, target := range plan.Targets {
		if seen[target] {
			continue
		}
		seen[target] = true
		fmt.Fprintf(w, "  %-40s %d files\n", target, byTarget[target])
	}
}

func printFailures(w io.Writer, report *dispatch.Report) {
	failures := report.Failures()
	fmt.Fprintf(w, "%d of %d workers failed:\n", len(failures), report.Plan.Workers())
	for _, f := range failures {
		fmt.Fprintf(w, "  %v\n", f)
	}
}

func recordRun(path string, report *dispatch.Report) error {
	store, err := history.Open(path)
	if err != nil {
		return err
	}
	defer store.Close()

	run, err := history.FromReport(report)
	if err != nil {
		return err
	}

	if err := store.Put(run); err != nil {
		return err
	}

	logger.Debugf("Recorded run %s in %s", run.ID, path)
	return nil
}
