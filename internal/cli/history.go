package cli

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"pkg.jsn.cam/testdatagen/internal/history"
)

var errNoHistoryDB = errors.New("--history-db is required")

func (a *app) newHistoryCommand() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recorded runs, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.withHistory(func(store *history.Store) error {
				runs, err := store.List(limit)
				if err != nil {
					return err
				}
				printRuns(cmd, runs)
				return nil
			})
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Runs to show (0 for all)")

	cmd.AddCommand(&cobra.Command{
		Use:   "rm ID...",
		Short: "Delete recorded runs",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withHistory(func(store *history.Store) error {
				for _, id := range args {
					if _, err := store.Get(id); err != nil {
						return err
					}
					if err := store.Delete(id); err != nil {
						return err
					}
					fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s\n", id)
				}
				return nil
			})
		},
	})

	return cmd
}

func (a *app) withHistory(fn func(*history.Store) error) error {
	path := a.v.GetString("history-db")
	if path == "" {
		return errNoHistoryDB
	}

	store, err := history.Open(path)
	if err != nil {
		return err
	}
	defer store.Close()

	return fn(store)
}

func printRuns(cmd *cobra.Command, runs []history.Run) {
	out := cmd.OutOrStdout()
	if len(runs) == 0 {
		fmt.Fprintln(out, "No runs recorded")
		return
	}

	fmt.Fprintf(out, "%-36s %-19s %-8s %-12s %-10s %-8s %s\n",
		"RUN ID", "STARTED", "STATUS", "MODE", "FILES", "SIZE", "TARGETS")
	for _, r := range runs {
		status := "ok"
		if !r.Succeeded() {
			status = fmt.Sprintf("%d failed", len(r.Failures))
		}

		mode := r.Mode
		if r.Codec != "" {
			mode += "/" + r.Codec
		}

		fmt.Fprintf(out, "%-36s %-19s %-8s %-12s %-10s %-8s %s\n",
			r.ID,
			r.Started.Local().Format(time.DateTime),
			status,
			mode,
			humanize.Comma(int64(r.FilesWritten)),
			humanize.Bytes(uint64(r.BytesWritten)),
			strings.Join(r.Targets, ","))
	}
}
