package cli

import (
	"fmt"

	"github.com/spf13/cobra"
	"pkg.jsn.cam/testdatagen/internal/inspect"
)

func (a *app) newInspectCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "inspect file...",
		Short: "Read generated files back and validate every record",
		Args:  cobra.MinimumNArgs(1),
		RunE:  a.runInspect,
	}
}

func (a *app) runInspect(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	failed := false

	for _, path := range args {
		s, err := inspect.File(path)
		if err != nil {
			fmt.Fprintf(out, "%s: ERROR %v\n", path, err)
			failed = true
			continue
		}

		status := "OK"
		if !s.Valid() {
			status = "INVALID"
			failed = true
		}

		fmt.Fprintf(out, "%s: %s %s, %d records", path, status, s.Format, s.Records)
		if s.DuplicateNames > 0 {
			fmt.Fprintf(out, ", %d duplicate names", s.DuplicateNames)
		}
		fmt.Fprintln(out)

		for _, p := range s.Problems {
			fmt.Fprintf(out, "  %s\n", p)
		}
		if hidden := s.ProblemCount - len(s.Problems); hidden > 0 {
			fmt.Fprintf(out, "  ... %d more problems\n", hidden)
		}
	}

	if failed {
		return errFailed
	}
	return nil
}
