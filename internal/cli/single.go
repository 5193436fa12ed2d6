package cli

import (
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"pkg.jsn.cam/testdatagen/internal/config"
	"pkg.jsn.cam/testdatagen/internal/record"
	"pkg.jsn.cam/testdatagen/internal/sink"
	"pkg.jsn.cam/testdatagen/internal/writer"
)

func (a *app) newSingleCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "single [flags] path",
		Short: "Write exactly one file into one target, without concurrency",
		Args:  cobra.ExactArgs(1),
		RunE:  a.runSingle,
	}
}

func (a *app) runSingle(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(a.v, args)
	if err != nil {
		return err
	}

	target := args[0]
	s, err := sink.Open(cmd.Context(), target)
	if err != nil {
		return err
	}

	w := writer.New(s, record.NewRandomGenerator(), cfg.WriterOptions())
	res, err := w.WriteFile(cmd.Context(), cfg.Count)
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s/%s (%s records, %s)\n",
		s, res.Name, humanize.Comma(int64(res.Records)), humanize.Bytes(uint64(res.Bytes)))

	return nil
}
