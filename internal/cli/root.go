// Package cli wires the testdatagen commands.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"pkg.jsn.cam/testdatagen/internal/config"
	"pkg.jsn.cam/testdatagen/internal/logger"
)

// Version is the release of this build.
const Version = "v0.3.0"

// errFailed marks a command that already reported its failures.
var errFailed = errors.New("run failed")

type app struct {
	v          *viper.Viper
	configFile string
	envFile    string
}

// NewRootCommand builds the command tree. The root command generates data.
func NewRootCommand() (*cobra.Command, error) {
	a := &app{}

	root := &cobra.Command{
		Use:   "testdatagen [flags] [path...]",
		Short: "Fill directories or buckets with synthetic JSON records",
		Long: `testdatagen writes files of random JSON records into one or more targets
concurrently. Each file is either a tar archive (gzip, lz4 or uncompressed)
holding one JSON document per record, or a newline-delimited blob.

Targets are local directories or gs://bucket/prefix URLs.`,
		Version:           Version,
		Args:              cobra.ArbitraryArgs,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: a.setup,
		RunE:              a.runGenerate,
	}

	root.PersistentFlags().StringVar(&a.configFile, "config-file", "", "YAML config file")
	root.PersistentFlags().StringVar(&a.envFile, "env-file", "", "dotenv file to load (default ./.env when present)")

	v, err := config.BindFlags(root.PersistentFlags())
	if err != nil {
		return nil, err
	}
	a.v = v

	root.AddCommand(
		a.newSingleCommand(),
		a.newInspectCommand(),
		a.newHistoryCommand(),
	)
	root.SetGlobalNormalizationFunc(config.NormalizeFlagName)

	return root, nil
}

// setup loads the env and config files and initializes logging for every
// command.
func (a *app) setup(cmd *cobra.Command, _ []string) error {
	if err := config.LoadEnvFile(a.envFile); err != nil {
		return err
	}
	if err := config.ReadConfigFile(a.v, a.configFile); err != nil {
		return err
	}

	logging, err := config.LoadLogging(a.v)
	if err != nil {
		return err
	}

	return logger.Init(logging.Logger())
}

// Execute runs the command line and returns the process exit code.
func Execute() int {
	return run(context.Background(), os.Args[1:], os.Stdout, os.Stderr)
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	defer logger.Close()

	root, err := NewRootCommand()
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}

	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)

	if err := root.ExecuteContext(ctx); err != nil {
		if !errors.Is(err, errFailed) {
			fmt.Fprintf(stderr, "Error: %v\n", err)
		}
		return 1
	}

	return 0
}
