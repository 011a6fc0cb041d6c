// Package cli implements the Cobra command hierarchy for the datamap CLI
// tool. The root command defined here is the entry point for all
// subcommands and handles cross-cutting concerns like logging
// initialization and error handling.
package cli

import (
	"errors"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/kestrel-data/datamap/internal/config"
	"github.com/kestrel-data/datamap/internal/corpuserr"
)

// flagValues holds the parsed global flag values, populated by config.BindFlags
// during command initialization and validated in PersistentPreRunE.
var flagValues *config.FlagValues

var rootCmd = &cobra.Command{
	Use:   "datamap",
	Short: "Preprocess JSONL document corpora at scale.",
	Long: `datamap runs a declarative pipeline of per-document transforms and
filters across many compressed shard files in parallel, repartitions
corpora by grouping or percentile keys, and produces reservoir-sampled
summaries used to derive those percentile boundaries.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := config.ValidateFlags(flagValues, cmd); err != nil {
			return err
		}

		level := config.ResolveLogLevel(flagValues.Verbose, flagValues.Quiet)
		format := config.ResolveLogFormat()
		config.SetupLogging(level, format)

		slog.Debug("logging initialized", "level", level, "format", format)
		return nil
	},
}

func init() {
	flagValues = config.BindFlags(rootCmd)
}

// Execute runs the root command and returns an appropriate exit code.
// If the error is a *corpuserr.Error, its Code() is used. Generic errors
// return ExitError (1). Nil returns ExitSuccess (0).
func Execute() int {
	if err := rootCmd.Execute(); err != nil {
		slog.Error(err.Error())
		return extractExitCode(err)
	}
	return corpuserr.ExitSuccess
}

// extractExitCode determines the process exit code from an error.
func extractExitCode(err error) int {
	if err == nil {
		return corpuserr.ExitSuccess
	}
	var cerr *corpuserr.Error
	if errors.As(err, &cerr) {
		return cerr.Code()
	}
	return corpuserr.ExitError
}

// RootCmd returns the root cobra.Command for use in testing and subcommand registration.
func RootCmd() *cobra.Command {
	return rootCmd
}

// GlobalFlags returns the parsed global flag values. This is available after
// PersistentPreRunE has run. Subcommands use this to access shared configuration.
func GlobalFlags() *config.FlagValues {
	return flagValues
}
