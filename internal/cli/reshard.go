package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kestrel-data/datamap/internal/config"
	"github.com/kestrel-data/datamap/internal/reshard"
)

var reshardCmd = &cobra.Command{
	Use:   "reshard",
	Short: "Repack a corpus into a fresh set of line- or size-bounded shards",
	Long: `reshard reads every shard file under --input-dir and rewrites it into
new shards under --output-dir, each capped by --max-lines and/or --max-size,
optionally subsampling lines and mirroring the input's top-level directory
structure.`,
	RunE: runReshard,
}

var reshardFlags *config.ReshardFlags

func init() {
	reshardFlags = config.BindReshardFlags(reshardCmd)
	rootCmd.AddCommand(reshardCmd)
}

func runReshard(cmd *cobra.Command, args []string) error {
	if err := config.ValidateReshardFlags(reshardFlags); err != nil {
		return err
	}

	report, err := reshard.Run(cmd.Context(), reshard.Config{
		InputRoot:       reshardFlags.InputDir,
		OutputRoot:      reshardFlags.OutputDir,
		MaxLines:        reshardFlags.MaxLines,
		MaxSize:         reshardFlags.MaxSize,
		Subsample:       reshardFlags.Subsample,
		KeepDirs:        reshardFlags.KeepDirs,
		DeleteAfterRead: reshardFlags.DeleteAfterRead,
		Workers:         config.ResolveNumThreads(),
	})
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "wrote %d shards (%d lines)\n", report.ShardsWritten, report.LinesWritten)
	if len(report.FilesSkipped) > 0 {
		fmt.Fprintf(cmd.OutOrStdout(), "skipped %d unreadable input files\n", len(report.FilesSkipped))
	}
	return nil
}
