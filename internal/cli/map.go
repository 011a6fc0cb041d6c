package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kestrel-data/datamap/internal/config"
	"github.com/kestrel-data/datamap/internal/filedriver"
	"github.com/kestrel-data/datamap/internal/pipeline"
)

var mapCmd = &cobra.Command{
	Use:   "map",
	Short: "Run a pipeline of per-document transforms and filters across a shard corpus",
	Long: `map loads a pipeline config, runs every shard file under --input-dir
through it in parallel, and routes each document's output to a per-step
directory under --output-dir mirroring the input's relative path.`,
	RunE: runMap,
}

var mapFlags *config.MapFlags

func init() {
	mapFlags = config.BindMapFlags(mapCmd)
	rootCmd.AddCommand(mapCmd)
}

func runMap(cmd *cobra.Command, args []string) error {
	pcfg, err := config.LoadPipelineConfig(mapFlags.Config)
	if err != nil {
		return err
	}
	steps, err := config.BuildSteps(pcfg)
	if err != nil {
		return err
	}

	report, err := filedriver.Run(cmd.Context(), filedriver.Config{
		InputRoot:  mapFlags.InputDir,
		OutputRoot: mapFlags.OutputDir,
		ErrRoot:    mapFlags.ErrDir,
		Workers:    config.ResolveNumThreads(),
		Pipeline:   pipeline.New(steps),
	})
	if err != nil {
		return err
	}

	fmt.Fprint(cmd.OutOrStdout(), report.Render())
	return nil
}
