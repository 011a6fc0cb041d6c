package cli

import (
	"github.com/spf13/cobra"

	"github.com/kestrel-data/datamap/internal/config"
	"github.com/kestrel-data/datamap/internal/partition"
)

var partitionCmd = &cobra.Command{
	Use:   "partition",
	Short: "Route documents into category or percentile bucket directories",
	Long: `partition loads a partition config and routes every document under
--input-dir into a bucket directory under --output-dir: discrete (category)
partitioning if the config sets partition_key, or range (percentile)
partitioning if it sets value, selected by the config's shape.`,
	RunE: runPartition,
}

var partitionFlags *config.PartitionFlags

func init() {
	partitionFlags = config.BindPartitionFlags(partitionCmd)
	rootCmd.AddCommand(partitionCmd)
}

func runPartition(cmd *cobra.Command, args []string) error {
	pcfg, err := config.LoadPartitionConfig(partitionFlags.Config)
	if err != nil {
		return err
	}
	return partition.Run(cmd.Context(), partitionFlags.InputDir, partitionFlags.OutputDir, pcfg, config.ResolveNumThreads())
}
