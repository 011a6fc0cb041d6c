package cli

import (
	"github.com/spf13/cobra"

	"github.com/kestrel-data/datamap/internal/config"
	"github.com/kestrel-data/datamap/internal/reservoir"
	"github.com/kestrel-data/datamap/internal/tokenizer"
)

var reservoirCmd = &cobra.Command{
	Use:   "reservoir",
	Short: "Draw a reservoir sample of a document field across a corpus",
	Long: `reservoir draws a fixed-size sample of one document field across every
shard under --input-dir and writes it as a JSON array, in the shape
internal/partition's reservoir_path config reads back to derive percentile
bucket bounds.`,
}

var reservoirFlags *config.ReservoirFlags

var reservoirSampleCmd = &cobra.Command{
	Use:   "sample",
	Short: "Sample --key uniformly (Algorithm R) or token-weighted (Algorithm A-Res)",
	RunE:  runReservoirSample,
}

func init() {
	reservoirFlags = config.BindReservoirFlags(reservoirSampleCmd)
	reservoirCmd.AddCommand(reservoirSampleCmd)
	rootCmd.AddCommand(reservoirCmd)
}

func runReservoirSample(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	workers := config.ResolveNumThreads()

	if !reservoirFlags.Weighted {
		values, err := reservoir.Sample(ctx, reservoirFlags.InputDir, reservoirFlags.Key, reservoirFlags.Size, workers)
		if err != nil {
			return err
		}
		return reservoir.WriteUniform(reservoirFlags.Output, values)
	}

	tok, err := tokenizer.NewTokenizer(reservoirFlags.Tokenizer)
	if err != nil {
		return err
	}
	items, err := reservoir.WeightedSample(ctx, reservoirFlags.InputDir, reservoirFlags.Key, reservoirFlags.TextField, reservoirFlags.Size, workers, tok)
	if err != nil {
		return err
	}
	return reservoir.WriteValues(reservoirFlags.Output, items)
}
