package config

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// FlagValues collects the global persistent flag values shared by every
// subcommand.
type FlagValues struct {
	Verbose bool
	Quiet   bool
}

// BindFlags registers the global persistent flags on the root command.
func BindFlags(cmd *cobra.Command) *FlagValues {
	fv := &FlagValues{}
	pf := cmd.PersistentFlags()
	pf.BoolVarP(&fv.Verbose, "verbose", "v", false, "enable debug logging")
	pf.BoolVarP(&fv.Quiet, "quiet", "q", false, "suppress all output except errors")
	return fv
}

// ValidateFlags applies environment-variable fallbacks not explicitly set
// on the command line and checks mutual exclusion.
func ValidateFlags(fv *FlagValues, cmd *cobra.Command) error {
	if os.Getenv("DATAMAP_VERBOSE") == "1" && !cmd.Flags().Changed("verbose") {
		fv.Verbose = true
	}
	if os.Getenv("DATAMAP_QUIET") == "1" && !cmd.Flags().Changed("quiet") {
		fv.Quiet = true
	}
	if fv.Verbose && fv.Quiet {
		return fmt.Errorf("--verbose and --quiet are mutually exclusive")
	}
	return nil
}

// MapFlags are the flags for the `map` command.
type MapFlags struct {
	InputDir  string
	OutputDir string
	Config    string
	ErrDir    string
}

// BindMapFlags registers the `map` command's flags.
func BindMapFlags(cmd *cobra.Command) *MapFlags {
	f := &MapFlags{}
	fl := cmd.Flags()
	fl.StringVar(&f.InputDir, "input-dir", "", "input shard directory (required)")
	fl.StringVar(&f.OutputDir, "output-dir", "", "output root directory (required)")
	fl.StringVar(&f.Config, "config", "", "pipeline config file (required)")
	fl.StringVar(&f.ErrDir, "err-dir", "", "error sink root directory (optional)")
	cmd.MarkFlagRequired("input-dir")
	cmd.MarkFlagRequired("output-dir")
	cmd.MarkFlagRequired("config")
	return f
}

// ReshardFlags are the flags for the `reshard` command.
type ReshardFlags struct {
	InputDir        string
	OutputDir       string
	MaxLines        int
	MaxSize         int64
	Subsample       float64
	KeepDirs        bool
	DeleteAfterRead bool
}

// BindReshardFlags registers the `reshard` command's flags.
func BindReshardFlags(cmd *cobra.Command) *ReshardFlags {
	f := &ReshardFlags{Subsample: 1.0}
	fl := cmd.Flags()
	fl.StringVar(&f.InputDir, "input-dir", "", "input shard directory (required)")
	fl.StringVar(&f.OutputDir, "output-dir", "", "output directory (required)")
	fl.IntVar(&f.MaxLines, "max-lines", 0, "max lines per output shard (0 = unbounded)")
	fl.Int64Var(&f.MaxSize, "max-size", 0, "max bytes per output shard (0 = unbounded)")
	fl.Float64Var(&f.Subsample, "subsample", 1.0, "independent keep probability in (0, 1]")
	fl.BoolVar(&f.KeepDirs, "keep-dirs", false, "mirror input subdirectory structure in the output")
	fl.BoolVar(&f.DeleteAfterRead, "delete-after-read", false, "delete each input shard once fully read")
	cmd.MarkFlagRequired("input-dir")
	cmd.MarkFlagRequired("output-dir")
	return f
}

// ValidateReshardFlags checks the `reshard` command's flag invariants.
func ValidateReshardFlags(f *ReshardFlags) error {
	if f.Subsample <= 0 || f.Subsample > 1 {
		return fmt.Errorf("--subsample: must be in (0, 1], got %v", f.Subsample)
	}
	if f.MaxLines <= 0 && f.MaxSize <= 0 {
		return fmt.Errorf("at least one of --max-lines or --max-size must be set")
	}
	return nil
}

// GroupFlags are the flags for the `groupsort group` subcommand.
type GroupFlags struct {
	InputDir  string
	OutputDir string
	Config    string
}

// BindGroupFlags registers the `groupsort group` subcommand's flags.
func BindGroupFlags(cmd *cobra.Command) *GroupFlags {
	f := &GroupFlags{}
	fl := cmd.Flags()
	fl.StringVar(&f.InputDir, "input-dir", "", "input shard directory (required)")
	fl.StringVar(&f.OutputDir, "output-dir", "", "bucketed output directory (required)")
	fl.StringVar(&f.Config, "config", "", "group/sort config file (required)")
	cmd.MarkFlagRequired("input-dir")
	cmd.MarkFlagRequired("output-dir")
	cmd.MarkFlagRequired("config")
	return f
}

// SortFlags are the flags for the `groupsort sort` subcommand.
type SortFlags struct {
	InputDir  string
	OutputDir string
	Config    string
}

// BindSortFlags registers the `groupsort sort` subcommand's flags.
func BindSortFlags(cmd *cobra.Command) *SortFlags {
	f := &SortFlags{}
	fl := cmd.Flags()
	fl.StringVar(&f.InputDir, "input-dir", "", "bucketed input directory, the group pass's output (required)")
	fl.StringVar(&f.OutputDir, "output-dir", "", "output directory (required)")
	fl.StringVar(&f.Config, "config", "", "group/sort config file (required)")
	cmd.MarkFlagRequired("input-dir")
	cmd.MarkFlagRequired("output-dir")
	cmd.MarkFlagRequired("config")
	return f
}

// ReservoirFlags are the flags for the `reservoir sample` command.
type ReservoirFlags struct {
	InputDir  string
	Output    string
	Key       string
	TextField string
	Size      int
	Weighted  bool
	Tokenizer string
}

// BindReservoirFlags registers the `reservoir sample` command's flags.
func BindReservoirFlags(cmd *cobra.Command) *ReservoirFlags {
	f := &ReservoirFlags{Size: 1000, TextField: "text"}
	fl := cmd.Flags()
	fl.StringVar(&f.InputDir, "input-dir", "", "input shard directory (required)")
	fl.StringVar(&f.Output, "output", "", "path to write the sampled JSON array (required)")
	fl.StringVar(&f.Key, "key", "", "document field to sample (required)")
	fl.StringVar(&f.TextField, "text-field", "text", "text field tokenized for --weighted sampling")
	fl.IntVar(&f.Size, "size", 1000, "target reservoir size")
	fl.BoolVar(&f.Weighted, "weighted", false, "use token-weighted sampling (Algorithm A-Res) instead of uniform Algorithm R")
	fl.StringVar(&f.Tokenizer, "tokenizer", "", "tokenizer encoding for --weighted sampling (cl100k_base, o200k_base, none)")
	cmd.MarkFlagRequired("input-dir")
	cmd.MarkFlagRequired("output")
	cmd.MarkFlagRequired("key")
	return f
}

// PartitionFlags are the flags for the `partition` command.
type PartitionFlags struct {
	InputDir  string
	OutputDir string
	Config    string
}

// BindPartitionFlags registers the `partition` command's flags.
func BindPartitionFlags(cmd *cobra.Command) *PartitionFlags {
	f := &PartitionFlags{}
	fl := cmd.Flags()
	fl.StringVar(&f.InputDir, "input-dir", "", "input shard directory (required)")
	fl.StringVar(&f.OutputDir, "output-dir", "", "output root directory (required)")
	fl.StringVar(&f.Config, "config", "", "partition config file (required)")
	cmd.MarkFlagRequired("input-dir")
	cmd.MarkFlagRequired("output-dir")
	cmd.MarkFlagRequired("config")
	return f
}
