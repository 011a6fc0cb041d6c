package cli

import (
	"github.com/spf13/cobra"

	"github.com/kestrel-data/datamap/internal/config"
	"github.com/kestrel-data/datamap/internal/groupsort"
)

var groupsortCmd = &cobra.Command{
	Use:   "groupsort",
	Short: "Group documents by a hashed key, then sort/filter down to one survivor per group",
	Long: `groupsort runs the two-phase group -> sort/filter stage: "group" shuffles
documents into buckets by a hashed group key, and "sort" re-groups each
bucket in memory and keeps one survivor per group (or, if the config sets a
concatenate block, emits one joined document per group instead).`,
}

var groupFlags *config.GroupFlags
var sortFlags *config.SortFlags

var groupsortGroupCmd = &cobra.Command{
	Use:   "group",
	Short: "Shuffle documents into hashed buckets by group key",
	RunE:  runGroupsortGroup,
}

var groupsortSortCmd = &cobra.Command{
	Use:   "sort",
	Short: "Re-group each bucket and keep one survivor (or joined document) per group",
	RunE:  runGroupsortSort,
}

func init() {
	groupFlags = config.BindGroupFlags(groupsortGroupCmd)
	sortFlags = config.BindSortFlags(groupsortSortCmd)
	groupsortCmd.AddCommand(groupsortGroupCmd, groupsortSortCmd)
	rootCmd.AddCommand(groupsortCmd)
}

func runGroupsortGroup(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadGroupSortConfig(groupFlags.Config)
	if err != nil {
		return err
	}
	return groupsort.Group(cmd.Context(), groupsort.GroupConfig{
		InputRoot:       groupFlags.InputDir,
		OutputRoot:      groupFlags.OutputDir,
		GroupKeys:       cfg.GroupKeys,
		NumBuckets:      cfg.NumBuckets,
		MaxFileSize:     cfg.MaxFileSize,
		DeleteAfterRead: cfg.DeleteAfterRead,
		Workers:         config.ResolveNumThreads(),
	})
}

func runGroupsortSort(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadGroupSortConfig(sortFlags.Config)
	if err != nil {
		return err
	}
	return groupsort.Sort(cmd.Context(), groupsort.SortConfig{
		InputRoot:   sortFlags.InputDir,
		OutputRoot:  sortFlags.OutputDir,
		SortKeys:    cfg.SortKeys,
		GroupKeys:   cfg.GroupKeys,
		KeepIdx:     cfg.KeepIdx,
		SizeKey:     cfg.SizeKey,
		MaxFileSize: cfg.MaxFileSize,
		Concatenate: cfg.Concatenate,
	})
}
