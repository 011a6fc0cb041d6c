package config

import "github.com/kestrel-data/datamap/internal/operator"

// PipelineConfig is the top-level schema for a `map` command's config file:
// an ordered list of operator entries plus an optional pipeline-wide
// default text field.
type PipelineConfig struct {
	TextField string            `yaml:"text_field,omitempty"`
	Pipeline  []operator.Config `yaml:"pipeline"`
}

// GroupSortConfig is the schema for a group/sort/filter config file
// consumed by the `groupsort` command's group and sort subcommands. Sort
// survivor selection is keep_idx-based unless Concatenate is set, in which
// case every group emits one joined document instead (see operator.Config's
// concatenate fields: text_cat_field, join_string, keep_fields).
type GroupSortConfig struct {
	Name            string          `yaml:"name"`
	GroupKeys       []string        `yaml:"group_keys"`
	SortKeys        [][]string      `yaml:"sort_keys"`
	NumBuckets      int             `yaml:"num_buckets"`
	MaxFileSize     int64           `yaml:"max_file_size,omitempty"`
	KeepIdx         int             `yaml:"keep_idx"`
	SizeKey         string          `yaml:"size_key,omitempty"`
	DeleteAfterRead bool            `yaml:"delete_after_read,omitempty"`
	Concatenate     *operator.Config `yaml:"concatenate,omitempty"`
}

// PartitionConfig is the schema for a `partition` command's config file. It
// selects discrete or range partitioning based on which fields are present:
// PartitionKey present means discrete (category) partitioning; Value present
// means range (percentile) partitioning, with bounds from either RangeGroups
// or a ReservoirPath+NumBuckets pair.
type PartitionConfig struct {
	Name string `yaml:"name"`

	// Discrete (category) partitioning.
	PartitionKey string   `yaml:"partition_key,omitempty"`
	Choices      []string `yaml:"choices,omitempty"`

	// Range (percentile) partitioning.
	Value         string    `yaml:"value,omitempty"`
	DefaultValue  *float64  `yaml:"default_value,omitempty"`
	RangeGroups   []float64 `yaml:"range_groups,omitempty"`
	ReservoirPath string    `yaml:"reservoir_path,omitempty"`
	NumBuckets    int       `yaml:"num_buckets,omitempty"`

	MaxFileSize int64  `yaml:"max_file_size,omitempty"`
	BucketName  string `yaml:"bucket_name,omitempty"`
}

// IsDiscrete reports whether this config selects discrete (category)
// partitioning rather than range (percentile) partitioning.
func (c *PartitionConfig) IsDiscrete() bool { return c.PartitionKey != "" }

const DefaultMaxFileSize int64 = 256_000_000
