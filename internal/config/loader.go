package config

import (
	"bytes"
	"fmt"
	"log/slog"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/kestrel-data/datamap/internal/corpuserr"
	"github.com/kestrel-data/datamap/internal/operator"
	"github.com/kestrel-data/datamap/internal/pipeline"
)

// loadYAML decodes path into v, first attempting strict (unknown-field
// rejecting) decoding and falling back to lenient decoding with a warning
// if that fails — the same "warn on unknown keys rather than hard fail"
// posture the teacher's config loader used for its TOML config.
func loadYAML(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return corpuserr.Config(fmt.Sprintf("reading config %s", path), err)
	}

	strictDec := yaml.NewDecoder(bytes.NewReader(data))
	strictDec.KnownFields(true)
	if err := strictDec.Decode(v); err != nil {
		slog.Warn("config contains unrecognized keys, falling back to lenient decode", "path", path, "cause", err)
		if err := yaml.Unmarshal(data, v); err != nil {
			return corpuserr.Config(fmt.Sprintf("parsing config %s", path), err)
		}
	}
	return nil
}

// LoadPipelineConfig reads and decodes a `map` command's pipeline config.
func LoadPipelineConfig(path string) (*PipelineConfig, error) {
	var cfg PipelineConfig
	if err := loadYAML(path, &cfg); err != nil {
		return nil, err
	}
	if cfg.TextField == "" {
		cfg.TextField = "text"
	}
	return &cfg, nil
}

// LoadGroupSortConfig reads and decodes a group/sort/filter config.
func LoadGroupSortConfig(path string) (*GroupSortConfig, error) {
	var cfg GroupSortConfig
	if err := loadYAML(path, &cfg); err != nil {
		return nil, err
	}
	if cfg.MaxFileSize == 0 {
		cfg.MaxFileSize = DefaultMaxFileSize
	}
	return &cfg, nil
}

// LoadPartitionConfig reads and decodes a `partition` command's config,
// which describes either discrete (category) partitioning on a key, or range
// partitioning with explicit bounds or bounds derived from a reservoir file.
func LoadPartitionConfig(path string) (*PartitionConfig, error) {
	var cfg PartitionConfig
	if err := loadYAML(path, &cfg); err != nil {
		return nil, err
	}
	if cfg.MaxFileSize == 0 {
		cfg.MaxFileSize = DefaultMaxFileSize
	}
	if cfg.BucketName == "" {
		cfg.BucketName = "bucket"
	}
	return &cfg, nil
}

// BuildSteps constructs the ordered pipeline.Step list for cfg, resolving
// each entry's step label per SPEC_FULL.md §4.2: explicit `step` if present,
// else `step_{i:02}` for every entry including the last. `step_final` is
// reserved for the survivor bucket (pipeline.SurvivorStep), not for any
// per-document operator's removal bucket.
func BuildSteps(cfg *PipelineConfig) ([]pipeline.Step, error) {
	steps := make([]pipeline.Step, 0, len(cfg.Pipeline))
	for i, entry := range cfg.Pipeline {
		op, err := operator.Build(entry, cfg.TextField)
		if err != nil {
			return nil, err
		}
		label := entry.Step
		if label == "" {
			label = fmt.Sprintf("step_%02d", i)
		}
		steps = append(steps, pipeline.Step{Label: label, Op: op})
	}
	return steps, nil
}
