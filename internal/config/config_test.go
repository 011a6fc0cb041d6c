package config_test

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kestrel-data/datamap/internal/config"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadPipelineConfigDefaultsTextField(t *testing.T) {
	path := writeConfig(t, `
pipeline:
  - name: passthrough
`)
	cfg, err := config.LoadPipelineConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "text", cfg.TextField)
	assert.Len(t, cfg.Pipeline, 1)
}

func TestLoadPipelineConfigMissingFileErrors(t *testing.T) {
	_, err := config.LoadPipelineConfig(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestLoadGroupSortConfigDefaultsMaxFileSize(t *testing.T) {
	path := writeConfig(t, `
name: dedupe
group_keys: [url]
sort_keys: [[score]]
num_buckets: 4
keep_idx: 0
`)
	cfg, err := config.LoadGroupSortConfig(path)
	require.NoError(t, err)
	assert.Equal(t, config.DefaultMaxFileSize, cfg.MaxFileSize)
	assert.Equal(t, []string{"url"}, cfg.GroupKeys)
}

func TestLoadGroupSortConfigWithConcatenate(t *testing.T) {
	path := writeConfig(t, `
name: merge
group_keys: [url]
num_buckets: 4
concatenate:
  name: concatenate
  text_cat_field: text
  join_string: "\n"
`)
	cfg, err := config.LoadGroupSortConfig(path)
	require.NoError(t, err)
	require.NotNil(t, cfg.Concatenate)
	assert.Equal(t, "text", cfg.Concatenate.TextCatField)
}

func TestLoadPartitionConfigDefaults(t *testing.T) {
	path := writeConfig(t, `
name: by_lang
partition_key: lang
choices: [en, fr]
`)
	cfg, err := config.LoadPartitionConfig(path)
	require.NoError(t, err)
	assert.Equal(t, config.DefaultMaxFileSize, cfg.MaxFileSize)
	assert.Equal(t, "bucket", cfg.BucketName)
	assert.True(t, cfg.IsDiscrete())
}

func TestPartitionConfigIsDiscreteFalseForRange(t *testing.T) {
	cfg := &config.PartitionConfig{Value: "score"}
	assert.False(t, cfg.IsDiscrete())
}

func TestBuildStepsAssignsLabels(t *testing.T) {
	path := writeConfig(t, `
pipeline:
  - name: passthrough
  - name: passthrough
    step: custom_label
  - name: passthrough
`)
	cfg, err := config.LoadPipelineConfig(path)
	require.NoError(t, err)
	steps, err := config.BuildSteps(cfg)
	require.NoError(t, err)
	require.Len(t, steps, 3)
	assert.Equal(t, "step_00", steps[0].Label)
	assert.Equal(t, "custom_label", steps[1].Label)
	assert.Equal(t, "step_02", steps[2].Label)
}

func TestBuildStepsUnknownOperatorErrors(t *testing.T) {
	path := writeConfig(t, `
pipeline:
  - name: totally_bogus_operator
`)
	cfg, err := config.LoadPipelineConfig(path)
	require.NoError(t, err)
	_, err = config.BuildSteps(cfg)
	assert.Error(t, err)
}

func TestResolveLogLevel(t *testing.T) {
	os.Unsetenv("DATAMAP_DEBUG")
	assert.Equal(t, slog.LevelInfo, config.ResolveLogLevel(false, false))
	assert.Equal(t, slog.LevelDebug, config.ResolveLogLevel(true, false))
	assert.Equal(t, slog.LevelError, config.ResolveLogLevel(false, true))
	assert.Equal(t, slog.LevelDebug, config.ResolveLogLevel(true, true))
}

func TestResolveLogLevelDebugEnvWins(t *testing.T) {
	os.Setenv("DATAMAP_DEBUG", "1")
	defer os.Unsetenv("DATAMAP_DEBUG")
	assert.Equal(t, slog.LevelDebug, config.ResolveLogLevel(false, true))
}

func TestResolveLogFormat(t *testing.T) {
	os.Unsetenv("DATAMAP_LOG_FORMAT")
	assert.Equal(t, "text", config.ResolveLogFormat())
	os.Setenv("DATAMAP_LOG_FORMAT", "JSON")
	defer os.Unsetenv("DATAMAP_LOG_FORMAT")
	assert.Equal(t, "json", config.ResolveLogFormat())
}

func TestValidateFlagsMutualExclusion(t *testing.T) {
	fv := &config.FlagValues{Verbose: true, Quiet: true}
	cmd := &cobra.Command{}
	err := config.ValidateFlags(fv, cmd)
	assert.Error(t, err)
}

func TestValidateReshardFlagsRequiresLimit(t *testing.T) {
	f := &config.ReshardFlags{Subsample: 1.0}
	err := config.ValidateReshardFlags(f)
	assert.Error(t, err)

	f.MaxLines = 100
	assert.NoError(t, config.ValidateReshardFlags(f))
}

func TestValidateReshardFlagsSubsampleRange(t *testing.T) {
	f := &config.ReshardFlags{Subsample: 1.5, MaxLines: 10}
	assert.Error(t, config.ValidateReshardFlags(f))

	f.Subsample = 0
	assert.Error(t, config.ValidateReshardFlags(f))
}

func TestResolveNumThreadsPositive(t *testing.T) {
	assert.Greater(t, config.ResolveNumThreads(), 0)
}
