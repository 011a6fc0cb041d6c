package filedriver_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kestrel-data/datamap/internal/document"
	"github.com/kestrel-data/datamap/internal/filedriver"
	"github.com/kestrel-data/datamap/internal/operator"
	"github.com/kestrel-data/datamap/internal/pipeline"
	"github.com/kestrel-data/datamap/internal/shardio"
)

func writeShard(t *testing.T, path string, docs []document.Doc) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	w, err := shardio.CreateWriter(path)
	require.NoError(t, err)
	for _, d := range docs {
		line, err := shardio.EncodeLine(d)
		require.NoError(t, err)
		_, err = w.Write(line)
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())
}

func TestCollectFindsShardFilesSorted(t *testing.T) {
	dir := t.TempDir()
	writeShard(t, filepath.Join(dir, "b.jsonl.zst"), []document.Doc{{"x": 1}})
	writeShard(t, filepath.Join(dir, "a", "c.jsonl.zst"), []document.Doc{{"x": 1}})
	require.NoError(t, os.WriteFile(filepath.Join(dir, "ignore.txt"), []byte("nope"), 0o644))

	rels, err := filedriver.Collect(dir, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join("a", "c.jsonl.zst"), "b.jsonl.zst"}, rels)
}

func TestCollectAppliesIncludeExclude(t *testing.T) {
	dir := t.TempDir()
	writeShard(t, filepath.Join(dir, "keep.jsonl.zst"), []document.Doc{{"x": 1}})
	writeShard(t, filepath.Join(dir, "skip.jsonl.zst"), []document.Doc{{"x": 1}})

	rels, err := filedriver.Collect(dir, []string{"keep*"}, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"keep.jsonl.zst"}, rels)

	rels, err = filedriver.Collect(dir, nil, []string{"skip*"})
	require.NoError(t, err)
	assert.Equal(t, []string{"keep.jsonl.zst"}, rels)
}

func TestRunWritesPerStepOutputs(t *testing.T) {
	inputDir := t.TempDir()
	outputDir := t.TempDir()
	writeShard(t, filepath.Join(inputDir, "shard_00000000.jsonl.zst"), []document.Doc{
		{"keep": true},
		{"keep": false},
	})

	steps := []pipeline.Step{
		{Label: "filter_keep", Op: operator.Func(func(d document.Doc) operator.Outcome {
			if v, _ := document.Get(d, "keep"); v == true {
				return operator.Keep(d)
			}
			return operator.Drop()
		})},
	}
	p := pipeline.New(steps)

	report, err := filedriver.Run(context.Background(), filedriver.Config{
		InputRoot:  inputDir,
		OutputRoot: outputDir,
		Workers:    1,
		Pipeline:   p,
	})
	require.NoError(t, err)
	assert.Equal(t, 2, report.TotalDocs)
	assert.Equal(t, 1, report.Removals[pipeline.SurvivorStep])
	assert.Equal(t, 1, report.Removals["filter_keep"])

	assert.FileExists(t, filepath.Join(outputDir, "step_final", "shard_00000000.jsonl.zst"))
	assert.FileExists(t, filepath.Join(outputDir, "filter_keep", "shard_00000000.jsonl.zst"))
}

func TestRunSkipsUnreadableShardAndContinues(t *testing.T) {
	inputDir := t.TempDir()
	outputDir := t.TempDir()
	writeShard(t, filepath.Join(inputDir, "good.jsonl.zst"), []document.Doc{{"a": 1}})
	require.NoError(t, os.WriteFile(filepath.Join(inputDir, "bad.jsonl.zst"), []byte("not zstd data at all"), 0o644))

	p := pipeline.New(nil)
	report, err := filedriver.Run(context.Background(), filedriver.Config{
		InputRoot:  inputDir,
		OutputRoot: outputDir,
		Workers:    1,
		Pipeline:   p,
	})
	require.NoError(t, err)
	assert.Contains(t, report.SkippedRuns, "bad.jsonl.zst")
	assert.Equal(t, 1, report.TotalDocs)
}

func TestReportRenderIncludesSummary(t *testing.T) {
	r := &filedriver.Report{
		TotalDocs: 10,
		Timing:    map[string]time.Duration{"step_00": time.Second},
		Removals:  map[string]int{"step_00": 2, pipeline.SurvivorStep: 8},
	}
	out := r.Render()
	assert.Contains(t, out, "run summary")
	assert.Contains(t, out, "documents:   10")
	assert.Contains(t, out, "step_00")
	assert.Contains(t, out, "survivors: 8")
}
