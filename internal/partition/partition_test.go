package partition

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kestrel-data/datamap/internal/config"
	"github.com/kestrel-data/datamap/internal/document"
	"github.com/kestrel-data/datamap/internal/shardio"
)

func TestBucketForBelowFirstBound(t *testing.T) {
	bounds := []float64{10, 20, 30}
	assert.Equal(t, 0, bucketFor(bounds, 5))
}

func TestBucketForHalfOpenIntervals(t *testing.T) {
	bounds := []float64{10, 20, 30}
	assert.Equal(t, 0, bucketFor(bounds, 9.9))
	assert.Equal(t, 1, bucketFor(bounds, 10))
	assert.Equal(t, 1, bucketFor(bounds, 15))
	assert.Equal(t, 2, bucketFor(bounds, 20))
	assert.Equal(t, 3, bucketFor(bounds, 30))
	assert.Equal(t, 3, bucketFor(bounds, 1000))
}

func TestBucketForNoBounds(t *testing.T) {
	assert.Equal(t, 0, bucketFor(nil, 42))
}

func TestResolveBoundsExplicitRangeGroups(t *testing.T) {
	cfg := &config.PartitionConfig{RangeGroups: []float64{1, 2, 3}}
	bounds, err := resolveBounds(cfg)
	require.NoError(t, err)
	assert.Equal(t, []float64{1, 2, 3}, bounds)
}

func TestResolveBoundsFromReservoir(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "reservoir.json")
	values := []float64{10, 20, 30, 40, 50, 60, 70, 80, 90, 100}
	data, err := json.Marshal(values)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, data, 0o644))

	cfg := &config.PartitionConfig{ReservoirPath: path, NumBuckets: 5}
	bounds, err := resolveBounds(cfg)
	require.NoError(t, err)
	require.Len(t, bounds, 4)
	// monotonically non-decreasing
	for i := 1; i < len(bounds); i++ {
		assert.GreaterOrEqual(t, bounds[i], bounds[i-1])
	}
}

func TestResolveBoundsMissingSourceErrors(t *testing.T) {
	cfg := &config.PartitionConfig{}
	_, err := resolveBounds(cfg)
	assert.Error(t, err)
}

func TestResolveBoundsReservoirMissingNumBucketsErrors(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "reservoir.json")
	data, _ := json.Marshal([]float64{1, 2, 3})
	require.NoError(t, os.WriteFile(path, data, 0o644))

	cfg := &config.PartitionConfig{ReservoirPath: path}
	_, err := resolveBounds(cfg)
	assert.Error(t, err)
}

func writeShard(t *testing.T, path string, docs []document.Doc) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	w, err := shardio.CreateWriter(path)
	require.NoError(t, err)
	for _, d := range docs {
		line, err := shardio.EncodeLine(d)
		require.NoError(t, err)
		_, err = w.Write(append(line, '\n'))
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())
}

func readShard(t *testing.T, path string) []document.Doc {
	t.Helper()
	r, err := shardio.OpenReader(path)
	require.NoError(t, err)
	defer r.Close()
	var out []document.Doc
	for {
		line, err := r.Next()
		if err != nil {
			break
		}
		d, derr := shardio.DecodeLine(line)
		require.NoError(t, derr)
		out = append(out, d)
	}
	return out
}

func readAllDocs(t *testing.T, dir string) []document.Doc {
	t.Helper()
	var out []document.Doc
	err := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		require.NoError(t, err)
		if info.IsDir() {
			return nil
		}
		r, err := shardio.OpenReader(path)
		require.NoError(t, err)
		defer r.Close()
		for {
			line, err := r.Next()
			if err != nil {
				break
			}
			d, derr := shardio.DecodeLine(line)
			require.NoError(t, derr)
			out = append(out, d)
		}
		return nil
	})
	require.NoError(t, err)
	return out
}

func TestDiscretePartitionRoutesByAllowList(t *testing.T) {
	inputDir := t.TempDir()
	outputDir := t.TempDir()
	writeShard(t, filepath.Join(inputDir, "shard_00000000.jsonl.zst"), []document.Doc{
		{"lang": "en", "text": "hello"},
		{"lang": "fr", "text": "bonjour"},
		{"lang": "de", "text": "not allowed"},
		{"text": "no lang field"},
	})

	cfg := &config.PartitionConfig{
		PartitionKey: "lang",
		Choices:      []string{"en", "fr"},
		MaxFileSize:  config.DefaultMaxFileSize,
	}

	require.NoError(t, Discrete(context.Background(), inputDir, outputDir, cfg, 2))

	docs := readAllDocs(t, outputDir)
	assert.Len(t, docs, 4)

	assert.FileExists(t, filepath.Join(outputDir, "chunk_en.00000000.jsonl.zst"))
	assert.FileExists(t, filepath.Join(outputDir, "chunk_fr.00000000.jsonl.zst"))
	assert.FileExists(t, filepath.Join(outputDir, "no_category.00000000.jsonl.zst"))

	noCatDocs := readShard(t, filepath.Join(outputDir, "no_category.00000000.jsonl.zst"))
	assert.Len(t, noCatDocs, 2) // "de" (off allow-list) and missing-field
}

func TestDiscretePartitionUnboundedCreatesBucketPerValue(t *testing.T) {
	inputDir := t.TempDir()
	outputDir := t.TempDir()
	writeShard(t, filepath.Join(inputDir, "shard_00000000.jsonl.zst"), []document.Doc{
		{"lang": "en"},
		{"lang": "fr"},
		{"lang": "en"},
	})

	cfg := &config.PartitionConfig{PartitionKey: "lang", MaxFileSize: config.DefaultMaxFileSize}
	require.NoError(t, Discrete(context.Background(), inputDir, outputDir, cfg, 2))

	assert.FileExists(t, filepath.Join(outputDir, "chunk_en.00000000.jsonl.zst"))
	assert.FileExists(t, filepath.Join(outputDir, "chunk_fr.00000000.jsonl.zst"))
	assert.NoFileExists(t, filepath.Join(outputDir, "no_category.00000000.jsonl.zst"))
}

func TestRangePartitionRoutesByExplicitBounds(t *testing.T) {
	inputDir := t.TempDir()
	outputDir := t.TempDir()
	writeShard(t, filepath.Join(inputDir, "shard_00000000.jsonl.zst"), []document.Doc{
		{"score": float64(5)},
		{"score": float64(15)},
		{"score": float64(25)},
	})

	cfg := &config.PartitionConfig{
		Value:       "score",
		RangeGroups: []float64{10, 20},
		MaxFileSize: config.DefaultMaxFileSize,
		BucketName:  "bucket",
	}
	require.NoError(t, Range(context.Background(), inputDir, outputDir, cfg, 2))

	docs := readAllDocs(t, outputDir)
	assert.Len(t, docs, 3)
	assert.DirExists(t, filepath.Join(outputDir, "bucket_0000"))
	assert.DirExists(t, filepath.Join(outputDir, "bucket_0001"))
	assert.DirExists(t, filepath.Join(outputDir, "bucket_0002"))
}

func TestRangePartitionMissingValueUsesDefault(t *testing.T) {
	inputDir := t.TempDir()
	outputDir := t.TempDir()
	writeShard(t, filepath.Join(inputDir, "shard_00000000.jsonl.zst"), []document.Doc{
		{"other": "field"},
	})

	def := 50.0
	cfg := &config.PartitionConfig{
		Value:        "score",
		DefaultValue: &def,
		RangeGroups:  []float64{10, 20},
		MaxFileSize:  config.DefaultMaxFileSize,
		BucketName:   "bucket",
	}
	require.NoError(t, Range(context.Background(), inputDir, outputDir, cfg, 1))

	assert.DirExists(t, filepath.Join(outputDir, "bucket_0002"))
}
