// Package partition implements the two partitioning stages that route
// documents into bucketed output directories: discrete (category)
// partitioning on an arbitrary string field, and range (percentile)
// partitioning on a numeric field against either explicit bounds or bounds
// derived from a reservoir sample.
package partition

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"golang.org/x/sync/errgroup"

	"github.com/kestrel-data/datamap/internal/config"
	"github.com/kestrel-data/datamap/internal/corpuserr"
	"github.com/kestrel-data/datamap/internal/document"
	"github.com/kestrel-data/datamap/internal/filedriver"
	"github.com/kestrel-data/datamap/internal/shardio"
	"github.com/kestrel-data/datamap/internal/shardwriter"
)

// Run dispatches to discrete or range partitioning based on cfg's shape.
func Run(ctx context.Context, inputRoot, outputRoot string, cfg *config.PartitionConfig, workers int) error {
	if cfg.IsDiscrete() {
		return Discrete(ctx, inputRoot, outputRoot, cfg, workers)
	}
	return Range(ctx, inputRoot, outputRoot, cfg, workers)
}

// Discrete routes each document into a bucket named after the string value
// at cfg.PartitionKey. If cfg.Choices is non-empty, values outside that set
// (and any document missing the key) collapse into the shared "no_category"
// bucket; otherwise every distinct value seen gets its own bucket, created
// lazily on first write.
func Discrete(ctx context.Context, inputRoot, outputRoot string, cfg *config.PartitionConfig, workers int) error {
	rels, err := filedriver.Collect(inputRoot, nil, nil)
	if err != nil {
		return err
	}

	var allowed map[string]bool
	if len(cfg.Choices) > 0 {
		allowed = make(map[string]bool, len(cfg.Choices))
		for _, c := range cfg.Choices {
			allowed[c] = true
		}
	}

	w, err := shardwriter.New(outputRoot, cfg.MaxFileSize, shardwriter.CategoryName(), nil)
	if err != nil {
		return corpuserr.WriterIO("opening discrete partition writer", err)
	}

	g, gctx := errgroup.WithContext(ctx)
	if workers > 0 {
		g.SetLimit(workers)
	}
	for _, rel := range rels {
		rel := rel
		g.Go(func() error {
			select {
			case <-gctx.Done():
				return gctx.Err()
			default:
			}
			return discreteShard(inputRoot, rel, cfg.PartitionKey, allowed, w)
		})
	}
	if err := g.Wait(); err != nil {
		_ = w.Finish()
		return err
	}
	return w.Finish()
}

func discreteShard(inputRoot, rel, key string, allowed map[string]bool, w *shardwriter.Writer) error {
	r, err := shardio.OpenReader(filepath.Join(inputRoot, rel))
	if err != nil {
		return corpuserr.ShardIO(fmt.Sprintf("opening shard %s", rel), err)
	}
	defer r.Close()

	for {
		line, err := r.Next()
		if err != nil {
			break
		}
		d, perr := shardio.DecodeLine(line)
		category := ""
		if perr == nil {
			if s, ok := document.GetString(d, key); ok {
				if allowed == nil || allowed[s] {
					category = s
				}
			}
		}
		out := append(append([]byte(nil), line...), '\n')
		if err := w.WriteLine(category, out); err != nil {
			return corpuserr.WriterIO("writing discrete partition bucket", err)
		}
	}
	return nil
}

// Range routes each document into a percentile bucket determined by the
// float value at cfg.Value, using either explicit cfg.RangeGroups bounds or
// bounds derived from the sorted contents of cfg.ReservoirPath split into
// cfg.NumBuckets groups.
func Range(ctx context.Context, inputRoot, outputRoot string, cfg *config.PartitionConfig, workers int) error {
	bounds, err := resolveBounds(cfg)
	if err != nil {
		return err
	}

	rels, err := filedriver.Collect(inputRoot, nil, nil)
	if err != nil {
		return err
	}

	defaultValue := 0.0
	if cfg.DefaultValue != nil {
		defaultValue = *cfg.DefaultValue
	}

	w, err := shardwriter.New(outputRoot, cfg.MaxFileSize, shardwriter.PercentileBucketName(cfg.BucketName), nil)
	if err != nil {
		return corpuserr.WriterIO("opening range partition writer", err)
	}

	g, gctx := errgroup.WithContext(ctx)
	if workers > 0 {
		g.SetLimit(workers)
	}
	for _, rel := range rels {
		rel := rel
		g.Go(func() error {
			select {
			case <-gctx.Done():
				return gctx.Err()
			default:
			}
			return rangeShard(inputRoot, rel, cfg.Value, defaultValue, bounds, w)
		})
	}
	if err := g.Wait(); err != nil {
		_ = w.Finish()
		return err
	}
	return w.Finish()
}

// resolveBounds returns the interior bucket bounds: either cfg.RangeGroups
// verbatim, or bounds picked from the sorted reservoir at indices
// k*len/N for k in [1, N), which places the minimum value in bucket 0's
// implicit lower bound rather than excluding the 0th percentile.
func resolveBounds(cfg *config.PartitionConfig) ([]float64, error) {
	if len(cfg.RangeGroups) > 0 {
		return cfg.RangeGroups, nil
	}
	if cfg.ReservoirPath == "" {
		return nil, corpuserr.Config("range partition requires range_groups or reservoir_path", nil)
	}
	data, err := os.ReadFile(cfg.ReservoirPath)
	if err != nil {
		return nil, corpuserr.Config(fmt.Sprintf("reading reservoir %s", cfg.ReservoirPath), err)
	}
	var values []float64
	if err := json.Unmarshal(data, &values); err != nil {
		return nil, corpuserr.Config(fmt.Sprintf("parsing reservoir %s", cfg.ReservoirPath), err)
	}
	sort.Float64s(values)

	n := cfg.NumBuckets
	if n <= 0 {
		return nil, corpuserr.Config("num_buckets is required when reservoir_path is set", nil)
	}
	bounds := make([]float64, 0, n-1)
	for k := 1; k < n; k++ {
		idx := (k * len(values)) / n
		if idx >= len(values) {
			idx = len(values) - 1
		}
		bounds = append(bounds, values[idx])
	}
	return bounds, nil
}

// bucketFor locates value's bucket index via the half-open interval
// convention: values strictly below bounds[0] fall in bucket 0; otherwise
// bucket k holds bounds[k-1] <= value < bounds[k], with the last bucket
// (len(bounds)) catching values >= the final bound.
func bucketFor(bounds []float64, value float64) int {
	if len(bounds) == 0 || value < bounds[0] {
		return 0
	}
	return sort.Search(len(bounds), func(i int) bool { return bounds[i] > value })
}

func rangeShard(inputRoot, rel, valueKey string, defaultValue float64, bounds []float64, w *shardwriter.Writer) error {
	r, err := shardio.OpenReader(filepath.Join(inputRoot, rel))
	if err != nil {
		return corpuserr.ShardIO(fmt.Sprintf("opening shard %s", rel), err)
	}
	defer r.Close()

	for {
		line, err := r.Next()
		if err != nil {
			break
		}
		d, perr := shardio.DecodeLine(line)
		value := defaultValue
		if perr == nil {
			if v, ok := document.GetFloat(d, valueKey); ok {
				value = v
			}
		}
		bucket := bucketFor(bounds, value)
		out := append(append([]byte(nil), line...), '\n')
		if err := w.WriteLine(shardwriter.PercentileBucketKey(bucket), out); err != nil {
			return corpuserr.WriterIO("writing range partition bucket", err)
		}
	}
	return nil
}
