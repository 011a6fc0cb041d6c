// Package reservoir implements uniform and token-weighted reservoir sampling
// over a corpus, used to derive percentile bucket boundaries for
// internal/partition. Input paths are partitioned across worker goroutines
// weighted by file size so each worker samples from a roughly equal share of
// the corpus's bytes; each worker's target reservoir size is proportional to
// its share of the total bytes, and thread-local samples are concatenated
// (never re-sampled) to form the final reservoir. Reproducibility is not a
// goal: every draw uses the package-level math/rand source.
package reservoir

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"math/rand"
	"os"
	"path/filepath"
	"sort"

	"golang.org/x/sync/errgroup"

	"github.com/kestrel-data/datamap/internal/corpuserr"
	"github.com/kestrel-data/datamap/internal/document"
	"github.com/kestrel-data/datamap/internal/filedriver"
	"github.com/kestrel-data/datamap/internal/shardio"
	"github.com/kestrel-data/datamap/internal/tokenizer"
)

// weightedFile pairs a shard's relative path with its byte size, used to
// bin-pack files across workers by size.
type weightedFile struct {
	rel  string
	size int64
}

// partitionBySize assigns rel paths to numWorkers buckets using a longest-
// processing-time-first greedy bin pack (sort descending by size, always
// add to the currently lightest bucket), then returns each bucket's files
// and its share of the total byte count.
func partitionBySize(root string, rels []string, numWorkers int) (buckets [][]string, shares []float64, err error) {
	if numWorkers < 1 {
		numWorkers = 1
	}
	files := make([]weightedFile, 0, len(rels))
	var total int64
	for _, rel := range rels {
		info, statErr := os.Stat(filepath.Join(root, rel))
		var size int64
		if statErr == nil {
			size = info.Size()
		}
		files = append(files, weightedFile{rel: rel, size: size})
		total += size
	}
	sort.Slice(files, func(i, j int) bool { return files[i].size > files[j].size })

	buckets = make([][]string, numWorkers)
	loads := make([]int64, numWorkers)
	for _, f := range files {
		lightest := 0
		for i := 1; i < numWorkers; i++ {
			if loads[i] < loads[lightest] {
				lightest = i
			}
		}
		buckets[lightest] = append(buckets[lightest], f.rel)
		loads[lightest] += f.size
	}

	shares = make([]float64, numWorkers)
	if total > 0 {
		for i, l := range loads {
			shares[i] = float64(l) / float64(total)
		}
	} else {
		for i := range shares {
			shares[i] = 1.0 / float64(numWorkers)
		}
	}
	return buckets, shares, nil
}

// allocateSizes distributes reservoirSize across numWorkers targets
// proportional to shares, using the largest-remainder method so the targets
// sum to exactly reservoirSize.
func allocateSizes(reservoirSize int, shares []float64) []int {
	n := len(shares)
	exact := make([]float64, n)
	sizes := make([]int, n)
	assigned := 0
	for i, s := range shares {
		exact[i] = float64(reservoirSize) * s
		sizes[i] = int(math.Floor(exact[i]))
		assigned += sizes[i]
	}
	remainder := reservoirSize - assigned
	type frac struct {
		idx int
		rem float64
	}
	fracs := make([]frac, n)
	for i := range exact {
		fracs[i] = frac{idx: i, rem: exact[i] - math.Floor(exact[i])}
	}
	sort.Slice(fracs, func(i, j int) bool { return fracs[i].rem > fracs[j].rem })
	for i := 0; i < remainder && i < n; i++ {
		sizes[fracs[i].idx]++
	}
	return sizes
}

// Sample draws a uniform reservoir of at most size items from the resolved
// value at key across every document under inputRoot, using workers worker
// goroutines. Returns a slice of the raw JSON values found at key (documents
// missing key are skipped, matching json_get's Option contract).
func Sample(ctx context.Context, inputRoot, key string, size, workers int) ([]any, error) {
	rels, err := filedriver.Collect(inputRoot, nil, nil)
	if err != nil {
		return nil, err
	}
	if size <= 0 || len(rels) == 0 {
		return nil, nil
	}

	buckets, shares, err := partitionBySize(inputRoot, rels, workers)
	if err != nil {
		return nil, err
	}
	targets := allocateSizes(size, shares)

	g, gctx := errgroup.WithContext(ctx)
	results := make([][]any, len(buckets))
	for i := range buckets {
		i := i
		g.Go(func() error {
			select {
			case <-gctx.Done():
				return gctx.Err()
			default:
			}
			res, err := threadSample(inputRoot, buckets[i], key, targets[i])
			if err != nil {
				return err
			}
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := make([]any, 0, size)
	for _, r := range results {
		out = append(out, r...)
	}
	return out, nil
}

// threadSample runs classic Algorithm R over one worker's assigned files.
func threadSample(inputRoot string, rels []string, key string, resSize int) ([]any, error) {
	if resSize <= 0 {
		return nil, nil
	}
	res := make([]any, 0, resSize)
	totalSeen := 0
	for _, rel := range rels {
		r, err := shardio.OpenReader(filepath.Join(inputRoot, rel))
		if err != nil {
			return nil, corpuserr.ShardIO(fmt.Sprintf("opening shard %s", rel), err)
		}
		for {
			line, err := r.Next()
			if err != nil {
				break
			}
			totalSeen++
			randIdx := rand.Intn(totalSeen)
			if len(res) >= resSize && randIdx >= resSize {
				continue
			}
			d, perr := shardio.DecodeLine(line)
			if perr != nil {
				continue
			}
			v, ok := document.Get(d, key)
			if !ok {
				continue
			}
			if len(res) < resSize {
				res = append(res, v)
			} else {
				res[randIdx] = v
			}
		}
		r.Close()
	}
	return res, nil
}

// WeightedItem is one token-weighted reservoir draw: the sampled value, the
// A-Res priority key it was drawn with, and the token-count weight that
// produced it.
type WeightedItem struct {
	Value  float64
	LogKey float64
	Weight int
}

// WeightedSample draws a token-weighted reservoir of at most size items
// using Algorithm A-Res: each document's weight is the token count of its
// text field under tok, and scoreKey resolves the sampled value.
func WeightedSample(ctx context.Context, inputRoot, scoreKey, textKey string, size, workers int, tok tokenizer.Tokenizer) ([]WeightedItem, error) {
	rels, err := filedriver.Collect(inputRoot, nil, nil)
	if err != nil {
		return nil, err
	}
	if size <= 0 || len(rels) == 0 {
		return nil, nil
	}

	buckets, shares, err := partitionBySize(inputRoot, rels, workers)
	if err != nil {
		return nil, err
	}
	targets := allocateSizes(size, shares)

	g, gctx := errgroup.WithContext(ctx)
	results := make([][]WeightedItem, len(buckets))
	for i := range buckets {
		i := i
		g.Go(func() error {
			select {
			case <-gctx.Done():
				return gctx.Err()
			default:
			}
			res, err := threadWeightedSample(inputRoot, buckets[i], scoreKey, textKey, targets[i], tok)
			if err != nil {
				return err
			}
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := make([]WeightedItem, 0, size)
	for _, r := range results {
		out = append(out, r...)
	}
	return out, nil
}

// minHeap is a container/heap-compatible min-heap of WeightedItem ordered by
// LogKey, so the smallest key (the next item to evict) is always the root.
type minHeap []WeightedItem

func (h minHeap) Len() int            { return len(h) }
func (h minHeap) Less(i, j int) bool  { return h[i].LogKey < h[j].LogKey }
func (h minHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *minHeap) Push(x any)         { *h = append(*h, x.(WeightedItem)) }
func (h *minHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}

func threadWeightedSample(inputRoot string, rels []string, scoreKey, textKey string, resSize int, tok tokenizer.Tokenizer) ([]WeightedItem, error) {
	if resSize <= 0 {
		return nil, nil
	}
	h := make(minHeap, 0, resSize)
	for _, rel := range rels {
		r, err := shardio.OpenReader(filepath.Join(inputRoot, rel))
		if err != nil {
			return nil, corpuserr.ShardIO(fmt.Sprintf("opening shard %s", rel), err)
		}
		for {
			line, err := r.Next()
			if err != nil {
				break
			}
			d, perr := shardio.DecodeLine(line)
			if perr != nil {
				continue
			}
			value, ok := document.GetFloat(d, scoreKey)
			if !ok {
				continue
			}
			text, ok := document.GetString(d, textKey)
			if !ok {
				continue
			}
			weight := tok.Count(text)
			if weight == 0 {
				weight = 1
			}
			u := rand.Float64()
			logKey := math.Log(u) / float64(weight)
			item := WeightedItem{Value: value, LogKey: logKey, Weight: weight}

			if len(h) < resSize {
				h = append(h, item)
				heapUp(h, len(h)-1)
			} else if len(h) > 0 && logKey > h[0].LogKey {
				h[0] = item
				heapDown(h, 0)
			}
		}
		r.Close()
	}
	return h, nil
}

// heapUp and heapDown maintain the min-heap invariant without pulling in
// container/heap's interface overhead for this fixed-shape, single-file use.
func heapUp(h minHeap, i int) {
	for i > 0 {
		parent := (i - 1) / 2
		if h[parent].LogKey <= h[i].LogKey {
			break
		}
		h[parent], h[i] = h[i], h[parent]
		i = parent
	}
}

func heapDown(h minHeap, i int) {
	n := len(h)
	for {
		left, right := 2*i+1, 2*i+2
		smallest := i
		if left < n && h[left].LogKey < h[smallest].LogKey {
			smallest = left
		}
		if right < n && h[right].LogKey < h[smallest].LogKey {
			smallest = right
		}
		if smallest == i {
			break
		}
		h[i], h[smallest] = h[smallest], h[i]
		i = smallest
	}
}

// PercentilePair is one entry of a percentile table: value sits at the
// given cumulative-weight percentile of the sampled distribution.
type PercentilePair struct {
	Percentile float64 `json:"percentile"`
	Value      float64 `json:"value"`
}

// PercentileTable sorts items ascending by value and assigns each the
// cumulative-weight midpoint percentile: percentile_i = (cum_weight_i -
// weight_i/2) / total_weight * 100.
func PercentileTable(items []WeightedItem) []PercentilePair {
	sorted := append([]WeightedItem(nil), items...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Value < sorted[j].Value })

	var totalWeight int
	for _, it := range sorted {
		totalWeight += it.Weight
	}

	out := make([]PercentilePair, 0, len(sorted))
	if totalWeight == 0 {
		return out
	}
	cumWeight := 0
	for _, it := range sorted {
		cumWeight += it.Weight
		pct := (float64(cumWeight) - float64(it.Weight)/2.0) / float64(totalWeight) * 100.0
		out = append(out, PercentilePair{Percentile: pct, Value: it.Value})
	}
	return out
}

// WriteUniform serializes a uniform reservoir as a JSON array to path.
func WriteUniform(path string, values []any) error {
	data, err := json.Marshal(values)
	if err != nil {
		return corpuserr.WriterIO("encoding reservoir", err)
	}
	return os.WriteFile(path, data, 0o644)
}

// WriteValues serializes the bare numeric values of a weighted reservoir's
// percentile table (the format internal/partition reads back via
// reservoir_path) as a JSON array, sorted ascending.
func WriteValues(path string, items []WeightedItem) error {
	values := make([]float64, 0, len(items))
	for _, it := range items {
		values = append(values, it.Value)
	}
	sort.Float64s(values)
	data, err := json.Marshal(values)
	if err != nil {
		return corpuserr.WriterIO("encoding reservoir", err)
	}
	return os.WriteFile(path, data, 0o644)
}

// WritePercentileTable serializes a token-weighted percentile table as a
// JSON array of {percentile, value} pairs to path.
func WritePercentileTable(path string, table []PercentilePair) error {
	data, err := json.Marshal(table)
	if err != nil {
		return corpuserr.WriterIO("encoding percentile table", err)
	}
	return os.WriteFile(path, data, 0o644)
}
