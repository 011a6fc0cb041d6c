// Package groupsort implements the two-phase distributed group -> sort ->
// filter stage: a group pass that shuffles documents into buckets by a
// hashed group key, followed by a sort/filter pass that, per bucket,
// re-groups in memory and keeps one survivor per group.
package groupsort

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"sync"

	"github.com/zeebo/xxh3"
	"golang.org/x/sync/errgroup"

	"github.com/kestrel-data/datamap/internal/corpuserr"
	"github.com/kestrel-data/datamap/internal/document"
	"github.com/kestrel-data/datamap/internal/filedriver"
	"github.com/kestrel-data/datamap/internal/operator"
	"github.com/kestrel-data/datamap/internal/shardio"
	"github.com/kestrel-data/datamap/internal/shardwriter"
)

// HashGroupKey computes the stable hash of d's resolved group_keys values,
// following the canonical stringification in document.Stringify: strings
// hashed directly, numbers via their decimal text, booleans as booleans,
// null as the literal "null", arrays/objects by canonical JSON text. ok is
// false if any key is absent, in which case callers must route the
// document to a uniformly random bucket instead.
func HashGroupKey(d document.Doc, keys []string) (hash uint64, ok bool) {
	var sb strings.Builder
	for i, k := range keys {
		v, present := document.Get(d, k)
		if !present {
			return 0, false
		}
		if i > 0 {
			sb.WriteByte('\x1f')
		}
		sb.WriteString(document.Stringify(v))
	}
	return xxh3.HashString(sb.String()), true
}

// GroupConfig configures the group pass.
type GroupConfig struct {
	InputRoot       string
	OutputRoot      string
	GroupKeys       []string
	NumBuckets      int
	MaxFileSize     int64
	DeleteAfterRead bool
	Workers         int
}

// Group runs the group pass: for each input shard in parallel, for each
// line, compute the group hash and write the raw line into the bucketed
// writer at bucket hash%NumBuckets (or a uniformly random bucket if any
// group key is absent).
func Group(ctx context.Context, cfg GroupConfig) error {
	rels, err := filedriver.Collect(cfg.InputRoot, nil, nil)
	if err != nil {
		return err
	}

	keys := make([]string, cfg.NumBuckets)
	for i := range keys {
		keys[i] = shardwriter.BucketKey(i)
	}
	w, err := shardwriter.New(cfg.OutputRoot, cfg.MaxFileSize, shardwriter.BucketShuffleName("g"), keys)
	if err != nil {
		return corpuserr.WriterIO("opening group-pass buckets", err)
	}

	g, gctx := errgroup.WithContext(ctx)
	if cfg.Workers > 0 {
		g.SetLimit(cfg.Workers)
	}

	for _, rel := range rels {
		rel := rel
		g.Go(func() error {
			select {
			case <-gctx.Done():
				return gctx.Err()
			default:
			}
			return groupShard(cfg.InputRoot, rel, cfg.GroupKeys, cfg.NumBuckets, w, cfg.DeleteAfterRead)
		})
	}

	if err := g.Wait(); err != nil {
		_ = w.Finish()
		return err
	}
	return w.Finish()
}

func groupShard(inputRoot, rel string, groupKeys []string, numBuckets int, w *shardwriter.Writer, deleteAfterRead bool) error {
	path := filepath.Join(inputRoot, rel)
	r, err := shardio.OpenReader(path)
	if err != nil {
		return corpuserr.ShardIO(fmt.Sprintf("opening shard %s", rel), err)
	}

	for {
		line, err := r.Next()
		if err != nil {
			break
		}
		d, perr := shardio.DecodeLine(line)
		var bucket int
		if perr == nil {
			if hash, ok := HashGroupKey(d, groupKeys); ok {
				bucket = int(hash % uint64(numBuckets))
			} else {
				bucket = rand.Intn(numBuckets)
			}
		} else {
			bucket = rand.Intn(numBuckets)
		}
		out := append(append([]byte(nil), line...), '\n')
		if err := w.WriteLine(shardwriter.BucketKey(bucket), out); err != nil {
			r.Close()
			return corpuserr.WriterIO("writing group-pass bucket", err)
		}
	}
	r.Close()

	if deleteAfterRead {
		if err := os.Remove(path); err != nil {
			slog.Error("failed to delete input shard after read", "shard", rel, "cause", err)
		}
	}
	return nil
}

var chunkIDRe = regexp.MustCompile(`^chunk_(\d{8})\.`)

// chunkIDOf extracts the bucket/chunk id embedded in a group-output file
// name, e.g. "chunk_00000003.00000000.g.jsonl.zst" -> "00000003".
func chunkIDOf(name string) (string, bool) {
	m := chunkIDRe.FindStringSubmatch(name)
	if m == nil {
		return "", false
	}
	return m[1], true
}

// SortConfig configures the sort/filter pass.
type SortConfig struct {
	InputRoot       string // the group pass's OutputRoot
	OutputRoot      string
	SortKeys        [][]string
	GroupKeys       []string
	KeepIdx         int
	SizeKey         string
	MaxFileSize     int64
	ChunkConcurrency int // defaults to 8 per spec

	// Concatenate, if set, replaces keep_idx survivor selection: each group
	// emits one document joining its text_cat_field values with join_string
	// instead of a single kept member.
	Concatenate *operator.Config
}

// Sort runs the sort/filter pass: groups group-pass output files by chunk
// id, and for each chunk (bounded to ChunkConcurrency at a time) re-groups
// in memory and keeps one survivor per group.
func Sort(ctx context.Context, cfg SortConfig) error {
	rels, err := filedriver.Collect(cfg.InputRoot, nil, nil)
	if err != nil {
		return err
	}

	byChunk := make(map[string][]string)
	for _, rel := range rels {
		id, ok := chunkIDOf(baseName(rel))
		if !ok {
			continue
		}
		byChunk[id] = append(byChunk[id], rel)
	}

	limit := cfg.ChunkConcurrency
	if limit <= 0 {
		limit = 8
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)

	var mu sync.Mutex
	w, err := shardwriter.New(cfg.OutputRoot, cfg.MaxFileSize, shardwriter.FlatShardName(), nil)
	if err != nil {
		return corpuserr.WriterIO("opening sort-pass output", err)
	}

	for chunkID, files := range byChunk {
		chunkID, files := chunkID, files
		g.Go(func() error {
			select {
			case <-gctx.Done():
				return gctx.Err()
			default:
			}
			return sortChunk(cfg, chunkID, files, w, &mu)
		})
	}

	if err := g.Wait(); err != nil {
		_ = w.Finish()
		return err
	}
	return w.Finish()
}

func baseName(rel string) string {
	idx := strings.LastIndexByte(rel, '/')
	if idx < 0 {
		return rel
	}
	return rel[idx+1:]
}

func sortChunk(cfg SortConfig, chunkID string, files []string, w *shardwriter.Writer, mu *sync.Mutex) error {
	groups := make(map[uint64][]document.Doc)
	var orphanCounter uint64

	for _, rel := range files {
		path := filepath.Join(cfg.InputRoot, rel)
		r, err := shardio.OpenReader(path)
		if err != nil {
			return corpuserr.ShardIO(fmt.Sprintf("opening chunk file %s", rel), err)
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
			hash, ok := HashGroupKey(d, cfg.GroupKeys)
			if !ok {
				// No real group to compete in: each such document is its
				// own singleton group, which keeps it regardless of
				// keep_idx and matches the "emitted directly into a
				// survivors stream" behavior for unresolvable keys.
				orphanCounter++
				hash = ^uint64(0) - orphanCounter
			}
			groups[hash] = append(groups[hash], d)
		}
		r.Close()
	}

	for _, members := range groups {
		var survivor document.Doc
		if cfg.Concatenate != nil {
			survivor = concatenateGroup(members, *cfg.Concatenate)
		} else {
			survivor = selectSurvivor(members, cfg.SortKeys, cfg.KeepIdx)
		}
		if cfg.SizeKey != "" {
			survivor = document.Clone(survivor)
			_ = document.Set(survivor, cfg.SizeKey, float64(len(members)))
		}
		line, err := shardio.EncodeLine(survivor)
		if err != nil {
			return corpuserr.WriterIO("encoding sort-pass survivor", err)
		}
		mu.Lock()
		err = w.WriteLine(chunkID, line)
		mu.Unlock()
		if err != nil {
			return corpuserr.WriterIO("writing sort-pass survivor", err)
		}
	}
	return nil
}

// selectSurvivor sorts members by the fallback sort_keys (first resolvable
// path wins per key entry) using the JSON total order, then returns
// members[0] for keep_idx==0 or members[len-1] for keep_idx==-1.
func selectSurvivor(members []document.Doc, sortKeys [][]string, keepIdx int) document.Doc {
	if len(members) == 1 {
		return members[0]
	}
	sort.SliceStable(members, func(i, j int) bool {
		for _, fallback := range sortKeys {
			vi, oki := firstResolvable(members[i], fallback)
			vj, okj := firstResolvable(members[j], fallback)
			if !oki && !okj {
				continue
			}
			if !oki {
				return true
			}
			if !okj {
				return false
			}
			if c := document.Compare(vi, vj); c != 0 {
				return c < 0
			}
		}
		return false
	})
	if keepIdx == -1 {
		return members[len(members)-1]
	}
	return members[0]
}

func firstResolvable(d document.Doc, paths []string) (any, bool) {
	for _, p := range paths {
		if v, ok := document.Get(d, p); ok {
			return v, true
		}
	}
	return nil, false
}
