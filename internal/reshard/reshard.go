// Package reshard repacks a corpus into a fresh set of shards bounded by a
// line count, a byte size, or both, optionally subsampling lines and
// mirroring the input's top-level directory structure into the output.
package reshard

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"math/rand"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/kestrel-data/datamap/internal/corpuserr"
	"github.com/kestrel-data/datamap/internal/filedriver"
	"github.com/kestrel-data/datamap/internal/shardio"
)

// Config configures a reshard run.
type Config struct {
	InputRoot       string
	OutputRoot      string
	MaxLines        int
	MaxSize         int64
	Subsample       float64 // keep probability in (0, 1]; <= 0 keeps everything
	KeepDirs        bool
	DeleteAfterRead bool
	Workers         int
}

// Report summarizes a completed reshard run.
type Report struct {
	ShardsWritten int64
	LinesWritten  int64
	FilesSkipped  []string
}

// Run repacks every shard file under cfg.InputRoot into new shards under
// cfg.OutputRoot. Input files are split across cfg.Workers worker
// goroutines, each owning a disjoint, contiguous slice of files (or, with
// KeepDirs, a slice of files sharing one parent directory) and its own
// output stream; a single shared counter assigns globally unique shard ids
// so concurrent workers never collide on an output file name.
func Run(ctx context.Context, cfg Config) (*Report, error) {
	rels, err := filedriver.Collect(cfg.InputRoot, nil, nil)
	if err != nil {
		return nil, err
	}

	maxLines := cfg.MaxLines
	if maxLines <= 0 {
		maxLines = math.MaxInt
	}
	maxSize := cfg.MaxSize
	if maxSize <= 0 {
		maxSize = math.MaxInt64
	}

	workers := cfg.Workers
	if workers <= 0 {
		workers = 1
	}

	var chunks [][]string
	if cfg.KeepDirs {
		chunks = chunkByDir(rels, workers)
	} else {
		chunks = chunkContiguous(rels, workers)
	}

	var shardCounter int64
	var linesWritten int64
	report := &Report{}
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	for _, chunk := range chunks {
		chunk := chunk
		if len(chunk) == 0 {
			continue
		}
		g.Go(func() error {
			select {
			case <-gctx.Done():
				return gctx.Err()
			default:
			}
			n, skipped, err := reshardChunk(cfg, chunk, &shardCounter, maxLines, maxSize)
			atomic.AddInt64(&linesWritten, n)
			if len(skipped) > 0 {
				mu.Lock()
				report.FilesSkipped = append(report.FilesSkipped, skipped...)
				mu.Unlock()
			}
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return report, err
	}

	report.ShardsWritten = atomic.LoadInt64(&shardCounter)
	report.LinesWritten = linesWritten
	return report, nil
}

// chunkContiguous splits rels into up to workers contiguous, roughly equal
// slices.
func chunkContiguous(rels []string, workers int) [][]string {
	if len(rels) == 0 {
		return nil
	}
	size := (len(rels) + workers - 1) / workers
	if size < 1 {
		size = 1
	}
	var chunks [][]string
	for i := 0; i < len(rels); i += size {
		end := i + size
		if end > len(rels) {
			end = len(rels)
		}
		chunks = append(chunks, rels[i:end])
	}
	return chunks
}

// chunkByDir groups rels by their parent directory, then splits any group
// larger than the target chunk size into multiple chunks so one very large
// directory doesn't starve parallelism.
func chunkByDir(rels []string, workers int) [][]string {
	if len(rels) == 0 {
		return nil
	}
	size := (len(rels) + workers - 1) / workers
	if size < 1 {
		size = 1
	}
	byDir := make(map[string][]string)
	var order []string
	for _, rel := range rels {
		dir := filepath.Dir(rel)
		if _, ok := byDir[dir]; !ok {
			order = append(order, dir)
		}
		byDir[dir] = append(byDir[dir], rel)
	}
	var chunks [][]string
	for _, dir := range order {
		group := byDir[dir]
		if len(group) <= size {
			chunks = append(chunks, group)
			continue
		}
		for i := 0; i < len(group); i += size {
			end := i + size
			if end > len(group) {
				end = len(group)
			}
			chunks = append(chunks, group[i:end])
		}
	}
	return chunks
}

// reshardChunk processes one worker's slice of input files against a
// rotating output stream, returning the number of lines written and any
// input files that could not be read (skipped, not fatal).
func reshardChunk(cfg Config, chunk []string, shardCounter *int64, maxLines int, maxSize int64) (linesWritten int64, skipped []string, err error) {
	outputDir := cfg.OutputRoot
	if cfg.KeepDirs {
		outputDir = filepath.Join(cfg.OutputRoot, filepath.Dir(chunk[0]))
	}

	newWriter := func() (*shardio.Writer, error) {
		id := atomic.AddInt64(shardCounter, 1) - 1
		path := filepath.Join(outputDir, fmt.Sprintf("shard_%08d.jsonl.zst", id))
		return shardio.CreateWriter(path)
	}

	w, err := newWriter()
	if err != nil {
		return 0, skipped, corpuserr.WriterIO("opening reshard output", err)
	}

	var curLines int
	var curSize int64
	rotate := func() error {
		if err := w.Close(); err != nil {
			return corpuserr.WriterIO("rotating reshard output", err)
		}
		nw, err := newWriter()
		if err != nil {
			return corpuserr.WriterIO("opening reshard output", err)
		}
		w = nw
		curLines, curSize = 0, 0
		return nil
	}

	for _, rel := range chunk {
		path := filepath.Join(cfg.InputRoot, rel)
		r, rerr := shardio.OpenReader(path)
		if rerr != nil {
			slog.Error("skipping unreadable shard", "shard", rel, "cause", rerr)
			skipped = append(skipped, rel)
			continue
		}

		for {
			line, nerr := r.Next()
			if nerr != nil {
				break
			}
			if cfg.Subsample > 0 && rand.Float64() >= cfg.Subsample {
				continue
			}
			out := append(append([]byte(nil), line...), '\n')
			if _, werr := w.Write(out); werr != nil {
				r.Close()
				return linesWritten, skipped, corpuserr.WriterIO("writing reshard output", werr)
			}
			linesWritten++
			curLines++
			curSize += int64(len(out))
			if curLines >= maxLines || curSize >= maxSize {
				if rerr := rotate(); rerr != nil {
					r.Close()
					return linesWritten, skipped, rerr
				}
			}
		}
		r.Close()

		if cfg.DeleteAfterRead {
			if rerr := os.Remove(path); rerr != nil {
				slog.Error("failed to delete input shard after read", "shard", rel, "cause", rerr)
			}
		}
	}

	if err := w.Close(); err != nil {
		return linesWritten, skipped, corpuserr.WriterIO("finalizing reshard output", err)
	}
	return linesWritten, skipped, nil
}
