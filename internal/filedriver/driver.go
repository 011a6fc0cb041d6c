// Package filedriver enumerates shard files under an input root, runs each
// one through a pipeline in parallel, and routes each document's output to
// a per-step bucket mirroring the input's relative path, following the
// two-phase collect/bounded-process shape of the teacher's directory
// walker.
package filedriver

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"golang.org/x/sync/errgroup"

	"github.com/kestrel-data/datamap/internal/corpuserr"
	"github.com/kestrel-data/datamap/internal/document"
	"github.com/kestrel-data/datamap/internal/pipeline"
	"github.com/kestrel-data/datamap/internal/shardio"
)

var shardExts = []string{".jsonl", ".jsonl.zst", ".jsonl.zstd"}

func isShardFile(name string) bool {
	for _, ext := range shardExts {
		if strings.HasSuffix(name, ext) {
			return true
		}
	}
	return false
}

// Collect walks root and returns the sorted list of shard file paths
// relative to root, optionally filtered by include/exclude glob patterns
// (matched against the relative path).
func Collect(root string, include, exclude []string) ([]string, error) {
	var rels []string
	err := filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !isShardFile(d.Name()) {
			return nil
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		if len(include) > 0 && !matchAny(include, rel) {
			return nil
		}
		if matchAny(exclude, rel) {
			return nil
		}
		rels = append(rels, rel)
		return nil
	})
	if err != nil {
		return nil, corpuserr.Config("walking input directory", err)
	}
	sort.Strings(rels)
	return rels, nil
}

func matchAny(patterns []string, rel string) bool {
	for _, p := range patterns {
		if ok, _ := doublestar.Match(p, rel); ok {
			return true
		}
	}
	return false
}

// Config configures a Run invocation.
type Config struct {
	InputRoot  string
	OutputRoot string
	ErrRoot    string
	Include    []string
	Exclude    []string
	Workers    int
	Pipeline   *pipeline.Pipeline
}

// Report summarizes a completed Run for the end-of-run console report.
type Report struct {
	Wall        time.Duration
	TotalDocs   int
	Timing      map[string]time.Duration
	Removals    map[string]int
	ParseErrors int
	SkippedRuns []string // shard paths skipped due to a ShardIO error
}

// Run enumerates shard files under cfg.InputRoot and processes each one
// through cfg.Pipeline with bounded concurrency, writing per-step outputs
// under cfg.OutputRoot and, if configured, errored lines under cfg.ErrRoot.
// A panic in one shard's processing goroutine, or a failure to read the
// shard, is logged and recorded as a skip; it does not abort the run. A
// failure writing a shard's outputs or error sink is returned and ends the
// run.
func Run(ctx context.Context, cfg Config) (*Report, error) {
	start := time.Now()

	rels, err := Collect(cfg.InputRoot, cfg.Include, cfg.Exclude)
	if err != nil {
		return nil, err
	}

	report := &Report{
		Timing:   make(map[string]time.Duration),
		Removals: make(map[string]int),
	}
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	if cfg.Workers > 0 {
		g.SetLimit(cfg.Workers)
	}

	for _, rel := range rels {
		rel := rel
		g.Go(func() (err error) {
			defer func() {
				if r := recover(); r != nil {
					slog.Error("shard processor panicked, skipping", "shard", rel, "panic", r)
					mu.Lock()
					report.SkippedRuns = append(report.SkippedRuns, rel)
					mu.Unlock()
				}
			}()

			select {
			case <-gctx.Done():
				return gctx.Err()
			default:
			}

			shardPath := filepath.Join(cfg.InputRoot, rel)
			res, perr := pipeline.ProcessShard(shardPath, cfg.Pipeline)
			if perr != nil {
				slog.Error("skipping unreadable shard", "shard", rel, "cause", perr)
				mu.Lock()
				report.SkippedRuns = append(report.SkippedRuns, rel)
				mu.Unlock()
				return nil
			}

			if err := writeShardOutputs(cfg.OutputRoot, rel, res.ByStep); err != nil {
				return err
			}
			if cfg.ErrRoot != "" && len(res.Stats.Errors) > 0 {
				if err := writeErrorSink(cfg.ErrRoot, rel, res.Stats.Errors); err != nil {
					return err
				}
			}

			mu.Lock()
			for k, v := range res.Stats.Timing {
				report.Timing[k] += v
			}
			for k, v := range res.Stats.Removals {
				report.Removals[k] += v
				report.TotalDocs += v
			}
			report.ParseErrors += len(res.Stats.Errors)
			mu.Unlock()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return report, err
	}

	report.Wall = time.Since(start)
	return report, nil
}

// writeShardOutputs writes one compressed output file per per-step bucket
// that received at least one document, mirroring rel under
// outputRoot/<step_label>/. Documents that survived every step
// (pipeline.SurvivorStep) are written under outputRoot/step_final/, the
// primary-output directory; step_final otherwise never names a per-operator
// removal bucket, since BuildSteps never assigns that label to a step.
func writeShardOutputs(outputRoot, rel string, byStep map[string][]document.Doc) error {
	for step, docs := range byStep {
		if len(docs) == 0 {
			continue
		}
		dir := step
		if step == pipeline.SurvivorStep {
			dir = "step_final"
		}
		outPath := filepath.Join(outputRoot, dir, rel)
		w, err := shardio.CreateWriter(outPath)
		if err != nil {
			return corpuserr.WriterIO(fmt.Sprintf("opening output shard %s", outPath), err)
		}
		for _, d := range docs {
			line, err := shardio.EncodeLine(d)
			if err != nil {
				w.Close()
				return corpuserr.WriterIO(fmt.Sprintf("encoding document for %s", outPath), err)
			}
			if _, err := w.Write(line); err != nil {
				w.Close()
				return corpuserr.WriterIO(fmt.Sprintf("writing to %s", outPath), err)
			}
		}
		if err := w.Close(); err != nil {
			return corpuserr.WriterIO(fmt.Sprintf("finalizing %s", outPath), err)
		}
	}
	return nil
}

// writeErrorSink serializes errored raw input lines, with their cause,
// under errRoot mirroring rel.
func writeErrorSink(errRoot, rel string, errs []pipeline.LineError) error {
	outPath := filepath.Join(errRoot, rel+".errors")
	if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
		return corpuserr.WriterIO("creating error sink directory", err)
	}
	f, err := os.Create(outPath)
	if err != nil {
		return corpuserr.WriterIO(fmt.Sprintf("creating error sink %s", outPath), err)
	}
	defer f.Close()
	for _, e := range errs {
		cause := ""
		if e.Err != nil {
			cause = e.Err.Error()
		}
		fmt.Fprintf(f, "%s\t%s\t%s\n", e.Step, cause, e.Line)
	}
	return nil
}
