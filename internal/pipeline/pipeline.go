package pipeline

import (
	"io"
	"time"

	"github.com/kestrel-data/datamap/internal/document"
	"github.com/kestrel-data/datamap/internal/operator"
	"github.com/kestrel-data/datamap/internal/shardio"
)

// Process runs a single document through every step in order, recording
// per-step elapsed time into timing and bumping removals on the step that
// filtered it (or on SurvivorStep if it passed every step).
func (p *Pipeline) Process(d document.Doc, timing map[string]time.Duration, removals map[string]int) Outcome {
	cur := d
	for _, step := range p.Steps {
		start := time.Now()
		out := step.Op.Apply(cur)
		timing[step.Label] += time.Since(start)

		switch out.Result {
		case operator.Filtered:
			removals[step.Label]++
			return Outcome{TerminalStep: step.Label, Doc: cur}
		case operator.Errored:
			return Outcome{TerminalStep: step.Label, Doc: cur, Err: out.Err}
		default:
			cur = out.Doc
		}
	}
	removals[SurvivorStep]++
	return Outcome{TerminalStep: SurvivorStep, Doc: cur}
}

// ShardResult is the per-document-grouped output of processing one shard:
// documents keyed by the step label that terminated them (SurvivorStep for
// documents that passed every step), plus aggregated timing/removal
// counters and the error sink for unparseable or erroring lines.
type ShardResult struct {
	ByStep map[string][]document.Doc
	Stats  *Result
}

// ProcessShard decompresses a shard, JSON-parses each line, and runs it
// through Process, grouping survivors and step-filtered documents by
// terminal step label. Parse failures and operator errors are recorded in
// the error sink rather than aborting the shard. A read or decompression
// error, at open or mid-stream, is returned and no result is produced.
func ProcessShard(path string, p *Pipeline) (*ShardResult, error) {
	r, err := shardio.OpenReader(path)
	if err != nil {
		return nil, err
	}
	defer r.Close()

	res := &ShardResult{
		ByStep: make(map[string][]document.Doc),
		Stats:  NewResult(p.Steps),
	}

	for {
		line, err := r.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		doc, perr := shardio.DecodeLine(line)
		if perr != nil {
			res.Stats.Errors = append(res.Stats.Errors, LineError{Line: append([]byte(nil), line...), Err: perr})
			continue
		}

		out := p.Process(doc, res.Stats.Timing, res.Stats.Removals)
		if out.Err != nil {
			res.Stats.Errors = append(res.Stats.Errors, LineError{Step: out.TerminalStep, Line: append([]byte(nil), line...), Err: out.Err})
			continue
		}
		res.ByStep[out.TerminalStep] = append(res.ByStep[out.TerminalStep], out.Doc)
	}

	return res, nil
}

// Merge combines another shard's aggregated stats into r, summing timing
// and removal counters and concatenating error sinks.
func (r *Result) Merge(other *Result) {
	r.merge(other)
}
