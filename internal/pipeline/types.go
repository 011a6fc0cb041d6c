// Package pipeline runs an ordered chain of operators over a document or a
// shard of documents, recording per-step timing and removal counts.
package pipeline

import (
	"time"

	"github.com/kestrel-data/datamap/internal/document"
	"github.com/kestrel-data/datamap/internal/operator"
)

// SurvivorStep is the key used for documents that passed every operator.
// internal/filedriver maps this key to the output directory "step_final";
// every per-operator removal bucket uses a "step_{i:02}" label instead, even
// for the last step (see internal/config.BuildSteps).
const SurvivorStep = "MAX"

// Step is one named, constructed pipeline entry.
type Step struct {
	Label string
	Op    operator.Operator
}

// Pipeline is an ordered sequence of steps, each with a resolved label.
type Pipeline struct {
	Steps []Step
}

// New builds a Pipeline from already-constructed steps. Label resolution
// (explicit step name, else step_{i:02} for every step including the last)
// happens in internal/config when the pipeline is loaded.
func New(steps []Step) *Pipeline {
	return &Pipeline{Steps: steps}
}

// Outcome is the result of running one document through the whole pipeline.
type Outcome struct {
	// TerminalStep is the label of the step that filtered the document, or
	// SurvivorStep if the document passed every step.
	TerminalStep string
	Doc          document.Doc
	Err          error
}

// Result accumulates per-step timing and removal counts across many
// documents processed through the same Pipeline.
type Result struct {
	Timing   map[string]time.Duration
	Removals map[string]int
	Errors   []LineError
}

// LineError records one document or line that failed to process, together
// with the step at which it failed (empty for a parse failure before any
// operator ran).
type LineError struct {
	Step string
	Line []byte
	Err  error
}

// NewResult returns an empty Result with maps sized for the given steps.
func NewResult(steps []Step) *Result {
	r := &Result{
		Timing:   make(map[string]time.Duration, len(steps)+1),
		Removals: make(map[string]int, len(steps)+1),
	}
	return r
}

func (r *Result) merge(other *Result) {
	for k, v := range other.Timing {
		r.Timing[k] += v
	}
	for k, v := range other.Removals {
		r.Removals[k] += v
	}
	r.Errors = append(r.Errors, other.Errors...)
}
