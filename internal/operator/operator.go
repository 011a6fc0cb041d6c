// Package operator implements the per-document operator contract and the
// catalogue of named operators: filters return a document unchanged or
// remove it from the stream; modifiers return a mutated document or remove
// it when the mutation produces an empty result. Construction is explicit
// (Build), not a process-global registry, per the design note that prefers
// a single build_operator(name, config) function over a package-level
// mutable lookup table.
package operator

import (
	"github.com/kestrel-data/datamap/internal/document"
)

// Result classifies the outcome of a single Apply call.
type Result int

const (
	// Kept means the document (possibly mutated) survives to the next step.
	Kept Result = iota
	// Filtered means the document is removed from the stream at this step.
	Filtered
	// Errored means the operator raised during processing; the document is
	// routed to the error sink and processing stops for this record.
	Errored
)

// Outcome is the return value of Apply: exactly one of Doc (when Kept),
// nothing (when Filtered), or Err (when Errored) is meaningful.
type Outcome struct {
	Result Result
	Doc    document.Doc
	Err    error
}

// Keep wraps d as a Kept outcome.
func Keep(d document.Doc) Outcome { return Outcome{Result: Kept, Doc: d} }

// Drop is the Filtered outcome.
func Drop() Outcome { return Outcome{Result: Filtered} }

// Fail wraps err as an Errored outcome.
func Fail(err error) Outcome { return Outcome{Result: Errored, Err: err} }

// Operator is a named, configured, thread-safe per-document processor.
// Implementations own any precomputed state (compiled regex, loaded
// banlist, loaded classifier) built once at construction time; Apply must
// be safe for concurrent use by many goroutines since one Operator instance
// is shared across all shard workers in a pipeline run.
type Operator interface {
	Apply(d document.Doc) Outcome
}

// Func adapts a plain function to the Operator interface.
type Func func(d document.Doc) Outcome

func (f Func) Apply(d document.Doc) Outcome { return f(d) }
