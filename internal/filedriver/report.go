package filedriver

import (
	"fmt"
	"sort"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

var (
	reportHeading = lipgloss.NewStyle().Bold(true)
	reportDim     = lipgloss.NewStyle().Faint(true)
)

// Render formats the end-of-run report: total wall time, total documents
// processed, per-step elapsed-% of total, per-step removals as both
// percent-of-remaining and percent-of-pool, and the final survivor
// percent.
func (r *Report) Render() string {
	var sb strings.Builder

	fmt.Fprintln(&sb, reportHeading.Render("run summary"))
	fmt.Fprintf(&sb, "wall time:   %s\n", r.Wall)
	fmt.Fprintf(&sb, "documents:   %d\n", r.TotalDocs)
	if len(r.SkippedRuns) > 0 {
		fmt.Fprintf(&sb, "shards skipped: %d\n", len(r.SkippedRuns))
	}
	if r.ParseErrors > 0 {
		fmt.Fprintf(&sb, "parse errors: %d\n", r.ParseErrors)
	}

	steps := make([]string, 0, len(r.Removals))
	for step := range r.Removals {
		if step != "MAX" {
			steps = append(steps, step)
		}
	}
	sort.Strings(steps)

	totalElapsed := int64(0)
	for _, d := range r.Timing {
		totalElapsed += int64(d)
	}

	remaining := r.TotalDocs
	fmt.Fprintln(&sb, reportHeading.Render("per-step"))
	for _, step := range steps {
		removed := r.Removals[step]
		elapsedPct := 0.0
		if totalElapsed > 0 {
			elapsedPct = float64(r.Timing[step]) / float64(totalElapsed) * 100
		}
		pctRemaining, pctPool := 0.0, 0.0
		if remaining > 0 {
			pctRemaining = float64(removed) / float64(remaining) * 100
		}
		if r.TotalDocs > 0 {
			pctPool = float64(removed) / float64(r.TotalDocs) * 100
		}
		fmt.Fprintf(&sb, "  %s: removed=%d (%.1f%% of remaining, %.1f%% of pool), elapsed=%.1f%%\n",
			step, removed, pctRemaining, pctPool, elapsedPct)
		remaining -= removed
	}

	survivorPct := 0.0
	if r.TotalDocs > 0 {
		survivorPct = float64(r.Removals["MAX"]) / float64(r.TotalDocs) * 100
	}
	fmt.Fprintln(&sb, reportDim.Render(fmt.Sprintf("survivors: %d (%.1f%%)", r.Removals["MAX"], survivorPct)))

	return sb.String()
}
