// Package lockstep holds the public result types produced by an install run.
package lockstep

// Terminal outcomes for one dependency in one run.
const (
	OutcomeInstalled = "installed"
	OutcomeUnchanged = "unchanged"
	OutcomeSkipped   = "skipped"
	OutcomeFailed    = "failed"
	// OutcomeInvalid marks a manifest entry that could not be parsed into a
	// declaration. Reported per-entry; does not fail the run.
	OutcomeInvalid = "invalid"
)

// DependencyResult records the terminal state of one dependency.
type DependencyResult struct {
	Name    string
	Scope   string // "dependencies" or "devDependencies"
	Outcome string
	Version string
	Err     error
}

// ProjectResult aggregates the results for one project directory.
type ProjectResult struct {
	Dir     string
	Depth   int // 0 is the root project
	Results []DependencyResult
}

// Count returns how many dependencies reached the given outcome.
func (p *ProjectResult) Count(outcome string) int {
	n := 0
	for _, r := range p.Results {
		if r.Outcome == outcome {
			n++
		}
	}
	return n
}

// Tally is the final summary across all projects in a run.
type Tally struct {
	Installed int
	Unchanged int
	Skipped   int
	Failed    int
	Invalid   int
}

// RunResult is the outcome of a full install run, root project first.
type RunResult struct {
	Projects []*ProjectResult
	Warnings []string
	DryRun   bool
}

// Totals sums dependency outcomes across every processed project.
func (r *RunResult) Totals() Tally {
	var t Tally
	for _, p := range r.Projects {
		t.Installed += p.Count(OutcomeInstalled)
		t.Unchanged += p.Count(OutcomeUnchanged)
		t.Skipped += p.Count(OutcomeSkipped)
		t.Failed += p.Count(OutcomeFailed)
		t.Invalid += p.Count(OutcomeInvalid)
	}
	return t
}

// Failed reports whether the run should exit non-zero: any source-fetch
// failure qualifies; invalid entries, skips and warnings do not.
func (r *RunResult) Failed() bool {
	return r.Totals().Failed > 0
}
