// Package maintenance implements one-time administrative bulk operations,
// guarded by persisted idempotency flags so each runs at most once across
// process restarts.
package maintenance

// StepStatus is the outcome of one step of a per-item pipeline.
type StepStatus string

const (
	StepSuccess StepStatus = "success"
	StepSkipped StepStatus = "skipped"
	StepFailed  StepStatus = "failed"
)

// StepResult records one step's outcome for one item.
type StepResult struct {
	Name   string
	Status StepStatus
	Err    error
}

// ItemReport is the per-item record of every step attempted against a single
// identity. Every step runs; a failed step is recorded alongside the rest.
type ItemReport struct {
	Identity string
	Steps    []StepResult
}

// Failed reports whether any step failed for this item.
func (r *ItemReport) Failed() bool {
	for _, s := range r.Steps {
		if s.Status == StepFailed {
			return true
		}
	}
	return false
}

// addStep appends a step result.
func (r *ItemReport) addStep(name string, status StepStatus, err error) {
	r.Steps = append(r.Steps, StepResult{Name: name, Status: status, Err: err})
}

// BatchReport aggregates the per-item reports of one bulk operation run.
type BatchReport struct {
	Operation string
	Items     []ItemReport
}

// Affected returns the number of items that completed all steps.
func (b *BatchReport) Affected() int {
	n := 0
	for i := range b.Items {
		if !b.Items[i].Failed() {
			n++
		}
	}
	return n
}

// Failures returns the reports of items where at least one step failed.
func (b *BatchReport) Failures() []ItemReport {
	var out []ItemReport
	for _, item := range b.Items {
		if item.Failed() {
			out = append(out, item)
		}
	}
	return out
}
