package job

import "github.com/vvka-141/dynis/pkg/dynis"

// Status is the per item set result.
type Status string

const (
	StatusApplied Status = "applied"
	StatusSkipped Status = "skipped"
	StatusStopped Status = "stopped"
)

// Skip reasons.
const (
	ReasonMissingItemSet = "missing item set"
	ReasonNoQuery        = "no query"
	ReasonStopRequested  = "stop requested"
)

// Outcome reports what happened to one item set. Per-item failures are
// collected here; they never abort the run.
type Outcome struct {
	ItemSetID int64
	Status    Status
	Reason    string

	// Attached is the membership count after the run.
	Attached        int
	Detached        int
	NewlyAttached   int
	AlreadyAttached int
	Failures        []dynis.ItemFailure
}

// Run statuses reported to the host.
const (
	RunCompleted = "completed"
	RunStopped   = "stopped"
)

// Report is the result of a run that did not fail.
type Report struct {
	JobID    string
	Outcomes []Outcome
	Stopped  bool
}

// Status returns RunCompleted or RunStopped.
func (r Report) Status() string {
	if r.Stopped {
		return RunStopped
	}
	return RunCompleted
}

// Outcome returns the outcome of an item set, if any.
func (r Report) Outcome(itemSetID int64) (Outcome, bool) {
	for _, o := range r.Outcomes {
		if o.ItemSetID == itemSetID {
			return o, true
		}
	}
	return Outcome{}, false
}

// Count returns the number of outcomes with status s.
func (r Report) Count(s Status) int {
	n := 0
	for _, o := range r.Outcomes {
		if o.Status == s {
			n++
		}
	}
	return n
}
