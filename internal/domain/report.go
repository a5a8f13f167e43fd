package domain

import "time"

// Outcome is the terminal state of one transfer task.
type Outcome string

const (
	OutcomeCopied  Outcome = "copied"
	OutcomeSkipped Outcome = "skipped" // target already present
	OutcomePlanned Outcome = "planned" // dry run, would copy
	OutcomeFailed  Outcome = "failed"
)

// TaskResult records what happened to a single task.
type TaskResult struct {
	Task       TransferTask  `json:"task" yaml:"task"`
	Outcome    Outcome       `json:"outcome" yaml:"outcome"`
	CheckError string        `json:"check_error,omitempty" yaml:"check_error,omitempty"`
	Error      string        `json:"error,omitempty" yaml:"error,omitempty"`
	Duration   time.Duration `json:"duration" yaml:"duration"`
}

// AreaFailure records a listing that was skipped.
type AreaFailure struct {
	AreaKey AreaKey `json:"area_key" yaml:"area_key"`
	Prefix  string  `json:"prefix" yaml:"prefix"`
	Error   string  `json:"error" yaml:"error"`
}

// Tally counts task outcomes.
type Tally struct {
	Copied  int `json:"copied" yaml:"copied"`
	Skipped int `json:"skipped" yaml:"skipped"`
	Planned int `json:"planned" yaml:"planned"`
	Failed  int `json:"failed" yaml:"failed"`
}

// Total returns the number of counted tasks.
func (t Tally) Total() int {
	return t.Copied + t.Skipped + t.Planned + t.Failed
}

// Add counts one outcome.
func (t *Tally) Add(o Outcome) {
	switch o {
	case OutcomeCopied:
		t.Copied++
	case OutcomeSkipped:
		t.Skipped++
	case OutcomePlanned:
		t.Planned++
	case OutcomeFailed:
		t.Failed++
	}
}

// Report summarizes one sync run.
type Report struct {
	RunID           string        `json:"run_id" yaml:"run_id"`
	StartedAt       time.Time     `json:"started_at" yaml:"started_at"`
	FinishedAt      time.Time     `json:"finished_at" yaml:"finished_at"`
	DryRun          bool          `json:"dry_run" yaml:"dry_run"`
	CatalogSize     int           `json:"catalog_size" yaml:"catalog_size"`
	Listings        int           `json:"listings" yaml:"listings"`
	ObjectsSeen     int           `json:"objects_seen" yaml:"objects_seen"`
	Duplicates      int           `json:"duplicates" yaml:"duplicates"`
	ListingFailures []AreaFailure `json:"listing_failures,omitempty" yaml:"listing_failures,omitempty"`
	Tally           Tally         `json:"tally" yaml:"tally"`
	Results         []TaskResult  `json:"results" yaml:"results"`
}

// Duration returns the wall-clock duration of the run.
func (r *Report) Duration() time.Duration {
	if r.FinishedAt.IsZero() {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}

// Failed returns the results that did not complete.
func (r *Report) Failed() []TaskResult {
	var out []TaskResult
	for _, res := range r.Results {
		if res.Outcome == OutcomeFailed {
			out = append(out, res)
		}
	}
	return out
}
