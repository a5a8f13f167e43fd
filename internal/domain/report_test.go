package domain

import (
	"testing"
	"time"
)

func TestTally(t *testing.T) {
	var tally Tally
	for _, o := range []Outcome{OutcomeCopied, OutcomeCopied, OutcomeSkipped, OutcomeFailed, OutcomePlanned, "unknown"} {
		tally.Add(o)
	}

	want := Tally{Copied: 2, Skipped: 1, Planned: 1, Failed: 1}
	if tally != want {
		t.Errorf("tally = %+v, want %+v", tally, want)
	}
	if tally.Total() != 5 {
		t.Errorf("Total() = %d, want 5", tally.Total())
	}
}

func TestReportDuration(t *testing.T) {
	start := time.Date(2021, 6, 1, 0, 0, 0, 0, time.UTC)
	r := &Report{StartedAt: start}
	if r.Duration() != 0 {
		t.Errorf("Duration() of unfinished run = %v, want 0", r.Duration())
	}
	r.FinishedAt = start.Add(90 * time.Second)
	if r.Duration() != 90*time.Second {
		t.Errorf("Duration() = %v, want 90s", r.Duration())
	}
}

func TestReportFailed(t *testing.T) {
	r := &Report{Results: []TaskResult{
		{Task: TransferTask{Seq: 0}, Outcome: OutcomeCopied},
		{Task: TransferTask{Seq: 1}, Outcome: OutcomeFailed, Error: "boom"},
		{Task: TransferTask{Seq: 2}, Outcome: OutcomeSkipped},
	}}

	failed := r.Failed()
	if len(failed) != 1 || failed[0].Task.Seq != 1 {
		t.Errorf("Failed() = %+v, want only seq 1", failed)
	}
}
