// Package domain holds the run orchestrator states, records and ports
package domain

import (
	"time"

	annotatedom "contribot/internal/services/annotate/domain"
	reconciledom "contribot/internal/services/reconcile/domain"
)

// State is where a run is in its lifecycle
type State string

// Run states in order, followed by the two early exits
const (
	StateFetchingSources         State = "fetching_sources"
	StateReconcilingRepos        State = "reconciling_repos"
	StateFetchingReposForIssues  State = "fetching_repos_for_issues"
	StateReconcilingIssues       State = "reconciling_issues"
	StateDrainingAnnotationQueue State = "draining_annotation_queue"
	StateSummarizing             State = "summarizing"
	StateDone                    State = "done"

	StateAborted State = "aborted"
	StatePaused  State = "paused"
)

// Terminal reports whether no further transition happens from s
func (s State) Terminal() bool {
	return s == StateDone || s == StateAborted || s == StatePaused
}

// Status is the coarse run status stored next to the state
type Status string

// Run statuses
const (
	StatusRunning Status = "running"
	StatusDone    Status = "done"
	StatusPaused  Status = "paused"
	StatusAborted Status = "aborted"
	StatusFailed  Status = "failed"
)

// Trigger names what started a run
type Trigger string

// Triggers
const (
	TriggerCLI          Trigger = "cli"
	TriggerAPI          Trigger = "api"
	TriggerSchedule     Trigger = "schedule"
	TriggerContinuation Trigger = "continuation"
)

// Phase says which loop a cursor points into
type Phase string

// Cursor phases
const (
	PhaseRepos  Phase = "repos"
	PhaseIssues Phase = "issues"
)

// Cursor is where a paused run picks up. Index is the last attempted item
// of the source (repos phase) or of the stored repository list (issues phase)
type Cursor struct {
	RunID    string `json:"run_id"`
	Phase    Phase  `json:"phase"`
	SourceID string `json:"source_id,omitempty"`
	Index    int    `json:"index"`
	Ceiling  string `json:"ceiling,omitempty"`
}

// SourceStats counts the source fetch phase
type SourceStats struct {
	Fetched int `json:"fetched"`
	Failed  int `json:"failed"`
	Refs    int `json:"refs"`
}

// AnnotationStats counts the drain phase
type AnnotationStats struct {
	Processed int `json:"processed"`
	Success   int `json:"success"`
	Failed    int `json:"failed"`
	Remaining int `json:"remaining"`
}

// Totals is the run-level sum of every phase
type Totals struct {
	Sources     SourceStats             `json:"sources"`
	Repos       reconciledom.RepoStats  `json:"repos"`
	Issues      reconciledom.IssueStats `json:"issues"`
	Annotations AnnotationStats         `json:"annotations"`
}

// Add folds d into t. Remaining is a gauge and takes the newer value
func (t *Totals) Add(d Totals) {
	t.Sources.Fetched += d.Sources.Fetched
	t.Sources.Failed += d.Sources.Failed
	t.Sources.Refs += d.Sources.Refs

	t.Repos.Discovered += d.Repos.Discovered
	t.Repos.New += d.Repos.New
	t.Repos.Updated += d.Repos.Updated
	t.Repos.Unchanged += d.Repos.Unchanged
	t.Repos.Queued += d.Repos.Queued
	t.Repos.Errors += d.Repos.Errors

	t.Issues.Add(d.Issues)

	t.Annotations.Processed += d.Annotations.Processed
	t.Annotations.Success += d.Annotations.Success
	t.Annotations.Failed += d.Annotations.Failed
	if d.Annotations.Processed > 0 || d.Annotations.Remaining != 0 {
		t.Annotations.Remaining = d.Annotations.Remaining
	}
}

// FromDrain converts a drain result into run totals
func FromDrain(d annotatedom.DrainResult) Totals {
	return Totals{Annotations: AnnotationStats{
		Processed: d.Processed,
		Success:   d.Success,
		Failed:    d.Failed,
		Remaining: d.Remaining,
	}}
}

// Run is one pipeline_runs row
type Run struct {
	ID         string     `json:"id"`
	Trigger    Trigger    `json:"trigger"`
	Depth      string     `json:"depth"`
	Scope      string     `json:"scope,omitempty"`
	State      State      `json:"state"`
	Status     Status     `json:"status"`
	Reason     string     `json:"reason,omitempty"`
	Cursor     *Cursor    `json:"cursor,omitempty"`
	Totals     Totals     `json:"totals"`
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
}

// Outcome is what a run reports to its caller
type Outcome struct {
	RunID                 string  `json:"run_id"`
	State                 State   `json:"state"`
	Reason                string  `json:"reason,omitempty"`
	Cursor                *Cursor `json:"cursor,omitempty"`
	ContinuationScheduled bool    `json:"continuation_scheduled"`
	Totals                Totals  `json:"totals"`
}

// Request starts a fresh run
type Request struct {
	Trigger Trigger
	Depth   reconciledom.Depth
	// SourceID limits the run to one source when set
	SourceID string
}
