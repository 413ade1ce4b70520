// Package domain holds the annotation processor types and ports
package domain

import (
	"time"

	"contribot/internal/core/work"
	perr "contribot/internal/platform/errors"
)

// DefaultBatchSize is how many items one ProcessBatch pulls
const DefaultBatchSize = 5

// RemainingUnknown marks a pending count that could not be read
const RemainingUnknown = -1

// ErrClaimed means another worker took the item between select and claim
var ErrClaimed = perr.New(perr.ErrorCodeConflict, "work item already claimed")

// Stats summarises one batch
type Stats struct {
	Processed int `json:"processed"`
	Success   int `json:"success"`
	Failed    int `json:"failed"`
	Remaining int `json:"remaining"`
}

// BatchResult is what ProcessBatch reports
type BatchResult struct {
	Stats
	HasMore bool `json:"has_more"`
}

// DrainResult sums the batches of one Drain call
type DrainResult struct {
	Batches     int           `json:"batches"`
	Processed   int           `json:"processed"`
	Success     int           `json:"success"`
	Failed      int           `json:"failed"`
	Remaining   int           `json:"remaining"`
	BudgetSpent bool          `json:"budget_spent"`
	Elapsed     time.Duration `json:"elapsed"`
}

// RepoTarget is what the summarizer needs about a repository
type RepoTarget struct {
	ID        int64
	Owner     string
	Name      string
	Languages []string
}

// IssueTarget is what the summarizer needs about an issue
type IssueTarget struct {
	ID    int64
	Owner string
	Name  string
	Title string
	Body  string
}

// Annotation is one stored summarizer result, keyed by (EntityType, EntityID)
type Annotation struct {
	EntityType work.Kind
	EntityID   int64
	Summary    *string
	Intro      *string
	Difficulty int
	FirstSteps []string
	UpdatedAt  time.Time
}
