// Package domain defines the types and ports of the reconcile service
package domain

import (
	"fmt"
	"strings"
	"time"

	perr "contribot/internal/platform/errors"
)

// Depth decides how much a repository observation costs
type Depth string

// Depth policies
const (
	// DepthCountOnly asks one aggregate query per repository
	DepthCountOnly Depth = "count"
	// DepthFull fetches the language breakdown
	DepthFull Depth = "full"
)

// ParseDepth accepts count, count-only or full
func ParseDepth(s string) (Depth, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "count", "count-only", "count_only":
		return DepthCountOnly, nil
	case "full":
		return DepthFull, nil
	}
	return "", perr.InvalidArgf("unknown depth %q (want count or full)", s)
}

// Options steer one ProcessRepos call
type Options struct {
	Depth Depth
	// StartAt skips references before a resumption index
	StartAt int
}

// RepoStats tallies one ProcessRepos call
type RepoStats struct {
	Discovered int `json:"discovered"`
	New        int `json:"new"`
	Updated    int `json:"updated"`
	Unchanged  int `json:"unchanged"`
	Queued     int `json:"queued"`
	Errors     int `json:"errors"`
}

// IssueStats tallies one ProcessRepoIssues call
type IssueStats struct {
	Processed int `json:"processed"`
	New       int `json:"new"`
	Updated   int `json:"updated"`
	Unchanged int `json:"unchanged"`
	Queued    int `json:"queued"`
	Errors    int `json:"errors"`
	Closed    int `json:"closed"`
}

// Add folds o into s
func (s *IssueStats) Add(o IssueStats) {
	s.Processed += o.Processed
	s.New += o.New
	s.Updated += o.Updated
	s.Unchanged += o.Unchanged
	s.Queued += o.Queued
	s.Errors += o.Errors
	s.Closed += o.Closed
}

// HaltError stops a loop on a ceiling and says where
type HaltError struct {
	// Index of the item being attempted when the ceiling hit
	Index int
	Err   error
}

func (e *HaltError) Error() string { return fmt.Sprintf("halted at item %d: %v", e.Index, e.Err) }

// Unwrap exposes the ceiling
func (e *HaltError) Unwrap() error { return e.Err }

// Repository is the stored repository record
type Repository struct {
	ID               int64
	Owner            string
	Name             string
	URL              string
	LanguagesOrdered []string
	LanguagesRaw     map[string]int64
	Label            string
	SourceID         string
	MetadataHash     string
	OpenIssueCount   int
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// Slug is owner/name
func (r Repository) Slug() string { return r.Owner + "/" + r.Name }

// Issue is the stored issue record
type Issue struct {
	ID              int64
	RepositoryID    int64
	Number          int
	Title           string
	Body            *string
	State           string
	CommentCount    int
	Assignees       []string
	URL             string
	MetadataHash    string
	SourceCreatedAt *time.Time
	SourceUpdatedAt *time.Time
}

// InsertedIssue is one RETURNING row of a chunked insert
type InsertedIssue struct {
	ID     int64
	Number int
}
