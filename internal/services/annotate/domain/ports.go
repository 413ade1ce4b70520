package domain

import (
	"context"
	"time"

	"contribot/internal/adapters/summarizer"
	"contribot/internal/core/work"
)

// Queue accepts work from the reconcilers
type Queue interface {
	Send(ctx context.Context, item work.Item) error
}

// WorkSource is the consumer side of the annotation queue
type WorkSource interface {
	SelectPending(ctx context.Context, limit int) ([]work.Item, error)
	MarkProcessing(ctx context.Context, item work.Item) error
	MarkCompleted(ctx context.Context, item work.Item) error
	MarkFailed(ctx context.Context, item work.Item, reason string) error
	CountPending(ctx context.Context) (int, error)
}

// Backend is a queue usable from both ends
type Backend interface {
	Queue
	WorkSource
}

// Summarizer produces annotation content
type Summarizer interface {
	SummarizeRepo(ctx context.Context, owner, name string, languages []string) (summarizer.RepoSummary, error)
	AnalyzeIssue(ctx context.Context, owner, name, title, body string) (summarizer.IssueAnalysis, error)
}

// ProcessorPort drains the queue
type ProcessorPort interface {
	ProcessBatch(ctx context.Context, batchSize int) (BatchResult, error)
	Drain(ctx context.Context, batchSize int, budget time.Duration) (DrainResult, error)
}
