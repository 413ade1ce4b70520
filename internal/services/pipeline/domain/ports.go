package domain

import (
	"context"
	"time"

	"contribot/internal/adapters/sources"
	"contribot/internal/core/ref"
	annotatedom "contribot/internal/services/annotate/domain"
)

// Catalog lists and fetches the configured sources
type Catalog interface {
	Enabled() []sources.Source
	Fetch(ctx context.Context, s sources.Source) ([]ref.Repo, error)
}

// Drainer empties the annotation queue within a budget
type Drainer interface {
	Drain(ctx context.Context, batchSize int, budget time.Duration) (annotatedom.DrainResult, error)
}

// Continuations carries cursors of paused runs to whoever resumes them
type Continuations interface {
	Send(ctx context.Context, c Cursor) error
	// Take pops the oldest cursor; ok is false when none is waiting
	Take(ctx context.Context) (c Cursor, ok bool, err error)
}

// RunnerPort starts and resumes runs
type RunnerPort interface {
	Run(ctx context.Context, req Request) (Outcome, error)
	Resume(ctx context.Context, c Cursor) (Outcome, error)
}

// QueryPort reads run history
type QueryPort interface {
	GetRun(ctx context.Context, id string) (Run, error)
}

// RunLogger namespaces shipped log lines by run
type RunLogger interface {
	SetRun(runID string)
}
