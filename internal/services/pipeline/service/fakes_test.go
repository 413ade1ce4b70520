package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	gh "contribot/internal/adapters/github"
	"contribot/internal/adapters/sources"
	"contribot/internal/core/ref"
	"contribot/internal/modkit/repokit"
	perr "contribot/internal/platform/errors"
	"contribot/internal/platform/logger"
	"contribot/internal/platform/store"
	annotatedom "contribot/internal/services/annotate/domain"
	"contribot/internal/services/pipeline/domain"
	"contribot/internal/services/pipeline/repo"
	reconciledom "contribot/internal/services/reconcile/domain"
)

type nopTx struct{}

func (nopTx) Exec(context.Context, string, ...any) (store.CommandTag, error) { return nil, nil }
func (nopTx) Query(context.Context, string, ...any) (store.Rows, error)      { return nil, nil }
func (nopTx) QueryRow(context.Context, string, ...any) store.Row            { return nil }
func (t nopTx) Tx(_ context.Context, fn func(store.RowQuerier) error) error { return fn(t) }

type memRuns struct {
	mu     sync.Mutex
	runs   map[string]domain.Run
	steps  map[string]domain.Totals
	states []domain.State
	// flakyInserts fails that many InsertStep calls before the row is written
	flakyInserts int
}

func newMemRuns() *memRuns {
	return &memRuns{runs: map[string]domain.Run{}, steps: map[string]domain.Totals{}}
}

func (m *memRuns) binder() repokit.Binder[repo.Repo] {
	return repokit.BindFunc[repo.Repo](func(repokit.Queryer) repo.Repo { return m })
}

func (m *memRuns) CreateRun(_ context.Context, r domain.Run) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.runs[r.ID] = r
	return nil
}

func (m *memRuns) ReopenRun(_ context.Context, id string, trigger domain.Trigger) (domain.Run, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.runs[id]
	if !ok || r.Status != domain.StatusPaused {
		return r, perr.NotFoundf("paused run %s", id)
	}
	r.Status, r.Trigger, r.Cursor, r.Reason, r.FinishedAt = domain.StatusRunning, trigger, nil, "", nil
	m.runs[id] = r
	return r, nil
}

func (m *memRuns) SetState(_ context.Context, id string, state domain.State) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r := m.runs[id]
	r.State = state
	m.runs[id] = r
	m.states = append(m.states, state)
	return nil
}

func (m *memRuns) FinishRun(_ context.Context, id string, state domain.State, status domain.Status, reason string, cur *domain.Cursor) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r := m.runs[id]
	now := time.Unix(100, 0)
	r.State, r.Status, r.Reason, r.Cursor, r.FinishedAt = state, status, reason, cur, &now
	m.runs[id] = r
	m.states = append(m.states, state)
	return nil
}

func (m *memRuns) GetRun(_ context.Context, id string) (domain.Run, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.runs[id]
	if !ok {
		return r, perr.NotFoundf("run %s", id)
	}
	return r, nil
}

func (m *memRuns) StepStats(_ context.Context, runID, key string) (domain.Totals, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	st, ok := m.steps[runID+"|"+key]
	return st, ok, nil
}

func (m *memRuns) InsertStep(_ context.Context, runID, key string, st domain.Totals) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.flakyInserts > 0 {
		m.flakyInserts--
		return false, perr.Unavailablef("ledger blip")
	}
	if _, ok := m.steps[runID+"|"+key]; ok {
		return false, nil
	}
	m.steps[runID+"|"+key] = st
	return true, nil
}

func (m *memRuns) AddTotals(_ context.Context, runID string, d domain.Totals) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r := m.runs[runID]
	r.Totals.Add(d)
	m.runs[runID] = r
	return nil
}

type fakeCatalog struct {
	srcs    []sources.Source
	refs    map[string][]ref.Repo
	errs    map[string]error
	fetched []string
}

func catalogOf(perSource map[string]int, order ...string) *fakeCatalog {
	c := &fakeCatalog{refs: map[string][]ref.Repo{}, errs: map[string]error{}}
	for _, id := range order {
		c.srcs = append(c.srcs, sources.Source{ID: id})
		for i := range perSource[id] {
			c.refs[id] = append(c.refs[id], ref.Repo{Owner: id, Name: fmt.Sprintf("r%d", i), SourceID: id, Label: "good first issue"})
		}
	}
	return c
}

func (c *fakeCatalog) Enabled() []sources.Source { return c.srcs }

func (c *fakeCatalog) Fetch(_ context.Context, s sources.Source) ([]ref.Repo, error) {
	c.fetched = append(c.fetched, s.ID)
	if err := c.errs[s.ID]; err != nil {
		return nil, err
	}
	return c.refs[s.ID], nil
}

// fakeRepos fails the first call reaching failAt (by absolute index) with err
type fakeRepos struct {
	failAt  map[string]int
	err     error
	calls   int
	flaky   int
	visited []string
}

func (f *fakeRepos) ProcessRepos(_ context.Context, refs []ref.Repo, opts reconciledom.Options) (reconciledom.RepoStats, error) {
	f.calls++
	if f.flaky > 0 {
		f.flaky--
		return reconciledom.RepoStats{}, perr.Unavailablef("database blip")
	}
	var st reconciledom.RepoStats
	for i := opts.StartAt; i < len(refs); i++ {
		r := refs[i]
		if at, ok := f.failAt[r.SourceID]; ok && at == i && f.err != nil {
			err := f.err
			f.err = nil
			if perr.IsResourceCeiling(err) {
				return st, &reconciledom.HaltError{Index: i, Err: err}
			}
			return st, err
		}
		st.Discovered++
		st.New++
		f.visited = append(f.visited, r.Slug())
	}
	return st, nil
}

type fakeIssues struct {
	repos   []reconciledom.Repository
	errAt   map[int64]error
	visited []int64
}

func reposN(n int) []reconciledom.Repository {
	out := make([]reconciledom.Repository, n)
	for i := range out {
		out[i] = reconciledom.Repository{ID: int64(i + 1), Owner: "o", Name: fmt.Sprintf("r%d", i), Label: "good first issue"}
	}
	return out
}

func (f *fakeIssues) ProcessRepoIssues(_ context.Context, r reconciledom.Repository, _ string) (reconciledom.IssueStats, error) {
	f.visited = append(f.visited, r.ID)
	if err := f.errAt[r.ID]; err != nil {
		delete(f.errAt, r.ID)
		// like the reconciler, a halted listing reports what it got through
		return reconciledom.IssueStats{Processed: 2, New: 1, Queued: 1}, err
	}
	return reconciledom.IssueStats{Processed: 2, New: 1, Unchanged: 1, Queued: 1}, nil
}

func (f *fakeIssues) DetectClosedIssues(context.Context, reconciledom.Repository, []gh.Issue) (int, error) {
	return 0, nil
}

func (f *fakeIssues) ReposForIssues(context.Context, string) ([]reconciledom.Repository, error) {
	return f.repos, nil
}

type fakeDrainer struct{ calls int }

func (d *fakeDrainer) Drain(context.Context, int, time.Duration) (annotatedom.DrainResult, error) {
	d.calls++
	return annotatedom.DrainResult{Batches: 1, Processed: 3, Success: 3}, nil
}

type fakeConts struct {
	sent []domain.Cursor
	err  error
}

func (c *fakeConts) Send(_ context.Context, cur domain.Cursor) error {
	if c.err != nil {
		return c.err
	}
	c.sent = append(c.sent, cur)
	return nil
}

func (c *fakeConts) Take(context.Context) (domain.Cursor, bool, error) {
	if len(c.sent) == 0 {
		return domain.Cursor{}, false, nil
	}
	cur := c.sent[0]
	c.sent = c.sent[1:]
	return cur, true, nil
}

type fakeCH struct{ rows [][]any }

func (f *fakeCH) Exec(context.Context, string, ...any) error { return nil }
func (f *fakeCH) Insert(_ context.Context, _ string, rows [][]any) error {
	f.rows = append(f.rows, rows...)
	return nil
}
func (f *fakeCH) Query(context.Context, string, ...any) (store.Rows, error) { return nil, nil }
func (f *fakeCH) Close() error                                             { return nil }

type fakeClock struct {
	t     time.Time
	step  time.Duration
	slept []time.Duration
}

func (c *fakeClock) Now() time.Time {
	c.t = c.t.Add(c.step)
	return c.t
}

func (c *fakeClock) Sleep(_ context.Context, d time.Duration) error {
	c.slept = append(c.slept, d)
	return nil
}

type harness struct {
	runs    *memRuns
	catalog *fakeCatalog
	repos   *fakeRepos
	issues  *fakeIssues
	drainer *fakeDrainer
	conts   *fakeConts
	ch      *fakeCH
	clock   *fakeClock
	logs    *runTags
}

func newHarness() *harness {
	return &harness{
		runs:    newMemRuns(),
		catalog: catalogOf(map[string]int{"alpha": 3, "beta": 3}, "alpha", "beta"),
		repos:   &fakeRepos{failAt: map[string]int{}},
		issues:  &fakeIssues{repos: reposN(3), errAt: map[int64]error{}},
		drainer: &fakeDrainer{},
		conts:   &fakeConts{},
		ch:      &fakeCH{},
		clock:   &fakeClock{t: time.Unix(0, 0)},
		logs:    &runTags{},
	}
}

// runTags records the run ids handed to the log sink
type runTags struct{ ids []string }

func (r *runTags) SetRun(id string) { r.ids = append(r.ids, id) }

func (h *harness) svc(cfg Config) *Svc {
	ids := 0
	d := Deps{
		DB:      nopTx{},
		Binder:  h.runs.binder(),
		Catalog: h.catalog,
		Repos:   h.repos,
		Issues:  h.issues,
		CH:      h.ch,
		RunLog:  h.logs,
		Log:     logger.Nop(),
	}
	if h.drainer != nil {
		d.Drainer = h.drainer
	}
	if h.conts != nil {
		d.Continuations = h.conts
	}
	return New(d, cfg,
		WithClock(h.clock.Now, h.clock.Sleep),
		WithIDs(func() string { ids++; return fmt.Sprintf("run-%d", ids) }),
	)
}
