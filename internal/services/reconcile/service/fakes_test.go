package service

import (
	"context"
	"errors"
	"sort"
	"sync"

	gh "contribot/internal/adapters/github"
	"contribot/internal/core/work"
	"contribot/internal/modkit/repokit"
	perr "contribot/internal/platform/errors"
	"contribot/internal/platform/logger"
	"contribot/internal/platform/store"
	"contribot/internal/services/reconcile/domain"
	"contribot/internal/services/reconcile/repo"
)

type nopTx struct{}

func (nopTx) Exec(context.Context, string, ...any) (store.CommandTag, error) { return nil, nil }
func (nopTx) Query(context.Context, string, ...any) (store.Rows, error)      { return nil, nil }
func (nopTx) QueryRow(context.Context, string, ...any) store.Row            { return nil }
func (t nopTx) Tx(_ context.Context, fn func(store.RowQuerier) error) error { return fn(t) }

// memRepo keeps repositories and issues in maps keyed like the unique indexes
type memRepo struct {
	mu      sync.Mutex
	nextID  int64
	repos   map[string]domain.Repository
	issues  map[int64]map[int]domain.Issue
	inserts [][]int
	// failChunk makes the nth InsertIssues call (1-based) fail
	failChunk int
	writes    int
}

func newMemRepo() *memRepo {
	return &memRepo{repos: map[string]domain.Repository{}, issues: map[int64]map[int]domain.Issue{}}
}

func (m *memRepo) binder() repokit.Binder[repo.Repo] {
	return repokit.BindFunc[repo.Repo](func(repokit.Queryer) repo.Repo { return m })
}

func (m *memRepo) FindRepo(_ context.Context, owner, name string) (domain.Repository, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.repos[owner+"/"+name]
	return r, ok, nil
}

func (m *memRepo) InsertRepo(_ context.Context, r domain.Repository) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	m.writes++
	r.ID = m.nextID
	m.repos[r.Owner+"/"+r.Name] = r
	return r.ID, nil
}

func (m *memRepo) UpdateRepo(_ context.Context, r domain.Repository) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.writes++
	m.repos[r.Owner+"/"+r.Name] = r
	return nil
}

func (m *memRepo) ListRepos(_ context.Context, sourceID string) ([]domain.Repository, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Repository
	for _, r := range m.repos {
		if sourceID == "" || r.SourceID == sourceID {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *memRepo) IssueHashes(_ context.Context, repoID int64) (map[int]domain.Issue, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := map[int]domain.Issue{}
	for n, is := range m.issues[repoID] {
		out[n] = is
	}
	return out, nil
}

func (m *memRepo) OpenIssues(_ context.Context, repoID int64) ([]domain.Issue, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Issue
	for _, is := range m.issues[repoID] {
		if is.State == "open" {
			out = append(out, is)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Number < out[j].Number })
	return out, nil
}

func (m *memRepo) InsertIssues(_ context.Context, repoID int64, in []domain.Issue) ([]domain.InsertedIssue, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	nums := make([]int, len(in))
	for i, is := range in {
		nums[i] = is.Number
	}
	m.inserts = append(m.inserts, nums)
	if m.failChunk == len(m.inserts) {
		return nil, perr.New(perr.ErrorCodeDB, "chunk rejected")
	}
	if m.issues[repoID] == nil {
		m.issues[repoID] = map[int]domain.Issue{}
	}
	var out []domain.InsertedIssue
	for _, is := range in {
		if _, dup := m.issues[repoID][is.Number]; dup {
			continue
		}
		m.nextID++
		m.writes++
		is.ID = m.nextID
		m.issues[repoID][is.Number] = is
		out = append(out, domain.InsertedIssue{ID: is.ID, Number: is.Number})
	}
	return out, nil
}

func (m *memRepo) UpdateIssue(_ context.Context, is domain.Issue) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.writes++
	m.issues[is.RepositoryID][is.Number] = is
	return nil
}

func (m *memRepo) issue(repoID int64, n int) domain.Issue {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.issues[repoID][n]
}

type fakeGateway struct {
	langs    map[string]gh.Languages
	counts   map[string]int
	errs     map[string]error
	listing  map[string][]gh.Issue
	lookup   map[string]map[int]gh.Issue
	batchLog [][]int
}

func (f *fakeGateway) fail(slug string) error {
	if f.errs == nil {
		return nil
	}
	return f.errs[slug]
}

func (f *fakeGateway) FetchLanguages(_ context.Context, owner, name string) (gh.Languages, error) {
	if err := f.fail(owner + "/" + name); err != nil {
		return gh.Languages{}, err
	}
	return f.langs[owner+"/"+name], nil
}

func (f *fakeGateway) FetchIssueLabelCount(_ context.Context, owner, name, _ string) (int, error) {
	if err := f.fail(owner + "/" + name); err != nil {
		return 0, err
	}
	return f.counts[owner+"/"+name], nil
}

func (f *fakeGateway) FetchAllIssues(_ context.Context, owner, name, _, _ string) ([]gh.Issue, error) {
	if err := f.fail(owner + "/" + name); err != nil {
		return nil, err
	}
	return f.listing[owner+"/"+name], nil
}

func (f *fakeGateway) BatchFetchIssues(_ context.Context, owner, name string, numbers []int) (map[int]gh.Issue, error) {
	f.batchLog = append(f.batchLog, numbers)
	out := map[int]gh.Issue{}
	for _, n := range numbers {
		if it, ok := f.lookup[owner+"/"+name][n]; ok {
			out[n] = it
		}
	}
	return out, nil
}

type recQueue struct {
	mu    sync.Mutex
	items []work.Item
	err   error
}

func (q *recQueue) Send(_ context.Context, it work.Item) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.err != nil {
		return q.err
	}
	q.items = append(q.items, it)
	return nil
}

func (q *recQueue) count() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

func newSvc(m *memRepo, gw domain.Gateway, q domain.Enqueuer, chunk int) *Svc {
	return New(nopTx{}, m.binder(), gw, q, logger.Nop(), Config{InsertChunk: chunk})
}

var errBoom = errors.New("boom")
