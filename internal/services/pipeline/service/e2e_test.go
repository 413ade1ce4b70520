package service

import (
	"context"
	"slices"
	"sync"
	"testing"

	gh "contribot/internal/adapters/github"
	"contribot/internal/adapters/sources"
	"contribot/internal/adapters/summarizer"
	"contribot/internal/core/ref"
	"contribot/internal/core/work"
	"contribot/internal/modkit/repokit"
	perr "contribot/internal/platform/errors"
	"contribot/internal/platform/logger"
	kit "contribot/internal/platform/testkit"
	annotatedom "contribot/internal/services/annotate/domain"
	annotaterepo "contribot/internal/services/annotate/repo"
	annotatesvc "contribot/internal/services/annotate/service"
	"contribot/internal/services/pipeline/domain"
	reconciledom "contribot/internal/services/reconcile/domain"
	reconcilerepo "contribot/internal/services/reconcile/repo"
	reconcilesvc "contribot/internal/services/reconcile/service"
)

// world is one in-memory database shared by the reconcile and annotate stores
type world struct {
	mu          sync.Mutex
	repos       []reconciledom.Repository
	issues      []reconciledom.Issue
	annotations map[string]annotatedom.Annotation
	queue       []work.Item
	nextID      int64
}

func newWorld() *world { return &world{annotations: map[string]annotatedom.Annotation{}} }

func (w *world) id() int64 { w.nextID++; return w.nextID }

// reconcile store

func (w *world) FindRepo(_ context.Context, owner, name string) (reconciledom.Repository, bool, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	for _, r := range w.repos {
		if r.Owner == owner && r.Name == name {
			return r, true, nil
		}
	}
	return reconciledom.Repository{}, false, nil
}

func (w *world) InsertRepo(_ context.Context, r reconciledom.Repository) (int64, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	r.ID = w.id()
	w.repos = append(w.repos, r)
	return r.ID, nil
}

func (w *world) UpdateRepo(_ context.Context, r reconciledom.Repository) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	for i := range w.repos {
		if w.repos[i].ID == r.ID {
			w.repos[i] = r
		}
	}
	return nil
}

func (w *world) ListRepos(_ context.Context, sourceID string) ([]reconciledom.Repository, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	var out []reconciledom.Repository
	for _, r := range w.repos {
		if sourceID == "" || r.SourceID == sourceID {
			out = append(out, r)
		}
	}
	return out, nil
}

func (w *world) IssueHashes(_ context.Context, repoID int64) (map[int]reconciledom.Issue, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := map[int]reconciledom.Issue{}
	for _, is := range w.issues {
		if is.RepositoryID == repoID {
			out[is.Number] = is
		}
	}
	return out, nil
}

func (w *world) OpenIssues(_ context.Context, repoID int64) ([]reconciledom.Issue, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	var out []reconciledom.Issue
	for _, is := range w.issues {
		if is.RepositoryID == repoID && is.State == "open" {
			out = append(out, is)
		}
	}
	return out, nil
}

func (w *world) InsertIssues(_ context.Context, repoID int64, issues []reconciledom.Issue) ([]reconciledom.InsertedIssue, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := make([]reconciledom.InsertedIssue, 0, len(issues))
	for _, is := range issues {
		is.ID, is.RepositoryID = w.id(), repoID
		w.issues = append(w.issues, is)
		out = append(out, reconciledom.InsertedIssue{ID: is.ID, Number: is.Number})
	}
	return out, nil
}

func (w *world) UpdateIssue(_ context.Context, is reconciledom.Issue) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	for i := range w.issues {
		if w.issues[i].ID == is.ID {
			w.issues[i] = is
		}
	}
	return nil
}

// annotate store, wrapped so its method set does not clash with the reconcile one

type annotations struct{ w *world }

func (a annotations) LoadRepo(_ context.Context, id int64) (annotatedom.RepoTarget, error) {
	a.w.mu.Lock()
	defer a.w.mu.Unlock()
	for _, r := range a.w.repos {
		if r.ID == id {
			return annotatedom.RepoTarget{ID: r.ID, Owner: r.Owner, Name: r.Name, Languages: r.LanguagesOrdered}, nil
		}
	}
	return annotatedom.RepoTarget{}, perr.NotFoundf("repository %d", id)
}

func (a annotations) LoadIssue(_ context.Context, id int64) (annotatedom.IssueTarget, error) {
	return annotatedom.IssueTarget{}, perr.NotFoundf("issue %d", id)
}

func (a annotations) UpsertAnnotation(_ context.Context, an annotatedom.Annotation) error {
	a.w.mu.Lock()
	defer a.w.mu.Unlock()
	a.w.annotations[work.Item{Kind: an.EntityType, EntityID: an.EntityID}.String()] = an
	return nil
}

func (a annotations) GetAnnotation(_ context.Context, kind work.Kind, id int64) (annotatedom.Annotation, error) {
	a.w.mu.Lock()
	defer a.w.mu.Unlock()
	an, ok := a.w.annotations[work.Item{Kind: kind, EntityID: id}.String()]
	if !ok {
		return an, perr.NotFoundf("annotation %s:%d", kind, id)
	}
	return an, nil
}

// queue

type queue struct{ w *world }

func (q queue) Send(_ context.Context, it work.Item) error {
	q.w.mu.Lock()
	defer q.w.mu.Unlock()
	it.ID = work.Item{Kind: it.Kind, EntityID: it.EntityID}.String()
	q.w.queue = append(q.w.queue, it)
	return nil
}

func (q queue) SelectPending(_ context.Context, limit int) ([]work.Item, error) {
	q.w.mu.Lock()
	defer q.w.mu.Unlock()
	return slices.Clone(q.w.queue[:min(limit, len(q.w.queue))]), nil
}

func (q queue) MarkProcessing(context.Context, work.Item) error { return nil }

func (q queue) MarkCompleted(_ context.Context, it work.Item) error { return q.drop(it) }

func (q queue) MarkFailed(_ context.Context, it work.Item, _ string) error { return q.drop(it) }

func (q queue) CountPending(context.Context) (int, error) {
	q.w.mu.Lock()
	defer q.w.mu.Unlock()
	return len(q.w.queue), nil
}

func (q queue) drop(it work.Item) error {
	q.w.mu.Lock()
	defer q.w.mu.Unlock()
	q.w.queue = slices.DeleteFunc(q.w.queue, func(o work.Item) bool { return o.ID == it.ID })
	return nil
}

type goGateway struct{}

func (goGateway) FetchLanguages(context.Context, string, string) (gh.Languages, error) {
	return gh.Languages{Ordered: []string{"Go"}, Raw: map[string]int64{"Go": 4096}}, nil
}
func (goGateway) FetchIssueLabelCount(context.Context, string, string, string) (int, error) {
	return 0, nil
}
func (goGateway) FetchAllIssues(context.Context, string, string, string, string) ([]gh.Issue, error) {
	return nil, nil
}
func (goGateway) BatchFetchIssues(context.Context, string, string, []int) (map[int]gh.Issue, error) {
	return map[int]gh.Issue{}, nil
}

type testSummarizer struct{}

func (testSummarizer) SummarizeRepo(context.Context, string, string, []string) (summarizer.RepoSummary, error) {
	return summarizer.RepoSummary{Summary: "test"}, nil
}
func (testSummarizer) AnalyzeIssue(context.Context, string, string, string, string) (summarizer.IssueAnalysis, error) {
	return summarizer.IssueAnalysis{Intro: "test", Difficulty: 1, FirstSteps: []string{"read it"}}, nil
}

// payloadCatalog serves one source straight from a fixed json payload
type payloadCatalog struct {
	adapter *sources.HTTPAdapter
	payload []byte
}

func (c payloadCatalog) Enabled() []sources.Source { return []sources.Source{{ID: "list"}} }

func (c payloadCatalog) Fetch(context.Context, sources.Source) ([]ref.Repo, error) {
	return c.adapter.FromPayload(c.payload), nil
}

func TestListToAnnotation(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	log := logger.Nop()
	w := newWorld()

	rec := reconcilesvc.New(nopTx{},
		repokit.BindFunc[reconcilerepo.Repo](func(repokit.Queryer) reconcilerepo.Repo { return w }),
		goGateway{}, queue{w}, log, reconcilesvc.Config{})
	ann := annotatesvc.New(nopTx{},
		repokit.BindFunc[annotaterepo.Repo](func(repokit.Queryer) annotaterepo.Repo { return annotations{w} }),
		queue{w}, testSummarizer{}, log)

	runs := newMemRuns()
	svc := New(Deps{
		DB:      nopTx{},
		Binder:  runs.binder(),
		Catalog: payloadCatalog{adapter: sources.NewHTTPAdapter(sources.KindJSON, "list", "good first issue", sources.ParseJSON, nil, log), payload: []byte(`["acme/widget"]`)},
		Repos:   rec,
		Issues:  rec,
		Drainer: ann,
		Log:     log,
	}, Config{})

	out, err := svc.Run(ctx, domain.Request{Depth: reconciledom.DepthFull})
	kit.NoErr(t, err)
	kit.MustEqual(t, out.State, domain.StateDone, "state")
	kit.MustEqual(t, out.Totals.Repos.New, 1, "repos new")
	kit.MustEqual(t, out.Totals.Annotations.Success, 1, "annotated")

	kit.MustEqual(t, len(w.repos), 1, "stored repos")
	kit.MustEqual(t, w.repos[0].Slug(), "acme/widget", "slug")
	if !slices.Equal(w.repos[0].LanguagesOrdered, []string{"Go"}) {
		t.Fatalf("languages = %v", w.repos[0].LanguagesOrdered)
	}

	an, err := annotations{w}.GetAnnotation(ctx, work.KindRepo, w.repos[0].ID)
	kit.NoErr(t, err)
	if an.Summary == nil || *an.Summary != "test" {
		t.Fatalf("summary = %v", an.Summary)
	}
	kit.MustEqual(t, len(w.queue), 0, "queue drained")

	again, err := svc.Run(ctx, domain.Request{Depth: reconciledom.DepthFull})
	kit.NoErr(t, err)
	kit.MustEqual(t, again.Totals.Repos.Unchanged, 1, "second pass unchanged")
	kit.MustEqual(t, again.Totals.Annotations.Processed, 0, "nothing to annotate")
}
