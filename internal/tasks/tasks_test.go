package tasks

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/spf13/afero"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/spigell/job-autopilot/internal/applicant"
	"github.com/spigell/job-autopilot/internal/jobs"
	"github.com/spigell/job-autopilot/internal/profile"
	"github.com/spigell/job-autopilot/internal/scheduler"
	"github.com/spigell/job-autopilot/internal/search"
	"github.com/spigell/job-autopilot/internal/storage"
)

var testNow = time.Date(2026, 4, 1, 9, 0, 0, 0, time.UTC)

type fakeSearcher struct {
	*search.Engine
	queries map[string][]jobs.Query
	err     error
}

func (f *fakeSearcher) Search(_ context.Context, userID string, q jobs.Query) (*search.Result, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.queries[userID] = append(f.queries[userID], q)
	return &search.Result{Total: 1, New: 1}, nil
}

type fakeApplier struct {
	remaining int
	history   applicant.Index
	applied   []string
	panicFor  string
}

func (f *fakeApplier) ApplyToJob(_ context.Context, userID, jobID string) *applicant.Result {
	if userID == f.panicFor {
		panic("applicant exploded")
	}
	f.applied = append(f.applied, jobID)
	return &applicant.Result{Success: true, Method: applicant.MethodWebsite}
}

func (f *fakeApplier) RemainingQuota(context.Context, string, profile.Settings) (int, error) {
	return f.remaining, nil
}

func (f *fakeApplier) History(context.Context, string) (applicant.Index, error) {
	return f.history, nil
}

type fixture struct {
	store    storage.Store
	searcher *fakeSearcher
	applier  *fakeApplier
	pipeline *Pipeline
	waits    []time.Duration
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := storage.NewFSWith(afero.NewMemMapFs(), "/")
	f := &fixture{
		store:    store,
		searcher: &fakeSearcher{Engine: search.New(store, nil, nil, nil, nil), queries: map[string][]jobs.Query{}},
		applier:  &fakeApplier{remaining: 10},
	}
	f.pipeline = New(nil, &Deps{Store: store, Search: f.searcher, Applicant: f.applier, Logger: zap.NewNop()})
	f.pipeline.now = func() time.Time { return testNow }
	f.pipeline.wait = func(_ context.Context, d time.Duration) error {
		f.waits = append(f.waits, d)
		return nil
	}
	return f
}

func (f *fixture) put(t *testing.T, key string, v any) {
	t.Helper()
	if err := f.store.PutJSON(context.Background(), key, v); err != nil {
		t.Fatalf("put %s: %v", key, err)
	}
}

func (f *fixture) enableAutoApply(t *testing.T, userID string) {
	t.Helper()
	s := profile.DefaultSettings()
	s.AutoApply.Enabled = true
	f.put(t, storage.SettingsKey(userID), s)
}

func (f *fixture) index(t *testing.T, userID string, scores map[string]int) {
	t.Helper()
	var idx jobs.Index
	for id, score := range scores {
		idx.Jobs = append(idx.Jobs, jobs.Summary{ID: id, MatchScore: score, Status: jobs.StatusDiscovered})
	}
	f.put(t, storage.JobIndexKey(userID), idx)
}

func TestUsers(t *testing.T) {
	f := newFixture(t)
	f.put(t, "users/b/jobs/index.json", jobs.Index{})
	f.put(t, "users/a/profile.json", profile.Profile{})
	f.put(t, "users/a/settings.json", profile.Settings{})
	f.put(t, "cache/hackernews/who-is-hiring.json", struct{}{})

	users, err := Users(context.Background(), f.store)
	if err != nil {
		t.Fatalf("users: %v", err)
	}
	if len(users) != 2 || users[0] != "a" || users[1] != "b" {
		t.Fatalf("unexpected users %v", users)
	}
}

func TestAutoApplyEligibility(t *testing.T) {
	f := newFixture(t)
	f.enableAutoApply(t, "u1")
	f.index(t, "u1", map[string]int{"low": 65, "high": 85, "top": 95, "done": 99})
	f.applier.history = applicant.Index{Applications: []applicant.Entry{{JobID: "done", Status: applicant.StatusFailed}}}

	if err := f.pipeline.AutoApply(context.Background()); err != nil {
		t.Fatalf("auto apply: %v", err)
	}

	if len(f.applier.applied) != 2 || f.applier.applied[0] != "top" || f.applier.applied[1] != "high" {
		t.Fatalf("expected top then high, got %v", f.applier.applied)
	}
	if len(f.waits) != 1 {
		t.Fatalf("expected one pause between two applications, got %v", f.waits)
	}
	if d := f.waits[0]; d < DefaultApplyDelayMin || d > DefaultApplyDelayMax {
		t.Fatalf("pause %s outside the configured range", d)
	}
}

func TestApplyAllPacesEveryApplication(t *testing.T) {
	f := newFixture(t)
	targets := []jobs.Summary{{ID: "a"}, {ID: "b"}, {ID: "c"}}

	results, err := f.pipeline.ApplyAll(context.Background(), "u1", targets)
	if err != nil {
		t.Fatalf("apply all: %v", err)
	}
	if len(results) != 3 || len(f.applier.applied) != 3 || f.applier.applied[2] != "c" {
		t.Fatalf("expected three applications in order, got %v", f.applier.applied)
	}
	if len(f.waits) != 2 {
		t.Fatalf("expected a pause between each pair of applications, got %v", f.waits)
	}
	for _, d := range f.waits {
		if d < DefaultApplyDelayMin || d > DefaultApplyDelayMax {
			t.Fatalf("pause %s outside the configured range", d)
		}
	}
}

func TestApplyAllStopsWhenWaitIsCancelled(t *testing.T) {
	f := newFixture(t)
	f.pipeline.wait = func(context.Context, time.Duration) error { return context.Canceled }

	results, err := f.pipeline.ApplyAll(context.Background(), "u1", []jobs.Summary{{ID: "a"}, {ID: "b"}})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if len(results) != 1 || len(f.applier.applied) != 1 {
		t.Fatalf("expected only the first application, got %v", f.applier.applied)
	}
}

func TestAutoApplyRespectsQuota(t *testing.T) {
	f := newFixture(t)
	f.enableAutoApply(t, "u1")
	f.index(t, "u1", map[string]int{"a": 90, "b": 91, "c": 92})

	f.applier.remaining = 0
	_ = f.pipeline.AutoApply(context.Background())
	if len(f.applier.applied) != 0 {
		t.Fatalf("expected no applications with an exhausted quota, got %v", f.applier.applied)
	}

	f.applier.remaining = 2
	_ = f.pipeline.AutoApply(context.Background())
	if len(f.applier.applied) != 2 {
		t.Fatalf("expected two applications, got %v", f.applier.applied)
	}
}

func TestAutoApplySkipsDisabledUsers(t *testing.T) {
	f := newFixture(t)
	f.put(t, storage.SettingsKey("u1"), profile.DefaultSettings())
	f.index(t, "u1", map[string]int{"a": 90})

	_ = f.pipeline.AutoApply(context.Background())
	if len(f.applier.applied) != 0 {
		t.Fatal("auto-apply ran for a user who did not enable it")
	}
}

func TestAutoApplyIsolatesUsers(t *testing.T) {
	f := newFixture(t)
	core, logs := observer.New(zap.WarnLevel)
	f.pipeline.logger = zap.New(core)

	f.enableAutoApply(t, "a-boom")
	f.index(t, "a-boom", map[string]int{"x": 90})
	if err := f.store.UploadFile(context.Background(), storage.SettingsKey("b-broken"), []byte("{"), "application/json"); err != nil {
		t.Fatalf("upload: %v", err)
	}
	f.enableAutoApply(t, "c-good")
	f.index(t, "c-good", map[string]int{"y": 90})
	f.applier.panicFor = "a-boom"

	if err := f.pipeline.AutoApply(context.Background()); err != nil {
		t.Fatalf("auto apply: %v", err)
	}

	if len(f.applier.applied) != 1 || f.applier.applied[0] != "y" {
		t.Fatalf("expected the healthy user to be processed, got %v", f.applier.applied)
	}
	if logs.FilterMessage("user processing panicked").Len() != 1 {
		t.Fatal("expected the panic to be logged")
	}
	if logs.FilterMessage("user processing failed").Len() != 1 {
		t.Fatal("expected the broken settings to be logged")
	}
}

func TestAutoSearchRunsDueConfigurations(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	settings := profile.DefaultSettings()
	settings.AutoSearch.Enabled = true
	f.put(t, storage.SettingsKey("u1"), settings)

	recent := testNow.Add(-30 * time.Minute)
	stale := testNow.Add(-2 * time.Hour)
	f.put(t, storage.SearchConfigsKey("u1"), profile.SearchConfigurations{Configurations: []profile.SearchConfiguration{
		{ID: "fresh", Query: jobs.Query{Text: "fresh"}, Frequency: profile.Hourly, LastRunAt: &recent, Enabled: true},
		{ID: "stale", Query: jobs.Query{Text: "stale"}, Frequency: profile.Hourly, LastRunAt: &stale, Enabled: true},
		{ID: "never", Query: jobs.Query{Text: "never"}, Frequency: profile.Daily, Enabled: true},
		{ID: "off", Query: jobs.Query{Text: "off"}, Frequency: profile.Hourly, Enabled: false},
	}})

	f.put(t, storage.SettingsKey("u2"), profile.DefaultSettings())
	f.put(t, storage.SearchConfigsKey("u2"), profile.SearchConfigurations{Configurations: []profile.SearchConfiguration{
		{ID: "x", Query: jobs.Query{Text: "x"}, Frequency: profile.Hourly, Enabled: true},
	}})

	if err := f.pipeline.AutoSearch(ctx); err != nil {
		t.Fatalf("auto search: %v", err)
	}

	got := f.searcher.queries["u1"]
	if len(got) != 2 || got[0].Text != "stale" || got[1].Text != "never" {
		t.Fatalf("unexpected queries %+v", got)
	}
	if len(f.searcher.queries["u2"]) != 0 {
		t.Fatal("auto-search ran for a user who did not enable it")
	}

	configs, err := profile.LoadSearchConfigurations(ctx, f.store, "u1")
	if err != nil {
		t.Fatalf("load configs: %v", err)
	}
	if configs[1].LastRunAt == nil || !configs[1].LastRunAt.Equal(testNow) {
		t.Fatalf("expected stale config to be stamped, got %+v", configs[1].LastRunAt)
	}
	if !configs[0].LastRunAt.Equal(recent) {
		t.Fatal("fresh config must not be stamped")
	}
}

func TestAutoSearchFailureDoesNotStamp(t *testing.T) {
	f := newFixture(t)
	f.searcher.err = errors.New("all platforms down")

	settings := profile.DefaultSettings()
	settings.AutoSearch.Enabled = true
	f.put(t, storage.SettingsKey("u1"), settings)
	f.put(t, storage.SearchConfigsKey("u1"), profile.SearchConfigurations{Configurations: []profile.SearchConfiguration{
		{ID: "c", Query: jobs.Query{Text: "go"}, Frequency: profile.Hourly, Enabled: true},
	}})

	_ = f.pipeline.AutoSearch(context.Background())

	configs, _ := profile.LoadSearchConfigurations(context.Background(), f.store, "u1")
	if configs[0].LastRunAt != nil {
		t.Fatal("a failed search must stay due")
	}
}

func TestRegister(t *testing.T) {
	f := newFixture(t)
	s := scheduler.New(zap.NewNop(), nil)
	if err := f.pipeline.Register(s); err != nil {
		t.Fatalf("register: %v", err)
	}

	status := s.Status()
	if len(status) != 2 || status[0].Name != AutoSearch || status[1].Interval != AutoApplyInterval {
		t.Fatalf("unexpected tasks %+v", status)
	}
}

func TestEligibleIgnoresEnabledFlag(t *testing.T) {
	f := newFixture(t)
	f.put(t, storage.SettingsKey("u1"), profile.DefaultSettings())
	f.index(t, "u1", map[string]int{"a": 90, "b": 60})

	got, err := f.pipeline.Eligible(context.Background(), "u1")
	if err != nil {
		t.Fatalf("eligible: %v", err)
	}
	if len(got) != 1 || got[0].ID != "a" {
		t.Fatalf("unexpected eligible jobs %+v", got)
	}

	f.applier.remaining = 0
	got, _ = f.pipeline.Eligible(context.Background(), "u1")
	if len(got) != 0 {
		t.Fatalf("expected nothing with an exhausted quota, got %+v", got)
	}
}
