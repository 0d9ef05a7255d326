package applicant

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/spf13/afero"
	"go.uber.org/zap"

	"github.com/spigell/job-autopilot/internal/documents"
	"github.com/spigell/job-autopilot/internal/formfill"
	"github.com/spigell/job-autopilot/internal/jobs"
	"github.com/spigell/job-autopilot/internal/notify"
	"github.com/spigell/job-autopilot/internal/profile"
	"github.com/spigell/job-autopilot/internal/storage"
)

var testNow = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

type fakeBrowser struct {
	mu       sync.Mutex
	present  map[string]bool
	failing  map[string]error
	success  bool
	message  string
	panicOn  string
	typed    map[string]string
	uploads  []string
	selected map[string]string
	clicked  []string
	closed   bool
}

func newFakeBrowser(present ...string) *fakeBrowser {
	b := &fakeBrowser{
		present:  map[string]bool{},
		failing:  map[string]error{},
		typed:    map[string]string{},
		selected: map[string]string{},
	}
	for _, sel := range present {
		b.present[sel] = true
	}
	return b
}

func (b *fakeBrowser) step(name, selector string) error {
	if b.panicOn == name {
		panic("browser crashed during " + name)
	}
	return b.failing[selector]
}

func (b *fakeBrowser) Navigate(context.Context, string) error { return b.step("navigate", "") }
func (b *fakeBrowser) HumanScroll(context.Context) error      { return nil }

func (b *fakeBrowser) HumanClick(_ context.Context, sel string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.clicked = append(b.clicked, sel)
	return b.step("click", sel)
}

func (b *fakeBrowser) HumanType(_ context.Context, sel, text string) error {
	if err := b.step("type", sel); err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.typed[sel] = text
	return nil
}

func (b *fakeBrowser) SmartWait(context.Context, time.Duration) error { return nil }

func (b *fakeBrowser) UploadFile(_ context.Context, sel string, paths ...string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.uploads = append(b.uploads, paths...)
	return b.step("upload", sel)
}

func (b *fakeBrowser) SelectOption(_ context.Context, sel, value string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.selected[sel] = value
	return b.step("select", sel)
}

func (b *fakeBrowser) Check(_ context.Context, sel string) error { return b.step("check", sel) }

func (b *fakeBrowser) Screenshot(context.Context) ([]byte, error) { return []byte("png"), nil }

func (b *fakeBrowser) ExtractFormHTML(context.Context) (string, error) {
	return `<form><input id="name"></form>`, b.step("extract", "")
}

func (b *fakeBrowser) DetectSuccess(context.Context) (bool, string, error) {
	return b.success, b.message, nil
}

func (b *fakeBrowser) FindFirst(_ context.Context, candidates []string) (string, bool, error) {
	for _, c := range candidates {
		if b.present[c] {
			return c, true, nil
		}
	}
	return "", false, nil
}

func (b *fakeBrowser) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
}

type fakeForms struct{ analysis formfill.Analysis }

func (f fakeForms) AnalyzeForm(context.Context, string, *profile.Profile, jobs.Job) *formfill.Analysis {
	a := f.analysis
	return &a
}

type fakeJobs struct {
	mu      sync.Mutex
	jobs    map[string]*jobs.Job
	updates map[string]jobs.Status
}

func (f *fakeJobs) GetJob(_ context.Context, _, id string) (*jobs.Job, error) {
	j, ok := f.jobs[id]
	if !ok {
		return nil, fmt.Errorf("job %s: %w", id, storage.ErrNotFound)
	}
	cp := *j
	return &cp, nil
}

func (f *fakeJobs) UpdateJobStatus(_ context.Context, _, id string, status jobs.Status, _ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.updates[id] = status
	return nil
}

type fakeMail struct {
	connected bool
	raw       []byte
	recipient string
}

func (m *fakeMail) Connected(string) bool { return m.connected }

func (m *fakeMail) Submit(_ context.Context, _, recipient string, raw []byte) error {
	m.recipient, m.raw = recipient, raw
	return nil
}

type recordingNotifier struct{ sent []notify.Notification }

func (r *recordingNotifier) Send(_ context.Context, _ string, n notify.Notification) {
	r.sent = append(r.sent, n)
}

type harness struct {
	ap       *Applicant
	store    storage.Store
	fs       afero.Fs
	browser  *fakeBrowser
	jobs     *fakeJobs
	mail     *fakeMail
	notifier *recordingNotifier
	launches int
}

func newHarness(t *testing.T, job jobs.Job, analysis formfill.Analysis) *harness {
	t.Helper()
	ctx := context.Background()

	store := storage.NewFSWith(afero.NewMemMapFs(), "/")
	fs := afero.NewMemMapFs()
	if err := fs.MkdirAll("/work", 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}

	p := profile.Profile{
		UserID:   "u1",
		Contact:  profile.Contact{FullName: "Ada Lovelace", Email: "ada@example.com"},
		Headline: "backend engineer",
		Skills:   []profile.Skill{{Name: "Go"}, {Name: "Postgres"}},
	}
	if err := store.PutJSON(ctx, storage.ProfileKey("u1"), p); err != nil {
		t.Fatalf("put profile: %v", err)
	}

	docs := documents.New(store, fs)
	if _, err := docs.Add(ctx, "u1", documents.TypeCV, "", "cv.pdf", "application/pdf", []byte("%PDF")); err != nil {
		t.Fatalf("add cv: %v", err)
	}

	h := &harness{
		store:    store,
		fs:       fs,
		browser:  newFakeBrowser("a[href*='apply']", "button[type='submit']"),
		jobs:     &fakeJobs{jobs: map[string]*jobs.Job{job.ID: &job}, updates: map[string]jobs.Status{}},
		mail:     &fakeMail{},
		notifier: &recordingNotifier{},
	}
	h.ap = New(&Config{TempDir: "/work"}, &Deps{
		Store:     store,
		Jobs:      h.jobs,
		Documents: docs,
		Forms:     fakeForms{analysis: analysis},
		Launch: func(context.Context) (Browser, error) {
			h.launches++
			return h.browser, nil
		},
		Mail:     h.mail,
		Notifier: h.notifier,
		Logger:   zap.NewNop(),
		FS:       fs,
	})
	h.ap.now = func() time.Time { return testNow }
	return h
}

func (h *harness) assertCleanedUp(t *testing.T) {
	t.Helper()
	entries, err := afero.ReadDir(h.fs, "/work")
	if err != nil {
		t.Fatalf("read temp root: %v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("expected no temp files left, found %d entries", len(entries))
	}
	if h.launches > 0 && !h.browser.closed {
		t.Fatal("expected browser to be closed")
	}
}

func (h *harness) history(t *testing.T) Index {
	t.Helper()
	idx, err := h.ap.History(context.Background(), "u1")
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	return idx
}

func websiteJob() jobs.Job {
	j := jobs.Job{Status: jobs.StatusDiscovered}
	j.ID = "adzuna-1"
	j.Platform = "adzuna"
	j.Title = "Go Engineer"
	j.Company = "Acme"
	j.URL = "https://boards.greenhouse.io/acme/jobs/1"
	return j
}

func fullAnalysis() formfill.Analysis {
	return formfill.Analysis{
		Fields: []formfill.Field{
			{Selector: "#name", Type: formfill.TypeText, Value: "Ada Lovelace", Confidence: 0.95},
			{Selector: "#resume", Type: formfill.TypeFile, Value: formfill.UploadCV, Confidence: 0.9},
			{Selector: "#letter", Type: formfill.TypeFile, Value: formfill.UploadCoverLetter, Confidence: 0.9},
			{Selector: "#country", Type: formfill.TypeSelect, Value: "Germany", Confidence: 0.8},
			{Selector: "#terms", Type: formfill.TypeCheckbox, Value: "true", Confidence: 0.9},
			{Selector: "#broken", Type: formfill.TypeText, Value: "x", Confidence: 0.9},
			{Selector: "#guess", Type: formfill.TypeText, Value: "maybe", Confidence: 0.1},
		},
		CustomAnswers: []formfill.CustomAnswer{
			{Selector: "#why", Question: "Why us?", Answer: "I like Go."},
		},
	}
}

func TestDetectMethod(t *testing.T) {
	cases := []struct {
		name        string
		url         string
		description string
		want        Method
		target      string
	}{
		{name: "nothing", want: MethodManual},
		{name: "ats host", url: "https://boards.greenhouse.io/acme/jobs/1", want: MethodWebsite, target: "https://boards.greenhouse.io/acme/jobs/1"},
		{name: "lever", url: "https://jobs.lever.co/acme/123", want: MethodWebsite, target: "https://jobs.lever.co/acme/123"},
		{name: "careers page", url: "https://acme.com/careers/42", want: MethodWebsite, target: "https://acme.com/careers/42"},
		{name: "linkedin", url: "https://www.linkedin.com/jobs/view/1", want: MethodManual, target: "https://www.linkedin.com/jobs/view/1"},
		{name: "relative url", url: "/jobs/1", want: MethodManual},
		{
			name:        "email instruction wins",
			url:         "https://acme.com/jobs/1",
			description: "Interested? Please send your CV to jobs@acme.io.",
			want:        MethodEmail,
			target:      "jobs@acme.io",
		},
		{name: "bare address is not an instruction", description: "Questions: hr@acme.io", want: MethodManual},
		{name: "to apply, email", description: "To apply, email careers@acme.com", want: MethodEmail, target: "careers@acme.com"},
		{
			name:        "apply by emailing",
			description: "Interested? Apply by emailing careers@acme.com with your resume",
			want:        MethodEmail,
			target:      "careers@acme.com",
		},
		{name: "email address then cv", description: "Email jobs@acme.io with your CV and salary range.", want: MethodEmail, target: "jobs@acme.io"},
		{name: "hn item page", url: "https://news.ycombinator.com/item?id=902", want: MethodManual, target: "https://news.ycombinator.com/item?id=902"},
		{
			name:        "ats link beats aggregator url",
			url:         "https://www.adzuna.de/land/ad/123",
			description: "Apply here: https://jobs.lever.co/acme/42, thanks.",
			want:        MethodWebsite,
			target:      "https://jobs.lever.co/acme/42",
		},
		{
			name:        "ats link without posting url",
			description: "See https://boards.greenhouse.io/acme/jobs/7",
			want:        MethodWebsite,
			target:      "https://boards.greenhouse.io/acme/jobs/7",
		},
		{
			name:        "ats url is kept over other ats links",
			url:         "https://jobs.lever.co/acme/1",
			description: "Old posting: https://boards.greenhouse.io/acme/jobs/7",
			want:        MethodWebsite,
			target:      "https://jobs.lever.co/acme/1",
		},
	}

	for _, tc := range cases {
		j := jobs.Job{}
		j.URL = tc.url
		j.Description = tc.description
		got, target := DetectMethod(j)
		if got != tc.want || target != tc.target {
			t.Fatalf("%s: DetectMethod = (%s, %q), want (%s, %q)", tc.name, got, target, tc.want, tc.target)
		}
	}
}

func TestIndexSubmittedOn(t *testing.T) {
	today := testNow
	yesterday := testNow.Add(-24 * time.Hour)
	idx := Index{Applications: []Entry{
		{JobID: "a", Status: StatusSubmitted, AppliedAt: &today},
		{JobID: "b", Status: StatusSubmitted, AppliedAt: &yesterday},
		{JobID: "c", Status: StatusFailed},
	}}
	if got := idx.SubmittedOn(testNow); got != 1 {
		t.Fatalf("expected 1 submission today, got %d", got)
	}
	if !idx.Attempted("c") || idx.Attempted("d") {
		t.Fatal("unexpected Attempted result")
	}
}

func TestApplyOnWebsite(t *testing.T) {
	h := newHarness(t, websiteJob(), fullAnalysis())
	h.browser.success = true
	h.browser.message = "Thanks for applying!"
	h.browser.failing["#broken"] = errors.New("element detached")

	res := h.ap.ApplyToJob(context.Background(), "u1", "adzuna-1")

	if !res.Success || res.Method != MethodWebsite {
		t.Fatalf("expected website success, got %+v", res)
	}
	if res.ConfirmationMessage != "Thanks for applying!" {
		t.Fatalf("unexpected confirmation %q", res.ConfirmationMessage)
	}
	if res.Fill == nil || res.Fill.Filled != 5 || res.Fill.Failed != 1 || res.Fill.Skipped != 2 {
		t.Fatalf("unexpected fill report %+v", res.Fill)
	}
	if len(h.browser.uploads) != 1 || !strings.HasSuffix(h.browser.uploads[0], "cv.pdf") {
		t.Fatalf("expected the cv to be uploaded, got %v", h.browser.uploads)
	}
	if h.browser.selected["#country"] != "Germany" || h.browser.typed["#why"] != "I like Go." {
		t.Fatalf("fields not filled: selected=%v typed=%v", h.browser.selected, h.browser.typed)
	}
	if h.jobs.updates["adzuna-1"] != jobs.StatusApplied {
		t.Fatalf("expected job to be marked applied, got %v", h.jobs.updates)
	}

	idx := h.history(t)
	if len(idx.Applications) != 1 || idx.Applications[0].Status != StatusSubmitted {
		t.Fatalf("unexpected history %+v", idx)
	}
	app, err := storage.Load[Application](context.Background(), h.store, storage.ApplicationKey("u1", res.ApplicationID))
	if err != nil || app.CVDocumentID == "" || app.AppliedAt == nil {
		t.Fatalf("unexpected application record %+v (%v)", app, err)
	}
	if len(h.notifier.sent) != 1 || h.notifier.sent[0].Kind != notify.KindApplicationSubmitted {
		t.Fatalf("unexpected notifications %+v", h.notifier.sent)
	}
	if n := h.notifier.sent[0]; n.Priority != notify.PriorityNormal || n.Data["platform"] == "" {
		t.Fatalf("expected a normal priority notification with job data, got %+v", n)
	}
	h.assertCleanedUp(t)
}

func TestApplyOnWebsiteWithoutConfirmation(t *testing.T) {
	h := newHarness(t, websiteJob(), fullAnalysis())

	res := h.ap.ApplyToJob(context.Background(), "u1", "adzuna-1")

	if res.Success || res.ScreenshotKey == "" {
		t.Fatalf("expected failure with screenshot, got %+v", res)
	}
	if _, ok := h.jobs.updates["adzuna-1"]; ok {
		t.Fatal("job status must not change on failure")
	}
	if idx := h.history(t); len(idx.Applications) != 1 || idx.Applications[0].Status != StatusFailed {
		t.Fatalf("expected failed record, got %+v", idx)
	}
	h.assertCleanedUp(t)
}

func TestApplyManualReview(t *testing.T) {
	h := newHarness(t, websiteJob(), formfill.Analysis{RequiresManualReview: true, Warnings: []string{"captcha"}})

	res := h.ap.ApplyToJob(context.Background(), "u1", "adzuna-1")

	if res.Success || res.Method != MethodManual || !strings.Contains(res.Error, "captcha") {
		t.Fatalf("expected manual review failure, got %+v", res)
	}
	if res.ScreenshotKey != storage.ScreenshotKey("u1", res.ApplicationID, "manual-review") {
		t.Fatalf("unexpected screenshot key %q", res.ScreenshotKey)
	}
	if len(h.browser.clicked) != 1 {
		t.Fatalf("only the apply control may be clicked, got %v", h.browser.clicked)
	}
	if len(h.notifier.sent) != 1 || h.notifier.sent[0].Kind != notify.KindManualReview || h.notifier.sent[0].Link == "" {
		t.Fatalf("expected manual review notification with link, got %+v", h.notifier.sent)
	}
	if n := h.notifier.sent[0]; n.Priority != notify.PriorityHigh || n.Data["method"] != string(MethodManual) {
		t.Fatalf("expected a high priority manual review, got %+v", n)
	}
	h.assertCleanedUp(t)
}

func TestApplyWithoutSubmitControl(t *testing.T) {
	h := newHarness(t, websiteJob(), fullAnalysis())
	delete(h.browser.present, "button[type='submit']")

	res := h.ap.ApplyToJob(context.Background(), "u1", "adzuna-1")

	if res.Success || res.Error != "no submit control found" || res.ScreenshotKey == "" {
		t.Fatalf("unexpected result %+v", res)
	}
	h.assertCleanedUp(t)
}

func TestApplyRecoversFromPanic(t *testing.T) {
	h := newHarness(t, websiteJob(), fullAnalysis())
	h.browser.panicOn = "navigate"

	res := h.ap.ApplyToJob(context.Background(), "u1", "adzuna-1")

	if res.Success || !strings.Contains(res.Error, "unexpected failure") {
		t.Fatalf("expected recovered failure, got %+v", res)
	}
	if res.ScreenshotKey == "" {
		t.Fatal("expected a diagnostic screenshot")
	}
	if idx := h.history(t); len(idx.Applications) != 1 {
		t.Fatalf("expected the attempt to be recorded, got %+v", idx)
	}
	h.assertCleanedUp(t)
}

func TestApplyQuotaExceeded(t *testing.T) {
	h := newHarness(t, websiteJob(), fullAnalysis())
	ctx := context.Background()

	var idx Index
	for i := range 10 {
		at := testNow.Add(-time.Duration(i) * time.Minute)
		idx.Applications = append(idx.Applications, Entry{ID: fmt.Sprint(i), Status: StatusSubmitted, AppliedAt: &at})
	}
	if err := h.store.PutJSON(ctx, storage.ApplicationIndexKey("u1"), idx); err != nil {
		t.Fatalf("put index: %v", err)
	}

	res := h.ap.ApplyToJob(ctx, "u1", "adzuna-1")

	if res.Success || res.Method != MethodManual || !strings.Contains(res.Error, "limit of 10") {
		t.Fatalf("expected quota failure, got %+v", res)
	}
	if h.launches != 0 {
		t.Fatal("browser must not start when the quota is exhausted")
	}
	if got := h.history(t); len(got.Applications) != 10 {
		t.Fatalf("quota rejections are not recorded, got %d entries", len(got.Applications))
	}
}

func TestApplyUnknownJob(t *testing.T) {
	h := newHarness(t, websiteJob(), fullAnalysis())

	res := h.ap.ApplyToJob(context.Background(), "u1", "missing")

	if res.Success || res.Error == "" {
		t.Fatalf("expected failure, got %+v", res)
	}
	if len(h.notifier.sent) != 0 {
		t.Fatal("no notification expected for an unknown job")
	}
}

func emailJob() jobs.Job {
	j := websiteJob()
	j.ID = "hackernews-9"
	j.URL = ""
	j.Description = "We are hiring. Email your resume to jobs@acme.io"
	return j
}

func TestApplyByEmail(t *testing.T) {
	h := newHarness(t, emailJob(), formfill.Analysis{})
	h.mail.connected = true
	settings := profile.DefaultSettings()
	settings.Email = profile.Email{Connected: true, Address: "ada@mail.example.com"}
	if err := h.store.PutJSON(context.Background(), storage.SettingsKey("u1"), settings); err != nil {
		t.Fatalf("put settings: %v", err)
	}

	res := h.ap.ApplyToJob(context.Background(), "u1", "hackernews-9")

	if !res.Success || res.Method != MethodEmail {
		t.Fatalf("expected email success, got %+v", res)
	}
	if h.mail.recipient != "jobs@acme.io" {
		t.Fatalf("unexpected recipient %q", h.mail.recipient)
	}
	raw := string(h.mail.raw)
	for _, want := range []string{"Application for Go Engineer", "ada@mail.example.com", "cv.pdf"} {
		if !strings.Contains(raw, want) {
			t.Fatalf("email is missing %q:\n%s", want, raw)
		}
	}
	if h.launches != 0 {
		t.Fatal("email applications must not start a browser")
	}
	h.assertCleanedUp(t)
}

func TestApplyByEmailNotConnected(t *testing.T) {
	h := newHarness(t, emailJob(), formfill.Analysis{})

	res := h.ap.ApplyToJob(context.Background(), "u1", "hackernews-9")

	if res.Success || res.Method != MethodManual || !strings.Contains(res.Error, "jobs@acme.io") {
		t.Fatalf("expected manual result naming the address, got %+v", res)
	}
	h.assertCleanedUp(t)
}

func TestFillReportFold(t *testing.T) {
	r := FillReport{}
	r = r.add(FieldOutcome{Filled: true})
	r = r.add(FieldOutcome{Skipped: true})
	r = r.add(FieldOutcome{Error: "boom"})
	if r.Filled != 1 || r.Skipped != 1 || r.Failed != 1 || len(r.Fields) != 3 {
		t.Fatalf("unexpected report %+v", r)
	}
}
