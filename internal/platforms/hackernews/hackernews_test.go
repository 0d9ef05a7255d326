package hackernews

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spigell/job-autopilot/internal/ai"
	"github.com/spigell/job-autopilot/internal/jobs"
	"github.com/spigell/job-autopilot/internal/storage"
)

const threadJSON = `{
  "id": 900,
  "children": [
    {"id": 901, "author": "acme", "created_at": "2026-03-02T15:00:00.000Z",
     "text": "Acme | Senior Go Engineer | Berlin | REMOTE<p>We build payments in Go. Apply at <a href=\"https://acme.example/jobs\">https://acme.example/jobs</a></p>"},
    {"id": 902, "author": "globex", "created_at": "2026-03-02T16:00:00.000Z",
     "text": "Globex | Data Scientist | London<p>Python and SQL.</p>"},
    {"id": 903, "author": "", "text": "[flagged]"},
    {"id": 904, "author": "someone", "text": "Is anyone hiring juniors this month?"}
  ]
}`

func newServer(t *testing.T, hits *atomic.Int32) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		switch {
		case r.URL.Path == "/search_by_date":
			assert.Equal(t, "story,author_whoishiring", r.URL.Query().Get("tags"))
			_, _ = w.Write([]byte(`{"hits": [{"objectID": "800", "title": "Ask HN: Who wants to be hired? (March 2026)"},
				{"objectID": "900", "title": "Ask HN: Who is hiring? (March 2026)"}]}`))
		case r.URL.Path == "/items/900":
			_, _ = w.Write([]byte(threadJSON))
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

type fakeCompleter struct {
	mu    sync.Mutex
	calls int
}

func (f *fakeCompleter) Complete(_ context.Context, _, user string, _ ai.Options) (string, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()

	var out extraction
	switch {
	case strings.HasPrefix(user, "Acme"):
		out = extraction{IsJobPosting: true, Title: "Senior Go Engineer", Company: "Acme", Location: "Berlin", Remote: true, SalaryMax: 120000, Currency: "EUR", URL: "https://acme.example/jobs", Tags: []string{"go"}}
	case strings.HasPrefix(user, "Globex"):
		return "", errors.New("model overloaded")
	default:
		out = extraction{IsJobPosting: false, Tags: []string{}}
	}
	data, _ := json.Marshal(out)
	return string(data), nil
}

func newAdapter(t *testing.T, srv *httptest.Server, store storage.Store, completer ai.Completer) *Adapter {
	t.Helper()
	a := New(Config{RatePerSecond: 1000}, store, completer, zap.NewNop())
	a.baseURL = srv.URL
	a.client = srv.Client()
	a.now = func() time.Time { return time.Date(2026, 3, 3, 9, 0, 0, 0, time.UTC) }
	return a
}

func TestSearchExtractsWithCompleterAndSkipsFailures(t *testing.T) {
	var hits atomic.Int32
	srv := newServer(t, &hits)
	completer := &fakeCompleter{}
	a := newAdapter(t, srv, nil, completer)

	got, err := a.Search(context.Background(), jobs.Query{})
	require.NoError(t, err)
	require.Len(t, got, 1)

	job := got[0]
	assert.Equal(t, "901", job.ExternalID)
	assert.Equal(t, Name, job.Platform)
	assert.Equal(t, "Senior Go Engineer", job.Title)
	assert.True(t, job.Remote)
	require.NotNil(t, job.Salary)
	assert.Equal(t, 120000.0, job.Salary.Max)
	assert.Contains(t, job.Description, "We build payments in Go.")
	assert.Equal(t, 3, completer.calls)
}

func TestSearchFallsBackToHeaderParsing(t *testing.T) {
	var hits atomic.Int32
	srv := newServer(t, &hits)
	a := newAdapter(t, srv, nil, nil)

	got, err := a.Search(context.Background(), jobs.Query{Text: "python"})
	require.NoError(t, err)
	require.Len(t, got, 1)

	assert.Equal(t, "Globex", got[0].Company)
	assert.Equal(t, "Data Scientist", got[0].Title)
	assert.Equal(t, "London", got[0].Location)
	assert.False(t, got[0].Remote)
	assert.Equal(t, itemURL+"902", got[0].URL)
}

func TestSearchUsesDurableCache(t *testing.T) {
	var hits atomic.Int32
	srv := newServer(t, &hits)
	store := storage.NewFSWith(afero.NewMemMapFs(), "/")
	a := newAdapter(t, srv, store, nil)

	first, err := a.Search(context.Background(), jobs.Query{})
	require.NoError(t, err)
	requests := hits.Load()

	second, err := a.Search(context.Background(), jobs.Query{})
	require.NoError(t, err)
	assert.Equal(t, requests, hits.Load(), "second search should be served from the cache")
	assert.Equal(t, len(first), len(second))

	cached, err := storage.Load[cachedThread](context.Background(), store, CacheKey)
	require.NoError(t, err)
	assert.Equal(t, "900", cached.ThreadID)

	a.now = func() time.Time { return time.Date(2026, 3, 4, 9, 0, 0, 0, time.UTC) }
	_, err = a.Search(context.Background(), jobs.Query{})
	require.NoError(t, err)
	assert.Greater(t, hits.Load(), requests, "expired cache should be refreshed")
}

type outageCompleter struct{}

func (outageCompleter) Complete(context.Context, string, string, ai.Options) (string, error) {
	return "", errors.New("503 service unavailable")
}

func TestSearchDoesNotCacheFailedExtraction(t *testing.T) {
	var hits atomic.Int32
	srv := newServer(t, &hits)
	store := storage.NewFSWith(afero.NewMemMapFs(), "/")
	a := newAdapter(t, srv, store, outageCompleter{})

	got, err := a.Search(context.Background(), jobs.Query{})
	require.NoError(t, err)
	assert.Empty(t, got)

	_, err = storage.Load[cachedThread](context.Background(), store, CacheKey)
	require.ErrorIs(t, err, storage.ErrNotFound, "an outage must not be cached")

	// The model recovers well within the cache TTL.
	a.completer = &fakeCompleter{}
	got, err = a.Search(context.Background(), jobs.Query{})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "901", got[0].ExternalID)

	// Globex still fails, so the thread stays uncached.
	_, err = storage.Load[cachedThread](context.Background(), store, CacheKey)
	require.ErrorIs(t, err, storage.ErrNotFound)

	a.completer = nil
	_, err = a.Search(context.Background(), jobs.Query{})
	require.NoError(t, err)
	cached, err := storage.Load[cachedThread](context.Background(), store, CacheKey)
	require.NoError(t, err)
	assert.Len(t, cached.Jobs, 2)
}

func TestExtractAllCountsUnprocessedAfterCancel(t *testing.T) {
	a := New(Config{BatchSize: 2, RatePerSecond: 1000}, nil, &fakeCompleter{}, zap.NewNop())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	comments := []comment{
		{ID: "1", Text: "Acme | Go | Berlin"},
		{ID: "2", Text: "Acme | Go | Paris"},
		{ID: "3", Text: "Acme | Go | Rome"},
		{ID: "4", Text: "Acme | Go | Oslo"},
	}
	got, failed := a.extractAll(ctx, comments)
	assert.Empty(t, got)
	assert.Equal(t, len(comments), failed)
}

func TestPlainTextKeepsParagraphs(t *testing.T) {
	text, err := plainText(`Acme | Go<p>Line one &amp; more</p><p>Line two</p>`)
	require.NoError(t, err)
	assert.Equal(t, "Acme | Go\nLine one & more\nLine two", text)
}

func TestParseHeaderRejectsFreeText(t *testing.T) {
	assert.Nil(t, parseHeader(comment{ID: "1", Text: "Looking for work"}, time.Now()))
}
