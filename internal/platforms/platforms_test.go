package platforms

import (
	"compress/gzip"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/spigell/job-autopilot/internal/jobs"
)

type stubAdapter struct {
	available bool
	results   []jobs.RawJob
	calls     int
}

func (s *stubAdapter) Name() string      { return "stub" }
func (s *stubAdapter) IsAvailable() bool { return s.available }

func (s *stubAdapter) Search(context.Context, jobs.Query) ([]jobs.RawJob, error) {
	s.calls++
	return s.results, nil
}

func TestWithFiltersAppliesQueryAndValidation(t *testing.T) {
	stub := &stubAdapter{available: true, results: []jobs.RawJob{
		{ExternalID: "1", Platform: "stub", Title: "Go Engineer", Remote: true},
		{ExternalID: "2", Platform: "stub", Title: "Go Engineer", Remote: false},
		{ExternalID: "", Platform: "stub", Title: "broken", Remote: true},
		{ExternalID: "4", Platform: "stub", Title: "Go SRE", Remote: true},
	}}

	out, err := WithFilters(stub, zap.NewNop()).Search(context.Background(), jobs.Query{Remote: true, Limit: 1})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(out) != 1 || out[0].ExternalID != "1" {
		t.Fatalf("unexpected results: %+v", out)
	}
}

func TestWithFiltersRefusesUnavailable(t *testing.T) {
	stub := &stubAdapter{}

	_, err := WithFilters(stub, nil).Search(context.Background(), jobs.Query{})
	if !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
	if stub.calls != 0 {
		t.Fatalf("adapter should not be called")
	}

	if got := Available([]Adapter{stub, &stubAdapter{available: true}}); len(got) != 1 {
		t.Fatalf("expected one available adapter, got %d", len(got))
	}
}

func TestCacheExpires(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	c := NewCache[int](time.Minute)
	c.now = func() time.Time { return now }

	key := QueryKey(jobs.Query{Text: "go"})
	c.Set(key, 42)

	if v, ok := c.Get(key); !ok || v != 42 {
		t.Fatalf("expected cached value, got %v %v", v, ok)
	}

	now = now.Add(time.Minute)
	if _, ok := c.Get(key); ok {
		t.Fatal("expected entry to expire")
	}

	if QueryKey(jobs.Query{Text: "go"}) == QueryKey(jobs.Query{Text: "rust"}) {
		t.Fatal("different queries must have different keys")
	}
}

func TestGetJSONHandlesGzip(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("q") != "go" {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Encoding", "gzip")
		zw := gzip.NewWriter(w)
		_, _ = zw.Write([]byte(`{"value": 7}`))
		_ = zw.Close()
	}))
	defer srv.Close()

	var out struct {
		Value int `json:"value"`
	}
	err := GetJSON(context.Background(), srv.Client(), srv.URL, map[string][]string{"q": {"go"}}, nil, &out)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.Value != 7 {
		t.Fatalf("expected 7, got %d", out.Value)
	}

	err = GetJSON(context.Background(), srv.Client(), srv.URL, nil, nil, &out)
	if err == nil {
		t.Fatal("expected bad status error")
	}
}
