package jobs

import (
	"encoding/json"
	"testing"
	"time"
)

func TestNewIDIsStableSlug(t *testing.T) {
	cases := []struct {
		platform, externalID, want string
	}{
		{"adzuna", "12345", "adzuna-12345"},
		{"HackerNews", "item/4_2", "hackernews-item-4-2"},
		{"headhunter", "  77 ", "headhunter-77"},
	}
	for _, tc := range cases {
		if got := NewID(tc.platform, tc.externalID); got != tc.want {
			t.Fatalf("NewID(%q, %q) = %q, want %q", tc.platform, tc.externalID, got, tc.want)
		}
	}
}

func TestParseStatus(t *testing.T) {
	st, err := ParseStatus(" Applied ")
	if err != nil || st != StatusApplied {
		t.Fatalf("expected applied, got %q, %v", st, err)
	}
	if _, err := ParseStatus("hired"); err == nil {
		t.Fatal("expected error for unknown status")
	}
	if len(Statuses()) != 8 {
		t.Fatalf("expected 8 statuses")
	}
}

func TestScoredJobFlattensRawFields(t *testing.T) {
	job := ScoredJob{
		RawJob:     RawJob{ExternalID: "1", Platform: "adzuna", Title: "Go Engineer"},
		ID:         "adzuna-1",
		MatchScore: 80,
	}

	data, err := json.Marshal(job)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	var flat map[string]any
	if err := json.Unmarshal(data, &flat); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if flat["title"] != "Go Engineer" || flat["matchScore"] != float64(80) {
		t.Fatalf("unexpected document: %s", data)
	}

	if score, ok := job.Score(); !ok || score != 80 {
		t.Fatalf("expected scored job to report its score")
	}
	if _, ok := job.Raw().Score(); ok {
		t.Fatalf("raw job must not report a score")
	}
}

func TestJobSummaryAndIndexFind(t *testing.T) {
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	job := Job{
		ScoredJob: ScoredJob{RawJob: RawJob{ExternalID: "9", Platform: "hackernews", Title: "SRE"}, ID: "hackernews-9", MatchScore: 66},
		Status:    StatusSaved,
		SavedAt:   now,
		UpdatedAt: now,
	}

	idx := Index{Jobs: []Summary{{ID: "other"}, job.Summary()}}
	if pos := idx.Find("hackernews-9"); pos != 1 {
		t.Fatalf("expected position 1, got %d", pos)
	}
	if idx.Find("missing") != -1 {
		t.Fatalf("expected -1 for missing id")
	}
	if idx.Jobs[1].MatchScore != 66 || idx.Jobs[1].Status != StatusSaved {
		t.Fatalf("unexpected summary: %+v", idx.Jobs[1])
	}
}

func TestValidOnly(t *testing.T) {
	in := []RawJob{
		{ExternalID: "1", Platform: "adzuna", Title: "Go", URL: "https://example.com/1"},
		{ExternalID: "", Platform: "adzuna", Title: "missing id"},
		{ExternalID: "3", Platform: "adzuna", Title: "bad url", URL: "not a url"},
	}

	out, dropped := ValidOnly(in)
	if len(out) != 1 || dropped != 2 {
		t.Fatalf("expected 1 kept and 2 dropped, got %d/%d", len(out), dropped)
	}
}

func TestQueryTerms(t *testing.T) {
	q := Query{Text: "golang", Keywords: []string{"Golang", "kubernetes", " "}}
	got := q.Terms()
	if len(got) != 2 || got[0] != "golang" || got[1] != "kubernetes" {
		t.Fatalf("unexpected terms: %v", got)
	}
}
