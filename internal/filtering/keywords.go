package filtering

import (
	"context"
	"strings"

	"github.com/spigell/job-autopilot/internal/jobs"
)

type keywordsFilter struct {
	terms []string
}

// NewKeywords keeps postings mentioning at least one keyword in the title,
// description or tags.
func NewKeywords(keywords []string) Filter {
	return &keywordsFilter{terms: normalize(keywords)}
}

func (f *keywordsFilter) Name() string { return "keywords" }

func (f *keywordsFilter) IsEnabled() bool { return len(f.terms) > 0 }

func (f *keywordsFilter) Apply(_ context.Context, in []jobs.RawJob) ([]jobs.RawJob, Step, error) {
	out, step := keep(in, func(j jobs.RawJob) bool {
		text := strings.ToLower(j.Title + " " + j.Description + " " + strings.Join(j.Tags, " "))
		return containsAny(text, f.terms)
	})
	return out, step, nil
}

func (f *keywordsFilter) Status() Status {
	return Status{Name: f.Name(), Enabled: f.IsEnabled(), Details: map[string]string{"keywords": strings.Join(f.terms, ",")}}
}

func normalize(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v = strings.ToLower(strings.TrimSpace(v)); v != "" {
			out = append(out, v)
		}
	}
	return out
}

func containsAny(text string, terms []string) bool {
	for _, term := range terms {
		if strings.Contains(text, term) {
			return true
		}
	}
	return false
}
