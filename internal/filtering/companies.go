package filtering

import (
	"context"
	"strings"

	"github.com/spigell/job-autopilot/internal/jobs"
)

type excludedCompaniesFilter struct {
	companies []string
}

// NewExcludedCompanies removes postings from the listed companies. Matching is
// case-insensitive on a substring of the company name.
func NewExcludedCompanies(companies []string) Filter {
	return &excludedCompaniesFilter{companies: normalize(companies)}
}

func (f *excludedCompaniesFilter) Name() string { return "excluded_companies" }

func (f *excludedCompaniesFilter) IsEnabled() bool { return len(f.companies) > 0 }

func (f *excludedCompaniesFilter) Apply(_ context.Context, in []jobs.RawJob) ([]jobs.RawJob, Step, error) {
	out, step := keep(in, func(j jobs.RawJob) bool {
		company := strings.ToLower(strings.TrimSpace(j.Company))
		return company == "" || !containsAny(company, f.companies)
	})
	return out, step, nil
}

func (f *excludedCompaniesFilter) Status() Status {
	return Status{Name: f.Name(), Enabled: f.IsEnabled(), Details: map[string]string{"companies": strings.Join(f.companies, ",")}}
}
