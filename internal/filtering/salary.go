package filtering

import (
	"context"
	"strconv"

	"github.com/spigell/job-autopilot/internal/jobs"
)

type salaryFilter struct {
	min float64
}

// NewSalary drops postings whose advertised range tops out below minimum.
// Postings without salary data are kept.
func NewSalary(minimum float64) Filter {
	return &salaryFilter{min: minimum}
}

func (f *salaryFilter) Name() string { return "salary" }

func (f *salaryFilter) IsEnabled() bool { return f.min > 0 }

func (f *salaryFilter) Apply(_ context.Context, in []jobs.RawJob) ([]jobs.RawJob, Step, error) {
	out, step := keep(in, func(j jobs.RawJob) bool {
		top, ok := UpperSalary(j.Salary)
		return !ok || top >= f.min
	})
	return out, step, nil
}

func (f *salaryFilter) Status() Status {
	return Status{Name: f.Name(), Enabled: f.IsEnabled(), Details: map[string]string{"min": strconv.FormatFloat(f.min, 'f', 0, 64)}}
}

// UpperSalary returns the best known figure of a range.
func UpperSalary(s *jobs.Salary) (float64, bool) {
	if s == nil {
		return 0, false
	}
	switch {
	case s.Max > 0:
		return s.Max, true
	case s.Min > 0:
		return s.Min, true
	default:
		return 0, false
	}
}
