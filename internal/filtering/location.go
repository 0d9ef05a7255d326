package filtering

import (
	"context"
	"strings"

	"github.com/spigell/job-autopilot/internal/jobs"
)

type locationFilter struct {
	location string
}

// NewLocation keeps postings in the requested location. Remote postings and
// postings without a location always pass.
func NewLocation(location string) Filter {
	return &locationFilter{location: strings.ToLower(strings.TrimSpace(location))}
}

func (f *locationFilter) Name() string { return "location" }

func (f *locationFilter) IsEnabled() bool { return f.location != "" }

func (f *locationFilter) Apply(_ context.Context, in []jobs.RawJob) ([]jobs.RawJob, Step, error) {
	out, step := keep(in, func(j jobs.RawJob) bool {
		loc := strings.ToLower(strings.TrimSpace(j.Location))
		return j.Remote || loc == "" || strings.Contains(loc, f.location)
	})
	return out, step, nil
}

func (f *locationFilter) Status() Status {
	return Status{Name: f.Name(), Enabled: f.IsEnabled(), Details: map[string]string{"location": f.location}}
}
