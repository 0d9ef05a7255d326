package filtering

import (
	"context"

	"github.com/spigell/job-autopilot/internal/jobs"
)

type remoteFilter struct {
	required bool
}

// NewRemote drops on-site postings when remote work is required.
func NewRemote(required bool) Filter {
	return &remoteFilter{required: required}
}

func (f *remoteFilter) Name() string { return "remote" }

func (f *remoteFilter) IsEnabled() bool { return f.required }

func (f *remoteFilter) Apply(_ context.Context, in []jobs.RawJob) ([]jobs.RawJob, Step, error) {
	out, step := keep(in, func(j jobs.RawJob) bool { return j.Remote })
	return out, step, nil
}
