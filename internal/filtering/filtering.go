// Package filtering narrows adapter results down to what a query asked for.
package filtering

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/spigell/job-autopilot/internal/jobs"
	"github.com/spigell/job-autopilot/internal/logger"
)

// Filter represents a single filtering step applied to postings.
type Filter interface {
	Name() string
	IsEnabled() bool
	Apply(ctx context.Context, in []jobs.RawJob) ([]jobs.RawJob, Step, error)
}

// Step describes the result of executing a filtering step.
type Step struct {
	Initial int
	Dropped int
	Left    int
}

// Status represents runtime information about a filter.
type Status struct {
	Name    string
	Enabled bool
	Details map[string]string
}

type statusProvider interface {
	Status() Status
}

// Run executes the supplied filters sequentially.
func Run(ctx context.Context, log *zap.Logger, steps []Filter, in []jobs.RawJob) ([]jobs.RawJob, error) {
	log = logger.OrNop(log)
	if ce := log.Check(zap.DebugLevel, "filter chain"); ce != nil {
		ce.Write(zap.Any("filters", Describe(steps)), zap.Int("postings", len(in)))
	}

	for _, step := range steps {
		if !step.IsEnabled() {
			log.Debug("filter disabled", zap.String("name", step.Name()))
			continue
		}

		next, info, err := step.Apply(ctx, in)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", step.Name(), err)
		}

		if info.Dropped > 0 {
			log.Info("filter step",
				zap.String("name", step.Name()),
				zap.Int("initial", info.Initial),
				zap.Int("dropped", info.Dropped),
				zap.Int("left", info.Left),
			)
		}

		in = next
	}

	return in, nil
}

// Describe returns status entries for the provided filters.
func Describe(steps []Filter) []Status {
	statuses := make([]Status, 0, len(steps))
	for _, step := range steps {
		if reporter, ok := step.(statusProvider); ok {
			statuses = append(statuses, reporter.Status())
			continue
		}
		statuses = append(statuses, Status{Name: step.Name(), Enabled: step.IsEnabled()})
	}
	return statuses
}

// ForQuery builds the standard chain for q. Steps without criteria are disabled.
func ForQuery(q jobs.Query) []Filter {
	return []Filter{
		NewKeywords(q.Keywords),
		NewRemote(q.Remote),
		NewLocation(q.Location),
		NewSalary(q.MinSalary),
		NewExcludedCompanies(q.ExcludedCompanies),
	}
}

// keep applies pred and reports the step counts.
func keep(in []jobs.RawJob, pred func(jobs.RawJob) bool) ([]jobs.RawJob, Step) {
	out := make([]jobs.RawJob, 0, len(in))
	for _, j := range in {
		if pred(j) {
			out = append(out, j)
		}
	}
	return out, Step{Initial: len(in), Dropped: len(in) - len(out), Left: len(out)}
}
