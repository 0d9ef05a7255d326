// Package platforms defines the job source contract and the pieces shared by
// every adapter: query-keyed caching, JSON fetching and result filtering.
package platforms

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/spigell/job-autopilot/internal/filtering"
	"github.com/spigell/job-autopilot/internal/jobs"
	"github.com/spigell/job-autopilot/internal/logger"
)

// ErrUnavailable is returned by adapters that are missing credentials.
var ErrUnavailable = errors.New("platform is not available")

// Adapter fetches postings from one external source.
type Adapter interface {
	Name() string
	IsAvailable() bool
	Search(ctx context.Context, q jobs.Query) ([]jobs.RawJob, error)
}

type filtered struct {
	Adapter
	logger *zap.Logger
}

// WithFilters wraps a so its results pass through the query filter chain
// and posting validation.
func WithFilters(a Adapter, log *zap.Logger) Adapter {
	return &filtered{
		Adapter: a,
		logger:  logger.WithFields(log, zap.String(logger.FieldPlatform, a.Name())),
	}
}

func (f *filtered) Search(ctx context.Context, q jobs.Query) ([]jobs.RawJob, error) {
	if !f.IsAvailable() {
		return nil, fmt.Errorf("%s: %w", f.Name(), ErrUnavailable)
	}

	raw, err := f.Adapter.Search(ctx, q)
	if err != nil {
		return nil, err
	}

	valid, dropped := jobs.ValidOnly(raw)
	if dropped > 0 {
		f.logger.Warn("dropping invalid postings", zap.Int("dropped", dropped))
	}

	out, err := filtering.Run(ctx, f.logger, filtering.ForQuery(q), valid)
	if err != nil {
		return nil, fmt.Errorf("%s: filter results: %w", f.Name(), err)
	}

	if q.Limit > 0 && len(out) > q.Limit {
		out = out[:q.Limit]
	}
	return out, nil
}

// Available returns the adapters that report themselves usable.
func Available(adapters []Adapter) []Adapter {
	out := make([]Adapter, 0, len(adapters))
	for _, a := range adapters {
		if a != nil && a.IsAvailable() {
			out = append(out, a)
		}
	}
	return out
}
