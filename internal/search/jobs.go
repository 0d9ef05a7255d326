package search

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/spigell/job-autopilot/internal/jobs"
	"github.com/spigell/job-autopilot/internal/storage"
)

// Filters narrow ListJobs. Zero values match everything.
type Filters struct {
	Status   jobs.Status
	MinScore int
	Platform string
}

func (f Filters) match(s jobs.Summary) bool {
	if f.Status != "" && s.Status != f.Status {
		return false
	}
	if s.MatchScore < f.MinScore {
		return false
	}
	return f.Platform == "" || strings.EqualFold(s.Platform, f.Platform)
}

// GetJob loads one persisted job.
func (e *Engine) GetJob(ctx context.Context, userID, jobID string) (*jobs.Job, error) {
	j, err := storage.Load[jobs.Job](ctx, e.store, storage.JobKey(userID, jobID))
	if err != nil {
		return nil, fmt.Errorf("load job %s: %w", jobID, err)
	}
	return &j, nil
}

// ListJobs returns index rows matching f, best score first.
func (e *Engine) ListJobs(ctx context.Context, userID string, f Filters) ([]jobs.Summary, error) {
	idx, err := storage.LoadOr(ctx, e.store, storage.JobIndexKey(userID), jobs.Index{})
	if err != nil {
		return nil, fmt.Errorf("load job index: %w", err)
	}

	out := make([]jobs.Summary, 0, len(idx.Jobs))
	for _, s := range idx.Jobs {
		if f.match(s) {
			out = append(out, s)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].MatchScore > out[j].MatchScore })
	return out, nil
}

// UpdateJobStatus moves a job to status in both the detail document and the
// index. Moving to applied stamps AppliedAt; a non-empty applicationID is
// recorded on the job.
func (e *Engine) UpdateJobStatus(ctx context.Context, userID, jobID string, status jobs.Status, applicationID string) error {
	now := e.now().UTC()

	apply := func(appliedAt **time.Time) jobs.Status {
		if status == jobs.StatusApplied && *appliedAt == nil {
			stamp := now
			*appliedAt = &stamp
		}
		return status
	}

	err := storage.Update(ctx, e.store, storage.JobKey(userID, jobID), func(j *jobs.Job) error {
		if j.ID == "" {
			return fmt.Errorf("job %s: %w", jobID, storage.ErrNotFound)
		}
		j.Status = apply(&j.AppliedAt)
		j.UpdatedAt = now
		if applicationID != "" {
			j.ApplicationID = applicationID
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("update job %s: %w", jobID, err)
	}

	err = storage.Update(ctx, e.store, storage.JobIndexKey(userID), func(idx *jobs.Index) error {
		pos := idx.Find(jobID)
		if pos < 0 {
			return nil
		}
		row := &idx.Jobs[pos]
		row.Status = apply(&row.AppliedAt)
		row.UpdatedAt = now
		return nil
	})
	if err != nil {
		return fmt.Errorf("update job index: %w", err)
	}
	return nil
}
