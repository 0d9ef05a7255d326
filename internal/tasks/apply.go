package tasks

import (
	"context"

	"go.uber.org/zap"

	"github.com/spigell/job-autopilot/internal/applicant"
	"github.com/spigell/job-autopilot/internal/jobs"
	"github.com/spigell/job-autopilot/internal/logger"
	"github.com/spigell/job-autopilot/internal/profile"
	"github.com/spigell/job-autopilot/internal/search"
	"github.com/spigell/job-autopilot/internal/utils"
)

// AutoApply applies to the best eligible jobs of every user with auto-apply
// enabled, up to the remaining daily quota.
func (p *Pipeline) AutoApply(ctx context.Context) error {
	return p.forEachUser(ctx, AutoApply, p.applyUser)
}

func (p *Pipeline) applyUser(ctx context.Context, log *zap.Logger, userID string) error {
	settings, err := profile.LoadSettings(ctx, p.store, userID)
	if err != nil {
		return err
	}
	if !settings.AutoApply.Enabled {
		return nil
	}

	remaining, err := p.apply.RemainingQuota(ctx, userID, settings)
	if err != nil {
		return err
	}
	if remaining <= 0 {
		log.Info("daily application quota used up")
		return nil
	}

	eligible, err := p.eligible(ctx, userID, settings.AutoApply.MinMatchScore, remaining)
	if err != nil {
		return err
	}
	if len(eligible) == 0 {
		return nil
	}
	log.Info("auto-applying", zap.Int("eligible", len(eligible)), zap.Int("remaining_quota", remaining))

	results, err := p.ApplyAll(ctx, userID, eligible)
	submitted := 0
	for i, res := range results {
		jobLog := log.With(zap.String("job_id", eligible[i].ID), zap.String("method", string(res.Method)))
		if !res.Success {
			jobLog.Warn("automated application failed", zap.String("error", res.Error))
			continue
		}
		submitted++
		jobLog.Info("automated application submitted")
	}

	log.Info("auto-apply finished", zap.Int("submitted", submitted), zap.Int("attempted", len(results)))
	return err
}

// ApplyAll applies to targets in order and pauses for a random
// ApplyDelayMin..ApplyDelayMax between consecutive applications. The
// results line up with targets; a cancelled ctx cuts them short.
func (p *Pipeline) ApplyAll(ctx context.Context, userID string, targets []jobs.Summary) ([]*applicant.Result, error) {
	results := make([]*applicant.Result, 0, len(targets))
	for i, j := range targets {
		if i > 0 {
			delay := utils.Jitter(p.cfg.ApplyDelayMin, p.cfg.ApplyDelayMax)
			p.logger.Debug("pausing before the next application", zap.String(logger.FieldUserID, userID), zap.Duration("delay", delay))
			if err := p.wait(ctx, delay); err != nil {
				return results, err
			}
		}
		results = append(results, p.apply.ApplyToJob(ctx, userID, j.ID))
	}
	return results, nil
}

// Eligible lists the jobs the next auto-apply run would pick for userID,
// whether or not auto-apply is enabled.
func (p *Pipeline) Eligible(ctx context.Context, userID string) ([]jobs.Summary, error) {
	settings, err := profile.LoadSettings(ctx, p.store, userID)
	if err != nil {
		return nil, err
	}
	remaining, err := p.apply.RemainingQuota(ctx, userID, settings)
	if err != nil || remaining <= 0 {
		return nil, err
	}
	return p.eligible(ctx, userID, settings.AutoApply.MinMatchScore, remaining)
}

// eligible returns at most limit discovered jobs scoring at least minScore
// that have never been attempted, best first.
func (p *Pipeline) eligible(ctx context.Context, userID string, minScore, limit int) ([]jobs.Summary, error) {
	candidates, err := p.search.ListJobs(ctx, userID, search.Filters{Status: jobs.StatusDiscovered, MinScore: minScore})
	if err != nil {
		return nil, err
	}
	history, err := p.apply.History(ctx, userID)
	if err != nil {
		return nil, err
	}

	var out []jobs.Summary
	for _, j := range candidates {
		if history.Attempted(j.ID) {
			continue
		}
		out = append(out, j)
		if len(out) == limit {
			break
		}
	}
	return out, nil
}
