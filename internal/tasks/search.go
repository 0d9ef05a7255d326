package tasks

import (
	"context"

	"go.uber.org/zap"

	"github.com/spigell/job-autopilot/internal/profile"
)

// AutoSearch reruns every due saved search of every user with auto-search
// enabled.
func (p *Pipeline) AutoSearch(ctx context.Context) error {
	return p.forEachUser(ctx, AutoSearch, p.searchUser)
}

func (p *Pipeline) searchUser(ctx context.Context, log *zap.Logger, userID string) error {
	settings, err := profile.LoadSettings(ctx, p.store, userID)
	if err != nil {
		return err
	}
	if !settings.AutoSearch.Enabled {
		return nil
	}

	configs, err := profile.LoadSearchConfigurations(ctx, p.store, userID)
	if err != nil {
		return err
	}

	now := p.now()
	for _, c := range configs {
		if !c.Due(now) {
			continue
		}

		res, err := p.search.Search(ctx, userID, c.Query)
		if err != nil {
			log.Warn("saved search failed", zap.String("config_id", c.ID), zap.Error(err))
			continue
		}
		if err := profile.MarkSearchRun(ctx, p.store, userID, c.ID, now.UTC()); err != nil {
			log.Warn("stamping saved search", zap.String("config_id", c.ID), zap.Error(err))
		}
		log.Info("saved search completed",
			zap.String("config_id", c.ID),
			zap.Int("total", res.Total),
			zap.Int("new", res.New),
		)
	}
	return nil
}
