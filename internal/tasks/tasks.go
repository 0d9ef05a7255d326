// Package tasks holds the pipeline handlers run by the scheduler: periodic
// searches and automated applications for every user.
package tasks

import (
	"context"
	"fmt"
	"runtime/debug"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/spigell/job-autopilot/internal/applicant"
	"github.com/spigell/job-autopilot/internal/jobs"
	"github.com/spigell/job-autopilot/internal/logger"
	"github.com/spigell/job-autopilot/internal/profile"
	"github.com/spigell/job-autopilot/internal/scheduler"
	"github.com/spigell/job-autopilot/internal/search"
	"github.com/spigell/job-autopilot/internal/storage"
	"github.com/spigell/job-autopilot/internal/utils"
)

const (
	AutoSearch = "auto-search"
	AutoApply  = "auto-apply"

	AutoSearchInterval = time.Hour
	AutoApplyInterval  = 2 * time.Hour

	DefaultApplyDelayMin = 2 * time.Minute
	DefaultApplyDelayMax = 5 * time.Minute
)

type Searcher interface {
	Search(ctx context.Context, userID string, q jobs.Query) (*search.Result, error)
	ListJobs(ctx context.Context, userID string, f search.Filters) ([]jobs.Summary, error)
}

type Applier interface {
	ApplyToJob(ctx context.Context, userID, jobID string) *applicant.Result
	RemainingQuota(ctx context.Context, userID string, settings profile.Settings) (int, error)
	History(ctx context.Context, userID string) (applicant.Index, error)
}

type Config struct {
	// ApplyDelayMin and ApplyDelayMax bound the pause between two
	// applications of the same user.
	ApplyDelayMin time.Duration `mapstructure:"delay-min"`
	ApplyDelayMax time.Duration `mapstructure:"delay-max"`
}

type Deps struct {
	Store     storage.Store
	Search    Searcher
	Applicant Applier
	Logger    *zap.Logger
}

type Pipeline struct {
	cfg    Config
	store  storage.Store
	search Searcher
	apply  Applier
	logger *zap.Logger
	wait   func(ctx context.Context, d time.Duration) error
	now    func() time.Time
}

func New(cfg *Config, deps *Deps) *Pipeline {
	c := Config{}
	if cfg != nil {
		c = *cfg
	}
	if c.ApplyDelayMin <= 0 {
		c.ApplyDelayMin = DefaultApplyDelayMin
	}
	if c.ApplyDelayMax <= 0 {
		c.ApplyDelayMax = DefaultApplyDelayMax
	}

	return &Pipeline{
		cfg:    c,
		store:  deps.Store,
		search: deps.Search,
		apply:  deps.Applicant,
		logger: logger.OrNop(deps.Logger),
		wait:   utils.WaitFor,
		now:    time.Now,
	}
}

// Register adds the pipeline tasks to s.
func (p *Pipeline) Register(s *scheduler.Scheduler) error {
	if err := s.Register(AutoSearch, AutoSearchInterval, p.AutoSearch); err != nil {
		return err
	}
	return s.Register(AutoApply, AutoApplyInterval, p.AutoApply)
}

// Users lists the ids of every user with documents in the store.
func Users(ctx context.Context, store storage.Store) ([]string, error) {
	keys, err := store.ListKeys(ctx, storage.UsersPrefix)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}

	seen := make(map[string]struct{})
	var users []string
	for _, k := range keys {
		id, _, ok := strings.Cut(strings.TrimPrefix(strings.TrimPrefix(k, "/"), storage.UsersPrefix), "/")
		if !ok || id == "" {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		users = append(users, id)
	}
	sort.Strings(users)
	return users, nil
}

// forEachUser runs fn for every user. A failing or panicking user is logged
// and skipped.
func (p *Pipeline) forEachUser(ctx context.Context, task string, fn func(ctx context.Context, log *zap.Logger, userID string) error) error {
	users, err := Users(ctx, p.store)
	if err != nil {
		return err
	}

	log := p.logger.With(zap.String(logger.FieldTask, task))
	for _, userID := range users {
		if err := ctx.Err(); err != nil {
			return err
		}
		userLog := logger.ForJob(log, userID, "")
		func() {
			defer func() {
				if r := recover(); r != nil {
					userLog.Error("user processing panicked", zap.Any("panic", r), zap.ByteString("stack", debug.Stack()))
				}
			}()
			if err := fn(ctx, userLog, userID); err != nil {
				userLog.Warn("user processing failed", zap.Error(err))
			}
		}()
	}
	return nil
}
