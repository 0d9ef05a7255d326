// Package search runs a query across every platform and persists the ranked
// results in the user's job index.
package search

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/spigell/job-autopilot/internal/dedup"
	"github.com/spigell/job-autopilot/internal/jobs"
	"github.com/spigell/job-autopilot/internal/logger"
	"github.com/spigell/job-autopilot/internal/metrics"
	"github.com/spigell/job-autopilot/internal/platforms"
	"github.com/spigell/job-autopilot/internal/profile"
	"github.com/spigell/job-autopilot/internal/storage"
)

// Scorer rates a batch of postings.
type Scorer interface {
	BatchScore(ctx context.Context, p *profile.Profile, in []jobs.RawJob) []jobs.ScoredJob
}

// PlatformResult is the outcome of one adapter.
type PlatformResult struct {
	Count int    `json:"count"`
	Error string `json:"error,omitempty"`
}

// Result summarizes a search run.
type Result struct {
	Total      int                       `json:"total"`
	New        int                       `json:"new"`
	Platforms  map[string]PlatformResult `json:"platforms"`
	SearchedAt time.Time                 `json:"searchedAt"`
	Jobs       []jobs.ScoredJob          `json:"jobs"`
}

type Engine struct {
	store    storage.Store
	adapters []platforms.Adapter
	scorer   Scorer
	logger   *zap.Logger
	metrics  *metrics.Metrics
	now      func() time.Time
}

func New(store storage.Store, adapters []platforms.Adapter, scorer Scorer, log *zap.Logger, m *metrics.Metrics) *Engine {
	return &Engine{
		store:    store,
		adapters: adapters,
		scorer:   scorer,
		logger:   logger.OrNop(log),
		metrics:  m,
		now:      time.Now,
	}
}

// Search fans q out to every available adapter, merges, scores and stores the
// results. A failing adapter only marks its own entry in Platforms.
func (e *Engine) Search(ctx context.Context, userID string, q jobs.Query) (*Result, error) {
	started := e.now()
	log := logger.ForJob(e.logger, userID, "")

	p, err := profile.Load(ctx, e.store, userID)
	if err != nil {
		e.metrics.SearchDone(false, e.now().Sub(started))
		return nil, err
	}
	q.ExcludedCompanies = append(q.ExcludedCompanies, p.Preferences.ExcludedCompanies...)

	raw, perPlatform := e.fanOut(ctx, log, q)
	unique := dedup.Deduplicate(raw)
	scored := e.scorer.BatchScore(ctx, p, unique)

	sort.SliceStable(scored, func(i, j int) bool { return scored[i].MatchScore > scored[j].MatchScore })

	created, err := e.persist(ctx, userID, scored)
	if err != nil {
		e.metrics.SearchDone(false, e.now().Sub(started))
		return nil, err
	}

	log.Info("search completed",
		zap.Int("fetched", len(raw)),
		zap.Int("unique", len(scored)),
		zap.Int("new", created),
	)
	e.metrics.SearchDone(true, e.now().Sub(started))

	return &Result{
		Total:      len(scored),
		New:        created,
		Platforms:  perPlatform,
		SearchedAt: started.UTC(),
		Jobs:       scored,
	}, nil
}

func (e *Engine) fanOut(ctx context.Context, log *zap.Logger, q jobs.Query) ([]jobs.RawJob, map[string]PlatformResult) {
	adapters := platforms.Available(e.adapters)
	batches := make([][]jobs.RawJob, len(adapters))
	results := make(map[string]PlatformResult, len(adapters))
	var mu sync.Mutex

	var g errgroup.Group
	for i, a := range adapters {
		g.Go(func() error {
			found, err := a.Search(ctx, q)

			mu.Lock()
			defer mu.Unlock()

			e.metrics.PlatformResult(a.Name(), len(found), err)
			if err != nil {
				log.Warn("platform search failed", zap.String(logger.FieldPlatform, a.Name()), zap.Error(err))
				results[a.Name()] = PlatformResult{Error: err.Error()}
				return nil
			}
			results[a.Name()] = PlatformResult{Count: len(found)}
			batches[i] = found
			return nil
		})
	}
	_ = g.Wait()

	var all []jobs.RawJob
	for _, b := range batches {
		all = append(all, b...)
	}
	return all, results
}

// persist upserts the index and the per-job documents, returning how many
// jobs were seen for the first time.
func (e *Engine) persist(ctx context.Context, userID string, scored []jobs.ScoredJob) (int, error) {
	now := e.now().UTC()
	created := 0

	err := storage.Update(ctx, e.store, storage.JobIndexKey(userID), func(idx *jobs.Index) error {
		created = 0
		for _, sj := range scored {
			if pos := idx.Find(sj.ID); pos >= 0 {
				idx.Jobs[pos].MatchScore = sj.MatchScore
				idx.Jobs[pos].UpdatedAt = now
				continue
			}
			created++
			idx.Jobs = append(idx.Jobs, jobs.Job{
				ScoredJob: sj,
				Status:    jobs.StatusDiscovered,
				SavedAt:   now,
				UpdatedAt: now,
			}.Summary())
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("update job index: %w", err)
	}

	for _, sj := range scored {
		err := storage.Update(ctx, e.store, storage.JobKey(userID, sj.ID), func(j *jobs.Job) error {
			if j.ID == "" {
				j.Status = jobs.StatusDiscovered
				j.SavedAt = now
			}
			j.ScoredJob = sj
			j.UpdatedAt = now
			return nil
		})
		if err != nil {
			return created, fmt.Errorf("write job %s: %w", sj.ID, err)
		}
	}

	return created, nil
}
