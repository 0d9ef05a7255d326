// Package hackernews turns the latest "Ask HN: Who is hiring?" thread into
// postings. Comments are free text, so each one goes through an extraction
// call before it becomes a RawJob.
package hackernews

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/spigell/job-autopilot/internal/ai"
	"github.com/spigell/job-autopilot/internal/jobs"
	"github.com/spigell/job-autopilot/internal/logger"
	"github.com/spigell/job-autopilot/internal/platforms"
	"github.com/spigell/job-autopilot/internal/storage"
)

const (
	Name = "hackernews"

	algoliaURL = "https://hn.algolia.com/api/v1"
	itemURL    = "https://news.ycombinator.com/item?id="

	DefaultCacheTTL  = 12 * time.Hour
	DefaultBatchSize = 5
	DefaultMaxItems  = 100
	defaultRate      = 5 // requests per second
)

// CacheKey is the shared durable cache location of the parsed thread.
var CacheKey = storage.CacheKey(Name, "who-is-hiring.json")

type Config struct {
	CacheTTL  time.Duration
	BatchSize int
	MaxItems  int
	// RatePerSecond bounds extraction calls.
	RatePerSecond float64
}

// Adapter implements platforms.Adapter for the HN hiring thread.
type Adapter struct {
	cfg       Config
	client    *http.Client
	baseURL   string
	store     storage.Store
	completer ai.Completer
	limiter   *rate.Limiter
	logger    *zap.Logger
	now       func() time.Time
}

// New builds the adapter. A nil completer switches extraction to parsing the
// conventional "Company | Role | Location" header line.
func New(cfg Config, store storage.Store, completer ai.Completer, log *zap.Logger) *Adapter {
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = DefaultCacheTTL
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultBatchSize
	}
	if cfg.MaxItems <= 0 {
		cfg.MaxItems = DefaultMaxItems
	}
	if cfg.RatePerSecond <= 0 {
		cfg.RatePerSecond = defaultRate
	}
	return &Adapter{
		cfg:       cfg,
		client:    platforms.NewHTTPClient(),
		baseURL:   algoliaURL,
		store:     store,
		completer: completer,
		limiter:   rate.NewLimiter(rate.Limit(cfg.RatePerSecond), cfg.BatchSize),
		logger:    logger.WithFields(log, zap.String(logger.FieldPlatform, Name)),
		now:       time.Now,
	}
}

func (a *Adapter) Name() string { return Name }

// IsAvailable is true because the HN API needs no credentials.
func (a *Adapter) IsAvailable() bool { return true }

type cachedThread struct {
	ThreadID  string        `json:"threadId"`
	FetchedAt time.Time     `json:"fetchedAt"`
	Jobs      []jobs.RawJob `json:"jobs"`

	// failed counts comments whose extraction errored or never ran.
	failed int
}

// Search returns thread postings mentioning any of the query terms.
func (a *Adapter) Search(ctx context.Context, q jobs.Query) ([]jobs.RawJob, error) {
	thread, err := a.thread(ctx)
	if err != nil {
		return nil, err
	}

	terms := q.Terms()
	if len(terms) == 0 {
		return thread.Jobs, nil
	}

	var out []jobs.RawJob
	for _, j := range thread.Jobs {
		if mentions(j, terms) {
			out = append(out, j)
		}
	}
	return out, nil
}

func (a *Adapter) thread(ctx context.Context) (*cachedThread, error) {
	if a.store != nil {
		cached, err := storage.Load[cachedThread](ctx, a.store, CacheKey)
		switch {
		case err == nil && a.now().Sub(cached.FetchedAt) < a.cfg.CacheTTL:
			a.logger.Debug("serving cached thread", zap.String("thread_id", cached.ThreadID), zap.Int("jobs", len(cached.Jobs)))
			return &cached, nil
		case err != nil && !errors.Is(err, storage.ErrNotFound):
			a.logger.Warn("reading thread cache failed", zap.Error(err))
		}
	}

	thread, err := a.fetchThread(ctx)
	if err != nil {
		return nil, err
	}

	switch {
	case a.store == nil:
	case thread.failed > 0:
		a.logger.Warn("not caching an incomplete thread",
			zap.String("thread_id", thread.ThreadID),
			zap.Int("failed", thread.failed),
			zap.Int("jobs", len(thread.Jobs)),
		)
	default:
		if err := a.store.PutJSON(ctx, CacheKey, thread); err != nil {
			a.logger.Warn("writing thread cache failed", zap.Error(err))
		}
	}
	return thread, nil
}

func (a *Adapter) fetchThread(ctx context.Context) (*cachedThread, error) {
	threadID, err := a.latestThreadID(ctx)
	if err != nil {
		return nil, fmt.Errorf("find hiring thread: %w", err)
	}

	comments, err := a.comments(ctx, threadID)
	if err != nil {
		return nil, fmt.Errorf("load thread %s: %w", threadID, err)
	}
	if len(comments) > a.cfg.MaxItems {
		comments = comments[:a.cfg.MaxItems]
	}

	a.logger.Info("extracting postings from hiring thread",
		zap.String("thread_id", threadID),
		zap.Int("comments", len(comments)),
	)

	found, failed := a.extractAll(ctx, comments)
	return &cachedThread{
		ThreadID:  threadID,
		FetchedAt: a.now().UTC(),
		Jobs:      found,
		failed:    failed,
	}, nil
}

func mentions(j jobs.RawJob, terms []string) bool {
	text := strings.ToLower(j.Title + " " + j.Company + " " + j.Description + " " + strings.Join(j.Tags, " "))
	for _, term := range terms {
		if strings.Contains(text, strings.ToLower(term)) {
			return true
		}
	}
	return false
}
