// Package headhunter searches hh.ru vacancies.
package headhunter

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/spigell/job-autopilot/internal/jobs"
	"github.com/spigell/job-autopilot/internal/logger"
	"github.com/spigell/job-autopilot/internal/platforms"
)

const (
	Name = "headhunter"

	apiURL    = "https://api.hh.ru"
	userAgent = "job-autopilot/1.0 (job-autopilot@users.noreply.github.com)"
	// Max value for search per page.
	perPage = "100"

	defaultMaxPages = 5
)

type Client struct {
	token      string
	logger     *zap.Logger
	HTTPClient *http.Client
	UserAgent  string
	APIURL     string
	MaxPages   int
}

func NewClient(log *zap.Logger, token string) *Client {
	return &Client{
		token:      strings.TrimSpace(token),
		APIURL:     apiURL,
		HTTPClient: &http.Client{Timeout: 10 * time.Second},
		logger:     logger.OrNop(log),
		UserAgent:  userAgent,
		MaxPages:   defaultMaxPages,
	}
}

// Config selects the token and the default search scope.
type Config struct {
	Token      string
	Areas      []int
	Experience string
	Period     uint
	CacheTTL   time.Duration
}

// Adapter implements platforms.Adapter for hh.ru.
type Adapter struct {
	client *Client
	cfg    Config
	cache  *platforms.Cache[[]jobs.RawJob]
	now    func() time.Time
}

func New(cfg Config, log *zap.Logger) *Adapter {
	log = logger.WithFields(log, zap.String(logger.FieldPlatform, Name))
	return &Adapter{
		client: NewClient(log, cfg.Token),
		cfg:    cfg,
		cache:  platforms.NewCache[[]jobs.RawJob](cfg.CacheTTL),
		now:    time.Now,
	}
}

func (a *Adapter) Name() string { return Name }

func (a *Adapter) IsAvailable() bool { return a.client.token != "" }

func (a *Adapter) Search(ctx context.Context, q jobs.Query) ([]jobs.RawJob, error) {
	if !a.IsAvailable() {
		return nil, platforms.ErrUnavailable
	}

	key := platforms.QueryKey(q)
	if cached, ok := a.cache.Get(key); ok {
		return cached, nil
	}

	params := &SearchParams{
		Text:       strings.Join(q.Terms(), " "),
		Areas:      a.cfg.Areas,
		Experience: a.cfg.Experience,
		Period:     a.cfg.Period,
		OrderBy:    "publication_time",
	}
	if q.Remote {
		params.Schedules = []string{scheduleRemote}
	}
	if q.MinSalary > 0 {
		params.Salary = uint(q.MinSalary)
	}

	vacancies, err := a.client.Search(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("headhunter search: %w", err)
	}

	fetched := a.now().UTC()
	out := make([]jobs.RawJob, 0, vacancies.Len())
	for _, v := range vacancies.Items {
		out = append(out, v.ToRawJob(fetched))
	}

	a.cache.Set(key, out)
	return out, nil
}
