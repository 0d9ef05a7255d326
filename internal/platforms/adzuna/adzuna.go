// Package adzuna searches the Adzuna public jobs API.
package adzuna

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/spigell/job-autopilot/internal/jobs"
	"github.com/spigell/job-autopilot/internal/logger"
	"github.com/spigell/job-autopilot/internal/platforms"
)

const (
	Name = "adzuna"

	baseURL        = "https://api.adzuna.com/v1/api/jobs"
	pageSize       = 50
	defaultPages   = 3
	defaultCountry = "gb"
)

// Config carries the API credentials and paging limits.
type Config struct {
	AppID    string
	AppKey   string
	Country  string
	MaxPages int
	CacheTTL time.Duration
}

// Adapter implements platforms.Adapter for Adzuna.
type Adapter struct {
	cfg     Config
	client  *http.Client
	baseURL string
	cache   *platforms.Cache[[]jobs.RawJob]
	logger  *zap.Logger
	now     func() time.Time
}

func New(cfg Config, log *zap.Logger) *Adapter {
	if cfg.Country == "" {
		cfg.Country = defaultCountry
	}
	if cfg.MaxPages <= 0 {
		cfg.MaxPages = defaultPages
	}
	return &Adapter{
		cfg:     cfg,
		client:  platforms.NewHTTPClient(),
		baseURL: baseURL,
		cache:   platforms.NewCache[[]jobs.RawJob](cfg.CacheTTL),
		logger:  logger.WithFields(log, zap.String(logger.FieldPlatform, Name)),
		now:     time.Now,
	}
}

func (a *Adapter) Name() string { return Name }

func (a *Adapter) IsAvailable() bool {
	return strings.TrimSpace(a.cfg.AppID) != "" && strings.TrimSpace(a.cfg.AppKey) != ""
}

type response struct {
	Results []result `json:"results"`
	Count   int      `json:"count"`
}

type result struct {
	ID          string  `json:"id"`
	Title       string  `json:"title"`
	Description string  `json:"description"`
	Company     named   `json:"company"`
	Location    named   `json:"location"`
	SalaryMin   float64 `json:"salary_min"`
	SalaryMax   float64 `json:"salary_max"`
	RedirectURL string  `json:"redirect_url"`
	Created     string  `json:"created"`
	Category    struct {
		Label string `json:"label"`
	} `json:"category"`
	ContractTime string `json:"contract_time"`
}

type named struct {
	DisplayName string `json:"display_name"`
}

// Search pages through results until a short page or the page limit.
func (a *Adapter) Search(ctx context.Context, q jobs.Query) ([]jobs.RawJob, error) {
	if !a.IsAvailable() {
		return nil, platforms.ErrUnavailable
	}

	key := platforms.QueryKey(q)
	if cached, ok := a.cache.Get(key); ok {
		a.logger.Debug("serving cached results", zap.Int("count", len(cached)))
		return cached, nil
	}

	var out []jobs.RawJob
	for page := 1; page <= a.cfg.MaxPages; page++ {
		batch, err := a.fetchPage(ctx, q, page)
		if err != nil {
			return nil, fmt.Errorf("adzuna page %d: %w", page, err)
		}
		out = append(out, batch...)
		if len(batch) < pageSize {
			break
		}
	}

	a.cache.Set(key, out)
	return out, nil
}

func (a *Adapter) fetchPage(ctx context.Context, q jobs.Query, page int) ([]jobs.RawJob, error) {
	endpoint := fmt.Sprintf("%s/%s/search/%d", a.baseURL, a.cfg.Country, page)

	params := url.Values{}
	params.Set("app_id", a.cfg.AppID)
	params.Set("app_key", a.cfg.AppKey)
	params.Set("results_per_page", strconv.Itoa(pageSize))
	params.Set("what", strings.Join(q.Terms(), " "))
	if q.Location != "" {
		params.Set("where", q.Location)
	}
	if q.MinSalary > 0 {
		params.Set("salary_min", strconv.FormatFloat(q.MinSalary, 'f', 0, 64))
	}
	params.Set("sort_by", "date")

	var resp response
	if err := platforms.GetJSON(ctx, a.client, endpoint, params, nil, &resp); err != nil {
		return nil, err
	}

	fetched := a.now().UTC()
	out := make([]jobs.RawJob, 0, len(resp.Results))
	for _, r := range resp.Results {
		out = append(out, r.toRawJob(fetched))
	}
	return out, nil
}

func (r result) toRawJob(fetched time.Time) jobs.RawJob {
	job := jobs.RawJob{
		ExternalID:  r.ID,
		Platform:    Name,
		Title:       strings.TrimSpace(r.Title),
		Company:     strings.TrimSpace(r.Company.DisplayName),
		Location:    strings.TrimSpace(r.Location.DisplayName),
		Description: strings.TrimSpace(r.Description),
		URL:         r.RedirectURL,
		FetchedAt:   fetched,
	}

	text := strings.ToLower(r.Title + " " + r.Description)
	job.Remote = strings.Contains(text, "remote") || strings.Contains(text, "work from home")

	if r.SalaryMin > 0 || r.SalaryMax > 0 {
		job.Salary = &jobs.Salary{Min: r.SalaryMin, Max: r.SalaryMax}
	}
	if r.Category.Label != "" {
		job.Tags = append(job.Tags, r.Category.Label)
	}
	if r.ContractTime != "" {
		job.Tags = append(job.Tags, r.ContractTime)
	}
	if t, err := time.Parse(time.RFC3339, r.Created); err == nil {
		job.PostedAt = &t
	}
	return job
}
