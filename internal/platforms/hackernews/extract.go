package hackernews

import (
	"context"
	"regexp"
	"strings"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/spigell/job-autopilot/internal/ai"
	"github.com/spigell/job-autopilot/internal/jobs"
	"github.com/spigell/job-autopilot/internal/utils"
)

const (
	maxCommentLength = 4000

	extractSystem = `You convert a single "Who is hiring?" comment into a structured job posting.
Reply with JSON only. Set isJobPosting to false for comments that are not an offer of employment.
Use empty strings for unknown fields and 0 for unknown salary figures. Do not invent data.`
)

var extractionSchema = ai.MustSchema("hn posting", `{
  "type": "object",
  "required": ["isJobPosting", "title", "company", "location", "remote"],
  "properties": {
    "isJobPosting": {"type": "boolean"},
    "title": {"type": "string"},
    "company": {"type": "string"},
    "location": {"type": "string"},
    "remote": {"type": "boolean"},
    "salaryMin": {"type": "number", "minimum": 0},
    "salaryMax": {"type": "number", "minimum": 0},
    "currency": {"type": "string"},
    "url": {"type": "string"},
    "tags": {"type": ["array", "null"], "items": {"type": "string"}}
  }
}`)

type extraction struct {
	IsJobPosting bool     `json:"isJobPosting"`
	Title        string   `json:"title"`
	Company      string   `json:"company"`
	Location     string   `json:"location"`
	Remote       bool     `json:"remote"`
	SalaryMin    float64  `json:"salaryMin"`
	SalaryMax    float64  `json:"salaryMax"`
	Currency     string   `json:"currency"`
	URL          string   `json:"url"`
	Tags         []string `json:"tags"`
}

var (
	urlPattern    = regexp.MustCompile(`https?://[^\s<>"')]+`)
	remotePattern = regexp.MustCompile(`(?i)\bremote\b`)
)

// extractAll processes comments in fixed-size batches. Failed items are
// logged and skipped; the second result counts them together with the
// comments left unprocessed after ctx was cancelled.
func (a *Adapter) extractAll(ctx context.Context, comments []comment) ([]jobs.RawJob, int) {
	results := make([]*jobs.RawJob, len(comments))
	var failed atomic.Int32

	done := 0
	for start := 0; start < len(comments); start += a.cfg.BatchSize {
		end := min(start+a.cfg.BatchSize, len(comments))

		var g errgroup.Group
		for i := start; i < end; i++ {
			g.Go(func() error {
				job, err := a.extract(ctx, comments[i])
				if err != nil {
					failed.Add(1)
					a.logger.Warn("skipping comment", zap.String("comment_id", comments[i].ID), zap.Error(err))
					return nil
				}
				results[i] = job
				return nil
			})
		}
		_ = g.Wait()
		done = end

		if ctx.Err() != nil {
			break
		}
	}

	out := make([]jobs.RawJob, 0, len(results))
	for _, j := range results {
		if j != nil {
			out = append(out, *j)
		}
	}
	return out, int(failed.Load()) + len(comments) - done
}

func (a *Adapter) extract(ctx context.Context, c comment) (*jobs.RawJob, error) {
	if a.completer == nil {
		return parseHeader(c, a.now()), nil
	}

	if err := a.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	got, err := ai.CompleteJSON[extraction](ctx, a.completer, extractionSchema, extractSystem,
		utils.Truncate(c.Text, maxCommentLength), ai.Options{Temperature: 0, MaxTokens: 1024})
	if err != nil {
		return nil, err
	}
	if !got.IsJobPosting || strings.TrimSpace(got.Title) == "" {
		return nil, nil
	}

	job := base(c, a.now())
	job.Title = strings.TrimSpace(got.Title)
	job.Company = strings.TrimSpace(got.Company)
	job.Location = strings.TrimSpace(got.Location)
	job.Remote = got.Remote
	job.Tags = got.Tags
	if u := strings.TrimSpace(got.URL); strings.HasPrefix(u, "http") {
		job.URL = u
	}
	if got.SalaryMin > 0 || got.SalaryMax > 0 {
		job.Salary = &jobs.Salary{Min: got.SalaryMin, Max: got.SalaryMax, Currency: got.Currency}
	}
	return job, nil
}

// parseHeader reads the "Company | Role | Location | REMOTE" first line most
// posters follow.
func parseHeader(c comment, now time.Time) *jobs.RawJob {
	first, _, _ := strings.Cut(c.Text, "\n")
	parts := strings.Split(first, "|")
	if len(parts) < 2 {
		return nil
	}

	fields := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			fields = append(fields, p)
		}
	}
	if len(fields) < 2 {
		return nil
	}

	job := base(c, now)
	job.Company = fields[0]
	job.Title = fields[1]
	for _, f := range fields[2:] {
		if urlPattern.MatchString(f) {
			continue
		}
		if job.Location == "" && !remotePattern.MatchString(f) {
			job.Location = f
		}
	}
	job.Remote = remotePattern.MatchString(first)
	return job
}

func base(c comment, now time.Time) *jobs.RawJob {
	job := &jobs.RawJob{
		ExternalID:  c.ID,
		Platform:    Name,
		Description: c.Text,
		URL:         itemURL + c.ID,
		FetchedAt:   now.UTC(),
	}
	if !c.PostedAt.IsZero() {
		posted := c.PostedAt
		job.PostedAt = &posted
	}
	if u := urlPattern.FindString(c.Text); u != "" {
		job.URL = u
	}
	return job
}
