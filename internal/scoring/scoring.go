// Package scoring rates postings against a candidate profile.
package scoring

import (
	"context"
	_ "embed"
	"encoding/json"
	"math"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/spigell/job-autopilot/internal/ai"
	"github.com/spigell/job-autopilot/internal/jobs"
	"github.com/spigell/job-autopilot/internal/logger"
	"github.com/spigell/job-autopilot/internal/metrics"
	"github.com/spigell/job-autopilot/internal/profile"
	"github.com/spigell/job-autopilot/internal/utils"
)

const (
	// NeutralScore is assigned when the AI path fails.
	NeutralScore = 50
	// ChunkSize bounds concurrent AI calls in BatchScore.
	ChunkSize = 5

	maxDescriptionLength = 6000
	maxLogLength         = 200
)

//go:embed prompt.md
var promptTemplate string

var resultSchema = ai.MustSchema("match score", `{
  "type": "object",
  "required": ["matchScore"],
  "properties": {
    "matchScore": {"type": "number", "minimum": 0, "maximum": 100},
    "strengths": {"type": ["array", "null"], "items": {"type": "string"}},
    "concerns": {"type": ["array", "null"], "items": {"type": "string"}},
    "missingSkills": {"type": ["array", "null"], "items": {"type": "string"}},
    "recommendations": {"type": ["array", "null"], "items": {"type": "string"}}
  }
}`)

type result struct {
	MatchScore float64 `json:"matchScore"`
	jobs.Analysis
}

// Scorer rates postings. Without a completer it uses QuickScore.
type Scorer struct {
	completer ai.Completer
	logger    *zap.Logger
	metrics   *metrics.Metrics
	opts      ai.Options
}

func New(completer ai.Completer, log *zap.Logger, m *metrics.Metrics) *Scorer {
	return &Scorer{
		completer: completer,
		logger:    logger.OrNop(log),
		metrics:   m,
		opts:      ai.Options{Temperature: 0.2, MaxTokens: 1024},
	}
}

// ScoreJob never fails: AI errors degrade to NeutralScore.
func (s *Scorer) ScoreJob(ctx context.Context, p *profile.Profile, job jobs.RawJob) jobs.ScoredJob {
	scored := jobs.ScoredJob{RawJob: job, ID: jobs.NewID(job.Platform, job.ExternalID)}

	if s.completer == nil {
		scored.MatchScore = QuickScore(p, job)
		s.metrics.Scored(metrics.MethodQuick)
		return scored
	}

	log := logger.ForJob(s.logger, p.UserID, scored.ID)
	prompt, err := buildPrompt(p, job)
	if err != nil {
		log.Warn("building scoring prompt failed", zap.Error(err))
		scored.MatchScore = NeutralScore
		s.metrics.Scored(metrics.MethodFallback)
		return scored
	}

	log.Debug("scoring request", zap.String("prompt_preview", utils.TruncateForLog(prompt, maxLogLength)))

	res, err := ai.CompleteJSON[result](ctx, s.completer, resultSchema, "", prompt, s.opts)
	if err != nil {
		log.Warn("ai scoring failed, using neutral score", zap.Error(err))
		scored.MatchScore = NeutralScore
		s.metrics.Scored(metrics.MethodFallback)
		return scored
	}

	analysis := res.Analysis
	scored.MatchScore = clamp(int(math.Round(res.MatchScore)))
	scored.Analysis = &analysis
	s.metrics.Scored(metrics.MethodAI)
	return scored
}

// BatchScore scores in chunks of ChunkSize: concurrent within a chunk,
// sequential across chunks. Output order follows input order.
func (s *Scorer) BatchScore(ctx context.Context, p *profile.Profile, in []jobs.RawJob) []jobs.ScoredJob {
	out := make([]jobs.ScoredJob, len(in))

	for start := 0; start < len(in); start += ChunkSize {
		end := min(start+ChunkSize, len(in))

		var g errgroup.Group
		for i := start; i < end; i++ {
			g.Go(func() error {
				out[i] = s.ScoreJob(ctx, p, in[i])
				return nil
			})
		}
		_ = g.Wait()
	}

	return out
}

func buildPrompt(p *profile.Profile, job jobs.RawJob) (string, error) {
	profileJSON, err := json.MarshalIndent(p, "", "  ")
	if err != nil {
		return "", err
	}

	job.Description = utils.Truncate(job.Description, maxDescriptionLength)
	jobJSON, err := json.MarshalIndent(job, "", "  ")
	if err != nil {
		return "", err
	}

	prompt := strings.ReplaceAll(promptTemplate, "{{PROFILE_JSON}}", string(profileJSON))
	return strings.ReplaceAll(prompt, "{{JOB_JSON}}", string(jobJSON)), nil
}
