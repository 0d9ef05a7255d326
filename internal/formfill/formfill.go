// Package formfill maps an application form onto a candidate profile with
// the completion service.
package formfill

import (
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/spigell/job-autopilot/internal/ai"
	"github.com/spigell/job-autopilot/internal/jobs"
	"github.com/spigell/job-autopilot/internal/logger"
	"github.com/spigell/job-autopilot/internal/profile"
	"github.com/spigell/job-autopilot/internal/utils"
)

const (
	maxFormLength        = 15000
	maxDescriptionLength = 3000
	maxLogLength         = 200
)

// Field types understood by the applicant.
const (
	TypeText     = "text"
	TypeTextarea = "textarea"
	TypeSelect   = "select"
	TypeCheckbox = "checkbox"
	TypeRadio    = "radio"
	TypeFile     = "file"
)

// Upload values for file fields.
const (
	UploadCV          = "cv"
	UploadCoverLetter = "cover_letter"
)

//go:embed prompt.md
var promptTemplate string

var analysisSchema = ai.MustSchema("form analysis", `{
  "type": "object",
  "required": ["fields", "requiresManualReview"],
  "properties": {
    "fields": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["selector", "type", "value"],
        "properties": {
          "selector": {"type": "string", "minLength": 1},
          "type": {"type": "string"},
          "value": {"type": "string"},
          "confidence": {"type": "number", "minimum": 0, "maximum": 1},
          "label": {"type": ["string", "null"]}
        }
      }
    },
    "customAnswers": {
      "type": ["array", "null"],
      "items": {
        "type": "object",
        "required": ["selector", "answer"],
        "properties": {
          "selector": {"type": "string", "minLength": 1},
          "question": {"type": "string"},
          "answer": {"type": "string"},
          "confidence": {"type": "number", "minimum": 0, "maximum": 1}
        }
      }
    },
    "requiresManualReview": {"type": "boolean"},
    "missingRequiredData": {"type": ["array", "null"], "items": {"type": "string"}},
    "warnings": {"type": ["array", "null"], "items": {"type": "string"}}
  }
}`)

type Field struct {
	Selector   string  `json:"selector"`
	Type       string  `json:"type"`
	Value      string  `json:"value"`
	Confidence float64 `json:"confidence"`
	Label      string  `json:"label,omitempty"`
}

type CustomAnswer struct {
	Selector   string  `json:"selector"`
	Question   string  `json:"question"`
	Answer     string  `json:"answer"`
	Confidence float64 `json:"confidence"`
}

// Analysis is the fill plan for one form. RequiresManualReview is
// authoritative: the applicant does not submit when it is set.
type Analysis struct {
	Fields               []Field        `json:"fields"`
	CustomAnswers        []CustomAnswer `json:"customAnswers"`
	RequiresManualReview bool           `json:"requiresManualReview"`
	MissingRequiredData  []string       `json:"missingRequiredData"`
	Warnings             []string       `json:"warnings"`
}

type Analyzer struct {
	completer ai.Completer
	logger    *zap.Logger
	opts      ai.Options
	now       func() time.Time
}

func New(completer ai.Completer, log *zap.Logger) *Analyzer {
	return &Analyzer{
		completer: completer,
		logger:    logger.OrNop(log),
		opts:      ai.Options{Temperature: 0.3, MaxTokens: 4096, Timeout: 90 * time.Second},
		now:       time.Now,
	}
}

// AnalyzeForm never fails. Any problem yields an empty analysis that asks
// for manual review.
func (a *Analyzer) AnalyzeForm(ctx context.Context, html string, p *profile.Profile, job jobs.Job) *Analysis {
	log := logger.ForJob(a.logger, p.UserID, job.ID)

	form := Compact(html)
	if form == "" {
		return manual("no form markup found on the page")
	}

	prompt, err := a.buildPrompt(form, p, job)
	if err != nil {
		log.Warn("building form prompt failed", zap.Error(err))
		return manual("form analysis unavailable: " + err.Error())
	}
	log.Debug("form analysis request", zap.String("form_preview", utils.TruncateForLog(form, maxLogLength)))

	res, err := ai.CompleteJSON[Analysis](ctx, a.completer, analysisSchema, "", prompt, a.opts)
	if err != nil {
		log.Warn("form analysis failed", zap.Error(err))
		return manual("form analysis unavailable: " + err.Error())
	}

	res.Fields = keepUsable(res.Fields)
	log.Info("form analyzed",
		zap.Int("fields", len(res.Fields)),
		zap.Int("custom_answers", len(res.CustomAnswers)),
		zap.Bool("manual_review", res.RequiresManualReview),
	)
	return &res
}

func manual(warning string) *Analysis {
	return &Analysis{RequiresManualReview: true, Warnings: []string{warning}}
}

func keepUsable(fields []Field) []Field {
	out := fields[:0]
	for _, f := range fields {
		f.Selector = strings.TrimSpace(f.Selector)
		f.Type = strings.ToLower(strings.TrimSpace(f.Type))
		if f.Selector == "" {
			continue
		}
		if f.Type == "" {
			f.Type = TypeText
		}
		out = append(out, f)
	}
	return out
}

func (a *Analyzer) buildPrompt(form string, p *profile.Profile, job jobs.Job) (string, error) {
	profileJSON, err := json.MarshalIndent(Summarize(p, a.now()), "", "  ")
	if err != nil {
		return "", fmt.Errorf("encode profile: %w", err)
	}

	posting := struct {
		Title       string `json:"title"`
		Company     string `json:"company"`
		Location    string `json:"location"`
		Description string `json:"description"`
	}{job.Title, job.Company, job.Location, utils.Truncate(job.Description, maxDescriptionLength)}
	jobJSON, err := json.MarshalIndent(posting, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encode job: %w", err)
	}

	return strings.NewReplacer(
		"{{PROFILE_JSON}}", string(profileJSON),
		"{{JOB_JSON}}", string(jobJSON),
		"{{FORM_HTML}}", form,
	).Replace(promptTemplate), nil
}
