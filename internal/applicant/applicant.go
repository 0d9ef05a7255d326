// Package applicant submits applications to persisted jobs, by email or by
// driving the employer's web form.
package applicant

import (
	"context"
	"time"

	"github.com/spf13/afero"
	"go.uber.org/zap"

	"github.com/spigell/job-autopilot/internal/documents"
	"github.com/spigell/job-autopilot/internal/formfill"
	"github.com/spigell/job-autopilot/internal/jobs"
	"github.com/spigell/job-autopilot/internal/logger"
	"github.com/spigell/job-autopilot/internal/metrics"
	"github.com/spigell/job-autopilot/internal/notify"
	"github.com/spigell/job-autopilot/internal/profile"
	"github.com/spigell/job-autopilot/internal/storage"
)

type Method string

const (
	MethodEmail   Method = "email"
	MethodWebsite Method = "direct_website"
	MethodManual  Method = "manual_required"
)

// Result is the outcome of one attempt. Expected failures are reported here,
// never as errors.
type Result struct {
	Success             bool        `json:"success"`
	ApplicationID       string      `json:"applicationId"`
	Method              Method      `json:"method"`
	Error               string      `json:"error,omitempty"`
	ScreenshotKey       string      `json:"screenshotKey,omitempty"`
	ConfirmationMessage string      `json:"confirmationMessage,omitempty"`
	Fill                *FillReport `json:"fill,omitempty"`
}

// Browser is the automation surface used by the website flow.
type Browser interface {
	Navigate(ctx context.Context, url string) error
	HumanScroll(ctx context.Context) error
	HumanClick(ctx context.Context, selector string) error
	HumanType(ctx context.Context, selector, text string) error
	SmartWait(ctx context.Context, timeout time.Duration) error
	UploadFile(ctx context.Context, selector string, paths ...string) error
	SelectOption(ctx context.Context, selector, value string) error
	Check(ctx context.Context, selector string) error
	Screenshot(ctx context.Context) ([]byte, error)
	ExtractFormHTML(ctx context.Context) (string, error)
	DetectSuccess(ctx context.Context) (bool, string, error)
	FindFirst(ctx context.Context, candidates []string) (string, bool, error)
	Close()
}

// Launcher opens a fresh browser for one attempt.
type Launcher func(ctx context.Context) (Browser, error)

type FormAnalyzer interface {
	AnalyzeForm(ctx context.Context, html string, p *profile.Profile, job jobs.Job) *formfill.Analysis
}

// MailChannel hands a composed message over for delivery.
type MailChannel interface {
	Connected(userID string) bool
	Submit(ctx context.Context, userID, recipient string, raw []byte) error
}

type Notifier interface {
	Send(ctx context.Context, userID string, n notify.Notification)
}

type DocumentSource interface {
	Select(ctx context.Context, userID, jobID string) (documents.Selection, error)
	Materialize(ctx context.Context, sel documents.Selection, dir string) (documents.Files, error)
}

// JobStore reads and advances persisted jobs.
type JobStore interface {
	GetJob(ctx context.Context, userID, jobID string) (*jobs.Job, error)
	UpdateJobStatus(ctx context.Context, userID, jobID string, status jobs.Status, applicationID string) error
}

type Config struct {
	// WaitTimeout bounds each SmartWait.
	WaitTimeout time.Duration `mapstructure:"wait-timeout"`
	// TempDir is where per-attempt document copies are written.
	TempDir string `mapstructure:"temp-dir"`
	// LinkTTL is the lifetime of screenshot links in notifications.
	LinkTTL time.Duration `mapstructure:"link-ttl"`
}

type Deps struct {
	Store     storage.Store
	Jobs      JobStore
	Documents DocumentSource
	Forms     FormAnalyzer
	Launch    Launcher
	Mail      MailChannel
	Notifier  Notifier
	Metrics   *metrics.Metrics
	Logger    *zap.Logger
	// FS holds the per-attempt temp dirs. Defaults to the OS filesystem.
	FS afero.Fs
}

type Applicant struct {
	cfg  Config
	deps Deps
	log  *zap.Logger
	now  func() time.Time
}

func New(cfg *Config, deps *Deps) *Applicant {
	c := Config{}
	if cfg != nil {
		c = *cfg
	}
	if c.WaitTimeout <= 0 {
		c.WaitTimeout = 10 * time.Second
	}
	if c.LinkTTL <= 0 {
		c.LinkTTL = 7 * 24 * time.Hour
	}

	d := *deps
	if d.FS == nil {
		d.FS = afero.NewOsFs()
	}

	return &Applicant{
		cfg:  c,
		deps: d,
		log:  logger.OrNop(d.Logger),
		now:  time.Now,
	}
}
