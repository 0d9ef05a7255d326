package applicant

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/afero"
	"go.uber.org/zap"

	"github.com/spigell/job-autopilot/internal/documents"
	"github.com/spigell/job-autopilot/internal/jobs"
	"github.com/spigell/job-autopilot/internal/logger"
	"github.com/spigell/job-autopilot/internal/notify"
	"github.com/spigell/job-autopilot/internal/profile"
	"github.com/spigell/job-autopilot/internal/storage"
)

const finishTimeout = 30 * time.Second

// attempt carries the state of one ApplyToJob call.
type attempt struct {
	userID   string
	job      *jobs.Job
	profile  *profile.Profile
	settings profile.Settings
	docs     documents.Selection
	files    documents.Files
	browser  Browser
	log      *zap.Logger
	result   *Result
}

// ApplyToJob makes one application attempt. It always returns a Result;
// every exit path releases the browser and the temp dir.
func (ap *Applicant) ApplyToJob(ctx context.Context, userID, jobID string) (res *Result) {
	started := ap.now()
	res = &Result{ApplicationID: uuid.NewString(), Method: MethodManual}
	at := &attempt{
		userID: userID,
		log:    logger.ForJob(ap.log, userID, jobID).With(zap.String("application_id", res.ApplicationID)),
		result: res,
	}

	var (
		tmpDir   string
		recorded bool
	)

	defer func() {
		if r := recover(); r != nil {
			at.log.Error("application attempt panicked", zap.Any("panic", r), zap.ByteString("stack", debug.Stack()))
			res.Success = false
			res.Error = fmt.Sprintf("unexpected failure: %v", r)
			if res.ScreenshotKey == "" {
				res.ScreenshotKey = ap.capture(ctx, at, "panic")
			}
		}
		if at.browser != nil {
			at.browser.Close()
		}
		if tmpDir != "" {
			if err := ap.deps.FS.RemoveAll(tmpDir); err != nil {
				at.log.Warn("removing temp dir", zap.String("dir", tmpDir), zap.Error(err))
			}
		}
		if recorded {
			ap.finish(ctx, at, started)
		}
		ap.deps.Metrics.Application(string(res.Method), res.Success)
	}()

	if err := ap.load(ctx, at, jobID); err != nil {
		res.Error = err.Error()
		return res
	}

	remaining, err := ap.RemainingQuota(ctx, userID, at.settings)
	if err != nil {
		res.Error = err.Error()
		return res
	}
	if remaining <= 0 {
		res.Error = fmt.Sprintf("daily application limit of %d reached, try again tomorrow", dailyLimit(at.settings))
		at.log.Info("daily quota exhausted")
		return res
	}

	recorded = true
	method, target := DetectMethod(*at.job)
	res.Method = method
	at.log = at.log.With(zap.String("method", string(method)))

	if method == MethodManual {
		res.Error = "no automated application route for this posting"
		if target != "" {
			res.Error += ": apply manually at " + target
		}
		return res
	}

	tmpDir, err = afero.TempDir(ap.deps.FS, ap.cfg.TempDir, "apply-")
	if err != nil {
		res.Error = fmt.Sprintf("create temp dir: %v", err)
		return res
	}
	if err := ap.prepareDocuments(ctx, at, tmpDir); err != nil {
		res.Error = err.Error()
		return res
	}

	switch method {
	case MethodEmail:
		ap.applyByEmail(ctx, at, target)
	case MethodWebsite:
		ap.applyOnWebsite(ctx, at, target)
	}
	return res
}

func (ap *Applicant) load(ctx context.Context, at *attempt, jobID string) error {
	p, err := profile.Load(ctx, ap.deps.Store, at.userID)
	if err != nil {
		return fmt.Errorf("load profile: %w", err)
	}
	settings, err := profile.LoadSettings(ctx, ap.deps.Store, at.userID)
	if err != nil {
		return fmt.Errorf("load settings: %w", err)
	}
	job, err := ap.deps.Jobs.GetJob(ctx, at.userID, jobID)
	if err != nil {
		return err
	}
	at.profile, at.settings, at.job = p, settings, job
	return nil
}

func (ap *Applicant) prepareDocuments(ctx context.Context, at *attempt, dir string) error {
	if ap.deps.Documents == nil {
		return nil
	}
	sel, err := ap.deps.Documents.Select(ctx, at.userID, at.job.ID)
	if err != nil {
		return fmt.Errorf("select documents: %w", err)
	}
	files, err := ap.deps.Documents.Materialize(ctx, sel, dir)
	if err != nil {
		return fmt.Errorf("prepare documents: %w", err)
	}
	at.docs, at.files = sel, files
	if sel.CV == nil {
		at.log.Warn("no cv available for this application")
	}
	return nil
}

// finish persists the attempt, advances the job on success and notifies the
// user. It runs even when ctx is already cancelled.
func (ap *Applicant) finish(ctx context.Context, at *attempt, started time.Time) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), finishTimeout)
	defer cancel()

	res := at.result
	app := &Application{
		ID:                  res.ApplicationID,
		JobID:               at.job.ID,
		UserID:              at.userID,
		Status:              StatusFailed,
		Method:              res.Method,
		CreatedAt:           started.UTC(),
		Error:               res.Error,
		ScreenshotKey:       res.ScreenshotKey,
		ConfirmationMessage: res.ConfirmationMessage,
		Fill:                res.Fill,
	}
	if at.docs.CV != nil {
		app.CVDocumentID = at.docs.CV.ID
	}
	if at.docs.CoverLetter != nil {
		app.CoverLetterDocumentID = at.docs.CoverLetter.ID
	}
	if res.Success {
		appliedAt := ap.now().UTC()
		app.Status = StatusSubmitted
		app.AppliedAt = &appliedAt
	}

	if err := ap.record(ctx, app); err != nil {
		at.log.Error("recording application", zap.Error(err))
	}
	if res.Success {
		if err := ap.deps.Jobs.UpdateJobStatus(ctx, at.userID, at.job.ID, jobs.StatusApplied, app.ID); err != nil {
			at.log.Error("marking job applied", zap.Error(err))
		}
	}

	at.log.Info("application attempt finished",
		zap.Bool("success", res.Success),
		zap.String("error", res.Error),
		zap.Duration("took", ap.now().Sub(started)),
	)

	if ap.deps.Notifier != nil {
		ap.deps.Notifier.Send(ctx, at.userID, ap.notification(ctx, at))
	}
}

func (ap *Applicant) notification(ctx context.Context, at *attempt) notify.Notification {
	res := at.result
	n := notify.Notification{
		Priority:      notify.PriorityNormal,
		JobID:         at.job.ID,
		ApplicationID: res.ApplicationID,
		Data: map[string]string{
			"method":   string(res.Method),
			"platform": at.job.Platform,
			"company":  at.job.Company,
		},
		CreatedAt: ap.now().UTC(),
	}

	switch {
	case res.Success:
		n.Kind = notify.KindApplicationSubmitted
		n.Title = fmt.Sprintf("Applied to %s at %s", at.job.Title, at.job.Company)
		n.Message = res.ConfirmationMessage
	case res.Method == MethodManual:
		n.Kind = notify.KindManualReview
		n.Priority = notify.PriorityHigh
		n.Title = fmt.Sprintf("%s at %s needs your attention", at.job.Title, at.job.Company)
		n.Message = res.Error
	default:
		n.Kind = notify.KindApplicationFailed
		n.Title = fmt.Sprintf("Application to %s at %s failed", at.job.Title, at.job.Company)
		n.Message = res.Error
	}

	if res.ScreenshotKey != "" {
		link, err := ap.deps.Store.PresignedURL(ctx, res.ScreenshotKey, ap.cfg.LinkTTL)
		switch {
		case err == nil:
			n.Link = link
		case !errors.Is(err, storage.ErrUnsupported):
			at.log.Debug("screenshot link unavailable", zap.Error(err))
		}
	}
	return n
}

// capture stores a screenshot of the current page and returns its key, or
// "" when no screenshot could be taken.
func (ap *Applicant) capture(ctx context.Context, at *attempt, stage string) string {
	if at.browser == nil {
		return ""
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), finishTimeout)
	defer cancel()

	png, err := at.browser.Screenshot(ctx)
	if err != nil {
		at.log.Warn("taking screenshot", zap.String("stage", stage), zap.Error(err))
		return ""
	}
	key := storage.ScreenshotKey(at.userID, at.result.ApplicationID, stage)
	if err := ap.deps.Store.UploadFile(ctx, key, png, "image/png"); err != nil {
		at.log.Warn("storing screenshot", zap.String("stage", stage), zap.Error(err))
		return ""
	}
	return key
}
