package applicant

import (
	"context"
	"fmt"
	"time"

	"github.com/spigell/job-autopilot/internal/profile"
	"github.com/spigell/job-autopilot/internal/storage"
)

type Status string

const (
	StatusSubmitted Status = "submitted"
	StatusFailed    Status = "failed"
)

// Application is the persisted record of one attempt.
type Application struct {
	ID                    string      `json:"id"`
	JobID                 string      `json:"jobId"`
	UserID                string      `json:"userId"`
	Status                Status      `json:"status"`
	Method                Method      `json:"method"`
	AppliedAt             *time.Time  `json:"appliedAt,omitempty"`
	CreatedAt             time.Time   `json:"createdAt"`
	CVDocumentID          string      `json:"cvDocumentId,omitempty"`
	CoverLetterDocumentID string      `json:"coverLetterDocumentId,omitempty"`
	Error                 string      `json:"error,omitempty"`
	ScreenshotKey         string      `json:"screenshotKey,omitempty"`
	ConfirmationMessage   string      `json:"confirmationMessage,omitempty"`
	Fill                  *FillReport `json:"fill,omitempty"`
}

// Entry is the index row for an Application.
type Entry struct {
	ID        string     `json:"id"`
	JobID     string     `json:"jobId"`
	Status    Status     `json:"status"`
	Method    Method     `json:"method"`
	CreatedAt time.Time  `json:"createdAt"`
	AppliedAt *time.Time `json:"appliedAt,omitempty"`
}

// Index is the append-only application index of one user.
type Index struct {
	Applications []Entry `json:"applications"`
}

// SubmittedOn counts successful applications made on the calendar day of
// day, in day's location.
func (idx Index) SubmittedOn(day time.Time) int {
	y, m, d := day.Date()
	n := 0
	for _, e := range idx.Applications {
		if e.Status != StatusSubmitted || e.AppliedAt == nil {
			continue
		}
		ey, em, ed := e.AppliedAt.In(day.Location()).Date()
		if ey == y && em == m && ed == d {
			n++
		}
	}
	return n
}

// Attempted reports whether any attempt was recorded for jobID.
func (idx Index) Attempted(jobID string) bool {
	for _, e := range idx.Applications {
		if e.JobID == jobID {
			return true
		}
	}
	return false
}

func (a *Application) entry() Entry {
	return Entry{
		ID:        a.ID,
		JobID:     a.JobID,
		Status:    a.Status,
		Method:    a.Method,
		CreatedAt: a.CreatedAt,
		AppliedAt: a.AppliedAt,
	}
}

// History loads the application index of userID.
func (ap *Applicant) History(ctx context.Context, userID string) (Index, error) {
	idx, err := storage.LoadOr(ctx, ap.deps.Store, storage.ApplicationIndexKey(userID), Index{})
	if err != nil {
		return Index{}, fmt.Errorf("load application index: %w", err)
	}
	return idx, nil
}

// RemainingQuota is how many more applications userID may submit today.
func (ap *Applicant) RemainingQuota(ctx context.Context, userID string, settings profile.Settings) (int, error) {
	idx, err := ap.History(ctx, userID)
	if err != nil {
		return 0, err
	}
	return max(dailyLimit(settings)-idx.SubmittedOn(ap.now()), 0), nil
}

func dailyLimit(settings profile.Settings) int {
	if settings.AutoApply.MaxApplicationsPerDay <= 0 {
		return profile.DefaultSettings().AutoApply.MaxApplicationsPerDay
	}
	return settings.AutoApply.MaxApplicationsPerDay
}

func (ap *Applicant) record(ctx context.Context, app *Application) error {
	if err := ap.deps.Store.PutJSON(ctx, storage.ApplicationKey(app.UserID, app.ID), app); err != nil {
		return fmt.Errorf("write application: %w", err)
	}
	err := storage.Update(ctx, ap.deps.Store, storage.ApplicationIndexKey(app.UserID), func(idx *Index) error {
		idx.Applications = append(idx.Applications, app.entry())
		return nil
	})
	if err != nil {
		return fmt.Errorf("update application index: %w", err)
	}
	return nil
}
