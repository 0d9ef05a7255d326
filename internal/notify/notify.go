// Package notify delivers best-effort user notifications about automated
// applications.
package notify

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/spigell/job-autopilot/internal/logger"
)

type Kind string

const (
	KindApplicationSubmitted Kind = "application_submitted"
	KindApplicationFailed    Kind = "application_failed"
	KindManualReview         Kind = "manual_review"
)

type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityNormal Priority = "normal"
	PriorityHigh   Priority = "high"
)

type Notification struct {
	Kind          Kind              `json:"kind"`
	Priority      Priority          `json:"priority"`
	Title         string            `json:"title"`
	Message       string            `json:"message"`
	JobID         string            `json:"jobId,omitempty"`
	ApplicationID string            `json:"applicationId,omitempty"`
	Link          string            `json:"link,omitempty"`
	Data          map[string]string `json:"data,omitempty"`
	CreatedAt     time.Time         `json:"createdAt"`
}

// Sender is one delivery backend.
type Sender interface {
	Name() string
	Send(ctx context.Context, userID string, n Notification) error
}

// Dispatcher fans a notification out to every sender. Failures are logged
// and never returned.
type Dispatcher struct {
	senders []Sender
	logger  *zap.Logger
	now     func() time.Time
}

func NewDispatcher(log *zap.Logger, senders ...Sender) *Dispatcher {
	return &Dispatcher{senders: senders, logger: logger.OrNop(log), now: time.Now}
}

func (d *Dispatcher) Send(ctx context.Context, userID string, n Notification) {
	if d == nil {
		return
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = d.now().UTC()
	}
	if n.Priority == "" {
		n.Priority = PriorityNormal
	}
	for _, s := range d.senders {
		if err := s.Send(ctx, userID, n); err != nil {
			d.logger.Warn("notification delivery failed",
				zap.String("sender", s.Name()),
				zap.String(logger.FieldUserID, userID),
				zap.String("kind", string(n.Kind)),
				zap.String("priority", string(n.Priority)),
				zap.Error(err),
			)
		}
	}
}

// Log writes notifications to the process log.
type Log struct {
	logger *zap.Logger
}

func NewLog(log *zap.Logger) *Log { return &Log{logger: logger.OrNop(log)} }

func (l *Log) Name() string { return "log" }

func (l *Log) Send(_ context.Context, userID string, n Notification) error {
	level := zap.InfoLevel
	if n.Priority == PriorityHigh {
		level = zap.WarnLevel
	}
	l.logger.Log(level, n.Title,
		zap.String(logger.FieldUserID, userID),
		zap.String(logger.FieldJobID, n.JobID),
		zap.String("kind", string(n.Kind)),
		zap.String("priority", string(n.Priority)),
		zap.String("message", n.Message),
		zap.String("link", n.Link),
		zap.Any("data", n.Data),
	)
	return nil
}
