package profile

import (
	"time"

	"github.com/google/uuid"

	"github.com/spigell/job-autopilot/internal/jobs"
)

// SearchConfiguration is a saved query rerun by the auto-search task.
type SearchConfiguration struct {
	ID        string     `json:"id" validate:"required"`
	Query     jobs.Query `json:"query"`
	Frequency Frequency  `json:"frequency" validate:"required,oneof=hourly daily weekly"`
	LastRunAt *time.Time `json:"lastRunAt,omitempty"`
	Enabled   bool       `json:"enabled"`
}

// SearchConfigurations is the per-user document.
type SearchConfigurations struct {
	Configurations []SearchConfiguration `json:"configurations" validate:"dive"`
}

// NewSearchConfiguration returns an enabled configuration with a fresh id.
func NewSearchConfiguration(q jobs.Query, f Frequency) SearchConfiguration {
	return SearchConfiguration{ID: uuid.NewString(), Query: q, Frequency: f, Enabled: true}
}

// Due reports whether the configuration should run at now.
func (c SearchConfiguration) Due(now time.Time) bool {
	if !c.Enabled {
		return false
	}
	if c.LastRunAt == nil {
		return true
	}
	return now.Sub(*c.LastRunAt) >= c.Frequency.Period()
}
