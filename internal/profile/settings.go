package profile

import "time"

const (
	DefaultMaxApplicationsPerDay = 10
	DefaultMinMatchScore         = 70
)

type AutoApply struct {
	Enabled               bool `json:"enabled"`
	MaxApplicationsPerDay int  `json:"maxApplicationsPerDay" validate:"gte=0,lte=100"`
	MinMatchScore         int  `json:"minMatchScore" validate:"gte=0,lte=100"`
}

type AutoSearch struct {
	Enabled bool `json:"enabled"`
}

// Email describes the user's connected mailbox used for email applications.
type Email struct {
	Connected bool   `json:"connected"`
	Address   string `json:"address,omitempty" validate:"omitempty,email"`
}

type Settings struct {
	AutoApply  AutoApply  `json:"autoApply"`
	AutoSearch AutoSearch `json:"autoSearch"`
	Email      Email      `json:"email"`
}

// DefaultSettings is used for users without a settings document.
func DefaultSettings() Settings {
	return Settings{
		AutoApply: AutoApply{
			MaxApplicationsPerDay: DefaultMaxApplicationsPerDay,
			MinMatchScore:         DefaultMinMatchScore,
		},
	}
}

// Frequency of a saved search.
type Frequency string

const (
	Hourly Frequency = "hourly"
	Daily  Frequency = "daily"
	Weekly Frequency = "weekly"
)

// Period is the minimum spacing between two runs.
func (f Frequency) Period() time.Duration {
	switch f {
	case Hourly:
		return time.Hour
	case Weekly:
		return 7 * 24 * time.Hour
	default:
		return 24 * time.Hour
	}
}
