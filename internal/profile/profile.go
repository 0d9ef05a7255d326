// Package profile holds the candidate documents read from the store: the
// profile, automation settings and saved search configurations.
package profile

import (
	"strings"
	"time"
)

type Contact struct {
	FullName string `json:"fullName" validate:"required"`
	Email    string `json:"email" validate:"required,email"`
	Phone    string `json:"phone,omitempty"`
	Location string `json:"location,omitempty"`
	LinkedIn string `json:"linkedin,omitempty" validate:"omitempty,url"`
	GitHub   string `json:"github,omitempty" validate:"omitempty,url"`
	Website  string `json:"website,omitempty" validate:"omitempty,url"`
}

type Skill struct {
	Name  string `json:"name" validate:"required"`
	Level string `json:"level,omitempty"`
	Years int    `json:"years,omitempty" validate:"gte=0"`
}

// Experience dates use "YYYY-MM"; an empty End means current.
type Experience struct {
	Title        string   `json:"title" validate:"required"`
	Company      string   `json:"company" validate:"required"`
	Start        string   `json:"start" validate:"required"`
	End          string   `json:"end,omitempty"`
	Description  string   `json:"description,omitempty"`
	Achievements []string `json:"achievements,omitempty"`
}

type Education struct {
	Institution string `json:"institution" validate:"required"`
	Degree      string `json:"degree,omitempty"`
	Field       string `json:"field,omitempty"`
	Year        int    `json:"year,omitempty"`
}

// RemotePreference values.
const (
	RemoteAny    = "any"
	RemoteOnly   = "remote"
	RemoteHybrid = "hybrid"
	RemoteOnsite = "onsite"
)

type Preferences struct {
	Keywords          []string `json:"keywords,omitempty"`
	RemotePreference  string   `json:"remotePreference,omitempty" validate:"omitempty,oneof=any remote hybrid onsite"`
	Locations         []string `json:"locations,omitempty"`
	MinSalary         float64  `json:"minSalary,omitempty" validate:"gte=0"`
	ExcludedCompanies []string `json:"excludedCompanies,omitempty"`
}

// Profile is the candidate description used for scoring and form filling.
type Profile struct {
	UserID      string       `json:"userId" validate:"required"`
	Contact     Contact      `json:"contact"`
	Headline    string       `json:"headline,omitempty"`
	Summary     string       `json:"summary,omitempty"`
	Skills      []Skill      `json:"skills" validate:"dive"`
	Experience  []Experience `json:"experience" validate:"dive"`
	Education   []Education  `json:"education" validate:"dive"`
	Preferences Preferences  `json:"preferences"`
}

// SkillNames returns the non-empty skill names.
func (p *Profile) SkillNames() []string {
	out := make([]string, 0, len(p.Skills))
	for _, s := range p.Skills {
		if name := strings.TrimSpace(s.Name); name != "" {
			out = append(out, name)
		}
	}
	return out
}

// YearsOfExperience counts whole years since the earliest experience start.
func (p *Profile) YearsOfExperience(now time.Time) int {
	var earliest time.Time
	for _, e := range p.Experience {
		start, ok := parseMonth(e.Start)
		if !ok {
			continue
		}
		if earliest.IsZero() || start.Before(earliest) {
			earliest = start
		}
	}
	if earliest.IsZero() || !now.After(earliest) {
		return 0
	}

	years := now.Year() - earliest.Year()
	if now.Month() < earliest.Month() {
		years--
	}
	return max(years, 0)
}

func parseMonth(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	for _, layout := range []string{"2006-01", "2006-01-02", "2006"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
