package headhunter

import (
	"regexp"
	"strings"
	"time"

	"github.com/spigell/job-autopilot/internal/jobs"
)

const publishedLayout = "2006-01-02T15:04:05-0700"

var markup = regexp.MustCompile(`<[^>]+>`)

type Vacancies struct {
	Items []*Vacancy
}

type Named struct {
	ID   string `json:"id,omitempty"`
	Name string `json:"name,omitempty"`
}

type Salary struct {
	From     float64 `json:"from,omitempty"`
	To       float64 `json:"to,omitempty"`
	Currency string  `json:"currency,omitempty"`
	Gross    bool    `json:"gross,omitempty"`
}

type Employer struct {
	ID           string `json:"id,omitempty"`
	Name         string `json:"name,omitempty"`
	AlternateURL string `json:"alternate_url,omitempty"`
	Trusted      bool   `json:"trusted,omitempty"`
}

type Snippet struct {
	Requirement    string `json:"requirement,omitempty"`
	Responsibility string `json:"responsibility,omitempty"`
}

type Vacancy struct {
	ID                string   `json:"id,omitempty"`
	Name              string   `json:"name,omitempty"`
	Area              Named    `json:"area,omitempty"`
	HasTest           bool     `json:"has_test,omitempty"`
	Salary            *Salary  `json:"salary,omitempty"`
	Experience        Named    `json:"experience,omitempty"`
	Schedule          Named    `json:"schedule,omitempty"`
	Employer          Employer `json:"employer,omitempty"`
	AlternateURL      string   `json:"alternate_url,omitempty"`
	Employment        Named    `json:"employment,omitempty"`
	Description       string   `json:"description,omitempty"`
	KeySkills         []Named  `json:"key_skills,omitempty"`
	Archived          bool     `json:"archived,omitempty"`
	Snippet           Snippet  `json:"snippet,omitempty"`
	ProfessionalRoles []Named  `json:"professional_roles,omitempty"`
	PublishedAt       string   `json:"published_at,omitempty"`
}

func (v *Vacancies) Len() int {
	return len(v.Items)
}

// ToRawJob maps a vacancy onto the shared posting type.
func (va *Vacancy) ToRawJob(fetched time.Time) jobs.RawJob {
	job := jobs.RawJob{
		ExternalID:  va.ID,
		Platform:    Name,
		Title:       strings.TrimSpace(va.Name),
		Company:     strings.TrimSpace(va.Employer.Name),
		Location:    strings.TrimSpace(va.Area.Name),
		Remote:      va.Schedule.ID == scheduleRemote,
		Description: va.text(),
		URL:         va.AlternateURL,
		FetchedAt:   fetched,
	}

	if s := va.Salary; s != nil && (s.From > 0 || s.To > 0) {
		job.Salary = &jobs.Salary{Min: s.From, Max: s.To, Currency: s.Currency}
	}
	for _, skill := range va.KeySkills {
		job.Tags = append(job.Tags, skill.Name)
	}
	for _, role := range va.ProfessionalRoles {
		job.Tags = append(job.Tags, role.Name)
	}
	if va.HasTest {
		job.Tags = append(job.Tags, "has_test")
	}
	if t, err := time.Parse(publishedLayout, va.PublishedAt); err == nil {
		job.PostedAt = &t
	}
	return job
}

func (va *Vacancy) text() string {
	parts := []string{va.Description, va.Snippet.Requirement, va.Snippet.Responsibility}
	var kept []string
	for _, p := range parts {
		if p = strings.TrimSpace(markup.ReplaceAllString(p, "")); p != "" {
			kept = append(kept, p)
		}
	}
	return strings.Join(kept, "\n")
}
