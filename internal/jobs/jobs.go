// Package jobs holds the posting types shared by adapters, scoring and the
// persisted per-user job index.
package jobs

import (
	"regexp"
	"strings"
	"time"
)

// Salary is an optional advertised range.
type Salary struct {
	Min      float64 `json:"min,omitempty" validate:"gte=0"`
	Max      float64 `json:"max,omitempty" validate:"gte=0"`
	Currency string  `json:"currency,omitempty"`
}

// RawJob is a posting as fetched from a platform. Platform plus ExternalID is
// the natural key.
type RawJob struct {
	ExternalID  string     `json:"externalId" validate:"required"`
	Platform    string     `json:"platform" validate:"required"`
	Title       string     `json:"title" validate:"required"`
	Company     string     `json:"company"`
	Location    string     `json:"location"`
	Remote      bool       `json:"remote"`
	Description string     `json:"description"`
	URL         string     `json:"url,omitempty" validate:"omitempty,url"`
	Salary      *Salary    `json:"salary,omitempty"`
	Tags        []string   `json:"tags,omitempty"`
	PostedAt    *time.Time `json:"postedAt,omitempty"`
	FetchedAt   time.Time  `json:"fetchedAt"`
}

// Analysis is the AI explanation attached to a score.
type Analysis struct {
	Strengths       []string `json:"strengths"`
	Concerns        []string `json:"concerns"`
	MissingSkills   []string `json:"missingSkills"`
	Recommendations []string `json:"recommendations"`
}

// ScoredJob is a RawJob rated against a profile.
type ScoredJob struct {
	RawJob
	ID         string    `json:"id"`
	MatchScore int       `json:"matchScore"`
	Analysis   *Analysis `json:"analysis,omitempty"`
}

// Job is the persisted per-job detail document.
type Job struct {
	ScoredJob
	Status        Status     `json:"status"`
	SavedAt       time.Time  `json:"savedAt"`
	UpdatedAt     time.Time  `json:"updatedAt"`
	AppliedAt     *time.Time `json:"appliedAt,omitempty"`
	ApplicationID string     `json:"applicationId,omitempty"`
}

// Summary is the index row projected from a Job.
type Summary struct {
	ID         string     `json:"id"`
	ExternalID string     `json:"externalId"`
	Platform   string     `json:"platform"`
	Title      string     `json:"title"`
	Company    string     `json:"company"`
	Location   string     `json:"location"`
	Remote     bool       `json:"remote"`
	MatchScore int        `json:"matchScore"`
	Status     Status     `json:"status"`
	SavedAt    time.Time  `json:"savedAt"`
	UpdatedAt  time.Time  `json:"updatedAt"`
	AppliedAt  *time.Time `json:"appliedAt,omitempty"`
}

// Index is the per-user job index document.
type Index struct {
	Jobs []Summary `json:"jobs"`
}

// Raw returns the posting itself.
func (j RawJob) Raw() RawJob { return j }

// Score reports that a raw posting carries no score.
func (j RawJob) Score() (int, bool) { return 0, false }

// Score returns the match score.
func (j ScoredJob) Score() (int, bool) { return j.MatchScore, true }

// Summary projects the job into its index row.
func (j Job) Summary() Summary {
	return Summary{
		ID:         j.ID,
		ExternalID: j.ExternalID,
		Platform:   j.Platform,
		Title:      j.Title,
		Company:    j.Company,
		Location:   j.Location,
		Remote:     j.Remote,
		MatchScore: j.MatchScore,
		Status:     j.Status,
		SavedAt:    j.SavedAt,
		UpdatedAt:  j.UpdatedAt,
		AppliedAt:  j.AppliedAt,
	}
}

// Find returns the position of id in the index or -1.
func (idx *Index) Find(id string) int {
	for i := range idx.Jobs {
		if idx.Jobs[i].ID == id {
			return i
		}
	}
	return -1
}

var nonSlug = regexp.MustCompile(`[^a-z0-9]+`)

// NewID derives the stable job id from the natural key.
func NewID(platform, externalID string) string {
	slug := nonSlug.ReplaceAllString(strings.ToLower(platform+"-"+externalID), "-")
	return strings.Trim(slug, "-")
}

// Query is a platform-agnostic search request.
type Query struct {
	Text              string   `json:"query" mapstructure:"query"`
	Keywords          []string `json:"keywords,omitempty" mapstructure:"keywords"`
	Location          string   `json:"location,omitempty" mapstructure:"location"`
	Remote            bool     `json:"remote,omitempty" mapstructure:"remote"`
	MinSalary         float64  `json:"minSalary,omitempty" mapstructure:"min-salary"`
	ExcludedCompanies []string `json:"excludedCompanies,omitempty" mapstructure:"excluded-companies"`
	Limit             int      `json:"limit,omitempty" mapstructure:"limit"`
}

// Terms returns the free text followed by the keywords, deduplicated.
func (q Query) Terms() []string {
	seen := make(map[string]struct{})
	var out []string
	for _, term := range append([]string{q.Text}, q.Keywords...) {
		term = strings.TrimSpace(term)
		key := strings.ToLower(term)
		if term == "" {
			continue
		}
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, term)
	}
	return out
}
