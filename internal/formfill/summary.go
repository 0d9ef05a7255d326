package formfill

import (
	"time"

	"github.com/spigell/job-autopilot/internal/profile"
)

// ProfileSummary is the compact candidate view sent with a form.
type ProfileSummary struct {
	FullName          string               `json:"fullName"`
	Email             string               `json:"email"`
	Phone             string               `json:"phone,omitempty"`
	Location          string               `json:"location,omitempty"`
	LinkedIn          string               `json:"linkedin,omitempty"`
	GitHub            string               `json:"github,omitempty"`
	Website           string               `json:"website,omitempty"`
	Headline          string               `json:"headline,omitempty"`
	Summary           string               `json:"summary,omitempty"`
	YearsOfExperience int                  `json:"yearsOfExperience"`
	Skills            []string             `json:"skills"`
	Experience        []profile.Experience `json:"experience"`
	Education         []profile.Education  `json:"education,omitempty"`
}

// Summarize projects p into the form-filling view as of now.
func Summarize(p *profile.Profile, now time.Time) ProfileSummary {
	return ProfileSummary{
		FullName:          p.Contact.FullName,
		Email:             p.Contact.Email,
		Phone:             p.Contact.Phone,
		Location:          p.Contact.Location,
		LinkedIn:          p.Contact.LinkedIn,
		GitHub:            p.Contact.GitHub,
		Website:           p.Contact.Website,
		Headline:          p.Headline,
		Summary:           p.Summary,
		YearsOfExperience: p.YearsOfExperience(now),
		Skills:            p.SkillNames(),
		Experience:        p.Experience,
		Education:         p.Education,
	}
}
