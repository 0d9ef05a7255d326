package scoring

import (
	"math"
	"strings"

	"github.com/spigell/job-autopilot/internal/filtering"
	"github.com/spigell/job-autopilot/internal/jobs"
	"github.com/spigell/job-autopilot/internal/profile"
)

const (
	preferenceWeight = 10
	skillsWeight     = 20
)

// QuickScore is the deterministic heuristic: 50 plus or minus preference
// matches plus up to 20 for skill coverage, clamped to [0, 100].
func QuickScore(p *profile.Profile, job jobs.RawJob) int {
	score := NeutralScore
	prefs := p.Preferences

	switch strings.ToLower(strings.TrimSpace(prefs.RemotePreference)) {
	case profile.RemoteOnly:
		score += sign(job.Remote) * preferenceWeight
	case profile.RemoteOnsite:
		score += sign(!job.Remote) * preferenceWeight
	}

	if locationMatches(prefs.Locations, job.Location) {
		score += preferenceWeight
	}

	if prefs.MinSalary > 0 {
		if top, ok := filtering.UpperSalary(job.Salary); ok {
			score += sign(top >= prefs.MinSalary) * preferenceWeight
		}
	}

	if skills := p.SkillNames(); len(skills) > 0 {
		text := strings.ToLower(job.Title + " " + job.Description)
		matched := 0
		for _, skill := range skills {
			if strings.Contains(text, strings.ToLower(skill)) {
				matched++
			}
		}
		score += int(math.Round(float64(matched) / float64(len(skills)) * skillsWeight))
	}

	return clamp(score)
}

func locationMatches(preferred []string, location string) bool {
	location = strings.ToLower(location)
	if location == "" {
		return false
	}
	for _, want := range preferred {
		if want = strings.ToLower(strings.TrimSpace(want)); want != "" && strings.Contains(location, want) {
			return true
		}
	}
	return false
}

func sign(ok bool) int {
	if ok {
		return 1
	}
	return -1
}

func clamp(score int) int {
	return max(0, min(100, score))
}
