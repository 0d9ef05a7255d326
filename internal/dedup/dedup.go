// Package dedup collapses near-identical postings coming from different
// sources into one record.
package dedup

import (
	"regexp"
	"strings"

	"github.com/adrg/strutil"
	"github.com/adrg/strutil/metrics"

	"github.com/spigell/job-autopilot/internal/jobs"
)

// Threshold is the minimum Jaro-Winkler similarity of both company and title.
const Threshold = 0.85

// Posting is anything carrying a raw job and an optional score.
type Posting interface {
	Raw() jobs.RawJob
	Score() (int, bool)
}

var (
	legalSuffix = regexp.MustCompile(`\b(inc|llc|ltd|corp|co)\b\.?`)
	nonWord     = regexp.MustCompile(`[^\p{L}\p{N}]+`)

	jaroWinkler = metrics.NewJaroWinkler()
)

// NormalizeCompany lowercases and removes legal suffixes, punctuation and spaces.
func NormalizeCompany(s string) string {
	s = strings.ToLower(s)
	s = legalSuffix.ReplaceAllString(s, " ")
	return nonWord.ReplaceAllString(s, "")
}

// NormalizeTitle lowercases and removes punctuation and spaces.
func NormalizeTitle(s string) string {
	return nonWord.ReplaceAllString(strings.ToLower(s), "")
}

// Similarity is the Jaro-Winkler similarity in [0, 1].
func Similarity(a, b string) float64 {
	if a == b {
		return 1
	}
	if a == "" || b == "" {
		return 0
	}
	return strutil.Similarity(a, b, jaroWinkler)
}

type key struct {
	company string
	title   string
}

func keyOf(p Posting) key {
	raw := p.Raw()
	return key{company: NormalizeCompany(raw.Company), title: NormalizeTitle(raw.Title)}
}

// IsDuplicate reports whether a and b describe the same opening.
func IsDuplicate(a, b Posting) bool {
	return duplicate(keyOf(a), keyOf(b))
}

func duplicate(a, b key) bool {
	return Similarity(a.company, b.company) >= Threshold && Similarity(a.title, b.title) >= Threshold
}

// Better reports whether a should be kept over b. Ties keep b, the earlier one.
func Better(a, b Posting) bool {
	if sa, ok := a.Score(); ok {
		if sb, ok := b.Score(); ok && sa != sb {
			return sa > sb
		}
	}

	ra, rb := a.Raw(), b.Raw()
	if la, lb := len(ra.Description), len(rb.Description); la != lb {
		return la > lb
	}
	if ha, hb := ra.Salary != nil, rb.Salary != nil; ha != hb {
		return ha
	}
	if ha, hb := ra.URL != "", rb.URL != ""; ha != hb {
		return ha
	}
	if ra.PostedAt != nil && rb.PostedAt != nil && !ra.PostedAt.Equal(*rb.PostedAt) {
		return ra.PostedAt.After(*rb.PostedAt)
	}
	if (ra.PostedAt != nil) != (rb.PostedAt != nil) {
		return ra.PostedAt != nil
	}
	return false
}

// Deduplicate keeps one posting per group of duplicates. The kept posting sits
// at the position of the group's first occurrence. The result contains no
// pair of duplicates, so running it twice changes nothing.
func Deduplicate[T Posting](items []T) []T {
	out := make([]T, 0, len(items))
	keys := make([]key, 0, len(items))

	for _, item := range items {
		k := keyOf(item)

		var matches []int
		for i := range out {
			if duplicate(keys[i], k) {
				matches = append(matches, i)
			}
		}

		if len(matches) == 0 {
			out = append(out, item)
			keys = append(keys, k)
			continue
		}

		// Fold the matched group plus the newcomer in first-seen order.
		winner, winnerKey := out[matches[0]], keys[matches[0]]
		for _, i := range matches[1:] {
			if Better(out[i], winner) {
				winner, winnerKey = out[i], keys[i]
			}
		}
		if Better(item, winner) {
			winner, winnerKey = item, k
		}

		out[matches[0]], keys[matches[0]] = winner, winnerKey
		for n := len(matches) - 1; n >= 1; n-- {
			i := matches[n]
			out = append(out[:i], out[i+1:]...)
			keys = append(keys[:i], keys[i+1:]...)
		}
	}

	return out
}
