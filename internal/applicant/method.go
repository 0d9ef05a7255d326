package applicant

import (
	"net/url"
	"regexp"
	"strings"

	"github.com/spigell/job-autopilot/internal/jobs"
)

const addrPattern = `(?P<addr>[A-Z0-9._%+-]+@[A-Z0-9.-]+\.[A-Z]{2,})`

// emailInstructions match "send your resume to x@y", "to apply, email x@y"
// and "email x@y with your CV".
var emailInstructions = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\b(?:send|email|e-mail|mail|forward|submit|apply)\b[^@\n]{0,60}?\b(?:resume|cv|cover letter|application|portfolio)s?\b[^@\n]{0,40}?` + addrPattern),
	regexp.MustCompile(`(?i)\bapply\b[^@\n]{0,30}?\b(?:by\s+)?e-?mail(?:ing)?\b[^@\n]{0,20}?` + addrPattern),
	regexp.MustCompile(`(?i)\be-?mail(?:ing)?\s+(?:us\s+at\s+)?` + addrPattern + `[^\n]{0,60}?\b(?:resume|cv|cover letter|application|portfolio)s?\b`),
}

var linkPattern = regexp.MustCompile(`https?://[^\s"'<>)]+`)

var atsHosts = []string{
	"greenhouse.io",
	"lever.co",
	"myworkdayjobs.com",
	"workday.com",
	"ashbyhq.com",
	"smartrecruiters.com",
	"workable.com",
	"bamboohr.com",
	"jobvite.com",
	"icims.com",
	"recruitee.com",
	"breezy.hr",
}

// manualHosts never accept an automated application. The HN item page is
// a discussion thread, not a form.
var manualHosts = []string{
	"linkedin.com",
	"news.ycombinator.com",
}

// DetectMethod chooses how to apply and returns the target: an email
// address or a URL. An applicant tracking system link in the description
// is preferred over a posting URL that points anywhere else.
func DetectMethod(job jobs.Job) (Method, string) {
	if addr := ExtractEmail(job.Description); addr != "" {
		return MethodEmail, addr
	}

	raw := strings.TrimSpace(job.URL)
	host := hostOf(raw)
	if !isATS(host) {
		if link := atsLink(job.Description); link != "" {
			return MethodWebsite, link
		}
	}

	if host == "" {
		return MethodManual, ""
	}
	for _, manual := range manualHosts {
		if hostIs(host, manual) {
			return MethodManual, raw
		}
	}
	// Anything else is tried as a generic careers page.
	return MethodWebsite, raw
}

// hostOf returns the lower-cased host of an absolute URL or "".
func hostOf(raw string) string {
	if raw == "" {
		return ""
	}
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	return strings.ToLower(u.Hostname())
}

func isATS(host string) bool {
	if host == "" {
		return false
	}
	for _, ats := range atsHosts {
		if hostIs(host, ats) {
			return true
		}
	}
	return false
}

// atsLink returns the first applicant tracking system link in text.
func atsLink(text string) string {
	for _, link := range linkPattern.FindAllString(text, -1) {
		link = strings.TrimRight(link, ".,;")
		if isATS(hostOf(link)) {
			return link
		}
	}
	return ""
}

func hostIs(host, domain string) bool {
	return host == domain || strings.HasSuffix(host, "."+domain)
}

// ExtractEmail returns the address from an explicit application
// instruction, or "" when there is none.
func ExtractEmail(text string) string {
	for _, re := range emailInstructions {
		m := re.FindStringSubmatch(text)
		if m == nil {
			continue
		}
		return strings.TrimRight(m[re.SubexpIndex("addr")], ".")
	}
	return ""
}
