package browser

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/chromedp/chromedp"
)

var successPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)thank(s| you) for (applying|your application|your interest|submitting)`),
	regexp.MustCompile(`(?i)application (has been |was )?(received|submitted|sent|complete)`),
	regexp.MustCompile(`(?i)we('ve| have) received your (application|submission)`),
	regexp.MustCompile(`(?i)successfully (submitted|applied)`),
	regexp.MustCompile(`(?i)you('ve| have) (successfully )?applied`),
}

// messageSelectors are read in order for a confirmation message.
var messageSelectors = []string{
	"[role=alert]",
	".alert-success",
	".success",
	".confirmation",
	"h1",
	"h2",
}

// MatchSuccess reports whether text contains submission confirmation language.
func MatchSuccess(text string) bool {
	for _, re := range successPatterns {
		if re.MatchString(text) {
			return true
		}
	}
	return false
}

// DetectSuccess looks for confirmation language on the current page and
// returns the most prominent message it can find.
func (s *Session) DetectSuccess(ctx context.Context) (bool, string, error) {
	var body string
	err := s.run(ctx, s.opts.actionTimeout(), chromedp.Evaluate(`document.body ? document.body.innerText : ""`, &body))
	if err != nil {
		return false, "", fmt.Errorf("read page text: %w", err)
	}
	if !MatchSuccess(body) {
		return false, "", nil
	}

	for _, sel := range messageSelectors {
		text, err := s.GetText(ctx, sel)
		if err == nil && text != "" {
			return true, firstLine(text), nil
		}
	}
	return true, "", nil
}

func firstLine(s string) string {
	s, _, _ = strings.Cut(strings.TrimSpace(s), "\n")
	return strings.TrimSpace(s)
}
