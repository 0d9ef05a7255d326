package browser

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand/v2"
	"strings"
	"time"

	"github.com/chromedp/chromedp"

	"github.com/spigell/job-autopilot/internal/utils"
)

// MaxFormHTML bounds ExtractFormHTML.
const MaxFormHTML = 50000

const quietPoll = 500 * time.Millisecond

// js renders a self-invoking script taking one string argument.
func js(body, arg string) string {
	quoted, _ := json.Marshal(arg)
	return fmt.Sprintf("(function(arg){%s})(%s)", body, quoted)
}

func (s *Session) Navigate(ctx context.Context, url string) error {
	if err := s.run(ctx, s.opts.navigationTimeout(), chromedp.Navigate(url), chromedp.WaitReady("body", chromedp.ByQuery)); err != nil {
		return fmt.Errorf("navigate to %s: %w", url, err)
	}
	return nil
}

// HumanType clicks the field, clears it and types text one character at a
// time with a random delay between keys.
func (s *Session) HumanType(ctx context.Context, selector, text string) error {
	if err := s.requireElement(ctx, selector); err != nil {
		return err
	}
	err := s.run(ctx, s.opts.actionTimeout(),
		chromedp.ScrollIntoView(selector, chromedp.ByQuery),
		chromedp.Click(selector, chromedp.ByQuery, chromedp.NodeVisible),
		chromedp.SetValue(selector, "", chromedp.ByQuery),
	)
	if err != nil {
		return fmt.Errorf("focus %s: %w", selector, err)
	}

	for _, r := range text {
		if err := s.run(ctx, s.opts.actionTimeout(), chromedp.SendKeys(selector, string(r), chromedp.ByQuery)); err != nil {
			return fmt.Errorf("type into %s: %w", selector, err)
		}
		if err := utils.WaitFor(ctx, utils.Jitter(40*time.Millisecond, 160*time.Millisecond)); err != nil {
			return err
		}
	}
	return nil
}

// HumanClick scrolls the element into view and clicks it after a short pause.
func (s *Session) HumanClick(ctx context.Context, selector string) error {
	if err := s.requireElement(ctx, selector); err != nil {
		return err
	}
	if err := s.run(ctx, s.opts.actionTimeout(), chromedp.ScrollIntoView(selector, chromedp.ByQuery)); err != nil {
		return fmt.Errorf("scroll to %s: %w", selector, err)
	}
	if err := utils.WaitFor(ctx, utils.Jitter(150*time.Millisecond, 600*time.Millisecond)); err != nil {
		return err
	}
	if err := s.run(ctx, s.opts.actionTimeout(), chromedp.Click(selector, chromedp.ByQuery, chromedp.NodeVisible)); err != nil {
		return fmt.Errorf("click %s: %w", selector, err)
	}
	return nil
}

// HumanScroll scrolls down the page in 2-4 bursts of random length.
func (s *Session) HumanScroll(ctx context.Context) error {
	bursts := 2 + rand.IntN(3)
	for range bursts {
		dy := 200 + rand.IntN(500)
		if err := s.run(ctx, s.opts.actionTimeout(), chromedp.Evaluate(fmt.Sprintf("window.scrollBy(0, %d)", dy), nil)); err != nil {
			return fmt.Errorf("scroll: %w", err)
		}
		if err := utils.WaitFor(ctx, utils.Jitter(300*time.Millisecond, 900*time.Millisecond)); err != nil {
			return err
		}
	}
	return nil
}

// SmartWait waits up to timeout for the document to finish loading and the
// resource count to stop growing, then pauses for a random settle delay.
// Hitting the timeout is not an error.
func (s *Session) SmartWait(ctx context.Context, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	last := -1

	for time.Now().Before(deadline) {
		var state struct {
			Ready     string `json:"ready"`
			Resources int    `json:"resources"`
		}
		expr := `({ready: document.readyState, resources: performance.getEntriesByType('resource').length})`
		if err := s.run(ctx, s.opts.actionTimeout(), chromedp.Evaluate(expr, &state)); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			break
		}
		if state.Ready == "complete" && state.Resources == last {
			break
		}
		last = state.Resources
		if err := utils.WaitFor(ctx, quietPoll); err != nil {
			return err
		}
	}

	return utils.WaitFor(ctx, utils.Jitter(500*time.Millisecond, 1500*time.Millisecond))
}

func (s *Session) UploadFile(ctx context.Context, selector string, paths ...string) error {
	if err := s.requireElement(ctx, selector); err != nil {
		return err
	}
	if err := s.run(ctx, s.opts.actionTimeout(), chromedp.SetUploadFiles(selector, paths, chromedp.ByQuery)); err != nil {
		return fmt.Errorf("upload to %s: %w", selector, err)
	}
	return nil
}

const selectScript = `
var el = document.querySelector(arg.selector);
if (!el || !el.options) { return "missing"; }
var want = arg.value.trim().toLowerCase();
var match = null;
for (var i = 0; i < el.options.length; i++) {
  if (el.options[i].text.trim().toLowerCase() === want) { match = el.options[i]; break; }
}
if (!match) {
  for (var j = 0; j < el.options.length; j++) {
    if (el.options[j].value === arg.value) { match = el.options[j]; break; }
  }
}
if (!match) { return "no-option"; }
el.value = match.value;
el.dispatchEvent(new Event('input', { bubbles: true }));
el.dispatchEvent(new Event('change', { bubbles: true }));
return "ok";
`

// SelectOption picks an option by its visible label, falling back to the
// raw option value.
func (s *Session) SelectOption(ctx context.Context, selector, value string) error {
	arg, _ := json.Marshal(map[string]string{"selector": selector, "value": value})
	expr := fmt.Sprintf("(function(arg){%s})(%s)", selectScript, arg)

	var res string
	if err := s.run(ctx, s.opts.actionTimeout(), chromedp.Evaluate(expr, &res)); err != nil {
		return fmt.Errorf("select %s: %w", selector, err)
	}
	switch res {
	case "ok":
		return nil
	case "missing":
		return fmt.Errorf("select %s: %w", selector, ErrNotFound)
	default:
		return fmt.Errorf("select %s: no option %q", selector, value)
	}
}

// Check ticks a checkbox or radio button unless it is already checked.
func (s *Session) Check(ctx context.Context, selector string) error {
	var checked bool
	if err := s.run(ctx, s.opts.actionTimeout(), chromedp.Evaluate(js(`var el = document.querySelector(arg); return !!(el && el.checked);`, selector), &checked)); err != nil {
		return fmt.Errorf("check %s: %w", selector, err)
	}
	if checked {
		return nil
	}
	return s.HumanClick(ctx, selector)
}

func (s *Session) ElementExists(ctx context.Context, selector string) (bool, error) {
	var ok bool
	err := s.run(ctx, s.opts.actionTimeout(), chromedp.Evaluate(js(`return document.querySelector(arg) !== null;`, selector), &ok))
	if err != nil {
		return false, fmt.Errorf("query %s: %w", selector, err)
	}
	return ok, nil
}

// GetText returns the visible text of the first match, or "" when absent.
func (s *Session) GetText(ctx context.Context, selector string) (string, error) {
	var text string
	err := s.run(ctx, s.opts.actionTimeout(), chromedp.Evaluate(js(`var el = document.querySelector(arg); return el ? (el.innerText || el.textContent || "") : "";`, selector), &text))
	if err != nil {
		return "", fmt.Errorf("read text of %s: %w", selector, err)
	}
	return strings.TrimSpace(text), nil
}

// Screenshot captures the viewport as PNG.
func (s *Session) Screenshot(ctx context.Context) ([]byte, error) {
	var buf []byte
	if err := s.run(ctx, s.opts.actionTimeout(), chromedp.CaptureScreenshot(&buf)); err != nil {
		return nil, fmt.Errorf("screenshot: %w", err)
	}
	return buf, nil
}

// ExtractFormHTML returns the markup of every form on the page, or the body
// when there is none, truncated to MaxFormHTML.
func (s *Session) ExtractFormHTML(ctx context.Context) (string, error) {
	const expr = `(function(){
  var forms = Array.from(document.querySelectorAll('form'));
  if (forms.length === 0) { return document.body ? document.body.outerHTML : ""; }
  return forms.map(function(f){ return f.outerHTML; }).join("\n");
})()`

	var markup string
	if err := s.run(ctx, s.opts.actionTimeout(), chromedp.Evaluate(expr, &markup)); err != nil {
		return "", fmt.Errorf("extract form: %w", err)
	}
	return utils.Truncate(markup, MaxFormHTML), nil
}

// FindFirst returns the first selector in candidates that matches an element.
func (s *Session) FindFirst(ctx context.Context, candidates []string) (string, bool, error) {
	for _, sel := range candidates {
		ok, err := s.ElementExists(ctx, sel)
		if err != nil {
			return "", false, err
		}
		if ok {
			return sel, true, nil
		}
	}
	return "", false, nil
}

func (s *Session) requireElement(ctx context.Context, selector string) error {
	ok, err := s.ElementExists(ctx, selector)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%s: %w", selector, ErrNotFound)
	}
	return nil
}
