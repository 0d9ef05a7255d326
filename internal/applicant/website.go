package applicant

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/spigell/job-autopilot/internal/formfill"
)

// minConfidence is the lowest AI confidence at which a field is filled.
const minConfidence = 0.3

var applySelectors = []string{
	"a[href*='apply']",
	"button[data-qa*='apply']",
	"a[data-qa*='apply']",
	"#apply-button",
	".apply-button",
	"button.apply",
	"a.apply",
	"[aria-label*='Apply']",
}

var submitSelectors = []string{
	"button[type='submit']",
	"input[type='submit']",
	"#submit_app",
	"button[data-qa*='submit']",
	"[aria-label*='Submit']",
	".submit-button",
	"button.submit",
}

// FieldOutcome is what happened to one field.
type FieldOutcome struct {
	Selector string `json:"selector"`
	Type     string `json:"type"`
	Filled   bool   `json:"filled"`
	Skipped  bool   `json:"skipped,omitempty"`
	Error    string `json:"error,omitempty"`
}

// FillReport folds the outcomes of every fill step.
type FillReport struct {
	Filled  int            `json:"filled"`
	Failed  int            `json:"failed"`
	Skipped int            `json:"skipped"`
	Fields  []FieldOutcome `json:"fields"`
}

func (r FillReport) add(o FieldOutcome) FillReport {
	switch {
	case o.Filled:
		r.Filled++
	case o.Skipped:
		r.Skipped++
	default:
		r.Failed++
	}
	r.Fields = append(r.Fields, o)
	return r
}

func (ap *Applicant) applyOnWebsite(ctx context.Context, at *attempt, url string) {
	res := at.result
	if ap.deps.Launch == nil || ap.deps.Forms == nil {
		res.Method = MethodManual
		res.Error = "browser automation is not configured: apply manually at " + url
		return
	}

	b, err := ap.deps.Launch(ctx)
	if err != nil {
		res.Error = fmt.Sprintf("launch browser: %v", err)
		return
	}
	at.browser = b

	if err := b.Navigate(ctx, url); err != nil {
		ap.fail(ctx, at, "navigate", err)
		return
	}
	ap.wait(ctx, at)
	if err := b.HumanScroll(ctx); err != nil {
		at.log.Debug("scrolling page", zap.Error(err))
	}

	if sel, ok, err := b.FindFirst(ctx, applySelectors); err == nil && ok {
		if err := b.HumanClick(ctx, sel); err != nil {
			at.log.Debug("clicking apply control", zap.String("selector", sel), zap.Error(err))
		} else {
			ap.wait(ctx, at)
		}
	}

	markup, err := b.ExtractFormHTML(ctx)
	if err != nil {
		ap.fail(ctx, at, "extract-form", err)
		return
	}

	analysis := ap.deps.Forms.AnalyzeForm(ctx, markup, at.profile, *at.job)
	if analysis.RequiresManualReview {
		res.Method = MethodManual
		res.Error = "form requires manual review"
		if len(analysis.Warnings) > 0 {
			res.Error += ": " + strings.Join(analysis.Warnings, "; ")
		}
		if len(analysis.MissingRequiredData) > 0 {
			res.Error += " (missing: " + strings.Join(analysis.MissingRequiredData, ", ") + ")"
		}
		res.ScreenshotKey = ap.capture(ctx, at, "manual-review")
		return
	}

	report := FillReport{}
	for _, f := range analysis.Fields {
		report = report.add(ap.fillField(ctx, at, f))
	}
	for _, c := range analysis.CustomAnswers {
		report = report.add(ap.answer(ctx, at, c))
	}
	res.Fill = &report
	at.log.Info("form filled",
		zap.Int("filled", report.Filled),
		zap.Int("failed", report.Failed),
		zap.Int("skipped", report.Skipped),
	)

	submit, ok, err := b.FindFirst(ctx, submitSelectors)
	if err != nil || !ok {
		res.Error = "no submit control found"
		res.ScreenshotKey = ap.capture(ctx, at, "no-submit")
		return
	}
	if err := b.HumanClick(ctx, submit); err != nil {
		ap.fail(ctx, at, "submit", err)
		return
	}

	ap.wait(ctx, at)
	res.ScreenshotKey = ap.capture(ctx, at, "submitted")

	ok, message, err := b.DetectSuccess(ctx)
	switch {
	case err != nil:
		res.Error = fmt.Sprintf("checking confirmation: %v", err)
	case !ok:
		res.Error = "no confirmation detected after submitting"
	default:
		res.Success = true
		res.ConfirmationMessage = message
	}
}

func (ap *Applicant) fillField(ctx context.Context, at *attempt, f formfill.Field) FieldOutcome {
	out := FieldOutcome{Selector: f.Selector, Type: f.Type}
	if f.Confidence > 0 && f.Confidence < minConfidence {
		out.Skipped = true
		return out
	}

	b := at.browser
	var err error
	switch f.Type {
	case formfill.TypeFile:
		path := at.files.CV
		if f.Value == formfill.UploadCoverLetter {
			path = at.files.CoverLetter
		}
		if path == "" {
			out.Skipped = true
			return out
		}
		err = b.UploadFile(ctx, f.Selector, path)
	case formfill.TypeSelect:
		err = b.SelectOption(ctx, f.Selector, f.Value)
	case formfill.TypeCheckbox, formfill.TypeRadio:
		if !truthy(f.Value) {
			out.Skipped = true
			return out
		}
		err = b.Check(ctx, f.Selector)
	default:
		if strings.TrimSpace(f.Value) == "" {
			out.Skipped = true
			return out
		}
		err = b.HumanType(ctx, f.Selector, f.Value)
	}

	if err != nil {
		at.log.Debug("filling field", zap.String("selector", f.Selector), zap.Error(err))
		out.Error = err.Error()
		return out
	}
	out.Filled = true
	return out
}

func (ap *Applicant) answer(ctx context.Context, at *attempt, c formfill.CustomAnswer) FieldOutcome {
	out := FieldOutcome{Selector: c.Selector, Type: formfill.TypeTextarea}
	if strings.TrimSpace(c.Answer) == "" {
		out.Skipped = true
		return out
	}
	if err := at.browser.HumanType(ctx, c.Selector, c.Answer); err != nil {
		out.Error = err.Error()
		return out
	}
	out.Filled = true
	return out
}

func (ap *Applicant) wait(ctx context.Context, at *attempt) {
	if err := at.browser.SmartWait(ctx, ap.cfg.WaitTimeout); err != nil {
		at.log.Debug("waiting for page", zap.Error(err))
	}
}

func (ap *Applicant) fail(ctx context.Context, at *attempt, stage string, err error) {
	at.result.Error = fmt.Sprintf("%s: %v", stage, err)
	at.result.ScreenshotKey = ap.capture(ctx, at, stage)
}

func truthy(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "true", "yes", "on", "1", "checked":
		return true
	}
	return false
}
