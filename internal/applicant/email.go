package applicant

import (
	"bytes"
	"context"
	_ "embed"
	"fmt"
	"path/filepath"
	"strings"
	"text/template"

	gomail "github.com/emersion/go-message/mail"
	"github.com/spf13/afero"
	"go.uber.org/zap"

	"github.com/spigell/job-autopilot/internal/documents"
	"github.com/spigell/job-autopilot/internal/mailer"
)

const maxSkillsInEmail = 6

//go:embed email.tmpl
var emailSource string

var emailTemplate = template.Must(template.New("email").Parse(emailSource))

type emailData struct {
	Company     string
	Title       string
	Source      string
	Headline    string
	Years       int
	Skills      string
	Attachments string
	Name        string
	Phone       string
	Email       string
}

func (ap *Applicant) applyByEmail(ctx context.Context, at *attempt, recipient string) {
	res := at.result
	if ap.deps.Mail == nil || !at.settings.Email.Connected || !ap.deps.Mail.Connected(at.userID) {
		res.Method = MethodManual
		res.Error = fmt.Sprintf("email channel is not connected: send your application to %s", recipient)
		return
	}

	raw, err := ap.composeEmail(at, recipient)
	if err != nil {
		res.Error = fmt.Sprintf("compose email: %v", err)
		return
	}

	if err := ap.deps.Mail.Submit(ctx, at.userID, recipient, raw); err != nil {
		res.Error = fmt.Sprintf("submit email: %v", err)
		return
	}

	res.Success = true
	res.ConfirmationMessage = fmt.Sprintf("Application email to %s prepared", recipient)
	at.log.Info("application email handed to mail channel", zap.String("recipient", recipient))
}

func (ap *Applicant) composeEmail(at *attempt, recipient string) ([]byte, error) {
	p, job := at.profile, at.job

	var attachments []mailer.Attachment
	var names []string
	for _, f := range []struct{ path, label, contentType string }{
		{at.files.CV, "CV", contentTypeOf(at.docs.CV)},
		{at.files.CoverLetter, "cover letter", contentTypeOf(at.docs.CoverLetter)},
	} {
		if f.path == "" {
			continue
		}
		data, err := afero.ReadFile(ap.deps.FS, f.path)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", f.label, err)
		}
		attachments = append(attachments, mailer.Attachment{
			FileName:    filepath.Base(f.path),
			ContentType: f.contentType,
			Data:        data,
		})
		names = append(names, f.label)
	}

	skills := p.SkillNames()
	if len(skills) > maxSkillsInEmail {
		skills = skills[:maxSkillsInEmail]
	}

	from := at.settings.Email.Address
	if from == "" {
		from = p.Contact.Email
	}

	var body bytes.Buffer
	err := emailTemplate.Execute(&body, emailData{
		Company:     job.Company,
		Title:       job.Title,
		Source:      job.Platform,
		Headline:    p.Headline,
		Years:       p.YearsOfExperience(ap.now()),
		Skills:      strings.Join(skills, ", "),
		Attachments: strings.Join(names, " and "),
		Name:        p.Contact.FullName,
		Phone:       p.Contact.Phone,
		Email:       from,
	})
	if err != nil {
		return nil, fmt.Errorf("render body: %w", err)
	}

	return mailer.Compose(mailer.Message{
		From:        gomail.Address{Name: p.Contact.FullName, Address: from},
		To:          gomail.Address{Address: recipient},
		Subject:     fmt.Sprintf("Application for %s - %s", job.Title, p.Contact.FullName),
		Body:        body.String(),
		Attachments: attachments,
		Date:        ap.now(),
	})
}

func contentTypeOf(d *documents.Document) string {
	if d == nil {
		return ""
	}
	return d.ContentType
}
