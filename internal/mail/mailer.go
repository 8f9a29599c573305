package mail

import (
	"bytes"
	"context"
	"fmt"
	"text/template"
	"time"

	"github.com/google/uuid"
)

var (
	welcomeTmpl = template.Must(template.New("welcome").Parse(
		`Hi {{.FirstName}},

Welcome to tourbook, we're glad to have you!
Upload a profile photo and start exploring tours: {{.URL}}
`))

	resetTmpl = template.Must(template.New("reset").Parse(
		`Hi {{.FirstName}},

Forgot your password? Submit a PATCH request with your new password and passwordConfirm to:
{{.URL}}

The link is valid for 10 minutes. If you didn't forget your password, please ignore this email.
`))
)

// Recipient is who a message is addressed to.
type Recipient struct {
	Name  string
	Email string
}

func (r Recipient) firstName() string {
	for i, ch := range r.Name {
		if ch == ' ' {
			return r.Name[:i]
		}
	}
	return r.Name
}

// Mailer renders account e-mails and sends each one within a fixed timeout.
type Mailer struct {
	sender  Sender
	from    string
	timeout time.Duration
}

func NewMailer(sender Sender, from string, timeout time.Duration) *Mailer {
	return &Mailer{sender: sender, from: from, timeout: timeout}
}

func (m *Mailer) Welcome(ctx context.Context, to Recipient, url string) error {
	return m.send(ctx, to, "Welcome to the tourbook family!", welcomeTmpl, url)
}

func (m *Mailer) PasswordReset(ctx context.Context, to Recipient, url string) error {
	return m.send(ctx, to, "Your password reset token (valid for only 10 minutes)", resetTmpl, url)
}

func (m *Mailer) send(ctx context.Context, to Recipient, subject string, tmpl *template.Template, url string) error {
	var body bytes.Buffer
	err := tmpl.Execute(&body, struct{ FirstName, URL string }{to.firstName(), url})
	if err != nil {
		return fmt.Errorf("render %s: %w", tmpl.Name(), err)
	}

	if m.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, m.timeout)
		defer cancel()
	}
	return m.sender.Send(ctx, Message{
		ID:      uuid.NewString(),
		From:    m.from,
		To:      to.Email,
		Subject: subject,
		Text:    body.String(),
	})
}
