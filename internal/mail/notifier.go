package mail

import (
	"bytes"
	"context"
	"fmt"
	"text/template"

	"natours/internal/models"
)

var (
	resetTemplate = template.Must(template.New("reset").Parse(`Hi {{.FirstName}},

Forgot your password? Submit a PATCH request with your new password and passwordConfirm to:

{{.URL}}

This link is valid for {{.ValidFor}}. If you didn't forget your password, please ignore this email.

The Natours team
`))

	welcomeTemplate = template.Must(template.New("welcome").Parse(`Hi {{.FirstName}},

Welcome to Natours, we're glad to have you!

Upload a profile photo and get started at {{.URL}}

The Natours team
`))
)

type templateData struct {
	FirstName string
	URL       string
	ValidFor  string
}

// Notifier sends account emails through a Mailer.
type Notifier struct {
	mailer   Mailer
	resetTTL string
}

// NewNotifier creates a Notifier. resetTTL is the human readable lifetime
// printed in reset emails.
func NewNotifier(mailer Mailer, resetTTL string) *Notifier {
	if resetTTL == "" {
		resetTTL = "10 minutes"
	}
	return &Notifier{mailer: mailer, resetTTL: resetTTL}
}

// SendPasswordReset emails the reset link to user.
func (n *Notifier) SendPasswordReset(ctx context.Context, user *models.User, resetURL string) error {
	body, err := render(resetTemplate, templateData{
		FirstName: models.FirstName(user.Name),
		URL:       resetURL,
		ValidFor:  n.resetTTL,
	})
	if err != nil {
		return err
	}
	return n.mailer.Send(ctx, Message{
		To:      user.Email,
		ToName:  user.Name,
		Subject: fmt.Sprintf("Your password reset token (valid for %s)", n.resetTTL),
		Body:    body,
	})
}

// SendWelcome emails the welcome message to a newly registered user.
func (n *Notifier) SendWelcome(ctx context.Context, user *models.User, profileURL string) error {
	body, err := render(welcomeTemplate, templateData{
		FirstName: models.FirstName(user.Name),
		URL:       profileURL,
	})
	if err != nil {
		return err
	}
	return n.mailer.Send(ctx, Message{
		To:      user.Email,
		ToName:  user.Name,
		Subject: "Welcome to the Natours Family!",
		Body:    body,
	})
}

func render(tmpl *template.Template, data templateData) (string, error) {
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("mail: render %s: %w", tmpl.Name(), err)
	}
	return buf.String(), nil
}
