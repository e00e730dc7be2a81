// Package mail delivers account notifications (welcome messages and
// temporary passwords).
package mail

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"log/slog"
	"strings"
)

// Message is a single HTML email.
type Message struct {
	To      []string
	Subject string
	HTML    string
}

// Sender delivers messages.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// LogSender writes messages to the log instead of delivering them. It is
// used when no SMTP server is configured.
type LogSender struct {
	Logger *slog.Logger
}

// Send logs the message recipients and subject.
func (l LogSender) Send(_ context.Context, msg Message) error {
	if len(msg.To) == 0 {
		return fmt.Errorf("mail: missing recipient")
	}
	logger := l.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.Info("mail not sent, no SMTP server configured",
		"to", strings.Join(msg.To, ", "),
		"subject", msg.Subject,
	)
	return nil
}

var welcomeTmpl = template.Must(template.New("welcome").Parse(`<!DOCTYPE html>
<html>
<body style="font-family: Arial, sans-serif; color: #333;">
  <h2>Welcome to Francis Legacy, {{.FirstName}}!</h2>
  <p>An account has been created for you on the family site.</p>
  <p><strong>Email:</strong> {{.Email}}<br>
     <strong>Temporary password:</strong> <code>{{.Password}}</code></p>
  <p>You will be asked to choose a new password the first time you sign in.</p>
  {{if .LoginURL}}<p><a href="{{.LoginURL}}">Sign in</a></p>{{end}}
</body>
</html>`))

var resetTmpl = template.Must(template.New("reset").Parse(`<!DOCTYPE html>
<html>
<body style="font-family: Arial, sans-serif; color: #333;">
  <h2>Your Francis Legacy password was reset</h2>
  <p>Hello {{.FirstName}},</p>
  <p>An administrator reset your password. Your new temporary password is
     <code>{{.Password}}</code>.</p>
  <p>All of your existing sessions have been signed out. Please sign in and
     choose a new password.</p>
  {{if .LoginURL}}<p><a href="{{.LoginURL}}">Sign in</a></p>{{end}}
</body>
</html>`))

type accountData struct {
	FirstName string
	Email     string
	Password  string
	LoginURL  string
}

// WelcomeMessage builds the message sent when an administrator creates an
// account.
func WelcomeMessage(email, firstName, tempPassword, loginURL string) (Message, error) {
	body, err := render(welcomeTmpl, accountData{firstName, email, tempPassword, loginURL})
	if err != nil {
		return Message{}, err
	}
	return Message{
		To:      []string{email},
		Subject: "Welcome to Francis Legacy - Your Account Details",
		HTML:    body,
	}, nil
}

// PasswordResetMessage builds the message sent when an administrator resets
// a password.
func PasswordResetMessage(email, firstName, tempPassword, loginURL string) (Message, error) {
	body, err := render(resetTmpl, accountData{firstName, email, tempPassword, loginURL})
	if err != nil {
		return Message{}, err
	}
	return Message{
		To:      []string{email},
		Subject: "Reset Your Francis Legacy Password",
		HTML:    body,
	}, nil
}

func render(t *template.Template, data interface{}) (string, error) {
	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("mail: render %s: %w", t.Name(), err)
	}
	return buf.String(), nil
}
