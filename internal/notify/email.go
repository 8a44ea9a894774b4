package notify

import (
	"context"
	"fmt"
	"net/smtp"
)

// EmailSender delivers notifications over SMTP.
type EmailSender struct {
	addr string
	from string
	auth smtp.Auth
}

// NewEmailSender creates an SMTP sender. An empty password skips
// authentication, for local relays.
func NewEmailSender(host string, port int, from, password string) *EmailSender {
	var auth smtp.Auth
	if password != "" {
		auth = smtp.PlainAuth("", from, password, host)
	}
	return &EmailSender{
		addr: fmt.Sprintf("%s:%d", host, port),
		from: from,
		auth: auth,
	}
}

// Send delivers one email. net/smtp offers no context hook, so ctx only
// gates entry.
func (s *EmailSender) Send(ctx context.Context, recipient, subject, body string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	message := fmt.Sprintf(
		"To: %s\r\nFrom: %s\r\nSubject: %s\r\nMIME-Version: 1.0\r\nContent-Type: text/plain; charset=utf-8\r\n\r\n%s\r\n",
		recipient, s.from, subject, body,
	)

	if err := smtp.SendMail(s.addr, s.auth, s.from, []string{recipient}, []byte(message)); err != nil {
		return fmt.Errorf("send email: %w", err)
	}
	return nil
}
