package mailer

import (
	"context"
	"crypto/tls"
	"fmt"
	"io"

	mail "github.com/go-mail/mail"

	"github.com/atlasestates/newsletter-service/internal/pkg/logger"
)

// SMTPSender delivers email through a plain SMTP relay.
type SMTPSender struct {
	host      string
	port      int
	username  string
	password  string
	fromEmail string
	fromName  string

	// TLSMode is one of "auto" (STARTTLS when offered), "ssl", or "none".
	TLSMode string
}

// NewSMTPSender creates an SMTP sender with STARTTLS auto-negotiation.
func NewSMTPSender(host string, port int, username, password, fromEmail, fromName string) *SMTPSender {
	return &SMTPSender{
		host:      host,
		port:      port,
		username:  username,
		password:  password,
		fromEmail: fromEmail,
		fromName:  fromName,
		TLSMode:   "auto",
	}
}

// Send delivers one message. The underlying dialer has no context support;
// cancellation takes effect between messages, which is where the dispatch
// engine checks it anyway.
func (s *SMTPSender) Send(ctx context.Context, m *Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	msg := newMailMessage(s.fromEmail, s.fromName, m)

	d := mail.NewDialer(s.host, s.port, s.username, s.password)
	d.TLSConfig = &tls.Config{ServerName: s.host}
	switch s.TLSMode {
	case "ssl":
		d.SSL = true
	case "none":
		d.TLSConfig = nil
	}

	if err := d.DialAndSend(msg); err != nil {
		return fmt.Errorf("smtp send: %w", err)
	}
	logger.Debug("smtp accepted message", "email", m.To)
	return nil
}

// newMailMessage builds the shared MIME structure (headers, HTML body,
// attachments) used by both the SMTP dialer and the SES raw path.
func newMailMessage(fromEmail, fromName string, m *Message) *mail.Message {
	msg := mail.NewMessage()
	msg.SetAddressHeader("From", fromEmail, fromName)
	msg.SetHeader("To", m.To)
	msg.SetHeader("Subject", m.Subject)
	msg.SetBody("text/html", m.HTML)

	for _, a := range m.Attachments {
		content := a.Content
		settings := []mail.FileSetting{
			mail.SetCopyFunc(func(w io.Writer) error {
				_, err := w.Write(content)
				return err
			}),
		}
		if a.ContentType != "" {
			settings = append(settings, mail.SetHeader(map[string][]string{
				"Content-Type": {a.ContentType},
			}))
		}
		msg.Attach(a.Filename, settings...)
	}
	return msg
}
