// Package mailer implements the outbound email gateway: transactional
// lifecycle messages (confirmation, welcome) and personalized campaign
// sends, deliverable over AWS SES or plain SMTP.
package mailer

import (
	"context"
	"fmt"

	"github.com/atlasestates/newsletter-service/internal/domain"
)

// Message is one fully rendered outbound email.
type Message struct {
	To          string
	Subject     string
	HTML        string
	Attachments []domain.Attachment
}

// Sender delivers a single rendered message to one address. Implementations
// report delivery errors; retry policy belongs to the provider, not here.
type Sender interface {
	Send(ctx context.Context, m *Message) error
}

// Gateway renders lifecycle and campaign emails and hands them to a Sender.
// It satisfies the mailer contracts of the newsletter and dispatch services.
type Gateway struct {
	sender    Sender
	templates *TemplateSet

	// welcomeAttachments ride along on every welcome email (marketing
	// one-pagers etc.). Optional.
	welcomeAttachments []domain.Attachment
}

// NewGateway creates a gateway on top of the given sender.
func NewGateway(sender Sender) *Gateway {
	return &Gateway{sender: sender, templates: NewTemplateSet()}
}

// SetWelcomeAttachments installs the attachment set for welcome emails.
func (g *Gateway) SetWelcomeAttachments(atts []domain.Attachment) {
	g.welcomeAttachments = atts
}

// SendConfirmation sends the double-opt-in email carrying the confirm link.
func (g *Gateway) SendConfirmation(ctx context.Context, email, confirmURL string) error {
	html, err := g.templates.Confirmation(confirmURL)
	if err != nil {
		return fmt.Errorf("render confirmation: %w", err)
	}
	return g.sender.Send(ctx, &Message{
		To:      email,
		Subject: "Please confirm your subscription",
		HTML:    html,
	})
}

// SendWelcome sends the one-time post-confirmation email.
func (g *Gateway) SendWelcome(ctx context.Context, email, firstName string) error {
	html, err := g.templates.Welcome(firstName)
	if err != nil {
		return fmt.Errorf("render welcome: %w", err)
	}
	return g.sender.Send(ctx, &Message{
		To:          email,
		Subject:     "Welcome to our newsletter",
		HTML:        html,
		Attachments: g.welcomeAttachments,
	})
}

// SendNewsletter sends one campaign email with the recipient's personal
// unsubscribe link substituted into (or appended below) the operator HTML.
func (g *Gateway) SendNewsletter(ctx context.Context, email, subject, html, unsubscribeURL string, attachments []domain.Attachment) error {
	body := g.templates.Newsletter(html, unsubscribeURL)
	return g.sender.Send(ctx, &Message{
		To:          email,
		Subject:     subject,
		HTML:        body,
		Attachments: attachments,
	})
}
