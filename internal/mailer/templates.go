package mailer

import (
	"strings"

	"github.com/osteele/liquid"
)

// TemplateSet renders email bodies with Liquid. Lifecycle templates are
// fixed; campaign HTML is operator input and rendered leniently so a stray
// brace never blocks a send.
type TemplateSet struct {
	engine *liquid.Engine
}

// NewTemplateSet creates the template set.
func NewTemplateSet() *TemplateSet {
	return &TemplateSet{engine: liquid.NewEngine()}
}

const confirmationTemplate = `<html>
<body style="font-family: Arial, sans-serif; color: #333;">
  <h2>Confirm your subscription</h2>
  <p>Thanks for signing up for our property newsletter. Click the link below
  to confirm your email address:</p>
  <p><a href="{{ confirm_url }}">Confirm my subscription</a></p>
  <p>If you didn't request this, you can safely ignore this email.</p>
</body>
</html>`

const welcomeTemplate = `<html>
<body style="font-family: Arial, sans-serif; color: #333;">
  <h2>Welcome, {{ first_name | default: "there" }}!</h2>
  <p>Your subscription is confirmed. You'll now receive our latest listings
  and market updates.</p>
</body>
</html>`

const unsubscribeFooter = `
<hr style="margin-top: 24px; border: none; border-top: 1px solid #ddd;">
<p style="font-size: 12px; color: #777;">
  You are receiving this because you subscribed to our newsletter.
  <a href="{{ unsubscribe_url }}">Unsubscribe</a>
</p>`

// Confirmation renders the double-opt-in email body.
func (t *TemplateSet) Confirmation(confirmURL string) (string, error) {
	return t.engine.ParseAndRenderString(confirmationTemplate, liquid.Bindings{
		"confirm_url": confirmURL,
	})
}

// Welcome renders the post-confirmation email body.
func (t *TemplateSet) Welcome(firstName string) (string, error) {
	return t.engine.ParseAndRenderString(welcomeTemplate, liquid.Bindings{
		"first_name": firstName,
	})
}

// Newsletter personalizes operator campaign HTML for one recipient. If the
// HTML references {{ unsubscribe_url }} it is substituted in place; otherwise
// a standard footer is appended. Malformed operator markup falls back to the
// raw HTML plus footer rather than failing the recipient.
func (t *TemplateSet) Newsletter(html, unsubscribeURL string) string {
	bindings := liquid.Bindings{"unsubscribe_url": unsubscribeURL}

	if strings.Contains(html, "unsubscribe_url") {
		out, err := t.engine.ParseAndRenderString(html, bindings)
		if err == nil {
			return out
		}
	}

	footer, err := t.engine.ParseAndRenderString(unsubscribeFooter, bindings)
	if err != nil {
		// Template is a constant; this cannot normally happen.
		return html
	}
	return html + footer
}
