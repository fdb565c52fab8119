package verification

import (
	"fmt"
	"html"
	"net/url"

	"github.com/mikey/newsletter-filter/internal/core"
)

// Actions a verification link can carry
const (
	ActionConfirm = "confirm"
	ActionReject  = "reject"
	ActionIgnore  = "ignore"
)

// Message is a rendered verification email
type Message struct {
	Subject string
	Text    string
	HTML    string
}

// FormatVerificationEmail renders the verification ask for a request.
// Pure formatting; nothing is sent or mutated here. Each action link
// carries exactly the token and action parameters.
func FormatVerificationEmail(req *core.VerificationRequest, baseURL string) *Message {
	subject := fmt.Sprintf("Is %q a newsletter?", req.Subject)

	confirmURL := actionURL(baseURL, req.Token, ActionConfirm)
	rejectURL := actionURL(baseURL, req.Token, ActionReject)
	ignoreURL := actionURL(baseURL, req.Token, ActionIgnore)

	text := fmt.Sprintf(
		"We weren't sure whether this email is a newsletter:\n\n"+
			"  From: %s\n  Subject: %s\n\n"+
			"Please let us know:\n\n"+
			"  Yes, it's a newsletter:  %s\n"+
			"  No, it's not:            %s\n"+
			"  Ignore this email:       %s\n\n"+
			"This request expires on %s.\n",
		req.Sender, req.Subject,
		confirmURL, rejectURL, ignoreURL,
		req.ExpiresAt.Format("Jan 2, 2006"))

	htmlBody := fmt.Sprintf(
		`<html><body>`+
			`<p>We weren't sure whether this email is a newsletter:</p>`+
			`<p><b>From:</b> %s<br><b>Subject:</b> %s</p>`+
			`<p>`+
			`<a href="%s">Yes, it's a newsletter</a> &middot; `+
			`<a href="%s">No, it's not</a> &middot; `+
			`<a href="%s">Ignore</a>`+
			`</p>`+
			`<p>This request expires on %s.</p>`+
			`</body></html>`,
		html.EscapeString(req.Sender), html.EscapeString(req.Subject),
		confirmURL, rejectURL, ignoreURL,
		req.ExpiresAt.Format("Jan 2, 2006"))

	return &Message{Subject: subject, Text: text, HTML: htmlBody}
}

// actionURL builds a verification link with exactly {token, action}
func actionURL(baseURL, token, action string) string {
	values := url.Values{}
	values.Set("token", token)
	values.Set("action", action)
	return fmt.Sprintf("%s/verify?%s", baseURL, values.Encode())
}
