// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Authscope Contributors

// Package mail delivers password-reset instructions.
package mail

import (
	"bytes"
	"context"
	htmltemplate "html/template"
	"net/url"
	"strings"
	texttemplate "text/template"

	"github.com/samber/oops"

	"github.com/authscope/authscope/internal/scope"
)

// DefaultFrom is the sender address used when none is configured.
const DefaultFrom = "noreply@example.com"

// Message is one password-reset notification.
type Message struct {
	To       string
	Scope    scope.Name
	Token    string
	ResetURL string
}

// Mailer delivers password-reset notifications.
type Mailer interface {
	SendPasswordReset(ctx context.Context, msg Message) error
}

// ResetURL builds the link a principal follows to choose a new password.
func ResetURL(base string, name scope.Name, value string) string {
	q := url.Values{}
	q.Set("reset_password_token", value)
	return strings.TrimRight(base, "/") + "/auth/" + url.PathEscape(name.String()) + "/password/edit?" + q.Encode()
}

const subjectTemplate = `Reset password instructions`

const textTemplate = `Hello {{.To}},

Someone has requested a link to change your password. You can do this through the link below.

{{.ResetURL}}

If you didn't request this, please ignore this email.
Your password won't change until you access the link above and create a new one.
`

const htmlTemplate = `<p>Hello {{.To}}!</p>
<p>Someone has requested a link to change your password. You can do this through the link below.</p>
<p><a href="{{.ResetURL}}">Change my password</a></p>
<p>If you didn't request this, please ignore this email.</p>
<p>Your password won't change until you access the link above and create a new one.</p>
`

// Rendered is a message body ready for delivery.
type Rendered struct {
	Subject string
	Text    string
	HTML    string
}

var (
	textTmpl = texttemplate.Must(texttemplate.New("reset.txt").Parse(textTemplate))
	htmlTmpl = htmltemplate.Must(htmltemplate.New("reset.html").Parse(htmlTemplate))
)

// Render produces the subject and bodies for msg.
func Render(msg Message) (Rendered, error) {
	var text, html bytes.Buffer
	if err := textTmpl.Execute(&text, msg); err != nil {
		return Rendered{}, oops.Code("MAIL_RENDER_FAILED").With("template", "reset.txt").Wrap(err)
	}
	if err := htmlTmpl.Execute(&html, msg); err != nil {
		return Rendered{}, oops.Code("MAIL_RENDER_FAILED").With("template", "reset.html").Wrap(err)
	}
	return Rendered{Subject: subjectTemplate, Text: text.String(), HTML: html.String()}, nil
}
