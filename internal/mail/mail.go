// Package mail sends transactional email such as sign-up confirmations.
package mail

import (
	"bytes"
	"context"
	"fmt"
	htmltemplate "html/template"
	"net/mail"
	texttemplate "text/template"
)

// Message is one outgoing email.
type Message struct {
	To          mail.Address
	Subject     string
	TextContent string
	HTMLContent string
}

type Mailer interface {
	Send(ctx context.Context, msg Message) error
}

var (
	confirmText = texttemplate.Must(texttemplate.New("confirm.txt").Parse(
		`Hi {{.Name}},

Confirm your email address to finish setting up your account:

{{.Link}}

If you did not sign up, ignore this message.
`))

	confirmHTML = htmltemplate.Must(htmltemplate.New("confirm.html").Parse(
		`<p>Hi {{.Name}},</p>
<p>Confirm your email address to finish setting up your account:</p>
<p><a href="{{.Link}}">Confirm email</a></p>
<p>If you did not sign up, ignore this message.</p>
`))
)

// ConfirmationMessage renders the sign-up confirmation email.
func ConfirmationMessage(name, email, link string) (Message, error) {
	data := struct{ Name, Link string }{Name: name, Link: link}

	var text, html bytes.Buffer
	if err := confirmText.Execute(&text, data); err != nil {
		return Message{}, fmt.Errorf("render confirmation text: %w", err)
	}
	if err := confirmHTML.Execute(&html, data); err != nil {
		return Message{}, fmt.Errorf("render confirmation html: %w", err)
	}

	return Message{
		To:          mail.Address{Name: name, Address: email},
		Subject:     "Confirm your email",
		TextContent: text.String(),
		HTMLContent: html.String(),
	}, nil
}
