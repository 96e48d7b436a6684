package mail

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/sendgrid/sendgrid-go"
	sgmail "github.com/sendgrid/sendgrid-go/helpers/mail"
)

var (
	sendgridHost     = "https://api.sendgrid.com"
	sendgridEndpoint = "/v3/mail/send"
)

// SendGridMailer delivers mail through the SendGrid v3 API.
type SendGridMailer struct {
	key        string
	from       *sgmail.Email
	subjPrefix string
	logger     *slog.Logger
}

var _ Mailer = (*SendGridMailer)(nil)

func NewSendGridMailer(key, fromName, fromEmail string, logger *slog.Logger) *SendGridMailer {
	return &SendGridMailer{
		key:        key,
		from:       sgmail.NewEmail(fromName, fromEmail),
		subjPrefix: "[" + fromName + "] ",
		logger:     logger,
	}
}

func (m *SendGridMailer) prepare(msg Message) *sgmail.SGMailV3 {
	p := sgmail.NewPersonalization()
	p.Subject = m.subjPrefix + msg.Subject
	p.AddTos(sgmail.NewEmail(msg.To.Name, msg.To.Address))

	v3 := sgmail.NewV3Mail()
	v3.SetFrom(m.from)
	v3.AddPersonalizations(p)
	v3.AddContent(
		sgmail.NewContent("text/plain", msg.TextContent),
		sgmail.NewContent("text/html", msg.HTMLContent),
	)
	return v3
}

func (m *SendGridMailer) Send(ctx context.Context, msg Message) error {
	req := sendgrid.GetRequest(m.key, sendgridEndpoint, sendgridHost)
	req.Method = http.MethodPost
	req.Body = sgmail.GetRequestBody(m.prepare(msg))

	res, err := sendgrid.API(req)
	if err != nil {
		return fmt.Errorf("sendgrid request: %w", err)
	}
	if res.StatusCode >= http.StatusBadRequest {
		return fmt.Errorf("sendgrid returned %d: %s", res.StatusCode, res.Body)
	}

	m.logger.InfoContext(ctx, "Email sent", "to", msg.To.Address, "subject", msg.Subject)
	return nil
}
