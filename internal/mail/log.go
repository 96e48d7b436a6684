package mail

import (
	"context"
	"log/slog"
)

// LogMailer writes messages to the log instead of sending them. Used when no
// SendGrid key is configured.
type LogMailer struct {
	logger *slog.Logger
}

func NewLogMailer(logger *slog.Logger) *LogMailer {
	return &LogMailer{logger: logger}
}

func (m *LogMailer) Send(ctx context.Context, msg Message) error {
	m.logger.InfoContext(ctx, "Email (not sent)",
		"to", msg.To.Address,
		"subject", msg.Subject,
		"body", msg.TextContent)
	return nil
}
