package email

import (
	"context"
	"fmt"
	"log/slog"
)

// Message is a single outbound email with plain-text and HTML bodies.
type Message struct {
	To       string
	Subject  string
	TextBody string
	HTMLBody string
}

// Sender delivers email. Implementations must honor ctx cancellation.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// LogSender writes messages to the log instead of delivering them. It is
// used when no email provider is configured.
type LogSender struct {
	logger *slog.Logger
}

func NewLogSender(logger *slog.Logger) *LogSender {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogSender{logger: logger}
}

func (s *LogSender) Send(ctx context.Context, msg Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if msg.To == "" {
		return fmt.Errorf("send email: missing recipient")
	}
	s.logger.InfoContext(ctx, "email (not delivered)",
		"to", msg.To,
		"subject", msg.Subject,
		"body", msg.TextBody,
	)
	return nil
}

// SendTest sends the one-off message users request to check that reminder
// email reaches them.
func SendTest(ctx context.Context, sender Sender, to string) error {
	msg := Message{
		To:       to,
		Subject:  "Jobtrack - Test Email",
		TextBody: "This is a test email from Jobtrack. If you received this, interview reminders are working!",
		HTMLBody: "<p>This is a test email from Jobtrack.</p><p>If you received this, interview reminders are working!</p>",
	}
	if err := sender.Send(ctx, msg); err != nil {
		return fmt.Errorf("send test email: %w", err)
	}
	return nil
}
