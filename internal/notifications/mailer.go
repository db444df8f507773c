package notifications

import (
	"context"
	"fmt"
	"log/slog"
	"net/smtp"
)

// Mailer sends notification emails. Delivery is best-effort; callers log
// and swallow failures because the in-app record is the source of truth.
type Mailer interface {
	Send(ctx context.Context, to, subject, body string) error
}

// SMTPMailer delivers mail through a plain SMTP relay.
type SMTPMailer struct {
	addr string
	from string
}

// NewSMTPMailer constructs a mailer for host:port.
func NewSMTPMailer(host string, port int, from string) *SMTPMailer {
	return &SMTPMailer{addr: fmt.Sprintf("%s:%d", host, port), from: from}
}

// Send delivers one message.
func (m *SMTPMailer) Send(_ context.Context, to, subject, body string) error {
	msg := []byte("From: " + m.from + "\r\n" +
		"To: " + to + "\r\n" +
		"Subject: [Gridlog] " + subject + "\r\n" +
		"\r\n" + body + "\r\n")
	return smtp.SendMail(m.addr, nil, m.from, []string{to}, msg)
}

// LogMailer stands in when no SMTP host is configured (development).
type LogMailer struct {
	logger *slog.Logger
}

// NewLogMailer constructs the development mailer.
func NewLogMailer(logger *slog.Logger) *LogMailer {
	return &LogMailer{logger: logger}
}

// Send logs the message instead of delivering it.
func (m *LogMailer) Send(_ context.Context, to, subject, _ string) error {
	m.logger.Info("email suppressed, no smtp host", slog.String("to", to), slog.String("subject", subject))
	return nil
}
