// Package mailer sends outbound email. The Mailer interface keeps the
// transport swappable; the SMTP implementation covers production and a
// log-only implementation covers environments without an SMTP host.
package mailer

import (
	"context"
	"fmt"
	"log/slog"
	"mime"
	"mime/quotedprintable"
	"net/smtp"
	"strings"

	"intelliblog/internal/config"
	"intelliblog/internal/observability"
)

// Mailer delivers one message to one recipient.
type Mailer interface {
	Send(ctx context.Context, to, subject, textBody, htmlBody string) error
}

// New returns an SMTP mailer when a host is configured, otherwise a mailer
// that only logs. Boot never fails for lack of mail config.
func New(cfg *config.Config) Mailer {
	if cfg.SMTPHost == "" {
		observability.GlobalLogger.Warn("SMTP_HOST not configured; outbound email will be logged, not sent")
		return &LogMailer{logger: observability.GlobalLogger.Logger}
	}
	return &SMTPMailer{
		addr:     cfg.SMTPHost + ":" + cfg.SMTPPort,
		host:     cfg.SMTPHost,
		username: cfg.SMTPUsername,
		password: cfg.SMTPPassword,
		from:     cfg.MailFrom,
	}
}

// SMTPMailer sends mail through a plain SMTP relay.
type SMTPMailer struct {
	addr     string
	host     string
	username string
	password string
	from     string
}

var _ Mailer = (*SMTPMailer)(nil)

// Send delivers a multipart/alternative message with text and HTML bodies.
func (m *SMTPMailer) Send(ctx context.Context, to, subject, textBody, htmlBody string) error {
	if to == "" {
		return fmt.Errorf("recipient address is required")
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	msg, err := buildMessage(m.from, to, subject, textBody, htmlBody)
	if err != nil {
		return fmt.Errorf("build message for %s: %w", to, err)
	}

	var auth smtp.Auth
	if m.username != "" {
		auth = smtp.PlainAuth("", m.username, m.password, m.host)
	}
	if err := smtp.SendMail(m.addr, auth, m.from, []string{to}, msg); err != nil {
		return fmt.Errorf("smtp send to %s: %w", to, err)
	}
	return nil
}

const mimeBoundary = "intelliblog-mail-boundary"

func buildMessage(from, to, subject, textBody, htmlBody string) ([]byte, error) {
	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", from)
	fmt.Fprintf(&b, "To: %s\r\n", to)
	// RFC 2047 encoding keeps non-ASCII subjects intact through strict relays.
	fmt.Fprintf(&b, "Subject: %s\r\n", mime.QEncoding.Encode("utf-8", subject))
	b.WriteString("MIME-Version: 1.0\r\n")
	fmt.Fprintf(&b, "Content-Type: multipart/alternative; boundary=%q\r\n", mimeBoundary)
	b.WriteString("\r\n")

	for _, part := range []struct {
		contentType string
		body        string
	}{
		{"text/plain; charset=utf-8", textBody},
		{"text/html; charset=utf-8", htmlBody},
	} {
		if part.body == "" {
			continue
		}
		fmt.Fprintf(&b, "--%s\r\n", mimeBoundary)
		fmt.Fprintf(&b, "Content-Type: %s\r\n", part.contentType)
		b.WriteString("Content-Transfer-Encoding: quoted-printable\r\n")
		b.WriteString("\r\n")

		qp := quotedprintable.NewWriter(&b)
		if _, err := qp.Write([]byte(part.body)); err != nil {
			return nil, err
		}
		if err := qp.Close(); err != nil {
			return nil, err
		}
		b.WriteString("\r\n")
	}
	fmt.Fprintf(&b, "--%s--\r\n", mimeBoundary)

	return []byte(b.String()), nil
}

// LogMailer records sends in the structured log instead of delivering them.
type LogMailer struct {
	logger *slog.Logger
}

var _ Mailer = (*LogMailer)(nil)

func (m *LogMailer) Send(ctx context.Context, to, subject, textBody, htmlBody string) error {
	m.logger.InfoContext(ctx, "email (not sent: no SMTP host)",
		slog.String("to", to),
		slog.String("subject", subject),
		slog.Int("text_len", len(textBody)),
		slog.Int("html_len", len(htmlBody)),
	)
	return nil
}
