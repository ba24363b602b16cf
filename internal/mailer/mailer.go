// Package mailer delivers the verification and password reset emails.
package mailer

import (
	"bytes"
	"context"
	"fmt"
	"net"
	"net/smtp"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/FilipeAphrody/sentinel-accounts/internal/config"
	"github.com/FilipeAphrody/sentinel-accounts/internal/domain"
	"github.com/FilipeAphrody/sentinel-accounts/internal/logging"
)

// sendMail is swapped in tests.
var sendMail = smtp.SendMail

// SMTPMailer sends plain-text mail through an SMTP relay.
type SMTPMailer struct {
	addr    string
	auth    smtp.Auth
	from    string
	baseURL string
	now     func() time.Time
}

func NewSMTPMailer(cfg config.MailConfig) *SMTPMailer {
	var auth smtp.Auth
	if cfg.Username != "" {
		auth = smtp.PlainAuth("", cfg.Username, cfg.Password, cfg.Host)
	}
	return &SMTPMailer{
		addr:    net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port)),
		auth:    auth,
		from:    cfg.From,
		baseURL: cfg.BaseURL,
		now:     time.Now,
	}
}

func (m *SMTPMailer) SendVerification(ctx context.Context, email, token string) error {
	link := actionLink(m.baseURL, "/verify-email", token)
	body := fmt.Sprintf("Welcome!\r\n\r\nConfirm your email address by opening the link below:\r\n\r\n%s\r\n\r\nThe link expires in 24 hours.\r\n", link)
	return m.send(ctx, email, "Verify your email address", body)
}

func (m *SMTPMailer) SendPasswordReset(ctx context.Context, email, token string) error {
	link := actionLink(m.baseURL, "/reset-password", token)
	body := fmt.Sprintf("A password reset was requested for your account.\r\n\r\nChoose a new password here:\r\n\r\n%s\r\n\r\nThe link expires in 1 hour. If you did not ask for this, ignore this email.\r\n", link)
	return m.send(ctx, email, "Reset your password", body)
}

func (m *SMTPMailer) send(ctx context.Context, to, subject, body string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if strings.ContainsAny(to, "\r\n") {
		return fmt.Errorf("invalid recipient %q", to)
	}

	var msg bytes.Buffer
	fmt.Fprintf(&msg, "From: %s\r\n", m.from)
	fmt.Fprintf(&msg, "To: %s\r\n", to)
	fmt.Fprintf(&msg, "Subject: %s\r\n", subject)
	fmt.Fprintf(&msg, "Date: %s\r\n", m.now().UTC().Format(time.RFC1123Z))
	msg.WriteString("MIME-Version: 1.0\r\n")
	msg.WriteString("Content-Type: text/plain; charset=UTF-8\r\n\r\n")
	msg.WriteString(body)

	if err := sendMail(m.addr, m.auth, m.from, []string{to}, msg.Bytes()); err != nil {
		return fmt.Errorf("smtp send to %s: %w", to, err)
	}
	return nil
}

func actionLink(baseURL, path, token string) string {
	return strings.TrimRight(baseURL, "/") + path + "?token=" + url.QueryEscape(token)
}

// LogMailer writes the links to the log instead of sending mail. Used when no
// SMTP host is configured.
type LogMailer struct {
	log     logging.Logger
	baseURL string
}

func NewLogMailer(log logging.Logger, baseURL string) *LogMailer {
	return &LogMailer{log: log.With("component", "mailer"), baseURL: baseURL}
}

func (m *LogMailer) SendVerification(ctx context.Context, email, token string) error {
	m.log.Info(ctx, "verification email", "to", email, "link", actionLink(m.baseURL, "/verify-email", token))
	return nil
}

func (m *LogMailer) SendPasswordReset(ctx context.Context, email, token string) error {
	m.log.Info(ctx, "password reset email", "to", email, "link", actionLink(m.baseURL, "/reset-password", token))
	return nil
}

// New picks the SMTP mailer when a host is configured.
func New(cfg config.MailConfig, log logging.Logger) domain.Mailer {
	if cfg.Host == "" {
		return NewLogMailer(log, cfg.BaseURL)
	}
	return NewSMTPMailer(cfg)
}
