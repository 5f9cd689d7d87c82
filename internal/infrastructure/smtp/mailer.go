package smtp

import (
	"context"
	"errors"
	"fmt"
	"net/smtp"
	"net/textproto"
	"strings"

	"github.com/lifelink-api/internal/config"
	"github.com/lifelink-api/internal/domain"
)

// AlertSubject is the subject line of donor alert emails.
const AlertSubject = "Urgent: blood donors needed near you"

// Mailer sends emails.
type Mailer interface {
	SendEmail(to, subject, body string) error
}

type sendFunc func(addr string, a smtp.Auth, from string, to []string, msg []byte) error

type mailer struct {
	host     string
	port     string
	from     string
	username string
	password string
	send     sendFunc
}

func NewMailer(cfg *config.Config) Mailer {
	return &mailer{
		host:     cfg.SMTPHost,
		port:     cfg.SMTPPort,
		from:     cfg.SMTPFrom,
		username: cfg.SMTPUsername,
		password: cfg.SMTPPassword,
		send:     smtp.SendMail,
	}
}

func (m *mailer) SendEmail(to, subject, body string) error {
	if strings.ContainsAny(to, "\r\n") || strings.ContainsAny(subject, "\r\n") {
		return fmt.Errorf("header injection in recipient or subject: %w", domain.ErrUndeliverable)
	}
	msg := fmt.Sprintf("From: %s\r\nTo: %s\r\nSubject: %s\r\nContent-Type: text/plain; charset=UTF-8\r\n\r\n%s", m.from, to, subject, body)
	addr := fmt.Sprintf("%s:%s", m.host, m.port)

	var auth smtp.Auth
	if m.username != "" {
		auth = smtp.PlainAuth("", m.username, m.password, m.host)
	}
	return m.send(addr, auth, m.from, []string{to}, []byte(msg))
}

// Channel adapts a Mailer to the alert channel interface.
type Channel struct {
	mailer Mailer
}

func NewChannel(m Mailer) *Channel {
	return &Channel{mailer: m}
}

func (c *Channel) Name() domain.Channel { return domain.ChannelEmail }

// Send delivers message as a plain-text email. Permanent SMTP rejections
// (5xx) are reported as undeliverable.
func (c *Channel) Send(ctx context.Context, to, message string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	err := c.mailer.SendEmail(to, AlertSubject, message)
	if err == nil {
		return nil
	}
	var tpErr *textproto.Error
	if errors.As(err, &tpErr) && tpErr.Code >= 500 {
		return fmt.Errorf("smtp rejected %s: %v: %w", to, err, domain.ErrUndeliverable)
	}
	return fmt.Errorf("smtp send: %w", err)
}
