package mail

import (
	"context"
	"fmt"
	"net/mail"
	"net/smtp"
	"strings"
)

// SMTPConfig describes an SMTP relay.
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	FromName string
}

// SMTPTransport sends mail through an SMTP relay. net/smtp upgrades to TLS
// when the server advertises STARTTLS.
type SMTPTransport struct {
	cfg      SMTPConfig
	sendMail func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

func NewSMTPTransport(cfg SMTPConfig) (*SMTPTransport, error) {
	if cfg.Host == "" {
		return nil, fmt.Errorf("smtp host is required")
	}
	if cfg.From == "" {
		return nil, fmt.Errorf("smtp from address is required")
	}
	return &SMTPTransport{cfg: cfg, sendMail: smtp.SendMail}, nil
}

func (t *SMTPTransport) Send(_ context.Context, msg Message) error {
	var auth smtp.Auth
	if t.cfg.Username != "" {
		auth = smtp.PlainAuth("", t.cfg.Username, t.cfg.Password, t.cfg.Host)
	}
	addr := fmt.Sprintf("%s:%d", t.cfg.Host, t.cfg.Port)
	if err := t.sendMail(addr, auth, t.cfg.From, msg.To, t.compose(msg)); err != nil {
		return fmt.Errorf("send mail via smtp: %w", err)
	}
	return nil
}

func (t *SMTPTransport) Name() string { return "smtp" }

func (t *SMTPTransport) compose(msg Message) []byte {
	from := mail.Address{Name: t.cfg.FromName, Address: t.cfg.From}
	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", from.String())
	fmt.Fprintf(&b, "To: %s\r\n", strings.Join(msg.To, ", "))
	fmt.Fprintf(&b, "Subject: %s\r\n", msg.Subject)
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/html; charset=UTF-8\r\n")
	b.WriteString("\r\n")
	b.WriteString(msg.HTML)
	b.WriteString("\r\n")
	return []byte(b.String())
}
