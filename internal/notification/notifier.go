package notification

import (
	"Go2FctSpectra/internal/config"
	"fmt"
	"mime"
	"net/mail"
	"net/smtp"
	"strings"
	"time"
)

// EmailNotifier mails alert reports as HTML over SMTP.
type EmailNotifier struct {
	addr string
	auth smtp.Auth
	from *mail.Address
	to   []*mail.Address

	now  func() time.Time
	send func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

// NewEmailNotifier checks the sender and recipient list and prepares the
// SMTP credentials. Without a username the relay is used unauthenticated.
func NewEmailNotifier(cfg config.SMTPConfig) (*EmailNotifier, error) {
	from, err := mail.ParseAddress(cfg.From)
	if err != nil {
		return nil, fmt.Errorf("invalid smtp sender %q: %w", cfg.From, err)
	}
	to, err := mail.ParseAddressList(cfg.To)
	if err != nil {
		return nil, fmt.Errorf("invalid smtp recipients %q: %w", cfg.To, err)
	}

	n := &EmailNotifier{
		addr: fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		from: from,
		to:   to,
		now:  time.Now,
		send: smtp.SendMail,
	}
	if cfg.Username != "" {
		// PlainAuth will not send credentials until the server identifies itself as a trusted one.
		n.auth = smtp.PlainAuth("", cfg.Username, cfg.Password, cfg.Host)
	}
	return n, nil
}

// Send mails one HTML message to every recipient.
func (n *EmailNotifier) Send(subject, body string) error {
	rcpt := make([]string, len(n.to))
	for i, a := range n.to {
		rcpt[i] = a.Address
	}
	if err := n.send(n.addr, n.auth, n.from.Address, rcpt, n.message(subject, body)); err != nil {
		return fmt.Errorf("failed to send email to %d recipients: %w", len(rcpt), err)
	}
	return nil
}

func (n *EmailNotifier) message(subject, body string) []byte {
	to := make([]string, len(n.to))
	for i, a := range n.to {
		to[i] = a.String()
	}

	var b strings.Builder
	b.WriteString("From: " + n.from.String() + "\r\n")
	b.WriteString("To: " + strings.Join(to, ", ") + "\r\n")
	b.WriteString("Subject: " + mime.QEncoding.Encode("utf-8", subject) + "\r\n")
	b.WriteString("Date: " + n.now().Format(time.RFC1123Z) + "\r\n")
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/html; charset=UTF-8\r\n")
	b.WriteString("\r\n")
	b.WriteString(body)
	return []byte(b.String())
}
