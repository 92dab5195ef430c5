package email

import (
	"crypto/tls"
	"fmt"
	"net"
	"net/smtp"
	"strings"

	"github.com/jordan-wright/email"
	"github.com/prasanthmj/email-agent/pkg/config"
)

// Sender handles outbound SMTP delivery of reply messages.
type Sender struct {
	config *config.Config
}

// NewSender creates a new SMTP sender
func NewSender(cfg *config.Config) *Sender {
	return &Sender{
		config: cfg,
	}
}

// SendReply sends a reply to a single recipient, threading it onto the
// original message when inReplyTo is set. Subjects get a "Re: " prefix
// unless one is already present.
func (s *Sender) SendReply(to, subject, body, inReplyTo string) error {
	if to == "" {
		return fmt.Errorf("recipient is required")
	}
	if body == "" {
		return fmt.Errorf("reply body is required")
	}

	e := email.NewEmail()
	e.From = s.config.EmailAddress
	e.To = []string{to}
	e.Subject = replySubject(subject)
	e.Text = []byte(body)

	if inReplyTo != "" {
		e.Headers.Set("In-Reply-To", inReplyTo)
		e.Headers.Set("References", inReplyTo)
	}

	addr := fmt.Sprintf("%s:%d", s.config.SMTPServer, s.config.SMTPPort)
	auth := smtp.PlainAuth("", s.config.EmailAddress, s.config.EmailPassword, s.config.SMTPServer)

	err := e.SendWithStartTLS(addr, auth, &tls.Config{
		ServerName: s.config.SMTPServer,
	})
	if err != nil {
		return fmt.Errorf("failed to send reply: %w", err)
	}

	return nil
}

// ConnectionStatus probes the SMTP server without sending anything.
func (s *Sender) ConnectionStatus() ConnectionStatus {
	addr := fmt.Sprintf("%s:%d", s.config.SMTPServer, s.config.SMTPPort)

	conn, err := net.DialTimeout("tcp", addr, s.config.Timeout)
	if err != nil {
		return ConnectionStatus{Error: err.Error()}
	}
	defer conn.Close()

	c, err := smtp.NewClient(conn, s.config.SMTPServer)
	if err != nil {
		return ConnectionStatus{Error: err.Error()}
	}
	defer c.Close()

	if err := c.StartTLS(&tls.Config{ServerName: s.config.SMTPServer}); err != nil {
		return ConnectionStatus{Connected: true, Error: err.Error()}
	}

	auth := smtp.PlainAuth("", s.config.EmailAddress, s.config.EmailPassword, s.config.SMTPServer)
	if err := c.Auth(auth); err != nil {
		return ConnectionStatus{Connected: true, Error: "authentication failed"}
	}

	return ConnectionStatus{Connected: true, Authenticated: true}
}

func replySubject(subject string) string {
	trimmed := strings.TrimSpace(subject)
	if strings.HasPrefix(strings.ToLower(trimmed), "re:") {
		return trimmed
	}
	return "Re: " + trimmed
}
