// Package smtp implements the EmailSender port using the go-mail library.
package smtp

import (
	"context"
	"fmt"

	"github.com/wneessen/go-mail"

	"github.com/ericfisherdev/repopulse/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.EmailSender = (*Sender)(nil)

// Sender delivers rendered notifications over SMTP.
type Sender struct {
	client *mail.Client
	from   string
}

// Options configures the SMTP connection.
type Options struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

// NewSender creates a Sender. Authentication is enabled only when a username
// is configured, so a local relay without auth works out of the box.
func NewSender(opts Options) (*Sender, error) {
	clientOpts := []mail.Option{
		mail.WithPort(opts.Port),
		mail.WithTLSPolicy(mail.TLSOpportunistic),
	}
	if opts.Username != "" {
		clientOpts = append(clientOpts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(opts.Username),
			mail.WithPassword(opts.Password),
		)
	}

	client, err := mail.NewClient(opts.Host, clientOpts...)
	if err != nil {
		return nil, fmt.Errorf("create smtp client: %w", err)
	}

	return &Sender{client: client, from: opts.From}, nil
}

// Send delivers one message. The HTML body is attached as an alternative to
// the plain text part when present.
func (s *Sender) Send(ctx context.Context, msg driven.EmailMessage) error {
	m := mail.NewMsg()
	if err := m.From(s.from); err != nil {
		return fmt.Errorf("set from address: %w", err)
	}
	if err := m.To(msg.To); err != nil {
		return fmt.Errorf("set to address %q: %w", msg.To, err)
	}

	m.Subject(msg.Subject)
	m.SetBodyString(mail.TypeTextPlain, msg.TextBody)
	if msg.HTMLBody != "" {
		m.AddAlternativeString(mail.TypeTextHTML, msg.HTMLBody)
	}

	if err := s.client.DialAndSendWithContext(ctx, m); err != nil {
		return fmt.Errorf("send email to %q: %w", msg.To, err)
	}

	return nil
}
