package driven

import "context"

// EmailMessage is a rendered notification ready for delivery.
type EmailMessage struct {
	To       string
	Subject  string
	TextBody string
	HTMLBody string
}

// EmailSender defines the driven port for outbound notification delivery.
type EmailSender interface {
	Send(ctx context.Context, msg EmailMessage) error
}
