// Package mail composes and delivers account emails.
package mail

import "context"

// Email kinds, used as the metrics label for delivery failures.
const (
	KindVerification  = "verification"
	KindPasswordReset = "password_reset"
	KindWelcome       = "welcome"
)

// Message is a rendered HTML email.
type Message struct {
	Kind    string `json:"kind,omitempty"`
	To      string `json:"to"`
	Subject string `json:"subject"`
	HTML    string `json:"html"`
}

// Sender hands a message to a transport.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// SenderFunc adapts a function to Sender.
type SenderFunc func(ctx context.Context, msg Message) error

// Send implements Sender.
func (f SenderFunc) Send(ctx context.Context, msg Message) error {
	return f(ctx, msg)
}
