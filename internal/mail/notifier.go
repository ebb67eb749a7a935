package mail

import (
	"context"
	"errors"
	"fmt"

	"github.com/engineerhub/engineerhub/internal/shared"
)

// Notifier renders account emails and passes them to a Sender.
type Notifier struct {
	composer *Composer
	sender   Sender
}

// NewNotifier constructs a Notifier.
func NewNotifier(composer *Composer, sender Sender) *Notifier {
	return &Notifier{composer: composer, sender: sender}
}

// SendVerificationCode emails a verification code.
func (n *Notifier) SendVerificationCode(ctx context.Context, email, code string) error {
	msg, err := n.composer.Verification(email, code)
	if err != nil {
		return err
	}
	return n.send(ctx, msg)
}

// SendPasswordReset emails a reset link.
func (n *Notifier) SendPasswordReset(ctx context.Context, email, token string) error {
	msg, err := n.composer.PasswordReset(email, token)
	if err != nil {
		return err
	}
	return n.send(ctx, msg)
}

// SendWelcome emails the welcome message.
func (n *Notifier) SendWelcome(ctx context.Context, email string) error {
	msg, err := n.composer.Welcome(email)
	if err != nil {
		return err
	}
	return n.send(ctx, msg)
}

func (n *Notifier) send(ctx context.Context, msg Message) error {
	err := n.sender.Send(ctx, msg)
	if err == nil || errors.Is(err, shared.ErrDelivery) {
		return err
	}
	return fmt.Errorf("%w: %w", shared.ErrDelivery, err)
}
