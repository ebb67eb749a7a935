package auth

import "context"

// Notifier delivers account emails. Implementations return an error wrapping
// shared.ErrDelivery when the message could not be handed off.
type Notifier interface {
	SendVerificationCode(ctx context.Context, email, code string) error
	SendPasswordReset(ctx context.Context, email, token string) error
	SendWelcome(ctx context.Context, email string) error
}

// Recorder counts auth outcomes.
type Recorder interface {
	AuthEvent(operation, outcome string)
	MailFailure(kind string)
}

type nopRecorder struct{}

func (nopRecorder) AuthEvent(string, string) {}
func (nopRecorder) MailFailure(string)       {}
