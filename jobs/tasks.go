package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/engineerhub/engineerhub/internal/jobs"
	"github.com/engineerhub/engineerhub/internal/mail"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// QueueMail carries outbound account emails.
	QueueMail = "mail"
	// TaskTypeSendEmail is the task type for sending transactional emails.
	TaskTypeSendEmail = "mail:send"

	mailMaxRetry = 5
)

// NewSendEmailTask constructs an Asynq task carrying a rendered message.
func NewSendEmailTask(msg mail.Message) (*asynq.Task, error) {
	data, err := json.Marshal(msg)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskTypeSendEmail, data, asynq.Queue(QueueMail), asynq.MaxRetry(mailMaxRetry)), nil
}

// MailFailureCounter counts emails the transport rejected, by email kind.
type MailFailureCounter interface {
	MailFailure(kind string)
}

// SendEmailJob delivers queued messages through a mail.Sender.
type SendEmailJob struct {
	sender   mail.Sender
	metrics  *jobmetrics.Metrics
	failures MailFailureCounter
	logger   *slog.Logger
}

// NewSendEmailJob constructs the mail:send handler. failures may be nil.
func NewSendEmailJob(sender mail.Sender, logger *slog.Logger, metrics *jobmetrics.Metrics, failures MailFailureCounter) *SendEmailJob {
	if logger == nil {
		logger = slog.Default()
	}
	return &SendEmailJob{sender: sender, metrics: metrics, failures: failures, logger: logger}
}

// Handle processes TaskTypeSendEmail tasks. Malformed payloads are not retried.
func (j *SendEmailJob) Handle(ctx context.Context, t *asynq.Task) error {
	var msg mail.Message
	if err := json.Unmarshal(t.Payload(), &msg); err != nil {
		return fmt.Errorf("decode mail payload: %v: %w", err, asynq.SkipRetry)
	}
	if msg.To == "" {
		return fmt.Errorf("mail payload without recipient: %w", asynq.SkipRetry)
	}
	tracker := j.metrics.Track(TaskTypeSendEmail)
	err := j.sender.Send(ctx, msg)
	if err != nil {
		kind := msg.Kind
		if kind == "" {
			kind = "unknown"
		}
		if j.failures != nil {
			j.failures.MailFailure(kind)
		}
		j.logger.Warn("send email", slog.String("kind", kind), slog.String("subject", msg.Subject), slog.Any("error", err))
	}
	return tracker.End(err)
}
