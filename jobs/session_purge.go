package jobs

import (
	"context"
	"log/slog"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/engineerhub/engineerhub/internal/jobs"
)

const (
	// TaskSessionPurge removes expired sessions and stale reset tokens.
	TaskSessionPurge = "auth:sessions:purge"
	// SessionPurgeCron runs the purge at the top of every hour.
	SessionPurgeCron = "0 * * * *"
)

// Purger is satisfied by auth.Service.
type Purger interface {
	PurgeExpired(ctx context.Context) (sessions, resetTokens int64, err error)
}

// NewSessionPurgeTask builds the purge task. The payload is empty.
func NewSessionPurgeTask() *asynq.Task {
	return asynq.NewTask(TaskSessionPurge, nil, asynq.Queue(QueueDefault), asynq.MaxRetry(3))
}

// SessionPurgeJob runs Purger on schedule.
type SessionPurgeJob struct {
	purger  Purger
	logger  *slog.Logger
	metrics *jobmetrics.Metrics
}

// NewSessionPurgeJob constructs the purge handler.
func NewSessionPurgeJob(purger Purger, logger *slog.Logger, metrics *jobmetrics.Metrics) *SessionPurgeJob {
	if logger == nil {
		logger = slog.Default()
	}
	return &SessionPurgeJob{purger: purger, logger: logger, metrics: metrics}
}

// Handle processes TaskSessionPurge tasks.
func (j *SessionPurgeJob) Handle(ctx context.Context, _ *asynq.Task) error {
	tracker := j.metrics.Track(TaskSessionPurge)
	sessions, resetTokens, err := j.purger.PurgeExpired(ctx)
	j.metrics.AddPurged("sessions", sessions)
	j.metrics.AddPurged("reset_tokens", resetTokens)
	if err != nil {
		j.logger.Error("session purge failed", slog.Any("error", err))
		return tracker.End(err)
	}
	j.logger.Info("session purge complete",
		slog.Int64("sessions", sessions),
		slog.Int64("reset_tokens", resetTokens))
	return tracker.End(nil)
}
