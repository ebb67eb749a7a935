package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/hibiken/asynq"
	"github.com/spf13/cobra"

	"github.com/engineerhub/engineerhub/internal/app"
	"github.com/engineerhub/engineerhub/jobs"
)

// JobsCLI wraps manual management helpers for Asynq jobs.
type JobsCLI struct {
	client    *jobs.Client
	inspector *asynq.Inspector
}

// NewJobsCLI initialises the CLI helpers using the provided Redis address.
func NewJobsCLI(redisAddr string) (*JobsCLI, error) {
	opts := asynq.RedisClientOpt{Addr: redisAddr}
	client, err := jobs.NewClient(opts)
	if err != nil {
		return nil, err
	}
	return &JobsCLI{client: client, inspector: asynq.NewInspector(opts)}, nil
}

// Close releases underlying resources.
func (c *JobsCLI) Close() error {
	var errs []error
	if c.inspector != nil {
		errs = append(errs, c.inspector.Close())
	}
	if c.client != nil {
		errs = append(errs, c.client.Close())
	}
	return errors.Join(errs...)
}

// Trigger enqueues a supported job by name.
func (c *JobsCLI) Trigger(ctx context.Context, name string) (*asynq.TaskInfo, error) {
	if c == nil || c.client == nil {
		return nil, errors.New("jobs cli: client not configured")
	}
	return c.client.Trigger(ctx, name)
}

// Stats reports every worker queue.
func (c *JobsCLI) Stats() ([]jobs.QueueStats, error) {
	if c == nil || c.inspector == nil {
		return nil, errors.New("jobs cli: inspector not configured")
	}
	return jobs.Stats(c.inspector)
}

// jobsRunner is the part of JobsCLI the commands use.
type jobsRunner interface {
	Trigger(ctx context.Context, name string) (*asynq.TaskInfo, error)
	Stats() ([]jobs.QueueStats, error)
	Close() error
}

var newJobsRunner = func(redisAddr string) (jobsRunner, error) {
	return NewJobsCLI(redisAddr)
}

// NewJobsCmd creates the jobs subcommand.
func NewJobsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "jobs",
		Short: "Inspect and trigger background jobs",
	}
	cmd.AddCommand(&cobra.Command{
		Use:       "trigger <task>",
		Short:     "Enqueue a maintenance task now",
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{jobs.TaskSessionPurge},
		RunE: withJobs(func(cmd *cobra.Command, runner jobsRunner, args []string) error {
			info, err := runner.Trigger(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			cmd.Printf("Enqueued %s id=%s queue=%s\n", info.Type, info.ID, info.Queue)
			return nil
		}),
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "stats",
		Short: "Print queue statistics",
		Args:  cobra.NoArgs,
		RunE: withJobs(func(cmd *cobra.Command, runner jobsRunner, _ []string) error {
			stats, err := runner.Stats()
			if err != nil {
				return err
			}
			for _, s := range stats {
				cmd.Println(formatStats(s))
			}
			return nil
		}),
	})
	return cmd
}

func formatStats(s jobs.QueueStats) string {
	return fmt.Sprintf("%-8s pending=%d active=%d scheduled=%d retry=%d archived=%d",
		s.Queue, s.Pending, s.Active, s.Scheduled, s.Retry, s.Archived)
}

func withJobs(fn func(cmd *cobra.Command, runner jobsRunner, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		cfg, err := app.LoadConfig()
		if err != nil {
			return err
		}
		runner, err := newJobsRunner(cfg.RedisAddr)
		if err != nil {
			return err
		}
		defer func() {
			if closeErr := runner.Close(); closeErr != nil {
				cmd.PrintErrln("close jobs client:", closeErr)
			}
		}()
		return fn(cmd, runner, args)
	}
}
