package cli

import (
	"context"
	"errors"

	"github.com/hibiken/asynq"

	"github.com/odyssey-erp/stockroom/jobs"
)

// JobsCLI backs the `worker trigger` and `worker stats` commands.
type JobsCLI struct {
	client    *jobs.Client
	inspector jobs.QueueInspector
	closers   []func() error
}

// NewJobsCLI connects a client and an inspector to Redis.
func NewJobsCLI(redisAddr string) *JobsCLI {
	opts := asynq.RedisClientOpt{Addr: redisAddr}
	client := jobs.NewClient(opts)
	inspector := asynq.NewInspector(opts)
	return &JobsCLI{client: client, inspector: inspector, closers: []func() error{inspector.Close, client.Close}}
}

// Close releases underlying resources.
func (c *JobsCLI) Close() error {
	var errs []error
	for _, closeFn := range c.closers {
		errs = append(errs, closeFn())
	}
	return errors.Join(errs...)
}

// Trigger enqueues a job by task type. accountID scopes account jobs; zero
// means every account.
func (c *JobsCLI) Trigger(ctx context.Context, name string, accountID int64) (*asynq.TaskInfo, error) {
	if c == nil {
		return nil, errors.New("jobs cli: not configured")
	}
	return c.client.Enqueue(ctx, name, accountID)
}

// QueueStats summarises the default queue.
type QueueStats struct {
	Queue     string
	Pending   int
	Active    int
	Scheduled int
	Retry     int
}

// InspectQueue reads the default queue counters.
func (c *JobsCLI) InspectQueue(ctx context.Context) (QueueStats, error) {
	if c == nil || c.inspector == nil {
		return QueueStats{}, errors.New("jobs cli: inspector not configured")
	}
	if err := ctx.Err(); err != nil {
		return QueueStats{}, err
	}
	info, err := c.inspector.GetQueueInfo(jobs.QueueDefault)
	if err != nil {
		return QueueStats{}, err
	}
	stats := QueueStats{Queue: jobs.QueueDefault}
	if info != nil {
		stats.Pending = info.Pending
		stats.Active = info.Active
		stats.Scheduled = info.Scheduled
		stats.Retry = info.Retry
	}
	return stats, nil
}
