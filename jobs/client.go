package jobs

import (
	"context"
	"errors"
	"time"

	"github.com/hibiken/asynq"
)

// Enqueuer submits tasks. *asynq.Client satisfies it.
type Enqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// Client enqueues on-demand runs of the scheduled tasks.
type Client struct {
	enq    Enqueuer
	closer func() error
}

// NewClient connects an asynq client to Redis.
func NewClient(redisOpts asynq.RedisClientOpt) *Client {
	c := asynq.NewClient(redisOpts)
	return &Client{enq: c, closer: c.Close}
}

// NewClientWith wraps an existing enqueuer.
func NewClientWith(enq Enqueuer) *Client {
	return &Client{enq: enq}
}

// Enqueue builds the named task and submits it. The same task and account
// cannot be queued twice within a minute.
func (c *Client) Enqueue(ctx context.Context, name string, accountID int64) (*asynq.TaskInfo, error) {
	if c == nil || c.enq == nil {
		return nil, errors.New("jobs: client not configured")
	}
	task, err := BuildTask(name, accountID)
	if err != nil {
		return nil, err
	}
	return c.enq.EnqueueContext(ctx, task, asynq.MaxRetry(3), asynq.Unique(time.Minute))
}

// Close releases the Redis connection when the client owns one.
func (c *Client) Close() error {
	if c == nil || c.closer == nil {
		return nil
	}
	return c.closer()
}
