package jobs

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskValuationSnapshot stores per-account stock valuation snapshots.
	TaskValuationSnapshot = "inventory:valuation_snapshot"
	// TaskLowStockScan reports products at or below their reorder level.
	TaskLowStockScan = "inventory:low_stock_scan"
	// TaskIdempotencyCleanup purges expired idempotency keys.
	TaskIdempotencyCleanup = "maintenance:idempotency_cleanup"
)

// DefaultIdempotencyRetention is how long replay keys are kept when the task
// does not say otherwise.
const DefaultIdempotencyRetention = 72 * time.Hour

// AccountPayload scopes a task to one account. Zero means every account.
type AccountPayload struct {
	AccountID int64 `json:"account_id,omitempty"`
}

// CleanupPayload configures idempotency key retention.
type CleanupPayload struct {
	RetentionHours int `json:"retention_hours"`
}

// NewValuationSnapshotTask constructs the snapshot task.
func NewValuationSnapshotTask(accountID int64) (*asynq.Task, error) {
	return newAccountTask(TaskValuationSnapshot, accountID)
}

// NewLowStockScanTask constructs the low stock scan task.
func NewLowStockScanTask(accountID int64) (*asynq.Task, error) {
	return newAccountTask(TaskLowStockScan, accountID)
}

// NewIdempotencyCleanupTask constructs the cleanup task.
func NewIdempotencyCleanupTask(retention time.Duration) (*asynq.Task, error) {
	body, err := json.Marshal(CleanupPayload{RetentionHours: int(retention / time.Hour)})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskIdempotencyCleanup, body, asynq.Queue(QueueDefault)), nil
}

func newAccountTask(taskType string, accountID int64) (*asynq.Task, error) {
	body, err := json.Marshal(AccountPayload{AccountID: accountID})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(taskType, body, asynq.Queue(QueueDefault)), nil
}

func decodeAccountPayload(t *asynq.Task) (AccountPayload, error) {
	var payload AccountPayload
	if len(t.Payload()) == 0 {
		return payload, nil
	}
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return payload, err
	}
	return payload, nil
}

// ErrUnknownTask is returned when a task name has no builder.
var ErrUnknownTask = errors.New("jobs: unknown task")

// BuildTask constructs a task by type name. accountID scopes the account tasks
// and is ignored by maintenance tasks.
func BuildTask(name string, accountID int64) (*asynq.Task, error) {
	switch name {
	case TaskValuationSnapshot:
		return NewValuationSnapshotTask(accountID)
	case TaskLowStockScan:
		return NewLowStockScanTask(accountID)
	case TaskIdempotencyCleanup:
		return NewIdempotencyCleanupTask(DefaultIdempotencyRetention)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownTask, name)
	}
}
