package jobs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/odyssey-erp/stockroom/internal/jobs"
	"github.com/odyssey-erp/stockroom/internal/reports"
)

// SnapshotService stores valuation snapshots.
type SnapshotService interface {
	Accounts(ctx context.Context) ([]int64, error)
	SnapshotValuation(ctx context.Context, accountID int64) (reports.Snapshot, error)
}

// ValuationSnapshotJob records the stock value of every account.
type ValuationSnapshotJob struct {
	Reports SnapshotService
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
}

// NewValuationSnapshotJob initialises the snapshot handler.
func NewValuationSnapshotJob(service SnapshotService, logger *slog.Logger, metrics *jobmetrics.Metrics) *ValuationSnapshotJob {
	return &ValuationSnapshotJob{Reports: service, Logger: logger, Metrics: metrics}
}

// Handle executes the snapshot. One failing account does not stop the others.
func (j *ValuationSnapshotJob) Handle(ctx context.Context, t *asynq.Task) (err error) {
	if j == nil || j.Reports == nil {
		return errors.New("valuation snapshot: handler not configured")
	}
	payload, err := decodeAccountPayload(t)
	if err != nil {
		return fmt.Errorf("valuation snapshot: %v: %w", err, asynq.SkipRetry)
	}
	tracker := j.Metrics.Track(TaskValuationSnapshot)
	defer func() {
		err = tracker.End(err)
	}()

	accounts, err := targetAccounts(ctx, j.Reports.Accounts, payload.AccountID)
	if err != nil {
		return err
	}
	logger := loggerOrDefault(j.Logger)
	var errs []error
	for _, accountID := range accounts {
		snap, snapErr := j.Reports.SnapshotValuation(ctx, accountID)
		if snapErr != nil {
			logger.Error("valuation snapshot failed", slog.Int64("account_id", accountID), slog.Any("error", snapErr))
			errs = append(errs, fmt.Errorf("account %d: %w", accountID, snapErr))
			continue
		}
		j.Metrics.SetInventoryValue(accountID, snap.TotalValue.InexactFloat64())
		logger.Info("valuation snapshot stored",
			slog.Int64("account_id", accountID),
			slog.Int("products", snap.ProductCount),
			slog.String("total_value", snap.TotalValue.String()))
	}
	return errors.Join(errs...)
}

func targetAccounts(ctx context.Context, all func(context.Context) ([]int64, error), accountID int64) ([]int64, error) {
	if accountID > 0 {
		return []int64{accountID}, nil
	}
	return all(ctx)
}

func loggerOrDefault(logger *slog.Logger) *slog.Logger {
	if logger == nil {
		return slog.Default()
	}
	return logger
}
