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

// LowStockService lists products needing reorder.
type LowStockService interface {
	Accounts(ctx context.Context) ([]int64, error)
	LowStock(ctx context.Context, accountID int64) ([]reports.LowStockRow, error)
}

// LowStockScanJob logs and counts products at or below their reorder level.
type LowStockScanJob struct {
	Reports LowStockService
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
}

// NewLowStockScanJob initialises the scan handler.
func NewLowStockScanJob(service LowStockService, logger *slog.Logger, metrics *jobmetrics.Metrics) *LowStockScanJob {
	return &LowStockScanJob{Reports: service, Logger: logger, Metrics: metrics}
}

// Handle executes the scan.
func (j *LowStockScanJob) Handle(ctx context.Context, t *asynq.Task) (err error) {
	if j == nil || j.Reports == nil {
		return errors.New("low stock scan: handler not configured")
	}
	payload, err := decodeAccountPayload(t)
	if err != nil {
		return fmt.Errorf("low stock scan: %v: %w", err, asynq.SkipRetry)
	}
	tracker := j.Metrics.Track(TaskLowStockScan)
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
		rows, scanErr := j.Reports.LowStock(ctx, accountID)
		if scanErr != nil {
			errs = append(errs, fmt.Errorf("account %d: %w", accountID, scanErr))
			continue
		}
		for _, row := range rows {
			logger.Warn("low stock",
				slog.Int64("account_id", accountID),
				slog.String("product_id", row.ProductID),
				slog.String("on_hand", row.OnHandQty.String()),
				slog.String("reorder_level", row.ReorderLevel.String()))
		}
		j.Metrics.SetLowStock(accountID, len(rows))
	}
	return errors.Join(errs...)
}
