package reports

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"
)

// DateLayout formats report period bounds.
const DateLayout = "2006-01-02"

// ErrInvalidRange is returned when a period ends before it starts.
var ErrInvalidRange = errors.New("reports: invalid date range")

// RepositoryPort exposes the aggregates reports are built from.
type RepositoryPort interface {
	ValuationRows(ctx context.Context, accountID int64) ([]ValuationRow, error)
	SumTransactions(ctx context.Context, accountID int64, kind string, from, to time.Time) (TxTotals, error)
	SumExpenses(ctx context.Context, accountID int64, from, to time.Time) (decimal.Decimal, error)
	LowStockRows(ctx context.Context, accountID int64) ([]LowStockRow, error)
	Accounts(ctx context.Context) ([]int64, error)
	InsertSnapshot(ctx context.Context, s Snapshot) (Snapshot, error)
}

// Service builds valuation, profit and low stock reports.
type Service struct {
	repo   RepositoryPort
	cache  *Cache
	logger *slog.Logger
	group  singleflight.Group
	now    func() time.Time
}

// NewService constructs Service. cache may be nil to disable caching.
func NewService(repo RepositoryPort, cache *Cache, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, cache: cache, logger: logger, now: time.Now}
}

// Invalidate drops every cached report of the account.
func (s *Service) Invalidate(ctx context.Context, accountID int64) error {
	return s.cache.Bump(ctx, accountID)
}

// InventoryValuation values current stock at weighted average cost.
func (s *Service) InventoryValuation(ctx context.Context, accountID int64) (Valuation, error) {
	var out Valuation
	err := s.cached(ctx, accountID, &out, func(ctx context.Context) (any, error) {
		return s.buildValuation(ctx, accountID)
	}, "valuation")
	return out, err
}

func (s *Service) buildValuation(ctx context.Context, accountID int64) (Valuation, error) {
	rows, err := s.repo.ValuationRows(ctx, accountID)
	if err != nil {
		return Valuation{}, fmt.Errorf("load valuation rows: %w", err)
	}
	v := Valuation{AccountID: accountID, AsOf: s.now().UTC(), Rows: make([]ValuationRow, 0, len(rows)), TotalQty: decimal.Zero, TotalValue: decimal.Zero}
	for _, row := range rows {
		row.Value = row.OnHandQty.Mul(row.AvgUnitCost)
		v.TotalQty = v.TotalQty.Add(row.OnHandQty)
		v.TotalValue = v.TotalValue.Add(row.Value)
		v.Rows = append(v.Rows, row)
	}
	return v, nil
}

// ProfitLoss summarises completed trading and expenses between from and to,
// both inclusive dates. Zero bounds default to the current month to date.
func (s *Service) ProfitLoss(ctx context.Context, accountID int64, from, to time.Time) (ProfitLoss, error) {
	from, to, err := s.period(from, to)
	if err != nil {
		return ProfitLoss{}, err
	}
	var out ProfitLoss
	err = s.cached(ctx, accountID, &out, func(ctx context.Context) (any, error) {
		return s.buildProfitLoss(ctx, accountID, from, to)
	}, "profit-loss", from.Format(DateLayout), to.Format(DateLayout))
	return out, err
}

func (s *Service) buildProfitLoss(ctx context.Context, accountID int64, from, to time.Time) (ProfitLoss, error) {
	end := to.AddDate(0, 0, 1)
	var imports, exports TxTotals
	var expenses decimal.Decimal

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		imports, err = s.repo.SumTransactions(gctx, accountID, "IMPORT", from, end)
		return err
	})
	g.Go(func() error {
		var err error
		exports, err = s.repo.SumTransactions(gctx, accountID, "EXPORT", from, end)
		return err
	})
	g.Go(func() error {
		var err error
		expenses, err = s.repo.SumExpenses(gctx, accountID, from, end)
		return err
	})
	if err := g.Wait(); err != nil {
		return ProfitLoss{}, fmt.Errorf("load profit and loss: %w", err)
	}

	return ProfitLoss{
		AccountID:   accountID,
		From:        from,
		To:          to,
		Revenue:     exports.Amount,
		Purchases:   imports.Amount,
		COGS:        exports.Cost,
		GrossProfit: exports.Profit,
		Expenses:    expenses,
		NetProfit:   exports.Profit.Sub(expenses),
	}, nil
}

// LowStock lists products at or below their reorder level.
func (s *Service) LowStock(ctx context.Context, accountID int64) ([]LowStockRow, error) {
	var out []LowStockRow
	err := s.cached(ctx, accountID, &out, func(ctx context.Context) (any, error) {
		rows, err := s.repo.LowStockRows(ctx, accountID)
		if err != nil {
			return nil, fmt.Errorf("load low stock rows: %w", err)
		}
		for i := range rows {
			rows[i].Shortfall = rows[i].ReorderLevel.Sub(rows[i].OnHandQty)
		}
		return rows, nil
	}, "low-stock")
	return out, err
}

// Accounts lists accounts that hold products.
func (s *Service) Accounts(ctx context.Context) ([]int64, error) {
	return s.repo.Accounts(ctx)
}

// SnapshotValuation stores the account's current valuation totals. The
// valuation is rebuilt from the database rather than read from cache.
func (s *Service) SnapshotValuation(ctx context.Context, accountID int64) (Snapshot, error) {
	v, err := s.buildValuation(ctx, accountID)
	if err != nil {
		return Snapshot{}, err
	}
	return s.repo.InsertSnapshot(ctx, Snapshot{
		AccountID:    accountID,
		TakenAt:      v.AsOf,
		ProductCount: len(v.Rows),
		TotalQty:     v.TotalQty,
		TotalValue:   v.TotalValue,
	})
}

func (s *Service) period(from, to time.Time) (time.Time, time.Time, error) {
	now := s.now().UTC()
	if to.IsZero() {
		to = now
	}
	if from.IsZero() {
		from = time.Date(to.Year(), to.Month(), 1, 0, 0, 0, 0, time.UTC)
	}
	from = truncateDay(from)
	to = truncateDay(to)
	if to.Before(from) {
		return time.Time{}, time.Time{}, fmt.Errorf("%w: %s is before %s", ErrInvalidRange, to.Format(DateLayout), from.Format(DateLayout))
	}
	return from, to, nil
}

func truncateDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// cached serves a report from the cache. Concurrent misses on the same key
// share one loader run. Cache failures fall back to the loader.
func (s *Service) cached(ctx context.Context, accountID int64, dest any, loader func(context.Context) (any, error), parts ...string) error {
	key, err := s.cache.BuildKey(ctx, accountID, parts...)
	if err != nil {
		s.logger.Warn("report cache unavailable", slog.Int64("account_id", accountID), slog.Any("error", err))
		return s.direct(ctx, dest, loader)
	}
	val, err, _ := s.singleflight(ctx, key, func(ctx context.Context) (any, error) {
		var raw json.RawMessage
		if err := s.cache.FetchJSON(ctx, key, &raw, loader); err != nil {
			return nil, err
		}
		return raw, nil
	})
	if err != nil {
		return err
	}
	return json.Unmarshal(val.(json.RawMessage), dest)
}

func (s *Service) direct(ctx context.Context, dest any, loader func(context.Context) (any, error)) error {
	value, err := loader(ctx)
	if err != nil {
		return err
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, dest)
}

func (s *Service) singleflight(ctx context.Context, key string, fn func(context.Context) (any, error)) (any, error, bool) {
	resultChan := s.group.DoChan(key, func() (any, error) {
		return fn(ctx)
	})
	select {
	case <-ctx.Done():
		return nil, ctx.Err(), false
	case res := <-resultChan:
		return res.Val, res.Err, res.Shared
	}
}
