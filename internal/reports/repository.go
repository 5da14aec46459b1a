package reports

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/stockroom/internal/platform/db"
)

// Repository reads report aggregates from PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// ValuationRows lists every product with its stock and average cost.
func (r *Repository) ValuationRows(ctx context.Context, accountID int64) ([]ValuationRow, error) {
	rows, err := r.pool.Query(ctx, `SELECT product_id, name, unit, on_hand_qty, avg_unit_cost
FROM products WHERE account_id = $1 ORDER BY product_id`, accountID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []ValuationRow
	for rows.Next() {
		var row ValuationRow
		var qty, cost pgtype.Numeric
		if err := rows.Scan(&row.ProductID, &row.Name, &row.Unit, &qty, &cost); err != nil {
			return nil, err
		}
		row.OnHandQty = db.Decimal(qty)
		row.AvgUnitCost = db.Decimal(cost)
		out = append(out, row)
	}
	return out, rows.Err()
}

// SumTransactions aggregates completed transactions of a kind whose completion
// falls in [from, to).
func (r *Repository) SumTransactions(ctx context.Context, accountID int64, kind string, from, to time.Time) (TxTotals, error) {
	var amount, cost, profit pgtype.Numeric
	err := r.pool.QueryRow(ctx, `SELECT COALESCE(SUM(total_amount), 0),
       COALESCE(SUM(quantity * cost_basis), 0),
       COALESCE(SUM(profit), 0)
FROM inventory_tx
WHERE account_id = $1 AND kind = $2 AND status = 'completed'
  AND completed_at >= $3 AND completed_at < $4`,
		accountID, kind, from, to).Scan(&amount, &cost, &profit)
	if err != nil {
		return TxTotals{}, err
	}
	return TxTotals{Amount: db.Decimal(amount), Cost: db.Decimal(cost), Profit: db.Decimal(profit)}, nil
}

// SumExpenses totals expenses spent in [from, to).
func (r *Repository) SumExpenses(ctx context.Context, accountID int64, from, to time.Time) (decimal.Decimal, error) {
	var total pgtype.Numeric
	err := r.pool.QueryRow(ctx, `SELECT COALESCE(SUM(amount), 0) FROM expenses
WHERE account_id = $1 AND spent_on >= $2 AND spent_on < $3`,
		accountID, pgtype.Date{Time: from, Valid: true}, pgtype.Date{Time: to, Valid: true}).Scan(&total)
	if err != nil {
		return decimal.Zero, err
	}
	return db.Decimal(total), nil
}

// LowStockRows lists products at or below their reorder level.
func (r *Repository) LowStockRows(ctx context.Context, accountID int64) ([]LowStockRow, error) {
	rows, err := r.pool.Query(ctx, `SELECT product_id, name, on_hand_qty, reorder_level
FROM products WHERE account_id = $1 AND on_hand_qty <= reorder_level
ORDER BY reorder_level - on_hand_qty DESC, product_id`, accountID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []LowStockRow
	for rows.Next() {
		var row LowStockRow
		var qty, level pgtype.Numeric
		if err := rows.Scan(&row.ProductID, &row.Name, &qty, &level); err != nil {
			return nil, err
		}
		row.OnHandQty = db.Decimal(qty)
		row.ReorderLevel = db.Decimal(level)
		out = append(out, row)
	}
	return out, rows.Err()
}

// Accounts lists accounts that own at least one product.
func (r *Repository) Accounts(ctx context.Context) ([]int64, error) {
	rows, err := r.pool.Query(ctx, `SELECT DISTINCT account_id FROM products ORDER BY account_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

// InsertSnapshot stores a valuation snapshot.
func (r *Repository) InsertSnapshot(ctx context.Context, s Snapshot) (Snapshot, error) {
	err := r.pool.QueryRow(ctx, `INSERT INTO valuation_snapshots (account_id, taken_at, product_count, total_qty, total_value)
VALUES ($1, $2, $3, $4, $5) RETURNING id`,
		s.AccountID, s.TakenAt, s.ProductCount, db.Numeric(s.TotalQty), db.Numeric(s.TotalValue)).Scan(&s.ID)
	return s, err
}
