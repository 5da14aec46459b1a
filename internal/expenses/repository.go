package expenses

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/stockroom/internal/platform/db"
)

const expenseColumns = `id, account_id, category, amount, spent_on, note, created_at, updated_at`

// Repository persists expenses in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Insert stores an expense.
func (r *Repository) Insert(ctx context.Context, e Expense) (Expense, error) {
	row := r.pool.QueryRow(ctx, `INSERT INTO expenses (account_id, category, amount, spent_on, note)
VALUES ($1, $2, $3, $4, $5)
RETURNING `+expenseColumns,
		e.AccountID, e.Category, db.Numeric(e.Amount), pgtype.Date{Time: e.SpentOn, Valid: true}, e.Note)
	return scanExpense(row)
}

// Get fetches an expense scoped to the account.
func (r *Repository) Get(ctx context.Context, accountID, id int64) (Expense, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+expenseColumns+` FROM expenses WHERE account_id = $1 AND id = $2`, accountID, id)
	e, err := scanExpense(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Expense{}, fmt.Errorf("%w: %d", ErrExpenseNotFound, id)
	}
	return e, err
}

// List returns the filtered page and the total number of matches.
func (r *Repository) List(ctx context.Context, accountID int64, filter ListFilter) ([]Expense, int, error) {
	clause, args := whereClause(accountID, filter.From, filter.To)
	if filter.Category != "" {
		args = append(args, filter.Category)
		clause += fmt.Sprintf(" AND category = $%d", len(args))
	}

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM expenses WHERE `+clause, args...).Scan(&total); err != nil {
		return nil, 0, err
	}
	args = append(args, filter.Limit, filter.Offset)
	rows, err := r.pool.Query(ctx, fmt.Sprintf(`SELECT %s FROM expenses WHERE %s ORDER BY spent_on DESC, id DESC LIMIT $%d OFFSET $%d`,
		expenseColumns, clause, len(args)-1, len(args)), args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var items []Expense
	for rows.Next() {
		e, err := scanExpense(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, e)
	}
	return items, total, rows.Err()
}

// Update rewrites an expense.
func (r *Repository) Update(ctx context.Context, e Expense) (Expense, error) {
	row := r.pool.QueryRow(ctx, `UPDATE expenses
SET category = $3, amount = $4, spent_on = $5, note = $6, updated_at = NOW()
WHERE account_id = $1 AND id = $2
RETURNING `+expenseColumns,
		e.AccountID, e.ID, e.Category, db.Numeric(e.Amount), pgtype.Date{Time: e.SpentOn, Valid: true}, e.Note)
	updated, err := scanExpense(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Expense{}, fmt.Errorf("%w: %d", ErrExpenseNotFound, e.ID)
	}
	return updated, err
}

// Delete removes an expense.
func (r *Repository) Delete(ctx context.Context, accountID, id int64) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM expenses WHERE account_id = $1 AND id = $2`, accountID, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: %d", ErrExpenseNotFound, id)
	}
	return nil
}

// Sum totals the amounts spent within the bounds.
func (r *Repository) Sum(ctx context.Context, accountID int64, from, to time.Time) (decimal.Decimal, error) {
	clause, args := whereClause(accountID, from, to)
	var total pgtype.Numeric
	if err := r.pool.QueryRow(ctx, `SELECT COALESCE(SUM(amount), 0) FROM expenses WHERE `+clause, args...).Scan(&total); err != nil {
		return decimal.Zero, err
	}
	return db.Decimal(total), nil
}

func whereClause(accountID int64, from, to time.Time) (string, []any) {
	where := []string{"account_id = $1"}
	args := []any{accountID}
	if !from.IsZero() {
		args = append(args, pgtype.Date{Time: from, Valid: true})
		where = append(where, fmt.Sprintf("spent_on >= $%d", len(args)))
	}
	if !to.IsZero() {
		args = append(args, pgtype.Date{Time: to, Valid: true})
		where = append(where, fmt.Sprintf("spent_on <= $%d", len(args)))
	}
	return strings.Join(where, " AND "), args
}

func scanExpense(row pgx.Row) (Expense, error) {
	var (
		e       Expense
		amount  pgtype.Numeric
		spentOn pgtype.Date
	)
	if err := row.Scan(&e.ID, &e.AccountID, &e.Category, &amount, &spentOn, &e.Note, &e.CreatedAt, &e.UpdatedAt); err != nil {
		return Expense{}, err
	}
	e.Amount = db.Decimal(amount)
	e.SpentOn = spentOn.Time
	return e, nil
}
