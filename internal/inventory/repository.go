package inventory

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/odyssey-erp/stockroom/internal/catalog"
	"github.com/odyssey-erp/stockroom/internal/ledger"
	"github.com/odyssey-erp/stockroom/internal/partners"
	"github.com/odyssey-erp/stockroom/internal/platform/db"
)

const (
	uniqueViolation     = "23505"
	foreignKeyViolation = "23503"
)

const txColumns = `id, code, account_id, partner_id, kind, status, product_id, quantity, unit_cost,
	unit_price, discount, cost_basis, profit, total_amount, seq, note, created_at, updated_at, completed_at`

const entryColumns = `id, account_id, product_id, tx_id, tx_code, kind, qty_in, qty_out, unit_cost,
	balance_qty, balance_cost, seq, posted_at, note`

type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Repository persists inventory data in PostgreSQL.
type Repository struct {
	pool     *pgxpool.Pool
	attempts int
}

// NewRepository constructs Repository. attempts bounds how often a transaction is
// re-run after serialization failures or version conflicts.
func NewRepository(pool *pgxpool.Pool, attempts int) *Repository {
	return &Repository{pool: pool, attempts: attempts}
}

// TxRepository exposes transactional operations used by service.
type TxRepository interface {
	GetLedgerForUpdate(ctx context.Context, accountID int64, productID string) (ProductLedger, error)
	UpdateLedger(ctx context.Context, pl ProductLedger) (ProductLedger, error)
	GetTransactionForUpdate(ctx context.Context, accountID, id int64) (Transaction, error)
	InsertTransaction(ctx context.Context, t Transaction) (Transaction, error)
	UpdateTransaction(ctx context.Context, t Transaction) (Transaction, error)
	DeleteTransaction(ctx context.Context, accountID, id int64) error
	InsertLedgerEntry(ctx context.Context, entry LedgerEntry) error
}

type txRepo struct {
	q querier
}

// WithTx executes the callback inside a repeatable-read transaction, re-running it
// on serialization failures and version conflicts.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return db.WithTxRetry(ctx, r.pool, r.attempts, func(tx pgx.Tx) error {
		return fn(ctx, &txRepo{q: tx})
	})
}

// GetTransaction fetches a transaction without locking it.
func (r *Repository) GetTransaction(ctx context.Context, accountID, id int64) (Transaction, error) {
	return getTransaction(ctx, r.pool, accountID, id, false)
}

// ListTransactions returns the filtered page and the total number of matches.
func (r *Repository) ListTransactions(ctx context.Context, accountID int64, filter ListFilter) ([]Transaction, int, error) {
	where := []string{"account_id = $1"}
	args := []any{accountID}
	add := func(cond string, value any) {
		args = append(args, value)
		where = append(where, fmt.Sprintf(cond, len(args)))
	}
	if filter.ProductID != "" {
		add("product_id = $%d", filter.ProductID)
	}
	if filter.Kind != "" {
		add("kind = $%d", string(filter.Kind))
	}
	if filter.Status != "" {
		add("status = $%d", string(filter.Status))
	}
	if !filter.From.IsZero() {
		add("created_at >= $%d", filter.From)
	}
	if !filter.To.IsZero() {
		add("created_at <= $%d", filter.To)
	}
	clause := strings.Join(where, " AND ")

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM inventory_tx WHERE `+clause, args...).Scan(&total); err != nil {
		return nil, 0, err
	}
	args = append(args, filter.Limit, filter.Offset)
	rows, err := r.pool.Query(ctx, fmt.Sprintf(`SELECT %s FROM inventory_tx WHERE %s ORDER BY id DESC LIMIT $%d OFFSET $%d`,
		txColumns, clause, len(args)-1, len(args)), args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var items []Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, t)
	}
	return items, total, rows.Err()
}

// GetStockCard lists ledger entries in application order.
func (r *Repository) GetStockCard(ctx context.Context, filter StockCardFilter) ([]LedgerEntry, error) {
	where := []string{"account_id = $1", "product_id = $2"}
	args := []any{filter.AccountID, filter.ProductID}
	if !filter.From.IsZero() {
		args = append(args, filter.From)
		where = append(where, fmt.Sprintf("posted_at >= $%d", len(args)))
	}
	if !filter.To.IsZero() {
		args = append(args, filter.To)
		where = append(where, fmt.Sprintf("posted_at <= $%d", len(args)))
	}
	limit := filter.Limit
	if limit <= 0 {
		limit = 200
	}
	args = append(args, limit)
	rows, err := r.pool.Query(ctx, fmt.Sprintf(`SELECT %s FROM ledger_entries WHERE %s ORDER BY seq, id LIMIT $%d`,
		entryColumns, strings.Join(where, " AND "), len(args)), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []LedgerEntry
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

func (r *txRepo) GetLedgerForUpdate(ctx context.Context, accountID int64, productID string) (ProductLedger, error) {
	var onHand, avgCost pgtype.Numeric
	pl := ProductLedger{AccountID: accountID, ProductID: productID}
	err := r.q.QueryRow(ctx, `SELECT on_hand_qty, avg_unit_cost, version FROM products
WHERE account_id = $1 AND product_id = $2 FOR UPDATE`, accountID, productID).Scan(&onHand, &avgCost, &pl.Version)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ProductLedger{}, fmt.Errorf("%w: %s", catalog.ErrProductNotFound, productID)
		}
		return ProductLedger{}, err
	}
	pl.State = ledger.State{OnHand: db.Decimal(onHand), AvgCost: db.Decimal(avgCost)}
	return pl, nil
}

// UpdateLedger writes the new state only if the version still matches pl.Version.
func (r *txRepo) UpdateLedger(ctx context.Context, pl ProductLedger) (ProductLedger, error) {
	var version int64
	err := r.q.QueryRow(ctx, `UPDATE products
SET on_hand_qty = $3, avg_unit_cost = $4, version = version + 1, updated_at = NOW()
WHERE account_id = $1 AND product_id = $2 AND version = $5
RETURNING version`,
		pl.AccountID, pl.ProductID, db.Numeric(pl.State.OnHand), db.Numeric(pl.State.AvgCost), pl.Version).Scan(&version)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ProductLedger{}, fmt.Errorf("%w: %s at version %d", ErrVersionConflict, pl.ProductID, pl.Version)
		}
		return ProductLedger{}, err
	}
	pl.Version = version
	return pl, nil
}

func (r *txRepo) GetTransactionForUpdate(ctx context.Context, accountID, id int64) (Transaction, error) {
	return getTransaction(ctx, r.q, accountID, id, true)
}

func (r *txRepo) InsertTransaction(ctx context.Context, t Transaction) (Transaction, error) {
	row := r.q.QueryRow(ctx, `INSERT INTO inventory_tx (account_id, code, kind, status, product_id, partner_id,
	quantity, unit_cost, unit_price, discount, cost_basis, profit, total_amount, seq, note)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
RETURNING `+txColumns,
		t.AccountID, t.Code, string(t.Kind), string(t.Status), t.ProductID, t.PartnerID,
		db.Numeric(t.Quantity), db.Numeric(t.UnitCost), db.Numeric(t.UnitPrice), db.Numeric(t.Discount),
		db.Numeric(t.CostBasis), db.Numeric(t.Profit), db.Numeric(t.TotalAmount), t.Seq, t.Note)
	created, err := scanTransaction(row)
	if err != nil {
		return Transaction{}, insertError(err, t)
	}
	return created, nil
}

func (r *txRepo) UpdateTransaction(ctx context.Context, t Transaction) (Transaction, error) {
	row := r.q.QueryRow(ctx, `UPDATE inventory_tx
SET status = $3, quantity = $4, unit_cost = $5, unit_price = $6, discount = $7, cost_basis = $8,
	profit = $9, total_amount = $10, seq = $11, note = $12, completed_at = $13, updated_at = NOW()
WHERE account_id = $1 AND id = $2
RETURNING `+txColumns,
		t.AccountID, t.ID, string(t.Status), db.Numeric(t.Quantity), db.Numeric(t.UnitCost), db.Numeric(t.UnitPrice),
		db.Numeric(t.Discount), db.Numeric(t.CostBasis), db.Numeric(t.Profit), db.Numeric(t.TotalAmount),
		t.Seq, t.Note, t.CompletedAt)
	updated, err := scanTransaction(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Transaction{}, fmt.Errorf("%w: %d", ErrTransactionNotFound, t.ID)
	}
	return updated, err
}

func (r *txRepo) DeleteTransaction(ctx context.Context, accountID, id int64) error {
	tag, err := r.q.Exec(ctx, `DELETE FROM inventory_tx WHERE account_id = $1 AND id = $2`, accountID, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: %d", ErrTransactionNotFound, id)
	}
	return nil
}

func (r *txRepo) InsertLedgerEntry(ctx context.Context, e LedgerEntry) error {
	_, err := r.q.Exec(ctx, `INSERT INTO ledger_entries (account_id, product_id, tx_id, tx_code, kind, qty_in, qty_out,
	unit_cost, balance_qty, balance_cost, seq, posted_at, note)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
		e.AccountID, e.ProductID, e.TxID, e.TxCode, string(e.Kind), db.Numeric(e.QtyIn), db.Numeric(e.QtyOut),
		db.Numeric(e.UnitCost), db.Numeric(e.BalanceQty), db.Numeric(e.BalanceCost), e.Seq, e.PostedAt, e.Note)
	return err
}

func getTransaction(ctx context.Context, q querier, accountID, id int64, forUpdate bool) (Transaction, error) {
	query := `SELECT ` + txColumns + ` FROM inventory_tx WHERE account_id = $1 AND id = $2`
	if forUpdate {
		query += ` FOR UPDATE`
	}
	t, err := scanTransaction(q.QueryRow(ctx, query, accountID, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return Transaction{}, fmt.Errorf("%w: %d", ErrTransactionNotFound, id)
	}
	return t, err
}

func insertError(err error, t Transaction) error {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return err
	}
	switch pgErr.Code {
	case uniqueViolation:
		return fmt.Errorf("%w: %s", ErrDuplicateCode, t.Code)
	case foreignKeyViolation:
		if strings.Contains(pgErr.ConstraintName, "partner") {
			return fmt.Errorf("%w: %d", partners.ErrPartnerNotFound, *t.PartnerID)
		}
		return fmt.Errorf("%w: %s", catalog.ErrProductNotFound, t.ProductID)
	}
	return err
}

func scanTransaction(row pgx.Row) (Transaction, error) {
	var (
		t                                             Transaction
		kind, status                                  string
		qty, cost, price, discount, basis, profit, tt pgtype.Numeric
	)
	if err := row.Scan(&t.ID, &t.Code, &t.AccountID, &t.PartnerID, &kind, &status, &t.ProductID, &qty, &cost,
		&price, &discount, &basis, &profit, &tt, &t.Seq, &t.Note, &t.CreatedAt, &t.UpdatedAt, &t.CompletedAt); err != nil {
		return Transaction{}, err
	}
	t.Kind = Kind(kind)
	t.Status = Status(status)
	t.Quantity = db.Decimal(qty)
	t.UnitCost = db.Decimal(cost)
	t.UnitPrice = db.Decimal(price)
	t.Discount = db.Decimal(discount)
	t.CostBasis = db.Decimal(basis)
	t.Profit = db.Decimal(profit)
	t.TotalAmount = db.Decimal(tt)
	return t, nil
}

func scanEntry(row pgx.Row) (LedgerEntry, error) {
	var (
		e                                    LedgerEntry
		kind                                 string
		qtyIn, qtyOut, cost, balQty, balCost pgtype.Numeric
	)
	if err := row.Scan(&e.ID, &e.AccountID, &e.ProductID, &e.TxID, &e.TxCode, &kind, &qtyIn, &qtyOut, &cost,
		&balQty, &balCost, &e.Seq, &e.PostedAt, &e.Note); err != nil {
		return LedgerEntry{}, err
	}
	e.Kind = EntryKind(kind)
	e.QtyIn = db.Decimal(qtyIn)
	e.QtyOut = db.Decimal(qtyOut)
	e.UnitCost = db.Decimal(cost)
	e.BalanceQty = db.Decimal(balQty)
	e.BalanceCost = db.Decimal(balCost)
	return e, nil
}
