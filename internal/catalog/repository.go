package catalog

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/odyssey-erp/stockroom/internal/platform/db"
)

const (
	uniqueViolation     = "23505"
	foreignKeyViolation = "23503"
)

const productColumns = `account_id, product_id, name, unit, reorder_level, sell_price,
	on_hand_qty, avg_unit_cost, version, created_at, updated_at`

// Repository persists products in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Insert stores a product with a zero ledger.
func (r *Repository) Insert(ctx context.Context, p Product) (Product, error) {
	row := r.pool.QueryRow(ctx, `INSERT INTO products (account_id, product_id, name, unit, reorder_level, sell_price)
VALUES ($1, $2, $3, $4, $5, $6)
RETURNING `+productColumns,
		p.AccountID, p.ProductID, p.Name, p.Unit, db.Numeric(p.ReorderLevel), db.Numeric(p.SellPrice))
	created, err := scanProduct(row)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return Product{}, fmt.Errorf("%w: %s", ErrDuplicateProduct, p.ProductID)
		}
		return Product{}, err
	}
	return created, nil
}

// Get fetches a product by id.
func (r *Repository) Get(ctx context.Context, accountID int64, productID string) (Product, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+productColumns+` FROM products WHERE account_id = $1 AND product_id = $2`,
		accountID, productID)
	p, err := scanProduct(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Product{}, fmt.Errorf("%w: %s", ErrProductNotFound, productID)
	}
	return p, err
}

// List returns the filtered page and the total number of matches.
func (r *Repository) List(ctx context.Context, accountID int64, filter ListFilter) ([]Product, int, error) {
	where := []string{"account_id = $1"}
	args := []any{accountID}
	if filter.Search != "" {
		args = append(args, "%"+filter.Search+"%")
		where = append(where, fmt.Sprintf("(product_id ILIKE $%d OR name ILIKE $%d)", len(args), len(args)))
	}
	if filter.LowStock {
		where = append(where, "on_hand_qty <= reorder_level")
	}
	clause := strings.Join(where, " AND ")

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM products WHERE `+clause, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	args = append(args, filter.Limit, filter.Offset)
	query := fmt.Sprintf(`SELECT %s FROM products WHERE %s ORDER BY product_id LIMIT $%d OFFSET $%d`,
		productColumns, clause, len(args)-1, len(args))
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var products []Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, 0, err
		}
		products = append(products, p)
	}
	return products, total, rows.Err()
}

// UpdateDetails rewrites descriptive columns only.
func (r *Repository) UpdateDetails(ctx context.Context, p Product) (Product, error) {
	row := r.pool.QueryRow(ctx, `UPDATE products
SET name = $3, unit = $4, reorder_level = $5, sell_price = $6, updated_at = NOW()
WHERE account_id = $1 AND product_id = $2
RETURNING `+productColumns,
		p.AccountID, p.ProductID, p.Name, p.Unit, db.Numeric(p.ReorderLevel), db.Numeric(p.SellPrice))
	updated, err := scanProduct(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Product{}, fmt.Errorf("%w: %s", ErrProductNotFound, p.ProductID)
	}
	return updated, err
}

// Delete removes a product whose ledger is empty.
func (r *Repository) Delete(ctx context.Context, accountID int64, productID string) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM products WHERE account_id = $1 AND product_id = $2 AND on_hand_qty = 0`,
		accountID, productID)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == foreignKeyViolation {
			return fmt.Errorf("%w: %s", ErrProductInUse, productID)
		}
		return err
	}
	if tag.RowsAffected() == 0 {
		var exists bool
		if err := r.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM products WHERE account_id = $1 AND product_id = $2)`,
			accountID, productID).Scan(&exists); err != nil {
			return err
		}
		if exists {
			return fmt.Errorf("%w: %s", ErrProductHasStock, productID)
		}
		return fmt.Errorf("%w: %s", ErrProductNotFound, productID)
	}
	return nil
}

func scanProduct(row pgx.Row) (Product, error) {
	var (
		p                               Product
		reorder, price, onHand, avgCost pgtype.Numeric
	)
	if err := row.Scan(&p.AccountID, &p.ProductID, &p.Name, &p.Unit, &reorder, &price,
		&onHand, &avgCost, &p.Version, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return Product{}, err
	}
	p.ReorderLevel = db.Decimal(reorder)
	p.SellPrice = db.Decimal(price)
	p.OnHandQty = db.Decimal(onHand)
	p.AvgUnitCost = db.Decimal(avgCost)
	return p, nil
}
