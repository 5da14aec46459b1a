package partners

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const partnerColumns = `id, account_id, kind, name, phone, email, address, note, is_active, created_at, updated_at`

// Repository persists partners in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Insert stores a partner.
func (r *Repository) Insert(ctx context.Context, p Partner) (Partner, error) {
	row := r.pool.QueryRow(ctx, `INSERT INTO partners (account_id, kind, name, phone, email, address, note, is_active)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
RETURNING `+partnerColumns,
		p.AccountID, string(p.Kind), p.Name, p.Phone, p.Email, p.Address, p.Note, p.IsActive)
	return scanPartner(row)
}

// Get fetches a partner scoped to the account.
func (r *Repository) Get(ctx context.Context, accountID, id int64) (Partner, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+partnerColumns+` FROM partners WHERE account_id = $1 AND id = $2`, accountID, id)
	p, err := scanPartner(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Partner{}, fmt.Errorf("%w: %d", ErrPartnerNotFound, id)
	}
	return p, err
}

// List returns the filtered page and the total number of matches.
func (r *Repository) List(ctx context.Context, accountID int64, filter ListFilter) ([]Partner, int, error) {
	where := []string{"account_id = $1"}
	args := []any{accountID}
	if filter.Kind != "" {
		args = append(args, string(filter.Kind))
		where = append(where, fmt.Sprintf("kind = $%d", len(args)))
	}
	if filter.ActiveOnly {
		where = append(where, "is_active")
	}
	if filter.Search != "" {
		args = append(args, "%"+filter.Search+"%")
		where = append(where, fmt.Sprintf("(name ILIKE $%d OR email ILIKE $%d OR phone ILIKE $%d)", len(args), len(args), len(args)))
	}
	clause := strings.Join(where, " AND ")

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM partners WHERE `+clause, args...).Scan(&total); err != nil {
		return nil, 0, err
	}
	args = append(args, filter.Limit, filter.Offset)
	rows, err := r.pool.Query(ctx, fmt.Sprintf(`SELECT %s FROM partners WHERE %s ORDER BY name, id LIMIT $%d OFFSET $%d`,
		partnerColumns, clause, len(args)-1, len(args)), args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var partners []Partner
	for rows.Next() {
		p, err := scanPartner(rows)
		if err != nil {
			return nil, 0, err
		}
		partners = append(partners, p)
	}
	return partners, total, rows.Err()
}

// Update rewrites mutable columns.
func (r *Repository) Update(ctx context.Context, p Partner) (Partner, error) {
	row := r.pool.QueryRow(ctx, `UPDATE partners
SET name = $3, phone = $4, email = $5, address = $6, note = $7, is_active = $8, updated_at = NOW()
WHERE account_id = $1 AND id = $2
RETURNING `+partnerColumns,
		p.AccountID, p.ID, p.Name, p.Phone, p.Email, p.Address, p.Note, p.IsActive)
	updated, err := scanPartner(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Partner{}, fmt.Errorf("%w: %d", ErrPartnerNotFound, p.ID)
	}
	return updated, err
}

func scanPartner(row pgx.Row) (Partner, error) {
	var (
		p    Partner
		kind string
	)
	err := row.Scan(&p.ID, &p.AccountID, &kind, &p.Name, &p.Phone, &p.Email, &p.Address, &p.Note,
		&p.IsActive, &p.CreatedAt, &p.UpdatedAt)
	p.Kind = Kind(kind)
	return p, err
}
