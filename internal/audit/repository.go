package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
)

// PGRepository reads audit_logs from PostgreSQL.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs PGRepository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

// Timeline lists entries newest first.
func (r *PGRepository) Timeline(ctx context.Context, filters TimelineFilters, offset, limit int) ([]TimelineRow, error) {
	clauses := []string{"account_id = $1"}
	args := []any{filters.AccountID}
	add := func(clause string, value any) {
		args = append(args, value)
		clauses = append(clauses, fmt.Sprintf(clause, len(args)))
	}
	if !filters.From.IsZero() {
		add("occurred_at >= $%d", filters.From)
	}
	if !filters.To.IsZero() {
		add("occurred_at < $%d", filters.To)
	}
	if v := strings.TrimSpace(filters.Entity); v != "" {
		add("entity = $%d", v)
	}
	if v := strings.TrimSpace(filters.EntityID); v != "" {
		add("entity_id = $%d", v)
	}
	if v := strings.TrimSpace(filters.Action); v != "" {
		add("action = $%d", v)
	}
	args = append(args, limit, offset)
	query := fmt.Sprintf(`SELECT id, occurred_at, action, entity, entity_id, meta
FROM audit_logs WHERE %s
ORDER BY occurred_at DESC, id DESC
LIMIT $%d OFFSET $%d`, strings.Join(clauses, " AND "), len(args)-1, len(args))

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []TimelineRow
	for rows.Next() {
		var row TimelineRow
		var meta []byte
		if err := rows.Scan(&row.ID, &row.At, &row.Action, &row.Entity, &row.EntityID, &meta); err != nil {
			return nil, err
		}
		if len(meta) > 0 {
			if err := json.Unmarshal(meta, &row.Meta); err != nil {
				return nil, err
			}
		}
		out = append(out, row)
	}
	return out, rows.Err()
}
