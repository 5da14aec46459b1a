package expenses

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/stockroom/internal/shared"
)

// RepositoryPort abstracts expense persistence.
type RepositoryPort interface {
	Insert(ctx context.Context, expense Expense) (Expense, error)
	Get(ctx context.Context, accountID, id int64) (Expense, error)
	List(ctx context.Context, accountID int64, filter ListFilter) ([]Expense, int, error)
	Update(ctx context.Context, expense Expense) (Expense, error)
	Delete(ctx context.Context, accountID, id int64) error
	Sum(ctx context.Context, accountID int64, from, to time.Time) (decimal.Decimal, error)
}

// AuditPort abstracts audit logging functionality.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// ChangeNotifier is told when expense totals change so cached reports can be dropped.
type ChangeNotifier interface {
	Invalidate(ctx context.Context, accountID int64) error
}

// Service manages operating expenses.
type Service struct {
	repo     RepositoryPort
	audit    AuditPort
	notifier ChangeNotifier
	logger   *slog.Logger
}

// NewService builds Service. audit and notifier may be nil.
func NewService(repo RepositoryPort, audit AuditPort, notifier ChangeNotifier, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, audit: audit, notifier: notifier, logger: logger}
}

// Create stores an expense.
func (s *Service) Create(ctx context.Context, accountID int64, input CreateInput) (Expense, error) {
	spentOn, err := parseDate(input.SpentOn)
	if err != nil {
		return Expense{}, err
	}
	expense := Expense{
		AccountID: accountID,
		Category:  strings.TrimSpace(input.Category),
		Amount:    input.Amount,
		SpentOn:   spentOn,
		Note:      input.Note,
	}
	if err := validate(expense); err != nil {
		return Expense{}, err
	}
	created, err := s.repo.Insert(ctx, expense)
	if err != nil {
		return Expense{}, err
	}
	s.changed(ctx, accountID, "expenses:create", created.ID)
	return created, nil
}

// Get fetches one expense.
func (s *Service) Get(ctx context.Context, accountID, id int64) (Expense, error) {
	return s.repo.Get(ctx, accountID, id)
}

// List returns a page of expenses ordered by date.
func (s *Service) List(ctx context.Context, accountID int64, filter ListFilter) ([]Expense, shared.Pagination, error) {
	if !filter.From.IsZero() && !filter.To.IsZero() && filter.To.Before(filter.From) {
		return nil, shared.Pagination{}, fmt.Errorf("%w: to before from", ErrInvalidExpense)
	}
	filter.Limit, filter.Offset = shared.NormalizeLimit(filter.Limit, filter.Offset)
	filter.Category = strings.TrimSpace(filter.Category)
	items, total, err := s.repo.List(ctx, accountID, filter)
	if err != nil {
		return nil, shared.Pagination{}, err
	}
	return items, shared.NewPagination(filter.Limit, filter.Offset, total), nil
}

// Update changes an expense.
func (s *Service) Update(ctx context.Context, accountID, id int64, input UpdateInput) (Expense, error) {
	expense, err := s.repo.Get(ctx, accountID, id)
	if err != nil {
		return Expense{}, err
	}
	if input.Category != nil {
		expense.Category = strings.TrimSpace(*input.Category)
	}
	if input.Amount != nil {
		expense.Amount = *input.Amount
	}
	if input.SpentOn != nil {
		if expense.SpentOn, err = parseDate(*input.SpentOn); err != nil {
			return Expense{}, err
		}
	}
	if input.Note != nil {
		expense.Note = *input.Note
	}
	if err := validate(expense); err != nil {
		return Expense{}, err
	}
	updated, err := s.repo.Update(ctx, expense)
	if err != nil {
		return Expense{}, err
	}
	s.changed(ctx, accountID, "expenses:update", id)
	return updated, nil
}

// Delete removes an expense.
func (s *Service) Delete(ctx context.Context, accountID, id int64) error {
	if err := s.repo.Delete(ctx, accountID, id); err != nil {
		return err
	}
	s.changed(ctx, accountID, "expenses:delete", id)
	return nil
}

// Total sums expenses spent within [from, to]. Zero dates are open bounds.
func (s *Service) Total(ctx context.Context, accountID int64, from, to time.Time) (decimal.Decimal, error) {
	return s.repo.Sum(ctx, accountID, from, to)
}

func (s *Service) changed(ctx context.Context, accountID int64, action string, id int64) {
	if s.notifier != nil {
		if err := s.notifier.Invalidate(ctx, accountID); err != nil {
			s.logger.Warn("report cache invalidation failed", slog.String("action", action), slog.Int64("account_id", accountID), slog.Any("error", err))
		}
	}
	if s.audit == nil {
		return
	}
	if err := s.audit.Record(ctx, shared.AuditLog{
		AccountID: accountID,
		Action:    action,
		Entity:    "expense",
		EntityID:  strconv.FormatInt(id, 10),
	}); err != nil {
		s.logger.Warn("audit record failed", slog.String("action", action), slog.Any("error", err))
	}
}

func parseDate(raw string) (time.Time, error) {
	t, err := time.Parse(DateLayout, strings.TrimSpace(raw))
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: spent_on must be YYYY-MM-DD", ErrInvalidExpense)
	}
	return t, nil
}

func validate(e Expense) error {
	switch {
	case e.Category == "":
		return fmt.Errorf("%w: category required", ErrInvalidExpense)
	case !e.Amount.IsPositive():
		return fmt.Errorf("%w: amount must be > 0", ErrInvalidExpense)
	case e.SpentOn.IsZero():
		return fmt.Errorf("%w: spent_on required", ErrInvalidExpense)
	}
	return nil
}
