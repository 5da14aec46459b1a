package partners

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/odyssey-erp/stockroom/internal/shared"
)

// RepositoryPort abstracts partner persistence.
type RepositoryPort interface {
	Insert(ctx context.Context, partner Partner) (Partner, error)
	Get(ctx context.Context, accountID, id int64) (Partner, error)
	List(ctx context.Context, accountID int64, filter ListFilter) ([]Partner, int, error)
	Update(ctx context.Context, partner Partner) (Partner, error)
}

// AuditPort abstracts audit logging functionality.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service manages customers and suppliers.
type Service struct {
	repo   RepositoryPort
	audit  AuditPort
	logger *slog.Logger
}

// NewService builds Service. audit may be nil.
func NewService(repo RepositoryPort, audit AuditPort, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, audit: audit, logger: logger}
}

// Create registers an active partner.
func (s *Service) Create(ctx context.Context, accountID int64, input CreateInput) (Partner, error) {
	partner := Partner{
		AccountID: accountID,
		Kind:      Kind(strings.ToUpper(strings.TrimSpace(string(input.Kind)))),
		Name:      strings.TrimSpace(input.Name),
		Phone:     strings.TrimSpace(input.Phone),
		Email:     strings.TrimSpace(input.Email),
		Address:   strings.TrimSpace(input.Address),
		Note:      input.Note,
		IsActive:  true,
	}
	if !partner.Kind.Valid() {
		return Partner{}, fmt.Errorf("%w: unknown kind %q", ErrInvalidPartner, input.Kind)
	}
	if partner.Name == "" {
		return Partner{}, fmt.Errorf("%w: name required", ErrInvalidPartner)
	}
	created, err := s.repo.Insert(ctx, partner)
	if err != nil {
		return Partner{}, err
	}
	s.record(ctx, accountID, "partners:create", created.ID)
	return created, nil
}

// Get fetches one partner.
func (s *Service) Get(ctx context.Context, accountID, id int64) (Partner, error) {
	return s.repo.Get(ctx, accountID, id)
}

// List returns a page of partners.
func (s *Service) List(ctx context.Context, accountID int64, filter ListFilter) ([]Partner, shared.Pagination, error) {
	filter.Limit, filter.Offset = shared.NormalizeLimit(filter.Limit, filter.Offset)
	filter.Search = strings.TrimSpace(filter.Search)
	if filter.Kind != "" && !filter.Kind.Valid() {
		return nil, shared.Pagination{}, fmt.Errorf("%w: unknown kind %q", ErrInvalidPartner, filter.Kind)
	}
	items, total, err := s.repo.List(ctx, accountID, filter)
	if err != nil {
		return nil, shared.Pagination{}, err
	}
	return items, shared.NewPagination(filter.Limit, filter.Offset, total), nil
}

// Update changes contact details.
func (s *Service) Update(ctx context.Context, accountID, id int64, input UpdateInput) (Partner, error) {
	partner, err := s.repo.Get(ctx, accountID, id)
	if err != nil {
		return Partner{}, err
	}
	if input.Name != nil {
		partner.Name = strings.TrimSpace(*input.Name)
		if partner.Name == "" {
			return Partner{}, fmt.Errorf("%w: name required", ErrInvalidPartner)
		}
	}
	if input.Phone != nil {
		partner.Phone = strings.TrimSpace(*input.Phone)
	}
	if input.Email != nil {
		partner.Email = strings.TrimSpace(*input.Email)
	}
	if input.Address != nil {
		partner.Address = strings.TrimSpace(*input.Address)
	}
	if input.Note != nil {
		partner.Note = *input.Note
	}
	updated, err := s.repo.Update(ctx, partner)
	if err != nil {
		return Partner{}, err
	}
	s.record(ctx, accountID, "partners:update", id)
	return updated, nil
}

// Deactivate hides a partner from new transactions. Existing transactions keep
// their reference.
func (s *Service) Deactivate(ctx context.Context, accountID, id int64) (Partner, error) {
	partner, err := s.repo.Get(ctx, accountID, id)
	if err != nil {
		return Partner{}, err
	}
	if !partner.IsActive {
		return partner, nil
	}
	partner.IsActive = false
	updated, err := s.repo.Update(ctx, partner)
	if err != nil {
		return Partner{}, err
	}
	s.record(ctx, accountID, "partners:deactivate", id)
	return updated, nil
}

// Require checks that id names an active partner of the wanted kind. It
// satisfies the inventory partner lookup port.
func (s *Service) Require(ctx context.Context, accountID, id int64, kind Kind) error {
	partner, err := s.repo.Get(ctx, accountID, id)
	if err != nil {
		return err
	}
	if !partner.IsActive {
		return fmt.Errorf("%w: %d", ErrPartnerInactive, id)
	}
	if partner.Kind != kind {
		return fmt.Errorf("%w: %d is %s, want %s", ErrKindMismatch, id, partner.Kind, kind)
	}
	return nil
}

func (s *Service) record(ctx context.Context, accountID int64, action string, id int64) {
	if s.audit == nil {
		return
	}
	if err := s.audit.Record(ctx, shared.AuditLog{
		AccountID: accountID,
		Action:    action,
		Entity:    "partner",
		EntityID:  strconv.FormatInt(id, 10),
	}); err != nil {
		s.logger.Warn("audit record failed", slog.String("action", action), slog.Any("error", err))
	}
}
