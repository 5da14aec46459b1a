package catalog

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/odyssey-erp/stockroom/internal/shared"
)

// RepositoryPort abstracts product persistence for the service.
type RepositoryPort interface {
	Insert(ctx context.Context, product Product) (Product, error)
	Get(ctx context.Context, accountID int64, productID string) (Product, error)
	List(ctx context.Context, accountID int64, filter ListFilter) ([]Product, int, error)
	UpdateDetails(ctx context.Context, product Product) (Product, error)
	Delete(ctx context.Context, accountID int64, productID string) error
}

// AuditPort abstracts audit logging functionality.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// ChangeNotifier is told when an account's products change so cached reports can be dropped.
type ChangeNotifier interface {
	Invalidate(ctx context.Context, accountID int64) error
}

// Service manages the product catalog.
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

// Create registers a product with an empty ledger.
func (s *Service) Create(ctx context.Context, accountID int64, input CreateInput) (Product, error) {
	product := Product{
		AccountID:    accountID,
		ProductID:    NormalizeID(input.ProductID),
		Name:         strings.TrimSpace(input.Name),
		Unit:         strings.TrimSpace(input.Unit),
		ReorderLevel: input.ReorderLevel,
		SellPrice:    input.SellPrice,
	}
	if product.Unit == "" {
		product.Unit = DefaultUnit
	}
	if err := validate(product); err != nil {
		return Product{}, err
	}
	created, err := s.repo.Insert(ctx, product)
	if err != nil {
		return Product{}, err
	}
	s.changed(ctx, accountID, "catalog:create", created.ProductID, map[string]any{"name": created.Name})
	return created, nil
}

// Get fetches one product.
func (s *Service) Get(ctx context.Context, accountID int64, productID string) (Product, error) {
	return s.repo.Get(ctx, accountID, NormalizeID(productID))
}

// List returns a page of products and the total match count.
func (s *Service) List(ctx context.Context, accountID int64, filter ListFilter) ([]Product, shared.Pagination, error) {
	filter.Limit, filter.Offset = shared.NormalizeLimit(filter.Limit, filter.Offset)
	filter.Search = strings.TrimSpace(filter.Search)
	products, total, err := s.repo.List(ctx, accountID, filter)
	if err != nil {
		return nil, shared.Pagination{}, err
	}
	return products, shared.NewPagination(filter.Limit, filter.Offset, total), nil
}

// Update changes descriptive fields. Ledger fields are left untouched.
func (s *Service) Update(ctx context.Context, accountID int64, productID string, input UpdateInput) (Product, error) {
	product, err := s.repo.Get(ctx, accountID, NormalizeID(productID))
	if err != nil {
		return Product{}, err
	}
	if input.Name != nil {
		product.Name = strings.TrimSpace(*input.Name)
	}
	if input.Unit != nil {
		product.Unit = strings.TrimSpace(*input.Unit)
		if product.Unit == "" {
			product.Unit = DefaultUnit
		}
	}
	if input.ReorderLevel != nil {
		product.ReorderLevel = *input.ReorderLevel
	}
	if input.SellPrice != nil {
		product.SellPrice = *input.SellPrice
	}
	if err := validate(product); err != nil {
		return Product{}, err
	}
	updated, err := s.repo.UpdateDetails(ctx, product)
	if err != nil {
		return Product{}, err
	}
	s.changed(ctx, accountID, "catalog:update", updated.ProductID, nil)
	return updated, nil
}

// Delete removes a product that holds no stock.
func (s *Service) Delete(ctx context.Context, accountID int64, productID string) error {
	id := NormalizeID(productID)
	product, err := s.repo.Get(ctx, accountID, id)
	if err != nil {
		return err
	}
	if !product.OnHandQty.IsZero() {
		return fmt.Errorf("%w: %s holds %s", ErrProductHasStock, id, product.OnHandQty)
	}
	if err := s.repo.Delete(ctx, accountID, id); err != nil {
		return err
	}
	s.changed(ctx, accountID, "catalog:delete", id, nil)
	return nil
}

func (s *Service) changed(ctx context.Context, accountID int64, action, productID string, meta map[string]any) {
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
		Entity:    "product",
		EntityID:  productID,
		Meta:      meta,
	}); err != nil {
		s.logger.Warn("audit record failed", slog.String("action", action), slog.Any("error", err))
	}
}

func validate(p Product) error {
	switch {
	case p.ProductID == "":
		return fmt.Errorf("%w: product id required", ErrInvalidProduct)
	case len(p.ProductID) > 64:
		return fmt.Errorf("%w: product id too long", ErrInvalidProduct)
	case p.Name == "":
		return fmt.Errorf("%w: name required", ErrInvalidProduct)
	case p.ReorderLevel.IsNegative():
		return fmt.Errorf("%w: reorder level must be >= 0", ErrInvalidProduct)
	case p.SellPrice.IsNegative():
		return fmt.Errorf("%w: sell price must be >= 0", ErrInvalidProduct)
	}
	return nil
}
