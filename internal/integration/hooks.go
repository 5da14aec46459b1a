package integration

import (
	"context"
	"errors"
	"log/slog"

	"github.com/odyssey-erp/stockroom/internal/inventory"
)

// CacheInvalidator drops derived data of an account.
type CacheInvalidator interface {
	Invalidate(ctx context.Context, accountID int64) error
}

// MovementPublisher forwards movements to external consumers.
type MovementPublisher interface {
	PublishMovement(ctx context.Context, evt inventory.MovementPostedEvent) error
}

// Hooks fans committed ledger movements out to downstream consumers.
type Hooks struct {
	invalidator CacheInvalidator
	publisher   MovementPublisher
	logger      *slog.Logger
}

// NewHooks constructs integration hooks. Either dependency may be nil.
func NewHooks(invalidator CacheInvalidator, publisher MovementPublisher, logger *slog.Logger) *Hooks {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hooks{invalidator: invalidator, publisher: publisher, logger: logger}
}

// HandleMovementPosted invalidates cached reports and publishes the movement.
// Every consumer is attempted; failures are joined.
func (h *Hooks) HandleMovementPosted(ctx context.Context, evt inventory.MovementPostedEvent) error {
	if h == nil {
		return nil
	}
	var errs []error
	if h.invalidator != nil {
		if err := h.invalidator.Invalidate(ctx, evt.AccountID); err != nil {
			errs = append(errs, err)
		}
	}
	if h.publisher != nil {
		if err := h.publisher.PublishMovement(ctx, evt); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) == 0 {
		h.logger.Debug("movement dispatched",
			slog.Int64("account_id", evt.AccountID),
			slog.String("product_id", evt.ProductID),
			slog.Int64("seq", evt.Seq))
	}
	return errors.Join(errs...)
}

var _ inventory.IntegrationHandler = (*Hooks)(nil)
