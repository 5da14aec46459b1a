package ledger

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

var (
	// ErrInvalidQuantity indicates a non-positive movement quantity.
	ErrInvalidQuantity = errors.New("ledger: quantity must be greater than zero")
	// ErrInvalidPrice indicates a negative unit cost or unit price.
	ErrInvalidPrice = errors.New("ledger: unit cost and price must be >= 0")
	// ErrInsufficientStock is matched by every *InsufficientStockError.
	ErrInsufficientStock = errors.New("ledger: insufficient stock")
	// ErrLedgerInconsistency is matched by every *InconsistencyError.
	ErrLedgerInconsistency = errors.New("ledger: inconsistent ledger state")
)

// InsufficientStockError reports an export larger than the quantity on hand.
type InsufficientStockError struct {
	Requested decimal.Decimal
	Available decimal.Decimal
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("ledger: insufficient stock: requested %s, available %s", e.Requested.String(), e.Available.String())
}

// Unwrap lets errors.Is match ErrInsufficientStock.
func (e *InsufficientStockError) Unwrap() error { return ErrInsufficientStock }

// InconsistencyError reports ledger state that can only come from corrupted history.
// It is never clamped away.
type InconsistencyError struct {
	Reason string
	State  State
}

func (e *InconsistencyError) Error() string {
	return fmt.Sprintf("ledger: inconsistent ledger state: %s (on_hand=%s avg_cost=%s)", e.Reason, e.State.OnHand.String(), e.State.AvgCost.String())
}

// Unwrap lets errors.Is match ErrLedgerInconsistency.
func (e *InconsistencyError) Unwrap() error { return ErrLedgerInconsistency }
