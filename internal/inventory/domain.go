package inventory

import (
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/stockroom/internal/ledger"
	"github.com/odyssey-erp/stockroom/internal/platform/db"
)

// Kind enumerates supported stock movements.
type Kind string

const (
	// KindImport receives stock at a unit cost.
	KindImport Kind = "IMPORT"
	// KindExport ships stock at a unit price.
	KindExport Kind = "EXPORT"
)

// Valid reports whether k is a known kind.
func (k Kind) Valid() bool {
	return k == KindImport || k == KindExport
}

// Status is the lifecycle position of a transaction.
type Status string

const (
	StatusDraft     Status = "draft"
	StatusPending   Status = "pending"
	StatusCompleted Status = "completed"
	StatusCancelled Status = "cancelled"
)

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusDraft, StatusPending, StatusCompleted, StatusCancelled:
		return true
	}
	return false
}

var transitions = map[Status][]Status{
	StatusDraft:     {StatusPending, StatusCancelled},
	StatusPending:   {StatusCompleted, StatusCancelled},
	StatusCompleted: {StatusCancelled},
}

// CanTransition reports whether a transaction may move from one status to another.
func CanTransition(from, to Status) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Deletable reports whether a transaction in status s may be removed.
func Deletable(s Status) bool {
	return s == StatusDraft || s == StatusPending || s == StatusCancelled
}

// EntryKind classifies stock card rows.
type EntryKind string

const (
	EntryImport        EntryKind = "IMPORT"
	EntryExport        EntryKind = "EXPORT"
	EntryReverseImport EntryKind = "REVERSE_IMPORT"
	EntryReverseExport EntryKind = "REVERSE_EXPORT"
)

// Transaction is an import or export of one product.
type Transaction struct {
	ID          int64           `json:"id"`
	Code        string          `json:"code"`
	AccountID   int64           `json:"account_id"`
	PartnerID   *int64          `json:"partner_id,omitempty"`
	Kind        Kind            `json:"kind"`
	Status      Status          `json:"status"`
	ProductID   string          `json:"product_id"`
	Quantity    decimal.Decimal `json:"quantity"`
	UnitCost    decimal.Decimal `json:"unit_cost"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	Discount    decimal.Decimal `json:"discount"`
	CostBasis   decimal.Decimal `json:"cost_basis"`
	Profit      decimal.Decimal `json:"profit"`
	TotalAmount decimal.Decimal `json:"total_amount"`
	Seq         int64           `json:"seq"`
	Note        string          `json:"note"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
	CompletedAt *time.Time      `json:"completed_at,omitempty"`
}

// Total returns qty*cost for imports and qty*price less discount for exports.
func (t Transaction) Total() decimal.Decimal {
	if t.Kind == KindExport {
		return t.Quantity.Mul(t.UnitPrice).Sub(t.Discount)
	}
	return t.Quantity.Mul(t.UnitCost)
}

// ProductLedger is the locked ledger row of a product.
type ProductLedger struct {
	AccountID int64
	ProductID string
	State     ledger.State
	Version   int64
}

// LedgerEntry is one stock card row, written for every ledger mutation.
type LedgerEntry struct {
	ID          int64           `json:"id"`
	AccountID   int64           `json:"account_id"`
	ProductID   string          `json:"product_id"`
	TxID        *int64          `json:"tx_id,omitempty"`
	TxCode      string          `json:"tx_code"`
	Kind        EntryKind       `json:"kind"`
	QtyIn       decimal.Decimal `json:"qty_in"`
	QtyOut      decimal.Decimal `json:"qty_out"`
	UnitCost    decimal.Decimal `json:"unit_cost"`
	BalanceQty  decimal.Decimal `json:"balance_qty"`
	BalanceCost decimal.Decimal `json:"balance_cost"`
	Seq         int64           `json:"seq"`
	PostedAt    time.Time       `json:"posted_at"`
	Note        string          `json:"note"`
}

// CreateInput describes a draft transaction.
type CreateInput struct {
	Code      string          `json:"code" validate:"max=64"`
	Kind      Kind            `json:"kind" validate:"required,oneof=IMPORT EXPORT"`
	ProductID string          `json:"product_id" validate:"required,max=64"`
	PartnerID *int64          `json:"partner_id,omitempty" validate:"omitempty,gt=0"`
	Quantity  decimal.Decimal `json:"quantity" validate:"gt=0"`
	UnitCost  decimal.Decimal `json:"unit_cost" validate:"gte=0"`
	UnitPrice decimal.Decimal `json:"unit_price" validate:"gte=0"`
	Discount  decimal.Decimal `json:"discount" validate:"gte=0"`
	Note      string          `json:"note" validate:"max=1000"`
}

// ImportInput records a completed import in one call.
type ImportInput struct {
	Code           string          `json:"code" validate:"max=64"`
	ProductID      string          `json:"product_id" validate:"required,max=64"`
	PartnerID      *int64          `json:"partner_id,omitempty" validate:"omitempty,gt=0"`
	Quantity       decimal.Decimal `json:"quantity" validate:"gt=0"`
	UnitCost       decimal.Decimal `json:"unit_cost" validate:"gte=0"`
	Note           string          `json:"note" validate:"max=1000"`
	IdempotencyKey string          `json:"-"`
}

// ExportInput records a completed export in one call.
type ExportInput struct {
	Code           string          `json:"code" validate:"max=64"`
	ProductID      string          `json:"product_id" validate:"required,max=64"`
	PartnerID      *int64          `json:"partner_id,omitempty" validate:"omitempty,gt=0"`
	Quantity       decimal.Decimal `json:"quantity" validate:"gt=0"`
	UnitPrice      decimal.Decimal `json:"unit_price" validate:"gte=0"`
	Discount       decimal.Decimal `json:"discount" validate:"gte=0"`
	Note           string          `json:"note" validate:"max=1000"`
	IdempotencyKey string          `json:"-"`
}

// UpdateInput carries optional changes to a transaction's amounts.
type UpdateInput struct {
	Quantity  *decimal.Decimal `json:"quantity,omitempty"`
	UnitCost  *decimal.Decimal `json:"unit_cost,omitempty"`
	UnitPrice *decimal.Decimal `json:"unit_price,omitempty"`
	Discount  *decimal.Decimal `json:"discount,omitempty"`
	Note      *string          `json:"note,omitempty" validate:"omitempty,max=1000"`
}

// ListFilter narrows transaction listings. Zero values are ignored.
type ListFilter struct {
	ProductID string
	Kind      Kind
	Status    Status
	From      time.Time
	To        time.Time
	Limit     int
	Offset    int
}

// StockCardFilter filters stock card entries.
type StockCardFilter struct {
	AccountID int64
	ProductID string
	From      time.Time
	To        time.Time
	Limit     int
}

var (
	// ErrTransactionNotFound indicates a missing transaction.
	ErrTransactionNotFound = errors.New("inventory: transaction not found")
	// ErrInvalidTransition indicates a status change the lifecycle does not allow.
	ErrInvalidTransition = errors.New("inventory: invalid status transition")
	// ErrInvalidTransaction wraps descriptive validation failures.
	ErrInvalidTransaction = errors.New("inventory: invalid transaction")
	// ErrDuplicateCode indicates the transaction code is taken within the account.
	ErrDuplicateCode = errors.New("inventory: transaction code already exists")
	// ErrVersionConflict indicates the product ledger changed under a compare-and-swap.
	ErrVersionConflict = fmt.Errorf("inventory: ledger version conflict: %w", db.ErrRetryable)
)

func transitionError(from, to Status) error {
	return fmt.Errorf("%w: %s to %s", ErrInvalidTransition, from, to)
}
