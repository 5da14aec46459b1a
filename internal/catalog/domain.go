package catalog

import (
	"errors"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Product is a stock-keeping item owned by an account. OnHandQty, AvgUnitCost and
// Version belong to the inventory ledger and are never written by this package.
type Product struct {
	AccountID    int64           `json:"account_id"`
	ProductID    string          `json:"product_id"`
	Name         string          `json:"name"`
	Unit         string          `json:"unit"`
	ReorderLevel decimal.Decimal `json:"reorder_level"`
	SellPrice    decimal.Decimal `json:"sell_price"`
	OnHandQty    decimal.Decimal `json:"on_hand_qty"`
	AvgUnitCost  decimal.Decimal `json:"avg_unit_cost"`
	Version      int64           `json:"version"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

// Valuation returns on hand quantity times average cost.
func (p Product) Valuation() decimal.Decimal {
	return p.OnHandQty.Mul(p.AvgUnitCost)
}

// LowStock reports whether on hand quantity fell to the reorder level.
func (p Product) LowStock() bool {
	return p.OnHandQty.LessThanOrEqual(p.ReorderLevel)
}

// CreateInput describes a new product.
type CreateInput struct {
	ProductID    string          `json:"product_id" validate:"required,max=64"`
	Name         string          `json:"name" validate:"required,max=200"`
	Unit         string          `json:"unit" validate:"max=32"`
	ReorderLevel decimal.Decimal `json:"reorder_level" validate:"gte=0"`
	SellPrice    decimal.Decimal `json:"sell_price" validate:"gte=0"`
}

// UpdateInput carries optional descriptive changes.
type UpdateInput struct {
	Name         *string          `json:"name,omitempty" validate:"omitempty,min=1,max=200"`
	Unit         *string          `json:"unit,omitempty" validate:"omitempty,max=32"`
	ReorderLevel *decimal.Decimal `json:"reorder_level,omitempty"`
	SellPrice    *decimal.Decimal `json:"sell_price,omitempty"`
}

// ListFilter narrows product listings.
type ListFilter struct {
	Search   string
	LowStock bool
	Limit    int
	Offset   int
}

// DefaultUnit applies when a product is created without a unit.
const DefaultUnit = "pcs"

var (
	// ErrProductNotFound indicates a missing product.
	ErrProductNotFound = errors.New("catalog: product not found")
	// ErrDuplicateProduct indicates the product id is taken within the account.
	ErrDuplicateProduct = errors.New("catalog: product already exists")
	// ErrProductHasStock blocks deleting a product that still holds stock.
	ErrProductHasStock = errors.New("catalog: product still has stock on hand")
	// ErrProductInUse blocks deleting a product referenced by transactions.
	ErrProductInUse = errors.New("catalog: product is referenced by transactions")
	// ErrInvalidProduct wraps descriptive validation failures.
	ErrInvalidProduct = errors.New("catalog: invalid product")
)

// NormalizeID trims and upper-cases a product id.
func NormalizeID(id string) string {
	return strings.ToUpper(strings.TrimSpace(id))
}
