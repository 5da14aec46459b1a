package partners

import (
	"errors"
	"time"
)

// Kind classifies a trading partner.
type Kind string

const (
	// KindCustomer buys exported goods.
	KindCustomer Kind = "CUSTOMER"
	// KindSupplier delivers imported goods.
	KindSupplier Kind = "SUPPLIER"
)

// Valid reports whether k is a known kind.
func (k Kind) Valid() bool {
	return k == KindCustomer || k == KindSupplier
}

// Partner is a customer or supplier of an account.
type Partner struct {
	ID        int64     `json:"id"`
	AccountID int64     `json:"account_id"`
	Kind      Kind      `json:"kind"`
	Name      string    `json:"name"`
	Phone     string    `json:"phone"`
	Email     string    `json:"email"`
	Address   string    `json:"address"`
	Note      string    `json:"note"`
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// CreateInput describes a new partner.
type CreateInput struct {
	Kind    Kind   `json:"kind" validate:"required,oneof=CUSTOMER SUPPLIER"`
	Name    string `json:"name" validate:"required,max=200"`
	Phone   string `json:"phone" validate:"max=40"`
	Email   string `json:"email" validate:"omitempty,email"`
	Address string `json:"address" validate:"max=500"`
	Note    string `json:"note" validate:"max=1000"`
}

// UpdateInput carries optional changes.
type UpdateInput struct {
	Name    *string `json:"name,omitempty" validate:"omitempty,min=1,max=200"`
	Phone   *string `json:"phone,omitempty" validate:"omitempty,max=40"`
	Email   *string `json:"email,omitempty" validate:"omitempty,email"`
	Address *string `json:"address,omitempty" validate:"omitempty,max=500"`
	Note    *string `json:"note,omitempty" validate:"omitempty,max=1000"`
}

// ListFilter narrows partner listings.
type ListFilter struct {
	Kind       Kind
	ActiveOnly bool
	Search     string
	Limit      int
	Offset     int
}

var (
	// ErrPartnerNotFound indicates a missing partner.
	ErrPartnerNotFound = errors.New("partners: partner not found")
	// ErrInvalidPartner wraps validation failures.
	ErrInvalidPartner = errors.New("partners: invalid partner")
	// ErrPartnerInactive indicates a deactivated partner was referenced.
	ErrPartnerInactive = errors.New("partners: partner is inactive")
	// ErrKindMismatch indicates a customer used where a supplier is required or vice versa.
	ErrKindMismatch = errors.New("partners: partner kind mismatch")
)
