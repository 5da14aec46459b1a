package expenses

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

// DateLayout is the wire format for expense dates.
const DateLayout = "2006-01-02"

// Expense is an operating cost outside the stock ledger.
type Expense struct {
	ID        int64           `json:"id"`
	AccountID int64           `json:"account_id"`
	Category  string          `json:"category"`
	Amount    decimal.Decimal `json:"amount"`
	SpentOn   time.Time       `json:"spent_on"`
	Note      string          `json:"note"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// CreateInput describes a new expense.
type CreateInput struct {
	Category string          `json:"category" validate:"required,max=100"`
	Amount   decimal.Decimal `json:"amount" validate:"gt=0"`
	SpentOn  string          `json:"spent_on" validate:"required,datetime=2006-01-02"`
	Note     string          `json:"note" validate:"max=1000"`
}

// UpdateInput carries optional changes.
type UpdateInput struct {
	Category *string          `json:"category,omitempty" validate:"omitempty,min=1,max=100"`
	Amount   *decimal.Decimal `json:"amount,omitempty"`
	SpentOn  *string          `json:"spent_on,omitempty" validate:"omitempty,datetime=2006-01-02"`
	Note     *string          `json:"note,omitempty" validate:"omitempty,max=1000"`
}

// ListFilter narrows expense listings. Zero dates are open bounds.
type ListFilter struct {
	From     time.Time
	To       time.Time
	Category string
	Limit    int
	Offset   int
}

var (
	// ErrExpenseNotFound indicates a missing expense.
	ErrExpenseNotFound = errors.New("expenses: expense not found")
	// ErrInvalidExpense wraps validation failures.
	ErrInvalidExpense = errors.New("expenses: invalid expense")
)
