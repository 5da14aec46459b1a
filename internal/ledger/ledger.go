// Package ledger implements weighted-average stock costing.
//
// A product's ledger is the pair of on-hand quantity and average unit cost. Every
// import blends its unit cost into the average; exports consume quantity at the
// current average, which becomes the cost basis of the sale. No lot information is
// kept: the method is weighted average, not FIFO or LIFO.
//
// All functions are pure. They return a new State and leave the input untouched,
// including when they fail.
package ledger

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// CostScale is the number of decimal places kept on average unit costs.
const CostScale int32 = 8

// State is the ledger of a single product.
type State struct {
	OnHand  decimal.Decimal
	AvgCost decimal.Decimal
}

// Value returns the inventory valuation of the state.
func (s State) Value() decimal.Decimal {
	return s.OnHand.Mul(s.AvgCost)
}

// Valuation returns on hand quantity times average cost.
func Valuation(s State) decimal.Decimal {
	return s.Value()
}

// Sale is the outcome of an export.
type Sale struct {
	Quantity  decimal.Decimal
	UnitPrice decimal.Decimal
	// CostBasis is the average unit cost captured when the export was applied.
	CostBasis decimal.Decimal
	Revenue   decimal.Decimal
	Cost      decimal.Decimal
	Profit    decimal.Decimal
}

// ApplyImport receives qty units at unitCost and re-derives the weighted average.
func ApplyImport(s State, qty, unitCost decimal.Decimal) (State, error) {
	if err := validate(qty, unitCost); err != nil {
		return s, err
	}
	newQty := s.OnHand.Add(qty)
	value := s.Value().Add(qty.Mul(unitCost))
	return State{OnHand: newQty, AvgCost: average(value, newQty)}, nil
}

// ApplyExport ships qty units at unitPrice. The average cost is not changed by an
// export, except that it returns to zero together with the quantity.
func ApplyExport(s State, qty, unitPrice decimal.Decimal) (State, Sale, error) {
	if err := validate(qty, unitPrice); err != nil {
		return s, Sale{}, err
	}
	if qty.GreaterThan(s.OnHand) {
		return s, Sale{}, &InsufficientStockError{Requested: qty, Available: s.OnHand}
	}
	sale := Sale{
		Quantity:  qty,
		UnitPrice: unitPrice,
		CostBasis: s.AvgCost,
		Revenue:   qty.Mul(unitPrice),
		Cost:      qty.Mul(s.AvgCost),
	}
	sale.Profit = sale.Revenue.Sub(sale.Cost)

	next := State{OnHand: s.OnHand.Sub(qty), AvgCost: s.AvgCost}
	if next.OnHand.IsZero() {
		next.AvgCost = decimal.Zero
	}
	return next, sale, nil
}

// ReverseImport undoes an import of qty units at unitCost.
func ReverseImport(s State, qty, unitCost decimal.Decimal) (State, error) {
	if err := validate(qty, unitCost); err != nil {
		return s, err
	}
	newQty := s.OnHand.Sub(qty)
	if newQty.IsNegative() {
		return s, &InconsistencyError{
			Reason: fmt.Sprintf("reversing import of %s would leave %s on hand", qty.String(), newQty.String()),
			State:  s,
		}
	}
	if newQty.IsZero() {
		return State{OnHand: decimal.Zero, AvgCost: decimal.Zero}, nil
	}
	value := s.Value().Sub(qty.Mul(unitCost))
	if value.IsNegative() && value.Abs().LessThanOrEqual(roundingBound(s.OnHand)) {
		value = decimal.Zero
	}
	if value.IsNegative() {
		return s, &InconsistencyError{
			Reason: fmt.Sprintf("reversing import of %s at %s would leave negative value %s", qty.String(), unitCost.String(), value.String()),
			State:  s,
		}
	}
	return State{OnHand: newQty, AvgCost: average(value, newQty)}, nil
}

// ReverseExport puts qty units back at the export's captured cost basis. The result
// matches the pre-export state only when nothing else moved in between.
func ReverseExport(s State, qty, costBasis decimal.Decimal) (State, error) {
	return ApplyImport(s, qty, costBasis)
}

// Check reports an *InconsistencyError when s breaks a ledger invariant.
func Check(s State) error {
	switch {
	case s.OnHand.IsNegative():
		return &InconsistencyError{Reason: "negative quantity on hand", State: s}
	case s.AvgCost.IsNegative():
		return &InconsistencyError{Reason: "negative average cost", State: s}
	case s.OnHand.IsZero() && !s.AvgCost.IsZero():
		return &InconsistencyError{Reason: "average cost set without stock", State: s}
	}
	return nil
}

func validate(qty, price decimal.Decimal) error {
	if !qty.IsPositive() {
		return ErrInvalidQuantity
	}
	if price.IsNegative() {
		return ErrInvalidPrice
	}
	return nil
}

func average(value, qty decimal.Decimal) decimal.Decimal {
	if !qty.IsPositive() {
		return decimal.Zero
	}
	return value.DivRound(qty, CostScale)
}

// roundingBound is the largest valuation error a rounded average cost can carry
// for qty units.
func roundingBound(qty decimal.Decimal) decimal.Decimal {
	return qty.Abs().Mul(decimal.New(1, -CostScale))
}
