package reports

import (
	"time"

	"github.com/shopspring/decimal"
)

// ValuationRow is the valuation of one product.
type ValuationRow struct {
	ProductID   string          `json:"product_id"`
	Name        string          `json:"name"`
	Unit        string          `json:"unit"`
	OnHandQty   decimal.Decimal `json:"on_hand_qty"`
	AvgUnitCost decimal.Decimal `json:"avg_unit_cost"`
	Value       decimal.Decimal `json:"value"`
}

// Valuation is the stock value of an account.
type Valuation struct {
	AccountID  int64           `json:"account_id"`
	AsOf       time.Time       `json:"as_of"`
	Rows       []ValuationRow  `json:"rows"`
	TotalQty   decimal.Decimal `json:"total_qty"`
	TotalValue decimal.Decimal `json:"total_value"`
}

// ProfitLoss summarises trading results over a date range.
type ProfitLoss struct {
	AccountID   int64           `json:"account_id"`
	From        time.Time       `json:"from"`
	To          time.Time       `json:"to"`
	Revenue     decimal.Decimal `json:"revenue"`
	Purchases   decimal.Decimal `json:"purchases"`
	COGS        decimal.Decimal `json:"cogs"`
	GrossProfit decimal.Decimal `json:"gross_profit"`
	Expenses    decimal.Decimal `json:"expenses"`
	NetProfit   decimal.Decimal `json:"net_profit"`
}

// LowStockRow lists a product at or below its reorder level.
type LowStockRow struct {
	ProductID    string          `json:"product_id"`
	Name         string          `json:"name"`
	OnHandQty    decimal.Decimal `json:"on_hand_qty"`
	ReorderLevel decimal.Decimal `json:"reorder_level"`
	Shortfall    decimal.Decimal `json:"shortfall"`
}

// TxTotals aggregates completed transactions of one kind.
type TxTotals struct {
	Amount decimal.Decimal
	Cost   decimal.Decimal
	Profit decimal.Decimal
}

// Snapshot is a stored point-in-time valuation.
type Snapshot struct {
	ID           int64           `json:"id"`
	AccountID    int64           `json:"account_id"`
	TakenAt      time.Time       `json:"taken_at"`
	ProductCount int             `json:"product_count"`
	TotalQty     decimal.Decimal `json:"total_qty"`
	TotalValue   decimal.Decimal `json:"total_value"`
}
