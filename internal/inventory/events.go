package inventory

import (
	"time"

	"github.com/shopspring/decimal"
)

// MovementPostedEvent describes a committed ledger mutation.
type MovementPostedEvent struct {
	AccountID   int64           `json:"account_id"`
	ProductID   string          `json:"product_id"`
	TxID        int64           `json:"tx_id"`
	TxCode      string          `json:"tx_code"`
	Kind        EntryKind       `json:"kind"`
	Quantity    decimal.Decimal `json:"quantity"`
	UnitCost    decimal.Decimal `json:"unit_cost"`
	BalanceQty  decimal.Decimal `json:"balance_qty"`
	BalanceCost decimal.Decimal `json:"balance_cost"`
	Seq         int64           `json:"seq"`
	PostedAt    time.Time       `json:"posted_at"`
}

func eventFromEntry(entry LedgerEntry, txID int64) MovementPostedEvent {
	qty := entry.QtyIn
	if qty.IsZero() {
		qty = entry.QtyOut
	}
	return MovementPostedEvent{
		AccountID:   entry.AccountID,
		ProductID:   entry.ProductID,
		TxID:        txID,
		TxCode:      entry.TxCode,
		Kind:        entry.Kind,
		Quantity:    qty,
		UnitCost:    entry.UnitCost,
		BalanceQty:  entry.BalanceQty,
		BalanceCost: entry.BalanceCost,
		Seq:         entry.Seq,
		PostedAt:    entry.PostedAt,
	}
}
