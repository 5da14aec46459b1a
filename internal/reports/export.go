package reports

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

const (
	valuationSheet  = "Valuation"
	profitLossSheet = "Profit & Loss"
)

var printer = message.NewPrinter(language.English)

// ExportValuationXLSX writes the account's valuation as a workbook.
func (s *Service) ExportValuationXLSX(ctx context.Context, accountID int64, w io.Writer) error {
	v, err := s.InventoryValuation(ctx, accountID)
	if err != nil {
		return err
	}
	return WriteValuationXLSX(w, v)
}

// ExportProfitLossXLSX writes the profit and loss statement as a workbook.
func (s *Service) ExportProfitLossXLSX(ctx context.Context, accountID int64, from, to time.Time, w io.Writer) error {
	pl, err := s.ProfitLoss(ctx, accountID, from, to)
	if err != nil {
		return err
	}
	return WriteProfitLossXLSX(w, pl)
}

// WriteValuationXLSX renders one row per product followed by a totals row.
func WriteValuationXLSX(w io.Writer, v Valuation) error {
	f := excelize.NewFile()
	defer f.Close()
	if err := f.SetSheetName("Sheet1", valuationSheet); err != nil {
		return err
	}

	header := []any{"Product ID", "Name", "Unit", "On Hand", "Avg Unit Cost", "Value"}
	if err := f.SetSheetRow(valuationSheet, "A1", &header); err != nil {
		return err
	}
	for i, row := range v.Rows {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		values := []any{row.ProductID, row.Name, row.Unit, number(row.OnHandQty), number(row.AvgUnitCost), number(row.Value)}
		if err := f.SetSheetRow(valuationSheet, cell, &values); err != nil {
			return err
		}
	}
	totalRow := len(v.Rows) + 2
	cell, err := excelize.CoordinatesToCellName(1, totalRow)
	if err != nil {
		return err
	}
	totals := []any{"Total", printer.Sprintf("%d products", len(v.Rows)), "", number(v.TotalQty), "", number(v.TotalValue)}
	if err := f.SetSheetRow(valuationSheet, cell, &totals); err != nil {
		return err
	}
	if err := boldRow(f, valuationSheet, 1, len(header)); err != nil {
		return err
	}
	if err := boldRow(f, valuationSheet, totalRow, len(header)); err != nil {
		return err
	}
	if err := f.SetColWidth(valuationSheet, "A", "B", 24); err != nil {
		return err
	}
	if err := f.SetColWidth(valuationSheet, "D", "F", 16); err != nil {
		return err
	}
	_, err = f.WriteTo(w)
	return err
}

// WriteProfitLossXLSX renders the statement as label/amount pairs.
func WriteProfitLossXLSX(w io.Writer, pl ProfitLoss) error {
	f := excelize.NewFile()
	defer f.Close()
	if err := f.SetSheetName("Sheet1", profitLossSheet); err != nil {
		return err
	}

	title := []any{fmt.Sprintf("Profit & Loss %s to %s", pl.From.Format(DateLayout), pl.To.Format(DateLayout))}
	if err := f.SetSheetRow(profitLossSheet, "A1", &title); err != nil {
		return err
	}
	lines := []struct {
		label  string
		amount decimal.Decimal
	}{
		{"Revenue", pl.Revenue},
		{"Cost of Goods Sold", pl.COGS},
		{"Gross Profit", pl.GrossProfit},
		{"Expenses", pl.Expenses},
		{"Net Profit", pl.NetProfit},
		{"Purchases", pl.Purchases},
	}
	for i, line := range lines {
		cell, err := excelize.CoordinatesToCellName(1, i+3)
		if err != nil {
			return err
		}
		values := []any{line.label, number(line.amount), printer.Sprintf("%.2f", number(line.amount))}
		if err := f.SetSheetRow(profitLossSheet, cell, &values); err != nil {
			return err
		}
	}
	if err := boldRow(f, profitLossSheet, 1, 1); err != nil {
		return err
	}
	if err := boldRow(f, profitLossSheet, 7, 3); err != nil {
		return err
	}
	if err := f.SetColWidth(profitLossSheet, "A", "C", 22); err != nil {
		return err
	}
	_, err := f.WriteTo(w)
	return err
}

func boldRow(f *excelize.File, sheet string, row, cols int) error {
	style, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return err
	}
	start, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return err
	}
	end, err := excelize.CoordinatesToCellName(cols, row)
	if err != nil {
		return err
	}
	return f.SetCellStyle(sheet, start, end, style)
}

// number converts for spreadsheet cells, which only hold float64 values.
func number(d decimal.Decimal) float64 {
	return d.InexactFloat64()
}
