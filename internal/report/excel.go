package report

import (
	"fmt"

	"github.com/xuri/excelize/v2"

	"github.com/quantsentry/sentinel/internal/stats"
	"github.com/quantsentry/sentinel/pkg/types"
)

const tradesSheet = "Trades"

// WriteExcel exports the trade history and summary to an XLSX workbook
func WriteExcel(path string, trades []types.TradeRecord, summary stats.Summary) error {
	fx := excelize.NewFile()
	defer fx.Close()

	index, err := fx.NewSheet(tradesSheet)
	if err != nil {
		return err
	}
	fx.SetActiveSheet(index)

	headerStyle, err := fx.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#DDEBF7"}, Pattern: 1},
	})
	if err != nil {
		return err
	}

	headers := []string{"ID", "Symbol", "Side", "Quantity", "Leverage",
		"Entry", "Exit", "PnL", "PnL %", "Reason", "Opened", "Closed"}
	for col, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(col+1, 1)
		if err := fx.SetCellValue(tradesSheet, cell, h); err != nil {
			return err
		}
	}
	headerEnd, _ := excelize.CoordinatesToCellName(len(headers), 1)
	if err := fx.SetCellStyle(tradesSheet, "A1", headerEnd, headerStyle); err != nil {
		return err
	}

	for i, t := range trades {
		row := i + 2
		values := []interface{}{
			t.ID, t.Symbol, string(t.Side), t.Quantity, t.Leverage,
			t.EntryPrice, t.ExitPrice, t.PnL, t.PnLPercent, t.Reason,
			t.OpenedAt.Format("2006-01-02 15:04:05"),
			t.ClosedAt.Format("2006-01-02 15:04:05"),
		}
		for col, v := range values {
			cell, _ := excelize.CoordinatesToCellName(col+1, row)
			if err := fx.SetCellValue(tradesSheet, cell, v); err != nil {
				return err
			}
		}
	}

	if err := writeSummarySheet(fx, summary); err != nil {
		return err
	}

	fx.DeleteSheet("Sheet1")
	return fx.SaveAs(path)
}

func writeSummarySheet(fx *excelize.File, summary stats.Summary) error {
	const sheet = "Summary"
	if _, err := fx.NewSheet(sheet); err != nil {
		return err
	}

	rows := [][]interface{}{
		{"Total Trades", summary.TotalTrades},
		{"Wins", summary.Wins},
		{"Losses", summary.Losses},
		{"Win Rate", fmt.Sprintf("%.1f%%", summary.WinRate*100)},
		{"Avg Win", summary.AvgWin},
		{"Avg Loss", summary.AvgLoss},
		{"Win/Loss Ratio", summary.WinLossRatio()},
	}
	for i, row := range rows {
		keyCell, _ := excelize.CoordinatesToCellName(1, i+1)
		valCell, _ := excelize.CoordinatesToCellName(2, i+1)
		if err := fx.SetCellValue(sheet, keyCell, row[0]); err != nil {
			return err
		}
		if err := fx.SetCellValue(sheet, valCell, row[1]); err != nil {
			return err
		}
	}
	return nil
}
