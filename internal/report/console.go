package report

import (
	"fmt"
	"io"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/quantsentry/sentinel/internal/monitor"
	"github.com/quantsentry/sentinel/internal/stats"
	"github.com/quantsentry/sentinel/pkg/types"
)

// PrintSummary renders the trade history summary as a console table
func PrintSummary(w io.Writer, summary stats.Summary) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetTitle("TRADING SUMMARY")
	t.SetStyle(table.StyleRounded)

	t.AppendRows([]table.Row{
		{"Total Trades", summary.TotalTrades},
		{"Wins", summary.Wins},
		{"Losses", summary.Losses},
		{"Win Rate", fmt.Sprintf("%.1f%%", summary.WinRate*100)},
		{"Avg Win", fmt.Sprintf("$%.2f", summary.AvgWin)},
		{"Avg Loss", fmt.Sprintf("$%.2f", summary.AvgLoss)},
		{"Win/Loss Ratio", fmt.Sprintf("%.2f", summary.WinLossRatio())},
	})

	t.SetColumnConfigs([]table.ColumnConfig{
		{Number: 1, WidthMin: 16, Align: text.AlignLeft},
		{Number: 2, WidthMin: 12, Align: text.AlignRight},
	})

	t.Render()
}

// PrintOpenPositions renders the supervised positions as a console table
func PrintOpenPositions(w io.Writer, positions []monitor.Position) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetTitle("OPEN POSITIONS")
	t.SetStyle(table.StyleRounded)

	t.AppendHeader(table.Row{"Symbol", "Side", "Qty", "Entry", "Stop", "Target", "Status"})
	for _, p := range positions {
		t.AppendRow(table.Row{
			p.Symbol,
			string(p.Side),
			fmt.Sprintf("%.6f", p.Quantity),
			fmt.Sprintf("%.4f", p.EntryPrice),
			fmt.Sprintf("%.4f", p.StopLoss),
			fmt.Sprintf("%.4f", p.TakeProfit),
			string(p.Status),
		})
	}
	if len(positions) == 0 {
		t.AppendRow(table.Row{"-", "-", "-", "-", "-", "-", "-"})
	}

	t.Render()
}

// PrintTrades renders closed trades as a console table, newest last
func PrintTrades(w io.Writer, trades []types.TradeRecord) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetTitle("CLOSED TRADES")
	t.SetStyle(table.StyleRounded)

	t.AppendHeader(table.Row{"Closed", "Symbol", "Side", "Entry", "Exit", "PnL", "Reason"})
	for _, tr := range trades {
		t.AppendRow(table.Row{
			tr.ClosedAt.Format("01-02 15:04"),
			tr.Symbol,
			string(tr.Side),
			fmt.Sprintf("%.4f", tr.EntryPrice),
			fmt.Sprintf("%.4f", tr.ExitPrice),
			fmt.Sprintf("%+.2f", tr.PnL),
			tr.Reason,
		})
	}

	t.Render()
}
