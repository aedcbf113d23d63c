package cli

import (
	"fmt"
	"strings"
	"time"

	"github.com/MrAsimZahid/zakat-calculator/internal/domain"
	"github.com/MrAsimZahid/zakat-calculator/internal/modules/calculations"
	"github.com/MrAsimZahid/zakat-calculator/internal/modules/snapshots"
	"github.com/MrAsimZahid/zakat-calculator/internal/modules/zakat"
)

var breakdownOrder = []string{
	zakat.CategoryActiveTrading,
	zakat.CategoryPassiveInvestments,
	zakat.CategoryDividends,
	zakat.CategoryStocks,
}

// SummaryMarkdown renders holdings, the breakdown and the zakat due for st.
func SummaryMarkdown(st domain.State) string {
	agg := zakat.NewAggregator(st)
	cur := st.EffectiveCurrency()
	money := func(v float64) string { return calculations.Format(v, cur) }

	var b strings.Builder
	fmt.Fprintf(&b, "# Zakat summary (%s)\n\n", cur)

	b.WriteString("## Active holdings\n\n")
	if len(st.StockValues.ActiveStocks) == 0 {
		b.WriteString("_No active holdings._\n\n")
	} else {
		b.WriteString("| Symbol | Shares | Price | Market value | Zakat due |\n")
		b.WriteString("|:---|---:|---:|---:|---:|\n")
		for _, h := range st.StockValues.ActiveStocks {
			fmt.Fprintf(&b, "| %s | %s | %s | %s | %s |\n",
				h.Symbol,
				formatShares(h.Shares),
				money(h.CurrentPrice),
				money(h.MarketValue),
				money(h.ZakatDue),
			)
		}
		b.WriteString("\n")
	}

	b.WriteString("## Breakdown\n\n")
	b.WriteString("| Category | Value | Zakatable | Zakat due | Share |\n")
	b.WriteString("|:---|---:|---:|---:|---:|\n")
	breakdown := agg.Breakdown()
	for _, key := range breakdownOrder {
		item, ok := breakdown[key]
		if !ok {
			continue
		}
		fmt.Fprintf(&b, "| %s | %s | %s | %s | %.2f%% |\n",
			item.Label, money(item.Value), money(item.Zakatable), money(item.ZakatDue), item.Percentage)
	}
	b.WriteString("\n")

	b.WriteString("## Totals\n\n")
	fmt.Fprintf(&b, "- **Total stocks:** %s\n", money(agg.TotalStocks()))
	fmt.Fprintf(&b, "- **Zakatable:** %s\n", money(agg.TotalZakatableStocks()))
	if nisab := agg.NisabThreshold(); nisab > 0 {
		status := "below"
		if agg.MeetsNisabThreshold() {
			status = "meets"
		}
		fmt.Fprintf(&b, "- **Nisab:** %s (%s)\n", money(nisab), status)
	} else {
		b.WriteString("- **Nisab:** unknown, no metal prices\n")
	}
	hawl := "not met"
	if st.HawlMet {
		hawl = "met"
	}
	fmt.Fprintf(&b, "- **Hawl:** %s\n", hawl)
	fmt.Fprintf(&b, "- **Zakat due:** %s\n", money(agg.ZakatDue()))

	return b.String()
}

// HistoryMarkdown renders snapshot history rows, newest first.
func HistoryMarkdown(entries []snapshots.HistoryEntry, currency string) string {
	var b strings.Builder
	b.WriteString("# Snapshot history\n\n")
	if len(entries) == 0 {
		b.WriteString("_No snapshots saved._\n")
		return b.String()
	}

	b.WriteString("| Saved at | Holdings | Market value | Zakatable |\n")
	b.WriteString("|:---|---:|---:|---:|\n")
	for _, e := range entries {
		fmt.Fprintf(&b, "| %s | %d | %s | %s |\n",
			e.CreatedAt.Local().Format(time.DateTime),
			e.Holdings,
			calculations.Format(e.MarketValue, currency),
			calculations.Format(e.ZakatableValue, currency),
		)
	}
	return b.String()
}

func formatShares(v float64) string {
	s := fmt.Sprintf("%.4f", v)
	s = strings.TrimRight(s, "0")
	return strings.TrimSuffix(s, ".")
}
