package ledger

import (
	"sort"
	"time"

	"finanzas/internal/core"

	"github.com/shopspring/decimal"
)

// trendMonths is the size of the trailing window, in calendar months,
// including the current one.
const trendMonths = 3

// CategoryStats summarizes the movements of a single selected category.
type CategoryStats struct {
	Category core.Category   `json:"category"`
	Count    int             `json:"count"`
	Total    decimal.Decimal `json:"total"`
	Mean     decimal.Decimal `json:"mean"`
	Max      decimal.Decimal `json:"max"`
	Min      decimal.Decimal `json:"min"`
	Trend    decimal.Decimal `json:"trend"` // percent, 0 without enough data
}

// categoryStats computes total, mean, max and min over the filtered
// movements, and the trend over the trailing months of the whole snapshot.
// The mean divides by max(count, 1) so an empty selection yields zero.
func categoryStats(selected, all []core.Movement, c core.Category, now time.Time) CategoryStats {
	st := CategoryStats{
		Category: c,
		Count:    len(selected),
		Total:    decimal.Zero,
		Max:      decimal.Zero,
		Min:      decimal.Zero,
	}
	for i, m := range selected {
		st.Total = st.Total.Add(m.Amount)
		if i == 0 || m.Amount.GreaterThan(st.Max) {
			st.Max = m.Amount
		}
		if i == 0 || m.Amount.LessThan(st.Min) {
			st.Min = m.Amount
		}
	}
	st.Mean = st.Total.Div(decimal.NewFromInt(int64(max(st.Count, 1))))
	st.Trend = trailingTrend(all, c, now)
	return st
}

// trailingTrend is the percent change between the earliest and the latest
// monthly sums of c observed in the trailing window ending at now. It needs
// at least two distinct months, and a non-zero earliest sum; otherwise 0.
func trailingTrend(all []core.Movement, c core.Category, now time.Time) decimal.Decimal {
	today := core.DayOf(now)
	from := core.MonthOf(today).AddMonths(-(trendMonths - 1)).Start()

	sums := map[core.MonthKey]decimal.Decimal{}
	for _, m := range all {
		if m.Category != c || m.Date.Before(from) || m.Date.After(today.Time) {
			continue
		}
		k := core.MonthOf(m.Date)
		sums[k] = sums[k].Add(m.Amount)
	}
	if len(sums) < 2 {
		return decimal.Zero
	}

	keys := make([]core.MonthKey, 0, len(sums))
	for k := range sums {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].Before(keys[j]) })

	change := percentChange(sums[keys[0]], sums[keys[len(keys)-1]])
	if !change.Valid {
		return decimal.Zero
	}
	return change.Decimal
}
