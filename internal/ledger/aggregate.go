// Package ledger turns a snapshot of dated, categorized movements into period
// totals, a budget-reconciled category breakdown, a monthly series and trend
// figures.
//
// Aggregation is a pure function of its input and of the injected clock.
// Invalid records never abort it: they are reported in Result.Rejected and
// the remaining records are aggregated.
package ledger

import (
	"sort"
	"time"

	"finanzas/internal/core"

	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// Series keys of the monthly series when no category is selected.
const (
	SeriesIncome  = "income"
	SeriesOutflow = "outflow"
)

// CategoryTotal is one row of the category breakdown.
type CategoryTotal struct {
	Category    core.Category       `json:"category"`
	Value       decimal.Decimal     `json:"value"`
	Budget      decimal.Decimal     `json:"budget"`
	Overage     decimal.Decimal     `json:"overage"`
	Remaining   decimal.Decimal     `json:"remaining"`
	OverBudget  bool                `json:"over_budget"`
	PercentUsed decimal.NullDecimal `json:"percent_used"`
}

// MonthPoint is one bucket of the monthly series. Income and Outflow are
// filled when no category is selected, Value otherwise.
type MonthPoint struct {
	Month   core.MonthKey   `json:"-"`
	Label   string          `json:"month"`
	Income  decimal.Decimal `json:"income"`
	Outflow decimal.Decimal `json:"outflow"`
	Value   decimal.Decimal `json:"value"`
}

// Result is the derived view of a ledger snapshot.
type Result struct {
	Filter         Filter              `json:"filter"`
	Count          int                 `json:"count"`
	TotalIncome    decimal.Decimal     `json:"total_income"`
	TotalOutflow   decimal.Decimal     `json:"total_outflow"`
	Balance        decimal.Decimal     `json:"balance"`
	Categories     []CategoryTotal     `json:"categories"`
	SeriesKeys     []string            `json:"series_keys"`
	Monthly        []MonthPoint        `json:"monthly"`
	MonthOverMonth decimal.NullDecimal `json:"month_over_month"`
	Stats          *CategoryStats      `json:"stats,omitempty"`
	Rejected       []core.Rejected     `json:"rejected,omitempty"`
	// Unknown lists categories of aggregated movements that the registry
	// does not know yet, sorted by name.
	Unknown []core.Category `json:"unknown_categories,omitempty"`
}

// Aggregator computes Results. The zero value is not usable; use NewAggregator.
type Aggregator struct {
	now      func() time.Time
	registry core.Registry
}

// Option configures an Aggregator.
type Option func(*Aggregator)

// WithClock sets the evaluation time source used by the "now"-anchored
// figures (month-over-month delta and category trend).
func WithClock(now func() time.Time) Option {
	return func(a *Aggregator) { a.now = now }
}

// WithRegistry sets the known categories. Movements in other categories are
// still aggregated and their categories are listed in Result.Unknown.
func WithRegistry(r core.Registry) Option {
	return func(a *Aggregator) { a.registry = r }
}

func NewAggregator(opts ...Option) *Aggregator {
	a := &Aggregator{now: time.Now}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Aggregate runs a default Aggregator evaluated at the current time.
func Aggregate(movements []core.Movement, budgets Budgets, f Filter) Result {
	return NewAggregator().Aggregate(movements, budgets, f)
}

// Aggregate computes totals, the budget breakdown, the monthly series, the
// month-over-month delta and, when a category is selected, its statistics.
func (a *Aggregator) Aggregate(movements []core.Movement, budgets Budgets, f Filter) Result {
	now := a.now()
	valid, rejected := a.screen(movements)

	res := Result{
		Filter:       f,
		TotalIncome:  decimal.Zero,
		TotalOutflow: decimal.Zero,
		Rejected:     rejected,
		Unknown:      a.unknown(valid),
	}

	var period, selected []core.Movement
	for _, m := range valid {
		if !f.matchesPeriod(m) {
			continue
		}
		period = append(period, m)
		if f.AllCategories() || m.Category == f.Category {
			selected = append(selected, m)
		}
	}

	res.Count = len(selected)
	for _, m := range selected {
		if m.Category.IsIncome() {
			res.TotalIncome = res.TotalIncome.Add(m.Amount)
		} else {
			res.TotalOutflow = res.TotalOutflow.Add(m.Amount)
		}
	}
	res.Balance = res.TotalIncome.Sub(res.TotalOutflow)

	res.Categories = breakdown(period, budgets)
	res.SeriesKeys, res.Monthly = monthly(selected, f)
	res.MonthOverMonth = monthOverMonth(valid, now)
	if !f.AllCategories() {
		stats := categoryStats(selected, valid, f.Category, now)
		res.Stats = &stats
	}
	return res
}

// screen drops invalid movements.
func (a *Aggregator) screen(movements []core.Movement) ([]core.Movement, []core.Rejected) {
	valid := make([]core.Movement, 0, len(movements))
	var rejected []core.Rejected
	for i, m := range movements {
		if err := m.Validate(); err != nil {
			rejected = append(rejected, core.Rejected{Index: i, Raw: rawOf(m), Err: err})
			continue
		}
		valid = append(valid, m)
	}
	return valid, rejected
}

func (a *Aggregator) unknown(valid []core.Movement) []core.Category {
	seen := map[core.Category]bool{}
	var out []core.Category
	for _, m := range valid {
		if m.Category.IsIncome() || seen[m.Category] || a.registry.Contains(m.Category) {
			continue
		}
		seen[m.Category] = true
		out = append(out, m.Category)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func rawOf(m core.Movement) core.RawMovement {
	raw := core.RawMovement{
		ID:          m.ID,
		Amount:      m.Amount.String(),
		Category:    string(m.Category),
		Description: m.Description,
	}
	if !m.Date.IsZero() {
		raw.Date = m.Date.String()
	}
	return raw
}

// breakdown sums every non-income category of the period, ignoring the
// category selector, and reconciles each sum with its budget.
func breakdown(period []core.Movement, budgets Budgets) []CategoryTotal {
	sums := map[core.Category]decimal.Decimal{}
	for _, m := range period {
		if m.Category.IsIncome() {
			continue
		}
		sums[m.Category] = sums[m.Category].Add(m.Amount)
	}

	out := make([]CategoryTotal, 0, len(sums))
	for c, v := range sums {
		out = append(out, reconcile(c, v, budgets.Target(c)))
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Value.Equal(out[j].Value) {
			return out[i].Value.GreaterThan(out[j].Value)
		}
		return out[i].Category < out[j].Category
	})
	return out
}

func reconcile(c core.Category, value, budget decimal.Decimal) CategoryTotal {
	ct := CategoryTotal{
		Category:  c,
		Value:     value,
		Budget:    budget,
		Overage:   decimal.Zero,
		Remaining: decimal.Zero,
	}
	if !budget.IsPositive() {
		return ct
	}
	ct.PercentUsed = decimal.NewNullDecimal(value.Div(budget).Mul(hundred))
	if value.GreaterThan(budget) {
		ct.Overage = value.Sub(budget)
		ct.OverBudget = true
	} else {
		ct.Remaining = budget.Sub(value)
	}
	return ct
}

// monthly groups the selected movements by month bucket, in chronological
// order of the buckets' first day.
func monthly(selected []core.Movement, f Filter) ([]string, []MonthPoint) {
	keys := []string{SeriesIncome, SeriesOutflow}
	if !f.AllCategories() {
		keys = []string{string(f.Category)}
	}

	buckets := map[core.MonthKey]*MonthPoint{}
	for _, m := range selected {
		k := core.MonthOf(m.Date)
		p, ok := buckets[k]
		if !ok {
			p = &MonthPoint{Month: k, Label: k.String(), Income: decimal.Zero, Outflow: decimal.Zero, Value: decimal.Zero}
			buckets[k] = p
		}
		switch {
		case !f.AllCategories():
			p.Value = p.Value.Add(m.Amount)
		case m.Category.IsIncome():
			p.Income = p.Income.Add(m.Amount)
		default:
			p.Outflow = p.Outflow.Add(m.Amount)
		}
	}

	out := make([]MonthPoint, 0, len(buckets))
	for _, p := range buckets {
		out = append(out, *p)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Month.Start().Before(out[j].Month.Start())
	})
	return keys, out
}

// monthOverMonth compares the outflow of now's calendar month with the
// previous month over the whole snapshot. It is undefined when the previous
// month has no outflow.
func monthOverMonth(valid []core.Movement, now time.Time) decimal.NullDecimal {
	current := core.MonthOfTime(now)
	previous := current.Prev()
	cur, prev := decimal.Zero, decimal.Zero
	for _, m := range valid {
		if m.Category.IsIncome() {
			continue
		}
		switch core.MonthOf(m.Date) {
		case current:
			cur = cur.Add(m.Amount)
		case previous:
			prev = prev.Add(m.Amount)
		}
	}
	return percentChange(prev, cur)
}

// percentChange returns (to-from)/from·100, undefined when from is zero.
func percentChange(from, to decimal.Decimal) decimal.NullDecimal {
	if from.IsZero() {
		return decimal.NullDecimal{}
	}
	return decimal.NewNullDecimal(to.Sub(from).Div(from).Mul(hundred))
}
