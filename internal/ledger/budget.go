package ledger

import (
	"finanzas/internal/core"

	"github.com/shopspring/decimal"
)

// Budgets maps a category to its effective monthly target.
type Budgets map[core.Category]decimal.Decimal

// ResolveBudgets picks one target per category. User entries are visited
// before global defaults and the first positive target seen wins; a zero
// target means "no budget" and does not shadow a later entry.
func ResolveBudgets(user, global []core.CategoryBudget) Budgets {
	out := Budgets{}
	for _, list := range [][]core.CategoryBudget{user, global} {
		for _, b := range list {
			if !b.Target.IsPositive() {
				continue
			}
			if _, seen := out[b.Category]; seen {
				continue
			}
			out[b.Category] = b.Target
		}
	}
	return out
}

// Target returns the budget for c, or zero when none is set.
func (b Budgets) Target(c core.Category) decimal.Decimal {
	if t, ok := b[c]; ok {
		return t
	}
	return decimal.Zero
}
