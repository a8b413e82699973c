package ledger

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"finanzas/internal/core"
)

// All is the selector value meaning "no restriction" for month and category.
const All = "all"

// Filter selects the movements an aggregation looks at.
type Filter struct {
	Year     int           `json:"year"`
	Month    int           `json:"month"`    // 1-12, 0 means all months
	Category core.Category `json:"category"` // empty means all categories
}

// AllMonths reports whether the month selector is "all".
func (f Filter) AllMonths() bool { return f.Month == 0 }

// AllCategories reports whether the category selector is "all".
func (f Filter) AllCategories() bool { return f.Category == "" }

// Matches applies the year, month and category selectors.
func (f Filter) Matches(m core.Movement) bool {
	return f.matchesPeriod(m) && (f.AllCategories() || m.Category == f.Category)
}

func (f Filter) matchesPeriod(m core.Movement) bool {
	k := core.MonthOf(m.Date)
	return k.Year == f.Year && (f.AllMonths() || k.Month == f.Month)
}

// Key is a stable cache key for the filter.
func (f Filter) Key() string {
	month := All
	if !f.AllMonths() {
		month = strconv.Itoa(f.Month)
	}
	cat := All
	if !f.AllCategories() {
		cat = string(f.Category)
	}
	return fmt.Sprintf("%d|%s|%s", f.Year, month, cat)
}

// ParseFilter builds a filter from textual selectors. Empty year defaults to
// the year of now; empty or "all" month and category select everything.
func ParseFilter(year, month, category string, now time.Time) (Filter, error) {
	f := Filter{Year: core.DayOf(now).Year()}

	if v := strings.TrimSpace(year); v != "" {
		y, err := strconv.Atoi(v)
		if err != nil || y < 1 || y > 9999 {
			return Filter{}, fmt.Errorf("invalid year %q", year)
		}
		f.Year = y
	}

	if v := strings.TrimSpace(month); v != "" && !strings.EqualFold(v, All) {
		m, err := strconv.Atoi(v)
		if err != nil || m < 1 || m > 12 {
			return Filter{}, fmt.Errorf("invalid month %q: must be 1-12 or %q", month, All)
		}
		f.Month = m
	}

	if v := strings.TrimSpace(category); v != "" && !strings.EqualFold(v, All) {
		c, err := core.NewCategory(v)
		if err != nil {
			return Filter{}, fmt.Errorf("invalid category %q: %w", category, err)
		}
		f.Category = c
	}

	return f, nil
}
