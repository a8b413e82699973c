package ledger

import (
	"testing"
	"time"

	"finanzas/internal/core"
)

func TestResolveBudgets(t *testing.T) {
	user := []core.CategoryBudget{
		{UserID: "u1", Category: "Food", Target: dec("300")},
		{UserID: "u1", Category: "Food", Target: dec("999")},
		{UserID: "u1", Category: "Rent", Target: dec("0")},
	}
	global := []core.CategoryBudget{
		{Category: "Food", Target: dec("200")},
		{Category: "Rent", Target: dec("800")},
		{Category: "Fun", Target: dec("50")},
	}
	b := ResolveBudgets(user, global)

	assertDec(t, "food", b.Target("Food"), "300")
	assertDec(t, "rent", b.Target("Rent"), "800")
	assertDec(t, "fun", b.Target("Fun"), "50")
	assertDec(t, "missing", b.Target("Travel"), "0")
	if len(b) != 3 {
		t.Fatalf("expected 3 budgets, got %v", b)
	}
}

func TestParseFilter(t *testing.T) {
	now := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	tests := []struct {
		name                  string
		year, month, category string
		want                  Filter
		wantErr               bool
	}{
		{name: "defaults", want: Filter{Year: 2025}},
		{name: "all selectors", year: "2024", month: "all", category: "ALL", want: Filter{Year: 2024}},
		{name: "month and category", year: "2024", month: "3", category: " Food ", want: Filter{Year: 2024, Month: 3, Category: "Food"}},
		{name: "bad year", year: "20x4", wantErr: true},
		{name: "bad month", month: "13", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseFilter(tt.year, tt.month, tt.category, now)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseFilter error = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && got != tt.want {
				t.Errorf("ParseFilter = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestFilterKey(t *testing.T) {
	if k := (Filter{Year: 2025}).Key(); k != "2025|all|all" {
		t.Fatalf("key = %s", k)
	}
	if k := (Filter{Year: 2025, Month: 4, Category: "Food"}).Key(); k != "2025|4|Food" {
		t.Fatalf("key = %s", k)
	}
}
