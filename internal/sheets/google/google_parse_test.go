package google

import (
	"testing"

	"finanzas/internal/core"

	"github.com/shopspring/decimal"
)

func TestParseMovements(t *testing.T) {
	values := [][]interface{}{
		{"Date", "Description", "AMOUNT", "Category", "User"},
		{"2025-01-03", "groceries", 45.5, "Food", "ana"},
		{"2025-01-04", "rent", "900", "Rent", "luis"},
		{"", "", "", "", ""},
		{"03/01/2025", "bad date", "12", "Food", "ANA"},
		{"2025-01-09", "salary", "2000", "Income", "ana"},
	}
	raws, err := parseMovements(values, "Movements", "ana")
	if err != nil {
		t.Fatalf("parse err: %v", err)
	}
	if len(raws) != 3 {
		t.Fatalf("want 3 rows for ana, got %d: %+v", len(raws), raws)
	}
	first := raws[0]
	if first.ID != "Movements!A2" || first.Amount != "45.5" || first.Category != "Food" || first.Description != "groceries" {
		t.Fatalf("unexpected first row %+v", first)
	}
	if raws[1].Date != "03/01/2025" || raws[1].ID != "Movements!A5" {
		t.Fatalf("malformed rows must pass through untouched, got %+v", raws[1])
	}
}

func TestParseMovementsWithoutUserColumn(t *testing.T) {
	values := [][]interface{}{
		{"ID", "Date", "Amount", "Category"},
		{"m-1", "2025-02-01", "10", "Food"},
	}
	raws, err := parseMovements(values, "Movements", "anyone")
	if err != nil || len(raws) != 1 || raws[0].ID != "m-1" {
		t.Fatalf("got %+v, %v", raws, err)
	}
}

func TestParseMovementsMissingHeader(t *testing.T) {
	values := [][]interface{}{{"Date", "Amount"}, {"2025-01-01", "1"}}
	if _, err := parseMovements(values, "Movements", "u"); err == nil {
		t.Fatal("expected header error")
	}
	if raws, err := parseMovements(nil, "Movements", "u"); err != nil || raws != nil {
		t.Fatalf("empty sheet: %v, %v", raws, err)
	}
}

func TestParseBudgets(t *testing.T) {
	values := [][]interface{}{
		{"Category", "Budget", "User"},
		{"Food", "300", ""},
		{"Food", "450,50", "ana"},
		{"Rent", "", ""},
		{"Travel", "lots", ""},
		{"", "10", ""},
		{"Fun", "50", "luis"},
	}
	user, global, skipped, err := parseBudgets(values, "ana")
	if err != nil {
		t.Fatalf("parse err: %v", err)
	}
	if skipped != 2 {
		t.Errorf("skipped = %d, want 2", skipped)
	}
	if len(user) != 1 || user[0].UserID != "ana" || !user[0].Target.Equal(decimal.RequireFromString("450.50")) {
		t.Errorf("unexpected user budgets %+v", user)
	}
	if len(global) != 2 || global[0].Category != "Food" || !global[1].Target.IsZero() {
		t.Errorf("unexpected global budgets %+v", global)
	}
}

func TestMovementRow(t *testing.T) {
	h := parseHeader([]interface{}{"Date", "Amount", "", "Category", "ID"})
	amount := decimal.RequireFromString("12.30")
	row := movementRow(h, "ana", core.Movement{
		ID:       "m-9",
		Date:     core.NewDate(2025, 3, 1),
		Amount:   amount,
		Category: "Food",
	})
	want := []interface{}{"2025-03-01", amount.String(), "", "Food", "m-9"}
	if len(row) != len(want) {
		t.Fatalf("row = %v", row)
	}
	for i := range want {
		if row[i] != want[i] {
			t.Fatalf("row = %v, want %v", row, want)
		}
	}
}
