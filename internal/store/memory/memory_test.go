package memory

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"finanzas/internal/core"

	"github.com/shopspring/decimal"
)

func TestMemoryStoreAppendAndList(t *testing.T) {
	ctx := context.Background()
	s := New([]string{"Food=300", "Rent", "Food=300"})
	cats, err := s.ListCategories(ctx, "u1")
	if err != nil || len(cats) != 2 {
		t.Fatalf("unexpected categories: %v err=%v", cats, err)
	}

	id, err := s.AppendMovement(ctx, "u1", core.Movement{
		Date:     core.NewDate(2025, 1, 15),
		Amount:   decimal.RequireFromString("40.5"),
		Category: "Food",
	})
	if err != nil || id == "" {
		t.Fatalf("unexpected append: id=%q err=%v", id, err)
	}

	raws, _ := s.ListMovements(ctx, "u1")
	if len(raws) != 1 || raws[0].Date != "2025-01-15" || raws[0].Amount != "40.5" || raws[0].ID != id {
		t.Fatalf("unexpected movements: %+v", raws)
	}
	if other, _ := s.ListMovements(ctx, "u2"); len(other) != 0 {
		t.Fatalf("users must not share movements: %+v", other)
	}

	if _, err := s.AppendMovement(ctx, "u1", core.Movement{Category: "Food"}); err == nil {
		t.Fatalf("expected validation error for a dateless movement")
	}
}

func TestMemoryStoreBudgets(t *testing.T) {
	ctx := context.Background()
	s := New([]string{"Food=300", "Rent=800"})
	s.SetBudget("u1", core.CategoryBudget{Category: "Food", Target: decimal.NewFromInt(250)})
	s.SetBudget("u1", core.CategoryBudget{Category: "Pets", Target: decimal.NewFromInt(20)})

	user, global, err := s.ListBudgets(ctx, "u1")
	if err != nil || len(user) != 2 || len(global) != 2 {
		t.Fatalf("unexpected budgets user=%v global=%v err=%v", user, global, err)
	}
	if user[0].UserID != "u1" || global[0].UserID != "" {
		t.Fatalf("budget ownership not recorded: %+v %+v", user[0], global[0])
	}
	cats, _ := s.ListCategories(ctx, "u1")
	if len(cats) != 3 || cats[2] != "Pets" {
		t.Fatalf("user categories should extend the global set: %v", cats)
	}
}

func TestSeedKeepsMalformedRecords(t *testing.T) {
	s := New(nil)
	s.Seed("u1", core.RawMovement{Date: "garbage", Amount: "1", Category: "Food"})
	raws, _ := s.ListMovements(context.Background(), "u1")
	if len(raws) != 1 || raws[0].ID == "" {
		t.Fatalf("seeded record should be stored with an ID: %+v", raws)
	}
}

func TestNewFromFilesSeedsAndDedupe(t *testing.T) {
	dir := t.TempDir()
	// No files -> defaults
	s := NewFromFiles(dir)
	cats, _ := s.ListCategories(context.Background(), "")
	if len(cats) == 0 {
		t.Fatalf("expected defaults when files missing")
	}

	// Create files with duplicates, blanks and comments
	content := "# header\nFood=300\nRent\nFood=300\n\n"
	if err := os.WriteFile(filepath.Join(dir, "seed_categories.txt"), []byte(content), 0o644); err != nil {
		t.Fatalf("write seed: %v", err)
	}

	s = NewFromFiles(dir)
	cats, _ = s.ListCategories(context.Background(), "")
	if len(cats) != 2 || cats[0] != "Food" || cats[1] != "Rent" {
		t.Fatalf("unexpected cats: %v", cats)
	}
	_, global, _ := s.ListBudgets(context.Background(), "")
	if len(global) != 2 || !global[0].Target.Equal(decimal.NewFromInt(300)) {
		t.Fatalf("unexpected global budgets: %+v", global)
	}
	if global[1].Category != "Rent" || !global[1].Target.IsZero() {
		t.Fatalf("a plain label should be a zero budget row, got %+v", global[1])
	}
}
