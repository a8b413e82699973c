package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"finanzas/internal/core"

	"github.com/shopspring/decimal"
)

func newTestRepo(t *testing.T) *SQLiteRepository {
	t.Helper()
	repo, err := NewSQLiteRepository(filepath.Join(t.TempDir(), "data", "finanzas.db"))
	if err != nil {
		t.Fatalf("NewSQLiteRepository: %v", err)
	}
	t.Cleanup(func() { repo.Close() })
	return repo
}

func TestMovementsRoundTrip(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)

	first := core.Movement{Date: core.NewDate(2025, 2, 1), Amount: decimal.RequireFromString("12.345"), Category: "Food", Description: "market"}
	second := core.Movement{Date: core.NewDate(2025, 1, 10), Amount: decimal.NewFromInt(100), Category: core.Income}

	id1, err := repo.AppendMovement(ctx, "u1", first)
	if err != nil {
		t.Fatalf("append: %v", err)
	}
	if _, err := repo.AppendMovement(ctx, "u1", second); err != nil {
		t.Fatalf("append: %v", err)
	}
	if _, err := repo.AppendMovement(ctx, "u2", second); err != nil {
		t.Fatalf("append: %v", err)
	}

	raws, err := repo.ListMovements(ctx, "u1")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(raws) != 2 {
		t.Fatalf("expected 2 movements, got %+v", raws)
	}
	if raws[0].Date != "2025-01-10" || raws[1].ID != id1 {
		t.Fatalf("movements should be ordered by date: %+v", raws)
	}
	if raws[1].Amount != "12.345" || raws[1].Description != "market" {
		t.Fatalf("amount must round-trip exactly: %+v", raws[1])
	}

	if err := repo.DeleteMovement(ctx, "u1", id1); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := repo.DeleteMovement(ctx, "u1", id1); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestAppendRejectsInvalidMovement(t *testing.T) {
	repo := newTestRepo(t)
	_, err := repo.AppendMovement(context.Background(), "u1", core.Movement{Amount: decimal.NewFromInt(1), Category: "Food"})
	if !errors.Is(err, core.ErrInvalidDate) {
		t.Fatalf("expected ErrInvalidDate, got %v", err)
	}
}

func TestBudgetsAndCategories(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)

	if err := repo.UpsertCategory(ctx, "", core.CategoryBudget{Category: "Food", Target: decimal.NewFromInt(200)}); err != nil {
		t.Fatalf("upsert global: %v", err)
	}
	if err := repo.UpsertCategory(ctx, "u1", core.CategoryBudget{Category: "Food", Target: decimal.NewFromInt(300)}); err != nil {
		t.Fatalf("upsert user: %v", err)
	}
	if err := repo.UpsertCategory(ctx, "u1", core.CategoryBudget{Category: "Pets", Target: decimal.NewFromInt(20)}); err != nil {
		t.Fatalf("upsert user: %v", err)
	}
	if err := repo.UpsertCategory(ctx, "u2", core.CategoryBudget{Category: "Boats", Target: decimal.NewFromInt(1)}); err != nil {
		t.Fatalf("upsert other user: %v", err)
	}
	if err := repo.UpsertCategory(ctx, "u1", core.CategoryBudget{Category: "Food", Target: decimal.NewFromInt(-1)}); !errors.Is(err, core.ErrNegativeAmount) {
		t.Fatalf("expected ErrNegativeAmount, got %v", err)
	}

	user, global, err := repo.ListBudgets(ctx, "u1")
	if err != nil {
		t.Fatalf("list budgets: %v", err)
	}
	if len(user) != 2 || user[0].Category != "Food" || !user[0].Target.Equal(decimal.NewFromInt(300)) {
		t.Fatalf("unexpected user budgets: %+v", user)
	}
	var food decimal.Decimal
	for _, b := range global {
		if b.Category == "Food" {
			food = b.Target
		}
	}
	if !food.Equal(decimal.NewFromInt(200)) {
		t.Fatalf("global Food budget = %s", food)
	}

	cats, err := repo.ListCategories(ctx, "u1")
	if err != nil {
		t.Fatalf("list categories: %v", err)
	}
	seen := map[string]int{}
	for _, c := range cats {
		seen[c]++
	}
	if seen["Food"] != 1 || seen["Pets"] != 1 || seen["Income"] != 1 || seen["Boats"] != 0 {
		t.Fatalf("unexpected categories: %v", cats)
	}
}

func TestSchemaVersionAndPing(t *testing.T) {
	repo := newTestRepo(t)
	v, dirty, err := SchemaVersion(repo.path)
	if err != nil || dirty || v != 1 {
		t.Fatalf("schema version=%d dirty=%v err=%v", v, dirty, err)
	}
	if err := repo.Ping(context.Background()); err != nil {
		t.Fatalf("ping: %v", err)
	}
}
