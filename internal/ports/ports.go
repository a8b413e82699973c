// Package ports declares the outbound collaborators of the analytics service.
package ports

import (
	"context"

	"finanzas/internal/core"
)

// Ports for outbound adapters.
type (
	// MovementLister returns the full, unparsed movement list of a user.
	// Parsing happens in the caller so malformed records can be reported.
	MovementLister interface {
		ListMovements(ctx context.Context, userID string) ([]core.RawMovement, error)
	}

	MovementWriter interface {
		AppendMovement(ctx context.Context, userID string, m core.Movement) (id string, err error)
	}

	// BudgetReader returns the user's own budgets and the global defaults.
	BudgetReader interface {
		ListBudgets(ctx context.Context, userID string) (user []core.CategoryBudget, global []core.CategoryBudget, err error)
	}

	CategoryReader interface {
		ListCategories(ctx context.Context, userID string) ([]string, error)
	}

	// PriceSource returns a date-ascending daily series for a ticker symbol.
	PriceSource interface {
		FetchDaily(ctx context.Context, symbol string) ([]core.PricePoint, error)
	}

	// LedgerStore is what a complete backend provides.
	LedgerStore interface {
		MovementLister
		MovementWriter
		BudgetReader
		CategoryReader
	}
)
