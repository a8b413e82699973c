package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"finanzas/internal/core"
	"finanzas/internal/ports"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	_ "modernc.org/sqlite"
)

// ErrNotFound is returned when a movement does not exist for the user.
var ErrNotFound = errors.New("not found")

var _ ports.LedgerStore = (*SQLiteRepository)(nil)

type SQLiteRepository struct {
	db   *sql.DB
	path string
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	// Run migrations
	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{db: db, path: dbPath}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// Ping checks the connection and that the schema is not left dirty.
func (r *SQLiteRepository) Ping(ctx context.Context) error {
	if err := r.db.PingContext(ctx); err != nil {
		return fmt.Errorf("ping database: %w", err)
	}
	_, dirty, err := SchemaVersion(r.path)
	if err != nil {
		return fmt.Errorf("schema version: %w", err)
	}
	if dirty {
		return errors.New("database schema is dirty")
	}
	return nil
}

// AppendMovement implements ports.MovementWriter
func (r *SQLiteRepository) AppendMovement(ctx context.Context, userID string, m core.Movement) (string, error) {
	if err := m.Validate(); err != nil {
		return "", err
	}
	if m.ID == "" {
		m.ID = uuid.NewString()
	}

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO movements (id, user_id, date, amount, category, description) VALUES (?, ?, ?, ?, ?, ?)`,
		m.ID, userID, m.Date.String(), m.Amount.String(), string(m.Category), m.Description)
	if err != nil {
		return "", fmt.Errorf("insert movement: %w", err)
	}

	slog.InfoContext(ctx, "Movement saved to SQLite",
		"id", m.ID,
		"user_id", userID,
		"date", m.Date.String(),
		"amount", m.Amount.String(),
		"category", m.Category)

	return m.ID, nil
}

// ListMovements implements ports.MovementLister. Values are returned as
// stored; the caller parses them.
func (r *SQLiteRepository) ListMovements(ctx context.Context, userID string) ([]core.RawMovement, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, date, amount, category, description FROM movements WHERE user_id = ? ORDER BY date, created_at`,
		userID)
	if err != nil {
		return nil, fmt.Errorf("query movements: %w", err)
	}
	defer rows.Close()

	var out []core.RawMovement
	for rows.Next() {
		var m core.RawMovement
		if err := rows.Scan(&m.ID, &m.Date, &m.Amount, &m.Category, &m.Description); err != nil {
			return nil, fmt.Errorf("scan movement: %w", err)
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate movements: %w", err)
	}
	return out, nil
}

// DeleteMovement removes one of the user's movements.
func (r *SQLiteRepository) DeleteMovement(ctx context.Context, userID, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM movements WHERE user_id = ? AND id = ?`, userID, id)
	if err != nil {
		return fmt.Errorf("delete movement: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete movement: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("movement %s: %w", id, ErrNotFound)
	}
	slog.InfoContext(ctx, "Movement deleted from SQLite", "id", id, "user_id", userID)
	return nil
}

// ListBudgets implements ports.BudgetReader. Rows with an unparseable
// budget are skipped with a warning.
func (r *SQLiteRepository) ListBudgets(ctx context.Context, userID string) ([]core.CategoryBudget, []core.CategoryBudget, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT user_id, name, budget FROM categories WHERE user_id = ? OR user_id = '' ORDER BY id`,
		userID)
	if err != nil {
		return nil, nil, fmt.Errorf("query budgets: %w", err)
	}
	defer rows.Close()

	var user, global []core.CategoryBudget
	for rows.Next() {
		var owner, name, budget string
		if err := rows.Scan(&owner, &name, &budget); err != nil {
			return nil, nil, fmt.Errorf("scan budget: %w", err)
		}
		target, err := decimal.NewFromString(budget)
		if err != nil {
			slog.WarnContext(ctx, "Skipping category with malformed budget",
				"user_id", owner, "category", name, "budget", budget)
			continue
		}
		b := core.CategoryBudget{UserID: owner, Category: core.Category(name), Target: target}
		if owner == "" {
			global = append(global, b)
		} else if owner == userID {
			user = append(user, b)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, nil, fmt.Errorf("iterate budgets: %w", err)
	}
	return user, global, nil
}

// ListCategories implements ports.CategoryReader
func (r *SQLiteRepository) ListCategories(ctx context.Context, userID string) ([]string, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT name FROM categories WHERE user_id = ? OR user_id = '' GROUP BY name ORDER BY MIN(id)`,
		userID)
	if err != nil {
		return nil, fmt.Errorf("query categories: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scan category: %w", err)
		}
		out = append(out, name)
	}
	return out, rows.Err()
}

// UpsertCategory creates or updates a category and its budget. An empty
// userID writes a global default.
func (r *SQLiteRepository) UpsertCategory(ctx context.Context, userID string, b core.CategoryBudget) error {
	if _, err := core.NewCategory(string(b.Category)); err != nil {
		return err
	}
	if b.Target.IsNegative() {
		return core.ErrNegativeAmount
	}
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO categories (user_id, name, budget) VALUES (?, ?, ?)
		 ON CONFLICT (user_id, name) DO UPDATE SET budget = excluded.budget`,
		userID, string(b.Category), b.Target.String())
	if err != nil {
		return fmt.Errorf("upsert category: %w", err)
	}
	return nil
}
