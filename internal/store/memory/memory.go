package memory

import (
	"bufio"
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"finanzas/internal/core"
	"finanzas/internal/ports"

	"github.com/google/uuid"
)

var _ ports.LedgerStore = (*Store)(nil)

// Store keeps every user's ledger in process memory.
type Store struct {
	mu        sync.Mutex
	cats      []string
	global    []core.CategoryBudget
	budgets   map[string][]core.CategoryBudget
	movements map[string][]core.RawMovement
}

// New creates a store with the given global categories. Each entry is either
// a plain label, stored with a zero budget, or "label=target" to attach a
// global default budget.
func New(cats []string) *Store {
	s := &Store{
		budgets:   map[string][]core.CategoryBudget{},
		movements: map[string][]core.RawMovement{},
	}
	for _, line := range dedupe(cats) {
		name, target, hasTarget := strings.Cut(line, "=")
		cat, err := core.NewCategory(name)
		if err != nil {
			continue
		}
		s.cats = append(s.cats, string(cat))
		b := core.CategoryBudget{Category: cat}
		if hasTarget {
			t, err := core.ParseAmount(target)
			if err != nil {
				continue
			}
			b.Target = t
		}
		s.global = append(s.global, b)
	}
	return s
}

// NewFromFiles seeds categories from base/seed_categories.txt, falling back
// to a small default set.
func NewFromFiles(base string) *Store {
	cats := readLines(filepath.Join(base, "seed_categories.txt"))
	if len(cats) == 0 {
		cats = []string{"Income", "Food", "Rent", "Transport", "Savings"}
	}
	return New(cats)
}

// Seed adds raw records for a user as-is, without validation.
func (s *Store) Seed(userID string, raws ...core.RawMovement) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range raws {
		if r.ID == "" {
			r.ID = uuid.NewString()
		}
		s.movements[userID] = append(s.movements[userID], r)
	}
}

// SetBudget records a user-specific budget.
func (s *Store) SetBudget(userID string, b core.CategoryBudget) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b.UserID = userID
	s.budgets[userID] = append(s.budgets[userID], b)
}

// AppendMovement stores the movement and returns its generated ID.
func (s *Store) AppendMovement(_ context.Context, userID string, m core.Movement) (string, error) {
	if err := m.Validate(); err != nil {
		return "", err
	}
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.movements[userID] = append(s.movements[userID], core.RawMovement{
		ID:          m.ID,
		Date:        m.Date.String(),
		Amount:      m.Amount.String(),
		Category:    string(m.Category),
		Description: m.Description,
	})
	return m.ID, nil
}

// ListMovements returns a copy of the user's records.
func (s *Store) ListMovements(_ context.Context, userID string) ([]core.RawMovement, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]core.RawMovement(nil), s.movements[userID]...), nil
}

// ListBudgets returns the user's budgets and the global defaults.
func (s *Store) ListBudgets(_ context.Context, userID string) ([]core.CategoryBudget, []core.CategoryBudget, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	user := append([]core.CategoryBudget(nil), s.budgets[userID]...)
	global := append([]core.CategoryBudget(nil), s.global...)
	return user, global, nil
}

// ListCategories returns the global categories plus any category the user
// has a budget for.
func (s *Store) ListCategories(_ context.Context, userID string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := append([]string(nil), s.cats...)
	for _, b := range s.budgets[userID] {
		out = append(out, string(b.Category))
	}
	return dedupe(out), nil
}

func readLines(path string) []string {
	f, err := os.Open(path)
	if err != nil {
		return nil
	}
	defer f.Close()
	var out []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		out = append(out, line)
	}
	return dedupe(out)
}

func dedupe(in []string) []string {
	seen := map[string]struct{}{}
	out := make([]string, 0, len(in))
	for _, v := range in {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}
