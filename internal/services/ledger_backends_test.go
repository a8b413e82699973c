package services

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"finanzas/internal/core"
	"finanzas/internal/ledger"
	"finanzas/internal/ports"
	gsheets "finanzas/internal/sheets/google"
	"finanzas/internal/storage"
	"finanzas/internal/store/memory"

	"github.com/shopspring/decimal"
	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"
)

// sheetsServer answers value reads for a Movements and a Budgets tab and
// counts them.
type sheetsServer struct {
	movements [][]interface{}
	budgets   [][]interface{}
	reads     atomic.Int32
}

func (f *sheetsServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	switch {
	case strings.Contains(r.URL.Path, "/values/Budgets"):
		f.reads.Add(1)
		_ = json.NewEncoder(w).Encode(map[string]any{"values": f.budgets})
	case strings.Contains(r.URL.Path, "/values/Movements"):
		f.reads.Add(1)
		_ = json.NewEncoder(w).Encode(map[string]any{"values": f.movements})
	default:
		http.NotFound(w, r)
	}
}

func newSheetsStore(t *testing.T, f *sheetsServer) *gsheets.Client {
	t.Helper()
	srv := httptest.NewServer(f)
	t.Cleanup(srv.Close)
	svc, err := gsheet.NewService(context.Background(),
		goption.WithEndpoint(srv.URL+"/"),
		goption.WithHTTPClient(srv.Client()))
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	return gsheets.NewWithService(svc, gsheets.Config{SpreadsheetID: "ledger"}, nil)
}

// A movement in a category without any budget row counts in every total and
// is reported as unknown, whichever backend stored it.
func TestLedgerSummaryUnbudgetedCategory(t *testing.T) {
	ctx := context.Background()
	stored := []core.Movement{
		{Date: core.NewDate(2025, 1, 10), Amount: decimal.NewFromInt(100), Category: core.Income},
		{Date: core.NewDate(2025, 1, 15), Amount: decimal.NewFromInt(40), Category: "Travel"},
	}

	tests := []struct {
		name  string
		store func(t *testing.T) ports.LedgerStore
	}{
		{"memory", func(t *testing.T) ports.LedgerStore {
			s := memory.New([]string{"Income", "Food=300"})
			for _, m := range stored {
				if _, err := s.AppendMovement(ctx, "ana", m); err != nil {
					t.Fatalf("AppendMovement: %v", err)
				}
			}
			return s
		}},
		{"sqlite", func(t *testing.T) ports.LedgerStore {
			repo, err := storage.NewSQLiteRepository(filepath.Join(t.TempDir(), "ledger.db"))
			if err != nil {
				t.Fatalf("NewSQLiteRepository: %v", err)
			}
			t.Cleanup(func() { repo.Close() })
			for _, m := range stored {
				if _, err := repo.AppendMovement(ctx, "ana", m); err != nil {
					t.Fatalf("AppendMovement: %v", err)
				}
			}
			return repo
		}},
		{"sheets", func(t *testing.T) ports.LedgerStore {
			return newSheetsStore(t, &sheetsServer{
				movements: [][]interface{}{
					{"Date", "Amount", "Category"},
					{"2025-01-10", "100", "Income"},
					{"2025-01-15", "40", "Travel"},
				},
				budgets: [][]interface{}{
					{"Category", "Budget"},
					{"Food", "300"},
				},
			})
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := NewAnalyticsService(tt.store(t), nil,
				WithClock(func() time.Time { return fixedNow }),
				WithLogger(quietLogger()))

			res, err := svc.LedgerSummary(ctx, "ana", ledger.Filter{Year: 2025})
			if err != nil {
				t.Fatalf("LedgerSummary: %v", err)
			}
			if !res.TotalOutflow.Equal(decimal.NewFromInt(40)) || !res.Balance.Equal(decimal.NewFromInt(60)) {
				t.Fatalf("outflow=%s balance=%s, want 40 and 60", res.TotalOutflow, res.Balance)
			}
			if len(res.Rejected) != 0 {
				t.Fatalf("rejected = %+v", res.Rejected)
			}
			if len(res.Categories) != 1 || res.Categories[0].Category != "Travel" || res.Categories[0].PercentUsed.Valid {
				t.Fatalf("breakdown = %+v", res.Categories)
			}
			if len(res.Unknown) != 1 || res.Unknown[0] != "Travel" {
				t.Fatalf("unknown = %v", res.Unknown)
			}
		})
	}
}

// RecordMovement and the import worker both store any valid category.
func TestRecordMovementNewCategory(t *testing.T) {
	ctx := context.Background()
	repo, err := storage.NewSQLiteRepository(filepath.Join(t.TempDir(), "ledger.db"))
	if err != nil {
		t.Fatalf("NewSQLiteRepository: %v", err)
	}
	defer repo.Close()
	svc := NewAnalyticsService(repo, nil, WithClock(func() time.Time { return fixedNow }), WithLogger(quietLogger()))

	if _, err := svc.RecordMovement(ctx, "ana", core.RawMovement{Date: "2025-03-02", Amount: "12", Category: "Pets"}); err != nil {
		t.Fatalf("RecordMovement: %v", err)
	}
	res, err := svc.LedgerSummary(ctx, "ana", ledger.Filter{Year: 2025, Month: 3})
	if err != nil {
		t.Fatalf("LedgerSummary: %v", err)
	}
	if !res.TotalOutflow.Equal(decimal.NewFromInt(12)) || len(res.Unknown) != 1 || res.Unknown[0] != "Pets" {
		t.Fatalf("outflow=%s unknown=%v", res.TotalOutflow, res.Unknown)
	}
}

func TestLedgerSummarySheetsReads(t *testing.T) {
	f := &sheetsServer{
		movements: [][]interface{}{{"Date", "Amount", "Category"}, {"2025-01-15", "40", "Food"}},
		budgets:   [][]interface{}{{"Category", "Budget"}, {"Food", "300"}},
	}
	svc := NewAnalyticsService(newSheetsStore(t, f), nil, WithLogger(quietLogger()))
	if _, err := svc.LedgerSummary(context.Background(), "ana", ledger.Filter{Year: 2025}); err != nil {
		t.Fatalf("LedgerSummary: %v", err)
	}
	if n := f.reads.Load(); n != 2 {
		t.Fatalf("sheets reads = %d, want one per tab", n)
	}
}

func TestLedgerSummaryCacheFollowsMonth(t *testing.T) {
	now := fixedNow
	svc, store := newTestService(t, WithClock(func() time.Time { return now }))
	ctx := context.Background()
	f := ledger.Filter{Year: 2025}

	march, err := svc.LedgerSummary(ctx, "ana", f)
	if err != nil {
		t.Fatalf("LedgerSummary: %v", err)
	}
	store.Seed("ana", core.RawMovement{Date: "2025-03-31", Amount: "5", Category: "Food"})

	now = time.Date(2025, 4, 1, 8, 0, 0, 0, time.UTC)
	april, err := svc.LedgerSummary(ctx, "ana", f)
	if err != nil {
		t.Fatalf("LedgerSummary: %v", err)
	}
	if want := march.TotalOutflow.Add(decimal.NewFromInt(5)); !april.TotalOutflow.Equal(want) {
		t.Fatalf("a new evaluation month must not reuse the cached summary: outflow %s, want %s", april.TotalOutflow, want)
	}
}
