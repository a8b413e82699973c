package google

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"finanzas/internal/core"

	"github.com/shopspring/decimal"
	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"
)

type fakeSheets struct {
	movements [][]interface{}
	budgets   [][]interface{}
	appended  [][]interface{}
}

func (f *fakeSheets) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	path := r.URL.Path
	switch {
	case r.Method == http.MethodPost && strings.HasSuffix(path, ":append"):
		var vr gsheet.ValueRange
		body, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(body, &vr)
		f.appended = append(f.appended, vr.Values...)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"updates": map[string]any{"updatedRange": "Movements!A9:E9"},
		})
	case strings.Contains(path, "/values/Budgets"):
		if f.budgets == nil {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"error":{"code":400,"message":"Unable to parse range: Budgets!A:Z"}}`))
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"values": f.budgets})
	case strings.Contains(path, "/values/Movements"):
		_ = json.NewEncoder(w).Encode(map[string]any{"values": f.movements})
	default:
		http.NotFound(w, r)
	}
}

func newTestClient(t *testing.T, f *fakeSheets) *Client {
	t.Helper()
	srv := httptest.NewServer(f)
	t.Cleanup(srv.Close)
	svc, err := gsheet.NewService(context.Background(),
		goption.WithEndpoint(srv.URL+"/"),
		goption.WithHTTPClient(srv.Client()))
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	return NewWithService(svc, Config{SpreadsheetID: "sheet-1"}, nil)
}

func TestClientListMovementsAndBudgets(t *testing.T) {
	f := &fakeSheets{
		movements: [][]interface{}{
			{"ID", "Date", "Amount", "Category"},
			{"a", "2025-01-02", "10", "Food"},
		},
		budgets: [][]interface{}{
			{"Category", "Budget"},
			{"Food", "100"},
		},
	}
	c := newTestClient(t, f)

	raws, err := c.ListMovements(context.Background(), "u")
	if err != nil || len(raws) != 1 || raws[0].ID != "a" {
		t.Fatalf("ListMovements = %+v, %v", raws, err)
	}
	_, global, err := c.ListBudgets(context.Background(), "u")
	if err != nil || len(global) != 1 || !global[0].Target.Equal(decimal.NewFromInt(100)) {
		t.Fatalf("ListBudgets = %+v, %v", global, err)
	}
	cats, err := c.ListCategories(context.Background(), "u")
	if err != nil || len(cats) != 1 || cats[0] != "Food" {
		t.Fatalf("ListCategories = %v, %v", cats, err)
	}
}

func TestClientMissingBudgetsSheet(t *testing.T) {
	f := &fakeSheets{movements: [][]interface{}{
		{"Date", "Amount", "Category"},
		{"2025-01-02", "10", "Food"},
		{"2025-01-03", "10", "Rent"},
		{"2025-01-04", "10", "Food"},
	}}
	c := newTestClient(t, f)

	user, global, err := c.ListBudgets(context.Background(), "u")
	if err != nil || user != nil || global != nil {
		t.Fatalf("missing budgets tab should be empty, got %v %v %v", user, global, err)
	}
	cats, err := c.ListCategories(context.Background(), "u")
	if err != nil || strings.Join(cats, ",") != "Food,Rent" {
		t.Fatalf("categories should come from movements, got %v %v", cats, err)
	}
}

func TestClientAppendMovement(t *testing.T) {
	f := &fakeSheets{movements: [][]interface{}{{"ID", "Date", "Amount", "Category", "Description"}}}
	c := newTestClient(t, f)

	m := core.Movement{Date: core.NewDate(2025, 4, 1), Amount: decimal.NewFromInt(7), Category: "Food", Description: "lunch"}
	id, err := c.AppendMovement(context.Background(), "u", m)
	if err != nil {
		t.Fatalf("AppendMovement: %v", err)
	}
	if id == "" || len(f.appended) != 1 {
		t.Fatalf("id=%q appended=%v", id, f.appended)
	}
	row := f.appended[0]
	if row[0] != id || row[1] != "2025-04-01" || row[3] != "Food" || row[4] != "lunch" {
		t.Fatalf("unexpected row %v", row)
	}

	bad := m
	bad.Category = ""
	if _, err := c.AppendMovement(context.Background(), "u", bad); err == nil {
		t.Fatal("expected validation error")
	}
}

func TestNewRequiresCredentials(t *testing.T) {
	if _, err := New(context.Background(), Config{}, nil); err == nil {
		t.Fatal("expected error for missing spreadsheet ID")
	}
	if _, err := New(context.Background(), Config{SpreadsheetID: "x", ServiceAccountFile: t.TempDir() + "/none.json"}, nil); err == nil {
		t.Fatal("expected error for missing key file")
	}
}
