package http

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"tally/internal/services"
	"tally/internal/storage"
)

// newTestServer wires the real service and a real SQLite store so the
// API tests exercise the full create/list path.
func newTestServer(t *testing.T) *Server {
	t.Helper()
	repo, err := storage.NewSQLiteRepository(filepath.Join(t.TempDir(), "tally.db"))
	if err != nil {
		t.Fatalf("open repository: %v", err)
	}
	t.Cleanup(func() { repo.Close() })
	return NewServer(":0", services.NewExpenseService(repo, nil))
}

func postExpense(t *testing.T, srv *Server, key, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/expenses", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if key != "" {
		req.Header.Set("Idempotency-Key", key)
	}
	rr := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rr, req)
	return rr
}

func listExpenses(t *testing.T, srv *Server, query string) []expenseJSON {
	t.Helper()
	rr := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/expenses"+query, nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("list %q status=%d body=%s", query, rr.Code, rr.Body.String())
	}
	var out []expenseJSON
	if err := json.Unmarshal(rr.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode list: %v", err)
	}
	return out
}

func decodeExpense(t *testing.T, rr *httptest.ResponseRecorder) expenseJSON {
	t.Helper()
	var e expenseJSON
	if err := json.Unmarshal(rr.Body.Bytes(), &e); err != nil {
		t.Fatalf("decode expense: %v (body=%s)", err, rr.Body.String())
	}
	return e
}

func TestCreateExpenseEndToEnd(t *testing.T) {
	srv := newTestServer(t)
	body := `{"amount": 42.50, "category": "Food", "description": "Lunch", "date": "2024-05-01"}`

	rr := postExpense(t, srv, "K1", body)
	if rr.Code != http.StatusCreated {
		t.Fatalf("first create status=%d body=%s", rr.Code, rr.Body.String())
	}
	first := decodeExpense(t, rr)
	if first.AmountCents != 4250 {
		t.Fatalf("amountCents = %d, want 4250", first.AmountCents)
	}
	if first.ID == "" || first.CreatedAt.IsZero() {
		t.Fatalf("expected id and createdAt assigned: %+v", first)
	}
	if first.IdempotencyKey != "K1" {
		t.Fatalf("idempotencyKey = %q", first.IdempotencyKey)
	}

	// Identical replay: 200 with the very same record.
	rr = postExpense(t, srv, "K1", body)
	if rr.Code != http.StatusOK {
		t.Fatalf("replay status=%d body=%s", rr.Code, rr.Body.String())
	}
	second := decodeExpense(t, rr)
	if second.ID != first.ID {
		t.Fatalf("replay id = %q, want %q", second.ID, first.ID)
	}
	if !second.CreatedAt.Equal(first.CreatedAt) {
		t.Fatalf("replay createdAt = %v, want %v", second.CreatedAt, first.CreatedAt)
	}

	// Exactly one record was stored.
	if items := listExpenses(t, srv, ""); len(items) != 1 {
		t.Fatalf("expected 1 stored record, got %d", len(items))
	}
}

func TestCreateExpenseMissingIdempotencyKey(t *testing.T) {
	srv := newTestServer(t)
	rr := postExpense(t, srv, "", `{"amount": 10, "category": "Food", "description": "x", "date": "2024-05-01"}`)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status=%d, want 400", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), "Idempotency-Key") {
		t.Fatalf("body = %s", rr.Body.String())
	}
}

func TestCreateExpenseRejectsNonPositiveAmounts(t *testing.T) {
	srv := newTestServer(t)
	for i, amount := range []string{"0", "-5"} {
		body := `{"amount": ` + amount + `, "category": "Food", "description": "x", "date": "2024-05-01"}`
		rr := postExpense(t, srv, "K"+amount, body)
		if rr.Code != http.StatusBadRequest {
			t.Fatalf("case %d: status=%d, want 400 (body=%s)", i, rr.Code, rr.Body.String())
		}
	}
	// No record may exist after rejected creates.
	if items := listExpenses(t, srv, ""); len(items) != 0 {
		t.Fatalf("expected empty store, got %d records", len(items))
	}
}

func TestCreateExpenseMalformedBody(t *testing.T) {
	srv := newTestServer(t)
	rr := postExpense(t, srv, "K1", `{not json`)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status=%d, want 400", rr.Code)
	}
}

func TestCreateExpenseRounding(t *testing.T) {
	srv := newTestServer(t)

	rr := postExpense(t, srv, "K1", `{"amount": 12.3, "category": "Food", "description": "x", "date": "2024-05-01"}`)
	if e := decodeExpense(t, rr); e.AmountCents != 1230 {
		t.Fatalf("12.3 -> %d cents, want 1230", e.AmountCents)
	}

	// Half-up rounding on the third decimal digit.
	rr = postExpense(t, srv, "K2", `{"amount": 0.005, "category": "Food", "description": "x", "date": "2024-05-01"}`)
	if e := decodeExpense(t, rr); e.AmountCents != 1 {
		t.Fatalf("0.005 -> %d cents, want 1", e.AmountCents)
	}
}

func TestListFilterAndSort(t *testing.T) {
	srv := newTestServer(t)

	seed := []struct {
		key, category, date string
	}{
		{"K1", "Food", "2024-01-01"},
		{"K2", "Transport", "2024-01-03"},
		{"K3", "Food", "2024-01-02"},
	}
	for _, s := range seed {
		body := `{"amount": 5, "category": "` + s.category + `", "description": "x", "date": "` + s.date + `"}`
		if rr := postExpense(t, srv, s.key, body); rr.Code != http.StatusCreated {
			t.Fatalf("seed %s: status=%d", s.key, rr.Code)
		}
	}

	// Category filter returns only matching records.
	food := listExpenses(t, srv, "?category=Food")
	if len(food) != 2 {
		t.Fatalf("expected 2 Food records, got %d", len(food))
	}
	for _, e := range food {
		if e.Category != "Food" {
			t.Fatalf("filter leaked %q", e.Category)
		}
	}

	// Ascending date order.
	asc := listExpenses(t, srv, "?sort_date=asc")
	wantAsc := []string{"K1", "K3", "K2"}
	for i, e := range asc {
		if e.IdempotencyKey != wantAsc[i] {
			t.Fatalf("asc[%d] = %s, want %s", i, e.IdempotencyKey, wantAsc[i])
		}
	}

	// Default and explicit desc are the reverse.
	for _, q := range []string{"", "?sort_date=desc"} {
		desc := listExpenses(t, srv, q)
		for i, e := range desc {
			want := wantAsc[len(wantAsc)-1-i]
			if e.IdempotencyKey != want {
				t.Fatalf("%q[%d] = %s, want %s", q, i, e.IdempotencyKey, want)
			}
		}
	}
}

func TestListSameDateTiebreak(t *testing.T) {
	srv := newTestServer(t)

	for _, key := range []string{"K1", "K2"} {
		body := `{"amount": 5, "category": "Food", "description": "x", "date": "2024-05-01"}`
		if rr := postExpense(t, srv, key, body); rr.Code != http.StatusCreated {
			t.Fatalf("seed %s failed", key)
		}
	}

	// The more recently created record comes first either way.
	for _, q := range []string{"?sort_date=asc", "?sort_date=desc", ""} {
		items := listExpenses(t, srv, q)
		if len(items) != 2 {
			t.Fatalf("%q: expected 2 records, got %d", q, len(items))
		}
		if items[0].IdempotencyKey != "K2" || items[1].IdempotencyKey != "K1" {
			t.Fatalf("%q: order = %s, %s", q, items[0].IdempotencyKey, items[1].IdempotencyKey)
		}
	}
}
