package server

import (
	"net/http"
	"testing"

	"budgetledger/internal/ledger"
)

func TestLedgerFlow_SummariesFollowMutations(t *testing.T) {
	app := setupApp(t)
	token, _, _ := app.registerUser(t, "ledger@test.com", "password123")

	app.createTransaction(t, token, ledger.KindIncome, "3000.00", "2024-01-05")
	rentID := app.createTransaction(t, token, ledger.KindNeeds, "1200.00", "2024-01-10")
	app.createTransaction(t, token, ledger.KindWants, "150.25", "2024-02-14")

	jan := app.summary(t, token, "2024-01")
	assertAmount(t, "3000.00", jan["income_total"])
	assertAmount(t, "1200.00", jan["needs_total"])
	assertAmount(t, "1800.00", jan["closing_balance"])

	feb := app.summary(t, token, "2024-02")
	assertAmount(t, "150.25", feb["wants_total"])
	assertAmount(t, "1649.75", feb["closing_balance"])

	// Editing January carries forward into February.
	rec := app.request("PUT", "/api/v1/transactions/"+rentID, `{"amount":"1000.00"}`, token)
	if rec.Code != http.StatusOK {
		t.Fatalf("update failed: %d %s", rec.Code, rec.Body.String())
	}
	assertAmount(t, "2000.00", app.summary(t, token, "2024-01")["closing_balance"])
	assertAmount(t, "1849.75", app.summary(t, token, "2024-02")["closing_balance"])

	// Moving the transaction to February empties January's needs bucket.
	rec = app.request("PUT", "/api/v1/transactions/"+rentID, `{"date":"2024-02-01"}`, token)
	if rec.Code != http.StatusOK {
		t.Fatalf("move failed: %d %s", rec.Code, rec.Body.String())
	}
	jan = app.summary(t, token, "2024-01")
	assertAmount(t, "0", jan["needs_total"])
	assertAmount(t, "3000.00", jan["closing_balance"])
	feb = app.summary(t, token, "2024-02")
	assertAmount(t, "1000.00", feb["needs_total"])
	assertAmount(t, "1849.75", feb["closing_balance"])

	rec = app.request("DELETE", "/api/v1/transactions/"+rentID, "", token)
	if rec.Code != http.StatusOK {
		t.Fatalf("delete failed: %d %s", rec.Code, rec.Body.String())
	}
	feb = app.summary(t, token, "2024-02")
	assertAmount(t, "0", feb["needs_total"])
	assertAmount(t, "2849.75", feb["closing_balance"])

	rec = app.request("GET", "/api/v1/summaries?year=2024", "", token)
	if rec.Code != http.StatusOK {
		t.Fatalf("list summaries failed: %d %s", rec.Code, rec.Body.String())
	}
	if n := len(parseJSON(t, rec)["summaries"].([]interface{})); n != 2 {
		t.Errorf("expected 2 summaries, got %d", n)
	}
}

func TestLedgerFlow_RecomputeMatchesStoredSummary(t *testing.T) {
	app := setupApp(t)
	token, _, _ := app.registerUser(t, "recompute@test.com", "password123")

	app.createTransaction(t, token, ledger.KindIncome, "500.00", "2024-03-02")
	app.createTransaction(t, token, ledger.KindReserves, "100.00", "2024-03-03")

	rec := app.request("POST", "/api/v1/summaries/2024-03/recompute", "", token)
	if rec.Code != http.StatusOK {
		t.Fatalf("recompute failed: %d %s", rec.Code, rec.Body.String())
	}
	summary := parseJSON(t, rec)["summary"].(map[string]interface{})
	assertAmount(t, "100.00", summary["reserves_total"])
	assertAmount(t, "400.00", summary["closing_balance"])
}

func TestLedgerFlow_CategoryKindMustMatch(t *testing.T) {
	app := setupApp(t)
	token, _, _ := app.registerUser(t, "category@test.com", "password123")

	groceries := app.createCategory(t, token, "Groceries", ledger.KindNeeds)

	rec := app.request("POST", "/api/v1/transactions",
		`{"kind":"income","amount":"10.00","description":"refund","date":"2024-01-01","category_id":"`+groceries+`"}`, token)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d: %s", rec.Code, rec.Body.String())
	}
	if code := errorCode(t, rec); code != "CATEGORY_KIND_MISMATCH" {
		t.Errorf("expected CATEGORY_KIND_MISMATCH, got %s", code)
	}

	rec = app.request("POST", "/api/v1/transactions",
		`{"kind":"needs","amount":"42.10","description":"market","date":"2024-01-01","category_id":"`+groceries+`"}`, token)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}

	rec = app.request("GET", "/api/v1/transactions?category_id="+groceries, "", token)
	if rec.Code != http.StatusOK {
		t.Fatalf("list failed: %d %s", rec.Code, rec.Body.String())
	}
	if n := len(parseJSON(t, rec)["data"].([]interface{})); n != 1 {
		t.Errorf("expected 1 transaction in category, got %d", n)
	}
}

func TestLedgerFlow_UsersAreIsolated(t *testing.T) {
	app := setupApp(t)
	alice, _, _ := app.registerUser(t, "alice@test.com", "password123")
	bob, _, _ := app.registerUser(t, "bob@test.com", "password123")

	txID := app.createTransaction(t, alice, ledger.KindIncome, "100.00", "2024-01-01")

	rec := app.request("GET", "/api/v1/transactions/"+txID, "", bob)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d: %s", rec.Code, rec.Body.String())
	}
	rec = app.request("DELETE", "/api/v1/transactions/"+txID, "", bob)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
	rec = app.request("GET", "/api/v1/summaries/2024-01", "", bob)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for another user's month, got %d", rec.Code)
	}
}

func TestLedgerFlow_AuditTrail(t *testing.T) {
	app := setupApp(t)
	token, _, _ := app.registerUser(t, "audit@test.com", "password123")
	otherToken, _, _ := app.registerUser(t, "audit-other@test.com", "password123")

	txnID := app.createTransaction(t, token, ledger.KindNeeds, "80.00", "2024-05-02")
	if rec := app.request("DELETE", "/api/v1/transactions/"+txnID, "", token); rec.Code != http.StatusOK {
		t.Fatalf("delete failed: %d %s", rec.Code, rec.Body.String())
	}

	rec := app.request("GET", "/api/v1/audit?resource_type=transaction", "", token)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	entries := parseJSON(t, rec)["data"].([]interface{})
	if len(entries) != 2 {
		t.Fatalf("expected 2 transaction entries, got %d", len(entries))
	}
	actions := map[string]bool{}
	for _, e := range entries {
		entry := e.(map[string]interface{})
		if entry["resource_id"] != txnID {
			t.Errorf("unexpected resource %v", entry["resource_id"])
		}
		actions[entry["action"].(string)] = true
	}
	if !actions["CREATE"] || !actions["DELETE"] {
		t.Errorf("expected CREATE and DELETE, got %v", actions)
	}

	rec = app.request("GET", "/api/v1/audit?resource_type=transaction", "", otherToken)
	if got := parseJSON(t, rec)["total_items"]; got != float64(0) {
		t.Errorf("other user sees %v transaction entries", got)
	}
}
