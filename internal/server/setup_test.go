package server

import (
	"bytes"
	"database/sql"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"budgetledger/internal/config"
	"budgetledger/internal/database"
	"budgetledger/internal/ledger"
	"budgetledger/internal/logger"
	"budgetledger/internal/services"
	"budgetledger/internal/testutil"
	"budgetledger/internal/validator"
)

const testOperatorKey = "ops-test-key"

// testApp holds the full application stack for flow tests.
type testApp struct {
	DB     *gorm.DB
	Router *gin.Engine
}

func init() {
	gin.SetMode(gin.TestMode)
	logger.Init("test")
	validator.Register()
}

func testConfig() *config.Config {
	return &config.Config{
		Env:                   "test",
		JWTSecret:             "server-test-secret",
		OperatorAPIKey:        testOperatorKey,
		ImportMaxRows:         100,
		ImportMaxBytes:        1 << 20,
		ImportMaxErrors:       20,
		CommitMaxIDs:          50,
		ImportRateLimitPerMin: 100,
		AmountDecimalPlaces:   ledger.DefaultScale,
		MaxFutureYears:        ledger.DefaultMaxFutureYears,
	}
}

// setupApp creates the routed application backed by an in-memory SQLite.
func setupApp(t *testing.T) *testApp {
	t.Helper()

	cfg := testConfig()
	config.Set(cfg)

	db := testutil.SetupTestDB(t)
	t.Cleanup(func() { testutil.TeardownTestDB(t, db) })

	uow := database.NewUnitOfWork(db, sql.LevelSerializable)
	app := New(cfg, services.NewRegistry(db, uow, services.NewOptions(cfg)))
	t.Cleanup(app.Close)

	return &testApp{DB: db, Router: app.Router}
}

// request makes an HTTP request to the test router and returns the recorder.
func (app *testApp) request(method, path, body, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	app.Router.ServeHTTP(rec, req)
	return rec
}

// operatorRequest calls an operator endpoint with the given API key.
func (app *testApp) operatorRequest(method, path, body, apiKey string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if apiKey != "" {
		req.Header.Set("X-API-Key", apiKey)
	}
	rec := httptest.NewRecorder()
	app.Router.ServeHTTP(rec, req)
	return rec
}

// upload posts a statement file as multipart form data.
func (app *testApp) upload(t *testing.T, path, filename, content, token string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	part, err := w.CreateFormFile("file", filename)
	if err != nil {
		t.Fatalf("failed to create form file: %v", err)
	}
	if _, err := part.Write([]byte(content)); err != nil {
		t.Fatalf("failed to write form file: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("failed to close multipart writer: %v", err)
	}

	req := httptest.NewRequest("POST", path, &buf)
	req.Header.Set("Content-Type", w.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	app.Router.ServeHTTP(rec, req)
	return rec
}

// parseJSON parses the response body into a map.
func parseJSON(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var result map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &result); err != nil {
		t.Fatalf("failed to parse JSON: %v\nbody: %s", err, rec.Body.String())
	}
	return result
}

func errorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	errObj, ok := parseJSON(t, rec)["error"].(map[string]interface{})
	if !ok {
		t.Fatalf("expected error object, got %s", rec.Body.String())
	}
	code, _ := errObj["code"].(string)
	return code
}

// assertAmount compares a JSON decimal field against want.
func assertAmount(t *testing.T, want string, got interface{}) {
	t.Helper()
	s, ok := got.(string)
	if !ok {
		t.Fatalf("expected decimal string, got %T (%v)", got, got)
	}
	g, err := decimal.NewFromString(s)
	if err != nil {
		t.Fatalf("invalid decimal %q: %v", s, err)
	}
	if !g.Equal(decimal.RequireFromString(want)) {
		t.Errorf("expected %s, got %s", want, s)
	}
}

// registerUser registers a new user and returns the access token, refresh token, and user ID.
func (app *testApp) registerUser(t *testing.T, email, password string) (accessToken, refreshToken, userID string) {
	t.Helper()
	body := fmt.Sprintf(`{"email":%q,"password":%q,"first_name":"Test","last_name":"User"}`, email, password)
	rec := app.request("POST", "/api/v1/auth/register", body, "")
	if rec.Code != http.StatusCreated {
		t.Fatalf("register failed: %d %s", rec.Code, rec.Body.String())
	}
	result := parseJSON(t, rec)
	user := result["user"].(map[string]interface{})
	return result["access_token"].(string), result["refresh_token"].(string), user["id"].(string)
}

// loginUser logs in and returns the access and refresh tokens.
func (app *testApp) loginUser(t *testing.T, email, password string) (accessToken, refreshToken string) {
	t.Helper()
	body := fmt.Sprintf(`{"email":%q,"password":%q}`, email, password)
	rec := app.request("POST", "/api/v1/auth/login", body, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("login failed: %d %s", rec.Code, rec.Body.String())
	}
	result := parseJSON(t, rec)
	return result["access_token"].(string), result["refresh_token"].(string)
}

// createCategory creates a category and returns its id.
func (app *testApp) createCategory(t *testing.T, token, name string, kind ledger.Kind) string {
	t.Helper()
	body := fmt.Sprintf(`{"name":%q,"kind":%q}`, name, kind)
	rec := app.request("POST", "/api/v1/categories", body, token)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create category failed: %d %s", rec.Code, rec.Body.String())
	}
	return parseJSON(t, rec)["category"].(map[string]interface{})["id"].(string)
}

// createTransaction records a manual transaction and returns its id.
func (app *testApp) createTransaction(t *testing.T, token string, kind ledger.Kind, amount, date string) string {
	t.Helper()
	body := fmt.Sprintf(`{"kind":%q,"amount":%q,"description":"entry","date":%q}`, kind, amount, date)
	rec := app.request("POST", "/api/v1/transactions", body, token)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create transaction failed: %d %s", rec.Code, rec.Body.String())
	}
	return parseJSON(t, rec)["transaction"].(map[string]interface{})["id"].(string)
}

// summary fetches the summary for a YYYY-MM month.
func (app *testApp) summary(t *testing.T, token, month string) map[string]interface{} {
	t.Helper()
	rec := app.request("GET", "/api/v1/summaries/"+month, "", token)
	if rec.Code != http.StatusOK {
		t.Fatalf("get summary %s failed: %d %s", month, rec.Code, rec.Body.String())
	}
	return parseJSON(t, rec)["summary"].(map[string]interface{})
}
