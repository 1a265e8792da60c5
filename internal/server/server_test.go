package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"expenseflow/internal/config"
	"expenseflow/internal/database"
	"expenseflow/internal/events"
	"expenseflow/internal/filestore"
	"expenseflow/internal/logger"
	"expenseflow/internal/models"
	"expenseflow/internal/testutil"
	"expenseflow/internal/validator"
)

const testAPIKey = "integration-key"

// testApp holds the full application stack for end-to-end tests.
type testApp struct {
	DB     *gorm.DB
	Router *gin.Engine
	Events *eventLog
}

// eventLog records every status change the services publish.
type eventLog struct {
	mu     sync.Mutex
	events []events.StatusChanged
}

func (l *eventLog) PublishStatusChanged(_ context.Context, e *events.StatusChanged) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, *e)
	return nil
}

func (l *eventLog) Close() error { return nil }

func (l *eventLog) forExpense(id uint) []events.StatusChanged {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []events.StatusChanged
	for _, e := range l.events {
		if e.ExpenseID == id {
			out = append(out, e)
		}
	}
	return out
}

func init() {
	gin.SetMode(gin.TestMode)
	logger.Init("test")
	validator.Register()
}

// setupApp builds the router over an isolated in-memory SQLite seeded with
// the default users and categories.
func setupApp(t *testing.T) *testApp {
	t.Helper()

	db := testutil.SetupTestDB(t)
	t.Cleanup(func() { testutil.TeardownTestDB(t, db) })
	if err := database.Seed(db); err != nil {
		t.Fatalf("seed: %v", err)
	}

	store, err := filestore.NewLocalStore(t.TempDir())
	if err != nil {
		t.Fatalf("filestore: %v", err)
	}

	cfg := &config.Config{
		Env:               "test",
		JWTSecret:         "test-secret",
		JWTExpirationDur:  time.Hour,
		MaxUploadBytes:    1 << 20,
		IntegrationAPIKey: testAPIKey,
	}
	config.Set(cfg)

	log := &eventLog{}
	router := NewRouter(Deps{
		Config:    cfg,
		DB:        db,
		Store:     store,
		Publisher: log,
	})
	return &testApp{DB: db, Router: router, Events: log}
}

// request makes a JSON request to the test router and returns the recorder.
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

// upload posts a multipart form with one receipt file.
func (app *testApp) upload(t *testing.T, path, token string, fields map[string]string, fileName string, content []byte) *httptest.ResponseRecorder {
	t.Helper()

	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	for k, v := range fields {
		if err := w.WriteField(k, v); err != nil {
			t.Fatalf("write field: %v", err)
		}
	}
	part, err := w.CreateFormFile("receipt_files", fileName)
	if err != nil {
		t.Fatalf("create form file: %v", err)
	}
	part.Write(content)
	w.Close()

	req := httptest.NewRequest(http.MethodPost, path, &body)
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

// login authenticates a seeded user and returns the access token.
func (app *testApp) login(t *testing.T, username string) string {
	t.Helper()
	body := fmt.Sprintf(`{"username":%q,"password":%q}`, username, database.DefaultPassword)
	rec := app.request(http.MethodPost, "/api/v1/auth/login", body, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("login as %s failed: %d %s", username, rec.Code, rec.Body.String())
	}
	return parseJSON(t, rec)["token"].(string)
}

func (app *testApp) categoryID(t *testing.T, name string) uint {
	t.Helper()
	var category models.Category
	if err := app.DB.Where("name = ?", name).First(&category).Error; err != nil {
		t.Fatalf("category %s: %v", name, err)
	}
	return category.ID
}

func expenseStatus(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	expense := parseJSON(t, rec)["expense"].(map[string]interface{})
	return expense["status"].(string)
}

func TestHealth(t *testing.T) {
	app := setupApp(t)

	rec := app.request(http.MethodGet, "/api/health", "", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}

func TestExpenseFlow_QueryResubmitApprove(t *testing.T) {
	app := setupApp(t)
	managerToken := app.login(t, "manager")
	accountantToken := app.login(t, "accountant")
	utilities := app.categoryID(t, "Utilities")

	// Create a draft with a receipt
	receipt := []byte("electricity bill")
	rec := app.upload(t, "/api/v1/expenses", managerToken, map[string]string{
		"description": "March power, site B",
		"amount":      "120.50",
		"date":        "2024-03-31",
		"category_id": fmt.Sprint(utilities),
	}, "bill.pdf", receipt)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create failed: %d %s", rec.Code, rec.Body.String())
	}
	expense := parseJSON(t, rec)["expense"].(map[string]interface{})
	if expense["status"] != "DRAFT" {
		t.Errorf("expected DRAFT, got %v", expense["status"])
	}
	attachments := expense["attachments"].([]interface{})
	if len(attachments) != 1 {
		t.Fatalf("expected 1 attachment, got %d", len(attachments))
	}
	expenseID := uint(expense["id"].(float64))
	attachmentID := uint(attachments[0].(map[string]interface{})["id"].(float64))
	base := fmt.Sprintf("/api/v1/expenses/%d", expenseID)

	// Submit
	rec = app.request(http.MethodPost, base+"/submit", "", managerToken)
	if rec.Code != http.StatusOK {
		t.Fatalf("submit failed: %d %s", rec.Code, rec.Body.String())
	}
	if got := expenseStatus(t, rec); got != "SUBMITTED" {
		t.Errorf("expected SUBMITTED, got %s", got)
	}

	// Submitted expenses are locked for the owner
	rec = app.request(http.MethodPut, base,
		fmt.Sprintf(`{"amount":"99.00","category_id":%d}`, utilities), managerToken)
	if rec.Code != http.StatusConflict || errorCode(t, rec) != "EXPENSE_NOT_EDITABLE" {
		t.Fatalf("expected EXPENSE_NOT_EDITABLE, got %d %s", rec.Code, rec.Body.String())
	}

	// Reviewer comment raises a query
	rec = app.request(http.MethodPost, base+"/comments", `{"message":"Need the meter reading"}`, accountantToken)
	if rec.Code != http.StatusCreated {
		t.Fatalf("comment failed: %d %s", rec.Code, rec.Body.String())
	}
	rec = app.request(http.MethodGet, base, "", managerToken)
	if got := expenseStatus(t, rec); got != "QUERIES_RAISED" {
		t.Fatalf("expected QUERIES_RAISED, got %s", got)
	}

	rec = app.request(http.MethodGet, base+"/comments", "", managerToken)
	comments := parseJSON(t, rec)["comments"].([]interface{})
	if len(comments) != 1 {
		t.Fatalf("expected 1 comment, got %d", len(comments))
	}

	// Owner edits and resubmits
	rec = app.request(http.MethodPut, base,
		fmt.Sprintf(`{"description":"March power, site B (meter 4411)","amount":"120.50","date":"2024-03-31","category_id":%d}`, utilities),
		managerToken)
	if rec.Code != http.StatusOK {
		t.Fatalf("update failed: %d %s", rec.Code, rec.Body.String())
	}
	rec = app.request(http.MethodPost, base+"/submit", "", managerToken)
	if got := expenseStatus(t, rec); got != "SUBMITTED" {
		t.Fatalf("expected SUBMITTED after resubmit, got %s", got)
	}

	// Approve
	rec = app.request(http.MethodPost, base+"/approve", "", accountantToken)
	if rec.Code != http.StatusOK {
		t.Fatalf("approve failed: %d %s", rec.Code, rec.Body.String())
	}
	if got := expenseStatus(t, rec); got != "APPROVED" {
		t.Errorf("expected APPROVED, got %s", got)
	}

	// Approving twice is rejected at the boundary
	rec = app.request(http.MethodPost, base+"/approve", "", accountantToken)
	if rec.Code != http.StatusConflict || errorCode(t, rec) != "INVALID_STATUS_TRANSITION" {
		t.Errorf("expected INVALID_STATUS_TRANSITION, got %d %s", rec.Code, rec.Body.String())
	}

	// Receipt is still downloadable
	rec = app.request(http.MethodGet, fmt.Sprintf("/api/v1/attachments/%d", attachmentID), "", accountantToken)
	if rec.Code != http.StatusOK {
		t.Fatalf("download failed: %d %s", rec.Code, rec.Body.String())
	}
	if !bytes.Equal(rec.Body.Bytes(), receipt) {
		t.Errorf("downloaded content mismatch: %q", rec.Body.String())
	}

	// Manager dashboard shows it under approved
	rec = app.request(http.MethodGet, "/api/v1/dashboard", "", managerToken)
	if rec.Code != http.StatusOK {
		t.Fatalf("dashboard failed: %d %s", rec.Code, rec.Body.String())
	}
	for _, s := range parseJSON(t, rec)["sections"].([]interface{}) {
		section := s.(map[string]interface{})
		page := section["page"].(map[string]interface{})
		want := 0.0
		if section["key"] == "approved" {
			want = 1
		}
		if page["total_items"] != want {
			t.Errorf("section %v: expected %v items, got %v", section["key"], want, page["total_items"])
		}
	}

	// Accountant CSV export
	rec = app.request(http.MethodGet, "/api/v1/exports/expenses.csv?status=APPROVED", "", accountantToken)
	if rec.Code != http.StatusOK {
		t.Fatalf("export failed: %d %s", rec.Code, rec.Body.String())
	}
	lines := strings.Split(strings.TrimSpace(rec.Body.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected header and 1 row, got %d lines", len(lines))
	}
	if !strings.Contains(lines[1], `"March power, site B (meter 4411)"`) {
		t.Errorf("expected quoted description in %q", lines[1])
	}
}

func TestExpenseFlow_RejectWithReason(t *testing.T) {
	app := setupApp(t)
	supervisorToken := app.login(t, "supervisor")
	accountantToken := app.login(t, "accountant")
	materials := app.categoryID(t, "Raw Materials")

	rec := app.request(http.MethodPost, "/api/v1/expenses",
		fmt.Sprintf(`{"description":"Compost","amount":"45","date":"2024-04-02","category_id":%d}`, materials),
		supervisorToken)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create failed: %d %s", rec.Code, rec.Body.String())
	}
	id := uint(parseJSON(t, rec)["expense"].(map[string]interface{})["id"].(float64))
	base := fmt.Sprintf("/api/v1/expenses/%d", id)

	app.request(http.MethodPost, base+"/submit", "", supervisorToken)

	rec = app.request(http.MethodPost, base+"/reject", `{"message":"Duplicate of April invoice"}`, accountantToken)
	if rec.Code != http.StatusOK {
		t.Fatalf("reject failed: %d %s", rec.Code, rec.Body.String())
	}
	if got := expenseStatus(t, rec); got != "REJECTED" {
		t.Errorf("expected REJECTED, got %s", got)
	}

	rec = app.request(http.MethodGet, base+"/comments", "", supervisorToken)
	comments := parseJSON(t, rec)["comments"].([]interface{})
	if len(comments) != 1 {
		t.Fatalf("expected rejection reason as comment, got %d comments", len(comments))
	}

	var accountant models.User
	app.DB.Where("username = ?", "accountant").First(&accountant)

	published := app.Events.forExpense(id)
	if len(published) != 2 {
		t.Fatalf("expected submit and reject events only, got %+v", published)
	}
	reject := published[1]
	if reject.From != models.ExpenseStatusSubmitted || reject.To != models.ExpenseStatusRejected {
		t.Errorf("expected SUBMITTED -> REJECTED, got %s -> %s", reject.From, reject.To)
	}
	if reject.ActorID != accountant.ID {
		t.Errorf("expected reject attributed to accountant %d, got %d", accountant.ID, reject.ActorID)
	}
}

func TestDisabledUserLosesAccess(t *testing.T) {
	app := setupApp(t)
	adminToken := app.login(t, "admin")
	supervisorToken := app.login(t, "supervisor")

	var supervisor models.User
	if err := app.DB.Where("username = ?", "supervisor").First(&supervisor).Error; err != nil {
		t.Fatalf("supervisor: %v", err)
	}

	rec := app.request(http.MethodGet, "/api/v1/expenses", "", supervisorToken)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 before disabling, got %d", rec.Code)
	}

	rec = app.request(http.MethodPut, fmt.Sprintf("/api/v1/admin/users/%d", supervisor.ID), `{"enabled":false}`, adminToken)
	if rec.Code != http.StatusOK {
		t.Fatalf("disable failed: %d %s", rec.Code, rec.Body.String())
	}

	rec = app.request(http.MethodGet, "/api/v1/expenses", "", supervisorToken)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403 with a token issued before disabling, got %d", rec.Code)
	}
	if code := errorCode(t, rec); code != "USER_DISABLED" {
		t.Errorf("expected USER_DISABLED, got %s", code)
	}
}

func TestCapabilities(t *testing.T) {
	app := setupApp(t)
	accountantToken := app.login(t, "accountant")
	managerToken := app.login(t, "manager")
	adminToken := app.login(t, "admin")

	tests := []struct {
		name   string
		method string
		path   string
		body   string
		token  string
		status int
	}{
		{"accountant cannot create", http.MethodPost, "/api/v1/expenses", `{"amount":"1","category_id":1}`, accountantToken, http.StatusForbidden},
		{"manager cannot approve", http.MethodPost, "/api/v1/expenses/1/approve", "", managerToken, http.StatusForbidden},
		{"manager cannot comment", http.MethodPost, "/api/v1/expenses/1/comments", `{"message":"hi"}`, managerToken, http.StatusForbidden},
		{"admin cannot export", http.MethodGet, "/api/v1/exports/expenses.csv", "", adminToken, http.StatusForbidden},
		{"manager cannot list users", http.MethodGet, "/api/v1/admin/users", "", managerToken, http.StatusForbidden},
		{"admin lists users", http.MethodGet, "/api/v1/admin/users", "", adminToken, http.StatusOK},
		{"anonymous profile", http.MethodGet, "/api/v1/profile", "", "", http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := app.request(tt.method, tt.path, tt.body, tt.token)
			if rec.Code != tt.status {
				t.Errorf("expected %d, got %d: %s", tt.status, rec.Code, rec.Body.String())
			}
		})
	}
}

func TestUploadTooLarge(t *testing.T) {
	app := setupApp(t)
	managerToken := app.login(t, "manager")
	utilities := app.categoryID(t, "Utilities")

	rec := app.upload(t, "/api/v1/expenses", managerToken, map[string]string{
		"amount":      "10",
		"category_id": fmt.Sprint(utilities),
	}, "scan.png", bytes.Repeat([]byte("x"), 2<<20))
	if rec.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("expected 413, got %d: %s", rec.Code, rec.Body.String())
	}
	if got := rec.Header().Get("Location"); got != "/dashboard" {
		t.Errorf("expected Location /dashboard, got %q", got)
	}
	if code := errorCode(t, rec); code != "UPLOAD_TOO_LARGE" {
		t.Errorf("expected UPLOAD_TOO_LARGE, got %s", code)
	}

	var count int64
	app.DB.Model(&models.Expense{}).Count(&count)
	if count != 0 {
		t.Errorf("expected no expense to be created, got %d", count)
	}
}

func TestIntegrationCSV(t *testing.T) {
	app := setupApp(t)

	rec := app.request(http.MethodGet, "/api/v1/integrations/expenses.csv", "", "")
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without key, got %d", rec.Code)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/integrations/expenses.csv", nil)
	req.Header.Set("X-API-Key", testAPIKey)
	rec = httptest.NewRecorder()
	app.Router.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 with key, got %d: %s", rec.Code, rec.Body.String())
	}
	if !strings.HasPrefix(rec.Body.String(), "ID,Date,Category,SubCategory,Amount,Status,Description,User") {
		t.Errorf("unexpected CSV header: %q", rec.Body.String())
	}
}
