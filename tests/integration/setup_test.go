package integration

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"costwise/internal/handlers"
	"costwise/internal/logger"
	"costwise/internal/middleware"
	"costwise/internal/models"
	"costwise/internal/services"
	"costwise/internal/validator"
)

// testApp holds the full application stack for integration tests.
type testApp struct {
	DB     *gorm.DB
	Router *gin.Engine
}

// dbCounter ensures each test gets a unique in-memory database.
var dbCounter atomic.Int64

func init() {
	gin.SetMode(gin.TestMode)
	logger.Init("test")
	validator.Register()
}

// setupIsolatedDB creates an isolated in-memory SQLite database for a single test.
func setupIsolatedDB(t *testing.T) *gorm.DB {
	t.Helper()

	n := dbCounter.Add(1)
	dsn := fmt.Sprintf("file:testdb%d?mode=memory&cache=shared", n)
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}

	allModels := []interface{}{
		&models.User{},
		&models.CostCenter{},
		&models.AllocationRule{},
		&models.AllocationRuleTarget{},
		&models.AllocationJournal{},
		&models.CostPool{},
		&models.CostPoolMember{},
		&models.CostCenterBudget{},
		&models.CostCenterTransaction{},
		&models.Department{},
		&models.StaffMember{},
		&models.StaffAssignment{},
		&models.Asset{},
		&models.ServiceLine{},
		&models.ServiceLineMember{},
		&models.AuditLog{},
	}
	if err := db.AutoMigrate(allModels...); err != nil {
		t.Fatalf("failed to migrate test database: %v", err)
	}

	return db
}

// setupApp creates a full application stack backed by an isolated in-memory SQLite.
func setupApp(t *testing.T) *testApp {
	t.Helper()

	db := setupIsolatedDB(t)

	// Services
	userService := services.NewUserService(db)
	auditService := services.NewAuditService(db)
	notifier := services.NewNoopNotificationService()
	costCenterService := services.NewCostCenterService(db)
	ruleService := services.NewAllocationRuleService(db, costCenterService)
	budgetService := services.NewBudgetService(db, notifier, 90)
	directCostService := services.NewDirectCostService(db, budgetService)
	allocationService := services.NewAllocationService(db, ruleService, directCostService, notifier)
	costPoolService := services.NewCostPoolService(db, directCostService, notifier)
	varianceService := services.NewVarianceService(db)
	exportService := services.NewExportService()

	// Handlers
	authHandler := handlers.NewAuthHandler(userService)
	costCenterHandler := handlers.NewCostCenterHandler(costCenterService, auditService)
	ruleHandler := handlers.NewAllocationRuleHandler(ruleService, auditService)
	allocationHandler := handlers.NewAllocationHandler(allocationService, auditService)
	costPoolHandler := handlers.NewCostPoolHandler(costPoolService, auditService)
	directCostHandler := handlers.NewDirectCostHandler(directCostService, budgetService, auditService)
	budgetHandler := handlers.NewBudgetHandler(budgetService, auditService)
	varianceHandler := handlers.NewVarianceHandler(varianceService, exportService)

	// Router
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.ErrorHandler())

	v1 := router.Group("/api/v1")

	v1.POST("/auth/register", authHandler.Register)
	v1.POST("/auth/login", authHandler.Login)
	v1.POST("/auth/refresh", authHandler.Refresh)

	protected := v1.Group("")
	protected.Use(middleware.AuthMiddleware())

	protected.GET("/auth/profile", authHandler.GetProfile)

	protected.POST("/cost-centers", costCenterHandler.CreateCostCenter)
	protected.GET("/cost-centers", costCenterHandler.GetCostCenters)
	protected.GET("/cost-centers/:id", costCenterHandler.GetCostCenter)
	protected.PUT("/cost-centers/:id", costCenterHandler.UpdateCostCenter)
	protected.PUT("/cost-centers/:id/parent", costCenterHandler.ReparentCostCenter)
	protected.GET("/cost-centers/:id/descendants", costCenterHandler.GetDescendants)
	protected.DELETE("/cost-centers/:id", costCenterHandler.DeleteCostCenter)
	protected.GET("/cost-centers/:id/variance", varianceHandler.GetVariance)
	protected.GET("/cost-centers/:id/variance/export", varianceHandler.ExportVariance)
	protected.GET("/cost-centers/:id/trend", varianceHandler.GetTrend)

	protected.POST("/allocation-rules", ruleHandler.CreateRule)
	protected.GET("/allocation-rules", ruleHandler.GetRules)
	protected.GET("/allocation-rules/:id", ruleHandler.GetRule)
	protected.PUT("/allocation-rules/:id", ruleHandler.UpdateRule)
	protected.POST("/allocation-rules/:id/submit", ruleHandler.SubmitRule)
	protected.POST("/allocation-rules/:id/approve", ruleHandler.ApproveRule)
	protected.POST("/allocation-rules/:id/reject", ruleHandler.RejectRule)
	protected.DELETE("/allocation-rules/:id", ruleHandler.DeleteRule)
	protected.POST("/allocation-rules/:id/execute", allocationHandler.ExecuteRule)

	protected.GET("/allocation-batches/:id", allocationHandler.GetBatch)
	protected.GET("/allocation-batches/:id/summary", allocationHandler.GetBatchSummary)

	protected.POST("/cost-pools", costPoolHandler.CreatePool)
	protected.GET("/cost-pools", costPoolHandler.GetPools)
	protected.GET("/cost-pools/:id", costPoolHandler.GetPool)
	protected.POST("/cost-pools/:id/members", costPoolHandler.AddMember)
	protected.GET("/cost-pools/:id/accumulate", costPoolHandler.AccumulateCosts)
	protected.POST("/cost-pools/:id/allocate", costPoolHandler.AllocatePool)
	protected.GET("/cost-pools/:id/balance", costPoolHandler.GetPoolBalance)

	protected.POST("/direct-costs/salary", directCostHandler.AssignSalary)
	protected.POST("/direct-costs/depreciation", directCostHandler.AssignDepreciation)
	protected.POST("/direct-costs/material", directCostHandler.AssignMaterial)

	protected.POST("/budgets", budgetHandler.CreateBudget)
	protected.GET("/budgets", budgetHandler.GetBudgets)
	protected.POST("/budgets/:id/revisions", budgetHandler.ReviseBudget)
	protected.GET("/budgets/utilization", budgetHandler.GetUtilization)

	protected.POST("/service-lines/compare", varianceHandler.CompareServiceLines)

	return &testApp{DB: db, Router: router}
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

// parseJSON parses the response body into a map.
func parseJSON(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var result map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &result); err != nil {
		t.Fatalf("failed to parse JSON: %v\nbody: %s", err, rec.Body.String())
	}
	return result
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

// createCostCenter creates a cost center through the API and returns its ID.
func (app *testApp) createCostCenter(t *testing.T, token, code, ccType string, parentID *string) string {
	t.Helper()
	body := fmt.Sprintf(`{"code":%q,"name":"Center %s","type":%q}`, code, code, ccType)
	if parentID != nil {
		body = fmt.Sprintf(`{"code":%q,"name":"Center %s","type":%q,"parent_id":%q}`, code, code, ccType, *parentID)
	}
	rec := app.request("POST", "/api/v1/cost-centers", body, token)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create cost center %s failed: %d %s", code, rec.Code, rec.Body.String())
	}
	result := parseJSON(t, rec)
	return result["cost_center"].(map[string]interface{})["id"].(string)
}

// mustDate parses a YYYY-MM-DD date literal.
func mustDate(t *testing.T, s string) time.Time {
	t.Helper()
	d, err := time.Parse("2006-01-02", s)
	if err != nil {
		t.Fatalf("invalid date %q: %v", s, err)
	}
	return d
}

// assertDecimal checks that a decimal JSON value equals the expected amount.
// Decimals marshal as quoted strings, and scale may vary.
func assertDecimal(t *testing.T, got interface{}, want string) {
	t.Helper()
	s, ok := got.(string)
	if !ok {
		t.Fatalf("expected decimal string, got %T (%v)", got, got)
	}
	gotDec, err := decimal.NewFromString(s)
	if err != nil {
		t.Fatalf("invalid decimal %q: %v", s, err)
	}
	wantDec, err := decimal.NewFromString(want)
	if err != nil {
		t.Fatalf("invalid expected decimal %q: %v", want, err)
	}
	if !gotDec.Equal(wantDec) {
		t.Errorf("expected %s, got %s", wantDec.String(), gotDec.String())
	}
}

// assertErrorCode checks the structured error code of an error response.
func assertErrorCode(t *testing.T, rec *httptest.ResponseRecorder, expected string) {
	t.Helper()
	result := parseJSON(t, rec)
	errObj, ok := result["error"].(map[string]interface{})
	if !ok {
		t.Fatalf("expected error response, got: %s", rec.Body.String())
	}
	if errObj["code"] != expected {
		t.Errorf("expected error code %q, got %v", expected, errObj["code"])
	}
}
