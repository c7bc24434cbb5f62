package services

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"costwise/internal/models"
	"costwise/internal/pagination"
)

// DriverStats carries the allocation driver statistics of a cost center.
type DriverStats struct {
	Headcount     decimal.Decimal
	SquareFootage decimal.Decimal
	PatientDays   decimal.Decimal
	ServiceVolume decimal.Decimal
}

// CostCenterFilter holds optional filter parameters for listing cost centers.
type CostCenterFilter struct {
	Type     *models.CostCenterType
	IsActive *bool
	ParentID *string
}

// CostCenterServicer maintains the cost center forest: parent/child links,
// hierarchy paths, and cycle prevention.
type CostCenterServicer interface {
	CreateCostCenter(code, name string, ccType models.CostCenterType, parentID *string, drivers DriverStats) (*models.CostCenter, error)
	GetCostCenters(page pagination.PageRequest, filter CostCenterFilter) (*pagination.PageResponse[models.CostCenter], error)
	GetCostCenterByID(id string) (*models.CostCenter, error)
	UpdateCostCenter(id, name string, isActive *bool, drivers *DriverStats) (*models.CostCenter, error)
	ReparentCostCenter(id string, newParentID *string) (*models.CostCenter, error)
	ValidateNoCircularReference(nodeID string, proposedParentID *string) (bool, error)
	GetDescendants(nodeID string) ([]models.CostCenter, error)
	CanDelete(id string) (bool, error)
	DeleteCostCenter(id string) error
}

// RuleTargetInput describes one target of an allocation rule at creation.
type RuleTargetInput struct {
	TargetCostCenterID string
	Percentage         *decimal.Decimal
	Weight             *decimal.Decimal
}

// RuleInput is the payload for creating or editing an allocation rule.
type RuleInput struct {
	Code               string
	Name               string
	SourceCostCenterID string
	Basis              models.AllocationBasis
	FormulaExpression  string
	EffectiveDate      time.Time
	Targets            []RuleTargetInput
}

// RuleFilter holds optional filter parameters for listing rules.
type RuleFilter struct {
	Status   *models.ApprovalStatus
	IsActive *bool
	SourceID *string
}

// AllocationRuleServicer owns the rule lifecycle: draft -> pending ->
// approved|rejected, with construction-time validation of the rule contract
// (no self-allocation, percentages summing to 100.00, valid formulas).
type AllocationRuleServicer interface {
	CreateRule(userID string, input RuleInput) (*models.AllocationRule, error)
	UpdateRule(userID, ruleID string, input RuleInput) (*models.AllocationRule, error)
	GetRules(page pagination.PageRequest, filter RuleFilter) (*pagination.PageResponse[models.AllocationRule], error)
	GetRuleByID(ruleID string) (*models.AllocationRule, error)
	SubmitRule(userID, ruleID string) (*models.AllocationRule, error)
	ApproveRule(userID, ruleID string) (*models.AllocationRule, error)
	RejectRule(userID, ruleID string) (*models.AllocationRule, error)
	DeleteRule(userID, ruleID string) error
}

// BatchSummary aggregates one journal batch for reporting.
type BatchSummary struct {
	BatchID      string          `json:"batch_id"`
	LineCount    int             `json:"line_count"`
	TotalAmount  decimal.Decimal `json:"total_amount"`
	SourceAmount decimal.Decimal `json:"source_amount"`
	PeriodStart  time.Time       `json:"period_start"`
	PeriodEnd    time.Time       `json:"period_end"`
}

// AllocationServicer executes approved rules: it accumulates the source cost
// center's cost for the period, distributes it across the rule targets, and
// writes one immutable journal batch plus the allocated-cost transactions.
type AllocationServicer interface {
	ExecuteRule(ruleID string, periodStart, periodEnd time.Time) (string, error)
	GetBatch(batchID string) ([]models.AllocationJournal, error)
	GetBatchSummary(batchID string) (*BatchSummary, error)
}

// PoolInput is the payload for creating a cost pool.
type PoolInput struct {
	Code           string
	Name           string
	PoolType       models.PoolType
	AllocationBase models.AllocationBase
}

// CostPoolServicer aggregates contributor costs into pools and redistributes
// the pooled total across target members.
type CostPoolServicer interface {
	CreatePool(input PoolInput) (*models.CostPool, error)
	AddMember(poolID, costCenterID string, isContributor bool) (*models.CostPoolMember, error)
	GetPools(page pagination.PageRequest) (*pagination.PageResponse[models.CostPool], error)
	GetPoolByID(poolID string) (*models.CostPool, error)
	AccumulateCosts(poolID string, periodStart, periodEnd time.Time) (decimal.Decimal, error)
	ValidatePoolAllocationRule(poolID string) error
	AllocatePool(poolID string, periodStart, periodEnd time.Time) (string, error)
	GetPoolBalance(poolID string, asOf time.Time) (decimal.Decimal, error)
}

// DirectCostServicer posts direct costs (salary splits, depreciation,
// materials) as cost center transactions. Every transaction goes through the
// same construction guard, which refuses inactive cost centers.
type DirectCostServicer interface {
	AssignSalaryCost(staffMemberID string, salaryAmount decimal.Decimal, date time.Time, description string) ([]models.CostCenterTransaction, error)
	AssignDepreciationCost(assetID string, amount decimal.Decimal, date time.Time, description string) (*models.CostCenterTransaction, error)
	AssignMaterialCost(costCenterID string, amount decimal.Decimal, date time.Time, referenceType, referenceID, description string) (*models.CostCenterTransaction, error)
	PostTransaction(tx *gorm.DB, costCenterID string, date time.Time, txType models.TransactionType, category models.CostCategory, amount decimal.Decimal, referenceType, referenceID, description string) (*models.CostCenterTransaction, error)
}

// CategoryVariance is the budget-vs-actual comparison for one category.
type CategoryVariance struct {
	Category       models.CostCategory `json:"category"`
	Budget         decimal.Decimal     `json:"budget"`
	Actual         decimal.Decimal     `json:"actual"`
	Variance       decimal.Decimal     `json:"variance"`
	Classification string              `json:"classification"`
}

// VarianceReport is the per-category breakdown plus total for one cost
// center and period.
type VarianceReport struct {
	CostCenterID   string             `json:"cost_center_id"`
	CostCenterCode string             `json:"cost_center_code"`
	PeriodStart    time.Time          `json:"period_start"`
	PeriodEnd      time.Time          `json:"period_end"`
	Categories     []CategoryVariance `json:"categories"`
	Total          CategoryVariance   `json:"total"`
}

// TrendPoint is one month of a budget/actual trend series.
type TrendPoint struct {
	Period   string          `json:"period"` // YYYY-MM
	Budget   decimal.Decimal `json:"budget"`
	Actual   decimal.Decimal `json:"actual"`
	Variance decimal.Decimal `json:"variance"`
}

// ServiceLineProfit is one service line's profitability for a period.
type ServiceLineProfit struct {
	ServiceLineID string          `json:"service_line_id"`
	Code          string          `json:"code"`
	Name          string          `json:"name"`
	Cost          decimal.Decimal `json:"cost"`
	Revenue       decimal.Decimal `json:"revenue"`
	Profit        decimal.Decimal `json:"profit"`
	ProfitMargin  decimal.Decimal `json:"profit_margin"`
}

// VarianceServicer computes budget-vs-actual variance classifications,
// trend series, and service line profitability. Time-sensitive operations
// take an explicit asOf date rather than reading an ambient clock.
type VarianceServicer interface {
	CalculateVariance(costCenterID string, periodStart, periodEnd time.Time) (*VarianceReport, error)
	ClassifyVariance(variance, budget decimal.Decimal) string
	GetTrendAnalysis(costCenterID string, monthCount int, asOf time.Time) ([]TrendPoint, error)
	CompareServiceLines(serviceLineIDs []string, periodStart, periodEnd time.Time) ([]ServiceLineProfit, error)
}

// BudgetUtilization summarizes spending against the current budget for one
// cost center month.
type BudgetUtilization struct {
	CostCenterID string          `json:"cost_center_id"`
	FiscalYear   int             `json:"fiscal_year"`
	PeriodMonth  int             `json:"period_month"`
	Budget       decimal.Decimal `json:"budget"`
	Actual       decimal.Decimal `json:"actual"`
	Utilization  decimal.Decimal `json:"utilization"` // percent
}

// BudgetServicer manages budget rows and their additive revisions.
type BudgetServicer interface {
	CreateBudget(costCenterID string, fiscalYear, periodMonth int, category models.CostCategory, amount decimal.Decimal) (*models.CostCenterBudget, error)
	ReviseBudget(budgetID string, amount decimal.Decimal, justification string) (*models.CostCenterBudget, error)
	GetCurrentBudget(costCenterID string, fiscalYear, periodMonth int, category models.CostCategory) (*models.CostCenterBudget, error)
	GetBudgets(costCenterID string, fiscalYear int, page pagination.PageRequest) (*pagination.PageResponse[models.CostCenterBudget], error)
	GetUtilization(costCenterID string, fiscalYear, periodMonth int) (*BudgetUtilization, error)
	CheckThreshold(costCenterID string, date time.Time)
}

// NotificationServicer is the fire-and-forget notification collaborator.
// Implementations must never propagate delivery errors to callers.
type NotificationServicer interface {
	BatchCompleted(batchID, sourceCode string, total decimal.Decimal, lineCount int)
	BudgetThresholdExceeded(util *BudgetUtilization)
}

// ExportServicer renders variance output for download.
type ExportServicer interface {
	VarianceReportCSV(report *VarianceReport) ([]byte, error)
	VarianceReportXLSX(report *VarianceReport) ([]byte, error)
}

// AuditServicer defines the contract for audit logging.
type AuditServicer interface {
	Log(userID, action, resourceType, resourceID, ipAddress string, changes map[string]interface{})
}

// UserServicer defines the contract for user-related business logic.
type UserServicer interface {
	CreateUser(email, password, firstName, lastName string) (*models.User, error)
	GetUserByEmail(email string) (*models.User, error)
	GetUserByID(id string) (*models.User, error)
	VerifyPassword(user *models.User, password string) bool
	AttemptLogin(email, password string) (*models.User, error)
	StoreRefreshTokenHash(userID, tokenHash string) error
	GetRefreshTokenHash(userID string) (string, error)
}
