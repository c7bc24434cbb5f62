package main

import (
	"os"

	"costwise/internal/config"
	"costwise/internal/database"
	"costwise/internal/handlers"
	"costwise/internal/logger"
	"costwise/internal/middleware"
	"costwise/internal/services"
	"costwise/internal/validator"

	"github.com/gin-gonic/gin"
)

func main() {
	logger.Init(os.Getenv("ENV"))
	defer logger.Sync()

	if err := run(); err != nil {
		logger.Get().Fatalw("Server failed to start", "error", err)
	}
}

func run() error {
	appConfig, err := config.Load()
	if err != nil {
		return err
	}

	dbConfig, err := database.NewConfig()
	if err != nil {
		return err
	}

	dbManager, err := database.NewManager(dbConfig)
	if err != nil {
		return err
	}

	if err := dbManager.Migrate(); err != nil {
		return err
	}

	db := dbManager.DB()

	validator.Register()

	// Services
	userService := services.NewUserService(db)
	auditService := services.NewAuditService(db)
	notificationService := services.NewNotificationService(appConfig)
	costCenterService := services.NewCostCenterService(db)
	ruleService := services.NewAllocationRuleService(db, costCenterService)
	budgetService := services.NewBudgetService(db, notificationService, appConfig.BudgetAlertThreshold)
	directCostService := services.NewDirectCostService(db, budgetService)
	allocationService := services.NewAllocationService(db, ruleService, directCostService, notificationService)
	costPoolService := services.NewCostPoolService(db, directCostService, notificationService)
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

	// Router setup
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestLogging())
	router.Use(middleware.ErrorHandler())

	// CORS middleware
	router.Use(func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	})

	// Health check endpoint
	router.GET("/api/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	v1 := router.Group("/api/v1")
	{
		// Public routes
		v1.POST("/auth/register", authHandler.Register)
		v1.POST("/auth/login", authHandler.Login)
		v1.POST("/auth/refresh", authHandler.Refresh)

		// Protected routes
		auth := v1.Group("")
		auth.Use(middleware.AuthMiddleware())
		{
			auth.GET("/auth/profile", authHandler.GetProfile)

			auth.POST("/cost-centers", costCenterHandler.CreateCostCenter)
			auth.GET("/cost-centers", costCenterHandler.GetCostCenters)
			auth.GET("/cost-centers/:id", costCenterHandler.GetCostCenter)
			auth.PUT("/cost-centers/:id", costCenterHandler.UpdateCostCenter)
			auth.PUT("/cost-centers/:id/parent", costCenterHandler.ReparentCostCenter)
			auth.GET("/cost-centers/:id/descendants", costCenterHandler.GetDescendants)
			auth.DELETE("/cost-centers/:id", costCenterHandler.DeleteCostCenter)
			auth.GET("/cost-centers/:id/variance", varianceHandler.GetVariance)
			auth.GET("/cost-centers/:id/variance/export", varianceHandler.ExportVariance)
			auth.GET("/cost-centers/:id/trend", varianceHandler.GetTrend)

			auth.POST("/allocation-rules", ruleHandler.CreateRule)
			auth.GET("/allocation-rules", ruleHandler.GetRules)
			auth.GET("/allocation-rules/:id", ruleHandler.GetRule)
			auth.PUT("/allocation-rules/:id", ruleHandler.UpdateRule)
			auth.POST("/allocation-rules/:id/submit", ruleHandler.SubmitRule)
			auth.POST("/allocation-rules/:id/approve", ruleHandler.ApproveRule)
			auth.POST("/allocation-rules/:id/reject", ruleHandler.RejectRule)
			auth.DELETE("/allocation-rules/:id", ruleHandler.DeleteRule)
			auth.POST("/allocation-rules/:id/execute", allocationHandler.ExecuteRule)

			auth.GET("/allocation-batches/:id", allocationHandler.GetBatch)
			auth.GET("/allocation-batches/:id/summary", allocationHandler.GetBatchSummary)

			auth.POST("/cost-pools", costPoolHandler.CreatePool)
			auth.GET("/cost-pools", costPoolHandler.GetPools)
			auth.GET("/cost-pools/:id", costPoolHandler.GetPool)
			auth.POST("/cost-pools/:id/members", costPoolHandler.AddMember)
			auth.GET("/cost-pools/:id/accumulate", costPoolHandler.AccumulateCosts)
			auth.POST("/cost-pools/:id/allocate", costPoolHandler.AllocatePool)
			auth.GET("/cost-pools/:id/balance", costPoolHandler.GetPoolBalance)

			auth.POST("/direct-costs/salary", directCostHandler.AssignSalary)
			auth.POST("/direct-costs/depreciation", directCostHandler.AssignDepreciation)
			auth.POST("/direct-costs/material", directCostHandler.AssignMaterial)

			auth.POST("/budgets", budgetHandler.CreateBudget)
			auth.GET("/budgets", budgetHandler.GetBudgets)
			auth.POST("/budgets/:id/revisions", budgetHandler.ReviseBudget)
			auth.GET("/budgets/utilization", budgetHandler.GetUtilization)

			auth.POST("/service-lines/compare", varianceHandler.CompareServiceLines)
		}
	}

	logger.Get().Infow("Starting server", "port", appConfig.Port)
	return router.Run(":" + appConfig.Port)
}
