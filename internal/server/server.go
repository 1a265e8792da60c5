// Package server assembles the HTTP router from services and handlers.
package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"gorm.io/gorm"

	"expenseflow/internal/config"
	_ "expenseflow/internal/docs" // Import swagger docs
	"expenseflow/internal/events"
	"expenseflow/internal/filestore"
	"expenseflow/internal/handlers"
	"expenseflow/internal/middleware"
	"expenseflow/internal/policy"
	"expenseflow/internal/services"
)

// Deps are the long-lived resources the router is built from.
type Deps struct {
	Config    *config.Config
	DB        *gorm.DB
	Store     filestore.Store
	Publisher events.Publisher
}

// NewRouter wires services and handlers into a gin engine.
func NewRouter(deps Deps) *gin.Engine {
	cfg := deps.Config

	// Initialize services
	userService := services.NewUserService(deps.DB)
	categoryService := services.NewCategoryService(deps.DB)
	expenseService := services.NewExpenseService(deps.DB, deps.Store, deps.Publisher)
	auditService := services.NewAuditService(deps.DB)

	// Initialize handlers
	authHandler := handlers.NewAuthHandler(userService, auditService)
	expenseHandler := handlers.NewExpenseHandler(expenseService, categoryService, auditService)
	attachmentHandler := handlers.NewAttachmentHandler(expenseService, deps.Store, auditService)
	exportHandler := handlers.NewExportHandler(expenseService, auditService)
	categoryHandler := handlers.NewCategoryHandler(categoryService, auditService)
	userHandler := handlers.NewUserHandler(userService, auditService)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestLogging())
	router.Use(middleware.ErrorHandler())
	router.Use(cors)

	// Swagger documentation
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	// Health check endpoint
	router.GET("/api/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	v1 := router.Group("/api/v1")

	// Public routes
	v1.POST("/auth/login", authHandler.Login)

	// Integration routes
	integrations := v1.Group("/integrations")
	integrations.Use(middleware.APIKeyMiddleware(cfg.IntegrationAPIKey))
	integrations.GET("/expenses.csv", exportHandler.IntegrationCSV)

	// Protected routes
	protected := v1.Group("/")
	protected.Use(middleware.AuthMiddleware(), middleware.ActiveUser(userService))

	protected.GET("/profile", authHandler.GetProfile)

	canCreate := middleware.RequireCapability(policy.CapExpenseCreate)
	canSubmit := middleware.RequireCapability(policy.CapExpenseSubmit)
	canReview := middleware.RequireCapability(policy.CapExpenseReview)
	canExport := middleware.RequireCapability(policy.CapExpenseExport)
	uploadLimit := middleware.UploadLimit(cfg.MaxUploadBytes)

	// Expense routes
	expenses := protected.Group("/expenses")
	expenses.GET("", expenseHandler.ListExpenses)
	expenses.POST("", canCreate, uploadLimit, expenseHandler.CreateExpense)
	expenses.GET("/:id", expenseHandler.GetExpense)
	expenses.PUT("/:id", canCreate, uploadLimit, expenseHandler.UpdateExpense)
	expenses.DELETE("/:id", canCreate, expenseHandler.DeleteExpense)
	expenses.POST("/:id/submit", canSubmit, expenseHandler.SubmitExpense)
	expenses.POST("/:id/approve", canReview, expenseHandler.ApproveExpense)
	expenses.POST("/:id/reject", canReview, expenseHandler.RejectExpense)
	expenses.POST("/:id/query", canReview, expenseHandler.QueryExpense)
	expenses.GET("/:id/comments", expenseHandler.GetComments)
	expenses.POST("/:id/comments", canReview, expenseHandler.AddComment)

	protected.GET("/dashboard", expenseHandler.GetDashboard)

	// Attachment routes
	protected.GET("/attachments/:id", attachmentHandler.DownloadAttachment)
	protected.DELETE("/attachments/:id", canCreate, attachmentHandler.DeleteAttachment)

	// Export routes
	exports := protected.Group("/exports", canExport)
	exports.GET("/expenses.csv", exportHandler.ExportCSV)
	exports.GET("/expenses.pdf", exportHandler.ExportPDF)

	// Category routes
	categories := protected.Group("/categories")
	categories.GET("", categoryHandler.ListCategories)
	categories.GET("/:id", categoryHandler.GetCategory)
	categories.GET("/:id/subcategories", categoryHandler.ListSubCategories)

	// Admin routes
	admin := protected.Group("/admin")

	adminCategories := admin.Group("", middleware.RequireCapability(policy.CapAdminCategories))
	adminCategories.POST("/categories", categoryHandler.CreateCategory)
	adminCategories.PUT("/categories/:id", categoryHandler.UpdateCategory)
	adminCategories.DELETE("/categories/:id", categoryHandler.DeleteCategory)
	adminCategories.POST("/categories/:id/subcategories", categoryHandler.CreateSubCategory)
	adminCategories.PUT("/subcategories/:id", categoryHandler.UpdateSubCategory)
	adminCategories.DELETE("/subcategories/:id", categoryHandler.DeleteSubCategory)

	adminUsers := admin.Group("/users", middleware.RequireCapability(policy.CapAdminUsers))
	adminUsers.GET("", userHandler.ListUsers)
	adminUsers.POST("", userHandler.CreateUser)
	adminUsers.GET("/:id", userHandler.GetUser)
	adminUsers.PUT("/:id", userHandler.UpdateUser)
	adminUsers.DELETE("/:id", userHandler.DeleteUser)

	return router
}

func cors(c *gin.Context) {
	c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
	c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
	c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-API-Key, X-Request-ID")
	c.Writer.Header().Set("Access-Control-Expose-Headers", "Content-Disposition, Location, X-Request-ID")

	if c.Request.Method == http.MethodOptions {
		c.AbortWithStatus(http.StatusNoContent)
		return
	}

	c.Next()
}
