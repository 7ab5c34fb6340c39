// Package api exposes the services over HTTP with gin.
package api

import (
	"net/http" // HTTP status codes
	"time"     // Cookie and CORS lifetimes

	"retail_pos/internal/auth"       // Credential store
	"retail_pos/internal/catalog"    // Product catalog
	"retail_pos/internal/domain"     // Roles
	"retail_pos/internal/ledger"     // Invoice ledger
	"retail_pos/internal/middleware" // Access control
	"retail_pos/internal/payment"    // Payment orchestrator
	"retail_pos/internal/report"     // Report generator
	"retail_pos/internal/utils"      // Cache

	"github.com/gin-contrib/cors"                         // CORS middleware
	"github.com/gin-gonic/gin"                            // Gin web framework
	validatorv10 "github.com/go-playground/validator/v10" // Struct validation
)

// Deps are the collaborators the HTTP layer routes to
type Deps struct {
	Auth      *auth.Service
	Catalog   *catalog.Service
	Ledger    *ledger.Service
	Payments  *payment.Orchestrator
	Reports   *report.Generator
	Cache     *utils.Cache
	Validator *validatorv10.Validate

	JWTSecret     string        // Signs session and anti-forgery tokens
	CSRFTTL       time.Duration // Anti-forgery cookie lifetime
	SecureCookies bool          // Secure, SameSite=None cookies for cross-site clients
	CORSOrigin    string        // Allowed browser origin
}

// NewRouter builds the gin engine with every route
func NewRouter(d Deps) *gin.Engine {
	r := gin.New()
	r.Use(middleware.Recovery(), middleware.RequestLogger())
	r.Use(cors.New(cors.Config{
		AllowOrigins:     []string{d.CORSOrigin},
		AllowMethods:     []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowHeaders:     append([]string{"Authorization", "Content-Type"}, utils.CSRFHeaders...),
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	r.GET("/health", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })

	session := middleware.RequireSession(d.JWTSecret)
	antiForgery := middleware.RequireAntiForgery(d.JWTSecret)
	staff := middleware.RequireRole(domain.RoleAdmin, domain.RoleModerator)
	admin := middleware.RequireRole(domain.RoleAdmin)

	// Auth routes
	authGroup := r.Group("/auth")
	authGroup.POST("/register", RegisterHandler(d.Auth, d.Cache, d.Validator)) // Registration endpoint
	authGroup.POST("/login", LoginHandler(d.Auth, d.Validator))                // Login endpoint
	authGroup.GET("/login", session, SessionHandler(d.Auth))                   // Session re-auth endpoint

	r.GET("/csrf-token", session, middleware.IssueAntiForgery(d.JWTSecret, d.CSRFTTL, d.SecureCookies))

	// Everything below needs a session and, for writes, an anti-forgery token
	protected := r.Group("/", session, antiForgery)

	products := protected.Group("/products")
	products.GET("", ListProductsHandler(d.Catalog))
	products.POST("", staff, CreateProductHandler(d.Catalog, d.Validator))
	products.GET("/bought", BoughtProductsHandler(d.Catalog))
	products.GET("/:scanCode", GetProductHandler(d.Catalog))
	products.PUT("/:scanCode", staff, UpdateProductHandler(d.Catalog, d.Validator))
	products.PUT("/:scanCode/rating", RateProductHandler(d.Catalog))
	products.DELETE("/:scanCode", staff, DeleteProductHandler(d.Catalog))

	invoices := protected.Group("/invoices")
	invoices.GET("", ListOwnInvoicesHandler(d.Ledger))
	invoices.POST("", admin, CreateInvoiceHandler(d.Ledger, d.Cache, d.Validator))
	invoices.GET("/:id", GetInvoiceHandler(d.Ledger))
	invoices.PUT("/:id", admin, UpdateInvoiceHandler(d.Ledger, d.Cache, d.Validator))
	invoices.DELETE("/:id", admin, DeleteInvoiceHandler(d.Ledger, d.Cache))

	paypal := protected.Group("/paypal")
	paypal.POST("/create-paypal-order", CreatePayPalOrderHandler(d.Payments, d.Cache, d.Validator))
	paypal.GET("/get-order-status/:orderId", OrderStatusHandler(d.Payments))
	paypal.POST("/capture-payment/:orderId", CapturePaymentHandler(d.Payments, d.Cache))

	users := protected.Group("/users")
	users.GET("/profile", GetProfileHandler(d.Auth))
	users.PUT("/profile", UpdateProfileHandler(d.Auth, d.Cache, d.Validator))
	users.DELETE("/profile", DeleteProfileHandler(d.Auth, d.Cache))
	users.GET("/:id", middleware.RequireSelf("id"), GetUserHandler(d.Auth))

	// Admin routes
	adminGroup := protected.Group("/admin", admin)
	adminGroup.GET("/users", ListUsersHandler(d.Auth, d.Cache))
	adminGroup.GET("/users/:id", AdminGetUserHandler(d.Auth))
	adminGroup.POST("/users", CreateUserHandler(d.Auth, d.Cache, d.Validator))
	adminGroup.PUT("/users/:id", UpdateUserHandler(d.Auth, d.Cache, d.Validator))
	adminGroup.DELETE("/users/:id", DeleteUserHandler(d.Auth, d.Cache))
	adminGroup.GET("/invoices", ListAllInvoicesHandler(d.Ledger, d.Cache))

	reports := protected.Group("/reports", staff)
	reports.GET("", GenerateReportHandler(d.Reports))
	reports.GET("/latest", LatestReportHandler(d.Reports))

	return r
}
