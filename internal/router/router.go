package router

import (
	"time"

	"bodega/internal/config"
	"bodega/internal/handler"
	"bodega/internal/infra"
	"bodega/internal/middleware"
	"bodega/internal/repository"
	"bodega/internal/service"
	"bodega/internal/worker"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// Services is the set of ledgers shared by the HTTP API and the operator CLI.
type Services struct {
	Rates       service.ExchangeRateService
	Stock       service.StockService
	Invoices    service.InvoiceService
	Payments    service.PaymentService
	Quotations  service.QuotationService
	Customers   service.CustomerService
	Receivables service.ReceivablesService
}

// NewServices wires repositories and services.
// Dependency graph: Service ← Repository ← DB, plus the rate source behind its breaker.
func NewServices(cfg *config.Config, db *gorm.DB) *Services {
	// ── Infrastructure ───────────────────────────────────────────────────────
	rateClient := infra.NewRateClient(infra.RateClientConfig{
		URL:         cfg.RateSourceURL,
		Timeout:     cfg.RateTimeout,
		Floor:       cfg.Floor(),
		InsecureTLS: cfg.RateInsecureTLS,
	})
	rateCB := infra.NewRateBreaker(infra.BreakerConfig{
		Failures: cfg.RateBreakerFailures,
		Cooldown: cfg.RateBreakerCooldown,
	})

	// ── Repositories ─────────────────────────────────────────────────────────
	productRepo := repository.NewProductRepository(db)
	adjustmentRepo := repository.NewStockAdjustmentRepository(db)
	customerRepo := repository.NewCustomerRepository(db)
	invoiceRepo := repository.NewInvoiceRepository(db)
	quotationRepo := repository.NewQuotationRepository(db)
	rateRepo := repository.NewRateCacheRepository(db)

	// ── Services ─────────────────────────────────────────────────────────────
	locks := service.NewLocks()
	rates := service.NewExchangeRateService(rateClient, rateCB, rateRepo)
	stock := service.NewStockService(productRepo, adjustmentRepo, invoiceRepo, locks)

	return &Services{
		Rates: rates,
		Stock: stock,
		Invoices: service.NewInvoiceService(invoiceRepo, productRepo, customerRepo, stock, rates, locks, service.InvoiceOptions{
			DefaultCreditDays: cfg.DefaultCreditDays,
			FallbackRate:      cfg.FallbackRate(),
		}),
		Payments: service.NewPaymentService(invoiceRepo, locks),
		Quotations: service.NewQuotationService(quotationRepo, productRepo, customerRepo, rates, service.QuotationOptions{
			DefaultCreditDays:   cfg.DefaultCreditDays,
			DefaultValidityDays: cfg.QuotationValidityDays,
			FallbackRate:        cfg.FallbackRate(),
		}),
		Customers:   service.NewCustomerService(customerRepo, invoiceRepo, cfg.PhoneCountryCode),
		Receivables: service.NewReceivablesService(invoiceRepo, rates, cfg.FallbackRate()),
	}
}

// New returns a configured Gin engine. rdb may be nil; audit entries are then
// dropped and /health reports redis as disabled.
func New(cfg *config.Config, db *gorm.DB, rdb *redis.Client, svcs *Services) *gin.Engine {
	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()

	// Global middleware chain (order matters)
	r.Use(middleware.RequestID())
	r.Use(middleware.Actor())
	r.Use(middleware.Logger())
	r.Use(middleware.Recovery())
	r.Use(middleware.CORS())
	r.Use(middleware.ErrorHandler())
	r.Use(middleware.RateLimiter(1000, time.Minute)) // 1000 req/min per IP

	dispatcher := worker.NewDispatcher(rdb)

	// ── Handlers ─────────────────────────────────────────────────────────────
	rateH := handler.NewRateHandler(svcs.Rates, svcs.Invoices, dispatcher)
	productsH := handler.NewProductsHandler(svcs.Stock, dispatcher)
	customersH := handler.NewCustomersHandler(svcs.Customers, dispatcher)
	invoicesH := handler.NewInvoicesHandler(svcs.Invoices, svcs.Payments, dispatcher)
	quotationsH := handler.NewQuotationsHandler(svcs.Quotations, dispatcher)
	receivablesH := handler.NewReceivablesHandler(svcs.Receivables)

	// ── Routes ───────────────────────────────────────────────────────────────
	r.GET("/health", handler.Health(db, rdb, svcs.Rates.Breaker()))

	v1 := r.Group("/v1")
	{
		v1.GET("/rate", rateH.Get)
		v1.POST("/rate/refresh", rateH.Refresh)
		v1.POST("/totals", rateH.Totals)

		prods := v1.Group("/products")
		{
			prods.POST("", productsH.Create)
			prods.GET("", productsH.List)
			prods.GET("/:id", productsH.Get)
			prods.PUT("/:id", productsH.Update)
			prods.DELETE("/:id", productsH.Delete)
			prods.PATCH("/:id/stock", productsH.AdjustStock)
			prods.POST("/bulk-adjust", productsH.BulkAdjust)
			prods.POST("/bulk-delete", productsH.BulkDelete)
		}
		v1.GET("/adjustments", productsH.ListAdjustments)

		customers := v1.Group("/customers")
		{
			customers.POST("", customersH.Create)
			customers.GET("", customersH.List)
			customers.GET("/:id", customersH.Get)
			customers.PUT("/:id", customersH.Update)
			customers.DELETE("/:id", customersH.Delete)
		}

		invoices := v1.Group("/invoices")
		{
			invoices.POST("", invoicesH.Create)
			invoices.GET("", invoicesH.List)
			invoices.POST("/repair", invoicesH.Repair)
			invoices.GET("/:id", invoicesH.Get)
			invoices.PUT("/:id", invoicesH.Update)
			invoices.DELETE("/:id", invoicesH.Delete)
			invoices.POST("/:id/payments", invoicesH.RegisterPayment)
			invoices.DELETE("/:id/payments/:paymentId", invoicesH.RemovePayment)
		}

		quotes := v1.Group("/quotations")
		{
			quotes.POST("", quotationsH.Create)
			quotes.GET("", quotationsH.List)
			quotes.GET("/:number", quotationsH.Get)
			quotes.DELETE("/:number", quotationsH.Delete)
			quotes.POST("/:number/convert", quotationsH.Convert)
		}

		v1.GET("/receivables", receivablesH.Summary)
	}

	return r
}
