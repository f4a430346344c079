package handler

import (
	"net/http"

	"invoice-payment-service/internal/adapter/http/middleware"
	redisStore "invoice-payment-service/internal/adapter/storage/redis"
	"invoice-payment-service/internal/core/ports"
	"invoice-payment-service/pkg/apperror"
	"invoice-payment-service/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

const maxBodyBytes = 1 << 20 // 1 MB

// RouterDeps holds all dependencies needed to set up routes.
type RouterDeps struct {
	InvoiceSvc     ports.InvoiceService
	PaymentSvc     ports.PaymentService
	RateLimitStore *redisStore.RateLimitStore // nil = rate limiting disabled
	HealthCheckers []ports.HealthChecker
	MetricsHandler http.Handler // nil = metrics endpoint disabled
	MetricsPath    string
	Logger         zerolog.Logger
}

// SetupRouter initialises the Gin engine with all routes and middleware.
// The gin mode is the caller's responsibility.
func SetupRouter(deps RouterDeps) *gin.Engine {
	r := gin.New()

	// Global middleware
	r.Use(middleware.RequestID())
	r.Use(middleware.Recovery(deps.Logger))
	r.Use(middleware.RequestLogger(deps.Logger))
	r.Use(middleware.MaxBodySize(maxBodyBytes))

	r.NoRoute(func(c *gin.Context) {
		response.Error(c, apperror.ErrNotFound("Route"))
	})

	r.GET("/health", HealthCheck(deps.HealthCheckers...))

	if deps.MetricsHandler != nil {
		path := deps.MetricsPath
		if path == "" {
			path = "/metrics"
		}
		r.GET(path, gin.WrapH(deps.MetricsHandler))
	}

	rules := middleware.DefaultRateLimitRules()

	// Helper: return rate limiter middleware if store is available, else noop.
	rl := func(group string) gin.HandlerFunc {
		rule, ok := rules[group]
		if deps.RateLimitStore == nil || !ok {
			return func(c *gin.Context) { c.Next() }
		}
		return middleware.RateLimiter(deps.RateLimitStore, group, rule, deps.Logger)
	}

	invoiceHandler := NewInvoiceHandler(deps.InvoiceSvc)
	invoices := r.Group("/invoices")
	{
		invoices.POST("", rl(middleware.GroupInvoicesWrite), invoiceHandler.CreateInvoice)
		invoices.GET("", rl(middleware.GroupReads), invoiceHandler.ListInvoices)
		invoices.GET("/:id", rl(middleware.GroupReads), invoiceHandler.GetInvoice)
	}

	paymentHandler := NewPaymentHandler(deps.PaymentSvc)
	payments := r.Group("/payments")
	{
		payments.POST("", rl(middleware.GroupPayments), paymentHandler.CreateAttempt)
		payments.GET("/:id", rl(middleware.GroupReads), paymentHandler.GetAttempt)
		payments.POST("/:id/confirm", rl(middleware.GroupPayments), paymentHandler.ConfirmAttempt)
	}

	return r
}
