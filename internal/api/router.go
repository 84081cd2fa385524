package api

import (
	"github.com/gin-gonic/gin"

	v1 "github.com/meterline/meterline/internal/api/v1"
	"github.com/meterline/meterline/internal/auth"
	"github.com/meterline/meterline/internal/config"
	"github.com/meterline/meterline/internal/rest/middleware"
)

// Handlers bundles every versioned handler for route registration
type Handlers struct {
	Health      *v1.HealthHandler
	App         *v1.AppHandler
	Team        *v1.TeamHandler
	Usage       *v1.UsageHandler
	Entitlement *v1.EntitlementHandler
	Checkout    *v1.CheckoutHandler
	Meta        *v1.MetaHandler
	Billing     *v1.BillingHandler
	Invoice     *v1.InvoiceHandler
	Webhook     *v1.WebhookHandler
}

func NewRouter(handlers Handlers, cfg *config.Configuration, engine *auth.TokenEngine) *gin.Engine {
	router := gin.New()
	router.Use(
		gin.Recovery(),
		middleware.RequestIDMiddleware,
		middleware.ErrorHandler(),
	)

	// Unauthenticated surface: liveness and the signature-verified
	// gateway webhook.
	router.GET("/healthz", handlers.Health.Healthz)
	router.POST("/v1/stripe/webhook", handlers.Webhook.HandleStripeWebhook)

	v1Group := router.Group("/v1")

	adminKey := middleware.AdminKeyAuth(cfg)
	bearer := middleware.BearerAuth(engine)

	registerAdminRoutes(v1Group, handlers, adminKey)
	registerSDKRoutes(v1Group, handlers, bearer)

	return router
}

func registerAdminRoutes(router *gin.RouterGroup, handlers Handlers, adminKey gin.HandlerFunc) {
	admin := router.Group("/admin", adminKey)
	{
		admin.POST("/apps", handlers.App.CreateApp)
		admin.GET("/apps/:appId", handlers.App.GetApp)
		admin.POST("/apps/:appId/secrets", handlers.App.MintSecret)
		admin.GET("/apps/:appId/secrets", handlers.App.ListSecrets)
		admin.DELETE("/apps/:appId/secrets/:kid", handlers.App.RevokeSecret)
		admin.POST("/period-close/run", handlers.Invoice.RunPeriodClose)
	}

	bundles := router.Group("/bundles", adminKey)
	{
		bundles.POST("", handlers.Billing.CreateBundle)
		bundles.GET("/:id", handlers.Billing.GetBundle)
		bundles.PATCH("/:id", handlers.Billing.UpdateBundle)
		bundles.POST("/:id/apps", handlers.Billing.AttachBundleApp)
		bundles.PUT("/:id/policies", handlers.Billing.UpsertBundlePolicy)
	}

	contracts := router.Group("/contracts", adminKey)
	{
		contracts.POST("", handlers.Billing.CreateContract)
		contracts.GET("/:id", handlers.Billing.GetContract)
		contracts.PATCH("/:id", handlers.Billing.UpdateContractStatus)
		contracts.PUT("/:id/overrides", handlers.Billing.ReplaceOverrides)
		contracts.GET("/:id/overrides", handlers.Billing.ListOverrides)
	}

	invoices := router.Group("/invoices", adminKey)
	{
		invoices.GET("/:id", handlers.Invoice.GetInvoice)
		invoices.POST("/:id/export", handlers.Invoice.ExportInvoice)
		invoices.POST("/:id/mark-paid", handlers.Invoice.MarkInvoicePaid)
	}
}

func registerSDKRoutes(router *gin.RouterGroup, handlers Handlers, bearer gin.HandlerFunc) {
	apps := router.Group("/apps/:appId", bearer)
	{
		apps.POST("/teams", handlers.Team.CreateTeam)
		apps.GET("/teams/:teamId", handlers.Team.GetTeam)
		apps.DELETE("/teams/:teamId/users/:userId", handlers.Team.RemoveMember)
		apps.GET("/teams/:teamId/wallet-config", handlers.Team.GetWalletConfig)
		apps.PUT("/teams/:teamId/wallet-config", handlers.Team.UpsertWalletConfig)

		apps.POST("/usage/events", handlers.Usage.IngestEvents)
		apps.GET("/teams/:teamId/entitlements", handlers.Entitlement.GetEntitlements)

		apps.POST("/teams/:teamId/checkout/subscription", handlers.Checkout.CreateSubscriptionCheckout)
		apps.POST("/teams/:teamId/checkout/topup", handlers.Checkout.CreateTopupCheckout)
		apps.POST("/teams/:teamId/portal", handlers.Checkout.CreatePortalSession)
	}

	teams := router.Group("/teams/:teamId", bearer)
	{
		teams.GET("/usage", middleware.RequireScope("billing:read"), handlers.Usage.QueryUsage)
		teams.GET("/cogs", handlers.Usage.QueryCOGS)
	}

	schemas := router.Group("/schemas", bearer)
	{
		schemas.GET("/usage-events", handlers.Meta.ListSchemas)
		schemas.GET("/usage-events/:type", handlers.Meta.GetSchema)
	}

	meta := router.Group("/meta", bearer)
	{
		meta.GET("/capabilities", handlers.Meta.Capabilities)
	}
}
