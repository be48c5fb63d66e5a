package api

import (
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	v1 "github.com/tradingbrain/licensing/internal/api/v1"
	"github.com/tradingbrain/licensing/internal/config"
	"github.com/tradingbrain/licensing/internal/logger"
	"github.com/tradingbrain/licensing/internal/rest/middleware"
)

type Handlers struct {
	Health         *v1.HealthHandler
	PaymentWebhook *v1.PaymentWebhookHandler
}

func NewRouter(handlers Handlers, cfg *config.Configuration, logger *logger.Logger) *gin.Engine {
	router := gin.New()

	router.Use(
		middleware.RecoveryHandler(logger),
		middleware.RequestIDMiddleware,
		middleware.SentryMiddleware(cfg),
		middleware.ErrorHandler(),
	)

	// Swagger documentation
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	router.GET("/health", handlers.Health.Health)

	limiter := middleware.RateLimitMiddleware(cfg.Webhook.RateLimit)

	// Path used by the serverless deployment the processor is already configured with
	legacy := router.Group("/api/webhook")
	{
		legacy.POST("", limiter, handlers.PaymentWebhook.HandleNotification)
		legacy.GET("", handlers.PaymentWebhook.Health)
	}

	v1Group := router.Group("/v1")
	registerV1Routes(v1Group, handlers, limiter)

	return router
}

func registerV1Routes(router *gin.RouterGroup, handlers Handlers, limiter gin.HandlerFunc) {
	webhooks := router.Group("/webhooks")
	{
		webhooks.POST("/nowpayments", limiter, handlers.PaymentWebhook.HandleNotification)
		webhooks.GET("/nowpayments", handlers.PaymentWebhook.Health)
	}
}
