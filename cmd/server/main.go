package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/aws/aws-lambda-go/lambda"
	ginadapter "github.com/awslabs/aws-lambda-go-api-proxy/gin"
	"github.com/gin-gonic/gin"
	_ "github.com/tradingbrain/licensing/docs/swagger"
	"github.com/tradingbrain/licensing/internal/api"
	v1 "github.com/tradingbrain/licensing/internal/api/v1"
	"github.com/tradingbrain/licensing/internal/config"
	"github.com/tradingbrain/licensing/internal/email"
	"github.com/tradingbrain/licensing/internal/httpclient"
	"github.com/tradingbrain/licensing/internal/interfaces"
	"github.com/tradingbrain/licensing/internal/logger"
	"github.com/tradingbrain/licensing/internal/repository"
	"github.com/tradingbrain/licensing/internal/sentry"
	"github.com/tradingbrain/licensing/internal/service"
	"github.com/tradingbrain/licensing/internal/svix"
	"github.com/tradingbrain/licensing/internal/types"
	"go.uber.org/fx"
)

// @title TradingBrain Licensing API
// @version 1.0
// @description Payment webhook that issues TradingBrain license keys
// @BasePath /v1
// @schemes http https

func init() {
	// Set UTC timezone for the entire application
	time.Local = time.UTC
}

func main() {
	app := fx.New(appOptions()...)
	app.Run()
}

// appOptions assembles the fx graph for the server
func appOptions() []fx.Option {
	var opts []fx.Option

	// Core dependencies
	opts = append(opts,
		fx.Provide(
			// Config
			config.NewConfig,

			// Logger
			logger.NewLogger,

			// HTTP Client
			httpclient.NewDefaultClient,

			// Repositories
			repository.NewStore,

			// Delivery and fan-out
			email.NewDispatcher,
			svix.NewClient,
		),
		// Monitoring
		sentry.Module(),
	)

	// Service layer
	opts = append(opts,
		fx.Provide(
			service.NewServiceParams,
			service.NewWebhookProcessor,
		),
	)

	// API
	opts = append(opts,
		fx.Provide(
			provideHandlers,
			provideRouter,
		),
		fx.Invoke(
			registerStoreHooks,
			startServer,
		),
	)

	return opts
}

func provideHandlers(
	cfg *config.Configuration,
	logger *logger.Logger,
	processor interfaces.WebhookProcessor,
) api.Handlers {
	return api.Handlers{
		Health:         v1.NewHealthHandler(logger),
		PaymentWebhook: v1.NewPaymentWebhookHandler(cfg, processor, logger),
	}
}

func provideRouter(handlers api.Handlers, cfg *config.Configuration, logger *logger.Logger) *gin.Engine {
	return api.NewRouter(handlers, cfg, logger)
}

func registerStoreHooks(lc fx.Lifecycle, store *repository.Store, log *logger.Logger) {
	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			log.Info("Closing license store...")
			return store.Close()
		},
	})
}

func startServer(
	lc fx.Lifecycle,
	cfg *config.Configuration,
	r *gin.Engine,
	log *logger.Logger,
) {
	mode := cfg.Deployment.Mode
	if mode == "" {
		mode = types.ModeLocal
	}

	switch mode {
	case types.ModeLocal, types.ModeAPI:
		startAPIServer(lc, r, cfg, log)
	case types.ModeAWSLambdaAPI:
		startAWSLambdaAPI(r)
	default:
		log.Fatalf("Unknown deployment mode: %s", mode)
	}
}

func startAPIServer(
	lc fx.Lifecycle,
	r *gin.Engine,
	cfg *config.Configuration,
	log *logger.Logger,
) {
	srv := &http.Server{
		Addr:              cfg.Server.Address,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	log.Info("Registering API server start hook")
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			log.Infow("Starting API server...", "address", cfg.Server.Address)
			go func() {
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					log.Fatalf("Failed to start server: %v", err)
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			log.Info("Shutting down server...")
			return srv.Shutdown(ctx)
		},
	})
}

func startAWSLambdaAPI(r *gin.Engine) {
	ginLambda := ginadapter.New(r)
	lambda.Start(ginLambda.ProxyWithContext)
}
