package service

import (
	"github.com/tradingbrain/licensing/internal/config"
	"github.com/tradingbrain/licensing/internal/domain/customer"
	"github.com/tradingbrain/licensing/internal/domain/license"
	"github.com/tradingbrain/licensing/internal/email"
	"github.com/tradingbrain/licensing/internal/interfaces"
	"github.com/tradingbrain/licensing/internal/logger"
	"github.com/tradingbrain/licensing/internal/repository"
	"github.com/tradingbrain/licensing/internal/sentry"
	"github.com/tradingbrain/licensing/internal/svix"
)

// ServiceParams holds common dependencies for services
type ServiceParams struct {
	Logger *logger.Logger
	Config *config.Configuration

	// Repositories
	CustomerRepo customer.Repository
	LicenseRepo  license.Repository

	// Delivery and fan-out
	Dispatcher     interfaces.LicenseDispatcher
	EventPublisher interfaces.EventPublisher

	// Monitoring
	Monitor interfaces.Monitor
}

// Common service params
func NewServiceParams(
	logger *logger.Logger,
	config *config.Configuration,
	store *repository.Store,
	dispatcher *email.Dispatcher,
	svixClient *svix.Client,
	sentryService *sentry.Service,
) ServiceParams {
	return ServiceParams{
		Logger:         logger,
		Config:         config,
		CustomerRepo:   store.Customers,
		LicenseRepo:    store.Licenses,
		Dispatcher:     dispatcher,
		EventPublisher: svixClient,
		Monitor:        sentryService,
	}
}
