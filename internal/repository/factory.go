package repository

import (
	"github.com/tradingbrain/licensing/internal/cache"
	"github.com/tradingbrain/licensing/internal/config"
	"github.com/tradingbrain/licensing/internal/domain/customer"
	"github.com/tradingbrain/licensing/internal/domain/license"
	ierr "github.com/tradingbrain/licensing/internal/errors"
	"github.com/tradingbrain/licensing/internal/httpclient"
	"github.com/tradingbrain/licensing/internal/logger"
	"github.com/tradingbrain/licensing/internal/postgres"
	"github.com/tradingbrain/licensing/internal/repository/memory"
	postgresRepo "github.com/tradingbrain/licensing/internal/repository/postgres"
	supabaseRepo "github.com/tradingbrain/licensing/internal/repository/supabase"
	"github.com/tradingbrain/licensing/internal/types"
)

// Store bundles the repositories used to issue licenses
type Store struct {
	Customers customer.Repository
	Licenses  license.Repository

	closeFn func() error
}

// Close releases driver resources such as database connections
func (s *Store) Close() error {
	if s.closeFn == nil {
		return nil
	}
	return s.closeFn()
}

// NewStore builds the repositories for the configured driver and wraps them
// with retries
func NewStore(cfg *config.Configuration, client httpclient.Client, log *logger.Logger) (*Store, error) {
	var (
		customers customer.Repository
		licenses  license.Repository
		closeFn   func() error
	)

	switch cfg.Store.Driver {
	case types.StoreDriverSupabase:
		sb := supabaseRepo.NewClient(cfg.Store.Supabase, client, log)
		if !sb.IsConfigured() {
			log.Warnw("supabase is not configured, licenses will not be persisted")
		}
		ttl := cfg.Store.Supabase.CustomerCacheTTL
		customers = supabaseRepo.NewCustomerRepository(sb, cache.NewInMemoryCache(ttl), ttl)
		licenses = supabaseRepo.NewLicenseRepository(sb)

	case types.StoreDriverPostgres:
		db, err := postgres.NewDB(cfg, log)
		if err != nil {
			return nil, err
		}
		customers = postgresRepo.NewCustomerRepository(db, log)
		licenses = postgresRepo.NewLicenseRepository(db, log)
		closeFn = db.Close

	case types.StoreDriverMemory:
		store := memory.NewStore()
		customers = store
		licenses = store

	default:
		return nil, ierr.NewErrorf("unknown store driver %q", cfg.Store.Driver).
			WithHint("store.driver must be one of supabase, postgres, memory").
			Mark(ierr.ErrValidation)
	}

	log.Infow("license store initialized", "driver", cfg.Store.Driver)

	return &Store{
		Customers: NewRetryingCustomerRepository(customers, cfg.Store.Retry, log),
		Licenses:  NewRetryingLicenseRepository(licenses, cfg.Store.Retry, log),
		closeFn:   closeFn,
	}, nil
}
