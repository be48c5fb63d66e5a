package supabase

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
	"github.com/tradingbrain/licensing/internal/cache"
	"github.com/tradingbrain/licensing/internal/config"
	domainCustomer "github.com/tradingbrain/licensing/internal/domain/customer"
	domainLicense "github.com/tradingbrain/licensing/internal/domain/license"
	ierr "github.com/tradingbrain/licensing/internal/errors"
	"github.com/tradingbrain/licensing/internal/logger"
	"github.com/tradingbrain/licensing/internal/testutil"
	"github.com/tradingbrain/licensing/internal/types"
)

type SupabaseRepositorySuite struct {
	suite.Suite
	ctx       context.Context
	http      *testutil.MockHTTPClient
	customers domainCustomer.Repository
	licenses  domainLicense.Repository
}

func TestSupabaseRepository(t *testing.T) {
	suite.Run(t, new(SupabaseRepositorySuite))
}

func (s *SupabaseRepositorySuite) SetupTest() {
	s.ctx = context.Background()
	s.http = testutil.NewMockHTTPClient()
	client := NewClient(config.SupabaseConfig{
		BaseURL:    "https://project.supabase.co/",
		ServiceKey: "service-role-key",
	}, s.http, logger.NewNoopLogger())
	s.customers = NewCustomerRepository(client, cache.NewInMemoryCache(time.Minute), time.Minute)
	s.licenses = NewLicenseRepository(client)
}

func (s *SupabaseRepositorySuite) newLicense() *domainLicense.License {
	return domainLicense.New("TB-1A2B-3C4D-5E6F-7A8B", types.LicenseTierFull, "5077125051", "buyer@example.com",
		types.Metadata{domainLicense.MetadataOrderID: "TB-FULL-1"})
}

func (s *SupabaseRepositorySuite) TestEnsureByEmail_Created() {
	s.http.RegisterResponse(http.MethodPost, "/rest/v1/users", testutil.MockResponse{
		StatusCode: http.StatusCreated,
		Body:       []byte(`[{"id":"8f14e45f-ceea-4e7a-9d0b-1c2d3e4f5a6b","email":"buyer@example.com","created_at":"2026-01-02T03:04:05.123456+00:00"}]`),
	})

	c, err := s.customers.EnsureByEmail(s.ctx, "Buyer@example.com")
	s.Require().NoError(err)
	s.Equal("8f14e45f-ceea-4e7a-9d0b-1c2d3e4f5a6b", c.ID)
	s.Equal(2026, c.CreatedAt.Year())

	reqs := s.http.Requests()
	s.Require().Len(reqs, 1)
	req := reqs[0]
	s.Equal("https://project.supabase.co/rest/v1/users", req.URL)
	s.Equal("service-role-key", req.Headers["apikey"])
	s.Equal("Bearer service-role-key", req.Headers["Authorization"])
	s.Equal("return=representation", req.Headers["Prefer"])
	s.JSONEq(`{"email":"buyer@example.com"}`, string(req.Body))

	// second call is served from cache
	again, err := s.customers.EnsureByEmail(s.ctx, "buyer@example.com")
	s.Require().NoError(err)
	s.Equal(c.ID, again.ID)
	s.Len(s.http.Requests(), 1)
}

func (s *SupabaseRepositorySuite) TestEnsureByEmail_ConflictIsSuccess() {
	s.http.RegisterResponse(http.MethodPost, "/rest/v1/users", testutil.MockResponse{
		StatusCode: http.StatusConflict,
		Body:       []byte(`{"code":"23505","message":"duplicate key value violates unique constraint"}`),
	})
	s.http.RegisterResponse(http.MethodGet, "/rest/v1/users", testutil.MockResponse{
		StatusCode: http.StatusOK,
		Body:       []byte(`[{"id":17,"email":"buyer@example.com","created_at":null}]`),
	})

	c, err := s.customers.EnsureByEmail(s.ctx, "buyer@example.com")
	s.Require().NoError(err)
	s.Equal("17", c.ID)

	reqs := s.http.Requests()
	s.Require().Len(reqs, 2)
	s.Contains(reqs[1].URL, "email=eq.buyer%40example.com")
}

func (s *SupabaseRepositorySuite) TestEnsureByEmail_ConflictLookupFails() {
	s.http.RegisterResponse(http.MethodPost, "/rest/v1/users", testutil.MockResponse{StatusCode: http.StatusConflict})

	c, err := s.customers.EnsureByEmail(s.ctx, "buyer@example.com")
	s.Require().NoError(err)
	s.Equal("buyer@example.com", c.Email)
	s.Empty(c.ID)
}

func (s *SupabaseRepositorySuite) TestEnsureByEmail_Outage() {
	s.http.RegisterResponse(http.MethodPost, "/rest/v1/users", testutil.MockResponse{StatusCode: http.StatusServiceUnavailable})

	_, err := s.customers.EnsureByEmail(s.ctx, "buyer@example.com")
	s.Require().Error(err)
	s.True(ierr.IsHTTPClient(err))
}

func (s *SupabaseRepositorySuite) TestCreateLicense() {
	s.http.RegisterResponse(http.MethodPost, "/rest/v1/licenses", testutil.MockResponse{
		StatusCode: http.StatusCreated,
		Body:       []byte(`[{"id":"c2a1","license_key":"TB-1A2B-3C4D-5E6F-7A8B","tier":"FULL","is_active":true,"metadata":{"payment_id":"5077125051"},"created_at":"2026-03-01T10:00:00+00:00"}]`),
	})

	l := s.newLicense()
	s.Require().NoError(s.licenses.Create(s.ctx, l))
	s.Equal("c2a1", l.ID)
	s.Equal(time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC), l.CreatedAt)

	reqs := s.http.Requests()
	s.Require().Len(reqs, 1)
	s.JSONEq(`{
		"license_key":"TB-1A2B-3C4D-5E6F-7A8B",
		"tier":"FULL",
		"is_active":true,
		"metadata":{"payment_id":"5077125051","customer_email":"buyer@example.com","order_id":"TB-FULL-1"}
	}`, string(reqs[0].Body))
}

func (s *SupabaseRepositorySuite) TestCreateLicense_UndecodableResponse() {
	s.http.RegisterResponse(http.MethodPost, "/rest/v1/licenses", testutil.MockResponse{
		StatusCode: http.StatusCreated,
		Body:       []byte(`<html>`),
	})

	s.NoError(s.licenses.Create(s.ctx, s.newLicense()))
}

func (s *SupabaseRepositorySuite) TestCreateLicense_Conflict() {
	s.http.RegisterResponse(http.MethodPost, "/rest/v1/licenses", testutil.MockResponse{StatusCode: http.StatusConflict})

	err := s.licenses.Create(s.ctx, s.newLicense())
	s.Require().Error(err)
	s.True(ierr.IsAlreadyExists(err))
}

func (s *SupabaseRepositorySuite) TestCreateLicense_TransportError() {
	s.http.RegisterResponse(http.MethodPost, "/rest/v1/licenses", testutil.MockResponse{Err: errors.New("connection reset")})

	err := s.licenses.Create(s.ctx, s.newLicense())
	s.Require().Error(err)
	s.True(ierr.IsHTTPClient(err))
	s.False(ierr.IsAlreadyExists(err))
}

func (s *SupabaseRepositorySuite) TestGetByPaymentID() {
	s.http.RegisterResponse(http.MethodGet, "/rest/v1/licenses", testutil.MockResponse{
		StatusCode: http.StatusOK,
		Body:       []byte(`[{"id":9,"license_key":"TB-1A2B-3C4D-5E6F-7A8B","tier":"BOT_ONLY","is_active":true,"metadata":{"payment_id":"42","customer_email":"a@b.co","price_amount":149.5}}]`),
	})

	l, err := s.licenses.GetByPaymentID(s.ctx, "42")
	s.Require().NoError(err)
	s.Equal("9", l.ID)
	s.Equal("42", l.PaymentID)
	s.Equal("a@b.co", l.CustomerEmail)
	s.Equal("149.5", l.Metadata["price_amount"])

	reqs := s.http.Requests()
	s.Require().Len(reqs, 1)
	s.True(strings.Contains(reqs[0].URL, "metadata-%3E%3Epayment_id=eq.42"), reqs[0].URL)
}

func (s *SupabaseRepositorySuite) TestGetByPaymentID_NotFound() {
	s.http.RegisterResponse(http.MethodGet, "/rest/v1/licenses", testutil.MockResponse{
		StatusCode: http.StatusOK,
		Body:       []byte(`[]`),
	})

	_, err := s.licenses.GetByPaymentID(s.ctx, "42")
	s.Require().Error(err)
	s.True(ierr.IsNotFound(err))
}

func (s *SupabaseRepositorySuite) TestNotConfigured() {
	client := NewClient(config.SupabaseConfig{}, s.http, logger.NewNoopLogger())
	customers := NewCustomerRepository(client, cache.NewInMemoryCache(time.Minute), time.Minute)
	licenses := NewLicenseRepository(client)

	_, err := customers.EnsureByEmail(s.ctx, "buyer@example.com")
	s.True(ierr.IsNotConfigured(err))
	s.True(ierr.IsNotConfigured(licenses.Create(s.ctx, s.newLicense())))
	_, err = licenses.GetByPaymentID(s.ctx, "1")
	s.True(ierr.IsNotConfigured(err))
	s.Empty(s.http.Requests())
}
